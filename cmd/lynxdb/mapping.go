// Copyright (c) 2025 LynxDB Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lynxsearch/lynxdb/mapping"
)

var mappingCmd = &cobra.Command{
	Use:   "mapping <mapping.json>",
	Short: "Validate a mapping file and print its fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runMapping,
}

func init() {
	rootCmd.AddCommand(mappingCmd)
}

func runMapping(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read mapping file: %w", err)
	}
	m, err := mapping.ParseIndexMappingJSON(data)
	if err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}
	lookup, err := mapping.NewLookup(m)
	if err != nil {
		return fmt.Errorf("failed to build field lookup: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tTYPE\tANALYZER\tNESTED")
	for _, name := range lookup.FieldNames() {
		ft := lookup.FieldType(name)
		analyzer := ft.Analyzer
		if analyzer == "" {
			analyzer = "-"
		}
		nestedMark := "-"
		if lookup.NestedParent(name) != "" || lookup.IsNestedPath(name) {
			nestedMark = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, ft.Type, analyzer, nestedMark)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	nestedPaths := lookup.NestedPaths()
	fmt.Printf("\n%d field(s), %d nested path(s)\n", len(lookup.FieldNames()), len(nestedPaths))
	for _, path := range nestedPaths {
		fmt.Printf("  nested: %s\n", path)
	}
	return nil
}
