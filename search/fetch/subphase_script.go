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

package fetch

import (
	"fmt"

	"github.com/lynxsearch/lynxdb/index"
	"github.com/lynxsearch/lynxdb/script"
	"github.com/lynxsearch/lynxdb/search"
)

// ScriptFieldsSubPhase 对每篇命中执行脚本字段
//
// 工厂优先取查询阶段冻结前编好的缓存；这里兜底编译只对确定性脚本
// 成立，非确定性脚本在冻结后的上下文里编译会直接报错
type ScriptFieldsSubPhase struct{}

// Name 实现 SubPhase 接口
func (*ScriptFieldsSubPhase) Name() string { return "script_fields" }

// Processor 实现 SubPhase 接口
func (*ScriptFieldsSubPhase) Processor(sc *search.SearchContext) (Processor, error) {
	if len(sc.Request.ScriptFields) == 0 {
		return nil, nil
	}
	fields := make([]compiledScriptField, 0, len(sc.Request.ScriptFields))
	for _, sf := range sc.Request.ScriptFields {
		factory := sc.ScriptFactories[sf.Name]
		if factory == nil {
			var err error
			factory, err = sc.Exec.CompileScript(sf.Script, script.ContextField)
			if err != nil {
				return nil, fmt.Errorf("failed to compile script field [%s]: %w", sf.Name, err)
			}
		}
		fields = append(fields, compiledScriptField{name: sf.Name, script: sf.Script, factory: factory})
	}
	return &scriptFieldsProcessor{sc: sc, fields: fields}, nil
}

type compiledScriptField struct {
	name    string
	script  *script.Script
	factory *script.Factory
}

type scriptFieldsProcessor struct {
	sc     *search.SearchContext
	fields []compiledScriptField
}

func (p *scriptFieldsProcessor) StoredFieldsSpec() StoredFieldsSpec {
	return StoredFieldsSpec{RequiresSource: true, RequiresMetadata: true}
}

func (p *scriptFieldsProcessor) SetNextReader(*index.SegmentSnapshot) error { return nil }

func (p *scriptFieldsProcessor) Process(hc *HitContext) error {
	lk := p.sc.Exec.Lookup()
	lk.MoveTo(hc.GlobalOrd)
	docFields, err := lk.Fields().Fields()
	if err != nil {
		return err
	}
	source, err := lk.Source().Source()
	if err != nil {
		return err
	}

	for _, f := range p.fields {
		sctx := f.script.NewContext(docFields, source)
		sctx.Score = hc.Hit.Score
		v, err := f.factory.Execute(sctx)
		if err != nil {
			return fmt.Errorf("failed to execute script field [%s] on doc %d: %w", f.name, hc.GlobalOrd, err)
		}
		if hc.Hit.Fields == nil {
			hc.Hit.Fields = make(map[string][]interface{})
		}
		hc.Hit.Fields[f.name] = []interface{}{v}
	}
	return nil
}
