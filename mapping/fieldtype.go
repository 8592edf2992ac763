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

package mapping

// 字段类型常量
const (
	TypeText    = "text"
	TypeKeyword = "keyword"
	TypeLong    = "long"
	TypeInteger = "integer"
	TypeShort   = "short"
	TypeByte    = "byte"
	TypeDouble  = "double"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeDate    = "date"
	TypeBinary  = "binary"
	TypeObject  = "object"
	TypeNested  = "nested"
)

// validTypes 支持的字段类型集合
var validTypes = map[string]bool{
	TypeText: true, TypeKeyword: true, TypeLong: true, TypeInteger: true,
	TypeShort: true, TypeByte: true, TypeDouble: true, TypeFloat: true,
	TypeBoolean: true, TypeDate: true, TypeBinary: true, TypeObject: true,
	TypeNested: true,
}

// 元数据字段名称
const (
	IDField      = "_id"
	SourceField  = "_source"
	IndexField   = "_index"
	RoutingField = "_routing"
	ScoreField   = "_score"
	VersionField = "_version"
)

// metadataFields 元数据字段集合
var metadataFields = map[string]bool{
	IDField: true, SourceField: true, IndexField: true,
	RoutingField: true, ScoreField: true, VersionField: true,
}

// IsMetadataField 判断是否是元数据字段
func IsMetadataField(name string) bool {
	return metadataFields[name]
}

// FieldType 字段类型定义
// 由索引映射解析得到，或由请求级 runtime 字段定义
type FieldType struct {
	Name       string // 完整字段路径（点分）
	Type       string // 字段类型
	Analyzer   string // 分析器名称（text 字段）
	Similarity string // 相似度算法名称
	Index      bool   // 是否可检索
	DocValues  bool   // 是否可聚合/排序
	Store      bool   // 是否单独存储
	Runtime    bool   // 是否是 runtime 字段
	Script     string // runtime 字段的取值脚本
}

// IsText 是否是全文字段
func (ft *FieldType) IsText() bool {
	return ft.Type == TypeText
}

// IsNested 是否是嵌套字段
func (ft *FieldType) IsNested() bool {
	return ft.Type == TypeNested
}

// IsNumeric 是否是数值字段
func (ft *FieldType) IsNumeric() bool {
	switch ft.Type {
	case TypeLong, TypeInteger, TypeShort, TypeByte, TypeDouble, TypeFloat:
		return true
	}
	return false
}

// SynthesizeTextFieldType 为未映射字段合成一个 text 类型
// 用于 map_unmapped_field_as_text 开启时的兜底解析
func SynthesizeTextFieldType(name string) *FieldType {
	return &FieldType{
		Name:     name,
		Type:     TypeText,
		Analyzer: "standard",
		Index:    true,
	}
}
