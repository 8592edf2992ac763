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

package script

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Engine 脚本执行引擎
// 解释执行 Painless 表达式子集：括号、三元、逻辑、比较、算术、
// 方法调用、Math 内置函数、doc/params/_source/_score 字段访问与字面量
type Engine struct{}

// NewEngine 创建脚本引擎
func NewEngine() *Engine {
	return &Engine{}
}

// 非确定性脚本特征，命中任意一个则编译结果不可参与请求级缓存
var nonDeterministicPattern = regexp.MustCompile(`Math\.random\(|System\.currentTimeMillis\(|new\s+Date\(|\bnow\(\)`)

// Factory 编译后的脚本工厂
// 同一份源码编译一次即可反复执行，确定性标记在编译期算出
type Factory struct {
	Source        string
	Lang          string
	deterministic bool
	engine        *Engine
}

// IsResultDeterministic 返回脚本对相同输入是否总是产生相同结果
// 引用当前时间或随机数的脚本不是确定性的
func (f *Factory) IsResultDeterministic() bool {
	return f.deterministic
}

// Execute 执行脚本并返回结果
func (f *Factory) Execute(ctx *Context) (interface{}, error) {
	if ctx == nil {
		ctx = &Context{}
	}
	if ctx.Now == 0 {
		ctx.Now = time.Now().UnixMilli()
	}
	return f.engine.evaluate(f.Source, ctx)
}

// ExecuteScore 执行评分脚本，结果转为 float64
func (f *Factory) ExecuteScore(ctx *Context) (float64, error) {
	result, err := f.Execute(ctx)
	if err != nil {
		return 0, err
	}
	score, ok := toFloat64(result)
	if !ok {
		return 0, fmt.Errorf("score script must return a number, got %T", result)
	}
	return score, nil
}

// ExecuteFilter 执行过滤脚本，结果转为 bool
func (f *Factory) ExecuteFilter(ctx *Context) (bool, error) {
	result, err := f.Execute(ctx)
	if err != nil {
		return false, err
	}
	return toBool(result), nil
}

// Compile 编译脚本为可复用的工厂
func (e *Engine) Compile(s *Script) (*Factory, error) {
	if s == nil || strings.TrimSpace(s.Source) == "" {
		return nil, fmt.Errorf("script is empty")
	}
	lang := s.Lang
	if lang == "" {
		lang = LangPainless
	}
	if lang != LangPainless && lang != LangExpression {
		return nil, fmt.Errorf("unsupported script language: %s", lang)
	}
	return &Factory{
		Source:        s.Source,
		Lang:          lang,
		deterministic: !nonDeterministicPattern.MatchString(s.Source),
		engine:        e,
	}, nil
}

// Execute 直接执行脚本，脚本参数合并进上下文
func (e *Engine) Execute(s *Script, ctx *Context) (interface{}, error) {
	if s == nil || strings.TrimSpace(s.Source) == "" {
		return nil, fmt.Errorf("script is empty")
	}
	if ctx == nil {
		ctx = &Context{}
	}
	if ctx.Now == 0 {
		ctx.Now = time.Now().UnixMilli()
	}
	if s.Params != nil {
		if ctx.Params == nil {
			ctx.Params = make(map[string]interface{}, len(s.Params))
		}
		for k, v := range s.Params {
			if _, exists := ctx.Params[k]; !exists {
				ctx.Params[k] = v
			}
		}
	}
	return e.evaluate(s.Source, ctx)
}

// evaluate 求值表达式，按优先级从低到高依次尝试各类结构
func (e *Engine) evaluate(expr string, ctx *Context) (interface{}, error) {
	expr = strings.TrimSpace(expr)
	expr = strings.TrimSuffix(expr, ";")
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	if v, handled, err := e.evaluateParentheses(expr, ctx); handled {
		return v, err
	}
	if v, handled, err := e.evaluateTernary(expr, ctx); handled {
		return v, err
	}
	if v, handled, err := e.evaluateLogical(expr, ctx); handled {
		return v, err
	}
	if v, handled, err := e.evaluateComparison(expr, ctx); handled {
		return v, err
	}
	if v, handled, err := e.evaluateArithmetic(expr, ctx); handled {
		return v, err
	}
	if v, handled, err := e.evaluateBuiltin(expr, ctx); handled {
		return v, err
	}
	if v, handled, err := e.evaluateMethodCall(expr, ctx); handled {
		return v, err
	}
	if v, handled, err := e.evaluateFieldAccess(expr, ctx); handled {
		return v, err
	}
	if v, ok := evaluateLiteral(expr); ok {
		return v, nil
	}

	return nil, fmt.Errorf("unsupported expression: %s", expr)
}

// evaluateParentheses 整体括号包裹的表达式去掉外层括号再求值
func (e *Engine) evaluateParentheses(expr string, ctx *Context) (interface{}, bool, error) {
	if len(expr) < 2 || expr[0] != '(' || expr[len(expr)-1] != ')' {
		return nil, false, nil
	}
	// 首括号必须与末括号配对，(a)+(b) 这类不能整体剥离
	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(expr)-1 {
				return nil, false, nil
			}
		}
	}
	if depth != 0 {
		return nil, true, fmt.Errorf("unbalanced parentheses: %s", expr)
	}
	v, err := e.evaluate(expr[1:len(expr)-1], ctx)
	return v, true, err
}

// evaluateTernary 三元表达式 cond ? a : b
func (e *Engine) evaluateTernary(expr string, ctx *Context) (interface{}, bool, error) {
	q := findOperatorFirst(expr, "?")
	if q <= 0 {
		return nil, false, nil
	}

	// 找配对的冒号，跳过嵌套三元
	colon := -1
	nested := 0
	depth := 0
	var quote byte
	for i := q + 1; i < len(expr) && colon < 0; i++ {
		c := expr[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '?':
			if depth == 0 {
				nested++
			}
		case ':':
			if depth == 0 {
				if nested == 0 {
					colon = i
				} else {
					nested--
				}
			}
		}
	}
	if colon < 0 {
		return nil, true, fmt.Errorf("ternary expression missing ':': %s", expr)
	}

	cond, err := e.evaluate(expr[:q], ctx)
	if err != nil {
		return nil, true, err
	}
	if toBool(cond) {
		v, err := e.evaluate(expr[q+1:colon], ctx)
		return v, true, err
	}
	v, err := e.evaluate(expr[colon+1:], ctx)
	return v, true, err
}

// evaluateLogical 逻辑表达式 && || !，带短路求值
func (e *Engine) evaluateLogical(expr string, ctx *Context) (interface{}, bool, error) {
	// || 优先级低于 &&，先按最后一个 || 切分
	for _, op := range []string{"||", "&&"} {
		idx := findOperatorLast(expr, op)
		if idx <= 0 || idx+len(op) >= len(expr) {
			continue
		}
		left, err := e.evaluate(expr[:idx], ctx)
		if err != nil {
			return nil, true, err
		}
		lb := toBool(left)
		// 短路：左侧已决定结果时右侧不再求值
		if op == "||" && lb {
			return true, true, nil
		}
		if op == "&&" && !lb {
			return false, true, nil
		}
		right, err := e.evaluate(expr[idx+len(op):], ctx)
		if err != nil {
			return nil, true, err
		}
		return toBool(right), true, nil
	}

	if strings.HasPrefix(expr, "!") && !strings.HasPrefix(expr, "!=") {
		v, err := e.evaluate(expr[1:], ctx)
		if err != nil {
			return nil, true, err
		}
		return !toBool(v), true, nil
	}

	return nil, false, nil
}

// evaluateComparison 比较表达式
func (e *Engine) evaluateComparison(expr string, ctx *Context) (interface{}, bool, error) {
	for _, op := range []string{"==", "!=", ">=", "<=", ">", "<"} {
		idx := findOperatorLast(expr, op)
		if idx <= 0 || idx+len(op) >= len(expr) {
			continue
		}
		left, err := e.evaluate(expr[:idx], ctx)
		if err != nil {
			return nil, true, err
		}
		right, err := e.evaluate(expr[idx+len(op):], ctx)
		if err != nil {
			return nil, true, err
		}
		v, err := compare(left, right, op)
		return v, true, err
	}
	return nil, false, nil
}

// evaluateArithmetic 算术表达式，先按低优先级 + - 切分再按 * / %
func (e *Engine) evaluateArithmetic(expr string, ctx *Context) (interface{}, bool, error) {
	for _, ops := range [][]string{{"+", "-"}, {"*", "/", "%"}} {
		idx, op := -1, ""
		for _, o := range ops {
			i := findOperatorLast(expr, o)
			if i <= idx {
				continue
			}
			if o == "-" && !isBinaryMinus(expr, i) {
				continue
			}
			idx, op = i, o
		}
		if idx <= 0 || idx+len(op) >= len(expr) {
			continue
		}
		left, err := e.evaluate(expr[:idx], ctx)
		if err != nil {
			return nil, true, err
		}
		right, err := e.evaluate(expr[idx+len(op):], ctx)
		if err != nil {
			return nil, true, err
		}
		v, err := applyArithmetic(left, right, op)
		return v, true, err
	}
	return nil, false, nil
}

var mathCallPattern = regexp.MustCompile(`^Math\.(\w+)\((.*)\)$`)

// 一元 Math 函数
var mathFuncs = map[string]func(float64) float64{
	"abs":   math.Abs,
	"ceil":  math.Ceil,
	"floor": math.Floor,
	"round": math.Round,
	"sqrt":  math.Sqrt,
	"log":   math.Log,
	"log10": math.Log10,
	"exp":   math.Exp,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
}

// evaluateBuiltin 内置函数：Math.* 与时间函数
func (e *Engine) evaluateBuiltin(expr string, ctx *Context) (interface{}, bool, error) {
	switch expr {
	case "now()", "System.currentTimeMillis()":
		return float64(ctx.Now), true, nil
	case "Math.random()":
		return float64(time.Now().UnixNano()%1000) / 1000.0, true, nil
	}

	m := mathCallPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, false, nil
	}
	name, argsStr := m[1], m[2]

	args := splitArgs(argsStr)
	vals := make([]float64, 0, len(args))
	for _, arg := range args {
		v, err := e.evaluate(arg, ctx)
		if err != nil {
			return nil, true, err
		}
		f, ok := toFloat64(v)
		if !ok {
			return nil, true, fmt.Errorf("Math.%s requires numeric arguments, got %T", name, v)
		}
		vals = append(vals, f)
	}

	switch name {
	case "min", "max":
		if len(vals) == 0 {
			return nil, true, fmt.Errorf("Math.%s requires at least one argument", name)
		}
		result := vals[0]
		for _, v := range vals[1:] {
			if (name == "min" && v < result) || (name == "max" && v > result) {
				result = v
			}
		}
		return result, true, nil
	case "pow":
		if len(vals) != 2 {
			return nil, true, fmt.Errorf("Math.pow requires 2 arguments, got %d", len(vals))
		}
		return math.Pow(vals[0], vals[1]), true, nil
	default:
		fn, ok := mathFuncs[name]
		if !ok {
			return nil, true, fmt.Errorf("unknown Math function: %s", name)
		}
		if len(vals) != 1 {
			return nil, true, fmt.Errorf("Math.%s requires 1 argument, got %d", name, len(vals))
		}
		return fn(vals[0]), true, nil
	}
}

// evaluateMethodCall 方法调用 receiver.method(args)
func (e *Engine) evaluateMethodCall(expr string, ctx *Context) (interface{}, bool, error) {
	if !strings.HasSuffix(expr, ")") {
		return nil, false, nil
	}

	// 找到与末尾右括号配对的左括号
	open := -1
	candidate := -1
	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			if depth == 0 {
				candidate = i
			}
			depth++
		case ')':
			depth--
			if depth == 0 && i == len(expr)-1 {
				open = candidate
			}
		}
	}
	if open <= 0 {
		return nil, false, nil
	}

	// 左括号之前是方法名，方法名之前是点号
	j := open - 1
	for j >= 0 && isWordChar(expr[j]) {
		j--
	}
	method := expr[j+1 : open]
	if method == "" || j <= 0 || expr[j] != '.' {
		return nil, false, nil
	}
	receiverExpr := expr[:j]

	receiver, err := e.evaluate(receiverExpr, ctx)
	if err != nil {
		return nil, true, err
	}

	args := splitArgs(expr[open+1 : len(expr)-1])
	vals := make([]interface{}, 0, len(args))
	for _, arg := range args {
		v, err := e.evaluate(arg, ctx)
		if err != nil {
			return nil, true, err
		}
		vals = append(vals, v)
	}

	v, err := callMethod(receiver, method, vals)
	return v, true, err
}

// callMethod 在求值后的接收者上执行方法
func callMethod(receiver interface{}, method string, args []interface{}) (interface{}, error) {
	switch method {
	case "length":
		s, ok := receiver.(string)
		if !ok {
			return nil, fmt.Errorf("method length() not supported on %T", receiver)
		}
		return float64(len(s)), nil
	case "contains":
		if len(args) != 1 {
			return nil, fmt.Errorf("method contains() requires 1 argument")
		}
		switch r := receiver.(type) {
		case string:
			return strings.Contains(r, toString(args[0])), nil
		case []interface{}:
			for _, item := range r {
				eq, err := compare(item, args[0], "==")
				if err == nil && eq {
					return true, nil
				}
			}
			return false, nil
		}
		return nil, fmt.Errorf("method contains() not supported on %T", receiver)
	case "startsWith":
		s, arg, err := stringMethodArgs(receiver, method, args)
		if err != nil {
			return nil, err
		}
		return strings.HasPrefix(s, arg), nil
	case "endsWith":
		s, arg, err := stringMethodArgs(receiver, method, args)
		if err != nil {
			return nil, err
		}
		return strings.HasSuffix(s, arg), nil
	case "toLowerCase":
		s, ok := receiver.(string)
		if !ok {
			return nil, fmt.Errorf("method toLowerCase() not supported on %T", receiver)
		}
		return strings.ToLower(s), nil
	case "toUpperCase":
		s, ok := receiver.(string)
		if !ok {
			return nil, fmt.Errorf("method toUpperCase() not supported on %T", receiver)
		}
		return strings.ToUpper(s), nil
	case "trim":
		s, ok := receiver.(string)
		if !ok {
			return nil, fmt.Errorf("method trim() not supported on %T", receiver)
		}
		return strings.TrimSpace(s), nil
	case "substring":
		s, ok := receiver.(string)
		if !ok {
			return nil, fmt.Errorf("method substring() not supported on %T", receiver)
		}
		if len(args) < 1 || len(args) > 2 {
			return nil, fmt.Errorf("method substring() requires 1 or 2 arguments")
		}
		start, ok := toInt(args[0])
		if !ok {
			return nil, fmt.Errorf("substring() start must be a number")
		}
		end := len(s)
		if len(args) == 2 {
			end, ok = toInt(args[1])
			if !ok {
				return nil, fmt.Errorf("substring() end must be a number")
			}
		}
		if start < 0 || end > len(s) || start > end {
			return nil, fmt.Errorf("substring index out of range: [%d, %d) on length %d", start, end, len(s))
		}
		return s[start:end], nil
	case "indexOf":
		s, arg, err := stringMethodArgs(receiver, method, args)
		if err != nil {
			return nil, err
		}
		return float64(strings.Index(s, arg)), nil
	case "replace":
		s, ok := receiver.(string)
		if !ok {
			return nil, fmt.Errorf("method replace() not supported on %T", receiver)
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("method replace() requires 2 arguments")
		}
		return strings.ReplaceAll(s, toString(args[0]), toString(args[1])), nil
	case "split":
		s, arg, err := stringMethodArgs(receiver, method, args)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s, arg)
		rv := make([]interface{}, len(parts))
		for i, p := range parts {
			rv[i] = p
		}
		return rv, nil
	case "size":
		switch r := receiver.(type) {
		case string:
			return float64(len(r)), nil
		case []interface{}:
			return float64(len(r)), nil
		case map[string]interface{}:
			return float64(len(r)), nil
		case nil:
			return float64(0), nil
		}
		return nil, fmt.Errorf("method size() not supported on %T", receiver)
	case "isEmpty":
		switch r := receiver.(type) {
		case string:
			return r == "", nil
		case []interface{}:
			return len(r) == 0, nil
		case map[string]interface{}:
			return len(r) == 0, nil
		case nil:
			return true, nil
		}
		return nil, fmt.Errorf("method isEmpty() not supported on %T", receiver)
	case "get":
		if len(args) != 1 {
			return nil, fmt.Errorf("method get() requires 1 argument")
		}
		switch r := receiver.(type) {
		case []interface{}:
			i, ok := toInt(args[0])
			if !ok {
				return nil, fmt.Errorf("get() index must be a number")
			}
			if i < 0 || i >= len(r) {
				return nil, fmt.Errorf("get() index out of range: %d on length %d", i, len(r))
			}
			return r[i], nil
		case map[string]interface{}:
			return r[toString(args[0])], nil
		}
		return nil, fmt.Errorf("method get() not supported on %T", receiver)
	default:
		return nil, fmt.Errorf("unknown method: %s", method)
	}
}

func stringMethodArgs(receiver interface{}, method string, args []interface{}) (string, string, error) {
	s, ok := receiver.(string)
	if !ok {
		return "", "", fmt.Errorf("method %s() not supported on %T", method, receiver)
	}
	if len(args) != 1 {
		return "", "", fmt.Errorf("method %s() requires 1 argument", method)
	}
	return s, toString(args[0]), nil
}

var (
	docFieldPattern  = regexp.MustCompile(`^doc\[['"]([^'"]+)['"]\]\.value$`)
	docRawPattern    = regexp.MustCompile(`^doc\[['"]([^'"]+)['"]\]$`)
	docDotPattern    = regexp.MustCompile(`^doc\.([A-Za-z_][\w.]*)$`)
	paramsPattern    = regexp.MustCompile(`^params\.([A-Za-z_][\w.]*)$`)
	paramsIdxPattern = regexp.MustCompile(`^params\[['"]([^'"]+)['"]\]$`)
	sourcePattern    = regexp.MustCompile(`^_source\.([A-Za-z_][\w.]*)$`)
	sourceIdxPattern = regexp.MustCompile(`^_source\[['"]([^'"]+)['"]\]$`)
)

// evaluateFieldAccess 字段访问：doc['f'].value、params.x、_source.x、_score
func (e *Engine) evaluateFieldAccess(expr string, ctx *Context) (interface{}, bool, error) {
	if expr == "_score" {
		return ctx.Score, true, nil
	}

	if m := docFieldPattern.FindStringSubmatch(expr); m != nil {
		v, ok := lookupField(ctx.Doc, m[1])
		if !ok {
			return nil, true, fmt.Errorf("field [%s] not found in doc", m[1])
		}
		// 多值字段取首个值
		if list, isList := v.([]interface{}); isList {
			if len(list) == 0 {
				return nil, true, fmt.Errorf("field [%s] has no values", m[1])
			}
			return list[0], true, nil
		}
		return v, true, nil
	}

	if m := docRawPattern.FindStringSubmatch(expr); m != nil {
		v, ok := lookupField(ctx.Doc, m[1])
		if !ok {
			// 缺失字段当作空值列表，配合 size()/isEmpty() 做存在性判断
			return []interface{}{}, true, nil
		}
		return v, true, nil
	}

	if m := docDotPattern.FindStringSubmatch(expr); m != nil {
		if v, ok := lookupField(ctx.Doc, m[1]); ok {
			return v, true, nil
		}
		return nil, true, fmt.Errorf("field [%s] not found in doc", m[1])
	}

	if m := paramsPattern.FindStringSubmatch(expr); m != nil {
		v, _ := lookupField(ctx.Params, m[1])
		return v, true, nil
	}
	if m := paramsIdxPattern.FindStringSubmatch(expr); m != nil {
		v, _ := lookupField(ctx.Params, m[1])
		return v, true, nil
	}

	if m := sourcePattern.FindStringSubmatch(expr); m != nil {
		v, _ := lookupField(ctx.Source, m[1])
		return v, true, nil
	}
	if m := sourceIdxPattern.FindStringSubmatch(expr); m != nil {
		v, _ := lookupField(ctx.Source, m[1])
		return v, true, nil
	}

	return nil, false, nil
}

// evaluateLiteral 字面量：布尔、null、字符串、数字
func evaluateLiteral(expr string) (interface{}, bool) {
	switch expr {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null":
		return nil, true
	}
	if len(expr) >= 2 {
		if (expr[0] == '\'' && expr[len(expr)-1] == '\'') ||
			(expr[0] == '"' && expr[len(expr)-1] == '"') {
			return expr[1 : len(expr)-1], true
		}
	}
	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return f, true
	}
	return nil, false
}

// findOperatorLast 返回运算符在括号与字符串之外的最后出现位置
func findOperatorLast(expr, op string) int {
	depth := 0
	var quote byte
	last := -1
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(expr[i:], op) {
				last = i
			}
		}
	}
	return last
}

// findOperatorFirst 返回运算符在括号与字符串之外的首次出现位置
func findOperatorFirst(expr, op string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(expr[i:], op) {
				return i
			}
		}
	}
	return -1
}

// isBinaryMinus 判断减号是二元运算符还是一元负号或科学计数法
func isBinaryMinus(expr string, idx int) bool {
	if idx <= 0 {
		return false
	}
	j := idx - 1
	for j >= 0 && expr[j] == ' ' {
		j--
	}
	if j < 0 {
		return false
	}
	prev := expr[j]
	if strings.ContainsRune("+-*/%(,?:<>=&|!", rune(prev)) {
		return false
	}
	// 1e-5 里的负号属于数字
	if (prev == 'e' || prev == 'E') && j > 0 && expr[j-1] >= '0' && expr[j-1] <= '9' {
		return false
	}
	return true
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// splitArgs 按括号外的逗号切分参数列表
func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var args []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	args = append(args, strings.TrimSpace(s[start:]))
	return args
}

// applyArithmetic 应用算术运算，+ 号对字符串做拼接
func applyArithmetic(left, right interface{}, op string) (interface{}, error) {
	if op == "+" {
		if ls, ok := left.(string); ok {
			return ls + toString(right), nil
		}
		if rs, ok := right.(string); ok {
			return toString(left) + rs, nil
		}
	}
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot apply %s to %T and %T", op, left, right)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return math.Mod(lf, rf), nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator: %s", op)
}

// compare 比较两个值，数值优先，其次字符串，最后按相等性
func compare(left, right interface{}, op string) (bool, error) {
	lf, lok := toFloat64(left)
	rf, rok := toFloat64(right)
	if lok && rok {
		switch op {
		case "==":
			return lf == rf, nil
		case "!=":
			return lf != rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		}
	}

	ls, lsok := left.(string)
	rs, rsok := right.(string)
	if lsok && rsok {
		switch op {
		case "==":
			return ls == rs, nil
		case "!=":
			return ls != rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		}
	}

	switch op {
	case "==":
		return equalValues(left, right), nil
	case "!=":
		return !equalValues(left, right), nil
	}
	return false, fmt.Errorf("cannot compare %T and %T with %s", left, right, op)
}

func equalValues(left, right interface{}) bool {
	if left == nil && right == nil {
		return true
	}
	lb, lok := left.(bool)
	rb, rok := right.(bool)
	if lok && rok {
		return lb == rb
	}
	return left == right
}

// toBool 宽松布尔转换
func toBool(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case nil:
		return false
	case string:
		return b != "" && b != "false"
	default:
		if f, ok := toFloat64(v); ok {
			return f != 0
		}
	}
	return true
}

// toFloat64 数值转换
func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toInt(v interface{}) (int, bool) {
	f, ok := toFloat64(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// toString 字符串转换，浮点数按最短形式格式化
func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// lookupField 先按完整键查找，再按点号路径逐层下钻
func lookupField(m map[string]interface{}, name string) (interface{}, bool) {
	if m == nil {
		return nil, false
	}
	if v, ok := m[name]; ok {
		return v, true
	}
	return getNestedField(m, name)
}

func getNestedField(m map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = m
	for _, p := range parts {
		mm, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = mm[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
