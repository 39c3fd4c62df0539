package formula

// Map 公式保持变换的基础原语
//
// 空白文本片段原样保留；非空白文本交给 textFn；公式片段交给 formulaFn。
// 任一回调为 nil 时对应片段原样保留。回调返回错误时立即中止。
func Map(content string, textFn, formulaFn func(string) (string, error)) (string, error) {
	spans := Split(content)
	for i, s := range spans {
		switch {
		case s.Kind == SpanFormula:
			if formulaFn == nil {
				continue
			}
			v, err := formulaFn(s.Value)
			if err != nil {
				return "", err
			}
			spans[i].Value = v
		case s.IsBlank():
			continue
		default:
			if textFn == nil {
				continue
			}
			v, err := textFn(s.Value)
			if err != nil {
				return "", err
			}
			spans[i].Value = v
		}
	}
	return Join(spans), nil
}

// Each 按顺序访问文本片段与公式块，空白文本片段跳过
func Each(content string, textFn, formulaFn func(string)) {
	for _, s := range Split(content) {
		switch {
		case s.Kind == SpanFormula:
			if formulaFn != nil {
				formulaFn(s.Value)
			}
		case s.IsBlank():
		default:
			if textFn != nil {
				textFn(s.Value)
			}
		}
	}
}

// Transform 只对非公式文本应用 fn，公式块逐字节保留
func Transform(content string, fn func(string) string) string {
	out, _ := Map(content, func(s string) (string, error) { return fn(s), nil }, nil)
	return out
}

// TransformE 可返回错误的 Transform，用于翻译等可能失败的变换
func TransformE(content string, fn func(string) (string, error)) (string, error) {
	return Map(content, fn, nil)
}

// Identity 恒等变换
func Identity(s string) string { return s }
