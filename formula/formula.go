package formula

import (
	"regexp"
	"strings"
)

const (
	// Open 公式块起始定界符
	Open = "$$"
	// Close 公式块结束定界符
	Close = "$$"
)

// blockPattern 非贪婪匹配 $$ ... $$，允许跨行
var blockPattern = regexp.MustCompile(`(?s)\$\$.*?\$\$`)

// SpanKind 片段类型
type SpanKind string

const (
	SpanText    SpanKind = "text"
	SpanFormula SpanKind = "formula"
)

// Span 按定界符切分得到的有序片段
type Span struct {
	Kind  SpanKind `json:"kind"`
	Value string   `json:"value"`
}

// IsBlank 是否为空白文本片段
func (s Span) IsBlank() bool {
	return s.Kind == SpanText && strings.TrimSpace(s.Value) == ""
}

// Block 将 LaTeX 包装为公式块 "$$\n<latex>\n$$"
func Block(latex string) string {
	return Open + "\n" + latex + "\n" + Close
}

// Split 切分内容为文本/公式交替的片段
//
// 偶数下标为文本（可能为空字符串），奇数下标为公式块（包含定界符），
// 与 Join 组合满足 Join(Split(c)) == c。
func Split(content string) []Span {
	matches := blockPattern.FindAllStringIndex(content, -1)
	spans := make([]Span, 0, 2*len(matches)+1)

	last := 0
	for _, m := range matches {
		spans = append(spans, Span{Kind: SpanText, Value: content[last:m[0]]})
		spans = append(spans, Span{Kind: SpanFormula, Value: content[m[0]:m[1]]})
		last = m[1]
	}
	spans = append(spans, Span{Kind: SpanText, Value: content[last:]})

	return spans
}

// Join 按原顺序拼接片段
func Join(spans []Span) string {
	var sb strings.Builder
	for _, s := range spans {
		sb.WriteString(s.Value)
	}
	return sb.String()
}

// HasFormula 内容中是否包含公式块
func HasFormula(content string) bool {
	return blockPattern.MatchString(content)
}

// Body 去掉公式块的定界符并去除首尾空白
func Body(block string) string {
	if len(block) >= len(Open)+len(Close) && strings.HasPrefix(block, Open) && strings.HasSuffix(block, Close) {
		block = block[len(Open) : len(block)-len(Close)]
	}
	return strings.TrimSpace(block)
}
