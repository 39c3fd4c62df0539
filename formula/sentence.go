package formula

import (
	"regexp"
	"strings"
)

// sentenceBoundary 句末标点后的空白
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// SplitSentences 按 "." "!" "?" 后接空白切分句子，去除首尾空白并丢弃空句
//
// 不处理缩写和小数，"Dr. Smith" 会被切成两句。
func SplitSentences(text string) []string {
	var sentences []string

	last := 0
	for _, m := range sentenceBoundary.FindAllStringIndex(text, -1) {
		// 标点保留在前一句
		sentences = appendTrimmed(sentences, text[last:m[0]+1])
		last = m[1]
	}
	sentences = appendTrimmed(sentences, text[last:])

	return sentences
}

func appendTrimmed(dst []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return dst
	}
	return append(dst, s)
}
