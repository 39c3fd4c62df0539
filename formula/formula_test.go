package formula

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAlternatesTextAndFormula(t *testing.T) {
	spans := Split("a $$\nx\n$$ b $$y$$")
	require.Len(t, spans, 5)

	for i, s := range spans {
		if i%2 == 0 {
			assert.Equal(t, SpanText, s.Kind, "下标 %d 应为文本", i)
		} else {
			assert.Equal(t, SpanFormula, s.Kind, "下标 %d 应为公式", i)
		}
	}
	assert.Equal(t, "$$\nx\n$$", spans[1].Value)
	assert.Equal(t, "", spans[4].Value)
}

func TestSplitNonGreedy(t *testing.T) {
	spans := Split("$$a$$ mid $$b$$")
	require.Len(t, spans, 5)
	assert.Equal(t, "$$a$$", spans[1].Value)
	assert.Equal(t, " mid ", spans[2].Value)
	assert.Equal(t, "$$b$$", spans[3].Value)
}

func TestSplitStrayDelimiterPairsWithNextBlock(t *testing.T) {
	// 文本里的 $$ 与下一个定界符配对，内容字节不丢
	content := "costs $$5 each\n\n$$\nx\n$$"
	spans := Split(content)

	require.Len(t, spans, 3)
	assert.Equal(t, "costs ", spans[0].Value)
	assert.Equal(t, SpanFormula, spans[1].Kind)
	assert.Equal(t, "$$5 each\n\n$$", spans[1].Value)
	assert.Equal(t, "\nx\n$$", spans[2].Value)
	assert.Equal(t, content, Join(spans))
}

func TestRoundTripIdentity(t *testing.T) {
	contents := []string{
		"",
		"   ",
		"Hello world.",
		"See $$\nx^2\n$$ below.",
		"$$\n\\int_0^1 f(x)\\,dx\n$$",
		"first\n\n$$\na+b\n$$\n\nsecond\n\n$$\nc\n$$",
		"unterminated $$ marker stays text",
		"  leading and trailing  \n\n",
		"多语言 $$\n\\alpha\n$$ 文本",
	}

	for _, c := range contents {
		assert.Equal(t, c, Transform(c, Identity))
		assert.Equal(t, c, Join(Split(c)))
	}
}

func TestTransformUppercase(t *testing.T) {
	assert.Equal(t, "HELLO WORLD.", Transform("Hello world.", strings.ToUpper))

	got := Transform("See $$\nx^2\n$$ below.", strings.ToUpper)
	assert.Equal(t, "SEE $$\nx^2\n$$ BELOW.", got)
	assert.Contains(t, got, "$$\nx^2\n$$")
}

func TestTransformSkipsBlankParts(t *testing.T) {
	calls := 0
	fn := func(s string) string {
		calls++
		return "[" + s + "]"
	}

	got := Transform("$$a$$\n\n$$b$$", fn)
	assert.Equal(t, "$$a$$\n\n$$b$$", got)
	assert.Equal(t, 0, calls)
}

func TestTransformNeverTouchesFormula(t *testing.T) {
	content := "text $$\nE = mc^2. Done!\n$$ more"
	got := Transform(content, func(s string) string { return strings.ReplaceAll(s, "E", "X") })
	assert.Contains(t, got, "$$\nE = mc^2. Done!\n$$")
}

func TestTransformEStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	_, err := TransformE("a $$x$$ b", func(s string) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
}

func TestMapRendersFormula(t *testing.T) {
	got, err := Map("a $$\nx\n$$ b", nil, func(block string) (string, error) {
		return "<" + Body(block) + ">", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a <x> b", got)
}

func TestEachVisitsSpansInOrder(t *testing.T) {
	var seen []string
	Each("intro $$\nx\n$$  \n$$y$$ tail", func(text string) {
		seen = append(seen, "t:"+text)
	}, func(block string) {
		seen = append(seen, "f:"+Body(block))
	})
	assert.Equal(t, []string{"t:intro ", "f:x", "f:y", "t: tail"}, seen)

	assert.NotPanics(t, func() { Each("a $$b$$", nil, nil) })
}

func TestBlockAndBody(t *testing.T) {
	b := Block("x^2")
	assert.Equal(t, "$$\nx^2\n$$", b)
	assert.Equal(t, "x^2", Body(b))
	assert.True(t, HasFormula("a "+b))
	assert.False(t, HasFormula("a $ b"))
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"单句", "Hello world.", []string{"Hello world."}},
		{"多种标点", "One. Two! Three? Four", []string{"One.", "Two!", "Three?", "Four"}},
		{"换行也是空白", "First line.\nSecond line.", []string{"First line.", "Second line."}},
		{"小数不切分", "Pi is 3.14 roughly.", []string{"Pi is 3.14 roughly."}},
		{"缩写会被切分", "Dr. Smith came.", []string{"Dr.", "Smith came."}},
		{"空白", "   \n ", nil},
		{"首尾空白", "  a. b.  ", []string{"a.", "b."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.in))
		})
	}
}
