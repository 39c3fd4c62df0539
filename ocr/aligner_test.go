package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocr-translator/geometry"
)

func box(x1, y1, x2, y2 float64) geometry.BoundingBox {
	return geometry.BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func TestAlignFormulaAboveText(t *testing.T) {
	regions := []LayoutRegion{{Label: LabelText, Box: box(0, 0, 200, 100)}}
	texts := []TextFragment{{Box: box(10, 45, 100, 55), Text: "below"}}
	formulas := []FormulaFragment{{Box: box(10, 5, 100, 15), Latex: "x^2"}}

	paragraphs := Align(regions, texts, formulas)
	require.Len(t, paragraphs, 1)
	assert.Equal(t, "$$\nx^2\n$$\n\nbelow", paragraphs[0].Content)
	assert.Equal(t, 2, paragraphs[0].ElementCount)
	assert.Equal(t, LabelText, paragraphs[0].Type)
	assert.Equal(t, regions[0].Box, paragraphs[0].Box)
}

func TestAlignNoFragments(t *testing.T) {
	regions := []LayoutRegion{
		{Label: LabelText, Box: box(0, 0, 100, 100)},
		{Label: LabelFormula, Box: box(0, 200, 100, 300)},
	}
	texts := []TextFragment{{Box: box(500, 500, 600, 520), Text: "outside"}}

	assert.Empty(t, Align(regions, texts, nil))
	assert.Empty(t, Align(regions, nil, nil))
	assert.Empty(t, Align(nil, texts, nil))
}

func TestAlignSkipsUngroupedLabels(t *testing.T) {
	regions := []LayoutRegion{
		{Label: "figure", Box: box(0, 0, 100, 100)},
		{Label: "table", Box: box(0, 0, 100, 100)},
		{Label: LabelParagraphTitle, Box: box(0, 0, 100, 100)},
	}
	texts := []TextFragment{{Box: box(10, 10, 20, 20), Text: "Title"}}

	paragraphs := Align(regions, texts, nil)
	require.Len(t, paragraphs, 1)
	assert.Equal(t, LabelParagraphTitle, paragraphs[0].Type)
	assert.Equal(t, "Title", paragraphs[0].Content)
}

func TestAlignKeepsRegionEmissionOrder(t *testing.T) {
	regions := []LayoutRegion{
		{Label: LabelText, Box: box(0, 500, 100, 600)},
		{Label: LabelText, Box: box(0, 0, 100, 100)},
	}
	texts := []TextFragment{
		{Box: box(10, 10, 20, 20), Text: "top"},
		{Box: box(10, 510, 20, 520), Text: "bottom"},
	}

	paragraphs := Align(regions, texts, nil)
	require.Len(t, paragraphs, 2)
	assert.Equal(t, "bottom", paragraphs[0].Content)
	assert.Equal(t, "top", paragraphs[1].Content)
}

func TestAlignTiesKeepDetectorOrder(t *testing.T) {
	regions := []LayoutRegion{{Label: LabelText, Box: box(0, 0, 300, 100)}}
	texts := []TextFragment{
		{Box: box(200, 10, 250, 20), Text: "first"},
		{Box: box(10, 10, 60, 20), Text: "second"},
	}
	formulas := []FormulaFragment{{Box: box(100, 10, 150, 20), Latex: "y"}}

	paragraphs := Align(regions, texts, formulas)
	require.Len(t, paragraphs, 1)
	assert.Equal(t, "first\n\nsecond\n\n$$\ny\n$$", paragraphs[0].Content)
}

func TestAlignCentroidOnEdgeIsInside(t *testing.T) {
	regions := []LayoutRegion{{Label: LabelText, Box: box(0, 0, 100, 100)}}
	// 中心点 (100, 50) 恰在右边界
	texts := []TextFragment{{Box: box(90, 40, 110, 60), Text: "edge"}}

	paragraphs := Align(regions, texts, nil)
	require.Len(t, paragraphs, 1)
	assert.Equal(t, 1, paragraphs[0].ElementCount)
}

func TestAlignFragmentInOverlappingRegions(t *testing.T) {
	regions := []LayoutRegion{
		{Label: LabelText, Box: box(0, 0, 100, 100)},
		{Label: LabelText, Box: box(50, 0, 150, 100)},
	}
	texts := []TextFragment{{Box: box(70, 40, 80, 50), Text: "shared"}}

	paragraphs := Align(regions, texts, nil)
	require.Len(t, paragraphs, 2)
	assert.Equal(t, "shared", paragraphs[0].Content)
	assert.Equal(t, "shared", paragraphs[1].Content)
}

func TestAlignMatchesLinearScan(t *testing.T) {
	regions := []LayoutRegion{
		{Label: LabelText, Box: box(0, 0, 400, 300)},
		{Label: LabelFormula, Box: box(0, 300, 400, 400)},
		{Label: LabelParagraphTitle, Box: box(0, 400, 400, 450)},
	}
	var texts []TextFragment
	for i := 0; i < 40; i++ {
		y := float64((i * 37) % 450)
		texts = append(texts, TextFragment{Box: box(10, y, 50, y+8), Text: string(rune('a' + i%26))})
	}
	formulas := []FormulaFragment{
		{Box: box(10, 320, 300, 340), Latex: "a+b"},
		{Box: box(10, 100, 300, 120), Latex: "c"},
	}

	got := Align(regions, texts, formulas)
	want := linearAlign(regions, texts, formulas)
	assert.Equal(t, want, got)
}

// linearAlign 不使用空间索引的逐一扫描版本
func linearAlign(regions []LayoutRegion, texts []TextFragment, formulas []FormulaFragment) []Paragraph {
	var out []Paragraph
	for _, r := range regions {
		if !groupedLabels[r.Label] {
			continue
		}
		var subset []TextFragment
		var fsubset []FormulaFragment
		for _, t := range texts {
			cx, cy := geometry.CenterOf(t.Box)
			if geometry.PointInBox(cx, cy, r.Box) {
				subset = append(subset, t)
			}
		}
		for _, f := range formulas {
			cx, cy := geometry.CenterOf(f.Box)
			if geometry.PointInBox(cx, cy, r.Box) {
				fsubset = append(fsubset, f)
			}
		}
		p := Align([]LayoutRegion{r}, subset, fsubset)
		out = append(out, p...)
	}
	if out == nil {
		return []Paragraph{}
	}
	return out
}
