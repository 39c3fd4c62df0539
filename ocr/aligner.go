package ocr

import (
	"sort"
	"strings"

	"github.com/tidwall/rtree"

	"ocr-translator/formula"
	"ocr-translator/geometry"
)

// element 参与对齐的片段，texts 在前 formulas 在后
type element struct {
	line string
	cx   float64
	cy   float64
}

// Align 将片段按中心点归入版面区域，组装为段落
//
// 区域内按中心点 Y 升序稳定排序，Y 相同时保持检测器输出顺序。
// 段落顺序即版面区域的输出顺序，不做全局重排。
func Align(regions []LayoutRegion, texts []TextFragment, formulas []FormulaFragment) []Paragraph {
	elements := make([]element, 0, len(texts)+len(formulas))
	for _, t := range texts {
		cx, cy := geometry.CenterOf(t.Box)
		elements = append(elements, element{line: t.Text, cx: cx, cy: cy})
	}
	for _, f := range formulas {
		cx, cy := geometry.CenterOf(f.Box)
		elements = append(elements, element{line: formula.Block(f.Latex), cx: cx, cy: cy})
	}

	var index rtree.RTreeG[int]
	for i, e := range elements {
		pt := [2]float64{e.cx, e.cy}
		index.Insert(pt, pt, i)
	}

	paragraphs := make([]Paragraph, 0, len(regions))
	for _, region := range regions {
		if !groupedLabels[region.Label] {
			continue
		}

		hits := collect(&index, elements, region.Box)
		if len(hits) == 0 {
			continue
		}

		sort.SliceStable(hits, func(i, j int) bool {
			return elements[hits[i]].cy < elements[hits[j]].cy
		})

		lines := make([]string, len(hits))
		for i, idx := range hits {
			lines[i] = elements[idx].line
		}

		paragraphs = append(paragraphs, Paragraph{
			Type:         region.Label,
			Box:          region.Box,
			Content:      strings.Join(lines, "\n\n"),
			ElementCount: len(hits),
		})
	}
	return paragraphs
}

// collect 返回中心点落在 box 内的元素下标，按输出顺序排列
func collect(index *rtree.RTreeG[int], elements []element, box geometry.BoundingBox) []int {
	var hits []int
	index.Search([2]float64{box.X1, box.Y1}, [2]float64{box.X2, box.Y2},
		func(_, _ [2]float64, idx int) bool {
			e := elements[idx]
			if geometry.PointInBox(e.cx, e.cy, box) {
				hits = append(hits, idx)
			}
			return true
		})
	sort.Ints(hits)
	return hits
}
