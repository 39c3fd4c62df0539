package geometry

import (
	"encoding/json"
	"image"
	"math"
)

// PolygonToBBox 将检测器输出的几何信息归一化为矩形框
//
// 支持两种形式：
//   - 4 个数字的扁平框 [x1, y1, x2, y2]
//   - 至少 4 个 (x, y) 点组成的多边形
//
// 其他任何形状（nil、空、3 个点、标量、非数字）返回 false，调用方应丢弃该片段。
func PolygonToBBox(raw interface{}) (BoundingBox, bool) {
	switch v := raw.(type) {
	case nil:
		return BoundingBox{}, false
	case BoundingBox:
		return v, true
	case []float64:
		if len(v) == 4 {
			return flatBox(v)
		}
		return BoundingBox{}, false
	case [4]float64:
		return flatBox(v[:])
	case []int:
		if len(v) == 4 {
			return flatBox([]float64{float64(v[0]), float64(v[1]), float64(v[2]), float64(v[3])})
		}
		return BoundingBox{}, false
	case [][]float64:
		pts := make([][2]float64, 0, len(v))
		for _, p := range v {
			if len(p) < 2 {
				return BoundingBox{}, false
			}
			pts = append(pts, [2]float64{p[0], p[1]})
		}
		return polygonBox(pts)
	case [][2]float64:
		return polygonBox(v)
	case []image.Point:
		pts := make([][2]float64, 0, len(v))
		for _, p := range v {
			pts = append(pts, [2]float64{float64(p.X), float64(p.Y)})
		}
		return polygonBox(pts)
	case []interface{}:
		return genericBox(v)
	default:
		return BoundingBox{}, false
	}
}

// genericBox 处理 JSON 解码得到的 []interface{}
func genericBox(v []interface{}) (BoundingBox, bool) {
	if len(v) == 0 {
		return BoundingBox{}, false
	}

	// 扁平框：恰好 4 个数字
	if len(v) == 4 {
		nums := make([]float64, 0, 4)
		for _, item := range v {
			n, ok := toFloat(item)
			if !ok {
				break
			}
			nums = append(nums, n)
		}
		if len(nums) == 4 {
			return flatBox(nums)
		}
	}

	// 多边形：第一个元素必须是序列
	if _, isSeq := v[0].([]interface{}); !isSeq {
		if _, isFloats := v[0].([]float64); !isFloats {
			return BoundingBox{}, false
		}
	}

	pts := make([][2]float64, 0, len(v))
	for _, item := range v {
		var pair []float64
		switch p := item.(type) {
		case []float64:
			pair = p
		case []interface{}:
			for _, c := range p {
				n, ok := toFloat(c)
				if !ok {
					return BoundingBox{}, false
				}
				pair = append(pair, n)
			}
		default:
			return BoundingBox{}, false
		}
		if len(pair) < 2 {
			return BoundingBox{}, false
		}
		pts = append(pts, [2]float64{pair[0], pair[1]})
	}
	return polygonBox(pts)
}

func flatBox(v []float64) (BoundingBox, bool) {
	for _, n := range v {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return BoundingBox{}, false
		}
	}
	return NewBoundingBox(v[0], v[1], v[2], v[3]), true
}

// polygonBox 多边形的最小/最大投影
func polygonBox(pts [][2]float64) (BoundingBox, bool) {
	if len(pts) < 4 {
		return BoundingBox{}, false
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return BoundingBox{}, false
		}
		minX = math.Min(minX, p[0])
		minY = math.Min(minY, p[1])
		maxX = math.Max(maxX, p[0])
		maxY = math.Max(maxY, p[1])
	}
	return BoundingBox{X1: minX, Y1: minY, X2: maxX, Y2: maxY}, true
}

// toFloat 将 JSON 数字（及常见数值类型）转换为 float64
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// ToFloat 导出的数字转换，供适配器解析检测结果使用
func ToFloat(v interface{}) (float64, bool) {
	return toFloat(v)
}
