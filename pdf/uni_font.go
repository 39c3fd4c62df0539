package pdf

import (
	"fmt"

	"github.com/signintech/gopdf"
)

// UniFontHelper 为 gopdf 加载 Unicode 字体
//
// gopdf 没有内置字体，任何文本输出前都必须成功加载一个 TTF。
type UniFontHelper struct {
	pdf        *gopdf.GoPdf
	fontFamily string
	fontLoaded bool
}

// NewUniFontHelper 创建字体助手
func NewUniFontHelper(pdf *gopdf.GoPdf) *UniFontHelper {
	return &UniFontHelper{pdf: pdf}
}

// Load 加载字体文件，path 为空时按语言查找系统字体
func (h *UniFontHelper) Load(path, language string) error {
	if h.fontLoaded {
		return nil
	}

	path = ResolveFont(path, language)
	if path == "" {
		return fmt.Errorf("没有找到可用的 %s 字体", language)
	}

	family := FontFamily(path)
	if err := h.pdf.AddTTFFont(family, path); err != nil {
		return fmt.Errorf("加载字体失败 %s: %w", path, err)
	}

	h.fontFamily = family
	h.fontLoaded = true
	return nil
}

// SetSize 设置字号
func (h *UniFontHelper) SetSize(size float64) error {
	if !h.fontLoaded {
		return fmt.Errorf("字体未加载")
	}
	return h.pdf.SetFont(h.fontFamily, "", size)
}
