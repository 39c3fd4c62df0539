package pdf

import (
	"fmt"
	"strings"

	ledongthucpdf "github.com/ledongthuc/pdf"
)

// Info 源 PDF 概况
type Info struct {
	Pages int
	// TextPages 含可提取文本的页数，为 0 说明是纯扫描件
	TextPages int
	Metadata  map[string]string
}

// Title 文档标题，没有时返回空字符串
func (i *Info) Title() string {
	return i.Metadata["title"]
}

// Probe 读取页数、元数据并检查文本层
func Probe(path string) (*Info, error) {
	file, reader, err := ledongthucpdf.Open(path)
	if err != nil {
		if strings.Contains(err.Error(), "stream not present") {
			return nil, fmt.Errorf("PDF文件格式不受支持或已损坏，请确认文件未加密并使用标准PDF格式")
		}
		return nil, fmt.Errorf("打开PDF文件失败: %w", err)
	}
	defer file.Close()

	info := &Info{
		Pages:    reader.NumPage(),
		Metadata: map[string]string{},
	}
	if meta := reader.Trailer().Key("Info"); !meta.IsNull() {
		info.Metadata = extractMetadata(meta)
	}

	for n := 1; n <= info.Pages; n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		if pageHasText(page) {
			info.TextPages++
		}
	}
	return info, nil
}

func pageHasText(page ledongthucpdf.Page) (found bool) {
	// 内容流损坏时 ledongthuc/pdf 会 panic
	defer func() {
		if r := recover(); r != nil {
			found = false
		}
	}()

	for _, text := range page.Content().Text {
		if strings.TrimSpace(text.S) != "" {
			return true
		}
	}
	return false
}

func extractMetadata(info ledongthucpdf.Value) map[string]string {
	metadata := make(map[string]string)
	for key, name := range map[string]string{
		"Title":   "title",
		"Author":  "author",
		"Subject": "subject",
		"Creator": "creator",
	} {
		if v := info.Key(key); !v.IsNull() {
			if text := strings.TrimSpace(v.Text()); text != "" {
				metadata[name] = text
			}
		}
	}
	return metadata
}
