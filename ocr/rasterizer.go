package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"ocr-translator/pdf"
)

// PopplerRasterizer 调用 pdftoppm 将 PDF 逐页渲染为 PNG
type PopplerRasterizer struct {
	// Command pdftoppm 可执行文件，默认在 PATH 中查找
	Command string
	TempDir string
}

// NewPopplerRasterizer 创建栅格化器
func NewPopplerRasterizer(command, tempDir string) *PopplerRasterizer {
	if command == "" {
		command = "pdftoppm"
	}
	return &PopplerRasterizer{Command: command, TempDir: tempDir}
}

// Rasterize 实现 Rasterizer
func (r *PopplerRasterizer) Rasterize(ctx context.Context, pdfPath string, dpi int) ([]image.Image, error) {
	pages, err := pdf.PageCount(pdfPath)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(r.TempDir, "pdf2img_*")
	if err != nil {
		return nil, fmt.Errorf("创建临时目录失败: %w", err)
	}
	defer os.RemoveAll(dir)

	images := make([]image.Image, 0, pages)
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := r.renderPage(ctx, pdfPath, dir, page, dpi)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func (r *PopplerRasterizer) renderPage(ctx context.Context, pdfPath, dir string, page, dpi int) (image.Image, error) {
	prefix := filepath.Join(dir, fmt.Sprintf("page_%d", page))
	args := []string{
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-png",
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		pdfPath,
		prefix,
	}

	cmd := exec.CommandContext(ctx, r.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm 渲染第 %d 页失败: %w, output: %s", page, err, stderr.String())
	}

	imgPath := prefix + ".png"
	defer os.Remove(imgPath)

	f, err := os.Open(imgPath)
	if err != nil {
		return nil, fmt.Errorf("读取页面图像失败: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("解码页面图像失败: %w", err)
	}
	return img, nil
}
