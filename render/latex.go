package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const latexTemplate = `\documentclass[border=2pt]{standalone}
\usepackage{amsmath}
\usepackage{amssymb}
\begin{document}
$%s$
\end{document}
`

// LatexRenderer 调用 pdflatex 与 pdftoppm 将公式渲染为 PNG
type LatexRenderer struct {
	Pdflatex string
	Pdftoppm string
	Timeout  time.Duration
	TempDir  string
	DPI      int
}

// NewLatexRenderer 创建公式渲染器，命令为空时在 PATH 中查找
func NewLatexRenderer(pdflatex, pdftoppm string, timeout time.Duration) *LatexRenderer {
	if pdflatex == "" {
		pdflatex = "pdflatex"
	}
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LatexRenderer{Pdflatex: pdflatex, Pdftoppm: pdftoppm, Timeout: timeout, DPI: 300}
}

// Available 两个外部命令是否都可用
func (r *LatexRenderer) Available() bool {
	if _, err := exec.LookPath(r.Pdflatex); err != nil {
		return false
	}
	_, err := exec.LookPath(r.Pdftoppm)
	return err == nil
}

// Render 实现 FormulaRenderer
func (r *LatexRenderer) Render(ctx context.Context, latex string) ([]byte, error) {
	dir, err := os.MkdirTemp(r.TempDir, "formula_*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	texPath := filepath.Join(dir, "formula.tex")
	if err := os.WriteFile(texPath, []byte(fmt.Sprintf(latexTemplate, latex)), 0644); err != nil {
		return nil, err
	}

	if err := r.run(ctx, r.Pdflatex,
		"-interaction=nonstopmode", "-halt-on-error",
		"-output-directory", dir, texPath); err != nil {
		return nil, fmt.Errorf("pdflatex 编译失败: %w", err)
	}

	dpi := r.DPI
	if dpi <= 0 {
		dpi = 300
	}
	prefix := filepath.Join(dir, "formula")
	if err := r.run(ctx, r.Pdftoppm,
		"-png", "-r", fmt.Sprint(dpi), "-singlefile",
		prefix+".pdf", prefix); err != nil {
		return nil, fmt.Errorf("pdftoppm 转换失败: %w", err)
	}

	return os.ReadFile(prefix + ".png")
}

func (r *LatexRenderer) run(ctx context.Context, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		tail := out.String()
		if len(tail) > 500 {
			tail = tail[len(tail)-500:]
		}
		return fmt.Errorf("%w, output: %s", err, tail)
	}
	return nil
}
