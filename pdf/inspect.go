package pdf

import (
	"fmt"
	"strings"

	dslipakpdf "github.com/dslipak/pdf"
	ledongthucpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Validate 校验 PDF 文件结构
//
// pdfcpu 采用宽松模式校验；pdfcpu 无法解析时再尝试 ledongthuc/pdf，
// 两者都失败才认为文件无效。
func Validate(path string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	errCPU := api.ValidateFile(path, conf)
	if errCPU == nil {
		return nil
	}

	file, _, err := ledongthucpdf.Open(path)
	if err != nil {
		if strings.Contains(err.Error(), "stream not present") {
			return fmt.Errorf("PDF文件格式不受支持或已损坏，请确认文件未加密并使用标准PDF格式")
		}
		return fmt.Errorf("无效的 PDF 文件: %w", errCPU)
	}
	file.Close()
	return nil
}

// PageCount 获取 PDF 页数，依次尝试 pdfcpu、ledongthuc/pdf、dslipak/pdf
func PageCount(path string) (int, error) {
	n, errCPU := api.PageCountFile(path)
	if errCPU == nil && n > 0 {
		return n, nil
	}

	n, errLed := ledongthucPageCount(path)
	if errLed == nil && n > 0 {
		return n, nil
	}

	n, errDsl := dslipakPageCount(path)
	if errDsl == nil && n > 0 {
		return n, nil
	}

	return 0, fmt.Errorf("无法读取 PDF 页数: pdfcpu(%v), ledongthuc/pdf(%v), dslipak/pdf(%v)", errCPU, errLed, errDsl)
}

func ledongthucPageCount(path string) (int, error) {
	file, reader, err := ledongthucpdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()
	return reader.NumPage(), nil
}

func dslipakPageCount(path string) (n int, err error) {
	// dslipak/pdf 在遇到损坏的交叉引用表时可能 panic
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("dslipak/pdf: %v", r)
		}
	}()

	reader, err := dslipakpdf.Open(path)
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}
