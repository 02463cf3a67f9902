package crawlers

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFVerifier 下载完成后校验文件,返回非nil表示文件不是有效PDF
type PDFVerifier func(path string) error

// PDFCPUVerifier 用pdfcpu解析并校验文件结构
func PDFCPUVerifier(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开PDF失败: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.Validate(f, conf); err != nil {
		return fmt.Errorf("PDF校验失败: %w", err)
	}
	return nil
}
