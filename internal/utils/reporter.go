package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
	"github.com/schollz/progressbar/v3"
)

const (
	// SummaryReportFile 运行汇总报告
	SummaryReportFile = "crawl_report.json"

	// FailedTargetsFile 列表页请求失败的目标
	FailedTargetsFile = "failed_targets.json"
)

// Reporter 把运行汇总写成JSON报告
type Reporter struct {
	reportDir string
}

// NewReporter 创建报告生成器
func NewReporter(reportDir string) *Reporter {
	return &Reporter{reportDir: reportDir}
}

// Dir 报告目录
func (r *Reporter) Dir() string {
	return r.reportDir
}

// WriteSummary 写入 crawl_report.json 和 failed_targets.json
func (r *Reporter) WriteSummary(summary *models.RunSummary) error {
	if err := os.MkdirAll(r.reportDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	data, err := summary.ToJSON()
	if err != nil {
		return fmt.Errorf("序列化运行汇总失败: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.reportDir, SummaryReportFile), data, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	return r.writeJSON(FailedTargetsFile, summary.FailedResults())
}

func (r *Reporter) writeJSON(filename string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.reportDir, filename), data, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}
	return nil
}

// NewProgressBar 创建进度条,w为nil时不输出
func NewProgressBar(max int, description string, w io.Writer) *progressbar.ProgressBar {
	if w == nil {
		w = io.Discard
	}
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
