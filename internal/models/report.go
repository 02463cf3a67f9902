package models

import (
	"encoding/json"
	"time"
)

// RunSummary 一次完整爬取的汇总
type RunSummary struct {
	// 运行信息
	ID          string     `json:"id"`
	DownloadDir string     `json:"download_dir"`
	StartYear   int        `json:"start_year"`
	CurrentYear int        `json:"current_year"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    float64    `json:"duration"` // 秒

	// 结果
	Results      []CrawlResult `json:"results"`
	TotalSuccess int           `json:"total_success"`
	FailedPages  int           `json:"failed_pages"` // 列表页请求失败的目标数
	Stats        DownloadStats `json:"stats"`

	// 配置快照
	Config CrawlConfig `json:"config"`
}

// NewRunSummary 创建运行汇总
func NewRunSummary(downloadDir string, config CrawlConfig, currentYear int) *RunSummary {
	return &RunSummary{
		ID:          generateID(),
		DownloadDir: downloadDir,
		StartYear:   config.StartYear,
		CurrentYear: currentYear,
		StartedAt:   time.Now(),
		Results:     make([]CrawlResult, 0),
		Config:      config,
	}
}

// Add 合并一个(会议, 年份)结果
func (s *RunSummary) Add(result CrawlResult) {
	s.Results = append(s.Results, result)
	s.TotalSuccess += result.SuccessCount
	s.Stats.Merge(result.Stats)
	if result.Error != "" {
		s.FailedPages++
	}
}

// Complete 标记运行结束
func (s *RunSummary) Complete() {
	now := time.Now()
	s.CompletedAt = &now
	s.Duration = now.Sub(s.StartedAt).Seconds()
}

// Attempted 已尝试的(会议, 年份)数量
func (s *RunSummary) Attempted() int {
	return len(s.Results)
}

// FailedResults 返回列表页请求失败的结果
func (s *RunSummary) FailedResults() []CrawlResult {
	failed := make([]CrawlResult, 0)
	for _, r := range s.Results {
		if r.Error != "" {
			failed = append(failed, r)
		}
	}
	return failed
}

// ToJSON 序列化为JSON
func (s *RunSummary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
