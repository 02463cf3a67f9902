package models

import (
	"fmt"
	"time"
)

// 默认爬取参数
const (
	DefaultStartYear       = 2010
	DefaultLinkDelay       = 1 * time.Second
	DefaultConferenceDelay = 2 * time.Second
	DefaultProbeTimeout    = 10 * time.Second
	DefaultFetchTimeout    = 60 * time.Second
	DefaultDownloadTimeout = 5 * time.Minute
	DefaultWorkers         = 1
	DefaultMaxListingSize  = 32 << 20 // 列表页最大32MB
	MaxWorkers             = 16
)

// CrawlConfig 爬取配置
type CrawlConfig struct {
	StartYear       int           `mapstructure:"start_year" json:"start_year"`             // 起始年份 (默认:2010)
	CurrentYear     int           `mapstructure:"current_year" json:"current_year"`         // 当前年份,0表示使用系统时间
	LinkDelay       time.Duration `mapstructure:"link_delay" json:"link_delay"`             // 同一站点两次下载之间的间隔 (默认:1s)
	ConferenceDelay time.Duration `mapstructure:"conference_delay" json:"conference_delay"` // 会议之间的间隔 (默认:2s)
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout" json:"probe_timeout"`       // HEAD探测超时 (默认:10s)
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout" json:"fetch_timeout"`       // 列表页请求超时 (默认:60s)
	DownloadTimeout time.Duration `mapstructure:"download_timeout" json:"download_timeout"` // 单个PDF下载超时 (默认:5m)
	ChunkSize       int           `mapstructure:"chunk_size" json:"chunk_size"`             // 写盘块大小 (默认:8192)
	Workers         int           `mapstructure:"workers" json:"workers"`                   // 单页内下载并发数 (默认:1)
	VerifyPDF       bool          `mapstructure:"verify_pdf" json:"verify_pdf"`             // 下载后用pdfcpu校验
}

// DefaultCrawlConfig 默认爬取配置
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		StartYear:       DefaultStartYear,
		LinkDelay:       DefaultLinkDelay,
		ConferenceDelay: DefaultConferenceDelay,
		ProbeTimeout:    DefaultProbeTimeout,
		FetchTimeout:    DefaultFetchTimeout,
		DownloadTimeout: DefaultDownloadTimeout,
		ChunkSize:       DefaultChunkSize,
		Workers:         DefaultWorkers,
	}
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.StartYear < 1900 || c.StartYear > 9999 {
		return fmt.Errorf("起始年份无效: %d", c.StartYear)
	}
	if c.CurrentYear != 0 && c.CurrentYear < c.StartYear {
		return fmt.Errorf("当前年份(%d)不能早于起始年份(%d)", c.CurrentYear, c.StartYear)
	}
	if c.LinkDelay < 0 || c.ConferenceDelay < 0 {
		return fmt.Errorf("请求间隔不能为负数")
	}
	if c.ProbeTimeout <= 0 || c.FetchTimeout <= 0 || c.DownloadTimeout <= 0 {
		return fmt.Errorf("超时时间必须大于0")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("块大小必须大于0")
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("并发数必须在1-%d之间", MaxWorkers)
	}
	return nil
}

// ResolveCurrentYear 返回配置的当前年份,未配置时使用给定时间
func (c *CrawlConfig) ResolveCurrentYear(now time.Time) int {
	if c.CurrentYear > 0 {
		return c.CurrentYear
	}
	return now.Year()
}

// DownloadStats 下载统计
type DownloadStats struct {
	Downloaded       int `json:"downloaded"`        // 新下载
	Existing         int `json:"existing"`          // 文件已存在,跳过
	Invalid          int `json:"invalid"`           // 验证未通过
	Failed           int `json:"failed"`            // 下载失败(含文件系统错误)
	FilesystemErrors int `json:"filesystem_errors"` // 其中的文件系统错误
}

// Success 成功数 = 新下载 + 已存在
func (s DownloadStats) Success() int {
	return s.Downloaded + s.Existing
}

// Merge 累加另一份统计
func (s *DownloadStats) Merge(other DownloadStats) {
	s.Downloaded += other.Downloaded
	s.Existing += other.Existing
	s.Invalid += other.Invalid
	s.Failed += other.Failed
	s.FilesystemErrors += other.FilesystemErrors
}

// CrawlResult 单个(会议, 年份)的处理结果
type CrawlResult struct {
	Conference   Conference    `json:"conference"`
	Year         int           `json:"year"`
	ListingURL   string        `json:"listing_url"`
	LinksFound   int           `json:"links_found"`
	SuccessCount int           `json:"success_count"`
	Stats        DownloadStats `json:"stats"`
	Error        string        `json:"error,omitempty"` // 列表页请求失败原因
	Duration     float64       `json:"duration"`        // 秒
}

// NewCrawlResult 创建与目标对应的空结果
func NewCrawlResult(target ConferenceTarget) CrawlResult {
	return CrawlResult{
		Conference: target.Conference,
		Year:       target.Year,
		ListingURL: target.ListingURL,
	}
}
