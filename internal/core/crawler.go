package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/crawlers"
	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
	"github.com/RecoveryAshes/SecPaperCrawl/internal/utils"
	"github.com/rs/zerolog"
)

// TargetProcessor 处理单个(会议, 年份)目标
type TargetProcessor interface {
	Process(ctx context.Context, target models.ConferenceTarget) models.CrawlResult
}

// Crawler 遍历所有会议和年份的协调器
type Crawler struct {
	config      models.CrawlConfig
	templates   []crawlers.ConferenceTemplate
	processor   TargetProcessor
	downloadDir string
	reporter    *utils.Reporter
	log         zerolog.Logger

	now      func() time.Time
	progress io.Writer
}

// Option 可选参数
type Option func(*Crawler)

// WithClock 指定时钟,用于确定当前年份
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) { c.now = now }
}

// WithProgressWriter 进度条输出位置,nil表示不显示
func WithProgressWriter(w io.Writer) Option {
	return func(c *Crawler) { c.progress = w }
}

// WithReporter 运行结束后写入JSON报告
func WithReporter(r *utils.Reporter) Option {
	return func(c *Crawler) { c.reporter = r }
}

// NewCrawler 创建协调器
func NewCrawler(config models.CrawlConfig, templates []crawlers.ConferenceTemplate, processor TargetProcessor, downloadDir string, logger zerolog.Logger, opts ...Option) *Crawler {
	c := &Crawler{
		config:      config,
		templates:   templates,
		processor:   processor,
		downloadDir: downloadDir,
		log:         logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentYear 本次运行的截止年份
func (c *Crawler) CurrentYear() int {
	return c.config.ResolveCurrentYear(c.now())
}

// Plan 生成本次运行的全部目标,不做任何I/O
func (c *Crawler) Plan() []crawlers.ConferencePlan {
	return crawlers.GenerateTargets(c.templates, c.config.StartYear, c.CurrentYear())
}

// Run 执行完整的爬取
//
// 执行流程:
//  1. 创建下载目录和所有会议目录(失败则终止)
//  2. 按会议配置顺序、年份升序依次处理每个目标,每个目标只处理一次
//  3. 会议之间等待 conference_delay
//  4. 写入运行报告
//
// ctx被取消时立即停止,返回已完成部分的汇总和ctx.Err()。
func (c *Crawler) Run(ctx context.Context) (*models.RunSummary, error) {
	currentYear := c.CurrentYear()
	summary := models.NewRunSummary(c.downloadDir, c.config, currentYear)

	c.log.Info().
		Str("run_id", summary.ID).
		Str("download_dir", c.downloadDir).
		Int("start_year", c.config.StartYear).
		Int("current_year", currentYear).
		Int("conferences", len(c.templates)).
		Msg("开始爬取会议论文")

	if err := c.setupOutputDirectories(); err != nil {
		return summary, fmt.Errorf("创建下载目录失败: %w", err)
	}

	plans := crawlers.GenerateTargets(c.templates, c.config.StartYear, currentYear)
	bar := utils.NewProgressBar(crawlers.CountTargets(plans), "爬取会议", c.progress)

	runErr := c.runPlans(ctx, plans, summary, func() { bar.Add(1) })
	bar.Finish()

	summary.Complete()
	c.logSummary(summary)

	if c.reporter != nil {
		if err := c.reporter.WriteSummary(summary); err != nil {
			c.log.Error().Err(err).Msg("写入运行报告失败")
		} else {
			c.log.Info().Str("dir", c.reporter.Dir()).Msg("运行报告已生成")
		}
	}

	return summary, runErr
}

// runPlans 顺序处理所有目标
func (c *Crawler) runPlans(ctx context.Context, plans []crawlers.ConferencePlan, summary *models.RunSummary, step func()) error {
	for i, plan := range plans {
		if i > 0 && len(plans[i-1].Targets) > 0 {
			if err := sleepContext(ctx, c.config.ConferenceDelay); err != nil {
				return err
			}
		}

		for _, target := range plan.Targets {
			if err := ctx.Err(); err != nil {
				return err
			}
			if target.Year > summary.CurrentYear {
				break
			}

			result := c.processor.Process(ctx, target)
			summary.Add(result)
			step()

			c.log.Debug().
				Int("done", summary.Attempted()).
				Int("total_success", summary.TotalSuccess).
				Msgf("%s 处理完成", target)
		}
	}
	return ctx.Err()
}

// setupOutputDirectories 创建下载目录和每个会议的子目录
func (c *Crawler) setupOutputDirectories() error {
	if err := os.MkdirAll(c.downloadDir, 0755); err != nil {
		return err
	}
	for _, tpl := range c.templates {
		record := models.DownloadRecord{Conference: tpl.Conference}
		if err := os.MkdirAll(record.Dir(c.downloadDir), 0755); err != nil {
			return err
		}
	}
	return nil
}

// logSummary 输出运行统计
func (c *Crawler) logSummary(summary *models.RunSummary) {
	event := c.log.Info()
	if summary.Stats.FilesystemErrors > 0 {
		event = c.log.Error()
	}
	event.
		Int("targets", summary.Attempted()).
		Int("success", summary.TotalSuccess).
		Int("downloaded", summary.Stats.Downloaded).
		Int("existing", summary.Stats.Existing).
		Int("invalid", summary.Stats.Invalid).
		Int("failed", summary.Stats.Failed).
		Int("filesystem_errors", summary.Stats.FilesystemErrors).
		Int("failed_pages", summary.FailedPages).
		Float64("duration", summary.Duration).
		Msg("爬取完成")
}

// sleepContext 等待d或ctx结束
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BuildCrawler 根据配置组装完整的爬取流水线
// 所有组件共享同一个http.Client,超时由每个请求的context控制
func BuildCrawler(cfg *Config, headers models.HeaderProvider, logger zerolog.Logger, opts ...Option) *Crawler {
	client := &http.Client{
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}

	crawl := cfg.Crawl
	validator := crawlers.NewLinkValidator(client, headers, crawl.ProbeTimeout, logger)

	dlOpts := crawlers.DownloaderOptions{
		DownloadDir: cfg.Output.DownloadDir,
		ChunkSize:   crawl.ChunkSize,
		Timeout:     crawl.DownloadTimeout,
	}
	if crawl.VerifyPDF {
		dlOpts.Verifier = crawlers.PDFCPUVerifier
	}
	downloader := crawlers.NewDownloader(client, validator, headers, dlOpts, logger)

	processor := crawlers.NewProcessor(
		client,
		crawlers.NewLinkExtractor(crawlers.IsPDFHref),
		downloader,
		crawlers.NewOriginLimiter(crawl.LinkDelay),
		headers,
		crawlers.ProcessorOptions{
			FetchTimeout: crawl.FetchTimeout,
			Workers:      crawl.Workers,
		},
		logger,
	)

	opts = append([]Option{WithReporter(utils.NewReporter(cfg.ReportDir()))}, opts...)
	return NewCrawler(crawl, cfg.Templates(), processor, cfg.Output.DownloadDir, logger, opts...)
}
