package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
)

// PaperDownloader 处理单个论文链接
type PaperDownloader interface {
	Fetch(ctx context.Context, link models.PaperLink, conference models.Conference, year int) (DownloadStatus, error)
}

// ProcessorOptions 处理器参数
type ProcessorOptions struct {
	FetchTimeout time.Duration // 列表页请求超时
	Workers      int           // 单页下载并发数,1表示严格顺序
	MaxBodySize  int           // 列表页最大字节数,超出部分被截断
}

// Processor 处理单个(会议, 年份): 获取列表页、提取链接、逐个下载
type Processor struct {
	client     *http.Client
	extractor  *LinkExtractor
	downloader PaperDownloader
	limiter    *OriginLimiter
	headers    models.HeaderProvider
	opts       ProcessorOptions
	log        zerolog.Logger
}

// NewProcessor 创建处理器
func NewProcessor(client *http.Client, extractor *LinkExtractor, downloader PaperDownloader, limiter *OriginLimiter, headers models.HeaderProvider, opts ProcessorOptions, logger zerolog.Logger) *Processor {
	if client == nil {
		client = http.DefaultClient
	}
	if extractor == nil {
		extractor = NewLinkExtractor(nil)
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = models.DefaultFetchTimeout
	}
	if opts.Workers < 1 {
		opts.Workers = models.DefaultWorkers
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = models.DefaultMaxListingSize
	}
	return &Processor{
		client:     client,
		extractor:  extractor,
		downloader: downloader,
		limiter:    limiter,
		headers:    headers,
		opts:       opts,
		log:        logger,
	}
}

// listingPage 列表页响应
type listingPage struct {
	body     string
	finalURL string
}

// Process 处理一个目标,列表页失败时返回成功数0并填写Error
func (p *Processor) Process(ctx context.Context, target models.ConferenceTarget) models.CrawlResult {
	startTime := time.Now()
	result := models.NewCrawlResult(target)
	defer func() {
		result.Duration = time.Since(startTime).Seconds()
	}()

	logger := p.log.With().
		Str("conference", string(target.Conference)).
		Int("year", target.Year).
		Logger()

	logger.Info().Str("url", target.ListingURL).Msgf("开始处理 %s", target)

	page, err := p.fetchListing(ctx, target.ListingURL)
	if err != nil {
		logger.Error().Err(err).Str("url", target.ListingURL).Msg("获取列表页失败")
		result.Error = err.Error()
		return result
	}

	links := p.extractor.Extract(page.body, page.finalURL)
	result.LinksFound = len(links)
	logger.Info().Int("links", len(links)).Msg("提取到候选论文链接")

	result.Stats = p.downloadAll(ctx, logger, links, target)
	result.SuccessCount = result.Stats.Success()

	logger.Info().
		Int("downloaded", result.Stats.Downloaded).
		Int("existing", result.Stats.Existing).
		Int("invalid", result.Stats.Invalid).
		Int("failed", result.Stats.Failed).
		Msgf("成功下载 %d 篇论文: %s", result.SuccessCount, target)

	return result
}

// downloadAll 按配置的并发数下载所有链接
// 每个链接下载前等待同源限速器
func (p *Processor) downloadAll(ctx context.Context, logger zerolog.Logger, links []models.PaperLink, target models.ConferenceTarget) models.DownloadStats {
	var (
		mu    sync.Mutex
		stats models.DownloadStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for _, link := range links {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := p.limiter.Wait(gctx, link.URL); err != nil {
				return err
			}
			status, err := p.downloader.Fetch(gctx, link, target.Conference, target.Year)

			mu.Lock()
			defer mu.Unlock()
			switch status {
			case StatusDownloaded:
				stats.Downloaded++
			case StatusExisting:
				stats.Existing++
			case StatusInvalid:
				stats.Invalid++
			default:
				stats.Failed++
				if models.IsFilesystemError(err) {
					stats.FilesystemErrors++
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("下载中断")
	}
	return stats
}

// fetchListing 用colly获取列表页
// 非2xx状态码、超时、网络错误都返回error
func (p *Processor) fetchListing(ctx context.Context, listingURL string) (*listingPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(p.opts.MaxBodySize),
	)

	// SetRequestTimeout 会修改client,这里使用副本
	client := *p.client
	c.SetClient(&client)
	c.SetRequestTimeout(p.opts.FetchTimeout)

	var (
		page    *listingPage
		pageErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if p.headers == nil {
			return
		}
		headers, err := p.headers.GetHeaders()
		if err != nil {
			p.log.Warn().Err(err).Msg("获取HTTP头部失败")
			return
		}
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	})

	// colly默认把203及以上都当作错误,状态码在这里自行判断
	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode > 299 {
			pageErr = fmt.Errorf("HTTP %d", r.StatusCode)
			return
		}
		if len(r.Body) >= p.opts.MaxBodySize {
			p.log.Warn().
				Str("url", listingURL).
				Int("max_body_size", p.opts.MaxBodySize).
				Msg("列表页超过大小上限,内容已被截断")
		}
		body, err := decodeBody(r.Headers.Get("Content-Encoding"), r.Body)
		if err != nil {
			pageErr = err
			return
		}
		page = &listingPage{
			body:     toUTF8(body, r.Headers.Get("Content-Type")),
			finalURL: r.Request.URL.String(),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			pageErr = fmt.Errorf("HTTP %d: %w", r.StatusCode, err)
			return
		}
		pageErr = err
	})

	visitErr := c.Visit(listingURL)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pageErr != nil {
		return nil, pageErr
	}
	if visitErr != nil {
		return nil, fmt.Errorf("访问列表页失败: %w", visitErr)
	}
	if page == nil {
		return nil, fmt.Errorf("列表页无响应: %s", listingURL)
	}
	return page, nil
}

// toUTF8 按<meta charset>或BOM把页面转为UTF-8
// Content-Type里声明了charset时colly已经完成转换
func toUTF8(body []byte, contentType string) string {
	if strings.Contains(strings.ToLower(contentType), "charset") {
		return string(body)
	}
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if enc == nil || name == "utf-8" {
		return string(body)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}
