package crawlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
	"github.com/rs/zerolog"
)

// LinkValidator 通过HEAD请求确认链接指向PDF
type LinkValidator struct {
	client  *http.Client
	headers models.HeaderProvider
	timeout time.Duration
	log     zerolog.Logger
}

// NewLinkValidator 创建验证器,timeout<=0 时使用默认的10秒
func NewLinkValidator(client *http.Client, headers models.HeaderProvider, timeout time.Duration, logger zerolog.Logger) *LinkValidator {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = models.DefaultProbeTimeout
	}
	return &LinkValidator{
		client:  client,
		headers: headers,
		timeout: timeout,
		log:     logger,
	}
}

// Validate 状态码为2xx,且Content-Type包含pdf或URL路径以.pdf结尾时返回true
// 任何错误都视为验证失败
func (v *LinkValidator) Validate(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		v.log.Debug().Err(err).Str("url", rawURL).Msg("构造HEAD请求失败")
		return false
	}
	applyHeaders(req, v.headers, v.log)

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Debug().Err(err).Str("url", rawURL).Msg("HEAD请求失败")
		return false
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.log.Debug().Int("status", resp.StatusCode).Str("url", rawURL).Msg("HEAD状态码非2xx")
		return false
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "pdf") || hasPDFPath(rawURL) {
		return true
	}

	v.log.Debug().Str("content_type", contentType).Str("url", rawURL).Msg("链接不是PDF")
	return false
}

// hasPDFPath URL路径(不含查询串)是否以.pdf结尾
func hasPDFPath(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.HasSuffix(strings.ToLower(rawURL), models.PDFExtension)
	}
	return strings.HasSuffix(strings.ToLower(u.Path), models.PDFExtension)
}

// applyHeaders 把头部提供者的头部写入请求
// 获取失败只记录警告,请求照常发出
func applyHeaders(req *http.Request, provider models.HeaderProvider, logger zerolog.Logger) {
	if provider == nil {
		return
	}
	headers, err := provider.GetHeaders()
	if err != nil {
		logger.Warn().Err(err).Msg("获取HTTP头部失败")
		return
	}
	for name, values := range headers {
		if len(values) > 0 {
			req.Header.Set(name, values[0])
		}
	}
}
