package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/config"
	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
	"github.com/RecoveryAshes/SecPaperCrawl/internal/utils"
	"github.com/rs/zerolog"
)

const (
	// DefaultUserAgent 浏览器User-Agent,部分会议站点会拒绝非浏览器请求
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"

	// DefaultAccept 默认Accept
	DefaultAccept = "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8"
)

// HeaderManager 合并默认、配置文件和命令行三层HTTP头部
// 实现 models.HeaderProvider
type HeaderManager struct {
	defaults http.Header
	cli      http.Header

	loader    *config.HeaderFileLoader
	validator *utils.HeaderValidator
	redactor  *utils.HeaderRedactor
	log       zerolog.Logger

	once    sync.Once
	merged  http.Header
	loadErr error
}

// NewHeaderManager 创建头部管理器
// headerFile为空时使用 configs/headers.yaml;命令行头部格式错误时返回错误
func NewHeaderManager(headerFile string, cliHeaders []string, logger zerolog.Logger) (*HeaderManager, error) {
	cli := make(http.Header)
	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		cli = parsed
	}

	return &HeaderManager{
		defaults:  defaultHeaders(),
		cli:       cli,
		loader:    config.NewHeaderFileLoader(headerFile, logger),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
		log:       logger,
	}, nil
}

// defaultHeaders 不设置Accept-Encoding,交给Transport处理gzip
func defaultHeaders() http.Header {
	return http.Header{
		"User-Agent": []string{DefaultUserAgent},
		"Accept":     []string{DefaultAccept},
	}
}

// Load 读取配置文件并验证合并结果,只执行一次
func (hm *HeaderManager) Load() error {
	hm.once.Do(func() {
		hm.merged, hm.loadErr = hm.load()
	})
	return hm.loadErr
}

func (hm *HeaderManager) load() (http.Header, error) {
	fileConfig, err := hm.loader.Load()
	if err != nil {
		return nil, err
	}

	fromFile := make(http.Header, len(fileConfig.Headers))
	for name, value := range fileConfig.Headers {
		fromFile.Set(name, value)
	}

	for _, layer := range []struct {
		name    string
		headers http.Header
	}{
		{"配置文件", fromFile},
		{"命令行", hm.cli},
	} {
		if err := hm.validator.Validate(layer.headers); err != nil {
			hm.log.Error().Err(err).Str("source", layer.name).Msg("HTTP头部验证失败")
			return nil, err
		}
	}

	merged := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, fromFile, hm.cli} {
		for name, values := range layer {
			merged[name] = values
		}
	}

	hm.log.Debug().Str("headers", hm.redactor.RedactToString(merged)).Msg("HTTP头部已加载")
	return merged, nil
}

// GetHeaders 实现 models.HeaderProvider,返回合并后头部的副本
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.Load(); err != nil {
		return nil, err
	}
	return hm.merged.Clone(), nil
}

// SafeHeaders 脱敏后的合并头部,用于日志和 --validate-config 输出
func (hm *HeaderManager) SafeHeaders() (map[string]string, error) {
	if err := hm.Load(); err != nil {
		return nil, err
	}
	return hm.redactor.Redact(hm.merged), nil
}

// HeaderFile 头部配置文件路径
func (hm *HeaderManager) HeaderFile() string {
	return hm.loader.Path()
}
