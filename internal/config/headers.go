package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	// DefaultHeaderFile 默认头部配置文件
	DefaultHeaderFile = "configs/headers.yaml"

	// MaxHeaderFileSize 头部配置文件大小上限 (64KB)
	MaxHeaderFileSize = 64 * 1024
)

//go:embed headers_template.yaml
var headerTemplate string

// HeaderFileLoader 读取 headers.yaml
type HeaderFileLoader struct {
	path string
	log  zerolog.Logger
}

// NewHeaderFileLoader 创建加载器,path为空时使用默认路径
func NewHeaderFileLoader(path string, logger zerolog.Logger) *HeaderFileLoader {
	if path == "" {
		path = DefaultHeaderFile
	}
	return &HeaderFileLoader{path: path, log: logger}
}

// Path 返回配置文件路径
func (l *HeaderFileLoader) Path() string {
	return l.path
}

// EnsureExists 文件不存在时写入带注释的模板
func (l *HeaderFileLoader) EnsureExists() error {
	if _, err := os.Stat(l.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("检查头部配置文件失败 [%s]: %w", l.path, err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
	}
	if err := os.WriteFile(l.path, []byte(headerTemplate), 0644); err != nil {
		return fmt.Errorf("无法生成头部配置模板 [%s]: %w", l.path, err)
	}

	l.log.Info().Str("path", l.path).Msg("已生成HTTP头部配置模板")
	return nil
}

// Load 读取并解析头部配置
// 文件被其他进程锁定时返回空配置
func (l *HeaderFileLoader) Load() (*models.HeaderConfig, error) {
	if err := l.EnsureExists(); err != nil {
		return nil, err
	}

	info, err := os.Stat(l.path)
	if err != nil {
		return nil, &models.ConfigError{FilePath: l.path, Cause: err}
	}
	if info.Size() > MaxHeaderFileSize {
		return nil, &models.ConfigError{
			FilePath: l.path,
			Cause:    fmt.Errorf("文件过大: %d 字节 (上限 %d 字节)", info.Size(), MaxHeaderFileSize),
		}
	}

	v := viper.New()
	v.SetConfigFile(l.path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			l.log.Warn().Str("path", l.path).Msg("头部配置文件被锁定,仅使用默认头部")
			return &models.HeaderConfig{Headers: make(map[string]string)}, nil
		}
		return nil, &models.ConfigError{FilePath: l.path, Cause: err}
	}

	var cfg models.HeaderConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &models.ConfigError{
			FilePath: l.path,
			Cause:    fmt.Errorf("解析headers字段失败: %w", err),
		}
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}

	return &cfg, nil
}
