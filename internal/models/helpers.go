package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateURL 验证列表页/模板展开后的URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议: %s", urlStr)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名: %s", urlStr)
	}
	return nil
}

// OriginOf 返回URL的源(scheme://host[:port]),用于按站点限速
// 无法解析时原样返回小写后的字符串
func OriginOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(parsed.Scheme + "://" + parsed.Host)
}

// generateID 生成运行ID
func generateID() string {
	return uuid.New().String()
}
