package models

import (
	"errors"
	"fmt"
)

// ErrorKind 下载错误类别
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"    // 超时、连接失败、非2xx状态码,可通过重新运行恢复
	KindFilesystem ErrorKind = "filesystem" // 权限不足、磁盘已满等系统性问题
	KindContent    ErrorKind = "content"    // 内容校验失败
)

// DownloadError 下载失败的详细信息
type DownloadError struct {
	Kind ErrorKind
	URL  string
	Path string
	Err  error
}

// Error 实现error接口
func (e *DownloadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("下载失败 [%s] %s -> %s: %v", e.Kind, e.URL, e.Path, e.Err)
	}
	return fmt.Sprintf("下载失败 [%s] %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap 支持errors.Unwrap
func (e *DownloadError) Unwrap() error {
	return e.Err
}

// IsFilesystemError 判断错误链中是否包含文件系统错误
func IsFilesystemError(err error) bool {
	var de *DownloadError
	return errors.As(err, &de) && de.Kind == KindFilesystem
}

// ErrorKindOf 返回错误类别,非DownloadError返回空字符串
func ErrorKindOf(err error) ErrorKind {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
