package models

import (
	"fmt"
	"path/filepath"
)

const (
	// DefaultChunkSize 下载时每次写入的块大小(8KB)
	DefaultChunkSize = 8 * 1024

	// PDFExtension PDF文件扩展名
	PDFExtension = ".pdf"

	// MaxTitleBytes 文件名中标题部分的最大字节数
	// 加上年份前缀和扩展名后仍低于常见文件系统255字节的文件名上限
	MaxTitleBytes = 200
)

// PaperLink 从列表页提取的候选论文链接
// 只在单个页面的处理过程中存在,不做持久化
type PaperLink struct {
	URL   string `json:"url"`   // 绝对URL
	Title string `json:"title"` // 已清理非法文件名字符的标题
}

// DownloadRecord 一篇已下载论文在文件系统中的位置
//
// 目标路径上的文件是否存在是唯一的持久化状态,同时也是去重依据:
// 路径上已有文件即视为完整的下载结果,不保存校验和。
type DownloadRecord struct {
	Conference Conference
	Year       int
	Title      string
}

// Filename 返回 {year}_{title}.pdf
func (r DownloadRecord) Filename() string {
	return fmt.Sprintf("%d_%s%s", r.Year, r.Title, PDFExtension)
}

// Dir 返回会议目录 downloadDir/conference
func (r DownloadRecord) Dir(downloadDir string) string {
	return filepath.Join(downloadDir, string(r.Conference))
}

// Path 返回完整目标路径 downloadDir/conference/{year}_{title}.pdf
func (r DownloadRecord) Path(downloadDir string) string {
	return filepath.Join(r.Dir(downloadDir), r.Filename())
}
