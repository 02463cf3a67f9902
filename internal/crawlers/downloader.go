package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"
)

// DownloadStatus 单个链接的下载结果
type DownloadStatus int

const (
	StatusFailed     DownloadStatus = iota // 网络/文件系统/内容错误
	StatusDownloaded                       // 新下载
	StatusExisting                         // 目标文件已存在
	StatusInvalid                          // 未通过PDF验证
)

// String 返回状态名
func (s DownloadStatus) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusExisting:
		return "existing"
	case StatusInvalid:
		return "invalid"
	default:
		return "failed"
	}
}

// Success 新下载和已存在都算成功
func (s DownloadStatus) Success() bool {
	return s == StatusDownloaded || s == StatusExisting
}

// URLValidator 下载前的PDF验证
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) bool
}

// DownloaderOptions 下载器参数
type DownloaderOptions struct {
	DownloadDir string
	ChunkSize   int
	Timeout     time.Duration
	Verifier    PDFVerifier // 为nil时不校验
}

// Downloader 把论文流式保存到 downloadDir/conference/{year}_{title}.pdf
type Downloader struct {
	client    *http.Client
	validator URLValidator
	headers   models.HeaderProvider
	opts      DownloaderOptions
	log       zerolog.Logger

	// 按目标路径加锁,避免并发worker对同一文件重复下载
	locks sync.Map // path -> *sync.Mutex
}

// NewDownloader 创建下载器
func NewDownloader(client *http.Client, validator URLValidator, headers models.HeaderProvider, opts DownloaderOptions, logger zerolog.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = models.DefaultChunkSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = models.DefaultDownloadTimeout
	}
	return &Downloader{
		client:    client,
		validator: validator,
		headers:   headers,
		opts:      opts,
		log:       logger,
	}
}

// Download 下载单个链接,成功(含文件已存在)返回true
func (d *Downloader) Download(ctx context.Context, link models.PaperLink, conference models.Conference, year int) bool {
	status, _ := d.Fetch(ctx, link, conference, year)
	return status.Success()
}

// Fetch 下载单个链接并返回详细状态
//
// 处理流程:
//  1. 目标文件已存在则直接返回 StatusExisting,不发出任何请求
//  2. HEAD验证,未通过返回 StatusInvalid
//  3. 创建会议目录
//  4. GET并分块写入同目录下的临时文件,完成后重命名为目标文件
//  5. 可选的pdfcpu校验,未通过则删除文件
//
// 所有错误都已记录日志,返回的error仅用于统计分类。
func (d *Downloader) Fetch(ctx context.Context, link models.PaperLink, conference models.Conference, year int) (DownloadStatus, error) {
	record := models.DownloadRecord{Conference: conference, Year: year, Title: link.Title}
	target := record.Path(d.opts.DownloadDir)

	unlock := d.lock(target)
	defer unlock()

	logger := d.log.With().
		Str("conference", string(conference)).
		Int("year", year).
		Str("url", link.URL).
		Logger()

	if _, err := os.Stat(target); err == nil {
		logger.Info().Str("path", target).Msg("文件已存在,跳过")
		return StatusExisting, nil
	}

	if d.validator != nil && !d.validator.Validate(ctx, link.URL) {
		logger.Warn().Msg("无效的PDF链接")
		return StatusInvalid, nil
	}

	if err := os.MkdirAll(record.Dir(d.opts.DownloadDir), 0755); err != nil {
		return d.fail(logger, &models.DownloadError{Kind: models.KindFilesystem, URL: link.URL, Path: target, Err: err})
	}

	if err := d.transfer(ctx, link.URL, target); err != nil {
		return d.fail(logger, err)
	}

	if d.opts.Verifier != nil {
		if err := d.opts.Verifier(target); err != nil {
			os.Remove(target)
			return d.fail(logger, &models.DownloadError{Kind: models.KindContent, URL: link.URL, Path: target, Err: err})
		}
	}

	logger.Info().Str("path", target).Msg("下载成功")
	return StatusDownloaded, nil
}

// fail 记录下载错误,文件系统错误使用error级别
func (d *Downloader) fail(logger zerolog.Logger, err error) (DownloadStatus, error) {
	kind := models.ErrorKindOf(err)
	if kind == models.KindFilesystem {
		logger.Error().Err(err).Str("kind", string(kind)).Msg("文件系统错误,请检查下载目录权限和磁盘空间")
	} else {
		logger.Warn().Err(err).Str("kind", string(kind)).Msg("下载失败")
	}
	return StatusFailed, err
}

// transfer 流式下载到临时文件,成功后原子地重命名为target
// 失败时不会在target留下文件
func (d *Downloader) transfer(ctx context.Context, rawURL, target string) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	netErr := func(err error) error {
		return &models.DownloadError{Kind: models.KindNetwork, URL: rawURL, Path: target, Err: err}
	}
	fsErr := func(err error) error {
		return &models.DownloadError{Kind: filesystemKind(err), URL: rawURL, Path: target, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return netErr(err)
	}
	applyHeaders(req, d.headers, d.log)

	resp, err := d.client.Do(req)
	if err != nil {
		return netErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netErr(fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	body, err := decodeReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return netErr(err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*.part")
	if err != nil {
		return fsErr(err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := &trackedWriter{w: tmp}
	if _, err := io.CopyBuffer(w, body, make([]byte, d.opts.ChunkSize)); err != nil {
		if w.err != nil {
			return fsErr(w.err)
		}
		return netErr(err)
	}

	if err := tmp.Close(); err != nil {
		return fsErr(err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fsErr(err)
	}
	committed = true
	return nil
}

// filesystemKind 文件名过长只影响当前链接,归为内容错误,其余为文件系统错误
func filesystemKind(err error) models.ErrorKind {
	if errors.Is(err, syscall.ENAMETOOLONG) {
		return models.KindContent
	}
	return models.KindFilesystem
}

// lock 获取目标路径的互斥锁,返回解锁函数
func (d *Downloader) lock(path string) func() {
	v, _ := d.locks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// trackedWriter 记录写入错误,用于区分网络错误和文件系统错误
// 不实现 io.ReaderFrom,保证 CopyBuffer 的写入都经过它
type trackedWriter struct {
	w   io.Writer
	err error
}

func (t *trackedWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}

// gzipMagic gzip流的前两个字节
var gzipMagic = []byte{0x1f, 0x8b}

// isZlibHeader 判断前两个字节是否为zlib头(RFC 1950: CM=8 且校验位正确)
func isZlibHeader(h []byte) bool {
	if len(h) < 2 {
		return false
	}
	return h[0]&0x0f == 8 && h[0]>>4 <= 7 && (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}

// peekHeader 读取body的前n个字节,返回这些字节和包含完整内容的reader
func peekHeader(body io.Reader, n int) ([]byte, io.Reader, error) {
	peek := make([]byte, n)
	read, err := io.ReadFull(body, peek)
	rest := io.MultiReader(bytes.NewReader(peek[:read]), body)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("读取响应头部字节失败: %w", err)
	}
	return peek[:read], rest, nil
}

// decodeReader 根据Content-Encoding包装响应体
// 支持 gzip, deflate, br;Transport已透明解压gzip时body不再带gzip头,原样返回
// HTTP的deflate按规范是zlib格式,也兼容部分服务器发送的裸deflate流
func decodeReader(contentEncoding string, body io.Reader) (io.ReadCloser, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "br":
		return io.NopCloser(brotli.NewReader(body)), nil

	case "deflate":
		header, rest, err := peekHeader(body, 2)
		if err != nil {
			return nil, err
		}
		if !isZlibHeader(header) {
			return flate.NewReader(rest), nil
		}
		reader, err := zlib.NewReader(rest)
		if err != nil {
			return nil, fmt.Errorf("zlib解压失败: %w", err)
		}
		return reader, nil

	case "gzip", "x-gzip":
		header, rest, err := peekHeader(body, len(gzipMagic))
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(header, gzipMagic) {
			return io.NopCloser(rest), nil
		}
		reader, err := gzip.NewReader(rest)
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		return reader, nil

	default:
		return io.NopCloser(body), nil
	}
}

// decodeBody 解压已完整读取的响应体
func decodeBody(contentEncoding string, body []byte) ([]byte, error) {
	reader, err := decodeReader(contentEncoding, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("解压响应失败 (编码=%s): %w", contentEncoding, err)
	}
	return decoded, nil
}
