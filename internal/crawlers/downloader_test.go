package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"
)

// stubValidator 固定返回结果的验证器
type stubValidator struct {
	valid bool
	calls atomic.Int32
}

func (s *stubValidator) Validate(ctx context.Context, rawURL string) bool {
	s.calls.Add(1)
	return s.valid
}

// countingServer 记录请求次数的PDF服务器
func countingServer(t *testing.T, body []byte, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var count atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			w.Write(body)
		}
	}))
	t.Cleanup(server.Close)
	return server, &count
}

func newTestDownloader(client *http.Client, validator URLValidator, dir string) *Downloader {
	return NewDownloader(client, validator, nil, DownloaderOptions{
		DownloadDir: dir,
		ChunkSize:   16,
		Timeout:     2 * time.Second,
	}, zerolog.Nop())
}

func TestDownloader_Fetch(t *testing.T) {
	content := bytes.Repeat([]byte("%PDF-1.4 data "), 100)
	server, count := countingServer(t, content, http.StatusOK)
	dir := t.TempDir()

	downloader := newTestDownloader(server.Client(), &stubValidator{valid: true}, dir)
	link := models.PaperLink{URL: server.URL + "/p1.pdf", Title: "My Paper"}

	status, err := downloader.Fetch(context.Background(), link, models.ConferenceCCS, 2020)
	if err != nil || status != StatusDownloaded {
		t.Fatalf("Fetch() = %v, %v, want downloaded", status, err)
	}

	target := filepath.Join(dir, "CCS", "2020_My Paper.pdf")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("读取下载文件失败: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("文件内容不一致: got %d bytes, want %d bytes", len(data), len(content))
	}
	if count.Load() != 1 {
		t.Errorf("请求次数 = %d, want 1", count.Load())
	}

	// 目录中不应残留临时文件
	entries, _ := os.ReadDir(filepath.Join(dir, "CCS"))
	if len(entries) != 1 {
		t.Errorf("会议目录文件数 = %d, want 1", len(entries))
	}
}

func TestDownloader_ExistingFileMakesNoRequest(t *testing.T) {
	server, count := countingServer(t, []byte("new content"), http.StatusOK)
	dir := t.TempDir()

	target := filepath.Join(dir, "CCS", "2020_My Paper.pdf")
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("old content"), 0644); err != nil {
		t.Fatal(err)
	}

	validator := &stubValidator{valid: true}
	downloader := newTestDownloader(server.Client(), validator, dir)
	link := models.PaperLink{URL: server.URL + "/p1.pdf", Title: "My Paper"}

	for i := 0; i < 2; i++ {
		if !downloader.Download(context.Background(), link, models.ConferenceCCS, 2020) {
			t.Fatalf("第%d次下载应返回true", i+1)
		}
	}

	if count.Load() != 0 {
		t.Errorf("文件已存在时不应发出请求, got %d", count.Load())
	}
	if validator.calls.Load() != 0 {
		t.Errorf("文件已存在时不应验证链接, got %d", validator.calls.Load())
	}
	data, _ := os.ReadFile(target)
	if string(data) != "old content" {
		t.Errorf("已有文件被修改: %q", data)
	}
}

func TestDownloader_Invalid(t *testing.T) {
	server, count := countingServer(t, []byte("x"), http.StatusOK)
	dir := t.TempDir()

	downloader := newTestDownloader(server.Client(), &stubValidator{valid: false}, dir)
	status, err := downloader.Fetch(context.Background(), models.PaperLink{URL: server.URL + "/x", Title: "X"}, models.ConferenceSP, 2019)

	if status != StatusInvalid || err != nil {
		t.Errorf("Fetch() = %v, %v, want invalid", status, err)
	}
	if count.Load() != 0 {
		t.Errorf("验证失败时不应下载, got %d", count.Load())
	}
	if _, err := os.Stat(filepath.Join(dir, "SP", "2019_X.pdf")); !os.IsNotExist(err) {
		t.Error("验证失败时不应创建文件")
	}
}

func TestDownloader_ServerErrorLeavesNoFile(t *testing.T) {
	server, _ := countingServer(t, []byte("error page"), http.StatusInternalServerError)
	dir := t.TempDir()

	downloader := newTestDownloader(server.Client(), &stubValidator{valid: true}, dir)
	status, err := downloader.Fetch(context.Background(), models.PaperLink{URL: server.URL + "/p.pdf", Title: "P"}, models.ConferenceNDSS, 2021)

	if status != StatusFailed {
		t.Fatalf("status = %v, want failed", status)
	}
	if models.ErrorKindOf(err) != models.KindNetwork {
		t.Errorf("错误类别 = %q, want network", models.ErrorKindOf(err))
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "NDSS"))
	if len(entries) != 0 {
		t.Errorf("失败的下载不应留下文件, got %d", len(entries))
	}
}

func TestDownloader_FilesystemError(t *testing.T) {
	server, _ := countingServer(t, []byte("%PDF"), http.StatusOK)
	dir := t.TempDir()

	// 下载目录被同名文件占用
	blocked := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocked, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	downloader := newTestDownloader(server.Client(), &stubValidator{valid: true}, blocked)
	status, err := downloader.Fetch(context.Background(), models.PaperLink{URL: server.URL + "/p.pdf", Title: "P"}, models.ConferenceCCS, 2020)

	if status != StatusFailed {
		t.Fatalf("status = %v, want failed", status)
	}
	if !models.IsFilesystemError(err) {
		t.Errorf("应为文件系统错误, got %v", err)
	}
}

func TestDownloader_Brotli(t *testing.T) {
	content := []byte("%PDF-1.7 brotli encoded body")
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	bw.Write(content)
	bw.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	dir := t.TempDir()
	downloader := newTestDownloader(server.Client(), &stubValidator{valid: true}, dir)
	if !downloader.Download(context.Background(), models.PaperLink{URL: server.URL + "/b.pdf", Title: "B"}, models.ConferenceUSENIX, 2022) {
		t.Fatal("下载失败")
	}

	data, _ := os.ReadFile(filepath.Join(dir, "USENIX", "2022_B.pdf"))
	if !bytes.Equal(data, content) {
		t.Errorf("brotli解码后内容不一致: %q", data)
	}
}

func TestDownloader_VerifierRejects(t *testing.T) {
	server, _ := countingServer(t, []byte("<html>not a pdf</html>"), http.StatusOK)
	dir := t.TempDir()

	downloader := NewDownloader(server.Client(), &stubValidator{valid: true}, nil, DownloaderOptions{
		DownloadDir: dir,
		Verifier: func(path string) error {
			return errors.New("not a pdf")
		},
	}, zerolog.Nop())

	status, err := downloader.Fetch(context.Background(), models.PaperLink{URL: server.URL + "/p.pdf", Title: "P"}, models.ConferenceCCS, 2020)
	if status != StatusFailed || models.ErrorKindOf(err) != models.KindContent {
		t.Errorf("Fetch() = %v, %v, want content error", status, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "CCS", "2020_P.pdf")); !os.IsNotExist(err) {
		t.Error("校验失败的文件应被删除")
	}
}

func TestDownloader_ConcurrentSameTarget(t *testing.T) {
	server, count := countingServer(t, []byte("%PDF"), http.StatusOK)
	dir := t.TempDir()

	downloader := newTestDownloader(server.Client(), &stubValidator{valid: true}, dir)
	link := models.PaperLink{URL: server.URL + "/p.pdf", Title: "Same"}

	var wg sync.WaitGroup
	var success atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if downloader.Download(context.Background(), link, models.ConferenceCCS, 2020) {
				success.Add(1)
			}
		}()
	}
	wg.Wait()

	if success.Load() != 4 {
		t.Errorf("成功数 = %d, want 4", success.Load())
	}
	if count.Load() != 1 {
		t.Errorf("同一目标应只下载一次, got %d", count.Load())
	}
}

func TestDecodeBody(t *testing.T) {
	plain := []byte("<html>plain</html>")

	// Transport已经解压过gzip的情况
	got, err := decodeBody("gzip", plain)
	if err != nil || !bytes.Equal(got, plain) {
		t.Errorf("已解压的gzip内容应原样返回: %q, %v", got, err)
	}

	got, err = decodeBody("", plain)
	if err != nil || !bytes.Equal(got, plain) {
		t.Errorf("无编码时应原样返回: %q, %v", got, err)
	}

	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	bw.Write(plain)
	bw.Close()
	got, err = decodeBody("br", buf.Bytes())
	if err != nil || !bytes.Equal(got, plain) {
		t.Errorf("brotli解码失败: %q, %v", got, err)
	}

	// deflate 按HTTP规范为zlib格式
	got, err = decodeBody("deflate", zlibBytes(t, plain))
	if err != nil || !bytes.Equal(got, plain) {
		t.Errorf("zlib格式的deflate解码失败: %q, %v", got, err)
	}

	// 部分服务器发送裸deflate流
	var raw bytes.Buffer
	fw, _ := flate.NewWriter(&raw, flate.DefaultCompression)
	fw.Write(plain)
	fw.Close()
	got, err = decodeBody("deflate", raw.Bytes())
	if err != nil || !bytes.Equal(got, plain) {
		t.Errorf("裸deflate解码失败: %q, %v", got, err)
	}
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	zw.Close()
	return buf.Bytes()
}

func TestIsZlibHeader(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		expected bool
	}{
		{"默认压缩", []byte{0x78, 0x9c}, true},
		{"最快压缩", []byte{0x78, 0x01}, true},
		{"最佳压缩", []byte{0x78, 0xda}, true},
		{"校验位错误", []byte{0x78, 0x9d}, false},
		{"PDF头", []byte("%P"), false},
		{"长度不足", []byte{0x78}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isZlibHeader(tt.header); got != tt.expected {
				t.Errorf("isZlibHeader(%x) = %v, want %v", tt.header, got, tt.expected)
			}
		})
	}
}

func TestDownloader_DeflateEncoding(t *testing.T) {
	content := bytes.Repeat([]byte("%PDF-1.5 zlib body "), 50)
	encoded := zlibBytes(t, content)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		if r.Header.Get("Accept-Encoding") == "deflate" {
			w.Header().Set("Content-Encoding", "deflate")
			w.Write(encoded)
			return
		}
		w.Write(content)
	}))
	defer server.Close()

	dir := t.TempDir()
	headers := models.StaticHeaders{"Accept-Encoding": []string{"deflate"}}
	downloader := NewDownloader(server.Client(), &stubValidator{valid: true}, headers, DownloaderOptions{
		DownloadDir: dir,
		Timeout:     2 * time.Second,
	}, zerolog.Nop())

	status, err := downloader.Fetch(context.Background(), models.PaperLink{URL: server.URL + "/a.pdf", Title: "Z"}, models.ConferenceCCS, 2020)
	if status != StatusDownloaded {
		t.Fatalf("Fetch() = %v, %v", status, err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "CCS", "2020_Z.pdf"))
	if !bytes.Equal(data, content) {
		t.Errorf("deflate解码后内容不一致, 长度 %d", len(data))
	}
}

func TestDownloader_NameTooLong(t *testing.T) {
	server, _ := countingServer(t, []byte("%PDF"), http.StatusOK)
	dir := t.TempDir()

	downloader := newTestDownloader(server.Client(), &stubValidator{valid: true}, dir)
	link := models.PaperLink{URL: server.URL + "/p.pdf", Title: strings.Repeat("t", 330)}
	status, err := downloader.Fetch(context.Background(), link, models.ConferenceCCS, 2020)

	if status != StatusFailed {
		t.Fatalf("status = %v, want failed", status)
	}
	if models.IsFilesystemError(err) {
		t.Errorf("文件名过长不应计为文件系统错误: %v", err)
	}
	if models.ErrorKindOf(err) != models.KindContent {
		t.Errorf("错误类别 = %q, want content", models.ErrorKindOf(err))
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "CCS"))
	if len(entries) != 0 {
		t.Errorf("失败的下载不应留下文件, got %d", len(entries))
	}
}
