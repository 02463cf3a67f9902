package crawlers

import (
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
)

// untitledFallback 链接文本和URL路径都为空时使用的标题
const untitledFallback = "untitled"

// PDFPredicate 判断href是否指向论文PDF
type PDFPredicate func(href string) bool

// IsPDFHref 默认判定: href以.pdf结尾或包含"pdf"(不区分大小写)
//
// 这是一个宽松的启发式规则,会误收 /pdfs/ 目录页之类的链接,
// 误收的链接由下载前的HEAD验证过滤掉。
func IsPDFHref(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasSuffix(lower, models.PDFExtension) || strings.Contains(lower, "pdf")
}

// 文件名中不允许出现的字符
var titleReplacer = strings.NewReplacer(
	"<", "_",
	">", "_",
	":", "_",
	`"`, "_",
	"/", "_",
	`\`, "_",
	"|", "_",
	"?", "_",
	"*", "_",
)

// SanitizeTitle 把 < > : " / \ | ? * 替换为下划线,
// 并在字符边界处截断到 models.MaxTitleBytes 字节
func SanitizeTitle(title string) string {
	return truncateUTF8(titleReplacer.Replace(title), models.MaxTitleBytes)
}

// truncateUTF8 截断到最多max字节,不切开多字节字符
func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}

// LinkExtractor 从列表页HTML中提取候选论文链接
type LinkExtractor struct {
	predicate PDFPredicate
}

// NewLinkExtractor 创建提取器,predicate为nil时使用IsPDFHref
func NewLinkExtractor(predicate PDFPredicate) *LinkExtractor {
	if predicate == nil {
		predicate = IsPDFHref
	}
	return &LinkExtractor{predicate: predicate}
}

// Extract 提取页面中所有通过判定的链接,保持文档顺序
// 解析失败时返回空切片,不返回错误
func (e *LinkExtractor) Extract(htmlContent, baseURL string) []models.PaperLink {
	links := make([]models.PaperLink, 0)

	base, err := url.Parse(baseURL)
	if err != nil {
		return links
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return links
	}

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		if !e.predicate(href) {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)

		links = append(links, models.PaperLink{
			URL:   abs.String(),
			Title: SanitizeTitle(linkTitle(s.Text(), abs)),
		})
	})

	return links
}

// linkTitle 链接文本(折叠空白),为空时取URL路径最后一段
func linkTitle(text string, u *url.URL) string {
	title := strings.Join(strings.Fields(text), " ")
	if title != "" {
		return title
	}

	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return untitledFallback
	}
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return base
}
