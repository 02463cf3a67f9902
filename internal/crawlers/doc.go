// Package crawlers 实现会议论文的抓取流水线
//
// # 概述
//
// 处理单个(会议, 年份)目标的完整流程:
// 获取列表页 -> 提取PDF链接 -> HEAD验证 -> 流式下载到本地。
// 多个目标的遍历顺序和会议间隔由 core 包负责。
//
// # 核心组件
//
// ## URL生成
//
// GenerateTargets 把会议模板展开为按年份升序的目标列表,纯函数,不做任何I/O。
//
//	plans := GenerateTargets(DefaultTemplates(), 2010, 2024)
//
// ## LinkExtractor
//
// 基于goquery扫描页面中所有<a>标签,按RFC 3986解析相对链接,
// 通过 PDFPredicate 判定后返回 PaperLink,标题已清理文件名非法字符。
//
//	links := NewLinkExtractor(nil).Extract(html, "https://www.sigsac.org/ccs/CCS2020/accepted-papers.html")
//
// ## LinkValidator
//
// 发送HEAD请求,2xx且Content-Type包含pdf(或URL以.pdf结尾)时认为有效。
// 所有失败都返回false,不向上传播错误。
//
// ## Downloader
//
// 目标路径为 downloadDir/{会议}/{年份}_{标题}.pdf:
//   - 文件已存在时直接跳过,不发出任何请求,重复运行是幂等的
//   - 先写入同目录临时文件,完成后重命名,失败不会留下不完整的目标文件
//   - 支持 br/gzip/deflate 编码的响应体
//   - 可选pdfcpu结构校验
//
// ## OriginLimiter
//
// 基于 golang.org/x/time/rate 的按源限速,默认同一站点两次下载间隔1秒。
//
// ## Processor
//
// 用colly获取列表页,然后按 crawl.workers 的并发数(默认1,即严格顺序)下载链接。
// 列表页失败时结果的成功数为0并记录Error,不影响后续目标。
//
//	processor := NewProcessor(client, NewLinkExtractor(nil), downloader, NewOriginLimiter(time.Second), headers, opts, logger)
//	result := processor.Process(ctx, target)
//
// # 线程安全
//
// Downloader 按目标路径加锁;OriginLimiter 内部加锁;其余组件构造后只读。
package crawlers
