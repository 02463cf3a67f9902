package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/core"
	"github.com/RecoveryAshes/SecPaperCrawl/internal/crawlers"
	"github.com/RecoveryAshes/SecPaperCrawl/internal/utils"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 爬取参数
	flags crawlFlags
)

var rootCmd = &cobra.Command{
	Use:   "secpapercrawl",
	Short: "安全顶会论文PDF批量下载工具",
	Long: `SecPaperCrawl - 安全顶会论文PDF批量下载工具

按会议、年份遍历论文列表页,提取PDF链接并下载到本地:
  • 内置 USENIX Security / IEEE S&P / ACM CCS / NDSS 四个会议
  • 可在 config.yaml 中添加其他会议的列表页URL模板
  • 已下载的论文自动跳过,重复运行不会产生网络请求
  • 同一站点的下载请求之间自动限速

目录结构:
  download/
  ├── USENIX/2020_Paper Title.pdf
  ├── SP/
  ├── CCS/
  ├── NDSS/
  └── reports/crawl_report.json

示例:
  # 使用默认配置爬取2010年至今的全部会议
  secpapercrawl

  # 只爬取CCS和NDSS的2020-2023年论文
  secpapercrawl --conference CCS --conference NDSS --start-year 2020 --current-year 2023

  # 查看将要访问的列表页,不发出请求
  secpapercrawl plan --start-year 2022

  # 携带Cookie访问需要登录的站点
  secpapercrawl -H "Cookie: session=xxx"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runCrawl,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "列出将要访问的会议列表页,不发出任何请求",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadAppConfig(cmd)
		if err != nil {
			return err
		}

		crawler := core.NewCrawler(cfg.Crawl, cfg.Templates(), nil, cfg.Output.DownloadDir, zerolog.Nop())
		plans := crawler.Plan()

		out := cmd.OutOrStdout()
		for _, plan := range plans {
			for _, target := range plan.Targets {
				fmt.Fprintf(out, "%-8s %d  %s\n", target.Conference, target.Year, target.ListingURL)
			}
		}
		fmt.Fprintf(out, "\n共 %d 个会议, %d 个目标 (%d-%d)\n",
			len(plans), crawlers.CountTargets(plans), cfg.Crawl.StartYear, crawler.CurrentYear())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "SecPaperCrawl %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "构建时间: %s\n", BuildTime)
	},
}

// loadAppConfig 加载配置文件并应用命令行参数
func loadAppConfig(cmd *cobra.Command) (*core.Config, error) {
	if err := ValidateFlags(flags); err != nil {
		return nil, err
	}

	cfg, err := core.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if err := applyFlags(cmd, cfg, flags); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}
	return cfg, nil
}

// newLogger 按配置和命令行参数创建日志器
func newLogger(cfg *core.Config) (zerolog.Logger, io.Closer, error) {
	logConfig := cfg.LogConfig()
	if verbose && logLevel == "" {
		logConfig.Level = "debug"
	}
	if logLevel != "" {
		logConfig.Level = logLevel
	}
	return utils.NewLogger(logConfig)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}
	defer closer.Close()

	headerManager, err := core.NewHeaderManager("", headers, logger)
	if err != nil {
		return fmt.Errorf("解析HTTP头部失败: %w", err)
	}

	if validateConfig {
		safeHeaders, err := headerManager.SafeHeaders()
		if err != nil {
			return fmt.Errorf("HTTP头部配置验证失败: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "✅ 配置验证通过")
		fmt.Fprintf(out, "会议: %d 个, 年份: %d-%d, 下载目录: %s\n",
			len(cfg.Templates()), cfg.Crawl.StartYear, cfg.Crawl.ResolveCurrentYear(timeNow()), cfg.Output.DownloadDir)
		fmt.Fprintf(out, "HTTP头部 (%s, %d个):\n", headerManager.HeaderFile(), len(safeHeaders))
		for name, value := range safeHeaders {
			fmt.Fprintf(out, "  %s: %s\n", name, value)
		}
		return nil
	}

	// 提前加载头部,配置错误时在发出请求前退出
	if err := headerManager.Load(); err != nil {
		return fmt.Errorf("加载HTTP头部失败: %w", err)
	}

	// Ctrl+C 取消当前运行,已完成的部分仍会写入报告
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []core.Option
	if !flags.NoProgress {
		opts = append(opts, core.WithProgressWriter(cmd.ErrOrStderr()))
	}
	crawler := core.BuildCrawler(cfg, headerManager, logger, opts...)

	summary, err := crawler.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn().Msg("收到中断信号,爬取已停止")
		} else {
			return fmt.Errorf("爬取失败: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n==================================================")
	fmt.Fprintln(out, "📊 爬取统计")
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintf(out, "✅ 处理目标: %d\n", summary.Attempted())
	fmt.Fprintf(out, "✅ 成功论文: %d (新下载 %d, 已存在 %d)\n", summary.TotalSuccess, summary.Stats.Downloaded, summary.Stats.Existing)
	fmt.Fprintf(out, "⚠️  无效链接: %d\n", summary.Stats.Invalid)
	fmt.Fprintf(out, "❌ 下载失败: %d (文件系统错误 %d)\n", summary.Stats.Failed, summary.Stats.FilesystemErrors)
	fmt.Fprintf(out, "❌ 列表页失败: %d\n", summary.FailedPages)
	fmt.Fprintf(out, "⏱️  总耗时: %.2f秒\n", summary.Duration)
	fmt.Fprintln(out, "==================================================")

	return nil
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式 (等同于 --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// 爬取范围参数,plan子命令同样适用
	rootCmd.PersistentFlags().IntVar(&flags.StartYear, "start-year", 0, "起始年份 (默认2010)")
	rootCmd.PersistentFlags().IntVar(&flags.CurrentYear, "current-year", 0, "截止年份 (默认当前年份)")
	rootCmd.PersistentFlags().StringSliceVar(&flags.Conferences, "conference", nil, "只爬取指定会议,可多次指定")
	rootCmd.PersistentFlags().StringVarP(&flags.OutputDir, "output", "o", "", "下载目录 (默认 ./download)")

	// HTTP头部参数
	rootCmd.Flags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.Flags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 下载参数
	rootCmd.Flags().IntVar(&flags.Workers, "workers", 0, "单个列表页内的下载并发数 (默认1)")
	rootCmd.Flags().DurationVar(&flags.LinkDelay, "link-delay", 0, "同一站点两次下载之间的间隔 (默认1s)")
	rootCmd.Flags().DurationVar(&flags.ConferenceDelay, "conference-delay", 0, "会议之间的间隔 (默认2s)")
	rootCmd.Flags().BoolVar(&flags.VerifyPDF, "verify-pdf", false, "下载后用pdfcpu校验PDF结构")
	rootCmd.Flags().BoolVar(&flags.NoProgress, "no-progress", false, "不显示进度条")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
