package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/core"
	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
	"github.com/spf13/cobra"
)

var timeNow = time.Now

// crawlFlags 覆盖配置文件的命令行参数
type crawlFlags struct {
	StartYear       int
	CurrentYear     int
	Conferences     []string
	OutputDir       string
	Workers         int
	LinkDelay       time.Duration
	ConferenceDelay time.Duration
	VerifyPDF       bool
	NoProgress      bool
}

// ValidateFlags 验证命令行参数,零值表示未指定
func ValidateFlags(f crawlFlags) error {
	if f.StartYear != 0 && (f.StartYear < 1900 || f.StartYear > 9999) {
		return fmt.Errorf("起始年份无效: %d", f.StartYear)
	}
	if f.CurrentYear != 0 && (f.CurrentYear < 1900 || f.CurrentYear > 9999) {
		return fmt.Errorf("截止年份无效: %d", f.CurrentYear)
	}
	if f.StartYear != 0 && f.CurrentYear != 0 && f.CurrentYear < f.StartYear {
		return fmt.Errorf("截止年份(%d)不能早于起始年份(%d)", f.CurrentYear, f.StartYear)
	}
	if f.Workers < 0 || f.Workers > models.MaxWorkers {
		return fmt.Errorf("并发数必须在1-%d之间,当前值: %d", models.MaxWorkers, f.Workers)
	}
	if f.LinkDelay < 0 || f.ConferenceDelay < 0 {
		return fmt.Errorf("间隔时间不能为负数")
	}
	for _, name := range f.Conferences {
		if err := models.Conference(strings.TrimSpace(name)).Validate(); err != nil {
			return fmt.Errorf("参数 --conference 无效: %w", err)
		}
	}
	return nil
}

// applyFlags 用显式指定的命令行参数覆盖配置
func applyFlags(cmd *cobra.Command, cfg *core.Config, f crawlFlags) error {
	changed := func(name string) bool {
		flag := cmd.Flags().Lookup(name)
		return flag != nil && flag.Changed
	}

	if changed("start-year") {
		cfg.Crawl.StartYear = f.StartYear
	}
	if changed("current-year") {
		cfg.Crawl.CurrentYear = f.CurrentYear
	}
	if changed("output") {
		cfg.Output.DownloadDir = f.OutputDir
	}
	if changed("workers") {
		cfg.Crawl.Workers = f.Workers
	}
	if changed("link-delay") {
		cfg.Crawl.LinkDelay = f.LinkDelay
	}
	if changed("conference-delay") {
		cfg.Crawl.ConferenceDelay = f.ConferenceDelay
	}
	if changed("verify-pdf") {
		cfg.Crawl.VerifyPDF = f.VerifyPDF
	}
	if changed("conference") {
		if err := cfg.FilterConferences(f.Conferences); err != nil {
			return err
		}
	}
	return nil
}
