package main

import (
	"testing"
	"time"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/core"
	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
	"github.com/spf13/cobra"
)

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   crawlFlags
		wantErr bool
	}{
		{"未指定任何参数", crawlFlags{}, false},
		{"年份范围", crawlFlags{StartYear: 2015, CurrentYear: 2020}, false},
		{"截止年份早于起始年份", crawlFlags{StartYear: 2020, CurrentYear: 2015}, true},
		{"起始年份无效", crawlFlags{StartYear: 20}, true},
		{"并发数过大", crawlFlags{Workers: models.MaxWorkers + 1}, true},
		{"负数间隔", crawlFlags{LinkDelay: -time.Second}, true},
		{"会议名非法", crawlFlags{Conferences: []string{"CCS", "a/b"}}, true},
		{"会议名合法", crawlFlags{Conferences: []string{"ccs", " NDSS "}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlags(tt.flags)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// newFlagCommand 注册与根命令相同的参数
func newFlagCommand(f *crawlFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&f.StartYear, "start-year", 0, "")
	cmd.Flags().IntVar(&f.CurrentYear, "current-year", 0, "")
	cmd.Flags().StringSliceVar(&f.Conferences, "conference", nil, "")
	cmd.Flags().StringVarP(&f.OutputDir, "output", "o", "", "")
	cmd.Flags().IntVar(&f.Workers, "workers", 0, "")
	cmd.Flags().DurationVar(&f.LinkDelay, "link-delay", 0, "")
	cmd.Flags().DurationVar(&f.ConferenceDelay, "conference-delay", 0, "")
	cmd.Flags().BoolVar(&f.VerifyPDF, "verify-pdf", false, "")
	return cmd
}

func TestApplyFlags(t *testing.T) {
	var f crawlFlags
	cmd := newFlagCommand(&f)
	err := cmd.ParseFlags([]string{
		"--start-year", "2019",
		"-o", "/tmp/papers",
		"--link-delay", "250ms",
		"--conference", "ndss",
		"--verify-pdf",
	})
	if err != nil {
		t.Fatalf("解析参数失败: %v", err)
	}

	cfg := core.DefaultConfig()
	if err := applyFlags(cmd, cfg, f); err != nil {
		t.Fatalf("applyFlags() error = %v", err)
	}

	if cfg.Crawl.StartYear != 2019 {
		t.Errorf("StartYear = %d", cfg.Crawl.StartYear)
	}
	if cfg.Output.DownloadDir != "/tmp/papers" {
		t.Errorf("DownloadDir = %s", cfg.Output.DownloadDir)
	}
	if cfg.Crawl.LinkDelay != 250*time.Millisecond || !cfg.Crawl.VerifyPDF {
		t.Errorf("crawl配置 = %+v", cfg.Crawl)
	}
	// 未指定的参数保留配置值
	if cfg.Crawl.ConferenceDelay != models.DefaultConferenceDelay || cfg.Crawl.Workers != models.DefaultWorkers {
		t.Errorf("未指定的参数不应覆盖配置: %+v", cfg.Crawl)
	}

	templates := cfg.Templates()
	if len(templates) != 1 || templates[0].Conference != models.ConferenceNDSS {
		t.Errorf("会议过滤结果 = %+v", templates)
	}
}

func TestApplyFlags_UnknownConference(t *testing.T) {
	var f crawlFlags
	cmd := newFlagCommand(&f)
	if err := cmd.ParseFlags([]string{"--conference", "RAID"}); err != nil {
		t.Fatal(err)
	}
	if err := applyFlags(cmd, core.DefaultConfig(), f); err == nil {
		t.Error("未配置的会议应返回错误")
	}
}
