package crawlers

import (
	"testing"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
)

func TestExpandTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		year     int
		expected string
	}{
		{
			name:     "两位年份补零",
			template: "https://www.usenix.org/conference/usenixsecurity{yy}/technical-sessions",
			year:     2009,
			expected: "https://www.usenix.org/conference/usenixsecurity09/technical-sessions",
		},
		{
			name:     "四位年份",
			template: "https://www.ieee-security.org/TC/SP{year}/program.html",
			year:     2015,
			expected: "https://www.ieee-security.org/TC/SP2015/program.html",
		},
		{
			name:     "两个占位符同时出现",
			template: "https://conf.org/{year}/sec{yy}.html",
			year:     2021,
			expected: "https://conf.org/2021/sec21.html",
		},
		{
			name:     "无占位符",
			template: "https://conf.org/papers.html",
			year:     2021,
			expected: "https://conf.org/papers.html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandTemplate(tt.template, tt.year); got != tt.expected {
				t.Errorf("ExpandTemplate() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGenerateTargets_CountAndOrder(t *testing.T) {
	templates := DefaultTemplates()
	plans := GenerateTargets(templates, 2010, 2012)

	if len(plans) != len(templates) {
		t.Fatalf("计划数 = %d, want %d", len(plans), len(templates))
	}
	if CountTargets(plans) != 4*3 {
		t.Errorf("目标总数 = %d, want 12", CountTargets(plans))
	}

	for i, plan := range plans {
		if plan.Conference != templates[i].Conference {
			t.Errorf("第%d个计划的会议 = %s, want %s", i, plan.Conference, templates[i].Conference)
		}
		for j, target := range plan.Targets {
			if target.Year != 2010+j {
				t.Errorf("%s 第%d个目标年份 = %d, want %d", plan.Conference, j, target.Year, 2010+j)
			}
			if target.Conference != plan.Conference {
				t.Errorf("目标会议不一致: %s != %s", target.Conference, plan.Conference)
			}
		}
	}

	usenix := plans[0].Targets[0]
	if usenix.ListingURL != "https://www.usenix.org/conference/usenixsecurity10/technical-sessions" {
		t.Errorf("USENIX 2010 URL = %s", usenix.ListingURL)
	}
	ndss := plans[3].Targets[2]
	if ndss.ListingURL != "https://www.ndss-symposium.org/2012/accepted-papers/" {
		t.Errorf("NDSS 2012 URL = %s", ndss.ListingURL)
	}
}

func TestGenerateTargets_Empty(t *testing.T) {
	plans := GenerateTargets(DefaultTemplates(), 2024, 2020)
	if len(plans) != 4 {
		t.Fatalf("计划数 = %d, want 4", len(plans))
	}
	if CountTargets(plans) != 0 {
		t.Errorf("当前年份早于起始年份时应没有目标, got %d", CountTargets(plans))
	}

	if got := GenerateTargets(nil, 2010, 2012); len(got) != 0 {
		t.Errorf("没有模板时应返回空计划, got %d", len(got))
	}
}

func TestGenerateTargets_SingleYear(t *testing.T) {
	plans := GenerateTargets([]ConferenceTemplate{
		{Conference: models.ConferenceCCS, URLTemplate: "https://www.sigsac.org/ccs/CCS{year}/accepted-papers.html"},
	}, 2020, 2020)

	if CountTargets(plans) != 1 {
		t.Fatalf("目标总数 = %d, want 1", CountTargets(plans))
	}
	target := plans[0].Targets[0]
	if target.String() != "CCS 2020" {
		t.Errorf("String() = %q", target.String())
	}
}
