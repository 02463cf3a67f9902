package crawlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
)

// ConferenceTemplate 会议及其列表页URL模板
// 模板支持占位符 {year}(四位年份) 和 {yy}(两位年份,补零)
type ConferenceTemplate struct {
	Conference  models.Conference
	URLTemplate string
}

// ConferencePlan 单个会议的全部爬取目标,年份升序
type ConferencePlan struct {
	Conference models.Conference
	Targets    []models.ConferenceTarget
}

// DefaultTemplates 内置的四个安全会议模板
func DefaultTemplates() []ConferenceTemplate {
	return []ConferenceTemplate{
		{Conference: models.ConferenceUSENIX, URLTemplate: "https://www.usenix.org/conference/usenixsecurity{yy}/technical-sessions"},
		{Conference: models.ConferenceSP, URLTemplate: "https://www.ieee-security.org/TC/SP{year}/program.html"},
		{Conference: models.ConferenceCCS, URLTemplate: "https://www.sigsac.org/ccs/CCS{year}/accepted-papers.html"},
		{Conference: models.ConferenceNDSS, URLTemplate: "https://www.ndss-symposium.org/{year}/accepted-papers/"},
	}
}

// ExpandTemplate 用年份替换模板中的占位符
func ExpandTemplate(template string, year int) string {
	r := strings.NewReplacer(
		"{year}", strconv.Itoa(year),
		"{yy}", fmt.Sprintf("%02d", year%100),
	)
	return r.Replace(template)
}

// GenerateTargets 按模板顺序、年份升序生成所有(会议, 年份)目标
// currentYear < startYear 时每个会议的目标列表为空
func GenerateTargets(templates []ConferenceTemplate, startYear, currentYear int) []ConferencePlan {
	plans := make([]ConferencePlan, 0, len(templates))
	for _, tpl := range templates {
		plan := ConferencePlan{
			Conference: tpl.Conference,
			Targets:    make([]models.ConferenceTarget, 0),
		}
		for year := startYear; year <= currentYear; year++ {
			plan.Targets = append(plan.Targets, models.ConferenceTarget{
				Conference: tpl.Conference,
				Year:       year,
				ListingURL: ExpandTemplate(tpl.URLTemplate, year),
			})
		}
		plans = append(plans, plan)
	}
	return plans
}

// CountTargets 统计计划中的目标总数
func CountTargets(plans []ConferencePlan) int {
	total := 0
	for _, p := range plans {
		total += len(p.Targets)
	}
	return total
}
