package models

import (
	"fmt"
	"regexp"
)

// Conference 会议标识
type Conference string

const (
	ConferenceUSENIX Conference = "USENIX" // USENIX Security
	ConferenceSP     Conference = "SP"     // IEEE S&P
	ConferenceCCS    Conference = "CCS"    // ACM CCS
	ConferenceNDSS   Conference = "NDSS"   // NDSS Symposium
)

// KnownConferences 内置会议列表(按默认爬取顺序)
var KnownConferences = []Conference{
	ConferenceUSENIX,
	ConferenceSP,
	ConferenceCCS,
	ConferenceNDSS,
}

// 会议标识会作为目录名使用
var conferenceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate 验证会议标识能否安全地作为目录名
func (c Conference) Validate() error {
	if c == "" {
		return fmt.Errorf("会议标识不能为空")
	}
	if !conferenceNamePattern.MatchString(string(c)) {
		return fmt.Errorf("会议标识包含非法字符: %q (仅允许字母、数字、下划线和连字符)", string(c))
	}
	return nil
}

// IsKnown 是否为内置会议
func (c Conference) IsKnown() bool {
	for _, known := range KnownConferences {
		if c == known {
			return true
		}
	}
	return false
}

// ConferenceTarget 单个(会议, 年份)爬取目标
// 由URL生成器创建,创建后不再修改
type ConferenceTarget struct {
	Conference Conference `json:"conference"`
	Year       int        `json:"year"`
	ListingURL string     `json:"listing_url"` // 论文列表页URL
}

// String 返回 "CONF YEAR" 形式的描述
func (t ConferenceTarget) String() string {
	return fmt.Sprintf("%s %d", t.Conference, t.Year)
}
