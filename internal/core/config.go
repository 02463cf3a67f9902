package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/SecPaperCrawl/internal/crawlers"
	"github.com/RecoveryAshes/SecPaperCrawl/internal/models"
	"github.com/RecoveryAshes/SecPaperCrawl/internal/utils"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀,如 SECPAPER_CRAWL_START_YEAR
const EnvPrefix = "SECPAPER"

// Config 应用程序配置
type Config struct {
	Crawl       models.CrawlConfig `mapstructure:"crawl"`
	Conferences []ConferenceConfig `mapstructure:"conferences"`
	Logging     LoggingConfig      `mapstructure:"logging"`
	Output      OutputConfig       `mapstructure:"output"`
}

// ConferenceConfig 会议及其列表页URL模板
type ConferenceConfig struct {
	Name        string `mapstructure:"name"`
	URLTemplate string `mapstructure:"url_template"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	DownloadDir string `mapstructure:"download_dir"`
	ReportDir   string `mapstructure:"report_dir"` // 为空时使用 download_dir/reports
}

// LoadConfig 加载配置文件
// configPath为空时依次搜索 ./configs、当前目录、~/.secpapercrawl,找不到则使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".secpapercrawl"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// DefaultConfig 不读取任何文件的默认配置
func DefaultConfig() *Config {
	return &Config{
		Crawl: models.DefaultCrawlConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			LogDir: "logs",
			Rotation: RotationConfig{
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
				Compress:   true,
			},
		},
		Output: OutputConfig{
			DownloadDir: "./download",
		},
	}
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// AutomaticEnv 只对已知的键生效,所以每个键都要有默认值
	v.SetDefault("crawl.start_year", d.Crawl.StartYear)
	v.SetDefault("crawl.current_year", d.Crawl.CurrentYear)
	v.SetDefault("crawl.link_delay", d.Crawl.LinkDelay)
	v.SetDefault("crawl.conference_delay", d.Crawl.ConferenceDelay)
	v.SetDefault("crawl.probe_timeout", d.Crawl.ProbeTimeout)
	v.SetDefault("crawl.fetch_timeout", d.Crawl.FetchTimeout)
	v.SetDefault("crawl.download_timeout", d.Crawl.DownloadTimeout)
	v.SetDefault("crawl.chunk_size", d.Crawl.ChunkSize)
	v.SetDefault("crawl.workers", d.Crawl.Workers)
	v.SetDefault("crawl.verify_pdf", d.Crawl.VerifyPDF)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.log_dir", d.Logging.LogDir)
	v.SetDefault("logging.rotation.max_size", d.Logging.Rotation.MaxSize)
	v.SetDefault("logging.rotation.max_backups", d.Logging.Rotation.MaxBackups)
	v.SetDefault("logging.rotation.max_age", d.Logging.Rotation.MaxAge)
	v.SetDefault("logging.rotation.compress", d.Logging.Rotation.Compress)

	v.SetDefault("output.download_dir", d.Output.DownloadDir)
	v.SetDefault("output.report_dir", d.Output.ReportDir)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Crawl.Validate(); err != nil {
		return fmt.Errorf("crawl配置无效: %w", err)
	}
	if strings.TrimSpace(c.Output.DownloadDir) == "" {
		return fmt.Errorf("output.download_dir 不能为空")
	}

	seen := make(map[models.Conference]bool)
	for i, conf := range c.Conferences {
		name := models.Conference(conf.Name)
		if err := name.Validate(); err != nil {
			return fmt.Errorf("conferences[%d]: %w", i, err)
		}
		if seen[name] {
			return fmt.Errorf("conferences[%d]: 会议 %s 重复", i, name)
		}
		seen[name] = true

		// 用一个年份展开后检查URL是否合法
		if err := models.ValidateURL(crawlers.ExpandTemplate(conf.URLTemplate, c.Crawl.StartYear)); err != nil {
			return fmt.Errorf("conferences[%d] %s 的url_template无效: %w", i, name, err)
		}
	}
	return nil
}

// Templates 返回配置的会议模板,未配置时使用内置的四个会议
func (c *Config) Templates() []crawlers.ConferenceTemplate {
	if len(c.Conferences) == 0 {
		return crawlers.DefaultTemplates()
	}
	templates := make([]crawlers.ConferenceTemplate, 0, len(c.Conferences))
	for _, conf := range c.Conferences {
		templates = append(templates, crawlers.ConferenceTemplate{
			Conference:  models.Conference(conf.Name),
			URLTemplate: conf.URLTemplate,
		})
	}
	return templates
}

// FilterConferences 只保留指定的会议(不区分大小写),保持配置顺序
func (c *Config) FilterConferences(names []string) error {
	if len(names) == 0 {
		return nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToUpper(strings.TrimSpace(n))] = true
	}

	filtered := make([]ConferenceConfig, 0, len(names))
	for _, tpl := range c.Templates() {
		key := strings.ToUpper(string(tpl.Conference))
		if wanted[key] {
			filtered = append(filtered, ConferenceConfig{Name: string(tpl.Conference), URLTemplate: tpl.URLTemplate})
			delete(wanted, key)
		}
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for n := range wanted {
			unknown = append(unknown, n)
		}
		return fmt.Errorf("未知的会议: %s", strings.Join(unknown, ", "))
	}

	c.Conferences = filtered
	return nil
}

// ReportDir 报告目录
func (c *Config) ReportDir() string {
	if c.Output.ReportDir != "" {
		return c.Output.ReportDir
	}
	return filepath.Join(c.Output.DownloadDir, "reports")
}

// LogConfig 转换为日志器配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}
