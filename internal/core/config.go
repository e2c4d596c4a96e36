package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/ProductFind/internal/models"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Crawl   models.CrawlConfig `mapstructure:"crawl"`
	Logging LoggingConfig      `mapstructure:"logging"`
	Output  OutputConfig       `mapstructure:"output"`
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
	BaseDir string `mapstructure:"base_dir"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		// 使用指定的配置文件
		v.SetConfigFile(configPath)
	} else {
		// 搜索默认位置
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// 添加配置搜索路径
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		// 用户主目录
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".productfind"))
		}
	}

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果配置文件不存在,使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在,使用默认值
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 并发配置默认值
	v.SetDefault("crawl.max_workers", 8)
	v.SetDefault("crawl.auto_scale", true)

	// 爬取范围默认值
	v.SetDefault("crawl.max_depth", 3)
	v.SetDefault("crawl.max_pages_per_domain", 0)
	v.SetDefault("crawl.max_total_pages", 0)
	v.SetDefault("crawl.max_elapsed_minutes", 300)

	// 页面渲染默认值
	v.SetDefault("crawl.navigation_timeout_ms", 30000)
	v.SetDefault("crawl.scroll_settle_ms", 2000)
	v.SetDefault("crawl.max_scroll_steps", 500)

	// 重试默认值
	v.SetDefault("crawl.retry_max_attempts", 3)
	v.SetDefault("crawl.retry_base_delay_ms", 2000)
	v.SetDefault("crawl.retry_max_delay_ms", 30000)

	// 请求过滤默认值
	v.SetDefault("crawl.blocked_resource_types", []string{
		"image", "stylesheet", "media", "font",
	})
	v.SetDefault("crawl.blocked_url_keywords", []string{
		"google-analytics", "googletagmanager", "doubleclick",
		"facebook.net", "hotjar", "criteo", "adsystem",
	})

	// 链接分类默认值
	v.SetDefault("crawl.product_url_patterns", []string{
		"/p/", "/products/", "/product/", "/dp/",
	})
	v.SetDefault("crawl.excluded_path_patterns", []string{
		"/login", "/signin", "/register", "/cart", "/checkout",
		"/account", "/wishlist", "/search", "/help", "/legal",
	})
	v.SetDefault("crawl.tracking_query_params", []string{
		"ref", "fbclid", "gclid", "mc_cid", "mc_eid", "igshid", "spm",
	})

	// 行为默认值
	v.SetDefault("crawl.respect_robots", false)
	v.SetDefault("crawl.rate_per_domain", 0.0)
	v.SetDefault("crawl.headless", true)
	v.SetDefault("crawl.mode", models.ModeDynamic)
	v.SetDefault("crawl.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")
}

// GetCrawlConfig 从配置中提取爬取配置
func (c *Config) GetCrawlConfig() models.CrawlConfig {
	return c.Crawl
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件
func (c *Config) MergeCLIFlags(
	maxWorkers int,
	maxDepth int,
	maxPagesPerDomain int,
	headless bool,
	mode string,
	outputDir string,
) {
	if maxWorkers > 0 {
		c.Crawl.MaxWorkers = maxWorkers
		// 显式指定并发数时关闭自动伸缩
		c.Crawl.AutoScale = false
	}
	if maxDepth >= 0 {
		c.Crawl.MaxDepth = maxDepth
	}
	if maxPagesPerDomain > 0 {
		c.Crawl.MaxPagesPerDomain = maxPagesPerDomain
	}
	c.Crawl.Headless = headless
	if mode != "" {
		c.Crawl.Mode = mode
	}
	if outputDir != "" {
		c.Output.BaseDir = outputDir
	}
}
