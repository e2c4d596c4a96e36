package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/ProductFind/internal/core"
	"github.com/RecoveryAshes/ProductFind/internal/utils"
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

	// 爬取参数
	seedURL           string
	seedFile          string
	maxDepth          int
	maxWorkers        int
	maxPagesPerDomain int
	mode              string
	headless          bool
	outputDir         string
)

var rootCmd = &cobra.Command{
	Use:   "productfind",
	Short: "电商站点商品URL发现工具",
	Long: `ProductFind - 电商站点商品URL并发发现工具 (Go版本)

从一批种子站点出发,自动发现并收集商品详情页URL,支持:
  • 动态(无头浏览器)和静态(纯HTTP)两种渲染模式
  • 无限滚动触发懒加载商品列表
  • 图片/样式/媒体/字体请求拦截,降低带宽消耗
  • URL归一化去重与按域名轮询的公平调度
  • 瞬时失败指数退避重试
  • 每域名/全局页数与时长预算

使用示例:
  # 批量种子文件
  productfind -f data/start_urls.txt

  # 单个种子URL
  productfind -u https://shop.example.com

  # 静态模式,限制深度
  productfind -u https://shop.example.com --mode static -d 2

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 初始化日志系统
		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}
		if verbose {
			logConfig.Level = "debug"
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 如果没有提供任何参数,显示帮助信息
		if seedURL == "" && seedFile == "" {
			return cmd.Help()
		}

		// 验证参数
		if err := ValidateFlags(seedURL, maxDepth, maxWorkers, mode); err != nil {
			return err
		}

		// 加载配置并合并命令行参数
		appConfig, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig.MergeCLIFlags(maxWorkers, maxDepth, maxPagesPerDomain, headless, mode, outputDir)

		// 收集种子URL
		var seeds []string
		if seedFile != "" {
			seeds, err = utils.ReadSeedURLs(seedFile)
			if err != nil {
				return fmt.Errorf("读取种子文件失败: %w", err)
			}
		}
		if seedURL != "" {
			seeds = append(seeds, seedURL)
		}

		// 设置信号处理(Ctrl+C优雅退出)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			utils.Warnf("收到中断信号: %v, 正在优雅关闭...", sig)
			cancel()
		}()

		// 创建并运行爬取器
		crawler, err := core.NewCrawler(seeds, appConfig.GetCrawlConfig(), appConfig.Output.BaseDir)
		if err != nil {
			return fmt.Errorf("创建爬取器失败: %w", err)
		}

		if err := crawler.Crawl(ctx); err != nil {
			return fmt.Errorf("爬取失败: %w", err)
		}

		// 显示统计结果
		stats := crawler.GetStats()
		fmt.Println("\n==================================================")
		fmt.Println("📊 发现统计")
		fmt.Println("==================================================")
		fmt.Printf("✅ 种子域名数: %d\n", stats.SeedDomains)
		fmt.Printf("✅ 访问页面数: %d\n", stats.PagesVisited)
		fmt.Printf("✅ 发现商品URL数: %d\n", stats.ProductURLs)
		fmt.Printf("✅ 入队链接数: %d (提取总数: %d)\n", stats.LinksEnqueued, stats.LinksSeen)
		fmt.Printf("❌ 失败页面数: %d\n", stats.PagesFailed)
		fmt.Printf("⏭️  跳过页面数: %d\n", stats.PagesSkipped)
		fmt.Printf("⏱️  总耗时: %.2f秒 (结束原因: %s)\n", stats.Duration, stats.StopReason)
		fmt.Println("==================================================")

		utils.Info("✨ 发现任务完成!")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ProductFind %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
		fmt.Println("Go实现版本 - 电商商品URL发现工具")
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// 爬取参数
	rootCmd.Flags().StringVarP(&seedURL, "url", "u", "", "种子URL (必需,除非使用 --seed-file)")
	rootCmd.Flags().StringVarP(&seedFile, "seed-file", "f", "", "包含种子URL列表的文件路径")
	rootCmd.Flags().IntVarP(&maxDepth, "depth", "d", -1, "最大爬取深度 (0-20,0表示只爬种子页面,-1表示使用配置文件)")
	rootCmd.Flags().IntVar(&maxWorkers, "workers", 0, "并发worker数 (0表示使用配置文件/自动)")
	rootCmd.Flags().IntVar(&maxPagesPerDomain, "max-pages", 0, "每域名最大页面数 (0表示使用配置文件)")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", "", "渲染模式 (dynamic|static)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "输出目录")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
