package models

import "time"

// RunReport 一次爬取运行的完整报告
// 以JSON形式保存到输出目录,供后续分析和审计。
type RunReport struct {
	RunID     string    `json:"run_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Seeds []string `json:"seeds"`

	Stats  CrawlStats  `json:"stats"`
	Config CrawlConfig `json:"config"`

	OutputDir   string `json:"output_dir"`
	ResultsFile string `json:"results_file"`
	RecordsFile string `json:"records_file"`
}
