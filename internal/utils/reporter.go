package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/ProductFind/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
	}
}

// GenerateReport 生成爬取运行报告
func (r *Reporter) GenerateReport(
	runID string,
	seeds []string,
	stats models.CrawlStats,
	config models.CrawlConfig,
	resultsFile string,
	recordsFile string,
) error {
	reportsDir := filepath.Join(r.outputDir, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	endTime := time.Now()
	report := models.RunReport{
		RunID:       runID,
		StartTime:   endTime.Add(-time.Duration(stats.Duration * float64(time.Second))),
		EndTime:     endTime,
		Seeds:       seeds,
		Stats:       stats,
		Config:      config,
		OutputDir:   r.outputDir,
		ResultsFile: resultsFile,
		RecordsFile: recordsFile,
	}

	filename := fmt.Sprintf("crawl_report_%s.json", runID)
	if err := r.saveJSONReport(reportsDir, filename, report); err != nil {
		return err
	}

	Infof("✅ 报告已生成: %s", filepath.Join(reportsDir, filename))
	return nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(dir string, filename string, data interface{}) error {
	filePath := filepath.Join(dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(filePath, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", filePath)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
