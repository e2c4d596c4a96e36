package main

import (
	"fmt"

	"github.com/RecoveryAshes/ProductFind/internal/models"
)

// ValidateFlags 验证命令行标志
func ValidateFlags(
	seedURL string,
	maxDepth int,
	maxWorkers int,
	mode string,
) error {
	// 验证URL
	if seedURL != "" {
		if err := models.ValidateURL(seedURL); err != nil {
			return fmt.Errorf("无效的种子URL: %w", err)
		}
	}

	// 验证深度 (-1表示沿用配置文件)
	if maxDepth < -1 || maxDepth > 20 {
		return fmt.Errorf("爬取深度必须在0-20之间,当前值: %d", maxDepth)
	}

	// 验证并发数 (0表示沿用配置文件)
	if maxWorkers < 0 || maxWorkers > 128 {
		return fmt.Errorf("并发数必须在1-128之间,当前值: %d", maxWorkers)
	}

	// 验证模式 (空表示沿用配置文件)
	if mode != "" && mode != models.ModeDynamic && mode != models.ModeStatic {
		return fmt.Errorf("无效的渲染模式: %s (有效值: dynamic, static)", mode)
	}

	return nil
}
