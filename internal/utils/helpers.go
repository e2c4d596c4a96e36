package utils

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/RecoveryAshes/ProductFind/internal/models"
)

// ReadSeedURLs 从文件中读取种子URL列表
// 跳过空行、#注释行和格式无效的URL(记录警告后继续)。
func ReadSeedURLs(filepath string) ([]string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开种子文件失败: %w", err)
	}
	defer file.Close()

	urls := make([]string, 0)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// 验证URL格式
		if err := models.ValidateURL(line); err != nil {
			Warnf("跳过无效URL (行 %d): %s - %v", lineNum, line, err)
			continue
		}

		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取种子文件失败: %w", err)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("种子文件中没有有效的URL")
	}

	Infof("从文件加载了 %d 个种子URL", len(urls))
	return urls, nil
}
