package utils

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/RecoveryAshes/ProductFind/internal/models"
)

// FileSink 商品链接结果落盘
// 职责: 把发现的商品URL去重后流式写入两个文件:
//   - results_<时间戳>.txt: 每行一个商品URL,便于直接消费
//   - results_<时间戳>.jsonl: 按来源页面聚合的ProductRecord记录
//
// 写入是追加式的,运行中途被终止时已发现的结果不丢失。
type FileSink struct {
	mu sync.Mutex

	// 已写入的商品URL集合(跨页面去重)
	seen map[string]struct{}

	txtFile    *os.File
	txtWriter  *bufio.Writer
	jsonFile   *os.File
	jsonWriter *bufio.Writer

	txtPath  string
	jsonPath string

	closed bool
}

// NewFileSink 创建结果落盘器,输出文件名带启动时间戳
func NewFileSink(outputDir string) (*FileSink, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	txtPath := filepath.Join(outputDir, fmt.Sprintf("results_%s.txt", timestamp))
	jsonPath := filepath.Join(outputDir, fmt.Sprintf("results_%s.jsonl", timestamp))

	txtFile, err := os.OpenFile(txtPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("创建结果文件失败: %w", err)
	}

	jsonFile, err := os.OpenFile(jsonPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		txtFile.Close()
		return nil, fmt.Errorf("创建JSONL记录文件失败: %w", err)
	}

	Infof("结果文件: %s", txtPath)

	return &FileSink{
		seen:       make(map[string]struct{}),
		txtFile:    txtFile,
		txtWriter:  bufio.NewWriter(txtFile),
		jsonFile:   jsonFile,
		jsonWriter: bufio.NewWriter(jsonFile),
		txtPath:    txtPath,
		jsonPath:   jsonPath,
	}, nil
}

// Record 记录一个页面发现的商品链接
// 去重后写入文本文件,并追加一条按页面聚合的JSONL记录。
// 返回本次新增的商品链接数。
func (fs *FileSink) Record(domain string, parentLink string, productLinks []string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return 0
	}

	fresh := make([]string, 0, len(productLinks))
	for _, link := range productLinks {
		if _, dup := fs.seen[link]; dup {
			continue
		}
		fs.seen[link] = struct{}{}
		fresh = append(fresh, link)
	}

	if len(fresh) == 0 {
		return 0
	}

	for _, link := range fresh {
		if _, err := fs.txtWriter.WriteString(link + "\n"); err != nil {
			Errorf("写入结果文件失败: %v", err)
		}
	}

	record := models.ProductRecord{
		Domain:       domain,
		ParentLink:   parentLink,
		Count:        len(fresh),
		ProductLinks: fresh,
	}
	line, err := json.Marshal(record)
	if err != nil {
		Errorf("序列化商品记录失败: %v", err)
	} else {
		fs.jsonWriter.Write(line)
		fs.jsonWriter.WriteByte('\n')
	}

	// 每条记录后刷新,中途终止时不丢数据
	fs.txtWriter.Flush()
	fs.jsonWriter.Flush()

	return len(fresh)
}

// TotalProducts 返回已记录的去重商品URL总数
func (fs *FileSink) TotalProducts() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.seen)
}

// ResultsPath 文本结果文件路径
func (fs *FileSink) ResultsPath() string {
	return fs.txtPath
}

// RecordsPath JSONL记录文件路径
func (fs *FileSink) RecordsPath() string {
	return fs.jsonPath
}

// Close 写入完成标记并关闭文件
func (fs *FileSink) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return nil
	}
	fs.closed = true

	fs.txtWriter.WriteString(fmt.Sprintf("# crawl complete %s\n", time.Now().Format(time.RFC3339)))
	fs.txtWriter.Flush()
	fs.jsonWriter.Flush()

	var firstErr error
	if err := fs.txtFile.Close(); err != nil {
		firstErr = err
	}
	if err := fs.jsonFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
