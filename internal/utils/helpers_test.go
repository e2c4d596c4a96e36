package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seeds.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入种子文件失败: %v", err)
	}
	return path
}

func TestReadSeedURLs(t *testing.T) {
	path := writeSeedFile(t, `# 电商站点种子列表
https://www.zalando.de/

https://www.otto.de/
not-a-url
ftp://example.com/file
  https://www.aboutyou.de/
`)

	urls, err := ReadSeedURLs(path)
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}

	expected := []string{
		"https://www.zalando.de/",
		"https://www.otto.de/",
		"https://www.aboutyou.de/",
	}
	if len(urls) != len(expected) {
		t.Fatalf("期望%d个URL, 实际%d个: %v", len(expected), len(urls), urls)
	}
	for i, url := range expected {
		if urls[i] != url {
			t.Errorf("URL[%d]: 期望 %q, 实际 %q", i, url, urls[i])
		}
	}
}

func TestReadSeedURLsNoValidEntries(t *testing.T) {
	path := writeSeedFile(t, `# 只有注释和无效行
not-a-url
`)

	if _, err := ReadSeedURLs(path); err == nil {
		t.Error("没有有效URL时应返回错误")
	}
}

func TestReadSeedURLsMissingFile(t *testing.T) {
	if _, err := ReadSeedURLs(filepath.Join(t.TempDir(), "nonexistent.txt")); err == nil {
		t.Error("文件不存在时应返回错误")
	}
}
