package crawlers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFrontierEnqueueDedup(t *testing.T) {
	f := NewFrontier([]string{"ref"})

	if !f.Enqueue("https://shop.example.com/p/1", "example.com", 0) {
		t.Fatal("首次入队应该成功")
	}

	tests := []struct {
		name string
		url  string
	}{
		{"完全相同的URL", "https://shop.example.com/p/1"},
		{"大小写不同的主机", "https://SHOP.EXAMPLE.COM/p/1"},
		{"带fragment", "https://shop.example.com/p/1#reviews"},
		{"带跟踪参数", "https://shop.example.com/p/1?ref=home"},
		{"带utm参数", "https://shop.example.com/p/1?utm_source=mail"},
		{"末尾斜杠", "https://shop.example.com/p/1/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if f.Enqueue(tt.url, "example.com", 1) {
				t.Errorf("等价URL不应重复入队: %s", tt.url)
			}
		})
	}

	if f.PendingCount() != 1 {
		t.Errorf("期望队列长度1, 实际%d", f.PendingCount())
	}
}

func TestFrontierConcurrentEnqueueExactlyOnce(t *testing.T) {
	f := NewFrontier(nil)

	const workers = 32
	var successes int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Enqueue("https://shop.example.com/p/42", "example.com", 0) {
				atomic.AddInt32(&successes, 1)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("并发入队同一URL应恰好成功1次, 实际%d次", successes)
	}
}

func TestFrontierRoundRobin(t *testing.T) {
	f := NewFrontier(nil)

	// 三个域名各入队2个URL
	for i := 0; i < 2; i++ {
		f.Enqueue(fmt.Sprintf("https://a.com/page%d", i), "a.com", 0)
		f.Enqueue(fmt.Sprintf("https://b.com/page%d", i), "b.com", 0)
		f.Enqueue(fmt.Sprintf("https://c.com/page%d", i), "c.com", 0)
	}

	ctx := context.Background()
	var order []string
	for i := 0; i < 6; i++ {
		entry, ok := f.Dequeue(ctx)
		if !ok {
			t.Fatalf("第%d次出队失败", i)
		}
		order = append(order, entry.Domain)
		f.TaskDone()
	}

	expected := []string{"a.com", "b.com", "c.com", "a.com", "b.com", "c.com"}
	for i := range expected {
		if order[i] != expected[i] {
			t.Fatalf("轮询顺序错误: 期望%v, 实际%v", expected, order)
		}
	}
}

func TestFrontierDomainFIFO(t *testing.T) {
	f := NewFrontier(nil)
	f.Enqueue("https://a.com/first", "a.com", 0)
	f.Enqueue("https://a.com/second", "a.com", 0)

	ctx := context.Background()
	first, _ := f.Dequeue(ctx)
	second, _ := f.Dequeue(ctx)

	if first.URL != "https://a.com/first" || second.URL != "https://a.com/second" {
		t.Errorf("同域名应FIFO出队: %s, %s", first.URL, second.URL)
	}
}

func TestFrontierExhaustion(t *testing.T) {
	f := NewFrontier(nil)
	f.Enqueue("https://a.com/only", "a.com", 0)

	ctx := context.Background()
	_, ok := f.Dequeue(ctx)
	if !ok {
		t.Fatal("出队应成功")
	}

	// in-flight期间另一个worker的Dequeue应阻塞等待,
	// TaskDone后无新入队则返回false
	done := make(chan bool)
	go func() {
		_, ok := f.Dequeue(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	f.TaskDone()

	select {
	case ok := <-done:
		if ok {
			t.Error("队列耗尽后Dequeue应返回false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue未在队列耗尽后返回")
	}

	if !f.IsExhausted() {
		t.Error("队列应处于耗尽状态")
	}
}

func TestFrontierInFlightBlocksExit(t *testing.T) {
	f := NewFrontier(nil)
	f.Enqueue("https://a.com/page", "a.com", 0)

	ctx := context.Background()
	entry, _ := f.Dequeue(ctx)

	// 第二个worker在in-flight期间阻塞,处理者入队新URL后应能取到
	got := make(chan string, 1)
	go func() {
		e, ok := f.Dequeue(ctx)
		if ok {
			got <- e.URL
		} else {
			got <- ""
		}
	}()

	time.Sleep(20 * time.Millisecond)
	f.Enqueue("https://a.com/discovered", entry.Domain, entry.Depth+1)
	f.TaskDone()

	select {
	case url := <-got:
		if url != "https://a.com/discovered" {
			t.Errorf("期望取到新发现的URL, 实际: %q", url)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("阻塞的Dequeue未被新入队唤醒")
	}
}

func TestFrontierDequeueContextCancel(t *testing.T) {
	f := NewFrontier(nil)
	f.Enqueue("https://a.com/page", "a.com", 0)
	f.Dequeue(context.Background()) // 取走唯一条目,保持in-flight

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		_, ok := f.Dequeue(ctx)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("context取消后Dequeue应返回false")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue未响应context取消")
	}
}

func TestFrontierClose(t *testing.T) {
	f := NewFrontier(nil)
	f.Close()

	if f.Enqueue("https://a.com/page", "a.com", 0) {
		t.Error("关闭后入队应被拒绝")
	}

	_, ok := f.Dequeue(context.Background())
	if ok {
		t.Error("关闭后Dequeue应返回false")
	}
}
