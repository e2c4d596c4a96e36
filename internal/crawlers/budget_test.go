package crawlers

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBudgetPerDomain(t *testing.T) {
	b := NewBudget(3, 0, 0)

	for i := 0; i < 3; i++ {
		if !b.TryVisit("a.com") {
			t.Fatalf("第%d次访问应在预算内", i+1)
		}
	}
	if b.TryVisit("a.com") {
		t.Error("超出每域名预算后应拒绝")
	}
	if !b.TryVisit("b.com") {
		t.Error("其他域名不受影响")
	}
	if !b.DomainExhausted("a.com") {
		t.Error("a.com预算应已用尽")
	}
	if b.DomainExhausted("b.com") {
		t.Error("b.com预算不应用尽")
	}
}

func TestBudgetGlobalPages(t *testing.T) {
	b := NewBudget(0, 5, 0)

	for i := 0; i < 5; i++ {
		if !b.TryVisit("a.com") {
			t.Fatalf("第%d次访问应在预算内", i+1)
		}
	}
	if b.TryVisit("b.com") {
		t.Error("全局预算用尽后任何域名都应被拒绝")
	}
	if !b.GlobalExhausted() {
		t.Error("全局预算应已用尽")
	}
}

func TestBudgetUnlimited(t *testing.T) {
	b := NewBudget(0, 0, 0)

	for i := 0; i < 1000; i++ {
		if !b.TryVisit("a.com") {
			t.Fatal("0表示不限制")
		}
	}
	if b.GlobalExhausted() {
		t.Error("无限预算不应用尽")
	}
}

func TestBudgetElapsed(t *testing.T) {
	b := NewBudget(0, 0, 10*time.Millisecond)

	if b.GlobalExhausted() {
		t.Error("刚创建时不应用尽")
	}
	time.Sleep(20 * time.Millisecond)
	if !b.GlobalExhausted() {
		t.Error("超过时长上限后应用尽")
	}
}

func TestBudgetConcurrentNoOvershoot(t *testing.T) {
	const limit = 10
	b := NewBudget(limit, 0, 0)

	var granted int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.TryVisit("a.com") {
				atomic.AddInt32(&granted, 1)
			}
		}()
	}
	wg.Wait()

	if granted != limit {
		t.Errorf("并发下应恰好放行%d次, 实际%d次", limit, granted)
	}
	if b.DomainVisited("a.com") != limit {
		t.Errorf("计数应为%d, 实际%d", limit, b.DomainVisited("a.com"))
	}
}
