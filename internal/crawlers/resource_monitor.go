package crawlers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 职责: 实时监控内存和CPU,推导初始worker并发数,并在资源紧张时
// 阻止PagePool继续创建新的浏览器标签页。
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 缓存的内存统计数据
	lastMemStats runtime.MemStats

	// 系统总内存(字节)
	totalMemory uint64

	// 缓存的CalculateMaxWorkers结果(每秒更新一次)
	cachedMaxWorkers int
	lastCacheTime    time.Time
	cacheMu          sync.RWMutex

	// CPU使用率监控
	lastCPUUsage float64
	cpuUsageMu   sync.RWMutex

	// 保护lastMemStats的读写锁
	mu sync.RWMutex

	// 监控控制
	cancelFunc context.CancelFunc
	isRunning  bool
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	SafetyThreshold     int64 // 安全阈值(字节)
	CPULoadThreshold    int   // CPU负载阈值(%)
	MaxWorkersLimit     int   // 绝对最大worker数
	WorkerMemoryUsage   int64 // 单个worker(含标签页)平均内存消耗(字节)
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.WorkerMemoryUsage == 0 {
		config.WorkerMemoryUsage = 100 * 1024 * 1024 // 100MB
	}
	if config.MaxWorkersLimit < 1 {
		config.MaxWorkersLimit = 1
	}

	// 获取系统总内存(使用gopsutil获取真实系统内存)
	vmStat, err := mem.VirtualMemory()
	var totalMem uint64
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,使用默认值")
		totalMem = 4 * 1024 * 1024 * 1024 // 默认4GB
	} else {
		totalMem = vmStat.Total
		log.Info().Msgf("系统总内存: %.2f GB", float64(totalMem)/(1024*1024*1024))
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &ResourceMonitor{
		config:       config,
		totalMemory:  totalMem,
		lastMemStats: memStats,
	}
}

// InitialWorkers 计算运行起始的worker并发数
// autoScale开启时取CPU核数的1/4(至少2)与资源推导上限的较小值,
// 关闭时直接使用配置值;两种情况都不超过配置上限。
func (rm *ResourceMonitor) InitialWorkers(autoScale bool, configured int) int {
	if configured < 1 {
		configured = 1
	}
	if !autoScale {
		return configured
	}

	byCPU := runtime.NumCPU() / 4
	if byCPU < 2 {
		byCPU = 2
	}

	workers := byCPU
	if byResource := rm.CalculateMaxWorkers(); byResource < workers {
		workers = byResource
	}
	if workers > configured {
		workers = configured
	}
	if workers < 1 {
		workers = 1
	}

	log.Info().Msgf("🔧 自动并发: 初始worker数=%d (CPU核数=%d, 配置上限=%d)", workers, runtime.NumCPU(), configured)
	return workers
}

// StartMonitoring 启动资源监控
// 后台goroutine周期性采样内存统计和CPU使用率,幂等。
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go rm.monitoringLoop(ctx, interval)
}

// monitoringLoop 后台监控循环
func (rm *ResourceMonitor) monitoringLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)

			rm.mu.Lock()
			rm.lastMemStats = memStats
			rm.mu.Unlock()

			cpuUsage := rm.sampleCPUUsage()
			rm.cpuUsageMu.Lock()
			rm.lastCPUUsage = cpuUsage
			rm.cpuUsageMu.Unlock()
		}
	}
}

// sampleCPUUsage 采样系统CPU使用率(百分比)
// 100毫秒采样间隔,避免阻塞过久;perCPU=false返回所有核心的平均值。
func (rm *ResourceMonitor) sampleCPUUsage() float64 {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percentages) == 0 {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
		return 0.0
	}
	return percentages[0]
}

// StopMonitoring 停止资源监控
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

// CalculateMaxWorkers 动态计算当前允许的最大worker数
// 基于可用内存、CPU核数与配置上限取最小值,结果缓存1秒。
func (rm *ResourceMonitor) CalculateMaxWorkers() int {
	rm.cacheMu.RLock()
	if time.Since(rm.lastCacheTime) < time.Second && rm.cachedMaxWorkers > 0 {
		cached := rm.cachedMaxWorkers
		rm.cacheMu.RUnlock()
		return cached
	}
	rm.cacheMu.RUnlock()

	rm.mu.RLock()
	memStats := rm.lastMemStats
	rm.mu.RUnlock()

	availableMemory := int64(rm.totalMemory) - int64(memStats.Alloc) - rm.config.SafetyReserveMemory

	byMemory := 1
	if availableMemory > rm.config.SafetyThreshold {
		surplus := availableMemory - rm.config.SafetyThreshold
		byMemory = int(surplus / rm.config.WorkerMemoryUsage)
		if byMemory < 1 {
			byMemory = 1
		}
	}

	result := byMemory
	if byCPU := runtime.NumCPU(); byCPU < result {
		result = byCPU
	}
	if rm.config.MaxWorkersLimit < result {
		result = rm.config.MaxWorkersLimit
	}
	if result < 1 {
		result = 1
	}

	rm.cacheMu.Lock()
	rm.cachedMaxWorkers = result
	rm.lastCacheTime = time.Now()
	rm.cacheMu.Unlock()

	return result
}

// CheckResourceAvailability 检查当前资源是否允许创建新标签页
// 返回canCreate(是否允许)和reason(不允许时的原因)
func (rm *ResourceMonitor) CheckResourceAvailability() (canCreate bool, reason string) {
	rm.mu.RLock()
	memStats := rm.lastMemStats
	rm.mu.RUnlock()

	availableMemory := int64(rm.totalMemory) - int64(memStats.Alloc) - rm.config.SafetyReserveMemory
	if availableMemory < rm.config.SafetyThreshold {
		availableMemoryMB := availableMemory / (1024 * 1024)
		log.Warn().Msgf("可用内存不足(当前%dMB),标签页创建受限", availableMemoryMB)
		return false, fmt.Sprintf("内存不足(当前%dMB)", availableMemoryMB)
	}

	// 阈值 >= 200 视为禁用CPU检查
	if rm.config.CPULoadThreshold < 200 {
		rm.cpuUsageMu.RLock()
		cpuUsage := rm.lastCPUUsage
		rm.cpuUsageMu.RUnlock()

		if cpuUsage > float64(rm.config.CPULoadThreshold) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", cpuUsage)
		}
	}

	return true, ""
}
