package handler

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"chat-guard/internal/logger"
	"chat-guard/internal/models"
	"chat-guard/internal/service"
)

// statusWindow 状态页统计审计记录的时间范围
const statusWindow = 24 * time.Hour

// 统计信息
var (
	totalMessagesProcessed int64
	totalViolations        int64
	totalMutes             int64
	totalErrors            int64
	totalTimeouts          int64
	startTime              = time.Now()
)

// incrementCounter 安全地增加计数器
func incrementCounter(counter *int64) {
	atomic.AddInt64(counter, 1)
}

// GetProcessingStats 获取处理统计信息
func (m *Moderator) GetProcessingStats() map[string]interface{} {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return map[string]interface{}{
		"uptime_seconds":          int64(time.Since(startTime).Seconds()),
		"total_messages":          atomic.LoadInt64(&totalMessagesProcessed),
		"total_violations":        atomic.LoadInt64(&totalViolations),
		"total_mutes":             atomic.LoadInt64(&totalMutes),
		"total_errors":            atomic.LoadInt64(&totalErrors),
		"total_timeouts":          atomic.LoadInt64(&totalTimeouts),
		"violation_records":       m.tracker.Len(),
		"groups":                  m.policies.Len(),
		"active_handlers":         m.ActiveHandlers(),
		"max_concurrent_messages": cap(m.semaphore),
		"memory_usage_mb":         bToMb(ms.Alloc),
		"sys_memory_mb":           bToMb(ms.Sys),
		"gc_runs":                 ms.NumGC,
		"goroutines":              runtime.NumGoroutine(),
	}
}

// logProcessingStats 定期记录处理统计信息，直到 ctx 结束
func (m *Moderator) logProcessingStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		stats := m.GetProcessingStats()
		logger.Infof("Processing stats: %+v", stats)

		// 并发接近上限时记录警告
		if active := stats["active_handlers"].(int); active > cap(m.semaphore)*8/10 {
			logger.Warningf("High number of active handlers: %d", active)
		}

		// 如果错误率过高，记录警告
		totalMessages := stats["total_messages"].(int64)
		errs := stats["total_errors"].(int64)
		if totalMessages > 0 && float64(errs)/float64(totalMessages) > 0.1 {
			logger.Warningf("High error rate: %.2f%% (%d errors out of %d messages)",
				float64(errs)/float64(totalMessages)*100, errs, totalMessages)
		}
	}
}

// StartStatusMonitoring 启动状态监控
func (m *Moderator) StartStatusMonitoring(ctx context.Context) {
	go m.logProcessingStats(ctx, 5*time.Minute)
}

// bToMb 将字节转换为MB
func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// GetDetailedStatus 获取详细状态信息（用于调试）
func (m *Moderator) GetDetailedStatus() string {
	stats := m.GetProcessingStats()
	return fmt.Sprintf(`
=== chat-guard Moderation Status ===
Uptime: %d seconds
Groups: %d
Messages Processed: %d
Violations: %d
Mutes: %d
Errors: %d
Timeouts: %d
Live Violation Records: %d
Active Handlers: %d/%d
Memory Usage: %d MB
System Memory: %d MB
GC Runs: %d
Goroutines: %d
%s====================================
`,
		stats["uptime_seconds"],
		stats["groups"],
		stats["total_messages"],
		stats["total_violations"],
		stats["total_mutes"],
		stats["total_errors"],
		stats["total_timeouts"],
		stats["violation_records"],
		stats["active_handlers"],
		stats["max_concurrent_messages"],
		stats["memory_usage_mb"],
		stats["sys_memory_mb"],
		stats["gc_runs"],
		stats["goroutines"],
		m.groupSummary(),
	)
}

// groupSummary 列出已配置的群组及其最近的处理次数
func (m *Moderator) groupSummary() string {
	var b strings.Builder
	for _, groupID := range m.policies.GroupIDs() {
		policy, _ := m.policies.Get(groupID)
		fmt.Fprintf(&b, "Group %s: enabled=%v rules=%d", groupID, policy.Enabled, policy.Engine.Len())

		counts, err := service.CountRecentModeration(groupID, time.Now().Add(-statusWindow))
		switch {
		case err != nil:
			fmt.Fprintf(&b, " (audit error: %v)", err)
		case counts != nil:
			fmt.Fprintf(&b, " last %v: warn=%d recall=%d mute=%d", statusWindow,
				counts[models.ActionWarn], counts[models.ActionRecall], counts[models.ActionMute])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
