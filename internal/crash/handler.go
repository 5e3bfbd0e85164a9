package crash

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"chat-guard/internal/logger"
)

// RecoverWithStack 恢复 panic 并记录堆栈，调用方继续运行
func RecoverWithStack(moduleName string) {
	if r := recover(); r != nil {
		reportPanic("PANIC", moduleName, r)
	}
}

// RecoverWithStackAndExit 用于主程序，记录后以非零状态退出
func RecoverWithStackAndExit(moduleName string) {
	if r := recover(); r != nil {
		reportPanic("FATAL PANIC", moduleName, r)
		logger.Sync()

		// 给日志系统一些时间写入文件
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}
}

// Guard runs fn and converts a panic into an error.
func Guard(moduleName string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			reportPanic("PANIC", moduleName, r)
			err = fmt.Errorf("panic in %s: %v", moduleName, r)
		}
	}()
	return fn()
}

// SafeGoroutine 启动一个带有 panic 恢复的 goroutine
func SafeGoroutine(name string, fn func()) {
	go func() {
		defer RecoverWithStack(fmt.Sprintf("goroutine-%s", name))
		fn()
	}()
}

func reportPanic(kind, moduleName string, r interface{}) {
	stack := debug.Stack()

	logger.Errorf("%s in %s: %v", kind, moduleName, r)
	logger.Errorf("Stack trace:\n%s", string(stack))

	// 同时输出到标准错误，确保在容器日志中能看到
	fmt.Fprintf(os.Stderr, "[%s] %s - %s: %v\n", kind, time.Now().Format("2006-01-02 15:04:05"), moduleName, r)

	logRuntimeInfo()
}

// logRuntimeInfo 记录运行时信息，帮助调试
func logRuntimeInfo() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	logger.Errorf("Runtime: go=%s cpus=%d goroutines=%d heap_alloc=%dKB heap_inuse=%dKB num_gc=%d",
		runtime.Version(),
		runtime.NumCPU(),
		runtime.NumGoroutine(),
		m.HeapAlloc/1024,
		m.HeapInuse/1024,
		m.NumGC,
	)
}

// SetupCrashHandler 设置全局的崩溃处理器
func SetupCrashHandler() {
	debug.SetPanicOnFault(true)
}
