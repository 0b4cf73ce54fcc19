package parallel

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shirou/gopsutil/v4/mem"
	slog "github.com/vearne/simplelog"
)

const (
	slotWaitInitial = 10 * time.Millisecond
	slotWaitMax     = time.Second
	slotWaitCeiling = 5 * time.Minute

	// memProbeInterval caps how often the system memory probe runs, so the
	// gate never dominates admission cost.
	memProbeInterval = 100 * time.Millisecond
)

var (
	limitsMutex        sync.RWMutex
	maxConcurrentTasks int
	memoryLimitPercent float64

	memProbeMutex   sync.Mutex
	memProbeAt      time.Time
	memUsedPercent  float64
	memProbeFailure error
)

// SetMaxConcurrentTasks caps how many tasks may be in flight at once.
func SetMaxConcurrentTasks(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: max concurrent tasks must be >= 1, got %d", ErrInvalidValue, n)
	}
	limitsMutex.Lock()
	maxConcurrentTasks = n
	limitsMutex.Unlock()
	return nil
}

// ClearMaxConcurrentTasks removes the concurrency cap.
func ClearMaxConcurrentTasks() {
	limitsMutex.Lock()
	maxConcurrentTasks = 0
	limitsMutex.Unlock()
}

// ConfigureMemoryLimit denies admission while system-wide used memory
// exceeds the given percentage of total system memory.
func ConfigureMemoryLimit(percent float64) error {
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent <= 0 || percent > 100 {
		return fmt.Errorf("%w: memory limit must be in (0, 100], got %v", ErrInvalidValue, percent)
	}
	limitsMutex.Lock()
	memoryLimitPercent = percent
	limitsMutex.Unlock()
	return nil
}

// ClearMemoryLimit removes the memory gate.
func ClearMemoryLimit() {
	limitsMutex.Lock()
	memoryLimitPercent = 0
	limitsMutex.Unlock()
}

func getMaxConcurrent() int {
	limitsMutex.RLock()
	defer limitsMutex.RUnlock()
	return maxConcurrentTasks
}

func getMemoryLimit() float64 {
	limitsMutex.RLock()
	defer limitsMutex.RUnlock()
	return memoryLimitPercent
}

// admit gates every submission: shutdown check, memory gate, then the
// concurrency-cap wait. A shutdown observed at any point fails the
// submission cleanly.
func admit() error {
	if isShutdownRequested() {
		return ErrShutdownInProgress
	}
	if err := checkMemory(); err != nil {
		return err
	}
	if err := waitForSlot(); err != nil {
		return err
	}
	if isShutdownRequested() {
		return ErrShutdownInProgress
	}
	return nil
}

func checkMemory() error {
	limit := getMemoryLimit()
	if limit <= 0 {
		return nil
	}
	used, err := usedMemoryPercent()
	if err != nil {
		// A broken probe must not wedge submissions; log and admit.
		slog.Warn("memory probe failed, admitting task: %v", err)
		return nil
	}
	if used > limit {
		slog.Warn("memory limit exceeded: %.1f%% used (limit: %.4f%%)", used, limit)
		return fmt.Errorf("%w: %.1f%% used, limit %.4f%%", ErrMemoryLimitExceeded, used, limit)
	}
	slog.Debug("memory usage: %.1f%%", used)
	return nil
}

// usedMemoryPercent reads system memory usage, reusing the last probe for
// memProbeInterval to amortize cost across bursts of submissions.
func usedMemoryPercent() (float64, error) {
	memProbeMutex.Lock()
	defer memProbeMutex.Unlock()
	if time.Since(memProbeAt) < memProbeInterval {
		return memUsedPercent, memProbeFailure
	}
	memProbeAt = time.Now()
	vm, err := mem.VirtualMemory()
	if err != nil {
		memProbeFailure = err
		return 0, err
	}
	memUsedPercent = vm.UsedPercent
	memProbeFailure = nil
	return memUsedPercent, nil
}

// waitForSlot blocks while the active set is at the cap, backing off
// exponentially from 10ms to 1s. It gives up after 5 minutes (the caller
// proceeds; the launch will contend like any other) and returns early when
// shutdown begins.
func waitForSlot() error {
	max := getMaxConcurrent()
	if max <= 0 {
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = slotWaitInitial
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = slotWaitMax

	start := time.Now()
	for GetActiveTaskCount() >= max {
		if isShutdownRequested() {
			slog.Warn("slot wait cancelled: shutdown in progress")
			return ErrShutdownInProgress
		}
		if time.Since(start) > slotWaitCeiling {
			slog.Error("slot wait timed out after %v", slotWaitCeiling)
			return nil
		}
		d := bo.NextBackOff()
		if d == backoff.Stop || d <= 0 {
			d = slotWaitMax
		}
		time.Sleep(d)
	}
	return nil
}
