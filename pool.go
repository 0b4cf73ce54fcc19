package parallel

import (
	"fmt"
	"runtime"
	"sync"

	slog "github.com/vearne/simplelog"
)

// SIZE is the default depth of the pool's task queue.
const SIZE = 1024

// threadPool is the process-wide pool behind Strategy B: a fixed set of
// workers draining a shared task channel. Intended for large fan-outs of
// short tasks where a goroutine per task is wasteful.
type threadPool struct {
	wg sync.WaitGroup

	size      int
	stackSize int
	// task queue
	taskChan   chan *task
	isShutdown *AtomicBool
}

func newThreadPool(size, stackSize, queueCap int) *threadPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if queueCap < 0 {
		queueCap = 0
	}
	pool := threadPool{}
	pool.size = size
	pool.stackSize = stackSize
	pool.isShutdown = NewAtomicBool(false)
	pool.taskChan = make(chan *task, queueCap)
	for i := 0; i < size; i++ {
		go pool.consume()
	}
	return &pool
}

func (p *threadPool) consume() {
	for t := range p.taskChan {
		execute(t)
		p.wg.Done()
	}
}

// submit may block when the queue is full; that is the pool's natural
// backpressure on top of the admission controller's.
func (p *threadPool) submit(t *task) error {
	if p.isShutdown.IsTrue() {
		return ErrPoolShutdown
	}
	p.wg.Add(1)
	p.taskChan <- t
	return nil
}

func (p *threadPool) shutdown() {
	if p.isShutdown.IsTrue() {
		return
	}
	p.isShutdown.Set(true)
	close(p.taskChan)
}

func (p *threadPool) waitTerminate() {
	p.wg.Wait()
}

var (
	poolMutex  sync.Mutex
	globalPool *threadPool
	poolSetup  bool
)

// ConfigureThreadPool sizes the shared pool. Goroutine stacks grow on
// demand, so stackSize is recorded for diagnostics only. Reconfiguring
// drains the previous pool's queue before its workers exit.
func ConfigureThreadPool(numThreads, stackSize int) error {
	if numThreads <= 0 {
		return fmt.Errorf("%w: num threads must be >= 1, got %d", ErrInvalidValue, numThreads)
	}
	if stackSize < 0 {
		return fmt.Errorf("%w: stack size must be >= 0, got %d", ErrInvalidValue, stackSize)
	}
	poolMutex.Lock()
	defer poolMutex.Unlock()
	if globalPool != nil {
		globalPool.shutdown()
	}
	globalPool = newThreadPool(numThreads, stackSize, SIZE)
	poolSetup = true
	slog.Debug("thread pool configured: %d workers", numThreads)
	return nil
}

// ThreadPoolInfo describes the shared pool.
type ThreadPoolInfo struct {
	Configured bool `json:"configured"`
	NumThreads int  `json:"num_threads"`
	StackSize  int  `json:"stack_size"`
}

func GetThreadPoolInfo() ThreadPoolInfo {
	poolMutex.Lock()
	defer poolMutex.Unlock()
	if globalPool == nil {
		return ThreadPoolInfo{Configured: false, NumThreads: runtime.NumCPU()}
	}
	return ThreadPoolInfo{
		Configured: poolSetup,
		NumThreads: globalPool.size,
		StackSize:  globalPool.stackSize,
	}
}

func getOrCreatePool() *threadPool {
	poolMutex.Lock()
	defer poolMutex.Unlock()
	if globalPool == nil {
		globalPool = newThreadPool(runtime.NumCPU(), 0, SIZE)
	}
	return globalPool
}

// SubmitPool schedules fn on the shared worker pool (Strategy B). The
// returned handle honors the same contract as every other strategy.
func SubmitPool(fn HostFunc, args []any, kwargs map[string]any, opts ...Option) (*AsyncHandle, error) {
	t, err := newTask(fn, args, kwargs, opts)
	if err != nil {
		return nil, err
	}
	if err := getOrCreatePool().submit(t); err != nil {
		finalizeTask(t.id)
		return nil, err
	}
	return t.handle, nil
}

// shutdownPool stops the shared pool and waits for queued work to drain.
func shutdownPool() {
	poolMutex.Lock()
	pool := globalPool
	globalPool = nil
	poolSetup = false
	poolMutex.Unlock()
	if pool != nil {
		pool.shutdown()
		pool.waitTerminate()
	}
}
