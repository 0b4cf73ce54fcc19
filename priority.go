package parallel

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	slog "github.com/vearne/simplelog"
)

const (
	priorityIdleSleep = 10 * time.Millisecond
	priorityStopWait  = 5 * time.Second
)

// priorityTask orders queued work: higher priority pops first, FIFO among
// equals via the monotonically assigned seq.
type priorityTask struct {
	priority int64
	seq      uint64
	t        *task
}

type priorityHeap []*priorityTask

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap) Push(x any) {
	*h = append(*h, x.(*priorityTask))
}

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var (
	priorityMutex sync.Mutex
	priorityQueue priorityHeap
	prioritySeq   atomic.Uint64

	supervisorMutex sync.Mutex
	consumer        *priorityConsumer
)

func pushPriorityTask(priority int64, t *task) {
	pt := &priorityTask{
		priority: priority,
		seq:      prioritySeq.Add(1),
		t:        t,
	}
	priorityMutex.Lock()
	heap.Push(&priorityQueue, pt)
	priorityMutex.Unlock()
}

func popPriorityTask() *task {
	priorityMutex.Lock()
	defer priorityMutex.Unlock()
	if priorityQueue.Len() == 0 {
		return nil
	}
	return heap.Pop(&priorityQueue).(*priorityTask).t
}

// priorityConsumer is the singleton worker draining the heap, owned by the
// supervisor. Stop follows the running-flag plus exit-channel protocol.
type priorityConsumer struct {
	RunningFlag *AtomicBool
	ExitChan    chan struct{}
	ExitedFlag  chan struct{}
}

func newPriorityConsumer() *priorityConsumer {
	c := priorityConsumer{}
	c.RunningFlag = NewAtomicBool(true)
	c.ExitChan = make(chan struct{})
	c.ExitedFlag = make(chan struct{})
	return &c
}

func (c *priorityConsumer) run() {
	for c.RunningFlag.IsTrue() {
		// The heap lock is never held across execution.
		if t := popPriorityTask(); t != nil {
			execute(t)
			continue
		}
		select {
		case <-c.ExitChan:
			slog.Debug("priority consumer exiting")
		case <-time.After(priorityIdleSleep):
		}
	}
	close(c.ExitedFlag)
}

func (c *priorityConsumer) stop() {
	c.RunningFlag.Set(false)
	close(c.ExitChan)

	select {
	case <-c.ExitedFlag:
	case <-time.After(priorityStopWait):
		slog.Warn("priority consumer did not stop within %v", priorityStopWait)
	}
}

// StartPriorityWorker spawns the singleton consumer. Starting an already
// running consumer is a no-op. Items queued while stopped execute after a
// restart.
func StartPriorityWorker() {
	supervisorMutex.Lock()
	defer supervisorMutex.Unlock()
	if consumer != nil {
		return
	}
	consumer = newPriorityConsumer()
	go consumer.run()
}

// StopPriorityWorker stops the consumer and joins it with a bounded wait.
// Queued items stay on the heap.
func StopPriorityWorker() {
	supervisorMutex.Lock()
	c := consumer
	consumer = nil
	supervisorMutex.Unlock()
	if c != nil {
		c.stop()
	}
}

// IsPriorityWorkerRunning reports whether the consumer is live.
func IsPriorityWorkerRunning() bool {
	supervisorMutex.Lock()
	defer supervisorMutex.Unlock()
	return consumer != nil && consumer.RunningFlag.IsTrue()
}

// SubmitPriority queues fn on the priority heap (Strategy C). Higher
// priority runs sooner; the consumer must be started for the queue to
// drain.
func SubmitPriority(fn HostFunc, args []any, kwargs map[string]any, priority int64, opts ...Option) (*AsyncHandle, error) {
	t, err := newTask(fn, args, kwargs, opts)
	if err != nil {
		return nil, err
	}
	pushPriorityTask(priority, t)
	return t.handle, nil
}
