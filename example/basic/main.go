package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vearne/parallel"
)

func slowSquare(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	n := args[0].(int)
	time.Sleep(100 * time.Millisecond)
	return n * n, nil
}

func main() {
	handles := make([]*parallel.AsyncHandle, 0, 5)
	for i := 1; i <= 5; i++ {
		h, err := parallel.SubmitThread(slowSquare, []any{i}, nil,
			parallel.WithName("slowSquare"))
		if err != nil {
			panic(err)
		}
		handles = append(handles, h)
	}

	for _, h := range handles {
		value, err := h.Get()
		if err != nil {
			fmt.Println("task failed:", err)
			continue
		}
		fmt.Printf("%s -> %v (%.0fms)\n", h.TaskID(), value,
			float64(h.ElapsedTime().Microseconds())/1000)
	}

	if snap, ok := parallel.GetMetrics("slowSquare"); ok {
		fmt.Printf("completed=%d avg=%.1fms\n",
			snap.CompletedTasks, snap.AverageExecutionTimeMS)
	}
	parallel.Shutdown(time.Second, true)
}
