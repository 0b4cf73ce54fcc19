package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vearne/parallel"
)

func report(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	fmt.Println("running priority", args[0])
	return args[0], nil
}

func main() {
	// Queue everything first so the consumer pops strictly by priority.
	handles := make([]*parallel.AsyncHandle, 0, 3)
	for _, p := range []int64{1, 100, 10} {
		h, err := parallel.SubmitPriority(report, []any{p}, nil, p,
			parallel.WithName("report"))
		if err != nil {
			panic(err)
		}
		handles = append(handles, h)
	}

	parallel.StartPriorityWorker()
	defer parallel.StopPriorityWorker()

	for _, h := range handles {
		if _, err := h.Get(); err != nil {
			fmt.Println("task failed:", err)
		}
	}
	parallel.Shutdown(time.Second, true)
}
