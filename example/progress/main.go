package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vearne/parallel"
)

func crunch(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	for i := 1; i <= 10; i++ {
		time.Sleep(50 * time.Millisecond)
		if err := parallel.ReportProgress(ctx, float64(i)/10); err != nil {
			return nil, err
		}
	}
	return "done", nil
}

func main() {
	h, err := parallel.SubmitThread(crunch, nil, nil, parallel.WithName("crunch"))
	if err != nil {
		panic(err)
	}
	h.OnProgress(func(p float64) {
		fmt.Printf("progress: %.0f%%\n", p*100)
	})
	h.OnComplete(func(value any) {
		fmt.Println("finished with:", value)
	})

	if _, err := h.Get(); err != nil {
		fmt.Println("task failed:", err)
	}
	parallel.Shutdown(time.Second, true)
}
