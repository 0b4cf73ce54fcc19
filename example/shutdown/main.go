package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vearne/parallel"
)

func sleepy(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	select {
	case <-time.After(500 * time.Millisecond):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func main() {
	if err := parallel.SetMaxConcurrentTasks(4); err != nil {
		panic(err)
	}

	for i := 0; i < 4; i++ {
		_, err := parallel.SubmitThread(sleepy, nil, nil, parallel.WithName("sleepy"))
		if err != nil {
			panic(err)
		}
	}

	fmt.Println("active tasks:", parallel.GetActiveTaskCount())
	ok := parallel.Shutdown(2*time.Second, true)
	fmt.Println("quiesced:", ok, "active:", parallel.GetActiveTaskCount())
}
