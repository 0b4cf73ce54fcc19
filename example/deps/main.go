package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vearne/parallel"
)

func fetch(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	return 10, nil
}

func double(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	deps := args[0].([]any)
	return deps[0].(int) * 2, nil
}

func addFive(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	deps := args[0].([]any)
	return deps[0].(int) + 5, nil
}

func main() {
	h1, err := parallel.SubmitThread(fetch, nil, nil)
	if err != nil {
		panic(err)
	}
	h2, err := parallel.SubmitWithDeps(double, nil, nil, parallel.DependsOn(h1))
	if err != nil {
		panic(err)
	}
	h3, err := parallel.SubmitWithDeps(addFive, nil, nil, parallel.DependsOn(h2))
	if err != nil {
		panic(err)
	}

	value, err := h3.Get()
	if err != nil {
		panic(err)
	}
	fmt.Println("pipeline result:", value) // 25
	parallel.Shutdown(time.Second, true)
}
