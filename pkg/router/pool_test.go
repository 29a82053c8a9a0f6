package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_SerializesPerConversation(t *testing.T) {
	pool := NewWorkerPool(context.Background())
	defer pool.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(5)

	for i := 0; i < 5; i++ {
		i := i
		pool.Dispatch("c1", func(ctx context.Context) {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order, "tasks for the same conversation must run in dispatch order")
}

func TestWorkerPool_RunsDifferentConversationsConcurrently(t *testing.T) {
	pool := NewWorkerPool(context.Background())
	defer pool.Stop()

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	results := make(chan string, 2)
	pool.Dispatch("c1", func(ctx context.Context) {
		defer wg.Done()
		<-start
		results <- "c1"
	})
	pool.Dispatch("c2", func(ctx context.Context) {
		defer wg.Done()
		<-start
		results <- "c2"
	})
	close(start)
	wg.Wait()
	close(results)

	var got []string
	for r := range results {
		got = append(got, r)
	}
	assert.Len(t, got, 2)
}
