package queue_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"filerelay/internal/queue"
)

func TestPopReturnsPushedPathsInOrder(t *testing.T) {
	q := queue.New()
	q.Push("/data/a")
	q.Push("/data/b")
	q.Push("/data/a")

	require.Equal(t, 3, q.Len())

	ctx := context.Background()
	for _, want := range []string{"/data/a", "/data/b", "/data/a"} {
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.Equal(t, 0, q.Len())
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := queue.New()
	got := make(chan string, 1)

	go func() {
		path, err := q.Pop(context.Background())
		if err == nil {
			got <- path
		}
	}()

	select {
	case <-got:
		t.Fatal("pop returned before push")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push("/data/late")

	select {
	case path := <-got:
		require.Equal(t, "/data/late", path)
	case <-time.After(2 * time.Second):
		t.Fatal("pop did not return after push")
	}
}

func TestPopHonoursCancellation(t *testing.T) {
	q := queue.New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The cancelled waiter must not swallow later pushes.
	q.Push("/data/x")
	path, err := q.Pop(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/data/x", path)
}

func TestEveryItemDeliveredExactlyOnce(t *testing.T) {
	q := queue.New()
	const producers, perProducer, consumers = 4, 250, 8

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := make(map[int]int)
	var consumed sync.WaitGroup
	consumed.Add(producers * perProducer)

	for i := 0; i < consumers; i++ {
		go func() {
			for {
				path, err := q.Pop(ctx)
				if err != nil {
					return
				}
				n, _ := strconv.Atoi(path)
				mu.Lock()
				seen[n]++
				mu.Unlock()
				consumed.Done()
			}
		}()
	}

	var produced sync.WaitGroup
	for p := 0; p < producers; p++ {
		produced.Add(1)
		go func(p int) {
			defer produced.Done()
			for i := 0; i < perProducer; i++ {
				n := p*perProducer + i
				q.Push(strconv.Itoa(n))
			}
		}(p)
	}
	produced.Wait()
	consumed.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, producers*perProducer)
	for n, count := range seen {
		require.Equal(t, 1, count, "item %d", n)
	}
}
