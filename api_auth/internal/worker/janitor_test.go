package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/icedoutskay/grainlify/pkg/logging"
)

type fakePruner struct {
	mu    sync.Mutex
	calls int
	err   error
	ch    chan struct{}
}

func (f *fakePruner) PruneNonces(ctx context.Context) (int64, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()
	select {
	case f.ch <- struct{}{}:
	default:
	}
	if err != nil {
		return 0, err
	}
	return 3, nil
}

func (f *fakePruner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNonceJanitorPrunesOnStartAndTick(t *testing.T) {
	p := &fakePruner{ch: make(chan struct{}, 8)}
	j := NewNonceJanitor(p, logging.NewDiscardLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Start(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-p.ch:
		case <-time.After(time.Second):
			t.Fatalf("prune %d did not run", i+1)
		}
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
	require.GreaterOrEqual(t, p.count(), 2)
}

func TestNonceJanitorSurvivesErrors(t *testing.T) {
	p := &fakePruner{err: errors.New("db down"), ch: make(chan struct{}, 8)}
	j := NewNonceJanitor(p, logging.NewDiscardLogger(), 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, j.Start(ctx))
	require.GreaterOrEqual(t, p.count(), 2)
}

func TestNewNonceJanitorDefaultsInterval(t *testing.T) {
	j := NewNonceJanitor(&fakePruner{}, logging.NewDiscardLogger(), 0)
	require.Equal(t, 15*time.Minute, j.interval)
}
