package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lotas/trackerguard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	mu      sync.Mutex
	fail    int // fail this many writes first
	calls   int
	patches []types.Patch
}

func (m *memSink) Name() string { return "mem" }

func (m *memSink) Write(_ context.Context, p types.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail > 0 {
		m.fail--
		return errors.New("background unavailable")
	}
	m.patches = append(m.patches, p)
	return nil
}

func (m *memSink) snapshot() (int, []types.Patch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, append([]types.Patch(nil), m.patches...)
}

func TestFlush_DeliversInOrderToAllSinks(t *testing.T) {
	a, b := &memSink{}, &memSink{}
	o := New(Options{}, a, b)

	o.Persist(types.Patch{"selected_app_ids": map[int]int{1: 1}})
	o.Persist(types.Patch{"needsReload": true})
	o.Persist(types.Patch{})
	assert.Equal(t, 2, o.Len(), "empty patches are ignored")

	assert.Equal(t, 2, o.Flush(context.Background()))
	for _, s := range []*memSink{a, b} {
		_, got := s.snapshot()
		require.Len(t, got, 2)
		assert.Contains(t, got[0], "selected_app_ids")
		assert.Contains(t, got[1], "needsReload")
	}
	assert.Zero(t, o.Len())
}

func TestFlush_FailureIsDroppedWithoutRetry(t *testing.T) {
	s := &memSink{fail: 1}
	o := New(Options{}, s)
	o.Persist(types.Patch{"a": 1})
	o.Persist(types.Patch{"b": 2})
	o.Flush(context.Background())

	calls, got := s.snapshot()
	assert.Equal(t, 2, calls)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "b")
}

func TestFlush_Retries(t *testing.T) {
	s := &memSink{fail: 2}
	o := New(Options{Retries: 2, Backoff: time.Millisecond}, s)
	o.Persist(types.Patch{"a": 1})
	o.Flush(context.Background())

	calls, got := s.snapshot()
	assert.Equal(t, 3, calls)
	assert.Len(t, got, 1)
}

func TestRun_DrainsUntilCancelled(t *testing.T) {
	s := &memSink{}
	o := New(Options{}, s)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	o.Persist(types.Patch{"a": 1})
	o.Persist(types.Patch{"b": 2})
	assert.Eventually(t, func() bool {
		_, got := s.snapshot()
		return len(got) == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestSinkFunc(t *testing.T) {
	var got types.Patch
	s := SinkFunc{Label: "fn", Fn: func(_ context.Context, p types.Patch) error {
		got = p
		return nil
	}}
	o := New(Options{}, s)
	o.Persist(types.Patch{"k": "v"})
	o.Flush(context.Background())
	assert.Equal(t, "fn", s.Name())
	assert.Equal(t, types.Patch{"k": "v"}, got)
}
