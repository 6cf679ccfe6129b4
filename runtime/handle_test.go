package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wippyai/mesh-runtime/engine"
)

// The handle tests drive the critical section directly; the closures never
// touch the instance, so a nil engine instance is fine.
func testHandle() InstanceHandle {
	return newInstanceHandle(nil, NewContextBuilder().Build())
}

func TestExecSerializesStrictly(t *testing.T) {
	h := testHandle()
	const (
		workers = 8
		hold    = 20 * time.Millisecond
	)

	start := time.Now()
	var inside int
	var insideMu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.Exec(context.Background(), func(ctx context.Context, _ *engine.Instance) error {
				insideMu.Lock()
				inside++
				if inside != 1 {
					t.Error("two closures inside the critical section")
				}
				insideMu.Unlock()

				time.Sleep(hold)

				insideMu.Lock()
				inside--
				insideMu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("exec: %v", err)
			}
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed < workers*hold {
		t.Errorf("wall time %v < %v: closures overlapped", elapsed, workers*hold)
	}
}

func TestFailedClosureDoesNotPoison(t *testing.T) {
	h := testHandle()
	boom := errors.New("boom")

	err := h.Exec(context.Background(), func(ctx context.Context, _ *engine.Instance) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	// The next Exec must proceed normally.
	done := make(chan error, 1)
	go func() {
		done <- h.Exec(context.Background(), func(ctx context.Context, _ *engine.Instance) error {
			return nil
		})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("subsequent exec: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("handle poisoned by failed closure")
	}
}

func TestExecWaitIsCancellable(t *testing.T) {
	h := testHandle()

	release := make(chan struct{})
	go h.Exec(context.Background(), func(ctx context.Context, _ *engine.Instance) error {
		<-release
		return nil
	})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := h.Exec(ctx, func(ctx context.Context, _ *engine.Instance) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	close(release)
}

func TestTerminatedHandleRefusesExec(t *testing.T) {
	h := testHandle()
	h.terminate()
	err := h.Exec(context.Background(), func(ctx context.Context, _ *engine.Instance) error {
		return nil
	})
	if !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("err = %v", err)
	}
}

func TestTerminateCancelsInFlightClosureContext(t *testing.T) {
	h := testHandle()

	observed := make(chan error, 1)
	go h.Exec(context.Background(), func(ctx context.Context, _ *engine.Instance) error {
		<-ctx.Done()
		observed <- ctx.Err()
		return ctx.Err()
	})
	time.Sleep(10 * time.Millisecond)

	h.terminate()
	select {
	case err := <-observed:
		if err == nil {
			t.Fatal("closure context not cancelled")
		}
	case <-time.After(time.Second):
		t.Fatal("terminate did not cancel the in-flight closure")
	}
}

func TestContextTypedState(t *testing.T) {
	type capability struct{ name string }

	c := NewContextBuilder().
		Env("MODE", "test").
		Insert(capability{name: "kv"}).
		Build()

	var got capability
	if !c.Load(&got) || got.name != "kv" {
		t.Errorf("Load = %+v", got)
	}
	if v, ok := c.Env("MODE"); !ok || v != "test" {
		t.Errorf("Env = %q, %v", v, ok)
	}
	if c.NextSeq() != 1 || c.NextSeq() != 2 {
		t.Error("sequence counter not monotone")
	}

	c.Put(capability{name: "replaced"})
	c.Load(&got)
	if got.name != "replaced" {
		t.Errorf("after Put: %+v", got)
	}
}
