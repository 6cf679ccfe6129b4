package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPipeDeliversInOrder(t *testing.T) {
	a, b := Pipe()
	ctx := context.Background()

	for i := byte(0); i < 10; i++ {
		if err := a.Send(ctx, []byte{i}); err != nil {
			t.Fatal(err)
		}
	}
	for i := byte(0); i < 10; i++ {
		msg, err := b.Recv(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(msg) != 1 || msg[0] != i {
			t.Fatalf("message %d = %v", i, msg)
		}
	}
}

func TestPipeIsBidirectional(t *testing.T) {
	a, b := Pipe()
	ctx := context.Background()

	if err := b.Send(ctx, []byte("pong")); err != nil {
		t.Fatal(err)
	}
	msg, err := a.Recv(ctx)
	if err != nil || string(msg) != "pong" {
		t.Fatalf("recv = %q, %v", msg, err)
	}
}

func TestPipeCloseUnblocksRecv(t *testing.T) {
	a, b := Pipe()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Recv(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	a.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("err = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock on close")
	}
}

func TestPipeSendAfterClose(t *testing.T) {
	a, b := Pipe()
	b.Close()
	if err := a.Send(context.Background(), []byte("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestPipeRecvHonorsContext(t *testing.T) {
	_, b := Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Recv(ctx)
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("err = %v, want IOError", err)
	}
}

func TestPipeSenderBufferReuse(t *testing.T) {
	a, b := Pipe()
	ctx := context.Background()

	buf := []byte("original")
	if err := a.Send(ctx, buf); err != nil {
		t.Fatal(err)
	}
	copy(buf, "clobber!")

	msg, err := b.Recv(ctx)
	if err != nil || string(msg) != "original" {
		t.Fatalf("recv = %q, %v", msg, err)
	}
}
