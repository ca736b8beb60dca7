package queue

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/Carmen-Shannon/oxy-render/engine/command"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
)

func viewportTask(i int) *command.Task {
	return command.New(&command.SetViewport{Rect: device.Rect{X: int32(i)}}, nil)
}

func TestFrontPop(t *testing.T) {
	c := qt.New(t)
	q := New()

	c.Assert(q.Empty(), qt.IsTrue)
	c.Assert(q.Front(), qt.IsNil)
	c.Assert(q.Pop(), qt.IsNil)

	a, b := viewportTask(1), viewportTask(2)
	c.Assert(q.Push(a), qt.IsNil)
	c.Assert(q.Push(b), qt.IsNil)
	c.Assert(q.Len(), qt.Equals, 2)

	// Front does not consume.
	c.Assert(q.Front(), qt.Equals, a)
	c.Assert(q.Front(), qt.Equals, a)
	c.Assert(q.Pop(), qt.Equals, a)
	c.Assert(q.Front(), qt.Equals, b)
	c.Assert(q.Pop(), qt.Equals, b)
	c.Assert(q.Empty(), qt.IsTrue)
	c.Assert(q.Len(), qt.Equals, 0)
}

func TestFIFOAcrossGoroutines(t *testing.T) {
	c := qt.New(t)
	q := New()

	const n = 10000
	go func() {
		for i := 0; i < n; i++ {
			if err := q.Push(viewportTask(i)); err != nil {
				panic(err)
			}
		}
		q.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	got := 0
	for {
		err := q.Wait(ctx)
		if err == ErrClosed {
			break
		}
		c.Assert(err, qt.IsNil)
		task := q.Pop()
		cmd := task.Command().(*command.SetViewport)
		c.Assert(int(cmd.Rect.X), qt.Equals, got)
		got++
	}
	c.Assert(got, qt.Equals, n)
}

func TestWaitWakesOnPush(t *testing.T) {
	c := qt.New(t)
	q := New()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(viewportTask(7))
	}()

	c.Assert(q.Wait(context.Background()), qt.IsNil)
	c.Assert(q.Pop(), qt.Not(qt.IsNil))
}

func TestWaitContextCancel(t *testing.T) {
	c := qt.New(t)
	q := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Assert(q.Wait(ctx), qt.Equals, context.Canceled)
}

func TestCloseDrains(t *testing.T) {
	c := qt.New(t)
	q := New()

	c.Assert(q.Push(viewportTask(1)), qt.IsNil)
	q.Close()
	q.Close()
	c.Assert(q.Closed(), qt.IsTrue)
	c.Assert(q.Push(viewportTask(2)), qt.Equals, ErrClosed)

	c.Assert(q.Wait(context.Background()), qt.IsNil)
	c.Assert(q.Pop(), qt.Not(qt.IsNil))
	c.Assert(q.Wait(context.Background()), qt.Equals, ErrClosed)
}
