package command

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/mapper"
)

func TestKindNames(t *testing.T) {
	c := qt.New(t)
	seen := map[string]bool{}
	for _, k := range Kinds() {
		name := k.String()
		c.Assert(name, qt.Not(qt.Equals), "")
		c.Assert(seen[name], qt.IsFalse, qt.Commentf("duplicate name %q", name))
		seen[name] = true
		c.Assert(k.Valid(), qt.IsTrue)
	}
	c.Assert(KindInvalid.Valid(), qt.IsFalse)
	c.Assert(Kind(250).String(), qt.Equals, "Kind(250)")
}

func TestNeedsResultClassification(t *testing.T) {
	c := qt.New(t)
	var sync []Kind
	for _, k := range Kinds() {
		if k.NeedsResult() {
			sync = append(sync, k)
		}
	}
	c.Assert(sync, qt.DeepEquals, []Kind{KindQueryFramebufferSize, KindReadPixels, KindFinish, KindEndFrame})
}

func TestFireAndForgetTask(t *testing.T) {
	c := qt.New(t)
	var ledger Counter

	task := New(&Clear{Mask: device.ClearColorBuffer}, &ledger)
	c.Assert(task.Kind(), qt.Equals, KindClear)
	c.Assert(task.NeedsResult(), qt.IsFalse)
	c.Assert(task.Wait(), qt.IsNil)
	c.Assert(ledger.Outstanding(), qt.Equals, int64(1))

	task.Release()
	c.Assert(task.Released(), qt.IsTrue)
	c.Assert(task.Command(), qt.IsNil)
	c.Assert(ledger.Outstanding(), qt.Equals, int64(0))

	task.Release()
	c.Assert(ledger.DoubleReleases(), qt.Equals, int64(1))
	c.Assert(ledger.Outstanding(), qt.Equals, int64(0))
}

func TestNeedsResultTaskWait(t *testing.T) {
	c := qt.New(t)
	var ledger Counter

	cmd := &QueryFramebufferSize{}
	task := New(cmd, &ledger)
	c.Assert(task.NeedsResult(), qt.IsTrue)
	c.Assert(task.ResultSet(), qt.IsFalse)

	go func() {
		time.Sleep(5 * time.Millisecond)
		cmd.Width, cmd.Height = 640, 480
		task.Complete(nil)
		task.Complete(errors.New("ignored"))
	}()

	c.Assert(task.Wait(), qt.IsNil)
	c.Assert(task.ResultSet(), qt.IsTrue)
	c.Assert(cmd.Width, qt.Equals, 640)
	c.Assert(cmd.Height, qt.Equals, 480)

	task.Release()
	c.Assert(ledger.Releases(KindQueryFramebufferSize), qt.Equals, int64(1))
}

func TestWaitReturnsCompletionError(t *testing.T) {
	c := qt.New(t)
	boom := errors.New("boom")
	task := New(&Finish{}, nil)
	task.Complete(boom)
	c.Assert(task.Wait(), qt.Equals, boom)
	task.Release()
}

func TestWaitContext(t *testing.T) {
	c := qt.New(t)
	task := New(&EndFrame{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	c.Assert(task.WaitContext(ctx), qt.Equals, context.DeadlineExceeded)
	c.Assert(task.ResultSet(), qt.IsFalse)

	task.Complete(nil)
	c.Assert(task.WaitContext(context.Background()), qt.IsNil)
}

func TestCreatorsAndReferrers(t *testing.T) {
	c := qt.New(t)

	var create Command = &CreateVertexArray{Handle: 3, Vertices: 1, Indices: 2}
	cr, ok := create.(Creator)
	c.Assert(ok, qt.IsTrue)
	c.Assert(cr.Creates(), qt.Equals, Resource{Kind: mapper.VertexArray, Handle: 3})
	c.Assert(create.(Referrer).References(), qt.DeepEquals, []Resource{
		{Kind: mapper.Buffer, Handle: 1},
		{Kind: mapper.Buffer, Handle: 2},
	})

	// The default framebuffer is not a reference.
	var bind Command = &BindFramebuffer{Framebuffer: common.NoHandle}
	c.Assert(bind.(Referrer).References(), qt.HasLen, 0)

	var upd Command = &UpdateBuffer{Buffer: 1, Data: make([]byte, 12)}
	c.Assert(upd.(Sized).PayloadSize(), qt.Equals, 12)
}
