package renderer

import (
	"context"
	"errors"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Carmen-Shannon/oxy-render/engine/command"
	"github.com/Carmen-Shannon/oxy-render/engine/device/headless"
)

type harness struct {
	rc     Context
	p      *Producer
	dev    *headless.Device
	hook   *test.Hook
	ledger *command.Counter
	errc   chan error
	cancel context.CancelFunc
}

func newHarness(c *qt.C, options ...ContextBuilderOption) *harness {
	h := newIdleHarness(c, options...)
	h.start(context.Background())
	return h
}

// newIdleHarness builds a context without starting its render loop.
func newIdleHarness(c *qt.C, options ...ContextBuilderOption) *harness {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	dev := headless.New(headless.WithLogger(logger))
	ledger := &command.Counter{}

	opts := append([]ContextBuilderOption{WithLogger(logger), WithLedger(ledger)}, options...)
	rc := NewContext(dev, opts...)
	h := &harness{
		rc:     rc,
		p:      rc.Producer(),
		dev:    dev,
		hook:   hook,
		ledger: ledger,
		errc:   make(chan error, 1),
		cancel: func() {},
	}
	c.Cleanup(func() {
		h.rc.Close()
		h.cancel()
	})
	return h
}

func (h *harness) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	h.cancel = cancel
	go func() {
		h.errc <- h.rc.Run(ctx)
	}()
}

// stop closes the context and waits for the loop to drain.
func (h *harness) stop(c *qt.C) {
	h.rc.Close()
	select {
	case err := <-h.errc:
		c.Assert(err, qt.IsNil)
	case <-time.After(5 * time.Second):
		c.Fatal("render loop did not stop")
	}
}

// entries returns logged entries at level whose error matches target.
func (h *harness) errorsAs(level logrus.Level, target any) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range h.hook.AllEntries() {
		if e.Level != level {
			continue
		}
		err, ok := e.Data[logrus.ErrorKey].(error)
		if ok && errors.As(err, target) {
			out = append(out, e)
		}
	}
	return out
}

func TestRunTwice(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)

	_, err := h.p.EndFrame()
	c.Assert(err, qt.IsNil)
	c.Assert(h.rc.Run(context.Background()), qt.ErrorMatches, "render loop already running")
	h.stop(c)
}

func TestCloseDrainsQueuedTasks(t *testing.T) {
	c := qt.New(t)
	h := newIdleHarness(c)

	tex := h.p.CreateTexture(texDesc(2, 2))
	h.p.BindTexture(0, tex)
	h.rc.Close()

	h.start(context.Background())
	select {
	case err := <-h.errc:
		c.Assert(err, qt.IsNil)
	case <-time.After(5 * time.Second):
		c.Fatal("render loop did not stop")
	}
	<-h.rc.Done()

	c.Assert(h.dev.Ops("CreateTexture", "BindTexture", "Release"), qt.DeepEquals,
		[]string{"CreateTexture", "BindTexture", "Release"})
	c.Assert(h.ledger.Outstanding(), qt.Equals, int64(0))
}

func TestCancelCompletesWaitingProducer(t *testing.T) {
	c := qt.New(t)
	h := newIdleHarness(c)

	res := make(chan error, 1)
	go func() {
		_, err := h.p.EndFrame()
		res <- err
	}()
	for h.rc.Stats().QueueDepth == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.start(ctx)

	c.Assert(<-h.errc, qt.Equals, context.Canceled)
	c.Assert(<-res, qt.Equals, ErrStopped)
	c.Assert(h.ledger.Outstanding(), qt.Equals, int64(0))

	// Later calls see a closed context.
	_, err := h.p.EndFrame()
	c.Assert(err, qt.Equals, ErrClosed)
}

func TestClosedProducerDropsCommands(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c)
	h.stop(c)

	h.p.SetClearColor([4]float32{1, 1, 1, 1})
	c.Assert(h.hook.LastEntry().Message, qt.Equals, "render context closed, dropping command")
	c.Assert(h.hook.LastEntry().Level, qt.Equals, logrus.WarnLevel)

	_, _, err := h.p.FramebufferSize()
	c.Assert(err, qt.Equals, ErrClosed)
	c.Assert(h.p.Finish(), qt.Equals, ErrClosed)
	c.Assert(h.ledger.Outstanding(), qt.Equals, int64(0))
}

func TestParseBackendType(t *testing.T) {
	c := qt.New(t)
	for _, b := range []BackendType{BackendTypeGL, BackendTypeWGPU, BackendTypeHeadless} {
		got, err := ParseBackendType(b.String())
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, b)
	}
	got, err := ParseBackendType(" WebGPU ")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, BackendTypeWGPU)

	_, err = ParseBackendType("vulkan")
	c.Assert(err, qt.ErrorMatches, `unknown backend "vulkan"`)
}
