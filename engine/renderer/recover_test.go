package renderer

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/command"
	"github.com/Carmen-Shannon/oxy-render/engine/device"
	"github.com/Carmen-Shannon/oxy-render/engine/device/headless"
	"github.com/Carmen-Shannon/oxy-render/engine/mapper"
)

// faultyDevice panics on Finish and on creating a texture 13 pixels wide.
type faultyDevice struct {
	*headless.Device
}

func (d *faultyDevice) Finish() {
	panic("device lost")
}

func (d *faultyDevice) CreateTexture(desc device.TextureDesc) (common.NativeHandle, error) {
	if desc.Width == 13 {
		panic("bad texture width")
	}
	return d.Device.CreateTexture(desc)
}

func TestDevicePanicFailsOnlyItsTask(t *testing.T) {
	c := qt.New(t)

	logger, _ := test.NewNullLogger()
	ledger := &command.Counter{}
	rc := NewContext(&faultyDevice{Device: headless.New(headless.WithLogger(logger))},
		WithLogger(logger), WithLedger(ledger))
	p := rc.Producer()
	errc := make(chan error, 1)
	go func() { errc <- rc.Run(context.Background()) }()

	c.Assert(p.Finish(), qt.ErrorIs, ErrTaskPanic)

	bad := p.CreateTexture(texDesc(13, 1))
	good := p.CreateTexture(texDesc(2, 2))
	p.BindTexture(0, bad)
	_, err := p.ReadPixels(device.Rect{Width: -2, Height: 1})
	c.Assert(err, qt.Not(qt.IsNil))

	frame, err := p.EndFrame()
	c.Assert(err, qt.IsNil)
	c.Assert(frame, qt.Equals, uint64(0))
	frame, err = p.EndFrame()
	c.Assert(err, qt.IsNil)
	c.Assert(frame, qt.Equals, uint64(1))

	_, status := rc.Mapper().Lookup(mapper.Texture, common.LogicalHandle(bad))
	c.Assert(status, qt.Equals, mapper.Failed)
	_, status = rc.Mapper().Lookup(mapper.Texture, common.LogicalHandle(good))
	c.Assert(status, qt.Equals, mapper.Resolved)

	rc.Close()
	select {
	case err := <-errc:
		c.Assert(err, qt.IsNil)
	case <-time.After(5 * time.Second):
		c.Fatal("render loop did not stop")
	}
	c.Assert(rc.Stats().Errors, qt.Equals, uint64(3))
	c.Assert(ledger.Outstanding(), qt.Equals, int64(0))
	c.Assert(ledger.DoubleReleases(), qt.Equals, int64(0))
}

func TestLoopPanicReleasesQueuedTasks(t *testing.T) {
	c := qt.New(t)

	logger, _ := test.NewNullLogger()
	ledger := &command.Counter{}
	release := make(chan struct{})
	calls := 0
	rc := NewContext(headless.New(headless.WithLogger(logger)),
		WithLogger(logger),
		WithLedger(ledger),
		WithFrameStartHook(func() {
			calls++
			if calls == 2 {
				<-release
				panic("event pump failed")
			}
		}),
	)
	p := rc.Producer()
	errc := make(chan error, 1)
	go func() { errc <- rc.Run(context.Background()) }()

	_, err := p.EndFrame()
	c.Assert(err, qt.IsNil)

	tex := p.CreateTexture(texDesc(2, 2))
	p.BindTexture(0, tex)
	res := make(chan error, 1)
	go func() {
		_, err := p.EndFrame()
		res <- err
	}()
	for rc.Stats().QueueDepth < 3 {
		time.Sleep(time.Millisecond)
	}
	close(release)

	select {
	case err := <-errc:
		c.Assert(err, qt.ErrorMatches, "render loop panic: event pump failed")
	case <-time.After(5 * time.Second):
		c.Fatal("render loop did not stop")
	}
	c.Assert(<-res, qt.Equals, ErrStopped)
	c.Assert(ledger.Outstanding(), qt.Equals, int64(0))
	c.Assert(ledger.DoubleReleases(), qt.Equals, int64(0))
}
