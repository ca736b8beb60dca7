package engine_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine"
	"github.com/Carmen-Shannon/oxy-render/engine/device/headless"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
)

func TestRunTicksUntilQuit(t *testing.T) {
	c := qt.New(t)

	logger, _ := test.NewNullLogger()
	dev := headless.New(headless.WithLogger(logger))

	var ticks atomic.Int64
	var e engine.Engine
	e = engine.NewEngine(dev,
		engine.WithLogger(logger),
		engine.WithTick(func(p *renderer.Producer, dt float32) {
			p.SetClearColor(common.Color{0.2, 0.3, 0.4, 1})
			if ticks.Add(1) == 5 {
				e.Quit()
			}
		}),
	)

	c.Assert(e.Run(context.Background()), qt.IsNil)
	c.Assert(ticks.Load(), qt.Equals, int64(5))
	// The quitting tick still ends its frame.
	c.Assert(e.Frame(), qt.Equals, uint64(4))
	c.Assert(dev.Presents(), qt.Equals, 5)
	c.Assert(e.Context().Stats().Frames, qt.Equals, uint64(5))
	c.Assert(e.Window(), qt.IsNil)
}

func TestRunStopsOnCancel(t *testing.T) {
	c := qt.New(t)

	logger, _ := test.NewNullLogger()
	dev := headless.New(headless.WithLogger(logger))
	e := engine.NewEngine(dev, engine.WithLogger(logger), engine.WithTickRate(200))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := e.Run(ctx)
	c.Assert(err, qt.ErrorIs, context.DeadlineExceeded)

	select {
	case <-e.Context().Done():
	default:
		c.Fatal("render context still running after Run returned")
	}
}

func TestSetTickRateWhileRunning(t *testing.T) {
	c := qt.New(t)

	logger, _ := test.NewNullLogger()
	dev := headless.New(headless.WithLogger(logger))

	var ticks atomic.Int64
	var e engine.Engine
	e = engine.NewEngine(dev,
		engine.WithLogger(logger),
		engine.WithProfiling(true),
		engine.WithTick(func(p *renderer.Producer, dt float32) {
			switch ticks.Add(1) {
			case 1:
				e.SetTickRate(1000)
			case 3:
				e.SetTickRate(0)
			case 10:
				e.Quit()
			}
		}),
	)
	c.Assert(e.Run(context.Background()), qt.IsNil)
	c.Assert(ticks.Load(), qt.Equals, int64(10))
}

func TestSetTickCallbackWhileRunning(t *testing.T) {
	c := qt.New(t)

	logger, _ := test.NewNullLogger()
	dev := headless.New(headless.WithLogger(logger))

	var first, second atomic.Int64
	var e engine.Engine
	e = engine.NewEngine(dev,
		engine.WithLogger(logger),
		engine.WithTick(func(p *renderer.Producer, dt float32) {
			first.Add(1)
		}),
	)

	go func() {
		for first.Load() < 3 {
			time.Sleep(time.Millisecond)
		}
		e.SetTickCallback(func(p *renderer.Producer, dt float32) {
			if second.Add(1) == 3 {
				e.Quit()
			}
		})
	}()

	c.Assert(e.Run(context.Background()), qt.IsNil)
	c.Assert(first.Load() >= 3, qt.IsTrue)
	c.Assert(second.Load(), qt.Equals, int64(3))
}
