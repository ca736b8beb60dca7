// Package assets decodes textures off the logic thread ahead of their upload through the
// render command queue.
package assets

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// Loader decodes batches of encoded images on a pool of reusable goroutines.
type Loader struct {
	pool     worker.DynamicWorkerPool
	workers  int
	logger   logrus.FieldLogger
	fallback common.TextureStagingData
	mu       sync.Mutex
	nextID   int
}

// NewLoader creates a Loader whose failed decodes are replaced by a magenta checkerboard.
//
// Parameters:
//   - options: functional options applied to the loader
//
// Returns:
//   - *Loader: the loader
func NewLoader(options ...LoaderBuilderOption) *Loader {
	l := &Loader{
		workers: max(runtime.NumCPU()-1, 1),
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range options {
		opt(l)
	}
	if l.fallback.Pixels == nil {
		l.fallback = Checkerboard(64, 8, color.RGBA{255, 0, 255, 255}, color.RGBA{0, 0, 0, 255})
	}
	l.pool = worker.NewDynamicWorkerPool(l.workers, 256, 1*time.Second)
	return l
}

// Load decodes every texture in parallel. The result has one entry per input in input order;
// inputs that fail to decode get a named copy of the fallback texture and contribute to the
// returned error. A cancelled context stops waiting and returns ctx.Err().
//
// Parameters:
//   - ctx: bounds the wait for the batch
//   - textures: the encoded textures
//
// Returns:
//   - []common.TextureStagingData: decoded pixels, one per input
//   - error: the joined decode failures, or the context error
func (l *Loader) Load(ctx context.Context, textures []common.ImportedTexture) ([]common.TextureStagingData, error) {
	out := make([]common.TextureStagingData, len(textures))
	errs := make([]error, len(textures))

	var wg sync.WaitGroup
	for i := range textures {
		wg.Add(1)
		tex := textures[i]
		idx := i
		l.pool.SubmitTask(worker.Task{
			ID: l.taskID(),
			Do: func() (any, error) {
				defer wg.Done()
				data, err := tex.Decode()
				if err != nil {
					errs[idx] = fmt.Errorf("texture %q: %w", common.Coalesce(tex.Name, tex.Path), err)
					data = l.fallback
					data.Name = common.Coalesce(tex.Name, tex.Path)
				}
				out[idx] = data
				return nil, nil
			},
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	err := errors.Join(errs...)
	if err != nil {
		l.logger.WithError(err).Warn("textures replaced by fallback")
	}
	l.logger.WithFields(logrus.Fields{
		"count":   len(textures),
		"workers": l.workers,
	}).Debug("textures decoded")
	return out, err
}

func (l *Loader) taskID() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	return l.nextID
}

// Checkerboard generates a size x size RGBA texture of alternating cell x cell squares.
//
// Parameters:
//   - size: edge length in pixels
//   - cell: edge length of one square in pixels
//   - a: color of the square at the origin
//   - b: the alternate color
//
// Returns:
//   - common.TextureStagingData: the generated pixels
func Checkerboard(size, cell uint32, a, b color.RGBA) common.TextureStagingData {
	cell = max(cell, 1)
	pixels := make([]byte, size*size*4)
	for y := range size {
		for x := range size {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			i := (y*size + x) * 4
			pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = c.R, c.G, c.B, c.A
		}
	}
	return common.TextureStagingData{Name: "checkerboard", Pixels: pixels, Width: size, Height: size}
}
