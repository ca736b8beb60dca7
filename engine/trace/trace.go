// Package trace captures the stream of tasks the render thread dispatches. A trace is a sequence of
// gob encoded Events compressed with lz4.
package trace

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pierrec/lz4"
)

// Event describes one dispatched task.
type Event struct {
	Frame    uint64
	Seq      uint64
	Kind     string
	Handle   uint32 // logical handle created or referenced first, 0 for none
	Payload  int    // copied payload bytes
	Duration time.Duration
	Err      string
}

// Recorder receives events from the render loop.
type Recorder interface {
	Record(e Event) error
	Close() error
}

// Writer is a Recorder that writes to an io.Writer. Record may be called from one goroutine while
// Flush or Close run on another.
type Writer struct {
	mu     sync.Mutex
	zw     *lz4.Writer
	enc    *gob.Encoder
	closer io.Closer
	events uint64
	closed bool
}

var _ Recorder = &Writer{}

// NewWriter wraps w in an lz4 stream. Closing the Writer does not close w.
//
// Parameters:
//   - w: destination of the compressed trace
//
// Returns:
//   - *Writer: the trace writer
func NewWriter(w io.Writer) *Writer {
	zw := lz4.NewWriter(w)
	return &Writer{zw: zw, enc: gob.NewEncoder(zw)}
}

// Create creates (or truncates) a trace file at path.
//
// Parameters:
//   - path: file to write
//
// Returns:
//   - *Writer: the trace writer, which closes the file on Close
//   - error: error if the file cannot be created
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file %s: %w", path, err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Record appends one event.
func (w *Writer) Record(e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("trace writer closed")
	}
	if err := w.enc.Encode(&e); err != nil {
		return fmt.Errorf("failed to encode trace event: %w", err)
	}
	w.events++
	return nil
}

// Events returns the number of events recorded.
func (w *Writer) Events() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.events
}

// Flush pushes buffered events to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	return w.zw.Flush()
}

// Close finishes the lz4 stream and closes the file opened by Create.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.zw.Close()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ReadAll decodes every event of a trace stream.
//
// Parameters:
//   - r: the compressed trace
//
// Returns:
//   - []Event: the events in recorded order
//   - error: error if the stream is corrupt
func ReadAll(r io.Reader) ([]Event, error) {
	dec := gob.NewDecoder(lz4.NewReader(r))
	var events []Event
	for {
		var e Event
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return events, fmt.Errorf("failed to decode trace event %d: %w", len(events), err)
		}
		events = append(events, e)
	}
}

// ReadFile decodes the trace file at path.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file %s: %w", path, err)
	}
	defer f.Close()
	return ReadAll(f)
}

// Summary counts events per kind and frames seen.
type Summary struct {
	Frames uint64
	Events int
	Errors int
	ByKind map[string]int
	Bytes  int
}

// Summarize folds events into a Summary.
func Summarize(events []Event) Summary {
	s := Summary{ByKind: make(map[string]int)}
	for _, e := range events {
		s.Events++
		s.ByKind[e.Kind]++
		s.Bytes += e.Payload
		if e.Err != "" {
			s.Errors++
		}
		if e.Frame+1 > s.Frames {
			s.Frames = e.Frame + 1
		}
	}
	return s
}
