package trace

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestRoundTrip(t *testing.T) {
	c := qt.New(t)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	c.Assert(w.Record(Event{Frame: 0, Seq: 1, Kind: "CreateTexture", Handle: 1, Payload: 64}), qt.IsNil)
	c.Assert(w.Record(Event{Frame: 0, Seq: 2, Kind: "CompileShader", Err: "bad", Duration: time.Millisecond}), qt.IsNil)
	c.Assert(w.Record(Event{Frame: 1, Seq: 3, Kind: "EndFrame"}), qt.IsNil)
	c.Assert(w.Events(), qt.Equals, uint64(3))
	c.Assert(w.Close(), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)
	c.Assert(w.Record(Event{}), qt.Not(qt.IsNil))

	events, err := ReadAll(&buf)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 3)
	c.Assert(events[0].Kind, qt.Equals, "CreateTexture")
	c.Assert(events[1].Duration, qt.Equals, time.Millisecond)

	s := Summarize(events)
	c.Assert(s.Frames, qt.Equals, uint64(2))
	c.Assert(s.Errors, qt.Equals, 1)
	c.Assert(s.Bytes, qt.Equals, 64)
	c.Assert(s.ByKind["EndFrame"], qt.Equals, 1)
}

func TestFile(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(c.TempDir(), "frames.trace")

	w, err := Create(path)
	c.Assert(err, qt.IsNil)
	for i := 0; i < 100; i++ {
		c.Assert(w.Record(Event{Seq: uint64(i), Kind: "Draw"}), qt.IsNil)
	}
	c.Assert(w.Flush(), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	events, err := ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 100)
	c.Assert(events[99].Seq, qt.Equals, uint64(99))
}
