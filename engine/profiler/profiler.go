package profiler

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Sample is what the render loop reports once per presented frame.
type Sample struct {
	// Tasks is the number of tasks dispatched during the frame.
	Tasks int
	// QueueDepth is the number of tasks still queued when the frame was presented.
	QueueDepth int
	// ArenaPeak is the largest per-frame arena usage the producer has reported, in bytes.
	ArenaPeak int
}

// Report is one logged interval of statistics.
type Report struct {
	FPS          float64
	TasksPerSec  float64
	MaxQueue     int
	ArenaPeak    int
	HeapMB       float64
	AllocRateMB  float64
	GCCount      uint32
	LastPauseUs  uint64
	MaxPauseUs   uint64
	SysMB        float64
	IntervalSecs float64
}

// Profiler tracks frame rate, dispatch rate and memory statistics for performance monitoring.
// Outputs stats to the logger at a configurable interval.
type Profiler struct {
	logger logrus.FieldLogger

	frameCount     int
	taskCount      int
	maxQueue       int
	arenaPeak      int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Report
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second and output goes to the standard logrus logger.
//
// Parameters:
//   - options: functional options applied to the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:         logrus.StandardLogger(),
		lastTime:       time.Now(),
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Tick should be called once per presented frame.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, tasks per second, queue depth, arena peak, heap usage, allocation rate,
// GC count/pause times, total memory.
//
// Parameters:
//   - s: the frame's dispatch sample
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(s Sample) bool {
	p.frameCount++
	p.taskCount += s.Tasks
	if s.QueueDepth > p.maxQueue {
		p.maxQueue = s.QueueDepth
	}
	if s.ArenaPeak > p.arenaPeak {
		p.arenaPeak = s.ArenaPeak
	}

	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1e-9
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc: Bytes of allocated heap objects (live memory)
	// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
	// Sys: Total bytes of memory obtained from the OS (actual process footprint)
	r := Report{
		FPS:          float64(p.frameCount) / secs,
		TasksPerSec:  float64(p.taskCount) / secs,
		MaxQueue:     p.maxQueue,
		ArenaPeak:    p.arenaPeak,
		HeapMB:       float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:        float64(p.memStats.Sys) / 1024 / 1024,
		AllocRateMB:  float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / secs,
		GCCount:      p.memStats.NumGC,
		IntervalSecs: secs,
	}

	gcCount := p.memStats.NumGC
	if gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > r.MaxPauseUs {
				r.MaxPauseUs = pause
			}
		}
	}

	p.logger.WithFields(logrus.Fields{
		"fps":         round2(r.FPS),
		"tasks_per_s": round2(r.TasksPerSec),
		"max_queue":   r.MaxQueue,
		"arena_peak":  r.ArenaPeak,
		"heap_mb":     round2(r.HeapMB),
		"alloc_rate":  round2(r.AllocRateMB),
		"gc":          r.GCCount,
		"gc_last_us":  r.LastPauseUs,
		"gc_max_us":   r.MaxPauseUs,
		"sys_mb":      round2(r.SysMB),
	}).Info("profiler")

	p.last = r
	p.frameCount = 0
	p.taskCount = 0
	p.maxQueue = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the most recently logged report.
func (p *Profiler) Last() Report {
	return p.last
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
