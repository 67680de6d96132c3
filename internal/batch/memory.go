package batch

import (
	"context"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// memorySampler polls resident memory at 1 Hz, retains the observed peak,
// and warns (with a best-effort GC hint) once usage crosses 90% of budget
// (spec §4.11). Correctness never depends on the hint actually freeing
// anything — it is advisory only. sampleOnce runs on the sampler's own
// goroutine while Current/Peak are read concurrently from the phase
// goroutine driving the progress stream, so current/peak/warned sit
// behind mu.
type memorySampler struct {
	budgetMB float64
	log      *zap.Logger
	readMB   func() float64

	mu      sync.Mutex
	current float64
	peak    float64
	warned  bool
}

func newMemorySampler(budgetMB float64, log *zap.Logger) *memorySampler {
	return &memorySampler{budgetMB: budgetMB, log: log, readMB: processResidentMB}
}

// run samples until ctx is done. Intended to be launched in its own
// goroutine; stops cooperatively on cancellation.
func (s *memorySampler) run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	s.sampleOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *memorySampler) sampleOnce() {
	usedMB := s.readMB()

	s.mu.Lock()
	s.current = usedMB
	if usedMB > s.peak {
		s.peak = usedMB
	}
	crossedBudget := s.budgetMB > 0 && usedMB >= s.budgetMB*0.9
	shouldWarn := crossedBudget && !s.warned
	if crossedBudget {
		s.warned = true
	} else {
		s.warned = false
	}
	s.mu.Unlock()

	if s.budgetMB <= 0 {
		return
	}
	if crossedBudget {
		if shouldWarn {
			s.log.Warn("batch processor memory usage crossed 90% of budget",
				zap.Float64("used_mb", usedMB), zap.Float64("budget_mb", s.budgetMB))
		}
		debug.FreeOSMemory()
	}
}

// processResidentMB reports this process's resident set size in MB, via
// gopsutil when available and falling back to the Go runtime's own heap
// stats otherwise (gopsutil can fail to resolve a process handle in some
// sandboxed environments).
func processResidentMB() float64 {
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			return float64(info.RSS) / (1024 * 1024)
		}
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Alloc) / (1024 * 1024)
}

func (s *memorySampler) Current() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *memorySampler) Peak() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}
