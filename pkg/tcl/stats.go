package tcl

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatencyMillis = 1
	maxLatencyMillis = 10 * 60 * 1000
	latencySigFigs   = 3
)

// FlushStats is a point in time copy of the flush counters.
type FlushStats struct {
	Flushes          int64
	EmptyFlushes     int64
	FailedFlushes    int64
	LettersSubmitted int64
	LettersLost      int64
	LatencyP50       time.Duration
	LatencyP99       time.Duration
	LatencyMax       time.Duration
}

type flushStatsRecorder struct {
	lock      *sync.Mutex
	stats     FlushStats
	histogram *hdrhistogram.Histogram
}

func newFlushStatsRecorder() *flushStatsRecorder {
	return &flushStatsRecorder{
		lock:      &sync.Mutex{},
		histogram: hdrhistogram.New(minLatencyMillis, maxLatencyMillis, latencySigFigs),
	}
}

func (fsr *flushStatsRecorder) record(receipt *FlushReceipt) {
	fsr.lock.Lock()
	defer fsr.lock.Unlock()

	fsr.stats.Flushes++
	switch {
	case receipt.Empty:
		fsr.stats.EmptyFlushes++
		return
	case receipt.Success:
		fsr.stats.LettersSubmitted += int64(len(receipt.LetterIDs))
	default:
		fsr.stats.FailedFlushes++
		fsr.stats.LettersLost += int64(len(receipt.FailedLetters))
	}

	millis := receipt.Duration.Milliseconds()
	if millis < minLatencyMillis {
		millis = minLatencyMillis
	}
	_ = fsr.histogram.RecordValue(millis)
}

func (fsr *flushStatsRecorder) snapshot() *FlushStats {
	fsr.lock.Lock()
	defer fsr.lock.Unlock()

	stats := fsr.stats
	if fsr.histogram.TotalCount() > 0 {
		stats.LatencyP50 = time.Duration(fsr.histogram.ValueAtQuantile(50)) * time.Millisecond
		stats.LatencyP99 = time.Duration(fsr.histogram.ValueAtQuantile(99)) * time.Millisecond
		stats.LatencyMax = time.Duration(fsr.histogram.Max()) * time.Millisecond
	}

	return &stats
}
