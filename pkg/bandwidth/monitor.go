// Package bandwidth tracks transfer speed for a streamed upload. A
// Monitor is typically fed from a streamer's progress hook and queried
// when reporting percent done, current speed and estimated time left.
package bandwidth

import (
	"fmt"
	"math"
	"time"
)

const (
	// historyInterval is the minimum spacing between two history samples.
	historyInterval = 500 * time.Millisecond

	// historyMaxSize caps the sample history.
	historyMaxSize = 100
)

type sample struct {
	at       time.Time
	received int64
}

// Monitor accumulates transfer statistics for one request. It is driven
// from the same single caller as the streamer it observes and needs no
// locking.
type Monitor struct {
	total    int64
	received int64

	started      time.Time
	lastReceived time.Time
	currSpeed    float64
	avgSpeed     float64

	history []sample

	// now is swappable for tests.
	now func() time.Time
}

// NewMonitor creates a monitor for a transfer of total bytes. A zero
// total is allowed but disables RemainingTime.
func NewMonitor(total int64) *Monitor {
	return &Monitor{total: total, now: time.Now}
}

// Total returns the declared transfer size.
func (m *Monitor) Total() int64 { return m.total }

// Received returns the number of bytes seen so far.
func (m *Monitor) Received() int64 { return m.received }

// Elapsed returns the time since the first chunk, or zero before it.
func (m *Monitor) Elapsed() time.Duration {
	if m.started.IsZero() {
		return 0
	}
	return m.lastReceived.Sub(m.started)
}

// CurrentSpeed returns the speed in bytes/sec measured between the last
// two chunks.
func (m *Monitor) CurrentSpeed() float64 { return m.currSpeed }

// AvgSpeed returns the average speed in bytes/sec over the whole
// transfer so far.
func (m *Monitor) AvgSpeed() float64 { return m.avgSpeed }

// DataReceived records that size more bytes have arrived and updates all
// statistics.
func (m *Monitor) DataReceived(size int) {
	if size <= 0 {
		return
	}
	now := m.now()
	if m.started.IsZero() {
		m.started = now
	}
	m.received += int64(size)

	if !m.lastReceived.IsZero() {
		if dt := now.Sub(m.lastReceived).Seconds(); dt > 0 {
			m.currSpeed = float64(size) / dt
		}
	}
	if elapsed := now.Sub(m.started).Seconds(); elapsed > 0 {
		m.avgSpeed = float64(m.received) / elapsed
	}
	m.lastReceived = now

	if len(m.history) == 0 || now.Sub(m.history[len(m.history)-1].at) >= historyInterval {
		m.history = append(m.history, sample{at: now, received: m.received})
	}
	if len(m.history) > historyMaxSize {
		m.history = m.history[1:]
	}
}

// RecentSpeed returns the average speed over the last lookBack history
// steps (each at least 500ms apart). It reports false until the history
// holds at least two samples.
func (m *Monitor) RecentSpeed(lookBack int) (float64, bool) {
	if len(m.history) < 2 {
		return 0, false
	}
	last := m.history[len(m.history)-1]
	first := m.history[0]
	if len(m.history) > lookBack {
		first = m.history[len(m.history)-lookBack-1]
	}
	dt := last.at.Sub(first.at).Seconds()
	if dt <= 0 {
		return 0, false
	}
	return float64(last.received-first.received) / dt, true
}

// RemainingTime estimates how long the rest of the transfer takes at the
// given speed in bytes/sec (pass CurrentSpeed or a RecentSpeed result).
// It reports false when the speed is unusably low or the total unknown.
func (m *Monitor) RemainingTime(speed float64) (time.Duration, bool) {
	if m.total <= 0 || speed <= 0.1 {
		return 0, false
	}
	secs := float64(m.total-m.received) / speed
	return time.Duration(secs * float64(time.Second)), true
}

// FormatSpeed renders a bytes/sec value with an SI prefix, e.g.
// "  1.50 MB/sec".
func FormatSpeed(v float64) string {
	return formatUnit(v, "B/sec")
}

// FormatSize renders a byte count with an SI prefix, e.g. "  4.00 GB".
func FormatSize(v float64) string {
	return formatUnit(v, "B")
}

func formatUnit(v float64, unit string) string {
	const prefixes = " kMGTPEZY"
	var power int
	var scaled float64
	if v >= 2e-10 {
		power = int(math.Log(v) / math.Log(1000))
		if power < 0 {
			power = 0
		}
		if power > len(prefixes)-1 {
			power = len(prefixes) - 1
		}
		scaled = v / math.Pow(1000, float64(power))
	}
	return fmt.Sprintf("%6.2f %s%s", scaled, string(prefixes[power]), unit)
}
