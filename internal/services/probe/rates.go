package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vshulcz/pgprobe/internal/domain"
	"github.com/vshulcz/pgprobe/internal/ports"
)

// Unit is the time base of derived counter rates.
type Unit string

const (
	PerSecond Unit = "second"
	PerMinute Unit = "minute"
)

// ParseUnit accepts "second" or "minute"; empty means per second.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "second", "sec", "s":
		return PerSecond, nil
	case "minute", "min", "m":
		return PerMinute, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidUnit, s)
	}
}

// minElapsed is the shortest interval a rate is computed over.
const minElapsed = time.Second

// Rate derives the change from prev to cur. It yields nothing when the counter
// went backwards (reset or wrap) or less than a second has elapsed.
func Rate(prev, cur domain.Reading, unit Unit) (float64, bool) {
	elapsed := cur.At.Sub(prev.At)
	if cur.Value < prev.Value || elapsed < minElapsed {
		return 0, false
	}
	r := float64(cur.Value-prev.Value) / elapsed.Seconds()
	if unit == PerMinute {
		r *= 60
	}
	return r, true
}

// RateDeriver turns counter samples into rates using readings remembered by a RateStore.
type RateDeriver struct {
	store ports.RateStore
	unit  Unit
}

// NewRateDeriver returns a deriver reporting in unit.
func NewRateDeriver(store ports.RateStore, unit Unit) *RateDeriver {
	if unit == "" {
		unit = PerSecond
	}
	return &RateDeriver{store: store, unit: unit}
}

// Derive returns a rate per counter sample, nil where none can be computed yet,
// and remembers the current values for the next run.
func (d *RateDeriver) Derive(ctx context.Context, target string, counters []domain.Sample, now time.Time) (map[string]*float64, error) {
	if len(counters) == 0 {
		return map[string]*float64{}, nil
	}
	prev, err := d.store.Load(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}

	rates := make(map[string]*float64, len(counters))
	next := make(map[string]domain.Reading, len(counters))
	for _, s := range counters {
		cur := domain.Reading{Value: s.Value, At: now}
		next[s.Name] = cur
		rates[s.Name] = nil
		p, ok := prev[s.Name]
		if !ok {
			continue
		}
		if r, ok := Rate(p, cur, d.unit); ok {
			rates[s.Name] = domain.Value(r)
		}
	}

	if err := d.store.Save(ctx, target, next); err != nil {
		return nil, fmt.Errorf("save readings: %w", err)
	}
	return rates, nil
}
