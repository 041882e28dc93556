package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vshulcz/pgprobe/internal/adapters/ratestore/memory"
	"github.com/vshulcz/pgprobe/internal/domain"
)

func TestParseUnit(t *testing.T) {
	for in, want := range map[string]Unit{"": PerSecond, "second": PerSecond, "Minute": PerMinute, "m": PerMinute} {
		got, err := ParseUnit(in)
		if err != nil || got != want {
			t.Errorf("ParseUnit(%q)=(%v,%v) want %v", in, got, err, want)
		}
	}
	if _, err := ParseUnit("hour"); !errors.Is(err, domain.ErrInvalidUnit) {
		t.Fatalf("ParseUnit(hour) err=%v", err)
	}
}

func TestRate(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	tests := []struct {
		name   string
		prev   domain.Reading
		cur    domain.Reading
		unit   Unit
		want   float64
		wantOK bool
	}{
		{"per second", domain.Reading{Value: 100, At: t0}, domain.Reading{Value: 150, At: t0.Add(10 * time.Second)}, PerSecond, 5, true},
		{"per minute", domain.Reading{Value: 100, At: t0}, domain.Reading{Value: 150, At: t0.Add(10 * time.Second)}, PerMinute, 300, true},
		{"unchanged", domain.Reading{Value: 7, At: t0}, domain.Reading{Value: 7, At: t0.Add(time.Minute)}, PerSecond, 0, true},
		{"counter reset", domain.Reading{Value: 500, At: t0}, domain.Reading{Value: 3, At: t0.Add(time.Minute)}, PerSecond, 0, false},
		{"too soon", domain.Reading{Value: 1, At: t0}, domain.Reading{Value: 9, At: t0.Add(500 * time.Millisecond)}, PerSecond, 0, false},
		{"clock went back", domain.Reading{Value: 1, At: t0}, domain.Reading{Value: 9, At: t0.Add(-time.Minute)}, PerSecond, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Rate(tc.prev, tc.cur, tc.unit)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("Rate()=(%v,%v) want (%v,%v)", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

type failingStore struct{ loadErr, saveErr error }

func (f failingStore) Load(context.Context, string) (map[string]domain.Reading, error) {
	return map[string]domain.Reading{}, f.loadErr
}

func (f failingStore) Save(context.Context, string, map[string]domain.Reading) error {
	return f.saveErr
}

func TestRateDeriver_Derive(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	d := NewRateDeriver(st, "")
	t0 := time.Unix(1700000000, 0)

	first, err := d.Derive(ctx, "t", []domain.Sample{domain.NewSample("xact_commit", 100)}, t0)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if v, ok := first["xact_commit"]; !ok || v != nil {
		t.Fatalf("first=%v", first)
	}

	second, err := d.Derive(ctx, "t", []domain.Sample{domain.NewSample("xact_commit", 130)}, t0.Add(10*time.Second))
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if v := second["xact_commit"]; v == nil || *v != 3 {
		t.Fatalf("second=%v want 3", v)
	}

	// a reset yields no rate but still becomes the new baseline
	third, _ := d.Derive(ctx, "t", []domain.Sample{domain.NewSample("xact_commit", 10)}, t0.Add(20*time.Second))
	if third["xact_commit"] != nil {
		t.Fatalf("third=%v want nil", *third["xact_commit"])
	}
	saved, _ := st.Load(ctx, "t")
	if saved["xact_commit"].Value != 10 {
		t.Fatalf("baseline=%+v", saved["xact_commit"])
	}
}

func TestRateDeriver_StoreErrors(t *testing.T) {
	s := []domain.Sample{domain.NewSample("xact_commit", 1)}
	if _, err := NewRateDeriver(failingStore{loadErr: errors.New("io")}, PerSecond).Derive(context.Background(), "t", s, time.Now()); err == nil {
		t.Fatal("expected load error")
	}
	if _, err := NewRateDeriver(failingStore{saveErr: errors.New("io")}, PerSecond).Derive(context.Background(), "t", s, time.Now()); err == nil {
		t.Fatal("expected save error")
	}
	got, err := NewRateDeriver(failingStore{loadErr: errors.New("io")}, PerSecond).Derive(context.Background(), "t", nil, time.Now())
	if err != nil || len(got) != 0 {
		t.Fatalf("no counters should not touch the store: (%v,%v)", got, err)
	}
}
