// Package probe runs one PostgreSQL collection pass and emits either a report or a collection error.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vshulcz/pgprobe/internal/domain"
	"github.com/vshulcz/pgprobe/internal/ports"
	"github.com/vshulcz/pgprobe/internal/resolver"
)

// Outcome describes what a run produced.
type Outcome struct {
	Envelope domain.Envelope
	// Emitted is false when an all-null report was suppressed.
	Emitted bool
}

// Service wires the resolver, collector, rate derivation and publisher together.
type Service struct {
	collector ports.StatsCollector
	pub       ports.Publisher
	rates     *RateDeriver
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
	source    string
	cfg       domain.ConnectionConfig
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSource names the host the probe runs on.
func WithSource(host string) Option {
	return func(s *Service) { s.source = host }
}

// WithIDs replaces the envelope ID generator.
func WithIDs(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// New returns a Service for one monitored target.
func New(cfg domain.ConnectionConfig, c ports.StatsCollector, rates *RateDeriver, p ports.Publisher, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		collector: c,
		rates:     rates,
		pub:       p,
		log:       zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RunOnce performs a single collection pass. A collection failure is published on
// the error channel and is not returned; the returned error covers rate state
// and delivery problems only.
func (s *Service) RunOnce(ctx context.Context) (Outcome, error) {
	d := resolver.Resolve(s.cfg)
	target := d.Target()
	now := s.now()
	env := domain.Envelope{
		ID:        s.newID(),
		Source:    s.source,
		Target:    target,
		Timestamp: now.UTC(),
	}

	samples, err := s.collector.Collect(ctx, d)
	if err != nil {
		var ce *domain.CollectionError
		if !errors.As(err, &ce) {
			ce = domain.NewCollectionError(domain.SubjectQuery, err)
		}
		env.Error = ce
		s.log.Warn("collection failed", zap.String("target", target), zap.String("subject", ce.Subject), zap.Error(err))
		if perr := s.pub.SendError(ctx, env); perr != nil {
			return Outcome{Envelope: env}, fmt.Errorf("send error: %w", perr)
		}
		return Outcome{Envelope: env, Emitted: true}, nil
	}

	var counters []domain.Sample
	for _, smp := range samples {
		if smp.Kind == domain.Counter {
			counters = append(counters, smp)
		}
	}
	rates, err := s.rates.Derive(ctx, target, counters, now)
	if err != nil {
		return Outcome{Envelope: env}, err
	}

	env.Report = BuildReport(samples, rates)
	if !env.Report.HasValues() {
		s.log.Debug("report suppressed: no values", zap.String("target", target), zap.Int("entries", env.Report.Len()))
		return Outcome{Envelope: env}, nil
	}

	if err := s.pub.SendReport(ctx, env); err != nil {
		return Outcome{Envelope: env}, fmt.Errorf("send report: %w", err)
	}
	s.log.Info("report sent", zap.String("target", target), zap.Int("metrics", env.Report.Len()))
	return Outcome{Envelope: env, Emitted: true}, nil
}

// BuildReport lays out gauges as absolute values and counters as derived rates,
// in sample order, followed by the cache hit percentage.
func BuildReport(samples []domain.Sample, rates map[string]*float64) *domain.Report {
	r := domain.NewReport()
	var hit, read int64
	for _, smp := range samples {
		switch smp.Name {
		case domain.BlksHit:
			hit = smp.Value
		case domain.BlksRead:
			read = smp.Value
		}
		if smp.Kind == domain.Gauge {
			r.Set(smp.Name, domain.Value(float64(smp.Value)))
			continue
		}
		r.Set(smp.Name, rates[smp.Name])
	}
	r.Set(domain.BlksCachePct, CachePercent(hit, read))
	return r
}

// CachePercent is the share of block reads served from shared buffers,
// truncated to a whole percent. It is undefined when nothing was read.
func CachePercent(hit, read int64) *float64 {
	if hit == 0 && read == 0 {
		return nil
	}
	pct := float64(hit) / (float64(hit) + float64(read)) * 100
	return domain.Value(float64(int64(pct)))
}
