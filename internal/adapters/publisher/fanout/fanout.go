// Package fanout delivers every envelope to several publishers.
package fanout

import (
	"context"

	"go.uber.org/zap"

	"github.com/vshulcz/pgprobe/internal/domain"
	"github.com/vshulcz/pgprobe/internal/ports"
	"github.com/vshulcz/pgprobe/pkg/observer"
)

// Publisher forwards reports and errors to all targets. One failing target does not stop the others.
type Publisher struct {
	reports *observer.Subject[domain.Envelope]
	errs    *observer.Subject[domain.Envelope]
}

var _ ports.Publisher = (*Publisher)(nil)

// New builds a fan-out over targets; nil entries are skipped.
func New(log *zap.Logger, targets ...ports.Publisher) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Publisher{
		reports: observer.NewSubject[domain.Envelope](),
		errs:    observer.NewSubject[domain.Envelope](),
	}
	for _, t := range targets {
		if t == nil {
			continue
		}
		p.reports.Attach(observer.ObserverFunc[domain.Envelope](t.SendReport))
		p.errs.Attach(observer.ObserverFunc[domain.Envelope](t.SendError))
	}
	onErr := func(err error) { log.Warn("publisher failed", zap.Error(err)) }
	p.reports.SetErrorHandler(onErr)
	p.errs.SetErrorHandler(onErr)
	return p
}

// Len reports how many targets are attached.
func (p *Publisher) Len() int {
	return p.reports.Len()
}

// SendReport delivers env to every target and combines their errors.
func (p *Publisher) SendReport(ctx context.Context, env domain.Envelope) error {
	return p.reports.Publish(ctx, env)
}

// SendError delivers env to every target and combines their errors.
func (p *Publisher) SendError(ctx context.Context, env domain.Envelope) error {
	return p.errs.Publish(ctx, env)
}
