package fanout

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"github.com/vshulcz/pgprobe/internal/domain"
)

type recorder struct {
	err     error
	reports int
	errs    int
}

func (r *recorder) SendReport(context.Context, domain.Envelope) error {
	r.reports++
	return r.err
}

func (r *recorder) SendError(context.Context, domain.Envelope) error {
	r.errs++
	return r.err
}

func TestPublisher_DeliversToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	p := New(zaptest.NewLogger(t), a, nil, b)
	if p.Len() != 2 {
		t.Fatalf("Len=%d want 2", p.Len())
	}

	if err := p.SendReport(context.Background(), domain.Envelope{Report: domain.NewReport()}); err != nil {
		t.Fatalf("SendReport: %v", err)
	}
	if err := p.SendError(context.Background(), domain.Envelope{}); err != nil {
		t.Fatalf("SendError: %v", err)
	}
	for i, r := range []*recorder{a, b} {
		if r.reports != 1 || r.errs != 1 {
			t.Fatalf("target %d: reports=%d errs=%d", i, r.reports, r.errs)
		}
	}
}

func TestPublisher_FailureDoesNotStopOthers(t *testing.T) {
	bad1 := &recorder{err: errors.New("backend down")}
	good := &recorder{}
	bad2 := &recorder{err: errors.New("disk full")}
	p := New(nil, bad1, good, bad2)

	err := p.SendReport(context.Background(), domain.Envelope{})
	if got := multierr.Errors(err); len(got) != 2 {
		t.Fatalf("errors=%v want 2", got)
	}
	if good.reports != 1 || bad2.reports != 1 {
		t.Fatalf("good=%d bad2=%d want both delivered", good.reports, bad2.reports)
	}
}

func TestPublisher_NoTargets(t *testing.T) {
	p := New(nil)
	if err := p.SendError(context.Background(), domain.Envelope{}); err != nil {
		t.Fatalf("SendError: %v", err)
	}
}
