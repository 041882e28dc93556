package observer_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/multierr"

	"github.com/vshulcz/pgprobe/pkg/observer"
)

type testEvent struct {
	ID string
}

func TestSubject_Publish_NotifiesAll(t *testing.T) {
	subj := observer.NewSubject[testEvent]()
	var mu sync.Mutex
	var called []testEvent

	record := observer.ObserverFunc[testEvent](func(_ context.Context, evt testEvent) error {
		mu.Lock()
		defer mu.Unlock()
		called = append(called, evt)
		return nil
	})
	subj.Attach(record, nil, record)

	evt := testEvent{ID: "numbackends"}
	if err := subj.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(called) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(called))
	}
	if called[0].ID != evt.ID {
		t.Fatalf("event mismatch: %+v", called[0])
	}
	if subj.Len() != 3 {
		t.Fatalf("Len=%d want 3", subj.Len())
	}
}

func TestSubject_ErrorsAreCombined(t *testing.T) {
	var handled []error
	subj := observer.NewSubject[testEvent](
		observer.ObserverFunc[testEvent](func(context.Context, testEvent) error { return errors.New("boom") }),
		observer.ObserverFunc[testEvent](func(context.Context, testEvent) error { return nil }),
		observer.ObserverFunc[testEvent](func(context.Context, testEvent) error { return errors.New("bang") }),
	)
	subj.SetErrorHandler(func(err error) { handled = append(handled, err) })

	err := subj.Publish(context.Background(), testEvent{})
	if got := multierr.Errors(err); len(got) != 2 || got[0].Error() != "boom" || got[1].Error() != "bang" {
		t.Fatalf("errors=%v", got)
	}
	if len(handled) != 2 {
		t.Fatalf("handler saw %d errors, want 2", len(handled))
	}
}

func TestSubject_NilIsNoop(t *testing.T) {
	var subj *observer.Subject[testEvent]
	if err := subj.Publish(context.Background(), testEvent{}); err != nil {
		t.Fatalf("Publish on nil subject: %v", err)
	}
	subj.Attach(observer.ObserverFunc[testEvent](nil))
	if subj.Len() != 0 {
		t.Fatal("nil subject must stay empty")
	}
}
