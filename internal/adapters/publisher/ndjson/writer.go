// Package ndjson appends probe envelopes to a newline-delimited JSON stream.
package ndjson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vshulcz/pgprobe/internal/domain"
	"github.com/vshulcz/pgprobe/internal/ports"
)

// Stdout is the path that selects standard output instead of a file.
const Stdout = "-"

const (
	kindReport = "report"
	kindError  = "error"
)

// Writer appends one JSON line per envelope. The kind field tells reports and errors apart.
type Writer struct {
	out  io.Writer
	path string
	mu   sync.Mutex
}

var _ ports.Publisher = (*Writer)(nil)

type line struct {
	Kind string `json:"kind"`
	domain.Envelope
}

// New writes to path, or to standard output when path is "-".
func New(path string) *Writer {
	if path == Stdout {
		return &Writer{out: os.Stdout}
	}
	return &Writer{path: path}
}

// NewStream writes to an already open stream.
func NewStream(w io.Writer) *Writer {
	return &Writer{out: w}
}

// SendReport appends a report line.
func (w *Writer) SendReport(ctx context.Context, env domain.Envelope) error {
	return w.append(ctx, kindReport, env)
}

// SendError appends an error line.
func (w *Writer) SendError(ctx context.Context, env domain.Envelope) error {
	return w.append(ctx, kindError, env)
}

func (w *Writer) append(_ context.Context, kind string, env domain.Envelope) (retErr error) {
	if w == nil || (w.out == nil && w.path == "") {
		return nil
	}

	payload, err := json.Marshal(line{Kind: kind, Envelope: env})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", kind, err)
	}
	payload = append(payload, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.out != nil {
		if _, err := w.out.Write(payload); err != nil {
			return fmt.Errorf("write %s line: %w", kind, err)
		}
		return nil
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close output file: %w", cerr)
		}
	}()

	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}
