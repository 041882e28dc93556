package ports

import (
	"context"

	"github.com/vshulcz/pgprobe/internal/domain"
)

// StatsCollector reads the server-wide statistics rows for one target.
type StatsCollector interface {
	Collect(ctx context.Context, d domain.Descriptor) ([]domain.Sample, error)
}

// RateStore remembers the last absolute counter readings per target between runs.
type RateStore interface {
	Load(ctx context.Context, target string) (map[string]domain.Reading, error)
	Save(ctx context.Context, target string, readings map[string]domain.Reading) error
}

// Publisher delivers reports and collection errors on separate channels.
type Publisher interface {
	SendReport(ctx context.Context, env domain.Envelope) error
	SendError(ctx context.Context, env domain.Envelope) error
}
