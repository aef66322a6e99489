package synth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BarkinBalci/eventcore/internal/core"
	"github.com/BarkinBalci/eventcore/internal/domain"
)

// Config controls the synthetic load a Generator produces.
type Config struct {
	// RatePerSecond is the total event rate across all clients.
	RatePerSecond int
	// ClientCardinality is the number of distinct clientIds the generator
	// cycles through; a higher cardinality spreads load across more
	// dispatcher shards.
	ClientCardinality int64
	// Duration bounds how long Start runs before returning on its own;
	// zero means run until ctx is cancelled.
	Duration time.Duration
}

// Generator emits synthetic events into a Pipeline at a fixed rate, for
// local demo and soak runs where no real producer is wired up.
type Generator struct {
	pipeline *core.Pipeline
	cfg      Config
	log      *zap.Logger
}

// NewGenerator builds a Generator that submits to pipeline.
func NewGenerator(pipeline *core.Pipeline, cfg Config, log *zap.Logger) *Generator {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 100
	}
	if cfg.ClientCardinality <= 0 {
		cfg.ClientCardinality = 64
	}
	return &Generator{pipeline: pipeline, cfg: cfg, log: log}
}

// Start emits events until ctx is cancelled or cfg.Duration elapses,
// whichever comes first.
func (g *Generator) Start(ctx context.Context) {
	if g.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Duration)
		defer cancel()
	}

	interval := time.Second / time.Duration(g.cfg.RatePerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var n int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			event := domain.Event{
				ClientID:  n % g.cfg.ClientCardinality,
				UUID:      uuid.NewString(),
				CreatedAt: time.Now(),
			}
			n++

			if err := g.pipeline.Accept(ctx, event); err != nil {
				g.log.Warn("synthetic event rejected", zap.Error(err))
			}
		}
	}
}
