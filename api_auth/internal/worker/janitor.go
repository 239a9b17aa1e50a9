package worker

import (
	"context"
	"time"

	"github.com/icedoutskay/grainlify/pkg/logging"
)

// NoncePruner deletes consumed and expired nonces.
type NoncePruner interface {
	PruneNonces(ctx context.Context) (int64, error)
}

// NonceJanitor periodically prunes the nonce table.
type NonceJanitor struct {
	pruner   NoncePruner
	logger   logging.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewNonceJanitor creates a janitor running every interval.
func NewNonceJanitor(p NoncePruner, l logging.Logger, interval time.Duration) *NonceJanitor {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &NonceJanitor{
		pruner:   p,
		logger:   l,
		interval: interval,
		timeout:  30 * time.Second,
	}
}

// Start runs until ctx is cancelled. It always returns nil so it can sit in
// an errgroup next to the HTTP server.
func (j *NonceJanitor) Start(ctx context.Context) error {
	j.logger.WithField("interval", j.interval.String()).Info("Starting nonce janitor")
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on start
	j.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Stopping nonce janitor")
			return nil
		case <-ticker.C:
			j.prune(ctx)
		}
	}
}

func (j *NonceJanitor) prune(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	n, err := j.pruner.PruneNonces(ctx)
	if err != nil {
		j.logger.WithError(err).Error("Failed to prune nonces")
		return
	}
	if n > 0 {
		j.logger.WithField("count", n).Info("Pruned nonces")
	} else {
		j.logger.Debug("No nonces to prune")
	}
}
