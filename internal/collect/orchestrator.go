// Package collect fans collection out across every configured connector and
// gathers the combined raw item set. A connector that fails, panics, or runs
// out of budget contributes nothing; the run itself never fails.
package collect

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/inbix/curator/internal/curator"
	"github.com/inbix/curator/internal/metrics"
)

// Orchestrator runs connectors concurrently under a shared worker limit.
type Orchestrator struct {
	connectors []curator.Connector
	budget     time.Duration
	limit      int
	logger     *zap.Logger
}

// New builds an Orchestrator. budget bounds each connector's run; limit
// bounds how many connectors run at once.
func New(connectors []curator.Connector, budget time.Duration, limit int, logger *zap.Logger) *Orchestrator {
	if budget <= 0 {
		budget = 90 * time.Second
	}
	if limit <= 0 {
		limit = len(connectors)
	}
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		connectors: connectors,
		budget:     budget,
		limit:      limit,
		logger:     logger,
	}
}

// Run collects from every connector and returns the concatenated results.
// Order across connectors is not significant; curation re-sorts downstream.
func (o *Orchestrator) Run(ctx context.Context) []curator.Item {
	var (
		mu  sync.Mutex
		all []curator.Item
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limit)
	for _, conn := range o.connectors {
		conn := conn
		g.Go(func() error {
			items := o.runOne(ctx, conn)
			metrics.ObserveCollected(conn.Name(), len(items))
			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	o.logger.Info("collection finished",
		zap.Int("connectors", len(o.connectors)),
		zap.Int("items", len(all)),
	)
	return all
}

// runOne applies the per-connector budget and contains panics. One connector
// hitting a parser bug on hostile markup must not take down the run.
func (o *Orchestrator) runOne(ctx context.Context, conn curator.Connector) (items []curator.Item) {
	ctx, cancel := context.WithTimeout(ctx, o.budget)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("connector panicked",
				zap.String("connector", conn.Name()),
				zap.Any("panic", r),
			)
			items = nil
		}
		o.logger.Info("connector finished",
			zap.String("connector", conn.Name()),
			zap.Int("items", len(items)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	return conn.Collect(ctx)
}
