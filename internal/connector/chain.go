// Package connector defines the strategy-chain primitive shared by every
// source connector: an ordered list of extraction strategies tried in
// sequence until one yields items.
package connector

import (
	"context"

	"go.uber.org/zap"

	"github.com/inbix/curator/internal/curator"
)

// Strategy is one extraction method for a source. Returning zero items,
// with or without an error, moves the chain on to the next strategy.
type Strategy struct {
	Name string
	Run  func(ctx context.Context) ([]curator.Item, error)
}

// Chain runs strategies in order and stops at the first non-empty result.
// Strategy errors never escape the chain; they are logged and treated as an
// empty result.
type Chain struct {
	source     curator.Source
	strategies []Strategy
	logger     *zap.Logger
}

// NewChain builds a Chain for the given source family.
func NewChain(source curator.Source, logger *zap.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		source:     source,
		strategies: strategies,
		logger:     logger.With(zap.String("source", string(source))),
	}
}

// Collect tries each strategy until one succeeds. Malformed items (empty URL
// or title) are discarded before emission.
func (c *Chain) Collect(ctx context.Context) []curator.Item {
	for _, strat := range c.strategies {
		if ctx.Err() != nil {
			return nil
		}
		items, err := strat.Run(ctx)
		if err != nil {
			c.logger.Warn("strategy failed",
				zap.String("strategy", strat.Name),
				zap.Error(err),
			)
			continue
		}
		items = validItems(items, c.source)
		if len(items) == 0 {
			c.logger.Debug("strategy returned nothing", zap.String("strategy", strat.Name))
			continue
		}
		c.logger.Info("strategy succeeded",
			zap.String("strategy", strat.Name),
			zap.Int("items", len(items)),
		)
		return items
	}
	c.logger.Warn("all strategies exhausted, contributing nothing")
	return nil
}

// validItems enforces the emission invariant and stamps the source family.
func validItems(items []curator.Item, source curator.Source) []curator.Item {
	out := items[:0]
	for _, item := range items {
		if item.URL == "" || item.Title == "" {
			continue
		}
		item.Source = source
		out = append(out, item)
	}
	return out
}
