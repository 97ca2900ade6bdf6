package catalogue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TableFetcher returns the parsed rows of a table source.
type TableFetcher interface {
	Fetch(ctx context.Context, locator string) ([][]string, error)
}

// Loader fetches the lunch and dinner tables and extracts a catalogue.
type Loader struct {
	fetcher TableFetcher
	logger  *zap.Logger
}

// NewLoader creates a Loader.
func NewLoader(fetcher TableFetcher, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{fetcher: fetcher, logger: logger}
}

// Load fetches both tables concurrently and merges them once both are in.
// A failure of either fetch fails the load; no partial catalogue is returned.
func (l *Loader) Load(ctx context.Context, lunchLocator, dinnerLocator string) ([]Dish, error) {
	start := time.Now()

	var lunchRows, dinnerRows [][]string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := l.fetcher.Fetch(gctx, lunchLocator)
		if err != nil {
			return fmt.Errorf("failed to fetch lunch table: %w", err)
		}
		lunchRows = rows
		return nil
	})
	g.Go(func() error {
		rows, err := l.fetcher.Fetch(gctx, dinnerLocator)
		if err != nil {
			return fmt.Errorf("failed to fetch dinner table: %w", err)
		}
		dinnerRows = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dishes := Extract(lunchRows, dinnerRows)
	for _, issue := range Validate(dishes) {
		l.logger.Warn("Suspicious dish in catalogue",
			zap.String("id", issue.DishID),
			zap.String("name", issue.Name),
			zap.String("kind", string(issue.Kind)))
	}

	l.logger.Info("Catalogue loaded",
		zap.Int("lunch_rows", len(lunchRows)),
		zap.Int("dinner_rows", len(dinnerRows)),
		zap.Int("dishes", len(dishes)),
		zap.Duration("latency", time.Since(start)))

	return dishes, nil
}
