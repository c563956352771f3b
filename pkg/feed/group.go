package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Group runs one Coordinator per instrument as independent tasks. The
// feeds share nothing but the venue rate limiter their collaborators
// were built with; each owns its book exclusively.
type Group struct {
	mu     sync.RWMutex
	feeds  map[string]*Coordinator
	logger zerolog.Logger
}

// NewGroup creates an empty feed group.
func NewGroup() *Group {
	return &Group{
		feeds:  make(map[string]*Coordinator),
		logger: zerolog.Nop(),
	}
}

// SetLogger configures the group's logger.
func (g *Group) SetLogger(logger zerolog.Logger) {
	g.logger = logger
}

// Add registers a coordinator under its configured symbol. Adding a
// second feed for the same symbol replaces the first.
func (g *Group) Add(c *Coordinator) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.feeds[c.config.Symbol] = c
}

// Feed returns the coordinator for a symbol, or nil if absent.
func (g *Group) Feed(symbol string) *Coordinator {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.feeds[symbol]
}

// Symbols returns the registered symbols in sorted order.
func (g *Group) Symbols() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	symbols := make([]string, 0, len(g.feeds))
	for symbol := range g.feeds {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// Quotes returns the current top-of-book view of every feed.
func (g *Group) Quotes() map[string]Quote {
	g.mu.RLock()
	defer g.mu.RUnlock()

	quotes := make(map[string]Quote, len(g.feeds))
	for symbol, c := range g.feeds {
		quotes[symbol] = c.Quote()
	}
	return quotes
}

// Run executes every registered feed until the context is cancelled or
// one feed exhausts its reconnect attempts. A fatal feed error cancels
// the remaining feeds and is returned to the caller for supervisor-level
// handling.
func (g *Group) Run(ctx context.Context) error {
	g.mu.RLock()
	feeds := make([]*Coordinator, 0, len(g.feeds))
	for _, c := range g.feeds {
		feeds = append(feeds, c)
	}
	g.mu.RUnlock()

	if len(feeds) == 0 {
		return fmt.Errorf("no feeds registered")
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, c := range feeds {
		c := c
		eg.Go(func() error {
			err := c.Run(ctx)
			if err != nil && ctx.Err() == nil {
				g.logger.Error().
					Str("symbol", c.config.Symbol).
					Err(err).
					Msg("feed failed")
			}
			return err
		})
	}
	return eg.Wait()
}
