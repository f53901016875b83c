package currency

import (
	"context"
	"sync"
	"time"

	"moneymanager/internal/log"
)

// DefaultRefreshInterval matches how often the rate source is polled.
const DefaultRefreshInterval = 30 * time.Minute

// Refresher keeps the last known rate table and re-fetches it periodically.
// Reads never block on the network.
type Refresher struct {
	source   Source
	interval time.Duration
	logger   *log.Logger

	mu      sync.RWMutex
	current Table
}

func NewRefresher(source Source, interval time.Duration, secondary string, logger *log.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Refresher{
		source:   source,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentRates),
		current:  FallbackTable(secondary),
	}
}

// Current returns the last known table, or the fallback table.
func (r *Refresher) Current() Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Refresh fetches once. On failure the previous table is kept.
func (r *Refresher) Refresh(ctx context.Context) (Table, error) {
	t, err := r.source.Fetch(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "Exchange rate refresh failed, keeping last known rates",
			log.FieldError, err,
			log.FieldRateSource, r.Current().Source)
		return r.Current(), err
	}

	r.mu.Lock()
	r.current = t
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Exchange rates refreshed",
		"usd_to_secondary", t.USDToSecondary.String(),
		"eur_to_secondary", t.EURToSecondary.String(),
		"eur_to_usd", t.EURToUSD.String())
	return t, nil
}

// Run refreshes immediately and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	_, _ = r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping exchange rate refresher")
			return nil
		case <-ticker.C:
			_, _ = r.Refresh(ctx)
		}
	}
}
