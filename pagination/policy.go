// Package pagination decides whether paged reads may use statistics-based
// approximate counts instead of exact COUNT queries.
package pagination

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nkambwe/Mfi-Mananger-sub000/capability"
)

// Override carries per-table pagination configuration.
type Override struct {
	// UseApproximate, when non-nil, decides verbatim and skips the row
	// estimate and name heuristic.
	UseApproximate *bool

	// EstimatedRows is the operator-declared table size. Zero means
	// unconfigured.
	EstimatedRows int64

	// Threshold replaces the global threshold for this table. Zero means
	// unconfigured.
	Threshold int64
}

// Config carries the pagination defaults from configuration.
type Config struct {
	// Enabled is the global kill-switch. When false, approximate counting
	// is off regardless of any override.
	Enabled bool

	// GlobalThreshold is the estimated row count at which a table is
	// considered large enough for approximate counting.
	GlobalThreshold int64

	// ErrorTolerancePercent documents how far an approximate count may
	// drift from the exact count before operators should distrust the
	// engine's statistics. Informational; the policy does not measure it.
	ErrorTolerancePercent float64

	// CountCacheTTL bounds how long paged-read counts may be cached.
	CountCacheTTL time.Duration

	// Overrides maps table names to per-table settings.
	Overrides map[string]Override
}

// DefaultConfig returns pagination defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:               true,
		GlobalThreshold:       100_000,
		ErrorTolerancePercent: 10,
		CountCacheTTL:         5 * time.Minute,
	}
}

// largeTableTokens flags tables presumed large by name when nothing better
// is configured: logs, audit trails, ledgers and user registries.
var largeTableTokens = []string{"log", "audit", "transaction", "history", "user"}

// Policy combines the global configuration, per-table overrides and the
// capability detector's verdict into a use/don't-use decision per table.
type Policy struct {
	cfg      Config
	detector *capability.Detector
	logger   zerolog.Logger
}

// New builds a policy over the given detector.
func New(cfg Config, detector *capability.Detector, logger zerolog.Logger) *Policy {
	if cfg.GlobalThreshold <= 0 {
		cfg.GlobalThreshold = DefaultConfig().GlobalThreshold
	}
	if cfg.CountCacheTTL <= 0 {
		cfg.CountCacheTTL = DefaultConfig().CountCacheTTL
	}
	return &Policy{
		cfg:      cfg,
		detector: detector,
		logger:   logger.With().Str("component", "pagination").Logger(),
	}
}

// ShouldUseApproximateCount decides whether a count over table may come from
// engine statistics. filtered reports whether the caller's query carries a
// predicate; approximate counts are only valid for unfiltered population
// counts, so any filter forces an exact count — but only after the
// capability check, so an unsupported engine short-circuits first.
//
// Decision order, short-circuiting on the first false:
// global kill-switch, database capability, filter check, explicit override,
// estimated rows vs threshold, table-name heuristic.
func (p *Policy) ShouldUseApproximateCount(ctx context.Context, table string, filtered bool) bool {
	if !p.cfg.Enabled {
		return false
	}

	if !p.detector.SupportsApproximateCountContext(ctx) {
		return false
	}

	if filtered {
		return false
	}

	override, ok := p.cfg.Overrides[table]
	if ok && override.UseApproximate != nil {
		return *override.UseApproximate
	}

	if ok && override.EstimatedRows > 0 {
		decision := override.EstimatedRows >= p.Threshold(table)
		p.logger.Debug().
			Str("table", table).
			Int64("estimated_rows", override.EstimatedRows).
			Bool("approximate", decision).
			Msg("pagination decision from estimated rows")
		return decision
	}

	return nameSuggestsLargeTable(table)
}

// Threshold returns the approximate-count threshold for a table: its
// override when configured, otherwise the global threshold.
func (p *Policy) Threshold(table string) int64 {
	if override, ok := p.cfg.Overrides[table]; ok && override.Threshold > 0 {
		return override.Threshold
	}
	return p.cfg.GlobalThreshold
}

// CountCacheTTL returns how long paged-read counts may be cached.
func (p *Policy) CountCacheTTL() time.Duration {
	return p.cfg.CountCacheTTL
}

func nameSuggestsLargeTable(table string) bool {
	name := strings.ToLower(table)
	for _, token := range largeTableTokens {
		if strings.Contains(name, token) {
			return true
		}
	}
	return false
}
