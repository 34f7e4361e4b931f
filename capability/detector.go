package capability

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/Nkambwe/Mfi-Mananger-sub000/cache"
)

// Connection is the slice of a database connection the detector needs:
// identity strings plus the ability to run one read-only scalar probe.
// *bun.DB satisfies the query side; pkg/di wraps it with the identity
// strings.
type Connection interface {
	ProviderName() string
	DSN() string
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Config carries the database-provider defaults from configuration.
type Config struct {
	// Provider, when set, declares the engine outright and skips driver
	// and connection-string detection.
	Provider string

	// MinimumVersion, when set as "major[.minor]", overrides the engine's
	// built-in version floor for approximate counting: a detected version
	// below it reports unsupported even if the engine default allows it.
	MinimumVersion string

	// ForceVersionCheck bypasses cached version records on every check.
	ForceVersionCheck bool

	// CacheTTL bounds how long a detected version record is trusted.
	CacheTTL time.Duration
}

// DefaultConfig returns detector defaults.
func DefaultConfig() Config {
	return Config{CacheTTL: time.Hour}
}

// versionCache supplements the primary cache so the synchronous
// SupportsApproximateCount can answer without an I/O round-trip. It is
// process-wide and keyed by a hash of the connection string so multiple
// logical databases do not collide.
var (
	versionMu    sync.RWMutex
	versionCache = map[uint64]VersionInfo{}
)

// Detector classifies the underlying database engine and version and derives
// which fast-count features it supports. Detection failures never propagate:
// they degrade to a conservative VersionInfo.
type Detector struct {
	conn    Connection
	cfg     Config
	cache   cache.Service
	logger  zerolog.Logger
	engine  Engine
	method  string
	dsnHash uint64
}

// New builds a detector for one connection. Engine classification happens
// immediately from the configured provider, driver name or connection
// string; version detection is deferred until first asked for.
func New(conn Connection, cfg Config, cacheSvc cache.Service, logger zerolog.Logger) *Detector {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}

	d := &Detector{
		conn:    conn,
		cfg:     cfg,
		cache:   cacheSvc,
		logger:  logger.With().Str("component", "capability").Logger(),
		dsnHash: xxhash.Sum64String(conn.DSN()),
	}

	if cfg.Provider != "" {
		if engine := engineFromName(cfg.Provider); engine != Unknown {
			d.engine, d.method = engine, methodConfigured
			return d
		}
	}
	d.engine, d.method = DetectEngine(conn.ProviderName(), conn.DSN())

	return d
}

// Provider returns the classified engine.
func (d *Detector) Provider() Engine {
	return d.engine
}

// ProviderInfo returns the diagnostic snapshot for the connection: engine,
// masked connection string, how the engine was detected and the static
// feature list.
func (d *Detector) ProviderInfo() ProviderInfo {
	return ProviderInfo{
		Engine:          d.engine,
		MaskedDSN:       MaskDSN(d.conn.DSN()),
		DetectionMethod: d.method,
		Features:        Features(d.engine),
	}
}

// VersionInfo returns the detected version record, served from cache while
// fresh. With ForceVersionCheck set the caches are bypassed and a fresh
// probe is issued. This method never returns an error: probe failures
// degrade to the engine's documented fallback verdict.
func (d *Detector) VersionInfo(ctx context.Context) VersionInfo {
	if d.cfg.ForceVersionCheck {
		return d.refresh(ctx)
	}

	versionMu.RLock()
	cached, ok := versionCache[d.dsnHash]
	versionMu.RUnlock()
	if ok && cached.Fresh(d.cfg.CacheTTL, time.Now()) {
		return cached
	}

	if d.cache != nil {
		info, err := cache.GetOrPopulate(ctx, d.cache, d.versionKey(), d.cfg.CacheTTL,
			func(ctx context.Context) (VersionInfo, error) {
				return d.detect(ctx), nil
			})
		switch {
		case err != nil:
			d.logger.Warn().Err(err).Msg("version cache lookup failed, probing directly")
		case info.Fresh(d.cfg.CacheTTL, time.Now()):
			d.remember(info)
			return info
		default:
			// The backing store rounds TTLs up to its bucket, so an entry
			// can outlive the configured TTL; an expired record is never
			// trusted, it is evicted and re-derived.
			_ = d.cache.Remove(ctx, d.versionKey())
		}
	}

	return d.refresh(ctx)
}

// SupportsApproximateCount answers synchronously from the process-wide
// version cache when a fresh record exists, otherwise from a per-engine
// heuristic table. It never touches the database; the heuristic answer can
// disagree with a later fresh detection, so callers that need the
// authoritative verdict use SupportsApproximateCountContext.
func (d *Detector) SupportsApproximateCount() bool {
	versionMu.RLock()
	cached, ok := versionCache[d.dsnHash]
	versionMu.RUnlock()
	if ok && cached.Fresh(d.cfg.CacheTTL, time.Now()) {
		return cached.SupportsApproximateCount
	}
	return heuristicSupport(d.engine)
}

// SupportsApproximateCountContext forces a cached-or-fresh capability check.
func (d *Detector) SupportsApproximateCountContext(ctx context.Context) bool {
	return d.VersionInfo(ctx).SupportsApproximateCount
}

func (d *Detector) versionKey() string {
	return cache.Key("capability", "version", cache.HashSuffix(d.conn.DSN()))
}

func (d *Detector) refresh(ctx context.Context) VersionInfo {
	info := d.detect(ctx)
	d.remember(info)
	if d.cache != nil {
		_ = d.cache.Set(ctx, d.versionKey(), info, d.cfg.CacheTTL)
	}
	return info
}

func (d *Detector) remember(info VersionInfo) {
	versionMu.Lock()
	versionCache[d.dsnHash] = info
	versionMu.Unlock()
}

// detect issues the engine's version probe and parses the result. Any query
// failure is logged and degrades to the engine's fallback verdict; detection
// never panics or errors out of this component.
func (d *Detector) detect(ctx context.Context) VersionInfo {
	now := time.Now()

	query, ok := versionQuery(d.engine)
	if !ok {
		d.logger.Debug().Str("engine", string(d.engine)).Msg("no version probe for engine")
		return fallbackVersion(d.engine, now)
	}

	var raw string
	if err := d.conn.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		d.logger.Error().Err(err).
			Str("engine", string(d.engine)).
			Msg("version probe failed, using fallback capability verdict")
		return fallbackVersion(d.engine, now)
	}

	info := parseVersion(d.engine, raw, now)
	if major, minor, ok := parseMinimumVersion(d.cfg.MinimumVersion); ok {
		below := info.Major < major || (info.Major == major && info.Minor < minor)
		if below && info.SupportsApproximateCount {
			d.logger.Debug().
				Str("engine", string(d.engine)).
				Str("minimum_version", d.cfg.MinimumVersion).
				Msg("detected version below configured floor")
			info.SupportsApproximateCount = false
		}
	}
	d.logger.Debug().
		Str("engine", string(d.engine)).
		Int("major", info.Major).
		Int("minor", info.Minor).
		Bool("approximate_count", info.SupportsApproximateCount).
		Msg("database version detected")

	return info
}

// parseMinimumVersion reads a "major[.minor]" configuration floor. Anything
// unparseable disables the floor rather than disabling approximate counts.
func parseMinimumVersion(s string) (major, minor int, ok bool) {
	if s == "" {
		return 0, 0, false
	}
	parts := strings.SplitN(s, ".", 3)
	major, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || major < 0 {
		return 0, 0, false
	}
	if len(parts) > 1 {
		if minor, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil || minor < 0 {
			return 0, 0, false
		}
	}
	return major, minor, true
}

// heuristicSupport is the no-I/O guess used when no fresh version record
// exists. Server engines are presumed modern enough for statistics-based
// counts; SQLite has no estimate source at any version.
func heuristicSupport(engine Engine) bool {
	switch engine {
	case SQLServer, Postgres, MySQL, Oracle:
		return true
	default:
		return false
	}
}

// ResetVersionCache clears the process-wide version cache. Intended for
// tests and for explicit shutdown/clear semantics.
func ResetVersionCache() {
	versionMu.Lock()
	versionCache = map[uint64]VersionInfo{}
	versionMu.Unlock()
}
