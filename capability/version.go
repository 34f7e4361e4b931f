package capability

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// VersionInfo records the detected engine version and the approximate-count
// verdict derived from it. CheckedAt drives TTL-based staleness checks: an
// expired record is never trusted, callers re-derive or fall back to the
// engine heuristic.
type VersionInfo struct {
	Engine                   Engine
	Major                    int
	Minor                    int
	Build                    int
	Edition                  string
	Raw                      string
	SupportsApproximateCount bool
	CheckedAt                time.Time
}

// Fresh reports whether the record is still within its TTL.
func (v VersionInfo) Fresh(ttl time.Duration, now time.Time) bool {
	if v.CheckedAt.IsZero() || ttl <= 0 {
		return false
	}
	return now.Sub(v.CheckedAt) < ttl
}

// versionQuery returns the read-only probe issued to detect the engine
// version. The bool is false for engines without a probe.
func versionQuery(engine Engine) (string, bool) {
	switch engine {
	case SQLServer:
		return "SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128)) + '|' + CAST(SERVERPROPERTY('Edition') AS NVARCHAR(128))", true
	case Postgres:
		return "SELECT version()", true
	case MySQL:
		return "SELECT VERSION()", true
	case SQLite:
		return "SELECT sqlite_version()", true
	case Oracle:
		return "SELECT banner FROM v$version WHERE ROWNUM = 1", true
	default:
		return "", false
	}
}

var (
	postgresVersionRe = regexp.MustCompile(`PostgreSQL (\d+)\.(\d+)(?:\.(\d+))?`)
	mysqlVersionRe    = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)
	sqliteVersionRe   = regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?`)
	oracleReleaseRe   = regexp.MustCompile(`Release (\d+)\.(\d+)\.(\d+)`)
	oracleMajorRe     = regexp.MustCompile(`(\d+)c?\b`)
)

// parseVersion turns an engine's raw version string into a VersionInfo with
// the documented fail-open/fail-closed default when the string does not
// match the engine's canonical format:
//
//   - SQLServer: "major.minor.build[.rev]|Edition"; approximate counting
//     needs major >= 11 (partition-statistics counts). Fails closed.
//   - Postgres: "PostgreSQL <major>.<minor>[.<patch>] ..."; supported from
//     8.1 (major > 8, or 8 with minor >= 1). Fails OPEN: the statistics
//     view predates every release still in the wild.
//   - MySQL: "<major>.<minor>.<patch>"; supported from 5.7. Fails closed.
//   - SQLite: never supported, no statistics-based row estimate exists.
//   - Oracle: "... Release <a>.<b>.<c>"; supported from 10. Fails OPEN.
//   - Unknown: never supported.
func parseVersion(engine Engine, raw string, now time.Time) VersionInfo {
	info := VersionInfo{Engine: engine, Raw: raw, CheckedAt: now}

	switch engine {
	case SQLServer:
		version := raw
		if i := strings.IndexByte(raw, '|'); i >= 0 {
			version = raw[:i]
			info.Edition = raw[i+1:]
		}
		parts := strings.Split(version, ".")
		if len(parts) < 2 {
			return info
		}
		info.Major = atoi(parts[0])
		info.Minor = atoi(parts[1])
		if len(parts) > 2 {
			info.Build = atoi(parts[2])
		}
		info.SupportsApproximateCount = info.Major >= 11

	case Postgres:
		m := postgresVersionRe.FindStringSubmatch(raw)
		if m == nil {
			info.SupportsApproximateCount = true
			return info
		}
		info.Major = atoi(m[1])
		info.Minor = atoi(m[2])
		if m[3] != "" {
			info.Build = atoi(m[3])
		}
		info.SupportsApproximateCount = info.Major > 8 || (info.Major == 8 && info.Minor >= 1)

	case MySQL:
		m := mysqlVersionRe.FindStringSubmatch(raw)
		if m == nil {
			return info
		}
		info.Major = atoi(m[1])
		info.Minor = atoi(m[2])
		info.Build = atoi(m[3])
		info.SupportsApproximateCount = info.Major >= 8 || (info.Major == 5 && info.Minor >= 7)

	case SQLite:
		if m := sqliteVersionRe.FindStringSubmatch(raw); m != nil {
			info.Major = atoi(m[1])
			info.Minor = atoi(m[2])
			if m[3] != "" {
				info.Build = atoi(m[3])
			}
		}

	case Oracle:
		m := oracleReleaseRe.FindStringSubmatch(raw)
		if m == nil {
			if mm := oracleMajorRe.FindStringSubmatch(raw); mm != nil {
				info.Major = atoi(mm[1])
				info.SupportsApproximateCount = info.Major >= 10
				return info
			}
			info.SupportsApproximateCount = true
			return info
		}
		info.Major = atoi(m[1])
		info.Minor = atoi(m[2])
		info.Build = atoi(m[3])
		info.SupportsApproximateCount = info.Major >= 10
	}

	return info
}

// fallbackVersion is the degraded record used when the version probe itself
// fails. Postgres and Oracle keep their fail-open verdict, every other
// engine reports unsupported.
func fallbackVersion(engine Engine, now time.Time) VersionInfo {
	return VersionInfo{
		Engine:                   engine,
		SupportsApproximateCount: engine == Postgres || engine == Oracle,
		CheckedAt:                now,
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ApproximateCountSQL returns the engine's statistics-based row estimate
// query for a table, with a single bun-style placeholder for the table name.
// The bool is false for engines without an estimate source.
func ApproximateCountSQL(engine Engine) (string, bool) {
	switch engine {
	case SQLServer:
		return "SELECT CAST(SUM(row_count) AS BIGINT) FROM sys.dm_db_partition_stats WHERE object_id = OBJECT_ID(?) AND index_id IN (0, 1)", true
	case Postgres:
		return "SELECT COALESCE(reltuples::bigint, 0) FROM pg_class WHERE relname = ?", true
	case MySQL:
		return "SELECT COALESCE(TABLE_ROWS, 0) FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?", true
	case Oracle:
		return "SELECT NVL(NUM_ROWS, 0) FROM USER_TABLES WHERE TABLE_NAME = UPPER(?)", true
	default:
		return "", false
	}
}
