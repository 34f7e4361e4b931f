package capability

import (
	"regexp"
	"strings"
)

// Engine identifies a supported database engine.
type Engine string

const (
	SQLServer Engine = "sqlserver"
	Postgres  Engine = "postgres"
	MySQL     Engine = "mysql"
	SQLite    Engine = "sqlite"
	Oracle    Engine = "oracle"
	Unknown   Engine = "unknown"
)

// Detection methods reported through ProviderInfo for diagnostics.
const (
	methodConfigured   = "configured provider"
	methodDriverName   = "driver name"
	methodConnString   = "connection string pattern"
	methodUndetermined = "undetermined"
)

// ProviderInfo is a diagnostic snapshot of what the detector knows about the
// configured database provider.
type ProviderInfo struct {
	Engine          Engine
	MaskedDSN       string
	DetectionMethod string
	Features        []string
}

// engineFromName maps a driver/provider name to an engine. Returns Unknown
// when the name carries no recognizable engine token.
func engineFromName(name string) Engine {
	n := strings.ToLower(name)
	switch {
	case n == "":
		return Unknown
	case strings.Contains(n, "sqlserver"), strings.Contains(n, "mssql"), strings.Contains(n, "sqlclient"):
		return SQLServer
	case strings.Contains(n, "postgres"), strings.Contains(n, "pgx"), strings.Contains(n, "npgsql"), n == "pq":
		return Postgres
	case strings.Contains(n, "mysql"), strings.Contains(n, "mariadb"):
		return MySQL
	case strings.Contains(n, "sqlite"):
		return SQLite
	case strings.Contains(n, "oracle"), strings.Contains(n, "godror"), strings.Contains(n, "oci"):
		return Oracle
	default:
		return Unknown
	}
}

// engineFromDSN pattern-matches a connection string when the driver name was
// inconclusive. Checks run from most to least specific.
func engineFromDSN(dsn string) Engine {
	d := strings.ToLower(dsn)
	switch {
	case d == "":
		return Unknown
	case strings.HasPrefix(d, "postgres://"), strings.HasPrefix(d, "postgresql://"):
		return Postgres
	case strings.HasPrefix(d, "mysql://"), strings.Contains(d, "@tcp("):
		return MySQL
	case strings.HasPrefix(d, "sqlserver://"), strings.Contains(d, "initial catalog="), strings.Contains(d, "trusted_connection="):
		return SQLServer
	case strings.HasPrefix(d, "oracle://"), strings.Contains(d, ":1521"), strings.Contains(d, "service_name="):
		return Oracle
	case strings.HasSuffix(d, ".sqlite"), strings.HasSuffix(d, ".sqlite3"), strings.HasSuffix(d, ".db"),
		strings.HasPrefix(d, "file:"), strings.Contains(d, ":memory:"):
		return SQLite
	case strings.Contains(d, "port=5432"), strings.Contains(d, ":5432"):
		return Postgres
	case strings.Contains(d, "port=3306"), strings.Contains(d, ":3306"):
		return MySQL
	case strings.Contains(d, "port=1433"), strings.Contains(d, ":1433"):
		return SQLServer
	case strings.Contains(d, "host="):
		return Postgres
	default:
		return Unknown
	}
}

// DetectEngine classifies the engine from the driver name first, then from
// connection-string patterns. The second return value names the detection
// method for diagnostics.
func DetectEngine(driverName, dsn string) (Engine, string) {
	if engine := engineFromName(driverName); engine != Unknown {
		return engine, methodDriverName
	}
	if engine := engineFromDSN(dsn); engine != Unknown {
		return engine, methodConnString
	}
	return Unknown, methodUndetermined
}

var (
	dsnCredentialRe = regexp.MustCompile(`(?i)\b(password|pwd|passwd|user id|uid|user|username)\s*=\s*[^;&\s]+`)
	dsnUserInfoRe   = regexp.MustCompile(`://[^@/]+@`)
)

// MaskDSN replaces credential material in a connection string with ***
// so the string is safe to log and expose through ProviderInfo.
func MaskDSN(dsn string) string {
	masked := dsnCredentialRe.ReplaceAllString(dsn, "$1=***")
	masked = dsnUserInfoRe.ReplaceAllString(masked, "://***:***@")
	return masked
}

// Features returns the static diagnostic feature list per engine. The list
// is informational only; capability decisions come from version detection.
func Features(engine Engine) []string {
	switch engine {
	case SQLServer:
		return []string{"approximate count (partition stats)", "offset pagination", "window functions", "snapshot isolation"}
	case Postgres:
		return []string{"approximate count (pg_class.reltuples)", "offset pagination", "window functions", "returning clause"}
	case MySQL:
		return []string{"approximate count (information_schema)", "offset pagination", "window functions (8.0+)"}
	case SQLite:
		return []string{"offset pagination", "in-process storage"}
	case Oracle:
		return []string{"approximate count (dictionary stats)", "offset pagination (12c+)", "window functions"}
	default:
		return nil
	}
}
