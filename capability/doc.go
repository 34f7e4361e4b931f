// Package capability classifies the live database connection by engine and
// version and derives which fast-count features it supports.
//
// Engine classification checks the configured provider first, then the
// driver name, then connection-string patterns. Version detection issues one
// engine-specific read-only probe and parses the result; unparseable version
// strings resolve to a documented per-engine default (Postgres and Oracle
// fail open, the rest fail closed) and never surface as errors.
//
// Detected records are cached twice: in the injected cache.Service under a
// key derived from the connection-string hash, and in a process-wide map so
// the synchronous SupportsApproximateCount can answer without I/O. Both
// respect the configured TTL; a stale record is never trusted. The
// synchronous path falls back to an engine heuristic when no fresh record
// exists, which can disagree with a fresh asynchronous detection until the
// next probe lands; callers that mix both paths must tolerate that window.
package capability
