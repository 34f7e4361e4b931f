package cacheinfra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// hits counts reads served from the in-process cache.
	hits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mfi_cache_hits_total",
			Help: "Total number of data-access cache hits",
		},
	)

	// misses counts reads that fell through to the populate function.
	misses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mfi_cache_misses_total",
			Help: "Total number of data-access cache misses",
		},
	)

	// bypass counts reads performed while caching was globally disabled.
	bypass = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mfi_cache_bypass_total",
			Help: "Total number of reads that bypassed the disabled cache",
		},
	)

	// errorsTotal counts populate failures by operation.
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mfi_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"},
	)
)
