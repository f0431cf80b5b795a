// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainhead

import (
	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	windowSize   prometheus.Gauge
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	storageReads prometheus.Counter
	flushed      prometheus.Counter

	flush metric.Averager
}

func newMetrics(r prometheus.Registerer) (*metrics, error) {
	flush, err := metric.NewAverager(
		"", // namespace (avalanchego v1.11.4 signature)
		"chainhead_flush",
		"time spent writing the in-memory window to disk",
		r,
	)
	if err != nil {
		return nil, err
	}
	m := &metrics{
		windowSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chainhead",
			Name:      "window_size",
			Help:      "number of blocks held in the in-memory window",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chainhead",
			Name:      "cache_hits",
			Help:      "number of lookups served by the rehydration cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chainhead",
			Name:      "cache_misses",
			Help:      "number of lookups that missed the rehydration cache",
		}),
		storageReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chainhead",
			Name:      "storage_reads",
			Help:      "number of blocks decoded from disk",
		}),
		flushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chainhead",
			Name:      "flushed_blocks",
			Help:      "number of blocks written to disk",
		}),
		flush: flush,
	}
	errs := wrappers.Errs{}
	errs.Add(
		r.Register(m.windowSize),
		r.Register(m.cacheHits),
		r.Register(m.cacheMisses),
		r.Register(m.storageReads),
		r.Register(m.flushed),
	)
	return m, errs.Err
}
