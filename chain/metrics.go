// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

type parserMetrics struct {
	blocksParsed    prometheus.Counter
	parseFailures   prometheus.Counter
	txsParsed       prometheus.Counter
	parallelDecodes prometheus.Counter

	parse metric.Averager
}

func newParserMetrics(r prometheus.Registerer) (*parserMetrics, error) {
	parse, err := metric.NewAverager(
		"", // namespace (avalanchego v1.11.4 signature)
		"chain_parse",
		"time spent parsing and verifying blocks",
		r,
	)
	if err != nil {
		return nil, err
	}
	m := &parserMetrics{
		blocksParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chain",
			Name:      "blocks_parsed",
			Help:      "number of blocks parsed successfully",
		}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chain",
			Name:      "parse_failures",
			Help:      "number of blocks that failed to parse or verify",
		}),
		txsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chain",
			Name:      "txs_parsed",
			Help:      "number of transactions decoded",
		}),
		parallelDecodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chain",
			Name:      "parallel_decodes",
			Help:      "number of transaction sections decoded on the worker pool",
		}),
		parse: parse,
	}
	errs := wrappers.Errs{}
	errs.Add(
		r.Register(m.blocksParsed),
		r.Register(m.parseFailures),
		r.Register(m.txsParsed),
		r.Register(m.parallelDecodes),
	)
	return m, errs.Err
}
