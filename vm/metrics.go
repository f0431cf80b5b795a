// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	verified      prometheus.Counter
	verifyFailed  prometheus.Counter
	accepted      prometheus.Counter
	rejected      prometheus.Counter
	txsAccepted   prometheus.Counter
	flushFailures prometheus.Counter
	verify        metric.Averager
	accept        metric.Averager
}

func newMetrics(r prometheus.Registerer) (*metrics, error) {
	verify, err := metric.NewAverager(
		"", // namespace (avalanchego v1.11.4 signature)
		"vm_verify",
		"time spent verifying blocks",
		r,
	)
	if err != nil {
		return nil, err
	}
	accept, err := metric.NewAverager(
		"", // namespace (avalanchego v1.11.4 signature)
		"vm_accept",
		"time spent accepting blocks",
		r,
	)
	if err != nil {
		return nil, err
	}
	m := &metrics{
		verified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vm",
			Name:      "blocks_verified",
			Help:      "number of blocks verified",
		}),
		verifyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vm",
			Name:      "verify_failures",
			Help:      "number of blocks that failed verification",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vm",
			Name:      "blocks_accepted",
			Help:      "number of blocks accepted",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vm",
			Name:      "blocks_rejected",
			Help:      "number of blocks rejected",
		}),
		txsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vm",
			Name:      "txs_accepted",
			Help:      "number of transactions accepted",
		}),
		flushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vm",
			Name:      "flush_failures",
			Help:      "number of failed periodic flushes",
		}),
		verify: verify,
		accept: accept,
	}
	errs := wrappers.Errs{}
	errs.Add(
		r.Register(m.verified),
		r.Register(m.verifyFailed),
		r.Register(m.accepted),
		r.Register(m.rejected),
		r.Register(m.txsAccepted),
		r.Register(m.flushFailures),
	)
	return m, errs.Err
}
