package stm

import (
	"github.com/dborchard/gostm/internal/algs/cohortseager"
	"github.com/dborchard/gostm/internal/algs/lltamd64"
	"github.com/dborchard/gostm/internal/algs/oreceagerredo"
	"github.com/dborchard/gostm/internal/algs/pipelineturbo"
	"github.com/dborchard/gostm/internal/registry"
	"github.com/dborchard/gostm/internal/txdesc"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Runtime is the application-facing handle on the STM core: the shared
// orec table and clocks, the algorithm registry with every algorithm this
// core ships pre-registered, and the metrics counters Atomic updates.
type Runtime struct {
	inner   *registry.Runtime
	cfg     Config
	metrics *Metrics
	logger  *zap.Logger
}

// NewRuntime builds a runtime from cfg, registers CohortsEager,
// PipelineTurbo, LLTAMD64 and OrecEagerRedo under their stable names, and
// switches to cfg.DefaultAlgorithm. reg receives the Prometheus counters;
// pass prometheus.NewRegistry() in tests to avoid colliding with any
// process-wide default registry.
func NewRuntime(cfg Config, reg prometheus.Registerer) (*Runtime, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	inner := registry.NewRuntime(cfg.OrecTableSize, logger)
	inner.MaxReadSetLen = cfg.MaxReadSetLen
	inner.MaxWriteSetLen = cfg.MaxWriteSetLen
	inner.Reg.Register(cohortseager.New(inner))
	inner.Reg.Register(pipelineturbo.New(inner))
	inner.Reg.Register(lltamd64.New(inner))
	inner.Reg.Register(oreceagerredo.New(inner))

	if err := inner.Reg.SwitchTo(cfg.DefaultAlgorithm); err != nil {
		return nil, err
	}

	return &Runtime{
		inner:   inner,
		cfg:     cfg,
		metrics: NewMetrics(reg),
		logger:  logger,
	}, nil
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if err := zcfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return zcfg.Build()
}

// ActiveAlgorithm returns the stable name of the algorithm currently
// installed.
func (rt *Runtime) ActiveAlgorithm() string {
	return rt.inner.Reg.Active().Name()
}

// SwitchAlgorithm quiesces the active algorithm and installs name as the
// new active one. Callers must not hold any transaction open across this
// call.
func (rt *Runtime) SwitchAlgorithm(name string) error {
	rt.logger.Info("switching algorithm", zap.String("from", rt.ActiveAlgorithm()), zap.String("to", name))
	return rt.inner.Reg.SwitchTo(name)
}

// AttachThread allocates a new transaction handle bound to this runtime.
// The allocator hooks (OnTxBegin/OnTxCommit/OnTxAbort/OnRollback) are left
// empty: those are reserved for an external epoch/quiescence allocator this
// core never provides itself. OnGoTurbo is wired to the turbo-promotion
// counter, the one callback this core does consume itself.
func (rt *Runtime) AttachThread() *Tx {
	var inner *txdesc.Tx
	callbacks := txdesc.Callbacks{
		OnGoTurbo: func() {
			rt.metrics.Turbo.WithLabelValues(inner.Algo.Name()).Inc()
		},
	}
	inner = rt.inner.AttachThread(callbacks)
	return &Tx{rt: rt, inner: inner}
}

// DetachThread releases a transaction handle previously returned by
// AttachThread.
func (rt *Runtime) DetachThread(tx *Tx) {
	rt.inner.DetachThread(tx.inner)
}

// Logger returns the structured logger this runtime was built with.
func (rt *Runtime) Logger() *zap.Logger { return rt.logger }
