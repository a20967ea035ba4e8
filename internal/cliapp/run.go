// Package cliapp holds the plumbing shared by every pagraphd subcommand:
// loading and building a graph from a configuration file, registering its
// Prometheus collectors, and running the driver loop until SIGINT/SIGTERM,
// reloading the configuration on SIGHUP. Each subcommand only supplies the
// Source it wants the driver to pull from. Exposing the registry over
// HTTP is left to an external collaborator, consistent with this module's
// transport non-goals; callers that want /metrics served can pull it off
// Loaded.Registry themselves.
package cliapp

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tracegas/pagraph/internal/broadcaster"
	"github.com/tracegas/pagraph/internal/driver"
	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/hotreload"
	"github.com/tracegas/pagraph/internal/logging"
	"github.com/tracegas/pagraph/internal/metrics"
	"github.com/tracegas/pagraph/internal/paconf"
	"github.com/tracegas/pagraph/internal/sources"
)

// Loaded bundles everything Build produced from a configuration file: the
// constructed graph, the Broadcaster streaming nodes publish through, and
// the Prometheus registry its metrics are registered against.
type Loaded struct {
	Config      *paconf.Config
	Build       *paconf.BuildResult
	Broadcaster *broadcaster.Broadcaster
	Registry    *prometheus.Registry
	Metrics     *metrics.GraphMetrics
}

// Load reads and decodes configPath. Exposed separately from Build so a
// subcommand can inspect the decoded Device/SimulatedSource section before
// choosing the sample rate the graph is built at.
func Load(configPath string) (*paconf.Config, error) {
	return paconf.Load(configPath)
}

// Build constructs the ProcessingGraph cfg.Graph describes, at the given
// source sample rate, and registers its metrics against a fresh registry.
func Build(cfg *paconf.Config, sampleRate int) (*Loaded, error) {
	capacity := 32
	if cfg.Broadcaster.CapacityPerSubscriber > 0 {
		capacity = cfg.Broadcaster.CapacityPerSubscriber
	}
	bc := broadcaster.New(capacity)

	result, err := paconf.Build(cfg.Graph, paconf.BuildDeps{
		SampleRate:      sampleRate,
		Broadcaster:     bc,
		RecordDirectory: cfg.RecordDirectory,
	})
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	gm, err := metrics.New(reg)
	if err != nil {
		return nil, errors.New(err).Component("cliapp").Category(errors.CategoryResource).Build()
	}

	return &Loaded{Config: cfg, Build: result, Broadcaster: bc, Registry: reg, Metrics: gm}, nil
}

// LoadAndBuild reads configPath and builds the graph it describes at the
// given sample rate in one step, for callers (replay) that pick
// the sample rate independently of any config section.
func LoadAndBuild(configPath string, sampleRate int) (*Loaded, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	return Build(cfg, sampleRate)
}

// RunOptions controls the driver queue depth a subcommand runs with.
type RunOptions struct {
	QueueDepth int
}

// Run drives src through loaded's graph until the process receives
// SIGINT/SIGTERM. SIGHUP reloads configPath from disk and applies the diff
// live via hotreload.Controller, logging the report. A reload that fails
// to decode leaves the running graph untouched; when a node rejects its
// parameters, nodes already updated in that reload keep their new values.
func Run(ctx context.Context, configPath string, loaded *Loaded, src sources.Source, opts RunOptions) error {
	recordNodes := make(map[string]driver.RecorderStatter, len(loaded.Build.RecordNodes))
	for id, rn := range loaded.Build.RecordNodes {
		recordNodes[id] = rn
	}

	drv := driver.New(loaded.Build.Graph, src, driver.Config{
		QueueDepth:       opts.QueueDepth,
		Metrics:          loaded.Metrics,
		RecordNodes:      recordNodes,
		Broadcaster:      loaded.Broadcaster,
		StreamingNodeIDs: loaded.Build.StreamingNodeIDs,
	})

	controller := hotreload.New(loaded.Config, loaded.Build.Graph)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	done := make(chan error, 1)
	go func() { done <- drv.Run(runCtx) }()

	for {
		select {
		case err := <-done:
			for id, rn := range loaded.Build.RecordNodes {
				if closeErr := rn.Close(); closeErr != nil {
					logging.ForComponent("cliapp").Warn("record node close failed", "node_id", id, "error", closeErr)
				}
			}
			return err
		case <-hup:
			next, err := paconf.Load(configPath)
			if err != nil {
				logging.ForComponent("cliapp").Error("config reload failed to parse", "error", err)
				continue
			}
			report, err := controller.Apply(next)
			if err != nil {
				logging.ForComponent("cliapp").Error("config reload rejected", "error", err)
				continue
			}
			logging.ForComponent("cliapp").Info("config reloaded",
				"applied", report.AppliedNodes, "requires_restart", report.RequiresRestart)
		}
	}
}
