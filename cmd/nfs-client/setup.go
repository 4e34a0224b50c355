package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jpillora/backoff"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maxpoletaev/vaultnfs/client"
	"github.com/maxpoletaev/vaultnfs/message"
	"github.com/maxpoletaev/vaultnfs/quorum"
	"github.com/maxpoletaev/vaultnfs/transport/swim"
)

type shutdownFunc func(ctx context.Context) error

var noopShutdown = func(ctx context.Context) error { return nil }

func setupLogger() (kitlog.Logger, shutdownFunc) {
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)

	if !opts.Verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	return logger, noopShutdown
}

func setupMetrics(wg *sync.WaitGroup, logger kitlog.Logger) (prometheus.Registerer, shutdownFunc) {
	if opts.Metrics.BindAddr == "" {
		return nil, noopShutdown
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              opts.Metrics.BindAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			level.Error(logger).Log("msg", "metrics server failed", "err", err)
		}
	}()

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "shutting down metrics server")

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown metrics server: %w", err)
		}

		return nil
	}

	return registry, shutdown
}

func setupTransport(logger kitlog.Logger) (*swim.Transport, shutdownFunc) {
	conf := swim.DefaultConfig()
	conf.Name = opts.Node.Name
	conf.BindAddr = opts.Cluster.BindAddr
	conf.BindPort = opts.Cluster.BindPort
	conf.AdvertiseAddr = opts.Cluster.AdvertiseAddr
	conf.GroupSize = opts.Network.GroupSize
	conf.Reliable = !opts.Cluster.Unreliable
	conf.Logger = logger

	tr, err := swim.Create(conf)
	if err != nil {
		panic(fmt.Sprintf("failed to create transport: %v", err))
	}

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "leaving cluster")

		if err := tr.Shutdown(); err != nil {
			return fmt.Errorf("failed to shutdown transport: %w", err)
		}

		return nil
	}

	return tr, shutdown
}

// joinCluster retries until at least one of the nodes is reachable.
func joinCluster(ctx context.Context, tr *swim.Transport, logger kitlog.Logger) error {
	addrs := parseAddrs(opts.Cluster.JoinAddrs)
	if len(addrs) == 0 {
		return errors.New("no nodes to join")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(opts.Cluster.JoinTimeout)*time.Millisecond)
	defer cancel()

	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		n, err := tr.Join(addrs)
		if err == nil {
			level.Info(logger).Log("msg", "joined cluster", "contacted", n, "members", tr.NumMembers())

			if tr.NumMembers()-1 < opts.Network.GroupSize {
				level.Warn(logger).Log("msg", "cluster is smaller than a group", "members", tr.NumMembers())
			}

			return nil
		}

		delay := b.Duration()

		level.Error(logger).Log(
			"msg", "failed to join cluster",
			"attempt", b.Attempt(),
			"retry_in", delay,
			"err", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to join cluster: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func setupClient(tr *swim.Transport, reg prometheus.Registerer, logger kitlog.Logger) (*client.Client, shutdownFunc) {
	policies := client.DefaultPolicies(opts.Network.GroupSize)
	timeout := time.Duration(opts.Network.Timeout) * time.Millisecond

	// Apply the same deadline to every operation.
	for _, p := range []*client.Policy{
		&policies.CreateAccount,
		&policies.RegisterPmid,
		&policies.PmidHealth,
		&policies.Get,
		&policies.Put,
		&policies.GetVersions,
		&policies.GetBranch,
		&policies.PutVersion,
		&policies.CreateVersionTree,
	} {
		p.Timeout = timeout
	}

	conf := client.DefaultConfig()
	conf.Self = message.NodeID(opts.Node.Name)
	conf.PmidHint = message.NodeID(opts.Node.PmidHint)
	conf.Policies = policies
	conf.Logger = logger
	conf.Registerer = reg
	conf.Strict = opts.Network.Strict

	c, err := client.New(conf, tr)
	if err != nil {
		panic(fmt.Sprintf("failed to create client: %v", err))
	}

	level.Debug(logger).Log(
		"msg", "client created",
		"group_size", opts.Network.GroupSize,
		"put", policies.Put.Quorum,
		"get", policies.Get.Quorum,
		"create_account", policies.CreateAccount.Quorum,
	)

	shutdown := func(ctx context.Context) error {
		logger.Log("msg", "closing client")
		c.Close()

		return nil
	}

	return c, shutdown
}

// describeError adds the quorum tally to the log line, if there is one.
func describeError(logger kitlog.Logger, err error) kitlog.Logger {
	var qerr *quorum.Error
	if errors.As(err, &qerr) {
		return kitlog.With(logger,
			"code", qerr.Code(),
			"successes", qerr.Tally.Successes,
			"failures", qerr.Tally.Failures,
			"required", qerr.Tally.Required,
		)
	}

	return logger
}
