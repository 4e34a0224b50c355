package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jessevdk/go-flags"

	"github.com/maxpoletaev/vaultnfs/client"
)

type operation func(ctx context.Context, c *client.Client, logger kitlog.Logger) error

// run brings up every component, joins the cluster, runs the operation and
// shuts everything down.
func run(op operation) error {
	wg := sync.WaitGroup{}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize all components.
	logger, closeLogger := setupLogger()
	registry, closeMetrics := setupMetrics(&wg, logger)
	tr, closeTransport := setupTransport(logger)
	c, closeClient := setupClient(tr, registry, logger)

	// The client goes first, so that pending sends are flushed before the
	// node leaves the cluster.
	shutdownOrder := []shutdownFunc{
		closeClient,
		closeTransport,
		closeMetrics,
		closeLogger,
	}

	defer func() {
		for _, f := range shutdownOrder {
			if err := f(context.Background()); err != nil {
				level.Error(logger).Log("msg", "failed to shutdown component", "err", err)
			}
		}

		// Wait for all components to finish background tasks.
		wg.Wait()
	}()

	if err := joinCluster(ctx, tr, logger); err != nil {
		return err
	}

	if err := op(ctx, c, logger); err != nil {
		level.Error(describeError(logger, err)).Log("msg", "operation failed", "err", err)
		return err
	}

	level.Info(logger).Log("msg", "operation completed")

	return nil
}

func main() {
	p := flags.NewParser(&opts, flags.Default)

	commands := []struct {
		name  string
		short string
		cmd   flags.Commander
	}{
		{"create-account", "Create the client account", &createAccountCmd{}},
		{"remove-account", "Remove the client account", &removeAccountCmd{}},
		{"register-pmid", "Register a storage provider", &registerPmidCmd{}},
		{"unregister-pmid", "Unregister a storage provider", &unregisterPmidCmd{}},
		{"pmid-health", "Query the health of a storage provider", &pmidHealthCmd{}},
		{"put", "Store data", &putCmd{}},
		{"get", "Fetch data", &getCmd{}},
		{"delete", "Delete data", &deleteCmd{}},
		{"get-versions", "List the tips of a version tree", &getVersionsCmd{}},
		{"get-branch", "List the versions of a branch", &getBranchCmd{}},
		{"create-version-tree", "Create a version tree", &createVersionTreeCmd{}},
		{"put-version", "Add a version to a tree", &putVersionCmd{}},
	}

	for _, c := range commands {
		if _, err := p.AddCommand(c.name, c.short, "", c.cmd); err != nil {
			panic(fmt.Sprintf("failed to add command %s: %v", c.name, err))
		}
	}

	// Errors are printed by the parser, including the ones returned by commands.
	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(2)
	}
}
