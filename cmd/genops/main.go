// Command genops is a small operational companion to the SDK. It validates
// the environment configuration and can run the local diagnostics server for
// inspecting policies, budgets and spend at runtime.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/genops-ai/genops-go"
	"github.com/genops-ai/genops-go/config"
	"github.com/genops-ai/genops-go/server"
	"github.com/genops-ai/genops-go/validate"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Println(genops.Version)
	case "validate":
		err = runValidate()
	case "serve":
		err = runServe()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: genops <command>

commands:
  version    print the SDK version
  validate   check environment configuration and report issues
  serve      run the local diagnostics server`)
}

func runValidate() error {
	result, err := validate.Quick(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	fmt.Print(result.String())
	if !result.Valid() {
		return fmt.Errorf("configuration has %d error(s)", len(result.Errors()))
	}
	return nil
}

func runServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := genops.NewLogger(cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	client, err := genops.New(ctx, genops.WithConfig(cfg), genops.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to initialize client: %w", err)
	}
	defer func() {
		if err := client.Shutdown(context.Background()); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	srv := server.New(cfg.Admin, client, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return srv.Shutdown(context.Background())
}
