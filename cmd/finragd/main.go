// Finragd is the finrag daemon: an HTTP service answering financial
// questions grounded in SEC 10-K filings and live brokerage data.
//
// Configuration is loaded from ~/.config/finrag/config.yaml and
// overridden by environment variables. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults
//	finragd
//
//	# Configure via environment
//	SERVER_PORT=9000 LLM_API_KEY=sk-... finragd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finrag/internal/app"
	"github.com/fyrsmithlabs/finrag/internal/httpapi"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/finrag/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  finragd           Start the finrag daemon\n")
			fmt.Fprintf(os.Stderr, "  finragd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("finragd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the application and serves HTTP until ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	a, err := app.New(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Logger.Info("starting finragd",
		zap.String("version", version),
		zap.String("host", a.Config.Server.Host),
		zap.Int("port", a.Config.Server.Port),
		zap.Duration("shutdown_timeout", a.Config.Server.ShutdownTimeout),
	)

	srv, err := httpapi.NewServer(a.Assistant, a.Logger, &httpapi.Config{
		Host: a.Config.Server.Host,
		Port: a.Config.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
