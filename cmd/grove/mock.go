package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/grove/internal/cli"
	"github.com/aretw0/grove/internal/mockbackend"
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run the in-memory mock session backend",
	Long: `Starts an in-memory backend implementing the session API, for local
development and demos. It serves its OpenAPI document at /openapi.yaml and
Prometheus metrics at /metrics.

Fault injection: --latency delays every request, --fail-every makes every
Nth chat call return HTTP 503, and any request carrying an X-Mock-Fail
header gets that status code back.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetString("port")
		latency, _ := cmd.Flags().GetDuration("latency")
		failEvery, _ := cmd.Flags().GetInt("fail-every")

		cfg, err := cli.Load(v)
		if err != nil {
			fail("Error: %v", err)
		}
		logger := cfg.Logger()

		backend, err := mockbackend.New(
			mockbackend.WithLogger(logger),
			mockbackend.WithLatency(latency),
			mockbackend.WithFailEveryNth(failEvery),
		)
		if err != nil {
			fail("Error starting mock backend: %v", err)
		}

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: backend.Handler(),
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Mock backend listening on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fail("Server error: %v", err)

		case sig := <-shutdown:
			fmt.Printf("\nShutting down... Signal: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Graceful shutdown did not complete: %v\n", err)
				if err := srv.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Error killing server: %v\n", err)
				}
			}
			fmt.Println("Mock backend stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(mockCmd)
	mockCmd.Flags().StringP("port", "p", "8000", "Port to listen on")
	mockCmd.Flags().Duration("latency", 0, "Fixed delay injected into every request")
	mockCmd.Flags().Int("fail-every", 0, "Make every Nth chat request fail with 503 (0 disables)")
}
