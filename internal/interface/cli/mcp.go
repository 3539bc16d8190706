package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/docet-dev/docet/cmd/docet/mcp"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var mcpMetricsAddr string

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server exposing docet's assistants as tools",
	Long: `Start an MCP (Model Context Protocol) server on stdio so that an AI client
can list, create and ask documentation assistants.

Configure in your client's config file:
  {
    "mcpServers": {
      "docet": {
        "command": "docet",
        "args": ["serve-mcp"]
      }
    }
  }

With --metrics-addr, Prometheus metrics are served at /metrics.
`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if mcpMetricsAddr != "" {
		srv := newMetricsServer(mcpMetricsAddr)
		go func() {
			a.log.Info("serving metrics", zap.String("addr", mcpMetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	deps := mcp.Deps{
		Backend:         a.client,
		Ledger:          a.ledger,
		WelcomeTemplate: a.cfg.WelcomeTemplate,
		FallbackReply:   a.cfg.FallbackReply,
		Logger:          a.log,
	}
	if err := mcp.StartServer(deps, rootCmd.Version); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

func newMetricsServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
