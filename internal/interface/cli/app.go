package cli

import (
	"fmt"

	"github.com/docet-dev/docet/internal/core/config"
	"github.com/docet-dev/docet/internal/core/db"
	"github.com/docet-dev/docet/internal/core/gateway"
	"github.com/docet-dev/docet/internal/core/provision"
	"github.com/docet-dev/docet/pkg/logger"
	"go.uber.org/zap"
)

// app bundles what every command needs
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	client *gateway.Client
	ledger *db.DB
}

// newApp loads config, opens the log file, builds the backend client and,
// when withLedger is set, opens the provisioning ledger
func newApp(withLedger bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	log, err := logger.NewFile(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		// Logging is not worth failing a command over
		log = logger.Nop()
	}

	a := &app{
		cfg:    cfg,
		log:    log,
		client: newClient(cfg, log),
	}

	if withLedger {
		ledger, err := db.New(dbPath)
		if err != nil {
			_ = log.Sync()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.ledger = ledger
	}

	log.Debug("docet starting", zap.String("base_url", a.client.BaseURL()), zap.String("db", dbPath))
	return a, nil
}

func newClient(cfg *config.Config, log *logger.Logger) *gateway.Client {
	retry := gateway.DefaultRetryConfig()
	retry.MaxRetries = cfg.ListRetries
	return gateway.New(cfg.BaseURL,
		gateway.WithLogger(log),
		gateway.WithRetry(retry),
		gateway.WithTimeouts(gateway.Timeouts{
			Request: cfg.RequestTimeout,
			Send:    cfg.SendTimeout,
			Ingest:  cfg.IngestTimeout,
		}),
	)
}

func (a *app) Close() {
	if a.ledger != nil {
		_ = a.ledger.Close()
	}
	_ = a.log.Sync()
}

// workflow builds a provisioning workflow, attaching the ledger only when open
func (a *app) workflow() *provision.Workflow {
	opts := provision.Options{Logger: a.log}
	if a.ledger != nil {
		opts.Ledger = a.ledger
	}
	return provision.New(a.client, opts)
}
