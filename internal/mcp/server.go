package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshuachristie/biofunc-models/internal/config"
	"github.com/joshuachristie/biofunc-models/internal/metrics"
	"github.com/joshuachristie/biofunc-models/internal/ratelimit"
	"github.com/joshuachristie/biofunc-models/internal/store"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server and exposes wfsim simulations as tools.
type Server struct {
	server   *sdk.Server
	store    *store.SQLiteStore
	settings *config.WfsimConfig
	dataDir  string
	limiter  *ratelimit.Limiter
	audit    *AuditLog
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name     string              // Server name (e.g., "wfsim")
	Version  string              // Server version
	DataDir  string              // Directory holding the run history
	Settings *config.WfsimConfig // Simulation defaults; nil means config.Default()
	Logger   *slog.Logger        // Operational logger; nil discards
	Metrics  *metrics.Metrics    // Run metrics; nil disables
}

// NewServer creates a new MCP server with wfsim tools.
func NewServer(cfg *Config) (*Server, error) {
	runStore, err := store.NewSQLiteStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}

	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	audit, err := OpenAuditLog(cfg.DataDir)
	if err != nil {
		logger.Warn("tool calls will not be audited", "error", err)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:   mcpServer,
		store:    runStore,
		settings: settings,
		dataDir:  cfg.DataDir,
		limiter:  ratelimit.NewDefault(),
		audit:    audit,
		metrics:  cfg.Metrics,
		logger:   logger,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves MCP over stdio until the client disconnects or ctx is
// cancelled, then closes the server.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Close closes the server and releases resources.
func (s *Server) Close() error {
	s.audit.Close()
	return s.store.Close()
}
