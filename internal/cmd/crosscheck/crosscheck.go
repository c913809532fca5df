// Package crosscheck parses MCP server flags and selects stdio or HTTP
// transport.
package crosscheck

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"time"

	"github.com/louisbranch/crosscheck/internal/platform/config"
	"github.com/louisbranch/crosscheck/internal/platform/otel"
	mcpservice "github.com/louisbranch/crosscheck/internal/services/mcp/service"
)

// Config holds MCP server command configuration.
type Config struct {
	DBPath    string `env:"CROSSCHECK_DB_PATH"`
	HTTPAddr  string `env:"CROSSCHECK_MCP_HTTP_ADDR" envDefault:"localhost:8095"`
	Transport string `env:"CROSSCHECK_MCP_TRANSPORT" envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "crosscheck.db")
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to session sqlite database")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP server.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "crosscheck")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	return mcpservice.Run(ctx, mcpservice.Config{
		DBPath:    cfg.DBPath,
		Transport: mcpservice.TransportKind(cfg.Transport),
		HTTPAddr:  cfg.HTTPAddr,
	})
}
