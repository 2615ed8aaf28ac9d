// Package server provides a factory for creating the MCP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/dms-client/pkg/health"
	"github.com/txn2/dms-client/pkg/mcptools"
	"github.com/txn2/dms-client/pkg/platform"
)

// Version is set at build time.
var Version = "dev"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

const instructions = "Tools for a document management system. Call dms_session_info first: " +
	"it reports the signed-in subject, roles and which tools the session may call. " +
	"A refused call returns a JSON error with kind and reason; authentication_missing means " +
	"the operator must run `dmsctl login`."

// New creates the MCP server for p with the document tools registered.
func New(p *platform.Platform) (*mcp.Server, error) {
	cfg := p.Config().MCP
	version := cfg.Version
	if version == "" {
		version = Version
	}

	s := mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: version}, &mcp.ServerOptions{
		Instructions: instructions,
	})

	toolkit, err := mcptools.New(mcptools.Config{
		Search:    p.Client(),
		Documents: p.Documents(),
		Holds:     p.Client(),
		Session:   p.Resolver(),
		Navigator: p.Navigator(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating toolkit: %w", err)
	}
	toolkit.RegisterTools(s)

	return s, nil
}

// NewWithConfig loads the config at path, starts a platform and builds its
// server. The caller closes the platform.
func NewWithConfig(ctx context.Context, path string) (*mcp.Server, *platform.Platform, error) {
	cfg, err := platform.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	p, err := platform.New(platform.WithConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("creating platform: %w", err)
	}
	if err := p.Start(ctx); err != nil {
		_ = p.Close()
		return nil, nil, fmt.Errorf("starting platform: %w", err)
	}
	s, err := New(p)
	if err != nil {
		_ = p.Close()
		return nil, nil, err
	}
	return s, p, nil
}

// Handler serves s over the streamable HTTP transport.
func Handler(s *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s }, &mcp.StreamableHTTPOptions{
		Logger: slog.Default(),
	})
}

// NewChecker returns a health checker probing the platform's dependencies.
func NewChecker(p *platform.Platform) *health.Checker {
	checker := health.NewChecker()
	if p.Archive() != nil {
		checker.AddDependency("audit_archive", p.Ping)
	}
	return checker
}

// HTTPHandler mounts the MCP handler at / and the health endpoints at
// /healthz and /readyz.
func HTTPHandler(s *mcp.Server, checker *health.Checker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", checker.LivenessHandler())
	mux.Handle("GET /readyz", checker.ReadinessHandler())
	mux.Handle("/", Handler(s))
	return mux
}

// Serve runs s on the configured transport until ctx is done or the client
// disconnects. The checker is only consulted by the http transport; nil
// gets one without dependency checks.
func Serve(ctx context.Context, s *mcp.Server, cfg platform.MCPConfig, checker *health.Checker) error {
	switch cfg.Transport {
	case "stdio":
		slog.Info("serving MCP on stdio", "name", cfg.Name)
		if err := s.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("serving stdio: %w", err)
		}
		return nil
	case "http":
		if checker == nil {
			checker = health.NewChecker()
		}
		return serveHTTP(ctx, HTTPHandler(s, checker), checker, cfg.Address)
	default:
		return fmt.Errorf("unknown transport: %s", cfg.Transport)
	}
}

func serveHTTP(ctx context.Context, handler http.Handler, checker *health.Checker, address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", address, err)
	}
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving MCP over HTTP", "address", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()
	checker.SetReady()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
		checker.SetDraining()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	}
}
