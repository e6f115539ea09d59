//go:build tsnet

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"tailscale.com/tsnet"

	"github.com/nanobridge/orchestrator/internal/config"
)

// tsnetListener joins the tailnet named by cfg.Tailscale and serves a
// small admin surface (health + loop status) over it, so an operator
// can reach a running gateway without exposing a public port. Built
// only with -tags tsnet; the default build has no inbound listener at
// all.
type tsnetListener struct {
	srv     *tsnet.Server
	httpSrv *http.Server
}

func startTsnetListener(cfg *config.Config, gw *gateway) (*tsnetListener, error) {
	if cfg.Tailscale.Hostname == "" {
		return nil, nil
	}
	if cfg.Tailscale.AuthKey == "" {
		return nil, fmt.Errorf("tsnet: NANOBRIDGE_TSNET_AUTH_KEY not set")
	}

	stateDir := cfg.Tailscale.StateDir
	if stateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		stateDir = filepath.Join(dir, "tsnet-nanobridge")
	}

	srv := &tsnet.Server{
		Hostname:  cfg.Tailscale.Hostname,
		Dir:       stateDir,
		AuthKey:   cfg.Tailscale.AuthKey,
		Ephemeral: cfg.Tailscale.Ephemeral,
		Logf:      func(format string, args ...any) { slog.Debug("tsnet", "msg", fmt.Sprintf(format, args...)) },
	}

	var ln net.Listener
	var err error
	if cfg.Tailscale.EnableTLS {
		ln, err = srv.ListenTLS("tcp", ":443")
	} else {
		ln, err = srv.Listen("tcp", ":80")
	}
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("tsnet: listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"bots": gw.loopIDs()})
	})

	httpSrv := &http.Server{Handler: mux}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Warn("tsnet: http server stopped", "error", err)
		}
	}()

	slog.Info("tsnet: admin surface listening", "hostname", cfg.Tailscale.Hostname, "tls", cfg.Tailscale.EnableTLS)
	return &tsnetListener{srv: srv, httpSrv: httpSrv}, nil
}

func (t *tsnetListener) Stop(ctx context.Context) {
	if t == nil {
		return
	}
	if t.httpSrv != nil {
		t.httpSrv.Shutdown(ctx)
	}
	if t.srv != nil {
		t.srv.Close()
	}
}
