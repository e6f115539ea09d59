//go:build !tsnet

package main

import (
	"context"
	"fmt"

	"github.com/nanobridge/orchestrator/internal/config"
)

// tsnetListener is a no-op in the default build: startTsnetListener
// returns an error so operators who configure Tailscale.Hostname
// without building with -tags tsnet get a clear message instead of
// silently running exposed only to loopback.
type tsnetListener struct{}

func startTsnetListener(cfg *config.Config, gw *gateway) (*tsnetListener, error) {
	if cfg.Tailscale.Hostname == "" {
		return nil, nil
	}
	return nil, fmt.Errorf("tsnet: tailscale.hostname is set but this binary was built without -tags tsnet")
}

func (t *tsnetListener) Stop(ctx context.Context) {}
