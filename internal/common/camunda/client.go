// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"influence-dashboard/internal/common/database"
	"influence-dashboard/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// ClientConfig holds configuration for the Zeebe gateway connection.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	MaxAttempts            int
	InitialDelay           time.Duration
}

func (c *ClientConfig) withDefaults() {
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 2 * time.Second
	}
}

// Connect opens a Zeebe client and waits until the gateway answers a topology
// request, backing off between attempts.
func Connect(ctx context.Context, cfg ClientConfig, log logger.Logger) (zbc.Client, error) {
	cfg.withDefaults()

	var client zbc.Client
	err := database.ConnectWithRetry(ctx, "zeebe", cfg.MaxAttempts, cfg.InitialDelay, log, func(ctx context.Context) error {
		c, err := zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.GatewayAddress,
			UsePlaintextConnection: cfg.UsePlaintextConnection,
		})
		if err != nil {
			return fmt.Errorf("create zeebe client: %w", err)
		}

		if err := HealthCheck(ctx, c, cfg.ConnectionTimeout); err != nil {
			c.Close()
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// HealthCheck performs a topology request against the broker.
func HealthCheck(ctx context.Context, client zbc.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
