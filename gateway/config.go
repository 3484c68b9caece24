package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Chandan5689/SajiloFix-sub002/models"
)

// Configurer is implemented by drivers that expose browser-safe config
// (public key or merchant code plus the test-mode flag).
type Configurer interface {
	PublicConfig() PublicConfig
}

// ConfigCache serves per-gateway public configuration with a short cache
// lifetime so credential rotation shows up without a restart.
type ConfigCache struct {
	client  *redis.Client
	drivers map[models.PaymentMethod]Configurer
	ttl     time.Duration
}

func NewConfigCache(client *redis.Client, drivers map[models.PaymentMethod]Driver) *ConfigCache {
	configurers := make(map[models.PaymentMethod]Configurer)
	for method, d := range drivers {
		if c, ok := d.(Configurer); ok {
			configurers[method] = c
		}
	}
	return &ConfigCache{
		client:  client,
		drivers: configurers,
		ttl:     5 * time.Minute,
	}
}

func configKey(method models.PaymentMethod) string {
	return fmt.Sprintf("gwconfig:%s", method)
}

func (c *ConfigCache) Get(ctx context.Context, method models.PaymentMethod) (*PublicConfig, error) {
	if c.client != nil {
		if data, err := c.client.Get(ctx, configKey(method)).Bytes(); err == nil {
			var cfg PublicConfig
			if err := json.Unmarshal(data, &cfg); err == nil {
				return &cfg, nil
			}
		}
	}

	driver, ok := c.drivers[method]
	if !ok {
		return nil, errors.Wrapf(ErrConfigUnavailable, "no public configuration for %s", method)
	}
	cfg := driver.PublicConfig()
	if cfg.PublicKey == "" {
		return nil, errors.Wrapf(ErrConfigUnavailable, "%s is not configured", method)
	}

	if c.client != nil {
		if data, err := json.Marshal(cfg); err == nil {
			c.client.Set(ctx, configKey(method), data, c.ttl)
		}
	}
	return &cfg, nil
}
