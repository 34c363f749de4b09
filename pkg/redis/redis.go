// Package redis 提供 Redis 客户端的构造，供 embedding 二级缓存使用
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config Redis 配置
type Config struct {
	Addr        string `toml:"addr"`
	Password    string `toml:"password"`
	DB          int    `toml:"db"`
	Enabled     bool   `toml:"enabled"`
	DialTimeout string `toml:"dial_timeout"` // 默认 5s
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("addr is required when redis is enabled")
	}
	if c.DB < 0 {
		return fmt.Errorf("db must not be negative")
	}
	if c.DialTimeout != "" {
		if _, err := time.ParseDuration(c.DialTimeout); err != nil {
			return fmt.Errorf("dial_timeout is invalid: %v", err)
		}
	}
	return nil
}

// NewClient 创建客户端并 Ping 一次
// 未启用时返回 nil, nil
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	timeout := 5 * time.Second
	if cfg.DialTimeout != "" {
		if d, err := time.ParseDuration(cfg.DialTimeout); err == nil {
			timeout = d
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: timeout,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
