package components

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RedisComponent struct {
	config RedisConfig
	client *redis.Client
}

func NewRedisComponent(config RedisConfig) *RedisComponent {
	return &RedisComponent{config: config}
}

func (c *RedisComponent) Name() string {
	return RedisComponentName
}

func (c *RedisComponent) Dependencies() []string {
	return []string{}
}

func (c *RedisComponent) Validate() error {
	if c.config.Addr == "" {
		return fmt.Errorf("redis: addr is required")
	}
	return nil
}

func (c *RedisComponent) Initialize(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     c.config.Addr,
		Password: c.config.Password,
		DB:       c.config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("redis: failed to connect to %s: %w", c.config.Addr, err)
	}

	c.client = client
	return nil
}

func (c *RedisComponent) Close(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *RedisComponent) Client() *redis.Client {
	return c.client
}
