package redisbridge

import (
	"context"
	"fmt"
	"net"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/leeforge/monitor/logging"
)

// ClientConfig describes the Redis server the bridge talks to.
type ClientConfig struct {
	Host     string `mapstructure:"host" json:"host" yaml:"host" default:"127.0.0.1"`
	Port     string `mapstructure:"port" json:"port" yaml:"port" default:"6379"`
	Password string `mapstructure:"password" json:"password" yaml:"password"`
	DB       int    `mapstructure:"db" json:"db" yaml:"db"`
}

func (c ClientConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, cnf ClientConfig, logger logging.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cnf.Addr(),
		Password: cnf.Password,
		DB:       cnf.DB,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cnf.Addr(), err)
	}
	logger.Info("redis connected", append(clientLogFields(cnf), zap.String("pong", pong))...)
	return client, nil
}

func clientLogFields(cnf ClientConfig) []zap.Field {
	return []zap.Field{
		zap.String("addr", cnf.Addr()),
		zap.Int("db", cnf.DB),
		zap.String("password", redactedPassword(cnf.Password)),
	}
}

func redactedPassword(password string) string {
	if password == "" {
		return "<empty>"
	}
	return "[REDACTED]"
}
