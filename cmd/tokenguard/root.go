package main

import (
	"context"
	"fmt"

	"github.com/MrEthical07/tokenguard/internal/configloader"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "tokenguard",
		Short:         "JWT issuance, refresh and revocation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"YAML config file; TOKENGUARD_* environment variables override it")

	cmd.AddCommand(
		newServeCmd(opts),
		newHashPasswordCmd(),
		newPurgeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// openRedis returns a client for cfg, starting miniredis when embedded is
// set. The client is nil when no Redis is configured. cleanup is never nil.
func openRedis(ctx context.Context, cfg configloader.RedisConfig, embedded bool) (redis.UniversalClient, func(), error) {
	if embedded || cfg.Embedded {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, func() {}, fmt.Errorf("start embedded redis: %w", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}
	if cfg.Addr == "" {
		return nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, func() {}, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, func() { _ = client.Close() }, nil
}
