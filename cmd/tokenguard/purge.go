package main

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/tokenguard/internal/configloader"
	"github.com/MrEthical07/tokenguard/internal/logger"
	"github.com/MrEthical07/tokenguard/store"
	"github.com/spf13/cobra"
)

func newPurgeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove expired revocation entries from Redis once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configloader.Load(root.configPath)
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" || cfg.Redis.Embedded {
				return errors.New("purge needs redis.addr; in-memory stores are purged by the running server")
			}
			log, err := logger.New(cfg.Log)
			if err != nil {
				return err
			}
			defer log.Sync()

			rdb, closeRedis, err := openRedis(cmd.Context(), cfg.Redis, false)
			if err != nil {
				return err
			}
			defer closeRedis()

			prefix := cfg.Auth.Store.RedisPrefix
			sweeper := store.NewSweeper(store.SweeperConfig{Logger: log.Zap()},
				store.Target{Name: "blacklist", Purger: store.NewRedisBlacklist(rdb, prefix, nil)},
				store.Target{Name: "bindings", Purger: store.NewRedisBindings(rdb, prefix, nil)},
			)
			removed, err := sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", removed)
			return err
		},
	}
}
