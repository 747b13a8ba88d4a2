package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/tokenguard/password"
	"github.com/spf13/cobra"
)

func newHashPasswordCmd() *cobra.Command {
	cfg := password.DefaultConfig()
	var algorithm string
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a password hash for seeding users",
		Long:  "Hashes the argument, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Algorithm = password.Algorithm(strings.ToLower(algorithm))
			hasher, err := password.NewHasher(cfg)
			if err != nil {
				return err
			}

			var plain string
			if len(args) == 1 {
				plain = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password on stdin")
				}
				plain = strings.TrimRight(line, "\r\n")
			}

			hash, err := hasher.Hash(plain)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	cmd.Flags().StringVar(&algorithm, "algorithm", string(password.AlgorithmBcrypt), "bcrypt or argon2id")
	cmd.Flags().IntVar(&cfg.BcryptCost, "cost", cfg.BcryptCost, "bcrypt cost")
	return cmd
}
