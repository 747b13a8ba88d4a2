// Command tokenguard runs the token service and its maintenance tasks.
//
//	tokenguard serve --config tokenguard.yaml
//	tokenguard hash-password --algorithm argon2id
//	tokenguard purge --config tokenguard.yaml
//	tokenguard version
//
// A .env file in the working directory is loaded before flags are parsed.
package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
