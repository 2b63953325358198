package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/xaenox/commentgen/internal/cli"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	env := &cli.Env{Logger: logger}
	root := cli.NewRootCmd(env, fmt.Sprintf("%s (commit: %s)", version, commit))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logger.Sync()
		os.Exit(1)
	}
}
