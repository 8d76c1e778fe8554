package main

import (
	"fmt"
	"os"
	"path/filepath"

	"cashflowd/cashflow-ingest/cmd/feed"
	"cashflowd/cashflow-ingest/cmd/file"
	"cashflowd/cashflow-ingest/cmd/root"

	"github.com/joho/godotenv"
)

func init() {
	// Load environment variables before configuration is read.
	loadEnvSilently()

	root.Init()

	root.Cmd.AddCommand(file.Cmd)
	root.Cmd.AddCommand(feed.Cmd)
}

// loadEnvSilently loads a .env file if one exists, without logging.
func loadEnvSilently() {
	envFile := ".env"
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		envFile = filepath.Join("..", ".env")
		if _, err := os.Stat(envFile); os.IsNotExist(err) {
			return
		}
	}
	_ = godotenv.Load(envFile)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
