package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"credence/internal/cli"
)

func main() {
	// Optional: env overrides may come from a local .env file.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[MAIN] .env not loaded: %v", err)
	}

	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
