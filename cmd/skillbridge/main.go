package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/skillforge/skillbridge/internal/cli"
	"github.com/skillforge/skillbridge/internal/version"
)

// Set with -ldflags "-X main.commit=... -X main.date=..."
var (
	commit string
	date   string
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()
	version.SetBuildInfo(commit, date)

	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stderr))
}
