package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/skillforge/skillbridge/internal/cli"
)

func main() {
	_ = godotenv.Load()
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stderr))
}
