package main

import (
	"context"
	"os"

	"tube-transcriber/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
