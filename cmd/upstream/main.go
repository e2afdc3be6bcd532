package main

import (
	"context"
	"fmt"
	"os"

	"github.com/upstream-sh/upstream/internal/app"
)

func main() {
	if err := app.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
