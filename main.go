package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tonimelisma/mythx-go/internal/mythx"
)

func main() {
	ctx := shutdownContext(context.Background(), slog.Default())

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var timeout *mythx.PollTimeoutError
		if errors.As(err, &timeout) {
			fmt.Fprintf(os.Stderr, "The analysis is still running. Continue with: mythx-go resume %s\n", timeout.UUID)
		}

		os.Exit(exitCode(err))
	}
}
