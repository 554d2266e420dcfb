// Command smartreader converts imaging data in any recognized format into
// a Pittsburgh MRI dataset.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	ctx := logger.WithContext(context.Background())

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("smartreader failed")
		os.Exit(1)
	}
}
