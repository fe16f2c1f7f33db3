// Command vidopt is the entrypoint for the video optimizer: an HTTP service
// ("serve") and a one-shot batch runner ("run") over the same pipeline.
package main

import (
	"errors"
	"fmt"
	"os"
)

// version and commit are injected at build time via -ldflags.
// When built with plain "go build", these retain their defaults.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		if !errors.Is(err, errJobsFailed) {
			fmt.Fprintf(os.Stderr, "vidopt: %v\n", err)
		}
		os.Exit(1)
	}
}
