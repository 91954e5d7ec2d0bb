// Command t2d2 drives the T2D2 inspection API from the shell: project
// inspection, image upload, annotation management and AI inference.
//
// Configuration is read from flags, T2D2_* environment variables and
// ~/.t2d2/config.yaml, in that order of precedence.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2"
)

var version = "dev"

func main() {
	a := newApp(os.Stdout, os.Stderr)
	err := newRootCmd(a).Execute()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	a.close(ctx)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode lets scripts tell credential problems and missing resources apart
// from other failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, t2d2.ErrInvalidCredentials), errors.Is(err, t2d2.ErrAuthentication):
		return 2
	case errors.Is(err, t2d2.ErrNotFound), errors.Is(err, t2d2.ErrProjectNotSet):
		return 3
	case errors.Is(err, t2d2.ErrRequest):
		return 4
	default:
		return 1
	}
}
