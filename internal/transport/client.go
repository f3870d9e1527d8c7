package transport

import (
	"context"
	"fmt"
	"strings"
)

// Client copies one local file to one remote path. A nil error means the
// transfer succeeded; any error is a failed attempt.
type Client interface {
	Transfer(ctx context.Context, localPath, remotePath string) error
}

// ExitError reports a transfer command that ran but exited non-zero
type ExitError struct {
	Status int
	Output string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("transfer exited with status %d", e.Status)
	}
	return fmt.Sprintf("transfer exited with status %d: %s", e.Status, e.Output)
}

// Destination maps a local path under localRoot to its remote path under
// remoteRoot.
func Destination(localPath, localRoot, remoteRoot string) string {
	return remoteRoot + strings.TrimPrefix(localPath, localRoot)
}
