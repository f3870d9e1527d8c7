package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const maxOutput = 4096

// RsyncConfig describes the remote rsync daemon
type RsyncConfig struct {
	Binary string
	Host   string
	Port   int
	User   string
}

// Rsync sends files to an rsync daemon by running the rsync command
type Rsync struct {
	cfg    RsyncConfig
	logger *zap.Logger
}

// NewRsync creates an rsync transport
func NewRsync(cfg RsyncConfig, logger *zap.Logger) *Rsync {
	if cfg.Binary == "" {
		cfg.Binary = "rsync"
	}
	return &Rsync{cfg: cfg, logger: logger}
}

// Transfer runs rsync once for the pair
func (r *Rsync) Transfer(ctx context.Context, localPath, remotePath string) error {
	status, output, err := r.Run(ctx, localPath, remotePath)
	if err != nil {
		return err
	}
	if status != 0 {
		return &ExitError{Status: status, Output: output}
	}
	return nil
}

// Run invokes rsync and returns its raw exit status. The status is -1 and
// err is set when the command could not be run at all.
func (r *Rsync) Run(ctx context.Context, localPath, remotePath string) (int, string, error) {
	args := Args(r.cfg.Host, r.cfg.Port, r.cfg.User, localPath, remotePath)

	r.logger.Debug("Sending file",
		zap.String("path", localPath),
		zap.String("uri", args[len(args)-1]),
	)

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, r.cfg.Binary, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := strings.TrimSpace(out.String())
	if len(output) > maxOutput {
		output = output[len(output)-maxOutput:]
	}

	if err == nil {
		return 0, output, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode(), output, nil
	}
	return -1, output, fmt.Errorf("failed to run %s: %w", r.cfg.Binary, err)
}

// Args builds the rsync argument list: archive mode, create missing
// remote directories, and a daemon URI for the destination.
func Args(host string, port int, user, localPath, remotePath string) []string {
	return []string{
		"-a",
		"--mkpath",
		localPath,
		Locator(host, port, user, remotePath),
	}
}

// Locator formats the rsync daemon URI for remotePath
func Locator(host string, port int, user, remotePath string) string {
	return fmt.Sprintf("rsync://%s@%s/%s",
		user,
		net.JoinHostPort(host, strconv.Itoa(port)),
		strings.TrimLeft(remotePath, "/"),
	)
}
