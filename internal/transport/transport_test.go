package transport_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"filerelay/internal/transport"
)

func TestDestinationStripsLocalRoot(t *testing.T) {
	require.Equal(t, "/backup/a/b.txt", transport.Destination("/data/a/b.txt", "/data", "/backup"))
	require.Equal(t, "module/a/b.txt", transport.Destination("/data/a/b.txt", "/data", "module"))
	require.Equal(t, "/a/b.txt", transport.Destination("/data/a/b.txt", "/data", ""))
}

func TestLocator(t *testing.T) {
	require.Equal(t, "rsync://relay@backup.local:873/backup/a/b.txt",
		transport.Locator("backup.local", 873, "relay", "/backup/a/b.txt"))
	require.Equal(t, "rsync://relay@[::1]:10873/mod/x",
		transport.Locator("::1", 10873, "relay", "mod/x"))
}

func TestArgsRequestArchiveAndMkpath(t *testing.T) {
	args := transport.Args("h", 873, "u", "/data/a/b.txt", "/backup/a/b.txt")
	require.Equal(t, []string{"-a", "--mkpath", "/data/a/b.txt", "rsync://u@h:873/backup/a/b.txt"}, args)
}

func fakeRsync(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rsync")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestRsyncTransferPassesArguments(t *testing.T) {
	record := filepath.Join(t.TempDir(), "args")
	bin := fakeRsync(t, `echo "$@" > `+record)

	r := transport.NewRsync(transport.RsyncConfig{Binary: bin, Host: "h", Port: 873, User: "u"}, zap.NewNop())
	require.NoError(t, r.Transfer(context.Background(), "/data/a/b.txt", "/backup/a/b.txt"))

	got, err := os.ReadFile(record)
	require.NoError(t, err)
	require.Equal(t, "-a --mkpath /data/a/b.txt rsync://u@h:873/backup/a/b.txt", strings.TrimSpace(string(got)))
}

func TestRsyncRepeatedTransferIsIdentical(t *testing.T) {
	record := filepath.Join(t.TempDir(), "args")
	bin := fakeRsync(t, `echo "$@" >> `+record)

	r := transport.NewRsync(transport.RsyncConfig{Binary: bin, Host: "h", Port: 873, User: "u"}, zap.NewNop())
	require.NoError(t, r.Transfer(context.Background(), "/data/a.txt", "/backup/a.txt"))
	require.NoError(t, r.Transfer(context.Background(), "/data/a.txt", "/backup/a.txt"))

	got, err := os.ReadFile(record)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(got)), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, lines[0], lines[1])
	require.Equal(t, "-a --mkpath /data/a.txt rsync://u@h:873/backup/a.txt", lines[0])
}

func TestRsyncNonZeroExitIsFailure(t *testing.T) {
	bin := fakeRsync(t, `echo "remote disk full" >&2; exit 11`)

	r := transport.NewRsync(transport.RsyncConfig{Binary: bin, Host: "h", Port: 873, User: "u"}, zap.NewNop())
	status, output, err := r.Run(context.Background(), "/data/x", "/backup/x")
	require.NoError(t, err)
	require.Equal(t, 11, status)
	require.Equal(t, "remote disk full", output)

	err = r.Transfer(context.Background(), "/data/x", "/backup/x")
	var exitErr *transport.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 11, exitErr.Status)
}

func TestRsyncMissingBinaryIsFailure(t *testing.T) {
	r := transport.NewRsync(transport.RsyncConfig{
		Binary: filepath.Join(t.TempDir(), "no-such-rsync"),
		Host:   "h", Port: 873, User: "u",
	}, zap.NewNop())

	status, _, err := r.Run(context.Background(), "/data/x", "/backup/x")
	require.Error(t, err)
	require.Equal(t, -1, status)
	require.Error(t, r.Transfer(context.Background(), "/data/x", "/backup/x"))
}

func TestObjectKey(t *testing.T) {
	require.Equal(t, "backup/a/b.txt", transport.ObjectKey("/backup/a/b.txt"))
	require.Equal(t, "a", transport.ObjectKey("a"))
}

func TestNewS3RejectsEndpointWithPath(t *testing.T) {
	_, err := transport.NewS3(transport.S3Config{Endpoint: "https://s3.local/bucket"}, zap.NewNop())
	require.Error(t, err)

	_, err = transport.NewS3(transport.S3Config{Endpoint: ""}, zap.NewNop())
	require.Error(t, err)

	s, err := transport.NewS3(transport.S3Config{Endpoint: "http://s3.local:9000", Bucket: "b"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, s)
}
