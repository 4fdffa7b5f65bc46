// Package testutil provides helpers shared by package tests: loggers,
// bounded contexts and length-prefixed record fixtures.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/xdrflow/pkg/tlv"
)

// TestLogger creates a logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext returns a context that expires after 30 seconds and is
// cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// AssertEventually fails the test unless condition holds within timeout.
// The condition is polled every 10ms.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// LVStream frames every body with a 2-byte big-endian length.
func LVStream(t *testing.T, bodies ...[]byte) []byte {
	t.Helper()
	var data []byte
	for i, b := range bodies {
		var err error
		if data, err = tlv.AppendLV(data, b); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	return data
}

// WriteLVFile writes LVStream(bodies) to a file in a per-test temporary
// directory and returns its path.
func WriteLVFile(t *testing.T, bodies ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.bin")
	if err := os.WriteFile(path, LVStream(t, bodies...), 0o600); err != nil {
		t.Fatalf("write records: %v", err)
	}
	return path
}
