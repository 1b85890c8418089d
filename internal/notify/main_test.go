package notify

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that every Handler started in this package's tests
// shuts its run() goroutine down cleanly — the exact property a stuck
// per-connection goroutine would violate in a long-lived node.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
