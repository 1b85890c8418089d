package engine

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that no test in this package leaks goroutines past
// its own completion — the engine spawns no goroutines of its own, but
// the querySwarm fakes and fixtures here stand in for pswarm's, which
// does.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
