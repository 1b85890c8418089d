package main

import (
	"errors"
	"testing"
)

func TestExitCodeClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"config", configError(errors.New("bad flag")), exitConfigError},
		{"rpc", rpcError(errors.New("dial failed")), exitRPCError},
		{"unclassified", errors.New("something else"), 1},
	}
	for _, c := range cases {
		if got := exitCode(c.err); got != c.want {
			t.Errorf("%s: exitCode = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestConfigErrorAndRPCErrorNilPassthrough(t *testing.T) {
	if configError(nil) != nil {
		t.Error("configError(nil) should be nil")
	}
	if rpcError(nil) != nil {
		t.Error("rpcError(nil) should be nil")
	}
}

func TestExitErrorUnwraps(t *testing.T) {
	sentinel := errors.New("boom")
	wrapped := configError(sentinel)
	if !errors.Is(wrapped, sentinel) {
		t.Error("exitError should unwrap to the original error via errors.Is")
	}
}
