package httpx

import (
	"strings"
	"testing"

	"github.com/sketchcast/sketchcast/pkg/logger"
)

func TestListenerCreation(t *testing.T) {
	tests := []struct {
		addr   string
		port   string
		random bool
		error  bool
	}{
		{addr: "127.0.0.1:0", random: true},
		{addr: ":0", random: true},
		{addr: "https://garbage.com:99a9a", error: true},
		{addr: "localhost:abc1", error: true},
	}

	for _, test := range tests {
		t.Run(test.addr, func(t *testing.T) {
			ls, err := NewListener(test.addr, false, logger.Nop())
			if test.error {
				if err == nil {
					t.Errorf("expected error, but got none")
					_ = ls.Close()
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			defer func() { _ = ls.Close() }()

			port := ls.GetPort()
			if test.random && port <= 0 {
				t.Errorf("expected a random port, got %v", port)
			}
			if test.port != "" && !strings.HasSuffix(ls.Addr().String(), ":"+test.port) {
				t.Errorf("expected the same port %v != %v", test.port, port)
			}
		})
	}
}

func TestFailOnPortInUse(t *testing.T) {
	a, err := NewListener("127.0.0.1:0", false, logger.Nop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = a.Close() }()
	b, err := NewListener(a.Addr().String(), false, logger.Nop())
	if err == nil {
		_ = b.Close()
		t.Errorf("expected busy port error, but got none")
	}
}

func TestListenerPortRoll(t *testing.T) {
	a, err := NewListener("127.0.0.1:0", false, logger.Nop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = a.Close() }()
	b, err := NewListener(a.Addr().String(), true, logger.Nop())
	if err != nil {
		t.Fatalf("expected no port error, but got %v", err)
	}
	defer func() { _ = b.Close() }()
	if b.GetPort() == a.GetPort() {
		t.Errorf("expected a different port, got %v", b.GetPort())
	}
}
