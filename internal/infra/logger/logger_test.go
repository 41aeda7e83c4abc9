package logger

import (
	"context"
	"testing"
)

func TestMaskIP(t *testing.T) {
	cases := map[string]string{
		"":                              "",
		"192.168.1.100":                 "192.168.*.*",
		"2001:db8:85a3:0:0:8a2e:370:7334": "2001:db8:85a3:0:*:*:*:*",
		"localhost":                     "***",
	}
	for in, want := range cases {
		if got := MaskIP(in); got != want {
			t.Fatalf("MaskIP(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWithContextWithoutLogger(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	if WithContext(ctx) == nil {
		t.Fatalf("expected a usable logger")
	}
}
