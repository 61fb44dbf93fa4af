package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"ann@x.com":       "a***@x.com",
		" Bob@Example.io": "B***@Example.io",
		"@x.com":          "***@x.com",
		"not-an-email":    "***",
		"":                "",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	if got := MaskPhone("0900000123"); got != "***123" {
		t.Fatalf("unexpected masked phone %q", got)
	}
	if got := MaskPhone("12"); got != "***" {
		t.Fatalf("expected short phone fully masked, got %q", got)
	}
}

func TestMaskIP(t *testing.T) {
	if got := MaskIP("192.168.1.100"); got != "192.168.0.0" {
		t.Fatalf("unexpected masked ipv4 %q", got)
	}
	if got := MaskIP("2001:db8:85a3::8a2e:370:7334"); got != "2001:db8:85a3::" {
		t.Fatalf("unexpected masked ipv6 %q", got)
	}
	if got := MaskIP("garbage"); got != "***" {
		t.Fatalf("expected garbage masked, got %q", got)
	}
}

func TestWithContextAddsIdentifiers(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	ctx = context.WithValue(ctx, TraceIDKey{}, "trace-1")

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["trace_id"] != "trace-1" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
