package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"a@":              "***",
		"k@example.com":   "k@***",
		"kim@example.com": "ki***@example.com",
		"nodomain":        "no***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG") != zapcore.DebugLevel {
		t.Fatal("expected debug")
	}
	if parseLevel("warning") != zapcore.WarnLevel {
		t.Fatal("expected warn")
	}
	if parseLevel("nope") != zapcore.InfoLevel {
		t.Fatal("expected info default")
	}
}

func TestFrom_FallsBackToSingleton(t *testing.T) {
	if From(context.Background()) == nil {
		t.Fatal("expected singleton logger")
	}
	scoped := zap.NewNop()
	ctx := ToContext(context.Background(), scoped)
	if From(ctx) != scoped {
		t.Fatal("expected scoped logger from context")
	}
}
