package logx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextHandler(t *testing.T) {
	var buff bytes.Buffer

	logger := slog.New(ContextHandler{
		Handler: slog.NewTextHandler(&buff, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})

	ctx := WithAttrs(context.Background(), slog.String("session", "abc"))
	ctx = WithAttrs(ctx, slog.Int("search", 2))

	logger.InfoContext(ctx, "searching")

	out := buff.String()

	for _, expected := range []string{"session=abc", "search=2", "msg=searching"} {
		if !strings.Contains(out, expected) {
			t.Errorf("expected '%s' in log output: %s", expected, out)
		}
	}
}

func TestAttrsWithoutValues(t *testing.T) {
	if attrs := Attrs(context.Background()); len(attrs) != 0 {
		t.Errorf("expected no attributes, got %v", attrs)
	}
}
