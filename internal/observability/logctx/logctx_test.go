package logctx

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

type recordingLogger struct {
	fields []observability.Field
}

func (l *recordingLogger) With(fields ...observability.Field) observability.Logger {
	return &recordingLogger{fields: append(append([]observability.Field(nil), l.fields...), fields...)}
}
func (l *recordingLogger) Debug(string, ...observability.Field) {}
func (l *recordingLogger) Info(string, ...observability.Field)  {}
func (l *recordingLogger) Warn(string, ...observability.Field)  {}
func (l *recordingLogger) Error(string, ...observability.Field) {}

func TestFromOr_FallsBackWhenMissing(t *testing.T) {
	fallback := &recordingLogger{}
	if got := FromOr(context.Background(), fallback); got != fallback {
		t.Errorf("expected fallback logger, got %T", got)
	}
	if got := FromOr(context.Background(), nil); got == nil {
		t.Error("expected nop logger when fallback is nil")
	}
}

func TestEnrich_StoresLoggerOnContext(t *testing.T) {
	base := &recordingLogger{}
	ctx, logger := Enrich(context.Background(), base, observability.F("owner_id", "u-1"))

	if From(ctx) != logger {
		t.Fatal("expected enriched logger on context")
	}
	rec := logger.(*recordingLogger)
	if len(rec.fields) != 1 || rec.fields[0].Key != "owner_id" {
		t.Errorf("unexpected fields: %+v", rec.fields)
	}

	_, nested := Enrich(ctx, base, observability.F("order_id", "o-1"))
	if got := len(nested.(*recordingLogger).fields); got != 2 {
		t.Errorf("expected 2 fields after nesting, got %d", got)
	}
}
