package reqctx

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestWithRun(t *testing.T) {
	ctx := WithRun(context.Background())
	rc := FromContext(ctx)
	if len(rc.RunID) != 16 {
		t.Errorf("expected a 16 hex char id, got %q", rc.RunID)
	}
	if again := FromContext(WithRun(ctx)); again.RunID != rc.RunID {
		t.Error("expected nested WithRun to keep the run")
	}
	if other := FromContext(WithRun(context.Background())); other.RunID == rc.RunID {
		t.Error("expected distinct runs to get distinct ids")
	}
}

func TestFromContext_Unknown(t *testing.T) {
	if rc := FromContext(context.Background()); rc.RunID != "unknown" {
		t.Errorf("expected unknown run, got %q", rc.RunID)
	}
}

func TestNewRunError(t *testing.T) {
	ctx := WithRun(context.Background())
	err := NewRunError(ctx, context.Canceled)

	if !errors.Is(err, context.Canceled) {
		t.Error("expected the cause to stay reachable")
	}
	if !strings.Contains(err.Error(), FromContext(ctx).RunID) {
		t.Errorf("expected run id in %q", err.Error())
	}
	if NewRunError(ctx, nil) != nil {
		t.Error("expected nil for a nil error")
	}
}
