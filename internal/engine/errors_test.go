package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCrawlError_Is(t *testing.T) {
	err := fmt.Errorf("page 3: %w", NewNavigationError("https://x.com/a?page=3", context.DeadlineExceeded))

	if !errors.Is(err, ErrNavigation) {
		t.Error("expected navigation error to match ErrNavigation")
	}
	if errors.Is(err, ErrStore) {
		t.Error("navigation error must not match ErrStore")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected underlying deadline error to be reachable")
	}
	if !IsRetryable(err) {
		t.Error("navigation errors are retryable")
	}
}

func TestCrawlError_Message(t *testing.T) {
	err := NewExtractionError("https://x.com/a/p", "missing sku", nil)
	want := "EXTRACTION: missing sku (https://x.com/a/p)"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if IsRetryable(err) {
		t.Error("extraction errors are not retryable")
	}
}
