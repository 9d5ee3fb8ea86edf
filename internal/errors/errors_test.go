package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrapUnwrapsCause(t *testing.T) {
	err := Wrap(CodeTimeout, "snapshot deadline exceeded", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cause to be reachable, got %v", err)
	}
	if err.Error() != "snapshot deadline exceeded: context deadline exceeded" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestIsAndExitCodeThroughFmtWrap(t *testing.T) {
	inner := New(CodeExtraction, "field title not found")
	wrapped := fmt.Errorf("handle positions: %w", inner)
	if !Is(wrapped, CodeExtraction) {
		t.Fatalf("expected extraction code through fmt wrap")
	}
	if got := ExitCode(wrapped); got != int(CodeExtraction) {
		t.Fatalf("expected exit %d, got %d", CodeExtraction, got)
	}
	if got := ExitCode(errors.New("plain")); got != int(CodeInternal) {
		t.Fatalf("expected internal exit for untyped error, got %d", got)
	}
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("expected 0 for nil, got %d", got)
	}
}
