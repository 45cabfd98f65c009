package protoerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwraps(t *testing.T) {
	base := New(OutOfRange, "index %d past extent %d", 5, 3)
	wrapped := fmt.Errorf("read tag: %w", base)

	k, ok := KindOf(wrapped)
	if !ok || k != OutOfRange {
		t.Fatalf("KindOf(wrapped) = %v, %v; want OutOfRange, true", k, ok)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("KindOf should not match a plain error")
	}
}

func TestIsSentinel(t *testing.T) {
	err := New(Done, "unregister session matched")
	if !errors.Is(err, Of(Done)) {
		t.Fatalf("errors.Is should match same Kind")
	}
	if errors.Is(err, Of(BadRequest)) {
		t.Fatalf("errors.Is should not match a different Kind")
	}
}
