package resource

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesKind(t *testing.T) {
	cause := errors.New("status 401")
	err := fmt.Errorf("obtain: %w", Unauthorized(cause))

	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized match")
	}
	if errors.Is(err, ErrLoadFailed) {
		t.Fatalf("unauthorized must not match load failed")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if KindOf(err) != KindUnauthorized {
		t.Fatalf("unexpected kind %v", KindOf(err))
	}
}

func TestAsLoadErrorWrapsForeignErrors(t *testing.T) {
	foreign := errors.New("disk full")
	wrapped := AsLoadError(foreign)
	if wrapped.Kind != KindLoadFailed || !errors.Is(wrapped, foreign) {
		t.Fatalf("expected load failed wrapping, got %v", wrapped)
	}

	noData := LoadFailedNoData()
	if AsLoadError(noData) != noData {
		t.Fatalf("classified errors should pass through")
	}
	if AsLoadError(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}
