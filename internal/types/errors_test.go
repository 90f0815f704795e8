package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	wrapped := fmt.Errorf("playlist fetch: status 500: %w", ErrRetryable)
	if !IsRetryable(wrapped) {
		t.Fatalf("wrapped retryable not detected")
	}
	if IsRetryable(fmt.Errorf("bad id: %w", ErrPermanent)) {
		t.Fatalf("permanent failure reported retryable")
	}
	if IsRetryable(errors.New("plain")) || IsRetryable(nil) {
		t.Fatalf("unrelated errors reported retryable")
	}
}

func TestDoubleWrappedTags(t *testing.T) {
	err := fmt.Errorf("video x: %w: %w", ErrNoPlaylist, ErrRetryable)
	if !errors.Is(err, ErrNoPlaylist) || !errors.Is(err, ErrRetryable) {
		t.Fatalf("dual-tagged error lost a tag: %v", err)
	}
}
