package domain

import (
	"errors"
	"testing"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewNetworkError("fetch markets", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		if err.Error() != "fetch markets: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "fetch markets: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("fatal error", func(t *testing.T) {
		err := NewFatalNetworkError("auth", baseErr)

		if err.IsRetriable() {
			t.Error("Expected error to not be retriable")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		retriable := NewNetworkError("dial", baseErr)
		fatal := NewFatalNetworkError("auth", baseErr)
		plain := errors.New("plain error")

		if !IsRetriable(retriable) {
			t.Error("IsRetriable should return true for retriable error")
		}

		if IsRetriable(fatal) {
			t.Error("IsRetriable should return false for fatal error")
		}

		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestUpstreamError(t *testing.T) {
	baseErr := NewNetworkError("fetch markets", errors.New("timeout"))
	err := NewUpstreamError("markets", baseErr)

	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Error("UpstreamError should match ErrUpstreamUnavailable")
	}
	if !errors.Is(err, baseErr) {
		t.Error("UpstreamError should wrap the cause")
	}
	if !IsRetriable(err) {
		t.Error("retriable cause should be visible through UpstreamError")
	}

	expected := "upstream markets unavailable: fetch markets: timeout"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}

	bare := NewUpstreamError("news", nil)
	if !errors.Is(bare, ErrUpstreamUnavailable) {
		t.Error("bare UpstreamError should match ErrUpstreamUnavailable")
	}
}

func TestInputError(t *testing.T) {
	err := NewInputError("limit", ErrOutOfRange)

	if !errors.Is(err, ErrInvalidInput) {
		t.Error("InputError should match ErrInvalidInput")
	}
	if !errors.Is(err, ErrOutOfRange) {
		t.Error("InputError should wrap its cause")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("InputError should not match ErrNotFound")
	}

	expected := "invalid limit: value out of range"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
}

func TestConfigError(t *testing.T) {
	baseErr := errors.New("missing value")
	err := &ConfigError{Field: "api_key", Err: baseErr}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [api_key]: missing value"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
}
