package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodePathInvalid, "path escapes root").WithContext("path", "../etc/passwd")
	msg := err.Error()
	if !strings.Contains(msg, "[PATH_INVALID]") {
		t.Fatalf("expected code in message, got %q", msg)
	}
	if !strings.Contains(msg, "path escapes root") {
		t.Fatalf("expected message text, got %q", msg)
	}
	if !strings.Contains(msg, "../etc/passwd") {
		t.Fatalf("expected context value, got %q", msg)
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if Wrap(nil, ErrCodeIOFailure, "nope") != nil {
		t.Fatal("wrapping nil should return nil")
	}
}

func TestUnwrapPreservesChain(t *testing.T) {
	base := fmt.Errorf("disk full")
	err := Wrap(base, ErrCodeIOFailure, "write failed")
	if !stderrors.Is(err, base) {
		t.Fatal("errors.Is should find the underlying error")
	}
}

func TestIsCodeAndGetCode(t *testing.T) {
	err := New(ErrCodeConflict, "dirty working tree")
	if !IsCode(err, ErrCodeConflict) {
		t.Fatal("IsCode should match the error's code")
	}
	if IsCode(err, ErrCodeNotFound) {
		t.Fatal("IsCode should not match a different code")
	}
	if got := GetCode(err); got != ErrCodeConflict {
		t.Fatalf("GetCode = %s, want %s", got, ErrCodeConflict)
	}
	if got := GetCode(fmt.Errorf("plain")); got != ErrCodeInternal {
		t.Fatalf("GetCode on plain error = %s, want %s", got, ErrCodeInternal)
	}
	if got := GetCode(nil); got != "" {
		t.Fatalf("GetCode on nil = %q, want empty", got)
	}
}
