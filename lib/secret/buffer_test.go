// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import "testing"

func TestNewZeroInitialized(t *testing.T) {
	buffer, err := New(64)
	if err != nil {
		t.Fatalf("New(64): %v", err)
	}
	defer buffer.Close()

	if buffer.Len() != 64 {
		t.Errorf("expected length 64, got %d", buffer.Len())
	}
	for index, value := range buffer.Bytes() {
		if value != 0 {
			t.Fatalf("expected zero at index %d, got %d", index, value)
		}
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero size")
	}
	if _, err := New(-1); err == nil {
		t.Fatal("expected error for negative size")
	}
}

func TestNewFromBytesZerosSource(t *testing.T) {
	source := []byte("x448-private-key-material")
	original := string(source)

	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != original {
		t.Errorf("expected %q, got %q", original, got)
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source byte %d was not zeroed: got %d", index, value)
		}
	}
}

func TestNewFromBytesRejectsEmpty(t *testing.T) {
	if _, err := NewFromBytes(nil); err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestEqualConstantTime(t *testing.T) {
	buffer, err := NewFromBytes([]byte("expected-challenge-string-value!"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if !buffer.Equal([]byte("expected-challenge-string-value!")) {
		t.Error("Equal should match identical contents")
	}
	if buffer.Equal([]byte("expected-challenge-string-nope!!")) {
		t.Error("Equal should reject different contents")
	}
	if buffer.Equal([]byte("short")) {
		t.Error("Equal should reject length mismatch")
	}
}

func TestCloseZerosAndIsIdempotent(t *testing.T) {
	buffer, err := New(32)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	copy(buffer.Bytes(), []byte("this should be zeroed"))

	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if buffer.data != nil {
		t.Error("expected data to be nil after Close")
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestAccessAfterClosePanics(t *testing.T) {
	buffer, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	buffer.Close()

	for name, access := range map[string]func(){
		"Bytes":  func() { buffer.Bytes() },
		"String": func() { _ = buffer.String() },
		"Equal":  func() { buffer.Equal(nil) },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic on %s after Close", name)
				}
			}()
			access()
		})
	}
}

func TestZero(t *testing.T) {
	data := []byte{1, 2, 3}
	Zero(data)
	for index, value := range data {
		if value != 0 {
			t.Fatalf("byte %d not zeroed: %d", index, value)
		}
	}
}
