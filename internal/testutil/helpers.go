// Package testutil holds small assertion helpers shared by package tests.
package testutil

import (
	"encoding/json"
	"reflect"
	"testing"
)

// AssertEqual checks if two values are deeply equal
func AssertEqual(t *testing.T, want, got interface{}, what string) {
	t.Helper()
	if !reflect.DeepEqual(want, got) {
		t.Errorf("%s: got %v, want %v", what, got, want)
	}
}

// AssertNotNil fails the test immediately when value is nil, including typed nil pointers
func AssertNotNil(t *testing.T, value interface{}, what string) {
	t.Helper()
	if isNil(value) {
		t.Fatalf("%s: expected non-nil value, got nil", what)
	}
}

// AssertNil checks if a value is nil
func AssertNil(t *testing.T, value interface{}, what string) {
	t.Helper()
	if !isNil(value) {
		t.Errorf("%s: expected nil, got %v", what, value)
	}
}

// AssertTrue checks if a condition is true
func AssertTrue(t *testing.T, condition bool, message string) {
	t.Helper()
	if !condition {
		t.Errorf("assertion failed: %s", message)
	}
}

// MustMarshalJSON marshals an object to JSON or fails the test
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data or fails the test
func MustUnmarshalJSON(t *testing.T, data []byte, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to unmarshal JSON %q: %v", data, err)
	}
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
