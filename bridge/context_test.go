package bridge

import (
	"testing"
	"unsafe"
)

func TestContext_Pointer(t *testing.T) {
	var x int
	p := unsafe.Pointer(&x)

	if got := AssertThreadSafe(p).Pointer(); got != p {
		t.Fatalf("Pointer() = %p, want %p", got, p)
	}
	if got := AssertThreadSafe(nil).Pointer(); got != nil {
		t.Fatalf("Pointer() = %p, want nil", got)
	}
}
