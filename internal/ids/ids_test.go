package ids

import "testing"

func TestNew(t *testing.T) {
	a := New()
	b := New()
	if len(a) != 26 || len(b) != 26 {
		t.Fatalf("unexpected id lengths: %q %q", a, b)
	}
	if a == b {
		t.Fatalf("ids must be unique: %q", a)
	}
}
