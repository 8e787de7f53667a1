package audit

import "testing"

func TestFingerprintPayload(t *testing.T) {
	a := FingerprintPayload([]byte("<cerere cui=\"123\"/>"))
	b := FingerprintPayload([]byte("<cerere cui=\"123\"/>"))
	c := FingerprintPayload([]byte("<cerere cui=\"456\"/>"))

	if a != b {
		t.Errorf("same payload produced different digests: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different payloads produced the same digest")
	}
	if len(a) != 16 {
		t.Errorf("digest length = %d, want 16 hex characters", len(a))
	}
}

func TestFingerprintPayload_Empty(t *testing.T) {
	if got := FingerprintPayload(nil); len(got) != 16 {
		t.Errorf("empty payload digest length = %d, want 16", len(got))
	}
}
