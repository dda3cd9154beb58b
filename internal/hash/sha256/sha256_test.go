package sha256

import "testing"

func TestHasherDigestsSnapshot(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("hello world"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	a, _ := h.Hash([]byte(`{"VCP-2026-04-26":{"points_value":97500}}`))
	b, _ := h.Hash([]byte(`{"VCP-2026-04-26":{"points_value":97400}}`))
	if a == b {
		t.Fatal("expected different snapshots to produce different digests")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(a))
	}
}
