package cache

import (
	"strings"
	"testing"
)

// Fuzz Put/Get/Delete under arbitrary strings. Whitespace-only content must
// be stored verbatim yet classified as negative.
func FuzzCache_PutGetDelete(f *testing.F) {
	f.Add("", "")
	f.Add("1-1", "note")
	f.Add("u1-5", "   ")
	f.Add("αβγ-δ", "🙂 watched twice")
	f.Add("long", strings.Repeat("x", 1024))

	f.Fuzz(func(t *testing.T, k, v string) {
		const limit = 1 << 12
		if len(k) > limit {
			k = k[:limit]
		}
		if len(v) > limit {
			v = v[:limit]
		}

		c := New(Options{Capacity: 16})
		t.Cleanup(func() { _ = c.Close() })

		c.Put(k, v)
		got, ok := c.Get(k)
		if !ok || got.Content != v {
			t.Fatalf("after Put/Get: want %q, got %q ok=%v", v, got.Content, ok)
		}
		if got.HasContent() != (strings.TrimSpace(v) != "") {
			t.Fatalf("HasContent(%q) = %v", v, got.HasContent())
		}
		if !c.IsFresh(got) {
			t.Fatalf("entry must be fresh right after Put")
		}
		if !c.Delete(k) {
			t.Fatalf("Delete must return true")
		}
		if _, ok := c.Get(k); ok {
			t.Fatalf("key must be absent after Delete")
		}
	})
}
