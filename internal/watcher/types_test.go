package watcher

import "testing"

func TestParseEventKindRoundTrip(t *testing.T) {
	for _, kind := range []EventKind{Created, Deleted, MovedIn, MovedOut} {
		parsed, ok := ParseEventKind(kind.String())
		if !ok || parsed != kind {
			t.Fatalf("ParseEventKind(%q) = %v, %v", kind.String(), parsed, ok)
		}
	}
	if _, ok := ParseEventKind("modified"); ok {
		t.Fatalf("expected unknown kind to be rejected")
	}
}

func TestEventKindGroups(t *testing.T) {
	if !Created.Creates() || !MovedIn.Creates() || Deleted.Creates() {
		t.Fatalf("unexpected Creates grouping")
	}
	if !Deleted.Removes() || !MovedOut.Removes() || MovedIn.Removes() {
		t.Fatalf("unexpected Removes grouping")
	}
}
