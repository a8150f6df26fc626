package deployhistory

import "testing"

func TestRecentOrdersMostRecentFirst(t *testing.T) {
	h := &History{Entries: []Entry{
		{ProjectName: "a", StartedAt: "2026-01-01T00:00:00Z"},
		{ProjectName: "b", StartedAt: "2026-03-01T00:00:00Z"},
		{ProjectName: "c", StartedAt: "2026-02-01T00:00:00Z"},
	}}
	recent := Recent(h, 2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].ProjectName != "b" || recent[1].ProjectName != "c" {
		t.Fatalf("unexpected order: %+v", recent)
	}
}
