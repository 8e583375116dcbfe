package hub

import "testing"

func TestDedupeWindowSkipsRepeatWithinTTL(t *testing.T) {
	d := newDedupeWindow(dedupeWindowTTL, quietLogger())

	if d.seen(1, 100) {
		t.Fatalf("first delivery should not be seen yet")
	}
	if !d.seen(1, 100) {
		t.Fatalf("second delivery of the same (user, report) should be seen")
	}
}

func TestDedupeWindowTracksUsersAndReportsIndependently(t *testing.T) {
	d := newDedupeWindow(dedupeWindowTTL, quietLogger())

	d.seen(1, 100)
	if d.seen(1, 101) {
		t.Fatalf("different report id should not collide")
	}
	if d.seen(2, 100) {
		t.Fatalf("different user id should not collide")
	}
}
