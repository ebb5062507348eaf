package ledger

import "testing"

func TestEnqueueAdd_TwiceWithoutDispatch(t *testing.T) {
	q := NewQueue()

	if !q.EnqueueAdd("https://h/a.git", false) {
		t.Fatal("first EnqueueAdd should queue the link")
	}
	if q.EnqueueAdd("https://h/a.git", false) {
		t.Error("second EnqueueAdd should be a no-op")
	}

	if q.PendingAdds() != 1 {
		t.Errorf("PendingAdds() = %d, want 1", q.PendingAdds())
	}
}

func TestEnqueueAdd_ForcedWhileQueued(t *testing.T) {
	q := NewQueue()

	q.EnqueueAdd("https://h/a.git", false)
	if q.EnqueueAdd("https://h/a.git", true) {
		t.Error("forced add must not duplicate a link that is already queued")
	}
	if q.PendingAdds() != 1 {
		t.Errorf("PendingAdds() = %d, want 1", q.PendingAdds())
	}
}

func TestEnqueueAdd_AfterDispatch(t *testing.T) {
	q := NewQueue()
	q.EnqueueAdd("https://h/a.git", false)

	link, ok := q.NextAdd()
	if !ok || link != "https://h/a.git" {
		t.Fatalf("NextAdd() = %q, %v", link, ok)
	}

	if q.Ledger().Queued(link) {
		t.Error("dispatched link should leave the queued set")
	}
	if !q.Ledger().Seen(link) {
		t.Error("dispatched link should stay in the seen set")
	}

	if q.EnqueueAdd(link, false) {
		t.Error("non-forced add of an already seen link should be a no-op")
	}
	if !q.EnqueueAdd(link, true) {
		t.Error("forced add after dispatch should queue the link again")
	}
	if q.PendingAdds() != 1 {
		t.Errorf("PendingAdds() = %d, want 1", q.PendingAdds())
	}
}

func TestEnqueueAdd_CaseInsensitive(t *testing.T) {
	q := NewQueue()

	q.EnqueueAdd("https://Host/Org/Repo.git", false)
	if q.EnqueueAdd("https://host/org/repo.git", false) {
		t.Error("links differing only in case should be deduplicated")
	}
	if !q.Ledger().Queued("HTTPS://HOST/ORG/REPO.GIT") {
		t.Error("Queued() should match case-insensitively")
	}
}

func TestEnqueueAdd_RejectsBlank(t *testing.T) {
	q := NewQueue()

	for _, link := range []string{"", "   ", "\t\n"} {
		if q.EnqueueAdd(link, false) || q.EnqueueAdd(link, true) {
			t.Errorf("EnqueueAdd(%q) should be rejected", link)
		}
	}
	if q.PendingAdds() != 0 || q.Ledger().SeenCount() != 0 {
		t.Error("rejected input must not touch the queue or ledger")
	}
}

func TestEnqueueAdd_TrimsLink(t *testing.T) {
	q := NewQueue()
	q.EnqueueAdd("  https://h/a.git ", false)

	link, _ := q.NextAdd()
	if link != "https://h/a.git" {
		t.Errorf("NextAdd() = %q, want trimmed link", link)
	}
}

func TestEnqueueAdd_ForcedDoesNotMarkSeen(t *testing.T) {
	q := NewQueue()
	q.EnqueueAdd("https://h/a.git", true)
	q.NextAdd()

	if q.Ledger().Seen("https://h/a.git") {
		t.Error("forced requests should not be recorded as seen")
	}
}

func TestQueueOrder(t *testing.T) {
	q := NewQueue()
	for _, l := range []string{"a", "b", "c"} {
		q.EnqueueAdd(l, false)
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.NextAdd()
		if !ok || got != want {
			t.Fatalf("NextAdd() = %q, %v; want %q", got, ok, want)
		}
	}
	if _, ok := q.NextAdd(); ok {
		t.Error("NextAdd() on empty queue should report false")
	}
}

func TestEnqueueRemove(t *testing.T) {
	q := NewQueue()

	if q.EnqueueRemove("  ") {
		t.Error("blank remove should be rejected")
	}
	q.EnqueueRemove("com.example.a")
	q.EnqueueRemove("com.example.a")

	if q.PendingRemoves() != 2 {
		t.Errorf("PendingRemoves() = %d, want 2 (removes are not deduplicated)", q.PendingRemoves())
	}

	id, ok := q.NextRemove()
	if !ok || id != "com.example.a" {
		t.Errorf("NextRemove() = %q, %v", id, ok)
	}
	if q.Empty() {
		t.Error("queue should still hold one remove")
	}
	q.NextRemove()
	if !q.Empty() {
		t.Error("queue should be empty")
	}
}
