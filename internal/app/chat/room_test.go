package chat

import (
	"testing"

	"voicerelay/internal/pkg/errs"
)

func TestRoomTryAddCapacity(t *testing.T) {
	room := NewRoom("abc", 2)

	for i := 0; i < 2; i++ {
		if _, err := room.TryAdd(newFakeConn(connID(i)), "user"); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	_, err := room.TryAdd(newFakeConn(connID(2)), "late")
	if err == nil || err.Code != errs.ErrRoomIsFull {
		t.Fatalf("expected ErrRoomIsFull, got %v", err)
	}
	if room.Size() != 2 {
		t.Fatalf("size after rejected add = %d, want 2", room.Size())
	}
}

func TestRoomTryAddDuplicate(t *testing.T) {
	room := NewRoom("abc", 5)
	conn := newFakeConn("a")

	if _, err := room.TryAdd(conn, "alice"); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := room.TryAdd(conn, "alice")
	if err == nil || err.Code != errs.ErrAlreadyJoined {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}
}

func TestRoomSnapshotKeepsJoinOrder(t *testing.T) {
	room := NewRoom("abc", 5)
	for _, id := range []string{"c", "a", "b"} {
		if _, err := room.TryAdd(newFakeConn(id), "n-"+id); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	if _, ok := room.Remove("a"); !ok {
		t.Fatal("remove a: not found")
	}

	users := room.Snapshot()
	if len(users) != 2 || users[0].ID != "c" || users[1].ID != "b" {
		t.Fatalf("unexpected snapshot: %+v", users)
	}
	if users[0].Name != "n-c" || users[0].Muted {
		t.Fatalf("unexpected member record: %+v", users[0])
	}
}

func TestRoomRemoveMissing(t *testing.T) {
	room := NewRoom("abc", 5)

	if _, ok := room.Remove("ghost"); ok {
		t.Fatal("remove of non-member reported success")
	}
}

func TestRoomSetMuted(t *testing.T) {
	room := NewRoom("abc", 5)
	if _, err := room.TryAdd(newFakeConn("a"), "alice"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := room.SetMuted("a", true); err != nil {
		t.Fatalf("set muted: %v", err)
	}
	if users := room.Snapshot(); !users[0].Muted {
		t.Fatal("member not muted")
	}

	if err := room.SetMuted("ghost", true); err == nil || err.Code != errs.ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRoomBroadcastSkipsSenderAndFullQueues(t *testing.T) {
	room := NewRoom("abc", 5)
	a, b, c := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")
	c.full = true

	for _, conn := range []*fakeConn{a, b, c} {
		if _, err := room.TryAdd(conn, conn.id); err != nil {
			t.Fatalf("add %s: %v", conn.id, err)
		}
	}

	delivered := room.Broadcast("a", []byte(`{"type":"user-left","payload":{"id":"x"}}`))
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}

	mustNoFrames(t, a)
	mustFrame(t, b, TypeUserLeft, nil)
	mustNoFrames(t, c)
}

func TestRoomClosedRejectsJoin(t *testing.T) {
	room := NewRoom("abc", 5)

	if !room.closeIfEmpty() {
		t.Fatal("empty room did not close")
	}

	_, err := room.TryAdd(newFakeConn("a"), "alice")
	if err == nil || err.Code != errs.ErrRoomClosed {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
}

func TestRoomCloseIfEmptyKeepsOccupiedRoom(t *testing.T) {
	room := NewRoom("abc", 5)
	if _, err := room.TryAdd(newFakeConn("a"), "alice"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if room.closeIfEmpty() {
		t.Fatal("occupied room closed")
	}
}
