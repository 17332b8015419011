package chat

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

// fakeConn records every frame sent to it.
type fakeConn struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	closed bool

	// full makes Send fail as if the outbound queue were full.
	full bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	if c.full {
		return ErrSendQueueFull
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type frame struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// drain returns and forgets every frame received so far.
func (c *fakeConn) drain(t *testing.T) []frame {
	t.Helper()

	c.mu.Lock()
	raw := c.frames
	c.frames = nil
	c.mu.Unlock()

	out := make([]frame, 0, len(raw))
	for _, data := range raw {
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("decode frame %s: %v", data, err)
		}
		out = append(out, f)
	}
	return out
}

// mustFrame drains the connection and returns the single frame of the given type.
func mustFrame(t *testing.T, c *fakeConn, msgType MessageType, dst any) {
	t.Helper()

	frames := c.drain(t)
	var found []frame
	for _, f := range frames {
		if f.Type == msgType {
			found = append(found, f)
		}
	}
	if len(found) != 1 {
		t.Fatalf("%s: expected exactly one %q frame, got %d (all frames: %v)", c.id, msgType, len(found), types(frames))
	}
	if dst != nil {
		if err := json.Unmarshal(found[0].Payload, dst); err != nil {
			t.Fatalf("decode %q payload: %v", msgType, err)
		}
	}
}

func mustNoFrames(t *testing.T, c *fakeConn) {
	t.Helper()

	if frames := c.drain(t); len(frames) != 0 {
		t.Fatalf("%s: expected no frames, got %v", c.id, types(frames))
	}
}

func types(frames []frame) []MessageType {
	out := make([]MessageType, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Type)
	}
	return out
}

// recordingRecorder collects activity in memory.
type recordingRecorder struct {
	mu         sync.Mutex
	activities []Activity
}

func (r *recordingRecorder) Record(a Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, a)
}

func (r *recordingRecorder) kinds() []ActivityKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ActivityKind, 0, len(r.activities))
	for _, a := range r.activities {
		out = append(out, a.Kind)
	}
	return out
}

// connect starts a session for a fresh fakeConn and discards the connected frame.
func connect(t *testing.T, coord *Coordinator, id string) (*Session, *fakeConn) {
	t.Helper()

	conn := newFakeConn(id)
	s := coord.Connect(conn)
	mustFrame(t, conn, TypeConnected, nil)
	return s, conn
}

func sendEvent(t *testing.T, s *Session, msgType MessageType, payload any) {
	t.Helper()

	data, err := json.Marshal(map[string]any{"type": msgType, "payload": payload})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	s.HandleMessage(data)
}

func connID(i int) string {
	return fmt.Sprintf("conn-%02d", i)
}
