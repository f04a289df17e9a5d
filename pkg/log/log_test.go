package log

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEventRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:       time.Now(),
		SessionID:       "session-1",
		Direction:       DirectionOut,
		Layer:           LayerHandshake,
		Category:        CategoryState,
		PeripheralID:    "peripheral-1",
		CarID:           "ABCD-1234",
		SecurityVersion: "V4",
		StateChange: &StateChangeEvent{
			Entity:   "handshake",
			OldState: "IN_PROGRESS",
			NewState: "COMPLETED",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.SessionID != original.SessionID {
		t.Errorf("SessionID = %q, want %q", decoded.SessionID, original.SessionID)
	}
	if decoded.Direction != DirectionOut || decoded.Layer != LayerHandshake || decoded.Category != CategoryState {
		t.Error("direction, layer, or category did not survive the round trip")
	}
	if decoded.CarID != original.CarID || decoded.SecurityVersion != original.SecurityVersion {
		t.Error("identity fields did not survive the round trip")
	}
	if decoded.StateChange == nil {
		t.Fatal("StateChange payload missing after decode")
	}
	if decoded.StateChange.NewState != "COMPLETED" {
		t.Errorf("NewState = %q, want COMPLETED", decoded.StateChange.NewState)
	}
	// RFC3339Nano keeps nanosecond precision
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, original.Timestamp)
	}
}

func TestEventOmitsEmptyFields(t *testing.T) {
	minimal := Event{
		Timestamp: time.Now(),
		Direction: DirectionNone,
		Layer:     LayerToken,
		Category:  CategoryToken,
		Token:     &TokenEvent{Action: "requested"},
	}

	data, err := EncodeEvent(minimal)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	full := Event{
		Timestamp:    minimal.Timestamp,
		SessionID:    "session-1",
		Direction:    DirectionNone,
		Layer:        LayerToken,
		Category:     CategoryToken,
		PeripheralID: "peripheral-1",
		Token:        &TokenEvent{Action: "requested"},
	}
	fullData, err := EncodeEvent(full)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	if len(data) >= len(fullData) {
		t.Errorf("minimal event encodes to %d bytes, full to %d; empty fields should be omitted",
			len(data), len(fullData))
	}
}

func TestEventConstructors(t *testing.T) {
	sc := NewStateChangeEvent(LayerSession, "session", "LIVE", "ENDED", "peer closed")
	if sc.Category != CategoryState || sc.Layer != LayerSession {
		t.Error("state-change constructor set wrong classification")
	}
	if sc.StateChange == nil || sc.StateChange.Reason != "peer closed" {
		t.Error("state-change constructor dropped the reason")
	}

	te := NewTokenEvent("resolved")
	if te.Category != CategoryToken || te.Layer != LayerToken {
		t.Error("token constructor set wrong classification")
	}
	if te.Token == nil || te.Token.Action != "resolved" {
		t.Error("token constructor dropped the action")
	}

	ee := NewErrorEvent(LayerRegistry, "persist", errors.New("disk full"))
	if ee.Category != CategoryError {
		t.Error("error constructor set wrong category")
	}
	if ee.Error == nil || ee.Error.Message != "disk full" || ee.Error.Context != "persist" {
		t.Error("error constructor dropped error details")
	}
}

func TestEnumStrings(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{DirectionNone.String(), "NONE"},
		{Direction(99).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerHandshake.String(), "HANDSHAKE"},
		{LayerSession.String(), "SESSION"},
		{LayerToken.String(), "TOKEN"},
		{LayerRegistry.String(), "REGISTRY"},
		{Layer(99).String(), "UNKNOWN"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryState.String(), "STATE"},
		{CategoryToken.String(), "TOKEN"},
		{CategoryError.String(), "ERROR"},
		{Category(99).String(), "UNKNOWN"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("String() = %q, want %q", c.got, c.want)
		}
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.clog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	logger.Log(NewTokenEvent("requested"))
	logger.Log(NewTokenEvent("resolved"))
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Close is idempotent; Log after Close is a no-op
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	logger.Log(NewTokenEvent("ignored"))

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	dec := NewDecoder(f)
	var actions []string
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			t.Fatalf("Decode failed: %v", err)
		}
		if ev.Token == nil {
			t.Fatal("expected token payload on every event")
		}
		actions = append(actions, ev.Token.Action)
	}

	if len(actions) != 2 || actions[0] != "requested" || actions[1] != "resolved" {
		t.Errorf("logged actions = %v, want [requested resolved]", actions)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.clog")

	first, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	first.Log(NewTokenEvent("one"))
	first.Close()

	second, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger (reopen) failed: %v", err)
	}
	second.Log(NewTokenEvent("two"))
	second.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	dec := NewDecoder(f)
	count := 0
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			break
		}
		count++
	}
	if count != 2 {
		t.Errorf("events after reopen = %d, want 2", count)
	}
}

// captureLogger records events for MultiLogger assertions.
type captureLogger struct {
	events []Event
}

func (c *captureLogger) Log(event Event) {
	c.events = append(c.events, event)
}

func TestMultiLogger(t *testing.T) {
	a := &captureLogger{}
	b := &captureLogger{}

	m := NewMultiLogger(a, b)
	m.Log(NewTokenEvent("resolved"))

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fanout = (%d, %d), want (1, 1)", len(a.events), len(b.events))
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	ev := NewStateChangeEvent(LayerHandshake, "handshake", "IN_PROGRESS", "COMPLETED", "")
	ev.CarID = "ABCD-1234"
	adapter.Log(ev)

	out := buf.String()
	for _, want := range []string{"layer=HANDSHAKE", "new_state=COMPLETED", "car_id=ABCD-1234"} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q: %s", want, out)
		}
	}
}

func TestNoopLogger(t *testing.T) {
	// Must not panic
	NoopLogger{}.Log(NewTokenEvent("resolved"))
}
