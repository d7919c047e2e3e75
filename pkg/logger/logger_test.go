package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	pkgerrors "github.com/abdulbasit0-UI/storefront-backend/pkg/errors"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithIdentity(ctx, "anon:guest-1234")

	log.Error(ctx, "boom", errors.New("boom"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v (%s)", err, buf.String())
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if entry["identity"] != "anon:guest-1234" {
		t.Fatalf("expected identity field; entry=%s", buf.String())
	}
	if _, ok := entry["stack"]; !ok {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf})
	quiet.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("did not expect stack when warn stack disabled")
	}
}

func TestOrderAndSessionFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	ctx := log.WithOrderID(context.Background(), "order-1")
	ctx = log.WithSessionID(ctx, "cs_test_1")
	log.Info(ctx, "payment session created")

	if !bytes.Contains(buf.Bytes(), []byte(`"order_id":"order-1"`)) {
		t.Fatalf("missing order_id; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"session_id":"cs_test_1"`)) {
		t.Fatalf("missing session_id; entry=%s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" DEBUG "); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %v", lvl)
	}
}

func TestErrorSkipsStackForExpectedFailures(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	log.Error(context.Background(), "checkout rejected", pkgerrors.New(pkgerrors.CodeStateConflict, "cart changed"))
	if bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("typed domain errors should not carry a stack; entry=%s", buf.String())
	}

	buf.Reset()
	log.Error(context.Background(), "db down", pkgerrors.New(pkgerrors.CodeInternal, "db down"))
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("internal errors keep the stack; entry=%s", buf.String())
	}
}

func TestWithFieldsDoesNotLeakIntoParent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: FormatJSON})

	parent := log.WithField(context.Background(), "cart_id", "c-1")
	_ = log.WithFields(parent, map[string]any{"b": 2, "a": 1})
	log.Info(parent, "parent only")

	if bytes.Contains(buf.Bytes(), []byte(`"a":1`)) {
		t.Fatalf("child fields leaked into parent context; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"cart_id":"c-1"`)) {
		t.Fatalf("missing parent field; entry=%s", buf.String())
	}
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: FormatConsole})
	log.Info(context.Background(), "hello")
	if bytes.HasPrefix(bytes.TrimSpace(buf.Bytes()), []byte("{")) {
		t.Fatalf("console format should not emit json; got %s", buf.String())
	}
}
