package writer

import (
	"context"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/abdulbasit0-UI/storefront-backend/internal/analytics/types"
	pkgbigquery "github.com/abdulbasit0-UI/storefront-backend/pkg/bigquery"
)

func TestNewWriterValidation(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Fatal("expected error when client missing")
	}
	if _, err := New(&pkgbigquery.Client{}, Config{OrdersTable: " "}); err == nil {
		t.Fatal("expected error when orders table missing")
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := RetryPolicy{InitialBackoff: 5 * time.Second}.withDefaults()
	if p.MaxAttempts != defaultMaxAttempts {
		t.Fatalf("expected default attempts, got %d", p.MaxAttempts)
	}
	if p.MaximumBackoff != 5*time.Second {
		t.Fatalf("maximum backoff must not undercut the initial backoff, got %s", p.MaximumBackoff)
	}
}

func TestWriterRetriesOnTransientError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		nil,
	}

	if err := writer.InsertOrderFact(context.Background(), types.OrderFactRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected error writing row: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected two insert attempts, got %d", len(fake.calls))
	}
	if fake.calls[1].table != "order_facts" {
		t.Fatalf("expected orders table on retry, got %s", fake.calls[1].table)
	}
	if len(fake.sleeps) != 1 || fake.sleeps[0] != defaultInitialBackoff {
		t.Fatalf("unexpected backoff %v", fake.sleeps)
	}
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	fake.responses = []error{unavailable, unavailable, unavailable, nil}

	if err := writer.InsertOrderFact(context.Background(), types.OrderFactRow{EventID: "1"}); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if len(fake.calls) != defaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", defaultMaxAttempts, len(fake.calls))
	}
	if fake.sleeps[1] != 2*defaultInitialBackoff {
		t.Fatalf("expected exponential backoff, got %v", fake.sleeps)
	}
}

func TestWriterStopsOnPermanentError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	if err := writer.InsertOrderFact(context.Background(), types.OrderFactRow{EventID: "1"}); err == nil {
		t.Fatal("expected permanent error")
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(fake.calls))
	}
}

func TestWriterSendsInsertID(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	if err := writer.InsertOrderFact(context.Background(), types.OrderFactRow{EventID: "evt-9"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if fake.calls[0].insertIDs[0] != "evt-9" {
		t.Fatalf("expected event id as insert id, got %v", fake.calls[0].insertIDs)
	}
}

type insertCall struct {
	table     string
	insertIDs []string
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
	sleeps    []time.Duration
}

func (f *fakeInserter) Put(_ context.Context, table string, rows []cbigquery.ValueSaver) error {
	call := insertCall{table: table}
	for _, row := range rows {
		_, id, _ := row.Save()
		call.insertIDs = append(call.insertIDs, id)
	}
	f.calls = append(f.calls, call)
	if len(f.responses) == 0 {
		return nil
	}
	err := f.responses[0]
	f.responses = f.responses[1:]
	return err
}

func newWriterWithFakeInserter(t *testing.T) (*BigQueryWriter, *fakeInserter) {
	t.Helper()
	writer, err := New(&pkgbigquery.Client{}, Config{OrdersTable: "order_facts"})
	if err != nil {
		t.Fatalf("construct writer: %v", err)
	}
	fake := &fakeInserter{}
	writer.client = fake
	writer.sleep = func(_ context.Context, d time.Duration) error {
		fake.sleeps = append(fake.sleeps, d)
		return nil
	}
	return writer, fake
}
