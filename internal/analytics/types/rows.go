package types

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// OrderFactRow mirrors the order_facts BigQuery schema. One row is written
// per order lifecycle event.
type OrderFactRow struct {
	EventID    string
	EventType  string
	OrderID    string
	UserID     string
	Status     string
	TotalCents int64
	Currency   string
	ItemCount  *int64
	Reason     *string
	OccurredAt time.Time
	Payload    bigquery.NullJSON
}

// Save implements bigquery.ValueSaver. The event id doubles as insert id, so
// a redelivered event is deduplicated by BigQuery as well as by the worker.
func (r *OrderFactRow) Save() (map[string]bigquery.Value, string, error) {
	row := map[string]bigquery.Value{
		"event_id":    r.EventID,
		"event_type":  r.EventType,
		"order_id":    r.OrderID,
		"user_id":     r.UserID,
		"status":      r.Status,
		"total_cents": r.TotalCents,
		"currency":    r.Currency,
		"occurred_at": r.OccurredAt,
		"item_count":  nil,
		"reason":      nil,
		"payload":     nil,
	}
	if r.ItemCount != nil {
		row["item_count"] = *r.ItemCount
	}
	if r.Reason != nil {
		row["reason"] = *r.Reason
	}
	if r.Payload.Valid {
		row["payload"] = r.Payload.JSONVal
	}
	return row, r.EventID, nil
}
