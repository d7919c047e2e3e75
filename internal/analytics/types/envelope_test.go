package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/enums"
)

func TestEnvelopeValidate(t *testing.T) {
	cases := map[string]struct {
		env Envelope
		ok  bool
	}{
		"order event":     {env: Envelope{EventID: uuid.NewString(), EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder}, ok: true},
		"cart event":      {env: Envelope{EventID: uuid.NewString(), EventType: enums.EventCartMerged, AggregateType: enums.AggregateCart}, ok: true},
		"event id":        {env: Envelope{EventID: "evt-1", EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder}},
		"wrong aggregate": {env: Envelope{EventID: uuid.NewString(), EventType: enums.EventOrderPaid, AggregateType: enums.AggregateCart}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.env.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}
