package handlers

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindNestedOrFlat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		body        string
		expected    StageDiscountRequest
		expectError bool
	}{
		{
			name:     "nested under discount",
			body:     `{"discount": {"broker_id": 3, "advance_id": 9, "amount": "60.00"}}`,
			expected: StageDiscountRequest{BrokerID: 3, AdvanceID: 9, Amount: decimal.RequireFromString("60")},
		},
		{
			name:     "flat",
			body:     `{"broker_id": 3, "advance_id": 9, "amount": 60}`,
			expected: StageDiscountRequest{BrokerID: 3, AdvanceID: 9, Amount: decimal.RequireFromString("60")},
		},
		{
			name:     "other keys fall back to flat",
			body:     `{"note": "x", "broker_id": 4, "advance_id": 1, "amount": "12.5"}`,
			expected: StageDiscountRequest{BrokerID: 4, AdvanceID: 1, Amount: decimal.RequireFromString("12.5")},
		},
		{
			name:        "bad amount",
			body:        `{"broker_id": 3, "advance_id": 9, "amount": "sesenta"}`,
			expectError: true,
		},
		{
			name:        "nested key with wrong type",
			body:        `{"discount": "60"}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("PUT", "/", bytes.NewBufferString(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var result StageDiscountRequest
			err := BindNestedOrFlat(c, "discount", &result)

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected.BrokerID, result.BrokerID)
			assert.Equal(t, tt.expected.AdvanceID, result.AdvanceID)
			assert.True(t, tt.expected.Amount.Equal(result.Amount))
		})
	}
}
