package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangefront/course-enrollment/internal/checkout"
	"github.com/rangefront/course-enrollment/internal/payment"
	"github.com/rangefront/course-enrollment/internal/pricing"
	"github.com/rangefront/course-enrollment/internal/repository"
)

// mapStatus runs mapCheckoutError through a recorded echo context and
// returns the status code and decoded body.
func mapStatus(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, mapCheckoutError(c, err))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestMapCheckoutErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", checkout.ErrNotFound, http.StatusNotFound},
		{"no rows", sql.ErrNoRows, http.StatusNotFound},
		{"sold out", checkout.ErrSoldOut, http.StatusConflict},
		{"stale quote", checkout.ErrStaleQuote, http.StatusConflict},
		{"integrity", checkout.ErrIntegrity, http.StatusConflict},
		{"spots available", checkout.ErrSpotsAvailable, http.StatusConflict},
		{"deposit not configured", pricing.ErrDepositNotConfigured, http.StatusConflict},
		{"requires action", checkout.ErrPaymentRequiresAction, http.StatusPaymentRequired},
		{"gateway down", payment.ErrGatewayUnavailable, http.StatusServiceUnavailable},
		{"forbidden", repository.ErrForbidden, http.StatusForbidden},
		{"unknown", assertableErr("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := mapStatus(t, tc.err)
			assert.Equal(t, tc.want, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

type assertableErr string

func (e assertableErr) Error() string { return string(e) }

func TestMapCheckoutErrorValidationFields(t *testing.T) {
	verr := checkout.ValidationError{"email": "a valid email is required"}
	code, body := mapStatus(t, verr)
	assert.Equal(t, http.StatusBadRequest, code)
	fields, ok := body["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "a valid email is required", fields["email"])
}

func TestMapCheckoutErrorPromo(t *testing.T) {
	perr := &pricing.PromoError{Code: "SAVE10", Reason: pricing.PromoExpired}
	code, body := mapStatus(t, perr)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "SAVE10", body["code"])
	assert.Equal(t, pricing.PromoExpired, body["reason"])
}

func TestMapCheckoutErrorDeclinedPassesReason(t *testing.T) {
	derr := &payment.DeclinedError{Reason: "insufficient funds"}
	code, body := mapStatus(t, derr)
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Equal(t, "insufficient funds", body["reason"])
}

func TestGetUserIDTypeHandling(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	// Claims decoded from JSON arrive as float64.
	c.Set("user_id", float64(42))
	id, err := getUserID(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	c.Set("user_id", "17")
	id, err = getUserID(c)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), id)

	c.Set("user_id", nil)
	_, err = getUserID(c)
	assert.Error(t, err)
}

func TestPathID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("123")
	assert.Equal(t, uint64(123), pathID(c, "id"))

	c.SetParamValues("abc")
	assert.Equal(t, uint64(0), pathID(c, "id"))
}
