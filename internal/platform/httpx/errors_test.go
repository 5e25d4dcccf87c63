package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: flash sale 3", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: sku taken", ErrDuplicate), http.StatusConflict},
		{fmt.Errorf("%w: status is pending", ErrInvalidState), http.StatusConflict},
		{ErrInsufficientInventory, http.StatusConflict},
		{fmt.Errorf("%w: start_at", ErrValidation), http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		RespondError(rr, req, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())
		require.Equal(t, tc.status, StatusFor(tc.err))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, tc.status, body.Status)
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	RespondError(rr, req, errors.New("pq: connection refused"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Empty(t, body.Detail)
	require.Equal(t, "Internal Error", body.Title)
}

func TestRespondErrorLocalizesTitle(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "id-ID,id;q=0.9,en;q=0.5")
	rr := httptest.NewRecorder()
	RespondError(rr, req, ErrNotFound)

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "Tidak Ditemukan", body.Title)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sku":"A","bogus":1}`))
	var target struct {
		SKU string `json:"sku"`
	}
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrValidation)
}

func TestValidateStructFoldsFields(t *testing.T) {
	type payload struct {
		Email string `validate:"required,email"`
		Qty   int    `validate:"gte=0"`
	}
	err := ValidateStruct(validator.New(), payload{Email: "nope", Qty: -1})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Email must satisfy email")
	assert.Contains(t, err.Error(), "Qty must satisfy gte=0")

	assert.NoError(t, ValidateStruct(validator.New(), payload{Email: "a@b.co"}))
}

func TestDecodeOptionalJSONAcceptsEmptyBody(t *testing.T) {
	var target struct {
		Quantity int `json:"quantity"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, DecodeOptionalJSON(req, &target))
	assert.Zero(t, target.Quantity)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":3}`))
	require.NoError(t, DecodeOptionalJSON(req, &target))
	assert.Equal(t, 3, target.Quantity)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"qty":3}`))
	assert.ErrorIs(t, DecodeOptionalJSON(req, &target), ErrValidation)
}
