package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulkmat/order-api/internal/client"
	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/fulfillment"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// baselineOrder is a confirmed 20 t order whose first delivery is supplier-confirmed
func baselineOrder() *domain.OrderDTO {
	return &domain.OrderDTO{
		ID:               1,
		OrderStatus:      domain.OrderStatusConfirmed,
		SiteInstructions: "gate 2",
		Items: []domain.OrderItemDTO{{
			ID:        10,
			ProductID: 3,
			Quantity:  dec("20"),
			Deliveries: []domain.DeliverySlotDTO{
				{ID: 100, Quantity: dec("10"), DeliveryDate: "2026-03-02", TruckType: domain.TruckTypeTruckAndDog, SupplierConfirms: true},
				{ID: 101, Quantity: dec("10"), DeliveryDate: "2026-03-03", TruckType: domain.TruckTypeTruckAndDog},
			},
		}},
	}
}

func newEditor() *fulfillment.Editor {
	return fulfillment.NewEditor(fulfillment.NewAllocator(dec("0.01")))
}

var clientActor = fulfillment.Actor{Role: domain.RoleClient, UserID: 100}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestEditSession_PrepareFailsLocally(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	session := client.NewEditSession(client.New(srv.URL, "token"), newEditor(), clientActor, baselineOrder())
	draft := session.Draft()
	draft.Items[0].Quantity = dec("15")

	payload, err := session.Prepare(draft)
	require.Error(t, err)
	assert.Nil(t, payload)
	var verr *fulfillment.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.FieldErrors(), "items[0].deliveries")

	_, err = session.Submit(context.Background())
	assert.ErrorIs(t, err, client.ErrNothingPrepared)
	assert.Zero(t, calls.Load())
}

func TestEditSession_SubmitReplacesBaseline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/order-edit/1", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		var payload domain.OrderEditPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.NotNil(t, payload.Order)
		require.NotNil(t, payload.Order.SiteInstructions)
		assert.Equal(t, "gate 4", *payload.Order.SiteInstructions)
		assert.Empty(t, payload.ItemsRemove)

		updated := baselineOrder()
		updated.SiteInstructions = "gate 4"
		writeJSON(w, http.StatusOK, updated)
	}))
	defer srv.Close()

	session := client.NewEditSession(client.New(srv.URL+"/api/v1/", "token"), newEditor(), clientActor, baselineOrder())
	draft := session.Draft()
	draft.Fields.SiteInstructions = "gate 4"

	_, err := session.Prepare(draft)
	require.NoError(t, err)
	updated, err := session.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gate 4", updated.SiteInstructions)
	assert.Equal(t, "gate 4", session.Baseline().SiteInstructions)

	// The new baseline makes the same draft a no-op
	payload, err := session.Prepare(draft)
	require.NoError(t, err)
	assert.True(t, payload.IsEmpty())
}

func TestEditSession_RejectedSubmissionKeepsBaseline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, domain.APIError{
			Type:   domain.ErrorTypeLocked,
			Title:  "Validation Error",
			Status: http.StatusConflict,
			Detail: "1 problem(s) found",
			Errors: map[string]string{"items_update[0].deliveries[1]": "delivery 101 is confirmed by the supplier"},
		})
	}))
	defer srv.Close()

	session := client.NewEditSession(client.New(srv.URL, "token"), newEditor(), clientActor, baselineOrder())
	draft := session.Draft()
	draft.Fields.ContactPersonName = "Sam"
	_, err := session.Prepare(draft)
	require.NoError(t, err)

	_, err = session.Submit(context.Background())
	var subErr *fulfillment.SubmissionError
	require.True(t, errors.As(err, &subErr), "got %v", err)
	assert.Equal(t, http.StatusConflict, subErr.Status)
	assert.Equal(t, domain.ErrorTypeLocked, subErr.Type)
	assert.Contains(t, subErr.FieldErrors, "items_update[0].deliveries[1]")
	assert.False(t, fulfillment.IsRetryable(err))
	assert.Equal(t, "gate 2", session.Baseline().SiteInstructions)
	assert.Empty(t, session.Baseline().ContactPersonName)
}

func TestEditSession_RetryAfterServerError(t *testing.T) {
	var calls atomic.Int32
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		bodies = append(bodies, string(raw))
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, domain.APIError{Status: http.StatusServiceUnavailable, Detail: "database unavailable"})
			return
		}
		updated := baselineOrder()
		updated.ContactPersonNumber = "0400 000 000"
		writeJSON(w, http.StatusOK, updated)
	}))
	defer srv.Close()

	session := client.NewEditSession(client.New(srv.URL, "token"), newEditor(), clientActor, baselineOrder())
	draft := session.Draft()
	draft.Fields.ContactPersonNumber = "0400 000 000"
	_, err := session.Prepare(draft)
	require.NoError(t, err)

	_, err = session.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, fulfillment.IsRetryable(err))
	var re *fulfillment.RetryableError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusServiceUnavailable, re.Status)

	updated, err := session.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0400 000 000", updated.ContactPersonNumber)
	require.Len(t, bodies, 2)
	assert.JSONEq(t, bodies[0], bodies[1], "a retry resends the same payload")
}

func TestEditSession_EmptyEditSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	session := client.NewEditSession(client.New(srv.URL, "token"), newEditor(), clientActor, baselineOrder())
	payload, err := session.Prepare(session.Draft())
	require.NoError(t, err)
	assert.True(t, payload.IsEmpty())

	order, err := session.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(1), order.ID)
	assert.Zero(t, calls.Load())
}

func TestEditSession_SupplierCannotEdit(t *testing.T) {
	session := client.NewEditSession(client.New("http://unused", ""), newEditor(),
		fulfillment.Actor{Role: domain.RoleSupplier, UserID: 7}, baselineOrder())
	draft := session.Draft()
	draft.Fields.SiteInstructions = "gate 9"

	_, err := session.Prepare(draft)
	var wv *fulfillment.WorkflowViolationError
	assert.True(t, errors.As(err, &wv))
}

func TestClient_OpenEdit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/1", r.URL.Path)
		writeJSON(w, http.StatusOK, baselineOrder())
	}))
	defer srv.Close()

	session, err := client.New(srv.URL, "token").OpenEdit(context.Background(), 1, newEditor(), clientActor)
	require.NoError(t, err)
	state := client.StateFromOrder(session.Baseline())
	require.Len(t, state.Items, 1)
	require.Len(t, state.Items[0].Slots, 2)
	assert.True(t, state.Items[0].Slots[0].SupplierConfirms)
	assert.True(t, state.Items[0].Slots[1].DeliveryCost.IsZero())
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantRetryable bool
		wantFields    []string
	}{
		{name: "validation", status: http.StatusBadRequest, body: `{"type":"validation_error","status":400,"detail":"bad","errors":{"order_status":"required"}}`, wantFields: []string{"order_status"}},
		{name: "workflow", status: http.StatusForbidden, body: `{"type":"workflow_violation","status":403,"detail":"no"}`},
		{name: "declined payment", status: http.StatusPaymentRequired, body: `{"type":"payment_failed","status":402,"detail":"card declined","payment":{"result":"failed"}}`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"status":429,"detail":"slow down"}`, wantRetryable: true},
		{name: "gateway html", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantRetryable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := client.New(srv.URL, "token").SetStatus(context.Background(), 1, "")
			require.Error(t, err)
			assert.Equal(t, tt.wantRetryable, fulfillment.IsRetryable(err))
			if tt.wantRetryable {
				return
			}
			var subErr *fulfillment.SubmissionError
			require.True(t, errors.As(err, &subErr))
			assert.Equal(t, tt.status, subErr.Status)
			for _, f := range tt.wantFields {
				assert.Contains(t, subErr.FieldErrors, f)
			}
		})
	}
}

func TestClient_TransportFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := client.New(url, "token").GetOrder(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, fulfillment.IsRetryable(err))
}

func TestClient_APIKeyAndNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "system-key", r.Header.Get("x-api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := client.New(srv.URL, "", client.WithAPIKey("system-key"), client.WithHTTPClient(srv.Client()))
	assert.NoError(t, c.ArchiveOrder(context.Background(), 5))
}
