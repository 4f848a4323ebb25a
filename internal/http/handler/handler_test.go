package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bulkmat/order-api/internal/config"
	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/http/handler"
	"github.com/bulkmat/order-api/internal/lock"
	"github.com/bulkmat/order-api/internal/payment"
	"github.com/bulkmat/order-api/internal/repository"
	"github.com/bulkmat/order-api/internal/service"
	"github.com/bulkmat/order-api/internal/storage"
	"github.com/bulkmat/order-api/internal/testutil"
)

type handlerEnv struct {
	db       *gorm.DB
	orders   *handler.OrderHandler
	projects *handler.ProjectHandler
	catalog  *handler.CatalogHandler
	payments *handler.PaymentHandler

	project  *domain.Project
	product  *domain.Product
	supplier *domain.Supplier
	order    *domain.Order
}

// newHandlerEnv seeds a confirmed 20 t order for client 100 with one
// supplier-confirmed delivery and one open delivery
func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	orderRepo := repository.NewOrderRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	productRepo := repository.NewProductRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	offerRepo := repository.NewSupplierOfferRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	orderService, err := service.NewOrderService(
		orderRepo, projectRepo, productRepo, supplierRepo, offerRepo, activityRepo,
		&config.EngineConfig{AllocationEpsilon: "0.01", GSTRate: "0.1", MoneyPlaces: 2, MaxLoads: 50},
		lock.NewMemoryLocker(), time.Second, logger,
	)
	require.NoError(t, err)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	paymentService := service.NewPaymentService(
		orderRepo, repository.NewPaymentRepository(db), repository.NewInvoiceRepository(db), activityRepo,
		payment.NewSandboxGateway(), store, "AUD", logger,
	)

	env := &handlerEnv{
		db: db,
		orders: handler.NewOrderHandler(
			orderService,
			service.NewActivityService(activityRepo, orderRepo, logger),
			service.NewExportService(orderRepo, logger),
			logger,
		),
		projects: handler.NewProjectHandler(service.NewProjectService(projectRepo, logger), logger),
		catalog: handler.NewCatalogHandler(
			service.NewProductService(productRepo, logger),
			service.NewSupplierService(supplierRepo, offerRepo, logger),
			service.NewPriceSyncService(nil, supplierRepo, offerRepo, productRepo, logger),
			logger,
		),
		payments: handler.NewPaymentHandler(paymentService, 1, logger),
	}

	env.project = testutil.CreateTestProject(t, db, 100, "Penrith Slab")
	env.product = testutil.CreateTestProduct(t, db, "Road Base")
	env.supplier = testutil.CreateTestSupplier(t, db, "Hanson")
	require.NoError(t, db.Create(&domain.SupplierOffer{
		SupplierID: env.supplier.ID, ProductID: env.product.ID, UnitCost: decimal.RequireFromString("50"),
	}).Error)
	env.order = testutil.CreateTestOrder(t, db, env.project, testutil.ItemSpec{
		ProductID: env.product.ID, SupplierID: &env.supplier.ID, Quantity: "20", UnitCost: "50",
		Slots: []testutil.SlotSpec{
			{Quantity: "10", Date: "2026-03-02", Confirmed: true},
			{Quantity: "10", Date: "2026-03-03"},
		},
	})
	_, _, err = orderService.RecalculateAll(context.Background())
	require.NoError(t, err)
	return env
}

func withURLParams(ctx context.Context, params map[string]string) context.Context {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return context.WithValue(ctx, chi.RouteCtxKey, rctx)
}

// newRequest builds a request for a handler. body may be nil, a raw string
// or a value encoded as JSON.
func newRequest(t *testing.T, ctx context.Context, method, target string, body interface{}, params map[string]string) *http.Request {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(withURLParams(ctx, params))
}

func idParam(name string, id uint) map[string]string {
	return map[string]string{name: strconv.FormatUint(uint64(id), 10)}
}

func decodeAPIError(t *testing.T, rr *httptest.ResponseRecorder) domain.APIError {
	t.Helper()
	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &apiErr), rr.Body.String())
	return apiErr
}

func TestOrderHandler_Create(t *testing.T) {
	env := newHandlerEnv(t)
	client := testutil.ClientContext(100)

	validBody := map[string]interface{}{
		"project_id": env.project.ID,
		"items": []map[string]interface{}{{
			"product_id": env.product.ID,
			"quantity":   12,
			"deliveries": []map[string]interface{}{{
				"quantity": 12, "delivery_date": "2026-04-01", "delivery_time": "07:00", "truck_type": "Truck and Dog",
			}},
		}},
	}

	t.Run("creates a draft order", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.orders.Create(rr, newRequest(t, client, http.MethodPost, "/orders", validBody, nil))

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var dto domain.OrderDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))
		assert.Equal(t, domain.OrderStatusDraft, dto.OrderStatus)
		assert.Equal(t, fmt.Sprintf("/api/v1/orders/%d", dto.ID), rr.Header().Get("Location"))
		require.Len(t, dto.Items, 1)
		require.NotNil(t, dto.Items[0].SupplierID)
		assert.Equal(t, env.supplier.ID, *dto.Items[0].SupplierID)
	})

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantField  string
	}{
		{name: "malformed json", body: `{"project_id":`, wantStatus: http.StatusBadRequest},
		{name: "missing items", body: map[string]interface{}{"project_id": env.project.ID}, wantStatus: http.StatusBadRequest, wantField: "items"},
		{
			name: "deliveries do not add up",
			body: map[string]interface{}{
				"project_id": env.project.ID,
				"items": []map[string]interface{}{{
					"product_id": env.product.ID,
					"quantity":   12,
					"deliveries": []map[string]interface{}{{"quantity": 5, "delivery_date": "2026-04-01", "truck_type": "Tipper"}},
				}},
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "items[0].deliveries",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			env.orders.Create(rr, newRequest(t, client, http.MethodPost, "/orders", tt.body, nil))

			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			apiErr := decodeAPIError(t, rr)
			if tt.wantField != "" {
				assert.Contains(t, apiErr.Errors, tt.wantField)
			}
		})
	}
}

func TestOrderHandler_GetByID(t *testing.T) {
	env := newHandlerEnv(t)

	tests := []struct {
		name       string
		ctx        context.Context
		id         string
		wantStatus int
	}{
		{name: "owner", ctx: testutil.ClientContext(100), id: strconv.Itoa(int(env.order.ID)), wantStatus: http.StatusOK},
		{name: "admin", ctx: testutil.AdminContext(), id: strconv.Itoa(int(env.order.ID)), wantStatus: http.StatusOK},
		{name: "another client", ctx: testutil.ClientContext(200), id: strconv.Itoa(int(env.order.ID)), wantStatus: http.StatusNotFound},
		{name: "invalid id", ctx: testutil.AdminContext(), id: "abc", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := newRequest(t, tt.ctx, http.MethodGet, "/orders/"+tt.id, nil, map[string]string{"id": tt.id})
			env.orders.GetByID(rr, req)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}
}

func TestOrderHandler_Edit(t *testing.T) {
	env := newHandlerEnv(t)
	params := idParam("orderId", env.order.ID)

	t.Run("removing an item with a confirmed delivery conflicts", func(t *testing.T) {
		rr := httptest.NewRecorder()
		body := map[string]interface{}{"items_remove": []uint{env.order.Items[0].ID}}
		env.orders.Edit(rr, newRequest(t, testutil.ClientContext(100), http.MethodPost, "/order-edit", body, params))

		assert.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
		apiErr := decodeAPIError(t, rr)
		assert.Equal(t, domain.ErrorTypeLocked, apiErr.Type)
		assert.Contains(t, apiErr.Errors, "items_remove[0]")
	})

	t.Run("suppliers cannot edit", func(t *testing.T) {
		rr := httptest.NewRecorder()
		body := map[string]interface{}{"order": map[string]string{"site_instructions": "gate 4"}}
		env.orders.Edit(rr, newRequest(t, testutil.SupplierContext(7, env.supplier.ID), http.MethodPost, "/order-edit", body, params))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, domain.ErrorTypeWorkflow, decodeAPIError(t, rr).Type)
	})

	t.Run("client updates site instructions", func(t *testing.T) {
		rr := httptest.NewRecorder()
		body := map[string]interface{}{"order": map[string]string{"site_instructions": "gate 4"}}
		env.orders.Edit(rr, newRequest(t, testutil.ClientContext(100), http.MethodPost, "/order-edit", body, params))

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var dto domain.OrderDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))
		assert.Equal(t, "gate 4", dto.SiteInstructions)
	})
}

func TestOrderHandler_Lifecycle(t *testing.T) {
	env := newHandlerEnv(t)
	params := idParam("orderId", env.order.ID)

	t.Run("status is required", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.orders.SetStatus(rr, newRequest(t, testutil.AdminContext(), http.MethodPost, "/set-order-status", map[string]string{}, params))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeAPIError(t, rr).Errors, "order_status")
	})

	t.Run("client cannot schedule", func(t *testing.T) {
		rr := httptest.NewRecorder()
		body := map[string]string{"order_status": string(domain.OrderStatusScheduled)}
		env.orders.SetStatus(rr, newRequest(t, testutil.ClientContext(100), http.MethodPost, "/set-order-status", body, params))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("admin schedules", func(t *testing.T) {
		rr := httptest.NewRecorder()
		body := map[string]string{"order_status": string(domain.OrderStatusScheduled)}
		env.orders.SetStatus(rr, newRequest(t, testutil.AdminContext(), http.MethodPost, "/set-order-status", body, params))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var dto domain.OrderDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))
		assert.Equal(t, domain.OrderStatusScheduled, dto.OrderStatus)
	})

	t.Run("supplier confirms the open delivery", func(t *testing.T) {
		open := env.order.Items[0].Deliveries[1]
		rr := httptest.NewRecorder()
		req := newRequest(t, testutil.SupplierContext(7, env.supplier.ID), http.MethodPost, "/deliveries/confirm", nil, idParam("id", open.ID))
		env.orders.ConfirmDelivery(rr, req)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var slot domain.DeliverySlotDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &slot))
		assert.True(t, slot.SupplierConfirms)
	})

	t.Run("repeat without a body copies the order", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.orders.Repeat(rr, newRequest(t, testutil.ClientContext(100), http.MethodPost, "/repeat-order", nil, params))

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var dto domain.OrderDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))
		assert.Equal(t, domain.OrderStatusDraft, dto.OrderStatus)
		assert.NotEqual(t, env.order.ID, dto.ID)
	})

	t.Run("repeat validates explicit lines", func(t *testing.T) {
		rr := httptest.NewRecorder()
		body := map[string]interface{}{"items": []map[string]interface{}{{"product_id": env.product.ID, "quantity": 0}}}
		env.orders.Repeat(rr, newRequest(t, testutil.ClientContext(100), http.MethodPost, "/repeat-order", body, params))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeAPIError(t, rr).Errors, "items[0].quantity")
	})

	t.Run("clients cannot change charges", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := newRequest(t, testutil.ClientContext(100), http.MethodPut, "/orders/charges", map[string]interface{}{"discount": 10}, idParam("id", env.order.ID))
		env.orders.UpdateCharges(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("archive", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.orders.Archive(rr, newRequest(t, testutil.ClientContext(100), http.MethodDelete, "/orders", nil, idParam("id", env.order.ID)))
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func TestOrderHandler_Export(t *testing.T) {
	env := newHandlerEnv(t)

	t.Run("admin downloads a workbook", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.orders.Export(rr, newRequest(t, testutil.AdminContext(), http.MethodGet, "/orders/export", nil, nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")
		assert.Equal(t, "1", rr.Header().Get("X-Total-Count"))
		assert.NotZero(t, rr.Body.Len())
	})

	t.Run("clients are refused with json", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.orders.Export(rr, newRequest(t, testutil.ClientContext(100), http.MethodGet, "/orders/export", nil, nil))

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	})
}

func TestPaymentHandler_ProcessPayment(t *testing.T) {
	env := newHandlerEnv(t)
	client := testutil.ClientContext(100)
	pay := func(method string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		body := map[string]interface{}{"order_id": env.order.ID, "payment_method_id": method}
		env.payments.ProcessPayment(rr, newRequest(t, client, http.MethodPost, "/process-payment", body, nil))
		return rr
	}

	t.Run("declined card answers 402 with the attempt", func(t *testing.T) {
		rr := pay(payment.SandboxDeclined)
		require.Equal(t, http.StatusPaymentRequired, rr.Code, rr.Body.String())

		var resp struct {
			Type    string            `json:"type"`
			Payment domain.PaymentDTO `json:"payment"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, domain.ErrorTypePayment, resp.Type)
		assert.Equal(t, domain.PaymentResultFailed, resp.Payment.Result)
		assert.Equal(t, "card declined", resp.Payment.FailureReason)
	})

	t.Run("gateway offline", func(t *testing.T) {
		assert.Equal(t, http.StatusServiceUnavailable, pay(payment.SandboxOffline).Code)
	})

	t.Run("successful charge", func(t *testing.T) {
		rr := pay("pm_card_visa")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var dto domain.PaymentDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))
		assert.Equal(t, domain.PaymentStatusPaid, dto.PaymentStatus)
	})

	t.Run("paid orders cannot be charged again", func(t *testing.T) {
		assert.Equal(t, http.StatusConflict, pay("pm_card_visa").Code)
	})

	t.Run("attempts are listed", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.payments.ListPayments(rr, newRequest(t, client, http.MethodGet, "/orders/payments", nil, idParam("id", env.order.ID)))
		require.Equal(t, http.StatusOK, rr.Code)
		var list []domain.PaymentDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
		assert.Len(t, list, 2)
	})
}

func multipartInvoice(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestPaymentHandler_Invoice(t *testing.T) {
	env := newHandlerEnv(t)
	params := idParam("id", env.order.ID)
	upload := func(ctx context.Context, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/orders/invoice", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		env.payments.UploadInvoice(rr, req.WithContext(withURLParams(ctx, params)))
		return rr
	}

	t.Run("nothing to download yet", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.payments.DownloadInvoice(rr, newRequest(t, testutil.ClientContext(100), http.MethodGet, "/orders/invoice", nil, params))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("note", "x"))
		require.NoError(t, mw.Close())
		assert.Equal(t, http.StatusBadRequest, upload(testutil.AdminContext(), &buf, mw.FormDataContentType()).Code)
	})

	t.Run("oversized upload", func(t *testing.T) {
		body, ct := multipartInvoice(t, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 2<<20))
		assert.Equal(t, http.StatusRequestEntityTooLarge, upload(testutil.AdminContext(), body, ct).Code)
	})

	t.Run("clients cannot upload", func(t *testing.T) {
		body, ct := multipartInvoice(t, "inv.pdf", "application/pdf", []byte("%PDF-1.7"))
		assert.Equal(t, http.StatusForbidden, upload(testutil.ClientContext(100), body, ct).Code)
	})

	t.Run("admin uploads and the client downloads", func(t *testing.T) {
		body, ct := multipartInvoice(t, "inv-001.pdf", "application/pdf", []byte("%PDF-1.7"))
		rr := upload(testutil.AdminContext(), body, ct)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var doc domain.InvoiceDocumentDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
		assert.Equal(t, "inv-001.pdf", doc.Filename)

		rr = httptest.NewRecorder()
		env.payments.DownloadInvoice(rr, newRequest(t, testutil.ClientContext(100), http.MethodGet, "/orders/invoice", nil, params))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
		assert.Contains(t, rr.Header().Get("Content-Disposition"), "inv-001.pdf")
		assert.Equal(t, "%PDF-1.7", rr.Body.String())
	})
}

func TestCatalogHandler(t *testing.T) {
	env := newHandlerEnv(t)

	t.Run("admin creates a supplier", func(t *testing.T) {
		rr := httptest.NewRecorder()
		body := map[string]string{"name": "Boral", "erp_reference": "V-900"}
		env.catalog.CreateSupplier(rr, newRequest(t, testutil.AdminContext(), http.MethodPost, "/suppliers", body, nil))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.NotEmpty(t, rr.Header().Get("Location"))

		rr = httptest.NewRecorder()
		env.catalog.CreateSupplier(rr, newRequest(t, testutil.AdminContext(), http.MethodPost, "/suppliers", body, nil))
		assert.Equal(t, http.StatusConflict, rr.Code, "erp references are unique")
	})

	t.Run("invalid supplier email", func(t *testing.T) {
		rr := httptest.NewRecorder()
		body := map[string]string{"name": "Boral", "email": "not-an-email"}
		env.catalog.CreateSupplier(rr, newRequest(t, testutil.AdminContext(), http.MethodPost, "/suppliers", body, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeAPIError(t, rr).Errors, "email")
	})

	t.Run("clients cannot list suppliers", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.catalog.ListSuppliers(rr, newRequest(t, testutil.ClientContext(100), http.MethodGet, "/suppliers", nil, nil))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("clients browse products", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.catalog.ListProducts(rr, newRequest(t, testutil.ClientContext(100), http.MethodGet, "/products", nil, nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var products []domain.ProductDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &products))
		assert.Len(t, products, 1)
	})

	t.Run("offers of a product", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.catalog.ListOffers(rr, newRequest(t, testutil.AdminContext(), http.MethodGet, "/products/offers", nil, idParam("id", env.product.ID)))
		require.Equal(t, http.StatusOK, rr.Code)
		var offers []domain.SupplierOfferDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &offers))
		assert.Len(t, offers, 1)
	})

	t.Run("price sync without erp", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.catalog.SyncPrices(rr, newRequest(t, testutil.AdminContext(), http.MethodPost, "/price-sync", nil, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestProjectHandler(t *testing.T) {
	env := newHandlerEnv(t)
	client := testutil.ClientContext(100)

	t.Run("client creates a project", func(t *testing.T) {
		rr := httptest.NewRecorder()
		body := map[string]interface{}{"name": "Parramatta Tower", "delivery_address": "1 Smith St, Parramatta"}
		env.projects.Create(rr, newRequest(t, client, http.MethodPost, "/projects", body, nil))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var dto domain.ProjectDTO
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dto))
		assert.Equal(t, fmt.Sprintf("/api/v1/projects/%d", dto.ID), rr.Header().Get("Location"))
	})

	t.Run("address is required", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.projects.Create(rr, newRequest(t, client, http.MethodPost, "/projects", map[string]string{"name": "No Address"}, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeAPIError(t, rr).Errors, "delivery_address")
	})

	t.Run("list is scoped to the client", func(t *testing.T) {
		rr := httptest.NewRecorder()
		env.projects.List(rr, newRequest(t, client, http.MethodGet, "/projects", nil, nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var page domain.PaginatedResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
		assert.Equal(t, int64(2), page.Total)

		rr = httptest.NewRecorder()
		env.projects.List(rr, newRequest(t, testutil.ClientContext(200), http.MethodGet, "/projects", nil, nil))
		require.Equal(t, http.StatusOK, rr.Code)
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
		assert.Zero(t, page.Total)
	})

	t.Run("another client cannot read it", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := newRequest(t, testutil.ClientContext(200), http.MethodGet, "/projects", nil, idParam("id", env.project.ID))
		env.projects.GetByID(rr, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
