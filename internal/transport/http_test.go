package transport_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbridge/order-service/internal/config"
	"github.com/shopbridge/order-service/internal/customer"
	"github.com/shopbridge/order-service/internal/db/dbtest"
	"github.com/shopbridge/order-service/internal/handler"
	"github.com/shopbridge/order-service/internal/order"
	"github.com/shopbridge/order-service/internal/telemetry"
	"github.com/shopbridge/order-service/internal/transport"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "order-service"
	cfg.CORS = config.CORSConfig{
		AllowedOrigins: []string{"https://shop.example.com"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}
	return cfg
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	conn := dbtest.Open(t)

	orders := order.NewService(order.NewRepository(conn))
	customers := customer.NewService(customer.NewRepository(conn))

	router := transport.NewRouter(testConfig(), telemetry.NewServerMetrics("transport_test"), transport.Routes{
		Orders:    handler.NewOrderHandler(orders),
		Customers: handler.NewCustomerHandler(customers, orders),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func send(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)

	resp := send(t, http.MethodGet, srv.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestRouter_OrderLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp := send(t, http.MethodPost, srv.URL+"/api/customers", map[string]string{
		"full_name": "Ada Lovelace",
		"email":     "Ada@Example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var cust handler.CustomerResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cust))
	assert.Equal(t, "ada@example.com", cust.Email)

	resp = send(t, http.MethodPost, srv.URL+"/api/orders", map[string]interface{}{
		"customer_id":    cust.ID,
		"payment_method": "Pix",
		"items": []map[string]interface{}{
			{"product_id": uuid.Must(uuid.NewV4()), "product_name": "Widget", "quantity": 3, "unit_price": 2.5},
			{"product_id": uuid.Must(uuid.NewV4()), "product_name": "Gadget", "quantity": 1, "unit_price": 10},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created order.OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "Pending", created.Status)
	assert.True(t, decimal.RequireFromString("17.5").Equal(created.TotalAmount), created.TotalAmount.String())
	require.NotNil(t, created.Invoice)
	assert.True(t, created.TotalAmount.Equal(created.Invoice.TotalAmount))

	location := resp.Header.Get("Location")
	require.Equal(t, "/api/orders/"+created.ID.String(), location)

	resp = send(t, http.MethodGet, srv.URL+location, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = send(t, http.MethodPost, srv.URL+location+"/payment/confirm", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payment order.PaymentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payment))
	assert.True(t, payment.IsConfirmed)
	assert.NotNil(t, payment.PaidAt)

	resp = send(t, http.MethodGet, srv.URL+"/api/customers/"+cust.ID.String()+"/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []order.OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	resp = send(t, http.MethodDelete, srv.URL+location, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = send(t, http.MethodGet, srv.URL+location, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = send(t, http.MethodDelete, srv.URL+location+"?purge=true", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = send(t, http.MethodDelete, srv.URL+location+"?purge=true", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_CORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/orders", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "https://shop.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_MetricsExposed(t *testing.T) {
	srv := newTestServer(t)

	send(t, http.MethodGet, srv.URL+"/api/orders/not-a-uuid", nil)

	resp := send(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `route="/api/orders/{id}"`)
}

func TestRouter_OrderMoneySurvivesStorage(t *testing.T) {
	srv := newTestServer(t)
	customerID := uuid.Must(uuid.NewV4())

	resp := send(t, http.MethodPost, srv.URL+"/api/orders", map[string]interface{}{
		"customer_id":    customerID,
		"payment_method": "Cash",
		"items": []map[string]interface{}{
			{"product_id": uuid.Must(uuid.NewV4()), "product_name": "Ingot", "quantity": 3, "unit_price": "1234567890123.45"},
			{"product_id": uuid.Must(uuid.NewV4()), "product_name": "Coin", "quantity": 7, "unit_price": "0.10"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created order.OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.True(t, decimal.RequireFromString("3703703670371.05").Equal(created.TotalAmount), created.TotalAmount.String())

	resp = send(t, http.MethodGet, srv.URL+"/api/orders/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched order.OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))

	assert.True(t, created.TotalAmount.Equal(fetched.TotalAmount), "created %s, fetched %s", created.TotalAmount, fetched.TotalAmount)
	sum := decimal.Zero
	for _, item := range fetched.Items {
		sum = sum.Add(item.Subtotal)
	}
	assert.True(t, sum.Equal(fetched.TotalAmount), "subtotals %s, total %s", sum, fetched.TotalAmount)

	resp = send(t, http.MethodPost, srv.URL+"/api/orders", map[string]interface{}{
		"customer_id":    customerID,
		"payment_method": "Cash",
		"items": []map[string]interface{}{
			{"product_id": uuid.Must(uuid.NewV4()), "product_name": "Ingot", "quantity": 3, "unit_price": "1234567890123.456789"},
		},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
