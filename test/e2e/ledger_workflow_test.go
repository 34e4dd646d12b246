//go:build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ammerola/pos-ledger/internal/adapters/db"
	redis_a "github.com/ammerola/pos-ledger/internal/adapters/redis_adapter"
	"github.com/ammerola/pos-ledger/internal/app"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/internal/handlers"
	"github.com/ammerola/pos-ledger/test/helpers"
)

type LedgerE2ESuite struct {
	suite.Suite
	server    *httptest.Server
	client    *http.Client
	baseURL   string
	testDB    *helpers.TestDB
	testRedis *helpers.TestRedis
	cancel    context.CancelFunc
	token     string
}

func (s *LedgerE2ESuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	s.testRedis = helpers.SetupTestRedis(s.T())

	s.server = s.startTestServer()
	s.client = &http.Client{Timeout: 10 * time.Second}
	s.baseURL = s.server.URL + "/api/v1"
}

func (s *LedgerE2ESuite) TearDownSuite() {
	s.server.Close()
	s.cancel()
}

func (s *LedgerE2ESuite) SetupTest() {
	helpers.TruncateKVStore(s.T(), s.testDB.Database.SQL())
	s.testRedis.Server.FlushAll()
	s.login("owner", "owner-pass")
}

func (s *LedgerE2ESuite) TestCheckoutWorkflow() {
	// 1. Add a product
	resp := s.makeRequest(http.MethodPost, "/products", map[string]interface{}{
		"name":          "Kombucha",
		"category":      "Beverages",
		"buying_price":  "2.00",
		"selling_price": "4.00",
		"stock":         10,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var product map[string]interface{}
	s.decodeResponse(resp, &product)
	id := int64(product["id"].(float64))
	s.Equal("100.00", product["profit_margin"])

	// 2. Sell three online with cash
	resp = s.makeRequest(http.MethodPost, "/sales", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": id, "quantity": 3}},
		"amount_paid":    "20",
		"payment_method": "cash",
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var sale map[string]interface{}
	s.decodeResponse(resp, &sale)
	s.Equal("12", sale["total"])
	s.Equal("8", sale["change"])
	s.Equal("Shop Owner", sale["employee"])

	// 3. Sell two while offline
	resp = s.makeRequest(http.MethodPost, "/sales", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": id, "quantity": 2}},
		"payment_method": "card",
		"online":         false,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// 4. Overselling is rejected and changes nothing
	resp = s.makeRequest(http.MethodPost, "/sales", map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": id, "quantity": 6}},
		"payment_method": "card",
	})
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	resp = s.makeRequest(http.MethodGet, fmt.Sprintf("/products/%d", id), nil)
	s.decodeResponse(resp, &product)
	s.Equal(float64(5), product["stock"])

	// 5. Sync the offline queue
	resp = s.makeRequest(http.MethodPost, "/sales/pending/sync", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var synced map[string]int
	s.decodeResponse(resp, &synced)
	s.Equal(1, synced["synced"])

	// 6. Dashboard reflects both sales
	resp = s.makeRequest(http.MethodGet, "/dashboard", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var dashboard map[string]interface{}
	s.decodeResponse(resp, &dashboard)
	s.Equal(float64(2), dashboard["total_sales"])
	s.Equal(float64(0), dashboard["pending_sales"])
	s.Equal("20", dashboard["total_revenue"])

	// 7. Export the sale log
	resp = s.makeRequest(http.MethodGet, "/export/sales.xlsx", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get("Content-Type"))
	resp.Body.Close()
}

func (s *LedgerE2ESuite) TestDeleteRequiresConfirmation() {
	coffee := s.productID("Coffee")

	resp := s.makeRequest(http.MethodDelete, fmt.Sprintf("/products/%d", coffee), nil)
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)
	var confirmation map[string]interface{}
	s.decodeResponse(resp, &confirmation)
	token := confirmation["token"].(string)

	resp = s.makeRequest(http.MethodGet, fmt.Sprintf("/products/%d", coffee), nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.makeRequest(http.MethodPost, "/confirmations/"+token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.makeRequest(http.MethodGet, fmt.Sprintf("/products/%d", coffee), nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func (s *LedgerE2ESuite) TestDeliveryNoteImport() {
	pdf := helpers.BuildTextPDF("Delivery note 0042", "Coffee x 20", "Sandwich x 5")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "delivery.pdf")
	s.Require().NoError(err)
	_, err = part.Write(pdf)
	s.Require().NoError(err)
	s.Require().NoError(writer.Close())

	req, err := http.NewRequest(http.MethodPost, s.baseURL+"/import/delivery-note", &body)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var report map[string]interface{}
	s.decodeResponse(resp, &report)
	s.Equal(float64(2), report["applied"])

	resp = s.makeRequest(http.MethodGet, fmt.Sprintf("/products/%d", s.productID("Coffee")), nil)
	var product map[string]interface{}
	s.decodeResponse(resp, &product)
	s.Equal(float64(120), product["stock"])
}

func (s *LedgerE2ESuite) TestConcurrentCheckouts() {
	soda := s.productID("Soda")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := s.makeRequest(http.MethodPost, "/sales", map[string]interface{}{
				"items":          []map[string]interface{}{{"product_id": soda, "quantity": 2}},
				"payment_method": "mobile",
			})
			s.Equal(http.StatusCreated, resp.StatusCode)
			resp.Body.Close()
		}()
	}
	wg.Wait()

	resp := s.makeRequest(http.MethodGet, fmt.Sprintf("/products/%d", soda), nil)
	var product map[string]interface{}
	s.decodeResponse(resp, &product)
	s.Equal(float64(60), product["stock"])

	resp = s.makeRequest(http.MethodGet, "/sales", nil)
	var list map[string]interface{}
	s.decodeResponse(resp, &list)
	s.Equal(float64(10), list["count"])
}

func (s *LedgerE2ESuite) TestHealthCheck() {
	resp, err := s.client.Get(s.server.URL + "/health")
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	s.decodeResponse(resp, &health)
	s.Equal("healthy", health["status"])

	services := health["services"].(map[string]interface{})
	s.Contains(services, "store")
	s.Contains(services, "database")
	s.Contains(services, "redis")
}

// Helper methods

func (s *LedgerE2ESuite) startTestServer() *httptest.Server {
	cfg := helpers.LoadTestConfig()
	cfg.Store.Driver = "postgres"
	cfg.FileProcessing.TempDir = s.T().TempDir()
	log := helpers.TestLogger()

	store := db.NewKVStore(s.testDB.Database.SQL(), log)
	lock := redis_a.NewLock(s.testRedis.Client, "pos:ledger:lock", log, redis_a.WithLockWait(10*time.Second))
	cache := redis_a.NewCache(s.testRedis.Client, time.Minute, log)

	creds, err := app.Credentials(cfg)
	s.Require().NoError(err)

	ledger := services.NewLedger(store, log, services.WithLocker(lock))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	return httptest.NewServer(handlers.NewRouter(ctx, handlers.Dependencies{
		Config:    cfg,
		Ledger:    ledger,
		Analytics: services.NewAnalytics(ledger, log, services.WithAnalyticsCache(cache, time.Second)),
		Auth:      services.NewAuth(store, creds, log),
		Health: handlers.NewHealthHandler(store, cfg, log,
			handlers.WithDatabase(s.testDB.Database), handlers.WithRedis(s.testRedis.Client)),
		Logger: log,
	}))
}

func (s *LedgerE2ESuite) login(username, password string) {
	resp := s.makeRequest(http.MethodPost, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var login handlers.LoginResponse
	s.decodeResponse(resp, &login)
	s.token = login.Token
}

func (s *LedgerE2ESuite) productID(name string) int64 {
	resp := s.makeRequest(http.MethodGet, "/products?q="+name, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var list struct {
		Products []handlers.ProductResponse `json:"products"`
	}
	s.decodeResponse(resp, &list)
	s.Require().NotEmpty(list.Products)
	return list.Products[0].ID
}

func (s *LedgerE2ESuite) makeRequest(method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		s.NoError(err)
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reqBody)
	s.NoError(err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	s.NoError(err)

	return resp
}

func (s *LedgerE2ESuite) decodeResponse(resp *http.Response, v interface{}) {
	defer resp.Body.Close()
	err := json.NewDecoder(resp.Body).Decode(v)
	s.NoError(err)
}

func TestLedgerE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	suite.Run(t, new(LedgerE2ESuite))
}
