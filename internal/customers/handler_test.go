package customers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupCustomerRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(seededService(t)).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestCustomerRoutes(t *testing.T) {
	r := setupCustomerRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/customers/search?q=chen", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", resp.Code)
	}
	var found struct {
		Customers []Customer `json:"customers"`
		Total     int        `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&found); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if found.Total != 1 || found.Customers[0].Email != "michael.chen@greenfield.com" {
		t.Fatalf("unexpected search result: %+v", found)
	}

	body, _ := json.Marshal(map[string]string{"name": "Dup", "email": "lisa.anderson@zenith.com"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/customers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", resp.Code)
	}

	body, _ = json.Marshal(map[string]string{"name": "Nina Patel", "email": "nina@example.com", "company": "Patel & Co"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/customers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.Code)
	}
	var created Customer
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/customers/"+created.ID, nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/customers", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	var listed struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if listed.Total != 12 {
		t.Fatalf("expected 12 customers, got %d", listed.Total)
	}
}
