package chasers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupChaserRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	r := gin.New()
	api := r.Group("/api/v1")
	h.RegisterRoutes(api)
	h.RegisterWebhookRoutes(api)
	return r, svc
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateChaserReturnsSchedule(t *testing.T) {
	r, _ := setupChaserRouter(t)

	resp := doJSON(t, r, http.MethodPost, "/api/v1/chasers", map[string]string{
		"name":         "Annual accounts",
		"documents":    "Bank statements",
		"who":          "Ana Lee",
		"urgency":      "High",
		"contactEmail": "ana@example.com",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		Chaser struct {
			ID     string `json:"id"`
			Task   string `json:"task"`
			Status string `json:"status"`
		} `json:"chaser"`
		Schedule []struct {
			AttemptNumber int    `json:"attemptNumber"`
			Medium        string `json:"medium"`
		} `json:"schedule"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Chaser.ID == "" || created.Chaser.Task != "Annual accounts" {
		t.Fatalf("unexpected chaser: %+v", created.Chaser)
	}
	if len(created.Schedule) != 5 {
		t.Fatalf("expected 5 High attempts, got %d", len(created.Schedule))
	}
	if created.Message != "Chaser created successfully with 5 scheduled outreach attempts" {
		t.Fatalf("unexpected message %q", created.Message)
	}
}

func TestCreateChaserValidation(t *testing.T) {
	r, _ := setupChaserRouter(t)

	resp := doJSON(t, r, http.MethodPost, "/api/v1/chasers", map[string]string{"task": "x"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %q", body.Error.Code)
	}
}

func TestGetUpdateDeleteChaser(t *testing.T) {
	r, svc := setupChaserRouter(t)
	c, err := svc.Create(testContext(t), mediumInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if resp := doJSON(t, r, http.MethodGet, "/api/v1/chasers/"+c.ID, nil); resp.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.Code)
	}
	if resp := doJSON(t, r, http.MethodGet, "/api/v1/chasers/missing", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("get missing: expected 404, got %d", resp.Code)
	}

	resp := doJSON(t, r, http.MethodPatch, "/api/v1/chasers/"+c.ID, map[string]string{"status": "failed"})
	if resp.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d", resp.Code)
	}
	resp = doJSON(t, r, http.MethodPatch, "/api/v1/chasers/"+c.ID, map[string]string{"status": "paused"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("patch invalid: expected 400, got %d", resp.Code)
	}

	list := doJSON(t, r, http.MethodGet, "/api/v1/chasers", nil)
	var listed struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(list.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if listed.Total != 1 {
		t.Fatalf("expected total 1, got %d", listed.Total)
	}

	if resp := doJSON(t, r, http.MethodDelete, "/api/v1/chasers/"+c.ID, nil); resp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.Code)
	}
	if resp := doJSON(t, r, http.MethodDelete, "/api/v1/chasers/"+c.ID, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("delete again: expected 404, got %d", resp.Code)
	}
}

func TestWebhookResponse(t *testing.T) {
	r, svc := setupChaserRouter(t)
	c, err := svc.Create(testContext(t), mediumInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	resp := doJSON(t, r, http.MethodPost, "/api/v1/webhooks/response", map[string]any{
		"type":          "reply",
		"chaserId":      c.ID,
		"attemptNumber": 1,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	got, err := svc.Get(testContext(t), c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}

	resp = doJSON(t, r, http.MethodPost, "/api/v1/webhooks/response", map[string]any{"type": "reply", "messageId": "nope"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown message, got %d", resp.Code)
	}
}
