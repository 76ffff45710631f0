package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/berthwatch/backend/model"
	"github.com/berthwatch/backend/repository"
	"github.com/berthwatch/backend/service"
	"github.com/gin-gonic/gin"
)

type brokenOrders struct{}

func (brokenOrders) InsertOrder(context.Context, *model.OrderRecord) error {
	return errors.New("disk full")
}

func (brokenOrders) ListOrders(context.Context) ([]model.OrderRecord, error) {
	return nil, errors.New("disk full")
}

func newOrderRouter(repo repository.OrderRepository) *gin.Engine {
	h := NewOrderHandler(service.NewOrderService(repo))
	router := gin.New()
	router.POST("/save-order", h.SaveOrder)
	router.GET("/latest-orders", h.LatestOrders)
	return router
}

func postOrder(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/save-order", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestOrderHandlerSaveAndLatest(t *testing.T) {
	router := newOrderRouter(repository.NewMemoryStore(0))

	orders := []string{
		`{"whatsapp_number":"+911","order_date":"2024-03-01","called_date":"2024-03-02","colour":"red"}`,
		`{"whatsapp_number":"+912","order_date":"2024-02-20","called_date":"2024-02-21","colour":"red"}`,
		`{"whatsapp_number":"+913","order_date":"2024-01-15","called_date":"2024-01-16","colour":"blue"}`,
	}
	for _, body := range orders {
		w := postOrder(router, body)
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
		}
		var response map[string]string
		json.Unmarshal(w.Body.Bytes(), &response)
		if response["message"] == "" {
			t.Error("Expected message in response")
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/latest-orders", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var latest map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &latest); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if latest["red"] != "2024-03-01" {
		t.Errorf("Expected red '2024-03-01', got '%s'", latest["red"])
	}
	if latest["blue"] != "2024-01-15" {
		t.Errorf("Expected blue '2024-01-15', got '%s'", latest["blue"])
	}
}

func TestOrderHandlerLatestEmpty(t *testing.T) {
	router := newOrderRouter(repository.NewMemoryStore(0))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/latest-orders", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "{}" {
		t.Errorf("Expected empty object, got %s", w.Body.String())
	}
}

func TestOrderHandlerSaveInvalid(t *testing.T) {
	router := newOrderRouter(repository.NewMemoryStore(0))

	tests := []struct {
		name        string
		body        string
		errContains string
	}{
		{"invalid json", "not json", "Invalid request body"},
		{"missing colour", `{"whatsapp_number":"+911","order_date":"2024-03-01","called_date":"2024-03-02"}`, "colour"},
		{"bad date", `{"whatsapp_number":"+911","order_date":"01-03-2024","called_date":"2024-03-02","colour":"red"}`, "order_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postOrder(router, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.errContains) {
				t.Errorf("Expected error mentioning %q, got %s", tt.errContains, w.Body.String())
			}
		})
	}
}

func TestOrderHandlerStorageFailure(t *testing.T) {
	router := newOrderRouter(brokenOrders{})

	w := postOrder(router, `{"whatsapp_number":"+911","order_date":"2024-03-01","called_date":"2024-03-02","colour":"red"}`)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "disk full") {
		t.Errorf("Expected underlying error in response, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/latest-orders", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}
