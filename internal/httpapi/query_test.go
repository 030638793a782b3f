package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ayeshadev283/bookrag/internal/models"
)

func TestValidateQueryRequestTrimsAndDefaultsMode(t *testing.T) {
	req := &models.QueryRequest{Query: "  what is gravity?  ", BookID: "physics-101"}
	if err := validateQueryRequest(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Query != "what is gravity?" {
		t.Errorf("expected trimmed query, got %q", req.Query)
	}
	if req.Mode != models.ModeBookWide {
		t.Errorf("expected mode to default to book_wide, got %q", req.Mode)
	}
}

func TestValidateQueryRequestRejectsEmptyQuery(t *testing.T) {
	req := &models.QueryRequest{Query: "   ", BookID: "physics-101"}
	if err := validateQueryRequest(req); err == nil {
		t.Error("expected whitespace-only query to be rejected")
	}
}

func TestValidateQueryRequestRejectsOverlongQuery(t *testing.T) {
	req := &models.QueryRequest{Query: strings.Repeat("a", maxQueryLength+1), BookID: "physics-101"}
	if err := validateQueryRequest(req); err == nil {
		t.Error("expected overlong query to be rejected")
	}
}

func TestValidateQueryRequestRequiresBookID(t *testing.T) {
	req := &models.QueryRequest{Query: "hello"}
	if err := validateQueryRequest(req); err == nil {
		t.Error("expected missing book_id to be rejected")
	}
}

func TestValidateQueryRequestRequiresSelectedTextForSelectedTextMode(t *testing.T) {
	req := &models.QueryRequest{Query: "hello", BookID: "physics-101", Mode: models.ModeSelectedText}
	if err := validateQueryRequest(req); err == nil {
		t.Error("expected missing selected_text to be rejected in selected_text mode")
	}
}

func TestValidateQueryRequestRejectsUnknownMode(t *testing.T) {
	req := &models.QueryRequest{Query: "hello", BookID: "physics-101", Mode: "bogus"}
	if err := validateQueryRequest(req); err == nil {
		t.Error("expected unknown mode to be rejected")
	}
}

func TestRemoteIPStripsPort(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.5:54321"
	if got := remoteIP(r); got != "203.0.113.5" {
		t.Errorf("expected stripped host, got %q", got)
	}
}

func TestRemoteIPFallsBackOnMalformedAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "not-a-host-port"
	if got := remoteIP(r); got != "not-a-host-port" {
		t.Errorf("expected raw fallback, got %q", got)
	}
}
