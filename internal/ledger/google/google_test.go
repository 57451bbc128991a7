package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func newTestClient(t *testing.T, values [][]any) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/v4/spreadsheets/sheet-id/values/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"range":          "Gastos!A1:D10",
			"majorDimension": "ROWS",
			"values":         values,
		})
	}))
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, "sheet-id", "", nil)
}

func TestClient_ListExpenses(t *testing.T) {
	c := newTestClient(t, [][]any{
		{"fecha", "categoria", "descripcion", "monto_ars"},
		{"2025-06-03", "Transporte", "Colectivo", "1500"},
		{"2025-07-01", "Transporte", "Taxi", "900"},
		{"2025-06-10", "Comida", "Almuerzo", "2500"},
	})

	got, err := c.ListExpenses(context.Background(), 2025, 6)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].Description != "Colectivo" || got[1].Description != "Almuerzo" {
		t.Fatalf("unexpected expenses: %+v", got)
	}

	cats, err := c.Categories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 2 || cats[0] != "Transporte" || cats[1] != "Comida" {
		t.Fatalf("unexpected categories: %v", cats)
	}
}

func TestClient_InvalidMonth(t *testing.T) {
	c := NewWithService(nil, "id", "", nil)
	if _, err := c.ListExpenses(context.Background(), 2025, 0); err == nil {
		t.Fatal("expected error for month 0")
	}
	if _, err := c.ListExpenses(context.Background(), 2025, 1); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}, nil); err == nil || err.Error() != "missing spreadsheet id" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "id"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}
