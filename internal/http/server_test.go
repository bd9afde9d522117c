package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"receipts/internal/category"
	"receipts/internal/handler"
	"receipts/internal/images"
	"receipts/internal/nlp"
	"receipts/internal/services"
	"receipts/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	repo, err := storage.NewSQLiteRepository(filepath.Join(dir, "receipts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}

	imgs, err := images.NewStore(filepath.Join(dir, "images"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	svc := services.NewReceiptService(repo, imgs, category.NewClassifier(category.DefaultRules()), nil, "CAD")
	t.Cleanup(func() { svc.Close() })

	srv := NewServer(":0", svc, handler.NewHandler(svc), repo, nlp.NewInterpreter(nlp.DefaultVocabulary()), 100)
	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func getJSON(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func archiveReceipt(t *testing.T, baseURL, payload string) int64 {
	t.Helper()
	resp, raw := postJSON(t, baseURL+"/api/receipts", payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/receipts = %d: %s", resp.StatusCode, raw)
	}
	var out handler.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out.ReceiptID
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, _ := getJSON(t, ts.URL+path)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}
}

func TestCreateAndGetReceipt(t *testing.T) {
	ts := newTestServer(t)

	id := archiveReceipt(t, ts.URL, `{"vendor":"Green Fresh Supermarket","date":"2026-02-27","total":"45.50"}`)

	resp, raw := getJSON(t, fmt.Sprintf("%s/api/receipts/%d", ts.URL, id))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET receipt = %d: %s", resp.StatusCode, raw)
	}
	var view handler.ReceiptView
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Total != "45.50" || view.Category != "grocery" {
		t.Errorf("view = %+v", view)
	}
}

func TestCreateReceiptRejected(t *testing.T) {
	ts := newTestServer(t)

	resp, raw := postJSON(t, ts.URL+"/api/receipts", `{"vendor":"","date":"2026-02-27","total":"10.00"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", resp.StatusCode, raw)
	}
	var out handler.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.OK || out.Field != "vendor" {
		t.Errorf("response = %+v", out)
	}
}

func TestListReceiptsFilters(t *testing.T) {
	ts := newTestServer(t)
	archiveReceipt(t, ts.URL, `{"vendor":"Walmart","date":"2026-02-10","total":"12.00"}`)
	archiveReceipt(t, ts.URL, `{"vendor":"Uber","date":"2026-03-01","total":"15.00","category":"transport"}`)

	resp, raw := getJSON(t, ts.URL+"/api/receipts?q=walmart")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list = %d: %s", resp.StatusCode, raw)
	}
	var out struct {
		Count    int                   `json:"count"`
		Receipts []handler.ReceiptView `json:"receipts"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 1 || out.Receipts[0].Vendor != "Walmart" {
		t.Errorf("filtered list = %+v", out)
	}

	resp, _ = getJSON(t, ts.URL+"/api/receipts?month=02-2026")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad month = %d, want 400", resp.StatusCode)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	ts := newTestServer(t)
	archiveReceipt(t, ts.URL, `{"vendor":"Green Fresh Supermarket","date":"2026-02-27","total":"45.50"}`)
	archiveReceipt(t, ts.URL, `{"vendor":"Noodle House Restaurant","date":"2026-02-10","total":"12.00"}`)

	resp, raw := getJSON(t, ts.URL+"/api/summary?month=2026-02")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary = %d: %s", resp.StatusCode, raw)
	}
	var out monthSummaryView
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 2 || len(out.Totals) != 1 || out.Totals[0].Total != "57.50" {
		t.Errorf("summary = %+v", out)
	}
	if !strings.Contains(out.Text, "57.50") {
		t.Errorf("text = %q", out.Text)
	}
}

func TestQueryEndpoint(t *testing.T) {
	ts := newTestServer(t)
	archiveReceipt(t, ts.URL, `{"vendor":"Walmart","date":"2026-02-10","total":"12.00"}`)

	resp, raw := postJSON(t, ts.URL+"/api/query", `{"q":"list walmart receipts"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query = %d: %s", resp.StatusCode, raw)
	}
	var out struct {
		Text     string                `json:"text"`
		Receipts []handler.ReceiptView `json:"receipts"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Receipts) != 1 || out.Receipts[0].Vendor != "Walmart" {
		t.Errorf("query result = %+v", out)
	}

	resp, _ = postJSON(t, ts.URL+"/api/query", `{"q":"hello"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("unresolved query = %d, want 422", resp.StatusCode)
	}
}

func TestDeleteReceipt(t *testing.T) {
	ts := newTestServer(t)
	id := archiveReceipt(t, ts.URL, `{"vendor":"Walmart","date":"2026-02-10","total":"12.00"}`)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/receipts/%d", ts.URL, id), nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete = %d", resp.StatusCode)
	}

	getResp, _ := getJSON(t, fmt.Sprintf("%s/api/receipts/%d", ts.URL, id))
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", getResp.StatusCode)
	}
}
