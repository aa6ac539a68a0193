package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mvisser/groupledger/internal/service"
	"github.com/mvisser/groupledger/internal/storage/sqlite"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	server := httptest.NewServer(NewServer(service.NewLedgerService(store)).Router())
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})
	return server
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp, decoded
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	server := setupTestServer(t)

	resp, account := postJSON(t, server.URL+"/api/v1/accounts", map[string]any{
		"name":            "Flat 12",
		"split_policy":    "equal",
		"creator_user_id": "alice",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account status = %d, want 201", resp.StatusCode)
	}
	accountID, _ := account["id"].(string)
	if accountID == "" {
		t.Fatalf("create account response missing id: %v", account)
	}

	resp, _ = postJSON(t, fmt.Sprintf("%s/api/v1/accounts/%s/members", server.URL, accountID), map[string]any{
		"user_id": "bob",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("grant membership status = %d, want 201", resp.StatusCode)
	}

	resp, tx := postJSON(t, fmt.Sprintf("%s/api/v1/accounts/%s/transactions", server.URL, accountID), map[string]any{
		"kind":         "expense",
		"amount":       "60.00",
		"description":  "groceries",
		"from_user_id": "alice",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("record transaction status = %d, want 201: %v", resp.StatusCode, tx)
	}
	if tx["status"] != "confirmed" {
		t.Errorf("transaction status = %v, want confirmed", tx["status"])
	}

	resp, bal := getJSON(t, fmt.Sprintf("%s/api/v1/accounts/%s/members/bob/balance", server.URL, accountID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance status = %d, want 200", resp.StatusCode)
	}
	if bal["balance"] != "-30.00" {
		t.Errorf("bob balance = %v, want -30.00", bal["balance"])
	}

	resp, totals := getJSON(t, fmt.Sprintf("%s/api/v1/accounts/%s/balance", server.URL, accountID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("total balance status = %d, want 200", resp.StatusCode)
	}
	if totals["total_balance"] != "-60.00" {
		t.Errorf("total balance = %v, want -60.00", totals["total_balance"])
	}
}

func TestErrorMapping(t *testing.T) {
	server := setupTestServer(t)

	// Unknown account.
	resp, _ := getJSON(t, server.URL+"/api/v1/accounts/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown account status = %d, want 404", resp.StatusCode)
	}

	// Validation failure.
	resp, _ = postJSON(t, server.URL+"/api/v1/accounts", map[string]any{
		"name":            "ab",
		"creator_user_id": "alice",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("short name status = %d, want 400", resp.StatusCode)
	}

	// Missing counterpart membership surfaces the failed record.
	_, account := postJSON(t, server.URL+"/api/v1/accounts", map[string]any{
		"name":            "Flat 12",
		"creator_user_id": "alice",
	})
	accountID := account["id"].(string)

	resp, body := postJSON(t, fmt.Sprintf("%s/api/v1/accounts/%s/transactions", server.URL, accountID), map[string]any{
		"kind":         "transfer",
		"amount":       "10.00",
		"description":  "to nobody",
		"from_user_id": "alice",
		"to_user_id":   "ghost",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("missing membership status = %d, want 422", resp.StatusCode)
	}
	txBody, ok := body["transaction"].(map[string]any)
	if !ok {
		t.Fatalf("expected failed transaction in body, got %v", body)
	}
	if txBody["status"] != "failed" {
		t.Errorf("transaction status = %v, want failed", txBody["status"])
	}
}
