package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"voiceai-platform/internal/config"
	"voiceai-platform/pkg/utils"
)

func newTestVapi(t *testing.T, handler http.HandlerFunc) (*VapiClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewVapiClient(config.VapiConfig{APIKey: "test-key", BaseURL: srv.URL})
	return c, srv
}

func TestVapiClient_StartCall(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody StartCallRequest
	c, _ := newTestVapi(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(CallInfo{ID: "call-1", Status: "queued"})
	})

	info, err := c.StartCall(context.Background(), StartCallRequest{
		AgentID:     "agent-1",
		PhoneNumber: "+15550001",
		Metadata:    utils.JSONMap{"user_id": "U1"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if info.ID != "call-1" {
		t.Fatalf("expected call id, got %+v", info)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotPath != "/calls" {
		t.Fatalf("expected /calls, got %q", gotPath)
	}
	if gotBody.AgentID != "agent-1" || gotBody.PhoneNumber != "+15550001" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestVapiClient_StartCallValidation(t *testing.T) {
	c := NewVapiClient(config.VapiConfig{APIKey: "k", BaseURL: "http://unused"})
	if _, err := c.StartCall(context.Background(), StartCallRequest{PhoneNumber: "+1"}); err == nil {
		t.Fatalf("expected error for missing agent id")
	}
	if _, err := c.StartCall(context.Background(), StartCallRequest{AgentID: "a"}); err == nil {
		t.Fatalf("expected error for missing phone number")
	}
}

func TestVapiClient_NonOKStatusIsAPIError(t *testing.T) {
	c, _ := newTestVapi(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := c.GetCall(context.Background(), "call-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", apiErr.StatusCode)
	}
}

func TestVapiClient_ListAgents(t *testing.T) {
	c, _ := newTestVapi(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]Agent{{ID: "a1", Name: "support"}})
	})

	agents, err := c.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(agents) != 1 || agents[0].ID != "a1" {
		t.Fatalf("unexpected agents: %+v", agents)
	}
}

func TestVapiClient_ImplementsCallInitiator(t *testing.T) {
	var _ CallInitiator = (*VapiClient)(nil)
}
