package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL:     srv.URL,
		BearerToken: "test-token",
		AppID:       "test-app",
		UsageKey:    "test-usage",
	}, NewCallLog(0))
}

func TestCall_AttachesFixedHeaders(t *testing.T) {
	var gotAuth, gotApp, gotUsage string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotApp = r.Header.Get("X-Generated-App-ID")
		gotUsage = r.Header.Get("X-Usage-Key")
		w.Write([]byte(`{"agent_id":"a-1"}`))
	})

	id, err := c.CreateAgent(context.Background(), "be kind", "guide")
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if id != "a-1" {
		t.Errorf("agent id = %q, want a-1", id)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotApp != "test-app" {
		t.Errorf("X-Generated-App-ID = %q", gotApp)
	}
	if gotUsage != "test-usage" {
		t.Errorf("X-Usage-Key = %q", gotUsage)
	}
}

func TestCall_SuccessRecordsOneAuditEntry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"hello"}`))
	})

	if _, err := c.Chat(context.Background(), "a-1", "hi"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	entries := c.Log().Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Endpoint != "/chat" || e.Method != http.MethodPost {
		t.Errorf("entry = %s %s, want POST /chat", e.Method, e.Endpoint)
	}
	if !strings.Contains(e.RequestBody, `"message":"hi"`) {
		t.Errorf("request body not recorded: %q", e.RequestBody)
	}
	if !strings.Contains(e.ResponseBody, "hello") {
		t.Errorf("response body not recorded: %q", e.ResponseBody)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Errorf("entry missing id or timestamp: %+v", e)
	}
}

func TestCall_TransportFailureRecordedAndWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	c := New(Config{BaseURL: srv.URL, BearerToken: "t"}, NewCallLog(0))
	_, err := c.Chat(context.Background(), "a-1", "hi")
	if err == nil {
		t.Fatal("want error on refused connection")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error %T is not *TransportError", err)
	}
	if te.Endpoint != "/chat" {
		t.Errorf("TransportError.Endpoint = %q, want /chat", te.Endpoint)
	}

	if got := c.Log().Len(); got != 1 {
		t.Errorf("audit entries = %d, want 1 (failures must be logged)", got)
	}
}

func TestCall_BadStatusIsTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := c.InputData(context.Background(), "user_input", []string{"text"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error %T is not *TransportError", err)
	}
	if c.Log().Len() != 1 {
		t.Errorf("audit entries = %d, want 1", c.Log().Len())
	}
}

func TestCall_UnparseableResponseIsTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := c.ReturnData(context.Background(), "obj", ReturnRawText)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error %T is not *TransportError", err)
	}
}

func TestDeleteObject_UsesDeleteMethodAndPath(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	})

	if err := c.DeleteObject(context.Background(), "state_analysis_1"); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", gotMethod)
	}
	if gotPath != "/objects/state_analysis_1" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestCallLog_CapEvictsOldestFirst(t *testing.T) {
	log := NewCallLog(0)
	for i := 1; i <= 60; i++ {
		log.Record(fmt.Sprintf("/call-%d", i), http.MethodPost, "", "")
	}

	entries := log.Entries()
	if len(entries) != 50 {
		t.Fatalf("log holds %d entries, want 50", len(entries))
	}
	// Newest first: after 60 calls the log holds calls 11..60.
	if entries[0].Endpoint != "/call-60" {
		t.Errorf("newest entry = %s, want /call-60", entries[0].Endpoint)
	}
	if entries[49].Endpoint != "/call-11" {
		t.Errorf("oldest entry = %s, want /call-11", entries[49].Endpoint)
	}
}
