package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fuxihub/fuxiquant-go/internal/chat"
	"github.com/fuxihub/fuxiquant-go/internal/config"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func testServer(t *testing.T) *Server {
	t.Helper()
	srv := &Server{
		cfg:   &config.Config{},
		wsHub: NewWSHub(),
		engine: func() (chat.Engine, error) {
			return nil, fmt.Errorf("no inference engine is linked into this binary; embed package chat with a GGUF-backed chat.Engine implementation")
		},
	}
	go srv.wsHub.Run()
	return srv
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// ════════════════════════════════════════════════════════════════════
// APIResponse type tests
// ════════════════════════════════════════════════════════════════════

func TestAPIResponseJSON(t *testing.T) {
	tests := []struct {
		name string
		resp APIResponse
	}{
		{"success with data", APIResponse{Success: true, Data: map[string]string{"key": "value"}}},
		{"error", APIResponse{Success: false, Error: "something went wrong"}},
		{"success with nil data", APIResponse{Success: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var got APIResponse
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Success != tt.resp.Success {
				t.Errorf("Success: got %v, want %v", got.Success, tt.resp.Success)
			}
			if got.Error != tt.resp.Error {
				t.Errorf("Error: got %q, want %q", got.Error, tt.resp.Error)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Health / config handler tests
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	srv.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}

	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("expected success=true")
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatal("data should be a map")
	}
	if data["status"] != "ok" {
		t.Errorf("status: got %q", data["status"])
	}
}

func TestHealthResponse_ContentType(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	srv.handleHealth(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
}

func TestHandleGetConfig(t *testing.T) {
	srv := testServer(t)
	srv.cfg.GasMax = 10_000_000
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/config", nil)
	srv.handleGetConfig(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("expected success=true")
	}
}

// ════════════════════════════════════════════════════════════════════
// Backtest handler tests (validation only — no data fetch)
// ════════════════════════════════════════════════════════════════════

func TestHandleBacktest_InvalidJSON(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/backtest", strings.NewReader("not json"))
	srv.handleBacktest(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleBacktest_MissingFields(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/backtest", strings.NewReader(`{}`))
	srv.handleBacktest(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
	resp := decodeResponse(t, rec)
	if resp.Success {
		t.Error("expected success=false")
	}
}

func TestHandleBacktest_InvalidStartTime(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	body := `{"codes":["BTCUSDT"],"start_time":"not-a-date","end_time":"2024-01-02","script_source":"function on_bar() end"}`
	req := httptest.NewRequest("POST", "/api/v1/backtest", strings.NewReader(body))
	srv.handleBacktest(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Error, "start_time") {
		t.Errorf("error should mention start_time: %q", resp.Error)
	}
}

func TestHandleBacktest_MissingScript(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	body := `{"codes":["BTCUSDT"],"start_time":"2024-01-01","end_time":"2024-01-02"}`
	req := httptest.NewRequest("POST", "/api/v1/backtest", strings.NewReader(body))
	srv.handleBacktest(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Error, "script") {
		t.Errorf("error should mention script: %q", resp.Error)
	}
}

func TestHandleBacktest_InvalidCash(t *testing.T) {
	srv := testServer(t)
	srv.cfg.Backtest.MakerFeeRate = "0.0002"
	srv.cfg.Backtest.TakerFeeRate = "0.0005"
	srv.cfg.Backtest.Slippage = "0.0005"
	rec := httptest.NewRecorder()
	body := `{"codes":["BTCUSDT"],"start_time":"2024-01-01","end_time":"2024-01-02","script_source":"function on_bar() end","cash":"not-a-number"}`
	req := httptest.NewRequest("POST", "/api/v1/backtest", strings.NewReader(body))
	srv.handleBacktest(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Error, "cash") {
		t.Errorf("error should mention cash: %q", resp.Error)
	}
}

// ════════════════════════════════════════════════════════════════════
// Agent chat handler tests
// ════════════════════════════════════════════════════════════════════

func TestHandleAgentChat_InvalidJSON(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/agent/chat", strings.NewReader("{bad"))
	srv.handleAgentChat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleAgentChat_MissingMessage(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/agent/chat", strings.NewReader(`{}`))
	srv.handleAgentChat(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Error, "message") {
		t.Errorf("error should mention 'message': %q", resp.Error)
	}
}

func TestHandleAgentChat_NoEngineLinked(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	body := `{"message":"hello"}`
	req := httptest.NewRequest("POST", "/api/v1/agent/chat", strings.NewReader(body))
	srv.handleAgentChat(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotImplemented)
	}
	resp := decodeResponse(t, rec)
	if resp.Success {
		t.Error("expected success=false — no engine is linked in this build")
	}
	if !strings.Contains(resp.Error, "inference engine") {
		t.Errorf("error should mention inference engine: %q", resp.Error)
	}
}

// ════════════════════════════════════════════════════════════════════
// MCP tools handler tests
// ════════════════════════════════════════════════════════════════════

func TestHandleMCPTools_NoServersConfigured(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/mcp/tools", nil)
	srv.handleMCPTools(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("expected success=true")
	}
	arr, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("data should be an array, got %T", resp.Data)
	}
	if len(arr) != 0 {
		t.Errorf("expected empty tool list, got %d", len(arr))
	}
}

// ════════════════════════════════════════════════════════════════════
// writeJSON / writeError tests
// ════════════════════════════════════════════════════════════════════

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, APIResponse{Success: true, Data: "hello"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusCreated)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success || resp.Data != "hello" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusNotFound, "not found")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	resp := decodeResponse(t, rec)
	if resp.Success {
		t.Error("expected success=false")
	}
	if resp.Error != "not found" {
		t.Errorf("error: got %q, want %q", resp.Error, "not found")
	}
}

func TestWriteError_VariousStatusCodes(t *testing.T) {
	codes := []int{
		http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable,
	}
	for _, code := range codes {
		t.Run(fmt.Sprintf("status_%d", code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, code, "test error")
			if rec.Code != code {
				t.Errorf("status: got %d, want %d", rec.Code, code)
			}
			resp := decodeResponse(t, rec)
			if resp.Success {
				t.Error("expected success=false")
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// WebSocket Hub tests
// ════════════════════════════════════════════════════════════════════

func TestWSHub_NewWSHub(t *testing.T) {
	hub := NewWSHub()
	if hub == nil {
		t.Fatal("NewWSHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount: got %d, want 0", hub.ClientCount())
	}
}

func TestWSHub_RegisterAndUnregister(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	client := &WSClient{hub: hub, send: make(chan WSMessage, 256)}

	hub.Register(client)
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 1 {
		t.Errorf("after register: ClientCount=%d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	time.Sleep(10 * time.Millisecond)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister: ClientCount=%d, want 0", hub.ClientCount())
	}
}

func TestWSHub_Broadcast(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	client1 := &WSClient{hub: hub, send: make(chan WSMessage, 256)}
	client2 := &WSClient{hub: hub, send: make(chan WSMessage, 256)}

	hub.Register(client1)
	hub.Register(client2)
	time.Sleep(10 * time.Millisecond)

	msg := WSMessage{Type: "test", Data: "hello"}
	hub.Broadcast(msg)
	time.Sleep(10 * time.Millisecond)

	select {
	case got := <-client1.send:
		if got.Type != "test" {
			t.Errorf("client1 got type=%q, want 'test'", got.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("client1 did not receive message")
	}

	select {
	case got := <-client2.send:
		if got.Type != "test" {
			t.Errorf("client2 got type=%q, want 'test'", got.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("client2 did not receive message")
	}

	hub.Unregister(client1)
	hub.Unregister(client2)
}

func TestWSHub_BroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	done := make(chan bool)
	go func() {
		for i := 0; i < 300; i++ {
			hub.Broadcast(WSMessage{Type: "test"})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked when buffer was full")
	}
}

func TestWSHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	var wg sync.WaitGroup
	numClients := 50
	clients := make([]*WSClient, numClients)
	for i := 0; i < numClients; i++ {
		clients[i] = &WSClient{hub: hub, send: make(chan WSMessage, 256)}
	}

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(c *WSClient) {
			defer wg.Done()
			hub.Register(c)
		}(clients[i])
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)

	if count := hub.ClientCount(); count != numClients {
		t.Errorf("after all registered: ClientCount=%d, want %d", count, numClients)
	}

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(c *WSClient) {
			defer wg.Done()
			hub.Unregister(c)
		}(clients[i])
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)

	if count := hub.ClientCount(); count != 0 {
		t.Errorf("after all unregistered: ClientCount=%d, want 0", count)
	}
}

func TestWSHub_MultipleMessages(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	client := &WSClient{hub: hub, send: make(chan WSMessage, 256)}
	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	msgs := []WSMessage{
		{Type: "type1", Data: "d1"},
		{Type: "type2", Data: "d2"},
		{Type: "type3", Data: "d3"},
	}
	for _, m := range msgs {
		hub.Broadcast(m)
	}
	time.Sleep(50 * time.Millisecond)

	received := make([]WSMessage, 0)
loop:
	for {
		select {
		case m := <-client.send:
			received = append(received, m)
		default:
			break loop
		}
	}

	if len(received) != 3 {
		t.Fatalf("received %d messages, want 3", len(received))
	}
	for i, m := range received {
		expected := fmt.Sprintf("type%d", i+1)
		if m.Type != expected {
			t.Errorf("msg[%d].Type: got %q, want %q", i, m.Type, expected)
		}
	}

	hub.Unregister(client)
}

// ════════════════════════════════════════════════════════════════════
// WSMessage JSON tests
// ════════════════════════════════════════════════════════════════════

func TestWSMessageJSON(t *testing.T) {
	msg := WSMessage{
		Type: "backtest_complete",
		Data: map[string]interface{}{"codes": []string{"BTCUSDT"}, "trade_count": 3},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var got WSMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "backtest_complete" {
		t.Errorf("Type: got %q", got.Type)
	}
}

func TestWSMessageJSON_NoData(t *testing.T) {
	msg := WSMessage{Type: "pong"}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var got WSMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "pong" {
		t.Errorf("Type: got %q", got.Type)
	}
	if got.Data != nil {
		t.Errorf("Data should be nil: %v", got.Data)
	}
}

// ════════════════════════════════════════════════════════════════════
// Compile-time interface checks
// ════════════════════════════════════════════════════════════════════

var _ = (*WSHub)(nil).ClientCount
var _ = (*WSHub)(nil).Broadcast
var _ = (*WSHub)(nil).Register
var _ = (*WSHub)(nil).Unregister
var _ = (*WSHub)(nil).Run

func TestWSClient_SendChannel(t *testing.T) {
	client := &WSClient{send: make(chan WSMessage, 10)}
	client.send <- WSMessage{Type: "test"}
	msg := <-client.send
	if msg.Type != "test" {
		t.Errorf("Type: got %q", msg.Type)
	}
}
