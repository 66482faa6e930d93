// Package api provides the HTTP REST API server for fuxiquant.
//
// It exposes endpoints for running backtests, driving the conversational
// agent, inspecting configured MCP tools, and a WebSocket feed for
// streaming backtest progress and chat tokens.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"

	"github.com/fuxihub/fuxiquant-go/internal/agentloop"
	"github.com/fuxihub/fuxiquant-go/internal/backtest"
	"github.com/fuxihub/fuxiquant-go/internal/candles/store"
	"github.com/fuxihub/fuxiquant-go/internal/chat"
	"github.com/fuxihub/fuxiquant-go/internal/config"
	"github.com/fuxihub/fuxiquant-go/internal/mcp"
	"github.com/fuxihub/fuxiquant-go/internal/script"
	"github.com/fuxihub/fuxiquant-go/internal/tool"
	"github.com/fuxihub/fuxiquant-go/internal/tool/builtin"
	"github.com/fuxihub/fuxiquant-go/pkg/models"
	"github.com/fuxihub/fuxiquant-go/pkg/xtime"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	mcp    *mcp.Manager
	engine func() (chat.Engine, error) // resolves the agent's chat.Engine lazily
	wsHub  *WSHub
}

// NewServer creates a configured API server with all routes and middleware.
// If cfg.MCP names any servers, they are connected eagerly so tool
// listings are available as soon as the server starts.
func NewServer(cfg *config.Config) (*Server, error) {
	srv := &Server{
		cfg:   cfg,
		wsHub: NewWSHub(),
		engine: func() (chat.Engine, error) {
			return nil, fmt.Errorf("no inference engine is linked into this binary; embed package chat with a GGUF-backed chat.Engine implementation")
		},
	}

	if len(cfg.MCP.Servers) > 0 {
		specs := make([]mcp.ServerSpec, len(cfg.MCP.Servers))
		for i, s := range cfg.MCP.Servers {
			specs[i] = mcp.ServerSpec{Name: s.Name, Command: s.Command, Args: s.Args, Env: s.Env}
		}
		mgr, err := mcp.Connect(specs)
		if err != nil {
			log.Printf("connecting MCP servers: %v", err)
		}
		srv.mcp = mgr
	}

	srv.router = srv.buildRouter()
	return srv, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	if s.mcp != nil {
		_ = s.mcp.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleGetConfig)

		r.Post("/backtest", s.handleBacktest)

		r.Post("/agent/chat", s.handleAgentChat)

		r.Get("/mcp/tools", s.handleMCPTools)

		r.Get("/ws", s.handleWebSocket)
		r.Get("/ws/backtest", s.handleWebSocket)
		r.Get("/ws/chat", s.handleWebSocket)
	})

	return r
}

// APIResponse wraps every handler's JSON body in a uniform envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status": "ok",
		},
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.cfg})
}

// BacktestRequest is the body for POST /api/v1/backtest. Any field left
// zero falls back to the server's configured backtest section.
type BacktestRequest struct {
	ScriptSource string   `json:"script_source,omitempty"`
	ScriptFile   string   `json:"script_file,omitempty"`
	Codes        []string `json:"codes,omitempty"`
	StartTime    string   `json:"start_time,omitempty"`
	EndTime      string   `json:"end_time,omitempty"`
	Cash         string   `json:"cash,omitempty"`
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	codes := req.Codes
	if len(codes) == 0 {
		codes = s.cfg.Backtest.Codes
	}
	startStr := req.StartTime
	if startStr == "" {
		startStr = s.cfg.Backtest.StartTime
	}
	endStr := req.EndTime
	if endStr == "" {
		endStr = s.cfg.Backtest.EndTime
	}
	cashStr := req.Cash
	if cashStr == "" {
		cashStr = s.cfg.Backtest.Cash
	}
	if len(codes) == 0 || startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "codes, start_time and end_time are required (directly or via config)")
		return
	}

	source := req.ScriptSource
	if source == "" {
		path := req.ScriptFile
		if path == "" {
			path = s.cfg.Script.File
		}
		if path == "" {
			writeError(w, http.StatusBadRequest, "script_source, script_file, or config script.file is required")
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("reading strategy file: %v", err))
			return
		}
		source = string(data)
	}

	session := xtime.NewSession("")
	start, err := session.ParseFlexible(startStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid start_time: %v", err))
		return
	}
	end, err := session.ParseFlexible(endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid end_time: %v", err))
		return
	}
	cash, err := decimal.NewFromString(cashStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid cash: %v", err))
		return
	}
	makerFee, err := decimal.NewFromString(s.cfg.Backtest.MakerFeeRate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("invalid configured maker_fee_rate: %v", err))
		return
	}
	takerFee, err := decimal.NewFromString(s.cfg.Backtest.TakerFeeRate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("invalid configured taker_fee_rate: %v", err))
		return
	}
	slippage, err := decimal.NewFromString(s.cfg.Backtest.Slippage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("invalid configured slippage: %v", err))
		return
	}

	st := store.New(s.cfg.Backtest.DataDir)
	bars := make(map[string]models.BarSource, len(codes))
	symbols := make([]backtest.SymbolSpec, 0, len(codes))
	for _, code := range codes {
		tbl, err := st.Load(code, start.UnixMilli(), end.UnixMilli(), s.cfg.Backtest.HistoryBarLen)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("loading %s: %v", code, err))
			return
		}
		bars[code] = tbl
		symbols = append(symbols, backtest.SymbolSpec{
			Code:      code,
			PriceTick: decimal.NewFromFloat(0.0001),
			SizeTick:  decimal.NewFromFloat(0.0001),
			MinSize:   decimal.NewFromFloat(0.0001),
			MinCash:   decimal.NewFromInt(5),
			MaxLever:  decimal.NewFromInt(20),
			FaceVal:   decimal.NewFromInt(1),
		})
	}

	strategy, err := script.Compile(source, req.ScriptFile, s.cfg.GasMax)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("compiling strategy: %v", err))
		return
	}
	defer strategy.Close()

	btCfg := backtest.Config{
		Symbols:       symbols,
		Start:         start.UnixMilli(),
		End:           end.UnixMilli(),
		InitialCash:   cash,
		HistoryBarLen: s.cfg.Backtest.HistoryBarLen,
		MakerFeeRate:  makerFee,
		TakerFeeRate:  takerFee,
		Slippage:      slippage,
		Session:       session,
	}
	if err := btCfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	engine, err := backtest.New(btCfg, strategy, bars)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	report, err := engine.Run()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.wsHub.Broadcast(WSMessage{
		Type: "backtest_complete",
		Data: map[string]interface{}{"codes": codes, "trade_count": report.TradeCount},
	})

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: report})
}

// AgentChatRequest is the body for POST /api/v1/agent/chat.
type AgentChatRequest struct {
	Message string `json:"message"`
}

// AgentChatResponse is the body of a successful agent chat reply.
type AgentChatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	var req AgentChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	engine, err := s.engine()
	if err != nil {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}

	dialect := tool.Dialect(tool.Hermes{})
	if s.cfg.Agent.Dialect == "react" {
		dialect = tool.React{}
	}

	ctrl := agentloop.New(agentloop.Config{
		Engine:         engine,
		Dialect:        dialect,
		SystemPrompt:   s.cfg.Agent.SystemPrompt,
		EnableThinking: s.cfg.Agent.EnableThinking,
		MaxToolRounds:  s.cfg.Agent.MaxToolRounds,
		Builtins:       builtin.NewRegistry(),
		MCP:            s.mcp,
	})

	reply, err := ctrl.Run(req.Message, func(ev chat.StreamEvent) {
		if ev.Kind == chat.EventToken {
			s.wsHub.Broadcast(WSMessage{Type: "chat_token", Data: ev.Data})
		}
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: AgentChatResponse{Reply: reply}})
}

func (s *Server) handleMCPTools(w http.ResponseWriter, r *http.Request) {
	if s.mcp == nil {
		writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: []tool.Tool{}})
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.mcp.Tools()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// WSMessage is one envelope broadcast to every connected WebSocket client.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	hub  *WSHub
	send chan WSMessage
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run drives the hub's register/unregister/broadcast loop; call it once
// in its own goroutine before serving traffic.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a message to all connected WebSocket clients, dropping
// it if the broadcast channel is saturated.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}
