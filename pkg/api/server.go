package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/yesno/pkg/app/core"
	"github.com/uhyunpark/yesno/pkg/app/core/ledger"
	"github.com/uhyunpark/yesno/pkg/app/core/orderbook"
	"github.com/uhyunpark/yesno/pkg/app/exchange"
)

// Commander executes commands. A nil Result with a nil error means the command
// was handed to a queue and will be applied asynchronously.
type Commander interface {
	Submit(ctx context.Context, cmd exchange.Command) (*exchange.Result, error)
}

// Reader answers book and balance queries
type Reader interface {
	Snapshot(ctx context.Context, symbol string) (orderbook.Snapshot, error)
	Snapshots(ctx context.Context) ([]orderbook.Snapshot, error)
	CurrencyBalances(ctx context.Context, user string) (map[string]ledger.CurrencyAccount, error)
	ContractBalances(ctx context.Context, user string) (map[string]ledger.Holdings, error)
}

// TradeHistory serves journaled fills
type TradeHistory interface {
	RecentTrades(symbol string, limit int) ([]exchange.Trade, error)
	UserTrades(user string, limit int) ([]exchange.Trade, error)
}

var errUnavailable = errors.New("not served by this process")

type Config struct {
	Commands Commander
	// Reader is nil when the engine runs in another process (gateway mode)
	Reader         Reader
	Trades         TradeHistory
	Hub            *Hub
	Logger         *zap.SugaredLogger
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Server handles REST API and WebSocket connections
type Server struct {
	cfg    Config
	router *mux.Router
	http   *http.Server
	logger *zap.SugaredLogger
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		logger: cfg.Logger,
	}
	s.setupRoutes()
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Commands are absent on stream servers
	if s.cfg.Commands != nil {
		api.HandleFunc("/user/create/{userId}", s.handleCreateUser).Methods("POST")
		api.HandleFunc("/symbol/create/{symbol}", s.handleCreateSymbol).Methods("POST")
		api.HandleFunc("/onramp/inr", s.handleOnramp).Methods("POST")
		api.HandleFunc("/trade/mint", s.handleMint).Methods("POST")
		api.HandleFunc("/reset", s.handleReset).Methods("POST")

		api.HandleFunc("/order/buy", s.orderHandler(core.IntentBuy)).Methods("POST")
		api.HandleFunc("/order/sell", s.orderHandler(core.IntentSell)).Methods("POST")
	}

	// Queries
	api.HandleFunc("/orderbook", s.handleGetOrderbooks).Methods("GET")
	api.HandleFunc("/orderbook/{symbol}", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/balances/inr", s.handleGetCurrency).Methods("GET")
	api.HandleFunc("/balances/inr/{userId}", s.handleGetCurrency).Methods("GET")
	api.HandleFunc("/balances/stock", s.handleGetStock).Methods("GET")
	api.HandleFunc("/balances/stock/{userId}", s.handleGetStock).Methods("GET")
	api.HandleFunc("/markets/{symbol}/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/users/{userId}/trades", s.handleGetUserTrades).Methods("GET")

	if s.cfg.Hub != nil {
		s.router.HandleFunc("/ws", s.cfg.Hub.ServeWS)
	}

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped with CORS
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// Start serves until Shutdown is called. Shutdown may run first, in which
// case Start returns immediately.
func (s *Server) Start(addr string) error {
	s.http.Addr = addr
	s.logger.Infow("api_server_starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// ==============================
// Command Handlers
// ==============================

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["userId"]
	s.submit(w, r, exchange.Command{Type: exchange.CmdCreateUser, UserID: user},
		http.StatusCreated, fmt.Sprintf("User %s created", user))
}

func (s *Server) handleCreateSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	s.submit(w, r, exchange.Command{Type: exchange.CmdCreateSymbol, Symbol: symbol},
		http.StatusCreated, fmt.Sprintf("Symbol %s created", symbol))
}

func (s *Server) handleOnramp(w http.ResponseWriter, r *http.Request) {
	var req OnrampRequest
	if !decode(w, r, &req) {
		return
	}
	s.submit(w, r, exchange.Command{Type: exchange.CmdOnramp, UserID: req.UserID, Amount: req.Amount},
		http.StatusOK, fmt.Sprintf("Onramped %s with amount %s", req.UserID, paiseToINR(req.Amount)))
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if !decode(w, r, &req) {
		return
	}
	s.submit(w, r, exchange.Command{Type: exchange.CmdMint, UserID: req.UserID, Symbol: req.Symbol, Quantity: req.Quantity},
		http.StatusOK, fmt.Sprintf("Minted %d %s sets for %s", req.Quantity, req.Symbol, req.UserID))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, exchange.Command{Type: exchange.CmdReset}, http.StatusOK, "State reset")
}

func (s *Server) orderHandler(intent core.Intent) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OrderRequest
		if !decode(w, r, &req) {
			return
		}
		outcome, err := core.ParseOutcome(string(req.Outcome))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid stockType", err.Error())
			return
		}
		cmd := exchange.Command{
			Type:     exchange.CmdOrder,
			UserID:   req.UserID,
			Symbol:   req.Symbol,
			Outcome:  outcome,
			Intent:   intent,
			Price:    req.Price,
			Quantity: req.Quantity,
		}
		s.submit(w, r, cmd, http.StatusOK, fmt.Sprintf("%s order placed", intent))
	}
}

// submit runs cmd and writes the outcome
func (s *Server) submit(w http.ResponseWriter, r *http.Request, cmd exchange.Command, status int, message string) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.cfg.Commands.Submit(ctx, cmd)
	if err != nil {
		s.logger.Infow("command_rejected", "cmd", cmd.String(), "err", err)
		respondError(w, statusFor(err), "command rejected", err.Error())
		return
	}
	if res == nil {
		respondStatus(w, http.StatusAccepted, CommandResponse{Message: "queued: " + message})
		return
	}

	out := CommandResponse{
		Message: message,
		OrderID: res.OrderID,
		Filled:  res.Filled,
		Resting: res.Resting,
	}
	for _, tr := range res.Trades {
		out.Trades = append(out.Trades, newTrade(tr))
	}
	respondStatus(w, status, out)
}

// ==============================
// Query Handlers
// ==============================

func (s *Server) handleGetOrderbooks(w http.ResponseWriter, r *http.Request) {
	if !s.canRead(w) {
		return
	}
	snaps, err := s.cfg.Reader.Snapshots(r.Context())
	if err != nil {
		respondError(w, statusFor(err), "orderbook unavailable", err.Error())
		return
	}
	now := time.Now().UnixMilli()
	out := make(map[string]exchange.BookUpdate, len(snaps))
	for _, snap := range snaps {
		out[snap.Symbol] = exchange.BookUpdate{Snapshot: snap, Timestamp: now}
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	if !s.canRead(w) {
		return
	}
	symbol := mux.Vars(r)["symbol"]
	snap, err := s.cfg.Reader.Snapshot(r.Context(), symbol)
	if err != nil {
		respondError(w, statusFor(err), "orderbook not found", err.Error())
		return
	}
	respondJSON(w, exchange.BookUpdate{Snapshot: snap, Timestamp: time.Now().UnixMilli()})
}

func (s *Server) handleGetCurrency(w http.ResponseWriter, r *http.Request) {
	if !s.canRead(w) {
		return
	}
	balances, err := s.cfg.Reader.CurrencyBalances(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		respondError(w, statusFor(err), "balance not found", err.Error())
		return
	}
	out := make(map[string]CurrencyBalance, len(balances))
	for user, acc := range balances {
		out[user] = newCurrencyBalance(acc)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetStock(w http.ResponseWriter, r *http.Request) {
	if !s.canRead(w) {
		return
	}
	holdings, err := s.cfg.Reader.ContractBalances(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		respondError(w, statusFor(err), "balance not found", err.Error())
		return
	}
	respondJSON(w, holdings)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	s.respondTrades(w, r, func(limit int) ([]exchange.Trade, error) {
		return s.cfg.Trades.RecentTrades(mux.Vars(r)["symbol"], limit)
	})
}

func (s *Server) handleGetUserTrades(w http.ResponseWriter, r *http.Request) {
	s.respondTrades(w, r, func(limit int) ([]exchange.Trade, error) {
		return s.cfg.Trades.UserTrades(mux.Vars(r)["userId"], limit)
	})
}

func (s *Server) respondTrades(w http.ResponseWriter, r *http.Request, load func(limit int) ([]exchange.Trade, error)) {
	if s.cfg.Trades == nil {
		respondError(w, http.StatusServiceUnavailable, "trade history unavailable", errUnavailable.Error())
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			respondError(w, http.StatusBadRequest, "invalid limit", "limit must be in [1,1000]")
			return
		}
		limit = n
	}

	trades, err := load(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load trades", err.Error())
		return
	}
	out := make([]Trade, 0, len(trades))
	for _, tr := range trades {
		out = append(out, newTrade(tr))
	}
	respondJSON(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) canRead(w http.ResponseWriter) bool {
	if s.cfg.Reader == nil {
		respondError(w, http.StatusServiceUnavailable, "queries unavailable", errUnavailable.Error())
		return false
	}
	return true
}

// ==============================
// Helper Functions
// ==============================

func newTrade(tr exchange.Trade) Trade {
	return Trade{
		ID:          tr.ID,
		Symbol:      tr.Symbol,
		Outcome:     tr.Outcome,
		Price:       tr.Price,
		Quantity:    tr.Quantity,
		NotionalINR: paiseToINR(tr.Price.Cost(tr.Quantity)),
		TakerID:     tr.TakerID,
		TakerType:   tr.TakerIntent,
		MakerID:     tr.MakerID,
		MakerType:   tr.MakerIntent,
		Timestamp:   tr.Timestamp,
	}
}

// statusFor maps command errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidPrice), errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrInvalidOutcome), errors.Is(err, core.ErrInvalidIntent),
		errors.Is(err, core.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnknownAccount), errors.Is(err, core.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUserExists), errors.Is(err, core.ErrSymbolExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrInsufficientFunds), errors.Is(err, core.ErrInsufficientContracts):
		return http.StatusUnprocessableEntity
	case errors.Is(err, exchange.ErrStopped), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondStatus(w, http.StatusOK, data)
}

func respondStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	respondStatus(w, status, ErrorResponse{
		Error:   error,
		Message: message,
	})
}
