// Package api serves the settlement engine over REST and streams
// order events over WebSocket.
package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	ycrypto "github.com/yieldswap/yieldswap/pkg/crypto"
	"github.com/yieldswap/yieldswap/pkg/engine"
	"github.com/yieldswap/yieldswap/pkg/metrics"
)

// Server handles REST API and WebSocket connections.
type Server struct {
	eng     *engine.Engine
	oracle  engine.Oracle
	metrics *metrics.Metrics
	router  *mux.Router
	hub     *Hub
	signer  *ycrypto.EIP712Signer
	log     *zap.SugaredLogger
}

func NewServer(eng *engine.Engine, oracle engine.Oracle, m *metrics.Metrics, log *zap.SugaredLogger) *Server {
	s := &Server{
		eng:     eng,
		oracle:  oracle,
		metrics: m,
		router:  mux.NewRouter(),
		hub:     NewHub(log),
		signer:  ycrypto.NewEIP712Signer(ycrypto.DefaultDomain()),
		log:     log,
	}
	s.setupRoutes()

	// Engine events fan out to WebSocket subscribers and counters.
	eng.OnEvent = s.onEvent
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	api.HandleFunc("/orders/native", s.handleCreateNativeOrder).Methods("POST")
	api.HandleFunc("/orders/execute", s.handleExecuteOrder).Methods("POST")
	api.HandleFunc("/orders/fill", s.handleFillOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/orders/update", s.handleUpdateOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")

	api.HandleFunc("/pools/{token}", s.handleGetPool).Methods("GET")
	api.HandleFunc("/quote", s.handleGetQuote).Methods("GET")
	api.HandleFunc("/rebalance", s.handleRebalance).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_listening", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) onEvent(ev engine.Event) {
	if s.metrics != nil {
		switch ev.Type {
		case engine.EventOrderCreated:
			s.metrics.OrdersCreated.Inc()
		case engine.EventOrderExecuted:
			s.metrics.OrdersExecuted.Inc()
		case engine.EventOrderUpdated:
			s.metrics.OrdersUpdated.Inc()
		case engine.EventOrderCancelled:
			s.metrics.OrdersCancelled.Inc()
		}
	}

	msg := OrderEventMessage{
		Type:      string(ev.Type),
		OrderID:   ev.OrderID.Hex(),
		Timestamp: time.Now().UnixMilli(),
	}
	if ev.NewOrderID != (common.Hash{}) {
		msg.NewOrderID = ev.NewOrderID.Hex()
	}
	if len(ev.Data) > 0 {
		msg.OrderData = "0x" + hex.EncodeToString(ev.Data)
	}
	// Fan-out happens off the engine's lock path.
	go s.hub.BroadcastToChannel("orders", msg)
}

// ==============================
// REST handlers
// ==============================

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, p, err := createParamsFrom(req.Caller, req.Recipient, req.InputToken, req.OutputToken,
		req.InputAmount, req.MinReturn, req.Stoploss, req.Executor, req.ExecutionFee)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	if req.Signature != "" {
		if err := s.verifyCreateSignature(req, caller, p); err != nil {
			respondError(w, http.StatusForbidden, "signature verification failed", err.Error())
			return
		}
	}

	id, data, err := s.eng.CreateOrder(caller, p)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, CreateOrderResponse{
		OrderID:   id.Hex(),
		OrderData: "0x" + hex.EncodeToString(data),
	})
}

func (s *Server) handleCreateNativeOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateNativeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	value, err := parseAmount("value", req.Value)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}
	caller, p, err := createParamsFrom(req.Caller, req.Recipient, "", req.OutputToken,
		req.Value, req.MinReturn, req.Stoploss, req.Executor, req.ExecutionFee)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	id, data, err := s.eng.CreateNativeOrder(caller, p, value)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, CreateOrderResponse{
		OrderID:   id.Hex(),
		OrderData: "0x" + hex.EncodeToString(data),
	})
}

func (s *Server) handleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	var req ExecuteOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, id, data, err := orderRefFrom(req.Caller, req.OrderID, req.OrderData)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order reference", err.Error())
		return
	}
	handlerAddr, err := parseAddress("handler", req.Handler)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order reference", err.Error())
		return
	}
	var extra []byte
	if req.ExtraData != "" {
		if extra, err = hexBytes(req.ExtraData); err != nil {
			respondError(w, http.StatusBadRequest, "invalid extraData", err.Error())
			return
		}
	}

	if err := s.eng.ExecuteOrder(caller, id, data, handlerAddr, extra); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "executed", OrderID: id.Hex()})
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	var req FillOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, id, data, err := orderRefFrom(req.Caller, req.OrderID, req.OrderData)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order reference", err.Error())
		return
	}
	quote, err := parseAmount("quoteAmount", req.QuoteAmount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quoteAmount", err.Error())
		return
	}

	if err := s.eng.FillOrder(caller, id, data, quote); err != nil {
		respondEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.OrdersFilled.Inc()
	}
	respondJSON(w, StatusResponse{Status: "filled", OrderID: id.Hex()})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, id, data, err := orderRefFrom(req.Caller, req.OrderID, req.OrderData)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order reference", err.Error())
		return
	}

	if req.Signature != "" {
		if err := s.verifyCancelSignature(req, caller, id); err != nil {
			respondError(w, http.StatusForbidden, "signature verification failed", err.Error())
			return
		}
	}

	if err := s.eng.CancelOrder(caller, id, data); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, StatusResponse{Status: "cancelled", OrderID: id.Hex()})
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	caller, id, data, err := orderRefFrom(req.Caller, req.OrderID, req.OrderData)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order reference", err.Error())
		return
	}
	p, err := updateParamsFrom(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid update", err.Error())
		return
	}

	newID, newData, err := s.eng.UpdateOrder(caller, id, data, p)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, UpdateOrderResponse{
		OrderID:    id.Hex(),
		NewOrderID: newID.Hex(),
		OrderData:  "0x" + hex.EncodeToString(newData),
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseHash("id", mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id", err.Error())
		return
	}
	h, ok := s.eng.OrderHash(id)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, OrderStatus{OrderID: id.Hex(), DataHash: h.Hex(), Open: true})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	tok, err := parseAddress("token", mux.Vars(r)["token"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid token address", err.Error())
		return
	}

	underlying, err := s.eng.TotalUnderlying(tok)
	if err != nil {
		respondError(w, http.StatusNotFound, "pool unavailable", err.Error())
		return
	}
	respondJSON(w, PoolInfo{
		Token:           tok.Hex(),
		TotalShares:     s.eng.TotalShares(tok).String(),
		TotalUnderlying: underlying.String(),
		BufferBps:       s.eng.TokenBuffer(tok),
		Strategy:        s.eng.StrategyOf(tok).Hex(),
	})
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in, err := parseAddress("in", q.Get("in"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quote request", err.Error())
		return
	}
	out, err := parseAddress("out", q.Get("out"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quote request", err.Error())
		return
	}
	amount, err := parseAmount("amount", q.Get("amount"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid quote request", err.Error())
		return
	}

	quote, err := s.oracle.Get(in, out, amount)
	if err != nil {
		respondError(w, http.StatusNotFound, "quote unavailable", err.Error())
		return
	}
	respondJSON(w, QuoteResponse{
		AmountOut:             quote.AmountOut.String(),
		AmountOutWithSlippage: quote.AmountOutWithSlippage.String(),
	})
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	var req RebalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tokens := make([]common.Address, 0, len(req.Tokens))
	for _, t := range req.Tokens {
		tok, err := parseAddress("token", t)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid token address", err.Error())
			return
		}
		tokens = append(tokens, tok)
	}

	if err := s.eng.RebalanceTokens(tokens); err != nil {
		respondEngineError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.Rebalances.Inc()
	}
	respondJSON(w, StatusResponse{Status: "rebalanced"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{Status: "ok", Paused: s.eng.Paused()})
}

// ==============================
// Helpers
// ==============================

func createParamsFrom(caller, recipient, inputToken, outputToken, inputAmount, minReturn, stoploss, executor, executionFee string) (common.Address, engine.CreateParams, error) {
	var p engine.CreateParams

	callerAddr, err := parseAddress("caller", caller)
	if err != nil {
		return common.Address{}, p, err
	}
	p.Creator = callerAddr

	if p.Recipient, err = parseAddress("recipient", recipient); err != nil {
		return common.Address{}, p, err
	}
	if inputToken != "" {
		if p.InputToken, err = parseAddress("inputToken", inputToken); err != nil {
			return common.Address{}, p, err
		}
	}
	if p.OutputToken, err = parseAddress("outputToken", outputToken); err != nil {
		return common.Address{}, p, err
	}
	if p.InputAmount, err = parseAmount("inputAmount", inputAmount); err != nil {
		return common.Address{}, p, err
	}
	if p.MinReturn, err = parseAmount("minReturn", minReturn); err != nil {
		return common.Address{}, p, err
	}
	if p.Stoploss, err = parseAmount("stoploss", stoploss); err != nil {
		return common.Address{}, p, err
	}
	if executor != "" {
		if p.Executor, err = parseAddress("executor", executor); err != nil {
			return common.Address{}, p, err
		}
	}
	if p.ExecutionFee, err = parseAmount("executionFee", executionFee); err != nil {
		return common.Address{}, p, err
	}
	return callerAddr, p, nil
}

func updateParamsFrom(req UpdateOrderRequest) (engine.UpdateParams, error) {
	var p engine.UpdateParams
	var err error

	if p.Recipient, err = parseAddress("recipient", req.Recipient); err != nil {
		return p, err
	}
	if p.OutputToken, err = parseAddress("outputToken", req.OutputToken); err != nil {
		return p, err
	}
	if p.MinReturn, err = parseAmount("minReturn", req.MinReturn); err != nil {
		return p, err
	}
	if p.Stoploss, err = parseAmount("stoploss", req.Stoploss); err != nil {
		return p, err
	}
	if req.Executor != "" {
		if p.Executor, err = parseAddress("executor", req.Executor); err != nil {
			return p, err
		}
	}
	if p.ExecutionFee, err = parseAmount("executionFee", req.ExecutionFee); err != nil {
		return p, err
	}
	return p, nil
}

func orderRefFrom(caller, orderID, orderData string) (common.Address, engine.OrderID, []byte, error) {
	callerAddr, err := parseAddress("caller", caller)
	if err != nil {
		return common.Address{}, engine.OrderID{}, nil, err
	}
	id, err := parseHash("orderId", orderID)
	if err != nil {
		return common.Address{}, engine.OrderID{}, nil, err
	}
	data, err := hexBytes(orderData)
	if err != nil {
		return common.Address{}, engine.OrderID{}, nil, err
	}
	return callerAddr, id, data, nil
}

func (s *Server) verifyCreateSignature(req CreateOrderRequest, caller common.Address, p engine.CreateParams) error {
	nonce, err := parseAmount("nonce", req.Nonce)
	if err != nil {
		return err
	}
	sig, err := hexBytes(req.Signature)
	if err != nil {
		return err
	}
	signer, err := s.signer.RecoverCreateOrderSigner(&ycrypto.CreateOrderEIP712{
		Recipient:    p.Recipient,
		InputToken:   p.InputToken,
		OutputToken:  p.OutputToken,
		InputAmount:  p.InputAmount,
		MinReturn:    p.MinReturn,
		Stoploss:     p.Stoploss,
		Executor:     p.Executor,
		ExecutionFee: p.ExecutionFee,
		Nonce:        nonce,
	}, sig)
	if err != nil {
		return err
	}
	if signer != caller {
		return errSignerMismatch(signer, caller)
	}
	return nil
}

func (s *Server) verifyCancelSignature(req CancelOrderRequest, caller common.Address, id engine.OrderID) error {
	nonce, err := parseAmount("nonce", req.Nonce)
	if err != nil {
		return err
	}
	sig, err := hexBytes(req.Signature)
	if err != nil {
		return err
	}
	signer, err := s.signer.RecoverCancelOrderSigner(&ycrypto.CancelOrderEIP712{
		OrderID: id,
		Nonce:   nonce,
	}, sig)
	if err != nil {
		return err
	}
	if signer != caller {
		return errSignerMismatch(signer, caller)
	}
	return nil
}

func errSignerMismatch(signer, caller common.Address) error {
	return errors.New("recovered signer " + signer.Hex() + " does not match caller " + caller.Hex())
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errMsg,
		Message: message,
	})
}

// respondEngineError maps engine sentinel errors onto HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrUnauthorized), errors.Is(err, engine.ErrExecutorMismatch):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrPaused), errors.Is(err, engine.ErrOrderExists):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrZeroAmount), errors.Is(err, engine.ErrZeroAddress),
		errors.Is(err, engine.ErrInvalidToken), errors.Is(err, engine.ErrInvalidExecutionFee),
		errors.Is(err, engine.ErrOrderMismatch), errors.Is(err, engine.ErrInvalidHandler),
		errors.Is(err, engine.ErrInvalidStrategy):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrSlippage):
		status = http.StatusUnprocessableEntity
	}
	respondError(w, status, "operation failed", err.Error())
}
