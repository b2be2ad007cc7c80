// internal/server/http.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"PerpPool/internal/observability"
	"PerpPool/internal/oracle"
	"PerpPool/internal/persistence"
	"PerpPool/internal/pool"
	"PerpPool/internal/shares"
)

// Server exposes the pool engine over a JSON HTTP API. Big integers ride
// as decimal strings in both directions.
type Server struct {
	addr    string
	engine  *pool.Engine
	feed    *oracle.Feed
	log     *persistence.OperationLogWriter // nil when persistence is disabled
	health  *observability.HealthChecker
	metrics *observability.Metrics
	logger  zerolog.Logger
	router  *mux.Router
}

type Deps struct {
	Engine  *pool.Engine
	Feed    *oracle.Feed
	OpLog   *persistence.OperationLogWriter
	Health  *observability.HealthChecker
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

func New(addr string, deps *Deps) *Server {
	s := &Server{
		addr:    addr,
		engine:  deps.Engine,
		feed:    deps.Feed,
		log:     deps.OpLog,
		health:  deps.Health,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/healthz", s.health.LivenessHandler).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.health.ReadinessHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/deposit", s.handleDeposit).Methods(http.MethodPost)
	api.HandleFunc("/withdraw", s.handleWithdraw).Methods(http.MethodPost)
	api.HandleFunc("/fees/withdraw", s.handleWithdrawFee).Methods(http.MethodPost)
	api.HandleFunc("/reserve", s.handleReserve).Methods(http.MethodPost)
	api.HandleFunc("/release", s.handleRelease).Methods(http.MethodPost)
	api.HandleFunc("/prices", s.handlePostPrice).Methods(http.MethodPost)
	api.HandleFunc("/pool", s.handlePool).Methods(http.MethodGet)
	api.HandleFunc("/assets/{token}", s.handleAsset).Methods(http.MethodGet)
	api.HandleFunc("/operations", s.handleOperations).Methods(http.MethodGet)

	s.router = r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.logger.Info().Str("addr", s.addr).Msg("api server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
		if s.metrics != nil {
			s.metrics.APIDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
		}
	})
}

// --- Handlers ---

type depositRequest struct {
	Initiator    string `json:"initiator"`
	Token        string `json:"token"`
	Amount       string `json:"amount"`
	MinSharesOut string `json:"min_shares_out,omitempty"`
	Recipient    string `json:"recipient"`
}

type depositResponse struct {
	OperationID  string `json:"operation_id"`
	AmountIn     string `json:"amount_in"`
	FeeAmount    string `json:"fee_amount"`
	DaoFee       string `json:"dao_fee"`
	SharesMinted string `json:"shares_minted"`
	BorrowIndex  string `json:"borrow_index"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "deposit", http.StatusBadRequest, err)
		return
	}
	amount, err := parseBig(req.Amount)
	if err != nil {
		s.writeError(w, "deposit", http.StatusBadRequest, err)
		return
	}
	minShares, err := parseBigOptional(req.MinSharesOut)
	if err != nil {
		s.writeError(w, "deposit", http.StatusBadRequest, err)
		return
	}

	recipient := req.Recipient
	if recipient == "" {
		recipient = req.Initiator
	}

	res, err := s.engine.Deposit(req.Initiator, req.Token, amount, minShares, recipient)
	if err != nil {
		s.writeError(w, "deposit", statusFor(err), err)
		return
	}

	s.writeJSON(w, "deposit", http.StatusOK, depositResponse{
		OperationID:  res.OperationID.String(),
		AmountIn:     res.AmountIn.String(),
		FeeAmount:    res.FeeAmount.String(),
		DaoFee:       res.DaoFee.String(),
		SharesMinted: res.SharesMinted.String(),
		BorrowIndex:  res.BorrowIndex.String(),
	})
}

type withdrawRequest struct {
	Initiator    string `json:"initiator"`
	Token        string `json:"token"`
	SharesIn     string `json:"shares_in"`
	MinAmountOut string `json:"min_amount_out,omitempty"`
	Recipient    string `json:"recipient"`
}

type withdrawResponse struct {
	OperationID  string `json:"operation_id"`
	SharesBurned string `json:"shares_burned"`
	GrossOut     string `json:"gross_out"`
	NetOut       string `json:"net_out"`
	FeeAmount    string `json:"fee_amount"`
	DaoFee       string `json:"dao_fee"`
	BorrowIndex  string `json:"borrow_index"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "withdraw", http.StatusBadRequest, err)
		return
	}
	sharesIn, err := parseBig(req.SharesIn)
	if err != nil {
		s.writeError(w, "withdraw", http.StatusBadRequest, err)
		return
	}
	minOut, err := parseBigOptional(req.MinAmountOut)
	if err != nil {
		s.writeError(w, "withdraw", http.StatusBadRequest, err)
		return
	}

	recipient := req.Recipient
	if recipient == "" {
		recipient = req.Initiator
	}

	res, err := s.engine.Withdraw(req.Initiator, req.Token, sharesIn, minOut, recipient)
	if err != nil {
		s.writeError(w, "withdraw", statusFor(err), err)
		return
	}

	s.writeJSON(w, "withdraw", http.StatusOK, withdrawResponse{
		OperationID:  res.OperationID.String(),
		SharesBurned: res.SharesBurned.String(),
		GrossOut:     res.GrossOut.String(),
		NetOut:       res.NetOut.String(),
		FeeAmount:    res.FeeAmount.String(),
		DaoFee:       res.DaoFee.String(),
		BorrowIndex:  res.BorrowIndex.String(),
	})
}

type feeWithdrawRequest struct {
	Caller    string `json:"caller"`
	Token     string `json:"token"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleWithdrawFee(w http.ResponseWriter, r *http.Request) {
	var req feeWithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "fees", http.StatusBadRequest, err)
		return
	}

	amount, err := s.engine.WithdrawFee(req.Caller, req.Token, req.Recipient)
	if err != nil {
		s.writeError(w, "fees", statusFor(err), err)
		return
	}
	s.writeJSON(w, "fees", http.StatusOK, map[string]string{"amount": amount.String()})
}

type reserveRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	s.handleReserveChange(w, r, "reserve", s.engine.ReserveAsset)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	s.handleReserveChange(w, r, "release", s.engine.ReleaseAsset)
}

func (s *Server) handleReserveChange(w http.ResponseWriter, r *http.Request, endpoint string, op func(string, *big.Int) error) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, endpoint, http.StatusBadRequest, err)
		return
	}
	amount, err := parseBig(req.Amount)
	if err != nil {
		s.writeError(w, endpoint, http.StatusBadRequest, err)
		return
	}
	if err := op(req.Token, amount); err != nil {
		s.writeError(w, endpoint, statusFor(err), err)
		return
	}
	s.writeJSON(w, endpoint, http.StatusOK, map[string]string{"status": "ok"})
}

type postPriceRequest struct {
	Token string `json:"token"`
	Price string `json:"price"` // raw feed price, feed decimals
}

func (s *Server) handlePostPrice(w http.ResponseWriter, r *http.Request) {
	var req postPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "prices", http.StatusBadRequest, err)
		return
	}
	raw, err := parseBig(req.Price)
	if err != nil {
		s.writeError(w, "prices", http.StatusBadRequest, err)
		return
	}
	if err := s.feed.PostPrice(req.Token, raw); err != nil {
		s.writeError(w, "prices", http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, "prices", http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Pool()
	if err != nil {
		s.writeError(w, "pool", http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, "pool", http.StatusOK, map[string]interface{}{
		"aum_low":            view.AumLow.String(),
		"aum_high":           view.AumHigh.String(),
		"virtual_pool_value": view.VirtualPoolValue.String(),
		"share_supply":       view.ShareSupply.String(),
		"tokens":             view.Tokens,
	})
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	view, err := s.engine.Asset(token)
	if err != nil {
		s.writeError(w, "asset", statusFor(err), err)
		return
	}
	s.writeJSON(w, "asset", http.StatusOK, map[string]interface{}{
		"token":             view.Token,
		"listed":            view.Listed,
		"pool_amount":       view.PoolAmount.String(),
		"reserved_amount":   view.ReservedAmount.String(),
		"guaranteed_value":  view.GuaranteedValue.String(),
		"fee_reserve":       view.FeeReserve.String(),
		"borrow_index":      view.BorrowIndex.String(),
		"last_accrual_time": view.LastAccrualTime,
	})
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	if s.log == nil {
		s.writeError(w, "operations", http.StatusNotFound, errors.New("operation log disabled"))
		return
	}

	from := int64(0)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, "operations", http.StatusBadRequest, err)
			return
		}
		from = parsed
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 1000 {
			s.writeError(w, "operations", http.StatusBadRequest, errors.New("limit must be in [1, 1000]"))
			return
		}
		limit = parsed
	}

	rows, err := s.log.LoadOperationsFrom(r.Context(), from, limit)
	if err != nil {
		s.writeError(w, "operations", http.StatusInternalServerError, err)
		return
	}

	type opDTO struct {
		Sequence    int64           `json:"sequence"`
		EventType   string          `json:"event_type"`
		OperationID string          `json:"operation_id"`
		Token       string          `json:"token,omitempty"`
		Payload     json.RawMessage `json:"payload"`
		Timestamp   time.Time       `json:"timestamp"`
	}
	out := make([]opDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, opDTO{
			Sequence:    row.Sequence,
			EventType:   row.EventType,
			OperationID: row.OperationID,
			Token:       row.Token,
			Payload:     json.RawMessage(row.Payload),
			Timestamp:   row.Timestamp,
		})
	}
	s.writeJSON(w, "operations", http.StatusOK, out)
}

// --- Helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, endpoint string, status int, v interface{}) {
	if s.metrics != nil {
		s.metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, endpoint string, status int, err error) {
	if s.metrics != nil {
		s.metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// statusFor maps the engine's error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pool.ErrZeroAmount),
		errors.Is(err, pool.ErrSlippage),
		errors.Is(err, pool.ErrMaxLiquidityExceeded),
		errors.Is(err, pool.ErrTokenNotListed),
		errors.Is(err, shares.ErrInsufficientShares):
		return http.StatusBadRequest
	case errors.Is(err, pool.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, pool.ErrInsufficientReserve):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("missing amount")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New("invalid integer: " + s)
	}
	return v, nil
}

func parseBigOptional(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseBig(s)
}
