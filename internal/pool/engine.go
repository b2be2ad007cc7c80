// internal/pool/engine.go
package pool

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"PerpPool/internal/bank"
	"PerpPool/internal/event"
	"PerpPool/internal/fixedpoint"
	"PerpPool/internal/observability"
	"PerpPool/internal/oracle"
	"PerpPool/internal/shares"
)

// Output is what the engine hands downstream after every committed
// operation. The persist channel uses BLOCKING sends so a slow persistence
// worker stalls the engine rather than losing records; the publish channel
// drops on overflow since consumers can re-read the operation log.
type Output struct {
	Envelope event.Envelope
}

// Config wires the engine's collaborators. Oracle, Shares, and Bank are
// required; the rest are optional.
type Config struct {
	Oracle oracle.Oracle
	Shares shares.Ledger
	Bank   bank.Transferer
	Params Params

	Logger  zerolog.Logger
	Metrics *observability.Metrics

	PersistChan chan<- Output
	PublishChan chan<- Output

	// StartSequence resumes record numbering after the last persisted
	// operation. Zero for a fresh deployment.
	StartSequence int64

	// Now overrides the engine clock; nil means time.Now. Interest accrual
	// quantizes this to the accrual interval.
	Now func() time.Time
}

// Engine is the liquidity pool core. Every mutating operation runs under
// one exclusive lock, held across any external asset transfer, and either
// fully commits or leaves no state change behind.
type Engine struct {
	mu sync.Mutex

	oracle oracle.Oracle
	shares shares.Ledger
	bank   bank.Transferer
	params Params

	// assets holds every token ever whitelisted; entries are never
	// deleted, so delisted tokens keep withdrawing and accruing.
	assets  map[string]*assetState
	tracked []string // stable iteration order for valuation

	virtualPoolValue *big.Int

	sequence int64

	log     zerolog.Logger
	metrics *observability.Metrics

	persistChan chan<- Output
	publishChan chan<- Output

	now func() time.Time
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		oracle:           cfg.Oracle,
		shares:           cfg.Shares,
		bank:             cfg.Bank,
		params:           cfg.Params,
		assets:           make(map[string]*assetState),
		virtualPoolValue: new(big.Int),
		sequence:         cfg.StartSequence,
		log:              cfg.Logger,
		metrics:          cfg.Metrics,
		persistChan:      cfg.PersistChan,
		publishChan:      cfg.PublishChan,
		now:              cfg.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}
	for token := range cfg.Params.Tokens {
		e.trackAsset(token)
	}
	return e
}

// trackAsset creates the ledger entry for a newly whitelisted token.
// Caller holds the lock (or is the constructor).
func (e *Engine) trackAsset(token string) {
	if _, ok := e.assets[token]; ok {
		return
	}
	e.assets[token] = newAssetState()
	e.tracked = append(e.tracked, token)
}

// DepositResult reports the economic figures of a committed deposit.
type DepositResult struct {
	OperationID  uuid.UUID
	AmountIn     *big.Int // reconciled amount actually received
	FeeAmount    *big.Int
	DaoFee       *big.Int
	SharesMinted *big.Int
	BorrowIndex  *big.Int
}

// Deposit pulls amount of token from initiator and mints pool shares to
// recipient. The credited amount is reconciled against the pool's tracked
// external balance, not the declared amount, so fee-on-transfer tokens
// cannot over-credit. Prices the token at the low rounding.
func (e *Engine) Deposit(initiator, token string, amount, minSharesOut *big.Int, recipient string) (*DepositResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	a, ok := e.assets[token]
	tp := e.params.Tokens[token]
	if !ok || !tp.Listed {
		return nil, e.reject("deposit", ErrTokenNotListed)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, e.reject("deposit", ErrZeroAmount)
	}

	if err := e.bank.TransferFrom(token, initiator, amount); err != nil {
		return nil, e.reject("deposit", fmt.Errorf("pull funds: %w", err))
	}
	balance, err := e.bank.BalanceOf(token)
	if err != nil {
		return nil, e.refundDeposit(token, initiator, nil, fmt.Errorf("query balance: %w", err))
	}

	actual := new(big.Int).Sub(balance, a.trackedBalance)
	if actual.Sign() <= 0 {
		return nil, e.refundDeposit(token, initiator, actual, ErrZeroAmount)
	}

	e.accrueInterest(a)

	ps, err := e.fetchPrices()
	if err != nil {
		return nil, e.refundDeposit(token, initiator, actual, err)
	}
	price := ps.low[token]
	aumHigh := e.aum(ps.high)

	currentValue := new(big.Int).Mul(price, a.poolAmount)
	valueChange := new(big.Int).Mul(price, actual)
	rate := FeeRate(e.params.BaseFee, e.params.TaxBP, e.targetValue(token), currentValue, valueChange, true)

	feeAmount := fixedpoint.MulDiv(actual, big.NewInt(rate), fixedpoint.FeePrecision, fixedpoint.RoundDown)
	netAmount := new(big.Int).Sub(actual, feeAmount)
	daoFee := fixedpoint.MulDiv(feeAmount, big.NewInt(e.params.DaoFeeRate), fixedpoint.FeePrecision, fixedpoint.RoundDown)

	// The pool keeps everything except the protocol's cut; the absorbed
	// fee remainder accrues to existing share holders.
	poolIncrease := new(big.Int).Sub(actual, daoFee)
	if tp.MaxLiquidity != nil {
		next := new(big.Int).Add(a.poolAmount, poolIncrease)
		if next.Cmp(tp.MaxLiquidity) > 0 {
			return nil, e.refundDeposit(token, initiator, actual, ErrMaxLiquidityExceeded)
		}
	}

	netValue := new(big.Int).Mul(price, netAmount)
	supply := e.shares.TotalSupply()

	var minted *big.Int
	if supply.Sign() == 0 || aumHigh.Sign() == 0 {
		minted = fixedpoint.Div(netValue, fixedpoint.InitialSharePrice, fixedpoint.RoundDown)
	} else {
		minted = fixedpoint.MulDiv(netValue, supply, aumHigh, fixedpoint.RoundDown)
	}

	if minSharesOut != nil && minted.Cmp(minSharesOut) < 0 {
		return nil, e.refundDeposit(token, initiator, actual, ErrSlippage)
	}

	// Commit.
	a.poolAmount.Add(a.poolAmount, poolIncrease)
	a.feeReserve.Add(a.feeReserve, daoFee)
	a.trackedBalance.Set(balance)
	e.refreshVirtualValue(ps)

	if err := e.shares.Mint(recipient, minted); err != nil {
		panic(fmt.Sprintf("FATAL: share mint failed after commit: %v", err))
	}

	res := &DepositResult{
		OperationID:  uuid.New(),
		AmountIn:     actual,
		FeeAmount:    feeAmount,
		DaoFee:       daoFee,
		SharesMinted: minted,
		BorrowIndex:  new(big.Int).Set(a.borrowIndex),
	}

	e.emit(&event.LiquidityAdded{
		ID:           res.OperationID,
		Initiator:    initiator,
		Recipient:    recipient,
		Asset:        token,
		AmountIn:     res.AmountIn,
		FeeAmount:    res.FeeAmount,
		DaoFee:       res.DaoFee,
		SharesMinted: res.SharesMinted,
		BorrowIndex:  res.BorrowIndex,
	})
	e.observe("deposit", token, a, start)

	e.log.Info().
		Str("token", token).
		Str("initiator", initiator).
		Str("amount_in", actual.String()).
		Str("fee", feeAmount.String()).
		Str("shares_minted", minted.String()).
		Msg("liquidity added")

	return res, nil
}

// refundDeposit unwinds a pulled-in deposit on a post-pull failure and
// re-syncs the tracked balance from the live one.
func (e *Engine) refundDeposit(token, initiator string, actual *big.Int, cause error) error {
	a := e.assets[token]
	if actual != nil && actual.Sign() > 0 {
		if err := e.bank.Transfer(token, initiator, actual); err != nil {
			panic(fmt.Sprintf("FATAL: deposit refund failed: %v (cause: %v)", err, cause))
		}
	}
	if balance, err := e.bank.BalanceOf(token); err == nil {
		a.trackedBalance.Set(balance)
	}
	return e.reject("deposit", cause)
}

// WithdrawResult reports the economic figures of a committed withdrawal.
type WithdrawResult struct {
	OperationID  uuid.UUID
	SharesBurned *big.Int
	GrossOut     *big.Int
	NetOut       *big.Int
	FeeAmount    *big.Int
	DaoFee       *big.Int
	BorrowIndex  *big.Int
}

// Withdraw burns sharesIn from initiator and sends the underlying token to
// recipient. Prices the token at the high rounding, mirroring the deposit
// asymmetry. All accounting is committed before the outbound transfer.
func (e *Engine) Withdraw(initiator, token string, sharesIn, minAmountOut *big.Int, recipient string) (*WithdrawResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	a, ok := e.assets[token]
	if !ok {
		return nil, e.reject("withdraw", ErrUnknownToken)
	}
	if sharesIn == nil || sharesIn.Sign() <= 0 {
		return nil, e.reject("withdraw", ErrZeroAmount)
	}
	if e.shares.BalanceOf(initiator).Cmp(sharesIn) < 0 {
		return nil, e.reject("withdraw", shares.ErrInsufficientShares)
	}

	e.accrueInterest(a)

	ps, err := e.fetchPrices()
	if err != nil {
		return nil, e.reject("withdraw", err)
	}
	price := ps.high[token]
	aumHigh := e.aum(ps.high)

	supply := e.shares.TotalSupply()
	if supply.Sign() == 0 {
		return nil, e.reject("withdraw", ErrZeroAmount)
	}

	valueOwed := fixedpoint.MulDiv(sharesIn, aumHigh, supply, fixedpoint.RoundDown)
	grossOut := fixedpoint.Div(valueOwed, price, fixedpoint.RoundDown)
	if grossOut.Sign() == 0 {
		return nil, e.reject("withdraw", ErrZeroAmount)
	}

	currentValue := new(big.Int).Mul(price, a.poolAmount)
	rate := FeeRate(e.params.BaseFee, e.params.TaxBP, e.targetValue(token), currentValue, valueOwed, false)

	feeAmount := fixedpoint.MulDiv(grossOut, big.NewInt(rate), fixedpoint.FeePrecision, fixedpoint.RoundDown)
	netOut := new(big.Int).Sub(grossOut, feeAmount)
	daoFee := fixedpoint.MulDiv(feeAmount, big.NewInt(e.params.DaoFeeRate), fixedpoint.FeePrecision, fixedpoint.RoundDown)

	// The pool releases the payout plus the protocol's cut; the absorbed
	// fee remainder stays behind for share holders.
	poolDecrease := new(big.Int).Add(netOut, daoFee)
	remaining := new(big.Int).Sub(a.poolAmount, poolDecrease)
	if remaining.Cmp(a.reservedAmount) < 0 {
		return nil, e.reject("withdraw", ErrInsufficientReserve)
	}
	if minAmountOut != nil && netOut.Cmp(minAmountOut) < 0 {
		return nil, e.reject("withdraw", ErrSlippage)
	}

	// Commit accounting before the outbound transfer. The lock is the
	// primary reentrancy defense; the ordering means even a bypassed lock
	// would observe consistent state during the transfer.
	a.poolAmount.Sub(a.poolAmount, poolDecrease)
	a.feeReserve.Add(a.feeReserve, daoFee)
	e.refreshVirtualValue(ps)
	if err := e.shares.BurnFrom(initiator, sharesIn); err != nil {
		panic(fmt.Sprintf("FATAL: share burn failed after balance check: %v", err))
	}

	if err := e.bank.Transfer(token, recipient, netOut); err != nil {
		// Compensating rollback: the outbound transfer is the only
		// effect that can still fail.
		a.poolAmount.Add(a.poolAmount, poolDecrease)
		a.feeReserve.Sub(a.feeReserve, daoFee)
		e.refreshVirtualValue(ps)
		if mintErr := e.shares.Mint(initiator, sharesIn); mintErr != nil {
			panic(fmt.Sprintf("FATAL: rollback re-mint failed: %v", mintErr))
		}
		return nil, e.reject("withdraw", fmt.Errorf("payout transfer: %w", err))
	}
	if balance, berr := e.bank.BalanceOf(token); berr == nil {
		a.trackedBalance.Set(balance)
	}

	res := &WithdrawResult{
		OperationID:  uuid.New(),
		SharesBurned: new(big.Int).Set(sharesIn),
		GrossOut:     grossOut,
		NetOut:       netOut,
		FeeAmount:    feeAmount,
		DaoFee:       daoFee,
		BorrowIndex:  new(big.Int).Set(a.borrowIndex),
	}

	e.emit(&event.LiquidityRemoved{
		ID:           res.OperationID,
		Initiator:    initiator,
		Recipient:    recipient,
		Asset:        token,
		SharesBurned: res.SharesBurned,
		GrossOut:     res.GrossOut,
		NetOut:       res.NetOut,
		FeeAmount:    res.FeeAmount,
		DaoFee:       res.DaoFee,
		BorrowIndex:  res.BorrowIndex,
	})
	e.observe("withdraw", token, a, start)

	e.log.Info().
		Str("token", token).
		Str("initiator", initiator).
		Str("shares_burned", sharesIn.String()).
		Str("net_out", netOut.String()).
		Str("fee", feeAmount.String()).
		Msg("liquidity removed")

	return res, nil
}

// ReserveAsset earmarks amount of token against leveraged exposure.
// Called by the leverage module, never by liquidity providers.
func (e *Engine) ReserveAsset(token string, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.assets[token]
	if !ok {
		return e.reject("reserve", ErrUnknownToken)
	}
	if amount == nil || amount.Sign() <= 0 {
		return e.reject("reserve", ErrZeroAmount)
	}

	next := new(big.Int).Add(a.reservedAmount, amount)
	if next.Cmp(a.poolAmount) > 0 {
		return e.reject("reserve", ErrInsufficientReserve)
	}
	a.reservedAmount.Set(next)

	e.emit(&event.AssetReserved{
		ID:       uuid.New(),
		Asset:    token,
		Amount:   new(big.Int).Set(amount),
		Reserved: new(big.Int).Set(a.reservedAmount),
	})
	return nil
}

// ReleaseAsset returns previously earmarked capital to the free reserve.
func (e *Engine) ReleaseAsset(token string, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.assets[token]
	if !ok {
		return e.reject("release", ErrUnknownToken)
	}
	if amount == nil || amount.Sign() <= 0 {
		return e.reject("release", ErrZeroAmount)
	}
	if amount.Cmp(a.reservedAmount) > 0 {
		return e.reject("release", ErrInsufficientReserve)
	}
	a.reservedAmount.Sub(a.reservedAmount, amount)

	e.emit(&event.AssetReleased{
		ID:       uuid.New(),
		Asset:    token,
		Amount:   new(big.Int).Set(amount),
		Reserved: new(big.Int).Set(a.reservedAmount),
	})
	return nil
}

// WithdrawFee sends a token's whole accrued protocol fee reserve to
// recipient. Only the configured fee distributor may call it.
func (e *Engine) WithdrawFee(caller, token, recipient string) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.params.FeeDistributor || e.params.FeeDistributor == "" {
		return nil, e.reject("withdraw_fee", ErrUnauthorized)
	}
	a, ok := e.assets[token]
	if !ok {
		return nil, e.reject("withdraw_fee", ErrUnknownToken)
	}

	amount := new(big.Int).Set(a.feeReserve)
	if amount.Sign() == 0 {
		return amount, nil
	}
	a.feeReserve.SetInt64(0)

	if err := e.bank.Transfer(token, recipient, amount); err != nil {
		a.feeReserve.Set(amount)
		return nil, e.reject("withdraw_fee", fmt.Errorf("fee transfer: %w", err))
	}
	if balance, berr := e.bank.BalanceOf(token); berr == nil {
		a.trackedBalance.Set(balance)
	}

	e.emit(&event.FeeWithdrawn{
		ID:        uuid.New(),
		Recipient: recipient,
		Asset:     token,
		Amount:    new(big.Int).Set(amount),
	})

	e.log.Info().
		Str("token", token).
		Str("recipient", recipient).
		Str("amount", amount.String()).
		Msg("fee reserve withdrawn")

	return amount, nil
}

// UpdateParams swaps the whole parameter set under the operation lock.
// New tokens get ledger entries; removed tokens stay tracked so existing
// holders can still withdraw. The engine trusts the set as given —
// validation is the configuration authority's job.
func (e *Engine) UpdateParams(p Params) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.params = p
	for token := range p.Tokens {
		e.trackAsset(token)
	}

	listed := make([]string, 0, len(p.Tokens))
	for token, tp := range p.Tokens {
		if tp.Listed {
			listed = append(listed, token)
		}
	}
	e.emit(&event.ParamsUpdated{ID: uuid.New(), Tokens: listed})
}

// PoolView is a valuation snapshot for queries.
type PoolView struct {
	AumLow           *big.Int `json:"aum_low"`
	AumHigh          *big.Int `json:"aum_high"`
	VirtualPoolValue *big.Int `json:"virtual_pool_value"`
	ShareSupply      *big.Int `json:"share_supply"`
	Tokens           []string `json:"tokens"`
}

// Pool reports the pool's current valuation at both roundings.
func (e *Engine) Pool() (*PoolView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ps, err := e.fetchPrices()
	if err != nil {
		return nil, err
	}
	return &PoolView{
		AumLow:           e.aum(ps.low),
		AumHigh:          e.aum(ps.high),
		VirtualPoolValue: new(big.Int).Set(e.virtualPoolValue),
		ShareSupply:      e.shares.TotalSupply(),
		Tokens:           append([]string(nil), e.tracked...),
	}, nil
}

// Asset reports one token's ledger.
func (e *Engine) Asset(token string) (*AssetView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.assets[token]
	if !ok {
		return nil, ErrUnknownToken
	}
	v := a.view(token, e.params.Tokens[token].Listed)
	return &v, nil
}

// VirtualPoolValue returns the stored smoothed valuation.
func (e *Engine) VirtualPoolValue() *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return new(big.Int).Set(e.virtualPoolValue)
}

// emit assigns the next sequence and hands the record downstream.
func (e *Engine) emit(payload event.Event) {
	e.sequence++
	out := Output{Envelope: event.Envelope{
		Sequence:    e.sequence,
		OperationID: payload.OperationID(),
		EventType:   payload.EventType(),
		Token:       payload.Token(),
		Timestamp:   e.now(),
		Payload:     payload,
	}}

	if e.persistChan != nil {
		select {
		case e.persistChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PersistBackpressure.Inc()
			}
			e.persistChan <- out
		}
	}

	if e.publishChan != nil {
		select {
		case e.publishChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}
}

func (e *Engine) reject(op string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, rejectReason(err)).Inc()
	}
	e.log.Warn().Str("op", op).Err(err).Msg("operation rejected")
	return err
}

func (e *Engine) observe(op, token string, a *assetState, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpsApplied.WithLabelValues(op).Inc()
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	e.metrics.PoolAmount.WithLabelValues(token).Set(observability.BigFloat(a.poolAmount))
	e.metrics.FeeReserve.WithLabelValues(token).Set(observability.BigFloat(a.feeReserve))
	e.metrics.BorrowIndex.WithLabelValues(token).Set(observability.BigFloat(a.borrowIndex))
	e.metrics.VirtualPoolValue.Set(observability.BigFloat(e.virtualPoolValue))
	e.metrics.ShareSupply.Set(observability.BigFloat(e.shares.TotalSupply()))
	e.metrics.EngineSequence.Set(float64(e.sequence))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, ErrTokenNotListed):
		return "not_listed"
	case errors.Is(err, ErrUnknownToken):
		return "unknown_token"
	case errors.Is(err, ErrSlippage):
		return "slippage"
	case errors.Is(err, ErrMaxLiquidityExceeded):
		return "max_liquidity"
	case errors.Is(err, ErrInsufficientReserve):
		return "insufficient_reserve"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, shares.ErrInsufficientShares):
		return "insufficient_shares"
	default:
		return "external"
	}
}
