// internal/oracle/oracle.go
package oracle

import (
	"errors"
	"math/big"
	"sync"

	"PerpPool/internal/fixedpoint"
)

// Rounding is a price-selection hint carried on every oracle read. Callers
// valuing assets they hold ask for Low; callers pricing obligations ask for
// High. The single-feed implementation in this package stores one price per
// token and returns it for both hints; the flag is part of the interface so
// a bid/ask feed can be dropped in without touching call sites.
type Rounding int

const (
	Low Rounding = iota
	High
)

// ErrNoPrice is returned when a token has no posted price.
var ErrNoPrice = errors.New("oracle: no price for token")

// Oracle provides normalized prices at ValuePrecision per token base unit.
type Oracle interface {
	Price(token string, r Rounding) (*big.Int, error)
	Prices(tokens []string, r Rounding) (map[string]*big.Int, error)
}

// TokenConfig describes how a token's raw feed price is normalized.
type TokenConfig struct {
	// BaseDecimals is the token's base-unit decimal count (e.g. 18 for
	// most ERC-20s, 6 for USDC-style tokens).
	BaseDecimals uint8
	// PriceDecimals is the decimal count of the raw feed price.
	PriceDecimals uint8
}

// Feed is an in-memory price store. Raw prices are posted by a keeper and
// normalized on read so that price * baseUnitAmount yields a USD value at
// ValuePrecision.
type Feed struct {
	mu      sync.RWMutex
	configs map[string]TokenConfig
	raw     map[string]*big.Int
}

func NewFeed(configs map[string]TokenConfig) *Feed {
	cfgs := make(map[string]TokenConfig, len(configs))
	for token, cfg := range configs {
		cfgs[token] = cfg
	}
	return &Feed{
		configs: cfgs,
		raw:     make(map[string]*big.Int),
	}
}

// PostPrice stores the raw feed price for a configured token. Unknown
// tokens and non-positive prices are rejected.
func (f *Feed) PostPrice(token string, raw *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.configs[token]; !ok {
		return ErrNoPrice
	}
	if raw == nil || raw.Sign() <= 0 {
		return errors.New("oracle: price must be positive")
	}
	f.raw[token] = new(big.Int).Set(raw)
	return nil
}

// Price returns the normalized price for one token:
//
//	raw * ValuePrecision / 10^BaseDecimals / 10^PriceDecimals
//
// Both divisions truncate. Normalization is exact whenever
// BaseDecimals + PriceDecimals <= 30, which holds for every supported
// token, so a raw price survives a normalize/denormalize round trip
// bit for bit.
func (f *Feed) Price(token string, r Rounding) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.priceLocked(token)
}

// Prices returns normalized prices for a batch of tokens. The read is
// all-or-nothing: one missing price fails the whole batch.
func (f *Feed) Prices(tokens []string, r Rounding) (map[string]*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]*big.Int, len(tokens))
	for _, token := range tokens {
		p, err := f.priceLocked(token)
		if err != nil {
			return nil, err
		}
		out[token] = p
	}
	return out, nil
}

func (f *Feed) priceLocked(token string) (*big.Int, error) {
	raw, ok := f.raw[token]
	if !ok {
		return nil, ErrNoPrice
	}
	cfg := f.configs[token]

	p := fixedpoint.MulDiv(raw, fixedpoint.ValuePrecision, fixedpoint.Pow10(cfg.BaseDecimals), fixedpoint.RoundDown)
	return p.Quo(p, fixedpoint.Pow10(cfg.PriceDecimals)), nil
}
