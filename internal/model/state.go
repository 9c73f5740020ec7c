package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// PositionState is the persisted lifecycle state of the position. Emergency is
// not a state: it is the transient mode entered whenever leverage reaches the
// incentivized ratio.
type PositionState string

const (
	StateUnengaged PositionState = "UNENGAGED"
	StateSteady    PositionState = "STEADY"
	StateInTwap    PositionState = "IN_TWAP"
)

// Action is what the engine says should happen next on a venue.
type Action string

const (
	ActionNone      Action = "NONE"
	ActionRebalance Action = "REBALANCE"
	ActionIterate   Action = "ITERATE_REBALANCE"
	ActionRipcord   Action = "RIPCORD"
)

// EngineState is the mutable context owned by the orchestrator: the replaceable
// rule set, the venue registry, the cooldown clock and the TWAP flag.
type EngineState struct {
	Settings                 Settings                     `json:"settings"`
	Exchanges                map[string]*ExchangeSettings `json:"exchanges"`
	EnabledExchanges         []string                     `json:"enabled_exchanges"`
	GlobalLastTradeTimestamp time.Time                    `json:"global_last_trade_timestamp"`
	// TwapLeverageRatio is zero when no TWAP is in progress.
	TwapLeverageRatio decimal.Decimal `json:"twap_leverage_ratio"`

	// Operator changes made at runtime, replayed over the configured access
	// lists and vault balance on restart. Callers maps address to status.
	Callers        map[common.Address]bool `json:"callers,omitempty"`
	AnyoneCallable *bool                   `json:"anyone_callable,omitempty"`
	BountyBalance  *decimal.Decimal        `json:"bounty_balance,omitempty"`

	Version int64 `json:"version"`
}

func NewEngineState(settings Settings) *EngineState {
	return &EngineState{
		Settings:  settings,
		Exchanges: make(map[string]*ExchangeSettings),
	}
}

func (s *EngineState) InTwap() bool {
	return !s.TwapLeverageRatio.IsZero()
}

// Exchange returns the settings of an enabled venue.
func (s *EngineState) Exchange(name string) (*ExchangeSettings, bool) {
	ex, ok := s.Exchanges[name]
	if !ok || ex == nil || !ex.TwapMaxTradeSize.IsPositive() {
		return nil, false
	}
	return ex, true
}

// Clone returns a deep copy so callers can stage mutations and commit them only
// after every external step succeeded.
func (s *EngineState) Clone() *EngineState {
	out := *s
	out.Exchanges = make(map[string]*ExchangeSettings, len(s.Exchanges))
	for name, ex := range s.Exchanges {
		if ex == nil {
			continue
		}
		cp := *ex
		cp.LeverExchangeData = append([]byte(nil), ex.LeverExchangeData...)
		cp.DeleverExchangeData = append([]byte(nil), ex.DeleverExchangeData...)
		out.Exchanges[name] = &cp
	}
	out.EnabledExchanges = append([]string(nil), s.EnabledExchanges...)
	if s.Callers != nil {
		out.Callers = make(map[common.Address]bool, len(s.Callers))
		for c, ok := range s.Callers {
			out.Callers[c] = ok
		}
	}
	return &out
}
