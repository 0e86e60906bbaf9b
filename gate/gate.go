// Package gate decides whether a trade may execute. It owns no state; every
// input comes from configuration, the control store or the circuit breakers.
package gate

// Code identifies why a trade was denied.
type Code string

const (
	CodeAllowed              Code = ""
	CodePaperTradingDisabled Code = "paper_trading_disabled"
	CodeKillSwitch           Code = "kill_switch"
	CodeEmergencyKill        Code = "emergency_kill"
	CodePaused               Code = "paused"
)

const (
	ReasonPaperTradingDisabled = "paper trading is disabled"
	ReasonKillSwitch           = "kill switch is active"
	ReasonEmergencyKill        = "emergency kill switch is active"
	ReasonPaused               = "trading is paused"
)

// Inputs are the flags the gate evaluates.
type Inputs struct {
	PaperTrading  bool // paper trading enabled
	KillSwitch    bool // static kill switch from configuration
	EmergencyKill bool // persisted emergency kill flag
	Paused        bool // persisted pause or tripped breaker
}

type Decision struct {
	Allowed bool
	Code    Code
	Reason  string
}

// MayExecuteTrade evaluates the inputs in a fixed order and reports the
// first reason that blocks trading.
func MayExecuteTrade(in Inputs) Decision {
	switch {
	case !in.PaperTrading:
		return deny(CodePaperTradingDisabled, ReasonPaperTradingDisabled)
	case in.KillSwitch:
		return deny(CodeKillSwitch, ReasonKillSwitch)
	case in.EmergencyKill:
		return deny(CodeEmergencyKill, ReasonEmergencyKill)
	case in.Paused:
		return deny(CodePaused, ReasonPaused)
	}
	return Decision{Allowed: true}
}

func deny(c Code, reason string) Decision {
	return Decision{Allowed: false, Code: c, Reason: reason}
}
