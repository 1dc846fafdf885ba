// Package round implements the phase state machine for global table rounds.
//
// The scheduler is pure: it never reads a wall clock. Time is derived from
// the consensus view via ViewToMS, so every replica computes identical
// transitions from identical views.
package round

// Phase of a table round. Phases advance strictly forward through
// Betting -> Locked -> Rolling -> Payout -> Cooldown.
type Phase uint8

const (
	Betting Phase = iota
	Locked
	Rolling
	Payout
	Cooldown
)

func (p Phase) String() string {
	switch p {
	case Betting:
		return "betting"
	case Locked:
		return "locked"
	case Rolling:
		return "rolling"
	case Payout:
		return "payout"
	case Cooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// PhaseFromByte decodes a persisted phase tag.
func PhaseFromByte(b uint8) (Phase, bool) {
	if b > uint8(Cooldown) {
		return 0, false
	}
	return Phase(b), true
}

// MSPerView converts consensus views to milliseconds.
const MSPerView uint64 = 1000

// ViewToMS maps a consensus view to the deterministic clock, saturating on
// overflow.
func ViewToMS(view uint64) uint64 {
	return saturatingMul(view, MSPerView)
}

// PhaseConfig holds per-phase durations in milliseconds. Rolling is always
// instantaneous and has no configurable duration.
type PhaseConfig struct {
	BettingMS  uint64 `json:"bettingMs"`
	LockMS     uint64 `json:"lockMs"`
	PayoutMS   uint64 `json:"payoutMs"`
	CooldownMS uint64 `json:"cooldownMs"`
}

// DefaultPhaseConfig is the production round cadence.
func DefaultPhaseConfig() PhaseConfig {
	return PhaseConfig{
		BettingMS:  30_000,
		LockMS:     5_000,
		PayoutMS:   10_000,
		CooldownMS: 5_000,
	}
}

func (c PhaseConfig) duration(p Phase) uint64 {
	switch p {
	case Betting:
		return c.BettingMS
	case Locked:
		return c.LockMS
	case Rolling:
		return 0
	case Payout:
		return c.PayoutMS
	case Cooldown:
		return c.CooldownMS
	default:
		return 0
	}
}

// Transition is the result of a CheckTransition call.
type Transition struct {
	// Advance is false for NoTransition.
	Advance bool
	Next    Phase
	// EndsAtMS is nowMS plus the next phase's duration (saturating).
	EndsAtMS uint64
}

// CheckTransition decides whether the current phase has elapsed at nowMS and,
// if so, which phase follows and when it ends. Cooldown is terminal: leaving
// it requires an explicit new-round trigger, never an automatic transition.
func (c PhaseConfig) CheckTransition(current Phase, phaseEndsAtMS, nowMS uint64) Transition {
	if nowMS < phaseEndsAtMS {
		return Transition{}
	}
	var next Phase
	switch current {
	case Betting:
		next = Locked
	case Locked:
		next = Rolling
	case Rolling:
		next = Payout
	case Payout:
		next = Cooldown
	default:
		return Transition{}
	}
	return Transition{
		Advance:  true,
		Next:     next,
		EndsAtMS: saturatingAdd(nowMS, c.duration(next)),
	}
}

// CanStartNewRound reports whether a new round may begin: either no round has
// run yet (genesis), or the current round's cooldown has elapsed.
func CanStartNewRound(roundID uint64, current Phase, phaseEndsAtMS, nowMS uint64) bool {
	if roundID == 0 {
		return true
	}
	return current == Cooldown && nowMS >= phaseEndsAtMS
}

func saturatingAdd(a, b uint64) uint64 {
	if a > ^uint64(0)-b {
		return ^uint64(0)
	}
	return a + b
}

func saturatingMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > ^uint64(0)/b {
		return ^uint64(0)
	}
	return a * b
}
