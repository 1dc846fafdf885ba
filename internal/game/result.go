package game

// ResultKind tags a GameResult variant.
type ResultKind uint8

const (
	// KindContinue: the game goes on; no balance change.
	KindContinue ResultKind = iota
	// KindContinueWithUpdate: the game goes on after an interim balance
	// adjustment (e.g. an extra bet escrowed mid-hand).
	KindContinueWithUpdate
	// KindWin: the session ended; Amount is the TOTAL RETURN, stake
	// included, never net profit.
	KindWin
	// KindLoss: the session ended; the stake is gone.
	KindLoss
	// KindLossPreDeducted: the session ended losing, but Amount was already
	// taken mid-game, so the ledger must not deduct again.
	KindLossPreDeducted
	// KindPush: the session ended; Amount returns to the player.
	KindPush
)

func (k ResultKind) String() string {
	switch k {
	case KindContinue:
		return "continue"
	case KindContinueWithUpdate:
		return "continue_update"
	case KindWin:
		return "win"
	case KindLoss:
		return "loss"
	case KindLossPreDeducted:
		return "loss_pre_deducted"
	case KindPush:
		return "push"
	default:
		return "unknown"
	}
}

// GameResult is the outcome of one engine call, consumed by the external
// ledger and event layer.
type GameResult struct {
	Kind   ResultKind
	Amount uint64 // total return (Win), returned stake (Push), pre-deducted loss
	Delta  int64  // interim adjustment for ContinueWithUpdate; negative escrows
	Logs   []string
}

func Continue(logs ...string) GameResult {
	return GameResult{Kind: KindContinue, Logs: logs}
}

func ContinueWithUpdate(delta int64, logs ...string) GameResult {
	return GameResult{Kind: KindContinueWithUpdate, Delta: delta, Logs: logs}
}

// Win returns a terminal winning result. totalReturn includes the stake.
func Win(totalReturn uint64, logs ...string) GameResult {
	return GameResult{Kind: KindWin, Amount: totalReturn, Logs: logs}
}

func Loss(logs ...string) GameResult {
	return GameResult{Kind: KindLoss, Logs: logs}
}

func LossPreDeducted(amount uint64, logs ...string) GameResult {
	return GameResult{Kind: KindLossPreDeducted, Amount: amount, Logs: logs}
}

func Push(amount uint64, logs ...string) GameResult {
	return GameResult{Kind: KindPush, Amount: amount, Logs: logs}
}

// escrowDelta converts a wager into a negative balance delta. Amounts that do
// not fit the signed delta range are rejected rather than wrapped, since a
// wrapped delta would credit instead of debit.
func escrowDelta(amount uint64) (int64, error) {
	if amount > 1<<63-1 {
		return 0, ErrInvalidPayload
	}
	return -int64(amount), nil
}

// Terminal reports whether the result ends the session.
func (r GameResult) Terminal() bool {
	switch r.Kind {
	case KindWin, KindLoss, KindLossPreDeducted, KindPush:
		return true
	default:
		return false
	}
}

func saturatingAddU64(a, b uint64) uint64 {
	if a > ^uint64(0)-b {
		return ^uint64(0)
	}
	return a + b
}

func saturatingMulU64(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > ^uint64(0)/b {
		return ^uint64(0)
	}
	return a * b
}

func saturatingSubU64(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
