package app

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"

	"tablechain/internal/codec"
	"tablechain/internal/fair"
	"tablechain/internal/round"
	"tablechain/internal/state"
)

func execRoundStart(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.RoundStartTx
	if err := json.Unmarshal(env.Value, &msg); err != nil {
		return errTx("bad round/start value")
	}
	if msg.View < st.Round.View {
		return errTx(fmt.Sprintf("view regression: %d < %d", msg.View, st.Round.View))
	}
	if len(st.ChainSecret) == 0 {
		if len(msg.Seed) == 0 {
			return errTx("missing entropy seed for first round")
		}
		secret := fair.NewHashChain(msg.Seed).Secret()
		st.ChainSecret = secret[:]
	}

	now := round.ViewToMS(msg.View)
	ph, ok := round.PhaseFromByte(st.Round.Phase)
	if !ok {
		return errTx("corrupt round phase")
	}
	if !round.CanStartNewRound(st.Round.ID, ph, st.Round.EndsAtMS, now) {
		return errTx("round in progress")
	}

	st.Round = state.Round{
		ID:       st.Round.ID + 1,
		Phase:    uint8(round.Betting),
		EndsAtMS: satAddU64(now, st.Phases.BettingMS),
		View:     msg.View,
	}
	return okEvent("RoundStarted", map[string]string{
		"roundId":  fmt.Sprintf("%d", st.Round.ID),
		"endsAtMs": fmt.Sprintf("%d", st.Round.EndsAtMS),
		"view":     fmt.Sprintf("%d", msg.View),
	})
}

// execRoundTick advances the scheduler as far as the view's clock allows.
// Rolling lasts zero ms, so one tick can step Locked -> Rolling -> Payout;
// the commit publishes on entering Locked and the reveal on entering Rolling.
func execRoundTick(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.RoundTickTx
	if err := json.Unmarshal(env.Value, &msg); err != nil {
		return errTx("bad round/tick value")
	}
	if st.Round.ID == 0 {
		return errTx("no active round")
	}
	if msg.View < st.Round.View {
		return errTx(fmt.Sprintf("view regression: %d < %d", msg.View, st.Round.View))
	}
	ph, ok := round.PhaseFromByte(st.Round.Phase)
	if !ok {
		return errTx("corrupt round phase")
	}

	now := round.ViewToMS(msg.View)
	st.Round.View = msg.View

	var steps []string
	for {
		tr := st.Phases.CheckTransition(ph, st.Round.EndsAtMS, now)
		if !tr.Advance {
			break
		}
		ph = tr.Next
		st.Round.Phase = uint8(ph)
		st.Round.EndsAtMS = tr.EndsAtMS
		steps = append(steps, ph.String())

		switch ph {
		case round.Locked:
			chain, err := roundChain(st)
			if err != nil {
				return errTx(err.Error())
			}
			pair := chain.Generate(st.Round.ID)
			st.Round.Commit = pair.Commit[:]
		case round.Rolling:
			chain, err := roundChain(st)
			if err != nil {
				return errTx(err.Error())
			}
			reveal := chain.DeriveReveal(st.Round.ID)
			if _, err := fair.VerifySlices(st.Round.Commit, reveal[:]); err != nil {
				return errTx("reveal does not match published commit: " + err.Error())
			}
			st.Round.Reveal = reveal[:]
		}
	}

	attrs := map[string]string{
		"roundId":     fmt.Sprintf("%d", st.Round.ID),
		"phase":       ph.String(),
		"endsAtMs":    fmt.Sprintf("%d", st.Round.EndsAtMS),
		"view":        fmt.Sprintf("%d", msg.View),
		"transitions": strings.Join(steps, ","),
	}
	if len(st.Round.Commit) > 0 {
		attrs["commit"] = hex.EncodeToString(st.Round.Commit)
	}
	if len(st.Round.Reveal) > 0 {
		attrs["reveal"] = hex.EncodeToString(st.Round.Reveal)
	}
	return okEvent("RoundTicked", attrs)
}

func roundChain(st *state.State) (*fair.HashChain, error) {
	if len(st.ChainSecret) != fair.CommitRevealLen {
		return nil, fmt.Errorf("hash-chain secret not initialized")
	}
	var secret [fair.CommitRevealLen]byte
	copy(secret[:], st.ChainSecret)
	return fair.FromSecret(secret), nil
}

func satAddU64(a, b uint64) uint64 {
	if a > ^uint64(0)-b {
		return ^uint64(0)
	}
	return a + b
}
