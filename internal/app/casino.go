package app

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"

	abci "github.com/cometbft/cometbft/abci/types"

	"tablechain/internal/codec"
	"tablechain/internal/game"
	"tablechain/internal/round"
	"tablechain/internal/state"
)

func execRegister(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.CasinoRegisterTx
	if err := json.Unmarshal(env.Value, &msg); err != nil {
		return errTx("bad casino/register value")
	}
	if msg.Player == "" {
		return errTx("missing player")
	}
	if existing, ok := st.Players[msg.Player]; ok && len(existing.PubKey) > 0 {
		return errTx("player already registered")
	}
	if len(msg.PubKey) > 0 {
		if len(msg.PubKey) != ed25519.PublicKeySize {
			return errTx(fmt.Sprintf("pubKey must be %d bytes", ed25519.PublicKeySize))
		}
		if err := requireRegisterAuth(env, msg); err != nil {
			return errTx(err.Error())
		}
	}
	p := st.PlayerFor(msg.Player)
	p.Name = msg.Name
	p.PubKey = msg.PubKey
	return okEvent("PlayerRegistered", map[string]string{
		"player": msg.Player,
		"name":   msg.Name,
	})
}

func execDeposit(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.CasinoDepositTx
	if err := json.Unmarshal(env.Value, &msg); err != nil {
		return errTx("bad casino/deposit value")
	}
	if msg.Player == "" || msg.Amount == 0 {
		return errTx("missing player/amount")
	}
	if err := st.Credit(msg.Player, msg.Amount); err != nil {
		return errTx(err.Error())
	}
	return okEvent("ChipsDeposited", map[string]string{
		"player": msg.Player,
		"amount": fmt.Sprintf("%d", msg.Amount),
	})
}

func execStartGame(st *state.State, env codec.TxEnvelope, height int64) *abci.ExecTxResult {
	var msg codec.CasinoStartGameTx
	if err := json.Unmarshal(env.Value, &msg); err != nil {
		return errTx("bad casino/start_game value")
	}
	if msg.Player == "" {
		return errTx("missing player")
	}
	gt, ok := game.GameTypeFromByte(msg.GameType)
	if !ok {
		return errTx("unknown game type")
	}
	if err := requirePlayerAuth(st, env, msg.Player); err != nil {
		return errTx(err.Error())
	}
	cfg := st.ConfigFor(gt)
	if !cfg.Enabled {
		return errTx("game disabled: " + gt.String())
	}
	if !cfg.ValidateBet(msg.Bet) {
		return errTx(fmt.Sprintf("bet outside table limits: %d not in [%d, %d]", msg.Bet, cfg.MinBet, cfg.MaxBet))
	}
	// While a round is live, new sessions only open when bets are accepted.
	if st.Round.ID != 0 {
		if ph, ok := round.PhaseFromByte(st.Round.Phase); ok && (ph == round.Locked || ph == round.Rolling) {
			return errTx("betting locked")
		}
	}
	if err := st.Debit(msg.Player, msg.Bet); err != nil {
		return errTx(err.Error())
	}

	id := st.NextSessionID
	st.NextSessionID++
	sess := &game.GameSession{
		ID:           id,
		Player:       msg.Player,
		GameType:     gt,
		Bet:          msg.Bet,
		CreatedAt:    uint64(height),
		IsTournament: msg.TournamentID != 0,
		TournamentID: msg.TournamentID,
	}

	rng := game.NewRng(st.Round.Reveal, id, 0)
	p := st.PlayerFor(msg.Player)
	if p.Aura >= game.MaxAuraMeter {
		sess.SuperMode = game.SuperModeState{
			IsActive:    true,
			Multipliers: game.GenerateMultipliers(gt, rng, 0),
		}
		p.Aura = 0
	}
	sess.SuperMode.AuraMeter = p.Aura

	res, err := game.InitSession(sess, rng)
	if err != nil {
		return errTx("start rejected: " + err.Error())
	}
	if res.Terminal() {
		sess.IsComplete = true
	}
	if err := applyResult(st, sess.Player, res); err != nil {
		return errTx(err.Error())
	}
	st.Sessions[id] = sess
	if sess.IsComplete {
		if err := settleTerminal(st, sess, res); err != nil {
			return errTx(err.Error())
		}
	}

	out := okEvent("GameStarted", map[string]string{
		"sessionId": fmt.Sprintf("%d", id),
		"player":    msg.Player,
		"gameType":  gt.String(),
		"bet":       fmt.Sprintf("%d", msg.Bet),
		"super":     fmt.Sprintf("%t", sess.SuperMode.IsActive),
	})
	out.Log = strings.Join(res.Logs, "; ")
	if sess.IsComplete {
		out.Events = append(out.Events, settledEvent(sess, res).Events...)
	}
	return out
}

func execMove(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.CasinoMoveTx
	if err := json.Unmarshal(env.Value, &msg); err != nil {
		return errTx("bad casino/move value")
	}
	if msg.Player == "" {
		return errTx("missing player")
	}
	sess, ok := st.Sessions[msg.SessionID]
	if !ok {
		return errTx("session not found")
	}
	if sess.Player != msg.Player {
		return errTx("not your session")
	}
	if err := requirePlayerAuth(st, env, msg.Player); err != nil {
		return errTx(err.Error())
	}
	if sess.IsComplete {
		return errTx("session already complete")
	}

	// The move counter advances before the RNG derives, so every move draws
	// from a fresh stream even when the round reveal is unchanged.
	sess.MoveCount++
	rng := game.NewRng(st.Round.Reveal, sess.ID, sess.MoveCount)
	res, err := game.Dispatch(sess, msg.Payload, rng)
	if err != nil {
		return errTx("move rejected: " + err.Error())
	}
	if err := applyResult(st, sess.Player, res); err != nil {
		return errTx(err.Error())
	}
	if sess.IsComplete {
		if err := settleTerminal(st, sess, res); err != nil {
			return errTx(err.Error())
		}
	}

	out := okEvent("MoveApplied", map[string]string{
		"sessionId": fmt.Sprintf("%d", sess.ID),
		"player":    msg.Player,
		"moveCount": fmt.Sprintf("%d", sess.MoveCount),
		"kind":      res.Kind.String(),
		"complete":  fmt.Sprintf("%t", sess.IsComplete),
	})
	out.Log = strings.Join(res.Logs, "; ")
	if sess.IsComplete {
		out.Events = append(out.Events, settledEvent(sess, res).Events...)
	}
	return out
}

func execToggleShield(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.CasinoToggleShieldTx
	if err := json.Unmarshal(env.Value, &msg); err != nil {
		return errTx("bad casino/toggle_shield value")
	}
	if msg.Player == "" {
		return errTx("missing player")
	}
	if err := requirePlayerAuth(st, env, msg.Player); err != nil {
		return errTx(err.Error())
	}
	p := st.PlayerFor(msg.Player)
	p.Shield = !p.Shield
	return okEvent("ShieldToggled", map[string]string{
		"player":  msg.Player,
		"enabled": fmt.Sprintf("%t", p.Shield),
	})
}

func execToggleDouble(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.CasinoToggleDoubleTx
	if err := json.Unmarshal(env.Value, &msg); err != nil {
		return errTx("bad casino/toggle_double value")
	}
	if msg.Player == "" {
		return errTx("missing player")
	}
	if err := requirePlayerAuth(st, env, msg.Player); err != nil {
		return errTx(err.Error())
	}
	p := st.PlayerFor(msg.Player)
	p.Double = !p.Double
	return okEvent("DoubleToggled", map[string]string{
		"player":  msg.Player,
		"enabled": fmt.Sprintf("%t", p.Double),
	})
}

func execSetConfig(st *state.State, env codec.TxEnvelope) *abci.ExecTxResult {
	var msg codec.CasinoSetConfigTx
	if err := json.Unmarshal(env.Value, &msg); err != nil {
		return errTx("bad casino/set_config value")
	}
	gt, ok := game.GameTypeFromByte(msg.GameType)
	if !ok {
		return errTx("unknown game type")
	}
	if msg.MinBet == 0 || msg.MaxBet < msg.MinBet {
		return errTx("invalid bet limits")
	}
	st.Configs[msg.GameType] = game.GameConfig{
		Enabled: msg.Enabled,
		MinBet:  msg.MinBet,
		MaxBet:  msg.MaxBet,
	}
	return okEvent("ConfigUpdated", map[string]string{
		"gameType": gt.String(),
		"enabled":  fmt.Sprintf("%t", msg.Enabled),
		"minBet":   fmt.Sprintf("%d", msg.MinBet),
		"maxBet":   fmt.Sprintf("%d", msg.MaxBet),
	})
}

// applyResult posts one engine result to the chip ledger. Negative deltas
// escrow additional wagers; Win and Push amounts are total returns, so they
// credit in full with no further stake accounting.
func applyResult(st *state.State, addr string, res game.GameResult) error {
	if res.Delta < 0 {
		if err := st.Debit(addr, uint64(-res.Delta)); err != nil {
			return err
		}
	} else if res.Delta > 0 {
		if err := st.Credit(addr, uint64(res.Delta)); err != nil {
			return err
		}
	}
	switch res.Kind {
	case game.KindWin, game.KindPush:
		if res.Amount > 0 {
			return st.Credit(addr, res.Amount)
		}
	}
	return nil
}

// settleTerminal applies the player modifiers that ride on session outcomes:
// double pays the profit a second time, shield refunds half the stake on a
// loss, and losing without super mode builds the aura meter.
func settleTerminal(st *state.State, sess *game.GameSession, res game.GameResult) error {
	p := st.PlayerFor(sess.Player)
	switch res.Kind {
	case game.KindWin:
		if p.Double {
			p.Double = false
			if res.Amount > sess.Bet {
				if err := st.Credit(sess.Player, res.Amount-sess.Bet); err != nil {
					return err
				}
			}
		}
	case game.KindLoss, game.KindLossPreDeducted:
		if p.Shield {
			p.Shield = false
			if refund := sess.Bet / 2; refund > 0 {
				if err := st.Credit(sess.Player, refund); err != nil {
					return err
				}
			}
		}
		if !sess.SuperMode.IsActive && p.Aura < game.MaxAuraMeter {
			p.Aura++
		}
	}
	return nil
}

func settledEvent(sess *game.GameSession, res game.GameResult) *abci.ExecTxResult {
	return okEvent("GameSettled", map[string]string{
		"sessionId": fmt.Sprintf("%d", sess.ID),
		"player":    sess.Player,
		"gameType":  sess.GameType.String(),
		"kind":      res.Kind.String(),
		"amount":    fmt.Sprintf("%d", res.Amount),
	})
}
