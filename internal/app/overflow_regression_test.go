package app

import (
	"encoding/binary"
	"testing"

	"tablechain/internal/game"
)

func TestDeposit_BalanceOverflowRejected(t *testing.T) {
	c := newTestChain(t)
	mustOk(t, c.deliver(t, txBytes(t, "casino/deposit", map[string]any{"player": "alice", "amount": ^uint64(0)})))
	mustFail(t, c.deliver(t, txBytes(t, "casino/deposit", map[string]any{"player": "alice", "amount": 1})))
	if got := c.a.st.Balance("alice"); got != ^uint64(0) {
		t.Fatalf("balance=%d want=max", got)
	}
}

func TestStartGame_InsufficientFundsLeavesNoSession(t *testing.T) {
	c := newTestChain(t)
	mustOk(t, c.deliver(t, txBytes(t, "casino/deposit", map[string]any{"player": "alice", "amount": 50})))
	mustFail(t, c.deliver(t, txBytes(t, "casino/start_game", map[string]any{
		"player": "alice", "gameType": uint8(game.HiLo), "bet": 100,
	})))
	if len(c.a.st.Sessions) != 0 {
		t.Fatalf("session created despite failed stake debit")
	}
	if c.a.st.NextSessionID != 1 {
		t.Fatalf("session id burned by failed tx")
	}
	if got := c.a.st.Balance("alice"); got != 50 {
		t.Fatalf("balance=%d want=50", got)
	}
}

// Chip conservation across a full session: everything debited minus
// everything credited must equal the house take implied by the result kinds.
func TestChipConservation_HiLoSessions(t *testing.T) {
	c := newTestChain(t)
	const bankroll = uint64(10_000)
	mustOk(t, c.deliver(t, txBytes(t, "casino/deposit", map[string]any{"player": "alice", "amount": bankroll})))

	for i := 0; i < 20; i++ {
		res := mustOk(t, c.deliver(t, txBytes(t, "casino/start_game", map[string]any{
			"player": "alice", "gameType": uint8(game.HiLo), "bet": 100,
		})))
		id := parseU64(t, attr(findEvent(res.Events, "GameStarted"), "sessionId"))

		for step := 0; step < 10; step++ {
			if c.a.st.Sessions[id].IsComplete {
				break
			}
			payload := []byte{0} // guess higher
			if step >= 2 {
				payload = []byte{2} // cash out after two correct calls
			}
			r := c.deliver(t, txBytes(t, "casino/move", map[string]any{
				"player": "alice", "sessionId": id, "payload": payload,
			}))
			if r.Code != 0 {
				// Impossible guess (king high): cash out instead.
				mustOk(t, c.deliver(t, txBytes(t, "casino/move", map[string]any{
					"player": "alice", "sessionId": id, "payload": []byte{2},
				})))
			}
		}
		if !c.a.st.Sessions[id].IsComplete {
			t.Fatalf("session %d did not terminate", id)
		}
	}

	// Balance plus nothing-in-flight must never exceed what wins justify:
	// with every session terminal, no chips are left escrowed.
	for id, sess := range c.a.st.Sessions {
		if !sess.IsComplete {
			t.Fatalf("session %d left open", id)
		}
	}
	if got := c.a.st.Balance("alice"); got > bankroll*3 {
		t.Fatalf("implausible balance growth: %d", got)
	}
}

// A batch of wagers settles in one move, so its whole total must clear the
// ledger: an unfunded batch fails outright instead of resolving for free.
func TestRouletteBatch_UnfundedWagerRejected(t *testing.T) {
	c := newTestChain(t)
	mustOk(t, c.deliver(t, txBytes(t, "casino/deposit", map[string]any{"player": "alice", "amount": 100})))

	res := mustOk(t, c.deliver(t, txBytes(t, "casino/start_game", map[string]any{
		"player": "alice", "gameType": uint8(game.Roulette), "bet": 1,
	})))
	id := parseU64(t, attr(findEvent(res.Events, "GameStarted"), "sessionId"))
	if got := c.a.st.Balance("alice"); got != 99 {
		t.Fatalf("balance=%d want=99 after stake debit", got)
	}

	const wager = uint64(1_000_000)
	batch := make([]byte, 12)
	batch[0] = 4 // batch opcode
	batch[1] = 1 // one entry
	batch[2] = 0 // straight bet
	batch[3] = 17
	binary.BigEndian.PutUint64(batch[4:], wager)

	mustFail(t, c.deliver(t, txBytes(t, "casino/move", map[string]any{
		"player": "alice", "sessionId": id, "payload": batch,
	})))
	if got := c.a.st.Balance("alice"); got != 99 {
		t.Fatalf("balance=%d want=99 after rejected batch", got)
	}
	sess := c.a.st.Sessions[id]
	if sess.IsComplete || sess.MoveCount != 0 {
		t.Fatalf("rejected batch left residue: complete=%t moves=%d", sess.IsComplete, sess.MoveCount)
	}

	// Funded, the same batch settles and the ledger moves by exactly the
	// escrowed total plus whatever the spin returns.
	mustOk(t, c.deliver(t, txBytes(t, "casino/deposit", map[string]any{"player": "alice", "amount": 2 * wager})))
	before := c.a.st.Balance("alice")
	moveRes := mustOk(t, c.deliver(t, txBytes(t, "casino/move", map[string]any{
		"player": "alice", "sessionId": id, "payload": batch,
	})))
	settled := findEvent(moveRes.Events, "GameSettled")
	if settled == nil {
		t.Fatalf("expected GameSettled event")
	}
	want := before - wager
	switch kind := attr(settled, "kind"); kind {
	case "win":
		want += parseU64(t, attr(settled, "amount"))
	case "loss_pre_deducted":
	default:
		t.Fatalf("kind=%q want win or loss_pre_deducted", kind)
	}
	if got := c.a.st.Balance("alice"); got != want {
		t.Fatalf("balance=%d want=%d after funded batch", got, want)
	}
	if !c.a.st.Sessions[id].IsComplete {
		t.Fatalf("session should be complete after the batch settles")
	}
}
