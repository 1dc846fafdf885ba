package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newUTHSession(t *testing.T, id uint64, bet uint64) *GameSession {
	t.Helper()
	session := &GameSession{ID: id, GameType: UltimateHoldem, Bet: bet}
	res, err := ultimateHoldemEngine{}.Init(session, testRng(t, id, 0))
	require.NoError(t, err)
	require.Equal(t, KindContinueWithUpdate, res.Kind)
	require.Equal(t, -int64(bet), res.Delta)
	return session
}

func setUTHState(t *testing.T, session *GameSession, st *uthState) {
	t.Helper()
	require.NoError(t, session.SetStateBlob(st.toBlob()))
}

// uthRiverState builds a fully dealt hand parked at the river so a bet or
// fold immediately settles.
func uthRiverState(hole, dealer [2]uint8, community [5]uint8) *uthState {
	return &uthState{
		stage:     uthStageRiver,
		hole:      hole,
		dealer:    dealer,
		community: community,
	}
}

func TestUTHEvalFive(t *testing.T) {
	cases := []struct {
		name string
		hand [5]uint8
		rank uthRank
		high uint8
	}{
		{"royal flush", [5]uint8{tcCard(14, 2), tcCard(13, 2), tcCard(12, 2), tcCard(11, 2), tcCard(10, 2)}, uthRoyalFlush, 14},
		{"straight flush", [5]uint8{tcCard(5, 0), tcCard(6, 0), tcCard(7, 0), tcCard(8, 0), tcCard(9, 0)}, uthStraightFlush, 9},
		{"wheel straight flush", [5]uint8{tcCard(14, 3), tcCard(2, 3), tcCard(3, 3), tcCard(4, 3), tcCard(5, 3)}, uthStraightFlush, 5},
		{"quads", [5]uint8{tcCard(9, 0), tcCard(9, 1), tcCard(9, 2), tcCard(9, 3), tcCard(4, 0)}, uthQuads, 9},
		{"full house", [5]uint8{tcCard(8, 0), tcCard(8, 1), tcCard(8, 2), tcCard(3, 0), tcCard(3, 1)}, uthFullHouse, 8},
		{"flush", [5]uint8{tcCard(2, 1), tcCard(6, 1), tcCard(9, 1), tcCard(11, 1), tcCard(13, 1)}, uthFlush, 13},
		{"wheel straight", [5]uint8{tcCard(14, 0), tcCard(2, 1), tcCard(3, 2), tcCard(4, 3), tcCard(5, 0)}, uthStraight, 5},
		{"trips", [5]uint8{tcCard(7, 0), tcCard(7, 1), tcCard(7, 2), tcCard(12, 3), tcCard(2, 0)}, uthTrips, 7},
		{"two pair", [5]uint8{tcCard(10, 0), tcCard(10, 1), tcCard(4, 2), tcCard(4, 3), tcCard(13, 0)}, uthTwoPair, 10},
		{"pair", [5]uint8{tcCard(6, 0), tcCard(6, 1), tcCard(12, 2), tcCard(9, 3), tcCard(2, 0)}, uthPair, 6},
		{"high card", [5]uint8{tcCard(2, 0), tcCard(5, 1), tcCard(8, 2), tcCard(10, 3), tcCard(13, 0)}, uthHighCard, 13},
	}
	for _, tc := range cases {
		got := uthEvalFive(tc.hand)
		require.Equal(t, tc.rank, got.rank, tc.name)
		require.Equal(t, tc.high, got.kickers[0], tc.name)
	}
}

func TestUTHCompareUsesKickers(t *testing.T) {
	lowKicker := uthEvalFive([5]uint8{tcCard(9, 0), tcCard(9, 1), tcCard(7, 2), tcCard(5, 3), tcCard(2, 0)})
	highKicker := uthEvalFive([5]uint8{tcCard(9, 2), tcCard(9, 3), tcCard(14, 0), tcCard(5, 1), tcCard(2, 1)})
	require.Greater(t, uthCompare(highKicker, lowKicker), 0)

	quadKicker := uthEvalFive([5]uint8{tcCard(9, 0), tcCard(9, 1), tcCard(9, 2), tcCard(9, 3), tcCard(14, 0)})
	quadLow := uthEvalFive([5]uint8{tcCard(9, 0), tcCard(9, 1), tcCard(9, 2), tcCard(9, 3), tcCard(2, 0)})
	require.Greater(t, uthCompare(quadKicker, quadLow), 0)
}

func TestUTHBestOfSeven(t *testing.T) {
	// Seven cards holding a hidden straight: the best five must be found
	// across hole and board.
	seven := [7]uint8{
		tcCard(5, 0), tcCard(6, 1),
		tcCard(7, 2), tcCard(8, 3), tcCard(9, 0), tcCard(9, 1), tcCard(2, 2),
	}
	best := uthBestOfSeven(seven)
	require.Equal(t, uthStraight, best.rank)
	require.Equal(t, uint8(9), best.kickers[0])
}

func TestUTHInitEscrowsBlind(t *testing.T) {
	session := newUTHSession(t, 1, 100)
	st, err := parseUTHState(session.StateBlob)
	require.NoError(t, err)
	require.Equal(t, uint8(uthStageBetting), st.stage)
	require.Equal(t, uint8(uthHiddenCard), st.hole[0])
}

func TestUTHSideBetDeltas(t *testing.T) {
	session := newUTHSession(t, 1, 100)

	res, err := ultimateHoldemEngine{}.ProcessMove(session, append([]byte{uthMoveSetTrips}, u64be(50)...), testRng(t, 1, 1))
	require.NoError(t, err)
	require.Equal(t, int64(-50), res.Delta)

	res, err = ultimateHoldemEngine{}.ProcessMove(session, append([]byte{uthMoveSetSix}, u64be(30)...), testRng(t, 1, 2))
	require.NoError(t, err)
	require.Equal(t, int64(-30), res.Delta)

	// Shrinking a side bet refunds the difference.
	res, err = ultimateHoldemEngine{}.ProcessMove(session, append([]byte{uthMoveSetTrips}, u64be(20)...), testRng(t, 1, 3))
	require.NoError(t, err)
	require.Equal(t, int64(30), res.Delta)

	st, err := parseUTHState(session.StateBlob)
	require.NoError(t, err)
	require.Equal(t, uint64(20), st.tripsBet)
	require.Equal(t, uint64(30), st.sixBet)
}

func TestUTHDealAdvancesToPreflop(t *testing.T) {
	session := newUTHSession(t, 5, 100)
	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveDeal}, testRng(t, 5, 1))
	require.NoError(t, err)
	require.Equal(t, KindContinue, res.Kind)

	st, err := parseUTHState(session.StateBlob)
	require.NoError(t, err)
	require.Equal(t, uint8(uthStagePreflop), st.stage)
	seen := map[uint8]bool{}
	all := append(append(append([]uint8{}, st.hole[:]...), st.dealer[:]...), st.community[:]...)
	for _, c := range all {
		require.Less(t, c, uint8(DeckSize))
		require.False(t, seen[c])
		seen[c] = true
	}

	// Side bets and re-deals are locked out after the deal.
	_, err = ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveDeal}, testRng(t, 5, 2))
	require.ErrorIs(t, err, ErrInvalidMove)
	_, err = ultimateHoldemEngine{}.ProcessMove(session, append([]byte{uthMoveSetTrips}, u64be(10)...), testRng(t, 5, 2))
	require.ErrorIs(t, err, ErrInvalidMove)
}

func TestUTHBatchSetsBetsAndDeals(t *testing.T) {
	session := newUTHSession(t, 5, 100)
	payload := []byte{uthMoveBatch}
	payload = append(payload, u64be(50)...)
	payload = append(payload, u64be(0)...)
	payload = append(payload, u64be(0)...)
	res, err := ultimateHoldemEngine{}.ProcessMove(session, payload, testRng(t, 5, 1))
	require.NoError(t, err)
	require.Equal(t, KindContinueWithUpdate, res.Kind)
	require.Equal(t, int64(-50), res.Delta)

	st, err := parseUTHState(session.StateBlob)
	require.NoError(t, err)
	require.Equal(t, uint8(uthStagePreflop), st.stage)
	require.Equal(t, uint64(50), st.tripsBet)

	session = newUTHSession(t, 5, 100)
	_, err = ultimateHoldemEngine{}.ProcessMove(session, append([]byte{uthMoveBatch}, make([]byte, 10)...), testRng(t, 5, 1))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestUTHCheckFlowAndBetEscrow(t *testing.T) {
	session := newUTHSession(t, 7, 100)
	_, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveDeal}, testRng(t, 7, 1))
	require.NoError(t, err)

	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveCheck}, testRng(t, 7, 2))
	require.NoError(t, err)
	require.Equal(t, KindContinue, res.Kind)

	res, err = ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveCheck}, testRng(t, 7, 3))
	require.NoError(t, err)
	require.Equal(t, KindContinue, res.Kind)

	res, err = ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveBet1x}, testRng(t, 7, 4))
	require.NoError(t, err)
	require.Equal(t, KindContinueWithUpdate, res.Kind)
	require.Equal(t, int64(-100), res.Delta)

	st, err := parseUTHState(session.StateBlob)
	require.NoError(t, err)
	require.Equal(t, uint8(uthStageReveal), st.stage)
	require.Equal(t, uint8(1), st.playMult)

	res, err = ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveReveal}, testRng(t, 7, 5))
	require.NoError(t, err)
	require.True(t, session.IsComplete)
	require.Contains(t, []ResultKind{KindWin, KindLossPreDeducted}, res.Kind)
}

func TestUTHBetStageLegality(t *testing.T) {
	session := newUTHSession(t, 7, 100)
	_, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveDeal}, testRng(t, 7, 1))
	require.NoError(t, err)

	// 2x is a flop bet, folding waits for the river.
	_, err = ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveBet2x}, testRng(t, 7, 2))
	require.ErrorIs(t, err, ErrInvalidMove)
	_, err = ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveFold}, testRng(t, 7, 2))
	require.ErrorIs(t, err, ErrInvalidMove)

	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveBet4x}, testRng(t, 7, 2))
	require.NoError(t, err)
	require.Equal(t, int64(-400), res.Delta)
}

func TestUTHRevealPlayerFlushWins(t *testing.T) {
	session := newUTHSession(t, 2, 100)
	st := uthRiverState(
		[2]uint8{tcCard(14, 2), tcCard(7, 2)},
		[2]uint8{tcCard(13, 1), tcCard(13, 3)},
		[5]uint8{tcCard(2, 2), tcCard(5, 2), tcCard(9, 2), tcCard(13, 0), tcCard(3, 1)},
	)
	setUTHState(t, session, st)

	_, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveBet1x}, testRng(t, 2, 1))
	require.NoError(t, err)

	// Flush over trips against a qualified dealer: ante 2x, play 2x, blind
	// pays 3:2 on the flush.
	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveReveal}, testRng(t, 2, 2))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(650), res.Amount)
	require.True(t, session.IsComplete)
}

func TestUTHRevealDealerWinsQualified(t *testing.T) {
	session := newUTHSession(t, 2, 100)
	st := uthRiverState(
		[2]uint8{tcCard(3, 2), tcCard(5, 1)},
		[2]uint8{tcCard(14, 0), tcCard(14, 1)},
		[5]uint8{tcCard(2, 0), tcCard(7, 1), tcCard(9, 3), tcCard(11, 2), tcCard(4, 0)},
	)
	setUTHState(t, session, st)

	_, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveBet1x}, testRng(t, 2, 1))
	require.NoError(t, err)

	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveReveal}, testRng(t, 2, 2))
	require.NoError(t, err)
	require.Equal(t, KindLossPreDeducted, res.Kind)
	require.Equal(t, uint64(300), res.Amount)
}

func TestUTHRevealDealerNoQualifyAntePushes(t *testing.T) {
	session := newUTHSession(t, 2, 100)
	st := uthRiverState(
		[2]uint8{tcCard(13, 1), tcCard(3, 2)},
		[2]uint8{tcCard(12, 0), tcCard(5, 1)},
		[5]uint8{tcCard(2, 0), tcCard(7, 1), tcCard(9, 3), tcCard(11, 2), tcCard(4, 0)},
	)
	setUTHState(t, session, st)

	_, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveBet1x}, testRng(t, 2, 1))
	require.NoError(t, err)

	// King high beats queen high; ante pushes on an unqualified dealer and
	// the blind pushes below a straight.
	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveReveal}, testRng(t, 2, 2))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(400), res.Amount)
}

func TestUTHRevealBoardPlaysPush(t *testing.T) {
	session := newUTHSession(t, 2, 100)
	st := uthRiverState(
		[2]uint8{tcCard(2, 0), tcCard(3, 1)},
		[2]uint8{tcCard(2, 2), tcCard(3, 3)},
		[5]uint8{tcCard(5, 0), tcCard(6, 1), tcCard(7, 3), tcCard(8, 2), tcCard(9, 0)},
	)
	setUTHState(t, session, st)

	_, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveBet1x}, testRng(t, 2, 1))
	require.NoError(t, err)

	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveReveal}, testRng(t, 2, 2))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(300), res.Amount)
}

func TestUTHTripsBetPaysOnMainLoss(t *testing.T) {
	session := newUTHSession(t, 2, 100)
	st := uthRiverState(
		[2]uint8{tcCard(2, 2), tcCard(7, 2)},
		[2]uint8{tcCard(11, 0), tcCard(11, 1)},
		[5]uint8{tcCard(2, 0), tcCard(2, 1), tcCard(9, 3), tcCard(11, 2), tcCard(4, 0)},
	)
	st.tripsBet = 50
	setUTHState(t, session, st)

	_, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveBet1x}, testRng(t, 2, 1))
	require.NoError(t, err)

	// Trips jacks beat trips deuces, but the trips bet rides on the
	// player's own hand.
	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveReveal}, testRng(t, 2, 2))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(200), res.Amount)
}

func TestUTHSixCardBonus(t *testing.T) {
	session := newUTHSession(t, 2, 100)
	st := uthRiverState(
		[2]uint8{tcCard(14, 2), tcCard(7, 2)},
		[2]uint8{tcCard(13, 1), tcCard(13, 3)},
		[5]uint8{tcCard(2, 2), tcCard(5, 2), tcCard(9, 2), tcCard(13, 0), tcCard(3, 1)},
	)
	st.sixBet = 30
	setUTHState(t, session, st)

	_, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveBet1x}, testRng(t, 2, 1))
	require.NoError(t, err)

	// Main hand returns 650; the flush adds 30 at 15:1 plus the stake.
	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveReveal}, testRng(t, 2, 2))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(650+480), res.Amount)
}

func TestUTHProgressiveRoyal(t *testing.T) {
	session := newUTHSession(t, 2, 100)
	st := uthRiverState(
		[2]uint8{tcCard(14, 2), tcCard(13, 2)},
		[2]uint8{tcCard(3, 0), tcCard(4, 1)},
		[5]uint8{tcCard(12, 2), tcCard(11, 2), tcCard(10, 2), tcCard(2, 0), tcCard(7, 0)},
	)
	st.progBet = 1
	setUTHState(t, session, st)

	_, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveBet1x}, testRng(t, 2, 1))
	require.NoError(t, err)

	// Royal flush: ante pushes (dealer never pairs), play 2x, blind 500:1,
	// progressive jackpot at 10000 for-one.
	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveReveal}, testRng(t, 2, 2))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(100+200+50100+10000), res.Amount)
}

func TestUTHFoldResolvesSideBets(t *testing.T) {
	session := newUTHSession(t, 2, 100)
	st := uthRiverState(
		[2]uint8{tcCard(2, 2), tcCard(7, 2)},
		[2]uint8{tcCard(11, 0), tcCard(11, 1)},
		[5]uint8{tcCard(2, 0), tcCard(2, 1), tcCard(9, 3), tcCard(11, 2), tcCard(4, 0)},
	)
	st.tripsBet = 50
	setUTHState(t, session, st)

	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveFold}, testRng(t, 2, 1))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(200), res.Amount)
	require.True(t, session.IsComplete)
}

func TestUTHFoldWithNothingForfeitsAll(t *testing.T) {
	session := newUTHSession(t, 2, 100)
	st := uthRiverState(
		[2]uint8{tcCard(3, 2), tcCard(5, 1)},
		[2]uint8{tcCard(14, 0), tcCard(14, 1)},
		[5]uint8{tcCard(2, 0), tcCard(7, 1), tcCard(9, 3), tcCard(11, 2), tcCard(4, 0)},
	)
	setUTHState(t, session, st)

	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveFold}, testRng(t, 2, 1))
	require.NoError(t, err)
	require.Equal(t, KindLossPreDeducted, res.Kind)
	require.Equal(t, uint64(200), res.Amount)
}

func TestUTHBlitzBoostsReturns(t *testing.T) {
	session := newUTHSession(t, 2, 100)
	st := uthRiverState(
		[2]uint8{tcCard(14, 2), tcCard(7, 2)},
		[2]uint8{tcCard(13, 1), tcCard(13, 3)},
		[5]uint8{tcCard(2, 2), tcCard(5, 2), tcCard(9, 2), tcCard(13, 0), tcCard(3, 1)},
	)
	setUTHState(t, session, st)
	session.SuperMode = SuperModeState{
		IsActive:    true,
		Multipliers: []SuperMultiplier{{ID: tcCard(14, 2), Multiplier: 3, Type: SuperCard}},
	}

	_, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveBet1x}, testRng(t, 2, 1))
	require.NoError(t, err)

	// One blitz card in the player's seven doubles every return.
	res, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveReveal}, testRng(t, 2, 2))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(1300), res.Amount)
}

func TestUTHBadInputs(t *testing.T) {
	session := newUTHSession(t, 1, 100)

	_, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveCheck}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidMove)

	_, err = ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveSetTrips, 1, 2}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveDeal, 0}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidPayload)

	session.StateBlob = []byte{1, 2, 3}
	_, err = ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveDeal}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestUTHCompleteStageRejectsMoves(t *testing.T) {
	session := newUTHSession(t, 1, 100)
	st := &uthState{stage: uthStageDone}
	setUTHState(t, session, st)
	_, err := ultimateHoldemEngine{}.ProcessMove(session, []byte{uthMoveReveal}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrGameAlreadyComplete)
}

func TestUTHStateRoundTrip(t *testing.T) {
	st := &uthState{
		stage:     uthStageFlop,
		hole:      [2]uint8{5, 17},
		dealer:    [2]uint8{30, 44},
		community: [5]uint8{2, 9, 21, 33, 50},
		playMult:  0,
		tripsBet:  25,
		sixBet:    10,
		progBet:   1,
	}
	got, err := parseUTHState(st.toBlob())
	require.NoError(t, err)
	require.Equal(t, st, got)
}
