package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Card helper: rank 2-14 ace high, suit 0=c 1=d 2=h 3=s.
func tcCard(rank, suit uint8) uint8 {
	r := rank - 1
	if rank == 14 {
		r = 0
	}
	return suit*13 + r
}

func newThreeCardSession(t *testing.T, id uint64, bet uint64) *GameSession {
	t.Helper()
	session := &GameSession{ID: id, GameType: ThreeCard, Bet: bet}
	res, err := threeCardEngine{}.Init(session, testRng(t, id, 0))
	require.NoError(t, err)
	require.Equal(t, KindContinue, res.Kind)
	return session
}

func setThreeCardState(t *testing.T, session *GameSession, st *threeCardState) {
	t.Helper()
	require.NoError(t, session.SetStateBlob(st.toBlob()))
}

func TestThreeCardHandEvaluation(t *testing.T) {
	cases := []struct {
		name string
		hand [3]uint8
		rank threeCardRank
		high uint8
	}{
		{"straight flush", [3]uint8{tcCard(5, 2), tcCard(6, 2), tcCard(7, 2)}, tcStraightFlush, 7},
		{"wheel straight flush", [3]uint8{tcCard(14, 0), tcCard(2, 0), tcCard(3, 0)}, tcStraightFlush, 3},
		{"trips", [3]uint8{tcCard(9, 0), tcCard(9, 1), tcCard(9, 2)}, tcTrips, 9},
		{"straight", [3]uint8{tcCard(10, 0), tcCard(11, 1), tcCard(12, 2)}, tcStraight, 12},
		{"ace high straight", [3]uint8{tcCard(12, 0), tcCard(13, 1), tcCard(14, 2)}, tcStraight, 14},
		{"flush", [3]uint8{tcCard(2, 3), tcCard(8, 3), tcCard(13, 3)}, tcFlush, 13},
		{"pair", [3]uint8{tcCard(4, 0), tcCard(4, 1), tcCard(10, 2)}, tcPair, 4},
		{"high card", [3]uint8{tcCard(2, 0), tcCard(7, 1), tcCard(12, 2)}, tcHighCard, 12},
	}
	for _, tc := range cases {
		got := evaluateThreeCard(tc.hand)
		require.Equal(t, tc.rank, got.rank, tc.name)
		require.Equal(t, tc.high, got.kickers[0], tc.name)
	}
}

func TestThreeCardCompareUsesKickers(t *testing.T) {
	pairNines := evaluateThreeCard([3]uint8{tcCard(9, 0), tcCard(9, 1), tcCard(5, 2)})
	pairNinesBetter := evaluateThreeCard([3]uint8{tcCard(9, 2), tcCard(9, 3), tcCard(13, 0)})
	require.Greater(t, compareThreeCard(pairNinesBetter, pairNines), 0)

	queenHigh := evaluateThreeCard([3]uint8{tcCard(12, 0), tcCard(7, 1), tcCard(3, 2)})
	require.Greater(t, compareThreeCard(pairNines, queenHigh), 0)

	tied := evaluateThreeCard([3]uint8{tcCard(12, 1), tcCard(7, 2), tcCard(3, 3)})
	require.Equal(t, 0, compareThreeCard(queenHigh, tied))
}

func TestThreeCardDealerQualification(t *testing.T) {
	queenHigh := evaluateThreeCard([3]uint8{tcCard(12, 0), tcCard(5, 1), tcCard(4, 2)})
	jackHigh := evaluateThreeCard([3]uint8{tcCard(11, 0), tcCard(9, 1), tcCard(8, 2)})
	pair := evaluateThreeCard([3]uint8{tcCard(2, 0), tcCard(2, 1), tcCard(5, 2)})
	require.True(t, tcDealerQualifies(queenHigh, tcQualifierQHigh))
	require.False(t, tcDealerQualifies(jackHigh, tcQualifierQHigh))
	require.True(t, tcDealerQualifies(pair, tcQualifierQHigh))

	// Q-6-4 needs more than a bare queen.
	q53 := evaluateThreeCard([3]uint8{tcCard(12, 0), tcCard(5, 1), tcCard(3, 2)})
	q64 := evaluateThreeCard([3]uint8{tcCard(12, 0), tcCard(6, 1), tcCard(4, 2)})
	q65 := evaluateThreeCard([3]uint8{tcCard(12, 0), tcCard(6, 1), tcCard(5, 2)})
	require.False(t, tcDealerQualifies(q53, tcQualifierQ64))
	require.True(t, tcDealerQualifies(q64, tcQualifierQ64))
	require.True(t, tcDealerQualifies(q65, tcQualifierQ64))
}

func TestThreeCardSixCardBonusRanks(t *testing.T) {
	royal := [6]uint8{tcCard(10, 3), tcCard(11, 3), tcCard(12, 3), tcCard(13, 3), tcCard(14, 3), tcCard(2, 0)}
	require.Equal(t, tcBonusRoyal, tcBestFiveOfSix(royal))

	fullHouse := [6]uint8{tcCard(9, 0), tcCard(9, 1), tcCard(9, 2), tcCard(4, 0), tcCard(4, 1), tcCard(2, 3)}
	require.Equal(t, tcBonusFullHouse, tcBestFiveOfSix(fullHouse))

	wheelSF := [6]uint8{tcCard(14, 1), tcCard(2, 1), tcCard(3, 1), tcCard(4, 1), tcCard(5, 1), tcCard(13, 0)}
	require.Equal(t, tcBonusStraightFlush, tcBestFiveOfSix(wheelSF))

	nothing := [6]uint8{tcCard(2, 0), tcCard(5, 1), tcCard(7, 2), tcCard(9, 3), tcCard(11, 0), tcCard(13, 1)}
	require.Equal(t, tcBonusNone, tcBestFiveOfSix(nothing))
}

func TestThreeCardSetSideBetsMoveBalance(t *testing.T) {
	session := newThreeCardSession(t, 1, 100)

	payload := append([]byte{tcMoveSetPairplus}, u64be(50)...)
	res, err := threeCardEngine{}.ProcessMove(session, payload, testRng(t, 1, 1))
	require.NoError(t, err)
	require.Equal(t, KindContinueWithUpdate, res.Kind)
	require.Equal(t, int64(-50), res.Delta)

	payload = append([]byte{tcMoveSetPairplus}, u64be(20)...)
	res, err = threeCardEngine{}.ProcessMove(session, payload, testRng(t, 1, 2))
	require.NoError(t, err)
	require.Equal(t, int64(30), res.Delta)

	// Progressive is a fixed one-unit bet.
	payload = append([]byte{tcMoveSetProg}, u64be(999)...)
	res, err = threeCardEngine{}.ProcessMove(session, payload, testRng(t, 1, 3))
	require.NoError(t, err)
	require.Equal(t, int64(-1), res.Delta)

	st, err := parseThreeCardState(session.StateBlob)
	require.NoError(t, err)
	require.Equal(t, uint64(20), st.pairplusBet)
	require.Equal(t, uint64(1), st.progBet)
}

func TestThreeCardDealMovesToDecision(t *testing.T) {
	session := newThreeCardSession(t, 5, 100)
	res, err := threeCardEngine{}.ProcessMove(session, []byte{tcMoveDeal}, testRng(t, 5, 1))
	require.NoError(t, err)
	require.Equal(t, KindContinue, res.Kind)

	st, err := parseThreeCardState(session.StateBlob)
	require.NoError(t, err)
	require.Equal(t, uint8(tcStageDecision), st.stage)
	for _, c := range st.player {
		require.Less(t, c, uint8(52))
	}
	for _, c := range st.dealer {
		require.Equal(t, uint8(tcHiddenCard), c)
	}

	// A second deal is illegal.
	setThreeCardState(t, session, &threeCardState{stage: tcStageBetting, player: st.player, dealer: st.dealer})
	_, err = threeCardEngine{}.ProcessMove(session, []byte{tcMoveDeal}, testRng(t, 5, 2))
	require.ErrorIs(t, err, ErrInvalidMove)
}

func TestThreeCardBatchDealsAndPlacesSideBets(t *testing.T) {
	session := newThreeCardSession(t, 5, 100)
	payload := []byte{tcMoveBatch}
	payload = append(payload, u64be(25)...)
	payload = append(payload, u64be(10)...)
	payload = append(payload, u64be(1)...)

	res, err := threeCardEngine{}.ProcessMove(session, payload, testRng(t, 5, 1))
	require.NoError(t, err)
	require.Equal(t, KindContinueWithUpdate, res.Kind)
	require.Equal(t, int64(-36), res.Delta)

	st, err := parseThreeCardState(session.StateBlob)
	require.NoError(t, err)
	require.Equal(t, uint8(tcStageDecision), st.stage)
	require.Equal(t, uint64(25), st.pairplusBet)
	require.Equal(t, uint64(10), st.sixCardBet)
	require.Equal(t, uint64(1), st.progBet)

	_, err = threeCardEngine{}.ProcessMove(session, append([]byte{tcMoveBatch}, make([]byte, 10)...), testRng(t, 5, 2))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestThreeCardPlayEscrowsPlayBet(t *testing.T) {
	session := newThreeCardSession(t, 5, 100)
	_, err := threeCardEngine{}.ProcessMove(session, []byte{tcMoveDeal}, testRng(t, 5, 1))
	require.NoError(t, err)

	res, err := threeCardEngine{}.ProcessMove(session, []byte{tcMovePlay}, testRng(t, 5, 2))
	require.NoError(t, err)
	require.Equal(t, KindContinueWithUpdate, res.Kind)
	require.Equal(t, int64(-100), res.Delta)

	st, err := parseThreeCardState(session.StateBlob)
	require.NoError(t, err)
	require.Equal(t, uint8(tcStageReveal), st.stage)
}

// Reveal settlement against crafted hands: the dealer draw is replaced by
// fixing the state directly before the reveal.

func TestThreeCardRevealOutcomes(t *testing.T) {
	playerPair := [3]uint8{tcCard(9, 0), tcCard(9, 1), tcCard(5, 2)}

	// Player pair of nines against a dealt dealer hand; every branch of the
	// settlement follows from the replayed dealer cards.
	for id := uint64(1); id < 60; id++ {
		session := newThreeCardSession(t, id, 100)
		setThreeCardState(t, session, &threeCardState{
			stage:  tcStageReveal,
			player: playerPair,
			dealer: [3]uint8{tcHiddenCard, tcHiddenCard, tcHiddenCard},
		})

		deck := testRng(t, id, 1).CreateDeckExcluding(playerPair[:])
		var dealer [3]uint8
		for i := range dealer {
			c, err := DrawCard(&deck)
			require.NoError(t, err)
			dealer[i] = c
		}

		res, err := threeCardEngine{}.ProcessMove(session, []byte{tcMoveReveal}, testRng(t, id, 1))
		require.NoError(t, err)
		require.True(t, session.IsComplete)

		playerHand := evaluateThreeCard(playerPair)
		dealerHand := evaluateThreeCard(dealer)
		switch {
		case !tcDealerQualifies(dealerHand, tcQualifierQHigh):
			// Ante 1:1 plus play push: 200 + 100.
			require.Equal(t, KindWin, res.Kind)
			require.Equal(t, uint64(300), res.Amount)
		case compareThreeCard(playerHand, dealerHand) > 0:
			require.Equal(t, KindWin, res.Kind)
			require.Equal(t, uint64(400), res.Amount)
		case compareThreeCard(playerHand, dealerHand) < 0:
			require.Equal(t, KindLossPreDeducted, res.Kind)
			require.Equal(t, uint64(200), res.Amount)
		default:
			require.Equal(t, KindWin, res.Kind)
			require.Equal(t, uint64(200), res.Amount)
		}
	}
}

func TestThreeCardAnteBonusPaysOnDealerWin(t *testing.T) {
	// Player straight flush, dealer trips of aces: dealer wins the showdown
	// but the ante bonus still pays 5x.
	for id := uint64(1); id < 3000; id++ {
		player := [3]uint8{tcCard(5, 2), tcCard(6, 2), tcCard(7, 2)}
		deck := testRng(t, id, 1).CreateDeckExcluding(player[:])
		var dealer [3]uint8
		for i := range dealer {
			c, err := DrawCard(&deck)
			require.NoError(t, err)
			dealer[i] = c
		}
		dealerHand := evaluateThreeCard(dealer)
		if compareThreeCard(dealerHand, evaluateThreeCard(player)) <= 0 {
			continue
		}

		session := newThreeCardSession(t, id, 100)
		setThreeCardState(t, session, &threeCardState{
			stage:  tcStageReveal,
			player: player,
			dealer: [3]uint8{tcHiddenCard, tcHiddenCard, tcHiddenCard},
		})
		res, err := threeCardEngine{}.ProcessMove(session, []byte{tcMoveReveal}, testRng(t, id, 1))
		require.NoError(t, err)
		require.Equal(t, KindWin, res.Kind)
		require.Equal(t, uint64(500), res.Amount)
		return
	}
	t.Skip("no dealer hand beats the straight flush in the search window")
}

func TestThreeCardFoldStillResolvesPairplus(t *testing.T) {
	player := [3]uint8{tcCard(9, 0), tcCard(9, 1), tcCard(5, 2)}
	session := newThreeCardSession(t, 8, 100)
	setThreeCardState(t, session, &threeCardState{
		stage:       tcStageDecision,
		player:      player,
		dealer:      [3]uint8{tcHiddenCard, tcHiddenCard, tcHiddenCard},
		pairplusBet: 50,
	})

	// Pair pays 1:1 on Pairplus even though the ante is folded away.
	res, err := threeCardEngine{}.ProcessMove(session, []byte{tcMoveFold}, testRng(t, 8, 1))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(100), res.Amount)
	require.True(t, session.IsComplete)
}

func TestThreeCardFoldWithNothingLosesAll(t *testing.T) {
	player := [3]uint8{tcCard(2, 0), tcCard(7, 1), tcCard(12, 2)}
	session := newThreeCardSession(t, 8, 100)
	setThreeCardState(t, session, &threeCardState{
		stage:       tcStageDecision,
		player:      player,
		dealer:      [3]uint8{tcHiddenCard, tcHiddenCard, tcHiddenCard},
		pairplusBet: 50,
	})

	res, err := threeCardEngine{}.ProcessMove(session, []byte{tcMoveFold}, testRng(t, 8, 1))
	require.NoError(t, err)
	require.Equal(t, KindLossPreDeducted, res.Kind)
	require.Equal(t, uint64(150), res.Amount)
}

func TestThreeCardProgressivePaytable(t *testing.T) {
	miniRoyalSpades := &threeCardState{player: [3]uint8{tcCard(12, 3), tcCard(13, 3), tcCard(14, 3)}, progBet: 1}
	require.Equal(t, uint64(tcProgressiveJackpot), miniRoyalSpades.progressiveReturn())

	miniRoyalHearts := &threeCardState{player: [3]uint8{tcCard(12, 2), tcCard(13, 2), tcCard(14, 2)}, progBet: 1}
	require.Equal(t, uint64(tcProgressiveMiniRoyal), miniRoyalHearts.progressiveReturn())

	sf := &threeCardState{player: [3]uint8{tcCard(5, 2), tcCard(6, 2), tcCard(7, 2)}, progBet: 1}
	require.Equal(t, uint64(tcProgressiveStraightFlush), sf.progressiveReturn())

	trips := &threeCardState{player: [3]uint8{tcCard(9, 0), tcCard(9, 1), tcCard(9, 2)}, progBet: 1}
	require.Equal(t, uint64(tcProgressiveTrips), trips.progressiveReturn())

	pair := &threeCardState{player: [3]uint8{tcCard(9, 0), tcCard(9, 1), tcCard(5, 2)}, progBet: 1}
	require.Equal(t, uint64(0), pair.progressiveReturn())
}

func TestThreeCardSuperFlashBoostsReturns(t *testing.T) {
	player := [3]uint8{tcCard(9, 0), tcCard(9, 1), tcCard(5, 2)}
	session := newThreeCardSession(t, 8, 100)
	setThreeCardState(t, session, &threeCardState{
		stage:       tcStageDecision,
		player:      player,
		dealer:      [3]uint8{tcHiddenCard, tcHiddenCard, tcHiddenCard},
		pairplusBet: 50,
	})
	// One designated card in hand doubles the return.
	session.SuperMode = SuperModeState{
		IsActive:    true,
		Multipliers: []SuperMultiplier{{ID: player[0], Multiplier: 2, Type: SuperCard}},
	}

	res, err := threeCardEngine{}.ProcessMove(session, []byte{tcMoveFold}, testRng(t, 8, 1))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(200), res.Amount)
}

func TestThreeCardRejectsBadInput(t *testing.T) {
	session := newThreeCardSession(t, 1, 100)

	_, err := threeCardEngine{}.ProcessMove(session, []byte{}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidPayload)

	// Play before the deal.
	_, err = threeCardEngine{}.ProcessMove(session, []byte{tcMovePlay}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidMove)

	// Truncated side bet.
	_, err = threeCardEngine{}.ProcessMove(session, []byte{tcMoveSetPairplus, 1}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidPayload)

	// Unknown qualifier.
	_, err = threeCardEngine{}.ProcessMove(session, []byte{tcMoveSetRules, 7}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidPayload)

	// Reveal before playing.
	_, err = threeCardEngine{}.ProcessMove(session, []byte{tcMoveReveal}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidMove)

	session.StateBlob = []byte{1, 2, 3}
	_, err = threeCardEngine{}.ProcessMove(session, []byte{tcMoveDeal}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestThreeCardStateRoundTrip(t *testing.T) {
	st := &threeCardState{
		stage:       tcStageReveal,
		player:      [3]uint8{1, 2, 3},
		dealer:      [3]uint8{4, 5, 6},
		pairplusBet: 77,
		sixCardBet:  88,
		progBet:     1,
		qualifier:   tcQualifierQ64,
	}
	parsed, err := parseThreeCardState(st.toBlob())
	require.NoError(t, err)
	require.Equal(t, st, parsed)
}
