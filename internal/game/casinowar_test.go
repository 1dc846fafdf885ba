package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newCasinoWarSession(t *testing.T, id uint64, bet uint64) *GameSession {
	t.Helper()
	session := &GameSession{ID: id, GameType: CasinoWar, Bet: bet}
	res, err := casinoWarEngine{}.Init(session, testRng(t, id, 0))
	require.NoError(t, err)
	require.Equal(t, KindContinue, res.Kind)
	return session
}

func u64be(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * i))
	}
	return b
}

// warDealCards replays the initial deal for the given session id and move
// count.
func warDealCards(t *testing.T, id uint64, moveCount uint32) (uint8, uint8) {
	t.Helper()
	shoe := testRng(t, id, moveCount).CreateShoe(casinoWarDecks)
	player, err := DrawCard(&shoe)
	require.NoError(t, err)
	dealer, err := DrawCard(&shoe)
	require.NoError(t, err)
	return player, dealer
}

func findWarDeal(t *testing.T, moveCount uint32, pred func(player, dealer uint8) bool) uint64 {
	t.Helper()
	for id := uint64(1); id < 5000; id++ {
		if p, d := warDealCards(t, id, moveCount); pred(p, d) {
			return id
		}
	}
	t.Fatal("no session id produces the wanted deal")
	return 0
}

func TestCasinoWarInitStartsInBettingStage(t *testing.T) {
	session := newCasinoWarSession(t, 1, 100)
	st, err := parseCasinoWarState(session.StateBlob)
	require.NoError(t, err)
	require.Equal(t, uint8(warStageBetting), st.stage)
	require.Equal(t, uint8(casinoWarHiddenCard), st.playerCard)
	require.Equal(t, uint8(casinoWarHiddenCard), st.dealerCard)
	require.Equal(t, uint64(0), st.tieBet)
}

func TestCasinoWarSetTieBetMovesBalance(t *testing.T) {
	session := newCasinoWarSession(t, 1, 100)

	payload := append([]byte{warMoveSetTieBet}, u64be(10)...)
	res, err := casinoWarEngine{}.ProcessMove(session, payload, testRng(t, 1, 1))
	require.NoError(t, err)
	require.Equal(t, KindContinueWithUpdate, res.Kind)
	require.Equal(t, int64(-10), res.Delta)

	st, err := parseCasinoWarState(session.StateBlob)
	require.NoError(t, err)
	require.Equal(t, uint64(10), st.tieBet)

	// Shrinking the bet refunds the difference.
	payload = append([]byte{warMoveSetTieBet}, u64be(4)...)
	res, err = casinoWarEngine{}.ProcessMove(session, payload, testRng(t, 1, 2))
	require.NoError(t, err)
	require.Equal(t, int64(6), res.Delta)
}

func TestCasinoWarPlayerWinPaysEvenMoney(t *testing.T) {
	id := findWarDeal(t, 1, func(p, d uint8) bool {
		return CardRankAceHigh(p) > CardRankAceHigh(d)
	})
	session := newCasinoWarSession(t, id, 100)

	res, err := casinoWarEngine{}.ProcessMove(session, []byte{warMovePlay}, testRng(t, id, 1))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(200), res.Amount)
	require.True(t, session.IsComplete)
}

func TestCasinoWarDealerWinLosesAnte(t *testing.T) {
	id := findWarDeal(t, 1, func(p, d uint8) bool {
		return CardRankAceHigh(p) < CardRankAceHigh(d)
	})
	session := newCasinoWarSession(t, id, 100)

	res, err := casinoWarEngine{}.ProcessMove(session, []byte{warMovePlay}, testRng(t, id, 1))
	require.NoError(t, err)
	require.Equal(t, KindLoss, res.Kind)
	require.True(t, session.IsComplete)
}

func TestCasinoWarTieEscrowsRaiseAndPaysTieBet(t *testing.T) {
	id := findWarDeal(t, 2, func(p, d uint8) bool {
		return CardRankAceHigh(p) == CardRankAceHigh(d)
	})
	session := newCasinoWarSession(t, id, 100)

	payload := append([]byte{warMoveSetTieBet}, u64be(10)...)
	_, err := casinoWarEngine{}.ProcessMove(session, payload, testRng(t, id, 1))
	require.NoError(t, err)

	// Raise escrow -100, tie bet pays 10 * 11 = 110.
	res, err := casinoWarEngine{}.ProcessMove(session, []byte{warMovePlay}, testRng(t, id, 2))
	require.NoError(t, err)
	require.Equal(t, KindContinueWithUpdate, res.Kind)
	require.Equal(t, int64(10), res.Delta)
	require.False(t, session.IsComplete)

	st, err := parseCasinoWarState(session.StateBlob)
	require.NoError(t, err)
	require.Equal(t, uint8(warStageWar), st.stage)
	require.Equal(t, CardRankAceHigh(st.playerCard), CardRankAceHigh(st.dealerCard))
}

func TestCasinoWarTieRejectsRaiseBeyondDeltaRange(t *testing.T) {
	id := findWarDeal(t, 1, func(p, d uint8) bool {
		return CardRankAceHigh(p) == CardRankAceHigh(d)
	})
	session := newCasinoWarSession(t, id, ^uint64(0))

	// An ante whose matching raise cannot be expressed as a signed debit
	// must fail the deal, not skip the escrow.
	_, err := casinoWarEngine{}.ProcessMove(session, []byte{warMovePlay}, testRng(t, id, 1))
	require.ErrorIs(t, err, ErrInvalidMove)
}

func TestCasinoWarSurrenderRefundsRaiseAndHalfAnte(t *testing.T) {
	id := findWarDeal(t, 1, func(p, d uint8) bool {
		return CardRankAceHigh(p) == CardRankAceHigh(d)
	})
	session := newCasinoWarSession(t, id, 100)
	_, err := casinoWarEngine{}.ProcessMove(session, []byte{warMovePlay}, testRng(t, id, 1))
	require.NoError(t, err)

	res, err := casinoWarEngine{}.ProcessMove(session, []byte{warMoveSurrender}, testRng(t, id, 2))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(150), res.Amount)
	require.True(t, session.IsComplete)
}

// warFightCards replays the war round draw for a session whose tie cards are
// known.
func warFightCards(t *testing.T, id uint64, moveCount uint32, tiePlayer, tieDealer uint8) (uint8, uint8) {
	t.Helper()
	excluded := map[uint8]int{}
	excluded[tiePlayer]++
	excluded[tieDealer]++
	shoe := testRng(t, id, moveCount).CreateShoeExcludingCounts(casinoWarDecks, excluded)
	for i := 0; i < 3; i++ {
		_, err := DrawCard(&shoe)
		require.NoError(t, err)
	}
	player, err := DrawCard(&shoe)
	require.NoError(t, err)
	dealer, err := DrawCard(&shoe)
	require.NoError(t, err)
	return player, dealer
}

func TestCasinoWarWarResolvesBothStakes(t *testing.T) {
	var sawWin, sawLoss bool
	for id := uint64(1); id < 5000 && !(sawWin && sawLoss); id++ {
		p, d := warDealCards(t, id, 1)
		if CardRankAceHigh(p) != CardRankAceHigh(d) {
			continue
		}

		session := newCasinoWarSession(t, id, 100)
		_, err := casinoWarEngine{}.ProcessMove(session, []byte{warMovePlay}, testRng(t, id, 1))
		require.NoError(t, err)

		warP, warD := warFightCards(t, id, 2, p, d)
		res, err := casinoWarEngine{}.ProcessMove(session, []byte{warMoveWar}, testRng(t, id, 2))
		require.NoError(t, err)
		require.True(t, session.IsComplete)

		switch {
		case CardRankAceHigh(warP) > CardRankAceHigh(warD):
			require.Equal(t, KindWin, res.Kind)
			require.Equal(t, uint64(300), res.Amount)
			sawWin = true
		case CardRankAceHigh(warP) < CardRankAceHigh(warD):
			require.Equal(t, KindLossPreDeducted, res.Kind)
			require.Equal(t, uint64(200), res.Amount)
			sawLoss = true
		default:
			require.Equal(t, KindWin, res.Kind)
			require.Equal(t, uint64(400), res.Amount)
		}
	}
	require.True(t, sawWin, "no war win observed")
	require.True(t, sawLoss, "no war loss observed")
}

func TestCasinoWarBatchCombinesTieBetAndDeal(t *testing.T) {
	id := findWarDeal(t, 1, func(p, d uint8) bool {
		return CardRankAceHigh(p) > CardRankAceHigh(d)
	})
	session := newCasinoWarSession(t, id, 100)

	// Tie bet placement -10 folds into the win credit of 200.
	payload := append([]byte{warMoveBatch}, u64be(10)...)
	res, err := casinoWarEngine{}.ProcessMove(session, payload, testRng(t, id, 1))
	require.NoError(t, err)
	require.Equal(t, KindContinueWithUpdate, res.Kind)
	require.Equal(t, int64(190), res.Delta)
	require.True(t, session.IsComplete)
}

func TestCasinoWarBatchWithoutTieBetStaysPlain(t *testing.T) {
	id := findWarDeal(t, 1, func(p, d uint8) bool {
		return CardRankAceHigh(p) < CardRankAceHigh(d)
	})
	session := newCasinoWarSession(t, id, 100)

	payload := append([]byte{warMoveBatch}, u64be(0)...)
	res, err := casinoWarEngine{}.ProcessMove(session, payload, testRng(t, id, 1))
	require.NoError(t, err)
	require.Equal(t, KindLoss, res.Kind)
	require.True(t, session.IsComplete)
}

func TestCasinoWarSuperMultiplierBoostsWin(t *testing.T) {
	id := findWarDeal(t, 1, func(p, d uint8) bool {
		return CardRankAceHigh(p) > CardRankAceHigh(d)
	})
	playerCard, _ := warDealCards(t, id, 1)

	session := newCasinoWarSession(t, id, 100)
	session.SuperMode = SuperModeState{
		IsActive:    true,
		Multipliers: []SuperMultiplier{{ID: playerCard, Multiplier: 3, Type: SuperCard}},
	}

	res, err := casinoWarEngine{}.ProcessMove(session, []byte{warMovePlay}, testRng(t, id, 1))
	require.NoError(t, err)
	require.Equal(t, KindWin, res.Kind)
	require.Equal(t, uint64(600), res.Amount)
}

func TestCasinoWarRejectsBadInput(t *testing.T) {
	session := newCasinoWarSession(t, 1, 100)

	_, err := casinoWarEngine{}.ProcessMove(session, []byte{}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidPayload)

	// War and surrender are only legal after a tie.
	_, err = casinoWarEngine{}.ProcessMove(session, []byte{warMoveWar}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidMove)
	_, err = casinoWarEngine{}.ProcessMove(session, []byte{warMoveSurrender}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidMove)

	// Truncated tie bet.
	_, err = casinoWarEngine{}.ProcessMove(session, []byte{warMoveSetTieBet, 1, 2}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidPayload)

	// Deal with trailing bytes.
	_, err = casinoWarEngine{}.ProcessMove(session, []byte{warMovePlay, 0}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidPayload)

	session.StateBlob = []byte{9}
	_, err = casinoWarEngine{}.ProcessMove(session, []byte{warMovePlay}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCasinoWarCompletedStageRejectsMoves(t *testing.T) {
	session := newCasinoWarSession(t, 1, 100)
	st := &casinoWarState{stage: warStageComplete, playerCard: 1, dealerCard: 2}
	require.NoError(t, session.SetStateBlob(st.toBlob()))

	_, err := casinoWarEngine{}.ProcessMove(session, []byte{warMovePlay}, testRng(t, 1, 1))
	require.ErrorIs(t, err, ErrGameAlreadyComplete)
}

func TestCasinoWarStateRoundTrip(t *testing.T) {
	st := &casinoWarState{stage: warStageWar, playerCard: 17, dealerCard: 43, tieBet: 12345}
	parsed, err := parseCasinoWarState(st.toBlob())
	require.NoError(t, err)
	require.Equal(t, st, parsed)
}
