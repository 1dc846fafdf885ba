package game

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tablechain/internal/codec"
)

var allGameTypes = []GameType{
	Baccarat, Blackjack, CasinoWar, Craps, VideoPoker,
	HiLo, Roulette, SicBo, ThreeCard, UltimateHoldem,
}

func TestEveryEngineTagsItsStateBlob(t *testing.T) {
	for _, gt := range allGameTypes {
		t.Run(gt.String(), func(t *testing.T) {
			session := &GameSession{ID: 1, GameType: gt, Bet: 100}
			_, err := InitSession(session, testRng(t, 1, 0))
			require.NoError(t, err)
			require.NotEmpty(t, session.StateBlob)
			require.Equal(t, byte(codec.ProtocolVersion), session.StateBlob[0])
		})
	}
}

func TestEveryEngineRejectsWrongBlobVersion(t *testing.T) {
	for _, gt := range allGameTypes {
		t.Run(gt.String(), func(t *testing.T) {
			session := &GameSession{ID: 1, GameType: gt, Bet: 100}
			_, err := InitSession(session, testRng(t, 1, 0))
			require.NoError(t, err)
			require.False(t, session.IsComplete)

			session.StateBlob[0] = codec.ProtocolVersion + 1
			_, err = Dispatch(session, []byte{0}, testRng(t, 1, 1))
			require.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestDispatchRejectsUnknownGameAndBadPayloads(t *testing.T) {
	session := &GameSession{ID: 1, GameType: GameType(200)}
	_, err := Dispatch(session, []byte{0}, testRng(t, 1, 0))
	require.ErrorIs(t, err, ErrInvalidState)

	session = newRouletteSession(t)
	_, err = Dispatch(session, nil, testRng(t, 1, 0))
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Dispatch(session, make([]byte, MaxPayloadLength+1), testRng(t, 1, 0))
	require.ErrorIs(t, err, ErrInvalidPayload)
}
