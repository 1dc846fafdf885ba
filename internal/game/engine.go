package game

import "tablechain/internal/codec"

// Engine is the capability contract every rule engine implements. Init may
// deal opening cards and can resolve immediately (single-deal games);
// ProcessMove applies one untrusted binary payload to the session.
//
// Engines mutate only the session they are given and perform no I/O, so
// callers can process independent sessions in parallel.
type Engine interface {
	Init(session *GameSession, rng *Rng) (GameResult, error)
	ProcessMove(session *GameSession, payload []byte, rng *Rng) (GameResult, error)
}

// stateBlobBody strips the version tag every engine writes as the first byte
// of its state blob. A blob tagged with any other version refuses to decode.
func stateBlobBody(blob []byte) ([]byte, error) {
	vp, err := codec.StripVersionHeader(blob)
	if err != nil {
		return nil, ErrInvalidState
	}
	return vp.Payload, nil
}

var engines = map[GameType]Engine{
	Baccarat:       baccaratEngine{},
	Blackjack:      blackjackEngine{},
	CasinoWar:      casinoWarEngine{},
	Craps:          crapsEngine{},
	VideoPoker:     videoPokerEngine{},
	HiLo:           hiLoEngine{},
	Roulette:       rouletteEngine{},
	SicBo:          sicBoEngine{},
	ThreeCard:      threeCardEngine{},
	UltimateHoldem: ultimateHoldemEngine{},
}

// EngineFor looks up the engine owning a game type.
func EngineFor(gameType GameType) (Engine, bool) {
	e, ok := engines[gameType]
	return e, ok
}

// InitSession runs the owning engine's Init hook on a fresh session.
func InitSession(session *GameSession, rng *Rng) (GameResult, error) {
	e, ok := EngineFor(session.GameType)
	if !ok {
		return GameResult{}, ErrInvalidState
	}
	return e.Init(session, rng)
}

// Dispatch routes one move to the owning engine, enforcing the contract
// shared by all games: completed sessions accept no further moves, and
// payloads outside the wire bounds are rejected before any engine decoding.
func Dispatch(session *GameSession, payload []byte, rng *Rng) (GameResult, error) {
	if session.IsComplete {
		return GameResult{}, ErrGameAlreadyComplete
	}
	if len(payload) == 0 || len(payload) > MaxPayloadLength {
		return GameResult{}, ErrInvalidPayload
	}
	e, ok := EngineFor(session.GameType)
	if !ok {
		return GameResult{}, ErrInvalidState
	}
	res, err := e.ProcessMove(session, payload, rng)
	if err != nil {
		return GameResult{}, err
	}
	if res.Terminal() {
		session.IsComplete = true
	}
	return res, nil
}
