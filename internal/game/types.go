// Package game holds the deterministic casino execution core: the session
// model, the per-session RNG, the super-mode multiplier subsystem, and the
// ten rule engines.
package game

// GameType identifies a rule engine. The numeric values are part of the wire
// format and must not be reordered.
type GameType uint8

const (
	Baccarat GameType = iota
	Blackjack
	CasinoWar
	Craps
	VideoPoker
	HiLo
	Roulette
	SicBo
	ThreeCard
	UltimateHoldem

	numGameTypes
)

func (g GameType) String() string {
	switch g {
	case Baccarat:
		return "baccarat"
	case Blackjack:
		return "blackjack"
	case CasinoWar:
		return "casino_war"
	case Craps:
		return "craps"
	case VideoPoker:
		return "video_poker"
	case HiLo:
		return "hilo"
	case Roulette:
		return "roulette"
	case SicBo:
		return "sic_bo"
	case ThreeCard:
		return "three_card"
	case UltimateHoldem:
		return "ultimate_holdem"
	default:
		return "unknown"
	}
}

// GameTypeFromByte validates a wire-format game type tag.
func GameTypeFromByte(b uint8) (GameType, bool) {
	if b >= uint8(numGameTypes) {
		return 0, false
	}
	return GameType(b), true
}

// SuperType restricts which resolved outcomes a multiplier can match.
type SuperType uint8

const (
	SuperCard SuperType = iota
	SuperNumber
	SuperTotal
	SuperRank
	SuperSuit
)

// SuperMultiplier tags one multiplier target. The meaning of ID depends on
// Type: a card index (0-51), a number, a dice total, a rank (0-12), or a
// suit (0-3).
type SuperMultiplier struct {
	ID         uint8     `json:"id"`
	Multiplier uint16    `json:"multiplier"`
	Type       SuperType `json:"type"`
}

// MaxSuperMultipliers bounds the multiplier set on a session.
const MaxSuperMultipliers = 10

// MaxAuraMeter bounds the aura meter; reaching it arms super mode for the
// player's next session.
const MaxAuraMeter = 5

type SuperModeState struct {
	IsActive    bool              `json:"isActive"`
	Multipliers []SuperMultiplier `json:"multipliers,omitempty"`
	StreakLevel uint8             `json:"streakLevel"`
	AuraMeter   uint8             `json:"auraMeter"`
}

// Limits on session wire data.
const (
	MaxStateBlob     = 1024
	MaxPayloadLength = 256
)

// GameSession is one player's game in progress. The StateBlob format is owned
// exclusively by the engine matching GameType; nothing else interprets it.
type GameSession struct {
	ID        uint64   `json:"id"`
	Player    string   `json:"player"`
	GameType  GameType `json:"gameType"`
	Bet       uint64   `json:"bet"`
	StateBlob []byte   `json:"stateBlob,omitempty"`
	MoveCount uint32   `json:"moveCount"`
	CreatedAt uint64   `json:"createdAt"`

	IsComplete bool           `json:"isComplete"`
	SuperMode  SuperModeState `json:"superMode"`

	IsTournament bool   `json:"isTournament,omitempty"`
	TournamentID uint64 `json:"tournamentId,omitempty"`
}

// SetStateBlob replaces the session blob, enforcing the size bound. Blobs are
// produced by the engines themselves, so an oversized blob is an engine bug
// surfaced as ErrInvalidState rather than silently truncated.
func (s *GameSession) SetStateBlob(blob []byte) error {
	if len(blob) > MaxStateBlob {
		return ErrInvalidState
	}
	s.StateBlob = blob
	return nil
}
