package game

// GameCategory groups games for lobby metadata.
type GameCategory uint8

const (
	CategoryCards GameCategory = iota
	CategoryTable
	CategoryPoker
)

func (c GameCategory) String() string {
	switch c {
	case CategoryCards:
		return "cards"
	case CategoryTable:
		return "table"
	case CategoryPoker:
		return "poker"
	default:
		return "unknown"
	}
}

// GameInfo is static metadata per game type. HouseEdgeBP is the nominal
// house edge in basis points for the primary bet.
type GameInfo struct {
	Name        string
	Category    GameCategory
	HouseEdgeBP uint16
}

var gameInfos = map[GameType]GameInfo{
	Baccarat:       {Name: "Baccarat", Category: CategoryCards, HouseEdgeBP: 106},
	Blackjack:      {Name: "Blackjack", Category: CategoryCards, HouseEdgeBP: 50},
	CasinoWar:      {Name: "Casino War", Category: CategoryCards, HouseEdgeBP: 290},
	Craps:          {Name: "Craps", Category: CategoryTable, HouseEdgeBP: 141},
	VideoPoker:     {Name: "Video Poker", Category: CategoryCards, HouseEdgeBP: 46},
	HiLo:           {Name: "HiLo", Category: CategoryCards, HouseEdgeBP: 250},
	Roulette:       {Name: "Roulette", Category: CategoryTable, HouseEdgeBP: 270},
	SicBo:          {Name: "Sic Bo", Category: CategoryTable, HouseEdgeBP: 278},
	ThreeCard:      {Name: "Three Card Poker", Category: CategoryPoker, HouseEdgeBP: 337},
	UltimateHoldem: {Name: "Ultimate Hold'em", Category: CategoryPoker, HouseEdgeBP: 220},
}

// Info returns the metadata for a game type.
func Info(gameType GameType) (GameInfo, bool) {
	gi, ok := gameInfos[gameType]
	return gi, ok
}

// GameConfig is the per-game operator configuration stored on chain.
type GameConfig struct {
	Enabled bool   `json:"enabled"`
	MinBet  uint64 `json:"minBet"`
	MaxBet  uint64 `json:"maxBet"`
}

// DefaultGameConfig enables a game with the standard table limits.
func DefaultGameConfig() GameConfig {
	return GameConfig{Enabled: true, MinBet: 1, MaxBet: 1_000_000}
}

// ValidateBet checks a starting bet against the config limits.
func (c GameConfig) ValidateBet(bet uint64) bool {
	return c.Enabled && bet >= c.MinBet && bet <= c.MaxBet
}
