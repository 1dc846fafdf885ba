package game

// Super-mode multiplier generation and application.
//
// Each game type gets a small set of tagged multiplier targets rolled at
// session start; application scans the resolved outcome for matches. All
// probability weights are integer basis points out of 100, keeping the core
// free of floating point.

// GenerateMultipliers rolls the multiplier set for one game type. streak only
// affects HiLo, whose multipliers are streak-tiered rather than random.
func GenerateMultipliers(gameType GameType, rng *Rng, streak uint8) []SuperMultiplier {
	switch gameType {
	case Baccarat:
		return generateBaccaratMultipliers(rng)
	case Roulette:
		return generateRouletteMultipliers(rng)
	case Blackjack:
		return generateBlackjackMultipliers(rng)
	case Craps:
		return generateCrapsMultipliers(rng)
	case SicBo:
		return generateSicBoMultipliers(rng)
	case VideoPoker:
		return generateVideoPokerMultipliers(rng)
	case ThreeCard:
		return generateThreeCardMultipliers(rng)
	case UltimateHoldem:
		return generateUTHMultipliers(rng)
	case CasinoWar:
		return generateCasinoWarMultipliers(rng)
	case HiLo:
		return hiLoMultipliers(streak)
	default:
		return nil
	}
}

// Lightning Baccarat: 1-5 cards at 2-8x.
func generateBaccaratMultipliers(rng *Rng) []SuperMultiplier {
	roll := rng.NextBounded(100)
	var count int
	switch {
	case roll < 60:
		count = 1
	case roll < 80:
		count = 2
	case roll < 90:
		count = 3
	case roll < 98:
		count = 4
	default:
		count = 5
	}

	mults := make([]SuperMultiplier, 0, count)
	var used uint64
	for i := 0; i < count; i++ {
		card := pickUnused(rng, 52, &used)
		m := rng.NextBounded(100)
		var multiplier uint16
		switch {
		case m < 35:
			multiplier = 2
		case m < 65:
			multiplier = 3
		case m < 85:
			multiplier = 4
		case m < 95:
			multiplier = 5
		default:
			multiplier = 8
		}
		mults = append(mults, SuperMultiplier{ID: card, Multiplier: multiplier, Type: SuperCard})
	}
	return mults
}

// Quantum Roulette: 5-7 numbers at 50-500x.
func generateRouletteMultipliers(rng *Rng) []SuperMultiplier {
	count := 5 + int(rng.NextBounded(3))
	mults := make([]SuperMultiplier, 0, count)
	var used uint64
	for i := 0; i < count; i++ {
		num := pickUnused(rng, 37, &used)
		roll := rng.NextBounded(100)
		var multiplier uint16
		switch {
		case roll < 35:
			multiplier = 50
		case roll < 65:
			multiplier = 100
		case roll < 83:
			multiplier = 200
		case roll < 93:
			multiplier = 300
		case roll < 98:
			multiplier = 400
		default:
			multiplier = 500
		}
		mults = append(mults, SuperMultiplier{ID: num, Multiplier: multiplier, Type: SuperNumber})
	}
	return mults
}

// Strike Blackjack: 3 cards at 2-10x.
func generateBlackjackMultipliers(rng *Rng) []SuperMultiplier {
	mults := make([]SuperMultiplier, 0, 3)
	var used uint64
	for i := 0; i < 3; i++ {
		card := pickUnused(rng, 52, &used)
		roll := rng.NextBounded(100)
		var multiplier uint16
		switch {
		case roll < 40:
			multiplier = 2
		case roll < 70:
			multiplier = 3
		case roll < 85:
			multiplier = 5
		case roll < 95:
			multiplier = 7
		default:
			multiplier = 10
		}
		mults = append(mults, SuperMultiplier{ID: card, Multiplier: multiplier, Type: SuperCard})
	}
	return mults
}

// Thunder Craps: 3 points from {4,5,6,8,9,10}, multiplier tiered by point
// difficulty with a rare 25x roll.
func generateCrapsMultipliers(rng *Rng) []SuperMultiplier {
	opts := [6]uint8{4, 5, 6, 8, 9, 10}
	idx := [6]int{0, 1, 2, 3, 4, 5}
	for i := 0; i < 3; i++ {
		j := i + int(rng.NextBounded(uint32(6-i)))
		idx[i], idx[j] = idx[j], idx[i]
	}

	mults := make([]SuperMultiplier, 0, 3)
	for i := 0; i < 3; i++ {
		num := opts[idx[i]]
		var multiplier uint16
		if rng.NextBounded(100) < 5 {
			multiplier = 25
		} else {
			switch num {
			case 6, 8:
				multiplier = 3
			case 5, 9:
				multiplier = 5
			default: // 4, 10
				multiplier = 10
			}
		}
		mults = append(mults, SuperMultiplier{ID: num, Multiplier: multiplier, Type: SuperNumber})
	}
	return mults
}

// Fortune Sic Bo: 3 totals from 4-17, edges pay more than center totals.
func generateSicBoMultipliers(rng *Rng) []SuperMultiplier {
	mults := make([]SuperMultiplier, 0, 3)
	var used uint32
	for i := 0; i < 3; i++ {
		var total uint8
		for {
			t := 4 + uint8(rng.NextBounded(14))
			if used&(1<<t) == 0 {
				used |= 1 << t
				total = t
				break
			}
		}
		var multiplier uint16
		switch total {
		case 10, 11:
			multiplier = 3 + uint16(rng.NextBounded(3)) // 3-5x
		case 7, 8, 13, 14:
			multiplier = 5 + uint16(rng.NextBounded(6)) // 5-10x
		default:
			multiplier = 10 + uint16(rng.NextBounded(41)) // 10-50x
		}
		mults = append(mults, SuperMultiplier{ID: total, Multiplier: multiplier, Type: SuperTotal})
	}
	return mults
}

// Mega Video Poker: 4 cards at 2-5x, applied via the count lookup table.
func generateVideoPokerMultipliers(rng *Rng) []SuperMultiplier {
	mults := make([]SuperMultiplier, 0, 4)
	var used uint64
	for i := 0; i < 4; i++ {
		card := pickUnused(rng, 52, &used)
		mults = append(mults, SuperMultiplier{
			ID:         card,
			Multiplier: 2 + uint16(rng.NextBounded(4)),
			Type:       SuperCard,
		})
	}
	return mults
}

// Flash Three Card: 2 distinct suits at 2x.
func generateThreeCardMultipliers(rng *Rng) []SuperMultiplier {
	suit1 := uint8(rng.NextBounded(4))
	suit2 := suit1
	for suit2 == suit1 {
		suit2 = uint8(rng.NextBounded(4))
	}
	return []SuperMultiplier{
		{ID: suit1, Multiplier: 2, Type: SuperSuit},
		{ID: suit2, Multiplier: 2, Type: SuperSuit},
	}
}

// Blitz Ultimate Hold'em: 2 distinct ranks at 2x.
func generateUTHMultipliers(rng *Rng) []SuperMultiplier {
	rank1 := uint8(rng.NextBounded(13))
	rank2 := rank1
	for rank2 == rank1 {
		rank2 = uint8(rng.NextBounded(13))
	}
	return []SuperMultiplier{
		{ID: rank1, Multiplier: 2, Type: SuperRank},
		{ID: rank2, Multiplier: 2, Type: SuperRank},
	}
}

// Strike Casino War: 3 distinct ranks at 3x.
func generateCasinoWarMultipliers(rng *Rng) []SuperMultiplier {
	mults := make([]SuperMultiplier, 0, 3)
	var used uint64
	for i := 0; i < 3; i++ {
		rank := pickUnused(rng, 13, &used)
		mults = append(mults, SuperMultiplier{ID: rank, Multiplier: 3, Type: SuperRank})
	}
	return mults
}

// HiLo multipliers are streak-tiered, stored in a x10 basis: 15 means 1.5x.
// ApplyHiLoMultiplier divides back out.
func hiLoMultipliers(streak uint8) []SuperMultiplier {
	var base uint16
	switch {
	case streak <= 1:
		base = 15
	case streak <= 3:
		base = 25
	default:
		base = 40
	}
	return []SuperMultiplier{{ID: 0, Multiplier: base, Type: SuperCard}}
}

// NewHiLoSuperState builds the streak-based HiLo super state.
func NewHiLoSuperState(streak uint8) SuperModeState {
	return SuperModeState{
		IsActive:    true,
		Multipliers: hiLoMultipliers(streak),
		StreakLevel: streak,
	}
}

func pickUnused(rng *Rng, n uint32, used *uint64) uint8 {
	for {
		v := uint8(rng.NextBounded(n))
		if *used&(1<<v) == 0 {
			*used |= 1 << v
			return v
		}
	}
}

// ApplyCardMultipliers boosts a payout by the product of every multiplier
// matched by a winning card. Card, rank, and suit multipliers stack
// multiplicatively; a card matching two multipliers applies both.
func ApplyCardMultipliers(winningCards []uint8, multipliers []SuperMultiplier, basePayout uint64) uint64 {
	total := uint64(1)
	for _, card := range winningCards {
		for _, m := range multipliers {
			var matches bool
			switch m.Type {
			case SuperCard:
				matches = card == m.ID
			case SuperRank:
				matches = CardRank(card) == m.ID
			case SuperSuit:
				matches = CardSuit(card) == m.ID
			}
			if matches {
				total = saturatingMulU64(total, uint64(m.Multiplier))
			}
		}
	}
	return saturatingMulU64(basePayout, total)
}

// ApplyNumberMultiplier boosts a payout when the resolved number carries a
// multiplier. At most one applies.
func ApplyNumberMultiplier(result uint8, multipliers []SuperMultiplier, basePayout uint64) uint64 {
	for _, m := range multipliers {
		if m.Type == SuperNumber && m.ID == result {
			return saturatingMulU64(basePayout, uint64(m.Multiplier))
		}
	}
	return basePayout
}

// ApplyTotalMultiplier boosts a payout when the dice total carries a
// multiplier. At most one applies.
func ApplyTotalMultiplier(total uint8, multipliers []SuperMultiplier, basePayout uint64) uint64 {
	for _, m := range multipliers {
		if m.Type == SuperTotal && m.ID == total {
			return saturatingMulU64(basePayout, uint64(m.Multiplier))
		}
	}
	return basePayout
}

// ApplyHiLoMultiplier applies the x10-basis streak multiplier.
func ApplyHiLoMultiplier(multipliers []SuperMultiplier, basePayout uint64) uint64 {
	if len(multipliers) == 0 {
		return basePayout
	}
	return saturatingMulU64(basePayout, uint64(multipliers[0].Multiplier)) / 10
}

// Count-based lookup tables. For these variants the multiplier is keyed by
// how many designated cards land in the final hand, not stacked per card.
var (
	videoPokerMegaTable = []uint64{1, 2, 3, 5, 10}
	threeCardFlashTable = []uint64{1, 2, 4, 8}
	uthBlitzTable       = []uint64{1, 2, 4, 8, 12, 16, 20, 25}
)

// CountMatches counts hand cards designated by the multiplier set.
func CountMatches(hand []uint8, multipliers []SuperMultiplier) int {
	count := 0
	for _, card := range hand {
		for _, m := range multipliers {
			var matches bool
			switch m.Type {
			case SuperCard:
				matches = card == m.ID
			case SuperRank:
				matches = CardRank(card) == m.ID
			case SuperSuit:
				matches = CardSuit(card) == m.ID
			}
			if matches {
				count++
				break
			}
		}
	}
	return count
}

func applyCountTable(count int, table []uint64, basePayout uint64) uint64 {
	if count < 0 {
		count = 0
	}
	if count >= len(table) {
		count = len(table) - 1
	}
	return saturatingMulU64(basePayout, table[count])
}

// ApplyVideoPokerMega applies the mega-card count table to a final hand.
func ApplyVideoPokerMega(hand []uint8, multipliers []SuperMultiplier, basePayout uint64) uint64 {
	return applyCountTable(CountMatches(hand, multipliers), videoPokerMegaTable, basePayout)
}

// ApplyThreeCardFlash applies the flash-suit count table to a final hand.
func ApplyThreeCardFlash(hand []uint8, multipliers []SuperMultiplier, basePayout uint64) uint64 {
	return applyCountTable(CountMatches(hand, multipliers), threeCardFlashTable, basePayout)
}

// ApplyUTHBlitz applies the blitz-rank count table to the player's seven
// visible cards.
func ApplyUTHBlitz(hand []uint8, multipliers []SuperMultiplier, basePayout uint64) uint64 {
	return applyCountTable(CountMatches(hand, multipliers), uthBlitzTable, basePayout)
}
