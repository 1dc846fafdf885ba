package game

import "strings"

// Cards are encoded 0-51: suit = card/13 (0=c 1=d 2=h 3=s), rank = card%13
// (0=A .. 12=K).
const DeckSize = 52

func CardSuit(c uint8) uint8 {
	return c / 13
}

func CardRank(c uint8) uint8 {
	return c % 13
}

// CardRankOneBased maps rank to 1-13 (A=1).
func CardRankOneBased(c uint8) uint8 {
	return CardRank(c) + 1
}

// CardRankAceHigh maps rank to 2-14 (A=14), the ordering used by the poker
// variants and Casino War.
func CardRankAceHigh(c uint8) uint8 {
	r := CardRank(c)
	if r == 0 {
		return 14
	}
	return r + 1
}

// BaccaratValue is the baccarat point value: A=1, 2-9 pip, tens and faces 0.
func BaccaratValue(c uint8) uint8 {
	r := CardRankOneBased(c)
	if r >= 10 {
		return 0
	}
	return r
}

// BlackjackValue is the hard value: A=1 (soft handling is the engine's job),
// faces 10.
func BlackjackValue(c uint8) uint8 {
	r := CardRankOneBased(c)
	if r > 10 {
		return 10
	}
	return r
}

func CardName(c uint8) string {
	if c >= DeckSize {
		return "??"
	}
	ranks := "A23456789TJQK"
	suits := "cdhs"
	return string([]byte{ranks[CardRank(c)], suits[CardSuit(c)]})
}

func FormatCardList(cards []uint8) string {
	names := make([]string, len(cards))
	for i, c := range cards {
		names[i] = CardName(c)
	}
	return strings.Join(names, " ")
}
