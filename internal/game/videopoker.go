package game

// Video Poker (Jacks or Better).
//
// State blob: [stage:u8] [cards:5 bytes] [rules:u8]
// Stage 0 = deal shown, awaiting hold mask. Stage 1 = drawn, settled.
//
// Payloads:
//   [holdMask]        draw: bit i holds card i, redraw the rest
//   [0xFF, rules]     select paytable before drawing
//
// The draw deck excludes all five originally dealt cards, so a
// discarded card can never reappear in the same hand.

import (
	"fmt"
	"strings"

	"tablechain/internal/codec"
)

type videoPokerStage uint8

const (
	vpStageDeal videoPokerStage = iota
	vpStageDraw
)

type videoPokerPaytable uint8

const (
	vpNineSix videoPokerPaytable = iota
	vpEightFive
)

// PokerHand ranks a 5-card hand, low to high.
type PokerHand uint8

const (
	HandHighCard PokerHand = iota
	HandJacksOrBetter
	HandTwoPair
	HandThreeOfAKind
	HandStraight
	HandFlush
	HandFullHouse
	HandFourOfAKind
	HandStraightFlush
	HandRoyalFlush
)

func (h PokerHand) String() string {
	switch h {
	case HandHighCard:
		return "HIGH_CARD"
	case HandJacksOrBetter:
		return "JACKS_OR_BETTER"
	case HandTwoPair:
		return "TWO_PAIR"
	case HandThreeOfAKind:
		return "THREE_OF_A_KIND"
	case HandStraight:
		return "STRAIGHT"
	case HandFlush:
		return "FLUSH"
	case HandFullHouse:
		return "FULL_HOUSE"
	case HandFourOfAKind:
		return "FOUR_OF_A_KIND"
	case HandStraightFlush:
		return "STRAIGHT_FLUSH"
	case HandRoyalFlush:
		return "ROYAL_FLUSH"
	default:
		return "UNKNOWN"
	}
}

// EvaluatePokerHand classifies five cards.
func EvaluatePokerHand(hand [5]uint8) PokerHand {
	var ranks [5]uint8
	var suits [5]uint8
	for i, c := range hand {
		ranks[i] = CardRankOneBased(c)
		suits[i] = CardSuit(c)
	}
	// Insertion sort; five elements.
	for i := 1; i < 5; i++ {
		for j := i; j > 0 && ranks[j] < ranks[j-1]; j-- {
			ranks[j], ranks[j-1] = ranks[j-1], ranks[j]
		}
	}

	isFlush := suits[0] == suits[1] && suits[1] == suits[2] &&
		suits[2] == suits[3] && suits[3] == suits[4]

	hasDuplicates := ranks[0] == ranks[1] || ranks[1] == ranks[2] ||
		ranks[2] == ranks[3] || ranks[3] == ranks[4]

	isRoyal := ranks == [5]uint8{1, 10, 11, 12, 13}
	isStraight := false
	if !hasDuplicates {
		switch {
		case isRoyal:
			isStraight = true
		case ranks == [5]uint8{1, 2, 3, 4, 5}:
			isStraight = true
		default:
			isStraight = ranks[4]-ranks[0] == 4
		}
	}

	var counts [14]uint8
	for _, r := range ranks {
		counts[r]++
	}
	var pairs uint8
	var threeKind, fourKind, highPair bool
	for rank, count := range counts {
		switch count {
		case 2:
			pairs++
			if rank >= 11 || rank == 1 {
				highPair = true
			}
		case 3:
			threeKind = true
		case 4:
			fourKind = true
		}
	}

	switch {
	case isRoyal && isFlush:
		return HandRoyalFlush
	case isStraight && isFlush:
		return HandStraightFlush
	case fourKind:
		return HandFourOfAKind
	case threeKind && pairs == 1:
		return HandFullHouse
	case isFlush:
		return HandFlush
	case isStraight:
		return HandStraight
	case threeKind:
		return HandThreeOfAKind
	case pairs == 2:
		return HandTwoPair
	case pairs == 1 && highPair:
		return HandJacksOrBetter
	default:
		return HandHighCard
	}
}

// vpWinnings is the "to 1" multiplier for a hand under a paytable. The
// 8/5 table shaves the full house and flush rows.
func vpWinnings(hand PokerHand, pt videoPokerPaytable) uint64 {
	switch hand {
	case HandJacksOrBetter:
		return 1
	case HandTwoPair:
		return 2
	case HandThreeOfAKind:
		return 3
	case HandStraight:
		return 4
	case HandFlush:
		if pt == vpEightFive {
			return 5
		}
		return 6
	case HandFullHouse:
		if pt == vpEightFive {
			return 8
		}
		return 9
	case HandFourOfAKind:
		return 25
	case HandStraightFlush:
		return 50
	case HandRoyalFlush:
		return 800
	default:
		return 0
	}
}

type videoPokerState struct {
	stage    videoPokerStage
	cards    [5]uint8
	paytable videoPokerPaytable
}

func (s *videoPokerState) toBlob() []byte {
	w := codec.NewWriter(8)
	w.U8(codec.ProtocolVersion)
	w.U8(uint8(s.stage))
	w.Raw(s.cards[:])
	w.U8(uint8(s.paytable))
	return w.Bytes()
}

func parseVideoPokerState(blob []byte) (*videoPokerState, error) {
	body, err := stateBlobBody(blob)
	if err != nil {
		return nil, err
	}
	if len(body) != 6 && len(body) != 7 {
		return nil, ErrInvalidState
	}
	r := codec.NewReader(body)
	stage, _ := r.U8()
	if stage > uint8(vpStageDraw) {
		return nil, ErrInvalidState
	}
	st := &videoPokerState{stage: videoPokerStage(stage)}
	for i := range st.cards {
		c, _ := r.U8()
		if c >= DeckSize {
			return nil, ErrInvalidState
		}
		st.cards[i] = c
	}
	if r.Remaining() > 0 {
		pt, _ := r.U8()
		if pt > uint8(vpEightFive) {
			return nil, ErrInvalidState
		}
		st.paytable = videoPokerPaytable(pt)
	}
	return st, nil
}

type videoPokerEngine struct{}

func (videoPokerEngine) Init(session *GameSession, rng *Rng) (GameResult, error) {
	deck := rng.CreateDeck()
	st := &videoPokerState{}
	for i := range st.cards {
		c, err := DrawCard(&deck)
		if err != nil {
			return GameResult{}, err
		}
		st.cards[i] = c
	}
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	return Continue(), nil
}

func (videoPokerEngine) ProcessMove(session *GameSession, payload []byte, rng *Rng) (GameResult, error) {
	st, err := parseVideoPokerState(session.StateBlob)
	if err != nil {
		return GameResult{}, err
	}
	if st.stage != vpStageDeal {
		return GameResult{}, ErrGameAlreadyComplete
	}

	if len(payload) == 2 && payload[0] == 0xff {
		if payload[1] > uint8(vpEightFive) {
			return GameResult{}, ErrInvalidPayload
		}
		st.paytable = videoPokerPaytable(payload[1])
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return Continue(), nil
	}
	if len(payload) != 1 {
		return GameResult{}, ErrInvalidPayload
	}

	holdMask := payload[0]
	deck := rng.CreateDeckExcluding(st.cards[:])
	for i := range st.cards {
		if holdMask&(1<<i) == 0 {
			c, err := DrawCard(&deck)
			if err != nil {
				return GameResult{}, err
			}
			st.cards[i] = c
		}
	}

	st.stage = vpStageDraw
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}

	hand := EvaluatePokerHand(st.cards)
	winnings := vpWinnings(hand, st.paytable)

	var totalReturn uint64
	if winnings > 0 {
		totalReturn = saturatingMulU64(session.Bet, winnings+1)
		if session.SuperMode.IsActive {
			totalReturn = ApplyVideoPokerMega(st.cards[:], session.SuperMode.Multipliers, totalReturn)
		}
	}

	logs := []string{
		fmt.Sprintf("Hand: %s (%s)", strings.ReplaceAll(hand.String(), "_", " "), FormatCardList(st.cards[:])),
		fmt.Sprintf("multiplier=%d totalReturn=%d", winnings, totalReturn),
	}
	if totalReturn > 0 {
		return Win(totalReturn, logs...), nil
	}
	return Loss(logs...), nil
}
