package game

// Ultimate Texas Hold'em. The ante is staked at session start and an equal
// blind is escrowed on init; the play bet is escrowed when placed. Trips,
// 6-card bonus, and progressive side bets ride on the player's cards.
//
// State blob (35 bytes):
//   [stage:u8] [hole:2] [dealer:2] [community:5] [playMult:u8]
//   [tripsBet:u64] [sixCardBet:u64] [progressiveBet:u64]
// Every card is drawn at the deal; the stage controls what the player has
// seen, and cards are 0xFF before the deal.
//
// Stage 0 = betting (side bets), 1 = preflop, 2 = flop, 3 = river,
// 4 = awaiting reveal, 5 = complete.
//
// Payloads:
//   [0]               check (preflop shows the flop, flop shows the river)
//   [1]               bet 4x (preflop)
//   [8]               bet 3x (preflop)
//   [2]               bet 2x (flop)
//   [3]               bet 1x (river)
//   [4]               fold (river; side bets still resolve)
//   [5]               deal
//   [6, amount:u64]   set trips bet
//   [9, amount:u64]   set 6-card bonus bet
//   [10, amount:u64]  set progressive bet
//   [11, trips:u64, six:u64, prog:u64]  atomic side bets + deal
//   [7]               reveal the dealer and settle

import (
	"fmt"
	"math"

	"tablechain/internal/codec"
)

const (
	uthStateBytes = 35
	uthHiddenCard = 0xFF

	// The 6-card bonus tops out at 1000:1 and the progressive at 10000
	// for-one; clamps keep every settlement within int64.
	uthMaxSideBet = math.MaxInt64 / 1001
	uthMaxProgBet = math.MaxInt64 / uthProgressiveJackpot

	uthProgressiveJackpot = 10000
)

const (
	uthMoveCheck    = 0
	uthMoveBet4x    = 1
	uthMoveBet2x    = 2
	uthMoveBet1x    = 3
	uthMoveFold     = 4
	uthMoveDeal     = 5
	uthMoveSetTrips = 6
	uthMoveReveal   = 7
	uthMoveBet3x    = 8
	uthMoveSetSix   = 9
	uthMoveSetProg  = 10
	uthMoveBatch    = 11
)

const (
	uthStageBetting = 0
	uthStagePreflop = 1
	uthStageFlop    = 2
	uthStageRiver   = 3
	uthStageReveal  = 4
	uthStageDone    = 5
)

// Seven-card hand categories, low to high.
type uthRank uint8

const (
	uthHighCard uthRank = iota
	uthPair
	uthTwoPair
	uthTrips
	uthStraight
	uthFlush
	uthFullHouse
	uthQuads
	uthStraightFlush
	uthRoyalFlush
)

func (r uthRank) String() string {
	switch r {
	case uthPair:
		return "pair"
	case uthTwoPair:
		return "two pair"
	case uthTrips:
		return "three of a kind"
	case uthStraight:
		return "straight"
	case uthFlush:
		return "flush"
	case uthFullHouse:
		return "full house"
	case uthQuads:
		return "four of a kind"
	case uthStraightFlush:
		return "straight flush"
	case uthRoyalFlush:
		return "royal flush"
	default:
		return "high card"
	}
}

// uthHand is a ranked hand with tiebreak kickers, comparable
// lexicographically after the category.
type uthHand struct {
	rank    uthRank
	kickers [5]uint8
}

func uthCompare(a, b uthHand) int {
	if a.rank != b.rank {
		return int(a.rank) - int(b.rank)
	}
	for i := 0; i < 5; i++ {
		if a.kickers[i] != b.kickers[i] {
			return int(a.kickers[i]) - int(b.kickers[i])
		}
	}
	return 0
}

// uthEvalFive ranks exactly five cards.
func uthEvalFive(hand [5]uint8) uthHand {
	var ranks, suits [5]uint8
	for i, c := range hand {
		ranks[i] = CardRankAceHigh(c)
		suits[i] = CardSuit(c)
	}

	// Descending insertion sort; five elements.
	for i := 1; i < 5; i++ {
		for j := i; j > 0 && ranks[j] > ranks[j-1]; j-- {
			ranks[j], ranks[j-1] = ranks[j-1], ranks[j]
		}
	}

	isFlush := suits[0] == suits[1] && suits[1] == suits[2] && suits[2] == suits[3] && suits[3] == suits[4]

	distinct := true
	for i := 1; i < 5; i++ {
		if ranks[i] == ranks[i-1] {
			distinct = false
			break
		}
	}
	isStraight := false
	straightHigh := uint8(0)
	if distinct {
		if ranks[0]-ranks[4] == 4 {
			isStraight = true
			straightHigh = ranks[0]
		} else if ranks == [5]uint8{14, 5, 4, 3, 2} {
			isStraight = true
			straightHigh = 5
		}
	}

	var counts [15]uint8
	for _, r := range ranks {
		counts[r]++
	}
	var quadRank, tripRank, highPair, lowPair uint8
	for r := 14; r >= 2; r-- {
		switch counts[r] {
		case 4:
			quadRank = uint8(r)
		case 3:
			if tripRank == 0 {
				tripRank = uint8(r)
			} else if highPair == 0 {
				// Second trips plays as a pair in a full house.
				highPair = uint8(r)
			}
		case 2:
			if highPair == 0 {
				highPair = uint8(r)
			} else if lowPair == 0 {
				lowPair = uint8(r)
			}
		}
	}

	kickersExcluding := func(skip ...uint8) [5]uint8 {
		var out [5]uint8
		idx := 0
	outer:
		for _, r := range ranks {
			for _, s := range skip {
				if r == s {
					continue outer
				}
			}
			if idx < 5 {
				out[idx] = r
				idx++
			}
		}
		return out
	}

	switch {
	case isStraight && isFlush && straightHigh == 14:
		return uthHand{uthRoyalFlush, [5]uint8{14, 0, 0, 0, 0}}
	case isStraight && isFlush:
		return uthHand{uthStraightFlush, [5]uint8{straightHigh, 0, 0, 0, 0}}
	case quadRank > 0:
		k := kickersExcluding(quadRank)
		return uthHand{uthQuads, [5]uint8{quadRank, k[0], 0, 0, 0}}
	case tripRank > 0 && highPair > 0:
		return uthHand{uthFullHouse, [5]uint8{tripRank, highPair, 0, 0, 0}}
	case isFlush:
		return uthHand{uthFlush, ranks}
	case isStraight:
		return uthHand{uthStraight, [5]uint8{straightHigh, 0, 0, 0, 0}}
	case tripRank > 0:
		k := kickersExcluding(tripRank)
		return uthHand{uthTrips, [5]uint8{tripRank, k[0], k[1], 0, 0}}
	case highPair > 0 && lowPair > 0:
		k := kickersExcluding(highPair, lowPair)
		return uthHand{uthTwoPair, [5]uint8{highPair, lowPair, k[0], 0, 0}}
	case highPair > 0:
		k := kickersExcluding(highPair)
		return uthHand{uthPair, [5]uint8{highPair, k[0], k[1], k[2], 0}}
	default:
		return uthHand{uthHighCard, ranks}
	}
}

// uthBestOfSeven ranks the best five-card hand from seven cards.
func uthBestOfSeven(cards [7]uint8) uthHand {
	best := uthHand{}
	first := true
	for skipA := 0; skipA < 7; skipA++ {
		for skipB := skipA + 1; skipB < 7; skipB++ {
			var hand [5]uint8
			idx := 0
			for i, c := range cards {
				if i == skipA || i == skipB {
					continue
				}
				hand[idx] = c
				idx++
			}
			h := uthEvalFive(hand)
			if first || uthCompare(h, best) > 0 {
				best = h
				first = false
			}
		}
	}
	return best
}

// Blind winnings by the player's winning hand, in halves of the blind so the
// flush's 3:2 stays integral: a value of n pays n*blind/2.
func uthBlindWinningsHalves(rank uthRank) uint64 {
	switch rank {
	case uthRoyalFlush:
		return 1000
	case uthStraightFlush:
		return 100
	case uthQuads:
		return 20
	case uthFullHouse:
		return 6
	case uthFlush:
		return 3
	case uthStraight:
		return 2
	default:
		return 0
	}
}

func uthTripsWinnings(rank uthRank) uint64 {
	switch rank {
	case uthRoyalFlush:
		return 50
	case uthStraightFlush:
		return 40
	case uthQuads:
		return 30
	case uthFullHouse:
		return 8
	case uthFlush:
		return 7
	case uthStraight:
		return 4
	case uthTrips:
		return 3
	default:
		return 0
	}
}

type uthState struct {
	stage     uint8
	hole      [2]uint8
	dealer    [2]uint8
	community [5]uint8
	playMult  uint8
	tripsBet  uint64
	sixBet    uint64
	progBet   uint64
}

func parseUTHState(blob []byte) (*uthState, error) {
	body, err := stateBlobBody(blob)
	if err != nil {
		return nil, err
	}
	if len(body) != uthStateBytes {
		return nil, ErrInvalidState
	}
	r := codec.NewReader(body)
	st := &uthState{}
	st.stage, _ = r.U8()
	for i := range st.hole {
		st.hole[i], _ = r.U8()
	}
	for i := range st.dealer {
		st.dealer[i], _ = r.U8()
	}
	for i := range st.community {
		st.community[i], _ = r.U8()
	}
	st.playMult, _ = r.U8()
	st.tripsBet, _ = r.U64()
	st.sixBet, _ = r.U64()
	progBet, ok := r.U64()
	if !ok || st.stage > uthStageDone || st.playMult > 4 {
		return nil, ErrInvalidState
	}
	st.progBet = progBet
	all := append(append(st.hole[:], st.dealer[:]...), st.community[:]...)
	for _, c := range all {
		if c >= DeckSize && c != uthHiddenCard {
			return nil, ErrInvalidState
		}
	}
	if st.tripsBet > uthMaxSideBet || st.sixBet > uthMaxSideBet || st.progBet > uthMaxProgBet {
		return nil, ErrInvalidState
	}
	return st, nil
}

func (st *uthState) toBlob() []byte {
	w := codec.NewWriter(1 + uthStateBytes)
	w.U8(codec.ProtocolVersion)
	w.U8(st.stage)
	w.Raw(st.hole[:])
	w.Raw(st.dealer[:])
	w.Raw(st.community[:])
	w.U8(st.playMult)
	w.U64(st.tripsBet)
	w.U64(st.sixBet)
	w.U64(st.progBet)
	return w.Bytes()
}

func (st *uthState) playerSeven() [7]uint8 {
	return [7]uint8{
		st.hole[0], st.hole[1],
		st.community[0], st.community[1], st.community[2], st.community[3], st.community[4],
	}
}

func (st *uthState) dealerSeven() [7]uint8 {
	return [7]uint8{
		st.dealer[0], st.dealer[1],
		st.community[0], st.community[1], st.community[2], st.community[3], st.community[4],
	}
}

type ultimateHoldemEngine struct{}

// Init escrows the blind, an obligatory companion to the ante.
func (ultimateHoldemEngine) Init(session *GameSession, _ *Rng) (GameResult, error) {
	st := &uthState{stage: uthStageBetting}
	for i := range st.hole {
		st.hole[i] = uthHiddenCard
	}
	for i := range st.dealer {
		st.dealer[i] = uthHiddenCard
	}
	for i := range st.community {
		st.community[i] = uthHiddenCard
	}
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	if session.Bet > math.MaxInt64 {
		return GameResult{}, ErrInvalidMove
	}
	return ContinueWithUpdate(-int64(session.Bet), "Blind posted"), nil
}

func (ultimateHoldemEngine) ProcessMove(session *GameSession, payload []byte, rng *Rng) (GameResult, error) {
	st, err := parseUTHState(session.StateBlob)
	if err != nil {
		return GameResult{}, err
	}
	if len(payload) == 0 {
		return GameResult{}, ErrInvalidPayload
	}

	switch st.stage {
	case uthStageBetting:
		return uthBettingMove(session, st, payload, rng)
	case uthStagePreflop:
		switch payload[0] {
		case uthMoveCheck:
			return uthAdvance(session, st, payload, uthStageFlop, "Flop shown")
		case uthMoveBet4x:
			return uthPlaceBet(session, st, payload, 4)
		case uthMoveBet3x:
			return uthPlaceBet(session, st, payload, 3)
		default:
			return GameResult{}, ErrInvalidMove
		}
	case uthStageFlop:
		switch payload[0] {
		case uthMoveCheck:
			return uthAdvance(session, st, payload, uthStageRiver, "Turn and river shown")
		case uthMoveBet2x:
			return uthPlaceBet(session, st, payload, 2)
		default:
			return GameResult{}, ErrInvalidMove
		}
	case uthStageRiver:
		switch payload[0] {
		case uthMoveBet1x:
			return uthPlaceBet(session, st, payload, 1)
		case uthMoveFold:
			if len(payload) != 1 {
				return GameResult{}, ErrInvalidPayload
			}
			return uthFold(session, st)
		default:
			return GameResult{}, ErrInvalidMove
		}
	case uthStageReveal:
		if payload[0] != uthMoveReveal || len(payload) != 1 {
			return GameResult{}, ErrInvalidMove
		}
		return uthReveal(session, st)
	default:
		return GameResult{}, ErrGameAlreadyComplete
	}
}

func uthBettingMove(session *GameSession, st *uthState, payload []byte, rng *Rng) (GameResult, error) {
	switch payload[0] {
	case uthMoveSetTrips, uthMoveSetSix, uthMoveSetProg:
		if len(payload) != 9 {
			return GameResult{}, ErrInvalidPayload
		}
		amount, _ := codec.ParseU64BE(payload, 1)
		var delta int64
		switch payload[0] {
		case uthMoveSetTrips:
			delta = tcBetDelta(&st.tripsBet, codec.ClampBetAmount(amount, uthMaxSideBet))
		case uthMoveSetSix:
			delta = tcBetDelta(&st.sixBet, codec.ClampBetAmount(amount, uthMaxSideBet))
		default:
			delta = tcBetDelta(&st.progBet, codec.ClampBetAmount(amount, uthMaxProgBet))
		}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		if delta == 0 {
			return Continue(), nil
		}
		return ContinueWithUpdate(delta), nil

	case uthMoveDeal:
		if len(payload) != 1 {
			return GameResult{}, ErrInvalidPayload
		}
		if err := uthDeal(session, st, rng); err != nil {
			return GameResult{}, err
		}
		return Continue(fmt.Sprintf("Hole cards %s", FormatCardList(st.hole[:]))), nil

	case uthMoveBatch:
		if len(payload) != 25 {
			return GameResult{}, ErrInvalidPayload
		}
		trips, _ := codec.ParseU64BE(payload, 1)
		six, _ := codec.ParseU64BE(payload, 9)
		prog, _ := codec.ParseU64BE(payload, 17)
		delta := tcBetDelta(&st.tripsBet, codec.ClampBetAmount(trips, uthMaxSideBet))
		delta += tcBetDelta(&st.sixBet, codec.ClampBetAmount(six, uthMaxSideBet))
		delta += tcBetDelta(&st.progBet, codec.ClampBetAmount(prog, uthMaxProgBet))
		if err := uthDeal(session, st, rng); err != nil {
			return GameResult{}, err
		}
		if delta == 0 {
			return Continue(fmt.Sprintf("Hole cards %s", FormatCardList(st.hole[:]))), nil
		}
		return ContinueWithUpdate(delta, fmt.Sprintf("Hole cards %s", FormatCardList(st.hole[:]))), nil

	default:
		return GameResult{}, ErrInvalidMove
	}
}

// uthDeal draws every card for the hand up front; the stages only gate what
// the player acts on.
func uthDeal(session *GameSession, st *uthState, rng *Rng) error {
	if st.hole[0] != uthHiddenCard {
		return ErrInvalidMove
	}
	deck := rng.CreateDeck()
	draw := func(dst *uint8) error {
		c, err := DrawCard(&deck)
		if err != nil {
			return err
		}
		*dst = c
		return nil
	}
	for i := range st.hole {
		if err := draw(&st.hole[i]); err != nil {
			return err
		}
	}
	for i := range st.dealer {
		if err := draw(&st.dealer[i]); err != nil {
			return err
		}
	}
	for i := range st.community {
		if err := draw(&st.community[i]); err != nil {
			return err
		}
	}
	st.stage = uthStagePreflop
	return session.SetStateBlob(st.toBlob())
}

func uthAdvance(session *GameSession, st *uthState, payload []byte, stage uint8, log string) (GameResult, error) {
	if len(payload) != 1 {
		return GameResult{}, ErrInvalidPayload
	}
	st.stage = stage
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	return Continue(log), nil
}

func uthPlaceBet(session *GameSession, st *uthState, payload []byte, mult uint8) (GameResult, error) {
	if len(payload) != 1 {
		return GameResult{}, ErrInvalidPayload
	}
	play := saturatingMulU64(session.Bet, uint64(mult))
	if play > math.MaxInt64 {
		return GameResult{}, ErrInvalidMove
	}
	st.playMult = mult
	st.stage = uthStageReveal
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	return ContinueWithUpdate(-int64(play), fmt.Sprintf("Play bet %dx", mult)), nil
}

// uthSuper boosts a nonzero return by the blitz multipliers over the
// player's seven visible cards.
func uthSuper(session *GameSession, st *uthState, amount uint64) uint64 {
	if amount == 0 || !session.SuperMode.IsActive {
		return amount
	}
	seven := st.playerSeven()
	return ApplyUTHBlitz(seven[:], session.SuperMode.Multipliers, amount)
}

func (st *uthState) tripsReturn() uint64 {
	if st.tripsBet == 0 {
		return 0
	}
	w := uthTripsWinnings(uthBestOfSeven(st.playerSeven()).rank)
	if w == 0 {
		return 0
	}
	return saturatingMulU64(st.tripsBet, w+1)
}

func (st *uthState) sixCardReturn() uint64 {
	if st.sixBet == 0 {
		return 0
	}
	var rank tcBonusRank
	seven := st.playerSeven()
	for skip := 0; skip < 7; skip++ {
		var hand [6]uint8
		idx := 0
		for i, c := range seven {
			if i == skip {
				continue
			}
			if idx < 6 {
				hand[idx] = c
				idx++
			}
		}
		if r := tcBestFiveOfSix(hand); r > rank {
			rank = r
		}
	}
	w := tcBonusWinnings(rank)
	if w == 0 {
		return 0
	}
	return saturatingMulU64(st.sixBet, w+1)
}

// progressiveReturn is for-one on the hole cards plus the flop. A royal
// flush hits the jackpot; the lower tiers take fixed fractions of it.
func (st *uthState) progressiveReturn() uint64 {
	if st.progBet == 0 {
		return 0
	}
	hand := uthEvalFive([5]uint8{st.hole[0], st.hole[1], st.community[0], st.community[1], st.community[2]})
	switch hand.rank {
	case uthRoyalFlush:
		return saturatingMulU64(st.progBet, uthProgressiveJackpot)
	case uthStraightFlush:
		return saturatingMulU64(st.progBet, uthProgressiveJackpot/10)
	case uthQuads:
		return saturatingMulU64(st.progBet, 300)
	case uthFullHouse:
		return saturatingMulU64(st.progBet, 50)
	default:
		return 0
	}
}

func (st *uthState) sideWagers() uint64 {
	total := st.tripsBet
	total = saturatingAddU64(total, st.sixBet)
	return saturatingAddU64(total, st.progBet)
}

func uthFold(session *GameSession, st *uthState) (GameResult, error) {
	st.stage = uthStageDone
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	session.IsComplete = true

	trips := uthSuper(session, st, st.tripsReturn())
	six := uthSuper(session, st, st.sixCardReturn())
	prog := uthSuper(session, st, st.progressiveReturn())
	totalReturn := saturatingAddU64(saturatingAddU64(trips, six), prog)

	// Ante and blind are both forfeited.
	totalWagered := saturatingMulU64(session.Bet, 2)
	totalWagered = saturatingAddU64(totalWagered, st.sideWagers())

	logs := []string{
		fmt.Sprintf("Fold: %s", FormatCardList(st.hole[:])),
		fmt.Sprintf("totalWagered=%d totalReturn=%d", totalWagered, totalReturn),
	}
	if totalReturn == 0 {
		return LossPreDeducted(totalWagered, logs...), nil
	}
	return Win(totalReturn, logs...), nil
}

func uthReveal(session *GameSession, st *uthState) (GameResult, error) {
	st.stage = uthStageDone
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	session.IsComplete = true

	playerHand := uthBestOfSeven(st.playerSeven())
	dealerHand := uthBestOfSeven(st.dealerSeven())
	dealerQualifies := dealerHand.rank >= uthPair
	cmp := uthCompare(playerHand, dealerHand)

	ante := session.Bet
	blind := session.Bet
	play := saturatingMulU64(session.Bet, uint64(st.playMult))

	var anteReturn, blindReturn, playReturn uint64
	var outcome string
	switch {
	case cmp > 0:
		if dealerQualifies {
			anteReturn = saturatingMulU64(ante, 2)
		} else {
			anteReturn = ante
		}
		playReturn = saturatingMulU64(play, 2)
		profit := saturatingMulU64(blind, uthBlindWinningsHalves(playerHand.rank)) / 2
		blindReturn = saturatingAddU64(blind, profit)
		outcome = "player wins"
	case cmp == 0:
		anteReturn = ante
		blindReturn = blind
		playReturn = play
		outcome = "push"
	default:
		if !dealerQualifies {
			anteReturn = ante
		}
		outcome = "dealer wins"
	}

	anteReturn = uthSuper(session, st, anteReturn)
	blindReturn = uthSuper(session, st, blindReturn)
	playReturn = uthSuper(session, st, playReturn)
	trips := uthSuper(session, st, st.tripsReturn())
	six := uthSuper(session, st, st.sixCardReturn())
	prog := uthSuper(session, st, st.progressiveReturn())

	totalReturn := anteReturn
	totalReturn = saturatingAddU64(totalReturn, blindReturn)
	totalReturn = saturatingAddU64(totalReturn, playReturn)
	totalReturn = saturatingAddU64(totalReturn, trips)
	totalReturn = saturatingAddU64(totalReturn, six)
	totalReturn = saturatingAddU64(totalReturn, prog)

	totalWagered := saturatingMulU64(session.Bet, 2)
	totalWagered = saturatingAddU64(totalWagered, play)
	totalWagered = saturatingAddU64(totalWagered, st.sideWagers())

	logs := []string{
		fmt.Sprintf("%s vs %s: %s", playerHand.rank, dealerHand.rank, outcome),
		fmt.Sprintf("totalWagered=%d totalReturn=%d", totalWagered, totalReturn),
	}
	if totalReturn == 0 {
		return LossPreDeducted(totalWagered, logs...), nil
	}
	return Win(totalReturn, logs...), nil
}
