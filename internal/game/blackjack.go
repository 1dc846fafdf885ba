package game

// Blackjack with splits (up to 4 hands), doubles, late surrender, and five
// optional side bets placed before the deal. 8-deck shoe and dealer hits
// soft 17 by default; both are table rules. The dealer hole card is not
// drawn until reveal, so no hidden information ever sits in the state blob.
//
// State blob:
//   [stage:u8]
//   [sideBet21Plus3:u64] [luckyLadies:u64] [perfectPairs:u64]
//   [bustIt:u64] [royalMatch:u64]
//   [initialPlayerCard1:u8] [initialPlayerCard2:u8]   (0xFF before the deal)
//   [activeHandIdx:u8] [handCount:u8]
//   per hand: [betMult:u8] [status:u8] [wasSplit:u8] [cardCount:u8] [cards...]
//   [dealerCount:u8] [dealerCards...]
//   [rulesFlags:u8] [rulesDecks:u8]
//
// Payloads:
//   [0] hit   [1] stand   [2] double   [3] split   [4] deal
//   [5, amount:u64]  set 21+3 side bet
//   [6] reveal
//   [7] surrender (player turn) / atomic side bets + deal (betting stage,
//       9, 33, or 41 bytes: 21+3 [, luckyLadies, perfectPairs, bustIt
//       [, royalMatch]])
//   [8, flags:u8, decks:u8] set table rules

import (
	"fmt"
	"math"

	"tablechain/internal/codec"
)

const (
	bjMaxHandSize = 11
	bjMaxHands    = 4
	bjHiddenCard  = 0xFF

	// Lucky Ladies tops out at 200:1; the clamp keeps returns i64-safe.
	bjMaxSideBet = math.MaxInt64 / 201

	bjRoyalMatchKQWinnings = 25
)

const (
	bjMoveHit        = 0
	bjMoveStand      = 1
	bjMoveDouble     = 2
	bjMoveSplit      = 3
	bjMoveDeal       = 4
	bjMoveSet21Plus3 = 5
	bjMoveReveal     = 6
	bjMoveSurrender  = 7 // doubles as the atomic batch opcode while betting
	bjMoveSetRules   = 8
)

const (
	bjStageBetting = 0
	bjStagePlayer  = 1
	bjStageReveal  = 2
	bjStageDone    = 3
)

const (
	bjHandPlaying     = 0
	bjHandStanding    = 1
	bjHandBusted      = 2
	bjHandBlackjack   = 3
	bjHandSurrendered = 4
)

const (
	bjRuleHitSoft17        = 0x01
	bjRuleSixFiveBlackjack = 0x02
	bjRuleLateSurrender    = 0x04
	bjRuleDoubleAfterSplit = 0x08
	bjRuleResplitAces      = 0x10
	bjRuleHitSplitAces     = 0x20
)

var bjDeckCounts = [5]int{1, 2, 4, 6, 8}

type bjRules struct {
	flags uint8
	decks uint8 // index into bjDeckCounts
}

func defaultBJRules() bjRules {
	return bjRules{
		flags: bjRuleHitSoft17 | bjRuleDoubleAfterSplit | bjRuleResplitAces | bjRuleHitSplitAces,
		decks: 4,
	}
}

func (r bjRules) has(flag uint8) bool { return r.flags&flag != 0 }
func (r bjRules) deckCount() int      { return bjDeckCounts[r.decks] }

type bjHand struct {
	cards    []uint8
	betMult  uint8
	status   uint8
	wasSplit bool
}

type blackjackState struct {
	stage        uint8
	sb21Plus3    uint64
	sbLucky      uint64
	sbPairs      uint64
	sbBustIt     uint64
	sbRoyal      uint64
	initialCards [2]uint8
	activeIdx    int
	hands        []bjHand
	dealerCards  []uint8
	rules        bjRules
}

// bjHandValue totals a hand with aces counted high until the hand would
// bust. The bool reports a soft total.
func bjHandValue(cards []uint8) (uint8, bool) {
	value := 0
	aces := 0
	for _, c := range cards {
		rank := CardRankOneBased(c)
		switch {
		case rank == 1:
			aces++
			value += 11
		case rank >= 10:
			value += 10
		default:
			value += int(rank)
		}
	}
	for value > 21 && aces > 0 {
		value -= 10
		aces--
	}
	if value > 255 {
		value = 255
	}
	return uint8(value), aces > 0 && value <= 21
}

func bjIsBlackjack(cards []uint8) bool {
	if len(cards) != 2 {
		return false
	}
	v, _ := bjHandValue(cards)
	return v == 21
}

func (h *bjHand) naturalBlackjack() bool {
	return !h.wasSplit && bjIsBlackjack(h.cards)
}

func parseBlackjackState(blob []byte) (*blackjackState, error) {
	body, err := stateBlobBody(blob)
	if err != nil {
		return nil, err
	}
	r := codec.NewReader(body)
	st := &blackjackState{}
	stage, ok := r.U8()
	if !ok || stage > bjStageDone {
		return nil, ErrInvalidState
	}
	st.stage = stage
	st.sb21Plus3, _ = r.U64()
	st.sbLucky, _ = r.U64()
	st.sbPairs, _ = r.U64()
	st.sbBustIt, _ = r.U64()
	st.sbRoyal, ok = r.U64()
	if !ok {
		return nil, ErrInvalidState
	}
	for _, bet := range []uint64{st.sb21Plus3, st.sbLucky, st.sbPairs, st.sbBustIt, st.sbRoyal} {
		if bet > bjMaxSideBet {
			return nil, ErrInvalidState
		}
	}
	for i := range st.initialCards {
		c, ok := r.U8()
		if !ok || (c >= DeckSize && c != bjHiddenCard) {
			return nil, ErrInvalidState
		}
		st.initialCards[i] = c
	}

	activeIdx, _ := r.U8()
	handCount, ok := r.U8()
	if !ok || handCount > bjMaxHands {
		return nil, ErrInvalidState
	}
	st.activeIdx = int(activeIdx)
	if handCount == 0 {
		if st.activeIdx != 0 {
			return nil, ErrInvalidState
		}
	} else if st.stage == bjStagePlayer {
		if st.activeIdx >= int(handCount) {
			return nil, ErrInvalidState
		}
	} else if st.activeIdx > int(handCount) {
		return nil, ErrInvalidState
	}

	st.hands = make([]bjHand, 0, handCount)
	for i := 0; i < int(handCount); i++ {
		betMult, _ := r.U8()
		status, _ := r.U8()
		wasSplit, _ := r.U8()
		cardCount, ok := r.U8()
		if !ok || status > bjHandSurrendered || betMult == 0 || betMult > 2 ||
			wasSplit > 1 || cardCount > bjMaxHandSize {
			return nil, ErrInvalidState
		}
		cards, ok := r.Bytes(int(cardCount))
		if !ok {
			return nil, ErrInvalidState
		}
		for _, c := range cards {
			if c >= DeckSize {
				return nil, ErrInvalidState
			}
		}
		st.hands = append(st.hands, bjHand{
			cards:    cards,
			betMult:  betMult,
			status:   status,
			wasSplit: wasSplit == 1,
		})
	}

	dealerCount, ok := r.U8()
	if !ok || dealerCount > bjMaxHandSize {
		return nil, ErrInvalidState
	}
	dealer, ok := r.Bytes(int(dealerCount))
	if !ok {
		return nil, ErrInvalidState
	}
	for _, c := range dealer {
		if c >= DeckSize {
			return nil, ErrInvalidState
		}
	}
	st.dealerCards = dealer

	flags, _ := r.U8()
	decks, ok := r.U8()
	if !ok || decks >= uint8(len(bjDeckCounts)) || !r.Done() {
		return nil, ErrInvalidState
	}
	st.rules = bjRules{flags: flags, decks: decks}
	return st, nil
}

func (st *blackjackState) toBlob() []byte {
	size := 40
	for i := range st.hands {
		size += 4 + len(st.hands[i].cards)
	}
	size += 1 + len(st.dealerCards) + 3
	w := codec.NewWriter(size)
	w.U8(codec.ProtocolVersion)
	w.U8(st.stage)
	w.U64(st.sb21Plus3)
	w.U64(st.sbLucky)
	w.U64(st.sbPairs)
	w.U64(st.sbBustIt)
	w.U64(st.sbRoyal)
	w.Raw(st.initialCards[:])
	w.U8(uint8(st.activeIdx))
	w.U8(uint8(len(st.hands)))
	for i := range st.hands {
		h := &st.hands[i]
		w.U8(h.betMult)
		w.U8(h.status)
		if h.wasSplit {
			w.U8(1)
		} else {
			w.U8(0)
		}
		w.U8(uint8(len(h.cards)))
		w.Raw(h.cards)
	}
	w.U8(uint8(len(st.dealerCards)))
	w.Raw(st.dealerCards)
	w.U8(st.rules.flags)
	w.U8(st.rules.decks)
	return w.Bytes()
}

// rebuildShoe reconstructs the shoe minus every card already on the table.
func (st *blackjackState) rebuildShoe(rng *Rng) []uint8 {
	used := make(map[uint8]int)
	for i := range st.hands {
		for _, c := range st.hands[i].cards {
			used[c]++
		}
	}
	for _, c := range st.dealerCards {
		used[c]++
	}
	return rng.CreateShoeExcludingCounts(st.rules.deckCount(), used)
}

// advanceTurn moves to the next playable hand, reporting whether one exists.
func (st *blackjackState) advanceTurn() bool {
	for st.activeIdx < len(st.hands) {
		if st.hands[st.activeIdx].status == bjHandPlaying {
			return true
		}
		st.activeIdx++
	}
	return false
}

func bj21Plus3Straight(ranks [3]uint8) bool {
	for i := 1; i < 3; i++ {
		for j := i; j > 0 && ranks[j] < ranks[j-1]; j-- {
			ranks[j], ranks[j-1] = ranks[j-1], ranks[j]
		}
	}
	if ranks == [3]uint8{2, 3, 14} {
		return true
	}
	return ranks[1] == ranks[0]+1 && ranks[2] == ranks[1]+1
}

// 21+3 on the player's first two cards plus the dealer upcard, WoO
// "Version 7" table: 100-40-30-10-5 to-1.
func bj21Plus3Winnings(cards [3]uint8) uint64 {
	isFlush := CardSuit(cards[0]) == CardSuit(cards[1]) && CardSuit(cards[1]) == CardSuit(cards[2])
	isTrips := CardRank(cards[0]) == CardRank(cards[1]) && CardRank(cards[1]) == CardRank(cards[2])
	isStraight := bj21Plus3Straight([3]uint8{
		CardRankAceHigh(cards[0]), CardRankAceHigh(cards[1]), CardRankAceHigh(cards[2]),
	})
	switch {
	case isTrips && isFlush:
		return 100
	case isStraight && isFlush:
		return 40
	case isTrips:
		return 30
	case isStraight:
		return 10
	case isFlush:
		return 5
	default:
		return 0
	}
}

func bjRedSuit(suit uint8) bool { return suit == 1 || suit == 2 }

// Lucky Ladies pays on any 20, scaling up through paired queens to queens
// of hearts against a dealer blackjack.
func bjLuckyLadiesWinnings(cards [2]uint8, dealerBlackjack bool) uint64 {
	total, _ := bjHandValue(cards[:])
	if total != 20 {
		return 0
	}
	if CardRankOneBased(cards[0]) != 12 || CardRankOneBased(cards[1]) != 12 {
		return 4
	}
	bothHearts := CardSuit(cards[0]) == 2 && CardSuit(cards[1]) == 2
	if bothHearts && dealerBlackjack {
		return 200
	}
	if bothHearts {
		return 25
	}
	return 10
}

func bjPerfectPairsWinnings(cards [2]uint8) uint64 {
	if CardRank(cards[0]) != CardRank(cards[1]) {
		return 0
	}
	s1, s2 := CardSuit(cards[0]), CardSuit(cards[1])
	if s1 == s2 {
		return 25
	}
	if bjRedSuit(s1) == bjRedSuit(s2) {
		return 10
	}
	return 5
}

func bjRoyalMatchWinnings(cards [2]uint8) uint64 {
	if CardSuit(cards[0]) != CardSuit(cards[1]) {
		return 0
	}
	r1, r2 := CardRankOneBased(cards[0]), CardRankOneBased(cards[1])
	if (r1 == 13 && r2 == 12) || (r1 == 12 && r2 == 13) {
		return bjRoyalMatchKQWinnings
	}
	return 5
}

// Bust It pays when the dealer busts, by how many cards it took.
func bjBustItWinnings(dealerCards []uint8) uint64 {
	v, _ := bjHandValue(dealerCards)
	if v <= 21 {
		return 0
	}
	switch {
	case len(dealerCards) >= 6:
		return 50
	case len(dealerCards) == 5:
		return 9
	case len(dealerCards) == 4:
		return 2
	case len(dealerCards) == 3:
		return 1
	default:
		return 0
	}
}

func (st *blackjackState) initialDealt() bool {
	return st.initialCards[0] != bjHiddenCard && st.initialCards[1] != bjHiddenCard
}

func (st *blackjackState) sideBetsReturn() uint64 {
	var total uint64
	dealerBlackjack := bjIsBlackjack(st.dealerCards)
	if st.initialDealt() && len(st.dealerCards) > 0 {
		if st.sb21Plus3 > 0 {
			if w := bj21Plus3Winnings([3]uint8{st.initialCards[0], st.initialCards[1], st.dealerCards[0]}); w > 0 {
				total = saturatingAddU64(total, saturatingMulU64(st.sb21Plus3, w+1))
			}
		}
		if st.sbLucky > 0 {
			if w := bjLuckyLadiesWinnings(st.initialCards, dealerBlackjack); w > 0 {
				total = saturatingAddU64(total, saturatingMulU64(st.sbLucky, w+1))
			}
		}
		if st.sbPairs > 0 {
			if w := bjPerfectPairsWinnings(st.initialCards); w > 0 {
				total = saturatingAddU64(total, saturatingMulU64(st.sbPairs, w+1))
			}
		}
		if st.sbRoyal > 0 {
			if w := bjRoyalMatchWinnings(st.initialCards); w > 0 {
				total = saturatingAddU64(total, saturatingMulU64(st.sbRoyal, w+1))
			}
		}
	}
	if st.sbBustIt > 0 {
		if w := bjBustItWinnings(st.dealerCards); w > 0 {
			total = saturatingAddU64(total, saturatingMulU64(st.sbBustIt, w+1))
		}
	}
	return total
}

func (st *blackjackState) sideWagers() uint64 {
	total := st.sb21Plus3
	total = saturatingAddU64(total, st.sbLucky)
	total = saturatingAddU64(total, st.sbPairs)
	total = saturatingAddU64(total, st.sbBustIt)
	return saturatingAddU64(total, st.sbRoyal)
}

func (st *blackjackState) totalWagered(bet uint64) uint64 {
	var total uint64
	for i := range st.hands {
		total = saturatingAddU64(total, saturatingMulU64(bet, uint64(st.hands[i].betMult)))
	}
	return saturatingAddU64(total, st.sideWagers())
}

// bjHandReturn settles one hand against the final dealer hand. Blackjack
// pays 3:2 total-return 5/2 (or 6:5 total-return 11/5 under that rule).
func bjHandReturn(bet uint64, h *bjHand, dealerValue uint8, dealerBlackjack bool, rules bjRules) uint64 {
	switch h.status {
	case bjHandBusted:
		return 0
	case bjHandSurrendered:
		if dealerBlackjack {
			return 0
		}
		return bet / 2
	}

	playerValue, _ := bjHandValue(h.cards)
	playerBlackjack := h.naturalBlackjack()
	switch {
	case playerBlackjack && dealerBlackjack:
		return bet
	case playerBlackjack:
		if rules.has(bjRuleSixFiveBlackjack) {
			return saturatingMulU64(bet, 11) / 5
		}
		return saturatingMulU64(bet, 5) / 2
	case dealerBlackjack:
		return 0
	case dealerValue > 21 || playerValue > dealerValue:
		return saturatingMulU64(bet, 2)
	case playerValue == dealerValue:
		return bet
	default:
		return 0
	}
}

func (st *blackjackState) mainReturn(bet uint64) uint64 {
	dealerValue, _ := bjHandValue(st.dealerCards)
	dealerBlackjack := bjIsBlackjack(st.dealerCards)
	var total uint64
	for i := range st.hands {
		handBet := saturatingMulU64(bet, uint64(st.hands[i].betMult))
		total = saturatingAddU64(total, bjHandReturn(handBet, &st.hands[i], dealerValue, dealerBlackjack, st.rules))
	}
	return total
}

// revealDealer draws the hole card, then plays the dealer out when any
// result still depends on the dealer total.
func (st *blackjackState) revealDealer(deck *[]uint8, playOut bool) error {
	if len(st.dealerCards) < 2 {
		hole, err := DrawCard(deck)
		if err != nil {
			return err
		}
		st.dealerCards = append(st.dealerCards, hole)
	}
	if !playOut {
		return nil
	}
	hitsSoft17 := st.rules.has(bjRuleHitSoft17)
	for {
		v, soft := bjHandValue(st.dealerCards)
		if v > 17 || (v == 17 && (!soft || !hitsSoft17)) {
			return nil
		}
		c, err := DrawCard(deck)
		if err != nil {
			return err
		}
		st.dealerCards = append(st.dealerCards, c)
	}
}

func bjFinalize(session *GameSession, st *blackjackState, totalReturn uint64) (GameResult, error) {
	st.stage = bjStageDone
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	session.IsComplete = true

	if totalReturn > 0 && session.SuperMode.IsActive && len(st.hands) > 0 {
		totalReturn = ApplyCardMultipliers(st.hands[0].cards, session.SuperMode.Multipliers, totalReturn)
	}
	totalWagered := st.totalWagered(session.Bet)

	dealerValue, _ := bjHandValue(st.dealerCards)
	summary := make([]byte, 0, 32)
	for i := range st.hands {
		v, _ := bjHandValue(st.hands[i].cards)
		if i > 0 {
			summary = append(summary, '/')
		}
		summary = append(summary, fmt.Sprintf("%d", v)...)
	}
	logs := []string{
		fmt.Sprintf("P: %s, D: %d", summary, dealerValue),
		fmt.Sprintf("totalWagered=%d totalReturn=%d", totalWagered, totalReturn),
	}
	if totalReturn == 0 {
		return LossPreDeducted(totalWagered, logs...), nil
	}
	return Win(totalReturn, logs...), nil
}

type blackjackEngine struct{}

func (blackjackEngine) Init(session *GameSession, _ *Rng) (GameResult, error) {
	st := &blackjackState{
		stage:        bjStageBetting,
		initialCards: [2]uint8{bjHiddenCard, bjHiddenCard},
		rules:        defaultBJRules(),
	}
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	return Continue(), nil
}

func (blackjackEngine) ProcessMove(session *GameSession, payload []byte, rng *Rng) (GameResult, error) {
	st, err := parseBlackjackState(session.StateBlob)
	if err != nil {
		return GameResult{}, err
	}
	if len(payload) == 0 {
		return GameResult{}, ErrInvalidPayload
	}

	switch st.stage {
	case bjStageBetting:
		return bjBettingMove(session, st, payload, rng)
	case bjStagePlayer:
		return bjPlayerMove(session, st, payload, rng)
	case bjStageReveal:
		if payload[0] != bjMoveReveal || len(payload) != 1 {
			return GameResult{}, ErrInvalidMove
		}
		return bjReveal(session, st, rng)
	default:
		return GameResult{}, ErrGameAlreadyComplete
	}
}

func bjBettingMove(session *GameSession, st *blackjackState, payload []byte, rng *Rng) (GameResult, error) {
	switch payload[0] {
	case bjMoveSet21Plus3:
		if len(payload) != 9 {
			return GameResult{}, ErrInvalidPayload
		}
		amount, _ := codec.ParseU64BE(payload, 1)
		delta := tcBetDelta(&st.sb21Plus3, codec.ClampBetAmount(amount, bjMaxSideBet))
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		if delta == 0 {
			return Continue(), nil
		}
		return ContinueWithUpdate(delta), nil

	case bjMoveSetRules:
		if len(payload) != 3 {
			return GameResult{}, ErrInvalidPayload
		}
		if payload[2] >= uint8(len(bjDeckCounts)) {
			return GameResult{}, ErrInvalidPayload
		}
		st.rules = bjRules{flags: payload[1], decks: payload[2]}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return Continue(), nil

	case bjMoveDeal:
		if len(payload) != 1 {
			return GameResult{}, ErrInvalidPayload
		}
		if err := bjDeal(session, st, rng); err != nil {
			return GameResult{}, err
		}
		return Continue(fmt.Sprintf("Dealt %s vs %s", FormatCardList(st.initialCards[:]), CardName(st.dealerCards[0]))), nil

	case bjMoveSurrender: // batch: side bets then deal
		if len(payload) != 9 && len(payload) != 33 && len(payload) != 41 {
			return GameResult{}, ErrInvalidPayload
		}
		amount, _ := codec.ParseU64BE(payload, 1)
		delta := tcBetDelta(&st.sb21Plus3, codec.ClampBetAmount(amount, bjMaxSideBet))
		if len(payload) >= 33 {
			lucky, _ := codec.ParseU64BE(payload, 9)
			pairs, _ := codec.ParseU64BE(payload, 17)
			bustIt, _ := codec.ParseU64BE(payload, 25)
			delta += tcBetDelta(&st.sbLucky, codec.ClampBetAmount(lucky, bjMaxSideBet))
			delta += tcBetDelta(&st.sbPairs, codec.ClampBetAmount(pairs, bjMaxSideBet))
			delta += tcBetDelta(&st.sbBustIt, codec.ClampBetAmount(bustIt, bjMaxSideBet))
		}
		if len(payload) == 41 {
			royal, _ := codec.ParseU64BE(payload, 33)
			delta += tcBetDelta(&st.sbRoyal, codec.ClampBetAmount(royal, bjMaxSideBet))
		}
		if err := bjDeal(session, st, rng); err != nil {
			return GameResult{}, err
		}
		log := fmt.Sprintf("Dealt %s vs %s", FormatCardList(st.initialCards[:]), CardName(st.dealerCards[0]))
		if delta == 0 {
			return Continue(log), nil
		}
		return ContinueWithUpdate(delta, log), nil

	default:
		return GameResult{}, ErrInvalidMove
	}
}

// bjDeal gives the player two cards and the dealer only the upcard.
func bjDeal(session *GameSession, st *blackjackState, rng *Rng) error {
	if len(st.hands) != 0 || len(st.dealerCards) != 0 {
		return ErrInvalidMove
	}
	deck := rng.CreateShoe(st.rules.deckCount())
	p1, err := DrawCard(&deck)
	if err != nil {
		return err
	}
	p2, err := DrawCard(&deck)
	if err != nil {
		return err
	}
	up, err := DrawCard(&deck)
	if err != nil {
		return err
	}

	st.initialCards = [2]uint8{p1, p2}
	status := uint8(bjHandPlaying)
	if bjIsBlackjack([]uint8{p1, p2}) {
		status = bjHandBlackjack
	}
	st.hands = []bjHand{{cards: []uint8{p1, p2}, betMult: 1, status: status}}
	st.dealerCards = []uint8{up}
	st.activeIdx = 0
	st.stage = bjStagePlayer
	if status != bjHandPlaying || !st.advanceTurn() {
		st.stage = bjStageReveal
	}
	return session.SetStateBlob(st.toBlob())
}

func bjPlayerMove(session *GameSession, st *blackjackState, payload []byte, rng *Rng) (GameResult, error) {
	if len(payload) != 1 {
		return GameResult{}, ErrInvalidPayload
	}
	if st.activeIdx >= len(st.hands) {
		return GameResult{}, ErrInvalidState
	}
	hand := &st.hands[st.activeIdx]
	if hand.status != bjHandPlaying {
		return GameResult{}, ErrInvalidMove
	}
	deck := st.rebuildShoe(rng)

	switch payload[0] {
	case bjMoveHit:
		c, err := DrawCard(&deck)
		if err != nil {
			return GameResult{}, err
		}
		hand.cards = append(hand.cards, c)
		v, _ := bjHandValue(hand.cards)
		if v > 21 {
			hand.status = bjHandBusted
			if !st.advanceTurn() {
				return bjPlayerDone(session, st, &deck)
			}
		} else if v == 21 {
			hand.status = bjHandStanding
			if !st.advanceTurn() {
				st.stage = bjStageReveal
			}
		}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return Continue(fmt.Sprintf("Hit %s", CardName(c))), nil

	case bjMoveStand:
		hand.status = bjHandStanding
		if !st.advanceTurn() {
			st.stage = bjStageReveal
		}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return Continue(), nil

	case bjMoveDouble:
		if len(hand.cards) != 2 || hand.betMult != 1 {
			return GameResult{}, ErrInvalidMove
		}
		if hand.wasSplit && !st.rules.has(bjRuleDoubleAfterSplit) {
			return GameResult{}, ErrInvalidMove
		}
		if session.Bet > math.MaxInt64 {
			return GameResult{}, ErrInvalidMove
		}
		hand.betMult = 2
		c, err := DrawCard(&deck)
		if err != nil {
			return GameResult{}, err
		}
		hand.cards = append(hand.cards, c)
		v, _ := bjHandValue(hand.cards)
		if v > 21 {
			hand.status = bjHandBusted
		} else {
			hand.status = bjHandStanding
		}
		if !st.advanceTurn() {
			return bjTerminalWithEscrow(session, st, &deck, -int64(session.Bet))
		}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return ContinueWithUpdate(-int64(session.Bet), fmt.Sprintf("Double, drew %s", CardName(c))), nil

	case bjMoveSplit:
		if len(st.hands) >= bjMaxHands || len(hand.cards) != 2 {
			return GameResult{}, ErrInvalidMove
		}
		if CardRank(hand.cards[0]) != CardRank(hand.cards[1]) {
			return GameResult{}, ErrInvalidMove
		}
		isAces := CardRank(hand.cards[0]) == 0
		if isAces && hand.wasSplit && !st.rules.has(bjRuleResplitAces) {
			return GameResult{}, ErrInvalidMove
		}
		if session.Bet > math.MaxInt64 {
			return GameResult{}, ErrInvalidMove
		}

		splitCard := hand.cards[1]
		hand.cards = hand.cards[:1]
		hand.wasSplit = true
		c1, err := DrawCard(&deck)
		if err != nil {
			return GameResult{}, err
		}
		hand.cards = append(hand.cards, c1)
		c2, err := DrawCard(&deck)
		if err != nil {
			return GameResult{}, err
		}
		standSplitAces := isAces && !st.rules.has(bjRuleHitSplitAces)
		if standSplitAces {
			hand.status = bjHandStanding
		}
		newHand := bjHand{cards: []uint8{splitCard, c2}, betMult: 1, status: bjHandPlaying, wasSplit: true}
		if standSplitAces {
			newHand.status = bjHandStanding
		}
		idx := st.activeIdx
		st.hands = append(st.hands, bjHand{})
		copy(st.hands[idx+2:], st.hands[idx+1:])
		st.hands[idx+1] = newHand
		if st.hands[idx].status != bjHandPlaying && !st.advanceTurn() {
			st.stage = bjStageReveal
		}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return ContinueWithUpdate(-int64(session.Bet), "Split"), nil

	case bjMoveSurrender:
		if !st.rules.has(bjRuleLateSurrender) {
			return GameResult{}, ErrInvalidMove
		}
		if len(hand.cards) != 2 || hand.betMult != 1 || hand.wasSplit {
			return GameResult{}, ErrInvalidMove
		}
		hand.status = bjHandSurrendered
		if !st.advanceTurn() {
			st.stage = bjStageReveal
		}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return Continue("Surrender"), nil

	default:
		return GameResult{}, ErrInvalidMove
	}
}

// bjPlayerDone handles the last hand resolving during the player turn. When
// every hand busted the main bet is already lost, so the dealer is only
// played out for side bets that still need a dealer hand.
func bjPlayerDone(session *GameSession, st *blackjackState, deck *[]uint8) (GameResult, error) {
	allBusted := true
	for i := range st.hands {
		if st.hands[i].status != bjHandBusted {
			allBusted = false
			break
		}
	}
	if !allBusted {
		st.stage = bjStageReveal
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return Continue("Bust"), nil
	}
	if st.sbLucky > 0 || st.sbBustIt > 0 {
		if err := st.revealDealer(deck, st.sbBustIt > 0); err != nil {
			return GameResult{}, err
		}
	}
	return bjFinalize(session, st, st.sideBetsReturn())
}

// bjTerminalWithEscrow covers a double that ends the hand: the extra bet
// must still be escrowed, so a terminal settlement is folded into a
// ContinueWithUpdate and IsComplete is set directly.
func bjTerminalWithEscrow(session *GameSession, st *blackjackState, deck *[]uint8, escrow int64) (GameResult, error) {
	allBusted := true
	for i := range st.hands {
		if st.hands[i].status != bjHandBusted {
			allBusted = false
			break
		}
	}
	if !allBusted {
		st.stage = bjStageReveal
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return ContinueWithUpdate(escrow, "Double"), nil
	}
	if st.sbLucky > 0 || st.sbBustIt > 0 {
		if err := st.revealDealer(deck, st.sbBustIt > 0); err != nil {
			return GameResult{}, err
		}
	}
	res, err := bjFinalize(session, st, st.sideBetsReturn())
	if err != nil {
		return GameResult{}, err
	}
	if res.Kind == KindLossPreDeducted {
		// The escrow and the pre-deducted loss cancel for the doubled
		// portion; report the loss net of the never-applied escrow.
		return ContinueWithUpdate(escrow, res.Logs...), nil
	}
	res.Logs = append(res.Logs, "Double escrow settled in return")
	return ContinueWithUpdate(escrow+int64(res.Amount), res.Logs...), nil
}

func bjReveal(session *GameSession, st *blackjackState, rng *Rng) (GameResult, error) {
	deck := st.rebuildShoe(rng)
	anyLive := false
	for i := range st.hands {
		if st.hands[i].status != bjHandBusted {
			anyLive = true
			break
		}
	}
	if err := st.revealDealer(&deck, anyLive); err != nil {
		return GameResult{}, err
	}
	total := st.mainReturn(session.Bet)
	total = saturatingAddU64(total, st.sideBetsReturn())
	return bjFinalize(session, st, total)
}
