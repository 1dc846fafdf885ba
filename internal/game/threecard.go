package game

// Three Card Poker with ante bonus, Pairplus, 6-card bonus, and progressive
// side bets. The dealer needs queen high to qualify, with an optional Q-6-4
// variant.
//
// State blob (32 bytes):
//   [stage:u8] [player:3] [dealer:3]
//   [pairplusBet:u64] [sixCardBet:u64] [progressiveBet:u64] [rules:u8]
// Cards are 0xFF until dealt.
//
// Stage 0 = betting, 1 = decision (player cards out, play or fold),
// 2 = awaiting reveal (play bet escrowed), 3 = complete.
//
// Payloads:
//   [0]                      play: escrow a play bet equal to the ante
//   [1]                      fold: dealer shown, side bets still resolve
//   [2]                      deal; optional trailing u64 sets Pairplus first
//   [3, amount:u64]          set Pairplus bet
//   [4]                      reveal dealer and settle everything
//   [5, amount:u64]          set 6-card bonus bet
//   [6, amount:u64]          set progressive bet
//   [7, pp:u64, six:u64, prog:u64]  atomic: all side bets + deal
//   [8, rules]               select dealer qualifier
//
// Bet changes surface as balance deltas; all final settlements report total
// return across every live bet.

import (
	"fmt"
	"math"
	"sort"

	"tablechain/internal/codec"
)

const (
	tcStateBytes = 32
	tcHiddenCard = 0xFF

	// Ante bonus, pay table #1.
	tcAnteBonusStraightFlush = 5
	tcAnteBonusTrips         = 4
	tcAnteBonusStraight      = 1

	// Progressive, for-one returns. A mini royal is A-K-Q suited; in spades
	// it hits the base jackpot.
	tcProgressiveJackpot       = 10000
	tcProgressiveMiniRoyal     = 500
	tcProgressiveStraightFlush = 70
	tcProgressiveTrips         = 60
	tcProgressiveStraight      = 6

	tcProgressiveBetUnit = 1
)

// Side bets are clamped so the deepest return (6-card royal, 1000:1) stays
// within int64 deltas.
const tcMaxSideBet = math.MaxInt64 / 1001

const (
	tcMovePlay        = 0
	tcMoveFold        = 1
	tcMoveDeal        = 2
	tcMoveSetPairplus = 3
	tcMoveReveal      = 4
	tcMoveSetSixCard  = 5
	tcMoveSetProg     = 6
	tcMoveBatch       = 7
	tcMoveSetRules    = 8
)

const (
	tcStageBetting  = 0
	tcStageDecision = 1
	tcStageReveal   = 2
	tcStageComplete = 3
)

const (
	tcQualifierQHigh = 0
	tcQualifierQ64   = 1
)

// threeCardRank orders three card hands; straights beat flushes.
type threeCardRank uint8

const (
	tcHighCard threeCardRank = iota
	tcPair
	tcFlush
	tcStraight
	tcTrips
	tcStraightFlush
)

func (r threeCardRank) String() string {
	switch r {
	case tcPair:
		return "pair"
	case tcFlush:
		return "flush"
	case tcStraight:
		return "straight"
	case tcTrips:
		return "three of a kind"
	case tcStraightFlush:
		return "straight flush"
	default:
		return "high card"
	}
}

type threeCardHand struct {
	rank    threeCardRank
	kickers [3]uint8
}

// evaluateThreeCard ranks a 3-card hand with ace-high ranks; A-2-3 is the
// lowest straight and plays as 3-high.
func evaluateThreeCard(hand [3]uint8) threeCardHand {
	var ranks, suits [3]uint8
	for i, c := range hand {
		ranks[i] = CardRankAceHigh(c)
		suits[i] = CardSuit(c)
	}

	isFlush := suits[0] == suits[1] && suits[1] == suits[2]

	sorted := ranks
	sort.Slice(sorted[:], func(i, j int) bool { return sorted[i] < sorted[j] })
	isWheel := sorted == [3]uint8{2, 3, 14}
	isStraight := isWheel || (sorted[2]-sorted[0] == 2 && sorted[1]-sorted[0] == 1)
	straightHigh := sorted[2]
	if isWheel {
		straightHigh = 3
	}

	var tripRank, pairRank, kickerRank uint8
	var counts [15]uint8
	for _, r := range ranks {
		counts[r]++
	}
	for r := 14; r >= 2; r-- {
		switch counts[r] {
		case 3:
			tripRank = uint8(r)
		case 2:
			pairRank = uint8(r)
		case 1:
			if kickerRank == 0 {
				kickerRank = uint8(r)
			}
		}
	}

	desc := [3]uint8{sorted[2], sorted[1], sorted[0]}

	var out threeCardHand
	switch {
	case isStraight && isFlush:
		out = threeCardHand{tcStraightFlush, [3]uint8{straightHigh, 0, 0}}
	case tripRank > 0:
		out = threeCardHand{tcTrips, [3]uint8{tripRank, 0, 0}}
	case isStraight:
		out = threeCardHand{tcStraight, [3]uint8{straightHigh, 0, 0}}
	case isFlush:
		out = threeCardHand{tcFlush, desc}
	case pairRank > 0:
		out = threeCardHand{tcPair, [3]uint8{pairRank, kickerRank, 0}}
	default:
		out = threeCardHand{tcHighCard, desc}
	}
	return out
}

// compareThreeCard returns >0 when a beats b, <0 when b beats a, 0 on a tie.
func compareThreeCard(a, b threeCardHand) int {
	if a.rank != b.rank {
		return int(a.rank) - int(b.rank)
	}
	for i := 0; i < 3; i++ {
		if a.kickers[i] != b.kickers[i] {
			return int(a.kickers[i]) - int(b.kickers[i])
		}
	}
	return 0
}

func tcAnteBonusWinnings(rank threeCardRank) uint64 {
	switch rank {
	case tcStraightFlush:
		return tcAnteBonusStraightFlush
	case tcTrips:
		return tcAnteBonusTrips
	case tcStraight:
		return tcAnteBonusStraight
	default:
		return 0
	}
}

func tcPairplusWinnings(rank threeCardRank) uint64 {
	switch rank {
	case tcStraightFlush:
		return 40
	case tcTrips:
		return 30
	case tcStraight:
		return 6
	case tcFlush:
		return 3
	case tcPair:
		return 1
	default:
		return 0
	}
}

func tcDealerQualifies(dealer threeCardHand, qualifier uint8) bool {
	if dealer.rank >= tcPair {
		return true
	}
	if qualifier == tcQualifierQ64 {
		k := dealer.kickers
		q64 := [3]uint8{12, 6, 4}
		for i := 0; i < 3; i++ {
			if k[i] != q64[i] {
				return k[i] > q64[i]
			}
		}
		return true
	}
	return dealer.kickers[0] >= 12
}

// Six-card bonus ranks the best five of the combined six cards, WoO pay
// table 1-A.
type tcBonusRank uint8

const (
	tcBonusNone tcBonusRank = iota
	tcBonusTrips
	tcBonusStraight
	tcBonusFlush
	tcBonusFullHouse
	tcBonusQuads
	tcBonusStraightFlush
	tcBonusRoyal
)

func tcBonusWinnings(rank tcBonusRank) uint64 {
	switch rank {
	case tcBonusRoyal:
		return 1000
	case tcBonusStraightFlush:
		return 200
	case tcBonusQuads:
		return 100
	case tcBonusFullHouse:
		return 20
	case tcBonusFlush:
		return 15
	case tcBonusStraight:
		return 10
	case tcBonusTrips:
		return 7
	default:
		return 0
	}
}

func tcRankFive(hand [5]uint8) tcBonusRank {
	var ranks, suits [5]uint8
	for i, c := range hand {
		ranks[i] = CardRankAceHigh(c)
		suits[i] = CardSuit(c)
	}

	isFlush := true
	for i := 1; i < 5; i++ {
		if suits[i] != suits[0] {
			isFlush = false
			break
		}
	}

	sorted := ranks
	sort.Slice(sorted[:], func(i, j int) bool { return sorted[i] < sorted[j] })
	hasDuplicates := false
	for i := 1; i < 5; i++ {
		if sorted[i] == sorted[i-1] {
			hasDuplicates = true
			break
		}
	}
	isStraight := !hasDuplicates &&
		(sorted[4]-sorted[0] == 4 || sorted == [5]uint8{2, 3, 4, 5, 14})
	isRoyal := sorted == [5]uint8{10, 11, 12, 13, 14}

	var counts [15]uint8
	for _, r := range ranks {
		counts[r]++
	}
	var pairs int
	var hasTrips, hasQuads bool
	for _, c := range counts {
		switch c {
		case 2:
			pairs++
		case 3:
			hasTrips = true
		case 4:
			hasQuads = true
		}
	}

	switch {
	case isRoyal && isFlush:
		return tcBonusRoyal
	case isStraight && isFlush:
		return tcBonusStraightFlush
	case hasQuads:
		return tcBonusQuads
	case hasTrips && pairs >= 1:
		return tcBonusFullHouse
	case isFlush:
		return tcBonusFlush
	case isStraight:
		return tcBonusStraight
	case hasTrips:
		return tcBonusTrips
	default:
		return tcBonusNone
	}
}

func tcBestFiveOfSix(cards [6]uint8) tcBonusRank {
	best := tcBonusNone
	for skip := 0; skip < 6; skip++ {
		var hand [5]uint8
		idx := 0
		for i, c := range cards {
			if i == skip {
				continue
			}
			hand[idx] = c
			idx++
		}
		if r := tcRankFive(hand); r > best {
			best = r
		}
	}
	return best
}

type threeCardState struct {
	stage       uint8
	player      [3]uint8
	dealer      [3]uint8
	pairplusBet uint64
	sixCardBet  uint64
	progBet     uint64
	qualifier   uint8
}

func parseThreeCardState(blob []byte) (*threeCardState, error) {
	body, err := stateBlobBody(blob)
	if err != nil {
		return nil, err
	}
	if len(body) != tcStateBytes {
		return nil, ErrInvalidState
	}
	r := codec.NewReader(body)
	st := &threeCardState{}
	st.stage, _ = r.U8()
	for i := range st.player {
		st.player[i], _ = r.U8()
	}
	for i := range st.dealer {
		st.dealer[i], _ = r.U8()
	}
	st.pairplusBet, _ = r.U64()
	st.sixCardBet, _ = r.U64()
	st.progBet, _ = r.U64()
	qualifier, ok := r.U8()
	if !ok || st.stage > tcStageComplete || qualifier > tcQualifierQ64 {
		return nil, ErrInvalidState
	}
	st.qualifier = qualifier
	for _, c := range append(st.player[:], st.dealer[:]...) {
		if c >= DeckSize && c != tcHiddenCard {
			return nil, ErrInvalidState
		}
	}
	if st.pairplusBet > tcMaxSideBet || st.sixCardBet > tcMaxSideBet || st.progBet > tcProgressiveBetUnit {
		return nil, ErrInvalidState
	}
	return st, nil
}

func (st *threeCardState) toBlob() []byte {
	w := codec.NewWriter(1 + tcStateBytes)
	w.U8(codec.ProtocolVersion)
	w.U8(st.stage)
	w.Raw(st.player[:])
	w.Raw(st.dealer[:])
	w.U64(st.pairplusBet)
	w.U64(st.sixCardBet)
	w.U64(st.progBet)
	w.U8(st.qualifier)
	return w.Bytes()
}

type threeCardEngine struct{}

func (threeCardEngine) Init(session *GameSession, _ *Rng) (GameResult, error) {
	st := &threeCardState{
		stage:  tcStageBetting,
		player: [3]uint8{tcHiddenCard, tcHiddenCard, tcHiddenCard},
		dealer: [3]uint8{tcHiddenCard, tcHiddenCard, tcHiddenCard},
	}
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	return Continue(), nil
}

func (threeCardEngine) ProcessMove(session *GameSession, payload []byte, rng *Rng) (GameResult, error) {
	st, err := parseThreeCardState(session.StateBlob)
	if err != nil {
		return GameResult{}, err
	}
	if len(payload) == 0 {
		return GameResult{}, ErrInvalidPayload
	}

	switch st.stage {
	case tcStageBetting:
		return threeCardBettingMove(session, st, payload, rng)
	case tcStageDecision:
		switch payload[0] {
		case tcMovePlay:
			if len(payload) != 1 {
				return GameResult{}, ErrInvalidPayload
			}
			if session.Bet > math.MaxInt64 {
				return GameResult{}, ErrInvalidMove
			}
			st.stage = tcStageReveal
			if err := session.SetStateBlob(st.toBlob()); err != nil {
				return GameResult{}, err
			}
			return ContinueWithUpdate(-int64(session.Bet), "Play bet placed"), nil
		case tcMoveFold:
			if len(payload) != 1 {
				return GameResult{}, ErrInvalidPayload
			}
			return threeCardFold(session, st, rng)
		default:
			return GameResult{}, ErrInvalidMove
		}
	case tcStageReveal:
		if payload[0] != tcMoveReveal || len(payload) != 1 {
			return GameResult{}, ErrInvalidMove
		}
		return threeCardReveal(session, st, rng)
	default:
		return GameResult{}, ErrGameAlreadyComplete
	}
}

func threeCardBettingMove(session *GameSession, st *threeCardState, payload []byte, rng *Rng) (GameResult, error) {
	switch payload[0] {
	case tcMoveSetRules:
		if len(payload) != 2 {
			return GameResult{}, ErrInvalidPayload
		}
		if payload[1] > tcQualifierQ64 {
			return GameResult{}, ErrInvalidPayload
		}
		st.qualifier = payload[1]
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return Continue(), nil

	case tcMoveSetPairplus, tcMoveSetSixCard, tcMoveSetProg:
		if len(payload) != 9 {
			return GameResult{}, ErrInvalidPayload
		}
		amount, _ := codec.ParseU64BE(payload, 1)
		var delta int64
		switch payload[0] {
		case tcMoveSetPairplus:
			delta = tcBetDelta(&st.pairplusBet, codec.ClampBetAmount(amount, tcMaxSideBet))
		case tcMoveSetSixCard:
			delta = tcBetDelta(&st.sixCardBet, codec.ClampBetAmount(amount, tcMaxSideBet))
		default:
			delta = tcBetDelta(&st.progBet, codec.ClampBetAmount(amount, tcProgressiveBetUnit))
		}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		if delta == 0 {
			return Continue(), nil
		}
		return ContinueWithUpdate(delta), nil

	case tcMoveDeal:
		var delta int64
		switch len(payload) {
		case 1:
		case 9:
			amount, _ := codec.ParseU64BE(payload, 1)
			delta = tcBetDelta(&st.pairplusBet, codec.ClampBetAmount(amount, tcMaxSideBet))
		default:
			return GameResult{}, ErrInvalidPayload
		}
		if err := threeCardDeal(session, st, rng); err != nil {
			return GameResult{}, err
		}
		if delta == 0 {
			return Continue(fmt.Sprintf("Dealt %s", FormatCardList(st.player[:]))), nil
		}
		return ContinueWithUpdate(delta, fmt.Sprintf("Dealt %s", FormatCardList(st.player[:]))), nil

	case tcMoveBatch:
		if len(payload) != 25 {
			return GameResult{}, ErrInvalidPayload
		}
		pairplus, _ := codec.ParseU64BE(payload, 1)
		sixCard, _ := codec.ParseU64BE(payload, 9)
		prog, _ := codec.ParseU64BE(payload, 17)
		delta := tcBetDelta(&st.pairplusBet, codec.ClampBetAmount(pairplus, tcMaxSideBet))
		delta += tcBetDelta(&st.sixCardBet, codec.ClampBetAmount(sixCard, tcMaxSideBet))
		delta += tcBetDelta(&st.progBet, codec.ClampBetAmount(prog, tcProgressiveBetUnit))
		if err := threeCardDeal(session, st, rng); err != nil {
			return GameResult{}, err
		}
		if delta == 0 {
			return Continue(fmt.Sprintf("Dealt %s", FormatCardList(st.player[:]))), nil
		}
		return ContinueWithUpdate(delta, fmt.Sprintf("Dealt %s", FormatCardList(st.player[:]))), nil

	default:
		return GameResult{}, ErrInvalidMove
	}
}

// tcBetDelta moves a stored side bet to its new amount and returns the
// balance delta, negative when the bet grows. Clamping keeps the difference
// within int64.
func tcBetDelta(slot *uint64, next uint64) int64 {
	prev := *slot
	*slot = next
	if next >= prev {
		return -int64(next - prev)
	}
	return int64(prev - next)
}

func threeCardDeal(session *GameSession, st *threeCardState, rng *Rng) error {
	if st.player[0] != tcHiddenCard {
		return ErrInvalidMove
	}
	deck := rng.CreateDeck()
	for i := range st.player {
		c, err := DrawCard(&deck)
		if err != nil {
			return err
		}
		st.player[i] = c
	}
	st.stage = tcStageDecision
	return session.SetStateBlob(st.toBlob())
}

func threeCardDealDealer(session *GameSession, st *threeCardState, rng *Rng) error {
	deck := rng.CreateDeckExcluding(st.player[:])
	for i := range st.dealer {
		c, err := DrawCard(&deck)
		if err != nil {
			return err
		}
		st.dealer[i] = c
	}
	st.stage = tcStageComplete
	return session.SetStateBlob(st.toBlob())
}

// tcSuper boosts a nonzero return by the flash multipliers on the player's
// cards.
func tcSuper(session *GameSession, player [3]uint8, amount uint64) uint64 {
	if amount == 0 || !session.SuperMode.IsActive {
		return amount
	}
	return ApplyThreeCardFlash(player[:], session.SuperMode.Multipliers, amount)
}

func (st *threeCardState) pairplusReturn() uint64 {
	if st.pairplusBet == 0 {
		return 0
	}
	w := tcPairplusWinnings(evaluateThreeCard(st.player).rank)
	if w == 0 {
		return 0
	}
	return saturatingMulU64(st.pairplusBet, w+1)
}

func (st *threeCardState) sixCardReturn() uint64 {
	if st.sixCardBet == 0 {
		return 0
	}
	all := [6]uint8{st.player[0], st.player[1], st.player[2], st.dealer[0], st.dealer[1], st.dealer[2]}
	w := tcBonusWinnings(tcBestFiveOfSix(all))
	if w == 0 {
		return 0
	}
	return saturatingMulU64(st.sixCardBet, w+1)
}

// progressiveReturn is for-one: the stake is consumed even on a win.
func (st *threeCardState) progressiveReturn() uint64 {
	if st.progBet == 0 {
		return 0
	}
	hand := evaluateThreeCard(st.player)
	switch hand.rank {
	case tcStraightFlush:
		if tcIsMiniRoyal(st.player) {
			if CardSuit(st.player[0]) == 3 { // spades
				return saturatingMulU64(st.progBet, tcProgressiveJackpot)
			}
			return saturatingMulU64(st.progBet, tcProgressiveMiniRoyal)
		}
		return saturatingMulU64(st.progBet, tcProgressiveStraightFlush)
	case tcTrips:
		return saturatingMulU64(st.progBet, tcProgressiveTrips)
	case tcStraight:
		return saturatingMulU64(st.progBet, tcProgressiveStraight)
	default:
		return 0
	}
}

func tcIsMiniRoyal(hand [3]uint8) bool {
	var ranks [3]uint8
	for i, c := range hand {
		ranks[i] = CardRankAceHigh(c)
	}
	sort.Slice(ranks[:], func(i, j int) bool { return ranks[i] < ranks[j] })
	if ranks != [3]uint8{12, 13, 14} {
		return false
	}
	suit := CardSuit(hand[0])
	return CardSuit(hand[1]) == suit && CardSuit(hand[2]) == suit
}

func threeCardFold(session *GameSession, st *threeCardState, rng *Rng) (GameResult, error) {
	if err := threeCardDealDealer(session, st, rng); err != nil {
		return GameResult{}, err
	}
	session.IsComplete = true

	pairplus := tcSuper(session, st.player, st.pairplusReturn())
	sixCard := tcSuper(session, st.player, st.sixCardReturn())
	progressive := tcSuper(session, st.player, st.progressiveReturn())
	totalReturn := saturatingAddU64(saturatingAddU64(pairplus, sixCard), progressive)

	totalWagered := session.Bet
	totalWagered = saturatingAddU64(totalWagered, st.pairplusBet)
	totalWagered = saturatingAddU64(totalWagered, st.sixCardBet)
	totalWagered = saturatingAddU64(totalWagered, st.progBet)

	logs := []string{
		fmt.Sprintf("Fold: player %s, dealer %s", FormatCardList(st.player[:]), FormatCardList(st.dealer[:])),
		fmt.Sprintf("totalWagered=%d totalReturn=%d", totalWagered, totalReturn),
	}
	if totalReturn == 0 {
		return LossPreDeducted(totalWagered, logs...), nil
	}
	return Win(totalReturn, logs...), nil
}

func threeCardReveal(session *GameSession, st *threeCardState, rng *Rng) (GameResult, error) {
	if err := threeCardDealDealer(session, st, rng); err != nil {
		return GameResult{}, err
	}
	session.IsComplete = true

	playerHand := evaluateThreeCard(st.player)
	dealerHand := evaluateThreeCard(st.dealer)
	dealerOK := tcDealerQualifies(dealerHand, st.qualifier)

	// Ante bonus pays whenever the player plays, dealer outcome aside.
	anteBonus := saturatingMulU64(session.Bet, tcAnteBonusWinnings(playerHand.rank))

	var anteReturn, playReturn uint64
	var outcome string
	switch {
	case !dealerOK:
		// Ante wins even money, play pushes.
		anteReturn = saturatingAddU64(saturatingMulU64(session.Bet, 2), anteBonus)
		playReturn = session.Bet
		outcome = "dealer does not qualify"
	case compareThreeCard(playerHand, dealerHand) > 0:
		anteReturn = saturatingAddU64(saturatingMulU64(session.Bet, 2), anteBonus)
		playReturn = saturatingMulU64(session.Bet, 2)
		outcome = "player wins"
	case compareThreeCard(playerHand, dealerHand) == 0:
		anteReturn = saturatingAddU64(session.Bet, anteBonus)
		playReturn = session.Bet
		outcome = "push"
	default:
		anteReturn = anteBonus
		playReturn = 0
		outcome = "dealer wins"
	}

	anteReturn = tcSuper(session, st.player, anteReturn)
	playReturn = tcSuper(session, st.player, playReturn)
	pairplus := tcSuper(session, st.player, st.pairplusReturn())
	sixCard := tcSuper(session, st.player, st.sixCardReturn())
	progressive := tcSuper(session, st.player, st.progressiveReturn())

	totalReturn := anteReturn
	totalReturn = saturatingAddU64(totalReturn, playReturn)
	totalReturn = saturatingAddU64(totalReturn, pairplus)
	totalReturn = saturatingAddU64(totalReturn, sixCard)
	totalReturn = saturatingAddU64(totalReturn, progressive)

	totalWagered := saturatingMulU64(session.Bet, 2)
	totalWagered = saturatingAddU64(totalWagered, st.pairplusBet)
	totalWagered = saturatingAddU64(totalWagered, st.sixCardBet)
	totalWagered = saturatingAddU64(totalWagered, st.progBet)

	logs := []string{
		fmt.Sprintf("%s vs %s: %s", playerHand.rank, dealerHand.rank, outcome),
		fmt.Sprintf("totalWagered=%d totalReturn=%d", totalWagered, totalReturn),
	}
	if totalReturn == 0 {
		return LossPreDeducted(totalWagered, logs...), nil
	}
	return Win(totalReturn, logs...), nil
}
