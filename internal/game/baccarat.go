package game

// Baccarat with multi-bet support.
//
// State blob:
//   [betCount:u8] [bets: 9 bytes each] [playerLen:u8] [playerCards...] [bankerLen:u8] [bankerCards...]
// Each bet: [betType:u8] [amount:u64].
//
// Payloads:
//   [0, betType, amount:u64]   place bet (amounts merge per bet type)
//   [1]                        deal and resolve all bets
//   [2]                        clear pending bets (refund)
//   [3, betCount, bets...]     atomic batch: place all bets + deal
//
// Banker wins pay 95% of the stake as winnings; the 5% commission rounds
// down and can reduce the profit on a tiny bet to zero.

import (
	"fmt"
	"math"

	"tablechain/internal/codec"
)

const (
	baccaratMaxBets  = 10
	baccaratBetBytes = 9
	baccaratHandMax  = 3
	baccaratDecks    = 8
)

// Winnings multipliers ("to 1", stake excluded).
const (
	baccaratTiePays         = 9
	baccaratPairPays        = 12
	baccaratLucky6TwoCard   = 12
	baccaratLucky6ThreeCard = 23
	baccaratPanda8Pays      = 25
	baccaratPerfectEither   = 25
	baccaratPerfectBoth     = 250
)

// Dragon Bonus winnings by margin of victory for a non-natural win.
var baccaratDragonMargin = map[uint8]uint64{9: 30, 8: 10, 7: 6, 6: 4, 5: 2, 4: 1}

type baccaratBetType uint8

const (
	baccaratPlayer baccaratBetType = iota
	baccaratBanker
	baccaratTie
	baccaratPlayerPair
	baccaratBankerPair
	baccaratLucky6
	baccaratPlayerDragon
	baccaratBankerDragon
	baccaratPanda8
	baccaratPerfectPair
)

func baccaratBetTypeFromByte(b uint8) (baccaratBetType, error) {
	if b > uint8(baccaratPerfectPair) {
		return 0, ErrInvalidPayload
	}
	return baccaratBetType(b), nil
}

// BaccaratValue lives in cards.go: A=1, 2-9 pip, tens and faces 0.

func baccaratHandTotal(hand []uint8) uint8 {
	var sum uint8
	for _, c := range hand {
		sum += BaccaratValue(c)
	}
	return sum % 10
}

func baccaratIsPair(hand []uint8) bool {
	return len(hand) >= 2 && CardRank(hand[0]) == CardRank(hand[1])
}

func baccaratIsSuitedPair(hand []uint8) bool {
	return baccaratIsPair(hand) && CardSuit(hand[0]) == CardSuit(hand[1])
}

func baccaratPlayerDrawsThird(playerTotal uint8) bool {
	return playerTotal <= 5
}

// baccaratBankerDrawsThird implements the fixed tableau. playerThird is the
// player's exposed third card, or 0xff when the player stood.
func baccaratBankerDrawsThird(bankerTotal uint8, playerThird uint8) bool {
	if playerThird == 0xff {
		return bankerTotal <= 5
	}
	v := BaccaratValue(playerThird)
	switch bankerTotal {
	case 0, 1, 2:
		return true
	case 3:
		return v != 8
	case 4:
		return v >= 2 && v <= 7
	case 5:
		return v >= 4 && v <= 7
	case 6:
		return v == 6 || v == 7
	default:
		return false
	}
}

type baccaratBet struct {
	betType baccaratBetType
	amount  uint64
}

type baccaratState struct {
	bets        []baccaratBet
	playerCards []uint8
	bankerCards []uint8
}

func (s *baccaratState) toBlob() []byte {
	w := codec.NewWriter(2 + len(s.bets)*baccaratBetBytes + 2 + len(s.playerCards) + len(s.bankerCards))
	w.U8(codec.ProtocolVersion)
	w.U8(uint8(len(s.bets)))
	for _, b := range s.bets {
		w.U8(uint8(b.betType))
		w.U64(b.amount)
	}
	w.Vec(s.playerCards)
	w.Vec(s.bankerCards)
	return w.Bytes()
}

func parseBaccaratState(blob []byte) (*baccaratState, error) {
	body, err := stateBlobBody(blob)
	if err != nil {
		return nil, err
	}
	r := codec.NewReader(body)
	betCount, ok := r.U8()
	if !ok || int(betCount) > baccaratMaxBets {
		return nil, ErrInvalidState
	}
	st := &baccaratState{bets: make([]baccaratBet, 0, betCount)}
	for i := 0; i < int(betCount); i++ {
		btByte, ok := r.U8()
		if !ok {
			return nil, ErrInvalidState
		}
		bt, err := baccaratBetTypeFromByte(btByte)
		if err != nil {
			return nil, ErrInvalidState
		}
		amount, ok := r.U64()
		if !ok || amount == 0 {
			return nil, ErrInvalidState
		}
		st.bets = append(st.bets, baccaratBet{betType: bt, amount: amount})
	}
	if r.Remaining() == 0 {
		return st, nil
	}
	player, ok := r.Vec()
	if !ok || len(player) > baccaratHandMax {
		return nil, ErrInvalidState
	}
	banker, ok := r.Vec()
	if !ok || len(banker) > baccaratHandMax {
		return nil, ErrInvalidState
	}
	for _, c := range player {
		if c >= DeckSize {
			return nil, ErrInvalidState
		}
	}
	for _, c := range banker {
		if c >= DeckSize {
			return nil, ErrInvalidState
		}
	}
	st.playerCards = player
	st.bankerCards = banker
	return st, nil
}

type baccaratOutcome struct {
	playerTotal      uint8
	bankerTotal      uint8
	playerPair       bool
	bankerPair       bool
	playerSuitedPair bool
	bankerSuitedPair bool
	playerCardCount  int
	bankerCardCount  int
}

// baccaratBetPayout returns the signed winnings delta for one bet and whether
// the bet pushed. Winning deltas exclude the stake.
func baccaratBetPayout(bet baccaratBet, o *baccaratOutcome) (int64, bool) {
	lose := -int64(bet.amount)
	switch bet.betType {
	case baccaratPlayerPair:
		if o.playerPair {
			return int64(saturatingMulU64(bet.amount, baccaratPairPays)), false
		}
		return lose, false
	case baccaratBankerPair:
		if o.bankerPair {
			return int64(saturatingMulU64(bet.amount, baccaratPairPays)), false
		}
		return lose, false
	case baccaratTie:
		if o.playerTotal == o.bankerTotal {
			return int64(saturatingMulU64(bet.amount, baccaratTiePays)), false
		}
		return lose, false
	case baccaratPlayer:
		if o.playerTotal == o.bankerTotal {
			return 0, true
		}
		if o.playerTotal > o.bankerTotal {
			return int64(bet.amount), false
		}
		return lose, false
	case baccaratBanker:
		if o.playerTotal == o.bankerTotal {
			return 0, true
		}
		if o.bankerTotal > o.playerTotal {
			// 5% commission, rounded down. A 1-chip win nets zero.
			return int64(saturatingMulU64(bet.amount, 95) / 100), false
		}
		return lose, false
	case baccaratLucky6:
		if o.bankerTotal == 6 && o.bankerTotal > o.playerTotal {
			mult := uint64(baccaratLucky6TwoCard)
			if o.bankerCardCount == 3 {
				mult = baccaratLucky6ThreeCard
			}
			return int64(saturatingMulU64(bet.amount, mult)), false
		}
		return lose, false
	case baccaratPlayerDragon:
		return baccaratDragonPayout(bet.amount, o, true)
	case baccaratBankerDragon:
		return baccaratDragonPayout(bet.amount, o, false)
	case baccaratPanda8:
		if o.playerTotal == 8 && o.playerCardCount == 3 && o.playerTotal > o.bankerTotal {
			return int64(saturatingMulU64(bet.amount, baccaratPanda8Pays)), false
		}
		return lose, false
	case baccaratPerfectPair:
		if o.playerSuitedPair && o.bankerSuitedPair {
			return int64(saturatingMulU64(bet.amount, baccaratPerfectBoth)), false
		}
		if o.playerSuitedPair || o.bankerSuitedPair {
			return int64(saturatingMulU64(bet.amount, baccaratPerfectEither)), false
		}
		return lose, false
	default:
		return lose, false
	}
}

func baccaratDragonPayout(amount uint64, o *baccaratOutcome, playerSide bool) (int64, bool) {
	playerNatural := o.playerCardCount == 2 && o.playerTotal >= 8
	bankerNatural := o.bankerCardCount == 2 && o.bankerTotal >= 8

	myTotal, oppTotal, myNatural := o.playerTotal, o.bankerTotal, playerNatural
	if !playerSide {
		myTotal, oppTotal, myNatural = o.bankerTotal, o.playerTotal, bankerNatural
	}

	if o.playerTotal == o.bankerTotal && playerNatural && bankerNatural {
		return 0, true
	}
	if myTotal <= oppTotal {
		return -int64(amount), false
	}
	if myNatural {
		return int64(amount), false
	}
	if mult, ok := baccaratDragonMargin[myTotal-oppTotal]; ok {
		return int64(saturatingMulU64(amount, mult)), false
	}
	return -int64(amount), false
}

func baccaratDeal(st *baccaratState, rng *Rng) error {
	deck := rng.CreateShoe(baccaratDecks)

	st.playerCards = make([]uint8, 0, baccaratHandMax)
	st.bankerCards = make([]uint8, 0, baccaratHandMax)
	for i := 0; i < 2; i++ {
		c, err := DrawCard(&deck)
		if err != nil {
			return err
		}
		st.playerCards = append(st.playerCards, c)
		c, err = DrawCard(&deck)
		if err != nil {
			return err
		}
		st.bankerCards = append(st.bankerCards, c)
	}

	playerTotal := baccaratHandTotal(st.playerCards)
	bankerTotal := baccaratHandTotal(st.bankerCards)
	if playerTotal >= 8 || bankerTotal >= 8 {
		return nil
	}

	playerThird := uint8(0xff)
	if baccaratPlayerDrawsThird(playerTotal) {
		c, err := DrawCard(&deck)
		if err != nil {
			return err
		}
		st.playerCards = append(st.playerCards, c)
		playerThird = c
	}
	if baccaratBankerDrawsThird(bankerTotal, playerThird) {
		c, err := DrawCard(&deck)
		if err != nil {
			return err
		}
		st.bankerCards = append(st.bankerCards, c)
	}
	return nil
}

func baccaratOutcomeOf(st *baccaratState) *baccaratOutcome {
	return &baccaratOutcome{
		playerTotal:      baccaratHandTotal(st.playerCards),
		bankerTotal:      baccaratHandTotal(st.bankerCards),
		playerPair:       baccaratIsPair(st.playerCards),
		bankerPair:       baccaratIsPair(st.bankerCards),
		playerSuitedPair: baccaratIsSuitedPair(st.playerCards),
		bankerSuitedPair: baccaratIsSuitedPair(st.bankerCards),
		playerCardCount:  len(st.playerCards),
		bankerCardCount:  len(st.bankerCards),
	}
}

// baccaratSettle converts the per-bet deltas into a terminal GameResult. All
// wagers are escrowed by the time settlement runs, so a full loss settles as
// pre-deducted.
func baccaratSettle(session *GameSession, st *baccaratState, totalWagered uint64) (GameResult, error) {
	o := baccaratOutcomeOf(st)

	var netPayout int64
	allPush := true
	for _, b := range st.bets {
		delta, push := baccaratBetPayout(b, o)
		if netPayout > 0 && delta > math.MaxInt64-netPayout {
			netPayout = math.MaxInt64
		} else {
			netPayout += delta
		}
		if !push {
			allPush = false
		}
	}

	var totalReturn uint64
	switch {
	case allPush && netPayout == 0:
		totalReturn = totalWagered
	case netPayout > 0:
		totalReturn = saturatingAddU64(totalWagered, uint64(netPayout))
	case netPayout < 0:
		loss := uint64(-netPayout)
		if loss >= totalWagered {
			totalReturn = 0
		} else {
			totalReturn = totalWagered - loss
		}
	default:
		totalReturn = totalWagered
	}

	if session.SuperMode.IsActive && totalReturn > 0 {
		all := make([]uint8, 0, 6)
		all = append(all, st.playerCards...)
		all = append(all, st.bankerCards...)
		totalReturn = ApplyCardMultipliers(all, session.SuperMode.Multipliers, totalReturn)
	}

	winner := "TIE"
	if o.playerTotal > o.bankerTotal {
		winner = "PLAYER"
	} else if o.bankerTotal > o.playerTotal {
		winner = "BANKER"
	}
	logs := []string{
		fmt.Sprintf("P: %s (%d), B: %s (%d), Winner: %s",
			FormatCardList(st.playerCards), o.playerTotal,
			FormatCardList(st.bankerCards), o.bankerTotal, winner),
		fmt.Sprintf("totalWagered=%d totalReturn=%d", totalWagered, totalReturn),
	}

	switch {
	case allPush && netPayout == 0:
		return Push(totalReturn, logs...), nil
	case netPayout < 0 && uint64(-netPayout) >= totalWagered:
		return LossPreDeducted(totalWagered, logs...), nil
	default:
		return Win(totalReturn, logs...), nil
	}
}

type baccaratEngine struct{}

func (baccaratEngine) Init(session *GameSession, _ *Rng) (GameResult, error) {
	st := &baccaratState{}
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	return Continue(), nil
}

func (baccaratEngine) ProcessMove(session *GameSession, payload []byte, rng *Rng) (GameResult, error) {
	st, err := parseBaccaratState(session.StateBlob)
	if err != nil {
		return GameResult{}, err
	}

	switch payload[0] {
	case 0:
		if len(payload) != 10 {
			return GameResult{}, ErrInvalidPayload
		}
		if len(st.playerCards) != 0 {
			return GameResult{}, ErrInvalidMove
		}
		bt, err := baccaratBetTypeFromByte(payload[1])
		if err != nil {
			return GameResult{}, err
		}
		amount, err := codec.ParseU64BE(payload, 2)
		if err != nil || amount == 0 {
			return GameResult{}, ErrInvalidPayload
		}

		// Repeat bets on the same type merge.
		var deducted uint64
		merged := false
		for i := range st.bets {
			if st.bets[i].betType == bt {
				before := st.bets[i].amount
				st.bets[i].amount = saturatingAddU64(before, amount)
				deducted = st.bets[i].amount - before
				merged = true
				break
			}
		}
		if !merged {
			if len(st.bets) >= baccaratMaxBets {
				return GameResult{}, ErrInvalidMove
			}
			st.bets = append(st.bets, baccaratBet{betType: bt, amount: amount})
			deducted = amount
		}
		delta, err := escrowDelta(deducted)
		if err != nil {
			return GameResult{}, err
		}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return ContinueWithUpdate(delta), nil

	case 1:
		if len(payload) != 1 {
			return GameResult{}, ErrInvalidPayload
		}
		if len(st.bets) == 0 || len(st.playerCards) != 0 {
			return GameResult{}, ErrInvalidMove
		}
		if err := baccaratDeal(st, rng); err != nil {
			return GameResult{}, err
		}
		var totalWagered uint64
		for _, b := range st.bets {
			totalWagered = saturatingAddU64(totalWagered, b.amount)
		}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return baccaratSettle(session, st, totalWagered)

	case 2:
		if len(payload) != 1 {
			return GameResult{}, ErrInvalidPayload
		}
		if len(st.playerCards) != 0 {
			return GameResult{}, ErrInvalidMove
		}
		var refund uint64
		for _, b := range st.bets {
			refund = saturatingAddU64(refund, b.amount)
		}
		st.bets = nil
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		if refund > 0 {
			return ContinueWithUpdate(int64(refund)), nil
		}
		return Continue(), nil

	case 3:
		if len(st.playerCards) != 0 || len(st.bets) != 0 {
			return GameResult{}, ErrInvalidMove
		}
		if len(payload) < 2 {
			return GameResult{}, ErrInvalidPayload
		}
		betCount := int(payload[1])
		if betCount == 0 || betCount > baccaratMaxBets {
			return GameResult{}, ErrInvalidPayload
		}
		if len(payload) != 2+betCount*baccaratBetBytes {
			return GameResult{}, ErrInvalidPayload
		}

		bets := make([]baccaratBet, 0, betCount)
		var totalWager uint64
		r := codec.NewReader(payload[2:])
		for i := 0; i < betCount; i++ {
			btByte, _ := r.U8()
			bt, err := baccaratBetTypeFromByte(btByte)
			if err != nil {
				return GameResult{}, err
			}
			amount, ok := r.U64()
			if !ok || amount == 0 {
				return GameResult{}, ErrInvalidPayload
			}
			merged := false
			for j := range bets {
				if bets[j].betType == bt {
					before := bets[j].amount
					bets[j].amount = saturatingAddU64(before, amount)
					totalWager = saturatingAddU64(totalWager, bets[j].amount-before)
					merged = true
					break
				}
			}
			if !merged {
				bets = append(bets, baccaratBet{betType: bt, amount: amount})
				totalWager = saturatingAddU64(totalWager, amount)
			}
		}

		// The whole batch escrows at settlement; the ledger rejects the move
		// when the player cannot cover it.
		wagerDelta, err := escrowDelta(totalWager)
		if err != nil {
			return GameResult{}, err
		}
		session.Bet = totalWager
		st.bets = bets
		if err := baccaratDeal(st, rng); err != nil {
			return GameResult{}, err
		}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		res, err := baccaratSettle(session, st, totalWager)
		if err != nil {
			return GameResult{}, err
		}
		res.Delta = wagerDelta
		return res, nil

	default:
		return GameResult{}, ErrInvalidPayload
	}
}
