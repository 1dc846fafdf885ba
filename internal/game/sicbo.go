package game

// Sic Bo with multi-bet support.
//
// State blob:
//   [betCount:u8] [bets: 10 bytes each] [dice:3 bytes]? [rules:u8]
// Each bet: [betType:u8] [number:u8] [amount:u64].
//
// Payloads:
//   [0, betType, number, amount:u64]  place bet
//   [1]                               roll three dice and resolve
//   [2]                               clear pending bets (refund)
//   [3, betCount, bets...]            atomic batch: place all bets + roll
//   [4, rules]                        select paytable
//
// Bet numbers encode combination targets: Domino packs (min<<4)|max, the
// hard hop packs (double<<4)|single, and the easy hops use a 6-bit face
// mask with exactly three or four bits set.

import (
	"fmt"
	"math/bits"

	"tablechain/internal/codec"
)

const (
	sicBoMaxBets  = 16
	sicBoBetBytes = 10
)

type sicBoPaytable uint8

const (
	sicBoMacau sicBoPaytable = iota
	sicBoAtlanticCity
)

type sicBoBetType uint8

const (
	sicBoSmall sicBoBetType = iota
	sicBoBig
	sicBoOdd
	sicBoEven
	sicBoSpecificTriple
	sicBoAnyTriple
	sicBoSpecificDouble
	sicBoTotal
	sicBoSingle
	sicBoDomino
	sicBoThreeEasyHop
	sicBoThreeHardHop
	sicBoFourEasyHop
)

func sicBoBetTypeFromByte(b uint8) (sicBoBetType, error) {
	if b > uint8(sicBoFourEasyHop) {
		return 0, ErrInvalidPayload
	}
	return sicBoBetType(b), nil
}

// Total bet winnings by total, Macau paytable. Atlantic City differs on the
// 4/17, 5/16, 6/15 and triple rows.
func sicBoTotalWinnings(total uint8, pt sicBoPaytable) uint64 {
	var macau, ac uint64
	switch total {
	case 3, 18:
		macau, ac = 180, 180
	case 4, 17:
		macau, ac = 50, 60
	case 5, 16:
		macau, ac = 18, 30
	case 6, 15:
		macau, ac = 14, 17
	case 7, 14:
		macau, ac = 12, 12
	case 8, 13:
		macau, ac = 8, 8
	case 9, 12:
		macau, ac = 6, 6
	case 10, 11:
		macau, ac = 6, 6
	}
	if pt == sicBoAtlanticCity {
		return ac
	}
	return macau
}

type sicBoBet struct {
	betType sicBoBetType
	number  uint8
	amount  uint64
}

type sicBoState struct {
	bets     []sicBoBet
	dice     *[3]uint8
	paytable sicBoPaytable
}

func sicBoValidNumber(bt sicBoBetType, number uint8) bool {
	oneToSix := func(n uint8) bool { return n >= 1 && n <= 6 }
	switch bt {
	case sicBoSpecificTriple, sicBoSpecificDouble, sicBoSingle:
		return oneToSix(number)
	case sicBoTotal:
		return number >= 3 && number <= 18
	case sicBoDomino:
		lo, hi := number>>4, number&0x0f
		return oneToSix(lo) && oneToSix(hi) && lo < hi
	case sicBoThreeEasyHop:
		return number&^uint8(0x3f) == 0 && bits.OnesCount8(number) == 3
	case sicBoThreeHardHop:
		double, single := number>>4, number&0x0f
		return oneToSix(double) && oneToSix(single) && double != single
	case sicBoFourEasyHop:
		return number&^uint8(0x3f) == 0 && bits.OnesCount8(number) == 4
	default:
		return true
	}
}

func sicBoValidDice(dice [3]uint8) bool {
	for _, d := range dice {
		if d < 1 || d > 6 {
			return false
		}
	}
	return true
}

func (s *sicBoState) toBlob() []byte {
	size := 2 + len(s.bets)*sicBoBetBytes + 1
	if s.dice != nil {
		size += 3
	}
	w := codec.NewWriter(size)
	w.U8(codec.ProtocolVersion)
	w.U8(uint8(len(s.bets)))
	for _, b := range s.bets {
		w.U8(uint8(b.betType))
		w.U8(b.number)
		w.U64(b.amount)
	}
	if s.dice != nil {
		w.Raw(s.dice[:])
	}
	w.U8(uint8(s.paytable))
	return w.Bytes()
}

func parseSicBoState(blob []byte) (*sicBoState, error) {
	body, err := stateBlobBody(blob)
	if err != nil {
		return nil, err
	}
	r := codec.NewReader(body)
	betCount, ok := r.U8()
	if !ok || int(betCount) > sicBoMaxBets {
		return nil, ErrInvalidState
	}
	st := &sicBoState{bets: make([]sicBoBet, 0, betCount)}
	for i := 0; i < int(betCount); i++ {
		btByte, ok := r.U8()
		if !ok {
			return nil, ErrInvalidState
		}
		bt, err := sicBoBetTypeFromByte(btByte)
		if err != nil {
			return nil, ErrInvalidState
		}
		number, _ := r.U8()
		amount, ok := r.U64()
		if !ok || amount == 0 || !sicBoValidNumber(bt, number) {
			return nil, ErrInvalidState
		}
		st.bets = append(st.bets, sicBoBet{betType: bt, number: number, amount: amount})
	}
	switch r.Remaining() {
	case 0:
	case 1:
		pt, _ := r.U8()
		if pt > uint8(sicBoAtlanticCity) {
			return nil, ErrInvalidState
		}
		st.paytable = sicBoPaytable(pt)
	case 3, 4:
		var dice [3]uint8
		for i := range dice {
			dice[i], _ = r.U8()
		}
		if !sicBoValidDice(dice) {
			return nil, ErrInvalidState
		}
		st.dice = &dice
		if r.Remaining() == 1 {
			pt, _ := r.U8()
			if pt > uint8(sicBoAtlanticCity) {
				return nil, ErrInvalidState
			}
			st.paytable = sicBoPaytable(pt)
		}
	default:
		return nil, ErrInvalidState
	}
	return st, nil
}

func sicBoIsTriple(dice [3]uint8) bool {
	return dice[0] == dice[1] && dice[1] == dice[2]
}

func sicBoCount(dice [3]uint8, number uint8) int {
	n := 0
	for _, d := range dice {
		if d == number {
			n++
		}
	}
	return n
}

func sicBoAllDistinct(dice [3]uint8) bool {
	return dice[0] != dice[1] && dice[0] != dice[2] && dice[1] != dice[2]
}

func sicBoFaceMask(dice [3]uint8) uint8 {
	var mask uint8
	for _, d := range dice {
		if d >= 1 && d <= 6 {
			mask |= 1 << (d - 1)
		}
	}
	return mask
}

// sicBoBetReturn is the total return for one bet (stake included), zero on loss.
func sicBoBetReturn(bet sicBoBet, dice [3]uint8, pt sicBoPaytable) uint64 {
	total := dice[0] + dice[1] + dice[2]
	triple := sicBoIsTriple(dice)
	pay := func(winnings uint64) uint64 {
		return saturatingMulU64(bet.amount, winnings+1)
	}

	switch bet.betType {
	case sicBoSmall:
		if !triple && total >= 4 && total <= 10 {
			return pay(1)
		}
	case sicBoBig:
		if !triple && total >= 11 && total <= 17 {
			return pay(1)
		}
	case sicBoOdd:
		if !triple && total%2 == 1 {
			return pay(1)
		}
	case sicBoEven:
		if !triple && total%2 == 0 {
			return pay(1)
		}
	case sicBoSpecificTriple:
		if triple && dice[0] == bet.number {
			if pt == sicBoAtlanticCity {
				return pay(180)
			}
			return pay(150)
		}
	case sicBoAnyTriple:
		if triple {
			if pt == sicBoAtlanticCity {
				return pay(30)
			}
			return pay(24)
		}
	case sicBoSpecificDouble:
		if sicBoCount(dice, bet.number) >= 2 {
			if pt == sicBoAtlanticCity {
				return pay(10)
			}
			return pay(8)
		}
	case sicBoTotal:
		if total == bet.number {
			return pay(sicBoTotalWinnings(bet.number, pt))
		}
	case sicBoSingle:
		switch sicBoCount(dice, bet.number) {
		case 1:
			return pay(1)
		case 2:
			return pay(2)
		case 3:
			return pay(3)
		}
	case sicBoDomino:
		lo, hi := bet.number>>4, bet.number&0x0f
		if sicBoCount(dice, lo) >= 1 && sicBoCount(dice, hi) >= 1 {
			return pay(5)
		}
	case sicBoThreeEasyHop:
		if sicBoAllDistinct(dice) && sicBoFaceMask(dice)&bet.number == sicBoFaceMask(dice) {
			return pay(30)
		}
	case sicBoThreeHardHop:
		double, single := bet.number>>4, bet.number&0x0f
		if sicBoCount(dice, double) == 2 && sicBoCount(dice, single) == 1 {
			return pay(50)
		}
	case sicBoFourEasyHop:
		if sicBoAllDistinct(dice) && sicBoFaceMask(dice)&bet.number == sicBoFaceMask(dice) {
			return pay(7)
		}
	}
	return 0
}

func sicBoResolve(session *GameSession, st *sicBoState, rng *Rng, totalWagered uint64) (GameResult, error) {
	dice := [3]uint8{rng.RollDie(), rng.RollDie(), rng.RollDie()}
	st.dice = &dice

	var totalReturn uint64
	for _, b := range st.bets {
		totalReturn = saturatingAddU64(totalReturn, sicBoBetReturn(b, dice, st.paytable))
	}
	if session.SuperMode.IsActive && totalReturn > 0 {
		totalReturn = ApplyTotalMultiplier(dice[0]+dice[1]+dice[2], session.SuperMode.Multipliers, totalReturn)
	}

	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}

	total := dice[0] + dice[1] + dice[2]
	summary := fmt.Sprintf("Roll: %d (%d-%d-%d)", total, dice[0], dice[1], dice[2])
	if sicBoIsTriple(dice) {
		summary += " TRIPLE"
	}
	logs := []string{summary, fmt.Sprintf("totalWagered=%d totalReturn=%d", totalWagered, totalReturn)}

	if totalReturn > 0 {
		return Win(totalReturn, logs...), nil
	}
	return LossPreDeducted(totalWagered, logs...), nil
}

type sicBoEngine struct{}

func (sicBoEngine) Init(session *GameSession, _ *Rng) (GameResult, error) {
	st := &sicBoState{}
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	return Continue(), nil
}

func (sicBoEngine) ProcessMove(session *GameSession, payload []byte, rng *Rng) (GameResult, error) {
	st, err := parseSicBoState(session.StateBlob)
	if err != nil {
		return GameResult{}, err
	}

	switch payload[0] {
	case 0:
		btByte, number, amount, perr := codec.ParsePlaceBet(payload)
		if perr != nil {
			return GameResult{}, ErrInvalidPayload
		}
		if st.dice != nil {
			return GameResult{}, ErrInvalidMove
		}
		bt, err := sicBoBetTypeFromByte(btByte)
		if err != nil {
			return GameResult{}, err
		}
		if !sicBoValidNumber(bt, number) {
			return GameResult{}, ErrInvalidPayload
		}
		if len(st.bets) >= sicBoMaxBets {
			return GameResult{}, ErrInvalidMove
		}
		delta, err := escrowDelta(amount)
		if err != nil {
			return GameResult{}, err
		}
		st.bets = append(st.bets, sicBoBet{betType: bt, number: number, amount: amount})
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return ContinueWithUpdate(delta), nil

	case 1:
		if len(payload) != 1 {
			return GameResult{}, ErrInvalidPayload
		}
		if len(st.bets) == 0 || st.dice != nil {
			return GameResult{}, ErrInvalidMove
		}
		var totalWagered uint64
		for _, b := range st.bets {
			totalWagered = saturatingAddU64(totalWagered, b.amount)
		}
		return sicBoResolve(session, st, rng, totalWagered)

	case 2:
		if len(payload) != 1 {
			return GameResult{}, ErrInvalidPayload
		}
		if st.dice != nil {
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
		if len(st.bets) != 0 || st.dice != nil {
			return GameResult{}, ErrInvalidMove
		}
		if len(payload) < 2 {
			return GameResult{}, ErrInvalidPayload
		}
		betCount := int(payload[1])
		if betCount == 0 || betCount > sicBoMaxBets {
			return GameResult{}, ErrInvalidPayload
		}
		if len(payload) != 2+betCount*sicBoBetBytes {
			return GameResult{}, ErrInvalidPayload
		}

		bets := make([]sicBoBet, 0, betCount)
		var totalWager uint64
		r := codec.NewReader(payload[2:])
		for i := 0; i < betCount; i++ {
			btByte, _ := r.U8()
			bt, err := sicBoBetTypeFromByte(btByte)
			if err != nil {
				return GameResult{}, err
			}
			number, _ := r.U8()
			amount, ok := r.U64()
			if !ok || amount == 0 || !sicBoValidNumber(bt, number) {
				return GameResult{}, ErrInvalidPayload
			}
			totalWager = saturatingAddU64(totalWager, amount)
			bets = append(bets, sicBoBet{betType: bt, number: number, amount: amount})
		}

		// The whole batch escrows at settlement; the ledger rejects the move
		// when the player cannot cover it.
		wagerDelta, err := escrowDelta(totalWager)
		if err != nil {
			return GameResult{}, err
		}
		session.Bet = totalWager
		st.bets = bets
		res, err := sicBoResolve(session, st, rng, totalWager)
		if err != nil {
			return GameResult{}, err
		}
		res.Delta = wagerDelta
		return res, nil

	case 4:
		if len(payload) != 2 {
			return GameResult{}, ErrInvalidPayload
		}
		if st.dice != nil {
			return GameResult{}, ErrInvalidMove
		}
		if payload[1] > uint8(sicBoAtlanticCity) {
			return GameResult{}, ErrInvalidPayload
		}
		st.paytable = sicBoPaytable(payload[1])
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return Continue(), nil

	default:
		return GameResult{}, ErrInvalidPayload
	}
}
