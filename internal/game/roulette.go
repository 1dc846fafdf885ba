package game

// Roulette with multi-bet support.
//
// State blob:
//   [betCount:u8] [zeroRule:u8] [phase:u8] [totalWagered:u64] [pendingReturn:u64]
//   [bets: 10 bytes each] [result:u8]?
// Each bet: [betType:u8] [number:u8] [amount:u64].
//
// Payloads:
//   [0, betType, number, amount:u64]  place bet
//   [1]                               spin and resolve
//   [2]                               clear pending bets (refund)
//   [3, zeroRule]                     set zero rule / wheel
//   [4, betCount, bets...]            atomic batch: place all bets + spin

import (
	"fmt"

	"tablechain/internal/codec"
)

const (
	rouletteMaxBets       = 20
	rouletteBetBytes      = 10
	rouletteStateHeader   = 19
	rouletteDoubleZero    = 37 // encodes 00 on the American wheel
	rouletteMaxEuropean   = 36
)

// Total-return payout multipliers. Straight pays 35x total return; the
// remaining values are "to 1" winnings with the stake added back at payout.
const (
	rouletteStraightWinnings = 34
	rouletteEvenMoney        = 1
	rouletteDozen            = 2
	rouletteColumn           = 2
	rouletteSplit            = 17
	rouletteStreet           = 11
	rouletteCorner           = 8
	rouletteSixLine          = 5
)

type rouletteZeroRule uint8

const (
	zeroStandard rouletteZeroRule = iota
	zeroLaPartage
	zeroEnPrison
	zeroEnPrisonDouble
	zeroAmerican
)

type rouletteBetType uint8

const (
	rouletteStraight rouletteBetType = iota
	rouletteRed
	rouletteBlack
	rouletteEven
	rouletteOdd
	rouletteLow
	rouletteHigh
	rouletteDozenBet
	rouletteColumnBet
	rouletteSplitH
	rouletteSplitV
	rouletteStreetBet
	rouletteCornerBet
	rouletteSixLineBet
)

var rouletteRedNumbers = [37]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true,
	18: true, 19: true, 21: true, 23: true, 25: true, 27: true, 30: true,
	32: true, 34: true, 36: true,
}

func rouletteIsRed(n uint8) bool {
	return n <= 36 && rouletteRedNumbers[n]
}

type rouletteBet struct {
	betType rouletteBetType
	number  uint8
	amount  uint64
}

type roulettePhase uint8

const (
	roulettePhaseBetting roulettePhase = iota
	roulettePhasePrison
)

type rouletteState struct {
	zeroRule      rouletteZeroRule
	phase         roulettePhase
	totalWagered  uint64
	pendingReturn uint64
	bets          []rouletteBet
	result        *uint8
}

func rouletteZeroRuleFromByte(b uint8) (rouletteZeroRule, error) {
	if b > uint8(zeroAmerican) {
		return 0, ErrInvalidPayload
	}
	return rouletteZeroRule(b), nil
}

func rouletteBetTypeFromByte(b uint8) (rouletteBetType, error) {
	if b > uint8(rouletteSixLineBet) {
		return 0, ErrInvalidPayload
	}
	return rouletteBetType(b), nil
}

func rouletteIsZeroResult(rule rouletteZeroRule, result uint8) bool {
	if rule == zeroAmerican {
		return result == 0 || result == rouletteDoubleZero
	}
	return result == 0
}

func rouletteSpin(rng *Rng, rule rouletteZeroRule) uint8 {
	if rule == zeroAmerican {
		return uint8(rng.NextBounded(38))
	}
	return rng.SpinRoulette()
}

func rouletteBetWins(bt rouletteBetType, betNumber, result uint8) bool {
	// Zero loses everything except a straight bet on the matching zero.
	if result == 0 || result == rouletteDoubleZero {
		return bt == rouletteStraight && betNumber == result
	}
	switch bt {
	case rouletteStraight:
		return betNumber == result
	case rouletteRed:
		return rouletteIsRed(result)
	case rouletteBlack:
		return !rouletteIsRed(result)
	case rouletteEven:
		return result%2 == 0
	case rouletteOdd:
		return result%2 == 1
	case rouletteLow:
		return result >= 1 && result <= 18
	case rouletteHigh:
		return result >= 19 && result <= 36
	case rouletteDozenBet:
		return (result-1)/12 == betNumber
	case rouletteColumnBet:
		return (result-1)%3 == betNumber
	case rouletteSplitH:
		return result == betNumber || result == betNumber+1
	case rouletteSplitV:
		return result == betNumber || result == betNumber+3
	case rouletteStreetBet:
		return result >= betNumber && result <= betNumber+2
	case rouletteCornerBet:
		return result == betNumber || result == betNumber+1 ||
			result == betNumber+3 || result == betNumber+4
	case rouletteSixLineBet:
		return result >= betNumber && result <= betNumber+5
	default:
		return false
	}
}

// rouletteWinnings is the "to 1" winnings multiplier; total return adds the
// stake back on top.
func rouletteWinnings(bt rouletteBetType) uint64 {
	switch bt {
	case rouletteStraight:
		return rouletteStraightWinnings
	case rouletteRed, rouletteBlack, rouletteEven, rouletteOdd, rouletteLow, rouletteHigh:
		return rouletteEvenMoney
	case rouletteDozenBet:
		return rouletteDozen
	case rouletteColumnBet:
		return rouletteColumn
	case rouletteSplitH, rouletteSplitV:
		return rouletteSplit
	case rouletteStreetBet:
		return rouletteStreet
	case rouletteCornerBet:
		return rouletteCorner
	case rouletteSixLineBet:
		return rouletteSixLine
	default:
		return 0
	}
}

func rouletteBetReturn(b rouletteBet) uint64 {
	return saturatingMulU64(b.amount, rouletteWinnings(b.betType)+1)
}

func rouletteIsEvenMoney(bt rouletteBetType) bool {
	switch bt {
	case rouletteRed, rouletteBlack, rouletteEven, rouletteOdd, rouletteLow, rouletteHigh:
		return true
	default:
		return false
	}
}

func rouletteValidNumber(bt rouletteBetType, number uint8, rule rouletteZeroRule) bool {
	switch bt {
	case rouletteStraight:
		max := uint8(rouletteMaxEuropean)
		if rule == zeroAmerican {
			max = rouletteDoubleZero
		}
		return number <= max
	case rouletteDozenBet, rouletteColumnBet:
		return number <= 2
	case rouletteSplitH:
		return number >= 1 && number <= 35 && number%3 != 0
	case rouletteSplitV:
		return number >= 1 && number <= 33
	case rouletteStreetBet:
		return number >= 1 && number <= 34 && (number-1)%3 == 0
	case rouletteCornerBet:
		return number >= 1 && number <= 32 && number%3 != 0
	case rouletteSixLineBet:
		return number >= 1 && number <= 31 && (number-1)%3 == 0
	default:
		return true
	}
}

func (s *rouletteState) toBlob() []byte {
	w := codec.NewWriter(1 + rouletteStateHeader + len(s.bets)*rouletteBetBytes + 1)
	w.U8(codec.ProtocolVersion)
	w.U8(uint8(len(s.bets)))
	w.U8(uint8(s.zeroRule))
	w.U8(uint8(s.phase))
	w.U64(s.totalWagered)
	w.U64(s.pendingReturn)
	for _, b := range s.bets {
		w.U8(uint8(b.betType))
		w.U8(b.number)
		w.U64(b.amount)
	}
	if s.result != nil {
		w.U8(*s.result)
	}
	return w.Bytes()
}

func parseRouletteState(blob []byte) (*rouletteState, error) {
	body, err := stateBlobBody(blob)
	if err != nil {
		return nil, err
	}
	if len(body) < rouletteStateHeader {
		return nil, ErrInvalidState
	}
	r := codec.NewReader(body)
	betCount, _ := r.U8()
	if int(betCount) > rouletteMaxBets {
		return nil, ErrInvalidState
	}
	ruleByte, _ := r.U8()
	rule, err := rouletteZeroRuleFromByte(ruleByte)
	if err != nil {
		return nil, ErrInvalidState
	}
	phaseByte, _ := r.U8()
	if phaseByte > uint8(roulettePhasePrison) {
		return nil, ErrInvalidState
	}
	totalWagered, _ := r.U64()
	pendingReturn, ok := r.U64()
	if !ok {
		return nil, ErrInvalidState
	}

	st := &rouletteState{
		zeroRule:      rule,
		phase:         roulettePhase(phaseByte),
		totalWagered:  totalWagered,
		pendingReturn: pendingReturn,
		bets:          make([]rouletteBet, 0, betCount),
	}
	for i := 0; i < int(betCount); i++ {
		btByte, ok := r.U8()
		if !ok {
			return nil, ErrInvalidState
		}
		bt, err := rouletteBetTypeFromByte(btByte)
		if err != nil {
			return nil, ErrInvalidState
		}
		number, _ := r.U8()
		amount, ok := r.U64()
		if !ok || amount == 0 {
			return nil, ErrInvalidState
		}
		if !rouletteValidNumber(bt, number, rule) {
			return nil, ErrInvalidState
		}
		st.bets = append(st.bets, rouletteBet{betType: bt, number: number, amount: amount})
	}
	if r.Remaining() > 0 {
		if r.Remaining() != 1 {
			return nil, ErrInvalidState
		}
		result, _ := r.U8()
		max := uint8(rouletteMaxEuropean)
		if rule == zeroAmerican {
			max = rouletteDoubleZero
		}
		if result > max {
			return nil, ErrInvalidState
		}
		st.result = &result
	}
	return st, nil
}

func rouletteLogs(st *rouletteState, result uint8, totalReturn uint64) []string {
	display := fmt.Sprintf("%d", result)
	if result == rouletteDoubleZero {
		display = "00"
	}
	color := "BLACK"
	if rouletteIsZeroResult(st.zeroRule, result) {
		color = "GREEN"
	} else if rouletteIsRed(result) {
		color = "RED"
	}
	logs := []string{fmt.Sprintf("Roll: %s %s", display, color)}
	for _, b := range st.bets {
		won := rouletteBetWins(b.betType, b.number, result)
		logs = append(logs, fmt.Sprintf("bet type=%d number=%d amount=%d won=%t",
			b.betType, b.number, b.amount, won))
	}
	logs = append(logs, fmt.Sprintf("totalWagered=%d totalReturn=%d", st.totalWagered, totalReturn))
	return logs
}

type rouletteEngine struct{}

func (rouletteEngine) Init(session *GameSession, _ *Rng) (GameResult, error) {
	st := &rouletteState{}
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	return Continue(), nil
}

func (rouletteEngine) ProcessMove(session *GameSession, payload []byte, rng *Rng) (GameResult, error) {
	st, err := parseRouletteState(session.StateBlob)
	if err != nil {
		return GameResult{}, err
	}

	switch payload[0] {
	case 0:
		return roulettePlaceBet(session, st, payload)
	case 1:
		if len(payload) != 1 {
			return GameResult{}, ErrInvalidPayload
		}
		return rouletteSpinMove(session, st, rng)
	case 2:
		if len(payload) != 1 {
			return GameResult{}, ErrInvalidPayload
		}
		return rouletteClear(session, st)
	case 3:
		if len(payload) != 2 {
			return GameResult{}, ErrInvalidPayload
		}
		if st.phase != roulettePhaseBetting || st.result != nil {
			return GameResult{}, ErrInvalidMove
		}
		rule, err := rouletteZeroRuleFromByte(payload[1])
		if err != nil {
			return GameResult{}, err
		}
		st.zeroRule = rule
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return Continue(), nil
	case 4:
		return rouletteBatch(session, st, payload, rng)
	default:
		return GameResult{}, ErrInvalidPayload
	}
}

func roulettePlaceBet(session *GameSession, st *rouletteState, payload []byte) (GameResult, error) {
	betTypeByte, number, amount, err := codec.ParsePlaceBet(payload)
	if err != nil {
		return GameResult{}, ErrInvalidPayload
	}
	if st.phase != roulettePhaseBetting || st.result != nil {
		return GameResult{}, ErrInvalidMove
	}
	bt, err := rouletteBetTypeFromByte(betTypeByte)
	if err != nil {
		return GameResult{}, err
	}
	if !rouletteValidNumber(bt, number, st.zeroRule) {
		return GameResult{}, ErrInvalidPayload
	}
	if len(st.bets) >= rouletteMaxBets {
		return GameResult{}, ErrInvalidMove
	}
	total := st.totalWagered + amount
	if total < st.totalWagered {
		return GameResult{}, ErrInvalidPayload
	}
	delta, err := escrowDelta(amount)
	if err != nil {
		return GameResult{}, err
	}
	st.bets = append(st.bets, rouletteBet{betType: bt, number: number, amount: amount})
	st.totalWagered = total
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	return ContinueWithUpdate(delta), nil
}

func rouletteSpinMove(session *GameSession, st *rouletteState, rng *Rng) (GameResult, error) {
	switch st.phase {
	case roulettePhaseBetting:
		if len(st.bets) == 0 || st.result != nil {
			return GameResult{}, ErrInvalidMove
		}
		result := rouletteSpin(rng, st.zeroRule)
		st.result = &result

		var totalReturn uint64
		if rouletteIsZeroResult(st.zeroRule, result) {
			switch st.zeroRule {
			case zeroStandard, zeroAmerican:
				for _, b := range st.bets {
					if rouletteBetWins(b.betType, b.number, result) {
						totalReturn = saturatingAddU64(totalReturn, rouletteBetReturn(b))
					}
				}
			case zeroLaPartage:
				for _, b := range st.bets {
					if rouletteBetWins(b.betType, b.number, result) {
						totalReturn = saturatingAddU64(totalReturn, rouletteBetReturn(b))
					} else if rouletteIsEvenMoney(b.betType) {
						totalReturn = saturatingAddU64(totalReturn, b.amount/2)
					}
				}
			case zeroEnPrison, zeroEnPrisonDouble:
				var imprisoned, retained []rouletteBet
				for _, b := range st.bets {
					wins := rouletteBetWins(b.betType, b.number, result)
					if wins {
						ret := rouletteBetReturn(b)
						if session.SuperMode.IsActive && ret > 0 {
							ret = ApplyNumberMultiplier(result, session.SuperMode.Multipliers, ret)
						}
						st.pendingReturn = saturatingAddU64(st.pendingReturn, ret)
					}
					if !wins && rouletteIsEvenMoney(b.betType) {
						imprisoned = append(imprisoned, b)
					} else {
						retained = append(retained, b)
					}
				}
				if len(imprisoned) == 0 {
					st.bets = retained
					totalReturn = st.pendingReturn
				} else {
					st.bets = imprisoned
					st.phase = roulettePhasePrison
					if err := session.SetStateBlob(st.toBlob()); err != nil {
						return GameResult{}, err
					}
					return Continue(), nil
				}
			}
		} else {
			for _, b := range st.bets {
				if rouletteBetWins(b.betType, b.number, result) {
					totalReturn = saturatingAddU64(totalReturn, rouletteBetReturn(b))
				}
			}
		}

		if session.SuperMode.IsActive && totalReturn > 0 {
			enPrisonZero := (st.zeroRule == zeroEnPrison || st.zeroRule == zeroEnPrisonDouble) &&
				rouletteIsZeroResult(st.zeroRule, result)
			if !enPrisonZero {
				totalReturn = ApplyNumberMultiplier(result, session.SuperMode.Multipliers, totalReturn)
			}
		}

		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		logs := rouletteLogs(st, result, totalReturn)
		if totalReturn > 0 {
			return Win(totalReturn, logs...), nil
		}
		return LossPreDeducted(st.totalWagered, logs...), nil

	case roulettePhasePrison:
		// Second spin resolving imprisoned even-money bets.
		if len(st.bets) == 0 {
			return GameResult{}, ErrInvalidMove
		}
		result := rouletteSpin(rng, st.zeroRule)
		st.result = &result

		if rouletteIsZeroResult(st.zeroRule, result) && st.zeroRule == zeroEnPrisonDouble {
			// A second zero re-imprisons the bets.
			if err := session.SetStateBlob(st.toBlob()); err != nil {
				return GameResult{}, err
			}
			return Continue(), nil
		}

		var pushReturn uint64
		if !rouletteIsZeroResult(st.zeroRule, result) {
			for _, b := range st.bets {
				if rouletteBetWins(b.betType, b.number, result) {
					// A winning imprisoned bet pushes: stake back, no winnings.
					pushReturn = saturatingAddU64(pushReturn, b.amount)
				}
			}
		}
		if session.SuperMode.IsActive && pushReturn > 0 {
			pushReturn = ApplyNumberMultiplier(result, session.SuperMode.Multipliers, pushReturn)
		}
		totalReturn := saturatingAddU64(st.pendingReturn, pushReturn)

		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		logs := rouletteLogs(st, result, totalReturn)
		if totalReturn > 0 {
			return Win(totalReturn, logs...), nil
		}
		return LossPreDeducted(st.totalWagered, logs...), nil
	default:
		return GameResult{}, ErrInvalidState
	}
}

func rouletteClear(session *GameSession, st *rouletteState) (GameResult, error) {
	if st.phase != roulettePhaseBetting || st.result != nil {
		return GameResult{}, ErrInvalidMove
	}
	refund := st.totalWagered
	st.bets = nil
	st.totalWagered = 0
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	if refund > 0 {
		return ContinueWithUpdate(int64(refund)), nil
	}
	return Continue(), nil
}

// rouletteBatch places all bets and spins in one all-or-nothing payload. The
// declared bet count must match the supplied bytes exactly; truncated and
// over-long batches are both rejected before any state changes.
func rouletteBatch(session *GameSession, st *rouletteState, payload []byte, rng *Rng) (GameResult, error) {
	if st.phase != roulettePhaseBetting || st.result != nil || len(st.bets) != 0 {
		return GameResult{}, ErrInvalidMove
	}
	if len(payload) < 2 {
		return GameResult{}, ErrInvalidPayload
	}
	betCount := int(payload[1])
	if betCount == 0 || betCount > rouletteMaxBets {
		return GameResult{}, ErrInvalidPayload
	}
	if len(payload) != 2+betCount*rouletteBetBytes {
		return GameResult{}, ErrInvalidPayload
	}

	bets := make([]rouletteBet, 0, betCount)
	var totalWager uint64
	r := codec.NewReader(payload[2:])
	for i := 0; i < betCount; i++ {
		btByte, _ := r.U8()
		bt, err := rouletteBetTypeFromByte(btByte)
		if err != nil {
			return GameResult{}, err
		}
		number, _ := r.U8()
		amount, ok := r.U64()
		if !ok || amount == 0 {
			return GameResult{}, ErrInvalidPayload
		}
		if !rouletteValidNumber(bt, number, st.zeroRule) {
			return GameResult{}, ErrInvalidPayload
		}
		total := totalWager + amount
		if total < totalWager {
			return GameResult{}, ErrInvalidPayload
		}
		totalWager = total
		bets = append(bets, rouletteBet{betType: bt, number: number, amount: amount})
	}

	// The whole batch escrows at settlement; the ledger rejects the move when
	// the player cannot cover it.
	wagerDelta, err := escrowDelta(totalWager)
	if err != nil {
		return GameResult{}, err
	}
	session.Bet = totalWager
	st.bets = bets
	st.totalWagered = totalWager

	result := rouletteSpin(rng, st.zeroRule)
	st.result = &result

	var totalReturn uint64
	for _, b := range st.bets {
		if rouletteBetWins(b.betType, b.number, result) {
			totalReturn = saturatingAddU64(totalReturn, rouletteBetReturn(b))
		}
	}
	if session.SuperMode.IsActive && totalReturn > 0 {
		totalReturn = ApplyNumberMultiplier(result, session.SuperMode.Multipliers, totalReturn)
	}

	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	logs := rouletteLogs(st, result, totalReturn)
	var res GameResult
	if totalReturn > 0 {
		res = Win(totalReturn, logs...)
	} else {
		res = LossPreDeducted(totalWager, logs...)
	}
	res.Delta = wagerDelta
	return res, nil
}
