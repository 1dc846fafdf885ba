package game

// Craps with a persistent multi-bet table.
//
// State blob:
//   [phase:u8] [point:u8] [die1:u8] [die2:u8] [pointsMade:u8]
//   [smallMask:u8] [tallMask:u8] [totalWagered:u64] [pendingReturn:u64]
//   [betCount:u8] [bets: 19 bytes each]
// Each bet: [betType:u8] [target:u8] [status:u8] [wager:u64] [odds:u64].
//
// Payloads:
//   [0, betType, target, amount:u64]   place bet
//   [1]                                roll the dice
//   [2]                                clear bets before the first roll
//   [3, betIndex, amount:u64]          back a line or come bet with odds
//   [4, betCount, bets...]             atomic batch placement
//
// Wagers are escrowed at placement. Interim wins accumulate in
// pendingReturn; the session settles when the last bet resolves.
// pointsMade is a 6-bit mask over points 4,5,6,8,9,10. smallMask and
// tallMask track totals 2-6 and 8-12 for the All-Tall-Small side bets.

import (
	"fmt"

	"tablechain/internal/codec"
)

const (
	crapsMaxBets     = 16
	crapsBetBytes    = 19
	crapsStateHeader = 24
	crapsSmallFull   = 0x1f // totals 2-6
	crapsTallFull    = 0x1f // totals 8-12
	crapsPointsFull  = 0x3f
)

type crapsPhase uint8

const (
	crapsComeOut crapsPhase = iota
	crapsPoint
)

type crapsBetType uint8

const (
	crapsPassLine crapsBetType = iota
	crapsDontPass
	crapsCome
	crapsDontCome
	crapsField
	crapsPlace
	crapsLay
	crapsHardway
	crapsAnySeven
	crapsAnyCraps
	crapsYo
	crapsAces
	crapsTwelve
	crapsFire
	crapsAllTallSmall
)

func crapsBetTypeFromByte(b uint8) (crapsBetType, error) {
	if b > uint8(crapsAllTallSmall) {
		return 0, ErrInvalidPayload
	}
	return crapsBetType(b), nil
}

// Bet status. Come and Don't Come start travelling and pin to a point.
const (
	crapsStatusWorking uint8 = iota
	crapsStatusPointSet
)

// All-Tall-Small variants, carried in the bet target.
const (
	crapsATSSmall uint8 = iota
	crapsATSTall
	crapsATSAll
)

type crapsBet struct {
	betType crapsBetType
	target  uint8
	status  uint8
	wager   uint64
	odds    uint64
}

type crapsState struct {
	phase         crapsPhase
	point         uint8
	die1, die2    uint8
	pointsMade    uint8
	smallMask     uint8
	tallMask      uint8
	totalWagered  uint64
	pendingReturn uint64
	bets          []crapsBet
}

func crapsIsPoint(n uint8) bool {
	switch n {
	case 4, 5, 6, 8, 9, 10:
		return true
	}
	return false
}

func crapsPointBit(n uint8) uint8 {
	switch n {
	case 4:
		return 1 << 0
	case 5:
		return 1 << 1
	case 6:
		return 1 << 2
	case 8:
		return 1 << 3
	case 9:
		return 1 << 4
	case 10:
		return 1 << 5
	}
	return 0
}

func crapsValidTarget(bt crapsBetType, target uint8) bool {
	switch bt {
	case crapsPlace, crapsLay:
		return crapsIsPoint(target)
	case crapsHardway:
		return target == 4 || target == 6 || target == 8 || target == 10
	case crapsAllTallSmall:
		return target <= crapsATSAll
	case crapsCome, crapsDontCome:
		return target == 0 // travel target is assigned by the roll
	default:
		return target == 0
	}
}

func crapsOddsAllowed(bt crapsBetType) bool {
	switch bt {
	case crapsPassLine, crapsDontPass, crapsCome, crapsDontCome:
		return true
	default:
		return false
	}
}

// trueOddsWinnings pays line odds at true odds for the given point.
func crapsTrueOddsWinnings(point uint8, odds uint64) uint64 {
	switch point {
	case 4, 10:
		return saturatingMulU64(odds, 2)
	case 5, 9:
		return saturatingMulU64(odds, 3) / 2
	case 6, 8:
		return saturatingMulU64(odds, 6) / 5
	}
	return 0
}

// Don't-side odds lay against the point.
func crapsLayOddsWinnings(point uint8, odds uint64) uint64 {
	switch point {
	case 4, 10:
		return odds / 2
	case 5, 9:
		return saturatingMulU64(odds, 2) / 3
	case 6, 8:
		return saturatingMulU64(odds, 5) / 6
	}
	return 0
}

func crapsPlaceWinnings(target uint8, wager uint64) uint64 {
	switch target {
	case 4, 10:
		return saturatingMulU64(wager, 9) / 5
	case 5, 9:
		return saturatingMulU64(wager, 7) / 5
	case 6, 8:
		return saturatingMulU64(wager, 7) / 6
	}
	return 0
}

func crapsHardwayWinnings(target uint8, wager uint64) uint64 {
	if target == 4 || target == 10 {
		return saturatingMulU64(wager, 7)
	}
	return saturatingMulU64(wager, 9)
}

// fireWinnings by distinct points made at seven-out.
func crapsFireWinnings(pointsMade uint8, wager uint64) uint64 {
	distinct := 0
	for bit := uint8(1); bit <= 0x20; bit <<= 1 {
		if pointsMade&bit != 0 {
			distinct++
		}
	}
	switch distinct {
	case 4:
		return saturatingMulU64(wager, 24)
	case 5:
		return saturatingMulU64(wager, 249)
	case 6:
		return saturatingMulU64(wager, 999)
	}
	return 0
}

func (s *crapsState) toBlob() []byte {
	w := codec.NewWriter(1 + crapsStateHeader + len(s.bets)*crapsBetBytes)
	w.U8(codec.ProtocolVersion)
	w.U8(uint8(s.phase))
	w.U8(s.point)
	w.U8(s.die1)
	w.U8(s.die2)
	w.U8(s.pointsMade)
	w.U8(s.smallMask)
	w.U8(s.tallMask)
	w.U64(s.totalWagered)
	w.U64(s.pendingReturn)
	w.U8(uint8(len(s.bets)))
	for _, b := range s.bets {
		w.U8(uint8(b.betType))
		w.U8(b.target)
		w.U8(b.status)
		w.U64(b.wager)
		w.U64(b.odds)
	}
	return w.Bytes()
}

func parseCrapsState(blob []byte) (*crapsState, error) {
	body, err := stateBlobBody(blob)
	if err != nil {
		return nil, err
	}
	if len(body) < crapsStateHeader {
		return nil, ErrInvalidState
	}
	r := codec.NewReader(body)
	phase, _ := r.U8()
	if phase > uint8(crapsPoint) {
		return nil, ErrInvalidState
	}
	point, _ := r.U8()
	if point != 0 && !crapsIsPoint(point) {
		return nil, ErrInvalidState
	}
	if crapsPhase(phase) == crapsPoint && point == 0 {
		return nil, ErrInvalidState
	}
	die1, _ := r.U8()
	die2, _ := r.U8()
	if die1 > 6 || die2 > 6 {
		return nil, ErrInvalidState
	}
	pointsMade, _ := r.U8()
	smallMask, _ := r.U8()
	tallMask, _ := r.U8()
	if pointsMade > crapsPointsFull || smallMask > crapsSmallFull || tallMask > crapsTallFull {
		return nil, ErrInvalidState
	}
	totalWagered, _ := r.U64()
	pendingReturn, _ := r.U64()
	betCount, ok := r.U8()
	if !ok || int(betCount) > crapsMaxBets {
		return nil, ErrInvalidState
	}

	st := &crapsState{
		phase:         crapsPhase(phase),
		point:         point,
		die1:          die1,
		die2:          die2,
		pointsMade:    pointsMade,
		smallMask:     smallMask,
		tallMask:      tallMask,
		totalWagered:  totalWagered,
		pendingReturn: pendingReturn,
		bets:          make([]crapsBet, 0, betCount),
	}
	for i := 0; i < int(betCount); i++ {
		btByte, ok := r.U8()
		if !ok {
			return nil, ErrInvalidState
		}
		bt, err := crapsBetTypeFromByte(btByte)
		if err != nil {
			return nil, ErrInvalidState
		}
		target, _ := r.U8()
		status, _ := r.U8()
		wager, _ := r.U64()
		odds, ok := r.U64()
		if !ok || wager == 0 || status > crapsStatusPointSet {
			return nil, ErrInvalidState
		}
		if status == crapsStatusPointSet {
			if (bt != crapsCome && bt != crapsDontCome) || !crapsIsPoint(target) {
				return nil, ErrInvalidState
			}
		} else if !crapsValidTarget(bt, target) {
			return nil, ErrInvalidState
		}
		if odds != 0 && !crapsOddsAllowed(bt) {
			return nil, ErrInvalidState
		}
		st.bets = append(st.bets, crapsBet{betType: bt, target: target, status: status, wager: wager, odds: odds})
	}
	if r.Remaining() != 0 {
		return nil, ErrInvalidState
	}
	return st, nil
}

// resolveBet returns (totalReturn, resolved) for one bet against a roll.
// A zero return with resolved=true is a loss; the stake stays escrowed.
func (s *crapsState) resolveBet(b *crapsBet, total uint8, hard bool) (uint64, bool) {
	sevenOut := s.phase == crapsPoint && total == 7

	switch b.betType {
	case crapsPassLine:
		if s.phase == crapsComeOut {
			switch total {
			case 7, 11:
				return saturatingMulU64(b.wager, 2), true
			case 2, 3, 12:
				return 0, true
			}
			return 0, false
		}
		if total == s.point {
			ret := saturatingMulU64(b.wager, 2)
			ret = saturatingAddU64(ret, b.odds)
			ret = saturatingAddU64(ret, crapsTrueOddsWinnings(s.point, b.odds))
			return ret, true
		}
		if total == 7 {
			return 0, true
		}
		return 0, false

	case crapsDontPass:
		if s.phase == crapsComeOut {
			switch total {
			case 7, 11:
				return 0, true
			case 2, 3:
				return saturatingMulU64(b.wager, 2), true
			case 12:
				return b.wager, true // bar twelve pushes
			}
			return 0, false
		}
		if total == 7 {
			ret := saturatingMulU64(b.wager, 2)
			ret = saturatingAddU64(ret, b.odds)
			ret = saturatingAddU64(ret, crapsLayOddsWinnings(s.point, b.odds))
			return ret, true
		}
		if total == s.point {
			return 0, true
		}
		return 0, false

	case crapsCome:
		if b.status == crapsStatusWorking {
			switch total {
			case 7, 11:
				return saturatingMulU64(b.wager, 2), true
			case 2, 3, 12:
				return 0, true
			}
			b.status = crapsStatusPointSet
			b.target = total
			return 0, false
		}
		if total == b.target {
			ret := saturatingMulU64(b.wager, 2)
			ret = saturatingAddU64(ret, b.odds)
			ret = saturatingAddU64(ret, crapsTrueOddsWinnings(b.target, b.odds))
			return ret, true
		}
		if total == 7 {
			return 0, true
		}
		return 0, false

	case crapsDontCome:
		if b.status == crapsStatusWorking {
			switch total {
			case 7, 11:
				return 0, true
			case 2, 3:
				return saturatingMulU64(b.wager, 2), true
			case 12:
				return b.wager, true
			}
			b.status = crapsStatusPointSet
			b.target = total
			return 0, false
		}
		if total == 7 {
			ret := saturatingMulU64(b.wager, 2)
			ret = saturatingAddU64(ret, b.odds)
			ret = saturatingAddU64(ret, crapsLayOddsWinnings(b.target, b.odds))
			return ret, true
		}
		if total == b.target {
			return 0, true
		}
		return 0, false

	case crapsField:
		switch total {
		case 2:
			return saturatingMulU64(b.wager, 3), true // pays double
		case 12:
			return saturatingMulU64(b.wager, 4), true // pays triple
		case 3, 4, 9, 10, 11:
			return saturatingMulU64(b.wager, 2), true
		}
		return 0, true

	case crapsPlace:
		if s.phase == crapsComeOut {
			return 0, false // off on the come-out
		}
		if total == b.target {
			return saturatingAddU64(b.wager, crapsPlaceWinnings(b.target, b.wager)), true
		}
		if total == 7 {
			return 0, true
		}
		return 0, false

	case crapsLay:
		if total == 7 {
			return saturatingAddU64(b.wager, crapsLayOddsWinnings(b.target, b.wager)), true
		}
		if total == b.target {
			return 0, true
		}
		return 0, false

	case crapsHardway:
		if s.phase == crapsComeOut {
			return 0, false
		}
		if total == b.target {
			if hard {
				return saturatingAddU64(b.wager, crapsHardwayWinnings(b.target, b.wager)), true
			}
			return 0, true
		}
		if total == 7 {
			return 0, true
		}
		return 0, false

	case crapsAnySeven:
		if total == 7 {
			return saturatingMulU64(b.wager, 5), true
		}
		return 0, true

	case crapsAnyCraps:
		if total == 2 || total == 3 || total == 12 {
			return saturatingMulU64(b.wager, 8), true
		}
		return 0, true

	case crapsYo:
		if total == 11 {
			return saturatingMulU64(b.wager, 16), true
		}
		return 0, true

	case crapsAces:
		if total == 2 {
			return saturatingMulU64(b.wager, 31), true
		}
		return 0, true

	case crapsTwelve:
		if total == 12 {
			return saturatingMulU64(b.wager, 31), true
		}
		return 0, true

	case crapsFire:
		if s.pointsMade == crapsPointsFull {
			return saturatingAddU64(b.wager, crapsFireWinnings(s.pointsMade, b.wager)), true
		}
		if sevenOut {
			winnings := crapsFireWinnings(s.pointsMade, b.wager)
			if winnings > 0 {
				return saturatingAddU64(b.wager, winnings), true
			}
			return 0, true
		}
		return 0, false

	case crapsAllTallSmall:
		if total == 7 {
			return 0, true
		}
		var done bool
		switch b.target {
		case crapsATSSmall:
			done = s.smallMask == crapsSmallFull
		case crapsATSTall:
			done = s.tallMask == crapsTallFull
		case crapsATSAll:
			done = s.smallMask == crapsSmallFull && s.tallMask == crapsTallFull
		}
		if done {
			mult := uint64(31)
			if b.target == crapsATSAll {
				mult = 151
			}
			return saturatingMulU64(b.wager, mult), true
		}
		return 0, false
	}
	return 0, true
}

func crapsPlacementValid(st *crapsState, bt crapsBetType) bool {
	switch bt {
	case crapsPassLine, crapsDontPass:
		return st.phase == crapsComeOut
	case crapsCome, crapsDontCome:
		return st.phase == crapsPoint
	case crapsFire:
		return st.phase == crapsComeOut && st.pointsMade == 0
	case crapsAllTallSmall:
		return st.phase == crapsComeOut && st.smallMask == 0 && st.tallMask == 0
	default:
		return true
	}
}

func (st *crapsState) place(bt crapsBetType, target uint8, wager, odds uint64) error {
	if !crapsValidTarget(bt, target) || wager == 0 {
		return ErrInvalidPayload
	}
	if odds != 0 && !crapsOddsAllowed(bt) {
		return ErrInvalidPayload
	}
	if !crapsPlacementValid(st, bt) {
		return ErrInvalidMove
	}
	if len(st.bets) >= crapsMaxBets {
		return ErrInvalidMove
	}
	st.bets = append(st.bets, crapsBet{betType: bt, target: target, wager: wager, odds: odds})
	st.totalWagered = saturatingAddU64(st.totalWagered, saturatingAddU64(wager, odds))
	return nil
}

type crapsEngine struct{}

func (crapsEngine) Init(session *GameSession, _ *Rng) (GameResult, error) {
	st := &crapsState{}
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	return Continue(), nil
}

func (crapsEngine) ProcessMove(session *GameSession, payload []byte, rng *Rng) (GameResult, error) {
	st, err := parseCrapsState(session.StateBlob)
	if err != nil {
		return GameResult{}, err
	}

	switch payload[0] {
	case 0:
		btByte, target, amount, perr := codec.ParsePlaceBet(payload)
		if perr != nil {
			return GameResult{}, ErrInvalidPayload
		}
		bt, err := crapsBetTypeFromByte(btByte)
		if err != nil {
			return GameResult{}, err
		}
		delta, err := escrowDelta(amount)
		if err != nil {
			return GameResult{}, err
		}
		if err := st.place(bt, target, amount, 0); err != nil {
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
		if len(st.bets) == 0 {
			return GameResult{}, ErrInvalidMove
		}
		return crapsRoll(session, st, rng)

	case 2:
		if len(payload) != 1 {
			return GameResult{}, ErrInvalidPayload
		}
		if st.die1 != 0 || st.phase != crapsComeOut {
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

	case 3:
		if len(payload) != 10 {
			return GameResult{}, ErrInvalidPayload
		}
		idx := int(payload[1])
		amount, perr := codec.ParseU64BE(payload, 2)
		if perr != nil || amount == 0 {
			return GameResult{}, ErrInvalidPayload
		}
		if idx >= len(st.bets) {
			return GameResult{}, ErrInvalidPayload
		}
		b := &st.bets[idx]
		if !crapsOddsAllowed(b.betType) {
			return GameResult{}, ErrInvalidMove
		}
		// Odds need an established point behind them.
		switch b.betType {
		case crapsPassLine, crapsDontPass:
			if st.phase != crapsPoint {
				return GameResult{}, ErrInvalidMove
			}
		case crapsCome, crapsDontCome:
			if b.status != crapsStatusPointSet {
				return GameResult{}, ErrInvalidMove
			}
		}
		delta, err := escrowDelta(amount)
		if err != nil {
			return GameResult{}, err
		}
		b.odds = saturatingAddU64(b.odds, amount)
		st.totalWagered = saturatingAddU64(st.totalWagered, amount)
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return ContinueWithUpdate(delta), nil

	case 4:
		if len(payload) < 2 {
			return GameResult{}, ErrInvalidPayload
		}
		betCount := int(payload[1])
		if betCount == 0 || betCount > crapsMaxBets {
			return GameResult{}, ErrInvalidPayload
		}
		if len(payload) != 2+betCount*crapsBetBytes {
			return GameResult{}, ErrInvalidPayload
		}
		if len(st.bets) != 0 || st.die1 != 0 {
			return GameResult{}, ErrInvalidMove
		}

		r := codec.NewReader(payload[2:])
		var total uint64
		for i := 0; i < betCount; i++ {
			btByte, _ := r.U8()
			bt, err := crapsBetTypeFromByte(btByte)
			if err != nil {
				return GameResult{}, err
			}
			target, _ := r.U8()
			status, _ := r.U8()
			wager, _ := r.U64()
			odds, ok := r.U64()
			if !ok || status != crapsStatusWorking {
				return GameResult{}, ErrInvalidPayload
			}
			if err := st.place(bt, target, wager, odds); err != nil {
				return GameResult{}, err
			}
			total = saturatingAddU64(total, saturatingAddU64(wager, odds))
		}
		delta, err := escrowDelta(total)
		if err != nil {
			return GameResult{}, err
		}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		return ContinueWithUpdate(delta), nil

	default:
		return GameResult{}, ErrInvalidPayload
	}
}

func crapsRoll(session *GameSession, st *crapsState, rng *Rng) (GameResult, error) {
	die1, die2 := rng.RollDie(), rng.RollDie()
	total := die1 + die2
	hard := die1 == die2
	st.die1, st.die2 = die1, die2

	// The seven never counts toward All-Tall-Small.
	if total != 7 {
		if total <= 6 {
			st.smallMask |= 1 << (total - 2)
		} else {
			st.tallMask |= 1 << (total - 8)
		}
	}
	// Credit the made point before resolution so Fire sees it immediately.
	if st.phase == crapsPoint && total == st.point {
		st.pointsMade |= crapsPointBit(st.point)
	}

	remaining := st.bets[:0]
	for i := range st.bets {
		ret, resolved := st.resolveBet(&st.bets[i], total, hard)
		if resolved {
			st.pendingReturn = saturatingAddU64(st.pendingReturn, ret)
		} else {
			remaining = append(remaining, st.bets[i])
		}
	}
	st.bets = remaining

	// Phase transition after resolution so line bets settle against the
	// point that was live during the roll.
	if st.phase == crapsComeOut {
		if crapsIsPoint(total) {
			st.phase = crapsPoint
			st.point = total
		}
	} else {
		if total == st.point {
			st.phase = crapsComeOut
			st.point = 0
		} else if total == 7 {
			st.phase = crapsComeOut
			st.point = 0
		}
	}

	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}

	logs := []string{fmt.Sprintf("Roll: %d (%d-%d)", total, die1, die2)}
	if len(st.bets) > 0 {
		return Continue(logs...), nil
	}

	totalReturn := st.pendingReturn
	if session.SuperMode.IsActive && totalReturn > 0 {
		totalReturn = ApplyNumberMultiplier(total, session.SuperMode.Multipliers, totalReturn)
	}
	logs = append(logs, fmt.Sprintf("totalWagered=%d totalReturn=%d", st.totalWagered, totalReturn))
	if totalReturn > 0 {
		return Win(totalReturn, logs...), nil
	}
	return LossPreDeducted(st.totalWagered, logs...), nil
}
