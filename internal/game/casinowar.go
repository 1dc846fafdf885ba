package game

// Casino War, six decks, with the tie-after-tie bonus variant and an
// optional tie side bet paying 10:1.
//
// State blob:
//   [stage:u8] [playerCard:u8] [dealerCard:u8] [tieBet:u64 BE]
// Stage 0 = betting (pre-deal), 1 = war offered (after a tie), 2 = complete.
// Cards are 0xFF until dealt.
//
// Payloads:
//   [0]                 deal and compare
//   [1]                 go to war
//   [2]                 surrender, forfeiting half the ante
//   [3, tieBet:u64]     set the tie side bet (betting stage only)
//   [4, tieBet:u64]     atomic: set tie bet and deal in one move
//
// The war raise equals the ante and is escrowed the moment the deal ties:
// the tie result carries a -ante balance delta. Surrender refunds the raise
// plus half the ante; a war win returns raise, ante, and the ante won; a war
// loss reports both stakes as already deducted.

import (
	"fmt"

	"tablechain/internal/codec"
)

const (
	casinoWarDecks      = 6
	casinoWarHiddenCard = 0xFF
	casinoWarStateBytes = 11

	// Tie side bet pays 10:1 on an initial tie only.
	casinoWarTieWinnings = 10
)

const (
	warStageBetting  = 0
	warStageWar      = 1
	warStageComplete = 2
)

const (
	warMovePlay      = 0
	warMoveWar       = 1
	warMoveSurrender = 2
	warMoveSetTieBet = 3
	warMoveBatch     = 4
)

type casinoWarState struct {
	stage      uint8
	playerCard uint8
	dealerCard uint8
	tieBet     uint64
}

func parseCasinoWarState(blob []byte) (*casinoWarState, error) {
	body, err := stateBlobBody(blob)
	if err != nil {
		return nil, err
	}
	if len(body) != casinoWarStateBytes {
		return nil, ErrInvalidState
	}
	r := codec.NewReader(body)
	stage, _ := r.U8()
	player, _ := r.U8()
	dealer, _ := r.U8()
	tieBet, ok := r.U64()
	if !ok || stage > warStageComplete {
		return nil, ErrInvalidState
	}
	return &casinoWarState{stage: stage, playerCard: player, dealerCard: dealer, tieBet: tieBet}, nil
}

func (st *casinoWarState) toBlob() []byte {
	w := codec.NewWriter(1 + casinoWarStateBytes)
	w.U8(codec.ProtocolVersion)
	w.U8(st.stage)
	w.U8(st.playerCard)
	w.U8(st.dealerCard)
	w.U64(st.tieBet)
	return w.Bytes()
}

type casinoWarEngine struct{}

func (casinoWarEngine) Init(session *GameSession, _ *Rng) (GameResult, error) {
	st := &casinoWarState{
		stage:      warStageBetting,
		playerCard: casinoWarHiddenCard,
		dealerCard: casinoWarHiddenCard,
	}
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	return Continue(), nil
}

func (casinoWarEngine) ProcessMove(session *GameSession, payload []byte, rng *Rng) (GameResult, error) {
	st, err := parseCasinoWarState(session.StateBlob)
	if err != nil {
		return GameResult{}, err
	}
	if len(payload) == 0 {
		return GameResult{}, ErrInvalidPayload
	}

	switch st.stage {
	case warStageBetting:
		switch payload[0] {
		case warMoveSetTieBet:
			if len(payload) != 9 {
				return GameResult{}, ErrInvalidPayload
			}
			next, _ := codec.ParseU64BE(payload, 1)
			delta, err := casinoWarTieDelta(st.tieBet, next)
			if err != nil {
				return GameResult{}, err
			}
			st.tieBet = next
			if err := session.SetStateBlob(st.toBlob()); err != nil {
				return GameResult{}, err
			}
			return ContinueWithUpdate(delta, fmt.Sprintf("Tie bet %d", next)), nil

		case warMovePlay:
			if len(payload) != 1 {
				return GameResult{}, ErrInvalidPayload
			}
			return casinoWarDeal(session, st, rng, 0)

		case warMoveBatch:
			if len(payload) != 9 {
				return GameResult{}, ErrInvalidPayload
			}
			next, _ := codec.ParseU64BE(payload, 1)
			placement, err := casinoWarTieDelta(st.tieBet, next)
			if err != nil {
				return GameResult{}, err
			}
			st.tieBet = next
			return casinoWarDeal(session, st, rng, placement)

		default:
			return GameResult{}, ErrInvalidMove
		}

	case warStageWar:
		if len(payload) != 1 {
			return GameResult{}, ErrInvalidPayload
		}
		switch payload[0] {
		case warMoveSurrender:
			st.stage = warStageComplete
			if err := session.SetStateBlob(st.toBlob()); err != nil {
				return GameResult{}, err
			}
			session.IsComplete = true
			// The escrowed raise comes back whole; half the ante is forfeit.
			refund := saturatingAddU64(session.Bet, session.Bet/2)
			return Win(refund, "Surrendered"), nil

		case warMoveWar:
			return casinoWarFight(session, st, rng)

		default:
			return GameResult{}, ErrInvalidMove
		}

	default:
		return GameResult{}, ErrGameAlreadyComplete
	}
}

// casinoWarTieDelta converts a tie bet change into a balance delta, negative
// when the bet grows.
func casinoWarTieDelta(prev, next uint64) (int64, error) {
	const maxI64 = 1<<63 - 1
	if next >= prev {
		d := next - prev
		if d > maxI64 {
			return 0, ErrInvalidPayload
		}
		return -int64(d), nil
	}
	d := prev - next
	if d > maxI64 {
		return 0, ErrInvalidPayload
	}
	return int64(d), nil
}

// casinoWarDeal deals one card each and settles the initial compare.
// placement carries a tie-bet balance change from an atomic batch move and
// folds into any delta result.
func casinoWarDeal(session *GameSession, st *casinoWarState, rng *Rng, placement int64) (GameResult, error) {
	shoe := rng.CreateShoe(casinoWarDecks)
	playerCard, err := DrawCard(&shoe)
	if err != nil {
		return GameResult{}, err
	}
	dealerCard, err := DrawCard(&shoe)
	if err != nil {
		return GameResult{}, err
	}

	st.playerCard = playerCard
	st.dealerCard = dealerCard
	playerRank := CardRankAceHigh(playerCard)
	dealerRank := CardRankAceHigh(dealerCard)
	cardsLog := fmt.Sprintf("Player %s, dealer %s", CardName(playerCard), CardName(dealerCard))

	switch {
	case playerRank > dealerRank:
		st.stage = warStageComplete
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		session.IsComplete = true
		payout := saturatingMulU64(session.Bet, 2)
		if session.SuperMode.IsActive {
			payout = ApplyCardMultipliers([]uint8{playerCard}, session.SuperMode.Multipliers, payout)
		}
		if placement != 0 {
			return ContinueWithUpdate(saturatingAddDelta(placement, payout), cardsLog, "Player wins"), nil
		}
		return Win(payout, cardsLog, "Player wins"), nil

	case playerRank < dealerRank:
		st.stage = warStageComplete
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		session.IsComplete = true
		if placement != 0 {
			return ContinueWithUpdate(placement, cardsLog, "Dealer wins"), nil
		}
		return Loss(cardsLog, "Dealer wins"), nil

	default:
		// Tie: the war raise is escrowed now, and the tie side bet pays
		// immediately.
		st.stage = warStageWar
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		// The war raise matches the ante; a raise the signed delta range
		// cannot express is rejected, never silently skipped.
		raise, err := escrowDelta(session.Bet)
		if err != nil {
			return GameResult{}, ErrInvalidMove
		}
		delta := placement
		if delta < 0 && raise < -(1<<63-1)-delta {
			return GameResult{}, ErrInvalidMove
		}
		delta += raise
		if st.tieBet > 0 {
			credit := saturatingMulU64(st.tieBet, casinoWarTieWinnings+1)
			delta = saturatingAddDelta(delta, credit)
		}
		return ContinueWithUpdate(delta, cardsLog, "Tie, war offered"), nil
	}
}

// casinoWarFight burns three cards and deals the war round. Both the ante
// and the escrowed raise ride on it.
func casinoWarFight(session *GameSession, st *casinoWarState, rng *Rng) (GameResult, error) {
	excluded := map[uint8]int{}
	excluded[st.playerCard]++
	excluded[st.dealerCard]++
	shoe := rng.CreateShoeExcludingCounts(casinoWarDecks, excluded)
	for i := 0; i < 3; i++ {
		if _, err := DrawCard(&shoe); err != nil {
			return GameResult{}, err
		}
	}
	playerCard, err := DrawCard(&shoe)
	if err != nil {
		return GameResult{}, err
	}
	dealerCard, err := DrawCard(&shoe)
	if err != nil {
		return GameResult{}, err
	}

	st.stage = warStageComplete
	st.playerCard = playerCard
	st.dealerCard = dealerCard
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	session.IsComplete = true

	playerRank := CardRankAceHigh(playerCard)
	dealerRank := CardRankAceHigh(dealerCard)
	cardsLog := fmt.Sprintf("War: player %s, dealer %s", CardName(playerCard), CardName(dealerCard))
	staked := saturatingMulU64(session.Bet, 2)

	if playerRank < dealerRank {
		return LossPreDeducted(staked, cardsLog, "Dealer wins the war"), nil
	}

	// A tie after the tie wins a bonus equal to the ante.
	payout := saturatingAddU64(staked, session.Bet)
	outcome := "Player wins the war"
	if playerRank == dealerRank {
		payout = saturatingAddU64(payout, session.Bet)
		outcome = "Tie after tie, bonus paid"
	}
	if session.SuperMode.IsActive {
		payout = ApplyCardMultipliers([]uint8{playerCard}, session.SuperMode.Multipliers, payout)
	}
	return Win(payout, cardsLog, outcome), nil
}

// saturatingAddDelta adds an unsigned credit to a signed delta, clamping at
// the int64 maximum.
func saturatingAddDelta(delta int64, credit uint64) int64 {
	const maxI64 = uint64(1<<63 - 1)
	if credit > maxI64 {
		credit = maxI64
	}
	sum := delta + int64(credit)
	if sum < delta {
		return int64(maxI64)
	}
	return sum
}
