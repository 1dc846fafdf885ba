package game

// HiLo: guess whether the next card ranks higher or lower, cash out anytime.
//
// State blob:
//   [card:u8] [accumulator:u64 BE] [streak:u8]
// The accumulator is a payout multiplier in 1/10000 units; it starts at
// 10000 (1x) and grows with every correct guess by the fair odds of that
// guess. A wrong guess zeroes it and ends the session.
//
// Payloads:
//   [0]  guess higher
//   [1]  guess lower
//   [2]  cash out
//
// Ranks are ace-low (ace=1 .. king=13). Guessing higher on a king or lower
// on an ace is rejected as an impossible guess; a tie on rank loses.

import (
	"fmt"

	"tablechain/internal/codec"
)

const (
	hiLoBase       = 10000
	hiLoStateBytes = 10
)

const (
	hiLoGuessHigher = 0
	hiLoGuessLower  = 1
	hiLoCashout     = 2
)

type hiLoState struct {
	card        uint8
	accumulator uint64
	streak      uint8
}

func parseHiLoState(blob []byte) (*hiLoState, error) {
	body, err := stateBlobBody(blob)
	if err != nil {
		return nil, err
	}
	if len(body) != hiLoStateBytes {
		return nil, ErrInvalidState
	}
	r := codec.NewReader(body)
	card, _ := r.U8()
	acc, _ := r.U64()
	streak, ok := r.U8()
	if !ok || card >= 52 {
		return nil, ErrInvalidState
	}
	return &hiLoState{card: card, accumulator: acc, streak: streak}, nil
}

func (st *hiLoState) toBlob() []byte {
	w := codec.NewWriter(1 + hiLoStateBytes)
	w.U8(codec.ProtocolVersion)
	w.U8(st.card)
	w.U64(st.accumulator)
	w.U8(st.streak)
	return w.Bytes()
}

// hiLoGuessMultiplier returns the fair-odds accumulator multiplier for a
// guess from the given rank, in 1/10000 units. wins counts the strictly
// winning ranks out of 13; ties lose, so the guesser is paid 13/wins.
func hiLoGuessMultiplier(rank uint8, higher bool) (uint64, error) {
	var wins uint64
	if higher {
		wins = uint64(13 - rank)
	} else {
		wins = uint64(rank - 1)
	}
	if wins == 0 {
		return 0, ErrInvalidMove
	}
	return (13 * hiLoBase) / wins, nil
}

type hiLoEngine struct{}

func (hiLoEngine) Init(session *GameSession, rng *Rng) (GameResult, error) {
	deck := rng.CreateDeck()
	card, err := DrawCard(&deck)
	if err != nil {
		return GameResult{}, err
	}
	st := &hiLoState{card: card, accumulator: hiLoBase}
	if err := session.SetStateBlob(st.toBlob()); err != nil {
		return GameResult{}, err
	}
	return Continue(fmt.Sprintf("Dealt %s", CardName(card))), nil
}

func (hiLoEngine) ProcessMove(session *GameSession, payload []byte, rng *Rng) (GameResult, error) {
	if len(payload) != 1 {
		return GameResult{}, ErrInvalidPayload
	}
	st, err := parseHiLoState(session.StateBlob)
	if err != nil {
		return GameResult{}, err
	}

	switch payload[0] {
	case hiLoGuessHigher, hiLoGuessLower:
		higher := payload[0] == hiLoGuessHigher
		rank := CardRankOneBased(st.card)
		mult, err := hiLoGuessMultiplier(rank, higher)
		if err != nil {
			return GameResult{}, err
		}

		deck := rng.CreateDeckExcluding([]uint8{st.card})
		next, err := DrawCard(&deck)
		if err != nil {
			return GameResult{}, err
		}
		nextRank := CardRankOneBased(next)

		correct := (higher && nextRank > rank) || (!higher && nextRank < rank)
		drawn := fmt.Sprintf("Drew %s", CardName(next))
		if !correct {
			st.card = next
			st.accumulator = 0
			if err := session.SetStateBlob(st.toBlob()); err != nil {
				return GameResult{}, err
			}
			session.IsComplete = true
			return Loss(drawn, "Wrong guess"), nil
		}

		st.card = next
		st.accumulator = saturatingMulU64(st.accumulator, mult) / hiLoBase
		if st.streak < 255 {
			st.streak++
		}
		// Streak-tier multipliers follow the run length, not the opening
		// deal, so the super state is rebuilt after every correct guess.
		if session.SuperMode.IsActive {
			super := NewHiLoSuperState(st.streak)
			super.AuraMeter = session.SuperMode.AuraMeter
			session.SuperMode = super
		}
		if err := session.SetStateBlob(st.toBlob()); err != nil {
			return GameResult{}, err
		}
		logs := []string{drawn, fmt.Sprintf("Streak %d, multiplier %d.%04dx", st.streak, st.accumulator/hiLoBase, st.accumulator%hiLoBase)}
		return Continue(logs...), nil

	case hiLoCashout:
		session.IsComplete = true
		if st.accumulator <= hiLoBase {
			if st.accumulator == hiLoBase {
				return Push(session.Bet, "Cashed out at even"), nil
			}
			return Loss("Cashed out with nothing"), nil
		}
		payout := saturatingMulU64(session.Bet, st.accumulator) / hiLoBase
		if session.SuperMode.IsActive {
			payout = ApplyHiLoMultiplier(session.SuperMode.Multipliers, payout)
		}
		return Win(payout, fmt.Sprintf("Cashed out %d", payout)), nil

	default:
		return GameResult{}, ErrInvalidPayload
	}
}
