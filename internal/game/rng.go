package game

import (
	"crypto/sha256"
	"encoding/binary"
)

// Rng is the per-session deterministic random source. It is seeded from
// (round reveal, session id, move count), so identical inputs produce
// identical draws on every replica, and distinct (session, move) pairs are
// independent streams.
//
// Bytes come from a sha256 counter stream over the derived seed. Nothing here
// reads the clock or any other ambient entropy.
type Rng struct {
	state   [32]byte
	counter uint64
	buf     []byte
}

// NewRng derives a session RNG. reveal is the disclosed round randomness.
func NewRng(reveal []byte, sessionID uint64, moveCount uint32) *Rng {
	h := sha256.New()
	h.Write(reveal)
	var sid [8]byte
	binary.BigEndian.PutUint64(sid[:], sessionID)
	h.Write(sid[:])
	var mc [4]byte
	binary.BigEndian.PutUint32(mc[:], moveCount)
	h.Write(mc[:])

	var r Rng
	copy(r.state[:], h.Sum(nil))
	return &r
}

func (r *Rng) refill() {
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], r.counter)
	r.counter++
	block := sha256.Sum256(append(r.state[:], ctr[:]...))
	r.buf = block[:]
}

// NextByte returns the next stream byte.
func (r *Rng) NextByte() uint8 {
	if len(r.buf) == 0 {
		r.refill()
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b
}

// Fill copies stream bytes into dst.
func (r *Rng) Fill(dst []byte) {
	for i := range dst {
		dst[i] = r.NextByte()
	}
}

func (r *Rng) NextU32() uint32 {
	var b [4]byte
	r.Fill(b[:])
	return binary.BigEndian.Uint32(b[:])
}

func (r *Rng) NextU64() uint64 {
	var b [8]byte
	r.Fill(b[:])
	return binary.BigEndian.Uint64(b[:])
}

// NextBounded returns a uniform value in [0, n) using rejection sampling, so
// there is no modulo bias. n must be non-zero.
func (r *Rng) NextBounded(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	limit := (^uint32(0) / n) * n
	for {
		v := r.NextU32()
		if v < limit {
			return v % n
		}
	}
}

// NextBool returns a uniform bit.
func (r *Rng) NextBool() bool {
	return r.NextByte()&1 == 1
}

// RollDie returns a die face 1-6.
func (r *Rng) RollDie() uint8 {
	return uint8(r.NextBounded(6)) + 1
}

// SpinRoulette returns a pocket 0-36.
func (r *Rng) SpinRoulette() uint8 {
	return uint8(r.NextBounded(37))
}

// Shuffle permutes deck with a Fisher-Yates pass.
func (r *Rng) Shuffle(deck []uint8) {
	for i := len(deck) - 1; i > 0; i-- {
		j := int(r.NextBounded(uint32(i + 1)))
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// CreateDeck returns a shuffled 52-card deck of card indices 0-51.
func (r *Rng) CreateDeck() []uint8 {
	deck := make([]uint8, DeckSize)
	for i := range deck {
		deck[i] = uint8(i)
	}
	r.Shuffle(deck)
	return deck
}

// CreateShoe returns a shuffled shoe of the given number of decks.
func (r *Rng) CreateShoe(decks int) []uint8 {
	shoe := make([]uint8, 0, decks*DeckSize)
	for d := 0; d < decks; d++ {
		for c := 0; c < DeckSize; c++ {
			shoe = append(shoe, uint8(c))
		}
	}
	r.Shuffle(shoe)
	return shoe
}

// CreateDeckExcluding returns a shuffled single deck without the excluded
// cards. Video Poker uses this so redraws can never repeat an originally
// dealt card, held or not.
func (r *Rng) CreateDeckExcluding(excluded []uint8) []uint8 {
	var skip [DeckSize]bool
	for _, c := range excluded {
		if int(c) < DeckSize {
			skip[c] = true
		}
	}
	deck := make([]uint8, 0, DeckSize-len(excluded))
	for c := 0; c < DeckSize; c++ {
		if !skip[c] {
			deck = append(deck, uint8(c))
		}
	}
	r.Shuffle(deck)
	return deck
}

// CreateShoeExcludingCounts returns a shuffled shoe where each card index
// appears decks times minus its count in excludedCounts.
func (r *Rng) CreateShoeExcludingCounts(decks int, excludedCounts map[uint8]int) []uint8 {
	shoe := make([]uint8, 0, decks*DeckSize)
	for c := 0; c < DeckSize; c++ {
		n := decks - excludedCounts[uint8(c)]
		for i := 0; i < n; i++ {
			shoe = append(shoe, uint8(c))
		}
	}
	r.Shuffle(shoe)
	return shoe
}

// DrawCard pops the top card. Drawing from an empty deck is an engine-level
// rule violation, reported rather than panicked.
func DrawCard(deck *[]uint8) (uint8, error) {
	d := *deck
	if len(d) == 0 {
		return 0, ErrDeckExhausted
	}
	card := d[len(d)-1]
	*deck = d[:len(d)-1]
	return card, nil
}
