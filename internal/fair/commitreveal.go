// Package fair implements the commit-reveal pipeline for provably fair
// round randomness.
//
// Flow: before betting closes a reveal value and its commitment are
// generated; the commitment (hash) is published during the Locked phase; the
// pre-image is disclosed during the Rolling phase; anyone can then check
// hash(reveal) == commit. A hash chain derives many reveals from one master
// secret so commitments for future rounds can be published ahead of time
// without exposing the reveals.
package fair

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// CommitRevealLen is the length of commit and reveal values in bytes.
const CommitRevealLen = 32

var (
	ErrInvalidCommitLength = fmt.Errorf("invalid commit length (expected %d)", CommitRevealLen)
	ErrInvalidRevealLength = fmt.Errorf("invalid reveal length (expected %d)", CommitRevealLen)
	ErrVerificationFailed  = fmt.Errorf("commit-reveal verification failed")
)

// CommitRevealPair holds a published commitment and its pre-image.
type CommitRevealPair struct {
	Commit [CommitRevealLen]byte
	Reveal [CommitRevealLen]byte
}

// Verify reports whether Commit == hash(Reveal).
func (p CommitRevealPair) Verify() bool {
	c := ComputeCommit(p.Reveal)
	return subtle.ConstantTimeCompare(c[:], p.Commit[:]) == 1
}

// Generate derives a commit-reveal pair from a consensus seed and round id.
// reveal = sha256(seed || round_id_be || "reveal"), commit = sha256(reveal).
func Generate(seed []byte, roundID uint64) CommitRevealPair {
	reveal := deriveReveal(seed, roundID)
	return CommitRevealPair{Commit: ComputeCommit(reveal), Reveal: reveal}
}

func deriveReveal(seed []byte, roundID uint64) [CommitRevealLen]byte {
	h := sha256.New()
	h.Write(seed)
	var rid [8]byte
	binary.BigEndian.PutUint64(rid[:], roundID)
	h.Write(rid[:])
	h.Write([]byte("reveal")) // domain separator
	var out [CommitRevealLen]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ComputeCommit hashes a reveal into its commitment.
func ComputeCommit(reveal [CommitRevealLen]byte) [CommitRevealLen]byte {
	return sha256.Sum256(reveal[:])
}

// VerifySlices checks a commit/reveal pair supplied as raw slices, as stored
// on the round record. It returns the reveal as a fixed array on success.
func VerifySlices(commit, reveal []byte) ([CommitRevealLen]byte, error) {
	var revealArr [CommitRevealLen]byte
	if len(commit) != CommitRevealLen {
		return revealArr, fmt.Errorf("%w: got %d", ErrInvalidCommitLength, len(commit))
	}
	if len(reveal) != CommitRevealLen {
		return revealArr, fmt.Errorf("%w: got %d", ErrInvalidRevealLength, len(reveal))
	}
	copy(revealArr[:], reveal)
	expected := ComputeCommit(revealArr)
	if subtle.ConstantTimeCompare(commit, expected[:]) != 1 {
		return revealArr, ErrVerificationFailed
	}
	return revealArr, nil
}

// HashChain derives sequential commit-reveal pairs from one master secret.
type HashChain struct {
	secret [CommitRevealLen]byte
}

// NewHashChain derives the master secret from a consensus seed.
func NewHashChain(seed []byte) *HashChain {
	h := sha256.New()
	h.Write(seed)
	h.Write([]byte("hash_chain_master"))
	var c HashChain
	copy(c.secret[:], h.Sum(nil))
	return &c
}

// FromSecret restores a chain from a persisted master secret.
func FromSecret(secret [CommitRevealLen]byte) *HashChain {
	return &HashChain{secret: secret}
}

// Secret exposes the master secret for persistence.
func (c *HashChain) Secret() [CommitRevealLen]byte {
	return c.secret
}

// Generate produces the commit-reveal pair for one round.
func (c *HashChain) Generate(roundID uint64) CommitRevealPair {
	reveal := c.DeriveReveal(roundID)
	return CommitRevealPair{Commit: ComputeCommit(reveal), Reveal: reveal}
}

// DeriveReveal derives just the reveal, for rounds whose commit was already
// published.
func (c *HashChain) DeriveReveal(roundID uint64) [CommitRevealLen]byte {
	h := sha256.New()
	h.Write(c.secret[:])
	var rid [8]byte
	binary.BigEndian.PutUint64(rid[:], roundID)
	h.Write(rid[:])
	var out [CommitRevealLen]byte
	copy(out[:], h.Sum(nil))
	return out
}

// PrecomputedCommit pairs a round id with its published commitment.
type PrecomputedCommit struct {
	RoundID uint64
	Commit  [CommitRevealLen]byte
}

// PrecomputeCommits generates commitments for [start, start+count), saturating
// at the end of the round-id space rather than wrapping.
func (c *HashChain) PrecomputeCommits(startRound, count uint64) []PrecomputedCommit {
	end := startRound + count
	if end < startRound {
		end = ^uint64(0)
	}
	out := make([]PrecomputedCommit, 0, end-startRound)
	for r := startRound; r < end; r++ {
		out = append(out, PrecomputedCommit{RoundID: r, Commit: c.Generate(r).Commit})
	}
	return out
}
