package codec

import (
	"encoding/json"
	"fmt"
)

// TxEnvelope is the v0 transaction container.
//
// CometBFT transactions are opaque bytes. For v0 localnet we use JSON-encoded
// txs to move fast; this is NOT the final protocol encoding.
type TxEnvelope struct {
	// Basic routing.
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// v0 tx auth (optional):
	// - Nonce: included in the signed message for replay protection (must increase per signer).
	// - Signer: logical signer id.
	// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Casino ----

type CasinoRegisterTx struct {
	Player string `json:"player"`
	Name   string `json:"name,omitempty"`
	PubKey []byte `json:"pubKey,omitempty"` // 32-byte ed25519 public key (base64 in JSON)
}

type CasinoDepositTx struct {
	Player string `json:"player"`
	Amount uint64 `json:"amount"`
}

type CasinoStartGameTx struct {
	Player   string `json:"player"`
	GameType uint8  `json:"gameType"`
	Bet      uint64 `json:"bet"`

	// Optional tournament binding.
	TournamentID uint64 `json:"tournamentId,omitempty"`
}

type CasinoMoveTx struct {
	Player    string `json:"player"`
	SessionID uint64 `json:"sessionId"`
	Payload   []byte `json:"payload"` // base64 in JSON; binary game move bytes
}

type CasinoToggleShieldTx struct {
	Player string `json:"player"`
}

type CasinoToggleDoubleTx struct {
	Player string `json:"player"`
}

type CasinoSetConfigTx struct {
	GameType uint8  `json:"gameType"`
	Enabled  bool   `json:"enabled"`
	MinBet   uint64 `json:"minBet"`
	MaxBet   uint64 `json:"maxBet"`
}

// ---- Round ----

// RoundTickTx carries the consensus view. The view is opaque here; its
// consensus-layer authenticity is verified upstream.
type RoundTickTx struct {
	View uint64 `json:"view"`
}

// RoundStartTx begins a new round. Seed feeds the hash-chain master secret
// the first time a round starts; later starts reuse the stored secret.
type RoundStartTx struct {
	View uint64 `json:"view"`
	Seed []byte `json:"seed,omitempty"` // base64 in JSON
}
