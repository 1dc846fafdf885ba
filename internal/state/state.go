package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"tablechain/internal/game"
	"tablechain/internal/round"
)

// Player is one registered account on the chip ledger.
type Player struct {
	Balance uint64 `json:"balance"`
	Name    string `json:"name,omitempty"`

	// Tx auth: ed25519 pubkey registered at casino/register, plus the last
	// accepted tx nonce for replay protection.
	PubKey   []byte `json:"pubKey,omitempty"`
	NonceMax uint64 `json:"nonceMax,omitempty"`

	// Optional play modifiers toggled by the player.
	Shield bool `json:"shield,omitempty"`
	Double bool `json:"double,omitempty"`

	// Aura builds on losing sessions; a full meter arms super mode for the
	// player's next session.
	Aura uint8 `json:"aura,omitempty"`
}

// Round is the global table round record. Commit is published when the round
// locks; Reveal when it rolls. Phase tags are round.Phase values.
type Round struct {
	ID       uint64 `json:"id"`
	Phase    uint8  `json:"phase"`
	EndsAtMS uint64 `json:"endsAtMs"`
	View     uint64 `json:"view"`
	Commit   []byte `json:"commit,omitempty"`
	Reveal   []byte `json:"reveal,omitempty"`
}

// EventAttr is one key/value pair on a committed event.
type EventAttr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is one ABCI event as committed to the replicated log.
type Event struct {
	Type  string      `json:"type"`
	Attrs []EventAttr `json:"attrs,omitempty"`
}

type State struct {
	Height int64 `json:"height"`

	NextSessionID uint64                       `json:"nextSessionId"`
	Players       map[string]*Player           `json:"players"`
	Sessions      map[uint64]*game.GameSession `json:"sessions"`

	Round       Round             `json:"round"`
	Phases      round.PhaseConfig `json:"phases"`
	ChainSecret []byte            `json:"chainSecret,omitempty"` // hash-chain master secret (32 bytes)

	Configs map[uint8]game.GameConfig `json:"configs"` // keyed by game type tag

	// Committed execution log keyed by block height. Events for a height are
	// written before Height advances past it; recovery replays the gap and
	// checks the regenerated events against this log.
	Events    map[int64][]Event `json:"events,omitempty"`
	AppHashes map[int64][]byte  `json:"appHashes,omitempty"`
}

func NewState() *State {
	configs := map[uint8]game.GameConfig{}
	for g := uint8(0); ; g++ {
		if _, ok := game.GameTypeFromByte(g); !ok {
			break
		}
		configs[g] = game.DefaultGameConfig()
	}
	return &State{
		Height:        0,
		NextSessionID: 1,
		Players:       map[string]*Player{},
		Sessions:      map[uint64]*game.GameSession{},
		Phases:        round.DefaultPhaseConfig(),
		Configs:       configs,
		Events:        map[int64][]Event{},
		AppHashes:     map[int64][]byte{},
	}
}

func Load(home string) (*State, error) {
	path := filepath.Join(home, "state.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.normalize()
	return &st, nil
}

func (s *State) normalize() {
	if s.Players == nil {
		s.Players = map[string]*Player{}
	}
	if s.Sessions == nil {
		s.Sessions = map[uint64]*game.GameSession{}
	}
	if s.Configs == nil {
		s.Configs = map[uint8]game.GameConfig{}
	}
	for g := uint8(0); ; g++ {
		if _, ok := game.GameTypeFromByte(g); !ok {
			break
		}
		if _, ok := s.Configs[g]; !ok {
			s.Configs[g] = game.DefaultGameConfig()
		}
	}
	if s.Events == nil {
		s.Events = map[int64][]Event{}
	}
	if s.AppHashes == nil {
		s.AppHashes = map[int64][]byte{}
	}
	if s.NextSessionID == 0 {
		s.NextSessionID = 1
	}
	zero := round.PhaseConfig{}
	if s.Phases == zero {
		s.Phases = round.DefaultPhaseConfig()
	}
}

// Save writes the state file atomically: a full write to a temp file in the
// same directory, then a rename over the old file.
func (s *State) Save(home string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("mkdir home: %w", err)
	}
	path := filepath.Join(home, "state.json")
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

// Clone returns a deep copy of state suitable for staged tx execution.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode state clone: %w", err)
	}
	out.normalize()
	return &out, nil
}

func (s *State) AppHash() []byte {
	// Deterministic JSON hash: marshal with stable key ordering by serializing
	// a normalized view.
	//
	// Note: encoding/json does NOT guarantee map key order, so we manually
	// normalize maps into slices.
	type playerKV struct {
		Addr   string  `json:"addr"`
		Player *Player `json:"player"`
	}
	type sessionKV struct {
		ID      uint64            `json:"id"`
		Session *game.GameSession `json:"session"`
	}
	type configKV struct {
		GameType uint8      `json:"gameType"`
		Config   game.GameConfig `json:"config"`
	}
	type eventKV struct {
		Height int64   `json:"height"`
		Events []Event `json:"events"`
	}
	type hashKV struct {
		Height int64  `json:"height"`
		Hash   []byte `json:"hash"`
	}

	players := make([]playerKV, 0, len(s.Players))
	for k, v := range s.Players {
		players = append(players, playerKV{Addr: k, Player: v})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Addr < players[j].Addr })

	sessions := make([]sessionKV, 0, len(s.Sessions))
	for id, sess := range s.Sessions {
		sessions = append(sessions, sessionKV{ID: id, Session: sess})
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })

	configs := make([]configKV, 0, len(s.Configs))
	for g, c := range s.Configs {
		configs = append(configs, configKV{GameType: g, Config: c})
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].GameType < configs[j].GameType })

	events := make([]eventKV, 0, len(s.Events))
	for h, evs := range s.Events {
		events = append(events, eventKV{Height: h, Events: evs})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Height < events[j].Height })

	hashes := make([]hashKV, 0, len(s.AppHashes))
	for h, hash := range s.AppHashes {
		hashes = append(hashes, hashKV{Height: h, Hash: hash})
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Height < hashes[j].Height })

	normalized := struct {
		Height        int64             `json:"height"`
		NextSessionID uint64            `json:"nextSessionId"`
		Players       []playerKV        `json:"players"`
		Sessions      []sessionKV       `json:"sessions"`
		Round         Round             `json:"round"`
		Phases        round.PhaseConfig `json:"phases"`
		ChainSecret   []byte            `json:"chainSecret,omitempty"`
		Configs       []configKV        `json:"configs"`
		Events        []eventKV         `json:"events,omitempty"`
		AppHashes     []hashKV          `json:"appHashes,omitempty"`
	}{
		Height:        s.Height,
		NextSessionID: s.NextSessionID,
		Players:       players,
		Sessions:      sessions,
		Round:         s.Round,
		Phases:        s.Phases,
		ChainSecret:   s.ChainSecret,
		Configs:       configs,
		Events:        events,
		AppHashes:     hashes,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// ---- Chip ledger ----

func (s *State) Balance(addr string) uint64 {
	p, ok := s.Players[addr]
	if !ok {
		return 0
	}
	return p.Balance
}

// PlayerFor returns the account record, creating it on first touch.
func (s *State) PlayerFor(addr string) *Player {
	p, ok := s.Players[addr]
	if !ok {
		p = &Player{}
		s.Players[addr] = p
	}
	return p
}

func (s *State) Credit(addr string, amount uint64) error {
	p := s.PlayerFor(addr)
	if p.Balance > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", p.Balance, amount)
	}
	p.Balance += amount
	return nil
}

func (s *State) Debit(addr string, amount uint64) error {
	p := s.PlayerFor(addr)
	if p.Balance < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", p.Balance, amount)
	}
	p.Balance -= amount
	return nil
}

// ConfigFor returns the table configuration for one game type.
func (s *State) ConfigFor(g game.GameType) game.GameConfig {
	if c, ok := s.Configs[uint8(g)]; ok {
		return c
	}
	return game.DefaultGameConfig()
}
