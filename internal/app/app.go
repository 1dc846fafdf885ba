package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	abci "github.com/cometbft/cometbft/abci/types"

	"tablechain/internal/codec"
	"tablechain/internal/game"
	"tablechain/internal/state"
)

const (
	AppVersion uint64 = 1
)

type TCApp struct {
	*abci.BaseApplication

	home string

	mu       sync.Mutex
	st       *state.State
	lastHash []byte
}

func New(home string) (*TCApp, error) {
	appHome := filepath.Join(home, "app")
	st, err := state.Load(appHome)
	if err != nil {
		return nil, err
	}
	a := &TCApp{
		BaseApplication: abci.NewBaseApplication(),
		home:            home,
		st:              st,
		lastHash:        st.AppHash(),
	}
	return a, nil
}

func (a *TCApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "tablechain (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *TCApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	_, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: 1, Log: err.Error()}, nil
	}
	// v0: only structural validation; full auth happens at delivery.
	return &abci.CheckTxResponse{Code: 0}, nil
}

func (a *TCApp) InitChain(_ context.Context, _ *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	// v0: no special genesis handling.
	return &abci.InitChainResponse{}, nil
}

// FinalizeBlock applies one block's txs. The height contract:
//
//   - height <= committed height: nothing re-executes; the recorded app hash
//     for that height is returned as-is.
//   - height == committed+1: the block executes against a staged copy of
//     state, events are recorded under the height, and only then does the
//     height counter advance. If the event log already holds entries for the
//     height (a half-committed block), the regenerated events must match the
//     recorded ones byte for byte or the node halts.
//   - height > committed+1: rejected; the app never skips heights.
func (a *TCApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	h := req.Height
	if h <= a.st.Height {
		hash := a.st.AppHashes[h]
		if len(hash) == 0 {
			hash = a.lastHash
		}
		txResults := make([]*abci.ExecTxResult, len(req.Txs))
		for i := range txResults {
			txResults[i] = &abci.ExecTxResult{Code: 0, Log: "already committed"}
		}
		return &abci.FinalizeBlockResponse{TxResults: txResults, AppHash: hash}, nil
	}
	if h > a.st.Height+1 {
		return nil, fmt.Errorf("height gap: committed=%d got=%d", a.st.Height, h)
	}

	work, err := a.st.Clone()
	if err != nil {
		return nil, err
	}
	prior, resuming := work.Events[h]

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	blockEvents := make([]state.Event, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		// Each tx stages against its own copy so a failed tx leaves no residue.
		staged, err := work.Clone()
		if err != nil {
			return nil, err
		}
		res := a.execTx(staged, txBytes, h)
		if res.Code == 0 {
			work = staged
		}
		txResults = append(txResults, res)
		for _, ev := range res.Events {
			blockEvents = append(blockEvents, toStateEvent(ev))
		}
	}

	if resuming && !eventsEqual(prior, blockEvents) {
		return nil, fmt.Errorf("replay divergence at height %d: regenerated events do not match committed log", h)
	}

	work.Events[h] = blockEvents
	work.Height = h
	hash := work.AppHash()
	work.AppHashes[h] = hash

	a.st = work
	a.lastHash = hash

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   hash,
	}, nil
}

func (a *TCApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Persist after each block for devnet durability.
	appHome := filepath.Join(a.home, "app")
	if err := a.st.Save(appHome); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

func (a *TCApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /player/<addr>
	// - /session/<id>
	// - /sessions
	// - /round
	// - /configs
	// - /games
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/games":
		type gameEntry struct {
			GameType    uint8           `json:"gameType"`
			Name        string          `json:"name"`
			Category    string          `json:"category"`
			HouseEdgeBP uint16          `json:"houseEdgeBp"`
			Config      game.GameConfig `json:"config"`
		}
		entries := make([]gameEntry, 0)
		for b := uint8(0); ; b++ {
			gt, ok := game.GameTypeFromByte(b)
			if !ok {
				break
			}
			gi, ok := game.Info(gt)
			if !ok {
				continue
			}
			entries = append(entries, gameEntry{
				GameType:    b,
				Name:        gi.Name,
				Category:    gi.Category.String(),
				HouseEdgeBP: gi.HouseEdgeBP,
				Config:      a.st.ConfigFor(gt),
			})
		}
		b, _ := json.Marshal(entries)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case path == "/sessions":
		ids := make([]uint64, 0, len(a.st.Sessions))
		for id := range a.st.Sessions {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b, _ := json.Marshal(ids)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case path == "/round":
		b, _ := json.Marshal(a.st.Round)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case path == "/configs":
		b, _ := json.Marshal(a.st.Configs)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/player/"):
		addr := strings.TrimPrefix(path, "/player/")
		p, ok := a.st.Players[addr]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "player not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(p)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	case strings.HasPrefix(path, "/session/"):
		raw := strings.TrimPrefix(path, "/session/")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid session id", Height: a.st.Height}, nil
		}
		sess, ok := a.st.Sessions[id]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "session not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(sess)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil
	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown query path", Height: a.st.Height}, nil
	}
}

func (a *TCApp) execTx(st *state.State, txBytes []byte, height int64) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return &abci.ExecTxResult{Code: 1, Log: err.Error()}
	}

	switch env.Type {
	case "casino/register":
		return execRegister(st, env)
	case "casino/deposit":
		return execDeposit(st, env)
	case "casino/start_game":
		return execStartGame(st, env, height)
	case "casino/move":
		return execMove(st, env)
	case "casino/toggle_shield":
		return execToggleShield(st, env)
	case "casino/toggle_double":
		return execToggleDouble(st, env)
	case "casino/set_config":
		return execSetConfig(st, env)
	case "round/start":
		return execRoundStart(st, env)
	case "round/tick":
		return execRoundTick(st, env)
	default:
		return &abci.ExecTxResult{Code: 1, Log: "unknown tx type: " + env.Type}
	}
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{ev},
	}
}

func errTx(log string) *abci.ExecTxResult {
	return &abci.ExecTxResult{Code: 1, Log: log}
}

func toStateEvent(ev abci.Event) state.Event {
	out := state.Event{Type: ev.Type}
	for _, attr := range ev.Attributes {
		out.Attrs = append(out.Attrs, state.EventAttr{Key: attr.Key, Value: attr.Value})
	}
	return out
}

func eventsEqual(a, b []state.Event) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || len(a[i].Attrs) != len(b[i].Attrs) {
			return false
		}
		for j := range a[i].Attrs {
			if a[i].Attrs[j] != b[i].Attrs[j] {
				return false
			}
		}
	}
	return true
}
