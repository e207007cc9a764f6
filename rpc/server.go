package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/cors"

	"github.com/decred/melwalletd"
	"github.com/decred/melwalletd/types"
)

// Server serves melwalletd's JSON-RPC 2.0 surface over a single HTTP
// POST path, backed by a Daemon.
type Server struct {
	daemon  *melwalletd.Daemon
	methods methodTable
	handler http.Handler
}

// NewServer builds a Server bound to daemon, with allowedOrigins wired
// into rs/cors (the one piece of CORS handling melwalletd owns, per
// the daemon's allowed_origin config option).
func NewServer(daemon *melwalletd.Daemon, allowedOrigins []string) *Server {
	s := &Server{daemon: daemon}
	s.methods = s.buildMethodTable()

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.handler = c.Handler(http.HandlerFunc(s.serveRPC))
	return s
}

// Handler returns the CORS-wrapped http.Handler to mount at the RPC
// path.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: err.Error()}})
		return
	}

	writeResponse(w, s.dispatch(r.Context(), req))
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	resp := response{JSONRPC: "2.0", ID: req.ID}

	if req.JSONRPC != "2.0" || req.Method == "" {
		resp.Error = &rpcError{Code: codeInvalidRequest, Message: "malformed JSON-RPC 2.0 request"}
		return resp
	}

	handler, ok := s.methods[req.Method]
	if !ok {
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}
		return resp
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		resp.Error = errorToRPC(err)
		return resp
	}
	resp.Result = result
	return resp
}

func writeResponse(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// ---- method table ----------------------------------------------------------

type namedParams struct {
	Name string `json:"name"`
}

func (s *Server) buildMethodTable() methodTable {
	return methodTable{
		"list_wallets": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			return s.daemon.ListWallets(ctx)
		},

		"wallet_summary": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p namedParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return s.daemon.WalletSummary(ctx, p.Name)
		},

		"latest_header": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			return s.daemon.LatestHeader(ctx)
		},

		"melswap_info": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p struct {
				PoolKey string `json:"pool_key"`
			}
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return s.daemon.MelswapInfo(ctx, p.PoolKey)
		},

		"simulate_swap": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p struct {
				To    string       `json:"to"`
				From  string       `json:"from"`
				Value types.Amount `json:"value"`
			}
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			to, err := parseHexDenom(p.To)
			if err != nil {
				return nil, err
			}
			from, err := parseHexDenom(p.From)
			if err != nil {
				return nil, err
			}
			return s.daemon.SimulateSwap(ctx, to, from, p.Value)
		},

		"create_wallet": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p struct {
				Name     string  `json:"name"`
				Password string  `json:"password"`
				Secret   *string `json:"secret,omitempty"`
			}
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			var seed []byte
			if p.Secret != nil {
				decoded, err := melwalletd.DecodeSeedCrockford(*p.Secret)
				if err != nil {
					return nil, err
				}
				seed = decoded
			}
			return s.daemon.CreateWallet(ctx, p.Name, p.Password, seed)
		},

		"dump_coins": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p namedParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return s.daemon.DumpCoins(ctx, p.Name)
		},

		"dump_transactions": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p namedParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return s.daemon.DumpTransactions(ctx, p.Name)
		},

		"lock_wallet": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p namedParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			s.daemon.Lock(p.Name)
			return true, nil
		},

		"unlock_wallet": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p struct {
				Name     string `json:"name"`
				Password string `json:"password"`
			}
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			if err := s.daemon.Unlock(ctx, p.Name, p.Password); err != nil {
				return nil, err
			}
			return true, nil
		},

		"export_sk": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p struct {
				Name     string `json:"name"`
				Password string `json:"password"`
			}
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return s.daemon.ExportSK(ctx, p.Name, p.Password)
		},

		"prepare_tx": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p struct {
				Name string            `json:"name"`
				Args prepareTxArgsWire `json:"args"`
			}
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			args, err := p.Args.toDaemonArgs()
			if err != nil {
				return nil, err
			}
			return s.daemon.PrepareTx(ctx, p.Name, args)
		},

		"send_tx": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p struct {
				Name string             `json:"name"`
				Tx   *types.Transaction `json:"tx"`
			}
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return s.daemon.SendTx(ctx, p.Name, p.Tx)
		},

		"tx_balance": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p struct {
				Name   string       `json:"name"`
				TxHash types.TxHash `json:"txhash"`
			}
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			selfOriginated, kind, flows, err := s.daemon.TxBalance(ctx, p.Name, p.TxHash)
			if err != nil {
				return nil, err
			}
			// Flows travel as decimal strings for the same reason
			// Amount does: they are 128-bit quantities a JSON number
			// cannot carry losslessly.
			hexFlows := make(map[string]string, len(flows))
			for denom, v := range flows {
				hexFlows[hex.EncodeToString(denom.Bytes())] = v.String()
			}
			return struct {
				SelfOriginated bool              `json:"self_originated"`
				Kind           types.TxKind      `json:"kind"`
				Flows          map[string]string `json:"flows"`
			}{selfOriginated, kind, hexFlows}, nil
		},

		"tx_status": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p struct {
				Name   string       `json:"name"`
				TxHash types.TxHash `json:"txhash"`
			}
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return s.daemon.TxStatus(ctx, p.Name, p.TxHash)
		},

		"send_faucet": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			var p namedParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return s.daemon.SendFaucet(ctx, p.Name)
		},

		"debug_stats": func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
			return s.daemon.DebugStats(ctx)
		},
	}
}

func parseHexDenom(s string) (types.Denom, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return types.Denom{}, fmt.Errorf("invalid denom %q: %w", s, err)
	}
	return types.ParseDenom(raw)
}
