// Package api is the node's HTTP control surface: a small set of GET
// endpoints to drive the miner and transaction generator, inspect the
// longest chain, and a best-effort websocket feed of accepted blocks and
// transactions. Every JSON response follows the {success, message} (or
// bare value) envelope from spec §6; internal errors never leak past it.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/unisalento/solechain/internal/chainstore"
	"github.com/unisalento/solechain/internal/miner"
	"github.com/unisalento/solechain/internal/state"
	"github.com/unisalento/solechain/internal/txgen"
	"github.com/unisalento/solechain/internal/types"
)

// envelope is the standard {success, message} response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Server holds the collaborators the HTTP handlers read and drive. It
// never mutates the blockchain/state/mempool directly — only through the
// miner and generator handles, same as every other caller.
type Server struct {
	blockchain    *chainstore.Blockchain
	stateStore    *state.Store
	minerHandle   miner.Handle
	txgenHandle   txgen.Handle
	pingBroadcast func()
	demoAddresses [3]types.Address
	log           *zap.SugaredLogger

	hub *hub
}

// New builds the HTTP API server. pingBroadcast is called to fan out a
// Ping("Test ping") to every connected peer; it is injected rather than a
// concrete *network.Handle so this package has no libp2p dependency.
func New(
	bc *chainstore.Blockchain,
	st *state.Store,
	minerHandle miner.Handle,
	txgenHandle txgen.Handle,
	pingBroadcast func(),
	demoAddresses [3]types.Address,
	log *zap.SugaredLogger,
) *Server {
	return &Server{
		blockchain:    bc,
		stateStore:    st,
		minerHandle:   minerHandle,
		txgenHandle:   txgenHandle,
		pingBroadcast: pingBroadcast,
		demoAddresses: demoAddresses,
		log:           log,
		hub:           newHub(),
	}
}

// NotifyBlockAccepted feeds the websocket feed; wired to
// worker.Pool.OnBlockAccepted by cmd/solechain.
func (s *Server) NotifyBlockAccepted(block types.Block) {
	s.hub.broadcast(map[string]any{
		"type":  "block",
		"hash":  block.Hash().String(),
		"nonce": block.Header.Nonce,
	})
}

// NotifyTransactionAccepted feeds the websocket feed; wired to
// worker.Pool.OnTransactionAccepted by cmd/solechain.
func (s *Server) NotifyTransactionAccepted(tx types.SignedTransaction) {
	s.hub.broadcast(map[string]any{
		"type": "transaction",
		"hash": tx.Hash().String(),
	})
}

// Router builds the mux router with rate limiting and CORS applied, ready
// to hand to an *http.Server.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.notFound)
	r.Use(jsonContentType)

	limiter := newIPRateLimiter(20, 30)
	limited := rateLimitMiddleware(limiter)

	r.Handle("/miner/start", limited(http.HandlerFunc(s.handleMinerStart))).Methods(http.MethodGet)
	r.Handle("/tx-generator/start", limited(http.HandlerFunc(s.handleTxGeneratorStart))).Methods(http.MethodGet)
	r.Handle("/network/ping", limited(http.HandlerFunc(s.handleNetworkPing))).Methods(http.MethodGet)
	r.Handle("/blockchain/longest-chain", limited(http.HandlerFunc(s.handleLongestChain))).Methods(http.MethodGet)
	r.Handle("/blockchain/longest-chain-tx", limited(http.HandlerFunc(s.handleLongestChainTx))).Methods(http.MethodGet)
	r.Handle("/blockchain/longest-chain-tx-count", limited(http.HandlerFunc(s.handleLongestChainTxCount))).Methods(http.MethodGet)
	r.Handle("/blockchain/state", limited(http.HandlerFunc(s.handleBlockchainState))).Methods(http.MethodGet)
	r.HandleFunc("/events/ws", s.handleWebsocket)

	return corsMiddleware(r)
}

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Origin, Accept")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(envelope{Success: false, Message: "not found"})
}

func writeEnvelope(w http.ResponseWriter, success bool, message string) {
	json.NewEncoder(w).Encode(envelope{Success: success, Message: message})
}

func (s *Server) handleMinerStart(w http.ResponseWriter, r *http.Request) {
	lambda, err := parseUint64(r.URL.Query().Get("lambda"))
	if err != nil {
		writeEnvelope(w, false, "invalid lambda")
		return
	}
	s.minerHandle.Start(lambda)
	writeEnvelope(w, true, "miner started")
}

func (s *Server) handleTxGeneratorStart(w http.ResponseWriter, r *http.Request) {
	theta, err := parseUint64(r.URL.Query().Get("theta"))
	if err != nil {
		writeEnvelope(w, false, "invalid theta")
		return
	}
	s.txgenHandle.Start(theta)
	writeEnvelope(w, true, "transaction generator started")
}

func (s *Server) handleNetworkPing(w http.ResponseWriter, r *http.Request) {
	s.pingBroadcast()
	writeEnvelope(w, true, "ping broadcast")
}

func (s *Server) handleLongestChain(w http.ResponseWriter, r *http.Request) {
	blocks := s.blockchain.AllBlocksInLongestChain()
	hashes := make([]string, len(blocks))
	for i, h := range blocks {
		hashes[i] = h.String()
	}
	json.NewEncoder(w).Encode(hashes)
}

func (s *Server) handleLongestChainTx(w http.ResponseWriter, r *http.Request) {
	hashes := s.blockchain.AllBlocksInLongestChain()
	result := make([][]string, len(hashes))
	for i, h := range hashes {
		block, ok := s.blockchain.Get(h)
		if !ok {
			continue
		}
		txHashes := make([]string, len(block.Content.Data))
		for j, tx := range block.Content.Data {
			txHashes[j] = tx.Hash().String()
		}
		result[i] = txHashes
	}
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleLongestChainTxCount(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, false, "unimplemented")
}

func (s *Server) handleBlockchainState(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.URL.Query().Get("block"))
	if err != nil || index < 0 {
		writeEnvelope(w, false, "invalid block index")
		return
	}

	chain := s.blockchain.AllBlocksInLongestChain()
	if index >= len(chain) {
		writeEnvelope(w, false, "block index out of range")
		return
	}

	snapshot, ok := s.stateStore.Get(chain[index])
	if !ok {
		writeEnvelope(w, false, "no state snapshot recorded for that block")
		return
	}

	var lines []string
	for _, addr := range s.demoAddresses {
		account, present := snapshot[addr]
		if !present {
			continue
		}
		lines = append(lines, "("+addr.String()+", "+strconv.FormatUint(uint64(account.Nonce), 10)+", "+strconv.FormatUint(uint64(account.Balance), 10)+")")
	}
	json.NewEncoder(w).Encode(lines)
}

func parseUint64(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades to a websocket and streams block/transaction
// acceptance notifications until the client disconnects. Best-effort only
// — nothing here feeds back into consensus.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugw("websocket upgrade failed", "error", err)
		return
	}
	client := s.hub.register(conn)
	defer s.hub.unregister(client)

	for msg := range client.outbound {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// rateLimiter and friends, ported from the teacher's api_middleware.go.

type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

func newIPRateLimiter(r rate.Limit, b int) *ipRateLimiter {
	return &ipRateLimiter{limiters: make(map[string]*rate.Limiter), r: r, b: b}
}

func (i *ipRateLimiter) get(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	l, ok := i.limiters[ip]
	if !ok {
		l = rate.NewLimiter(i.r, i.b)
		i.limiters[ip] = l
	}
	return l
}

func rateLimitMiddleware(limiter *ipRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if !limiter.get(ip).Allow() {
				w.WriteHeader(http.StatusTooManyRequests)
				writeEnvelope(w, false, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
