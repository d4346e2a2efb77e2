package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"gridarena.ai/internal/observerproto"
	"gridarena.ai/internal/sim/env"
)

// Server streams tick summaries to loopback observers. Publish and
// StartEpisode are called from the goroutine stepping the env; handlers run
// on HTTP goroutines and only see the marshaled copies.
type Server struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.Mutex
	boot observerproto.BootstrapResponse
	subs map[uint64]*subscriber

	dropTotal atomic.Uint64
}

type subscriber struct {
	out    chan []byte
	agents atomic.Bool
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only, see isLoopbackRemote
		},
		boot: observerproto.BootstrapResponse{ProtocolVersion: observerproto.Version},
		subs: map[uint64]*subscriber{},
	}
}

// StartEpisode refreshes the bootstrap document for a new episode.
func (s *Server) StartEpisode(e *env.Env) {
	tune := e.Tuning()
	boot := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		EpisodeID:       e.ID(),
		Tick:            e.Tick(),
		Params: observerproto.EpisodeParams{
			Width:    tune.Width,
			Height:   tune.Height,
			MaxSteps: tune.MaxSteps,
			Agents:   e.NumAgents(),
			Seed:     e.Seed(),
		},
		ItemPalette: e.ItemPalette(),
		Actions:     e.Table().Names(),
		Groups:      e.GroupNames(),
	}
	s.mu.Lock()
	s.boot = boot
	s.mu.Unlock()
}

// Publish fans one tick out to every subscriber. Slow subscribers lose
// ticks rather than stall the step loop.
func (s *Server) Publish(e *env.Env, sum env.TickSummary) {
	s.mu.Lock()
	s.boot.Tick = sum.Tick
	subs := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	msg := observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		EpisodeID:       sum.EpisodeID,
		Tick:            sum.Tick,
		Rewards:         sum.Rewards,
		Success:         sum.Success,
		ActionCounts:    sum.ActionCounts,
		Frozen:          sum.Frozen,
		Done:            sum.Done,
	}
	plain, err := json.Marshal(msg)
	if err != nil {
		return
	}
	var full []byte
	for _, sub := range subs {
		b := plain
		if sub.agents.Load() {
			if full == nil {
				msg.Agents = agentStates(e)
				full, _ = json.Marshal(msg)
			}
			b = full
		}
		select {
		case sub.out <- b:
		default:
			s.dropTotal.Add(1)
		}
	}
}

func agentStates(e *env.Env) []observerproto.AgentState {
	names := e.ItemNamer()
	agents := e.Agents()
	out := make([]observerproto.AgentState, len(agents))
	for i, a := range agents {
		loc := a.Loc()
		st := observerproto.AgentState{
			ID:          a.AgentID,
			Group:       a.GroupName,
			Pos:         [2]int{loc.R, loc.C},
			Orientation: a.Orientation.String(),
			Frozen:      a.Frozen,
		}
		if items := a.InventoryItems(); len(items) > 0 {
			st.Inventory = make(map[string]int, len(items))
			for _, item := range items {
				st.Inventory[names.ItemName(item)] = a.Amount(item)
			}
		}
		out[i] = st
	}
	return out
}

// Subscribers is the number of connected observers.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) DropTotal() uint64 { return s.dropTotal.Load() }

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		s.mu.Lock()
		resp := s.boot
		s.mu.Unlock()

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		id := s.nextID.Add(1)
		sb := &subscriber{out: make(chan []byte, 64)}
		sb.agents.Store(sub.Agents)
		s.mu.Lock()
		s.subs[id] = sb
		s.mu.Unlock()
		if s.log != nil {
			s.log.Printf("observer O%d joined from %s", id, r.RemoteAddr)
		}
		defer func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sb.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok {
				sb.agents.Store(sub.Agents)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	return sub, true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
