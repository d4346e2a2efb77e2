package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"gridarena.ai/internal/observerproto"
)

func main() {
	var (
		url    = flag.String("url", "ws://127.0.0.1:8080/observer/ws", "observer ws url")
		every  = flag.Uint64("every", 10, "print one line every N ticks")
		agents = flag.Bool("agents", false, "request per-agent state")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		Agents:          *agents,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	// The server drops observers that stay silent; re-subscribing keeps the
	// session open.
	go func() {
		t := time.NewTicker(20 * time.Second)
		defer t.Stop()
		for range t.C {
			if err := conn.WriteJSON(sub); err != nil {
				return
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	var totals episodeTotals
	for {
		var msg observerproto.TickMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != "TICK" {
			continue
		}
		totals.add(msg)
		if msg.Done || (*every > 0 && msg.Tick%*every == 0) {
			logger.Print(totals.line(msg))
		}
	}
}

// episodeTotals accumulates rewards for the episode currently streaming.
type episodeTotals struct {
	episode string
	rewards []float64
}

func (t *episodeTotals) add(msg observerproto.TickMsg) {
	if msg.EpisodeID != t.episode || len(t.rewards) != len(msg.Rewards) {
		t.episode = msg.EpisodeID
		t.rewards = make([]float64, len(msg.Rewards))
	}
	for i, r := range msg.Rewards {
		t.rewards[i] += r
	}
}

func (t *episodeTotals) line(msg observerproto.TickMsg) string {
	sum := 0.0
	for _, r := range t.rewards {
		sum += r
	}
	names := make([]string, 0, len(msg.ActionCounts))
	for n := range msg.ActionCounts {
		names = append(names, n)
	}
	sort.Strings(names)
	acts := make([]string, 0, len(names))
	for _, n := range names {
		acts = append(acts, fmt.Sprintf("%s=%d", n, msg.ActionCounts[n]))
	}
	s := fmt.Sprintf("episode=%s tick=%d frozen=%d reward=%.3f actions[%s]", t.episode, msg.Tick, msg.Frozen, sum, strings.Join(acts, " "))
	if msg.Done {
		s += " done"
	}
	return s
}
