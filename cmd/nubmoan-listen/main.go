package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// envelope mirrors the daemon's state WebSocket frames.
type envelope struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

type cueData struct {
	ID          string `json:"id"`
	Movement    int64  `json:"movement"`
	Events      int    `json:"events"`
	Index       int    `json:"index"`
	File        string `json:"file"`
	RemainingMS int64  `json:"remaining_ms"`
	Error       string `json:"error"`
}

type stateData struct {
	Movement            int64  `json:"movement"`
	Events              int    `json:"events"`
	EventLimit          int    `json:"event_limit"`
	CooldownRemainingMS int64  `json:"cooldown_remaining_ms"`
	SoundDir            string `json:"sound_dir"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3011/ws/state", "nubmoan state websocket URL")
		raw   = flag.Bool("raw", false, "Print frames as received")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	var writeMu sync.Mutex

	// Answer the daemon's pings and push the read deadline forward.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if messageType != websocket.TextMessage {
				fmt.Printf("[BINARY] %d bytes\n", len(message))
				continue
			}
			if *raw {
				fmt.Println(string(message))
				continue
			}
			handleTextMessage(message)
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// handleTextMessage prints one frame in a compact, human-readable form.
func handleTextMessage(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	ts := env.Ts.Local().Format("15:04:05.000")

	switch env.Type {
	case "state_init":
		var s stateData
		if err := json.Unmarshal(env.Data, &s); err != nil {
			break
		}
		fmt.Printf("%s [STATE] movement=%d events=%d/%d cooldown=%dms dir=%s\n",
			ts, s.Movement, s.Events, s.EventLimit, s.CooldownRemainingMS, s.SoundDir)
		return

	case "cue_triggered", "cooldown_denied", "asset_path_failed":
		var c cueData
		if err := json.Unmarshal(env.Data, &c); err != nil {
			break
		}
		switch env.Type {
		case "cue_triggered":
			fmt.Printf("%s [CUE] %s movement=%d index=%d id=%s", ts, c.File, c.Movement, c.Index, c.ID)
		case "cooldown_denied":
			fmt.Printf("%s [COOLDOWN] movement=%d remaining=%dms", ts, c.Movement, c.RemainingMS)
		default:
			fmt.Printf("%s [PATH FAILED] movement=%d index=%d", ts, c.Movement, c.Index)
		}
		if c.Error != "" {
			fmt.Printf(" error=%q", c.Error)
		}
		fmt.Println()
		return
	}

	fmt.Printf("%s [%s] %s\n", ts, env.Type, string(env.Data))
}
