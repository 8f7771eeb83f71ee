package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Minimal wire types, mirroring the server protocol.
type clientMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"playerName,omitempty"`
	CardID     string `json:"cardId,omitempty"`
}

type serverMessage struct {
	Type     string          `json:"type"`
	State    json.RawMessage `json:"state"`
	Message  string          `json:"message"`
	PlayerID string          `json:"playerId"`
	Reason   string          `json:"reason"`
}

type clientCard struct {
	ID      string  `json:"id"`
	Face    *string `json:"face"`
	Flipped bool    `json:"isFlipped"`
	Matched bool    `json:"isMatched"`
}

type roomState struct {
	RoomCode           string       `json:"roomCode"`
	Status             string       `json:"status"`
	Players            []struct {
		Name      string `json:"name"`
		Connected bool   `json:"connected"`
		Score     int    `json:"score"`
	} `json:"players"`
	Cards              []clientCard `json:"cards"`
	CurrentPlayerIndex int          `json:"currentPlayerIndex"`
	Timer              int          `json:"timer"`
	MyPlayerIndex      int          `json:"myPlayerIndex"`
}

func send(c *websocket.Conn, msg clientMessage) error {
	return c.WriteJSON(msg)
}

func renderState(st *roomState) {
	fmt.Printf("-- room %s [%s] timer=%ds --\n", st.RoomCode, st.Status, st.Timer)
	for i, p := range st.Players {
		marker := "  "
		if i == st.CurrentPlayerIndex {
			marker = "->"
		}
		me := ""
		if i == st.MyPlayerIndex {
			me = " (you)"
		}
		conn := ""
		if !p.Connected {
			conn = " [disconnected]"
		}
		fmt.Printf("%s %s: %d%s%s\n", marker, p.Name, p.Score, me, conn)
	}
	for i, card := range st.Cards {
		cell := "[??]"
		if card.Matched {
			cell = "(" + *card.Face + ")"
		} else if card.Flipped {
			cell = "[" + *card.Face + "]"
		}
		fmt.Printf("%2d:%-12s", i, cell)
		if (i+1)%5 == 0 {
			fmt.Println()
		}
	}
	fmt.Println()
}

func main() {
	host := flag.String("host", "localhost:8080", "server address")
	roomCode := flag.String("room", "", "room code to join")
	name := flag.String("name", "", "player name")
	cid := flag.String("cid", "", "connection id (reuse to reconnect)")
	flag.Parse()

	if *roomCode == "" {
		log.Fatal("missing -room")
	}
	if *cid == "" {
		*cid = uuid.New().String()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{
		Scheme:   "ws",
		Host:     *host,
		Path:     "/ws/" + strings.ToUpper(*roomCode),
		RawQuery: "cid=" + *cid,
	}
	log.Printf("Connecting to %s (cid=%s)", u.String(), *cid)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	var (
		mu        sync.Mutex
		lastState roomState
	)
	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			var msg serverMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Printf("Received invalid message: %s", string(data))
				continue
			}
			switch msg.Type {
			case "STATE_SYNC", "GAME_START", "GAME_OVER":
				var st roomState
				if err := json.Unmarshal(msg.State, &st); err != nil {
					continue
				}
				mu.Lock()
				lastState = st
				mu.Unlock()
				if msg.Type == "GAME_OVER" {
					fmt.Printf("== game over (%s) ==\n", msg.Reason)
				}
				renderState(&st)
			case "ERROR":
				fmt.Println("server error:", msg.Message)
			case "PLAYER_LEFT":
				fmt.Printf("player %s disconnected\n", msg.PlayerID)
			case "RECONNECTED":
				fmt.Printf("player %s reconnected\n", msg.PlayerID)
			}
		}
	}()

	// Join the room
	if err := send(c, clientMessage{Type: "JOIN", PlayerName: *name}); err != nil {
		log.Fatalf("Join failed: %v", err)
	}

	log.Println("Client started. Type 'flip <index>' to flip a card.")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(text)
			if len(fields) == 0 {
				continue
			}

			switch fields[0] {
			case "flip":
				if len(fields) < 2 {
					fmt.Println("usage: flip <index>")
					continue
				}
				idx, err := strconv.Atoi(fields[1])
				mu.Lock()
				cards := lastState.Cards
				mu.Unlock()
				if err != nil || idx < 0 || idx >= len(cards) {
					fmt.Println("no such card")
					continue
				}
				if err := send(c, clientMessage{Type: "FLIP_CARD", CardID: cards[idx].ID}); err != nil {
					log.Println("Write error:", err)
					return
				}
			case "ready":
				if err := send(c, clientMessage{Type: "READY"}); err != nil {
					log.Println("Write error:", err)
					return
				}
			default:
				fmt.Println("commands: flip <index>, ready")
			}
		}
	}
}
