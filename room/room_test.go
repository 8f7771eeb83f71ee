package room

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/matchserver/broadcast"
	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/network"
)

func TestMain(m *testing.M) {
	logger.InitDevelopment()
	os.Exit(m.Run())
}

// fakeConn is a test double for a broadcast target; it records every message
// the room pushes to it.
type fakeConn struct {
	id   string
	mu   sync.Mutex
	msgs []interface{}
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) GetID() string { return c.id }

func (c *fakeConn) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, v)
	return nil
}

func (c *fakeConn) messages() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *fakeConn) lastGameOver() (network.GameOverMessage, bool) {
	msgs := c.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if m, ok := msgs[i].(network.GameOverMessage); ok {
			return m, true
		}
	}
	return network.GameOverMessage{}, false
}

func (c *fakeConn) lastError() (network.ErrorMessage, bool) {
	msgs := c.messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if m, ok := msgs[i].(network.ErrorMessage); ok {
			return m, true
		}
	}
	return network.ErrorMessage{}, false
}

func (c *fakeConn) sawType(matches func(interface{}) bool) bool {
	for _, m := range c.messages() {
		if matches(m) {
			return true
		}
	}
	return false
}

func testOptions() Options {
	return Options{
		Pairs:         10,
		TurnSeconds:   15,
		FlipDelay:     20 * time.Millisecond,
		GracePeriod:   80 * time.Millisecond,
		StartDelay:    20 * time.Millisecond,
		TickInterval:  time.Hour, // turn clock frozen unless a test opts in
		TimerAccuracy: 2 * time.Millisecond,
		Catalog:       game.NBATeams,
	}
}

// probe is a consistent read of room state taken inside the dispatch loop.
type probe struct {
	status      game.Status
	playerCount int
	scores      []int
	connected   []bool
	current     int
	timer       int
	cardCount   int
	matched     int
	pending     int
	winner      *game.Player
}

func probeRoom(t *testing.T, r *Room) probe {
	t.Helper()
	ch := make(chan probe, 1)
	r.post(func() {
		p := probe{
			status:      r.st.Status,
			playerCount: len(r.st.Players),
			current:     r.st.CurrentPlayerIndex,
			timer:       r.st.Timer,
			cardCount:   len(r.st.Cards),
			pending:     len(r.st.FlippedCardIDs),
			winner:      r.st.Winner,
		}
		for _, pl := range r.st.Players {
			p.scores = append(p.scores, pl.Score)
			p.connected = append(p.connected, pl.Connected)
		}
		for _, c := range r.st.Cards {
			if c.Matched {
				p.matched++
			}
		}
		ch <- p
	})
	select {
	case p := <-ch:
		return p
	case <-time.After(time.Second):
		t.Fatal("probe timed out; room loop stuck or closed")
		return probe{}
	}
}

// boardCards copies the full (unredacted) board out of the dispatch loop.
func boardCards(t *testing.T, r *Room) []game.Card {
	t.Helper()
	ch := make(chan []game.Card, 1)
	r.post(func() {
		out := make([]game.Card, len(r.st.Cards))
		for i, c := range r.st.Cards {
			out[i] = *c
		}
		ch <- out
	})
	select {
	case cards := <-ch:
		return cards
	case <-time.After(time.Second):
		t.Fatal("board read timed out")
		return nil
	}
}

func waitFor(t *testing.T, deadline time.Duration, cond func() bool, desc string) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func newTestRoom(opts Options) *Room {
	return NewRoom("ABCDEF", opts, broadcast.NewRoomNotifier(), nil, nil)
}

// startTwoPlayerGame joins both players and waits through the start delay.
func startTwoPlayerGame(t *testing.T, opts Options) (*Room, *fakeConn, *fakeConn) {
	t.Helper()
	r := newTestRoom(opts)
	t.Cleanup(r.Close)

	a := newFakeConn("conn-a")
	b := newFakeConn("conn-b")

	r.Attach(a)
	r.Join(a.id, "Alice")
	r.Attach(b)
	r.Join(b.id, "Bob")

	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).status == game.StatusPlaying
	}, "game start")
	return r, a, b
}

// findPair returns the ids of a matching pair plus one card of another face.
func findPair(t *testing.T, r *Room) (first, second, other string) {
	t.Helper()
	byFace := make(map[string][]string)
	for _, c := range boardCards(t, r) {
		byFace[c.Face] = append(byFace[c.Face], c.ID)
	}
	for face, ids := range byFace {
		if first == "" {
			first, second = ids[0], ids[1]
			continue
		}
		_ = face
		other = ids[0]
		break
	}
	return first, second, other
}

func TestJoin_WaitingRoster(t *testing.T) {
	r := newTestRoom(testOptions())
	defer r.Close()

	a := newFakeConn("conn-a")
	r.Attach(a)
	r.Join(a.id, "Alice")

	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).playerCount == 1
	}, "first join")

	p := probeRoom(t, r)
	if p.status != game.StatusWaiting {
		t.Errorf("Expected status waiting with one player, got %s", p.status)
	}
}

func TestGameStart_AfterSecondJoin(t *testing.T) {
	r, _, _ := startTwoPlayerGame(t, testOptions())

	p := probeRoom(t, r)
	if p.cardCount != 20 {
		t.Errorf("Expected 20 cards dealt, got %d", p.cardCount)
	}
	if p.current != 0 {
		t.Errorf("Expected first joiner to open, got index %d", p.current)
	}
	if p.timer != 15 {
		t.Errorf("Expected turn timer 15, got %d", p.timer)
	}
}

func TestJoin_RoomFull(t *testing.T) {
	r := newTestRoom(testOptions())
	defer r.Close()

	for _, id := range []string{"conn-a", "conn-b"} {
		c := newFakeConn(id)
		r.Attach(c)
		r.Join(id, "")
	}
	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).playerCount == 2
	}, "two joins")

	c := newFakeConn("conn-c")
	r.Attach(c)
	r.Join(c.id, "Carol")

	waitFor(t, time.Second, func() bool {
		_, ok := c.lastError()
		return ok
	}, "rejection message")

	msg, _ := c.lastError()
	if msg.Message != "Room is full" {
		t.Errorf("Expected 'Room is full', got %q", msg.Message)
	}
	if p := probeRoom(t, r); p.playerCount != 2 {
		t.Errorf("Roster should stay at 2, got %d", p.playerCount)
	}
}

func TestJoin_DuringGame(t *testing.T) {
	opts := testOptions()
	r, _, _ := startTwoPlayerGame(t, opts)

	// Free a roster slot mid-game so the full-room guard does not mask the
	// in-progress guard.
	done := make(chan struct{})
	r.post(func() {
		r.st.RemovePlayer("conn-b")
		close(done)
	})
	<-done

	c := newFakeConn("conn-c")
	r.Attach(c)
	r.Join(c.id, "Carol")

	waitFor(t, time.Second, func() bool {
		_, ok := c.lastError()
		return ok
	}, "rejection message")

	msg, _ := c.lastError()
	if msg.Message != "Game already in progress" {
		t.Errorf("Expected 'Game already in progress', got %q", msg.Message)
	}
}

func TestFlip_MatchScoresAndKeepsTurn(t *testing.T) {
	r, a, _ := startTwoPlayerGame(t, testOptions())

	first, second, _ := findPair(t, r)
	r.Flip(a.id, first)
	r.Flip(a.id, second)

	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).matched == 2
	}, "match resolution")

	p := probeRoom(t, r)
	if p.scores[0] != 1 {
		t.Errorf("Expected acting player score 1, got %d", p.scores[0])
	}
	if p.current != 0 {
		t.Errorf("Turn should stay with the matcher, got index %d", p.current)
	}
	if p.timer != 15 {
		t.Errorf("Timer should reset to 15, got %d", p.timer)
	}
	if p.pending != 0 {
		t.Errorf("Pending set should be empty, got %d", p.pending)
	}
}

func TestFlip_NonMatchPassesTurn(t *testing.T) {
	r, a, _ := startTwoPlayerGame(t, testOptions())

	first, _, other := findPair(t, r)
	r.Flip(a.id, first)
	r.Flip(a.id, other)

	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).current == 1
	}, "turn pass")

	p := probeRoom(t, r)
	if p.matched != 0 {
		t.Errorf("No cards should match, got %d", p.matched)
	}
	if p.scores[0] != 0 {
		t.Errorf("Score should stay 0, got %d", p.scores[0])
	}
	if p.timer != 15 {
		t.Errorf("Timer should reset to 15, got %d", p.timer)
	}

	for _, c := range boardCards(t, r) {
		if c.Flipped {
			t.Errorf("Card %s should have flipped back", c.ID)
		}
	}
}

func TestFlip_OutOfTurnIgnored(t *testing.T) {
	r, _, b := startTwoPlayerGame(t, testOptions())

	first, _, _ := findPair(t, r)
	r.Flip(b.id, first)

	time.Sleep(50 * time.Millisecond)
	if p := probeRoom(t, r); p.pending != 0 {
		t.Errorf("Out-of-turn flip must be ignored, pending=%d", p.pending)
	}
}

func TestTurnTimer_TimeUp(t *testing.T) {
	opts := testOptions()
	opts.TurnSeconds = 1
	opts.TickInterval = 25 * time.Millisecond
	opts.FlipDelay = time.Hour // keep match resolution out of the way
	r, a, _ := startTwoPlayerGame(t, opts)

	first, _, _ := findPair(t, r)
	r.Flip(a.id, first)

	waitFor(t, time.Second, func() bool {
		p := probeRoom(t, r)
		return p.current != 0 && p.pending == 0
	}, "time up")

	p := probeRoom(t, r)
	if p.scores[0] != 0 || p.scores[1] != 0 {
		t.Errorf("Time up must not score, got %v", p.scores)
	}
	for _, c := range boardCards(t, r) {
		if c.Flipped {
			t.Errorf("Card %s should have flipped back on time up", c.ID)
		}
	}
}

func TestTimeUp_CancelsPendingResolution(t *testing.T) {
	opts := testOptions()
	opts.TurnSeconds = 2
	opts.TickInterval = 30 * time.Millisecond
	opts.FlipDelay = 200 * time.Millisecond
	r, a, _ := startTwoPlayerGame(t, opts)

	first, second, _ := findPair(t, r)
	r.Flip(a.id, first)
	r.Flip(a.id, second)

	// The turn expires before the flip delay elapses; the scheduled
	// resolution is superseded and must never score the board.
	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).pending == 0
	}, "time up clears pending")

	time.Sleep(300 * time.Millisecond)
	if p := probeRoom(t, r); p.matched != 0 {
		t.Errorf("Stale flip-delay callback matched cards: %d", p.matched)
	}
}

func TestReconnect_WithinGrace(t *testing.T) {
	r, a, b := startTwoPlayerGame(t, testOptions())

	before := probeRoom(t, r)
	r.Detach(b)

	waitFor(t, time.Second, func() bool {
		p := probeRoom(t, r)
		return len(p.connected) == 2 && !p.connected[1]
	}, "disconnect flag")

	if !a.sawType(func(m interface{}) bool {
		pl, ok := m.(network.PlayerLeftMessage)
		return ok && pl.PlayerID == b.id && pl.ReconnectDeadline > time.Now().UnixMilli()
	}) {
		t.Error("Opponent should see PLAYER_LEFT with a future reconnect deadline")
	}

	// Same identity comes back before the grace period runs out.
	b2 := newFakeConn(b.id)
	r.Attach(b2)
	r.Join(b2.id, "Bob")

	waitFor(t, time.Second, func() bool {
		p := probeRoom(t, r)
		return len(p.connected) == 2 && p.connected[1]
	}, "reconnect flag")

	if !a.sawType(func(m interface{}) bool {
		rc, ok := m.(network.ReconnectedMessage)
		return ok && rc.PlayerID == b.id
	}) {
		t.Error("Opponent should see RECONNECTED")
	}

	after := probeRoom(t, r)
	if after.status != game.StatusPlaying {
		t.Errorf("Reconnect must not end the game, status=%s", after.status)
	}
	if after.playerCount != before.playerCount || after.scores[1] != before.scores[1] {
		t.Error("Reconnect must not alter roster or scores")
	}

	// Well past the original grace window: the cancelled timer must not fire.
	time.Sleep(150 * time.Millisecond)
	if p := probeRoom(t, r); p.status != game.StatusPlaying {
		t.Errorf("Cancelled grace timer ended the game, status=%s", p.status)
	}
}

func TestGraceExpiry_DuringGame(t *testing.T) {
	r, a, b := startTwoPlayerGame(t, testOptions())

	// Give the remaining player a lead so the forfeit has a winner.
	done := make(chan struct{})
	r.post(func() {
		r.st.Players[0].Score = 2
		close(done)
	})
	<-done

	r.Detach(b)

	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).status == game.StatusFinished
	}, "disconnect finish")

	over, ok := a.lastGameOver()
	if !ok {
		t.Fatal("Remaining player should receive GAME_OVER")
	}
	if over.Reason != game.ReasonDisconnect {
		t.Errorf("Expected reason disconnect, got %s", over.Reason)
	}
	if over.Winner == nil || over.Winner.ID != a.id {
		t.Errorf("Score leader should win the forfeit, got %+v", over.Winner)
	}
}

func TestGraceExpiry_DuringGame_TiedScores(t *testing.T) {
	r, a, b := startTwoPlayerGame(t, testOptions())

	r.Detach(b)

	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).status == game.StatusFinished
	}, "disconnect finish")

	over, ok := a.lastGameOver()
	if !ok {
		t.Fatal("Remaining player should receive GAME_OVER")
	}
	// Winner comes from plain score comparison even on a forfeit; a tied
	// board stays a tie.
	if over.Winner != nil {
		t.Errorf("Tied disconnect should have no winner, got %+v", over.Winner)
	}
}

func TestGraceExpiry_WhileWaiting(t *testing.T) {
	r := newTestRoom(testOptions())
	defer r.Close()

	a := newFakeConn("conn-a")
	b := newFakeConn("conn-b")
	r.Attach(a)
	r.Join(a.id, "Alice")
	r.Attach(b)

	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).playerCount == 1
	}, "first join")

	r.Detach(a)

	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).playerCount == 0
	}, "roster drop")

	if p := probeRoom(t, r); p.status == game.StatusFinished {
		t.Error("A waiting-room departure must not finish a game")
	}
}

func TestAbandonedRoomCloses(t *testing.T) {
	closed := make(chan string, 1)
	r := NewRoom("ABCDEF", testOptions(), broadcast.NewRoomNotifier(), nil, func(code string) {
		closed <- code
	})

	a := newFakeConn("conn-a")
	r.Attach(a)
	r.Join(a.id, "Alice")

	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).playerCount == 1
	}, "join")

	r.Detach(a)

	select {
	case code := <-closed:
		if code != "ABCDEF" {
			t.Errorf("Close hook got wrong code %q", code)
		}
	case <-time.After(time.Second):
		t.Fatal("Room should tear down after the last grace timer expires")
	}
}

func TestCompleteGame_TieHasNoWinner(t *testing.T) {
	opts := testOptions()
	opts.Pairs = 1
	r, a, b := startTwoPlayerGame(t, opts)

	// Level the scores so clearing the board ends in a tie.
	done := make(chan struct{})
	r.post(func() {
		r.st.Players[1].Score = 1
		close(done)
	})
	<-done

	first, second, _ := findPair(t, r)
	r.Flip(a.id, first)
	r.Flip(a.id, second)

	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).status == game.StatusFinished
	}, "complete finish")

	for _, c := range []*fakeConn{a, b} {
		over, ok := c.lastGameOver()
		if !ok {
			t.Fatalf("Connection %s should receive GAME_OVER", c.id)
		}
		if over.Reason != game.ReasonComplete {
			t.Errorf("Expected reason complete, got %s", over.Reason)
		}
		if over.Winner != nil {
			t.Errorf("Tied completion should have no winner, got %+v", over.Winner)
		}
	}
}

func TestBroadcast_RedactsPerConnection(t *testing.T) {
	r, a, _ := startTwoPlayerGame(t, testOptions())

	first, _, _ := findPair(t, r)
	r.Flip(a.id, first)

	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).pending == 1
	}, "flip applied")

	for _, msgs := range [][]interface{}{a.messages()} {
		for _, m := range msgs {
			sync, ok := m.(network.StateSyncMessage)
			if !ok {
				continue
			}
			for _, c := range sync.State.Cards {
				if !c.Flipped && !c.Matched && c.Face != nil {
					t.Fatalf("State sync leaked face %q for hidden card %s", *c.Face, c.ID)
				}
			}
		}
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager(testOptions(), broadcast.NewRoomNotifier())
	defer m.CloseAll()

	r1 := m.GetOrCreate("ABCDEF")
	r2 := m.GetOrCreate("ABCDEF")
	if r1 != r2 {
		t.Error("GetOrCreate should return the same room for one code")
	}

	r3 := m.GetOrCreate("GHJKLM")
	if r3 == r1 {
		t.Error("Different codes must map to different rooms")
	}
	if m.Count() != 2 {
		t.Errorf("Expected 2 open rooms, got %d", m.Count())
	}
}

func TestManager_RemovesClosedRoom(t *testing.T) {
	var counts []int
	var mu sync.Mutex
	m := NewManager(testOptions(), broadcast.NewRoomNotifier())
	m.SetCountHook(func(n int) {
		mu.Lock()
		counts = append(counts, n)
		mu.Unlock()
	})

	r := m.GetOrCreate("ABCDEF")
	a := newFakeConn("conn-a")
	r.Attach(a)
	r.Join(a.id, "Alice")
	waitFor(t, time.Second, func() bool {
		return probeRoom(t, r).playerCount == 1
	}, "join")

	r.Detach(a)

	waitFor(t, time.Second, func() bool {
		return m.Count() == 0
	}, "manager removal")

	mu.Lock()
	defer mu.Unlock()
	if len(counts) < 2 || counts[len(counts)-1] != 0 {
		t.Errorf("Count hook should end at 0, got %v", counts)
	}
}

func TestDetach_StaleSocketDoesNotEvictReplacement(t *testing.T) {
	r, _, b := startTwoPlayerGame(t, testOptions())

	// A fresh socket for the same identity attaches before the old socket's
	// read loop notices it is gone; the old cleanup then fires late.
	b2 := newFakeConn(b.id)
	r.Attach(b2)
	r.Detach(b)
	r.Join(b2.id, "Bob")

	p := probeRoom(t, r)
	if len(p.connected) != 2 || !p.connected[1] {
		t.Fatal("Stale detach marked a live reconnected player as disconnected")
	}

	if !b2.sawType(func(m interface{}) bool {
		rc, ok := m.(network.ReconnectedMessage)
		return ok && rc.PlayerID == b.id
	}) {
		t.Error("New socket should stay in the broadcast set and see RECONNECTED")
	}

	// Well past the grace window: no timer may have been armed.
	time.Sleep(150 * time.Millisecond)
	p = probeRoom(t, r)
	if p.status != game.StatusPlaying {
		t.Errorf("Stale detach ended the game, status=%s", p.status)
	}
	if _, ok := b2.lastGameOver(); ok {
		t.Error("New socket received GAME_OVER from a stale detach")
	}
}

func TestDetach_UnregisteredSocketIgnored(t *testing.T) {
	r, _, b := startTwoPlayerGame(t, testOptions())

	// A socket that was never attached (or was already replaced) detaching
	// must leave the roster untouched.
	ghost := newFakeConn(b.id)
	r.Detach(ghost)

	p := probeRoom(t, r)
	if len(p.connected) != 2 || !p.connected[1] {
		t.Error("Detach of an unregistered socket must not touch the player")
	}
}

func TestReady_NoStateChange(t *testing.T) {
	r, a, _ := startTwoPlayerGame(t, testOptions())

	before := probeRoom(t, r)
	r.Ready(a.id)
	r.Ready("conn-stranger")
	after := probeRoom(t, r)

	if after.status != before.status || after.current != before.current || after.timer != before.timer {
		t.Error("READY must be accepted without changing game state")
	}
}
