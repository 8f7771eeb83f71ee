// room/room.go
package room

import (
	"time"

	"github.com/wfunc/matchserver/broadcast"
	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/timer"
)

// Options 房间游戏参数
type Options struct {
	Pairs         int
	TurnSeconds   int
	FlipDelay     time.Duration
	GracePeriod   time.Duration
	StartDelay    time.Duration
	TickInterval  time.Duration // turn clock resolution, one second in production
	TimerAccuracy time.Duration // scheduler polling resolution
	Catalog       []string
}

func DefaultOptions() Options {
	return Options{
		Pairs:         10,
		TurnSeconds:   15,
		FlipDelay:     time.Second,
		GracePeriod:   30 * time.Second,
		StartDelay:    1500 * time.Millisecond,
		TickInterval:  time.Second,
		TimerAccuracy: 100 * time.Millisecond,
		Catalog:       game.NBATeams,
	}
}

// Result summarizes a finished game for the record store.
type Result struct {
	RoomCode string
	Reason   game.EndReason
	Winner   *game.Player
	Players  []game.Player
	Duration time.Duration
}

// Room owns all state for one room code. Every mutation, whether an inbound
// message or a timer fire, runs as a command on a single goroutine, so no
// locking is needed inside the session and each event is atomic. Timer callbacks
// re-enter the same dispatch path instead of touching state directly.
type Room struct {
	Code string

	opts     Options
	st       *game.State
	notifier broadcast.Notifier
	sched    *timer.Scheduler

	conns map[string]broadcast.Target

	graceTimers  map[string]int64
	turnTimerID  int64
	flipTimerID  int64
	startTimerID int64

	startedAt time.Time

	cmds chan func()
	done chan struct{}

	onFinish func(*Result)
	onClose  func(code string)
}

// NewRoom opens a room and starts its dispatch loop. onFinish receives the
// result of a finished game (may be nil); onClose fires once when the room
// tears down (may be nil).
func NewRoom(code string, opts Options, notifier broadcast.Notifier, onFinish func(*Result), onClose func(string)) *Room {
	r := &Room{
		Code:        code,
		opts:        opts,
		st:          game.NewState(code, opts.TurnSeconds),
		notifier:    notifier,
		sched:       timer.NewScheduler(opts.TimerAccuracy),
		conns:       make(map[string]broadcast.Target),
		graceTimers: make(map[string]int64),
		cmds:        make(chan func(), 64),
		done:        make(chan struct{}),
		onFinish:    onFinish,
		onClose:     onClose,
	}
	go r.run()
	return r
}

func (r *Room) run() {
	for {
		select {
		case fn := <-r.cmds:
			fn()
		case <-r.done:
			return
		}
	}
}

// post queues fn onto the dispatch loop. Safe to call from any goroutine;
// commands posted to a closed room are discarded.
func (r *Room) post(fn func()) {
	select {
	case r.cmds <- fn:
	case <-r.done:
	}
}

// --- public API, all serialized through the dispatch loop ---

// Attach registers a live connection and sends it the current redacted
// snapshot, so a reconnecting client can repaint before re-joining.
func (r *Room) Attach(c broadcast.Target) {
	r.post(func() {
		r.conns[c.GetID()] = c
		r.notifier.SyncState([]broadcast.Target{c}, r.st)
	})
}

// Join handles a JOIN message from an attached connection.
func (r *Room) Join(connID, playerName string) {
	r.post(func() { r.handleJoin(connID, playerName) })
}

// Flip handles a FLIP_CARD message.
func (r *Room) Flip(connID, cardID string) {
	r.post(func() { r.handleFlip(connID, cardID) })
}

// Ready acknowledges a READY message. Games auto-start when the second
// player joins, so readiness carries no state.
func (r *Room) Ready(connID string) {
	r.post(func() {
		logger.Log.Debugf("room %s: ready from %s", r.Code, connID)
	})
}

// Detach handles a closed connection. The closed socket itself is passed in,
// not just its id: a reconnect may already have replaced it.
func (r *Room) Detach(c broadcast.Target) {
	r.post(func() { r.handleDetach(c) })
}

// Snapshot returns the redacted view for a viewer, read inside the dispatch
// loop. ok is false when the room is already closed.
func (r *Room) Snapshot(viewerID string) (view game.ClientView, ok bool) {
	ch := make(chan game.ClientView, 1)
	r.post(func() { ch <- game.Project(r.st, viewerID) })
	select {
	case view = <-ch:
		return view, true
	case <-r.done:
		return game.ClientView{}, false
	}
}

// Close tears the room down from outside the loop.
func (r *Room) Close() {
	r.post(r.closeRoom)
}

// --- handlers, always on the dispatch goroutine ---

func (r *Room) handleJoin(connID, playerName string) {
	conn, attached := r.conns[connID]
	if !attached {
		return
	}

	if idx := r.st.PlayerIndex(connID); idx >= 0 {
		r.handleReconnect(connID, idx)
		return
	}

	p, err := r.st.AddPlayer(connID, playerName)
	if err != nil {
		switch err {
		case game.ErrRoomFull:
			r.notifier.Error(conn, "Room is full")
		case game.ErrGameInProgress:
			r.notifier.Error(conn, "Game already in progress")
		default:
			r.notifier.Error(conn, "Unable to join room")
		}
		return
	}

	logger.Log.Infof("room %s: player %s (%s) joined", r.Code, p.Name, p.ID)
	r.notifier.PlayerJoined(r.targets(), *p)
	r.notifier.SyncState(r.targets(), r.st)

	if len(r.st.Players) == game.MaxPlayers {
		r.startTimerID = r.sched.After(r.opts.StartDelay, func() {
			r.post(r.handleStartGame)
		})
	}
}

// Reconnect within the grace window: mark connected, cancel the grace timer,
// leave score, roster order and board untouched.
func (r *Room) handleReconnect(connID string, idx int) {
	r.st.Players[idx].Connected = true

	if tid, ok := r.graceTimers[connID]; ok {
		r.sched.Cancel(tid)
		delete(r.graceTimers, connID)
	}

	logger.Log.Infof("room %s: player %s reconnected", r.Code, connID)
	r.notifier.Reconnected(r.targets(), connID)
	r.notifier.SyncState(r.targets(), r.st)
}

func (r *Room) handleStartGame() {
	r.startTimerID = 0
	if r.st.Status != game.StatusWaiting || len(r.st.Players) < game.MaxPlayers {
		return
	}

	cards, err := game.NewDeck(r.opts.Catalog, r.opts.Pairs)
	if err != nil {
		logger.Log.Errorf("room %s: deck generation failed: %v", r.Code, err)
		return
	}
	if err := r.st.Start(cards); err != nil {
		logger.Log.Errorf("room %s: start rejected: %v", r.Code, err)
		return
	}

	r.startedAt = time.Now()
	r.turnTimerID = r.sched.Every(r.opts.TickInterval, func() {
		r.post(r.handleTurnTick)
	})

	logger.Log.Infof("room %s: game started, %d cards dealt", r.Code, len(cards))
	r.notifier.GameStart(r.targets(), r.st)
}

func (r *Room) handleTurnTick() {
	if r.st.Status != game.StatusPlaying {
		r.cancelTurnTimer()
		return
	}

	r.st.Timer--
	if r.st.Timer <= 0 {
		// Time's up supersedes a pending match resolution.
		r.cancelFlipTimer()
		r.st.TimeUp()
	}
	r.notifier.SyncState(r.targets(), r.st)
}

func (r *Room) handleFlip(connID, cardID string) {
	out := r.st.FlipCard(connID, cardID)
	if !out.Applied {
		return
	}

	r.notifier.SyncState(r.targets(), r.st)

	if out.PairPending {
		actor := out.ActorIndex
		r.flipTimerID = r.sched.After(r.opts.FlipDelay, func() {
			r.post(func() { r.handleResolve(actor) })
		})
	}
}

func (r *Room) handleResolve(actorIndex int) {
	r.flipTimerID = 0

	res := r.st.ResolveFlipped(actorIndex)
	if !res.Applied {
		return
	}

	if res.BoardCleared {
		r.endGame(game.ReasonComplete)
		return
	}
	r.notifier.SyncState(r.targets(), r.st)
}

func (r *Room) handleDetach(c broadcast.Target) {
	connID := c.GetID()

	// A late cleanup from a socket this identity already replaced must not
	// evict the live connection or start a grace timer against it.
	if cur, registered := r.conns[connID]; !registered || cur != c {
		return
	}
	delete(r.conns, connID)

	idx := r.st.PlayerIndex(connID)
	if idx < 0 {
		r.closeIfDeserted()
		return
	}

	r.st.Players[idx].Connected = false
	deadline := time.Now().Add(r.opts.GracePeriod)

	logger.Log.Infof("room %s: player %s disconnected, grace until %s", r.Code, connID, deadline.Format(time.RFC3339))
	r.notifier.PlayerLeft(r.targets(), connID, deadline)

	r.graceTimers[connID] = r.sched.After(r.opts.GracePeriod, func() {
		r.post(func() { r.handleGraceExpired(connID) })
	})
}

func (r *Room) handleGraceExpired(connID string) {
	// A reconnect that raced this callback already removed the map entry.
	if _, pending := r.graceTimers[connID]; !pending {
		return
	}
	delete(r.graceTimers, connID)

	if r.st.Status == game.StatusPlaying {
		logger.Log.Infof("room %s: player %s forfeited by disconnect", r.Code, connID)
		r.endGame(game.ReasonDisconnect)
		return
	}

	r.st.RemovePlayer(connID)
	r.notifier.SyncState(r.targets(), r.st)
	r.closeIfDeserted()
}

func (r *Room) endGame(reason game.EndReason) {
	if r.st.Status != game.StatusPlaying {
		return
	}

	r.cancelTurnTimer()
	r.cancelFlipTimer()

	if err := r.st.Finish(); err != nil {
		logger.Log.Errorf("room %s: finish rejected: %v", r.Code, err)
		return
	}

	logger.Log.Infof("room %s: game over, reason=%s", r.Code, reason)
	r.notifier.GameOver(r.targets(), r.st, r.st.Winner, reason)

	if r.onFinish != nil {
		res := &Result{
			RoomCode: r.Code,
			Reason:   reason,
			Winner:   r.st.Winner,
			Duration: time.Since(r.startedAt),
		}
		for _, p := range r.st.Players {
			res.Players = append(res.Players, *p)
		}
		go r.onFinish(res)
	}
}

// closeIfDeserted tears the room down once nobody is connected and no grace
// timer could still bring somebody back.
func (r *Room) closeIfDeserted() {
	if len(r.conns) > 0 || len(r.graceTimers) > 0 {
		return
	}
	if anyConnected(r.st.Players) {
		return
	}

	if r.st.Status == game.StatusWaiting {
		if err := r.st.Abandon(); err == nil {
			logger.Log.Infof("room %s: abandoned", r.Code)
		}
	}
	r.closeRoom()
}

func (r *Room) closeRoom() {
	select {
	case <-r.done:
		return
	default:
	}

	r.sched.Stop()
	close(r.done)
	if r.onClose != nil {
		go r.onClose(r.Code)
	}
}

func (r *Room) cancelTurnTimer() {
	if r.turnTimerID != 0 {
		r.sched.Cancel(r.turnTimerID)
		r.turnTimerID = 0
	}
}

func (r *Room) cancelFlipTimer() {
	if r.flipTimerID != 0 {
		r.sched.Cancel(r.flipTimerID)
		r.flipTimerID = 0
	}
}

func (r *Room) targets() []broadcast.Target {
	out := make([]broadcast.Target, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func anyConnected(players []*game.Player) bool {
	for _, p := range players {
		if p.Connected {
			return true
		}
	}
	return false
}
