package server

import (
	"encoding/json"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wfunc/matchserver/broadcast"
	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/monitor"
	"github.com/wfunc/matchserver/network"
	"github.com/wfunc/matchserver/room"
	matchserver_rpc "github.com/wfunc/matchserver/rpc"
	"github.com/wfunc/matchserver/services"
	"github.com/wfunc/matchserver/session"
)

// A connection that answers no ping within pongWait counts as dead and its
// read loop errors out, which triggers detach and the reconnect grace timer.
const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	recordService  *services.RecordService
	monitor        *monitor.Monitor
	rpcServer      *matchserver_rpc.Server
	shutdownChan   chan struct{}
}

// NewGameServer wires the room manager, metrics and admin RPC together.
// records may carry a nil database; rooms then play without a record store.
func NewGameServer(addr, rpcAddr, monitorAddr string, opts room.Options, records *services.RecordService) *GameServer {
	s := &GameServer{
		addr:           addr,
		sessionManager: session.NewManager(),
		recordService:  records,
		monitor:        monitor.NewMonitor("matchserver"),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.roomManager = room.NewManager(opts, broadcast.NewRoomNotifier())
	s.roomManager.SetCountHook(s.monitor.SetActiveRooms)
	s.roomManager.SetFinishHook(func(res *room.Result) {
		s.monitor.IncGamesCompleted(string(res.Reason))
		records.SaveResult(res)
	})

	rpcServer, err := matchserver_rpc.NewServer(rpcAddr)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	rpc.Register(matchserver_rpc.NewAdminService(s.roomManager, records))

	s.monitor.StartServer(monitorAddr)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/rooms", s.handleCreateRoomCode).Methods(http.MethodPost)
	r.HandleFunc("/ws/{roomCode}", s.handleWebSocket)

	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, r)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.roomManager.CloseAll()
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleCreateRoomCode hands out a fresh room code. The room itself opens
// lazily on the first websocket connection presenting the code.
func (s *GameServer) handleCreateRoomCode(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"roomCode": game.GenerateRoomCode()}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomCode := mux.Vars(r)["roomCode"]
	if !game.ValidRoomCode(roomCode) {
		http.Error(w, "invalid room code", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn, roomCode, r.URL.Query().Get("cid"))
}

func (s *GameServer) handleConnection(conn *websocket.Conn, roomCode, connID string) {
	// The connection id doubles as the player identity. A client that wants
	// to reconnect presents the same id; otherwise it gets a fresh one.
	if connID == "" {
		connID = uuid.New().String()
	}

	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(connID, wsConn)
	sess.RoomCode = roomCode
	s.sessionManager.Add(sess)
	s.monitor.IncConnectedPlayers()

	rm := s.roomManager.GetOrCreate(roomCode)
	rm.Attach(sess)

	logger.Log.Infof("New connection from %s, session ID: %s, room: %s", wsConn.RemoteAddr(), sess.GetID(), roomCode)

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.RemoveSession(sess)
		s.monitor.DecConnectedPlayers()
		rm.Detach(sess)
		wsConn.Close()
	}()

	wsConn.SetReadDeadline(pongWait)
	wsConn.OnPong(func() {
		wsConn.SetReadDeadline(pongWait)
	})

	stopPings := make(chan struct{})
	defer close(stopPings)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := wsConn.Ping(); err != nil {
					return
				}
			case <-stopPings:
				return
			case <-s.shutdownChan:
				return
			}
		}
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			data, err := wsConn.ReadMessage()
			if err != nil {
				return
			}
			s.handleMessage(rm, sess, data)
		}
	}
}

func (s *GameServer) handleMessage(rm *room.Room, sess *session.Session, data []byte) {
	start := time.Now()
	s.monitor.IncMessagesReceived()

	msg, err := network.DecodeClientMessage(data)
	if err != nil {
		// Unparseable payloads are dropped without a reply.
		logger.Log.Debugf("Dropping malformed message from %s: %v", sess.GetID(), err)
		return
	}

	switch msg.Type {
	case network.MsgTypeJoin:
		rm.Join(sess.GetID(), msg.PlayerName)
	case network.MsgTypeFlipCard:
		rm.Flip(sess.GetID(), msg.CardID)
	case network.MsgTypeReady:
		rm.Ready(sess.GetID())
	default:
		logger.Log.Infof("Unknown message type: %s", msg.Type)
	}

	s.monitor.ObserveMessageLatency(time.Since(start))
}
