package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/matchserver/game"
	"github.com/wfunc/matchserver/logger"
	"github.com/wfunc/matchserver/models"
	"github.com/wfunc/matchserver/room"
	"github.com/wfunc/matchserver/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes operational queries over net/rpc.
type AdminService struct {
	roomManager *room.Manager
	records     *services.RecordService
}

func NewAdminService(rm *room.Manager, records *services.RecordService) *AdminService {
	return &AdminService{roomManager: rm, records: records}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Codes []string
}

// ListRooms returns the codes of all open rooms.
func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	reply.Codes = a.roomManager.Codes()
	return nil
}

type RoomStateArgs struct {
	RoomCode string
}

type RoomStateReply struct {
	Found bool
	State game.ClientView
}

// RoomState returns the redacted snapshot of a room, as a non-participant
// observer would see it.
func (a *AdminService) RoomState(args *RoomStateArgs, reply *RoomStateReply) error {
	r, exists := a.roomManager.Get(args.RoomCode)
	if !exists {
		return nil
	}
	view, ok := r.Snapshot("")
	if !ok {
		return nil
	}
	reply.Found = true
	reply.State = view
	return nil
}

type PlayerHistoryArgs struct {
	Name string
}

type PlayerHistoryReply struct {
	History *models.PlayerHistory
}

// PlayerHistory returns a player's aggregated match results.
func (a *AdminService) PlayerHistory(args *PlayerHistoryArgs, reply *PlayerHistoryReply) error {
	history, err := a.records.PlayerHistory(args.Name)
	if err != nil {
		return err
	}
	reply.History = history
	return nil
}
