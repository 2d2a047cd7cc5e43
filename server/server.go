package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/winzone/casino-server/broadcast"
	"github.com/winzone/casino-server/games"
	"github.com/winzone/casino-server/ledger"
	"github.com/winzone/casino-server/logger"
	"github.com/winzone/casino-server/models"
	"github.com/winzone/casino-server/monitor"
	"github.com/winzone/casino-server/network"
	"github.com/winzone/casino-server/persistence"
	"github.com/winzone/casino-server/round"
	casino_rpc "github.com/winzone/casino-server/rpc"
	"github.com/winzone/casino-server/services"
	"github.com/winzone/casino-server/session"
)

// GameServer accepts one WebSocket namespace per game and routes packets
// to the instant settler, the mines manager, or the game's round
// scheduler.
type GameServer struct {
	addr           string
	upgrader       websocket.Upgrader
	mux            *http.ServeMux
	sessionManager *session.Manager
	db             persistence.Database
	ledger         *ledger.Ledger
	settler        *games.Settler
	mines          *games.MinesManager
	rounds         *round.Manager
	configService  *services.ConfigService
	walletService  *services.WalletService
	fairAdmin      FairAdmin
	monitor        *monitor.Monitor
	broadcaster    broadcast.Broadcaster
	rpcServer      *casino_rpc.Server
	shutdownChan   chan struct{}
}

// FairAdmin is the seed rotation surface the admin API exposes.
type FairAdmin interface {
	SeedHash() string
	Rotate() (revealed, newHash string)
}

type Deps struct {
	DB            persistence.Database
	Ledger        *ledger.Ledger
	Settler       *games.Settler
	Mines         *games.MinesManager
	Rounds        *round.Manager
	ConfigService *services.ConfigService
	WalletService *services.WalletService
	Fair          FairAdmin
	Monitor       *monitor.Monitor
	Sessions      *session.Manager
	Broadcaster   broadcast.Broadcaster
}

func NewGameServer(addr, rpcAddr string, deps Deps) *GameServer {
	s := &GameServer{
		addr:           addr,
		mux:            http.NewServeMux(),
		sessionManager: deps.Sessions,
		db:             deps.DB,
		ledger:         deps.Ledger,
		settler:        deps.Settler,
		mines:          deps.Mines,
		rounds:         deps.Rounds,
		configService:  deps.ConfigService,
		walletService:  deps.WalletService,
		fairAdmin:      deps.Fair,
		monitor:        deps.Monitor,
		broadcaster:    deps.Broadcaster,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	rpcServer, err := casino_rpc.NewServer(rpcAddr)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	backOffice := casino_rpc.NewBackOffice(deps.DB, deps.Ledger)
	if err := backOffice.Register(); err != nil {
		logger.Log.Fatalf("Failed to register RPC service: %v", err)
	}

	for _, game := range models.AllGames {
		game := game
		s.mux.HandleFunc("/ws/"+game, func(w http.ResponseWriter, r *http.Request) {
			s.handleWebSocket(game, w, r)
		})
	}
	s.registerAdminRoutes()

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
}

func (s *GameServer) handleWebSocket(game string, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(game, conn)
}

func (s *GameServer) handleConnection(game string, conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), game, wsConn)
	s.sessionManager.Add(sess)
	if s.monitor != nil {
		s.monitor.IncOnlinePlayers()
	}

	logger.Log.Infof("New %s connection from %s, session ID: %s", game, wsConn.RemoteAddr(), sess.GetID())

	// Scheduled games send the round picture immediately so the client
	// can render the countdown before authenticating.
	if scheduler, ok := s.rounds.Get(game); ok {
		sess.SendEvent(network.MsgTypeRoundInit, scheduler.Snapshot())
	}

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		if s.monitor != nil {
			s.monitor.DecOnlinePlayers()
		}
		if game == models.GameMines && sess.Authenticated() {
			// Only arm the grace timer when this was the last session.
			if len(s.sessionManager.GetByUserID(sess.GetUserID())) == 0 {
				s.mines.HandleDisconnect(sess.GetUserID())
			}
		}
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(game, sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(game string, sess *session.Session, packet *network.Packet) {
	if packet.MsgID == network.MsgTypeHeartbeat {
		sess.Touch()
		return
	}
	if packet.MsgID == network.MsgTypeAuth {
		s.handleAuth(game, sess, packet)
		return
	}
	if !sess.Authenticated() {
		sess.SendError("not authenticated")
		return
	}

	switch packet.MsgID {
	case network.MsgTypeBetPlace:
		s.handleBetPlace(game, sess, packet)
	case network.MsgTypeMinesStart:
		s.handleMinesStart(game, sess, packet)
	case network.MsgTypeMinesReveal:
		s.handleMinesReveal(game, sess, packet)
	case network.MsgTypeMinesCashout:
		s.handleMinesCashout(game, sess)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

type authRequest struct {
	UserID int64 `json:"user_id"`
}

type authResponse struct {
	UserID         int64  `json:"user_id"`
	Name           string `json:"name"`
	Balance        int64  `json:"balance"`
	ClientSeed     string `json:"client_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	Nonce          int64  `json:"nonce"`
}

func (s *GameServer) handleAuth(game string, sess *session.Session, packet *network.Packet) {
	var req authRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		sess.SendError("bad auth payload")
		return
	}

	user, err := s.db.GetUser(req.UserID)
	if err != nil {
		sess.SendError("unknown user")
		return
	}
	if user.Banned {
		sess.SendError("account is banned")
		return
	}

	sess.SetUserID(user.UserID)
	sess.SendEvent(network.MsgTypeAuth, &authResponse{
		UserID:         user.UserID,
		Name:           user.Name,
		Balance:        user.Balance,
		ClientSeed:     user.ClientSeed,
		ServerSeedHash: s.fairAdmin.SeedHash(),
		Nonce:          user.Nonce,
	})

	// A reconnect into mines resumes the open round and cancels the
	// pending auto-cashout.
	if game == models.GameMines {
		if st := s.mines.HandleReconnect(user.UserID); st != nil {
			sess.SendEvent(network.MsgTypeMinesStarted, st)
		}
	}
}

type betPlaceRequest struct {
	Stake  int64           `json:"stake"`
	Params json.RawMessage `json:"params"`
}

func (s *GameServer) handleBetPlace(game string, sess *session.Session, packet *network.Packet) {
	// Scheduled games route through the round's phase machine, which
	// rejects bets outside the betting window.
	if scheduler, ok := s.rounds.Get(game); ok {
		if err := scheduler.HandleAction(sess, packet.Data); err != nil {
			sess.SendError(err.Error())
		}
		return
	}

	var req betPlaceRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		sess.SendError("bad bet payload")
		return
	}

	result, err := s.settler.PlaceBet(sess.GetUserID(), game, req.Stake, req.Params)
	if err != nil {
		sess.SendError(err.Error())
		return
	}
	sess.SendEvent(network.MsgTypeBetResult, result)
}

type minesStartRequest struct {
	Stake     int64 `json:"stake"`
	MineCount int   `json:"mine_count"`
}

func (s *GameServer) handleMinesStart(game string, sess *session.Session, packet *network.Packet) {
	if game != models.GameMines {
		sess.SendError("wrong namespace")
		return
	}
	var req minesStartRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		sess.SendError("bad mines payload")
		return
	}

	st, err := s.mines.Start(sess.GetUserID(), req.Stake, req.MineCount)
	if err != nil {
		sess.SendError(err.Error())
		return
	}
	sess.SendEvent(network.MsgTypeMinesStarted, st)
}

type minesRevealRequest struct {
	Tile int `json:"tile"`
}

func (s *GameServer) handleMinesReveal(game string, sess *session.Session, packet *network.Packet) {
	if game != models.GameMines {
		sess.SendError("wrong namespace")
		return
	}
	var req minesRevealRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		sess.SendError("bad mines payload")
		return
	}

	st, err := s.mines.Reveal(sess.GetUserID(), req.Tile)
	if err != nil {
		sess.SendError(err.Error())
		return
	}
	if st.Over {
		sess.SendEvent(network.MsgTypeMinesOver, st)
		return
	}
	sess.SendEvent(network.MsgTypeTileRevealed, st)
}

func (s *GameServer) handleMinesCashout(game string, sess *session.Session) {
	if game != models.GameMines {
		sess.SendError("wrong namespace")
		return
	}

	st, err := s.mines.Cashout(sess.GetUserID())
	if err != nil {
		sess.SendError(err.Error())
		return
	}
	sess.SendEvent(network.MsgTypeMinesOver, st)
}
