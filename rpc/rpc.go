package rpc

import (
	"net"
	"net/rpc"

	"github.com/winzone/casino-server/ledger"
	"github.com/winzone/casino-server/logger"
	"github.com/winzone/casino-server/models"
	"github.com/winzone/casino-server/persistence"
)

// Server manages the RPC listener for back-office tooling.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered with the
// net/rpc default server before Start.
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

// BackOffice exposes operator methods over net/rpc: user lookups, manual
// balance corrections, bans. Every balance change still goes through the
// ledger so it lands in the audit trail.
type BackOffice struct {
	db     persistence.Database
	ledger *ledger.Ledger
}

func NewBackOffice(db persistence.Database, l *ledger.Ledger) *BackOffice {
	return &BackOffice{db: db, ledger: l}
}

// Register attaches the service to the net/rpc default server.
func (b *BackOffice) Register() error {
	return rpc.RegisterName("BackOffice", b)
}

type GetUserArgs struct {
	UserID int64
}

type GetUserReply struct {
	User *models.User
	Bets []models.Bet
}

func (b *BackOffice) GetUser(args *GetUserArgs, reply *GetUserReply) error {
	user, err := b.db.GetUser(args.UserID)
	if err != nil {
		return err
	}
	bets, err := b.db.BetsByUser(args.UserID, 50)
	if err != nil {
		return err
	}
	reply.User = user
	reply.Bets = bets
	return nil
}

type AdjustBalanceArgs struct {
	UserID int64
	Delta  int64 // paise, negative for a correction debit
	Reason string
}

type AdjustBalanceReply struct {
	Balance int64
}

func (b *BackOffice) AdjustBalance(args *AdjustBalanceArgs, reply *AdjustBalanceReply) error {
	balance, err := b.ledger.Apply(args.UserID, args.Delta, "admin:"+args.Reason)
	if err != nil {
		return err
	}
	reply.Balance = balance
	return nil
}

type SetBannedArgs struct {
	UserID int64
	Banned bool
}

type SetBannedReply struct{}

func (b *BackOffice) SetBanned(args *SetBannedArgs, reply *SetBannedReply) error {
	return b.db.SetBanned(args.UserID, args.Banned)
}
