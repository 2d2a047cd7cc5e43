// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/winzone/casino-server/models"
)

// Database is the persistence contract the settlement engine depends on.
// AdjustBalance must be an atomic conditional update ("apply iff the
// resulting balance is non-negative"); it is the only way balance changes.
type Database interface {
	GetUser(userID int64) (*models.User, error)
	CreateUser(user *models.User) error
	SetBanned(userID int64, banned bool) error

	// AdjustBalance applies delta atomically and returns the new balance.
	// Returns ErrInsufficientFunds when the delta would overdraw.
	AdjustBalance(userID int64, delta int64) (int64, error)

	// NextNonce atomically increments and returns the user's bet nonce.
	NextNonce(userID int64) (int64, error)

	SaveLedgerEntry(entry *models.LedgerEntry) error

	CreateBet(bet *models.Bet) error
	FinalizeBet(bet *models.Bet) error
	BetsByUser(userID int64, limit int) ([]models.Bet, error)

	// RevealServerSeed back-fills the revealed seed on every bet that was
	// committed under seedHash. Called on seed rotation.
	RevealServerSeed(seedHash, seed string) error

	SaveRound(round *models.RoundRecord) error
	RecentRounds(game string, limit int) ([]models.RoundRecord, error)

	GameConfigs() ([]models.GameConfig, error)
	SaveGameConfig(cfg *models.GameConfig) error

	CreateWalletRequest(req *models.WalletRequest) error
	GetWalletRequest(id string) (*models.WalletRequest, error)
	ResolveWalletRequest(id string, status models.WalletRequestStatus) error
	PendingWalletRequests() ([]models.WalletRequest, error)

	Close() error
}

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
