package models

import (
	"time"
)

// All money amounts are int64 paise (hundredths of a rupee). Multipliers
// travel as int64 hundredths (198 == 1.98x). Floats never accumulate
// across balance mutations.

// Game identifiers. One WebSocket namespace per game.
const (
	GameDice         = "dice"
	GameLimbo        = "limbo"
	GameCoinFlip     = "coin-flip"
	GameWheel        = "wheel"
	GameSlots        = "slots"
	GameMines        = "mines"
	GameTripleNumber = "triple-number"
	GameIPL          = "ipl"
)

// AllGames lists every game the server runs, used to seed configs and
// register socket endpoints.
var AllGames = []string{
	GameDice, GameLimbo, GameCoinFlip, GameWheel,
	GameSlots, GameMines, GameTripleNumber, GameIPL,
}

type BetStatus string

const (
	BetPending BetStatus = "PENDING"
	BetWon     BetStatus = "WON"
	BetLost    BetStatus = "LOST"
)

// User is the authoritative identity + balance record. Balance is mutated
// only through the ledger, never by game code directly.
type User struct {
	UserID     int64     `json:"user_id"`
	Name       string    `json:"name"`
	Balance    int64     `json:"balance"` // paise
	Banned     bool      `json:"banned"`
	Role       string    `json:"role"`
	ClientSeed string    `json:"client_seed"`
	Nonce      int64     `json:"nonce"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Bet is created PENDING at placement and finalized exactly once at
// settlement; immutable afterwards.
type Bet struct {
	ID             string    `json:"id"`
	UserID         int64     `json:"user_id"`
	Game           string    `json:"game"`
	Stake          int64     `json:"stake"` // paise
	Params         string    `json:"params"`
	Outcome        string    `json:"outcome"`
	Won            bool      `json:"won"`
	Payout         int64     `json:"payout"` // paise, 0 on loss
	MultiplierX100 int64     `json:"multiplier_x100"`
	Status         BetStatus `json:"status"`
	ClientSeed     string    `json:"client_seed"`
	ServerSeedHash string    `json:"server_seed_hash"`
	ServerSeed     string    `json:"server_seed,omitempty"` // revealed after seed rotation
	Nonce          int64     `json:"nonce"`
	RoundID        string    `json:"round_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	SettledAt      time.Time `json:"settled_at"`
}

// RoundRecord is the persisted result of one scheduled round shared by
// many bettors (triple-number, IPL toss).
type RoundRecord struct {
	ID             string    `json:"id"`
	Game           string    `json:"game"`
	Outcome        string    `json:"outcome"`
	ServerSeedHash string    `json:"server_seed_hash"`
	BetCount       int       `json:"bet_count"`
	TotalStaked    int64     `json:"total_staked"`
	TotalPaid      int64     `json:"total_paid"`
	SettledAt      time.Time `json:"settled_at"`
}

// GameConfig is the admin-controlled switch and bet bounds per game. The
// settlement engine re-reads it on every bet.
type GameConfig struct {
	Game    string `json:"game"`
	Enabled bool   `json:"enabled"`
	MinBet  int64  `json:"min_bet"` // paise
	MaxBet  int64  `json:"max_bet"` // paise
}

type WalletRequestType string

const (
	WalletDeposit  WalletRequestType = "deposit"
	WalletWithdraw WalletRequestType = "withdraw"
)

type WalletRequestStatus string

const (
	WalletPending  WalletRequestStatus = "PENDING"
	WalletApproved WalletRequestStatus = "APPROVED"
	WalletRejected WalletRequestStatus = "REJECTED"
)

// WalletRequest is an admin-managed deposit/withdrawal with an
// approve/reject lifecycle. Withdrawals reserve the amount at creation
// and refund it on rejection.
type WalletRequest struct {
	ID         string              `json:"id"`
	UserID     int64               `json:"user_id"`
	Type       WalletRequestType   `json:"type"`
	Amount     int64               `json:"amount"` // paise
	Status     WalletRequestStatus `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	ResolvedAt time.Time           `json:"resolved_at"`
}

// LedgerEntry records one balance mutation and the balance after it, so
// every paisa is attributable to a settled bet or a wallet request.
type LedgerEntry struct {
	UserID    int64     `json:"user_id"`
	Delta     int64     `json:"delta"`
	Balance   int64     `json:"balance"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
