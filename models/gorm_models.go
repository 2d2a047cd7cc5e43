// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormUser backs the users table. Balance carries a CHECK so an overdraft
// can never be written even outside the conditional update path.
type GormUser struct {
	gorm.Model
	UserID     int64  `gorm:"uniqueIndex;not null"`
	Name       string `gorm:"not null"`
	Balance    int64  `gorm:"not null;default:0;check:balance >= 0"`
	Banned     bool   `gorm:"not null;default:false"`
	Role       string `gorm:"not null;default:'player'"`
	ClientSeed string `gorm:"not null"`
	Nonce      int64  `gorm:"not null;default:0"`
}

func (GormUser) TableName() string { return "users" }

type GormBet struct {
	BetID          string `gorm:"primaryKey;type:varchar(64)"`
	UserID         int64  `gorm:"index;not null"`
	Game           string `gorm:"index;not null"`
	Stake          int64  `gorm:"not null"`
	Params         string `gorm:"type:jsonb"`
	Outcome        string
	Won            bool
	Payout         int64
	MultiplierX100 int64
	Status         string `gorm:"not null;default:'PENDING'"`
	ClientSeed     string
	ServerSeedHash string `gorm:"index"`
	ServerSeed     string
	Nonce          int64
	RoundID        string `gorm:"index"`
	CreatedAt      time.Time
	SettledAt      time.Time
}

func (GormBet) TableName() string { return "bets" }

type GormRound struct {
	RoundID        string `gorm:"primaryKey;type:varchar(64)"`
	Game           string `gorm:"index;not null"`
	Outcome        string `gorm:"not null"`
	ServerSeedHash string
	BetCount       int
	TotalStaked    int64
	TotalPaid      int64
	SettledAt      time.Time `gorm:"index"`
}

func (GormRound) TableName() string { return "rounds" }

type GormGameConfig struct {
	gorm.Model
	Game    string `gorm:"uniqueIndex;not null"`
	Enabled bool   `gorm:"not null;default:true"`
	MinBet  int64  `gorm:"not null"`
	MaxBet  int64  `gorm:"not null"`
}

func (GormGameConfig) TableName() string { return "game_configs" }

type GormWalletRequest struct {
	RequestID  string `gorm:"primaryKey;type:varchar(64)"`
	UserID     int64  `gorm:"index;not null"`
	Type       string `gorm:"not null"`
	Amount     int64  `gorm:"not null"`
	Status     string `gorm:"index;not null;default:'PENDING'"`
	CreatedAt  time.Time
	ResolvedAt time.Time
}

func (GormWalletRequest) TableName() string { return "wallet_requests" }

type GormLedgerEntry struct {
	ID        uint  `gorm:"primaryKey"`
	UserID    int64 `gorm:"index;not null"`
	Delta     int64 `gorm:"not null"`
	Balance   int64 `gorm:"not null"`
	Reason    string
	CreatedAt time.Time
}

func (GormLedgerEntry) TableName() string { return "ledger_entries" }
