// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/winzone/casino-server/models"
)

// GormPostgreSQL is the GORM-backed implementation of Database.
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormUser{},
		&models.GormBet{},
		&models.GormRound{},
		&models.GormGameConfig{},
		&models.GormWalletRequest{},
		&models.GormLedgerEntry{},
	)
}

func userFromGorm(u *models.GormUser) *models.User {
	return &models.User{
		UserID:     u.UserID,
		Name:       u.Name,
		Balance:    u.Balance,
		Banned:     u.Banned,
		Role:       u.Role,
		ClientSeed: u.ClientSeed,
		Nonce:      u.Nonce,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func (p *GormPostgreSQL) GetUser(userID int64) (*models.User, error) {
	var user models.GormUser
	if err := p.db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return userFromGorm(&user), nil
}

func (p *GormPostgreSQL) CreateUser(user *models.User) error {
	return p.db.Create(&models.GormUser{
		UserID:     user.UserID,
		Name:       user.Name,
		Balance:    user.Balance,
		Banned:     user.Banned,
		Role:       user.Role,
		ClientSeed: user.ClientSeed,
		Nonce:      user.Nonce,
	}).Error
}

func (p *GormPostgreSQL) SetBanned(userID int64, banned bool) error {
	res := p.db.Model(&models.GormUser{}).
		Where("user_id = ?", userID).
		Update("banned", banned)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// AdjustBalance is the ledger's critical section. The WHERE clause makes
// the check-and-write a single statement, so two concurrent debits can
// never both pass a stale balance check.
func (p *GormPostgreSQL) AdjustBalance(userID int64, delta int64) (int64, error) {
	var balance int64
	err := p.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.GormUser{}).
			Where("user_id = ? AND balance + ? >= 0", userID, delta).
			Update("balance", gorm.Expr("balance + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.GormUser{}).
				Where("user_id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrRecordNotFound
			}
			return ErrInsufficientFunds
		}

		var user models.GormUser
		if err := tx.Select("balance").Where("user_id = ?", userID).First(&user).Error; err != nil {
			return err
		}
		balance = user.Balance
		return nil
	})
	return balance, err
}

func (p *GormPostgreSQL) NextNonce(userID int64) (int64, error) {
	var nonce int64
	err := p.db.Raw(
		`UPDATE users SET nonce = nonce + 1 WHERE user_id = ? RETURNING nonce`,
		userID,
	).Scan(&nonce).Error
	return nonce, err
}

func (p *GormPostgreSQL) SaveLedgerEntry(entry *models.LedgerEntry) error {
	return p.db.Create(&models.GormLedgerEntry{
		UserID:    entry.UserID,
		Delta:     entry.Delta,
		Balance:   entry.Balance,
		Reason:    entry.Reason,
		CreatedAt: entry.CreatedAt,
	}).Error
}

func (p *GormPostgreSQL) CreateBet(bet *models.Bet) error {
	return p.db.Create(&models.GormBet{
		BetID:          bet.ID,
		UserID:         bet.UserID,
		Game:           bet.Game,
		Stake:          bet.Stake,
		Params:         bet.Params,
		Status:         string(bet.Status),
		ClientSeed:     bet.ClientSeed,
		ServerSeedHash: bet.ServerSeedHash,
		Nonce:          bet.Nonce,
		RoundID:        bet.RoundID,
		CreatedAt:      bet.CreatedAt,
	}).Error
}

// FinalizeBet transitions a PENDING bet to WON/LOST exactly once; the
// status guard keeps settled bets immutable.
func (p *GormPostgreSQL) FinalizeBet(bet *models.Bet) error {
	res := p.db.Model(&models.GormBet{}).
		Where("bet_id = ? AND status = ?", bet.ID, string(models.BetPending)).
		Updates(map[string]interface{}{
			"outcome":         bet.Outcome,
			"won":             bet.Won,
			"payout":          bet.Payout,
			"multiplier_x100": bet.MultiplierX100,
			"status":          string(bet.Status),
			"settled_at":      bet.SettledAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) BetsByUser(userID int64, limit int) ([]models.Bet, error) {
	var rows []models.GormBet
	if err := p.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	bets := make([]models.Bet, 0, len(rows))
	for _, r := range rows {
		bets = append(bets, models.Bet{
			ID:             r.BetID,
			UserID:         r.UserID,
			Game:           r.Game,
			Stake:          r.Stake,
			Params:         r.Params,
			Outcome:        r.Outcome,
			Won:            r.Won,
			Payout:         r.Payout,
			MultiplierX100: r.MultiplierX100,
			Status:         models.BetStatus(r.Status),
			ClientSeed:     r.ClientSeed,
			ServerSeedHash: r.ServerSeedHash,
			ServerSeed:     r.ServerSeed,
			Nonce:          r.Nonce,
			RoundID:        r.RoundID,
			CreatedAt:      r.CreatedAt,
			SettledAt:      r.SettledAt,
		})
	}
	return bets, nil
}

func (p *GormPostgreSQL) RevealServerSeed(seedHash, seed string) error {
	return p.db.Model(&models.GormBet{}).
		Where("server_seed_hash = ?", seedHash).
		Update("server_seed", seed).Error
}

func (p *GormPostgreSQL) SaveRound(round *models.RoundRecord) error {
	return p.db.Create(&models.GormRound{
		RoundID:        round.ID,
		Game:           round.Game,
		Outcome:        round.Outcome,
		ServerSeedHash: round.ServerSeedHash,
		BetCount:       round.BetCount,
		TotalStaked:    round.TotalStaked,
		TotalPaid:      round.TotalPaid,
		SettledAt:      round.SettledAt,
	}).Error
}

func (p *GormPostgreSQL) RecentRounds(game string, limit int) ([]models.RoundRecord, error) {
	var rows []models.GormRound
	if err := p.db.Where("game = ?", game).
		Order("settled_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	rounds := make([]models.RoundRecord, 0, len(rows))
	for _, r := range rows {
		rounds = append(rounds, models.RoundRecord{
			ID:             r.RoundID,
			Game:           r.Game,
			Outcome:        r.Outcome,
			ServerSeedHash: r.ServerSeedHash,
			BetCount:       r.BetCount,
			TotalStaked:    r.TotalStaked,
			TotalPaid:      r.TotalPaid,
			SettledAt:      r.SettledAt,
		})
	}
	return rounds, nil
}

func (p *GormPostgreSQL) GameConfigs() ([]models.GameConfig, error) {
	var rows []models.GormGameConfig
	if err := p.db.Find(&rows).Error; err != nil {
		return nil, err
	}

	configs := make([]models.GameConfig, 0, len(rows))
	for _, r := range rows {
		configs = append(configs, models.GameConfig{
			Game:    r.Game,
			Enabled: r.Enabled,
			MinBet:  r.MinBet,
			MaxBet:  r.MaxBet,
		})
	}
	return configs, nil
}

func (p *GormPostgreSQL) SaveGameConfig(cfg *models.GameConfig) error {
	var row models.GormGameConfig
	result := p.db.Where("game = ?", cfg.Game).First(&row)

	if result.Error == gorm.ErrRecordNotFound {
		return p.db.Create(&models.GormGameConfig{
			Game:    cfg.Game,
			Enabled: cfg.Enabled,
			MinBet:  cfg.MinBet,
			MaxBet:  cfg.MaxBet,
		}).Error
	} else if result.Error != nil {
		return result.Error
	}

	row.Enabled = cfg.Enabled
	row.MinBet = cfg.MinBet
	row.MaxBet = cfg.MaxBet
	return p.db.Save(&row).Error
}

func (p *GormPostgreSQL) CreateWalletRequest(req *models.WalletRequest) error {
	return p.db.Create(&models.GormWalletRequest{
		RequestID: req.ID,
		UserID:    req.UserID,
		Type:      string(req.Type),
		Amount:    req.Amount,
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt,
	}).Error
}

func (p *GormPostgreSQL) GetWalletRequest(id string) (*models.WalletRequest, error) {
	var row models.GormWalletRequest
	if err := p.db.Where("request_id = ?", id).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &models.WalletRequest{
		ID:         row.RequestID,
		UserID:     row.UserID,
		Type:       models.WalletRequestType(row.Type),
		Amount:     row.Amount,
		Status:     models.WalletRequestStatus(row.Status),
		CreatedAt:  row.CreatedAt,
		ResolvedAt: row.ResolvedAt,
	}, nil
}

// ResolveWalletRequest flips a PENDING request exactly once.
func (p *GormPostgreSQL) ResolveWalletRequest(id string, status models.WalletRequestStatus) error {
	res := p.db.Model(&models.GormWalletRequest{}).
		Where("request_id = ? AND status = ?", id, string(models.WalletPending)).
		Updates(map[string]interface{}{
			"status":      string(status),
			"resolved_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) PendingWalletRequests() ([]models.WalletRequest, error) {
	var rows []models.GormWalletRequest
	if err := p.db.Where("status = ?", string(models.WalletPending)).
		Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	requests := make([]models.WalletRequest, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, models.WalletRequest{
			ID:         row.RequestID,
			UserID:     row.UserID,
			Type:       models.WalletRequestType(row.Type),
			Amount:     row.Amount,
			Status:     models.WalletRequestStatus(row.Status),
			CreatedAt:  row.CreatedAt,
			ResolvedAt: row.ResolvedAt,
		})
	}
	return requests, nil
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
