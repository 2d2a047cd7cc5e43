package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/winzone/casino-server/config"
	"github.com/winzone/casino-server/ledger"
	"github.com/winzone/casino-server/logger"
	"github.com/winzone/casino-server/models"
	"github.com/winzone/casino-server/persistence"
)

func init() {
	logger.Init()
}

// memDB implements persistence.Database in memory for service tests.
type memDB struct {
	mu       sync.Mutex
	users    map[int64]*models.User
	bets     map[string]*models.Bet
	rounds   []*models.RoundRecord
	configs  map[string]models.GameConfig
	wallets  map[string]*models.WalletRequest
	entries  []*models.LedgerEntry
	failSave bool
}

func newMemDB() *memDB {
	return &memDB{
		users:   make(map[int64]*models.User),
		bets:    make(map[string]*models.Bet),
		configs: make(map[string]models.GameConfig),
		wallets: make(map[string]*models.WalletRequest),
	}
}

func (d *memDB) GetUser(userID int64) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (d *memDB) CreateUser(user *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := *user
	d.users[user.UserID] = &copied
	return nil
}

func (d *memDB) SetBanned(userID int64, banned bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return persistence.ErrRecordNotFound
	}
	u.Banned = banned
	return nil
}

func (d *memDB) AdjustBalance(userID int64, delta int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return 0, persistence.ErrRecordNotFound
	}
	if u.Balance+delta < 0 {
		return 0, persistence.ErrInsufficientFunds
	}
	u.Balance += delta
	return u.Balance, nil
}

func (d *memDB) NextNonce(userID int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return 0, persistence.ErrRecordNotFound
	}
	u.Nonce++
	return u.Nonce, nil
}

func (d *memDB) SaveLedgerEntry(entry *models.LedgerEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, entry)
	return nil
}

func (d *memDB) CreateBet(bet *models.Bet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := *bet
	d.bets[bet.ID] = &copied
	return nil
}

func (d *memDB) FinalizeBet(bet *models.Bet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := *bet
	d.bets[bet.ID] = &copied
	return nil
}

func (d *memDB) BetsByUser(userID int64, limit int) ([]models.Bet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var bets []models.Bet
	for _, b := range d.bets {
		if b.UserID == userID {
			bets = append(bets, *b)
		}
	}
	if limit > 0 && len(bets) > limit {
		bets = bets[:limit]
	}
	return bets, nil
}

func (d *memDB) RevealServerSeed(seedHash, seed string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range d.bets {
		if b.ServerSeedHash == seedHash {
			b.ServerSeed = seed
		}
	}
	return nil
}

func (d *memDB) SaveRound(round *models.RoundRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rounds = append(d.rounds, round)
	return nil
}

func (d *memDB) RecentRounds(game string, limit int) ([]models.RoundRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.RoundRecord
	for i := len(d.rounds) - 1; i >= 0 && len(out) < limit; i-- {
		if d.rounds[i].Game == game {
			out = append(out, *d.rounds[i])
		}
	}
	return out, nil
}

func (d *memDB) GameConfigs() ([]models.GameConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.GameConfig
	for _, cfg := range d.configs {
		out = append(out, cfg)
	}
	return out, nil
}

func (d *memDB) SaveGameConfig(cfg *models.GameConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSave {
		return errors.New("store down")
	}
	d.configs[cfg.Game] = *cfg
	return nil
}

func (d *memDB) CreateWalletRequest(req *models.WalletRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	copied := *req
	d.wallets[req.ID] = &copied
	return nil
}

func (d *memDB) GetWalletRequest(id string) (*models.WalletRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	req, ok := d.wallets[id]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	copied := *req
	return &copied, nil
}

func (d *memDB) ResolveWalletRequest(id string, status models.WalletRequestStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	req, ok := d.wallets[id]
	if !ok {
		return persistence.ErrRecordNotFound
	}
	req.Status = status
	return nil
}

func (d *memDB) PendingWalletRequests() ([]models.WalletRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.WalletRequest
	for _, req := range d.wallets {
		if req.Status == models.WalletPending {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (d *memDB) Close() error { return nil }

func (d *memDB) balance(userID int64) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users[userID].Balance
}

var defaults = config.GamesConfig{MinBet: 100, MaxBet: 10000000}

func TestConfigServiceSeedsDefaults(t *testing.T) {
	db := newMemDB()
	svc, err := NewConfigService(db, defaults)
	if err != nil {
		t.Fatalf("NewConfigService failed: %v", err)
	}

	for _, game := range models.AllGames {
		cfg, err := svc.Game(game)
		if err != nil {
			t.Fatalf("Expected a seeded config for %s, got %v", game, err)
		}
		if !cfg.Enabled || cfg.MinBet != 100 || cfg.MaxBet != 10000000 {
			t.Errorf("Unexpected seeded config for %s: %+v", game, cfg)
		}
	}
	if len(db.configs) != len(models.AllGames) {
		t.Errorf("Expected seeded configs persisted, got %d", len(db.configs))
	}
}

func TestConfigServiceKeepsStoredValues(t *testing.T) {
	db := newMemDB()
	db.configs[models.GameDice] = models.GameConfig{Game: models.GameDice, Enabled: false, MinBet: 500, MaxBet: 5000}

	svc, err := NewConfigService(db, defaults)
	if err != nil {
		t.Fatalf("NewConfigService failed: %v", err)
	}

	cfg, _ := svc.Game(models.GameDice)
	if cfg.Enabled || cfg.MinBet != 500 {
		t.Errorf("Expected the stored config to win over defaults, got %+v", cfg)
	}
}

func TestConfigServiceUpdate(t *testing.T) {
	db := newMemDB()
	svc, _ := NewConfigService(db, defaults)

	update := models.GameConfig{Game: models.GameLimbo, Enabled: false, MinBet: 200, MaxBet: 20000}
	if err := svc.Update(update); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	cfg, _ := svc.Game(models.GameLimbo)
	if cfg.Enabled || cfg.MinBet != 200 {
		t.Errorf("Expected the update visible in the cache, got %+v", cfg)
	}

	if err := svc.Update(models.GameConfig{Game: "baccarat", Enabled: true, MinBet: 100, MaxBet: 1000}); err == nil {
		t.Error("Expected an unknown game to be rejected")
	}
	if err := svc.Update(models.GameConfig{Game: models.GameDice, MinBet: 1000, MaxBet: 100}); err == nil {
		t.Error("Expected inverted bounds to be rejected")
	}
}

func TestDepositCreditsOnApproval(t *testing.T) {
	db := newMemDB()
	db.CreateUser(&models.User{UserID: 1, Balance: 0})
	svc := NewWalletService(db, ledger.New(db, nil))

	req, err := svc.RequestDeposit(1, 50000)
	if err != nil {
		t.Fatalf("RequestDeposit failed: %v", err)
	}
	if db.balance(1) != 0 {
		t.Error("Expected no credit before approval")
	}

	if err := svc.Approve(req.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if db.balance(1) != 50000 {
		t.Errorf("Expected balance 50000 after approval, got %d", db.balance(1))
	}

	if err := svc.Approve(req.ID); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("Expected ErrAlreadyResolved on a second approval, got %v", err)
	}
	if db.balance(1) != 50000 {
		t.Error("A repeated approval must not credit twice")
	}
}

func TestWithdrawReservesUpFront(t *testing.T) {
	db := newMemDB()
	db.CreateUser(&models.User{UserID: 1, Balance: 10000})
	svc := NewWalletService(db, ledger.New(db, nil))

	req, err := svc.RequestWithdraw(1, 6000)
	if err != nil {
		t.Fatalf("RequestWithdraw failed: %v", err)
	}
	if db.balance(1) != 4000 {
		t.Errorf("Expected the amount reserved at creation, balance is %d", db.balance(1))
	}

	// The reserved amount is gone; a second withdrawal overdraws.
	if _, err := svc.RequestWithdraw(1, 6000); !errors.Is(err, persistence.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}

	if err := svc.Approve(req.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if db.balance(1) != 4000 {
		t.Error("Approving a withdrawal must not move money again")
	}
}

func TestWithdrawRefundsOnRejection(t *testing.T) {
	db := newMemDB()
	db.CreateUser(&models.User{UserID: 1, Balance: 10000})
	svc := NewWalletService(db, ledger.New(db, nil))

	req, _ := svc.RequestWithdraw(1, 6000)
	if err := svc.Reject(req.ID); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if db.balance(1) != 10000 {
		t.Errorf("Expected the reservation refunded, balance is %d", db.balance(1))
	}

	got, _ := db.GetWalletRequest(req.ID)
	if got.Status != models.WalletRejected {
		t.Errorf("Expected status REJECTED, got %s", got.Status)
	}
}

func TestWalletRejectsBadAmounts(t *testing.T) {
	db := newMemDB()
	db.CreateUser(&models.User{UserID: 1, Balance: 10000})
	svc := NewWalletService(db, ledger.New(db, nil))

	if _, err := svc.RequestDeposit(1, 0); !errors.Is(err, ErrBadAmount) {
		t.Errorf("Expected ErrBadAmount, got %v", err)
	}
	if _, err := svc.RequestWithdraw(1, -5); !errors.Is(err, ErrBadAmount) {
		t.Errorf("Expected ErrBadAmount, got %v", err)
	}
}
