package games

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/ledger"
	"github.com/winzone/casino-server/logger"
	"github.com/winzone/casino-server/models"
	"github.com/winzone/casino-server/persistence"
)

func init() {
	logger.Init()
}

// memGameStore backs both the ledger and the settler in tests. It keeps
// the store's conditional-update semantics: a debit below zero fails and
// changes nothing.
type memGameStore struct {
	mu         sync.Mutex
	users      map[int64]*models.User
	bets       map[string]*models.Bet
	entries    []*models.LedgerEntry
	failCreate bool
}

func newMemGameStore() *memGameStore {
	return &memGameStore{
		users: make(map[int64]*models.User),
		bets:  make(map[string]*models.Bet),
	}
}

func (s *memGameStore) addUser(userID, balance int64) {
	s.users[userID] = &models.User{
		UserID:     userID,
		Name:       "player",
		Balance:    balance,
		ClientSeed: "client-seed",
	}
}

func (s *memGameStore) GetUser(userID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memGameStore) AdjustBalance(userID int64, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, persistence.ErrRecordNotFound
	}
	if u.Balance+delta < 0 {
		return 0, persistence.ErrInsufficientFunds
	}
	u.Balance += delta
	return u.Balance, nil
}

func (s *memGameStore) SaveLedgerEntry(entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memGameStore) NextNonce(userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, persistence.ErrRecordNotFound
	}
	u.Nonce++
	return u.Nonce, nil
}

func (s *memGameStore) CreateBet(bet *models.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errors.New("store down")
	}
	copied := *bet
	s.bets[bet.ID] = &copied
	return nil
}

func (s *memGameStore) FinalizeBet(bet *models.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *bet
	s.bets[bet.ID] = &copied
	return nil
}

func (s *memGameStore) balance(userID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID].Balance
}

func (s *memGameStore) betCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bets)
}

// stubConfigs serves one config for every game.
type stubConfigs struct {
	cfg models.GameConfig
}

func (c *stubConfigs) Game(name string) (models.GameConfig, error) {
	cfg := c.cfg
	cfg.Game = name
	return cfg, nil
}

func newTestSettler(store *memGameStore, seed string) *Settler {
	l := ledger.New(store, nil)
	configs := &stubConfigs{cfg: models.GameConfig{Enabled: true, MinBet: 100, MaxBet: 10000000}}
	return NewSettler(l, fair.NewProviderWithSeed(seed), store, configs, nil, nil)
}

func TestPlaceBetSettlesAgainstDeterministicDraw(t *testing.T) {
	const seed = "test-server-seed"
	store := newMemGameStore()
	store.addUser(1, 100000)
	settler := newTestSettler(store, seed)

	res, err := settler.PlaceBet(1, models.GameDice, 1000, json.RawMessage(`{"target":50,"over":true}`))
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}

	// Replay the draw the settler must have used: nonce 1 for a fresh user.
	roll := fair.NewDraw(seed, models.GameDice, "client-seed", 1).Roll()
	wantWon := roll > 5000
	if res.Won != wantWon {
		t.Fatalf("Expected won=%v for roll %d, got %v", wantWon, roll, res.Won)
	}

	wantBalance := int64(100000 - 1000)
	if wantWon {
		wantBalance += 1980
	}
	if res.Balance != wantBalance {
		t.Errorf("Expected balance %d, got %d", wantBalance, res.Balance)
	}
	if store.balance(1) != wantBalance {
		t.Errorf("Expected stored balance %d, got %d", wantBalance, store.balance(1))
	}
	if res.Nonce != 1 {
		t.Errorf("Expected nonce 1 on the first bet, got %d", res.Nonce)
	}
	if res.ServerSeedHash != fair.HashSeed(seed) {
		t.Error("Result carries the wrong seed commitment")
	}

	bet := store.bets[res.BetID]
	if bet == nil {
		t.Fatal("Expected the bet to be persisted")
	}
	if bet.Status == models.BetPending {
		t.Error("Expected the bet to be finalized")
	}
	if bet.Won != wantWon {
		t.Error("Persisted bet disagrees with the result")
	}
}

func TestPlaceBetUnknownGame(t *testing.T) {
	store := newMemGameStore()
	store.addUser(1, 100000)
	settler := newTestSettler(store, "seed")

	_, err := settler.PlaceBet(1, "blackjack", 1000, nil)
	if !errors.Is(err, ErrUnknownGame) {
		t.Errorf("Expected ErrUnknownGame, got %v", err)
	}
	if store.balance(1) != 100000 {
		t.Error("Expected balance untouched on a rejected bet")
	}
}

func TestPlaceBetGameDisabled(t *testing.T) {
	store := newMemGameStore()
	store.addUser(1, 100000)
	l := ledger.New(store, nil)
	configs := &stubConfigs{cfg: models.GameConfig{Enabled: false, MinBet: 100, MaxBet: 10000000}}
	settler := NewSettler(l, fair.NewProviderWithSeed("seed"), store, configs, nil, nil)

	_, err := settler.PlaceBet(1, models.GameDice, 1000, json.RawMessage(`{"target":50,"over":true}`))
	if !errors.Is(err, ErrGameDisabled) {
		t.Errorf("Expected ErrGameDisabled, got %v", err)
	}
	if store.balance(1) != 100000 || store.betCount() != 0 {
		t.Error("Expected no side effects from a disabled game")
	}
}

func TestPlaceBetStakeBounds(t *testing.T) {
	store := newMemGameStore()
	store.addUser(1, 100000000)
	settler := newTestSettler(store, "seed")

	for _, stake := range []int64{99, 10000001} {
		_, err := settler.PlaceBet(1, models.GameDice, stake, json.RawMessage(`{"target":50,"over":true}`))
		if !errors.Is(err, ErrBetBounds) {
			t.Errorf("Expected ErrBetBounds for stake %d, got %v", stake, err)
		}
	}
	if store.balance(1) != 100000000 {
		t.Error("Expected balance untouched on out-of-bounds stakes")
	}
}

func TestPlaceBetBannedUser(t *testing.T) {
	store := newMemGameStore()
	store.addUser(1, 100000)
	store.users[1].Banned = true
	settler := newTestSettler(store, "seed")

	_, err := settler.PlaceBet(1, models.GameDice, 1000, json.RawMessage(`{"target":50,"over":true}`))
	if !errors.Is(err, ErrBanned) {
		t.Errorf("Expected ErrBanned, got %v", err)
	}
}

func TestPlaceBetInsufficientFunds(t *testing.T) {
	store := newMemGameStore()
	store.addUser(1, 500)
	settler := newTestSettler(store, "seed")

	_, err := settler.PlaceBet(1, models.GameDice, 1000, json.RawMessage(`{"target":50,"over":true}`))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}
	if store.balance(1) != 500 || store.betCount() != 0 {
		t.Error("Expected a failed debit to leave no trace")
	}
}

func TestPlaceBetRefundsWhenRecordingFails(t *testing.T) {
	store := newMemGameStore()
	store.addUser(1, 100000)
	store.failCreate = true
	settler := newTestSettler(store, "seed")

	_, err := settler.PlaceBet(1, models.GameDice, 1000, json.RawMessage(`{"target":50,"over":true}`))
	if err == nil {
		t.Fatal("Expected PlaceBet to fail when the bet cannot be recorded")
	}
	if store.balance(1) != 100000 {
		t.Errorf("Expected the stake refunded, balance is %d", store.balance(1))
	}
}

func TestPlaceBetInvalidParamsBeforeMoneyMoves(t *testing.T) {
	store := newMemGameStore()
	store.addUser(1, 100000)
	settler := newTestSettler(store, "seed")

	_, err := settler.PlaceBet(1, models.GameDice, 1000, json.RawMessage(`{"target":1,"over":true}`))
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}
	if store.balance(1) != 100000 {
		t.Error("Expected balance untouched on invalid params")
	}
	if store.users[1].Nonce != 0 {
		t.Error("Expected the nonce not to advance on a rejected bet")
	}
}
