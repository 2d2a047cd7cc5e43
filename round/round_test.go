package round

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/games"
	"github.com/winzone/casino-server/ledger"
	"github.com/winzone/casino-server/logger"
	"github.com/winzone/casino-server/models"
	"github.com/winzone/casino-server/persistence"
)

func init() {
	logger.Init()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// roundStore backs the ledger and the scheduler in tests.
type roundStore struct {
	mu      sync.Mutex
	users   map[int64]*models.User
	bets    map[string]*models.Bet
	rounds  []*models.RoundRecord
	entries []*models.LedgerEntry
}

func newRoundStore() *roundStore {
	return &roundStore{
		users: make(map[int64]*models.User),
		bets:  make(map[string]*models.Bet),
	}
}

func (s *roundStore) addUser(userID, balance int64) {
	s.users[userID] = &models.User{UserID: userID, Balance: balance}
}

func (s *roundStore) GetUser(userID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *roundStore) AdjustBalance(userID int64, delta int64) (int64, error) {
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

func (s *roundStore) SaveLedgerEntry(entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *roundStore) CreateBet(bet *models.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *bet
	s.bets[bet.ID] = &copied
	return nil
}

func (s *roundStore) FinalizeBet(bet *models.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *bet
	s.bets[bet.ID] = &copied
	return nil
}

func (s *roundStore) SaveRound(rec *models.RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds = append(s.rounds, rec)
	return nil
}

func (s *roundStore) balance(userID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID].Balance
}

func (s *roundStore) dropUser(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}

type allEnabled struct{}

func (allEnabled) Game(name string) (models.GameConfig, error) {
	return models.GameConfig{Game: name, Enabled: true, MinBet: 100, MaxBet: 10000000}, nil
}

const roundTestSeed = "round-test-seed"

func newTestScheduler(t *testing.T, resolver Resolver, store *roundStore, clock *fakeClock) *Scheduler {
	t.Helper()
	l := ledger.New(store, nil)
	return NewScheduler(resolver, l, fair.NewProviderWithSeed(roundTestSeed), store, allEnabled{}, nil, nil, nil, clock, 20*time.Second, 3*time.Second)
}

// runCycle pushes the scheduler through lock, settle and the reopen of
// the next round.
func runCycle(s *Scheduler, clock *fakeClock) {
	clock.Advance(21 * time.Second)
	s.Update() // betting -> locked
	clock.Advance(4 * time.Second)
	s.Update() // locked -> settling
	s.Update() // settle + reopen
}

func TestRoundLifecycle(t *testing.T) {
	store := newRoundStore()
	store.addUser(1, 100000)
	clock := newFakeClock()
	s := newTestScheduler(t, NewIPLToss(), store, clock)

	firstRound := s.Snapshot().RoundID
	if s.Phase() != "betting" {
		t.Fatalf("Expected a fresh scheduler in betting, got %s", s.Phase())
	}

	ack, err := s.PlaceBet(1, 1000, json.RawMessage(`{"call":"heads"}`))
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	if ack.RoundID != firstRound || ack.Balance != 99000 {
		t.Errorf("Unexpected ack: %+v", ack)
	}

	clock.Advance(21 * time.Second)
	s.Update()
	if s.Phase() != "locked" {
		t.Fatalf("Expected locked after the betting window, got %s", s.Phase())
	}

	if _, err := s.PlaceBet(1, 1000, json.RawMessage(`{"call":"heads"}`)); !errors.Is(err, ErrBetsClosed) {
		t.Errorf("Expected ErrBetsClosed in the locked phase, got %v", err)
	}
	if store.balance(1) != 99000 {
		t.Error("A rejected locked-phase bet must not move money")
	}

	clock.Advance(4 * time.Second)
	s.Update()
	s.Update()
	if s.Phase() != "betting" {
		t.Fatalf("Expected a new betting phase after settlement, got %s", s.Phase())
	}
	if s.Snapshot().RoundID == firstRound {
		t.Error("Expected a fresh round ID after settlement")
	}

	// Replay the shared draw to know the outcome.
	outcome := NewIPLToss().Resolve(fair.NewDraw(roundTestSeed, models.GameIPL, firstRound, 1))
	wantBalance := int64(99000)
	if outcome == games.SideHeads {
		wantBalance += 1980
	}
	if store.balance(1) != wantBalance {
		t.Errorf("Expected balance %d after settlement, got %d", wantBalance, store.balance(1))
	}

	bet := store.bets[ack.BetID]
	if bet == nil || bet.Status == models.BetPending {
		t.Fatal("Expected the bet finalized at settlement")
	}
	if bet.Won != (outcome == games.SideHeads) {
		t.Error("Persisted bet disagrees with the drawn outcome")
	}

	if len(store.rounds) != 1 {
		t.Fatalf("Expected one saved round, got %d", len(store.rounds))
	}
	rec := store.rounds[0]
	if rec.ID != firstRound || rec.Outcome != outcome || rec.BetCount != 1 || rec.TotalStaked != 1000 {
		t.Errorf("Unexpected round record: %+v", rec)
	}
}

func TestRotationDoesNotChangeOpenRoundOutcome(t *testing.T) {
	store := newRoundStore()
	store.addUser(1, 100000)
	clock := newFakeClock()
	provider := fair.NewProviderWithSeed(roundTestSeed)
	s := NewScheduler(NewIPLToss(), ledger.New(store, nil), provider, store, allEnabled{}, nil, nil, nil, clock, 20*time.Second, 3*time.Second)

	snap := s.Snapshot()
	if snap.ServerSeedHash != fair.HashSeed(roundTestSeed) {
		t.Fatal("Open round must publish the committed seed's hash")
	}

	ack, err := s.PlaceBet(1, 1000, json.RawMessage(`{"call":"heads"}`))
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}

	// Admin rotation lands while the round is still open.
	provider.Rotate()
	runCycle(s, clock)

	if len(store.rounds) != 1 {
		t.Fatalf("Expected one saved round, got %d", len(store.rounds))
	}
	rec := store.rounds[0]
	want := NewIPLToss().Resolve(fair.NewDraw(roundTestSeed, models.GameIPL, snap.RoundID, 1))
	if rec.Outcome != want {
		t.Errorf("Outcome %s does not replay from the seed the round committed to", rec.Outcome)
	}
	if rec.ServerSeedHash != fair.HashSeed(roundTestSeed) {
		t.Error("Round record must carry the committed seed's hash")
	}
	if store.bets[ack.BetID].ServerSeedHash != fair.HashSeed(roundTestSeed) {
		t.Error("Bet must carry the committed seed's hash")
	}
}

func TestExpiredDeadlineRejectsBets(t *testing.T) {
	store := newRoundStore()
	store.addUser(1, 100000)
	clock := newFakeClock()
	s := newTestScheduler(t, NewIPLToss(), store, clock)

	clock.Advance(21 * time.Second)
	// No tick has run, so the phase still reads betting.
	if s.Phase() != "betting" {
		t.Fatalf("Expected betting before the next tick, got %s", s.Phase())
	}
	if _, err := s.PlaceBet(1, 1000, json.RawMessage(`{"call":"heads"}`)); !errors.Is(err, ErrBetsClosed) {
		t.Fatalf("Expected ErrBetsClosed after the deadline, got %v", err)
	}
	if store.balance(1) != 100000 {
		t.Error("A late bet must not move money")
	}
}

func TestOneBetPerRound(t *testing.T) {
	store := newRoundStore()
	store.addUser(1, 100000)
	clock := newFakeClock()
	s := newTestScheduler(t, NewIPLToss(), store, clock)

	if _, err := s.PlaceBet(1, 1000, json.RawMessage(`{"call":"heads"}`)); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	if _, err := s.PlaceBet(1, 1000, json.RawMessage(`{"call":"tails"}`)); !errors.Is(err, ErrAlreadyBet) {
		t.Fatalf("Expected ErrAlreadyBet, got %v", err)
	}
	if store.balance(1) != 99000 {
		t.Errorf("Expected a single debit, balance is %d", store.balance(1))
	}
}

func TestSettlementFailureIsolation(t *testing.T) {
	store := newRoundStore()
	store.addUser(1, 100000)
	store.addUser(2, 100000)
	clock := newFakeClock()
	s := newTestScheduler(t, NewIPLToss(), store, clock)

	roundID := s.Snapshot().RoundID
	outcome := NewIPLToss().Resolve(fair.NewDraw(roundTestSeed, models.GameIPL, roundID, 1))

	// Both users back the winning side, then user 2 vanishes so the
	// payout credit fails.
	pick, _ := json.Marshal(map[string]string{"call": outcome})
	if _, err := s.PlaceBet(1, 1000, pick); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	if _, err := s.PlaceBet(2, 1000, pick); err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}
	store.dropUser(2)

	runCycle(s, clock)

	if store.balance(1) != 100000-1000+1980 {
		t.Errorf("Expected user 1 paid despite user 2 failing, balance is %d", store.balance(1))
	}
	if len(store.rounds) != 1 {
		t.Fatalf("Expected the round saved, got %d records", len(store.rounds))
	}
}

func TestHistoryBounded(t *testing.T) {
	store := newRoundStore()
	clock := newFakeClock()
	s := newTestScheduler(t, NewTripleNumber(), store, clock)

	for i := 0; i < historySize+5; i++ {
		runCycle(s, clock)
	}

	history := s.Snapshot().History
	if len(history) != historySize {
		t.Fatalf("Expected history capped at %d, got %d", historySize, len(history))
	}
	if len(store.rounds) != historySize+5 {
		t.Errorf("Expected every round persisted, got %d", len(store.rounds))
	}
	// Most recent round last.
	if history[historySize-1].ID != store.rounds[len(store.rounds)-1].ID {
		t.Error("Expected history ordered oldest to newest")
	}
}

func TestTripleNumberPayouts(t *testing.T) {
	r := NewTripleNumber()
	cases := []struct {
		pick    string
		outcome string
		want    int64
	}{
		{"3", "3-7-3", 300},
		{"7", "3-7-3", 200},
		{"5", "3-7-3", 0},
		{"4", "4-4-4", 400},
		{"0", "9-1-2", 0},
	}
	for _, c := range cases {
		if got := r.PayoutX100(c.pick, c.outcome); got != c.want {
			t.Errorf("Pick %s on %s: expected %d, got %d", c.pick, c.outcome, c.want, got)
		}
	}
}

func TestTripleNumberParsePick(t *testing.T) {
	r := NewTripleNumber()
	for _, n := range []int{-1, 10, 42} {
		raw, _ := json.Marshal(map[string]int{"number": n})
		if _, err := r.ParsePick(raw); !errors.Is(err, games.ErrInvalidParams) {
			t.Errorf("Expected ErrInvalidParams for number %d, got %v", n, err)
		}
	}
	pick, err := r.ParsePick(json.RawMessage(`{"number":7}`))
	if err != nil || pick != "7" {
		t.Errorf("Expected pick 7, got %q (%v)", pick, err)
	}
}

func TestIPLTossPayout(t *testing.T) {
	r := NewIPLToss()
	if got := r.PayoutX100(games.SideHeads, games.SideHeads); got != 198 {
		t.Errorf("Expected 198 on a correct call, got %d", got)
	}
	if got := r.PayoutX100(games.SideHeads, games.SideTails); got != 0 {
		t.Errorf("Expected 0 on a wrong call, got %d", got)
	}
}
