package games

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/winzone/casino-server/broadcast"
	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/ledger"
	"github.com/winzone/casino-server/logger"
	"github.com/winzone/casino-server/models"
	"github.com/winzone/casino-server/monitor"
	"github.com/winzone/casino-server/timer"
)

const minesGridSize = 25

var (
	ErrMinesActiveSession = errors.New("a mines round is already in progress")
	ErrMinesNoSession     = errors.New("no mines round in progress")
	ErrMinesBadTile       = errors.New("tile out of range")
	ErrMinesTileRevealed  = errors.New("tile already revealed")
	ErrMinesBadMineCount  = errors.New("mine count must be between 1 and 24")
)

// MinesSession is one in-flight mines round. The stake is debited at
// Start and the round stays open until the player busts, cashes out, or
// the disconnect grace period expires.
type MinesSession struct {
	BetID      string
	UserID     int64
	Stake      int64
	MineCount  int
	ClientSeed string
	SeedHash   string
	Nonce      int64

	mines    map[int]bool
	revealed map[int]bool

	// Product of tilesRemaining/safeRemaining over every reveal so far.
	// The house edge is applied once, at payout.
	fairProduct float64

	graceTimer int64 // 0 when no auto-cashout is pending
	startedAt  time.Time
}

func (s *MinesSession) reveals() int { return len(s.revealed) }

// MultiplierX100 is the cashout multiplier at the current position.
// 1.00x until the first safe reveal.
func (s *MinesSession) MultiplierX100() int64 {
	if s.reveals() == 0 {
		return 100
	}
	return int64(math.Floor(99.0 * s.fairProduct))
}

func (s *MinesSession) revealedTiles() []int {
	tiles := make([]int, 0, len(s.revealed))
	for t := range s.revealed {
		tiles = append(tiles, t)
	}
	return tiles
}

func (s *MinesSession) mineTiles() []int {
	tiles := make([]int, 0, len(s.mines))
	for t := range s.mines {
		tiles = append(tiles, t)
	}
	return tiles
}

// MinesState is the snapshot sent to the player after every action.
// Mines is only populated once the round is over.
type MinesState struct {
	BetID          string `json:"bet_id"`
	Stake          int64  `json:"stake"`
	MineCount      int    `json:"mine_count"`
	Revealed       []int  `json:"revealed"`
	MultiplierX100 int64  `json:"multiplier_x100"`
	Over           bool   `json:"over"`
	Won            bool   `json:"won"`
	Payout         int64  `json:"payout"`
	Mines          []int  `json:"mines,omitempty"`
	Balance        int64  `json:"balance"`
	ServerSeedHash string `json:"server_seed_hash"`
	Nonce          int64  `json:"nonce"`
}

// MinesManager owns all live mines sessions, keyed by user. One session
// per user; the session survives a disconnect for the grace period and
// is then auto-cashed-out at its current multiplier.
type MinesManager struct {
	mu       sync.Mutex
	sessions map[int64]*MinesSession

	ledger  *ledger.Ledger
	fair    *fair.Provider
	store   BetStore
	configs ConfigSource
	feed    *broadcast.Feed
	metrics *monitor.Monitor
	timers  *timer.TimerManager
	grace   time.Duration
}

func NewMinesManager(l *ledger.Ledger, p *fair.Provider, store BetStore, configs ConfigSource, feed *broadcast.Feed, metrics *monitor.Monitor, timers *timer.TimerManager, grace time.Duration) *MinesManager {
	return &MinesManager{
		sessions: make(map[int64]*MinesSession),
		ledger:   l,
		fair:     p,
		store:    store,
		configs:  configs,
		feed:     feed,
		metrics:  metrics,
		timers:   timers,
		grace:    grace,
	}
}

// Start debits the stake and opens a new session with mines placed by a
// fresh draw. The mine positions are fixed at this point and never
// re-drawn.
func (m *MinesManager) Start(userID, stake int64, mineCount int) (*MinesState, error) {
	if mineCount < 1 || mineCount > minesGridSize-1 {
		return nil, ErrMinesBadMineCount
	}

	user, err := m.store.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.Banned {
		return nil, ErrBanned
	}

	cfg, err := m.configs.Game(models.GameMines)
	if err != nil {
		return nil, fmt.Errorf("load game config: %w", err)
	}
	if !cfg.Enabled {
		return nil, ErrGameDisabled
	}
	if stake < cfg.MinBet || stake > cfg.MaxBet {
		return nil, fmt.Errorf("%w: stake %d not in [%d, %d]", ErrBetBounds, stake, cfg.MinBet, cfg.MaxBet)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[userID]; exists {
		return nil, ErrMinesActiveSession
	}

	nonce, err := m.store.NextNonce(userID)
	if err != nil {
		return nil, fmt.Errorf("advance nonce: %w", err)
	}

	betID := uuid.New().String()
	commit := m.fair.Commit()
	seedHash := commit.Hash()

	balance, err := m.ledger.Apply(userID, -stake, "bet:"+betID)
	if err != nil {
		return nil, err
	}

	bet := &models.Bet{
		ID:             betID,
		UserID:         userID,
		Game:           models.GameMines,
		Stake:          stake,
		Params:         fmt.Sprintf(`{"mine_count":%d}`, mineCount),
		Status:         models.BetPending,
		ClientSeed:     user.ClientSeed,
		ServerSeedHash: seedHash,
		Nonce:          nonce,
		CreatedAt:      time.Now(),
	}
	if err := m.store.CreateBet(bet); err != nil {
		m.refund(userID, stake, betID)
		return nil, fmt.Errorf("record bet: %w", err)
	}

	draw := commit.Draw(models.GameMines, user.ClientSeed, nonce)
	mines := make(map[int]bool, mineCount)
	for _, tile := range draw.Picks(mineCount, minesGridSize) {
		mines[tile] = true
	}

	session := &MinesSession{
		BetID:       betID,
		UserID:      userID,
		Stake:       stake,
		MineCount:   mineCount,
		ClientSeed:  user.ClientSeed,
		SeedHash:    seedHash,
		Nonce:       nonce,
		mines:       mines,
		revealed:    make(map[int]bool),
		fairProduct: 1.0,
		startedAt:   time.Now(),
	}
	m.sessions[userID] = session

	return m.stateLocked(session, false, balance), nil
}

// Reveal opens one tile. A mine ends the round as a loss; a safe tile
// grows the cashout multiplier. Revealing every safe tile cashes out
// automatically.
func (m *MinesManager) Reveal(userID int64, tile int) (*MinesState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[userID]
	if !ok {
		return nil, ErrMinesNoSession
	}
	if tile < 0 || tile >= minesGridSize {
		return nil, ErrMinesBadTile
	}
	if session.revealed[tile] {
		return nil, ErrMinesTileRevealed
	}

	if session.mines[tile] {
		return m.bustLocked(session, tile)
	}

	tilesRemaining := minesGridSize - session.reveals()
	safeRemaining := tilesRemaining - session.MineCount
	session.fairProduct *= float64(tilesRemaining) / float64(safeRemaining)
	session.revealed[tile] = true

	// Every safe tile open: nothing left to pick, settle at the max.
	if session.reveals() == minesGridSize-session.MineCount {
		return m.cashoutLocked(session)
	}

	balance, err := m.ledger.Balance(userID)
	if err != nil {
		balance = 0
	}
	return m.stateLocked(session, false, balance), nil
}

// Cashout settles the round at the current multiplier. Cashing out
// before any reveal returns exactly the stake.
func (m *MinesManager) Cashout(userID int64) (*MinesState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[userID]
	if !ok {
		return nil, ErrMinesNoSession
	}
	return m.cashoutLocked(session)
}

// HandleDisconnect starts the auto-cashout clock for a live session.
func (m *MinesManager) HandleDisconnect(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[userID]
	if !ok || session.graceTimer != 0 {
		return
	}
	session.graceTimer = m.timers.AddTimer(m.grace, 0, func() {
		m.autoCashout(userID)
	})
}

// HandleReconnect cancels a pending auto-cashout and returns the live
// session state for the client to resume from, or nil when the user has
// no open round.
func (m *MinesManager) HandleReconnect(userID int64) *MinesState {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[userID]
	if !ok {
		return nil
	}
	if session.graceTimer != 0 {
		m.timers.RemoveTimer(session.graceTimer)
		session.graceTimer = 0
	}

	balance, err := m.ledger.Balance(userID)
	if err != nil {
		balance = 0
	}
	return m.stateLocked(session, false, balance)
}

// Active reports whether the user has an open mines round.
func (m *MinesManager) Active(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	return ok
}

func (m *MinesManager) autoCashout(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[userID]
	if !ok {
		return
	}
	if _, err := m.cashoutLocked(session); err != nil {
		logger.Log.Errorf("Auto cashout failed for user %d: %v", userID, err)
	}
}

func (m *MinesManager) cashoutLocked(session *MinesSession) (*MinesState, error) {
	mult := session.MultiplierX100()
	payout := session.Stake * mult / 100

	balance, err := m.ledger.Apply(session.UserID, payout, "payout:"+session.BetID)
	if err != nil {
		return nil, fmt.Errorf("credit payout: %w", err)
	}

	m.finishLocked(session, true, payout, mult)
	st := m.stateLocked(session, true, balance)
	st.Won = true
	st.Payout = payout
	return st, nil
}

func (m *MinesManager) bustLocked(session *MinesSession, tile int) (*MinesState, error) {
	session.revealed[tile] = true

	m.finishLocked(session, false, 0, 0)

	balance, err := m.ledger.Balance(session.UserID)
	if err != nil {
		balance = 0
	}
	st := m.stateLocked(session, true, balance)
	st.MultiplierX100 = 0
	return st, nil
}

// finishLocked closes the session: finalizes the bet record, emits
// metrics and the feed event, and drops the session from the table.
func (m *MinesManager) finishLocked(session *MinesSession, won bool, payout, mult int64) {
	if session.graceTimer != 0 {
		m.timers.RemoveTimer(session.graceTimer)
		session.graceTimer = 0
	}
	delete(m.sessions, session.UserID)

	bet := &models.Bet{
		ID:             session.BetID,
		UserID:         session.UserID,
		Game:           models.GameMines,
		Stake:          session.Stake,
		Outcome:        fmt.Sprintf("revealed %d of %d safe tiles", session.reveals(), minesGridSize-session.MineCount),
		Won:            won,
		Payout:         payout,
		MultiplierX100: mult,
		SettledAt:      time.Now(),
	}
	if won {
		bet.Status = models.BetWon
	} else {
		bet.Status = models.BetLost
		bet.Outcome = fmt.Sprintf("hit a mine after %d safe tiles", session.reveals()-1)
	}
	if err := m.store.FinalizeBet(bet); err != nil {
		logger.Log.Errorf("Failed to finalize mines bet %s: %v", session.BetID, err)
	}

	if m.metrics != nil {
		m.metrics.ObserveSettlement(models.GameMines, session.Stake, payout, time.Since(session.startedAt))
	}
	if m.feed != nil {
		m.feed.Publish(&broadcast.FeedEvent{
			Game:           models.GameMines,
			Stake:          session.Stake,
			Won:            won,
			Payout:         payout,
			MultiplierX100: mult,
		})
	}
}

func (m *MinesManager) stateLocked(session *MinesSession, over bool, balance int64) *MinesState {
	st := &MinesState{
		BetID:          session.BetID,
		Stake:          session.Stake,
		MineCount:      session.MineCount,
		Revealed:       session.revealedTiles(),
		MultiplierX100: session.MultiplierX100(),
		Over:           over,
		Balance:        balance,
		ServerSeedHash: session.SeedHash,
		Nonce:          session.Nonce,
	}
	if over {
		st.Mines = session.mineTiles()
	}
	return st
}

func (m *MinesManager) refund(userID, stake int64, betID string) {
	if _, err := m.ledger.Apply(userID, stake, "refund:"+betID); err != nil {
		logger.Log.Errorf("CRITICAL: failed to refund stake for bet %s: %v", betID, err)
	}
}
