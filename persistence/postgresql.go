// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/winzone/casino-server/models"
)

// PostgreSQL is the database/sql implementation of Database. It shares
// the schema with the GORM implementation.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            user_id BIGINT UNIQUE NOT NULL,
            name VARCHAR(255) NOT NULL,
            balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
            banned BOOLEAN NOT NULL DEFAULT FALSE,
            role VARCHAR(50) NOT NULL DEFAULT 'player',
            client_seed VARCHAR(64) NOT NULL,
            nonce BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS bets (
            bet_id VARCHAR(64) PRIMARY KEY,
            user_id BIGINT NOT NULL,
            game VARCHAR(32) NOT NULL,
            stake BIGINT NOT NULL,
            params JSONB,
            outcome TEXT,
            won BOOLEAN DEFAULT FALSE,
            payout BIGINT DEFAULT 0,
            multiplier_x100 BIGINT DEFAULT 0,
            status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
            client_seed VARCHAR(64),
            server_seed_hash VARCHAR(64),
            server_seed VARCHAR(64),
            nonce BIGINT,
            round_id VARCHAR(64),
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            settled_at TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS rounds (
            round_id VARCHAR(64) PRIMARY KEY,
            game VARCHAR(32) NOT NULL,
            outcome TEXT NOT NULL,
            server_seed_hash VARCHAR(64),
            bet_count INT DEFAULT 0,
            total_staked BIGINT DEFAULT 0,
            total_paid BIGINT DEFAULT 0,
            settled_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS game_configs (
            id SERIAL PRIMARY KEY,
            game VARCHAR(32) UNIQUE NOT NULL,
            enabled BOOLEAN NOT NULL DEFAULT TRUE,
            min_bet BIGINT NOT NULL,
            max_bet BIGINT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS wallet_requests (
            request_id VARCHAR(64) PRIMARY KEY,
            user_id BIGINT NOT NULL,
            type VARCHAR(16) NOT NULL,
            amount BIGINT NOT NULL,
            status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            resolved_at TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS ledger_entries (
            id SERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL,
            delta BIGINT NOT NULL,
            balance BIGINT NOT NULL,
            reason TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE INDEX IF NOT EXISTS idx_bets_user_id ON bets(user_id);
        CREATE INDEX IF NOT EXISTS idx_bets_seed_hash ON bets(server_seed_hash);
        CREATE INDEX IF NOT EXISTS idx_rounds_game ON rounds(game, settled_at);
        CREATE INDEX IF NOT EXISTS idx_wallet_requests_status ON wallet_requests(status);
        CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_id ON ledger_entries(user_id);
    `)

	return err
}

func ctx5s() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *PostgreSQL) GetUser(userID int64) (*models.User, error) {
	ctx, cancel := ctx5s()
	defer cancel()

	var user models.User
	query := `SELECT user_id, name, balance, banned, role, client_seed, nonce, created_at, updated_at
              FROM users WHERE user_id = $1`
	err := p.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID, &user.Name, &user.Balance, &user.Banned,
		&user.Role, &user.ClientSeed, &user.Nonce,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (p *PostgreSQL) CreateUser(user *models.User) error {
	ctx, cancel := ctx5s()
	defer cancel()

	query := `INSERT INTO users (user_id, name, balance, banned, role, client_seed, nonce)
              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := p.db.ExecContext(ctx, query,
		user.UserID, user.Name, user.Balance, user.Banned,
		user.Role, user.ClientSeed, user.Nonce)
	return err
}

func (p *PostgreSQL) SetBanned(userID int64, banned bool) error {
	ctx, cancel := ctx5s()
	defer cancel()

	res, err := p.db.ExecContext(ctx,
		`UPDATE users SET banned = $1, updated_at = CURRENT_TIMESTAMP WHERE user_id = $2`,
		banned, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// AdjustBalance performs the conditional update and read-back in one
// statement via RETURNING, so no separate read can race it.
func (p *PostgreSQL) AdjustBalance(userID int64, delta int64) (int64, error) {
	ctx, cancel := ctx5s()
	defer cancel()

	var balance int64
	query := `UPDATE users SET balance = balance + $1, updated_at = CURRENT_TIMESTAMP
              WHERE user_id = $2 AND balance + $1 >= 0
              RETURNING balance`
	err := p.db.QueryRowContext(ctx, query, delta, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
			return 0, err
		}
		if !exists {
			return 0, ErrRecordNotFound
		}
		return 0, ErrInsufficientFunds
	}
	return balance, err
}

func (p *PostgreSQL) NextNonce(userID int64) (int64, error) {
	ctx, cancel := ctx5s()
	defer cancel()

	var nonce int64
	err := p.db.QueryRowContext(ctx,
		`UPDATE users SET nonce = nonce + 1 WHERE user_id = $1 RETURNING nonce`,
		userID).Scan(&nonce)
	if err == sql.ErrNoRows {
		return 0, ErrRecordNotFound
	}
	return nonce, err
}

func (p *PostgreSQL) SaveLedgerEntry(entry *models.LedgerEntry) error {
	ctx, cancel := ctx5s()
	defer cancel()

	_, err := p.db.ExecContext(ctx,
		`INSERT INTO ledger_entries (user_id, delta, balance, reason, created_at)
         VALUES ($1, $2, $3, $4, $5)`,
		entry.UserID, entry.Delta, entry.Balance, entry.Reason, entry.CreatedAt)
	return err
}

func (p *PostgreSQL) CreateBet(bet *models.Bet) error {
	ctx, cancel := ctx5s()
	defer cancel()

	query := `INSERT INTO bets
              (bet_id, user_id, game, stake, params, status, client_seed, server_seed_hash, nonce, round_id, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := p.db.ExecContext(ctx, query,
		bet.ID, bet.UserID, bet.Game, bet.Stake, bet.Params,
		string(bet.Status), bet.ClientSeed, bet.ServerSeedHash,
		bet.Nonce, bet.RoundID, bet.CreatedAt)
	return err
}

func (p *PostgreSQL) FinalizeBet(bet *models.Bet) error {
	ctx, cancel := ctx5s()
	defer cancel()

	query := `UPDATE bets
              SET outcome = $1, won = $2, payout = $3, multiplier_x100 = $4, status = $5, settled_at = $6
              WHERE bet_id = $7 AND status = 'PENDING'`
	res, err := p.db.ExecContext(ctx, query,
		bet.Outcome, bet.Won, bet.Payout, bet.MultiplierX100,
		string(bet.Status), bet.SettledAt, bet.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *PostgreSQL) BetsByUser(userID int64, limit int) ([]models.Bet, error) {
	ctx, cancel := ctx5s()
	defer cancel()

	query := `SELECT bet_id, user_id, game, stake, COALESCE(params, '{}'),
                     COALESCE(outcome, ''), won, payout, multiplier_x100, status,
                     COALESCE(client_seed, ''), COALESCE(server_seed_hash, ''),
                     COALESCE(server_seed, ''), nonce, COALESCE(round_id, ''),
                     created_at, COALESCE(settled_at, created_at)
              FROM bets WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := p.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []models.Bet
	for rows.Next() {
		var b models.Bet
		var status string
		if err := rows.Scan(&b.ID, &b.UserID, &b.Game, &b.Stake, &b.Params,
			&b.Outcome, &b.Won, &b.Payout, &b.MultiplierX100, &status,
			&b.ClientSeed, &b.ServerSeedHash, &b.ServerSeed, &b.Nonce,
			&b.RoundID, &b.CreatedAt, &b.SettledAt); err != nil {
			return nil, err
		}
		b.Status = models.BetStatus(status)
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

func (p *PostgreSQL) RevealServerSeed(seedHash, seed string) error {
	ctx, cancel := ctx5s()
	defer cancel()

	_, err := p.db.ExecContext(ctx,
		`UPDATE bets SET server_seed = $1 WHERE server_seed_hash = $2`,
		seed, seedHash)
	return err
}

func (p *PostgreSQL) SaveRound(round *models.RoundRecord) error {
	ctx, cancel := ctx5s()
	defer cancel()

	query := `INSERT INTO rounds
              (round_id, game, outcome, server_seed_hash, bet_count, total_staked, total_paid, settled_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := p.db.ExecContext(ctx, query,
		round.ID, round.Game, round.Outcome, round.ServerSeedHash,
		round.BetCount, round.TotalStaked, round.TotalPaid, round.SettledAt)
	return err
}

func (p *PostgreSQL) RecentRounds(game string, limit int) ([]models.RoundRecord, error) {
	ctx, cancel := ctx5s()
	defer cancel()

	query := `SELECT round_id, game, outcome, COALESCE(server_seed_hash, ''),
                     bet_count, total_staked, total_paid, settled_at
              FROM rounds WHERE game = $1 ORDER BY settled_at DESC LIMIT $2`
	rows, err := p.db.QueryContext(ctx, query, game, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []models.RoundRecord
	for rows.Next() {
		var r models.RoundRecord
		if err := rows.Scan(&r.ID, &r.Game, &r.Outcome, &r.ServerSeedHash,
			&r.BetCount, &r.TotalStaked, &r.TotalPaid, &r.SettledAt); err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

func (p *PostgreSQL) GameConfigs() ([]models.GameConfig, error) {
	ctx, cancel := ctx5s()
	defer cancel()

	rows, err := p.db.QueryContext(ctx,
		`SELECT game, enabled, min_bet, max_bet FROM game_configs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []models.GameConfig
	for rows.Next() {
		var c models.GameConfig
		if err := rows.Scan(&c.Game, &c.Enabled, &c.MinBet, &c.MaxBet); err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

func (p *PostgreSQL) SaveGameConfig(cfg *models.GameConfig) error {
	ctx, cancel := ctx5s()
	defer cancel()

	query := `INSERT INTO game_configs (game, enabled, min_bet, max_bet)
              VALUES ($1, $2, $3, $4)
              ON CONFLICT (game)
              DO UPDATE SET enabled = $2, min_bet = $3, max_bet = $4, updated_at = CURRENT_TIMESTAMP`
	_, err := p.db.ExecContext(ctx, query, cfg.Game, cfg.Enabled, cfg.MinBet, cfg.MaxBet)
	return err
}

func (p *PostgreSQL) CreateWalletRequest(req *models.WalletRequest) error {
	ctx, cancel := ctx5s()
	defer cancel()

	query := `INSERT INTO wallet_requests (request_id, user_id, type, amount, status, created_at)
              VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := p.db.ExecContext(ctx, query,
		req.ID, req.UserID, string(req.Type), req.Amount, string(req.Status), req.CreatedAt)
	return err
}

func (p *PostgreSQL) GetWalletRequest(id string) (*models.WalletRequest, error) {
	ctx, cancel := ctx5s()
	defer cancel()

	var req models.WalletRequest
	var reqType, status string
	query := `SELECT request_id, user_id, type, amount, status, created_at, COALESCE(resolved_at, created_at)
              FROM wallet_requests WHERE request_id = $1`
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID, &req.UserID, &reqType, &req.Amount, &status,
		&req.CreatedAt, &req.ResolvedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	req.Type = models.WalletRequestType(reqType)
	req.Status = models.WalletRequestStatus(status)
	return &req, nil
}

func (p *PostgreSQL) ResolveWalletRequest(id string, status models.WalletRequestStatus) error {
	ctx, cancel := ctx5s()
	defer cancel()

	res, err := p.db.ExecContext(ctx,
		`UPDATE wallet_requests SET status = $1, resolved_at = CURRENT_TIMESTAMP
         WHERE request_id = $2 AND status = 'PENDING'`,
		string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *PostgreSQL) PendingWalletRequests() ([]models.WalletRequest, error) {
	ctx, cancel := ctx5s()
	defer cancel()

	query := `SELECT request_id, user_id, type, amount, status, created_at, COALESCE(resolved_at, created_at)
              FROM wallet_requests WHERE status = 'PENDING' ORDER BY created_at ASC`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []models.WalletRequest
	for rows.Next() {
		var req models.WalletRequest
		var reqType, status string
		if err := rows.Scan(&req.ID, &req.UserID, &reqType, &req.Amount,
			&status, &req.CreatedAt, &req.ResolvedAt); err != nil {
			return nil, err
		}
		req.Type = models.WalletRequestType(reqType)
		req.Status = models.WalletRequestStatus(status)
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
