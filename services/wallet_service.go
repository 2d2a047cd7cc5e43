// services/wallet_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/winzone/casino-server/ledger"
	"github.com/winzone/casino-server/models"
	"github.com/winzone/casino-server/persistence"
)

var (
	ErrBadAmount       = errors.New("amount must be positive")
	ErrAlreadyResolved = errors.New("wallet request already resolved")
)

// WalletService runs the deposit/withdraw approval flow. Deposits credit
// on approval. Withdrawals debit up front so the amount cannot be
// wagered while the request is pending, and refund on rejection.
type WalletService struct {
	db     persistence.Database
	ledger *ledger.Ledger
}

func NewWalletService(db persistence.Database, l *ledger.Ledger) *WalletService {
	return &WalletService{db: db, ledger: l}
}

// RequestDeposit records a pending deposit. No money moves until an
// admin approves it.
func (s *WalletService) RequestDeposit(userID, amount int64) (*models.WalletRequest, error) {
	if amount <= 0 {
		return nil, ErrBadAmount
	}
	if _, err := s.db.GetUser(userID); err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	req := &models.WalletRequest{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      models.WalletDeposit,
		Amount:    amount,
		Status:    models.WalletPending,
		CreatedAt: time.Now(),
	}
	if err := s.db.CreateWalletRequest(req); err != nil {
		return nil, fmt.Errorf("record deposit request: %w", err)
	}
	return req, nil
}

// RequestWithdraw reserves the amount immediately; an overdraft fails
// the request before it is recorded.
func (s *WalletService) RequestWithdraw(userID, amount int64) (*models.WalletRequest, error) {
	if amount <= 0 {
		return nil, ErrBadAmount
	}

	req := &models.WalletRequest{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      models.WalletWithdraw,
		Amount:    amount,
		Status:    models.WalletPending,
		CreatedAt: time.Now(),
	}

	if _, err := s.ledger.Apply(userID, -amount, "withdraw:"+req.ID); err != nil {
		return nil, err
	}
	if err := s.db.CreateWalletRequest(req); err != nil {
		if _, rerr := s.ledger.Apply(userID, amount, "withdraw-refund:"+req.ID); rerr != nil {
			return nil, fmt.Errorf("record withdraw request: %v (refund also failed: %w)", err, rerr)
		}
		return nil, fmt.Errorf("record withdraw request: %w", err)
	}
	return req, nil
}

// Approve finalizes a pending request. Approving a deposit credits the
// user; an approved withdrawal was already debited at creation.
func (s *WalletService) Approve(id string) error {
	req, err := s.pending(id)
	if err != nil {
		return err
	}

	if err := s.db.ResolveWalletRequest(id, models.WalletApproved); err != nil {
		return fmt.Errorf("resolve wallet request: %w", err)
	}

	if req.Type == models.WalletDeposit {
		if _, err := s.ledger.Apply(req.UserID, req.Amount, "deposit:"+id); err != nil {
			return fmt.Errorf("credit deposit: %w", err)
		}
	}
	return nil
}

// Reject closes a pending request. Rejecting a withdrawal refunds the
// reserved amount.
func (s *WalletService) Reject(id string) error {
	req, err := s.pending(id)
	if err != nil {
		return err
	}

	if err := s.db.ResolveWalletRequest(id, models.WalletRejected); err != nil {
		return fmt.Errorf("resolve wallet request: %w", err)
	}

	if req.Type == models.WalletWithdraw {
		if _, err := s.ledger.Apply(req.UserID, req.Amount, "withdraw-refund:"+id); err != nil {
			return fmt.Errorf("refund withdrawal: %w", err)
		}
	}
	return nil
}

// Pending lists every unresolved request, for the admin surface.
func (s *WalletService) Pending() ([]models.WalletRequest, error) {
	return s.db.PendingWalletRequests()
}

func (s *WalletService) pending(id string) (*models.WalletRequest, error) {
	req, err := s.db.GetWalletRequest(id)
	if err != nil {
		return nil, fmt.Errorf("load wallet request: %w", err)
	}
	if req.Status != models.WalletPending {
		return nil, ErrAlreadyResolved
	}
	return req, nil
}
