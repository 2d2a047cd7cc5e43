package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/winzone/casino-server/fair"
	"github.com/winzone/casino-server/logger"
	"github.com/winzone/casino-server/models"
)

// Admin REST surface. Intended to sit behind the operator's network
// boundary, like the RPC listener.
func (s *GameServer) registerAdminRoutes() {
	s.mux.HandleFunc("/admin/games", s.handleAdminGames)
	s.mux.HandleFunc("/admin/users", s.handleAdminCreateUser)
	s.mux.HandleFunc("/admin/user", s.handleAdminUser)
	s.mux.HandleFunc("/admin/ban", s.handleAdminBan)
	s.mux.HandleFunc("/admin/wallet/deposit", s.handleAdminDeposit)
	s.mux.HandleFunc("/admin/wallet/withdraw", s.handleAdminWithdraw)
	s.mux.HandleFunc("/admin/wallet/pending", s.handleAdminWalletPending)
	s.mux.HandleFunc("/admin/wallet/resolve", s.handleAdminWalletResolve)
	s.mux.HandleFunc("/admin/fair", s.handleAdminFair)
	s.mux.HandleFunc("/admin/fair/rotate", s.handleAdminFairRotate)
	s.mux.HandleFunc("/admin/rounds", s.handleAdminRounds)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *GameServer) handleAdminGames(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.configService.All())
	case http.MethodPost:
		var cfg models.GameConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := s.configService.Update(cfg); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type createUserRequest struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

func (s *GameServer) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user := &models.User{
		UserID:     req.UserID,
		Name:       req.Name,
		ClientSeed: fair.GenerateClientSeed(),
	}
	if err := s.db.CreateUser(user); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *GameServer) handleAdminUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := s.db.GetUser(userID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	bets, err := s.db.BetsByUser(userID, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": user,
		"bets": bets,
	})
}

type banRequest struct {
	UserID int64 `json:"user_id"`
	Banned bool  `json:"banned"`
}

func (s *GameServer) handleAdminBan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.db.SetBanned(req.UserID, req.Banned); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type walletRequest struct {
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount"`
}

func (s *GameServer) handleAdminDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req walletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := s.walletService.RequestDeposit(req.UserID, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *GameServer) handleAdminWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req walletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := s.walletService.RequestWithdraw(req.UserID, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *GameServer) handleAdminWalletPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pending, err := s.walletService.Pending()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

type walletResolveRequest struct {
	ID      string `json:"id"`
	Approve bool   `json:"approve"`
}

func (s *GameServer) handleAdminWalletResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req walletResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var err error
	if req.Approve {
		err = s.walletService.Approve(req.ID)
	} else {
		err = s.walletService.Reject(req.ID)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *GameServer) handleAdminFair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"server_seed_hash": s.fairAdmin.SeedHash(),
	})
}

// Rotation reveals the outgoing seed and back-fills it onto every bet
// that was committed under it, making those bets verifiable.
func (s *GameServer) handleAdminFairRotate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	revealed, newHash := s.fairAdmin.Rotate()
	if err := s.db.RevealServerSeed(fair.HashSeed(revealed), revealed); err != nil {
		logger.Log.Errorf("Failed to back-fill revealed seed: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"revealed_seed":    revealed,
		"server_seed_hash": newHash,
	})
}

func (s *GameServer) handleAdminRounds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	game := r.URL.Query().Get("game")
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	rounds, err := s.db.RecentRounds(game, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}
