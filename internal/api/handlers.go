package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mvisser/groupledger/internal/models"
	"github.com/mvisser/groupledger/internal/service"
)

type accountResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	SplitPolicy   string `json:"split_policy"`
	WalletAddress string `json:"wallet_address,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

func toAccountResponse(a *models.Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		Name:          a.Name,
		Description:   a.Description,
		SplitPolicy:   string(a.SplitPolicy),
		WalletAddress: a.WalletAddress,
		CreatedAt:     a.CreatedAt,
	}
}

type membershipResponse struct {
	AccountID string `json:"account_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Balance   string `json:"balance"`
	State     string `json:"state"`
	JoinedAt  int64  `json:"joined_at"`
}

func toMembershipResponse(m *models.Membership) membershipResponse {
	return membershipResponse{
		AccountID: m.AccountID,
		UserID:    m.UserID,
		Role:      string(m.Role),
		Balance:   models.FormatAmount(m.BalanceCents),
		State:     string(m.State),
		JoinedAt:  m.JoinedAt,
	}
}

type transactionResponse struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	FromUserID  string `json:"from_user_id"`
	ToUserID    string `json:"to_user_id,omitempty"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Token       string `json:"token"`
	Status      string `json:"status"`
	Description string `json:"description"`
	TxHash      string `json:"tx_hash,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

func toTransactionResponse(tx *models.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		AccountID:   tx.AccountID,
		FromUserID:  tx.FromUserID,
		ToUserID:    tx.ToUserID,
		Amount:      models.FormatAmount(tx.AmountCents),
		Kind:        string(tx.Kind),
		Token:       string(tx.Token),
		Status:      string(tx.Status),
		Description: tx.Description,
		TxHash:      tx.TxHash,
		CreatedAt:   tx.CreatedAt,
	}
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          string `json:"name"`
		Description   string `json:"description"`
		SplitPolicy   string `json:"split_policy"`
		WalletAddress string `json:"wallet_address"`
		CreatorUserID string `json:"creator_user_id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", service.ErrValidation, err))
		return
	}

	account, err := s.ledger.CreateAccount(r.Context(), service.CreateAccountInput{
		Name:          req.Name,
		Description:   req.Description,
		SplitPolicy:   models.SplitPolicy(req.SplitPolicy),
		WalletAddress: req.WalletAddress,
		CreatorUserID: req.CreatorUserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.ledger.GetAccount(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (s *Server) handleTotalBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	total, err := s.ledger.TotalBalance(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := s.ledger.ActiveMemberCount(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_balance":       models.FormatAmount(total),
		"total_balance_cents": total,
		"active_members":      count,
	})
}

func (s *Server) handleMonthlyExpenses(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year, month := now.Year(), now.Month()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid year", service.ErrValidation))
			return
		}
		year = y
	}
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			writeError(w, fmt.Errorf("%w: invalid month", service.ErrValidation))
			return
		}
		month = time.Month(m)
	}

	total, err := s.ledger.MonthlyExpenses(r.Context(), chi.URLParam(r, "accountID"), year, month)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":           year,
		"month":          int(month),
		"expenses":       models.FormatAmount(total),
		"expenses_cents": total,
	})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	memberships, err := s.ledger.ListMemberships(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]membershipResponse, len(memberships))
	for i := range memberships {
		resp[i] = toMembershipResponse(&memberships[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGrantMembership(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", service.ErrValidation, err))
		return
	}

	membership, err := s.ledger.GrantMembership(r.Context(),
		chi.URLParam(r, "accountID"), req.UserID, models.Role(req.Role))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMembershipResponse(membership))
}

func (s *Server) handleRevokeMembership(w http.ResponseWriter, r *http.Request) {
	err := s.ledger.RevokeMembership(r.Context(),
		chi.URLParam(r, "accountID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMemberBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.ledger.BalanceOf(r.Context(),
		chi.URLParam(r, "accountID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance":       models.FormatAmount(balance),
		"balance_cents": balance,
	})
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, fmt.Errorf("%w: invalid limit", service.ErrValidation))
			return
		}
		limit = n
	}
	txs, err := s.ledger.RecentTransactions(r.Context(), chi.URLParam(r, "accountID"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]transactionResponse, len(txs))
	for i := range txs {
		resp[i] = toTransactionResponse(&txs[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind        string `json:"kind"`
		Amount      string `json:"amount"` // decimal major units, e.g. "100.00"
		Token       string `json:"token"`
		Description string `json:"description"`
		FromUserID  string `json:"from_user_id"`
		ToUserID    string `json:"to_user_id"`
		TxHash      string `json:"tx_hash"`
		Status      string `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", service.ErrValidation, err))
		return
	}

	cents, err := models.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", service.ErrValidation, err))
		return
	}

	tx, err := s.ledger.RecordTransaction(r.Context(), service.RecordTransactionInput{
		AccountID:   chi.URLParam(r, "accountID"),
		Kind:        models.TransactionKind(req.Kind),
		AmountCents: cents,
		Token:       models.Token(req.Token),
		Description: req.Description,
		FromUserID:  req.FromUserID,
		ToUserID:    req.ToUserID,
		TxHash:      req.TxHash,
		Status:      models.TransactionStatus(req.Status),
	})
	if err != nil {
		// An inapplicable split or missing membership still produced a
		// record; surface it alongside the error status.
		if tx != nil && (errors.Is(err, service.ErrInapplicableSplit) || errors.Is(err, service.ErrMissingMembership)) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":       err.Error(),
				"transaction": toTransactionResponse(tx),
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleConfirmTransaction(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.ledger.ConfirmTransaction)
}

func (s *Server) handleCancelTransaction(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.ledger.CancelTransaction)
}

func (s *Server) handleFailTransaction(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.ledger.FailTransaction)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, txID string) (*models.Transaction, error)) {
	tx, err := fn(r.Context(), chi.URLParam(r, "txID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}
