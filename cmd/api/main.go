package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/isaccanedo/fineract-sub004/pkg/config"
	"github.com/isaccanedo/fineract-sub004/pkg/ledger"
	"github.com/isaccanedo/fineract-sub004/pkg/loan"
	"github.com/isaccanedo/fineract-sub004/pkg/money"
	"github.com/isaccanedo/fineract-sub004/pkg/store"
)

const dateLayout = "2006-01-02"

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
	logger  *zap.Logger
}

func NewServer(s store.Storage, logger *zap.Logger) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, logger),
		storage: s,
		logger:  logger,
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrLoanNotFound):
		http.Error(w, "Loan not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrTransactionNotFound):
		http.Error(w, "Transaction not found", http.StatusNotFound)
	case errors.Is(err, loan.ErrNotDisbursed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func parseLoanID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("date is required")
	}
	return time.Parse(dateLayout, value)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerKey          string          `json:"customer_key"`
		CurrencyCode         string          `json:"currency_code"`
		CurrencyDigits       int32           `json:"currency_digits"`
		Principal            decimal.Decimal `json:"principal"`
		NumberOfInstallments int             `json:"number_of_installments"`
		Strategy             string          `json:"strategy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.CurrencyCode == "" {
		http.Error(w, "currency_code is required", http.StatusBadRequest)
		return
	}

	currency := money.Currency{Code: req.CurrencyCode, Digits: req.CurrencyDigits}
	ln, err := s.ledger.CreateLoan(req.CustomerKey, currency, req.Principal, req.NumberOfInstallments, req.Strategy)
	if err != nil {
		s.logger.Error("failed to create loan", zap.Error(err))
		http.Error(w, fmt.Sprintf("Failed to create loan: %v", err), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, ln)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := parseLoanID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	ln, err := s.ledger.GetLoan(loanID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ln)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.GetAllLoans()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := parseLoanID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	if err := s.ledger.DeleteLoan(loanID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) disburseLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := parseLoanID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Date                   string          `json:"date"`
		InterestPerInstallment decimal.Decimal `json:"interest_per_installment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ln, err := s.ledger.DisburseLoan(loanID, date, req.InterestPerInstallment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ln)
}

func (s *Server) addChargeHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := parseLoanID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Name              string          `json:"name"`
		Amount            decimal.Decimal `json:"amount"`
		DueDate           string          `json:"due_date"`
		Penalty           bool            `json:"penalty"`
		DueAtDisbursement bool            `json:"due_at_disbursement"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	charge := &loan.LoanCharge{
		Name:              req.Name,
		Amount:            req.Amount,
		Penalty:           req.Penalty,
		DueAtDisbursement: req.DueAtDisbursement,
	}
	if req.DueDate != "" {
		due, err := parseDate(req.DueDate)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		charge.DueDate = &due
	}

	ln, err := s.ledger.AddCharge(loanID, charge)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ln)
}

func (s *Server) submitTransactionHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := parseLoanID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Type   loan.TransactionType `json:"type"`
		Date   string               `json:"date"`
		Amount decimal.Decimal      `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		http.Error(w, "Amount must be positive", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		req.Type = loan.TransactionTypeRepayment
	}

	tx, err := s.ledger.SubmitTransaction(loanID, req.Type, date, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) adjustTransactionHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := parseLoanID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	var txID int64
	if _, err := fmt.Sscan(mux.Vars(r)["txId"], &txID); err != nil {
		http.Error(w, "Invalid transaction ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Date   string          `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var newDate *time.Time
	if req.Date != "" {
		d, err := parseDate(req.Date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		newDate = &d
	}

	changed, err := s.ledger.AdjustTransaction(loanID, txID, req.Amount, newDate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, changed.NewTransactionMappings)
}

func (s *Server) undoTransactionHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := parseLoanID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	var txID int64
	if _, err := fmt.Sscan(mux.Vars(r)["txId"], &txID); err != nil {
		http.Error(w, "Invalid transaction ID", http.StatusBadRequest)
		return
	}
	ln, err := s.ledger.UndoTransaction(loanID, txID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ln)
}

func (s *Server) writeOffHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := parseLoanID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tx, err := s.ledger.WriteOffLoan(loanID, date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) getScheduleHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := parseLoanID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	ln, err := s.ledger.GetLoan(loanID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ln.Installments)
}

func (s *Server) previewScheduleHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := parseLoanID(r)
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Transactions []struct {
			Type   loan.TransactionType `json:"type"`
			Date   string               `json:"date"`
			Amount decimal.Decimal      `json:"amount"`
		} `json:"transactions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var candidates []*loan.LoanTransaction
	for _, c := range req.Transactions {
		date, err := parseDate(c.Date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		txType := c.Type
		if txType == "" {
			txType = loan.TransactionTypeRepayment
		}
		candidates = append(candidates, loan.NewTransaction(txType, date, c.Amount))
	}

	remainder, err := s.ledger.PreviewSchedule(loanID, candidates)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"unprocessed_remainder": remainder.Amount().String()})
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	router.HandleFunc("/loans/{id}/disburse", s.disburseLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/charges", s.addChargeHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/transactions", s.submitTransactionHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/transactions/{txId}/adjust", s.adjustTransactionHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/transactions/{txId}/undo", s.undoTransactionHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/writeoff", s.writeOffHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/schedule", s.getScheduleHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/schedule/preview", s.previewScheduleHandler).Methods("POST")
	return router
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	sqliteStore, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("failed to initialize SQLite store", zap.Error(err))
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore, logger)

	// Interest-posting batch loop.
	go func() {
		ticker := time.NewTicker(cfg.PostingInterval)
		defer ticker.Stop()

		postingCfg := ledger.DefaultPostingConfig()
		postingCfg.Workers = cfg.PostingWorkers
		postingCfg.MaxRetries = cfg.PostingRetries

		for range ticker.C {
			if _, err := server.ledger.PostInterest(context.Background(), time.Now(), postingCfg); err != nil {
				logger.Error("interest posting run failed", zap.Error(err))
			}
		}
	}()

	logger.Info("server starting", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, server.routes()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
