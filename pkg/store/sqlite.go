package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/isaccanedo/fineract-sub004/pkg/loan"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err = db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.Println("Database connection established and schema initialized.")
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		customer_key TEXT NOT NULL,
		currency_code TEXT NOT NULL,
		currency_digits INTEGER NOT NULL,
		principal TEXT NOT NULL,
		number_of_installments INTEGER NOT NULL,
		strategy_code TEXT NOT NULL,
		status TEXT NOT NULL,
		disbursement_date DATETIME,
		overpaid_balance TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS installments (
		loan_id TEXT NOT NULL,
		installment_number INTEGER NOT NULL,
		from_date DATETIME NOT NULL,
		due_date DATETIME NOT NULL,
		principal TEXT NOT NULL,
		interest TEXT NOT NULL,
		fee_charges TEXT NOT NULL,
		penalty_charges TEXT NOT NULL,
		principal_paid TEXT NOT NULL,
		interest_paid TEXT NOT NULL,
		fee_charges_paid TEXT NOT NULL,
		penalty_charges_paid TEXT NOT NULL,
		interest_waived TEXT NOT NULL,
		fee_charges_waived TEXT NOT NULL,
		penalty_charges_waived TEXT NOT NULL,
		principal_written_off TEXT NOT NULL,
		interest_written_off TEXT NOT NULL,
		fee_charges_written_off TEXT NOT NULL,
		penalty_charges_written_off TEXT NOT NULL,
		credited_principal TEXT NOT NULL,
		additional INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (loan_id, installment_number),
		FOREIGN KEY (loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS charges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		loan_id TEXT NOT NULL,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		amount_waived TEXT NOT NULL,
		due_date DATETIME,
		penalty INTEGER NOT NULL,
		due_at_disbursement INTEGER NOT NULL,
		per_installment INTEGER NOT NULL,
		FOREIGN KEY (loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS installment_charges (
		charge_id INTEGER NOT NULL,
		installment_number INTEGER NOT NULL,
		amount TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		amount_waived TEXT NOT NULL,
		PRIMARY KEY (charge_id, installment_number),
		FOREIGN KEY (charge_id) REFERENCES charges(id)
	);
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		loan_id TEXT NOT NULL,
		external_ref TEXT NOT NULL,
		type TEXT NOT NULL,
		date DATETIME NOT NULL,
		amount TEXT NOT NULL,
		principal_portion TEXT NOT NULL,
		interest_portion TEXT NOT NULL,
		fee_charges_portion TEXT NOT NULL,
		penalty_charges_portion TEXT NOT NULL,
		overpayment_portion TEXT NOT NULL,
		reversed INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS transaction_mappings (
		transaction_id INTEGER NOT NULL,
		installment_number INTEGER NOT NULL,
		principal_portion TEXT NOT NULL,
		interest_portion TEXT NOT NULL,
		fee_charges_portion TEXT NOT NULL,
		penalty_charges_portion TEXT NOT NULL,
		FOREIGN KEY (transaction_id) REFERENCES transactions(id)
	);
	CREATE TABLE IF NOT EXISTS charges_paid (
		transaction_id INTEGER NOT NULL,
		charge_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		installment_number INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (transaction_id) REFERENCES transactions(id),
		FOREIGN KEY (charge_id) REFERENCES charges(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateLoan inserts a new loan into the database.
func (s *SQLiteStore) CreateLoan(l *loan.Loan) error {
	_, err := s.db.Exec(
		`INSERT INTO loans (id, customer_key, currency_code, currency_digits, principal, number_of_installments, strategy_code, status, disbursement_date, overpaid_balance, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID.String(), l.CustomerKey, l.Currency.Code, l.Currency.Digits, l.Principal, l.NumberOfInstallments, l.StrategyCode, l.Status, l.DisbursementDate, l.OverpaidBalance, l.Version, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// SaveLoan rewrites the loan's full servicing state in one database
// transaction. The loans row is versioned; a stale in-memory version fails
// with ErrConflict before any child row is touched.
func (s *SQLiteStore) SaveLoan(l *loan.Loan) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE loans SET customer_key = ?, currency_code = ?, currency_digits = ?, principal = ?, number_of_installments = ?, strategy_code = ?, status = ?, disbursement_date = ?, overpaid_balance = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		l.CustomerKey, l.Currency.Code, l.Currency.Digits, l.Principal, l.NumberOfInstallments, l.StrategyCode, l.Status, l.DisbursementDate, l.OverpaidBalance, time.Now(), l.ID.String(), l.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(1) FROM loans WHERE id = ?`, l.ID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check loan existence: %w", err)
		}
		if exists == 0 {
			return ErrLoanNotFound
		}
		return ErrConflict
	}

	if err := s.rewriteChildren(tx, l); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit loan state: %w", err)
	}
	l.Version++
	return nil
}

func (s *SQLiteStore) rewriteChildren(tx *sql.Tx, l *loan.Loan) error {
	loanID := l.ID.String()

	for _, stmt := range []string{
		`DELETE FROM transaction_mappings WHERE transaction_id IN (SELECT id FROM transactions WHERE loan_id = ?)`,
		`DELETE FROM charges_paid WHERE transaction_id IN (SELECT id FROM transactions WHERE loan_id = ?)`,
		`DELETE FROM transactions WHERE loan_id = ?`,
		`DELETE FROM installment_charges WHERE charge_id IN (SELECT id FROM charges WHERE loan_id = ?)`,
		`DELETE FROM charges WHERE loan_id = ?`,
		`DELETE FROM installments WHERE loan_id = ?`,
	} {
		if _, err := tx.Exec(stmt, loanID); err != nil {
			return fmt.Errorf("failed to clear loan state: %w", err)
		}
	}

	for _, i := range l.Installments {
		_, err := tx.Exec(
			`INSERT INTO installments (loan_id, installment_number, from_date, due_date, principal, interest, fee_charges, penalty_charges, principal_paid, interest_paid, fee_charges_paid, penalty_charges_paid, interest_waived, fee_charges_waived, penalty_charges_waived, principal_written_off, interest_written_off, fee_charges_written_off, penalty_charges_written_off, credited_principal, additional)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			loanID, i.InstallmentNumber, i.FromDate, i.DueDate, i.Principal, i.Interest, i.FeeCharges, i.PenaltyCharges,
			i.PrincipalPaid, i.InterestPaid, i.FeeChargesPaid, i.PenaltyChargesPaid,
			i.InterestWaived, i.FeeChargesWaived, i.PenaltyChargesWaived,
			i.PrincipalWrittenOff, i.InterestWrittenOff, i.FeeChargesWrittenOff, i.PenaltyChargesWrittenOff,
			i.CreditedPrincipal, i.Additional,
		)
		if err != nil {
			return fmt.Errorf("failed to save installment %d: %w", i.InstallmentNumber, err)
		}
	}

	for _, c := range l.Charges {
		if c.ID != 0 {
			_, err := tx.Exec(
				`INSERT INTO charges (id, loan_id, name, amount, amount_paid, amount_waived, due_date, penalty, due_at_disbursement, per_installment)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, loanID, c.Name, c.Amount, c.AmountPaid, c.AmountWaived, c.DueDate, c.Penalty, c.DueAtDisbursement, c.PerInstallment,
			)
			if err != nil {
				return fmt.Errorf("failed to save charge %d: %w", c.ID, err)
			}
		} else {
			result, err := tx.Exec(
				`INSERT INTO charges (loan_id, name, amount, amount_paid, amount_waived, due_date, penalty, due_at_disbursement, per_installment)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				loanID, c.Name, c.Amount, c.AmountPaid, c.AmountWaived, c.DueDate, c.Penalty, c.DueAtDisbursement, c.PerInstallment,
			)
			if err != nil {
				return fmt.Errorf("failed to save charge %q: %w", c.Name, err)
			}
			c.ID, err = result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read charge id: %w", err)
			}
		}
		for _, ic := range c.InstallmentCharges {
			_, err := tx.Exec(
				`INSERT INTO installment_charges (charge_id, installment_number, amount, amount_paid, amount_waived)
				VALUES (?, ?, ?, ?, ?)`,
				c.ID, ic.InstallmentNumber, ic.Amount, ic.AmountPaid, ic.AmountWaived,
			)
			if err != nil {
				return fmt.Errorf("failed to save installment charge: %w", err)
			}
		}
	}

	for _, t := range l.Transactions {
		if t.ID != 0 {
			_, err := tx.Exec(
				`INSERT INTO transactions (id, loan_id, external_ref, type, date, amount, principal_portion, interest_portion, fee_charges_portion, penalty_charges_portion, overpayment_portion, reversed)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				t.ID, loanID, t.ExternalRef.String(), t.Type, t.Date, t.Amount,
				t.PrincipalPortion, t.InterestPortion, t.FeeChargesPortion, t.PenaltyChargesPortion, t.OverpaymentPortion, t.Reversed,
			)
			if err != nil {
				return fmt.Errorf("failed to save transaction %d: %w", t.ID, err)
			}
		} else {
			result, err := tx.Exec(
				`INSERT INTO transactions (loan_id, external_ref, type, date, amount, principal_portion, interest_portion, fee_charges_portion, penalty_charges_portion, overpayment_portion, reversed)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				loanID, t.ExternalRef.String(), t.Type, t.Date, t.Amount,
				t.PrincipalPortion, t.InterestPortion, t.FeeChargesPortion, t.PenaltyChargesPortion, t.OverpaymentPortion, t.Reversed,
			)
			if err != nil {
				return fmt.Errorf("failed to save new transaction: %w", err)
			}
			t.ID, err = result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read transaction id: %w", err)
			}
		}

		for _, m := range t.Mappings {
			_, err := tx.Exec(
				`INSERT INTO transaction_mappings (transaction_id, installment_number, principal_portion, interest_portion, fee_charges_portion, penalty_charges_portion)
				VALUES (?, ?, ?, ?, ?, ?)`,
				t.ID, m.Installment.InstallmentNumber, m.PrincipalPortion, m.InterestPortion, m.FeeChargesPortion, m.PenaltyChargesPortion,
			)
			if err != nil {
				return fmt.Errorf("failed to save transaction mapping: %w", err)
			}
		}
		for _, cp := range t.ChargesPaid {
			_, err := tx.Exec(
				`INSERT INTO charges_paid (transaction_id, charge_id, amount, installment_number) VALUES (?, ?, ?, ?)`,
				t.ID, cp.Charge.ID, cp.Amount, cp.InstallmentNumber,
			)
			if err != nil {
				return fmt.Errorf("failed to save charge payment link: %w", err)
			}
		}
	}

	return nil
}

// GetLoan retrieves a loan with its full servicing state.
func (s *SQLiteStore) GetLoan(id uuid.UUID) (*loan.Loan, error) {
	row := s.db.QueryRow(`SELECT id, customer_key, currency_code, currency_digits, principal, number_of_installments, strategy_code, status, disbursement_date, overpaid_balance, version, created_at, updated_at FROM loans WHERE id = ?`, id.String())
	l, err := scanLoan(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadChildren(l); err != nil {
		return nil, err
	}
	return l, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*loan.Loan, error) {
	var l loan.Loan
	var idStr string
	var disbursement sql.NullTime
	err := row.Scan(&idStr, &l.CustomerKey, &l.Currency.Code, &l.Currency.Digits, &l.Principal, &l.NumberOfInstallments, &l.StrategyCode, &l.Status, &disbursement, &l.OverpaidBalance, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to scan loan: %w", err)
	}
	l.ID = uuid.MustParse(idStr)
	if disbursement.Valid {
		l.DisbursementDate = &disbursement.Time
	}
	return &l, nil
}

func (s *SQLiteStore) loadChildren(l *loan.Loan) error {
	loanID := l.ID.String()

	rows, err := s.db.Query(`SELECT installment_number, from_date, due_date, principal, interest, fee_charges, penalty_charges, principal_paid, interest_paid, fee_charges_paid, penalty_charges_paid, interest_waived, fee_charges_waived, penalty_charges_waived, principal_written_off, interest_written_off, fee_charges_written_off, penalty_charges_written_off, credited_principal, additional FROM installments WHERE loan_id = ? ORDER BY installment_number ASC`, loanID)
	if err != nil {
		return fmt.Errorf("failed to load installments: %w", err)
	}
	defer rows.Close()
	byNumber := make(map[int]*loan.RepaymentInstallment)
	for rows.Next() {
		var i loan.RepaymentInstallment
		if err := rows.Scan(&i.InstallmentNumber, &i.FromDate, &i.DueDate, &i.Principal, &i.Interest, &i.FeeCharges, &i.PenaltyCharges,
			&i.PrincipalPaid, &i.InterestPaid, &i.FeeChargesPaid, &i.PenaltyChargesPaid,
			&i.InterestWaived, &i.FeeChargesWaived, &i.PenaltyChargesWaived,
			&i.PrincipalWrittenOff, &i.InterestWrittenOff, &i.FeeChargesWrittenOff, &i.PenaltyChargesWrittenOff,
			&i.CreditedPrincipal, &i.Additional); err != nil {
			return fmt.Errorf("failed to scan installment: %w", err)
		}
		installment := i
		l.Installments = append(l.Installments, &installment)
		byNumber[installment.InstallmentNumber] = &installment
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error during installment iteration: %w", err)
	}

	chargeRows, err := s.db.Query(`SELECT id, name, amount, amount_paid, amount_waived, due_date, penalty, due_at_disbursement, per_installment FROM charges WHERE loan_id = ? ORDER BY id ASC`, loanID)
	if err != nil {
		return fmt.Errorf("failed to load charges: %w", err)
	}
	defer chargeRows.Close()
	chargesByID := make(map[int64]*loan.LoanCharge)
	for chargeRows.Next() {
		var c loan.LoanCharge
		var due sql.NullTime
		if err := chargeRows.Scan(&c.ID, &c.Name, &c.Amount, &c.AmountPaid, &c.AmountWaived, &due, &c.Penalty, &c.DueAtDisbursement, &c.PerInstallment); err != nil {
			return fmt.Errorf("failed to scan charge: %w", err)
		}
		if due.Valid {
			c.DueDate = &due.Time
		}
		charge := c
		l.Charges = append(l.Charges, &charge)
		chargesByID[charge.ID] = &charge
	}
	if err := chargeRows.Err(); err != nil {
		return fmt.Errorf("error during charge iteration: %w", err)
	}

	for _, c := range l.Charges {
		icRows, err := s.db.Query(`SELECT installment_number, amount, amount_paid, amount_waived FROM installment_charges WHERE charge_id = ? ORDER BY installment_number ASC`, c.ID)
		if err != nil {
			return fmt.Errorf("failed to load installment charges: %w", err)
		}
		for icRows.Next() {
			var ic loan.LoanInstallmentCharge
			if err := icRows.Scan(&ic.InstallmentNumber, &ic.Amount, &ic.AmountPaid, &ic.AmountWaived); err != nil {
				icRows.Close()
				return fmt.Errorf("failed to scan installment charge: %w", err)
			}
			child := ic
			c.InstallmentCharges = append(c.InstallmentCharges, &child)
		}
		if err := icRows.Err(); err != nil {
			icRows.Close()
			return fmt.Errorf("error during installment charge iteration: %w", err)
		}
		icRows.Close()
	}

	txRows, err := s.db.Query(`SELECT id, external_ref, type, date, amount, principal_portion, interest_portion, fee_charges_portion, penalty_charges_portion, overpayment_portion, reversed FROM transactions WHERE loan_id = ? ORDER BY date ASC, id ASC`, loanID)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	defer txRows.Close()
	txByID := make(map[int64]*loan.LoanTransaction)
	for txRows.Next() {
		var t loan.LoanTransaction
		var extRef string
		if err := txRows.Scan(&t.ID, &extRef, &t.Type, &t.Date, &t.Amount, &t.PrincipalPortion, &t.InterestPortion, &t.FeeChargesPortion, &t.PenaltyChargesPortion, &t.OverpaymentPortion, &t.Reversed); err != nil {
			return fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.ExternalRef = uuid.MustParse(extRef)
		transaction := t
		l.Transactions = append(l.Transactions, &transaction)
		txByID[transaction.ID] = &transaction
	}
	if err := txRows.Err(); err != nil {
		return fmt.Errorf("error during transaction iteration: %w", err)
	}

	mappingRows, err := s.db.Query(`SELECT tm.transaction_id, tm.installment_number, tm.principal_portion, tm.interest_portion, tm.fee_charges_portion, tm.penalty_charges_portion FROM transaction_mappings tm JOIN transactions t ON t.id = tm.transaction_id WHERE t.loan_id = ?`, loanID)
	if err != nil {
		return fmt.Errorf("failed to load transaction mappings: %w", err)
	}
	defer mappingRows.Close()
	for mappingRows.Next() {
		var txID int64
		var number int
		var m loan.ScheduleMapping
		if err := mappingRows.Scan(&txID, &number, &m.PrincipalPortion, &m.InterestPortion, &m.FeeChargesPortion, &m.PenaltyChargesPortion); err != nil {
			return fmt.Errorf("failed to scan transaction mapping: %w", err)
		}
		t, ok := txByID[txID]
		installment := byNumber[number]
		if !ok || installment == nil {
			continue
		}
		m.Installment = installment
		mapping := m
		t.Mappings = append(t.Mappings, &mapping)
	}
	if err := mappingRows.Err(); err != nil {
		return fmt.Errorf("error during mapping iteration: %w", err)
	}

	paidRows, err := s.db.Query(`SELECT cp.transaction_id, cp.charge_id, cp.amount, cp.installment_number FROM charges_paid cp JOIN transactions t ON t.id = cp.transaction_id WHERE t.loan_id = ?`, loanID)
	if err != nil {
		return fmt.Errorf("failed to load charge payment links: %w", err)
	}
	defer paidRows.Close()
	for paidRows.Next() {
		var txID, chargeID int64
		var cp loan.ChargePaidBy
		if err := paidRows.Scan(&txID, &chargeID, &cp.Amount, &cp.InstallmentNumber); err != nil {
			return fmt.Errorf("failed to scan charge payment link: %w", err)
		}
		t, ok := txByID[txID]
		charge := chargesByID[chargeID]
		if !ok || charge == nil {
			continue
		}
		cp.Charge = charge
		link := cp
		t.ChargesPaid = append(t.ChargesPaid, &link)
	}
	if err := paidRows.Err(); err != nil {
		return fmt.Errorf("error during charge payment iteration: %w", err)
	}

	return nil
}

// GetAllLoans retrieves all loans with their full state.
func (s *SQLiteStore) GetAllLoans() ([]*loan.Loan, error) {
	return s.queryLoans(`SELECT id, customer_key, currency_code, currency_digits, principal, number_of_installments, strategy_code, status, disbursement_date, overpaid_balance, version, created_at, updated_at FROM loans`)
}

// GetActiveLoans retrieves loans still being serviced.
func (s *SQLiteStore) GetActiveLoans() ([]*loan.Loan, error) {
	return s.queryLoans(`SELECT id, customer_key, currency_code, currency_digits, principal, number_of_installments, strategy_code, status, disbursement_date, overpaid_balance, version, created_at, updated_at FROM loans WHERE status = 'active'`)
}

func (s *SQLiteStore) queryLoans(query string) ([]*loan.Loan, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer rows.Close()

	var loans []*loan.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	for _, l := range loans {
		if err := s.loadChildren(l); err != nil {
			return nil, err
		}
	}
	return loans, nil
}

// DeleteLoan removes a loan and all dependent rows within a transaction.
func (s *SQLiteStore) DeleteLoan(id uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	loanID := id.String()
	for _, stmt := range []string{
		`DELETE FROM transaction_mappings WHERE transaction_id IN (SELECT id FROM transactions WHERE loan_id = ?)`,
		`DELETE FROM charges_paid WHERE transaction_id IN (SELECT id FROM transactions WHERE loan_id = ?)`,
		`DELETE FROM transactions WHERE loan_id = ?`,
		`DELETE FROM installment_charges WHERE charge_id IN (SELECT id FROM charges WHERE loan_id = ?)`,
		`DELETE FROM charges WHERE loan_id = ?`,
		`DELETE FROM installments WHERE loan_id = ?`,
	} {
		if _, err := tx.Exec(stmt, loanID); err != nil {
			return fmt.Errorf("failed to delete loan state: %w", err)
		}
	}

	result, err := tx.Exec(`DELETE FROM loans WHERE id = ?`, loanID)
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrLoanNotFound
	}

	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
