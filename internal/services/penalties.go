package services

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"loanledger/internal/models"
)

// ─── Penalty Ledger ───────────────────────────────────────────────────────────

// TotalPenalty sums the fines on the user's overdue loans as of today.
func (l *Ledger) TotalPenalty(username string) (int64, error) {
	var total int64
	err := l.run(true, func(st *ledgerState) error {
		total = l.totalPenalty(st, username)
		return nil
	})
	return total, err
}

func (l *Ledger) totalPenalty(st *ledgerState, username string) int64 {
	var total int64
	for _, o := range l.overdueBooks(st, username) {
		total += o.FineAmount
	}
	return total
}

// PayPenalty settles the fine on the active loan for isbn and completes the
// loan. An empty username skips the borrower check.
//
// It fails with ErrNoActiveLoan when nothing is on loan under isbn,
// ErrForeignLoan when username is given and is not the borrower, and
// ErrNothingDue when the loan is not past its due date.
func (l *Ledger) PayPenalty(isbn, username string) (*models.PenaltyRecord, error) {
	var paid models.PenaltyRecord
	err := l.run(true, func(st *ledgerState) error {
		idx := st.activeLoanIndex(isbn)
		if idx < 0 {
			return ErrNoActiveLoan
		}
		loan := &st.loans[idx]
		if username != "" && loan.Username != username {
			return ErrForeignLoan
		}

		today := l.clock.Today()
		days := today.DaysSince(loan.DueDate)
		if days <= 0 {
			return fmt.Errorf("%w: %q is not overdue", ErrNothingDue, loan.Title)
		}
		amount := int64(days) * l.opts.DailyPenaltyRate
		now := l.clock.Now().UTC()

		pIdx := st.activePenaltyIndex(loan.ISBN, loan.Username)
		if pIdx < 0 {
			st.penalties = append(st.penalties, models.PenaltyRecord{
				ID:        uuid.NewString(),
				ISBN:      loan.ISBN,
				Username:  loan.Username,
				Title:     loan.Title,
				CreatedAt: now,
			})
			pIdx = len(st.penalties) - 1
		}
		p := &st.penalties[pIdx]
		p.Amount = amount
		p.DaysOverdue = days
		p.Status = models.PenaltyStatusPaid
		p.UpdatedAt = now
		p.PaidAt = &now
		p.PaidAmount = &amount
		if err := validatePenalty(p); err != nil {
			return err
		}

		late := true
		loan.Status = models.LoanStatusCompleted
		loan.ActualReturnDate = &today
		loan.ReturnedLate = &late
		loan.DaysLate = &days
		loan.PenaltyAmount = &amount

		st.loansDirty = true
		st.penaltiesDirty = true
		paid = *p
		return nil
	})
	if err != nil {
		l.log.Warn("payment rejected",
			slog.String("isbn", isbn),
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	l.log.Info("penalty paid",
		slog.String("penalty_id", paid.ID),
		slog.String("isbn", paid.ISBN),
		slog.String("username", paid.Username),
		slog.Int64("amount", paid.Amount),
		slog.Int("days_overdue", paid.DaysOverdue),
	)
	return &paid, nil
}

// DeletePenalty removes a penalty record by id.
func (l *Ledger) DeletePenalty(id string) error {
	err := l.run(false, func(st *ledgerState) error {
		for i := range st.penalties {
			if st.penalties[i].ID == id {
				st.penalties = append(st.penalties[:i], st.penalties[i+1:]...)
				st.penaltiesDirty = true
				return nil
			}
		}
		return fmt.Errorf("%w: penalty %q", ErrNotFound, id)
	})
	if err != nil {
		return err
	}
	l.log.Info("penalty deleted", slog.String("penalty_id", id))
	return nil
}

// Penalties returns every penalty record for the user, paid or not.
func (l *Ledger) Penalties(username string) ([]models.PenaltyRecord, error) {
	out := []models.PenaltyRecord{}
	err := l.run(true, func(st *ledgerState) error {
		for _, p := range st.penalties {
			if p.Username == username {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// ActivePenalty returns the unpaid penalty for the pair, or ErrNotFound.
func (l *Ledger) ActivePenalty(isbn, username string) (*models.PenaltyRecord, error) {
	var found models.PenaltyRecord
	err := l.run(true, func(st *ledgerState) error {
		idx := st.activePenaltyIndex(isbn, username)
		if idx < 0 {
			return fmt.Errorf("%w: no active penalty for %s/%s", ErrNotFound, isbn, username)
		}
		found = st.penalties[idx]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}
