package services

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"loanledger/internal/models"
)

// BorrowInput describes a new loan. Title comes from the catalog; the
// ledger does not look it up.
type BorrowInput struct {
	ISBN         string
	Username     string
	Title        string
	DurationDays int
}

// ─── Loan Ledger ──────────────────────────────────────────────────────────────

// Borrow records a new active loan starting today and due DurationDays later.
//
// It fails with ErrInvalidArgument for a non-positive duration, ErrAlreadyBorrowed
// when the ISBN already has an active loan, ErrOutstandingPenalty when the
// borrower owes anything, and a *ValidationError when the record is incomplete.
func (l *Ledger) Borrow(in BorrowInput) (*models.LoanRecord, error) {
	if in.DurationDays <= 0 {
		return nil, fmt.Errorf("%w: duration must be a positive number of days, got %d", ErrInvalidArgument, in.DurationDays)
	}

	var created models.LoanRecord
	err := l.run(true, func(st *ledgerState) error {
		if idx := st.activeLoanIndex(in.ISBN); idx >= 0 {
			return fmt.Errorf("%w: %q is on loan until %s", ErrAlreadyBorrowed, st.loans[idx].Title, st.loans[idx].DueDate)
		}
		if total := l.totalPenalty(st, in.Username); total > 0 {
			return fmt.Errorf("%w: cannot borrow: you have an unpaid penalty of %s", ErrOutstandingPenalty, l.FormatCurrency(total))
		}

		today := l.clock.Today()
		loan := models.LoanRecord{
			ID:         uuid.NewString(),
			Username:   in.Username,
			ISBN:       in.ISBN,
			Title:      in.Title,
			BorrowDate: today,
			DueDate:    today.AddDays(in.DurationDays),
			Status:     models.LoanStatusActive,
			CreatedAt:  l.clock.Now().UTC(),
		}
		if err := validateLoan(&loan); err != nil {
			return err
		}

		st.loans = append(st.loans, loan)
		st.loansDirty = true
		l.reconcileState(st)
		created = loan
		return nil
	})
	if err != nil {
		l.log.Warn("borrow rejected",
			slog.String("isbn", in.ISBN),
			slog.String("username", in.Username),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	l.log.Info("book borrowed",
		slog.String("loan_id", created.ID),
		slog.String("isbn", created.ISBN),
		slog.String("username", created.Username),
		slog.String("due_date", created.DueDate.String()),
	)
	return &created, nil
}

// Return completes the borrower's active loan on the ISBN.
//
// Return reconciles before it looks for a penalty, so a loan that became
// overdue since the last read is still caught: an overdue loan always fails
// with ErrUnpaidPenalty and must go through PayPenalty instead.
func (l *Ledger) Return(isbn, username string) (*models.LoanRecord, error) {
	var returned models.LoanRecord
	err := l.run(true, func(st *ledgerState) error {
		idx := st.activeLoanIndexFor(isbn, username)
		if idx < 0 {
			return ErrNoActiveLoan
		}
		if pIdx := st.activePenaltyIndex(isbn, username); pIdx >= 0 {
			p := st.penalties[pIdx]
			return fmt.Errorf("%w: pay the penalty of %s before returning %q", ErrUnpaidPenalty, l.FormatCurrency(p.Amount), p.Title)
		}

		today := l.clock.Today()
		loan := &st.loans[idx]
		late := today.After(loan.DueDate)
		loan.Status = models.LoanStatusCompleted
		loan.ActualReturnDate = &today
		loan.ReturnedLate = &late
		if late {
			days := today.DaysSince(loan.DueDate)
			amount := int64(days) * l.opts.DailyPenaltyRate
			loan.DaysLate = &days
			loan.PenaltyAmount = &amount
		}
		st.loansDirty = true
		l.reconcileState(st)
		returned = *loan
		return nil
	})
	if err != nil {
		l.log.Warn("return rejected",
			slog.String("isbn", isbn),
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	l.log.Info("book returned",
		slog.String("loan_id", returned.ID),
		slog.String("isbn", isbn),
		slog.String("username", username),
		slog.Bool("returned_late", *returned.ReturnedLate),
	)
	return &returned, nil
}

// DeleteLoan removes a loan record by id.
func (l *Ledger) DeleteLoan(id string) error {
	err := l.run(false, func(st *ledgerState) error {
		for i := range st.loans {
			if st.loans[i].ID == id {
				st.loans = append(st.loans[:i], st.loans[i+1:]...)
				st.loansDirty = true
				return nil
			}
		}
		return fmt.Errorf("%w: loan %q", ErrNotFound, id)
	})
	if err != nil {
		return err
	}
	l.log.Info("loan deleted", slog.String("loan_id", id))
	return nil
}

// ─── Loan Queries ─────────────────────────────────────────────────────────────
//
// Every query reconciles first so overdue figures reflect today's date.

// BorrowedBooks returns the user's active loans.
func (l *Ledger) BorrowedBooks(username string) ([]models.LoanRecord, error) {
	out := []models.LoanRecord{}
	err := l.run(true, func(st *ledgerState) error {
		for _, loan := range st.loans {
			if loan.Username == username && loan.IsActive() {
				out = append(out, loan)
			}
		}
		return nil
	})
	return out, err
}

// OverdueBooks returns the user's active loans past their due date, each
// annotated with the days overdue and fine as of today.
func (l *Ledger) OverdueBooks(username string) ([]models.OverdueLoan, error) {
	var out []models.OverdueLoan
	err := l.run(true, func(st *ledgerState) error {
		out = l.overdueBooks(st, username)
		return nil
	})
	return out, err
}

func (l *Ledger) overdueBooks(st *ledgerState, username string) []models.OverdueLoan {
	today := l.clock.Today()
	out := []models.OverdueLoan{}
	for _, loan := range st.loans {
		if loan.Username != username || !loan.IsActive() {
			continue
		}
		days := today.DaysSince(loan.DueDate)
		if days <= 0 {
			continue
		}
		out = append(out, models.OverdueLoan{
			LoanRecord:  loan,
			DaysOverdue: days,
			FineAmount:  int64(days) * l.opts.DailyPenaltyRate,
		})
	}
	return out
}

// TransactionHistory returns every loan the user ever made, active or completed.
func (l *Ledger) TransactionHistory(username string) ([]models.LoanRecord, error) {
	out := []models.LoanRecord{}
	err := l.run(true, func(st *ledgerState) error {
		for _, loan := range st.loans {
			if loan.Username == username {
				out = append(out, loan)
			}
		}
		return nil
	})
	return out, err
}

// DaysRemaining returns the days left until the active loan on isbn is due.
// It is 0 when the book is not on loan or already overdue.
func (l *Ledger) DaysRemaining(isbn string) (int, error) {
	var days int
	err := l.run(true, func(st *ledgerState) error {
		idx := st.activeLoanIndex(isbn)
		if idx < 0 {
			return nil
		}
		if remaining := st.loans[idx].DueDate.DaysSince(l.clock.Today()); remaining > 0 {
			days = remaining
		}
		return nil
	})
	return days, err
}

// DaysOverdue returns how many days the active loan on isbn is past due, or 0.
func (l *Ledger) DaysOverdue(isbn string) (int, error) {
	var days int
	err := l.run(true, func(st *ledgerState) error {
		days = l.daysOverdue(st, isbn)
		return nil
	})
	return days, err
}

func (l *Ledger) daysOverdue(st *ledgerState, isbn string) int {
	idx := st.activeLoanIndex(isbn)
	if idx < 0 {
		return 0
	}
	if days := l.clock.Today().DaysSince(st.loans[idx].DueDate); days > 0 {
		return days
	}
	return 0
}

// BooksApproachingDueDate returns the user's active loans due after today and
// no later than thresholdDays from today.
func (l *Ledger) BooksApproachingDueDate(username string, thresholdDays int) ([]models.LoanRecord, error) {
	if thresholdDays < 0 {
		return nil, fmt.Errorf("%w: threshold must not be negative, got %d", ErrInvalidArgument, thresholdDays)
	}

	out := []models.LoanRecord{}
	err := l.run(true, func(st *ledgerState) error {
		today := l.clock.Today()
		limit := today.AddDays(thresholdDays)
		for _, loan := range st.loans {
			if loan.Username != username || !loan.IsActive() {
				continue
			}
			if loan.DueDate.After(today) && !loan.DueDate.After(limit) {
				out = append(out, loan)
			}
		}
		return nil
	})
	return out, err
}
