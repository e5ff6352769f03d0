package services

import (
	"log/slog"

	"github.com/google/uuid"

	"loanledger/internal/models"
)

// ReconcileResult counts what a reconciliation pass changed.
type ReconcileResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Reconcile brings penalties in line with the current date: every active loan
// past its due date gets an active penalty of daysOverdue * rate, created or
// updated in place. Running it twice on the same date changes nothing the
// second time.
func (l *Ledger) Reconcile() (ReconcileResult, error) {
	var res ReconcileResult
	err := l.run(false, func(st *ledgerState) error {
		res = l.reconcileState(st)
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	if res.Created > 0 || res.Updated > 0 {
		l.log.Info("penalties reconciled",
			slog.Int("created", res.Created),
			slog.Int("updated", res.Updated),
			slog.String("date", l.clock.Today().String()),
		)
	}
	return res, nil
}

// reconcileState applies one reconciliation pass to st. A penalty is only
// touched when its figures change, and never moves to fewer overdue days.
func (l *Ledger) reconcileState(st *ledgerState) ReconcileResult {
	var res ReconcileResult
	today := l.clock.Today()
	now := l.clock.Now().UTC()

	for i := range st.loans {
		loan := &st.loans[i]
		if !loan.IsActive() {
			continue
		}
		days := today.DaysSince(loan.DueDate)
		if days <= 0 {
			continue
		}
		amount := int64(days) * l.opts.DailyPenaltyRate

		if idx := st.activePenaltyIndex(loan.ISBN, loan.Username); idx >= 0 {
			p := &st.penalties[idx]
			if days < p.DaysOverdue || (days == p.DaysOverdue && amount == p.Amount) {
				continue
			}
			p.DaysOverdue = days
			p.Amount = amount
			p.UpdatedAt = now
			st.penaltiesDirty = true
			res.Updated++
			continue
		}

		p := models.PenaltyRecord{
			ID:          uuid.NewString(),
			ISBN:        loan.ISBN,
			Username:    loan.Username,
			Title:       loan.Title,
			Amount:      amount,
			DaysOverdue: days,
			Status:      models.PenaltyStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := validatePenalty(&p); err != nil {
			l.log.Warn("skipping invalid penalty",
				slog.String("loan_id", loan.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		st.penalties = append(st.penalties, p)
		st.penaltiesDirty = true
		res.Created++
	}
	return res
}
