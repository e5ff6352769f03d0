package services

import (
	"strings"

	"loanledger/internal/models"
)

// validateLoan checks a loan before it is written. The first violated field
// is reported.
func validateLoan(l *models.LoanRecord) error {
	required := []struct {
		field string
		empty bool
	}{
		{"username", strings.TrimSpace(l.Username) == ""},
		{"isbn", strings.TrimSpace(l.ISBN) == ""},
		{"title", strings.TrimSpace(l.Title) == ""},
		{"borrow_date", l.BorrowDate.IsZero()},
		{"due_date", l.DueDate.IsZero()},
		{"status", l.Status == ""},
		{"created_at", l.CreatedAt.IsZero()},
	}
	for _, r := range required {
		if r.empty {
			return newValidationError(r.field, "is required and cannot be empty")
		}
	}

	if !isDigits(l.ISBN) {
		return newValidationError("isbn", "must contain digits only")
	}
	if l.DueDate.Before(l.BorrowDate) {
		return newValidationError("due_date", "cannot be earlier than borrow_date")
	}
	if l.Status != models.LoanStatusActive && l.Status != models.LoanStatusCompleted {
		return newValidationError("status", "must be active or completed")
	}
	return nil
}

func validatePenalty(p *models.PenaltyRecord) error {
	switch {
	case strings.TrimSpace(p.ISBN) == "":
		return newValidationError("isbn", "is required and cannot be empty")
	case strings.TrimSpace(p.Username) == "":
		return newValidationError("username", "is required and cannot be empty")
	case p.Status != models.PenaltyStatusActive && p.Status != models.PenaltyStatusPaid:
		return newValidationError("status", "must be active or paid")
	case p.CreatedAt.IsZero():
		return newValidationError("created_at", "is required")
	case p.Amount < 0:
		return newValidationError("amount", "cannot be negative")
	case p.DaysOverdue < 0:
		return newValidationError("days_overdue", "cannot be negative")
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
