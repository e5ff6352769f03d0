package models

import (
	"time"

	"github.com/google/uuid"
)

type LoanStatus string

const (
	LoanStatusActive    LoanStatus = "active"
	LoanStatusCompleted LoanStatus = "completed"
)

type PenaltyStatus string

const (
	PenaltyStatusActive PenaltyStatus = "active"
	PenaltyStatusPaid   PenaltyStatus = "paid"
)

type BookStatus string

const (
	BookStatusAvailable BookStatus = "AVAILABLE"
	BookStatusBorrowed  BookStatus = "BORROWED"
)

// LoanRecord is one borrowing of one physical book. DueDate is stored under
// the "due_date" key; ActualReturnDate and the late-return fields are only
// present once the loan is completed.
type LoanRecord struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	ISBN             string     `json:"isbn"`
	Title            string     `json:"title"`
	BorrowDate       Date       `json:"borrow_date"`
	DueDate          Date       `json:"due_date"`
	Status           LoanStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	ActualReturnDate *Date      `json:"actual_return_date,omitempty"`
	ReturnedLate     *bool      `json:"returned_late,omitempty"`
	DaysLate         *int       `json:"days_late,omitempty"`
	PenaltyAmount    *int64     `json:"penalty_amount,omitempty"`
}

func (l *LoanRecord) IsActive() bool { return l.Status == LoanStatusActive }

// PenaltyRecord is the fine accrued by an overdue loan. For an active penalty
// Amount equals DaysOverdue times the daily rate as of the last reconciliation.
type PenaltyRecord struct {
	ID          string        `json:"id"`
	ISBN        string        `json:"isbn"`
	Username    string        `json:"username"`
	Title       string        `json:"title"`
	Amount      int64         `json:"amount"`
	DaysOverdue int           `json:"days_overdue"`
	Status      PenaltyStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	PaidAmount  *int64        `json:"paid_amount,omitempty"`
}

func (p *PenaltyRecord) IsActive() bool { return p.Status == PenaltyStatusActive }

// OverdueLoan is an active loan past its due date, annotated with values
// computed at query time. They are never written back to the loan.
type OverdueLoan struct {
	LoanRecord
	DaysOverdue int   `json:"days_overdue"`
	FineAmount  int64 `json:"fine_amount"`
}

// Book is a catalog entry. The ledger never reads this table; the
// circulation service uses it to look up titles and flip availability.
type Book struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ISBN      string     `gorm:"size:32;not null;uniqueIndex" json:"isbn"`
	Title     string     `gorm:"size:255;not null" json:"title"`
	Author    string     `gorm:"size:255;not null" json:"author"`
	Status    BookStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}
