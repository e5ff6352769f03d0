package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"loanledger/internal/clock"
	"loanledger/internal/models"
	"loanledger/internal/repositories"
)

// ─── Service Interface ────────────────────────────────────────────────────────

// CheckoutInput is a borrow request as it arrives from the API. A zero
// DurationDays means the configured default loan period. Title is only
// needed when no catalog is configured.
type CheckoutInput struct {
	ISBN         string
	Username     string
	Title        string
	DurationDays int
}

// PenaltySummary is everything a borrower owes, as of today.
type PenaltySummary struct {
	Username       string                 `json:"username"`
	Penalties      []models.PenaltyRecord `json:"penalties"`
	Overdue        []models.OverdueLoan   `json:"overdue"`
	Total          int64                  `json:"total"`
	TotalFormatted string                 `json:"total_formatted"`
}

// LibraryService defines the application-level operations of the circulation desk.
type LibraryService interface {
	CreateBook(ctx context.Context, isbn, title, author string) (*models.Book, error)
	ListBooks(ctx context.Context) ([]models.Book, error)

	CheckoutBook(ctx context.Context, in CheckoutInput) (*models.LoanRecord, error)
	ReturnBook(ctx context.Context, isbn, username string) (*models.LoanRecord, error)
	PayPenalty(ctx context.Context, isbn, username string) (*models.PenaltyRecord, error)
	Reconcile() (ReconcileResult, error)

	BorrowedBooks(username string) ([]models.LoanRecord, error)
	OverdueBooks(username string) ([]models.OverdueLoan, error)
	TransactionHistory(username string) ([]models.LoanRecord, error)
	DaysRemaining(isbn string) (int, error)
	DaysOverdue(isbn string) (int, error)
	BooksApproachingDueDate(username string, thresholdDays int) ([]models.LoanRecord, error)
	PenaltySummary(username string) (*PenaltySummary, error)

	DeleteLoan(id string) error
	DeletePenalty(id string) error

	Today() models.Date
	SetDate(iso string) error
	ResetDate() error
}

// ─── Implementation ───────────────────────────────────────────────────────────

// LibraryOptions holds the caller-side defaults.
type LibraryOptions struct {
	DefaultLoanDays          int
	ApproachingThresholdDays int
}

type libraryService struct {
	// mu serializes every ledger call; the ledger itself is single-writer.
	mu     sync.Mutex
	ledger *Ledger
	books  repositories.BookRepository
	clock  clock.Clock
	opts   LibraryOptions
	log    *slog.Logger
}

// NewLibraryService wires up all dependencies and returns a LibraryService.
// books may be nil, in which case catalog operations fail with
// ErrCatalogDisabled and borrowers must supply the title themselves.
func NewLibraryService(
	ledger *Ledger,
	books repositories.BookRepository,
	clk clock.Clock,
	opts LibraryOptions,
	log *slog.Logger,
) LibraryService {
	if opts.DefaultLoanDays <= 0 {
		opts.DefaultLoanDays = DefaultLoanPeriodDays
	}
	if opts.ApproachingThresholdDays <= 0 {
		opts.ApproachingThresholdDays = DefaultApproachingThresholdDays
	}
	return &libraryService{
		ledger: ledger,
		books:  books,
		clock:  clk,
		opts:   opts,
		log:    log.With("service", "library"),
	}
}

// ─── Book Management ──────────────────────────────────────────────────────────

// CreateBook adds a book to the catalog, available for loan.
func (s *libraryService) CreateBook(ctx context.Context, isbn, title, author string) (*models.Book, error) {
	if s.books == nil {
		return nil, ErrCatalogDisabled
	}
	if !isDigits(isbn) {
		return nil, newValidationError("isbn", "must contain digits only")
	}
	if title == "" {
		return nil, newValidationError("title", "is required and cannot be empty")
	}
	book := &models.Book{
		ISBN:   isbn,
		Title:  title,
		Author: author,
		Status: models.BookStatusAvailable,
	}
	if err := s.books.Create(ctx, nil, book); err != nil {
		s.log.Error("create book failed", slog.String("isbn", isbn), slog.String("error", err.Error()))
		return nil, err
	}
	s.log.Info("book created", slog.String("isbn", isbn), slog.String("title", title))
	return book, nil
}

// ListBooks returns the whole catalog.
func (s *libraryService) ListBooks(ctx context.Context) ([]models.Book, error) {
	if s.books == nil {
		return nil, ErrCatalogDisabled
	}
	return s.books.List(ctx, nil)
}

// ─── Circulation ──────────────────────────────────────────────────────────────

// CheckoutBook looks the title up in the catalog, records the loan and marks
// the book borrowed. The ledger is authoritative: if the catalog update fails
// after the loan is recorded the failure is only logged.
func (s *libraryService) CheckoutBook(ctx context.Context, in CheckoutInput) (*models.LoanRecord, error) {
	if in.DurationDays == 0 {
		in.DurationDays = s.opts.DefaultLoanDays
	}

	if s.books != nil {
		book, err := s.books.GetByISBN(ctx, nil, in.ISBN)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrBookNotFound, in.ISBN)
			}
			return nil, fmt.Errorf("catalog lookup: %w", err)
		}
		in.Title = book.Title
	}

	s.mu.Lock()
	loan, err := s.ledger.Borrow(BorrowInput{
		ISBN:         in.ISBN,
		Username:     in.Username,
		Title:        in.Title,
		DurationDays: in.DurationDays,
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.syncStatus(ctx, in.ISBN, models.BookStatusBorrowed)
	return loan, nil
}

// ReturnBook completes an on-time loan and releases the book.
func (s *libraryService) ReturnBook(ctx context.Context, isbn, username string) (*models.LoanRecord, error) {
	s.mu.Lock()
	loan, err := s.ledger.Return(isbn, username)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.syncStatus(ctx, isbn, models.BookStatusAvailable)
	return loan, nil
}

// PayPenalty settles an overdue loan, which also returns the book.
func (s *libraryService) PayPenalty(ctx context.Context, isbn, username string) (*models.PenaltyRecord, error) {
	s.mu.Lock()
	p, err := s.ledger.PayPenalty(isbn, username)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.syncStatus(ctx, isbn, models.BookStatusAvailable)
	return p, nil
}

func (s *libraryService) Reconcile() (ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Reconcile()
}

// syncStatus flips the catalog status of a book under a row lock. Books the
// catalog does not know about are skipped.
func (s *libraryService) syncStatus(ctx context.Context, isbn string, status models.BookStatus) {
	if s.books == nil {
		return
	}
	err := s.books.Transaction(ctx, func(tx *gorm.DB) error {
		book, err := s.books.GetByISBNForUpdate(ctx, tx, isbn)
		if err != nil {
			return err
		}
		if book.Status == status {
			return nil
		}
		return s.books.UpdateStatus(ctx, tx, isbn, status)
	})
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Error("catalog status update failed",
			slog.String("isbn", isbn),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}

// ─── Queries ──────────────────────────────────────────────────────────────────

func (s *libraryService) BorrowedBooks(username string) ([]models.LoanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.BorrowedBooks(username)
}

func (s *libraryService) OverdueBooks(username string) ([]models.OverdueLoan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.OverdueBooks(username)
}

func (s *libraryService) TransactionHistory(username string) ([]models.LoanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.TransactionHistory(username)
}

func (s *libraryService) DaysRemaining(isbn string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.DaysRemaining(isbn)
}

func (s *libraryService) DaysOverdue(isbn string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.DaysOverdue(isbn)
}

// BooksApproachingDueDate uses the configured threshold when thresholdDays is negative.
func (s *libraryService) BooksApproachingDueDate(username string, thresholdDays int) ([]models.LoanRecord, error) {
	if thresholdDays < 0 {
		thresholdDays = s.opts.ApproachingThresholdDays
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.BooksApproachingDueDate(username, thresholdDays)
}

// PenaltySummary collects a borrower's penalty records and current overdue fines.
func (s *libraryService) PenaltySummary(username string) (*PenaltySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	penalties, err := s.ledger.Penalties(username)
	if err != nil {
		return nil, err
	}
	overdue, err := s.ledger.OverdueBooks(username)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, o := range overdue {
		total += o.FineAmount
	}
	return &PenaltySummary{
		Username:       username,
		Penalties:      penalties,
		Overdue:        overdue,
		Total:          total,
		TotalFormatted: s.ledger.FormatCurrency(total),
	}, nil
}

// ─── Record Maintenance ───────────────────────────────────────────────────────

func (s *libraryService) DeleteLoan(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.DeleteLoan(id)
}

func (s *libraryService) DeletePenalty(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.DeletePenalty(id)
}

// ─── Test-Mode Clock ──────────────────────────────────────────────────────────

func (s *libraryService) Today() models.Date {
	return s.clock.Today()
}

// SetDate pins the date on a test-mode clock.
func (s *libraryService) SetDate(iso string) error {
	setter, ok := s.clock.(clock.Setter)
	if !ok {
		return clock.ErrNotManual
	}
	if err := setter.SetDate(iso); err != nil {
		return err
	}
	s.log.Info("clock pinned", slog.String("date", iso))
	return nil
}

// ResetDate returns a test-mode clock to real time.
func (s *libraryService) ResetDate() error {
	setter, ok := s.clock.(clock.Setter)
	if !ok {
		return clock.ErrNotManual
	}
	setter.Reset()
	s.log.Info("clock reset")
	return nil
}
