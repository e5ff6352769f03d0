package services

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"loanledger/internal/clock"
	"loanledger/internal/models"
	"loanledger/internal/store"
)

// ─── Ledger Constants ─────────────────────────────────────────────────────────

const (
	// DefaultDailyPenaltyRate is the fine charged per whole day overdue.
	DefaultDailyPenaltyRate = 5000

	// DefaultLoanPeriodDays is used by callers that do not pick a duration.
	DefaultLoanPeriodDays = 7

	// DefaultApproachingThresholdDays is the look-ahead window for due-date reminders.
	DefaultApproachingThresholdDays = 2

	DefaultLoansCollection     = "loans.json"
	DefaultPenaltiesCollection = "penalties.json"
	DefaultCurrencyLocale      = "id"
)

// LedgerOptions configures a Ledger. Zero fields take the defaults above.
type LedgerOptions struct {
	LoansCollection     string
	PenaltiesCollection string
	DailyPenaltyRate    int64
	CurrencyLocale      string
}

func (o LedgerOptions) withDefaults() LedgerOptions {
	if o.LoansCollection == "" {
		o.LoansCollection = DefaultLoansCollection
	}
	if o.PenaltiesCollection == "" {
		o.PenaltiesCollection = DefaultPenaltiesCollection
	}
	if o.DailyPenaltyRate <= 0 {
		o.DailyPenaltyRate = DefaultDailyPenaltyRate
	}
	if o.CurrencyLocale == "" {
		o.CurrencyLocale = DefaultCurrencyLocale
	}
	return o
}

// Ledger owns the loan and penalty collections. Every operation loads both
// collections from the store, applies its change and persists it before
// returning, so nothing is cached between calls.
//
// A Ledger does no locking of its own. Callers on several goroutines must
// serialize access (LibraryService does this with a mutex). Cross-process
// safety depends on the store's Locked implementation.
type Ledger struct {
	store    store.RecordStore
	clock    clock.Clock
	opts     LedgerOptions
	currency *currencyFormatter
	log      *slog.Logger
}

// NewLedger builds a Ledger and runs one reconciliation pass so penalties
// are current from the first call.
func NewLedger(st store.RecordStore, clk clock.Clock, opts LedgerOptions, log *slog.Logger) (*Ledger, error) {
	opts = opts.withDefaults()
	l := &Ledger{
		store:    st,
		clock:    clk,
		opts:     opts,
		currency: newCurrencyFormatter(opts.CurrencyLocale),
		log:      log.With("service", "ledger"),
	}
	if _, err := l.Reconcile(); err != nil {
		return nil, fmt.Errorf("initial reconcile: %w", err)
	}
	return l, nil
}

// DailyPenaltyRate returns the configured fine per day.
func (l *Ledger) DailyPenaltyRate() int64 { return l.opts.DailyPenaltyRate }

// FormatCurrency renders an amount with locale grouping. It never fails.
func (l *Ledger) FormatCurrency(amount int64) string {
	return l.currency.format(amount)
}

// ─── State ────────────────────────────────────────────────────────────────────

// ledgerState is one operation's working copy of both collections.
type ledgerState struct {
	loans          []models.LoanRecord
	penalties      []models.PenaltyRecord
	loansDirty     bool
	penaltiesDirty bool
}

func (st *ledgerState) activeLoanIndex(isbn string) int {
	for i := range st.loans {
		if st.loans[i].ISBN == isbn && st.loans[i].IsActive() {
			return i
		}
	}
	return -1
}

func (st *ledgerState) activeLoanIndexFor(isbn, username string) int {
	for i := range st.loans {
		l := &st.loans[i]
		if l.ISBN == isbn && l.Username == username && l.IsActive() {
			return i
		}
	}
	return -1
}

func (st *ledgerState) activePenaltyIndex(isbn, username string) int {
	for i := range st.penalties {
		p := &st.penalties[i]
		if p.ISBN == isbn && p.Username == username && p.IsActive() {
			return i
		}
	}
	return -1
}

func (l *Ledger) load() (*ledgerState, error) {
	st := &ledgerState{}
	if err := l.store.Load(l.opts.LoansCollection, &st.loans); err != nil {
		return nil, fmt.Errorf("load loans: %w", err)
	}
	if err := l.store.Load(l.opts.PenaltiesCollection, &st.penalties); err != nil {
		return nil, fmt.Errorf("load penalties: %w", err)
	}
	if st.loans == nil {
		st.loans = []models.LoanRecord{}
	}
	if st.penalties == nil {
		st.penalties = []models.PenaltyRecord{}
	}

	// Records written before ids existed get one now; it is persisted with the next save.
	for i := range st.loans {
		if st.loans[i].ID == "" {
			st.loans[i].ID = uuid.NewString()
			st.loansDirty = true
		}
	}
	for i := range st.penalties {
		if st.penalties[i].ID == "" {
			st.penalties[i].ID = uuid.NewString()
			st.penaltiesDirty = true
		}
	}
	return st, nil
}

// persist writes the dirty collections. The two files are not one
// transaction: if the penalties write fails after the loans write succeeded,
// the previous loans are written back before the error is returned.
func (l *Ledger) persist(st *ledgerState, previousLoans []models.LoanRecord) error {
	if st.loansDirty {
		if err := l.store.Save(l.opts.LoansCollection, st.loans); err != nil {
			return fmt.Errorf("save loans: %w", err)
		}
	}
	if st.penaltiesDirty {
		if err := l.store.Save(l.opts.PenaltiesCollection, st.penalties); err != nil {
			if st.loansDirty {
				if rerr := l.store.Save(l.opts.LoansCollection, previousLoans); rerr != nil {
					l.log.Error("roll back loans failed", slog.String("error", rerr.Error()))
				}
			}
			return fmt.Errorf("save penalties: %w", err)
		}
	}
	st.loansDirty, st.penaltiesDirty = false, false
	return nil
}

// run executes one ledger operation under the store lock. With reconcile set
// a reconciliation pass runs and is persisted before fn, so fn sees current
// penalties even if it then fails. Changes fn makes are persisted only when
// fn returns nil.
func (l *Ledger) run(reconcile bool, fn func(st *ledgerState) error) error {
	return l.store.Locked(func() error {
		st, err := l.load()
		if err != nil {
			return err
		}
		if reconcile {
			l.reconcileState(st)
		}
		if st.loansDirty || st.penaltiesDirty {
			if err := l.persist(st, st.loans); err != nil {
				return err
			}
		}

		previousLoans := append([]models.LoanRecord(nil), st.loans...)
		if err := fn(st); err != nil {
			return err
		}
		if !st.loansDirty && !st.penaltiesDirty {
			return nil
		}
		return l.persist(st, previousLoans)
	})
}
