package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"loanledger/internal/clock"
	"loanledger/internal/services"
	"loanledger/internal/store"
)

type LibraryHandler struct {
	svc services.LibraryService
	log *slog.Logger
}

func RegisterRoutes(r *gin.Engine, svc services.LibraryService, log *slog.Logger) {
	h := &LibraryHandler{svc: svc, log: log.With("component", "http")}

	// Catalog endpoints
	r.POST("/books", h.createBook)
	r.GET("/books", h.listBooks)

	// Circulation endpoints
	r.POST("/loans", h.borrowBook)
	r.POST("/loans/:isbn/return", h.returnBook)
	r.GET("/loans/:isbn/days-remaining", h.daysRemaining)
	r.GET("/loans/:isbn/days-overdue", h.daysOverdue)
	r.POST("/penalties/:isbn/pay", h.payPenalty)
	r.POST("/reconcile", h.reconcile)

	// Borrower views
	r.GET("/users/:username/loans", h.borrowedBooks)
	r.GET("/users/:username/overdue", h.overdueBooks)
	r.GET("/users/:username/history", h.transactionHistory)
	r.GET("/users/:username/approaching", h.approachingDueDate)
	r.GET("/users/:username/penalties", h.penaltySummary)

	// Record maintenance
	r.DELETE("/loans/:id", h.deleteLoan)
	r.DELETE("/penalties/:id", h.deletePenalty)

	// Test-mode clock
	r.PUT("/clock", h.setDate)
	r.DELETE("/clock", h.resetDate)

	r.GET("/health", h.health)
}

// RequestLogger logs one line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.LogAttrs(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

// ─── Error Mapping ────────────────────────────────────────────────────────────

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidArgument),
		errors.Is(err, clock.ErrInvalidDateFormat):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrForeignLoan):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyBorrowed),
		errors.Is(err, services.ErrOutstandingPenalty),
		errors.Is(err, services.ErrUnpaidPenalty),
		errors.Is(err, services.ErrNothingDue),
		errors.Is(err, clock.ErrNotManual):
		return http.StatusConflict
	case errors.Is(err, services.ErrCatalogDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (h *LibraryHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var verr *services.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}
	if errors.Is(err, store.ErrIOFailure) || errors.Is(err, store.ErrCorruptData) {
		body["retryable"] = true
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, body)
}

// ─── Catalog ──────────────────────────────────────────────────────────────────

type createBookRequest struct {
	ISBN   string `json:"isbn" binding:"required"`
	Title  string `json:"title" binding:"required"`
	Author string `json:"author"`
}

func (h *LibraryHandler) createBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := h.svc.CreateBook(c.Request.Context(), req.ISBN, req.Title, req.Author)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *LibraryHandler) listBooks(c *gin.Context) {
	books, err := h.svc.ListBooks(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// ─── Circulation ──────────────────────────────────────────────────────────────

type borrowRequest struct {
	ISBN         string `json:"isbn" binding:"required"`
	Username     string `json:"username" binding:"required"`
	Title        string `json:"title"`
	DurationDays int    `json:"duration_days"`
}

func (h *LibraryHandler) borrowBook(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loan, err := h.svc.CheckoutBook(c.Request.Context(), services.CheckoutInput{
		ISBN:         req.ISBN,
		Username:     req.Username,
		Title:        req.Title,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

type returnRequest struct {
	Username string `json:"username" binding:"required"`
}

func (h *LibraryHandler) returnBook(c *gin.Context) {
	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loan, err := h.svc.ReturnBook(c.Request.Context(), c.Param("isbn"), req.Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

type payRequest struct {
	Username string `json:"username"`
}

func (h *LibraryHandler) payPenalty(c *gin.Context) {
	// The body is optional; without a username the borrower is not checked.
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	penalty, err := h.svc.PayPenalty(c.Request.Context(), c.Param("isbn"), req.Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, penalty)
}

func (h *LibraryHandler) reconcile(c *gin.Context) {
	res, err := h.svc.Reconcile()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *LibraryHandler) daysRemaining(c *gin.Context) {
	isbn := c.Param("isbn")
	days, err := h.svc.DaysRemaining(isbn)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isbn": isbn, "days_remaining": days})
}

func (h *LibraryHandler) daysOverdue(c *gin.Context) {
	isbn := c.Param("isbn")
	days, err := h.svc.DaysOverdue(isbn)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isbn": isbn, "days_overdue": days})
}

// ─── Borrower Views ───────────────────────────────────────────────────────────

func (h *LibraryHandler) borrowedBooks(c *gin.Context) {
	loans, err := h.svc.BorrowedBooks(c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

func (h *LibraryHandler) overdueBooks(c *gin.Context) {
	loans, err := h.svc.OverdueBooks(c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

func (h *LibraryHandler) transactionHistory(c *gin.Context) {
	loans, err := h.svc.TransactionHistory(c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

func (h *LibraryHandler) approachingDueDate(c *gin.Context) {
	threshold := -1
	if raw, ok := c.GetQuery("threshold"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be a non-negative number of days"})
			return
		}
		threshold = n
	}

	loans, err := h.svc.BooksApproachingDueDate(c.Param("username"), threshold)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loans)
}

func (h *LibraryHandler) penaltySummary(c *gin.Context) {
	summary, err := h.svc.PenaltySummary(c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ─── Record Maintenance ───────────────────────────────────────────────────────

func (h *LibraryHandler) deleteLoan(c *gin.Context) {
	if err := h.svc.DeleteLoan(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LibraryHandler) deletePenalty(c *gin.Context) {
	if err := h.svc.DeletePenalty(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ─── Clock ────────────────────────────────────────────────────────────────────

type setDateRequest struct {
	Date string `json:"date" binding:"required"`
}

func (h *LibraryHandler) setDate(c *gin.Context) {
	var req setDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.SetDate(req.Date); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": h.svc.Today().String()})
}

func (h *LibraryHandler) resetDate(c *gin.Context) {
	if err := h.svc.ResetDate(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": h.svc.Today().String()})
}

func (h *LibraryHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "date": h.svc.Today().String()})
}
