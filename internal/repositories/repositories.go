package repositories

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"loanledger/internal/models"
)

// BookRepository is the catalog the circulation service consults for titles
// and availability. Every method takes an optional *gorm.DB so it can join a
// caller's transaction; nil means the repository's own connection.
type BookRepository interface {
	Create(ctx context.Context, db *gorm.DB, book *models.Book) error
	List(ctx context.Context, db *gorm.DB) ([]models.Book, error)
	GetByISBN(ctx context.Context, db *gorm.DB, isbn string) (*models.Book, error)
	GetByISBNForUpdate(ctx context.Context, db *gorm.DB, isbn string) (*models.Book, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, isbn string, status models.BookStatus) error
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// concrete implementation

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if db == nil {
		db = r.db
	}
	return db.WithContext(ctx)
}

func (r *bookRepository) Create(ctx context.Context, db *gorm.DB, book *models.Book) error {
	if book.Status == "" {
		book.Status = models.BookStatusAvailable
	}
	return r.conn(ctx, db).Create(book).Error
}

func (r *bookRepository) List(ctx context.Context, db *gorm.DB) ([]models.Book, error) {
	var books []models.Book
	if err := r.conn(ctx, db).Order("title ASC").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

func (r *bookRepository) GetByISBN(ctx context.Context, db *gorm.DB, isbn string) (*models.Book, error) {
	var book models.Book
	if err := r.conn(ctx, db).First(&book, "isbn = ?", isbn).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// GetByISBNForUpdate locks the book row until the surrounding transaction ends.
func (r *bookRepository) GetByISBNForUpdate(ctx context.Context, db *gorm.DB, isbn string) (*models.Book, error) {
	var book models.Book
	err := r.conn(ctx, db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&book, "isbn = ?", isbn).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) UpdateStatus(ctx context.Context, db *gorm.DB, isbn string, status models.BookStatus) error {
	res := r.conn(ctx, db).Model(&models.Book{}).
		Where("isbn = ?", isbn).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *bookRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
