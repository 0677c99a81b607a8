package book

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/bookshelf/internal/database"
)

// likeEscaper escapes LIKE wildcards using '!' as the escape character
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Repository handles book persistence. Every query that reads or changes a
// book is scoped to the owning user.
type Repository struct {
	db  *bun.DB
	now func() time.Time
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// List returns one page of userID's books and the total number they own
func (r *Repository) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Book, int, error) {
	var rows []database.Book
	total, err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("published_date DESC, created_at DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)

	if err != nil {
		return nil, 0, fmt.Errorf("failed to list books: %w", err)
	}

	return mapDBBooksToModel(rows), total, nil
}

// Create inserts a book owned by userID
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, b Book) (*Book, error) {
	now := r.now()
	dbBook := &database.Book{
		ID:            uuid.New(),
		UserID:        userID,
		Title:         b.Title,
		Author:        b.Author,
		Price:         b.Price,
		ISBN:          b.ISBN,
		PublishedDate: b.PublishedDate.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := r.db.NewInsert().
		Model(dbBook).
		Exec(ctx)

	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateISBN
		}
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	return mapDBBookToModel(dbBook), nil
}

// GetByID returns the book id if userID owns it
func (r *Repository) GetByID(ctx context.Context, userID, id uuid.UUID) (*Book, error) {
	dbBook := new(database.Book)
	err := r.db.NewSelect().
		Model(dbBook).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	return mapDBBookToModel(dbBook), nil
}

// Update overwrites the editable fields of a book owned by userID
func (r *Repository) Update(ctx context.Context, userID uuid.UUID, b Book) error {
	result, err := r.db.NewUpdate().
		Model((*database.Book)(nil)).
		Set("title = ?", b.Title).
		Set("author = ?", b.Author).
		Set("price = ?", b.Price).
		Set("isbn = ?", b.ISBN).
		Set("published_date = ?", b.PublishedDate.UTC()).
		Set("updated_at = ?", r.now()).
		Where("id = ?", b.ID).
		Where("user_id = ?", userID).
		Exec(ctx)

	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateISBN
		}
		return fmt.Errorf("failed to update book: %w", err)
	}

	return requireOneRow(result)
}

// Delete removes a book owned by userID
func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.NewDelete().
		Model((*database.Book)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}

	return requireOneRow(result)
}

// FilterByPrice returns userID's books priced within the inclusive bounds.
// A nil bound is open.
func (r *Repository) FilterByPrice(ctx context.Context, userID uuid.UUID, minPrice, maxPrice *float64) ([]Book, error) {
	var rows []database.Book
	q := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID)

	if minPrice != nil {
		q = q.Where("price >= ?", *minPrice)
	}
	if maxPrice != nil {
		q = q.Where("price <= ?", *maxPrice)
	}

	if err := q.OrderExpr("published_date DESC, created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to filter books: %w", err)
	}

	return mapDBBooksToModel(rows), nil
}

// Search matches query case-insensitively as a substring of title, author or isbn
func (r *Repository) Search(ctx context.Context, userID uuid.UUID, query string) ([]Book, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"

	var rows []database.Book
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(title) LIKE ? ESCAPE '!'", pattern).
				WhereOr("LOWER(author) LIKE ? ESCAPE '!'", pattern).
				WhereOr("LOWER(isbn) LIKE ? ESCAPE '!'", pattern)
		}).
		OrderExpr("published_date DESC, created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to search books: %w", err)
	}

	return mapDBBooksToModel(rows), nil
}

// Count returns how many books userID owns
func (r *Repository) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := r.db.NewSelect().
		Model((*database.Book)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)

	if err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}

	return count, nil
}

// ISBNTaken reports whether any user's book other than excludeID has isbn.
// ISBNs are unique across all users, so this is the one unscoped query.
func (r *Repository) ISBNTaken(ctx context.Context, isbn string, excludeID uuid.UUID) (bool, error) {
	q := r.db.NewSelect().
		Model((*database.Book)(nil)).
		Where("isbn = ?", isbn)

	if excludeID != uuid.Nil {
		q = q.Where("id <> ?", excludeID)
	}

	exists, err := q.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check isbn: %w", err)
	}

	return exists, nil
}

func requireOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func mapDBBookToModel(dbb *database.Book) *Book {
	return &Book{
		ID:            dbb.ID,
		UserID:        dbb.UserID,
		Title:         dbb.Title,
		Author:        dbb.Author,
		Price:         dbb.Price,
		ISBN:          dbb.ISBN,
		PublishedDate: dbb.PublishedDate,
		CreatedAt:     dbb.CreatedAt,
		UpdatedAt:     dbb.UpdatedAt,
	}
}

func mapDBBooksToModel(rows []database.Book) []Book {
	books := make([]Book, 0, len(rows))
	for i := range rows {
		books = append(books, *mapDBBookToModel(&rows[i]))
	}
	return books
}
