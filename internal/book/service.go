package book

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/bookshelf/internal/apperr"
	"github.com/redmonkez12/bookshelf/internal/logging"
	"github.com/redmonkez12/bookshelf/internal/sanitize"
	"github.com/redmonkez12/bookshelf/internal/validation"
)

var (
	ErrNotFound          = apperr.NotFound("Book not found")
	ErrDuplicateISBN     = apperr.Conflict("A book with this ISBN already exists")
	ErrEmptyQuery        = apperr.Validation("Search query cannot be empty")
	ErrInvalidPriceRange = apperr.Validation("Minimum price cannot be greater than maximum price")
)

// Service implements the book catalog of a single owner per call
type Service struct {
	repo      *Repository
	validator *validation.Validator
	now       func() time.Time
}

func NewService(repo *Repository, validator *validation.Validator) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		now:       time.Now,
	}
}

// List returns page (1-based) of the owner's books. Pages below 1 are
// treated as 1; pages past the end are empty.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	books, total, err := s.repo.List(ctx, ownerID, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}

	return &Page{
		Books:      books,
		Page:       page,
		TotalPages: (total + PageSize - 1) / PageSize,
		Total:      total,
	}, nil
}

// Add stores a new book for the owner
func (s *Service) Add(ctx context.Context, ownerID uuid.UUID, in Input) (*Book, error) {
	in = clean(in)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	if err := s.checkISBN(ctx, in.ISBN, uuid.Nil); err != nil {
		return nil, err
	}

	published := s.now()
	if in.PublishedDate != nil {
		published = *in.PublishedDate
	}

	b, err := s.repo.Create(ctx, ownerID, Book{
		Title:         in.Title,
		Author:        in.Author,
		Price:         in.Price,
		ISBN:          in.ISBN,
		PublishedDate: published,
	})
	if err != nil {
		return nil, err
	}

	logging.GetLoggerFromContext(ctx).Info("book added", "book_id", b.ID, "user_id", ownerID)
	return b, nil
}

// Get returns a book the owner holds
func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*Book, error) {
	return s.repo.GetByID(ctx, ownerID, id)
}

// Edit re-validates and overwrites one of the owner's books
func (s *Service) Edit(ctx context.Context, ownerID, id uuid.UUID, in Input) (*Book, error) {
	existing, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	in = clean(in)
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	if err := s.checkISBN(ctx, in.ISBN, id); err != nil {
		return nil, err
	}

	existing.Title = in.Title
	existing.Author = in.Author
	existing.Price = in.Price
	existing.ISBN = in.ISBN
	if in.PublishedDate != nil {
		existing.PublishedDate = *in.PublishedDate
	}

	if err := s.repo.Update(ctx, ownerID, *existing); err != nil {
		return nil, err
	}

	logging.GetLoggerFromContext(ctx).Info("book updated", "book_id", id, "user_id", ownerID)
	return existing, nil
}

// Delete removes one of the owner's books. A missing or foreign id yields
// ErrNotFound and changes nothing.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}

	logging.GetLoggerFromContext(ctx).Info("book deleted", "book_id", id, "user_id", ownerID)
	return nil
}

// Filter returns the owner's books priced within [minPrice, maxPrice]
func (s *Service) Filter(ctx context.Context, ownerID uuid.UUID, minPrice, maxPrice *float64) ([]Book, error) {
	if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
		return nil, ErrInvalidPriceRange
	}

	return s.repo.FilterByPrice(ctx, ownerID, minPrice, maxPrice)
}

// Search finds the owner's books whose title, author or isbn contain query
func (s *Service) Search(ctx context.Context, ownerID uuid.UUID, query string) ([]Book, error) {
	query = strings.TrimSpace(sanitize.Text(query))
	if query == "" {
		return nil, ErrEmptyQuery
	}

	return s.repo.Search(ctx, ownerID, query)
}

// Count returns the number of books the owner holds
func (s *Service) Count(ctx context.Context, ownerID uuid.UUID) (int, error) {
	return s.repo.Count(ctx, ownerID)
}

// checkISBN is a fast path for a friendly message. The unique index on
// books.isbn still rejects a concurrent duplicate.
func (s *Service) checkISBN(ctx context.Context, isbn string, excludeID uuid.UUID) error {
	taken, err := s.repo.ISBNTaken(ctx, isbn, excludeID)
	if err != nil {
		return fmt.Errorf("failed to check isbn: %w", err)
	}
	if taken {
		return ErrDuplicateISBN
	}
	return nil
}

func clean(in Input) Input {
	in.Title = sanitize.Text(in.Title)
	in.Author = sanitize.Text(in.Author)
	in.ISBN = sanitize.Text(in.ISBN)
	return in
}
