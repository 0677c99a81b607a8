package book

import (
	"time"

	"github.com/google/uuid"
)

// PageSize is the number of books shown per home page
const PageSize = 5

type Book struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Price         float64   `json:"price"`
	ISBN          string    `json:"isbn"`
	PublishedDate time.Time `json:"published_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Input is the add/edit book form
type Input struct {
	Title  string  `form:"title" validate:"required,min=3,max=100"`
	Author string  `form:"author" validate:"required,min=3,max=50"`
	Price  float64 `form:"price" validate:"gt=0"`
	ISBN   string  `form:"isbn" validate:"required,max=20"`
	// PublishedDate defaults to now on add and is left unchanged on edit when nil
	PublishedDate *time.Time `form:"publishedDate"`
}

// Page is one page of a user's books, newest published first
type Page struct {
	Books      []Book
	Page       int
	TotalPages int
	Total      int
}
