package book

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/bookshelf/internal/apperr"
	"github.com/redmonkez12/bookshelf/internal/auth"
	"github.com/redmonkez12/bookshelf/internal/httputil"
	"github.com/redmonkez12/bookshelf/internal/web"
)

const homePath = "/home"

// Handler contains HTTP handlers for the book pages. All routes run behind
// auth.Middleware.RequireAuth and LoadUser.
type Handler struct {
	service  *Service
	renderer *web.Renderer
}

func NewHandler(service *Service, renderer *web.Renderer) *Handler {
	return &Handler{service: service, renderer: renderer}
}

type homeData struct {
	Heading    string
	Books      []Book
	Page       int
	TotalPages int
	Query      string
	MinPrice   string
	MaxPrice   string
	Narrowed   bool
}

type formData struct {
	Action string
	Book   Book
}

// Home lists the current page of the user's books
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.Redirect(w, r, auth.LoginPath, "")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	result, err := h.service.List(r.Context(), u.ID, page)
	if err != nil {
		httputil.Fail(w, r, homePath, err)
		return
	}

	h.renderer.Render(w, r, "home", web.Page{
		Title: "My Books",
		User:  u,
		Data: homeData{
			Heading:    "My Books",
			Books:      result.Books,
			Page:       result.Page,
			TotalPages: result.TotalPages,
		},
	})
}

func (h *Handler) AddBookPage(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.UserFromContext(r.Context())
	h.renderer.Render(w, r, "book_form", web.Page{
		Title: "Add Book",
		User:  u,
		Data:  formData{Action: "/addBook"},
	})
}

func (h *Handler) AddBook(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.Redirect(w, r, auth.LoginPath, "")
		return
	}

	in, err := parseInput(r)
	if err != nil {
		httputil.Fail(w, r, "/addBook", err)
		return
	}

	if _, err := h.service.Add(r.Context(), u.ID, in); err != nil {
		httputil.Fail(w, r, "/addBook", err)
		return
	}

	httputil.Redirect(w, r, homePath, "Book added successfully")
}

func (h *Handler) EditBookPage(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.Redirect(w, r, auth.LoginPath, "")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(w, r, homePath, ErrNotFound)
		return
	}

	b, err := h.service.Get(r.Context(), u.ID, id)
	if err != nil {
		httputil.Fail(w, r, homePath, err)
		return
	}

	h.renderer.Render(w, r, "book_form", web.Page{
		Title: "Edit Book",
		User:  u,
		Data:  formData{Action: "/editBook/" + b.ID.String(), Book: *b},
	})
}

func (h *Handler) EditBook(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.Redirect(w, r, auth.LoginPath, "")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(w, r, homePath, ErrNotFound)
		return
	}
	formPath := "/editBook/" + id.String()

	in, err := parseInput(r)
	if err != nil {
		httputil.Fail(w, r, formPath, err)
		return
	}

	if _, err := h.service.Edit(r.Context(), u.ID, id, in); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			formPath = homePath
		}
		httputil.Fail(w, r, formPath, err)
		return
	}

	httputil.Redirect(w, r, homePath, "Book updated successfully")
}

func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.Redirect(w, r, auth.LoginPath, "")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(w, r, homePath, ErrNotFound)
		return
	}

	if err := h.service.Delete(r.Context(), u.ID, id); err != nil {
		httputil.Fail(w, r, homePath, err)
		return
	}

	httputil.Redirect(w, r, homePath, "Book deleted successfully")
}

// Filter renders the books within the submitted price range
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.Redirect(w, r, auth.LoginPath, "")
		return
	}

	rawMin := strings.TrimSpace(r.PostFormValue("minPrice"))
	rawMax := strings.TrimSpace(r.PostFormValue("maxPrice"))

	minPrice, err := parseOptionalPrice(rawMin, "minPrice")
	if err != nil {
		httputil.Fail(w, r, homePath, err)
		return
	}
	maxPrice, err := parseOptionalPrice(rawMax, "maxPrice")
	if err != nil {
		httputil.Fail(w, r, homePath, err)
		return
	}

	books, err := h.service.Filter(r.Context(), u.ID, minPrice, maxPrice)
	if err != nil {
		httputil.Fail(w, r, homePath, err)
		return
	}

	h.renderer.Render(w, r, "home", web.Page{
		Title: "Filtered Books",
		User:  u,
		Data: homeData{
			Heading:  "Filtered Books",
			Books:    books,
			MinPrice: rawMin,
			MaxPrice: rawMax,
			Narrowed: true,
		},
	})
}

// Search renders the books matching the submitted query
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.Redirect(w, r, auth.LoginPath, "")
		return
	}

	query := r.PostFormValue("q")

	books, err := h.service.Search(r.Context(), u.ID, query)
	if err != nil {
		httputil.Fail(w, r, homePath, err)
		return
	}

	h.renderer.Render(w, r, "home", web.Page{
		Title: "Search Results",
		User:  u,
		Data: homeData{
			Heading:  "Search Results",
			Books:    books,
			Query:    strings.TrimSpace(query),
			Narrowed: true,
		},
	})
}

func parseInput(r *http.Request) (Input, error) {
	in := Input{
		Title:  r.PostFormValue("title"),
		Author: r.PostFormValue("author"),
		ISBN:   r.PostFormValue("isbn"),
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("price")), 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
		return Input{}, apperr.Validation("price must be a positive number")
	}
	in.Price = price

	if raw := strings.TrimSpace(r.PostFormValue("publishedDate")); raw != "" {
		published, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return Input{}, apperr.Validation("publishedDate must be a valid date")
		}
		in.PublishedDate = &published
	}

	return in, nil
}

func parseOptionalPrice(raw, field string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperr.Validation(field + " must be a non-negative number")
	}

	return &v, nil
}
