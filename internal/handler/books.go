package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-lending/internal/lending"
	"github.com/iliyamo/library-lending/internal/repository"
)

// CatalogHandler serves the book catalog.  Reads are public; writes are
// mounted behind the admin role.
type CatalogHandler struct {
	Catalog *lending.Catalog
}

func NewCatalogHandler(catalog *lending.Catalog) *CatalogHandler {
	if catalog == nil {
		panic("nil catalog passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: catalog}
}

type addBookReq struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
	ISBN     string `json:"isbn"`
	Stock    int    `json:"stock"`
}

type patchBookReq struct {
	Title    *string `json:"title"`
	Author   *string `json:"author"`
	Category *string `json:"category"`
	ISBN     *string `json:"isbn"`
}

type stockReq struct {
	Delta *int `json:"delta"`
}

// List handles GET /v1/books.
func (h *CatalogHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	books, err := h.Catalog.List(ctx)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(books), "books": books})
}

// Get handles GET /v1/books/:id.
func (h *CatalogHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	book, err := h.Catalog.Get(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, book)
}

// Search handles GET /v1/books/search?q=.
func (h *CatalogHandler) Search(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	books, err := h.Catalog.Search(ctx, c.QueryParam("q"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(books), "books": books})
}

// Filter handles GET /v1/books/filter?category=.
func (h *CatalogHandler) Filter(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	books, err := h.Catalog.Filter(ctx, c.QueryParam("category"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(books), "books": books})
}

// Add handles POST /v1/books.
func (h *CatalogHandler) Add(c echo.Context) error {
	var req addBookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	book, err := h.Catalog.AddBook(ctx, lending.NewBook{
		Title:    req.Title,
		Author:   req.Author,
		Category: req.Category,
		ISBN:     req.ISBN,
		Stock:    req.Stock,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, book)
}

// Patch handles PATCH /v1/books/:id.  Only metadata is editable here;
// stock moves through POST /v1/books/:id/stock.
func (h *CatalogHandler) Patch(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	var req patchBookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	book, err := h.Catalog.UpdateBook(ctx, id, repository.BookPatch{
		Title:    req.Title,
		Author:   req.Author,
		Category: req.Category,
		ISBN:     req.ISBN,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, book)
}

// Delete handles DELETE /v1/books/:id and reports how many loans went
// with the book.
func (h *CatalogHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Catalog.DeleteBook(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": id, "deleted_loans": n})
}

// AdjustStock handles POST /v1/books/:id/stock with {"delta": n}.
func (h *CatalogHandler) AdjustStock(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid book id"})
	}
	var req stockReq
	if err := c.Bind(&req); err != nil || req.Delta == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "delta is required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	book, err := h.Catalog.AdjustStock(ctx, id, *req.Delta)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, book)
}
