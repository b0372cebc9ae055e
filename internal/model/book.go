package model

// Book is a catalog title together with its pooled lending stock.
// Stock counts copies currently on the shelf; Available mirrors
// Stock > 0 and is maintained by every statement that touches stock.
type Book struct {
	ID        uint64 `json:"id" db:"id"`               // books.id
	Title     string `json:"title" db:"title"`         // books.title
	Author    string `json:"author" db:"author"`       // books.author
	Category  string `json:"category" db:"category"`   // books.category
	ISBN      string `json:"isbn" db:"isbn"`           // books.isbn (unique)
	Stock     int    `json:"stock" db:"stock"`         // books.stock (>= 0)
	Available bool   `json:"available" db:"available"` // books.available
}

// StockSnapshot is the {stock, available} pair returned by ledger updates.
type StockSnapshot struct {
	Stock     int  `json:"stock"`
	Available bool `json:"available"`
}

// Snapshot returns the book's current stock pair.
func (b Book) Snapshot() StockSnapshot {
	return StockSnapshot{Stock: b.Stock, Available: b.Available}
}
