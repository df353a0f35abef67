package domain

import (
	"slices"
	"time"
)

// SharedOrderID is the fixed key of the one shared order every terminal reads and writes.
const SharedOrderID = 1

type Category string

const (
	CategoryFood  Category = "food"
	CategoryDrink Category = "drink"
	CategorySnack Category = "snack"
)

func (c Category) Valid() bool {
	return c == CategoryFood || c == CategoryDrink || c == CategorySnack
}

type Product struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Category Category `json:"category"`
	ImageURL string   `json:"img,omitempty"`
}

// CartLine is one product in the shared order. UnitPrice is in the minor currency unit.
type CartLine struct {
	ProductID int64    `json:"id" bson:"product_id"`
	Name      string   `json:"name" bson:"name"`
	UnitPrice int64    `json:"price" bson:"price"`
	Quantity  int      `json:"quantity" bson:"quantity"`
	Category  Category `json:"category" bson:"category"`
}

func (l CartLine) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

type SharedOrderState struct {
	ID        int        `json:"id" bson:"_id"`
	Lines     []CartLine `json:"cart" bson:"cart"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

// NewSharedOrder returns the singleton order holding a copy of lines.
func NewSharedOrder(lines []CartLine, updatedAt time.Time) SharedOrderState {
	return SharedOrderState{
		ID:        SharedOrderID,
		Lines:     CloneLines(lines),
		UpdatedAt: updatedAt,
	}
}

func (s SharedOrderState) Total() int64 {
	return Total(s.Lines)
}

func (s SharedOrderState) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Total is the sum of unit price times quantity over lines.
func Total(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}

// CloneLines never returns nil so encoded documents always carry an array.
func CloneLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}

func LinesEqual(a, b []CartLine) bool {
	return slices.Equal(a, b)
}
