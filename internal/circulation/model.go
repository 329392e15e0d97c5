// Package circulation implements the borrow/return desk.
//
// The borrowing-record log is the source of truth for who holds what.
// Book.BorrowedBy and Book.DueDate are a projection of the most recent
// active record for the book and are recomputed on every transition.
package circulation

import (
	"time"
)

// Status is the lifecycle state of a borrowing record.
type Status string

const (
	StatusBorrowed Status = "borrowed"
	StatusReturned Status = "returned"
)

// Purpose is why a patron borrows a book.
type Purpose string

const (
	PurposePersonal Purpose = "personal"
	PurposeAcademic Purpose = "academic"
	PurposeResearch Purpose = "research"
	PurposeOther    Purpose = "other"
)

// Condition is the state a book is returned in.
type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
	ConditionDamaged   Condition = "damaged"
)

// Record is one loan, from borrow to return.
type Record struct {
	ID         string     `json:"id"`
	RemoteID   string     `json:"remoteId,omitempty"`
	Version    int64      `json:"version,omitempty"`
	BookID     string     `json:"bookId"`
	UserID     string     `json:"userId"`
	BorrowDate time.Time  `json:"borrowDate"`
	DueDate    time.Time  `json:"dueDate"`
	Status     Status     `json:"status"`
	ReturnDate *time.Time `json:"returnDate"`
	Condition  Condition  `json:"condition,omitempty"`
	Purpose    Purpose    `json:"purpose,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	Feedback   string     `json:"feedback,omitempty"`
	Fine       float64    `json:"fine,omitempty"`
	CreatedAt  string     `json:"createdAt,omitempty"`
}

func (r Record) DedupKey() string  { return r.ID }
func (r Record) DocID() string     { return r.RemoteID }
func (r Record) DocVersion() int64 { return r.Version }

// WithDoc attaches remote identity.
func (r Record) WithDoc(id string, version int64) Record {
	r.RemoteID = id
	r.Version = version
	if r.ID == "" {
		r.ID = id
	}
	return r
}

// Active reports whether the loan is still open.
func (r Record) Active() bool { return r.Status == StatusBorrowed }

// Intent is what the patron states when borrowing.
type Intent struct {
	Purpose Purpose `validate:"required,oneof=personal academic research other"`
	Notes   string  `validate:"required_if=Purpose other"`
}

// ReturnForm is what the patron states when returning.
type ReturnForm struct {
	Condition Condition `validate:"required,oneof=excellent good fair poor damaged"`
	Feedback  string    `validate:"required_if=Condition poor,required_if=Condition damaged"`
}
