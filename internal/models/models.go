package models

import (
	"time"

	"github.com/google/uuid"
)

type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"
	LoanStatusReturned LoanStatus = "returned"
)

// Subscriber is a library member. ActiveLoans and LoanHistory are not stored;
// they are filled from the loans table on read.
type Subscriber struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string    `gorm:"size:255" json:"name"`
	FirstName    string    `gorm:"size:255" json:"first_name"`
	Email        string    `gorm:"size:255" json:"email"`
	Address      string    `gorm:"size:512" json:"address"`
	Phone        string    `gorm:"size:64" json:"phone"`
	RegisteredAt Timestamp `gorm:"not null" json:"registered_at"`
	ActiveLoans  []string  `gorm:"-" json:"active_loans"`
	LoanHistory  []string  `gorm:"-" json:"loan_history"`
}

// Document is a catalog item. Loans is derived from the loans table on read.
type Document struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title       string     `gorm:"size:512;not null" json:"title"`
	Author      string     `gorm:"size:255;not null" json:"author"`
	Type        string     `gorm:"size:128;not null;index" json:"type"`
	ISBN        string     `gorm:"size:32" json:"isbn,omitempty"`
	PublishedAt *Timestamp `json:"published_at,omitempty"`
	Available   bool       `gorm:"not null;index" json:"available"`
	CreatedAt   Timestamp  `gorm:"not null" json:"created_at"`
	Loans       []string   `gorm:"-" json:"loans"`
}

type Loan struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SubscriberID uuid.UUID  `gorm:"type:uuid;not null;index" json:"subscriber_id"`
	DocumentID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"document_id"`
	LoanedAt     Timestamp  `gorm:"not null;index" json:"loaned_at"`
	DueAt        Timestamp  `gorm:"not null;index" json:"due_at"`
	ReturnedAt   *Timestamp `json:"returned_at"`
	Status       LoanStatus `gorm:"size:16;not null;index" json:"status"`
}

// IsOverdue reports whether the loan is still active and its due date is strictly before now.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanStatusActive && l.DueAt.Before(now)
}

// LoanRef is the projection used to derive the loan lists of subscribers and documents.
type LoanRef struct {
	ID           uuid.UUID
	SubscriberID uuid.UUID
	DocumentID   uuid.UUID
	Status       LoanStatus
}

// SubscriberSnapshot is a subscriber embedded in a loan view, without its id.
type SubscriberSnapshot struct {
	Name         string    `json:"name"`
	FirstName    string    `json:"first_name"`
	Email        string    `json:"email"`
	Address      string    `json:"address"`
	Phone        string    `json:"phone"`
	RegisteredAt Timestamp `json:"registered_at"`
}

// DocumentSnapshot is a document embedded in a loan view, without its id.
type DocumentSnapshot struct {
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Type        string     `json:"type"`
	ISBN        string     `json:"isbn,omitempty"`
	PublishedAt *Timestamp `json:"published_at,omitempty"`
	Available   bool       `json:"available"`
}

func (s *Subscriber) Snapshot() *SubscriberSnapshot {
	return &SubscriberSnapshot{
		Name:         s.Name,
		FirstName:    s.FirstName,
		Email:        s.Email,
		Address:      s.Address,
		Phone:        s.Phone,
		RegisteredAt: s.RegisteredAt,
	}
}

func (d *Document) Snapshot() *DocumentSnapshot {
	return &DocumentSnapshot{
		Title:       d.Title,
		Author:      d.Author,
		Type:        d.Type,
		ISBN:        d.ISBN,
		PublishedAt: d.PublishedAt,
		Available:   d.Available,
	}
}

// LoanView is a loan enriched with live snapshots of its subscriber and document.
// A missing subscriber or document leaves the matching field nil.
type LoanView struct {
	Loan
	Overdue    bool                `json:"overdue"`
	Subscriber *SubscriberSnapshot `json:"subscriber"`
	Document   *DocumentSnapshot   `json:"document"`
}

// SubscriberPatch holds the fields of a merge-patch; nil fields are left unchanged.
type SubscriberPatch struct {
	Name      *string
	FirstName *string
	Email     *string
	Address   *string
	Phone     *string
}

// Columns returns the column/value pairs set by the patch.
func (p SubscriberPatch) Columns() map[string]any {
	cols := map[string]any{}
	setString(cols, "name", p.Name)
	setString(cols, "first_name", p.FirstName)
	setString(cols, "email", p.Email)
	setString(cols, "address", p.Address)
	setString(cols, "phone", p.Phone)
	return cols
}

// DocumentPatch holds the fields of a merge-patch; nil fields are left unchanged.
type DocumentPatch struct {
	Title       *string
	Author      *string
	Type        *string
	ISBN        *string
	PublishedAt *Timestamp
}

// Columns returns the column/value pairs set by the patch.
func (p DocumentPatch) Columns() map[string]any {
	cols := map[string]any{}
	setString(cols, "title", p.Title)
	setString(cols, "author", p.Author)
	setString(cols, "type", p.Type)
	setString(cols, "isbn", p.ISBN)
	if p.PublishedAt != nil {
		cols["published_at"] = *p.PublishedAt
	}
	return cols
}

func setString(cols map[string]any, column string, v *string) {
	if v != nil {
		cols[column] = *v
	}
}

// Stats is the library-wide rollup served by the statistics aggregator.
type Stats struct {
	TotalDocuments     int64 `json:"total_documents"`
	AvailableDocuments int64 `json:"available_documents"`
	LoanedDocuments    int64 `json:"loaned_documents"`
	TotalSubscribers   int64 `json:"total_subscribers"`
	ActiveLoans        int64 `json:"active_loans"`
	OverdueLoans       int64 `json:"overdue_loans"`
}

type DocumentStats struct {
	Total     int64            `json:"total"`
	Available int64            `json:"available"`
	Loaned    int64            `json:"loaned"`
	ByType    map[string]int64 `json:"by_type"`
}
