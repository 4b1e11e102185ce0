package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Will is an owner's document and the emails allowed to read it after the
// owner is finalized dead.
type Will struct {
	ID            uuid.UUID `json:"id"`
	OwnerEmail    string    `json:"owner_email"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	AllowedEmails []string  `json:"allowed_emails"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewWill(ownerEmail, title, content string, allowed []string, now time.Time) *Will {
	return &Will{
		ID:            uuid.New(),
		OwnerEmail:    ownerEmail,
		Title:         title,
		Content:       content,
		AllowedEmails: allowed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (w *Will) IsOwner(email string) bool {
	return w.OwnerEmail == email
}

func (w *Will) Allows(email string) bool {
	return slices.Contains(w.AllowedEmails, email)
}

// Clone returns a deep copy.
func (w *Will) Clone() *Will {
	c := *w
	c.AllowedEmails = slices.Clone(w.AllowedEmails)
	return &c
}
