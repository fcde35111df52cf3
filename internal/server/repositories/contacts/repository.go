package contacts

import (
	"context"

	"github.com/dmitrijs2005/contactbook/internal/server/models"
)

// ListFilter narrows and pages a contact listing. Empty string fields
// are ignored; non-empty ones match as case-insensitive substrings.
type ListFilter struct {
	FirstName string
	LastName  string
	Email     string
	Skip      int
	Limit     int
}

type Repository interface {
	Create(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	GetByID(ctx context.Context, userID int64, id int64) (*models.Contact, error)
	List(ctx context.Context, userID int64, filter ListFilter) ([]*models.Contact, error)
	Update(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	Delete(ctx context.Context, userID int64, id int64) error
	UpcomingBirthdays(ctx context.Context, userID int64, days int) ([]*models.Contact, error)
}
