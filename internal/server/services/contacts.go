package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/contactbook/internal/common"
	"github.com/dmitrijs2005/contactbook/internal/server/models"
	"github.com/dmitrijs2005/contactbook/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/contactbook/internal/server/repositories/repomanager"
)

// defaultPageLimit caps unpaginated listings.
const defaultPageLimit = 100

// ContactService exposes per-user contact CRUD. Every operation is scoped to
// the owning user; a contact belonging to someone else is indistinguishable
// from a missing one.
type ContactService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewContactService(db *sql.DB, m repomanager.RepositoryManager) *ContactService {
	return &ContactService{db: db, repomanager: m}
}

func (s *ContactService) Create(ctx context.Context, userID int64, contact *models.Contact) (*models.Contact, error) {

	contact.UserID = userID

	repo := s.repomanager.Contacts(s.db)

	contact, err := repo.Create(ctx, contact)
	if err != nil {
		return nil, fmt.Errorf("error creating contact: %w", err)
	}

	return contact, nil
}

func (s *ContactService) Get(ctx context.Context, userID int64, id int64) (*models.Contact, error) {

	repo := s.repomanager.Contacts(s.db)

	contact, err := repo.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}

	return contact, nil
}

func (s *ContactService) List(ctx context.Context, userID int64, filter contacts.ListFilter) ([]*models.Contact, error) {

	if filter.Limit <= 0 {
		filter.Limit = defaultPageLimit
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}

	repo := s.repomanager.Contacts(s.db)

	result, err := repo.List(ctx, userID, filter)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return result, nil
}

func (s *ContactService) Update(ctx context.Context, userID int64, contact *models.Contact) (*models.Contact, error) {

	contact.UserID = userID

	repo := s.repomanager.Contacts(s.db)

	contact, err := repo.Update(ctx, contact)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}

	return contact, nil
}

func (s *ContactService) Delete(ctx context.Context, userID int64, id int64) error {

	repo := s.repomanager.Contacts(s.db)

	err := repo.Delete(ctx, userID, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}

	return nil
}

// UpcomingBirthdays lists contacts whose birthday falls within the next
// `days` calendar days, year ignored.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, userID int64, days int) ([]*models.Contact, error) {

	repo := s.repomanager.Contacts(s.db)

	result, err := repo.UpcomingBirthdays(ctx, userID, days)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return result, nil
}
