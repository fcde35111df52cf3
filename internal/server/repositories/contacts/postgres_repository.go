package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/contactbook/internal/common"
	"github.com/dmitrijs2005/contactbook/internal/dbx"
	"github.com/dmitrijs2005/contactbook/internal/server/models"
)

const contactColumns = `id, user_id, first_name, last_name, email, phone, birthday, COALESCE(extra_info, '')`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanContact(row *sql.Row) (*models.Contact, error) {
	contact := &models.Contact{}
	err := row.Scan(&contact.ID, &contact.UserID, &contact.FirstName, &contact.LastName,
		&contact.Email, &contact.Phone, &contact.Birthday, &contact.ExtraInfo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return contact, nil
}

func (r *PostgresRepository) Create(ctx context.Context, contact *models.Contact) (*models.Contact, error) {

	query :=
		`INSERT INTO contacts (user_id, first_name, last_name, email, phone, birthday, extra_info)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		contact.UserID, contact.FirstName, contact.LastName, contact.Email,
		contact.Phone, contact.Birthday, contact.ExtraInfo).
		Scan(&contact.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return contact, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID int64, id int64) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = $1 AND id = $2`
	return scanContact(r.db.QueryRowContext(ctx, query, userID, id))
}

func (r *PostgresRepository) List(ctx context.Context, userID int64, filter ListFilter) ([]*models.Contact, error) {

	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = $1`
	args := []any{userID}

	if filter.FirstName != "" {
		args = append(args, "%"+filter.FirstName+"%")
		query += fmt.Sprintf(" AND first_name ILIKE $%d", len(args))
	}
	if filter.LastName != "" {
		args = append(args, "%"+filter.LastName+"%")
		query += fmt.Sprintf(" AND last_name ILIKE $%d", len(args))
	}
	if filter.Email != "" {
		args = append(args, "%"+filter.Email+"%")
		query += fmt.Sprintf(" AND email ILIKE $%d", len(args))
	}

	args = append(args, filter.Skip, filter.Limit)
	query += fmt.Sprintf(" ORDER BY id OFFSET $%d LIMIT $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return collectContacts(rows)
}

func (r *PostgresRepository) Update(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	query :=
		`UPDATE contacts
		 SET first_name = $3, last_name = $4, email = $5, phone = $6, birthday = $7, extra_info = NULLIF($8, '')
		 WHERE user_id = $1 AND id = $2
		 RETURNING ` + contactColumns

	return scanContact(r.db.QueryRowContext(ctx, query,
		contact.UserID, contact.ID, contact.FirstName, contact.LastName,
		contact.Email, contact.Phone, contact.Birthday, contact.ExtraInfo))
}

func (r *PostgresRepository) Delete(ctx context.Context, userID int64, id int64) error {
	query := `DELETE FROM contacts WHERE user_id = $1 AND id = $2`

	res, err := r.db.ExecContext(ctx, query, userID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// UpcomingBirthdays compares month-day strings so that only the calendar
// date matters, with a wrap branch for windows crossing the new year.
func (r *PostgresRepository) UpcomingBirthdays(ctx context.Context, userID int64, days int) ([]*models.Contact, error) {

	query := `SELECT ` + contactColumns + ` FROM contacts
		 WHERE user_id = $1
		   AND (
		     CASE WHEN to_char(CURRENT_DATE, 'MMDD') <= to_char(CURRENT_DATE + $2 * INTERVAL '1 day', 'MMDD')
		       THEN to_char(birthday, 'MMDD') BETWEEN to_char(CURRENT_DATE, 'MMDD') AND to_char(CURRENT_DATE + $2 * INTERVAL '1 day', 'MMDD')
		       ELSE to_char(birthday, 'MMDD') >= to_char(CURRENT_DATE, 'MMDD')
		         OR to_char(birthday, 'MMDD') <= to_char(CURRENT_DATE + $2 * INTERVAL '1 day', 'MMDD')
		     END
		   )
		 ORDER BY to_char(birthday, 'MMDD')`

	rows, err := r.db.QueryContext(ctx, query, userID, days)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return collectContacts(rows)
}

func collectContacts(rows *sql.Rows) ([]*models.Contact, error) {
	result := []*models.Contact{}
	for rows.Next() {
		contact := &models.Contact{}
		err := rows.Scan(&contact.ID, &contact.UserID, &contact.FirstName, &contact.LastName,
			&contact.Email, &contact.Phone, &contact.Birthday, &contact.ExtraInfo)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
