package users

import (
	"context"

	"github.com/dmitrijs2005/contactbook/internal/server/models"
)

// Repository is the user directory: the authoritative store of identity
// records.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateRefreshToken stores the user's single live refresh token,
	// superseding any prior value. A nil token clears the slot.
	UpdateRefreshToken(ctx context.Context, username string, token *string) error

	// ConfirmEmail marks the user's email as confirmed.
	ConfirmEmail(ctx context.Context, email string) error

	// UpdateAvatarURL replaces the user's avatar URL.
	UpdateAvatarURL(ctx context.Context, email string, url string) (*models.User, error)

	// UpdatePassword stores a new password hash and clears the refresh
	// token, forcing re-login on all devices.
	UpdatePassword(ctx context.Context, email string, passwordHash string) error
}
