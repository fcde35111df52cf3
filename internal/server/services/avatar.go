package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/contactbook/internal/common"
	"github.com/dmitrijs2005/contactbook/internal/logging"
	"github.com/dmitrijs2005/contactbook/internal/server/cache"
	sc "github.com/dmitrijs2005/contactbook/internal/server/config"
	"github.com/dmitrijs2005/contactbook/internal/server/models"
	"github.com/dmitrijs2005/contactbook/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
)

// AvatarService stores uploaded avatar images in an S3-compatible bucket and
// records the resulting public URL on the user row.
type AvatarService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       *cache.UserCache
	logger      logging.Logger
	config      *sc.Config
}

func NewAvatarService(db *sql.DB, m repomanager.RepositoryManager, userCache *cache.UserCache,
	logger logging.Logger, cfg *sc.Config) *AvatarService {
	return &AvatarService{
		db:          db,
		repomanager: m,
		cache:       userCache,
		logger:      logger,
		config:      cfg,
	}
}

// avatarStorageKey keeps the original extension but not the original name.
func avatarStorageKey(username, filename string) string {
	return fmt.Sprintf("avatars/%s/%v%s", username, uuid.New(), filepath.Ext(filename))
}

func (s *AvatarService) getS3Client() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, nil
}

// objectURL builds the path-style public URL of a stored object.
func (s *AvatarService) objectURL(key string) string {
	base := strings.TrimRight(s.config.S3BaseEndpoint, "/")
	return fmt.Sprintf("%s/%s/%s", base, s.config.S3Bucket, key)
}

// UpdateAvatar uploads the image and points the user record at it, returning
// the updated user.
func (s *AvatarService) UpdateAvatar(ctx context.Context, user *models.User, filename string, r io.Reader) (*models.User, error) {

	client, err := s.getS3Client()
	if err != nil {
		return nil, common.ErrorInternal
	}

	bucket := s.config.S3Bucket
	key := avatarStorageKey(user.Username, filename)

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   r,
	})
	if err != nil {
		s.logger.Error(ctx, "avatar upload failed", "error", err)
		return nil, common.ErrorInternal
	}

	repo := s.repomanager.Users(s.db)

	updated, err := repo.UpdateAvatarURL(ctx, user.Email, s.objectURL(key))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}

	if s.cache != nil {
		if err := s.cache.SetUser(ctx, updated); err != nil {
			s.logger.Warn(ctx, "cache write failed", "error", err)
		}
	}

	return updated, nil
}
