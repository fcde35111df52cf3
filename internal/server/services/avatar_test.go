package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/contactbook/internal/common"
	"github.com/dmitrijs2005/contactbook/internal/server/cache"
	"github.com/dmitrijs2005/contactbook/internal/server/models"
)

func newAvatarService(t *testing.T, repo *fakeUsersRepo, userCache *cache.UserCache) *AvatarService {
	t.Helper()
	db, _ := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })
	return NewAvatarService(db, &fakeRepoManager{u: repo}, userCache, discardLogger(), testConfig())
}

func stubPutObject(t *testing.T, result error) *s3.PutObjectInput {
	t.Helper()
	captured := &s3.PutObjectInput{}
	origPut := putObject
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		*captured = *in
		if result != nil {
			return nil, result
		}
		return &s3.PutObjectOutput{}, nil
	}
	origNew := newS3ClientFromConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}
	origLoad := loadDefaultAWSConfig
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	t.Cleanup(func() {
		putObject = origPut
		newS3ClientFromConfig = origNew
		loadDefaultAWSConfig = origLoad
	})
	return captured
}

func TestUpdateAvatar_UploadsAndStoresURL(t *testing.T) {
	captured := stubPutObject(t, nil)

	user := confirmedUser(t, "alice", "alice@x.com", "pw123456")
	repo := newFakeUsersRepo(user)
	userCache := cache.NewUserCache(cache.NewMemoryCache(), time.Minute)
	s := newAvatarService(t, repo, userCache)

	updated, err := s.UpdateAvatar(context.Background(), user, "me.png", strings.NewReader("img"))
	if err != nil {
		t.Fatalf("UpdateAvatar error: %v", err)
	}

	if *captured.Bucket != "avatars" {
		t.Fatalf("unexpected bucket: %s", *captured.Bucket)
	}
	if !strings.HasPrefix(*captured.Key, "avatars/alice/") || !strings.HasSuffix(*captured.Key, ".png") {
		t.Fatalf("unexpected key: %s", *captured.Key)
	}

	body, err := io.ReadAll(captured.Body)
	if err != nil || string(body) != "img" {
		t.Fatalf("unexpected body: %q (%v)", body, err)
	}

	if !strings.Contains(updated.Avatar, "/avatars/avatars/alice/") {
		t.Fatalf("unexpected avatar URL: %s", updated.Avatar)
	}

	cached, err := userCache.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("cache miss after avatar update: %v", err)
	}
	if cached.Avatar != updated.Avatar {
		t.Fatalf("cache not refreshed: %s", cached.Avatar)
	}
}

func TestUpdateAvatar_UploadError(t *testing.T) {
	stubPutObject(t, errors.New("s3 down"))

	user := confirmedUser(t, "alice", "alice@x.com", "pw123456")
	s := newAvatarService(t, newFakeUsersRepo(user), nil)

	if _, err := s.UpdateAvatar(context.Background(), user, "me.png", strings.NewReader("img")); !errors.Is(err, common.ErrorInternal) {
		t.Fatalf("expected ErrorInternal, got %v", err)
	}
	if user.Avatar != "" {
		t.Fatal("avatar updated despite upload failure")
	}
}

func TestUpdateAvatar_UnknownUser(t *testing.T) {
	stubPutObject(t, nil)

	ghost := &models.User{Username: "ghost", Email: "ghost@x.com"}
	s := newAvatarService(t, newFakeUsersRepo(), nil)

	if _, err := s.UpdateAvatar(context.Background(), ghost, "me.png", strings.NewReader("img")); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}
