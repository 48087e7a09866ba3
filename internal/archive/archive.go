// Package archive stores recorded audio in Azure Blob Storage.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// Prefix is the folder all recordings are stored under.
const Prefix = "audio_recordings"

const contentType = "audio/webm"

// blobAPI is the subset of *azblob.Client used here.
type blobAPI interface {
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	DeleteBlob(ctx context.Context, containerName, blobName string, o *azblob.DeleteBlobOptions) (azblob.DeleteBlobResponse, error)
}

// Config configures a Blob archive.
type Config struct {
	ConnectionString string
	Container        string
	// UserID scopes blob names.
	UserID string
	Logger *slog.Logger
}

// Blob uploads recordings to one container.
type Blob struct {
	api       blobAPI
	container string
	userID    string
	logger    *slog.Logger
}

// New connects to the storage account and makes sure the container exists.
func New(ctx context.Context, cfg Config) (*Blob, error) {
	if cfg.ConnectionString == "" {
		return nil, errors.New("archive: connection string is required")
	}
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("archive: create client: %w", err)
	}
	b := newBlob(client, cfg)
	if err := b.ensureContainer(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func newBlob(api blobAPI, cfg Config) *Blob {
	container := cfg.Container
	if container == "" {
		container = "podium"
	}
	userID := cfg.UserID
	if userID == "" {
		userID = "local"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Blob{
		api:       api,
		container: container,
		userID:    userID,
		logger:    logger.With("component", "archive"),
	}
}

func (b *Blob) ensureContainer(ctx context.Context) error {
	_, err := b.api.CreateContainer(ctx, b.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("archive: create container %s: %w", b.container, err)
	}
	return nil
}

// Archive uploads data and returns the blob name it was stored under.
func (b *Blob) Archive(ctx context.Context, sessionID string, data []byte, at time.Time) (string, error) {
	if len(data) == 0 {
		return "", errors.New("archive: empty recording")
	}
	name := Name(b.userID, sessionID, at)
	ct := contentType
	_, err := b.api.UploadBuffer(ctx, b.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
	})
	if err != nil {
		return "", fmt.Errorf("archive: upload %s: %w", name, err)
	}
	b.logger.Info("audio archived", "blob", name, "bytes", len(data))
	return name, nil
}

// Delete removes a stored recording. A missing blob is not an error.
func (b *Blob) Delete(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	_, err := b.api.DeleteBlob(ctx, b.container, name, nil)
	if err == nil || isNotFound(err) {
		return nil
	}
	return fmt.Errorf("archive: delete %s: %w", name, err)
}

func isNotFound(err error) bool {
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return true
	}
	var re *azcore.ResponseError
	return errors.As(err, &re) && re.StatusCode == 404
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Name builds audio_recordings/<user>/<session>_<unix millis>.webm.
func Name(userID, sessionID string, at time.Time) string {
	user := clean(userID, "local")
	session := clean(sessionID, "recording")
	file := session + "_" + strconv.FormatInt(at.UnixMilli(), 10) + ".webm"
	return path.Join(Prefix, user, file)
}

func clean(s, fallback string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == ".." {
		return fallback
	}
	return s
}
