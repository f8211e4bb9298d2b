package upload

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"automax/internal/database"
	"automax/internal/storage"
)

// DefaultMaxFileSize applies when the service is built with a zero limit.
const DefaultMaxFileSize = 10 * 1024 * 1024

const (
	sniffLen           = 512
	maxReserveAttempts = 5

	// records younger than this may still be waiting for their bytes
	pruneGrace = time.Hour
)

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var attachmentMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"video/webm":      true,
	"application/pdf": true,
}

// fieldMimeTypes lists the accepted content types per attachment field.
var fieldMimeTypes = map[string]map[string]bool{
	FieldProfilePhoto: imageMimeTypes,
	FieldAttachment:   attachmentMimeTypes,
}

// Service stores uploaded files under the owner's directory and records
// them in the database.
type Service struct {
	repo     Repository
	store    storage.Storage
	uploadTo UploadTo
	maxSize  int64
	now      func() time.Time
}

func NewService(repo Repository, store storage.Storage, maxSize int64) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Service{
		repo:     repo,
		store:    store,
		uploadTo: UserDirectoryPath,
		maxSize:  maxSize,
		now:      time.Now,
	}
}

// WithUploadTo swaps the path resolver.
func (s *Service) WithUploadTo(fn UploadTo) *Service {
	s.uploadTo = fn
	return s
}

func (s *Service) MaxFileSize() int64 { return s.maxSize }

// Upload validates the file, writes it to user_<id>/<filename> (suffixed
// when taken) and records it.
func (s *Service) Upload(ctx context.Context, owner *UploadOwner, field string, fileHeader *multipart.FileHeader) (*Upload, error) {
	if owner == nil {
		return nil, ErrOwnerMissing
	}
	allowed, ok := fieldMimeTypes[field]
	if !ok {
		return nil, ErrUnknownField
	}
	if fileHeader.Size == 0 {
		return nil, ErrEmptyFile
	}
	if fileHeader.Size > s.maxSize {
		return nil, ErrFileTooLarge
	}
	if strings.TrimSpace(fileHeader.Filename) == "" {
		return nil, ErrEmptyFilename
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	mimeType, err := sniffMimeType(file)
	if err != nil {
		return nil, err
	}
	if !allowed[mimeType] {
		return nil, ErrInvalidMimeType
	}

	checksum, err := fileChecksum(file)
	if err != nil {
		return nil, err
	}

	rec := &UploadRecord{Owner: owner, Filename: fileHeader.Filename}
	target, err := s.uploadTo(rec, fileHeader.Filename)
	if err != nil {
		return nil, err
	}

	// The row is recorded before the bytes are written so the unique index
	// on file_path reserves the name. A loser picks another name and never
	// touches the winner's object.
	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		name, err := storage.AvailableName(ctx, takenNames{Storage: s.store, repo: s.repo}, target)
		if errors.Is(err, storage.ErrInvalidName) {
			return nil, ErrInvalidFilename
		}
		if err != nil {
			return nil, fmt.Errorf("failed to pick storage name: %w", err)
		}

		upload := &Upload{
			ID:           uuid.New().String(),
			UserID:       owner.ID,
			Field:        field,
			OriginalName: fileHeader.Filename,
			FilePath:     name,
			FileURL:      s.store.URL(name),
			MimeType:     mimeType,
			Size:         fileHeader.Size,
			Checksum:     checksum,
			Storage:      s.store.Name(),
			CreatedAt:    s.now().Truncate(time.Microsecond),
		}

		if err := s.repo.Create(ctx, upload); err != nil {
			if database.IsUniqueViolation(err) {
				continue
			}
			return nil, fmt.Errorf("failed to save upload record: %w", err)
		}

		if err := s.store.Save(ctx, name, file, fileHeader.Size, mimeType); err != nil {
			_ = s.repo.Delete(ctx, upload.ID)
			if !errors.Is(err, storage.ErrExists) {
				return nil, fmt.Errorf("failed to store file: %w", err)
			}
			// untracked object under that name
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("failed to rewind file: %w", err)
			}
			continue
		}

		return upload, nil
	}

	return nil, ErrPathTaken
}

// takenNames treats recorded paths as taken even before their bytes land.
type takenNames struct {
	storage.Storage
	repo Repository
}

func (t takenNames) Exists(ctx context.Context, name string) (bool, error) {
	_, err := t.repo.GetByPath(ctx, name)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrUploadNotFound) {
		return false, err
	}
	return t.Storage.Exists(ctx, name)
}

// SetProfilePhoto uploads a new profile photo and removes the ones recorded
// before it. Concurrent calls leave the most recent photo in place.
func (s *Service) SetProfilePhoto(ctx context.Context, owner *UploadOwner, fileHeader *multipart.FileHeader) (*Upload, error) {
	upload, err := s.Upload(ctx, owner, FieldProfilePhoto, fileHeader)
	if err != nil {
		return nil, err
	}
	s.removeOlderProfilePhotos(ctx, upload)
	return upload, nil
}

func (s *Service) removeOlderProfilePhotos(ctx context.Context, current *Upload) {
	photos, err := s.repo.ListByUserAndField(ctx, current.UserID, FieldProfilePhoto)
	if err != nil {
		logrus.WithError(err).WithField("user_id", current.UserID).Warn("could not list previous profile photos")
		return
	}
	for _, p := range photos {
		if !recordedBefore(p, current) {
			continue
		}
		if err := s.remove(ctx, p); err != nil {
			logrus.WithError(err).WithField("path", p.FilePath).Warn("could not remove previous profile photo")
		}
	}
}

// recordedBefore orders uploads by creation time, then by id on ties.
func recordedBefore(a, b *Upload) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *Service) GetByID(ctx context.Context, id string) (*Upload, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*Upload, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// Delete removes the stored file and the record. Only the owner may delete.
func (s *Service) Delete(ctx context.Context, id string, userID int64) error {
	upload, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if upload.UserID != userID {
		return ErrNotOwner
	}
	return s.remove(ctx, upload)
}

func (s *Service) remove(ctx context.Context, u *Upload) error {
	if err := s.store.Delete(ctx, u.FilePath); err != nil {
		return err
	}
	return s.repo.Delete(ctx, u.ID)
}

// OpenMedia returns the record and content for a storage path. Untracked
// paths are reported as not found.
func (s *Service) OpenMedia(ctx context.Context, path string) (*Upload, io.ReadCloser, error) {
	if storage.ValidateName(path) != nil {
		return nil, nil, ErrUploadNotFound
	}
	upload, err := s.repo.GetByPath(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return upload, rc, nil
}

// Prune drops records whose file is gone from storage and returns how many
// were removed.
func (s *Service) Prune(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-pruneGrace)
	var orphans []string
	err := s.repo.Each(ctx, func(u *Upload) error {
		if u.CreatedAt.After(cutoff) {
			return nil
		}
		ok, err := s.store.Exists(ctx, u.FilePath)
		if err != nil {
			return fmt.Errorf("check %s: %w", u.FilePath, err)
		}
		if !ok {
			orphans = append(orphans, u.ID)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i, id := range orphans {
		if err := s.repo.Delete(ctx, id); err != nil {
			return i, err
		}
	}
	return len(orphans), nil
}

func sniffMimeType(file multipart.File) (string, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind file: %w", err)
	}
	mimeType := http.DetectContentType(buf[:n])
	return strings.TrimSpace(strings.Split(mimeType, ";")[0]), nil
}

// fileChecksum returns the hex BLAKE2b-256 of file and rewinds it.
func fileChecksum(file multipart.File) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
