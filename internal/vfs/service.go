// Package vfs maps a flat blob store plus a relational metadata table
// into a user-facing hierarchy of category folders, named folders and a
// trash bin, with soft-delete and move/copy semantics.
//
// Every mutating operation follows the same ordering: blob operation
// first, metadata write second. There is no transactional boundary
// across the two collaborators; when the metadata write fails after the
// blob mutation succeeded the system is left with an orphaned but
// recoverable object, which is preferred over metadata that references
// a missing one.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jmcgarr/nimbus/internal/blob"
	"github.com/jmcgarr/nimbus/internal/database/models"
	"github.com/jmcgarr/nimbus/internal/logger"
	"github.com/jmcgarr/nimbus/internal/metrics"
	"github.com/maruel/natural"
	"gorm.io/gorm"
)

var (
	// ErrFileNotFound is returned when no metadata row matches the lookup.
	ErrFileNotFound = errors.New("file not found")
	// ErrEmptyFolderName is returned when a folder name is blank after trimming.
	ErrEmptyFolderName = errors.New("folder name is required")
	// ErrInvalidColor is returned when a folder color is outside the fixed set.
	ErrInvalidColor = errors.New("invalid folder color")
)

// FolderColors is the closed set of accepted folder color tags.
var FolderColors = []string{"blue", "green", "purple", "orange", "pink"}

// ValidColor reports whether color is one of FolderColors.
func ValidColor(color string) bool {
	for _, c := range FolderColors {
		if c == color {
			return true
		}
	}
	return false
}

const (
	defaultListLimit = 10
	placeholderName  = "placeholder.txt"
)

// Service implements the virtual filesystem over a blob store and a
// gorm-backed metadata store.
type Service struct {
	db    *gorm.DB
	blobs blob.Store
	paths *Resolver
	now   func() time.Time
}

// NewService wires the virtual filesystem to its two collaborators.
func NewService(db *gorm.DB, blobs blob.Store, paths *Resolver) *Service {
	return &Service{
		db:    db,
		blobs: blobs,
		paths: paths,
		now:   time.Now,
	}
}

// Paths exposes the resolver, e.g. for avatar placement by the profile handler.
func (s *Service) Paths() *Resolver {
	return s.paths
}

// UploadInput describes one file in an upload batch.
type UploadInput struct {
	FileName    string
	Content     io.Reader
	Size        int64
	ContentType string
}

// Upload stores one file and records its metadata. The blob write
// happens first; if the metadata insert fails afterwards the object is
// intentionally left in place.
func (s *Service) Upload(ctx context.Context, userID string, in UploadInput) (*models.File, error) {
	category := CategoryFor(in.FileName)
	path := s.paths.UploadPath(userID, in.FileName)

	url, err := s.blobs.Put(ctx, path, in.Content, blob.PutOptions{
		ContentType: in.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", in.FileName, err)
	}

	record := models.File{
		UserID:     userID,
		FileName:   in.FileName,
		Folder:     string(category),
		FileURL:    url,
		Size:       in.Size,
		Type:       in.ContentType,
		UploadedAt: s.now(),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		logger.Error("upload: blob stored but metadata insert failed, object orphaned",
			"path", path, "error", err)
		return nil, fmt.Errorf("failed to record upload of %s: %w", in.FileName, err)
	}

	metrics.FilesUploaded.Inc()
	metrics.UploadedBytes.Add(float64(in.Size))
	return &record, nil
}

// RecentFiles returns the user's non-trashed files, newest upload
// first, capped at limit (default 10 when limit is not positive).
func (s *Service) RecentFiles(ctx context.Context, userID string, limit int) ([]models.File, error) {
	return s.listFiles(ctx, userID, false, limit)
}

// TrashFiles is the symmetric query over trashed files.
func (s *Service) TrashFiles(ctx context.Context, userID string, limit int) ([]models.File, error) {
	return s.listFiles(ctx, userID, true, limit)
}

func (s *Service) listFiles(ctx context.Context, userID string, deleted bool, limit int) ([]models.File, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var files []models.File
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_deleted = ?", userID, deleted).
		Order("uploaded_at DESC").
		Limit(limit).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// FileDetails returns the metadata row for one file URL.
func (s *Service) FileDetails(ctx context.Context, userID, fileURL string) (*models.File, error) {
	var file models.File
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND file_url = ?", userID, fileURL).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to fetch file details: %w", err)
	}
	return &file, nil
}

// MovedFile reports one successfully trashed file.
type MovedFile struct {
	OldURL string `json:"old_url"`
	NewURL string `json:"new_url"`
	Folder string `json:"folder"`
}

// FailedFile reports one file that could not be trashed.
type FailedFile struct {
	FileURL string `json:"file_url"`
	Reason  string `json:"error"`
}

// TrashResult is the outcome of a soft-delete batch.
type TrashResult struct {
	Moved  []MovedFile
	Failed []FailedFile
}

// SoftDeleteBatch moves each file to the trash and flags its metadata
// row. Items fail independently: a malformed URL or collaborator error
// never aborts the remaining items.
func (s *Service) SoftDeleteBatch(ctx context.Context, userID string, fileURLs []string) TrashResult {
	result := TrashResult{
		Moved:  []MovedFile{},
		Failed: []FailedFile{},
	}

	for _, fileURL := range fileURLs {
		moved, reason, err := s.softDelete(ctx, userID, fileURL)
		if err != nil {
			logger.Warn("trash: item failed", "user_id", userID, "url", fileURL, "error", err)
			result.Failed = append(result.Failed, FailedFile{FileURL: fileURL, Reason: reason})
			metrics.RecordTrash(false)
			continue
		}
		result.Moved = append(result.Moved, *moved)
		metrics.RecordTrash(true)
	}

	return result
}

func (s *Service) softDelete(ctx context.Context, userID, fileURL string) (*MovedFile, string, error) {
	path, err := s.paths.PathFromURL(fileURL)
	if err != nil {
		return nil, "invalid file path", err
	}

	fileName := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		fileName = path[idx+1:]
	}
	trashPath := s.paths.TrashPath(userID, fileName)

	if err := s.blobs.Move(ctx, path, trashPath); err != nil {
		return nil, "failed to move file to trash", err
	}

	newURL := s.blobs.PublicURL(trashPath)
	now := s.now()
	err = s.db.WithContext(ctx).
		Model(&models.File{}).
		Where("user_id = ? AND file_url = ?", userID, fileURL).
		Updates(map[string]any{
			"file_url":    newURL,
			"folder":      TrashFolder,
			"is_deleted":  true,
			"modified_at": &now,
		}).Error
	if err != nil {
		// Object already sits in the trash path; the stale row is the
		// accepted inconsistency window of the blob-first ordering.
		return nil, "failed to update file metadata", err
	}

	return &MovedFile{OldURL: fileURL, NewURL: newURL, Folder: TrashFolder}, "", nil
}

// CreateFolder validates its inputs, writes the placeholder blob that
// stands in for the directory, then inserts the folder row. Validation
// failures touch neither collaborator.
func (s *Service) CreateFolder(ctx context.Context, userID, folderName, color string) (*models.Folder, error) {
	folderName = strings.TrimSpace(folderName)
	if folderName == "" {
		return nil, ErrEmptyFolderName
	}
	if !ValidColor(color) {
		return nil, ErrInvalidColor
	}

	folderPath := s.paths.FolderPath(userID, folderName)

	_, err := s.blobs.Put(ctx, folderPath+placeholderName, strings.NewReader(""), blob.PutOptions{
		ContentType: "text/plain",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create folder placeholder: %w", err)
	}

	folder := models.Folder{
		UserID:     userID,
		FolderName: folderName,
		FolderPath: folderPath,
		Color:      color,
		CreatedAt:  s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&folder).Error; err != nil {
		logger.Error("create folder: placeholder written but metadata insert failed",
			"path", folderPath, "error", err)
		return nil, fmt.Errorf("failed to save folder metadata: %w", err)
	}

	metrics.FoldersCreated.Inc()
	return &folder, nil
}

// Folders returns all of the user's folders in natural name order.
func (s *Service) Folders(ctx context.Context, userID string) ([]models.Folder, error) {
	var folders []models.Folder
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&folders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	sort.Slice(folders, func(i, j int) bool {
		return natural.Less(strings.ToLower(folders[i].FolderName), strings.ToLower(folders[j].FolderName))
	})
	return folders, nil
}

// DeleteFolder removes every blob under folderPath and then the folder
// row. Blob removal is fail-fast: the first failure aborts the whole
// operation and the folder row stays, so a folder is never recorded as
// gone while objects remain inside it.
func (s *Service) DeleteFolder(ctx context.Context, userID, folderPath string) error {
	objects, err := s.blobs.List(ctx, folderPath)
	if err != nil {
		return fmt.Errorf("failed to list folder contents: %w", err)
	}

	for _, obj := range objects {
		if err := s.blobs.Remove(ctx, folderPath+obj.Name); err != nil {
			return fmt.Errorf("failed to delete folder object %s: %w", obj.Name, err)
		}
	}

	err = s.db.WithContext(ctx).
		Where("user_id = ? AND folder_path = ?", userID, folderPath).
		Delete(&models.Folder{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete folder metadata: %w", err)
	}

	metrics.FoldersDeleted.Inc()
	return nil
}

// MoveFile relocates a file into a named folder: copy, then remove the
// original, then update metadata. A failed copy aborts before removal
// so the original is never lost; a failed removal after a successful
// copy leaves a duplicate, which is accepted and not reconciled here.
//
// The metadata row is matched on (userID, fileName), which is not
// unique when a user keeps same-named files in different folders. The
// limitation is deliberate and documented rather than papered over.
func (s *Service) MoveFile(ctx context.Context, userID, fileName, currentPath, newFolderName string) (string, error) {
	newPath := s.paths.MoveTargetPath(userID, newFolderName, fileName)

	if err := s.blobs.Copy(ctx, currentPath, newPath); err != nil {
		return "", fmt.Errorf("failed to copy file to new location: %w", err)
	}

	if err := s.blobs.Remove(ctx, currentPath); err != nil {
		return "", fmt.Errorf("failed to delete old file after moving: %w", err)
	}

	newURL := s.blobs.PublicURL(newPath)
	now := s.now()
	err := s.db.WithContext(ctx).
		Model(&models.File{}).
		Where("user_id = ? AND file_name = ?", userID, fileName).
		Updates(map[string]any{
			"file_url":    newURL,
			"folder":      newFolderName,
			"modified_at": &now,
		}).Error
	if err != nil {
		return "", fmt.Errorf("failed to update file metadata: %w", err)
	}

	metrics.FilesMoved.Inc()
	return newPath, nil
}
