package vfs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidFileURL is returned when a file URL does not start with the
// configured public base URL and no storage path can be extracted.
var ErrInvalidFileURL = errors.New("invalid file path")

// Resolver is the single source of truth for storage path shapes. All
// inputs are treated as opaque strings; callers validate non-emptiness
// before resolving.
//
// Path shapes:
//
//	upload  {userID}/{category}/{unixMilli}-{fileName}
//	folder  {userID}/Folders/{folderName}/
//	trash   {userID}/Trash/{unixMilli}-{fileName}
//	move    {userID}/Folders/{folderName}/{fileName}
//	avatar  {userID}/Avatar/{fileName}
type Resolver struct {
	publicBase string
	now        func() time.Time
}

// NewResolver creates a Resolver that strips publicBase when mapping
// public URLs back to storage paths.
func NewResolver(publicBase string) *Resolver {
	return &Resolver{
		publicBase: strings.TrimRight(publicBase, "/"),
		now:        time.Now,
	}
}

// UploadPath places a new upload under the file's extension category.
// The millisecond timestamp keeps repeated uploads of identically-named
// files from colliding; it is unique with high probability, not
// guaranteed (no dedup or retry on collision).
func (r *Resolver) UploadPath(userID, fileName string) string {
	return fmt.Sprintf("%s/%s/%d-%s", userID, CategoryFor(fileName), r.now().UnixMilli(), fileName)
}

// FolderPath returns the storage path of a user folder, always
// slash-terminated and scoped under {userID}/Folders/.
func (r *Resolver) FolderPath(userID, folderName string) string {
	return userID + "/Folders/" + folderName + "/"
}

// TrashPath returns a fresh trash destination for a file being
// soft-deleted. A new timestamp is prepended so repeated trashing of
// same-named files cannot collide either.
func (r *Resolver) TrashPath(userID, fileName string) string {
	return fmt.Sprintf("%s/Trash/%d-%s", userID, r.now().UnixMilli(), fileName)
}

// MoveTargetPath returns the destination of a file moved into a user folder.
func (r *Resolver) MoveTargetPath(userID, folderName, fileName string) string {
	return userID + "/Folders/" + folderName + "/" + fileName
}

// AvatarPath returns the fixed avatar location for a user. Avatars
// overwrite in place rather than accumulating timestamped copies.
func (r *Resolver) AvatarPath(userID, fileName string) string {
	return userID + "/Avatar/" + fileName
}

// PathFromURL recovers the storage path from a public file URL by
// stripping the configured base. This is the inverse of the blob
// store's PublicURL and the only supported way to go from a FileRecord
// back to its object.
func (r *Resolver) PathFromURL(fileURL string) (string, error) {
	prefix := r.publicBase + "/"
	if !strings.HasPrefix(fileURL, prefix) {
		return "", ErrInvalidFileURL
	}
	path := strings.TrimPrefix(fileURL, prefix)
	if path == "" {
		return "", ErrInvalidFileURL
	}
	return path, nil
}
