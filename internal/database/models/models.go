package models

import (
	"time"

	"gorm.io/datatypes"
)

// User mirrors the identity provider's user record. Rows are created on
// registration or first OAuth login and are never hard-deleted.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	UserName     string    `gorm:"size:100" json:"user_name"`
	AvatarURL    string    `gorm:"size:1024" json:"avatar_url"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Files   []File   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Folders []Folder `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// File is the metadata row for one uploaded blob. The storage path is
// not stored separately: it is always reconstructible by stripping the
// public base URL from FileURL. IsDeleted is true exactly when that
// path lies under {userID}/Trash/.
type File struct {
	ID         uint                                  `gorm:"primaryKey" json:"-"`
	UserID     string                                `gorm:"not null;index;size:36" json:"user_id"`
	FileName   string                                `gorm:"not null;size:255" json:"file_name"`
	Folder     string                                `gorm:"not null;size:255" json:"folder"`
	FileURL    string                                `gorm:"not null;size:1024;index" json:"file_url"`
	Size       int64                                 `gorm:"not null" json:"size"`
	Type       string                                `gorm:"size:100" json:"type"`
	Metadata   datatypes.JSONType[map[string]string] `json:"metadata,omitempty"`
	UploadedAt time.Time                             `gorm:"index" json:"uploaded_at"`
	ModifiedAt *time.Time                            `json:"modified_at,omitempty"`
	IsDeleted  bool                                  `gorm:"not null;default:false;index" json:"is_deleted"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// Folder is a user-created named container. FolderPath is always of the
// form {userID}/Folders/{name}/ and is paired with a placeholder blob
// because the blob store has no empty-directory concept.
type Folder struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	UserID     string    `gorm:"not null;index:idx_user_folder_path;size:36" json:"user_id"`
	FolderName string    `gorm:"not null;size:255" json:"folder_name"`
	FolderPath string    `gorm:"not null;size:1024;index:idx_user_folder_path" json:"folder_path"`
	Color      string    `gorm:"not null;size:20" json:"color"`
	CreatedAt  time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}
