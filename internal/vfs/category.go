package vfs

import (
	"path/filepath"
	"strings"
)

// Category classifies a file into a storage folder by extension.
type Category string

const (
	CategoryImages    Category = "Images"
	CategoryAudio     Category = "Audio"
	CategoryDocuments Category = "Documents"
	CategoryOther     Category = "Other"
)

// TrashFolder is the folder value recorded once a file is soft-deleted.
const TrashFolder = "Trash"

var categoryByExt = map[string]Category{
	"jpg":  CategoryImages,
	"jpeg": CategoryImages,
	"png":  CategoryImages,
	"gif":  CategoryImages,
	"svg":  CategoryImages,
	"webp": CategoryImages,
	"mp3":  CategoryAudio,
	"wav":  CategoryAudio,
	"ogg":  CategoryAudio,
	"flac": CategoryAudio,
	"pdf":  CategoryDocuments,
	"docx": CategoryDocuments,
	"txt":  CategoryDocuments,
	"xlsx": CategoryDocuments,
}

// CategoryFor maps a file name to its category. The mapping is total:
// unknown and missing extensions fall through to Other.
func CategoryFor(fileName string) Category {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if c, ok := categoryByExt[ext]; ok {
		return c
	}
	return CategoryOther
}
