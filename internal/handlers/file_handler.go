package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/jmcgarr/nimbus/internal/auth"
	"github.com/jmcgarr/nimbus/internal/config"
	"github.com/jmcgarr/nimbus/internal/logger"
	"github.com/jmcgarr/nimbus/internal/vfs"
)

// FileHandler serves the file and folder endpoints on top of the
// virtual filesystem service.
type FileHandler struct {
	cfg   *config.Config
	files *vfs.Service
}

func NewFileHandler(cfg *config.Config, files *vfs.Service) *FileHandler {
	return &FileHandler{cfg: cfg, files: files}
}

type failedUpload struct {
	FileName string `json:"file_name"`
	Reason   string `json:"error"`
}

// UploadMultiple accepts a multipart form with one or more "files"
// parts. Each file is uploaded independently; a bad part is reported
// in the failed list without aborting the rest of the batch.
func (h *FileHandler) UploadMultiple(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	var (
		uploaded []any
		failed   []failedUpload
		count    int
	)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "Malformed multipart request")
			return
		}
		if part.FormName() != "files" || part.FileName() == "" {
			part.Close()
			continue
		}
		if count >= h.cfg.MaxUploadFiles {
			part.Close()
			failed = append(failed, failedUpload{FileName: part.FileName(), Reason: "too many files"})
			continue
		}
		count++

		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			logger.Warn("failed to read upload part", "file", part.FileName(), "error", err)
			failed = append(failed, failedUpload{FileName: part.FileName(), Reason: "failed to read file"})
			continue
		}

		file, err := h.files.Upload(r.Context(), claims.UserID, vfs.UploadInput{
			FileName:    part.FileName(),
			Content:     bytes.NewReader(content),
			Size:        int64(len(content)),
			ContentType: partContentType(part),
		})
		if err != nil {
			logger.Error("file upload failed", "user_id", claims.UserID, "file", part.FileName(), "error", err)
			failed = append(failed, failedUpload{FileName: part.FileName(), Reason: "failed to upload file"})
			continue
		}
		uploaded = append(uploaded, file)
	}

	if count == 0 && len(failed) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Files uploaded successfully",
		"files":   orEmpty(uploaded),
		"failed":  failed,
	})
}

func partContentType(part *multipart.Part) string {
	if ct := part.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// orEmpty keeps list payloads as [] instead of null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// RecentFiles lists the caller's active files, most recent first.
func (h *FileHandler) RecentFiles(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	files, err := h.files.RecentFiles(r.Context(), claims.UserID, limit)
	if err != nil {
		logger.Error("failed to list recent files", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch recent files")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Files fetched successfully",
		"files":   orEmpty(files),
	})
}

// TrashFiles lists the caller's trashed files, most recent first.
func (h *FileHandler) TrashFiles(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	files, err := h.files.TrashFiles(r.Context(), claims.UserID, limit)
	if err != nil {
		logger.Error("failed to list trash files", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch trash files")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Trash files fetched successfully",
		"files":   orEmpty(files),
	})
}

// FileDetails returns the metadata row for a single file, looked up
// by its public URL.
func (h *FileHandler) FileDetails(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)
	fileURL := r.URL.Query().Get("file_url")
	if fileURL == "" {
		writeError(w, http.StatusBadRequest, "File URL is required")
		return
	}

	file, err := h.files.FileDetails(r.Context(), claims.UserID, fileURL)
	if err != nil {
		if errors.Is(err, vfs.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		logger.Error("failed to fetch file details", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch file details")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "File details fetched successfully",
		"file":    file,
	})
}

type deleteMultipleRequest struct {
	Files []string `json:"files"`
}

// DeleteMultiple moves a batch of files to the trash. Each item
// succeeds or fails on its own; the response reports both lists.
func (h *FileHandler) DeleteMultiple(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	var req deleteMultipleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "No files provided for deletion")
		return
	}

	result := h.files.SoftDeleteBatch(r.Context(), claims.UserID, req.Files)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Files processed successfully",
		"moved_files":  orEmpty(result.Moved),
		"failed_files": orEmpty(result.Failed),
	})
}

type createFolderRequest struct {
	FolderName string `json:"folderName"`
	Color      string `json:"color"`
}

// CreateFolder provisions an empty folder for the caller.
func (h *FileHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	folder, err := h.files.CreateFolder(r.Context(), claims.UserID, req.FolderName, req.Color)
	if err != nil {
		switch {
		case errors.Is(err, vfs.ErrEmptyFolderName):
			writeError(w, http.StatusBadRequest, "Folder name is required")
		case errors.Is(err, vfs.ErrInvalidColor):
			writeError(w, http.StatusBadRequest, "Invalid folder color")
		default:
			logger.Error("failed to create folder", "user_id", claims.UserID, "folder", req.FolderName, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to create folder")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Folder created successfully",
		"folder":  folder,
	})
}

// UserFolders lists the caller's folders in natural name order.
func (h *FileHandler) UserFolders(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	folders, err := h.files.Folders(r.Context(), claims.UserID)
	if err != nil {
		logger.Error("failed to list folders", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch folders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Folders fetched successfully",
		"folders": orEmpty(folders),
	})
}

type deleteFolderRequest struct {
	FolderPath string `json:"folderPath"`
}

// DeleteFolder removes a folder and everything stored under it.
func (h *FileHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	var req deleteFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FolderPath == "" {
		writeError(w, http.StatusBadRequest, "Folder path is required")
		return
	}

	if err := h.files.DeleteFolder(r.Context(), claims.UserID, req.FolderPath); err != nil {
		logger.Error("failed to delete folder", "user_id", claims.UserID, "folder_path", req.FolderPath, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete folder")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Folder and its files deleted successfully",
	})
}

type moveFileRequest struct {
	FileName      string `json:"fileName"`
	CurrentPath   string `json:"currentPath"`
	NewFolderName string `json:"newFolderName"`
}

// MoveFile relocates a file into another folder.
func (h *FileHandler) MoveFile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r)

	var req moveFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.FileName == "" || req.CurrentPath == "" || req.NewFolderName == "" {
		writeError(w, http.StatusBadRequest, "File name, current path and new folder name are required")
		return
	}

	newPath, err := h.files.MoveFile(r.Context(), claims.UserID, req.FileName, req.CurrentPath, req.NewFolderName)
	if err != nil {
		logger.Error("failed to move file", "user_id", claims.UserID, "file", req.FileName, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to move file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "File moved successfully",
		"new_path": newPath,
	})
}
