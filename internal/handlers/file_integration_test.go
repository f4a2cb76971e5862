package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jmcgarr/nimbus/internal/auth"
	"github.com/jmcgarr/nimbus/internal/blob"
	"github.com/jmcgarr/nimbus/internal/config"
	"github.com/jmcgarr/nimbus/internal/database/models"
	"github.com/jmcgarr/nimbus/internal/vfs"
)

const testPublicBase = "https://cdn.test/users-storage"

// testApp holds all the dependencies for handler integration tests.
type testApp struct {
	db     *gorm.DB
	store  *blob.MemoryStore
	files  *vfs.Service
	tokens *auth.TokenIssuer
	cfg    *config.Config
	router *chi.Mux
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Folder{}, &models.File{}); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	cfg := &config.Config{
		Env:            "test",
		MaxUploadSize:  10 * 1024 * 1024,
		MaxUploadFiles: 10,
		JWTSecret:      "test-secret",
		JWTLifetime:    time.Hour,
		BcryptCost:     4,
	}

	store := blob.NewMemoryStore(testPublicBase)
	paths := vfs.NewResolver(testPublicBase)
	files := vfs.NewService(db, store, paths)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTLifetime)

	fileHandler := NewFileHandler(cfg, files)
	authHandler := NewAuthHandler(db, cfg, tokens, store, paths)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(tokens))
				r.Post("/logout", authHandler.Logout)
				r.Get("/user", authHandler.CurrentUser)
				r.Put("/update-profile", authHandler.UpdateProfile)
				r.Post("/upload-avatar", authHandler.UploadAvatar)
			})
		})
		r.Route("/user", func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/user-details", authHandler.UserDetails)
		})
		r.Route("/files", func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/upload-multiple", fileHandler.UploadMultiple)
			r.Get("/recent-files", fileHandler.RecentFiles)
			r.Get("/trash-files", fileHandler.TrashFiles)
			r.Get("/file-details", fileHandler.FileDetails)
			r.Post("/delete-multiple", fileHandler.DeleteMultiple)
			r.Post("/create-folder", fileHandler.CreateFolder)
			r.Get("/user-folders", fileHandler.UserFolders)
			r.Delete("/delete-folder", fileHandler.DeleteFolder)
			r.Put("/move-file", fileHandler.MoveFile)
		})
	})

	return &testApp{
		db:     db,
		store:  store,
		files:  files,
		tokens: tokens,
		cfg:    cfg,
		router: router,
	}
}

func (app *testApp) createTestUser(t *testing.T, email string) (*models.User, string) {
	t.Helper()

	hash, err := auth.HashPassword("test-password-1", app.cfg.BcryptCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	user := &models.User{
		ID:           "user-" + strings.Split(email, "@")[0],
		Email:        email,
		UserName:     "Test User",
		PasswordHash: hash,
	}
	if err := app.db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	token, err := app.tokens.Issue(user.ID, user.Email)
	if err != nil {
		t.Fatalf("Failed to issue test token: %v", err)
	}
	return user, token
}

func (app *testApp) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	return app.do(t, method, path, token, body, "application/json")
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Response is not JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return body
}

func multipartBody(t *testing.T, field string, files map[string]string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadMultipleEndpoint(t *testing.T) {
	app := newTestApp(t)
	_, token := app.createTestUser(t, "uploader@example.com")

	body, contentType := multipartBody(t, "files", map[string]string{
		"photo.png": "png-bytes",
		"notes.txt": "text-bytes",
	})
	rec := app.do(t, http.MethodPost, "/api/files/upload-multiple", token, body, contentType)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201\nbody: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	if resp["message"] != "Files uploaded successfully" {
		t.Errorf("message = %v", resp["message"])
	}
	files, ok := resp["files"].([]any)
	if !ok || len(files) != 2 {
		t.Fatalf("files = %v, want 2 entries", resp["files"])
	}

	var count int64
	app.db.Model(&models.File{}).Where("is_deleted = ?", false).Count(&count)
	if count != 2 {
		t.Errorf("file rows = %d, want 2", count)
	}
}

func TestUploadMultipleEndpointNoFiles(t *testing.T) {
	app := newTestApp(t)
	_, token := app.createTestUser(t, "empty@example.com")

	body, contentType := multipartBody(t, "files", nil)
	rec := app.do(t, http.MethodPost, "/api/files/upload-multiple", token, body, contentType)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["error"] != "No files uploaded" {
		t.Errorf("error = %v", resp["error"])
	}
}

func TestUploadMultipleEndpointRequiresAuth(t *testing.T) {
	app := newTestApp(t)

	body, contentType := multipartBody(t, "files", map[string]string{"a.txt": "a"})
	rec := app.do(t, http.MethodPost, "/api/files/upload-multiple", "", body, contentType)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRecentFilesEndpoint(t *testing.T) {
	app := newTestApp(t)
	user, token := app.createTestUser(t, "lister@example.com")

	for i := 0; i < 3; i++ {
		if _, err := app.files.Upload(t.Context(), user.ID, vfs.UploadInput{
			FileName:    fmt.Sprintf("doc%d.pdf", i),
			Content:     strings.NewReader("pdf"),
			Size:        3,
			ContentType: "application/pdf",
		}); err != nil {
			t.Fatalf("seed upload failed: %v", err)
		}
	}

	rec := app.do(t, http.MethodGet, "/api/files/recent-files", token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody(t, rec)
	files, ok := resp["files"].([]any)
	if !ok || len(files) != 3 {
		t.Fatalf("files = %v, want 3 entries", resp["files"])
	}

	rec = app.do(t, http.MethodGet, "/api/files/recent-files?limit=2", token, nil, "")
	resp = decodeBody(t, rec)
	if files, _ := resp["files"].([]any); len(files) != 2 {
		t.Errorf("limited files = %v, want 2 entries", resp["files"])
	}
}

func TestFileDetailsEndpoint(t *testing.T) {
	app := newTestApp(t)
	user, token := app.createTestUser(t, "detail@example.com")

	file, err := app.files.Upload(t.Context(), user.ID, vfs.UploadInput{
		FileName:    "report.pdf",
		Content:     strings.NewReader("pdf"),
		Size:        3,
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("seed upload failed: %v", err)
	}

	rec := app.do(t, http.MethodGet, "/api/files/file-details?file_url="+url.QueryEscape(file.FileURL), token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	rec = app.do(t, http.MethodGet, "/api/files/file-details?file_url="+url.QueryEscape(testPublicBase+"/nope"), token, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing file status = %d, want 404", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["error"] != "File not found" {
		t.Errorf("error = %v", resp["error"])
	}

	rec = app.do(t, http.MethodGet, "/api/files/file-details", token, nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing param status = %d, want 400", rec.Code)
	}
}

func TestDeleteMultipleEndpoint(t *testing.T) {
	app := newTestApp(t)
	user, token := app.createTestUser(t, "trasher@example.com")

	file, err := app.files.Upload(t.Context(), user.ID, vfs.UploadInput{
		FileName:    "old.txt",
		Content:     strings.NewReader("old"),
		Size:        3,
		ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("seed upload failed: %v", err)
	}

	rec := app.doJSON(t, http.MethodPost, "/api/files/delete-multiple", token, map[string]any{
		"files": []string{file.FileURL, "https://elsewhere.example.com/bad"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody(t, rec)
	moved, _ := resp["moved_files"].([]any)
	failed, _ := resp["failed_files"].([]any)
	if len(moved) != 1 || len(failed) != 1 {
		t.Fatalf("moved=%d failed=%d, want 1/1", len(moved), len(failed))
	}
	failure, _ := failed[0].(map[string]any)
	if failure["error"] != "invalid file path" {
		t.Errorf("failure reason = %v", failure["error"])
	}

	// Empty batch is rejected before touching anything.
	rec = app.doJSON(t, http.MethodPost, "/api/files/delete-multiple", token, map[string]any{"files": []string{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty batch status = %d, want 400", rec.Code)
	}
}

func TestCreateFolderEndpoint(t *testing.T) {
	app := newTestApp(t)
	_, token := app.createTestUser(t, "folders@example.com")

	rec := app.doJSON(t, http.MethodPost, "/api/files/create-folder", token, map[string]string{
		"folderName": "Projects",
		"color":      "blue",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201\nbody: %s", rec.Code, rec.Body.String())
	}

	rec = app.doJSON(t, http.MethodPost, "/api/files/create-folder", token, map[string]string{
		"folderName": "",
		"color":      "blue",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name status = %d, want 400", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["error"] != "Folder name is required" {
		t.Errorf("error = %v", resp["error"])
	}

	rec = app.doJSON(t, http.MethodPost, "/api/files/create-folder", token, map[string]string{
		"folderName": "Misc",
		"color":      "chartreuse",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad color status = %d, want 400", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["error"] != "Invalid folder color" {
		t.Errorf("error = %v", resp["error"])
	}
}

func TestUserFoldersEndpoint(t *testing.T) {
	app := newTestApp(t)
	user, token := app.createTestUser(t, "sorted@example.com")

	for _, name := range []string{"Folder10", "folder2"} {
		if _, err := app.files.CreateFolder(t.Context(), user.ID, name, "green"); err != nil {
			t.Fatalf("seed folder failed: %v", err)
		}
	}

	rec := app.do(t, http.MethodGet, "/api/files/user-folders", token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody(t, rec)
	folders, _ := resp["folders"].([]any)
	if len(folders) != 2 {
		t.Fatalf("folders = %v, want 2 entries", resp["folders"])
	}
	first, _ := folders[0].(map[string]any)
	if first["folder_name"] != "folder2" {
		t.Errorf("natural order: first = %v, want folder2", first["folder_name"])
	}
}

func TestDeleteFolderEndpoint(t *testing.T) {
	app := newTestApp(t)
	user, token := app.createTestUser(t, "remover@example.com")

	folder, err := app.files.CreateFolder(t.Context(), user.ID, "Temp", "orange")
	if err != nil {
		t.Fatalf("seed folder failed: %v", err)
	}

	rec := app.doJSON(t, http.MethodDelete, "/api/files/delete-folder", token, map[string]string{
		"folderPath": folder.FolderPath,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	if app.store.Exists(folder.FolderPath + "placeholder.txt") {
		t.Error("placeholder survived folder deletion")
	}

	rec = app.doJSON(t, http.MethodDelete, "/api/files/delete-folder", token, map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing path status = %d, want 400", rec.Code)
	}
}

func TestMoveFileEndpoint(t *testing.T) {
	app := newTestApp(t)
	user, token := app.createTestUser(t, "mover@example.com")

	file, err := app.files.Upload(t.Context(), user.ID, vfs.UploadInput{
		FileName:    "plan.docx",
		Content:     strings.NewReader("doc"),
		Size:        3,
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	})
	if err != nil {
		t.Fatalf("seed upload failed: %v", err)
	}
	currentPath, err := app.files.Paths().PathFromURL(file.FileURL)
	if err != nil {
		t.Fatalf("url not reconstructible: %v", err)
	}

	rec := app.doJSON(t, http.MethodPut, "/api/files/move-file", token, map[string]string{
		"fileName":      "plan.docx",
		"currentPath":   currentPath,
		"newFolderName": "Projects",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	if resp["new_path"] != user.ID+"/Folders/Projects/plan.docx" {
		t.Errorf("new_path = %v", resp["new_path"])
	}

	rec = app.doJSON(t, http.MethodPut, "/api/files/move-file", token, map[string]string{
		"fileName": "plan.docx",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing fields status = %d, want 400", rec.Code)
	}
}
