package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/imagevault/backend/internal/database"
	"github.com/imagevault/backend/internal/middleware"
	"github.com/imagevault/backend/internal/models"
	"github.com/imagevault/backend/internal/services"
	"github.com/imagevault/backend/internal/storage"
	"github.com/imagevault/backend/pkg/logger"
	"github.com/imagevault/backend/pkg/utils"
	"gorm.io/gorm"
)

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	store *memoryStore
}

// memoryStore keeps uploaded objects in a map so handler tests can run
// without a live MinIO instance.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	rmErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (storage.StoredObject, error) {
	if m.putErr != nil {
		return storage.StoredObject{}, m.putErr
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return storage.StoredObject{}, err
	}

	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()

	return storage.StoredObject{
		URL:    "http://storage.test/imagevault/" + key,
		Key:    key,
		Size:   int64(len(data)),
		Format: storage.DetectFormat(contentType, key),
	}, nil
}

func (m *memoryStore) Remove(ctx context.Context, key string) error {
	if m.rmErr != nil {
		return m.rmErr
	}

	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating models: %v", err)
	}

	store := newMemoryStore()
	pathService := services.NewPathService(db)

	authHandler := NewAuthHandler(db)
	foldersHandler := NewFoldersHandler(db, pathService)
	imagesHandler := NewImagesHandler(db, store, 10*1024*1024)
	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 20 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("http://localhost:5173"))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/signup", authHandler.Signup)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)

	folderRoutes := api.Group("/folders", authMiddleware.RequireAuth)
	folderRoutes.Post("/", foldersHandler.Create)
	folderRoutes.Get("/", foldersHandler.List)
	folderRoutes.Get("/:id", foldersHandler.Get)
	folderRoutes.Put("/:id", foldersHandler.Update)
	folderRoutes.Delete("/:id", foldersHandler.Delete)

	imageRoutes := api.Group("/images", authMiddleware.RequireAuth)
	imageRoutes.Post("/upload", imagesHandler.Upload)
	imageRoutes.Get("/", imagesHandler.List)
	imageRoutes.Get("/search", imagesHandler.Search)
	imageRoutes.Get("/:id", imagesHandler.Get)
	imageRoutes.Put("/:id", imagesHandler.Update)
	imageRoutes.Delete("/:id", imagesHandler.Delete)

	return &testEnv{app: app, db: db, store: store}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func createTestFolder(t *testing.T, db *gorm.DB, owner *models.User, name string, parentID *uuid.UUID) *models.Folder {
	t.Helper()

	folder := &models.Folder{
		Name:     name,
		Color:    models.DefaultFolderColor,
		OwnerID:  owner.ID,
		ParentID: parentID,
	}
	if err := db.Create(folder).Error; err != nil {
		t.Fatalf("failed creating test folder: %v", err)
	}
	return folder
}

// seedImage writes a metadata row and a matching object in the fake store,
// the state an upload leaves behind.
func seedImage(t *testing.T, env *testEnv, owner *models.User, folderID *uuid.UUID, name string, tags []string) *models.Image {
	t.Helper()

	key := owner.ID.String() + "/seed/" + uuid.New().String() + "_" + name
	stored, err := env.store.Put(context.Background(), key, bytes.NewReader([]byte("seeded image bytes")), 18, "image/jpeg")
	if err != nil {
		t.Fatalf("failed seeding object store: %v", err)
	}

	if tags == nil {
		tags = []string{}
	}
	image := &models.Image{
		Name:       name,
		StorageURL: stored.URL,
		StorageKey: stored.Key,
		FolderID:   folderID,
		OwnerID:    owner.ID,
		Size:       stored.Size,
		Format:     stored.Format,
		Tags:       tags,
	}
	if err := env.db.Create(image).Error; err != nil {
		t.Fatalf("failed creating seeded image: %v", err)
	}
	return image
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

type uploadOptions struct {
	fieldName   string
	filename    string
	contentType string
	content     []byte
	fields      map[string]string
}

func performUploadRequest(t *testing.T, app *fiber.App, path string, opts uploadOptions, headers map[string]string) *http.Response {
	t.Helper()

	if opts.fieldName == "" {
		opts.fieldName = "image"
	}
	if opts.filename == "" {
		opts.filename = "photo.jpg"
	}
	if opts.contentType == "" {
		opts.contentType = "image/jpeg"
	}
	if opts.content == nil {
		opts.content = []byte("fake image bytes")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partHeader := make(map[string][]string)
	partHeader["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, opts.fieldName, opts.filename)}
	partHeader["Content-Type"] = []string{opts.contentType}
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed creating multipart file part: %v", err)
	}
	if _, err := part.Write(opts.content); err != nil {
		t.Fatalf("failed writing multipart file content: %v", err)
	}

	for key, value := range opts.fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed writing multipart field %q: %v", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	requestHeaders["Content-Type"] = writer.FormDataContentType()

	return performRequest(t, app, fiber.MethodPost, path, &buf, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object in response, got %+v", body)
	}
	return data
}

func dataSlice(t *testing.T, body map[string]any) []any {
	t.Helper()
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected data array in response, got %+v", body)
	}
	return data
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}
