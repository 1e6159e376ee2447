package handlers

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/imagevault/backend/internal/middleware"
	"github.com/imagevault/backend/internal/models"
	"github.com/imagevault/backend/internal/services"
	"github.com/imagevault/backend/internal/storage"
	"github.com/imagevault/backend/pkg/logger"
	"github.com/imagevault/backend/pkg/utils"
	"gorm.io/gorm"
)

type ImagesHandler struct {
	DB             *gorm.DB
	Storage        storage.ObjectStore
	MaxUploadBytes int64
}

func NewImagesHandler(db *gorm.DB, store storage.ObjectStore, maxUploadBytes int64) *ImagesHandler {
	return &ImagesHandler{DB: db, Storage: store, MaxUploadBytes: maxUploadBytes}
}

func (h *ImagesHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "No image file provided")
	}
	if h.MaxUploadBytes > 0 && fileHeader.Size > h.MaxUploadBytes {
		return utils.Error(c, fiber.StatusBadRequest, fmt.Sprintf("Image exceeds the %dMB upload limit", h.MaxUploadBytes/(1024*1024)))
	}

	filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if filename == "" || filename == "." {
		return utils.Error(c, fiber.StatusBadRequest, "invalid filename")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if !strings.HasPrefix(contentType, "image/") {
		return utils.Error(c, fiber.StatusBadRequest, "Only image files are allowed")
	}

	// "root" and absent both mean no folder.
	var folder *models.Folder
	folderIDRaw := strings.TrimSpace(c.FormValue("folderId"))
	if folderIDRaw != "" && folderIDRaw != rootSentinel {
		parsed, parseErr := parseUUID(folderIDRaw)
		if parseErr != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
		}

		var owned models.Folder
		if err := h.DB.First(&owned, "id = ? AND owner_id = ?", parsed, currentUser.ID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.Error(c, fiber.StatusNotFound, "Folder not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading folder")
		}
		folder = &owned
	}

	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		name = filename
	}
	if len(name) > 200 {
		return utils.Error(c, fiber.StatusBadRequest, "Image name cannot exceed 200 characters")
	}

	tags := services.ParseTags(c.FormValue("tags"))

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	folderSegment := rootSentinel
	if folder != nil {
		folderSegment = folder.Name
	}
	objectKey := fmt.Sprintf("%s/%s/%s_%s", currentUser.ID.String(), folderSegment, uuid.New().String(), filename)

	stored, err := h.Storage.Put(c.Context(), objectKey, stream, fileHeader.Size, contentType)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "Failed uploading image to storage")
	}

	entry := models.Image{
		Name:       name,
		StorageURL: stored.URL,
		StorageKey: stored.Key,
		OwnerID:    currentUser.ID,
		Size:       stored.Size,
		Format:     stored.Format,
		Tags:       tags,
	}
	if folder != nil {
		entry.FolderID = &folder.ID
	}

	if err := h.DB.Create(&entry).Error; err != nil {
		// The object stays behind; a reconciliation sweep can collect it.
		// Removing it here would race a concurrent retry of the same upload.
		logger.ErrorWithUser(currentUser.ID.String(), "orphaned_storage_object", err, map[string]interface{}{
			"storage_key": stored.Key,
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating image record")
	}

	logger.InfoWithUser(currentUser.ID.String(), "image_uploaded", map[string]interface{}{
		"image_id":    entry.ID.String(),
		"image_name":  entry.Name,
		"size":        entry.Size,
		"format":      entry.Format,
		"storage_key": stored.Key,
	})

	return utils.Success(c, fiber.StatusCreated, entry)
}

func (h *ImagesHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	pagination := utils.ParsePagination(c)
	query := h.DB.Model(&models.Image{}).Where("owner_id = ?", currentUser.ID)

	folderIDRaw := strings.TrimSpace(c.Query("folderId"))
	if folderIDRaw == rootSentinel {
		query = query.Where("folder_id IS NULL")
	} else if folderIDRaw != "" {
		folderID, err := parseUUID(folderIDRaw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
		}

		var folder models.Folder
		if err := h.DB.First(&folder, "id = ? AND owner_id = ?", folderID, currentUser.ID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				// Keep listings resilient: report the miss but hand back an
				// empty page the client can render.
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"success": false,
					"error":   "Folder not found",
					"data":    []models.Image{},
				})
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading folder")
		}
		query = query.Where("folder_id = ?", folder.ID)
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = applyImageSearch(query, search)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting images")
	}

	images := []models.Image{}
	if err := utils.ApplyPagination(query, pagination).
		Order("created_at DESC").
		Find(&images).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing images")
	}

	return utils.Paginated(c, images, pagination.Page, pagination.Limit, total)
}

func (h *ImagesHandler) Search(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return utils.Error(c, fiber.StatusBadRequest, "Search query is required")
	}

	pagination := utils.ParsePagination(c)
	query := applyImageSearch(h.DB.Model(&models.Image{}).Where("owner_id = ?", currentUser.ID), q)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "search failed")
	}

	images := []models.Image{}
	if err := utils.ApplyPagination(query, pagination).
		Order("created_at DESC").
		Find(&images).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "search failed")
	}

	return utils.Paginated(c, images, pagination.Page, pagination.Limit, total)
}

func (h *ImagesHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	imageID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid image id")
	}

	var image models.Image
	if err := h.DB.First(&image, "id = ? AND owner_id = ?", imageID, currentUser.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "Image not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading image")
	}

	return utils.Success(c, fiber.StatusOK, image)
}

type updateImageRequest struct {
	Name *string `json:"name"`
	Tags *string `json:"tags"`
}

func (h *ImagesHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	imageID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid image id")
	}

	var image models.Image
	if err := h.DB.First(&image, "id = ? AND owner_id = ?", imageID, currentUser.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "Image not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading image")
	}

	var req updateImageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, "Image name is required")
		}
		if len(name) > 200 {
			return utils.Error(c, fiber.StatusBadRequest, "Image name cannot exceed 200 characters")
		}
		image.Name = name
	}

	if req.Tags != nil {
		image.Tags = services.ParseTags(*req.Tags)
	}

	if err := h.DB.Save(&image).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating image")
	}

	return utils.Success(c, fiber.StatusOK, image)
}

func (h *ImagesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	imageID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid image id")
	}

	var image models.Image
	if err := h.DB.First(&image, "id = ? AND owner_id = ?", imageID, currentUser.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "Image not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading image")
	}

	// Object first: if the store refuses, the row stays so the object is
	// never stranded without its pointer.
	if err := h.Storage.Remove(c.Context(), image.StorageKey); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "Failed deleting image from storage")
	}

	if err := h.DB.Delete(&models.Image{}, "id = ?", image.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting image record")
	}

	logger.InfoWithUser(currentUser.ID.String(), "image_deleted", map[string]interface{}{
		"image_id":    image.ID.String(),
		"storage_key": image.StorageKey,
	})

	return utils.SuccessMessage(c, fiber.StatusOK, "Image deleted successfully")
}

// applyImageSearch matches case-insensitively against the name or any tag.
// Tags live in a JSON text column, so a LIKE over the serialized form is the
// same substring semantic the name gets. LIKE wildcards in the term are
// escaped so a literal % or _ only matches itself.
func applyImageSearch(query *gorm.DB, term string) *gorm.DB {
	like := "%" + escapeLike(strings.ToLower(term)) + "%"
	return query.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(tags) LIKE ? ESCAPE '\'`, like, like)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
