package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/imagevault/backend/internal/middleware"
	"github.com/imagevault/backend/internal/models"
	"github.com/imagevault/backend/internal/services"
	"github.com/imagevault/backend/pkg/logger"
	"github.com/imagevault/backend/pkg/utils"
	"gorm.io/gorm"
)

type FoldersHandler struct {
	DB    *gorm.DB
	Paths *services.PathService
}

func NewFoldersHandler(db *gorm.DB, paths *services.PathService) *FoldersHandler {
	return &FoldersHandler{DB: db, Paths: paths}
}

type createFolderRequest struct {
	Name   string  `json:"name"`
	Color  *string `json:"color"`
	Parent *string `json:"parent"`
}

func (h *FoldersHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "Folder name is required")
	}
	if len(name) > 100 {
		return utils.Error(c, fiber.StatusBadRequest, "Folder name cannot exceed 100 characters")
	}

	color := models.DefaultFolderColor
	if req.Color != nil && strings.TrimSpace(*req.Color) != "" {
		color = strings.TrimSpace(*req.Color)
		if !isValidHexColor(color) {
			return utils.Error(c, fiber.StatusBadRequest, "Color must be a valid hex color")
		}
	}

	var parentID *uuid.UUID
	if req.Parent != nil && strings.TrimSpace(*req.Parent) != "" {
		parsed, err := parseUUID(*req.Parent)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid parent folder id")
		}

		var parent models.Folder
		if err := h.DB.First(&parent, "id = ? AND owner_id = ?", parsed, currentUser.ID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return utils.Error(c, fiber.StatusNotFound, "Folder not found")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading parent folder")
		}
		parentID = &parent.ID
	}

	if err := h.checkSiblingName(currentUser.ID, parentID, name, uuid.Nil); err != nil {
		if err == errDuplicateSibling {
			return utils.Error(c, fiber.StatusBadRequest, "A folder with this name already exists in this location")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking folder name")
	}

	folder := models.Folder{
		Name:     name,
		Color:    color,
		ParentID: parentID,
		OwnerID:  currentUser.ID,
	}

	if err := h.DB.Create(&folder).Error; err != nil {
		// The pre-check can race another create of the same sibling; the
		// partial unique index settles it.
		if isUniqueViolation(err) {
			return utils.Error(c, fiber.StatusBadRequest, "A folder with this name already exists in this location")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating folder")
	}

	if err := h.Paths.Compute(&folder); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing folder path")
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_created", map[string]interface{}{
		"folder_id":   folder.ID.String(),
		"folder_name": folder.Name,
		"parent_id":   parentID,
	})

	return utils.Success(c, fiber.StatusCreated, folder)
}

func (h *FoldersHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	query := h.DB.Where("owner_id = ?", currentUser.ID)

	parentRaw := strings.TrimSpace(c.Query("parent"))
	if parentRaw == "" {
		query = query.Where("parent_id IS NULL")
	} else {
		parentID, err := parseUUID(parentRaw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid parent folder id")
		}
		query = query.Where("parent_id = ?", parentID)
	}

	folders := []models.Folder{}
	if err := query.Order("created_at DESC").Find(&folders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing folders")
	}

	if err := h.Paths.ComputeAll(folders); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing folder paths")
	}
	if err := h.attachImageCounts(currentUser.ID, folders); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting images")
	}

	return utils.Success(c, fiber.StatusOK, folders)
}

func (h *FoldersHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	var folder models.Folder
	if err := h.DB.First(&folder, "id = ? AND owner_id = ?", folderID, currentUser.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "Folder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading folder")
	}

	if err := h.Paths.Compute(&folder); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing folder path")
	}
	if err := h.DB.Model(&models.Image{}).
		Where("owner_id = ? AND folder_id = ?", currentUser.ID, folder.ID).
		Count(&folder.ImageCount).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting images")
	}

	return utils.Success(c, fiber.StatusOK, folder)
}

type updateFolderRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (h *FoldersHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	var folder models.Folder
	if err := h.DB.First(&folder, "id = ? AND owner_id = ?", folderID, currentUser.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "Folder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading folder")
	}

	var req updateFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, "Folder name is required")
		}
		if len(name) > 100 {
			return utils.Error(c, fiber.StatusBadRequest, "Folder name cannot exceed 100 characters")
		}
		if name != folder.Name {
			if err := h.checkSiblingName(currentUser.ID, folder.ParentID, name, folder.ID); err != nil {
				if err == errDuplicateSibling {
					return utils.Error(c, fiber.StatusBadRequest, "A folder with this name already exists in this location")
				}
				return utils.Error(c, fiber.StatusInternalServerError, "failed checking folder name")
			}
			updates["name"] = name
		}
	}

	if req.Color != nil {
		color := strings.TrimSpace(*req.Color)
		if !isValidHexColor(color) {
			return utils.Error(c, fiber.StatusBadRequest, "Color must be a valid hex color")
		}
		updates["color"] = color
	}

	// Nothing changed; answer with the current state like any other read.
	if len(updates) == 0 {
		if err := h.Paths.Compute(&folder); err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed computing folder path")
		}
		return utils.Success(c, fiber.StatusOK, folder)
	}

	if err := h.DB.Model(&models.Folder{}).Where("id = ?", folder.ID).Updates(updates).Error; err != nil {
		if isUniqueViolation(err) {
			return utils.Error(c, fiber.StatusBadRequest, "A folder with this name already exists in this location")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating folder")
	}

	var updated models.Folder
	if err := h.DB.First(&updated, "id = ?", folder.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated folder")
	}

	if err := h.Paths.Compute(&updated); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed computing folder path")
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_updated", map[string]interface{}{
		"folder_id": updated.ID.String(),
		"changes":   updates,
	})

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *FoldersHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	var folder models.Folder
	if err := h.DB.First(&folder, "id = ? AND owner_id = ?", folderID, currentUser.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "Folder not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading folder")
	}

	var subfolders int64
	if err := h.DB.Model(&models.Folder{}).
		Where("parent_id = ? AND owner_id = ?", folder.ID, currentUser.ID).
		Count(&subfolders).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting subfolders")
	}

	var images int64
	if err := h.DB.Model(&models.Image{}).
		Where("folder_id = ? AND owner_id = ?", folder.ID, currentUser.ID).
		Count(&images).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting images")
	}

	// Deletion is never recursive; the client empties a folder first.
	if subfolders > 0 || images > 0 {
		return utils.Error(c, fiber.StatusBadRequest, "Cannot delete folder that contains subfolders or images")
	}

	if err := h.DB.Delete(&models.Folder{}, "id = ?", folder.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting folder")
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_deleted", map[string]interface{}{
		"folder_id":   folder.ID.String(),
		"folder_name": folder.Name,
	})

	return utils.SuccessMessage(c, fiber.StatusOK, "Folder deleted successfully")
}

var errDuplicateSibling = gorm.ErrDuplicatedKey

// checkSiblingName reports errDuplicateSibling when another folder with the
// same name exists under the same parent for the same owner. excludeID
// skips the folder being renamed.
func (h *FoldersHandler) checkSiblingName(ownerID uuid.UUID, parentID *uuid.UUID, name string, excludeID uuid.UUID) error {
	query := h.DB.Model(&models.Folder{}).Where("owner_id = ? AND name = ?", ownerID, name)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}
	if excludeID != uuid.Nil {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errDuplicateSibling
	}
	return nil
}

// attachImageCounts annotates a folder listing with per-folder image counts
// using one grouped query instead of a count per folder.
func (h *FoldersHandler) attachImageCounts(ownerID uuid.UUID, folders []models.Folder) error {
	if len(folders) == 0 {
		return nil
	}

	folderIDs := make([]uuid.UUID, len(folders))
	for i, f := range folders {
		folderIDs[i] = f.ID
	}

	var results []struct {
		FolderID uuid.UUID
		Count    int64
	}
	if err := h.DB.Model(&models.Image{}).
		Select("folder_id, count(*) as count").
		Where("owner_id = ? AND folder_id IN ?", ownerID, folderIDs).
		Group("folder_id").
		Scan(&results).Error; err != nil {
		return err
	}

	counts := make(map[uuid.UUID]int64)
	for _, r := range results {
		counts[r.FolderID] = r.Count
	}

	for i := range folders {
		folders[i].ImageCount = counts[folders[i].ID]
	}
	return nil
}
