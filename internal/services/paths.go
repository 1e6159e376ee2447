package services

import (
	"strings"

	"github.com/google/uuid"
	"github.com/imagevault/backend/internal/models"
	"gorm.io/gorm"
)

// PathService computes folder paths on read by walking the parent chain.
// Paths are never stored, so renaming an ancestor can never strand stale
// paths on its descendants.
type PathService struct {
	DB *gorm.DB
}

func NewPathService(db *gorm.DB) *PathService {
	return &PathService{DB: db}
}

type folderNode struct {
	name     string
	parentID *uuid.UUID
}

// Compute fills in folder.Path as the /-joined ancestor names from root to
// the folder itself.
func (s *PathService) Compute(folder *models.Folder) error {
	return s.compute(folder, map[uuid.UUID]folderNode{})
}

// ComputeAll fills in Path for every folder in a listing, sharing one
// ancestor cache so common prefixes are loaded once.
func (s *PathService) ComputeAll(folders []models.Folder) error {
	cache := map[uuid.UUID]folderNode{}
	for i := range folders {
		if err := s.compute(&folders[i], cache); err != nil {
			return err
		}
	}
	return nil
}

func (s *PathService) compute(folder *models.Folder, cache map[uuid.UUID]folderNode) error {
	names := []string{folder.Name}
	visited := map[uuid.UUID]bool{folder.ID: true}

	current := folder.ParentID
	for current != nil {
		// A cycle cannot be created through the API (reparenting is not an
		// update field), but a walk over bad data must still terminate.
		if visited[*current] {
			break
		}
		visited[*current] = true

		node, ok := cache[*current]
		if !ok {
			var parent models.Folder
			err := s.DB.Select("id", "name", "parent_id").First(&parent, "id = ?", *current).Error
			if err == gorm.ErrRecordNotFound {
				break
			}
			if err != nil {
				return err
			}
			node = folderNode{name: parent.Name, parentID: parent.ParentID}
			cache[*current] = node
		}

		names = append(names, node.name)
		current = node.parentID
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}

	folder.Path = strings.Join(names, "/")
	return nil
}
