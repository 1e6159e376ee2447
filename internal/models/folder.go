package models

import "github.com/google/uuid"

const DefaultFolderColor = "#3B82F6"

// Folder is a node in a per-user tree. ParentID nil means the folder sits at
// the root. Sibling names are unique per owner, enforced by partial unique
// indexes created in database.Migrate.
type Folder struct {
	BaseModel
	Name     string     `json:"name" gorm:"type:varchar(100);not null;index:idx_folders_owner_parent,priority:3"`
	Color    string     `json:"color" gorm:"type:varchar(7);not null;default:'#3B82F6'"`
	ParentID *uuid.UUID `json:"parent,omitempty" gorm:"type:uuid;index:idx_folders_owner_parent,priority:2"`
	OwnerID  uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index:idx_folders_owner_parent,priority:1"`

	Parent   *Folder  `json:"-" gorm:"foreignKey:ParentID"`
	Children []Folder `json:"-" gorm:"foreignKey:ParentID"`
	Images   []Image  `json:"-" gorm:"foreignKey:FolderID"`
	Owner    User     `json:"-" gorm:"foreignKey:OwnerID;references:ID"`

	// Computed on read, never stored. Path is the /-joined ancestor chain
	// including the folder itself; keeping it out of the table means a
	// renamed ancestor can never leave stale paths behind.
	Path       string `json:"path" gorm:"-"`
	ImageCount int64  `json:"imageCount" gorm:"-"`
}
