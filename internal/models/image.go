package models

import "github.com/google/uuid"

// Image is the metadata record for one stored object. The bytes live in the
// object store under StorageKey; deleting an image removes the object first
// and the row only after that succeeds.
type Image struct {
	BaseModel
	Name       string     `json:"name" gorm:"type:varchar(200);not null"`
	StorageURL string     `json:"storageURL" gorm:"type:text;not null"`
	StorageKey string     `json:"-" gorm:"type:text;not null"`
	FolderID   *uuid.UUID `json:"folder,omitempty" gorm:"type:uuid;index:idx_images_owner_folder,priority:2"`
	OwnerID    uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index:idx_images_owner_folder,priority:1"`
	Size       int64      `json:"size" gorm:"not null;default:0"`
	Format     string     `json:"format" gorm:"type:varchar(32);not null"`
	Tags       []string   `json:"tags" gorm:"serializer:json;type:text"`

	Folder *Folder `json:"-" gorm:"foreignKey:FolderID"`
	Owner  User    `json:"-" gorm:"foreignKey:OwnerID;references:ID"`
}
