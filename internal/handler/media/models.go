package media

import (
	core "github.com/bulatminnakhmetov/property-site/internal/media"
	service "github.com/bulatminnakhmetov/property-site/internal/service/media"
)

// API request models

// SaveManifestRequest persists ordering and labels. When Version is set the
// write only succeeds if the stored manifest still has that version.
type SaveManifestRequest struct {
	Slug     string         `json:"slug" validate:"required"`
	Manifest *core.Manifest `json:"manifest" validate:"required"`
	Version  *int64         `json:"version,omitempty" validate:"omitempty,gte=0"`
}

type DeleteRequest struct {
	Slug       string `json:"slug" validate:"required"`
	ObjectPath string `json:"objectPath" validate:"required"`
}

type UploadURLRequest struct {
	Slug        string `json:"slug" validate:"required"`
	Folder      string `json:"folder" validate:"required,oneof=hero photos floorplans backgrounds contactvideo docs"`
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size" validate:"gte=0"`
}

type AssignSpaceRequest struct {
	Slug       string `json:"slug" validate:"required"`
	ObjectPath string `json:"objectPath" validate:"required"`
	Space      string `json:"space" validate:"required"`
}

type AddSpaceRequest struct {
	Slug string `json:"slug" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type MoveGroupRequest struct {
	Slug string `json:"slug" validate:"required"`
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

type ReorderRequest struct {
	Slug   string `json:"slug" validate:"required"`
	Folder string `json:"folder" validate:"required,oneof=hero photos floorplans backgrounds contactvideo docs"`
	From   int    `json:"from" validate:"gte=0"`
	To     int    `json:"to" validate:"gte=0"`
}

type RenameDocumentRequest struct {
	Slug       string `json:"slug" validate:"required"`
	ObjectPath string `json:"objectPath" validate:"required"`
	Label      string `json:"label" validate:"required"`
}

// API response models

type ListingResponse struct {
	OK bool `json:"ok"`
	*service.Listing
}

type DeleteResponse struct {
	OK bool `json:"ok"`
	*service.DeleteResult
}

type UploadResponse struct {
	OK bool `json:"ok"`
	*service.UploadResult
}

type BatchResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	*service.BatchResult
}

type UploadURLResponse struct {
	OK bool `json:"ok"`
	*service.UploadURL
}
