package media

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrEmptyFile       = errors.New("empty file")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("manifest version conflict")
)

// BatchError reports the file that stopped an upload batch.
// Index is 1-based.
type BatchError struct {
	Index    int
	Total    int
	Filename string
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("upload %d/%d (%s) failed: %v", e.Index, e.Total, e.Filename, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// ValidateManifest rejects manifests that reference keys outside their folder
// of the given listing.
func ValidateManifest(slug string, m *Manifest) error {
	if m == nil {
		return fmt.Errorf("%w: manifest is required", ErrInvalidPayload)
	}
	for _, folder := range Folders {
		if folder == FolderDocs {
			continue
		}
		for _, key := range m.Keys(folder) {
			if !InFolder(slug, folder, key) {
				return fmt.Errorf("%w: %q is not in %s of %s", ErrInvalidPayload, key, folder, slug)
			}
		}
	}
	for _, d := range m.Documents {
		if !InFolder(slug, FolderDocs, d.Href) {
			return fmt.Errorf("%w: %q is not in docs of %s", ErrInvalidPayload, d.Href, slug)
		}
	}
	if m.OverviewBackdrop != "" && !InFolder(slug, FolderBackgrounds, m.OverviewBackdrop) {
		return fmt.Errorf("%w: overview backdrop %q is not in backgrounds of %s", ErrInvalidPayload, m.OverviewBackdrop, slug)
	}
	for key := range m.PhotoSpaces {
		if !InFolder(slug, FolderPhotos, key) {
			return fmt.Errorf("%w: space assigned to %q outside photos of %s", ErrInvalidPayload, key, slug)
		}
	}
	return nil
}
