package property

import (
	"context"

	"github.com/bulatminnakhmetov/property-site/internal/media"
)

// Store persists listings. The media manifest is owned by media.ManifestStore;
// SaveProperty only touches listing fields and Media.Extras.
type Store interface {
	// GetProperty returns media.ErrNotFound when the listing has no document.
	GetProperty(ctx context.Context, slug string) (*Property, error)
	SaveProperty(ctx context.Context, slug string, p *Property, editor media.Editor) error
	ListSlugs(ctx context.Context) ([]string, error)
}
