package listing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bulatminnakhmetov/property-site/internal/media"
	"github.com/bulatminnakhmetov/property-site/internal/property"
)

type memoryRecord struct {
	listing   *property.Property
	manifest  *media.Manifest
	updatedAt time.Time
	updatedBy media.Editor
}

// MemoryRepository keeps listings in process memory. Update holds the lock
// for the whole read-modify-write.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
	now     func() time.Time

	// FailUpdate, when set, rejects Update before the callback runs.
	FailUpdate func(slug string) error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*memoryRecord), now: time.Now}
}

func (r *MemoryRepository) Get(_ context.Context, slug string) (*media.Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[slug]
	if !ok {
		return nil, media.ErrNotFound
	}
	return rec.manifest.Clone(), nil
}

func (r *MemoryRepository) Put(ctx context.Context, slug string, m *media.Manifest, editor media.Editor) (int64, error) {
	next, err := r.Update(ctx, slug, editor, func(*media.Manifest, bool) (*media.Manifest, error) {
		return m, nil
	})
	if err != nil {
		return 0, err
	}
	return next.Version, nil
}

func (r *MemoryRepository) Update(_ context.Context, slug string, editor media.Editor, fn media.UpdateFunc) (*media.Manifest, error) {
	if r.FailUpdate != nil {
		if err := r.FailUpdate(slug); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[slug]
	current := &media.Manifest{}
	if exists {
		current = rec.manifest.Clone()
	}

	next, err := fn(current.Clone(), exists)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}

	next = next.Clone()
	next.Version = current.Version + 1
	if !exists {
		rec = &memoryRecord{}
		r.records[slug] = rec
	}
	rec.manifest = next
	rec.updatedAt = r.now()
	rec.updatedBy = editor
	return next.Clone(), nil
}

func (r *MemoryRepository) GetProperty(_ context.Context, slug string) (*property.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[slug]
	if !ok {
		return nil, media.ErrNotFound
	}

	p := &property.Property{}
	if rec.listing != nil {
		*p = *rec.listing
	}
	p.Slug = slug
	p.Media = p.Media.Extras().WithManifest(rec.manifest)
	p.UpdatedAt = rec.updatedAt.UTC().Format(time.RFC3339Nano)
	editor := rec.updatedBy
	p.UpdatedBy = &editor
	return p, nil
}

func (r *MemoryRepository) SaveProperty(_ context.Context, slug string, p *property.Property, editor media.Editor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing := *p
	listing.Slug = slug
	listing.Media = p.Media.Extras()

	rec, ok := r.records[slug]
	if !ok {
		rec = &memoryRecord{manifest: &media.Manifest{}}
		r.records[slug] = rec
	}
	rec.listing = &listing
	rec.updatedAt = r.now()
	rec.updatedBy = editor
	return nil
}

func (r *MemoryRepository) ListSlugs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slugs := make([]string, 0, len(r.records))
	for slug := range r.records {
		slugs = append(slugs, slug)
	}
	sort.Slice(slugs, func(i, j int) bool { return media.NaturalLess(slugs[i], slugs[j]) })
	return slugs, nil
}
