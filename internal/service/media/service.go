package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	core "github.com/bulatminnakhmetov/property-site/internal/media"
)

const (
	DefaultReadTTL  = 24 * time.Hour
	DefaultWriteTTL = 15 * time.Minute

	signConcurrency = 16
)

// Notifier is told about every manifest write.
type Notifier interface {
	ManifestChanged(slug string, version int64, reason string)
}

type Config struct {
	ReadTTL  time.Duration
	WriteTTL time.Duration
	MaxBytes int64
}

// Item is one signed media object.
type Item struct {
	ObjectPath  string     `json:"objectPath"`
	Name        string     `json:"name"`
	SignedURL   string     `json:"signedUrl"`
	ContentType string     `json:"contentType,omitempty"`
	Size        int64      `json:"size,omitempty"`
	Updated     *time.Time `json:"updated,omitempty"`
	Label       string     `json:"label,omitempty"`
	Space       string     `json:"space,omitempty"`
}

// Listing is the reconciled media of one listing with signed read URLs.
type Listing struct {
	Slug             string                 `json:"slug"`
	Version          int64                  `json:"version"`
	Folders          map[core.Folder][]Item `json:"folders"`
	OverviewBackdrop string                 `json:"overviewBackdrop,omitempty"`
	PhotoSpaceOrder  []string               `json:"photoSpaceOrder"`
	Groups           []core.SpaceGroup      `json:"groups"`
	Manifest         *core.Manifest         `json:"manifest"`
}

type MediaService struct {
	objects   core.ObjectStore
	manifests core.ManifestStore
	notifier  Notifier
	logger    *zap.SugaredLogger
	readTTL   time.Duration
	writeTTL  time.Duration
	maxBytes  int64
}

func NewMediaService(objects core.ObjectStore, manifests core.ManifestStore, notifier Notifier, logger *zap.SugaredLogger, cfg Config) *MediaService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.ReadTTL <= 0 {
		cfg.ReadTTL = DefaultReadTTL
	}
	if cfg.WriteTTL <= 0 {
		cfg.WriteTTL = DefaultWriteTTL
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = core.MaxUploadSize
	}
	return &MediaService{
		objects:   objects,
		manifests: manifests,
		notifier:  notifier,
		logger:    logger,
		readTTL:   cfg.ReadTTL,
		writeTTL:  cfg.WriteTTL,
		maxBytes:  cfg.MaxBytes,
	}
}

// discovery is what the object store holds for a listing, per folder.
type discovery struct {
	keys map[core.Folder][]string
	info map[string]core.ObjectInfo
}

// discover lists every folder of a listing concurrently. Excluded keys are
// treated as absent even if the store still lists them.
func (s *MediaService) discover(ctx context.Context, slug string, exclude ...string) (*discovery, error) {
	results := make([][]core.ObjectInfo, len(core.Folders))
	g, gctx := errgroup.WithContext(ctx)
	for i, folder := range core.Folders {
		i, folder := i, folder
		g.Go(func() error {
			objects, err := s.objects.List(gctx, core.Prefix(slug, folder))
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", core.Prefix(slug, folder), err)
			}
			results[i] = objects
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(exclude))
	for _, key := range exclude {
		skip[key] = struct{}{}
	}

	d := &discovery{
		keys: make(map[core.Folder][]string, len(core.Folders)),
		info: make(map[string]core.ObjectInfo),
	}
	for i, folder := range core.Folders {
		keys := make([]string, 0, len(results[i]))
		for _, obj := range results[i] {
			if _, ok := skip[obj.Key]; ok {
				continue
			}
			keys = append(keys, obj.Key)
			d.info[obj.Key] = obj
		}
		d.keys[folder] = core.SortNatural(keys)
	}
	return d, nil
}

// current returns the stored manifest, or an empty one when the listing has none.
func (s *MediaService) current(ctx context.Context, slug string) (*core.Manifest, error) {
	m, err := s.manifests.Get(ctx, slug)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return m, nil
}

// load runs discovery and the manifest read concurrently.
func (s *MediaService) load(ctx context.Context, slug string, exclude ...string) (*discovery, *core.Manifest, error) {
	var (
		d *discovery
		m *core.Manifest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d, err = s.discover(gctx, slug, exclude...)
		return err
	})
	g.Go(func() error {
		var err error
		m, err = s.current(gctx, slug)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return d, m, nil
}

func parseSlug(raw string) (string, error) {
	slug := core.SanitizeSlug(raw)
	if slug == "" {
		return "", fmt.Errorf("%w: slug is required", core.ErrInvalidPayload)
	}
	return slug, nil
}

// List returns the reconciled media of a listing. It does not write the store.
func (s *MediaService) List(ctx context.Context, rawSlug string) (*Listing, error) {
	slug, err := parseSlug(rawSlug)
	if err != nil {
		return nil, err
	}
	d, m, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, slug, core.ReconcileManifest(slug, d.keys, m), d)
}

// view signs every key of the manifest.
func (s *MediaService) view(ctx context.Context, slug string, m *core.Manifest, d *discovery) (*Listing, error) {
	labels := make(map[string]string, len(m.Documents))
	for _, doc := range m.Documents {
		labels[doc.Href] = doc.Label
	}

	listing := &Listing{
		Slug:             slug,
		Version:          m.Version,
		Folders:          make(map[core.Folder][]Item, len(core.Folders)),
		OverviewBackdrop: m.OverviewBackdrop,
		PhotoSpaceOrder:  m.PhotoSpaceOrder,
		Groups:           m.Groups(),
		Manifest:         m,
	}
	if listing.PhotoSpaceOrder == nil {
		listing.PhotoSpaceOrder = []string{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)
	for _, folder := range core.Folders {
		keys := m.Keys(folder)
		items := make([]Item, len(keys))
		listing.Folders[folder] = items
		for i, key := range keys {
			i, key := i, key
			item := Item{
				ObjectPath: key,
				Name:       core.BaseName(key),
				Label:      labels[key],
				Space:      m.PhotoSpaces[key],
			}
			if info, ok := d.info[key]; ok {
				item.ContentType = info.ContentType
				item.Size = info.Size
				if !info.Updated.IsZero() {
					updated := info.Updated
					item.Updated = &updated
				}
			}
			g.Go(func() error {
				url, err := s.objects.SignRead(gctx, key, s.readTTL)
				if err != nil {
					return fmt.Errorf("failed to sign %s: %w", key, err)
				}
				item.SignedURL = url
				items[i] = item
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return listing, nil
}

// SaveManifest persists a manifest posted by the owner console. When
// expectedVersion is set the write fails with ErrConflict unless the stored
// version still matches.
func (s *MediaService) SaveManifest(ctx context.Context, rawSlug string, m *core.Manifest, expectedVersion *int64, editor core.Editor) (*Listing, error) {
	slug, err := parseSlug(rawSlug)
	if err != nil {
		return nil, err
	}
	if err := core.ValidateManifest(slug, m); err != nil {
		return nil, err
	}
	d, err := s.discover(ctx, slug)
	if err != nil {
		return nil, err
	}

	saved, err := s.manifests.Update(ctx, slug, editor, func(current *core.Manifest, _ bool) (*core.Manifest, error) {
		if expectedVersion != nil && *expectedVersion != current.Version {
			return nil, fmt.Errorf("%w: expected version %d, stored version %d", core.ErrConflict, *expectedVersion, current.Version)
		}
		submitted := m.Clone()
		submitted.Version = current.Version
		return core.ReconcileManifest(slug, d.keys, submitted), nil
	})
	if err != nil {
		return nil, s.storeError("save manifest", slug, err)
	}
	s.notify(slug, saved.Version, "save")
	return s.view(ctx, slug, saved, d)
}

// DeleteState is a step of the delete flow.
type DeleteState string

const (
	DeleteRequested      DeleteState = "requested"
	DeleteObjectDeleted  DeleteState = "object_deleted"
	DeleteManifestPruned DeleteState = "manifest_pruned"
	DeleteDone           DeleteState = "done"
	DeleteFailed         DeleteState = "failed"
)

type DeleteResult struct {
	State   DeleteState `json:"state"`
	Listing *Listing    `json:"listing,omitempty"`
}

// Delete removes the object first and then prunes the key from the manifest.
// The returned listing never contains the key, even if the object listing is
// stale. When the prune fails the state stays at DeleteObjectDeleted; the
// next reconciliation drops the key anyway.
func (s *MediaService) Delete(ctx context.Context, rawSlug, key string, editor core.Editor) (*DeleteResult, error) {
	result := &DeleteResult{State: DeleteRequested}
	slug, err := parseSlug(rawSlug)
	if err != nil {
		result.State = DeleteFailed
		return result, err
	}
	key = strings.TrimSpace(key)
	if _, ok := core.FolderOf(slug, key); !ok {
		result.State = DeleteFailed
		return result, fmt.Errorf("%w: %q does not belong to %s", core.ErrInvalidPayload, key, slug)
	}

	if err := s.objects.Delete(ctx, key); err != nil {
		result.State = DeleteFailed
		s.logger.Errorw("Failed to delete object", "slug", slug, "key", key, "error", err)
		return result, fmt.Errorf("failed to delete %s: %w", key, err)
	}
	result.State = DeleteObjectDeleted

	changed := false
	pruned, err := s.manifests.Update(ctx, slug, editor, func(current *core.Manifest, exists bool) (*core.Manifest, error) {
		if !exists || !current.Prune(key) {
			return nil, nil
		}
		changed = true
		return current, nil
	})
	if err != nil {
		s.logger.Warnw("Object deleted but manifest prune failed", "slug", slug, "key", key, "error", err)
		return result, s.storeError("prune manifest", slug, err)
	}
	result.State = DeleteManifestPruned
	if changed {
		s.notify(slug, pruned.Version, "delete")
	}

	d, err := s.discover(ctx, slug, key)
	if err != nil {
		return result, err
	}
	listing, err := s.view(ctx, slug, core.ReconcileManifest(slug, d.keys, pruned), d)
	if err != nil {
		return result, err
	}
	result.State = DeleteDone
	result.Listing = listing
	return result, nil
}

// mutate applies op to the reconciled manifest and persists the result when
// op reports a change.
func (s *MediaService) mutate(ctx context.Context, rawSlug string, editor core.Editor, reason string, op func(m *core.Manifest) bool) (*Listing, error) {
	slug, err := parseSlug(rawSlug)
	if err != nil {
		return nil, err
	}
	d, err := s.discover(ctx, slug)
	if err != nil {
		return nil, err
	}

	changed := false
	next, err := s.manifests.Update(ctx, slug, editor, func(current *core.Manifest, _ bool) (*core.Manifest, error) {
		proposed := core.ReconcileManifest(slug, d.keys, current)
		changed = op(proposed)
		if !changed {
			return nil, nil
		}
		return proposed, nil
	})
	if err != nil {
		return nil, s.storeError(reason, slug, err)
	}
	if changed {
		s.notify(slug, next.Version, reason)
	}
	return s.view(ctx, slug, core.ReconcileManifest(slug, d.keys, next), d)
}

// AssignSpace puts a photo into a space. An empty space unassigns it.
func (s *MediaService) AssignSpace(ctx context.Context, slug, key, space string, editor core.Editor) (*Listing, error) {
	return s.mutate(ctx, slug, editor, "assign_space", func(m *core.Manifest) bool {
		return m.AssignSpace(strings.TrimSpace(key), space)
	})
}

func (s *MediaService) AddSpace(ctx context.Context, slug, name string, editor core.Editor) (*Listing, error) {
	return s.mutate(ctx, slug, editor, "add_space", func(m *core.Manifest) bool {
		return m.AddSpace(name)
	})
}

func (s *MediaService) MoveGroup(ctx context.Context, slug, from, to string, editor core.Editor) (*Listing, error) {
	return s.mutate(ctx, slug, editor, "move_group", func(m *core.Manifest) bool {
		return m.MoveGroup(from, to)
	})
}

func (s *MediaService) Reorder(ctx context.Context, slug string, folder core.Folder, from, to int, editor core.Editor) (*Listing, error) {
	if _, ok := core.Rules(folder); !ok {
		return nil, fmt.Errorf("%w: unknown folder %q", core.ErrInvalidPayload, folder)
	}
	return s.mutate(ctx, slug, editor, "reorder", func(m *core.Manifest) bool {
		return m.Reorder(folder, from, to)
	})
}

func (s *MediaService) RenameDocument(ctx context.Context, slug, key, label string, editor core.Editor) (*Listing, error) {
	return s.mutate(ctx, slug, editor, "rename_document", func(m *core.Manifest) bool {
		return m.RenameDocument(strings.TrimSpace(key), label)
	})
}

func (s *MediaService) notify(slug string, version int64, reason string) {
	if s.notifier != nil {
		s.notifier.ManifestChanged(slug, version, reason)
	}
}

// storeError passes domain errors through and wraps store failures.
func (s *MediaService) storeError(op, slug string, err error) error {
	if errors.Is(err, core.ErrConflict) || errors.Is(err, core.ErrInvalidPayload) {
		return err
	}
	s.logger.Errorw("Manifest store failed", "op", op, "slug", slug, "error", err)
	return fmt.Errorf("failed to %s: %w", op, err)
}
