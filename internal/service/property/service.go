package property

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	core "github.com/bulatminnakhmetov/property-site/internal/media"
	model "github.com/bulatminnakhmetov/property-site/internal/property"
	"github.com/bulatminnakhmetov/property-site/internal/validate"
)

const (
	signConcurrency    = 16
	summaryConcurrency = 4
)

type PropertyService struct {
	store      model.Store
	objects    core.ObjectStore
	validator  *validate.Validator
	logger     *zap.SugaredLogger
	contentDir string
	readTTL    time.Duration
}

func NewPropertyService(store model.Store, objects core.ObjectStore, contentDir string, readTTL time.Duration, logger *zap.SugaredLogger) *PropertyService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if readTTL <= 0 {
		readTTL = 24 * time.Hour
	}
	return &PropertyService{
		store:      store,
		objects:    objects,
		validator:  validate.New(),
		logger:     logger,
		contentDir: contentDir,
		readTTL:    readTTL,
	}
}

func parseSlug(raw string) (string, error) {
	slug := core.SanitizeSlug(raw)
	if slug == "" {
		return "", fmt.Errorf("%w: slug is required", core.ErrInvalidPayload)
	}
	return slug, nil
}

// Get returns the stored listing for the owner editor, falling back to the
// local content file.
func (s *PropertyService) Get(ctx context.Context, rawSlug string) (*model.Property, error) {
	slug, err := parseSlug(rawSlug)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetProperty(ctx, slug)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	return model.LoadFile(s.contentDir, slug)
}

// Save validates and merges the listing fields. Manifest lists in p are ignored.
func (s *PropertyService) Save(ctx context.Context, rawSlug string, p *model.Property, editor core.Editor) (*model.Property, error) {
	slug, err := parseSlug(rawSlug)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: property is required", core.ErrInvalidPayload)
	}
	if err := s.validator.Struct(p); err != nil {
		return nil, err
	}
	if err := s.store.SaveProperty(ctx, slug, p, editor); err != nil {
		s.logger.Errorw("Failed to save property", "slug", slug, "error", err)
		return nil, err
	}
	s.logger.Infow("Property saved", "slug", slug, "uid", editor.UID, "source", editor.Source)
	return s.store.GetProperty(ctx, slug)
}

// ListSlugs returns the stored listings, or the local content directories
// when the store has none or cannot be read.
func (s *PropertyService) ListSlugs(ctx context.Context) ([]string, error) {
	slugs, err := s.store.ListSlugs(ctx)
	if err != nil {
		s.logger.Warnw("Failed to list stored properties, using local content", "error", err)
	}
	if len(slugs) > 0 {
		return slugs, nil
	}
	return model.ListLocalSlugs(s.contentDir)
}

// Public resolves a listing for rendering: empty media lists are discovered
// from the object store, object keys become signed read URLs.
func (s *PropertyService) Public(ctx context.Context, rawSlug string) (*model.Property, error) {
	slug, err := parseSlug(rawSlug)
	if err != nil {
		return nil, err
	}

	p, err := s.store.GetProperty(ctx, slug)
	fromStore := err == nil
	if errors.Is(err, core.ErrNotFound) {
		p, err = model.LoadFile(s.contentDir, slug)
	}
	if err != nil {
		return nil, err
	}
	p.Slug = slug

	m := p.Media.Manifest()
	s.discover(ctx, slug, m)
	if fromStore && isEmpty(m) {
		if local, err := model.LoadFile(s.contentDir, slug); err == nil {
			m = local.Media.Manifest()
		}
	}
	p.Media = p.Media.WithManifest(m)

	media := &p.Media
	if media.OverviewBackdrop == "" {
		media.OverviewBackdrop = firstOf(media.Backgrounds, media.Photos, media.Hero)
	}
	if media.ContactVideo == "" {
		media.ContactVideo = firstOf(media.ContactVideos)
	}

	if err := s.resolve(ctx, slug, media); err != nil {
		return nil, err
	}
	return p, nil
}

// Summaries lists the index cards of every listing. Listings that cannot be
// resolved are skipped.
func (s *PropertyService) Summaries(ctx context.Context) ([]model.Summary, error) {
	slugs, err := s.ListSlugs(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]*model.Summary, len(slugs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, slug := range slugs {
		i, slug := i, slug
		g.Go(func() error {
			p, err := s.Public(gctx, slug)
			if err != nil {
				s.logger.Warnw("Skipping property in index", "slug", slug, "error", err)
				return nil
			}
			summary := p.Summary()
			summaries[i] = &summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.Summary, 0, len(slugs))
	for _, summary := range summaries {
		if summary != nil {
			out = append(out, *summary)
		}
	}
	return out, nil
}

// discover fills empty manifest lists from the object store. Discovered
// photos include the hero images. A folder that cannot be listed stays as
// stored.
func (s *PropertyService) discover(ctx context.Context, slug string, m *core.Manifest) {
	var empty []core.Folder
	for _, folder := range core.Folders {
		if len(m.Keys(folder)) == 0 {
			empty = append(empty, folder)
		}
	}
	if len(empty) == 0 {
		return
	}

	var mu sync.Mutex
	found := make(map[core.Folder][]string, len(empty))
	g, gctx := errgroup.WithContext(ctx)
	for _, folder := range empty {
		folder := folder
		g.Go(func() error {
			objects, err := s.objects.List(gctx, core.Prefix(slug, folder))
			if err != nil {
				s.logger.Warnw("Failed to discover media", "slug", slug, "prefix", core.Prefix(slug, folder), "error", err)
				return nil
			}
			keys := make([]string, 0, len(objects))
			for _, obj := range objects {
				keys = append(keys, obj.Key)
			}
			mu.Lock()
			found[folder] = core.SortNatural(core.NormalizeKeys(slug, folder, keys))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, folder := range core.Folders {
		if len(m.Keys(folder)) > 0 {
			continue
		}
		keys := found[folder]
		if folder == core.FolderPhotos {
			keys = union(m.Hero, keys)
		}
		if len(keys) > 0 {
			m.SetKeys(folder, keys)
		}
	}
}

// resolve replaces object keys with signed read URLs. A key that cannot be
// signed is kept as is.
func (s *PropertyService) resolve(ctx context.Context, slug string, m *model.Media) error {
	refs := make(map[string]string)
	collect := func(list ...string) {
		for _, ref := range list {
			if core.IsObjectKey(ref) {
				refs[ref] = ref
			}
		}
	}
	collect(m.Hero...)
	collect(m.Photos...)
	collect(m.Floorplans...)
	collect(m.Backgrounds...)
	collect(m.ContactVideos...)
	collect(m.OverviewBackdrop, m.ContactVideo)
	for _, d := range m.Documents {
		collect(d.Href)
	}
	if m.Video != nil {
		collect(m.Video.MP4URL, m.Video.PosterURL)
	}

	keys := make([]string, 0, len(refs))
	for ref := range refs {
		keys = append(keys, ref)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(signConcurrency)
	for _, ref := range keys {
		ref := ref
		g.Go(func() error {
			url, err := s.objects.SignRead(gctx, ref, s.readTTL)
			if err != nil {
				s.logger.Warnw("Failed to sign media reference", "slug", slug, "key", ref, "error", err)
				return nil
			}
			mu.Lock()
			refs[ref] = url
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	apply := func(list []string) []string {
		if list == nil {
			return nil
		}
		out := make([]string, len(list))
		for i, ref := range list {
			out[i] = lookup(refs, ref)
		}
		return out
	}
	m.Hero = apply(m.Hero)
	m.Photos = apply(m.Photos)
	m.Floorplans = apply(m.Floorplans)
	m.Backgrounds = apply(m.Backgrounds)
	m.ContactVideos = apply(m.ContactVideos)
	m.OverviewBackdrop = lookup(refs, m.OverviewBackdrop)
	m.ContactVideo = lookup(refs, m.ContactVideo)
	if m.Documents != nil {
		docs := make([]core.Document, len(m.Documents))
		for i, d := range m.Documents {
			docs[i] = core.Document{Label: d.Label, Href: lookup(refs, d.Href)}
		}
		m.Documents = docs
	}
	if m.PhotoSpaces != nil {
		spaces := make(map[string]string, len(m.PhotoSpaces))
		for key, space := range m.PhotoSpaces {
			spaces[lookup(refs, key)] = space
		}
		m.PhotoSpaces = spaces
	}
	if m.Video != nil {
		video := *m.Video
		video.MP4URL = lookup(refs, video.MP4URL)
		video.PosterURL = lookup(refs, video.PosterURL)
		m.Video = &video
	}
	return nil
}

func lookup(refs map[string]string, ref string) string {
	if url, ok := refs[ref]; ok {
		return url
	}
	return ref
}

func isEmpty(m *core.Manifest) bool {
	for _, folder := range core.Folders {
		if len(m.Keys(folder)) > 0 {
			return false
		}
	}
	return true
}

func firstOf(lists ...[]string) string {
	for _, l := range lists {
		if len(l) > 0 {
			return l[0]
		}
	}
	return ""
}

func union(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, v := range l {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
