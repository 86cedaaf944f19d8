package listing

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bulatminnakhmetov/property-site/internal/media"
	"github.com/bulatminnakhmetov/property-site/internal/property"
)

// Collection holds one document per listing, keyed by slug.
const Collection = "properties"

// manifestPaths are the fields a manifest write owns. Everything else in the
// document, media.video and media.tours included, is left alone.
var manifestPaths = []firestore.FieldPath{
	{"media", "hero"},
	{"media", "photos"},
	{"media", "photoSpaces"},
	{"media", "photoSpaceOrder"},
	{"media", "floorplans"},
	{"media", "backgrounds"},
	{"media", "overviewBackdrop"},
	{"media", "contactVideos"},
	{"media", "documents"},
	{"media", "version"},
	{"updatedAt"},
	{"updatedBy"},
}

var propertyPaths = []firestore.FieldPath{
	{"address"},
	{"price"},
	{"beds"},
	{"baths"},
	{"homeSqft"},
	{"lot"},
	{"headline"},
	{"description"},
	{"features"},
	{"agent"},
	{"openHouses"},
	{"location"},
	{"media", "video"},
	{"media", "tours"},
	{"updatedAt"},
	{"updatedBy"},
}

// FirestoreRepository stores listings in Firestore documents properties/<slug>.
type FirestoreRepository struct {
	client *firestore.Client
	now    func() time.Time
}

func NewFirestoreRepository(client *firestore.Client) *FirestoreRepository {
	return &FirestoreRepository{client: client, now: time.Now}
}

type manifestDoc struct {
	Media *media.Manifest `firestore:"media"`
}

func (r *FirestoreRepository) doc(slug string) *firestore.DocumentRef {
	return r.client.Collection(Collection).Doc(slug)
}

func (r *FirestoreRepository) Get(ctx context.Context, slug string) (*media.Manifest, error) {
	snap, err := r.doc(slug).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, media.ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to read %s/%s", Collection, slug)
	}
	return decodeManifest(snap)
}

func (r *FirestoreRepository) Put(ctx context.Context, slug string, m *media.Manifest, editor media.Editor) (int64, error) {
	next, err := r.Update(ctx, slug, editor, func(current *media.Manifest, _ bool) (*media.Manifest, error) {
		return m, nil
	})
	if err != nil {
		return 0, err
	}
	return next.Version, nil
}

func (r *FirestoreRepository) Update(ctx context.Context, slug string, editor media.Editor, fn media.UpdateFunc) (*media.Manifest, error) {
	ref := r.doc(slug)

	var result *media.Manifest
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = nil

		current := &media.Manifest{}
		exists := true
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			exists = false
		case err != nil:
			return err
		default:
			if current, err = decodeManifest(snap); err != nil {
				return err
			}
		}

		next, err := fn(current.Clone(), exists)
		if err != nil || next == nil {
			result = current
			return err
		}

		next = next.Clone()
		next.Version = current.Version + 1
		if err := tx.Set(ref, r.manifestData(next, editor), firestore.Merge(manifestPaths...)); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		if errors.Is(err, media.ErrConflict) || errors.Is(err, media.ErrInvalidPayload) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "failed to update %s/%s", Collection, slug)
	}
	return result, nil
}

func (r *FirestoreRepository) manifestData(m *media.Manifest, editor media.Editor) map[string]interface{} {
	var backdrop interface{} = firestore.Delete
	if m.OverviewBackdrop != "" {
		backdrop = m.OverviewBackdrop
	}
	spaces := m.PhotoSpaces
	if spaces == nil {
		spaces = map[string]string{}
	}
	docs := m.Documents
	if docs == nil {
		docs = []media.Document{}
	}

	return map[string]interface{}{
		"media": map[string]interface{}{
			"hero":             orEmpty(m.Hero),
			"photos":           orEmpty(m.Photos),
			"photoSpaces":      spaces,
			"photoSpaceOrder":  orEmpty(m.PhotoSpaceOrder),
			"floorplans":       orEmpty(m.Floorplans),
			"backgrounds":      orEmpty(m.Backgrounds),
			"overviewBackdrop": backdrop,
			"contactVideos":    orEmpty(m.ContactVideos),
			"documents":        docs,
			"version":          m.Version,
		},
		"updatedAt": r.now().UTC().Format(time.RFC3339Nano),
		"updatedBy": editor,
	}
}

func decodeManifest(snap *firestore.DocumentSnapshot) (*media.Manifest, error) {
	var d manifestDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", snap.Ref.Path)
	}
	if d.Media == nil {
		return &media.Manifest{}, nil
	}
	return d.Media, nil
}

func (r *FirestoreRepository) GetProperty(ctx context.Context, slug string) (*property.Property, error) {
	snap, err := r.doc(slug).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, media.ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to read %s/%s", Collection, slug)
	}

	var p property.Property
	if err := snap.DataTo(&p); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s/%s", Collection, slug)
	}
	p.Slug = slug
	return &p, nil
}

func (r *FirestoreRepository) SaveProperty(ctx context.Context, slug string, p *property.Property, editor media.Editor) error {
	data := map[string]interface{}{
		"address":     p.Address,
		"price":       p.Price,
		"beds":        p.Beds,
		"baths":       p.Baths,
		"homeSqft":    p.HomeSqft,
		"lot":         p.Lot,
		"headline":    p.Headline,
		"description": p.Description,
		"features":    orEmpty(p.Features),
		"agent":       p.Agent,
		"openHouses":  p.OpenHouses,
		"location":    p.Location,
		"media": map[string]interface{}{
			"video": p.Media.Video,
			"tours": p.Media.Tours,
		},
		"updatedAt": r.now().UTC().Format(time.RFC3339Nano),
		"updatedBy": editor,
	}

	if _, err := r.doc(slug).Set(ctx, data, firestore.Merge(propertyPaths...)); err != nil {
		return errors.Wrapf(err, "failed to write %s/%s", Collection, slug)
	}
	return nil
}

func (r *FirestoreRepository) ListSlugs(ctx context.Context) ([]string, error) {
	it := r.client.Collection(Collection).DocumentRefs(ctx)

	var slugs []string
	for {
		ref, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list %s", Collection)
		}
		slugs = append(slugs, ref.ID)
	}
	sort.Slice(slugs, func(i, j int) bool { return media.NaturalLess(slugs[i], slugs[j]) })
	return slugs, nil
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
