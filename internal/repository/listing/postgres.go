package listing

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"sort"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/bulatminnakhmetov/property-site/internal/media"
	"github.com/bulatminnakhmetov/property-site/internal/property"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "failed to open migrations")
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "failed to init migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "failed to init migrations")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "failed to apply migrations")
	}
	return nil
}

// PostgresRepository stores listings in the properties table. Listing fields
// live in data, the media manifest in manifest.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Get(ctx context.Context, slug string) (*media.Manifest, error) {
	var (
		raw     []byte
		version int64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT manifest, version FROM properties WHERE slug = $1", slug,
	).Scan(&raw, &version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, media.ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to read manifest of %s", slug)
	}
	return decodeManifestJSON(raw, version)
}

func (r *PostgresRepository) Put(ctx context.Context, slug string, m *media.Manifest, editor media.Editor) (int64, error) {
	next, err := r.Update(ctx, slug, editor, func(*media.Manifest, bool) (*media.Manifest, error) {
		return m, nil
	})
	if err != nil {
		return 0, err
	}
	return next.Version, nil
}

func (r *PostgresRepository) Update(ctx context.Context, slug string, editor media.Editor, fn media.UpdateFunc) (*media.Manifest, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	current := &media.Manifest{}
	exists := true

	var (
		raw     []byte
		version int64
	)
	err = tx.QueryRowContext(ctx,
		"SELECT manifest, version FROM properties WHERE slug = $1 FOR UPDATE", slug,
	).Scan(&raw, &version)
	switch {
	case err == sql.ErrNoRows:
		exists = false
	case err != nil:
		return nil, errors.Wrapf(err, "failed to lock manifest of %s", slug)
	default:
		if current, err = decodeManifestJSON(raw, version); err != nil {
			return nil, err
		}
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
	body, err := json.Marshal(next)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode manifest")
	}
	by, err := json.Marshal(editor)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode editor")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO properties (slug, manifest, version, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (slug) DO UPDATE
		SET manifest = EXCLUDED.manifest,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by`,
		slug, body, next.Version, r.now().UTC(), by,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to write manifest of %s", slug)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit manifest")
	}
	return next, nil
}

func (r *PostgresRepository) GetProperty(ctx context.Context, slug string) (*property.Property, error) {
	var (
		data, manifest, updatedBy []byte
		version                   int64
		updatedAt                 sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT data, manifest, version, updated_at, updated_by FROM properties WHERE slug = $1", slug,
	).Scan(&data, &manifest, &version, &updatedAt, &updatedBy)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, media.ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to read property %s", slug)
	}

	var p property.Property
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, errors.Wrapf(err, "failed to decode property %s", slug)
		}
	}
	m, err := decodeManifestJSON(manifest, version)
	if err != nil {
		return nil, err
	}

	p.Slug = slug
	p.Media = p.Media.Extras().WithManifest(m)
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time.UTC().Format(time.RFC3339Nano)
	}
	if len(updatedBy) > 0 {
		var editor media.Editor
		if err := json.Unmarshal(updatedBy, &editor); err == nil {
			p.UpdatedBy = &editor
		}
	}
	return &p, nil
}

func (r *PostgresRepository) SaveProperty(ctx context.Context, slug string, p *property.Property, editor media.Editor) error {
	listing := *p
	listing.Slug = slug
	listing.Media = p.Media.Extras()
	listing.UpdatedAt = ""
	listing.UpdatedBy = nil

	data, err := json.Marshal(listing)
	if err != nil {
		return errors.Wrap(err, "failed to encode property")
	}
	by, err := json.Marshal(editor)
	if err != nil {
		return errors.Wrap(err, "failed to encode editor")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO properties (slug, data, updated_at, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE
		SET data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by`,
		slug, data, r.now().UTC(), by,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to write property %s", slug)
	}
	return nil
}

func (r *PostgresRepository) ListSlugs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT slug FROM properties")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list properties")
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, errors.Wrap(err, "failed to scan slug")
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to list properties")
	}
	sort.Slice(slugs, func(i, j int) bool { return media.NaturalLess(slugs[i], slugs[j]) })
	return slugs, nil
}

func decodeManifestJSON(raw []byte, version int64) (*media.Manifest, error) {
	m := &media.Manifest{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, m); err != nil {
			return nil, errors.Wrap(err, "failed to decode manifest")
		}
	}
	m.Version = version
	return m, nil
}
