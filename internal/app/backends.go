package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/bulatminnakhmetov/property-site/internal/config"
	"github.com/bulatminnakhmetov/property-site/internal/media"
	"github.com/bulatminnakhmetov/property-site/internal/property"
	"github.com/bulatminnakhmetov/property-site/internal/repository/listing"
	authservice "github.com/bulatminnakhmetov/property-site/internal/service/auth"
	"github.com/bulatminnakhmetov/property-site/internal/storage"
)

// ListingStore persists both the media manifest and the listing fields of a
// listing document.
type ListingStore interface {
	media.ManifestStore
	property.Store
}

// Backends are the external systems selected by configuration.
type Backends struct {
	Objects  media.ObjectStore
	Listings ListingStore
	Verifier authservice.Verifier
	Status   authservice.ConfigStatus

	closers []io.Closer
}

// Close releases every client opened by Open.
func (b *Backends) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open connects to the configured object store, listing store and identity
// provider. Read URLs are cached in Redis when REDIS_ADDR is set.
func Open(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*Backends, error) {
	b := &Backends{
		Status: authservice.ConfigStatus{
			HasExplicitJSON: cfg.Firebase.ServiceAccountJSON != "",
			HasBucket:       cfg.Firebase.StorageBucket != "",
		},
	}

	var fbApp *firebase.App
	if cfg.UsesFirebase() {
		var opts []option.ClientOption
		if cfg.Firebase.ServiceAccountJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Firebase.ServiceAccountJSON)))
		}
		app, err := firebase.NewApp(ctx, &firebase.Config{
			ProjectID:     cfg.Firebase.ProjectID,
			StorageBucket: cfg.Firebase.StorageBucket,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to init firebase app: %w", err)
		}
		fbApp = app
	}

	if err := b.openObjects(ctx, cfg, fbApp, logger); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.openListings(ctx, cfg, fbApp); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.openVerifier(ctx, cfg, fbApp); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backends) openObjects(ctx context.Context, cfg *config.Config, app *firebase.App, logger *zap.SugaredLogger) error {
	var objects media.ObjectStore
	switch cfg.StorageBackend {
	case config.StorageGCS:
		store, err := storage.NewGCSStore(ctx, app, cfg.Firebase.StorageBucket)
		if err != nil {
			return err
		}
		objects = store
	case config.StorageMinio:
		store, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return err
		}
		objects = store
	default:
		objects = storage.NewMemoryStore()
	}

	var cache storage.URLCache = storage.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		b.closers = append(b.closers, client)
		cache = storage.NewRedisCache(client, "property-site:")
	}
	b.Objects = storage.NewCachedSigner(objects, cache, logger)
	return nil
}

func (b *Backends) openListings(ctx context.Context, cfg *config.Config, app *firebase.App) error {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return fmt.Errorf("failed to init firestore client: %w", err)
		}
		b.closers = append(b.closers, client)
		b.Listings = listing.NewFirestoreRepository(client)
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		b.closers = append(b.closers, db)
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := listing.Migrate(db); err != nil {
			return err
		}
		b.Listings = listing.NewPostgresRepository(db)
	default:
		b.Listings = listing.NewMemoryRepository()
	}
	return nil
}

func (b *Backends) openVerifier(ctx context.Context, cfg *config.Config, app *firebase.App) error {
	if cfg.Auth.Provider == config.AuthJWT {
		b.Verifier = authservice.NewJWTVerifier(cfg.Auth.JWTSecret)
		return nil
	}
	client, err := app.Auth(ctx)
	if err != nil {
		// Requests report the misconfiguration instead of the server failing
		// to start.
		b.Verifier = failingVerifier{err: fmt.Errorf("%w: %v", authservice.ErrMisconfigured, err)}
		return nil
	}
	b.Verifier = authservice.NewFirebaseVerifier(client)
	return nil
}

// failingVerifier rejects every token with the error the identity provider
// could not be initialized with.
type failingVerifier struct {
	err error
}

func (v failingVerifier) Verify(context.Context, string) (*authservice.Identity, error) {
	return nil, v.err
}
