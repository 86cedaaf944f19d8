// Command push-property copies a local listing into the configured stores.
//
//	push-property -slug maple [-content content/properties] [-media ./maple-media]
//
// The media directory holds one subdirectory per folder (hero, photos, ...).
// Subdirectories of photos/ are uploaded with their name as the space.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/bulatminnakhmetov/property-site/internal/app"
	"github.com/bulatminnakhmetov/property-site/internal/config"
	"github.com/bulatminnakhmetov/property-site/internal/logger"
	core "github.com/bulatminnakhmetov/property-site/internal/media"
	model "github.com/bulatminnakhmetov/property-site/internal/property"
	mediaservice "github.com/bulatminnakhmetov/property-site/internal/service/media"
	propertyservice "github.com/bulatminnakhmetov/property-site/internal/service/property"
)

var editor = core.Editor{Source: "cli"}

func main() {
	var (
		slug     = flag.String("slug", "", "listing slug")
		content  = flag.String("content", "", "content directory (defaults to CONTENT_DIR)")
		mediaDir = flag.String("media", "", "optional directory of media to upload")
		envFile  = flag.String("env", ".env", "env file")
	)
	flag.Parse()

	if *slug == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *content != "" {
		cfg.ContentDir = *content
	}

	zl, err := logger.New(true, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync()
	sugar := zl.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalw("Failed to open backends", "error", err)
	}
	defer backends.Close()

	p := newPusher(cfg, backends, sugar)
	if err := p.push(ctx, *slug, *mediaDir); err != nil {
		sugar.Errorw("Push failed", "slug", *slug, "error", err)
		os.Exit(1)
	}
}

type pusher struct {
	contentDir string
	properties *propertyservice.PropertyService
	media      *mediaservice.MediaService
	logger     *zap.SugaredLogger
}

func newPusher(cfg *config.Config, b *app.Backends, logger *zap.SugaredLogger) *pusher {
	return &pusher{
		contentDir: cfg.ContentDir,
		properties: propertyservice.NewPropertyService(b.Listings, b.Objects, cfg.ContentDir, cfg.Media.ReadURLTTL, logger),
		media: mediaservice.NewMediaService(b.Objects, b.Listings, nil, logger, mediaservice.Config{
			ReadTTL:  cfg.Media.ReadURLTTL,
			WriteTTL: cfg.Media.WriteURLTTL,
			MaxBytes: cfg.Media.MaxUploadBytes,
		}),
		logger: logger,
	}
}

func (p *pusher) push(ctx context.Context, slug, mediaDir string) error {
	local, err := model.LoadFile(p.contentDir, core.SanitizeSlug(slug))
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", slug, err)
	}
	saved, err := p.properties.Save(ctx, slug, local, editor)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", slug, err)
	}
	p.logger.Infow("Listing saved", "slug", saved.Slug, "headline", saved.Headline)

	if mediaDir == "" {
		return nil
	}
	for _, folder := range core.Folders {
		batches, err := collect(filepath.Join(mediaDir, string(folder)), folder)
		if err != nil {
			return err
		}
		for _, batch := range batches {
			result, err := p.media.UploadBatch(ctx, mediaservice.BatchRequest{
				Slug:   slug,
				Folder: folder,
				Files:  batch.files,
				Space:  batch.space,
				Progress: func(pr mediaservice.Progress) {
					p.logger.Infow(pr.Status, "folder", folder)
				},
			}, editor)
			if err != nil {
				return err
			}
			if result.PersistError != "" {
				return fmt.Errorf("%s", result.Status)
			}
			p.logger.Info(result.Status)
		}
	}
	return nil
}

type batch struct {
	space string
	files []mediaservice.UploadedFile
}

// collect groups the regular files of dir into batches. Only photos use
// subdirectories, one batch per space.
func collect(dir string, folder core.Folder) ([]batch, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var batches []batch
	root := batch{}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if folder != core.FolderPhotos {
				continue
			}
			nested, err := collect(path, "")
			if err != nil {
				return nil, err
			}
			for _, b := range nested {
				b.space = entry.Name()
				batches = append(batches, b)
			}
			continue
		}
		file, err := mediaservice.NewLocalFile(path)
		if err != nil {
			return nil, err
		}
		root.files = append(root.files, file)
	}
	if len(root.files) > 0 {
		batches = append([]batch{root}, batches...)
	}
	return batches, nil
}
