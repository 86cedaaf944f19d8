package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	core "github.com/bulatminnakhmetov/property-site/internal/media"
)

// Progress is reported before each file of a batch is sent.
type Progress struct {
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

type BatchRequest struct {
	Slug   string
	Folder core.Folder
	Files  []UploadedFile
	// Space is assigned to new photos. Ignored for other folders.
	Space    string
	Progress func(Progress)
}

type BatchResult struct {
	Slug     string   `json:"slug"`
	Folder   string   `json:"folder"`
	Uploaded []string `json:"uploaded"`
	// Added holds keys that were not in the folder before the batch.
	Added        []string       `json:"added"`
	Manifest     *core.Manifest `json:"manifest,omitempty"`
	Version      int64          `json:"version"`
	Status       string         `json:"status"`
	PersistError string         `json:"persistError,omitempty"`
}

type UploadResult struct {
	ObjectPath  string `json:"objectPath"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Version     int64  `json:"version"`
	Status      string `json:"status"`
}

type UploadURLRequest struct {
	Slug        string
	Folder      core.Folder
	Filename    string
	ContentType string
	Size        int64
}

type UploadURL struct {
	ObjectPath  string    `json:"objectPath"`
	UploadURL   string    `json:"uploadUrl"`
	ContentType string    `json:"contentType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// checkFile applies the folder rule to one file. It returns the object key.
func (s *MediaService) checkFile(slug string, folder core.Folder, filename string, size int64, contentType string) (string, error) {
	rule, ok := core.Rules(folder)
	if !ok {
		return "", fmt.Errorf("%w: unknown folder %q", core.ErrInvalidPayload, folder)
	}
	if size <= 0 {
		return "", core.ErrEmptyFile
	}
	limit := rule.MaxBytes
	if s.maxBytes < limit {
		limit = s.maxBytes
	}
	if size > limit {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", core.ErrTooLarge, size, limit)
	}
	if !rule.Accepts(contentType) {
		return "", fmt.Errorf("%w: %s accepts %s only", core.ErrUnsupportedType, folder, strings.Join(rule.AllowedTypes, ", "))
	}
	key := core.ObjectKey(slug, folder, filename)
	if key == "" {
		return "", fmt.Errorf("%w: invalid file name %q", core.ErrInvalidPayload, filename)
	}
	return key, nil
}

// Upload stores a single file and reconciles the listing.
func (s *MediaService) Upload(ctx context.Context, slug string, folder core.Folder, file UploadedFile, editor core.Editor) (*UploadResult, error) {
	if file == nil {
		return nil, fmt.Errorf("%w: file is required", core.ErrInvalidPayload)
	}
	result, err := s.UploadBatch(ctx, BatchRequest{Slug: slug, Folder: folder, Files: []UploadedFile{file}}, editor)
	if err != nil {
		var batchErr *core.BatchError
		if errors.As(err, &batchErr) {
			return nil, batchErr.Err
		}
		return nil, err
	}
	return &UploadResult{
		ObjectPath:  result.Uploaded[0],
		ContentType: contentTypeOf(file),
		Size:        file.GetSize(),
		Version:     result.Version,
		Status:      result.Status,
	}, nil
}

// UploadBatch uploads files one at a time. The whole batch is validated
// before anything is sent, and names that sanitize to the same key are
// rejected; the first failing upload stops the batch and is
// returned as a *core.BatchError. Whatever was uploaded is then reconciled
// into the manifest with a single write. A failed write is reported in the
// result, not as an error.
func (s *MediaService) UploadBatch(ctx context.Context, req BatchRequest, editor core.Editor) (*BatchResult, error) {
	slug, err := parseSlug(req.Slug)
	if err != nil {
		return nil, err
	}
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("%w: no files", core.ErrInvalidPayload)
	}

	total := len(req.Files)
	keys := make([]string, total)
	types := make([]string, total)
	seen := make(map[string]string, total)
	for i, file := range req.Files {
		types[i] = contentTypeOf(file)
		key, err := s.checkFile(slug, req.Folder, file.GetFilename(), file.GetSize(), types[i])
		if err == nil {
			if other, dup := seen[key]; dup {
				err = fmt.Errorf("%w: %q and %q both store as %s", core.ErrInvalidPayload, other, file.GetFilename(), path.Base(key))
			}
		}
		if err != nil {
			return nil, &core.BatchError{Index: i + 1, Total: total, Filename: file.GetFilename(), Err: err}
		}
		seen[key] = file.GetFilename()
		keys[i] = key
	}

	space := ""
	if req.Folder == core.FolderPhotos {
		space = core.NormalizeSpaceName(req.Space)
	}

	before, err := s.objects.List(ctx, core.Prefix(slug, req.Folder))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", core.Prefix(slug, req.Folder), err)
	}
	existed := make(map[string]struct{}, len(before))
	for _, obj := range before {
		existed[obj.Key] = struct{}{}
	}

	result := &BatchResult{Slug: slug, Folder: string(req.Folder), Uploaded: []string{}, Added: []string{}}
	var batchErr *core.BatchError
	for i, file := range req.Files {
		status := fmt.Sprintf("Uploading %d/%d: %s", i+1, total, file.GetFilename())
		if req.Progress != nil {
			req.Progress(Progress{Index: i + 1, Total: total, Filename: file.GetFilename(), Status: status})
		}
		if err := s.put(ctx, keys[i], file, types[i]); err != nil {
			batchErr = &core.BatchError{Index: i + 1, Total: total, Filename: file.GetFilename(), Err: err}
			s.logger.Errorw("Upload failed", "slug", slug, "key", keys[i], "index", i+1, "total", total, "error", err)
			break
		}
		result.Uploaded = append(result.Uploaded, keys[i])
	}

	if len(result.Uploaded) > 0 {
		s.persistBatch(ctx, slug, req.Folder, space, existed, editor, result)
	}

	if batchErr != nil {
		result.Status = fmt.Sprintf("Upload %d/%d failed (%s). %d file(s) uploaded.", batchErr.Index, batchErr.Total, batchErr.Filename, len(result.Uploaded))
		return result, batchErr
	}
	if result.PersistError == "" {
		result.Status = uploadedStatus(len(result.Uploaded), req.Folder, space)
	}
	return result, nil
}

func (s *MediaService) put(ctx context.Context, key string, file UploadedFile, contentType string) error {
	f, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if err := s.objects.Put(ctx, key, f, file.GetSize(), contentType); err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

// persistBatch re-lists the listing, reconciles, assigns the target space to
// photos that did not exist before the batch and writes the manifest once.
func (s *MediaService) persistBatch(ctx context.Context, slug string, folder core.Folder, space string, existed map[string]struct{}, editor core.Editor, result *BatchResult) {
	d, err := s.discover(ctx, slug)
	if err != nil {
		s.persistFailed(slug, result, err)
		return
	}
	for _, key := range d.keys[folder] {
		if _, ok := existed[key]; !ok {
			result.Added = append(result.Added, key)
		}
	}

	saved, err := s.manifests.Update(ctx, slug, editor, func(current *core.Manifest, _ bool) (*core.Manifest, error) {
		next := core.ReconcileManifest(slug, d.keys, current)
		if space != "" {
			for _, key := range result.Added {
				next.AssignSpace(key, space)
			}
		}
		return next, nil
	})
	if err != nil {
		s.persistFailed(slug, result, err)
		return
	}
	result.Manifest = saved
	result.Version = saved.Version
	s.notify(slug, saved.Version, "upload")
}

func (s *MediaService) persistFailed(slug string, result *BatchResult, err error) {
	s.logger.Errorw("Failed to save manifest after upload", "slug", slug, "uploaded", len(result.Uploaded), "error", err)
	result.PersistError = err.Error()
	result.Status = fmt.Sprintf("Uploaded %d file(s), but saving the order failed: %v", len(result.Uploaded), err)
}

func uploadedStatus(n int, folder core.Folder, space string) string {
	if space != "" {
		return fmt.Sprintf("Uploaded %d file(s) to %s (%s).", n, folder, space)
	}
	return fmt.Sprintf("Uploaded %d file(s) to %s.", n, folder)
}

// UploadURL signs a direct write of one file.
func (s *MediaService) UploadURL(ctx context.Context, req UploadURLRequest) (*UploadURL, error) {
	slug, err := parseSlug(req.Slug)
	if err != nil {
		return nil, err
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	size := req.Size
	if size == 0 {
		// Browsers may not report a size up front.
		size = 1
	}
	key, err := s.checkFile(slug, req.Folder, req.Filename, size, contentType)
	if err != nil {
		return nil, err
	}

	url, err := s.objects.SignWrite(ctx, key, s.writeTTL, contentType)
	if err != nil {
		s.logger.Errorw("Failed to sign upload URL", "slug", slug, "key", key, "error", err)
		return nil, fmt.Errorf("failed to sign upload url: %w", err)
	}
	return &UploadURL{
		ObjectPath:  key,
		UploadURL:   url,
		ContentType: contentType,
		ExpiresAt:   time.Now().Add(s.writeTTL).UTC(),
	}, nil
}
