package property

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bulatminnakhmetov/property-site/internal/media"
)

// ContentFile is the name of a listing file inside its content directory.
const ContentFile = "property.json"

// LoadFile reads content/<slug>/property.json. The slug always comes from the
// directory name. Hero images are merged in front of the photos, and the
// overview backdrop defaults to the first background or photo.
func LoadFile(root, slug string) (*Property, error) {
	raw, err := os.ReadFile(filepath.Join(root, slug, ContentFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, media.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", slug, err)
	}

	var p Property
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse %s/%s: %w", slug, ContentFile, err)
	}
	p.Slug = slug

	m := &p.Media
	m.Photos = union(m.Hero, m.Photos)
	if m.OverviewBackdrop == "" {
		m.OverviewBackdrop = first(m.Backgrounds, m.Photos)
	}
	return &p, nil
}

// ListLocalSlugs returns the directory names under root. A missing root has
// no listings.
func ListLocalSlugs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}

	var slugs []string
	for _, e := range entries {
		if e.IsDir() {
			slugs = append(slugs, e.Name())
		}
	}
	sort.Slice(slugs, func(i, j int) bool { return media.NaturalLess(slugs[i], slugs[j]) })
	return slugs, nil
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
