package media

import (
	"sort"
	"strings"
)

// Reconcile merges an object listing with a persisted order. The result holds
// exactly the discovered keys: first those named in preferred, in preferred
// order, then the rest in natural order. Keys in preferred that were not
// discovered are ignored, and duplicates collapse to their first position.
func Reconcile(discovered, preferred []string) []string {
	present := make(map[string]struct{}, len(discovered))
	for _, key := range discovered {
		present[key] = struct{}{}
	}

	out := make([]string, 0, len(present))
	placed := make(map[string]struct{}, len(present))
	for _, key := range preferred {
		if _, ok := present[key]; !ok {
			continue
		}
		if _, dup := placed[key]; dup {
			continue
		}
		placed[key] = struct{}{}
		out = append(out, key)
	}

	rest := make([]string, 0, len(present)-len(out))
	for _, key := range discovered {
		if _, done := placed[key]; done {
			continue
		}
		placed[key] = struct{}{}
		rest = append(rest, key)
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return NaturalLess(rest[i], rest[j])
	})
	return append(out, rest...)
}

// NormalizeKeys trims entries, drops keys outside the folder and removes
// duplicates, keeping first occurrences.
func NormalizeKeys(slug string, folder Folder, keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, raw := range keys {
		key := strings.TrimSpace(raw)
		if key == "" || !InFolder(slug, folder, key) {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// NormalizeDocuments is NormalizeKeys for documents: hrefs must be in docs,
// labels default to the file name.
func NormalizeDocuments(slug string, docs []Document) []Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		href := strings.TrimSpace(d.Href)
		if href == "" || !InFolder(slug, FolderDocs, href) {
			continue
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		label := strings.TrimSpace(d.Label)
		if label == "" {
			label = defaultLabel(href)
		}
		out = append(out, Document{Label: label, Href: href})
	}
	return out
}

// PreferredOrder returns the persisted order of a folder, restricted to keys
// the folder owns. Backgrounds also fold in the legacy overview backdrop.
func PreferredOrder(slug string, folder Folder, m *Manifest) []string {
	keys := m.Keys(folder)
	if folder == FolderBackgrounds && strings.TrimSpace(m.OverviewBackdrop) != "" {
		keys = append(cloneStrings(keys), m.OverviewBackdrop)
	}
	return NormalizeKeys(slug, folder, keys)
}

// ReconcileFolder reconciles one folder of the manifest against its listing.
func ReconcileFolder(slug string, folder Folder, discovered []string, m *Manifest) []string {
	return Reconcile(NormalizeKeys(slug, folder, discovered), PreferredOrder(slug, folder, m))
}

// ReconcileManifest proposes the next manifest for a listing given what each
// folder currently holds. Folders missing from discovered are reconciled as
// empty. The input manifest is not modified.
func ReconcileManifest(slug string, discovered map[Folder][]string, current *Manifest) *Manifest {
	next := current.Clone()
	for _, folder := range Folders {
		next.SetKeys(folder, ReconcileFolder(slug, folder, discovered[folder], current))
	}
	next.OverviewBackdrop = first(next.Backgrounds)
	next.normalizeSpaces()
	return next
}

// normalizeSpaces keeps space assignments for current photos only and makes
// sure every assigned space is listed in the space order.
func (m *Manifest) normalizeSpaces() {
	photos := make(map[string]struct{}, len(m.Photos))
	for _, key := range m.Photos {
		photos[key] = struct{}{}
	}

	spaces := make(map[string]string, len(m.PhotoSpaces))
	for key, raw := range m.PhotoSpaces {
		if _, ok := photos[key]; !ok {
			continue
		}
		if name := NormalizeSpaceName(raw); name != "" {
			spaces[key] = name
		}
	}
	m.PhotoSpaces = spaces
	m.PhotoSpaceOrder = uniqueSpaces(m.PhotoSpaceOrder)

	for _, key := range m.Photos {
		if name, ok := spaces[key]; ok {
			m.ensureSpace(name)
		}
	}
}
