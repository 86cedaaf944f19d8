package media

import (
	"strings"
)

// Document is a labelled PDF reference.
type Document struct {
	Label string `json:"label" firestore:"label"`
	Href  string `json:"href" firestore:"href"`
}

// Manifest is the persisted ordering/labelling document of one listing.
// The object store decides which keys exist; the manifest decides their order,
// grouping and labels.
type Manifest struct {
	Hero             []string          `json:"hero" firestore:"hero"`
	Photos           []string          `json:"photos" firestore:"photos"`
	PhotoSpaces      map[string]string `json:"photoSpaces" firestore:"photoSpaces"`
	PhotoSpaceOrder  []string          `json:"photoSpaceOrder" firestore:"photoSpaceOrder"`
	Floorplans       []string          `json:"floorplans" firestore:"floorplans"`
	Backgrounds      []string          `json:"backgrounds" firestore:"backgrounds"`
	OverviewBackdrop string            `json:"overviewBackdrop,omitempty" firestore:"overviewBackdrop"`
	ContactVideos    []string          `json:"contactVideos" firestore:"contactVideos"`
	Documents        []Document        `json:"documents" firestore:"documents"`
	// Version increases by one with every store write.
	Version int64 `json:"version" firestore:"version"`
}

// Editor identifies who changed a document.
type Editor struct {
	UID    string `json:"uid,omitempty" firestore:"uid,omitempty"`
	Email  string `json:"email,omitempty" firestore:"email,omitempty"`
	Source string `json:"source,omitempty" firestore:"source,omitempty"`
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return &Manifest{}
	}
	out := *m
	out.Hero = cloneStrings(m.Hero)
	out.Photos = cloneStrings(m.Photos)
	out.PhotoSpaceOrder = cloneStrings(m.PhotoSpaceOrder)
	out.Floorplans = cloneStrings(m.Floorplans)
	out.Backgrounds = cloneStrings(m.Backgrounds)
	out.ContactVideos = cloneStrings(m.ContactVideos)
	if m.Documents != nil {
		out.Documents = append([]Document(nil), m.Documents...)
	}
	if m.PhotoSpaces != nil {
		out.PhotoSpaces = make(map[string]string, len(m.PhotoSpaces))
		for k, v := range m.PhotoSpaces {
			out.PhotoSpaces[k] = v
		}
	}
	return &out
}

// Keys returns the ordered keys of a folder. For docs these are the document hrefs.
func (m *Manifest) Keys(folder Folder) []string {
	switch folder {
	case FolderHero:
		return m.Hero
	case FolderPhotos:
		return m.Photos
	case FolderFloorplans:
		return m.Floorplans
	case FolderBackgrounds:
		return m.Backgrounds
	case FolderContactVideo:
		return m.ContactVideos
	case FolderDocs:
		hrefs := make([]string, 0, len(m.Documents))
		for _, d := range m.Documents {
			hrefs = append(hrefs, d.Href)
		}
		return hrefs
	}
	return nil
}

// SetKeys replaces the ordered keys of a folder. Document labels follow their
// href; new documents get their file name as label.
func (m *Manifest) SetKeys(folder Folder, keys []string) {
	switch folder {
	case FolderHero:
		m.Hero = keys
	case FolderPhotos:
		m.Photos = keys
	case FolderFloorplans:
		m.Floorplans = keys
	case FolderBackgrounds:
		m.Backgrounds = keys
		m.OverviewBackdrop = first(keys)
	case FolderContactVideo:
		m.ContactVideos = keys
	case FolderDocs:
		labels := make(map[string]string, len(m.Documents))
		for _, d := range m.Documents {
			if label := strings.TrimSpace(d.Label); label != "" {
				labels[d.Href] = label
			}
		}
		docs := make([]Document, 0, len(keys))
		for _, href := range keys {
			label := labels[href]
			if label == "" {
				label = defaultLabel(href)
			}
			docs = append(docs, Document{Label: label, Href: href})
		}
		m.Documents = docs
	}
}

// Prune removes key from every list it could appear in and recomputes the
// overview backdrop. It reports whether anything changed.
func (m *Manifest) Prune(key string) bool {
	changed := false
	for _, list := range []*[]string{&m.Hero, &m.Photos, &m.Floorplans, &m.Backgrounds, &m.ContactVideos} {
		if next, removed := without(*list, key); removed {
			*list = next
			changed = true
		}
	}

	docs := m.Documents[:0:0]
	for _, d := range m.Documents {
		if strings.TrimSpace(d.Href) == key {
			changed = true
			continue
		}
		docs = append(docs, d)
	}
	if len(docs) != len(m.Documents) {
		m.Documents = docs
	}

	if _, ok := m.PhotoSpaces[key]; ok {
		delete(m.PhotoSpaces, key)
		changed = true
	}

	backdrop := first(m.Backgrounds)
	if m.OverviewBackdrop != backdrop {
		m.OverviewBackdrop = backdrop
		changed = true
	}
	return changed
}

// Reorder moves the item at from to position to within one folder.
// Out of range positions are a no-op.
func (m *Manifest) Reorder(folder Folder, from, to int) bool {
	if folder == FolderDocs {
		if !validMove(len(m.Documents), from, to) {
			return false
		}
		docs := append([]Document(nil), m.Documents...)
		moved := docs[from]
		docs = append(docs[:from], docs[from+1:]...)
		docs = append(docs[:to], append([]Document{moved}, docs[to:]...)...)
		m.Documents = docs
		return true
	}
	keys := m.Keys(folder)
	if !validMove(len(keys), from, to) {
		return false
	}
	next := cloneStrings(keys)
	moved := next[from]
	next = append(next[:from], next[from+1:]...)
	next = append(next[:to], append([]string{moved}, next[to:]...)...)
	m.SetKeys(folder, next)
	return true
}

// RenameDocument sets the label of a document. An empty label restores the file name.
func (m *Manifest) RenameDocument(key, label string) bool {
	for i, d := range m.Documents {
		if d.Href != key {
			continue
		}
		label = strings.TrimSpace(label)
		if label == "" {
			label = defaultLabel(key)
		}
		m.Documents[i].Label = label
		return true
	}
	return false
}

func validMove(n, from, to int) bool {
	return from != to && from >= 0 && to >= 0 && from < n && to < n
}

func defaultLabel(href string) string {
	if name := BaseName(href); name != "" && name != "." && name != "/" {
		return name
	}
	return "Document"
}

func without(list []string, key string) ([]string, bool) {
	out := list[:0:0]
	for _, v := range list {
		if v != key {
			out = append(out, v)
		}
	}
	return out, len(out) != len(list)
}

func first(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

func cloneStrings(list []string) []string {
	if list == nil {
		return nil
	}
	return append([]string(nil), list...)
}
