package media

import (
	"path"
	"regexp"
	"strings"
)

// Folder is a media category. It determines the object path prefix and upload rules.
type Folder string

const (
	FolderHero         Folder = "hero"
	FolderPhotos       Folder = "photos"
	FolderFloorplans   Folder = "floorplans"
	FolderBackgrounds  Folder = "backgrounds"
	FolderContactVideo Folder = "contactvideo"
	FolderDocs         Folder = "docs"
)

// Folders lists every category in display order.
var Folders = []Folder{
	FolderHero,
	FolderPhotos,
	FolderFloorplans,
	FolderBackgrounds,
	FolderContactVideo,
	FolderDocs,
}

const (
	// MaxUploadSize is the per-file ceiling for every folder.
	MaxUploadSize = 25 * 1024 * 1024 // 25 MB

	ContentTypePDF = "application/pdf"

	listingsRoot = "listings"
)

// Rule describes what a folder accepts.
type Rule struct {
	MaxBytes int64
	// AllowedTypes is empty when any content type is accepted.
	AllowedTypes []string
}

var folderRules = map[Folder]Rule{
	FolderHero:         {MaxBytes: MaxUploadSize},
	FolderPhotos:       {MaxBytes: MaxUploadSize},
	FolderFloorplans:   {MaxBytes: MaxUploadSize},
	FolderBackgrounds:  {MaxBytes: MaxUploadSize},
	FolderContactVideo: {MaxBytes: MaxUploadSize},
	FolderDocs:         {MaxBytes: MaxUploadSize, AllowedTypes: []string{ContentTypePDF}},
}

// Rules returns the upload rule for a folder.
func Rules(folder Folder) (Rule, bool) {
	rule, ok := folderRules[folder]
	return rule, ok
}

// Accepts reports whether the content type may be stored in the folder.
func (r Rule) Accepts(contentType string) bool {
	if len(r.AllowedTypes) == 0 {
		return true
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, allowed := range r.AllowedTypes {
		if ct == allowed {
			return true
		}
	}
	return false
}

// ParseFolder validates a folder name.
func ParseFolder(value string) (Folder, bool) {
	f := Folder(strings.TrimSpace(value))
	_, ok := folderRules[f]
	return f, ok
}

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)
	dashRuns    = regexp.MustCompile(`-+`)
)

// SafeName maps a value onto [A-Za-z0-9_.-] with collapsed and trimmed dashes.
func SafeName(value string) string {
	out := unsafeChars.ReplaceAllString(value, "-")
	out = dashRuns.ReplaceAllString(out, "-")
	out = strings.TrimPrefix(out, "-")
	return strings.TrimSuffix(out, "-")
}

// SanitizeSlug lower-cases, trims and sanitizes a listing slug.
func SanitizeSlug(value string) string {
	return SafeName(strings.ToLower(strings.TrimSpace(value)))
}

// ListingPrefix is the object prefix that every object of a listing starts with.
func ListingPrefix(slug string) string {
	return listingsRoot + "/" + slug + "/"
}

// Prefix is the object prefix of one folder of a listing.
func Prefix(slug string, folder Folder) string {
	return ListingPrefix(slug) + string(folder) + "/"
}

// ObjectKey builds the key for an uploaded file. It returns "" when the
// filename sanitizes to nothing.
func ObjectKey(slug string, folder Folder, filename string) string {
	name := SafeName(filename)
	if name == "" || name == "." || name == ".." {
		return ""
	}
	return Prefix(slug, folder) + name
}

// InFolder enforces the ownership invariant: key must live under the folder
// of the given listing and must not escape it.
func InFolder(slug string, folder Folder, key string) bool {
	if slug == "" {
		return false
	}
	prefix := Prefix(slug, folder)
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	rest := strings.TrimPrefix(key, prefix)
	if rest == "" || strings.HasSuffix(rest, "/") {
		return false
	}
	for _, segment := range strings.Split(rest, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return false
		}
	}
	return true
}

// FolderOf returns the folder owning key within the listing.
func FolderOf(slug, key string) (Folder, bool) {
	for _, f := range Folders {
		if InFolder(slug, f, key) {
			return f, true
		}
	}
	return "", false
}

// BaseName is the display name of an object.
func BaseName(key string) string {
	if key == "" {
		return ""
	}
	return path.Base(key)
}

// IsObjectKey reports whether a media reference points into the object store
// rather than at an external URL.
func IsObjectKey(ref string) bool {
	return strings.HasPrefix(ref, listingsRoot+"/")
}
