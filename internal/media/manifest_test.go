package media

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_Prune(t *testing.T) {
	bg1 := "listings/maple/backgrounds/1.jpg"
	bg2 := "listings/maple/backgrounds/2.jpg"
	photo := "listings/maple/photos/a.jpg"
	doc := "listings/maple/docs/plan.pdf"

	m := &Manifest{
		Hero:             []string{bg1},
		Photos:           []string{photo},
		PhotoSpaces:      map[string]string{photo: "Kitchen"},
		PhotoSpaceOrder:  []string{"Kitchen"},
		Backgrounds:      []string{bg1, bg2},
		OverviewBackdrop: bg1,
		Documents:        []Document{{Label: "Plan", Href: doc}},
	}

	assert.True(t, m.Prune(bg1))
	assert.Empty(t, m.Hero)
	assert.Equal(t, []string{bg2}, m.Backgrounds)
	assert.Equal(t, bg2, m.OverviewBackdrop)

	assert.True(t, m.Prune(photo))
	assert.Empty(t, m.Photos)
	assert.Empty(t, m.PhotoSpaces)
	assert.Equal(t, []string{"Kitchen"}, m.PhotoSpaceOrder, "spaces survive as empty groups")

	assert.True(t, m.Prune(doc))
	assert.Empty(t, m.Documents)

	assert.False(t, m.Prune("listings/maple/photos/missing.jpg"))
}

func TestManifest_Reorder(t *testing.T) {
	m := &Manifest{Photos: []string{"a", "b", "c", "d"}}

	assert.True(t, m.Reorder(FolderPhotos, 3, 1))
	assert.Equal(t, []string{"a", "d", "b", "c"}, m.Photos)

	assert.True(t, m.Reorder(FolderPhotos, 0, 3))
	assert.Equal(t, []string{"d", "b", "c", "a"}, m.Photos)

	assert.False(t, m.Reorder(FolderPhotos, 0, 4))
	assert.False(t, m.Reorder(FolderPhotos, -1, 0))
	assert.False(t, m.Reorder(FolderPhotos, 2, 2))

	t.Run("Backgrounds move the backdrop", func(t *testing.T) {
		m := &Manifest{Backgrounds: []string{"x", "y"}, OverviewBackdrop: "x"}
		assert.True(t, m.Reorder(FolderBackgrounds, 1, 0))
		assert.Equal(t, "y", m.OverviewBackdrop)
	})

	t.Run("Documents keep labels", func(t *testing.T) {
		m := &Manifest{Documents: []Document{{Label: "A", Href: "a"}, {Label: "B", Href: "b"}}}
		assert.True(t, m.Reorder(FolderDocs, 0, 1))
		assert.Equal(t, []Document{{Label: "B", Href: "b"}, {Label: "A", Href: "a"}}, m.Documents)
	})
}

func TestManifest_RenameDocument(t *testing.T) {
	href := "listings/maple/docs/plan.pdf"
	m := &Manifest{Documents: []Document{{Label: "plan.pdf", Href: href}}}

	assert.True(t, m.RenameDocument(href, " Floor plan "))
	assert.Equal(t, "Floor plan", m.Documents[0].Label)

	assert.True(t, m.RenameDocument(href, ""))
	assert.Equal(t, "plan.pdf", m.Documents[0].Label)

	assert.False(t, m.RenameDocument("listings/maple/docs/other.pdf", "x"))
}

func TestManifest_Clone(t *testing.T) {
	m := &Manifest{
		Photos:      []string{"a"},
		PhotoSpaces: map[string]string{"a": "Kitchen"},
		Documents:   []Document{{Label: "L", Href: "h"}},
	}
	c := m.Clone()
	c.Photos[0] = "b"
	c.PhotoSpaces["a"] = "Garage"
	c.Documents[0].Label = "X"

	assert.Equal(t, "a", m.Photos[0])
	assert.Equal(t, "Kitchen", m.PhotoSpaces["a"])
	assert.Equal(t, "L", m.Documents[0].Label)

	var nilManifest *Manifest
	assert.NotNil(t, nilManifest.Clone())
}

func TestManifest_JSON(t *testing.T) {
	raw := `{"hero":["h"],"photos":[],"photoSpaces":{"p":"Kitchen"},"photoSpaceOrder":["Kitchen"],
		"floorplans":[],"backgrounds":["b"],"overviewBackdrop":"b","contactVideos":[],
		"documents":[{"label":"Plan","href":"d"}],"version":3}`

	var m Manifest
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, []string{"h"}, m.Hero)
	assert.Equal(t, "Kitchen", m.PhotoSpaces["p"])
	assert.Equal(t, "b", m.OverviewBackdrop)
	assert.Equal(t, []Document{{Label: "Plan", Href: "d"}}, m.Documents)
	assert.Equal(t, int64(3), m.Version)
}
