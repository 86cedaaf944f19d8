package property

import (
	"github.com/bulatminnakhmetov/property-site/internal/media"
)

type Address struct {
	Street string `json:"street" firestore:"street" validate:"required"`
	City   string `json:"city" firestore:"city" validate:"required"`
	State  string `json:"state" firestore:"state" validate:"required"`
	Zip    string `json:"zip" firestore:"zip" validate:"required"`
}

type Money struct {
	Amount   float64 `json:"amount" firestore:"amount" validate:"gte=0"`
	Currency string  `json:"currency" firestore:"currency" validate:"required,len=3"`
}

type Lot struct {
	Acres float64 `json:"acres,omitempty" firestore:"acres,omitempty"`
	Sqft  float64 `json:"sqft,omitempty" firestore:"sqft,omitempty"`
}

type Agent struct {
	Name      string `json:"name" firestore:"name" validate:"required"`
	Phone     string `json:"phone,omitempty" firestore:"phone,omitempty"`
	Email     string `json:"email,omitempty" firestore:"email,omitempty" validate:"omitempty,email"`
	Brokerage string `json:"brokerage,omitempty" firestore:"brokerage,omitempty"`
	PhotoURL  string `json:"photoUrl,omitempty" firestore:"photoUrl,omitempty"`
}

type OpenHouse struct {
	StartISO string `json:"startIso" firestore:"startIso" validate:"required"`
	EndISO   string `json:"endIso,omitempty" firestore:"endIso,omitempty"`
	Note     string `json:"note,omitempty" firestore:"note,omitempty"`
}

type Location struct {
	Lat float64 `json:"lat" firestore:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" firestore:"lon" validate:"gte=-180,lte=180"`
}

type Video struct {
	Title     string `json:"title,omitempty" firestore:"title,omitempty"`
	EmbedURL  string `json:"embedUrl,omitempty" firestore:"embedUrl,omitempty"`
	MP4URL    string `json:"mp4Url,omitempty" firestore:"mp4Url,omitempty"`
	PosterURL string `json:"posterUrl,omitempty" firestore:"posterUrl,omitempty"`
}

type Tour struct {
	Label string `json:"label" firestore:"label" validate:"required"`
	Href  string `json:"href" firestore:"href" validate:"required"`
}

// Media is the media section of a listing as stored and rendered: the
// manifest lists plus fields edited with the listing itself.
type Media struct {
	Hero             []string          `json:"hero,omitempty" firestore:"hero,omitempty"`
	Photos           []string          `json:"photos,omitempty" firestore:"photos,omitempty"`
	PhotoSpaces      map[string]string `json:"photoSpaces,omitempty" firestore:"photoSpaces,omitempty"`
	PhotoSpaceOrder  []string          `json:"photoSpaceOrder,omitempty" firestore:"photoSpaceOrder,omitempty"`
	Floorplans       []string          `json:"floorplans,omitempty" firestore:"floorplans,omitempty"`
	Backgrounds      []string          `json:"backgrounds,omitempty" firestore:"backgrounds,omitempty"`
	OverviewBackdrop string            `json:"overviewBackdrop,omitempty" firestore:"overviewBackdrop,omitempty"`
	ContactVideos    []string          `json:"contactVideos,omitempty" firestore:"contactVideos,omitempty"`
	ContactVideo     string            `json:"contactVideo,omitempty" firestore:"contactVideo,omitempty"`
	Documents        []media.Document  `json:"documents,omitempty" firestore:"documents,omitempty"`
	Video            *Video            `json:"video,omitempty" firestore:"video,omitempty"`
	Tours            []Tour            `json:"tours,omitempty" firestore:"tours,omitempty" validate:"omitempty,dive"`
	Version          int64             `json:"version,omitempty" firestore:"version,omitempty"`
}

// Property is one listing.
type Property struct {
	Slug        string        `json:"slug" firestore:"-"`
	Address     Address       `json:"address" firestore:"address"`
	Price       Money         `json:"price" firestore:"price"`
	Beds        float64       `json:"beds" firestore:"beds" validate:"gte=0"`
	Baths       float64       `json:"baths" firestore:"baths" validate:"gte=0"`
	HomeSqft    float64       `json:"homeSqft" firestore:"homeSqft" validate:"gte=0"`
	Lot         Lot           `json:"lot" firestore:"lot"`
	Headline    string        `json:"headline,omitempty" firestore:"headline,omitempty"`
	Description string        `json:"description" firestore:"description"`
	Features    []string      `json:"features,omitempty" firestore:"features,omitempty"`
	Agent       *Agent        `json:"agent,omitempty" firestore:"agent,omitempty"`
	OpenHouses  []OpenHouse   `json:"openHouses,omitempty" firestore:"openHouses,omitempty" validate:"omitempty,dive"`
	Location    *Location     `json:"location,omitempty" firestore:"location,omitempty"`
	Media       Media         `json:"media" firestore:"media"`
	UpdatedAt   string        `json:"updatedAt,omitempty" firestore:"updatedAt,omitempty"`
	UpdatedBy   *media.Editor `json:"updatedBy,omitempty" firestore:"updatedBy,omitempty"`
}

// Summary is the card shown in the listing index.
type Summary struct {
	Slug      string  `json:"slug"`
	Address   Address `json:"address"`
	Price     Money   `json:"price"`
	Beds      float64 `json:"beds"`
	Baths     float64 `json:"baths"`
	HomeSqft  float64 `json:"homeSqft"`
	Headline  string  `json:"headline,omitempty"`
	HeroImage string  `json:"heroImage,omitempty"`
}

// Manifest extracts the manifest part of the media section.
func (m Media) Manifest() *media.Manifest {
	out := &media.Manifest{
		Hero:             m.Hero,
		Photos:           m.Photos,
		PhotoSpaces:      m.PhotoSpaces,
		PhotoSpaceOrder:  m.PhotoSpaceOrder,
		Floorplans:       m.Floorplans,
		Backgrounds:      m.Backgrounds,
		OverviewBackdrop: m.OverviewBackdrop,
		ContactVideos:    m.ContactVideos,
		Documents:        m.Documents,
		Version:          m.Version,
	}
	return out.Clone()
}

// WithManifest returns a copy of the media section with the manifest lists
// replaced. Video and tours are kept.
func (m Media) WithManifest(man *media.Manifest) Media {
	c := man.Clone()
	m.Hero = c.Hero
	m.Photos = c.Photos
	m.PhotoSpaces = c.PhotoSpaces
	m.PhotoSpaceOrder = c.PhotoSpaceOrder
	m.Floorplans = c.Floorplans
	m.Backgrounds = c.Backgrounds
	m.OverviewBackdrop = c.OverviewBackdrop
	m.ContactVideos = c.ContactVideos
	m.Documents = c.Documents
	m.Version = c.Version
	return m
}

// Extras keeps only the fields edited together with the listing.
func (m Media) Extras() Media {
	return Media{Video: m.Video, Tours: m.Tours}
}

// Summary builds the index card of the listing.
func (p *Property) Summary() Summary {
	return Summary{
		Slug:      p.Slug,
		Address:   p.Address,
		Price:     p.Price,
		Beds:      p.Beds,
		Baths:     p.Baths,
		HomeSqft:  p.HomeSqft,
		Headline:  p.Headline,
		HeroImage: first(p.Media.Photos, p.Media.Hero),
	}
}

func first(lists ...[]string) string {
	for _, l := range lists {
		if len(l) > 0 {
			return l[0]
		}
	}
	return ""
}
