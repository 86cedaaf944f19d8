package media

import (
	"sort"
	"strings"
)

// SpaceFallback is the display group of photos without a space.
const SpaceFallback = "Unassigned"

// SpaceGroup is one display group of photos.
type SpaceGroup struct {
	Name   string   `json:"name"`
	Photos []string `json:"photos"`
}

// NormalizeSpaceName trims a space name and collapses inner whitespace.
func NormalizeSpaceName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// AssignSpace annotates a photo with a space. An empty name unassigns the photo.
// Unknown photos are ignored. It reports whether the manifest changed.
func (m *Manifest) AssignSpace(key, name string) bool {
	if !contains(m.Photos, key) {
		return false
	}
	name = NormalizeSpaceName(name)
	if name == "" {
		if _, ok := m.PhotoSpaces[key]; !ok {
			return false
		}
		delete(m.PhotoSpaces, key)
		return true
	}

	name = m.ensureSpace(name)
	if m.PhotoSpaces == nil {
		m.PhotoSpaces = make(map[string]string)
	}
	if m.PhotoSpaces[key] == name {
		return false
	}
	m.PhotoSpaces[key] = name
	return true
}

// AddSpace appends an empty space to the order unless a space with the same
// name (ignoring case) exists.
func (m *Manifest) AddSpace(name string) bool {
	name = NormalizeSpaceName(name)
	if name == "" || spaceIndex(m.PhotoSpaceOrder, name) >= 0 {
		return false
	}
	m.PhotoSpaceOrder = append(m.PhotoSpaceOrder, name)
	return true
}

// MoveGroup relocates space from to the position of space to and re-sorts
// the photo list into contiguous runs following the new order. Photos whose
// space is not in the order go last, in their current relative order.
func (m *Manifest) MoveGroup(from, to string) bool {
	from, to = NormalizeSpaceName(from), NormalizeSpaceName(to)
	if from == "" || to == "" {
		return false
	}

	order := m.roomOrder()
	fi, ti := spaceIndex(order, from), spaceIndex(order, to)
	if fi < 0 || ti < 0 || fi == ti {
		return false
	}

	moved := order[fi]
	order = append(order[:fi], order[fi+1:]...)
	order = append(order[:ti], append([]string{moved}, order[ti:]...)...)
	m.PhotoSpaceOrder = order

	rank := make(map[string]int, len(order))
	for i, name := range order {
		rank[strings.ToLower(name)] = i
	}
	unlisted := len(order)
	position := func(key string) int {
		if i, ok := rank[strings.ToLower(m.SpaceOf(key))]; ok {
			return i
		}
		return unlisted
	}

	photos := cloneStrings(m.Photos)
	sort.SliceStable(photos, func(i, j int) bool {
		return position(photos[i]) < position(photos[j])
	})
	m.Photos = photos
	return true
}

// SpaceOf returns the display space of a photo.
func (m *Manifest) SpaceOf(key string) string {
	if name := NormalizeSpaceName(m.PhotoSpaces[key]); name != "" {
		return name
	}
	return SpaceFallback
}

// Groups computes the display grouping of photos: spaces in the persisted
// order first (empty ones included), then any other group in order of first
// appearance, with unassigned photos under SpaceFallback.
func (m *Manifest) Groups() []SpaceGroup {
	groups := make([]SpaceGroup, 0, len(m.PhotoSpaceOrder)+1)
	index := make(map[string]int)
	for _, name := range m.PhotoSpaceOrder {
		lower := strings.ToLower(name)
		if _, dup := index[lower]; dup {
			continue
		}
		index[lower] = len(groups)
		groups = append(groups, SpaceGroup{Name: name, Photos: []string{}})
	}

	for _, key := range m.Photos {
		name := m.SpaceOf(key)
		lower := strings.ToLower(name)
		i, ok := index[lower]
		if !ok {
			i = len(groups)
			index[lower] = i
			groups = append(groups, SpaceGroup{Name: name, Photos: []string{}})
		}
		groups[i].Photos = append(groups[i].Photos, key)
	}
	return groups
}

// roomOrder is the persisted order followed by the groups of photos it
// lacks, SpaceFallback included when some photo has no space.
func (m *Manifest) roomOrder() []string {
	order := uniqueSpaces(m.PhotoSpaceOrder)
	for _, key := range m.Photos {
		if name := m.SpaceOf(key); spaceIndex(order, name) < 0 {
			order = append(order, name)
		}
	}
	return order
}

// ensureSpace returns the canonical spelling of name, appending it to the
// order when missing.
func (m *Manifest) ensureSpace(name string) string {
	if i := spaceIndex(m.PhotoSpaceOrder, name); i >= 0 {
		return m.PhotoSpaceOrder[i]
	}
	m.PhotoSpaceOrder = append(m.PhotoSpaceOrder, name)
	return name
}

func spaceIndex(order []string, name string) int {
	for i, existing := range order {
		if strings.EqualFold(existing, name) {
			return i
		}
	}
	return -1
}

func uniqueSpaces(order []string) []string {
	out := make([]string, 0, len(order))
	for _, raw := range order {
		name := NormalizeSpaceName(raw)
		if name == "" || spaceIndex(out, name) >= 0 {
			continue
		}
		out = append(out, name)
	}
	return out
}

func contains(list []string, key string) bool {
	for _, v := range list {
		if v == key {
			return true
		}
	}
	return false
}
