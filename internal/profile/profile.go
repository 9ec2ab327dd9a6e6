// Package profile holds named encoding presets.
package profile

import (
	"sort"

	"github.com/AnyUserName/tiff2jp2/internal/params"
)

// Default is used when no profile is named.
const Default = "archival"

// Profile is a starting point for the encoder settings; explicit flags
// override its fields.
type Profile struct {
	Name    string
	Tile    string
	Block   string
	Levels  string
	Toggles params.Toggles
	ResBox  bool // insert the res box when a density is known
	XMP     bool // append the XMP uuid box when a density is known
}

// Built-in profiles.
var profiles = map[string]Profile{
	"archival": {
		Name:    "archival",
		Tile:    "4096x4096",
		Block:   "64x64",
		Levels:  "6",
		Toggles: params.DefaultToggles(),
		ResBox:  true,
		XMP:     true,
	},
	// Plain codestream without resync markers or precinct partitioning.
	"basic": {
		Name:    "basic",
		Tile:    "4096x4096",
		Block:   "64x64",
		Levels:  "6",
		Toggles: params.Toggles{MCT: true},
		ResBox:  true,
		XMP:     false,
	},
	// Smaller tiles and image-sized level count, for access copies served
	// to tiled viewers.
	"access": {
		Name:    "access",
		Tile:    "1024x1024",
		Block:   "64x64",
		Levels:  "auto",
		Toggles: params.DefaultToggles(),
		ResBox:  true,
		XMP:     true,
	},
}

// Get returns a profile by name. Unknown names report false.
func Get(name string) (Profile, bool) {
	if name == "" {
		name = Default
	}
	p, ok := profiles[name]
	return p, ok
}

// Names lists the built-in profiles.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
