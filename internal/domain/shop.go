// Package domain holds the core types of the discovery service: the shops
// being analyzed, the per-agent results, the scoring verdicts attached to
// search results, and the errors raised when those invariants are violated.
package domain

import "fmt"

// LatLng is a geographic coordinate pair in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String renders the coordinate with four decimals (roughly 11m precision),
// which is enough to identify a search area in cache keys and prompts.
func (l LatLng) String() string { return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lng) }

// IsZero reports whether both components are zero, which the places
// provider never returns for a real location.
func (l LatLng) IsZero() bool { return l.Lat == 0 && l.Lng == 0 }

// Shop is the subject every analysis runs against. Records come from the
// places provider and are treated as immutable for the duration of a request.
type Shop struct {
	// ID is the opaque place identifier issued by the places provider.
	ID string `json:"id"`

	// Name is the display name shown to users and embedded in prompts.
	Name string `json:"displayName"`

	// Address is the provider's formatted address.
	Address string `json:"formattedAddress,omitempty"`

	// Location is absent for records that were built from user input only.
	Location *LatLng `json:"location,omitempty"`

	// Photos are provider photo references in provider order.
	Photos []string `json:"photos,omitempty"`

	// Reviews carries review texts; only populated by detail lookups.
	Reviews []string `json:"reviews,omitempty"`

	// Types are provider categories such as "restaurant" or "bar".
	Types []string `json:"types,omitempty"`

	// Rating is the provider's aggregate user rating, zero when unknown.
	Rating float64 `json:"rating,omitempty"`
}
