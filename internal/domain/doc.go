// Package domain models the two seismic catalogs that make up the DYFI
// induced events database and the rules used to link them.
//
// # Data Sources
//
// Catalog events come from the USGS ComCat FDSN event service
// (https://earthquake.usgs.gov/fdsnws/event/1/), queried for events that carry
// a "Did You Feel It" (DYFI) product. Each event is a GeoJSON feature:
//
//	properties.mag      magnitude
//	properties.time     origin time, milliseconds since the Unix epoch (UTC)
//	geometry.coordinates [longitude, latitude, depth_km]
//
// Longitude comes first, as in every GeoJSON position.
//
// Candidate records come from a relocated-hypocenter list supplied outside the
// catalog (the Oklahoma/Kansas relocation by Moschetti et al.). It is plain
// text, one event per line, ten whitespace-separated columns:
//
//	mag lon lat depth year month day hour minute second
//	4.5 -97.5 36.5 5.0 2015 03 10 12 00 00.37
//
// Seconds may be fractional; the fraction is discarded, not rounded.
//
// # Collation
//
// The two catalogs share no identifier, so events are linked by fuzzy
// equality: a catalog event and a candidate describe the same earthquake when
// magnitude, origin time and epicenter all agree within configurable
// tolerances (inclusive). Defaults:
//
//	magnitude  0.5 units
//	time       5 s
//	distance   5 km (great-circle)
//
// A candidate binds to the first matching catalog event in caller order. A
// catalog event may be bound by several candidates; the last one wins.
// Matched events gain two properties, "line_collated" (1-based candidate
// number) and "collated" (the candidate's raw text line).
//
// Time differences above the tolerance but under the near-miss window
// (default 120 s) are reported as possible matches and never accepted.
package domain
