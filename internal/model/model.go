// Package model defines the tracked entities and the shared error taxonomy.
package model

import (
	"time"
)

// Tier is a user's subscription tier.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// Defaults granted to a user on first login.
const (
	DefaultCredits     = 100
	DefaultMaxListings = 1
	DefaultMaxKeywords = 20
)

// User is an account holder. Credits are debited atomically alongside the
// persistence of the rank result that consumed them; the balance is never
// mutated anywhere else.
type User struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	Name        string    `json:"name" db:"name"`
	PictureURL  string    `json:"picture_url,omitempty" db:"picture_url"`
	Tier        Tier      `json:"tier" db:"tier"`
	Credits     int       `json:"credits" db:"credits"`
	MaxListings int       `json:"max_listings" db:"max_listings"`
	MaxKeywords int       `json:"max_keywords" db:"max_keywords"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Listing is a tracked physical business owned by exactly one user.
// Ownership is fixed at creation and never reassigned.
type Listing struct {
	ID           string    `json:"id" db:"id"`
	OwnerID      string    `json:"owner_id" db:"owner_id"`
	Name         string    `json:"name" db:"name"`
	Address      string    `json:"address,omitempty" db:"address"`
	PlaceID      string    `json:"place_id,omitempty" db:"place_id"`
	WebsiteURL   string    `json:"website_url,omitempty" db:"website_url"`
	Latitude     float64   `json:"latitude" db:"latitude"`
	Longitude    float64   `json:"longitude" db:"longitude"`
	Rating       float64   `json:"rating,omitempty" db:"rating"`
	ReviewCount  int       `json:"review_count,omitempty" db:"review_count"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty" db:"thumbnail_url"`
	PhoneNumber  string    `json:"phone_number,omitempty" db:"phone_number"`
	Claimed      bool      `json:"claimed" db:"claimed"`
	Categories   string    `json:"categories,omitempty" db:"categories"`
	WorkHours    string    `json:"work_hours,omitempty" db:"work_hours"`
	CID          string    `json:"cid,omitempty" db:"cid"`
	City         string    `json:"city,omitempty" db:"city"`
	State        string    `json:"state,omitempty" db:"state"`
	ZipCode      string    `json:"zip_code,omitempty" db:"zip_code"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Keyword is a (search term, location) pair tracked against a listing.
type Keyword struct {
	ID        string       `json:"id" db:"id"`
	ListingID string       `json:"listing_id" db:"listing_id"`
	Term      string       `json:"term" db:"term"`
	Location  LocationSpec `json:"location" db:"location"`
	Group     string       `json:"group" db:"kw_group"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`

	// LatestRank is the most recently observed rank, filled by list queries.
	// 0 means no check has run yet or the listing was not found.
	LatestRank int `json:"latest_rank" db:"-"`
}

// RankHistory is one immutable rank-check observation for a keyword.
// Rank 0 means the target was not found within the search depth.
type RankHistory struct {
	ID        string    `json:"id" db:"id"`
	KeywordID string    `json:"keyword_id" db:"keyword_id"`
	Rank      int       `json:"rank" db:"rank"`
	URLFound  string    `json:"url_found,omitempty" db:"url_found"`
	CheckedAt time.Time `json:"checked_at" db:"checked_at"`

	// KeywordTerm is joined in by listing-scoped history queries.
	KeywordTerm string `json:"keyword_term,omitempty" db:"-"`

	Competitors []CompetitorResult `json:"competitors,omitempty" db:"-"`
}

// CompetitorResult is one competitor observed within a RankHistory snapshot.
type CompetitorResult struct {
	ID            string `json:"id" db:"id"`
	RankHistoryID string `json:"rank_history_id" db:"rank_history_id"`
	Name          string `json:"name" db:"name"`
	PlaceID       string `json:"place_id" db:"place_id"`
	Rank          int    `json:"rank" db:"rank"`
	URL           string `json:"url,omitempty" db:"url"`
}

// GeoGridScan records one grid-scan invocation for a listing+keyword pair.
type GeoGridScan struct {
	ID          string    `json:"id" db:"id"`
	ListingID   string    `json:"listing_id" db:"listing_id"`
	Keyword     string    `json:"keyword" db:"keyword"`
	RadiusKm    float64   `json:"radius_km" db:"radius_km"`
	GridSize    int       `json:"grid_size" db:"grid_size"`
	AverageRank float64   `json:"average_rank" db:"average_rank"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	Points []GeoGridPoint `json:"points,omitempty" db:"-"`
}

// GeoGridPoint is the observed rank at one sampled coordinate of a scan.
type GeoGridPoint struct {
	ID        string  `json:"id" db:"id"`
	ScanID    string  `json:"scan_id" db:"scan_id"`
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
	Rank      int     `json:"rank" db:"rank"`

	Competitors []GeoGridCompetitor `json:"competitors,omitempty" db:"-"`
}

// GeoGridCompetitor is one competitor observed at a single grid point.
type GeoGridCompetitor struct {
	ID      string `json:"id" db:"id"`
	PointID string `json:"point_id" db:"point_id"`
	Name    string `json:"name" db:"name"`
	PlaceID string `json:"place_id" db:"place_id"`
	Rank    int    `json:"rank" db:"rank"`
}

// CachedLocation is a provider location directory entry used for
// location autocomplete when attaching keywords.
type CachedLocation struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Type        string `json:"type" db:"type"`
	CountryCode string `json:"country_code" db:"country_code"`
}
