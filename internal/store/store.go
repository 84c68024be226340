// Package store persists users, listings, keywords, and rank observations.
// Two drivers exist: postgres (pgxpool) for production and sqlite for local
// development and integration tests.
package store

import (
	"context"

	"github.com/sells-group/localrank/internal/model"
)

// Store defines the persistence interface for the rank tracker.
//
// AppendRankHistory and AppendGeoGridScan debit the owner's credit balance
// in the same transaction as the inserts. A balance below cost rolls the
// whole write back and returns model.ErrInsufficientCredits, so a result is
// recorded if and only if its credits were spent.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	// GetUserByEmail returns (nil, nil) when no account exists, letting the
	// login flow distinguish first sign-in from lookup failure.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// Listings
	CreateListing(ctx context.Context, l *model.Listing) error
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	ListListings(ctx context.Context, ownerID string) ([]model.Listing, error)
	CountListings(ctx context.Context, ownerID string) (int, error)
	DeleteListing(ctx context.Context, id string) error

	// Keywords
	CreateKeyword(ctx context.Context, k *model.Keyword) error
	GetKeyword(ctx context.Context, id string) (*model.Keyword, error)
	// ListKeywords fills each keyword's LatestRank from its newest history row.
	ListKeywords(ctx context.Context, listingID string) ([]model.Keyword, error)
	CountKeywords(ctx context.Context, ownerID string) (int, error)
	DeleteKeyword(ctx context.Context, id string) error

	// Rank history
	AppendRankHistory(ctx context.Context, userID string, rec *model.RankHistory, cost int) error
	ListRankHistory(ctx context.Context, keywordID string, limit int) ([]model.RankHistory, error)
	// RecentRankHistory returns the newest records across a listing's
	// keywords with keyword terms and competitor children attached.
	RecentRankHistory(ctx context.Context, listingID string, limit int) ([]model.RankHistory, error)

	// Geo-grid scans
	AppendGeoGridScan(ctx context.Context, userID string, scan *model.GeoGridScan, cost int) error
	ListGeoGridScans(ctx context.Context, listingID string) ([]model.GeoGridScan, error)
	GetGeoGridScan(ctx context.Context, scanID string) (*model.GeoGridScan, error)

	// Location directory
	SearchLocations(ctx context.Context, query, countryCode string, limit int) ([]model.CachedLocation, error)
	UpsertLocations(ctx context.Context, locations []model.CachedLocation) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
