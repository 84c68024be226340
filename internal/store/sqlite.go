package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/localrank/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL DEFAULT '',
	picture_url  TEXT NOT NULL DEFAULT '',
	tier         TEXT NOT NULL DEFAULT 'free',
	credits      INTEGER NOT NULL DEFAULT 100,
	max_listings INTEGER NOT NULL DEFAULT 1,
	max_keywords INTEGER NOT NULL DEFAULT 20,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS listings (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	address       TEXT NOT NULL DEFAULT '',
	place_id      TEXT NOT NULL DEFAULT '',
	website_url   TEXT NOT NULL DEFAULT '',
	latitude      REAL NOT NULL DEFAULT 0,
	longitude     REAL NOT NULL DEFAULT 0,
	rating        REAL NOT NULL DEFAULT 0,
	review_count  INTEGER NOT NULL DEFAULT 0,
	thumbnail_url TEXT NOT NULL DEFAULT '',
	phone_number  TEXT NOT NULL DEFAULT '',
	claimed       BOOLEAN NOT NULL DEFAULT 0,
	categories    TEXT NOT NULL DEFAULT '',
	work_hours    TEXT NOT NULL DEFAULT '',
	cid           TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT '',
	zip_code      TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS keywords (
	id         TEXT PRIMARY KEY,
	listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	term       TEXT NOT NULL,
	location   TEXT NOT NULL,
	kw_group   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rank_history (
	id         TEXT PRIMARY KEY,
	keyword_id TEXT NOT NULL REFERENCES keywords(id) ON DELETE CASCADE,
	rank       INTEGER NOT NULL DEFAULT 0,
	url_found  TEXT NOT NULL DEFAULT '',
	checked_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS competitor_results (
	id              TEXT PRIMARY KEY,
	rank_history_id TEXT NOT NULL REFERENCES rank_history(id) ON DELETE CASCADE,
	name            TEXT NOT NULL,
	place_id        TEXT NOT NULL DEFAULT '',
	rank            INTEGER NOT NULL DEFAULT 0,
	url             TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS geo_grid_scans (
	id           TEXT PRIMARY KEY,
	listing_id   TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	keyword      TEXT NOT NULL,
	radius_km    REAL NOT NULL,
	grid_size    INTEGER NOT NULL,
	average_rank REAL NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS geo_grid_points (
	id        TEXT PRIMARY KEY,
	scan_id   TEXT NOT NULL REFERENCES geo_grid_scans(id) ON DELETE CASCADE,
	latitude  REAL NOT NULL,
	longitude REAL NOT NULL,
	rank      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS geo_grid_competitors (
	id       TEXT PRIMARY KEY,
	point_id TEXT NOT NULL REFERENCES geo_grid_points(id) ON DELETE CASCADE,
	name     TEXT NOT NULL,
	place_id TEXT NOT NULL DEFAULT '',
	rank     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS cached_locations (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	type         TEXT NOT NULL DEFAULT '',
	country_code TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id);
CREATE INDEX IF NOT EXISTS idx_keywords_listing ON keywords(listing_id);
CREATE INDEX IF NOT EXISTS idx_rank_history_keyword ON rank_history(keyword_id, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_competitor_results_history ON competitor_results(rank_history_id);
CREATE INDEX IF NOT EXISTS idx_geo_grid_scans_listing ON geo_grid_scans(listing_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_geo_grid_points_scan ON geo_grid_points(scan_id);
CREATE INDEX IF NOT EXISTS idx_geo_grid_competitors_point ON geo_grid_competitors(point_id);
CREATE INDEX IF NOT EXISTS idx_cached_locations_name ON cached_locations(name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Users

func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, picture_url, tier, credits, max_listings, max_keywords, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PictureURL, string(u.Tier), u.Credits, u.MaxListings, u.MaxKeywords, u.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert user")
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, name, picture_url, tier, credits, max_listings, max_keywords, created_at
		 FROM users WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: user %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get user %s", id)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, name, picture_url, tier, credits, max_listings, max_keywords, created_at
		 FROM users WHERE email = ?`, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get user by email")
	}
	return u, nil
}

// Listings

func (s *SQLiteStore) CreateListing(ctx context.Context, l *model.Listing) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO listings (id, owner_id, name, address, place_id, website_url, latitude, longitude,
		                       rating, review_count, thumbnail_url, phone_number, claimed, categories,
		                       work_hours, cid, city, state, zip_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.OwnerID, l.Name, l.Address, l.PlaceID, l.WebsiteURL, l.Latitude, l.Longitude,
		l.Rating, l.ReviewCount, l.ThumbnailURL, l.PhoneNumber, l.Claimed, l.Categories,
		l.WorkHours, l.CID, l.City, l.State, l.ZipCode, l.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert listing")
}

func (s *SQLiteStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	l, err := scanListing(s.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: listing %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get listing %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) ListListings(ctx context.Context, ownerID string) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list listings")
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "sqlite: list listings iterate")
}

func (s *SQLiteStore) CountListings(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings WHERE owner_id = ?`, ownerID).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count listings")
}

func (s *SQLiteStore) DeleteListing(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete listing %s", id)
	}
	return checkRowsAffected(res, "listing", id)
}

// Keywords

func (s *SQLiteStore) CreateKeyword(ctx context.Context, k *model.Keyword) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO keywords (id, listing_id, term, location, kw_group, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		k.ID, k.ListingID, k.Term, k.Location.String(), k.Group, k.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert keyword")
}

func (s *SQLiteStore) GetKeyword(ctx context.Context, id string) (*model.Keyword, error) {
	k, err := scanKeyword(s.db.QueryRowContext(ctx,
		`SELECT id, listing_id, term, location, kw_group, created_at FROM keywords WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: keyword %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get keyword %s", id)
	}
	return k, nil
}

func (s *SQLiteStore) ListKeywords(ctx context.Context, listingID string) ([]model.Keyword, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT k.id, k.listing_id, k.term, k.location, k.kw_group, k.created_at,
		        COALESCE((SELECT rank FROM rank_history WHERE keyword_id = k.id ORDER BY checked_at DESC LIMIT 1), 0)
		 FROM keywords k WHERE k.listing_id = ? ORDER BY k.created_at ASC`, listingID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list keywords")
	}
	defer rows.Close()

	var keywords []model.Keyword
	for rows.Next() {
		var k model.Keyword
		var location string
		if err := rows.Scan(&k.ID, &k.ListingID, &k.Term, &location, &k.Group, &k.CreatedAt, &k.LatestRank); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan keyword")
		}
		k.Location, err = model.ParseLocation(location)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: parse keyword location")
		}
		keywords = append(keywords, k)
	}
	return keywords, eris.Wrap(rows.Err(), "sqlite: list keywords iterate")
}

func (s *SQLiteStore) CountKeywords(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM keywords k JOIN listings l ON k.listing_id = l.id WHERE l.owner_id = ?`,
		ownerID).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count keywords")
}

func (s *SQLiteStore) DeleteKeyword(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM keywords WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete keyword %s", id)
	}
	return checkRowsAffected(res, "keyword", id)
}

// Rank history

func (s *SQLiteStore) AppendRankHistory(ctx context.Context, userID string, rec *model.RankHistory, cost int) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin append rank history")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rank_history (id, keyword_id, rank, url_found, checked_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.KeywordID, rec.Rank, rec.URLFound, rec.CheckedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert rank history")
	}

	for i := range rec.Competitors {
		c := &rec.Competitors[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.RankHistoryID = rec.ID
		_, err = tx.ExecContext(ctx,
			`INSERT INTO competitor_results (id, rank_history_id, name, place_id, rank, url) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.RankHistoryID, c.Name, c.PlaceID, c.Rank, c.URL,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert competitor result")
		}
	}

	if err := s.debitTx(ctx, tx, userID, cost); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit append rank history")
}

func (s *SQLiteStore) ListRankHistory(ctx context.Context, keywordID string, limit int) ([]model.RankHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, keyword_id, rank, url_found, checked_at FROM rank_history
		 WHERE keyword_id = ? ORDER BY checked_at DESC LIMIT ?`, keywordID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rank history")
	}
	defer rows.Close()

	var records []model.RankHistory
	for rows.Next() {
		var r model.RankHistory
		if err := rows.Scan(&r.ID, &r.KeywordID, &r.Rank, &r.URLFound, &r.CheckedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rank history")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list rank history iterate")
}

func (s *SQLiteStore) RecentRankHistory(ctx context.Context, listingID string, limit int) ([]model.RankHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT rh.id, rh.keyword_id, rh.rank, rh.url_found, rh.checked_at, k.term
		 FROM rank_history rh JOIN keywords k ON rh.keyword_id = k.id
		 WHERE k.listing_id = ? ORDER BY rh.checked_at DESC LIMIT ?`, listingID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent rank history")
	}
	defer rows.Close()

	var records []model.RankHistory
	for rows.Next() {
		var r model.RankHistory
		if err := rows.Scan(&r.ID, &r.KeywordID, &r.Rank, &r.URLFound, &r.CheckedAt, &r.KeywordTerm); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recent rank history")
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: recent rank history iterate")
	}

	for i := range records {
		compRows, err := s.db.QueryContext(ctx,
			`SELECT id, rank_history_id, name, place_id, rank, url FROM competitor_results WHERE rank_history_id = ?`,
			records[i].ID)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: recent competitors")
		}
		for compRows.Next() {
			var c model.CompetitorResult
			if err := compRows.Scan(&c.ID, &c.RankHistoryID, &c.Name, &c.PlaceID, &c.Rank, &c.URL); err != nil {
				compRows.Close()
				return nil, eris.Wrap(err, "sqlite: scan competitor result")
			}
			records[i].Competitors = append(records[i].Competitors, c)
		}
		if err := compRows.Err(); err != nil {
			compRows.Close()
			return nil, eris.Wrap(err, "sqlite: recent competitors iterate")
		}
		compRows.Close()
	}
	return records, nil
}

// Geo-grid scans

func (s *SQLiteStore) AppendGeoGridScan(ctx context.Context, userID string, scan *model.GeoGridScan, cost int) error {
	if scan.ID == "" {
		scan.ID = uuid.New().String()
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin append scan")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO geo_grid_scans (id, listing_id, keyword, radius_km, grid_size, average_rank, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scan.ID, scan.ListingID, scan.Keyword, scan.RadiusKm, scan.GridSize, scan.AverageRank, scan.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert scan")
	}

	for i := range scan.Points {
		p := &scan.Points[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.ScanID = scan.ID
		_, err = tx.ExecContext(ctx,
			`INSERT INTO geo_grid_points (id, scan_id, latitude, longitude, rank) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.ScanID, p.Latitude, p.Longitude, p.Rank,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert scan point")
		}
		for j := range p.Competitors {
			c := &p.Competitors[j]
			if c.ID == "" {
				c.ID = uuid.New().String()
			}
			c.PointID = p.ID
			_, err = tx.ExecContext(ctx,
				`INSERT INTO geo_grid_competitors (id, point_id, name, place_id, rank) VALUES (?, ?, ?, ?, ?)`,
				c.ID, c.PointID, c.Name, c.PlaceID, c.Rank,
			)
			if err != nil {
				return eris.Wrap(err, "sqlite: insert scan competitor")
			}
		}
	}

	if err := s.debitTx(ctx, tx, userID, cost); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit append scan")
}

func (s *SQLiteStore) ListGeoGridScans(ctx context.Context, listingID string) ([]model.GeoGridScan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, listing_id, keyword, radius_km, grid_size, average_rank, created_at
		 FROM geo_grid_scans WHERE listing_id = ? ORDER BY created_at DESC`, listingID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scans")
	}
	defer rows.Close()

	var scans []model.GeoGridScan
	for rows.Next() {
		var sc model.GeoGridScan
		if err := rows.Scan(&sc.ID, &sc.ListingID, &sc.Keyword, &sc.RadiusKm, &sc.GridSize, &sc.AverageRank, &sc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan grid scan")
		}
		scans = append(scans, sc)
	}
	return scans, eris.Wrap(rows.Err(), "sqlite: list scans iterate")
}

func (s *SQLiteStore) GetGeoGridScan(ctx context.Context, scanID string) (*model.GeoGridScan, error) {
	var sc model.GeoGridScan
	err := s.db.QueryRowContext(ctx,
		`SELECT id, listing_id, keyword, radius_km, grid_size, average_rank, created_at
		 FROM geo_grid_scans WHERE id = ?`, scanID,
	).Scan(&sc.ID, &sc.ListingID, &sc.Keyword, &sc.RadiusKm, &sc.GridSize, &sc.AverageRank, &sc.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: scan %s", scanID)
		}
		return nil, eris.Wrapf(err, "sqlite: get scan %s", scanID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scan_id, latitude, longitude, rank FROM geo_grid_points WHERE scan_id = ? ORDER BY id`, scanID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get scan points")
	}
	defer rows.Close()

	for rows.Next() {
		var p model.GeoGridPoint
		if err := rows.Scan(&p.ID, &p.ScanID, &p.Latitude, &p.Longitude, &p.Rank); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan grid point")
		}
		sc.Points = append(sc.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: get scan points iterate")
	}

	for i := range sc.Points {
		compRows, err := s.db.QueryContext(ctx,
			`SELECT id, point_id, name, place_id, rank FROM geo_grid_competitors WHERE point_id = ?`,
			sc.Points[i].ID)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: get scan competitors")
		}
		for compRows.Next() {
			var c model.GeoGridCompetitor
			if err := compRows.Scan(&c.ID, &c.PointID, &c.Name, &c.PlaceID, &c.Rank); err != nil {
				compRows.Close()
				return nil, eris.Wrap(err, "sqlite: scan grid competitor")
			}
			sc.Points[i].Competitors = append(sc.Points[i].Competitors, c)
		}
		if err := compRows.Err(); err != nil {
			compRows.Close()
			return nil, eris.Wrap(err, "sqlite: get scan competitors iterate")
		}
		compRows.Close()
	}
	return &sc, nil
}

// Location directory

func (s *SQLiteStore) SearchLocations(ctx context.Context, query, countryCode string, limit int) ([]model.CachedLocation, error) {
	if limit <= 0 {
		limit = 20
	}
	sqlQuery := `SELECT id, name, type, country_code FROM cached_locations WHERE name LIKE ?`
	args := []any{"%" + query + "%"}
	if countryCode != "" {
		sqlQuery += ` AND country_code = ?`
		args = append(args, countryCode)
	}
	sqlQuery += ` ORDER BY name LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search locations")
	}
	defer rows.Close()

	var locations []model.CachedLocation
	for rows.Next() {
		var l model.CachedLocation
		if err := rows.Scan(&l.ID, &l.Name, &l.Type, &l.CountryCode); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location")
		}
		locations = append(locations, l)
	}
	return locations, eris.Wrap(rows.Err(), "sqlite: search locations iterate")
}

func (s *SQLiteStore) UpsertLocations(ctx context.Context, locations []model.CachedLocation) (int64, error) {
	if len(locations) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert locations")
	}
	defer tx.Rollback()

	var n int64
	for _, l := range locations {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cached_locations (id, name, type, country_code) VALUES (?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET name = excluded.name, type = excluded.type, country_code = excluded.country_code`,
			l.ID, l.Name, l.Type, l.CountryCode,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert location")
		}
		n++
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: commit upsert locations")
}

// helpers

func (s *SQLiteStore) debitTx(ctx context.Context, tx *sql.Tx, userID string, cost int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET credits = credits - ? WHERE id = ? AND credits >= ?`,
		cost, userID, cost,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: debit credits")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: debit rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrInsufficientCredits, "sqlite: user %s needs %d credits", userID, cost)
	}
	return nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
