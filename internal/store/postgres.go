package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/localrank/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    pgxPool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_user":          `SELECT id, email, name, picture_url, tier, credits, max_listings, max_keywords, created_at FROM users WHERE id = $1`,
	"get_user_by_email": `SELECT id, email, name, picture_url, tier, credits, max_listings, max_keywords, created_at FROM users WHERE email = $1`,
	"debit_credits":     `UPDATE users SET credits = credits - $1 WHERE id = $2 AND credits >= $1`,
	"get_keyword":       `SELECT id, listing_id, term, location, kw_group, created_at FROM keywords WHERE id = $1`,
	"insert_rank":       `INSERT INTO rank_history (id, keyword_id, rank, url_found, checked_at) VALUES ($1, $2, $3, $4, $5)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	id           TEXT PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE,
	name         TEXT NOT NULL DEFAULT '',
	picture_url  TEXT NOT NULL DEFAULT '',
	tier         TEXT NOT NULL DEFAULT 'free',
	credits      INTEGER NOT NULL DEFAULT 100,
	max_listings INTEGER NOT NULL DEFAULT 1,
	max_keywords INTEGER NOT NULL DEFAULT 20,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS listings (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	address       TEXT NOT NULL DEFAULT '',
	place_id      TEXT NOT NULL DEFAULT '',
	website_url   TEXT NOT NULL DEFAULT '',
	latitude      DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude     DOUBLE PRECISION NOT NULL DEFAULT 0,
	rating        DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count  INTEGER NOT NULL DEFAULT 0,
	thumbnail_url TEXT NOT NULL DEFAULT '',
	phone_number  TEXT NOT NULL DEFAULT '',
	claimed       BOOLEAN NOT NULL DEFAULT false,
	categories    TEXT NOT NULL DEFAULT '',
	work_hours    TEXT NOT NULL DEFAULT '',
	cid           TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	state         TEXT NOT NULL DEFAULT '',
	zip_code      TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS keywords (
	id         TEXT PRIMARY KEY,
	listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	term       TEXT NOT NULL,
	location   TEXT NOT NULL,
	kw_group   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rank_history (
	id         TEXT PRIMARY KEY,
	keyword_id TEXT NOT NULL REFERENCES keywords(id) ON DELETE CASCADE,
	rank       INTEGER NOT NULL DEFAULT 0,
	url_found  TEXT NOT NULL DEFAULT '',
	checked_at TIMESTAMPTZ NOT NULL DEFAULT now()
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
	radius_km    DOUBLE PRECISION NOT NULL,
	grid_size    INTEGER NOT NULL,
	average_rank DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS geo_grid_points (
	id        TEXT PRIMARY KEY,
	scan_id   TEXT NOT NULL REFERENCES geo_grid_scans(id) ON DELETE CASCADE,
	latitude  DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
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
CREATE INDEX IF NOT EXISTS idx_cached_locations_country ON cached_locations(country_code);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Users

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, name, picture_url, tier, credits, max_listings, max_keywords, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.Name, u.PictureURL, string(u.Tier), u.Credits, u.MaxListings, u.MaxKeywords, u.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert user")
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, name, picture_url, tier, credits, max_listings, max_keywords, created_at
		 FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: user %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get user %s", id)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, name, picture_url, tier, credits, max_listings, max_keywords, created_at
		 FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get user by email")
	}
	return u, nil
}

// Listings

func (s *PostgresStore) CreateListing(ctx context.Context, l *model.Listing) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO listings (id, owner_id, name, address, place_id, website_url, latitude, longitude,
		                       rating, review_count, thumbnail_url, phone_number, claimed, categories,
		                       work_hours, cid, city, state, zip_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		l.ID, l.OwnerID, l.Name, l.Address, l.PlaceID, l.WebsiteURL, l.Latitude, l.Longitude,
		l.Rating, l.ReviewCount, l.ThumbnailURL, l.PhoneNumber, l.Claimed, l.Categories,
		l.WorkHours, l.CID, l.City, l.State, l.ZipCode, l.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert listing")
}

const listingColumns = `id, owner_id, name, address, place_id, website_url, latitude, longitude,
	rating, review_count, thumbnail_url, phone_number, claimed, categories,
	work_hours, cid, city, state, zip_code, created_at`

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	l, err := scanListing(s.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: listing %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get listing %s", id)
	}
	return l, nil
}

func (s *PostgresStore) ListListings(ctx context.Context, ownerID string) ([]model.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list listings")
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "postgres: list listings iterate")
}

func (s *PostgresStore) CountListings(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM listings WHERE owner_id = $1`, ownerID).Scan(&count)
	return count, eris.Wrap(err, "postgres: count listings")
}

func (s *PostgresStore) DeleteListing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete listing %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "postgres: listing %s", id)
	}
	return nil
}

// Keywords

func (s *PostgresStore) CreateKeyword(ctx context.Context, k *model.Keyword) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO keywords (id, listing_id, term, location, kw_group, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		k.ID, k.ListingID, k.Term, k.Location.String(), k.Group, k.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert keyword")
}

func (s *PostgresStore) GetKeyword(ctx context.Context, id string) (*model.Keyword, error) {
	k, err := scanKeyword(s.pool.QueryRow(ctx,
		`SELECT id, listing_id, term, location, kw_group, created_at FROM keywords WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: keyword %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get keyword %s", id)
	}
	return k, nil
}

func (s *PostgresStore) ListKeywords(ctx context.Context, listingID string) ([]model.Keyword, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT k.id, k.listing_id, k.term, k.location, k.kw_group, k.created_at,
		        COALESCE((SELECT rank FROM rank_history WHERE keyword_id = k.id ORDER BY checked_at DESC LIMIT 1), 0)
		 FROM keywords k WHERE k.listing_id = $1 ORDER BY k.created_at ASC`, listingID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list keywords")
	}
	defer rows.Close()

	var keywords []model.Keyword
	for rows.Next() {
		var k model.Keyword
		var location string
		if err := rows.Scan(&k.ID, &k.ListingID, &k.Term, &location, &k.Group, &k.CreatedAt, &k.LatestRank); err != nil {
			return nil, eris.Wrap(err, "postgres: scan keyword")
		}
		k.Location, err = model.ParseLocation(location)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: parse keyword location")
		}
		keywords = append(keywords, k)
	}
	return keywords, eris.Wrap(rows.Err(), "postgres: list keywords iterate")
}

func (s *PostgresStore) CountKeywords(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM keywords k JOIN listings l ON k.listing_id = l.id WHERE l.owner_id = $1`,
		ownerID).Scan(&count)
	return count, eris.Wrap(err, "postgres: count keywords")
}

func (s *PostgresStore) DeleteKeyword(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM keywords WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete keyword %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "postgres: keyword %s", id)
	}
	return nil
}

// Rank history

func (s *PostgresStore) AppendRankHistory(ctx context.Context, userID string, rec *model.RankHistory, cost int) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin append rank history")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO rank_history (id, keyword_id, rank, url_found, checked_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.KeywordID, rec.Rank, rec.URLFound, rec.CheckedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert rank history")
	}

	for i := range rec.Competitors {
		c := &rec.Competitors[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.RankHistoryID = rec.ID
		_, err = tx.Exec(ctx,
			`INSERT INTO competitor_results (id, rank_history_id, name, place_id, rank, url) VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.RankHistoryID, c.Name, c.PlaceID, c.Rank, c.URL,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert competitor result")
		}
	}

	if err := debitTx(ctx, tx, userID, cost); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit append rank history")
}

func (s *PostgresStore) ListRankHistory(ctx context.Context, keywordID string, limit int) ([]model.RankHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, keyword_id, rank, url_found, checked_at FROM rank_history
		 WHERE keyword_id = $1 ORDER BY checked_at DESC LIMIT $2`, keywordID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rank history")
	}
	defer rows.Close()

	var records []model.RankHistory
	for rows.Next() {
		var r model.RankHistory
		if err := rows.Scan(&r.ID, &r.KeywordID, &r.Rank, &r.URLFound, &r.CheckedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rank history")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list rank history iterate")
}

func (s *PostgresStore) RecentRankHistory(ctx context.Context, listingID string, limit int) ([]model.RankHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT rh.id, rh.keyword_id, rh.rank, rh.url_found, rh.checked_at, k.term
		 FROM rank_history rh JOIN keywords k ON rh.keyword_id = k.id
		 WHERE k.listing_id = $1 ORDER BY rh.checked_at DESC LIMIT $2`, listingID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent rank history")
	}
	defer rows.Close()

	var records []model.RankHistory
	var ids []string
	for rows.Next() {
		var r model.RankHistory
		if err := rows.Scan(&r.ID, &r.KeywordID, &r.Rank, &r.URLFound, &r.CheckedAt, &r.KeywordTerm); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recent rank history")
		}
		records = append(records, r)
		ids = append(ids, r.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: recent rank history iterate")
	}
	if len(records) == 0 {
		return records, nil
	}

	compRows, err := s.pool.Query(ctx,
		`SELECT id, rank_history_id, name, place_id, rank, url FROM competitor_results
		 WHERE rank_history_id = ANY($1)`, ids)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent competitors")
	}
	defer compRows.Close()

	byHistory := make(map[string][]model.CompetitorResult, len(records))
	for compRows.Next() {
		var c model.CompetitorResult
		if err := compRows.Scan(&c.ID, &c.RankHistoryID, &c.Name, &c.PlaceID, &c.Rank, &c.URL); err != nil {
			return nil, eris.Wrap(err, "postgres: scan competitor result")
		}
		byHistory[c.RankHistoryID] = append(byHistory[c.RankHistoryID], c)
	}
	if err := compRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: recent competitors iterate")
	}

	for i := range records {
		records[i].Competitors = byHistory[records[i].ID]
	}
	return records, nil
}

// Geo-grid scans

func (s *PostgresStore) AppendGeoGridScan(ctx context.Context, userID string, scan *model.GeoGridScan, cost int) error {
	if scan.ID == "" {
		scan.ID = uuid.New().String()
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin append scan")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO geo_grid_scans (id, listing_id, keyword, radius_km, grid_size, average_rank, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		scan.ID, scan.ListingID, scan.Keyword, scan.RadiusKm, scan.GridSize, scan.AverageRank, scan.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert scan")
	}

	for i := range scan.Points {
		p := &scan.Points[i]
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		p.ScanID = scan.ID
		_, err = tx.Exec(ctx,
			`INSERT INTO geo_grid_points (id, scan_id, latitude, longitude, rank) VALUES ($1, $2, $3, $4, $5)`,
			p.ID, p.ScanID, p.Latitude, p.Longitude, p.Rank,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert scan point")
		}
		for j := range p.Competitors {
			c := &p.Competitors[j]
			if c.ID == "" {
				c.ID = uuid.New().String()
			}
			c.PointID = p.ID
			_, err = tx.Exec(ctx,
				`INSERT INTO geo_grid_competitors (id, point_id, name, place_id, rank) VALUES ($1, $2, $3, $4, $5)`,
				c.ID, c.PointID, c.Name, c.PlaceID, c.Rank,
			)
			if err != nil {
				return eris.Wrap(err, "postgres: insert scan competitor")
			}
		}
	}

	if err := debitTx(ctx, tx, userID, cost); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit append scan")
}

func (s *PostgresStore) ListGeoGridScans(ctx context.Context, listingID string) ([]model.GeoGridScan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, listing_id, keyword, radius_km, grid_size, average_rank, created_at
		 FROM geo_grid_scans WHERE listing_id = $1 ORDER BY created_at DESC`, listingID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scans")
	}
	defer rows.Close()

	var scans []model.GeoGridScan
	for rows.Next() {
		var sc model.GeoGridScan
		if err := rows.Scan(&sc.ID, &sc.ListingID, &sc.Keyword, &sc.RadiusKm, &sc.GridSize, &sc.AverageRank, &sc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan grid scan")
		}
		scans = append(scans, sc)
	}
	return scans, eris.Wrap(rows.Err(), "postgres: list scans iterate")
}

func (s *PostgresStore) GetGeoGridScan(ctx context.Context, scanID string) (*model.GeoGridScan, error) {
	var sc model.GeoGridScan
	err := s.pool.QueryRow(ctx,
		`SELECT id, listing_id, keyword, radius_km, grid_size, average_rank, created_at
		 FROM geo_grid_scans WHERE id = $1`, scanID,
	).Scan(&sc.ID, &sc.ListingID, &sc.Keyword, &sc.RadiusKm, &sc.GridSize, &sc.AverageRank, &sc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: scan %s", scanID)
		}
		return nil, eris.Wrapf(err, "postgres: get scan %s", scanID)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, scan_id, latitude, longitude, rank FROM geo_grid_points WHERE scan_id = $1 ORDER BY id`, scanID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get scan points")
	}
	defer rows.Close()

	var pointIDs []string
	for rows.Next() {
		var p model.GeoGridPoint
		if err := rows.Scan(&p.ID, &p.ScanID, &p.Latitude, &p.Longitude, &p.Rank); err != nil {
			return nil, eris.Wrap(err, "postgres: scan grid point")
		}
		sc.Points = append(sc.Points, p)
		pointIDs = append(pointIDs, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: get scan points iterate")
	}
	if len(pointIDs) == 0 {
		return &sc, nil
	}

	compRows, err := s.pool.Query(ctx,
		`SELECT id, point_id, name, place_id, rank FROM geo_grid_competitors WHERE point_id = ANY($1)`, pointIDs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get scan competitors")
	}
	defer compRows.Close()

	byPoint := make(map[string][]model.GeoGridCompetitor)
	for compRows.Next() {
		var c model.GeoGridCompetitor
		if err := compRows.Scan(&c.ID, &c.PointID, &c.Name, &c.PlaceID, &c.Rank); err != nil {
			return nil, eris.Wrap(err, "postgres: scan grid competitor")
		}
		byPoint[c.PointID] = append(byPoint[c.PointID], c)
	}
	if err := compRows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: get scan competitors iterate")
	}

	for i := range sc.Points {
		sc.Points[i].Competitors = byPoint[sc.Points[i].ID]
	}
	return &sc, nil
}

// Location directory

func (s *PostgresStore) SearchLocations(ctx context.Context, query, countryCode string, limit int) ([]model.CachedLocation, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := `SELECT id, name, type, country_code FROM cached_locations WHERE name ILIKE $1`
	args := []any{"%" + query + "%"}
	argIdx := 2
	if countryCode != "" {
		sql += fmt.Sprintf(` AND country_code = $%d`, argIdx)
		args = append(args, countryCode)
		argIdx++
	}
	sql += fmt.Sprintf(` ORDER BY name LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search locations")
	}
	defer rows.Close()

	var locations []model.CachedLocation
	for rows.Next() {
		var l model.CachedLocation
		if err := rows.Scan(&l.ID, &l.Name, &l.Type, &l.CountryCode); err != nil {
			return nil, eris.Wrap(err, "postgres: scan location")
		}
		locations = append(locations, l)
	}
	return locations, eris.Wrap(rows.Err(), "postgres: search locations iterate")
}

// UpsertLocations refreshes the cached location directory. Directory syncs
// carry tens of thousands of rows, so the batch goes through COPY into a
// temp table and a single INSERT ... ON CONFLICT instead of row-at-a-time
// statements.
func (s *PostgresStore) UpsertLocations(ctx context.Context, locations []model.CachedLocation) (int64, error) {
	if len(locations) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert locations begin")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`CREATE TEMP TABLE _locations_sync (LIKE cached_locations INCLUDING DEFAULTS) ON COMMIT DROP`,
	); err != nil {
		return 0, eris.Wrap(err, "postgres: upsert locations temp table")
	}

	rows := make([][]any, 0, len(locations))
	for _, l := range locations {
		rows = append(rows, []any{l.ID, l.Name, l.Type, l.CountryCode})
	}
	cols := []string{"id", "name", "type", "country_code"}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"_locations_sync"}, cols, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrap(err, "postgres: upsert locations copy")
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO cached_locations (id, name, type, country_code)
		 SELECT id, name, type, country_code FROM _locations_sync
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   type = EXCLUDED.type,
		   country_code = EXCLUDED.country_code`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert locations insert")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: upsert locations commit")
	}
	return tag.RowsAffected(), nil
}

// helpers

// debitTx conditionally debits a user's balance inside the caller's
// transaction. Zero rows affected means the balance was short; the caller's
// deferred rollback then undoes the whole write.
func debitTx(ctx context.Context, tx pgx.Tx, userID string, cost int) error {
	tag, err := tx.Exec(ctx,
		`UPDATE users SET credits = credits - $1 WHERE id = $2 AND credits >= $1`,
		cost, userID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: debit credits")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrInsufficientCredits, "postgres: user %s needs %d credits", userID, cost)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable) (*model.User, error) {
	var u model.User
	var tier string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PictureURL, &tier, &u.Credits, &u.MaxListings, &u.MaxKeywords, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Tier = model.Tier(tier)
	return &u, nil
}

func scanListing(row scannable) (*model.Listing, error) {
	var l model.Listing
	err := row.Scan(&l.ID, &l.OwnerID, &l.Name, &l.Address, &l.PlaceID, &l.WebsiteURL, &l.Latitude, &l.Longitude,
		&l.Rating, &l.ReviewCount, &l.ThumbnailURL, &l.PhoneNumber, &l.Claimed, &l.Categories,
		&l.WorkHours, &l.CID, &l.City, &l.State, &l.ZipCode, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanKeyword(row scannable) (*model.Keyword, error) {
	var k model.Keyword
	var location string
	err := row.Scan(&k.ID, &k.ListingID, &k.Term, &location, &k.Group, &k.CreatedAt)
	if err != nil {
		return nil, err
	}
	k.Location, err = model.ParseLocation(location)
	if err != nil {
		return nil, err
	}
	return &k, nil
}
