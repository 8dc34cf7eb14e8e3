package gateway

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-matcher/internal/common/config"
	"resource-matcher/internal/common/database"
	apperrors "resource-matcher/internal/common/errors"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/models"
)

var columns = []string{
	"id", "slug", "name", "description", "website", "category", "subcategories", "cause_areas",
	"city", "state", "is_remote", "is_nationwide", "is_featured", "is_active", "attributes",
}

const selectPrefix = "SELECT id, slug, name, description, website, category, subcategories, cause_areas, " +
	"city, state, is_remote, is_nationwide, is_featured, is_active, attributes FROM resource_listings WHERE "

func newMockGateway(t *testing.T, dialect database.Dialect) (*SQLGateway, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	g, err := NewSQLGateway(database.NewSQLClient(db, dialect), Options{}, logger.NewTestLogger(t))
	require.NoError(t, err)
	return g, mock
}

// ==========================
// Query Building
// ==========================

func TestSQLGateway_PostgresLocalAndNationwide(t *testing.T) {
	g, mock := newMockGateway(t, database.DialectPostgres)

	mock.ExpectQuery(selectPrefix+
		"is_active = TRUE AND LOWER(category) = $1 AND ((LOWER(TRIM(city)) = $2 AND LOWER(TRIM(state)) = $3) OR is_nationwide = TRUE) "+
		"ORDER BY id").
		WithArgs("grant", "austin", "tx").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("g1", "green-fund", "Green Fund", "Funding for green ideas", nil, "grant",
				[]byte(`["social-impact"]`), []byte(`["environment"]`), "Austin", "TX",
				false, false, false, true, []byte(`{"amount_max": 20000}`)).
			AddRow("g2", nil, "National Fund", nil, "https://example.org", "Grant",
				nil, nil, nil, nil,
				false, true, true, true, nil))

	got, err := g.FetchCandidates(context.Background(), models.CategoryGrant, models.StrategyLocalAndNationwide,
		&models.Location{City: "Austin ", State: "TX"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	amount := 20000
	assert.Equal(t, "green-fund", got[0].Slug)
	assert.Equal(t, []string{"social-impact"}, got[0].Subcategories)
	assert.Equal(t, []string{"environment"}, got[0].CauseAreas)
	assert.Equal(t, models.GrantAttributes{AmountMax: &amount}, got[0].Attributes)

	assert.Equal(t, models.CategoryGrant, got[1].Category)
	assert.True(t, got[1].IsNationwide)
	assert.Equal(t, []string{}, got[1].Subcategories)
	assert.Equal(t, models.GrantAttributes{}, got[1].Attributes)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLGateway_PostgresStateLevel(t *testing.T) {
	g, mock := newMockGateway(t, database.DialectPostgres)

	mock.ExpectQuery(selectPrefix+
		"is_active = TRUE AND LOWER(category) = $1 AND LOWER(TRIM(state)) = $2 ORDER BY id").
		WithArgs("sba", "tx").
		WillReturnRows(sqlmock.NewRows(columns))

	got, err := g.FetchCandidates(context.Background(), models.CategorySBA, models.StrategyStateLevel, &models.Location{State: "TX"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLGateway_NoQueryWhenStrategyCannotMatch(t *testing.T) {
	g, mock := newMockGateway(t, database.DialectPostgres)

	got, err := g.FetchCandidates(context.Background(), models.CategoryCoworking, models.StrategyLocalOnly, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLGateway_FallbackExcludesIDs(t *testing.T) {
	g, mock := newMockGateway(t, database.DialectSQLite)

	mock.ExpectQuery(selectPrefix+
		"is_active = 1 AND LOWER(category) = ? AND (is_nationwide = 1 OR is_remote = 1 OR is_featured = 1) "+
		"AND id NOT IN (?, ?) ORDER BY id").
		WithArgs("coworking", "c1", "c2").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("c3", "", "Remote Desk", "", "", "coworking", "[]", "[]", "", "",
				true, false, false, true, `{"amenities":["wifi"]}`))

	got, err := g.FetchFallback(context.Background(), models.CategoryCoworking, []string{"c1", "c2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.CoworkingAttributes{Amenities: []string{"wifi"}}, got[0].Attributes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Failure Classification
// ==========================

func TestSQLGateway_QueryErrorIsCategoryScoped(t *testing.T) {
	g, mock := newMockGateway(t, database.DialectPostgres)

	mock.ExpectQuery(selectPrefix + "is_active = TRUE AND LOWER(category) = $1 AND is_nationwide = TRUE ORDER BY id").
		WillReturnError(errors.New(`relation "resource_listings" does not exist`))

	_, err := g.FetchCandidates(context.Background(), models.CategoryGrant, models.StrategyLocalAndNationwide, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrCatalogUnavailable)
	assert.Contains(t, err.Error(), "query grant listings")
}

func TestSQLGateway_ConnectionErrorIsCatalogUnavailable(t *testing.T) {
	g, mock := newMockGateway(t, database.DialectPostgres)

	mock.ExpectQuery(selectPrefix + "is_active = TRUE AND LOWER(category) = $1 AND is_nationwide = TRUE ORDER BY id").
		WillReturnError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})

	_, err := g.FetchCandidates(context.Background(), models.CategoryGrant, models.StrategyLocalAndNationwide, nil)
	assert.ErrorIs(t, err, apperrors.ErrCatalogUnavailable)
}

func TestSQLGateway_SkipsUnreadableRows(t *testing.T) {
	g, mock := newMockGateway(t, database.DialectPostgres)

	mock.ExpectQuery(selectPrefix + "is_active = TRUE AND LOWER(category) = $1 AND is_nationwide = TRUE ORDER BY id").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("g1", "", "Bad", "", "", "grant", "not json", "[]", "", "", false, true, false, true, "{}").
			AddRow("g2", "", "Good", "", "", "grant", "[]", "[]", "", "", false, true, false, true, "{}"))

	got, err := g.FetchCandidates(context.Background(), models.CategoryGrant, models.StrategyLocalAndNationwide, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"g2"}, ids(got))
}

func TestNewSQLGateway_RejectsUnsafeTable(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLGateway(database.NewSQLClient(db, database.DialectPostgres), Options{Table: "listings; DROP TABLE x"}, logger.NewNoOpLogger())
	assert.Error(t, err)
}

// ==========================
// SQLite End To End
// ==========================

func TestSQLGateway_SQLiteCatalog(t *testing.T) {
	ctx := context.Background()
	client, err := database.NewSQLite(ctx, config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "catalog.db")})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.DB.ExecContext(ctx, `CREATE TABLE resource_listings (
		id TEXT PRIMARY KEY, slug TEXT, name TEXT NOT NULL, description TEXT, website TEXT,
		category TEXT NOT NULL, subcategories TEXT, cause_areas TEXT, city TEXT, state TEXT,
		is_remote INTEGER NOT NULL DEFAULT 0, is_nationwide INTEGER NOT NULL DEFAULT 0,
		is_featured INTEGER NOT NULL DEFAULT 0, is_active INTEGER NOT NULL DEFAULT 1, attributes TEXT)`)
	require.NoError(t, err)

	_, err = client.DB.ExecContext(ctx, `INSERT INTO resource_listings
		(id, name, category, subcategories, cause_areas, city, state, is_remote, is_nationwide, is_featured, is_active, attributes) VALUES
		('s1', 'SCORE Austin', 'sba', '[]', '[]', 'Austin', ' TX', 0, 0, 0, 1, '{"sba_type":"SCORE"}'),
		('s2', 'SBDC Dallas', 'SBA', '[]', '[]', 'Dallas', 'tx', 0, 0, 0, 1, '{"sba_type":"SBDC"}'),
		('s3', 'Closed Center', 'sba', '[]', '[]', 'Austin', 'TX', 0, 0, 0, 0, '{}'),
		('s4', 'National SBA', 'sba', NULL, NULL, NULL, NULL, 0, 1, 0, 1, NULL)`)
	require.NoError(t, err)

	g, err := NewSQLGateway(client, Options{}, logger.NewTestLogger(t))
	require.NoError(t, err)

	got, err := g.FetchCandidates(ctx, models.CategorySBA, models.StrategyStateLevel, &models.Location{City: "Houston", State: "TX"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids(got))

	got, err = g.FetchFallback(ctx, models.CategorySBA, []string{"s1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s4"}, ids(got))
	assert.Equal(t, models.SBAAttributes{}, got[0].Attributes)

	assert.NoError(t, g.Ping(ctx))
}
