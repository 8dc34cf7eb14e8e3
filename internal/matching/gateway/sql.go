package gateway

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"resource-matcher/internal/common/database"
	apperrors "resource-matcher/internal/common/errors"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/models"
)

const listingColumns = `id, slug, name, description, website, category, subcategories, cause_areas, ` +
	`city, state, is_remote, is_nationwide, is_featured, is_active, attributes`

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Options configures the SQL and Elasticsearch backends.
type Options struct {
	Table string
	Index string
	// PageSize is the Elasticsearch page size; every page is read.
	PageSize     int
	QueryTimeout time.Duration
}

// SQLGateway queries a resource_listings table on PostgreSQL or SQLite.
// subcategories, cause_areas and attributes are stored as JSON text.
type SQLGateway struct {
	client *database.SQLClient
	opts   Options
	logger logger.Logger
}

func NewSQLGateway(client *database.SQLClient, opts Options, log logger.Logger) (*SQLGateway, error) {
	if opts.Table == "" {
		opts.Table = "resource_listings"
	}
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid catalog table name %q", opts.Table)
	}
	return &SQLGateway{
		client: client,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "sql_gateway", "dialect": string(client.Dialect)}),
	}, nil
}

func (g *SQLGateway) FetchCandidates(ctx context.Context, category models.Category, strategy models.Strategy, location *models.Location) ([]models.ResourceListing, error) {
	f, ok := planPrimary(category, strategy, location)
	if !ok {
		return []models.ResourceListing{}, nil
	}
	return g.run(ctx, f)
}

func (g *SQLGateway) FetchFallback(ctx context.Context, category models.Category, excludeIDs []string) ([]models.ResourceListing, error) {
	return g.run(ctx, planFallback(category, excludeIDs))
}

func (g *SQLGateway) Ping(ctx context.Context) error {
	if err := g.client.Ping(ctx); err != nil {
		return apperrors.NewCatalogUnavailableError(err)
	}
	return nil
}

func (g *SQLGateway) run(ctx context.Context, f filter) ([]models.ResourceListing, error) {
	if g.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.QueryTimeout)
		defer cancel()
	}

	query, args := g.buildQuery(f)
	rows, err := g.client.Query(ctx, query, args...)
	if err != nil {
		return nil, g.classify(f.Category, err)
	}
	defer rows.Close()

	listings := []models.ResourceListing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			g.logger.Warn("skipping unreadable listing row", map[string]interface{}{
				"category": f.Category,
				"error":    err.Error(),
			})
			continue
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, g.classify(f.Category, err)
	}

	return keepValid(g.logger, listings), nil
}

func (g *SQLGateway) buildQuery(f filter) (string, []interface{}) {
	d := g.client.Dialect
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	where := []string{
		"is_active = " + d.True(),
		"LOWER(category) = " + arg(f.Category),
	}

	if f.Fallback {
		where = append(where, fmt.Sprintf("(is_nationwide = %[1]s OR is_remote = %[1]s OR is_featured = %[1]s)", d.True()))
		if len(f.ExcludeIDs) > 0 {
			placeholders := make([]string, len(f.ExcludeIDs))
			for i, id := range f.ExcludeIDs {
				placeholders[i] = arg(id)
			}
			where = append(where, "id NOT IN ("+strings.Join(placeholders, ", ")+")")
		}
	} else {
		var local []string
		if f.MatchCity {
			local = append(local, "LOWER(TRIM(city)) = "+arg(f.City))
		}
		if f.MatchState {
			local = append(local, "LOWER(TRIM(state)) = "+arg(f.State))
		}
		geo := strings.Join(local, " AND ")

		switch {
		case f.Nationwide && geo != "":
			where = append(where, "(("+geo+") OR is_nationwide = "+d.True()+")")
		case f.Nationwide:
			where = append(where, "is_nationwide = "+d.True())
		default:
			where = append(where, geo)
		}
	}

	query := "SELECT " + listingColumns + " FROM " + g.opts.Table +
		" WHERE " + strings.Join(where, " AND ") +
		" ORDER BY id"
	return query, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (models.ResourceListing, error) {
	var (
		l                                  models.ResourceListing
		category                           string
		slug, description, website         sql.NullString
		city, state                        sql.NullString
		subcategories, causeAreas, attrRaw []byte
	)

	err := row.Scan(
		&l.ID, &slug, &l.Name, &description, &website, &category,
		&subcategories, &causeAreas, &city, &state,
		&l.IsRemote, &l.IsNationwide, &l.IsFeatured, &l.IsActive, &attrRaw,
	)
	if err != nil {
		return models.ResourceListing{}, err
	}

	l.Slug, l.Description, l.Website = slug.String, description.String, website.String
	l.City, l.State = city.String, state.String
	l.Category = models.NormalizeCategory(category)

	if l.Subcategories, err = decodeTags(subcategories); err != nil {
		return models.ResourceListing{}, fmt.Errorf("listing %s subcategories: %w", l.ID, err)
	}
	if l.CauseAreas, err = decodeTags(causeAreas); err != nil {
		return models.ResourceListing{}, fmt.Errorf("listing %s cause_areas: %w", l.ID, err)
	}
	if l.Attributes, err = models.DecodeAttributes(l.Category, attrRaw); err != nil {
		return models.ResourceListing{}, fmt.Errorf("listing %s: %w", l.ID, err)
	}
	return l, nil
}

func decodeTags(raw []byte) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// classify marks connection-level failures as CATALOG_UNAVAILABLE and scopes
// everything else to the category.
func (g *SQLGateway) classify(category string, err error) error {
	if isConnectionError(err) {
		return apperrors.NewCatalogUnavailableError(err)
	}
	return fmt.Errorf("query %s listings: %w", category, err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
