package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "resource-matcher/internal/common/errors"
	"resource-matcher/internal/common/logger"
	"resource-matcher/internal/models"
)

// ElasticsearchGateway queries a listing index whose documents use the
// listing JSON shape. category, city and state are keyword fields.
type ElasticsearchGateway struct {
	client *elasticsearch.Client
	opts   Options
	logger logger.Logger
}

func NewElasticsearchGateway(client *elasticsearch.Client, opts Options, log logger.Logger) *ElasticsearchGateway {
	if opts.Index == "" {
		opts.Index = "resource_listings"
	}
	opts.PageSize = pageSizeOrDefault(opts.PageSize)

	return &ElasticsearchGateway{
		client: client,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"component": "es_gateway", "index": opts.Index}),
	}
}

func (g *ElasticsearchGateway) FetchCandidates(ctx context.Context, category models.Category, strategy models.Strategy, location *models.Location) ([]models.ResourceListing, error) {
	f, ok := planPrimary(category, strategy, location)
	if !ok {
		return []models.ResourceListing{}, nil
	}
	return g.search(ctx, f)
}

func (g *ElasticsearchGateway) FetchFallback(ctx context.Context, category models.Category, excludeIDs []string) ([]models.ResourceListing, error) {
	return g.search(ctx, planFallback(category, excludeIDs))
}

func (g *ElasticsearchGateway) Ping(ctx context.Context) error {
	res, err := g.client.Ping(g.client.Ping.WithContext(ctx))
	if err != nil {
		return apperrors.NewCatalogUnavailableError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewCatalogUnavailableError(fmt.Errorf("elasticsearch ping: %s", res.Status()))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage   `json:"_source"`
			Sort   []json.RawMessage `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

// search reads every matching document in id-sorted pages, resuming each
// page after the last hit's sort value.
func (g *ElasticsearchGateway) search(ctx context.Context, f filter) ([]models.ResourceListing, error) {
	if g.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.QueryTimeout)
		defer cancel()
	}

	listings := []models.ResourceListing{}
	var after []json.RawMessage
	for page := 0; ; page++ {
		parsed, err := g.searchPage(ctx, f, after)
		if err != nil {
			return nil, err
		}

		hits := parsed.Hits.Hits
		for _, hit := range hits {
			var l models.ResourceListing
			if err := json.Unmarshal(hit.Source, &l); err != nil {
				g.logger.Warn("skipping unreadable listing document", map[string]interface{}{
					"category": f.Category,
					"error":    err.Error(),
				})
				continue
			}
			listings = append(listings, l)
		}

		if len(hits) < g.opts.PageSize || len(hits[len(hits)-1].Sort) == 0 {
			break
		}
		after = hits[len(hits)-1].Sort
		g.logger.Debug("reading next listing page", map[string]interface{}{
			"category": f.Category,
			"page":     page + 1,
		})
	}

	return keepValid(g.logger, listings), nil
}

func (g *ElasticsearchGateway) searchPage(ctx context.Context, f filter, after []json.RawMessage) (*searchResponse, error) {
	req, err := buildSearchRequest(g.opts.Index, buildQueryBody(f, g.opts.PageSize, after))
	if err != nil {
		return nil, err
	}

	res, err := req.Do(ctx, g.client)
	if err != nil {
		return nil, apperrors.NewCatalogUnavailableError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s listings: %s", f.Category, res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode %s search response: %w", f.Category, err)
	}
	return &parsed, nil
}

func buildSearchRequest(index string, query map[string]interface{}) (*esapi.SearchRequest, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode search body: %w", err)
	}
	return &esapi.SearchRequest{
		Index: []string{index},
		Body:  strings.NewReader(string(body)),
	}, nil
}

func buildQueryBody(f filter, size int, after []json.RawMessage) map[string]interface{} {
	filters := []interface{}{
		termQuery("is_active", true),
		keywordQuery("category", f.Category),
	}
	boolQuery := map[string]interface{}{}

	if f.Fallback {
		filters = append(filters, anyOf(
			termQuery("is_nationwide", true),
			termQuery("is_remote", true),
			termQuery("is_featured", true),
		))
		if len(f.ExcludeIDs) > 0 {
			boolQuery["must_not"] = []interface{}{
				map[string]interface{}{"terms": map[string]interface{}{"id": f.ExcludeIDs}},
			}
		}
	} else {
		var local []interface{}
		if f.MatchCity {
			local = append(local, keywordQuery("city", f.City))
		}
		if f.MatchState {
			local = append(local, keywordQuery("state", f.State))
		}

		switch {
		case f.Nationwide && len(local) > 0:
			filters = append(filters, anyOf(
				map[string]interface{}{"bool": map[string]interface{}{"filter": local}},
				termQuery("is_nationwide", true),
			))
		case f.Nationwide:
			filters = append(filters, termQuery("is_nationwide", true))
		default:
			filters = append(filters, local...)
		}
	}

	boolQuery["filter"] = filters
	body := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{map[string]interface{}{"id": "asc"}},
		"size":  size,
	}
	if len(after) > 0 {
		body["search_after"] = after
	}
	return body
}

func termQuery(field string, value interface{}) map[string]interface{} {
	return map[string]interface{}{"term": map[string]interface{}{field: value}}
}

func keywordQuery(field, value string) map[string]interface{} {
	return map[string]interface{}{
		"term": map[string]interface{}{
			field: map[string]interface{}{"value": value, "case_insensitive": true},
		},
	}
}

func anyOf(clauses ...interface{}) map[string]interface{} {
	return map[string]interface{}{
		"bool": map[string]interface{}{
			"should":               clauses,
			"minimum_should_match": 1,
		},
	}
}
