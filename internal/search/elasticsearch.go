package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"cineledger/internal/config"
	"cineledger/internal/models"
)

// ElasticsearchClient индексирует расписание сеансов для поиска
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// ShowtimeQuery filters showtime search; zero values are ignored
type ShowtimeQuery struct {
	MovieID  int64
	HallID   int64
	Date     string // YYYY-MM-DD
	From     time.Time
	Page     int
	PageSize int
}

func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mapping := map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":       map[string]any{"type": "long"},
				"movie_id": map[string]any{"type": "long"},
				"hall_id":  map[string]any{"type": "long"},
				"start_time": map[string]any{
					"type":   "date",
					"format": "strict_date_optional_time||epoch_millis",
				},
			},
		},
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(body),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// IndexShowtime upserts one showtime document
func (c *ElasticsearchClient) IndexShowtime(ctx context.Context, showtime *models.Showtime) error {
	doc := models.ShowtimeSearchItem{
		ID:        showtime.ID,
		MovieID:   showtime.MovieID,
		HallID:    showtime.HallID,
		StartTime: showtime.StartTime,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal showtime: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(showtime.ID, 10),
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index showtime: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}

	return nil
}

func (c *ElasticsearchClient) DeleteShowtime(ctx context.Context, id int64) error {
	req := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete showtime: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}

	return nil
}

func (c *ElasticsearchClient) SearchShowtimes(ctx context.Context, q ShowtimeQuery) ([]models.ShowtimeSearchItem, error) {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	from := 0
	if q.Page > 0 {
		from = (q.Page - 1) * pageSize
	}

	searchRequest := map[string]any{
		"query": buildShowtimeQuery(q),
		"sort": []map[string]any{
			{"start_time": map[string]any{"order": "asc"}},
			{"id": map[string]any{"order": "asc"}},
		},
		"from": from,
		"size": pageSize,
	}

	body, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source models.ShowtimeSearchItem `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	items := make([]models.ShowtimeSearchItem, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		items[i] = hit.Source
	}

	return items, nil
}

func buildShowtimeQuery(q ShowtimeQuery) map[string]any {
	filters := []map[string]any{}

	if q.MovieID > 0 {
		filters = append(filters, map[string]any{
			"term": map[string]any{"movie_id": q.MovieID},
		})
	}

	if q.HallID > 0 {
		filters = append(filters, map[string]any{
			"term": map[string]any{"hall_id": q.HallID},
		})
	}

	if q.Date != "" {
		filters = append(filters, map[string]any{
			"range": map[string]any{
				"start_time": map[string]any{
					"gte": q.Date + "T00:00:00",
					"lte": q.Date + "T23:59:59",
				},
			},
		})
	}

	if !q.From.IsZero() {
		filters = append(filters, map[string]any{
			"range": map[string]any{
				"start_time": map[string]any{"gte": q.From.UTC().Format(time.RFC3339)},
			},
		})
	}

	if len(filters) == 0 {
		return map[string]any{"match_all": map[string]any{}}
	}

	return map[string]any{
		"bool": map[string]any{"filter": filters},
	}
}

// HealthCheck проверяет состояние кластера
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}

	return nil
}
