package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"proof-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchSource aggregates the interaction index. One search request
// covers the current window and the previous window of equal length. The
// index only holds events that were displayed, so its stats are Partial.
type ElasticsearchSource struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchSource(client *elasticsearch.Client, index string) *ElasticsearchSource {
	return &ElasticsearchSource{client: client, index: index}
}

func (s *ElasticsearchSource) WindowStats(ctx context.Context, widgetID string, since, until time.Time) (*models.WindowStats, error) {
	body, err := json.Marshal(windowQuery(widgetID, since, until))
	if err != nil {
		return nil, err
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
		s.client.Search.WithSize(0),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("elasticsearch search error: %s: %s", res.Status(), msg)
	}

	var parsed windowResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode elasticsearch response: %w", err)
	}
	return parsed.stats(), nil
}

func windowQuery(widgetID string, since, until time.Time) map[string]interface{} {
	prevSince := since.Add(-until.Sub(since))
	approved := map[string]interface{}{"term": map[string]interface{}{"status": string(models.EventStatusApproved)}}

	return map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"widgetId": widgetID}},
					map[string]interface{}{"range": map[string]interface{}{
						"createdAt": map[string]interface{}{
							"gte": prevSince.Format(time.RFC3339),
							"lt":  until.Format(time.RFC3339),
						},
					}},
				},
			},
		},
		"aggs": map[string]interface{}{
			"current": map[string]interface{}{
				"filter": map[string]interface{}{"range": map[string]interface{}{
					"createdAt": map[string]interface{}{"gte": since.Format(time.RFC3339)},
				}},
				"aggs": map[string]interface{}{
					"approved": map[string]interface{}{
						"filter": approved,
						"aggs": map[string]interface{}{
							"origins": map[string]interface{}{
								"terms": map[string]interface{}{"field": "origin", "size": 10},
								"aggs": map[string]interface{}{
									"views":  map[string]interface{}{"sum": map[string]interface{}{"field": "viewCount"}},
									"clicks": map[string]interface{}{"sum": map[string]interface{}{"field": "clickCount"}},
								},
							},
						},
					},
					"flagged": map[string]interface{}{
						"filter": map[string]interface{}{"term": map[string]interface{}{"status": string(models.EventStatusFlagged)}},
					},
				},
			},
			"previous_natural": map[string]interface{}{
				"filter": map[string]interface{}{"bool": map[string]interface{}{
					"filter": []interface{}{
						map[string]interface{}{"range": map[string]interface{}{
							"createdAt": map[string]interface{}{"lt": since.Format(time.RFC3339)},
						}},
						map[string]interface{}{"term": map[string]interface{}{"origin": string(models.OriginNatural)}},
						approved,
					},
				}},
			},
		},
	}
}

type docCount struct {
	DocCount int64 `json:"doc_count"`
}

type sumValue struct {
	Value float64 `json:"value"`
}

type windowResponse struct {
	Aggregations struct {
		Current struct {
			DocCount int64 `json:"doc_count"`
			Approved struct {
				Origins struct {
					Buckets []struct {
						Key      string   `json:"key"`
						DocCount int64    `json:"doc_count"`
						Views    sumValue `json:"views"`
						Clicks   sumValue `json:"clicks"`
					} `json:"buckets"`
				} `json:"origins"`
			} `json:"approved"`
			Flagged docCount `json:"flagged"`
		} `json:"current"`
		PreviousNatural docCount `json:"previous_natural"`
	} `json:"aggregations"`
}

func (r *windowResponse) stats() *models.WindowStats {
	cur := r.Aggregations.Current
	out := &models.WindowStats{
		ByOrigin:             make(map[models.Origin]models.OriginAnalytics, len(cur.Approved.Origins.Buckets)),
		TotalEvents:          cur.DocCount,
		FlaggedEvents:        cur.Flagged.DocCount,
		PreviousNaturalCount: r.Aggregations.PreviousNatural.DocCount,
		Partial:              true,
	}
	for _, b := range cur.Approved.Origins.Buckets {
		out.ByOrigin[models.Origin(b.Key)] = models.OriginAnalytics{
			Count:  b.DocCount,
			Views:  int64(b.Views.Value),
			Clicks: int64(b.Clicks.Value),
		}
	}
	return out
}
