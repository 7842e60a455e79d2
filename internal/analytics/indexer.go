package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"proof-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// Indexer mirrors event counters into the interaction index. Documents are
// keyed by event id, so re-indexing overwrites with the latest counters.
type Indexer struct {
	client *elasticsearch.Client
	index  string
}

func NewIndexer(client *elasticsearch.Client, index string) *Indexer {
	return &Indexer{client: client, index: index}
}

type eventDocument struct {
	EventID    string    `json:"eventId"`
	WidgetID   string    `json:"widgetId"`
	CampaignID string    `json:"campaignId,omitempty"`
	Origin     string    `json:"origin"`
	Status     string    `json:"status"`
	ViewCount  int64     `json:"viewCount"`
	ClickCount int64     `json:"clickCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (i *Indexer) Record(ctx context.Context, e *models.NotificationEvent) error {
	doc := eventDocument{
		EventID:    e.ID,
		WidgetID:   e.WidgetID,
		Origin:     string(e.Origin),
		Status:     string(e.Status),
		ViewCount:  e.ViewCount,
		ClickCount: e.ClickCount,
		CreatedAt:  e.CreatedAt,
	}
	if e.CampaignID != nil {
		doc.CampaignID = *e.CampaignID
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := i.client.Index(i.index, bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(e.ID),
	)
	if err != nil {
		return fmt.Errorf("index event %s: %w", e.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index event %s: %s", e.ID, res.Status())
	}
	return nil
}
