// Package audit keeps a searchable trail of diversion decisions in Elasticsearch.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/models"
	"dispatch-workers/internal/notify"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultIndex = "dispatch-diversion-decisions"

// Record is the indexed document.
type Record struct {
	Timestamp time.Time                `json:"@timestamp"`
	Decision  models.DiversionDecision `json:"decision"`
	Delivery  []notify.Result          `json:"delivery,omitempty"`
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
	now    func() time.Time
}

func NewIndexer(client *elasticsearch.Client, index string) *Indexer {
	if index == "" {
		index = DefaultIndex
	}
	return &Indexer{client: client, index: index, now: time.Now}
}

// RecordDecision indexes the decision under its own id, so re-recording replaces it.
func (i *Indexer) RecordDecision(ctx context.Context, decision models.DiversionDecision, delivery []notify.Result) error {
	body, err := json.Marshal(Record{
		Timestamp: i.now().UTC(),
		Decision:  decision,
		Delivery:  delivery,
	})
	if err != nil {
		return errors.NewAuditIndexFailedError(i.index, err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: decision.ID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return errors.NewAuditIndexFailedError(i.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewAuditIndexFailedError(i.index, fmt.Errorf("index request failed: %s", res.String()))
	}
	return nil
}

// DecisionsForJob returns the most recent decisions for an emergency job.
func (i *Indexer) DecisionsForJob(ctx context.Context, jobID string, size int) ([]Record, error) {
	if size <= 0 || size > 100 {
		size = 20
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"decision.emergencyJobId": jobID,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"@timestamp": map[string]interface{}{"order": "desc"}},
		},
	}
	body, _ := json.Marshal(query)

	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("audit_search", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewQueryExecutionFailedError("audit_search", fmt.Errorf("search query failed: %s", res.String()))
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source Record `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewQueryExecutionFailedError("audit_search", err)
	}

	records := make([]Record, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		records = append(records, hit.Source)
	}
	return records, nil
}
