package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
)

func NewElasticClient(url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return client, nil
}

// ElasticIndexer mirrors order events into a search index keyed by order id.
// Events from other topics are ignored.
type ElasticIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticIndexer(client *elasticsearch.Client, index string) *ElasticIndexer {
	return &ElasticIndexer{client: client, index: index}
}

func (x *ElasticIndexer) PublishEvent(ctx context.Context, topic string, ev Event) error {
	if topic != TopicOrders {
		return nil
	}
	if ev.Type == OrderDeleted {
		return x.delete(ctx, ev.ID.String())
	}
	return x.put(ctx, ev.ID.String(), ev.Payload)
}

func (x *ElasticIndexer) put(ctx context.Context, id string, doc any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("es: encode %s: %w", id, err)
	}

	res, err := x.client.Index(
		x.index,
		&buf,
		x.client.Index.WithDocumentID(id),
		x.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("es: index %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("es: index %s: %s: %s", id, res.Status(), body)
	}
	return nil
}

func (x *ElasticIndexer) delete(ctx context.Context, id string) error {
	res, err := x.client.Delete(x.index, id, x.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("es: delete %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("es: delete %s: %s: %s", id, res.Status(), body)
	}
	return nil
}
