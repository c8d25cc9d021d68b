// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"net/http"

	"immigration-advisor/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

const defaultProgramIndex = "programs"

// ElasticsearchClient is the search cluster holding the program index.
type ElasticsearchClient struct {
	Client       *elasticsearch.Client
	ProgramIndex string
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	index := cfg.ProgramIndex
	if index == "" {
		index = defaultProgramIndex
	}
	return &ElasticsearchClient{Client: es, ProgramIndex: index}, nil
}

// Ping checks that the cluster answers and the program index exists.
func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Indices.Exists([]string{c.ProgramIndex},
		c.Client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return fmt.Errorf("program index %q does not exist", c.ProgramIndex)
	case res.IsError():
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}
