package answer

import (
	"context"
	"fmt"

	"schola/model"
	"schola/types"
)

// SearchStore is the slice of the storage layer the retriever needs.
type SearchStore interface {
	SearchDatasource(ctx context.Context, datasource string, vector []float32, limit int) ([]types.RetrievalHit, error)
}

// Retriever finds the sections of a datasource most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, datasource, query string, limit int) ([]types.RetrievalHit, error)
}

// VectorRetriever embeds the query and runs a similarity search against
// the section store.
type VectorRetriever struct {
	embedder model.EmbedderInterface
	store    SearchStore
}

func NewVectorRetriever(embedder model.EmbedderInterface, store SearchStore) *VectorRetriever {
	return &VectorRetriever{
		embedder: embedder,
		store:    store,
	}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, datasource, query string, limit int) ([]types.RetrievalHit, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return r.store.SearchDatasource(ctx, datasource, vector, limit)
}
