package retrieve

import (
	"context"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"

	"github.com/sola-scriptura-search-api/internal/embedindex"
	"github.com/sola-scriptura-search-api/internal/pipeline"
)

// VertexANNConfig configures a deployed Vertex AI Vector Search index used
// as an alternative to brute-force cosine search over the file-based
// Embedding Index.
type VertexANNConfig struct {
	ProjectID            string
	Location             string
	IndexEndpointID      string
	DeployedIndexID      string
	PublicEndpointDomain string
}

// VertexANN finds nearest neighbors via a deployed Vertex AI Vector Search
// index, then resolves verse metadata from an already-loaded Index's
// metadata map (the ANN index stores only vectors + datapoint IDs).
type VertexANN struct {
	cfg      VertexANNConfig
	client   *aiplatform.MatchClient
	metadata embedindex.Index
}

// NewVertexANN creates a VertexANN searcher.
func NewVertexANN(ctx context.Context, cfg VertexANNConfig, metadata embedindex.Index) (*VertexANN, error) {
	var endpoint string
	if cfg.PublicEndpointDomain != "" {
		endpoint = fmt.Sprintf("%s:443", cfg.PublicEndpointDomain)
	} else {
		endpoint = fmt.Sprintf("%s-aiplatform.googleapis.com:443", cfg.Location)
	}

	client, err := aiplatform.NewMatchClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, pipeline.IndexError("create vertex ai match client: " + err.Error())
	}

	return &VertexANN{cfg: cfg, client: client, metadata: metadata}, nil
}

// Close releases the underlying Vertex AI match client.
func (v *VertexANN) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// Search finds the topK nearest neighbors to queryVec in the deployed
// index, resolving each datapoint ID (the verse ID formatted as a string)
// back to verse metadata.
func (v *VertexANN) Search(ctx context.Context, queryVec []float32, topK int) ([]Result, error) {
	indexEndpoint := fmt.Sprintf(
		"projects/%s/locations/%s/indexEndpoints/%s",
		v.cfg.ProjectID, v.cfg.Location, v.cfg.IndexEndpointID,
	)

	req := &aiplatformpb.FindNeighborsRequest{
		IndexEndpoint:   indexEndpoint,
		DeployedIndexId: v.cfg.DeployedIndexID,
		Queries: []*aiplatformpb.FindNeighborsRequest_Query{
			{
				Datapoint:     &aiplatformpb.IndexDatapoint{FeatureVector: queryVec},
				NeighborCount: int32(topK),
			},
		},
	}

	resp, err := v.client.FindNeighbors(ctx, req)
	if err != nil {
		return nil, pipeline.QueryError("vertex ai find neighbors: " + err.Error())
	}
	if len(resp.NearestNeighbors) == 0 {
		return nil, nil
	}

	var results []Result
	for _, neighbor := range resp.NearestNeighbors[0].Neighbors {
		verseID, err := parseDatapointID(neighbor.Datapoint.DatapointId)
		if err != nil {
			continue
		}
		meta, ok := v.metadata.Metadata[verseID]
		if !ok {
			continue
		}
		results = append(results, Result{
			VerseID:   verseID,
			Book:      meta.Book,
			Chapter:   meta.Chapter,
			Verse:     meta.Verse,
			Reference: meta.Reference,
			Text:      meta.Text,
			Score:     float32(1 - neighbor.Distance),
		})
	}

	return results, nil
}

func parseDatapointID(id string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(id, "%d", &v)
	return v, err
}
