package embedindex

import (
	"context"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sola-scriptura-search-api/internal/pipeline"
)

// vertexBatchLimit caps the instances sent per Vertex AI prediction call;
// larger requests are chunked transparently by EmbedBatch.
const vertexBatchLimit = 250

// VertexConfig configures a VertexEmbedder.
type VertexConfig struct {
	ProjectID string
	Location  string
	Model     string
	Dimension int
}

// VertexEmbedder implements Embedder over Google Cloud Vertex AI's text
// embedding models.
type VertexEmbedder struct {
	cfg      VertexConfig
	client   *aiplatform.PredictionClient
	endpoint string
}

// NewVertexEmbedder creates a Vertex AI embedder for cfg.
func NewVertexEmbedder(ctx context.Context, cfg VertexConfig) (*VertexEmbedder, error) {
	if cfg.ProjectID == "" {
		return nil, pipeline.ConfigError("vertex embedder requires a project id")
	}

	clientEndpoint := fmt.Sprintf("%s-aiplatform.googleapis.com:443", cfg.Location)
	client, err := aiplatform.NewPredictionClient(ctx, option.WithEndpoint(clientEndpoint))
	if err != nil {
		return nil, pipeline.IndexError("create vertex ai client: " + err.Error())
	}

	endpoint := fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s",
		cfg.ProjectID, cfg.Location, cfg.Model)

	return &VertexEmbedder{cfg: cfg, client: client, endpoint: endpoint}, nil
}

// Close releases the underlying Vertex AI client.
func (e *VertexEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Dimension returns the configured output dimension.
func (e *VertexEmbedder) Dimension() int { return e.cfg.Dimension }

// Embed generates an embedding for one text.
func (e *VertexEmbedder) Embed(ctx context.Context, text string, taskType TaskType) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, pipeline.IndexError("vertex ai returned no embeddings")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts, chunking internally
// to respect vertexBatchLimit regardless of the caller's batch size.
func (e *VertexEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	if len(texts) > vertexBatchLimit {
		var all [][]float32
		for i := 0; i < len(texts); i += vertexBatchLimit {
			end := i + vertexBatchLimit
			if end > len(texts) {
				end = len(texts)
			}
			batch, err := e.embedBatchInternal(ctx, texts[i:end], taskType)
			if err != nil {
				return nil, err
			}
			all = append(all, batch...)
		}
		return all, nil
	}

	return e.embedBatchInternal(ctx, texts, taskType)
}

func (e *VertexEmbedder) embedBatchInternal(ctx context.Context, texts []string, taskType TaskType) ([][]float32, error) {
	instances := make([]*structpb.Value, len(texts))
	for i, text := range texts {
		instance, err := structpb.NewStruct(map[string]interface{}{
			"content":   text,
			"task_type": string(taskType),
		})
		if err != nil {
			return nil, pipeline.IndexError("build vertex ai instance: " + err.Error())
		}
		instances[i] = structpb.NewStructValue(instance)
	}

	req := &aiplatformpb.PredictRequest{
		Endpoint:  e.endpoint,
		Instances: instances,
	}

	resp, err := e.client.Predict(ctx, req)
	if err != nil {
		return nil, pipeline.IndexError("vertex ai prediction failed: " + err.Error())
	}

	embeddings := make([][]float32, len(resp.Predictions))
	for i, prediction := range resp.Predictions {
		predStruct := prediction.GetStructValue()
		if predStruct == nil {
			return nil, pipeline.IndexError(fmt.Sprintf("unexpected prediction format at index %d", i))
		}

		embeddingsField := predStruct.Fields["embeddings"]
		if embeddingsField == nil {
			return nil, pipeline.IndexError(fmt.Sprintf("no embeddings field in prediction at index %d", i))
		}

		embStruct := embeddingsField.GetStructValue()
		if embStruct == nil {
			return nil, pipeline.IndexError(fmt.Sprintf("unexpected embeddings format at index %d", i))
		}

		valuesList := embStruct.Fields["values"].GetListValue()
		if valuesList == nil {
			return nil, pipeline.IndexError(fmt.Sprintf("no values field in embeddings at index %d", i))
		}

		embedding := make([]float32, len(valuesList.Values))
		for j, v := range valuesList.Values {
			embedding[j] = float32(v.GetNumberValue())
		}
		embeddings[i] = embedding
	}

	return embeddings, nil
}
