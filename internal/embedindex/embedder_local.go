package embedindex

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/sola-scriptura-search-api/internal/pipeline"
)

// LocalConfig configures a LocalEmbedder.
type LocalConfig struct {
	ServiceURL string
	Dimension  int
}

// LocalEmbedder implements Embedder by calling an arbitrary HTTP embedding
// service, for local or self-hosted encoder deployments.
type LocalEmbedder struct {
	cfg        LocalConfig
	httpClient *http.Client
}

// NewLocalEmbedder builds a LocalEmbedder for cfg.
func NewLocalEmbedder(cfg LocalConfig) *LocalEmbedder {
	return &LocalEmbedder{cfg: cfg, httpClient: &http.Client{}}
}

// Dimension returns the configured output dimension.
func (e *LocalEmbedder) Dimension() int { return e.cfg.Dimension }

var taskTypeToInstruction = map[TaskType]string{
	TaskTypeQuery:    "Represent the question for retrieving relevant Bible verses: ",
	TaskTypeDocument: "Represent the Bible verse for retrieval: ",
}

type localEmbeddingRequest struct {
	Text        string `json:"text"`
	Instruction string `json:"instruction"`
}

type localEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type localBatchEmbeddingRequest struct {
	Texts       []string `json:"texts"`
	Instruction string   `json:"instruction"`
}

type localBatchEmbeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates an embedding for one text.
func (e *LocalEmbedder) Embed(ctx context.Context, text string, taskType TaskType) ([]float32, error) {
	reqBody := localEmbeddingRequest{Text: text, Instruction: instructionFor(taskType)}

	var resp localEmbeddingResponse
	if err := e.post(ctx, "/embed", reqBody, &resp); err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType TaskType) ([][]float32, error) {
	reqBody := localBatchEmbeddingRequest{Texts: texts, Instruction: instructionFor(taskType)}

	var resp localBatchEmbeddingResponse
	if err := e.post(ctx, "/embed/batch", reqBody, &resp); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

func instructionFor(t TaskType) string {
	if instr, ok := taskTypeToInstruction[t]; ok {
		return instr
	}
	return taskTypeToInstruction[TaskTypeDocument]
}

func (e *LocalEmbedder) post(ctx context.Context, path string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return pipeline.IndexError("marshal embedding request: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.ServiceURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return pipeline.IndexError("build embedding request: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return pipeline.IndexError("call embedding service: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return pipeline.IndexError("embedding service error: " + string(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pipeline.IndexError("decode embedding response: " + err.Error())
	}
	return nil
}
