package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sola-scriptura-search-api/internal/corpus"
	"github.com/sola-scriptura-search-api/internal/embedindex"
	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/pipeline"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and manage the semantic retrieval embedding index",
}

var (
	flagIndexOutDir   string
	flagIndexStore    bool
	flagVertexIndexID string
)

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Encode every verse in the corpus into a persisted embedding index",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := pipeline.NewLogger(flagLogLevel, flagPretty)

		cfg, err := pipeline.LoadPipelineConfig(flagConfigFile)
		if err != nil {
			return err
		}

		ok, err := pipeline.Confirm(fmt.Sprintf("Build embedding index into %q?", flagIndexOutDir), flagYes)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}

		if flagIndexStore && (flagDriver == "sqlite3" || flagDriver == "sqlite") {
			// sqlite-vec must be registered before the store opens its
			// first connection.
			embedindex.RegisterSQLiteVec()
		}

		db, err := openStore(flagDriver, flagDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		reader, err := corpus.NewReader(ctx, db, corpus.Options{
			Driver:       flagDriver,
			TextPrefer:   corpus.TextPreference(cfg.TextPrefer),
			RequireClean: cfg.RequireClean,
		}, log)
		if err != nil {
			return err
		}

		var verses []model.Verse
		for verse, err := range reader.Verses(ctx, nil) {
			if err != nil {
				return err
			}
			verses = append(verses, verse)
		}

		embedder, closeFn, err := buildEmbedder(ctx, cfg)
		if err != nil {
			return err
		}
		if closeFn != nil {
			defer closeFn()
		}

		buildCfg := embedindex.BuildConfig{
			IncludeContext: cfg.Embedding.IncludeContext,
			BatchSize:      cfg.Embedding.BatchSize,
		}

		var idx embedindex.Index
		if flagPretty {
			// Interactive runs get a live progress bar over the encode
			// phase; the encode itself runs on a worker goroutine so the
			// display can own the terminal.
			updates := make(chan pipeline.ProgressUpdate, 16)
			buildCfg.Progress = func(done, total int) {
				select {
				case updates <- pipeline.ProgressUpdate{Label: "encoding verses", Done: done, Total: total}:
				default:
				}
			}
			errCh := make(chan error, 1)
			go func() {
				var buildErr error
				idx, buildErr = embedindex.Build(ctx, verses, embedder, buildCfg, log)
				close(updates)
				errCh <- buildErr
			}()
			if err := pipeline.RunProgress("encoding verses", updates); err != nil {
				return err
			}
			if err := <-errCh; err != nil {
				return err
			}
		} else {
			idx, err = embedindex.Build(ctx, verses, embedder, buildCfg, log)
			if err != nil {
				return err
			}
		}

		if err := embedindex.Save(idx, flagIndexOutDir); err != nil {
			return err
		}
		fmt.Printf("wrote index: %d verses, dimension %d, into %s\n", idx.N, idx.D, flagIndexOutDir)

		if flagIndexStore {
			switch flagDriver {
			case "postgres":
				store := embedindex.NewPostgresStore(db)
				if err := store.Upsert(ctx, idx); err != nil {
					return err
				}
			case "sqlite3", "sqlite":
				if err := embedindex.NewSQLiteStore(db.DB, idx.D).Upsert(ctx, idx); err != nil {
					return err
				}
			}
			fmt.Println("upserted embeddings into the verse/token store")
		}

		return nil
	},
}

// buildEmbedder constructs the configured Embedder backend. The caller
// must invoke the returned close func (if non-nil) once done.
func buildEmbedder(ctx context.Context, cfg *pipeline.PipelineConfig) (embedindex.Embedder, func(), error) {
	switch cfg.Embedding.Provider {
	case "vertex":
		ve, err := embedindex.NewVertexEmbedder(ctx, embedindex.VertexConfig{
			ProjectID: cfg.Embedding.GCPProjectID,
			Location:  cfg.Embedding.GCPLocation,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
		})
		if err != nil {
			return nil, nil, err
		}
		return ve, func() { ve.Close() }, nil
	default:
		le := embedindex.NewLocalEmbedder(embedindex.LocalConfig{
			ServiceURL: cfg.Embedding.ServiceURL,
			Dimension:  cfg.Embedding.Dimension,
		})
		return le, nil, nil
	}
}

// vertexDataPoint is the Vertex AI Vector Search batch-import JSONL shape:
// one datapoint per line, book carried as a restricts namespace so a
// deployed index can filter by book at query time.
type vertexDataPoint struct {
	ID        string           `json:"id"`
	Embedding []float32        `json:"embedding"`
	Restricts []vertexRestrict `json:"restricts,omitempty"`
}

type vertexRestrict struct {
	Namespace string   `json:"namespace"`
	Allow     []string `json:"allow"`
}

var indexExportVertexCmd = &cobra.Command{
	Use:   "export-vertex <index-dir> <output.jsonl>",
	Short: "Export a built index as Vertex AI Vector Search batch-import JSONL",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := embedindex.Load(args[0])
		if err != nil {
			return err
		}

		f, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		w := bufio.NewWriter(f)
		enc := json.NewEncoder(w)
		for i, verseID := range idx.VerseIDs {
			meta := idx.Metadata[verseID]
			dp := vertexDataPoint{
				ID:        fmt.Sprintf("%d", verseID),
				Embedding: idx.Row(i),
				Restricts: []vertexRestrict{
					{Namespace: "book", Allow: []string{meta.Book}},
				},
			}
			if err := enc.Encode(dp); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("exported %d datapoints to %s\n", idx.N, args[1])
		return nil
	},
}

const vertexUpsertBatchSize = 100

var indexUpsertVertexCmd = &cobra.Command{
	Use:   "upsert-vertex <index-dir>",
	Short: "Stream a built index's vectors to a deployed Vertex AI Vector Search index via UpsertDatapoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagVertexIndexID == "" {
			return fmt.Errorf("--vertex-index-id is required")
		}
		cfg, err := pipeline.LoadPipelineConfig(flagConfigFile)
		if err != nil {
			return err
		}
		if cfg.Embedding.GCPProjectID == "" {
			return fmt.Errorf("embedding.gcp_project_id is required")
		}

		idx, err := embedindex.Load(args[0])
		if err != nil {
			return err
		}

		ctx := context.Background()
		endpoint := fmt.Sprintf("%s-aiplatform.googleapis.com:443", cfg.Embedding.GCPLocation)
		client, err := aiplatform.NewIndexClient(ctx, option.WithEndpoint(endpoint))
		if err != nil {
			return pipeline.IndexError("create vertex ai index client: " + err.Error())
		}
		defer client.Close()

		indexName := fmt.Sprintf("projects/%s/locations/%s/indexes/%s",
			cfg.Embedding.GCPProjectID, cfg.Embedding.GCPLocation, flagVertexIndexID)

		var batch []*aiplatformpb.IndexDatapoint
		total := 0
		for i, verseID := range idx.VerseIDs {
			meta := idx.Metadata[verseID]
			batch = append(batch, &aiplatformpb.IndexDatapoint{
				DatapointId:   fmt.Sprintf("%d", verseID),
				FeatureVector: idx.Row(i),
				Restricts: []*aiplatformpb.IndexDatapoint_Restriction{
					{Namespace: "book", AllowList: []string{meta.Book}},
				},
			})
			if len(batch) >= vertexUpsertBatchSize {
				if err := upsertVertexBatch(ctx, client, indexName, batch); err != nil {
					return err
				}
				total += len(batch)
				fmt.Printf("upserted %d datapoints\n", total)
				batch = batch[:0]
			}
		}
		if len(batch) > 0 {
			if err := upsertVertexBatch(ctx, client, indexName, batch); err != nil {
				return err
			}
			total += len(batch)
		}
		fmt.Printf("upserted %d datapoints total to %s\n", total, indexName)
		return nil
	},
}

func upsertVertexBatch(ctx context.Context, client *aiplatform.IndexClient, indexName string, datapoints []*aiplatformpb.IndexDatapoint) error {
	_, err := client.UpsertDatapoints(ctx, &aiplatformpb.UpsertDatapointsRequest{
		Index:      indexName,
		Datapoints: datapoints,
	})
	if err != nil {
		return pipeline.IndexError("upsert vertex ai datapoints: " + err.Error())
	}
	return nil
}

var indexProvisionVertexCmd = &cobra.Command{
	Use:   "provision-vertex <display-name>",
	Short: "Create and deploy a Vertex AI Vector Search index and endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipeline.LoadPipelineConfig(flagConfigFile)
		if err != nil {
			return err
		}
		if cfg.Embedding.GCPProjectID == "" {
			return fmt.Errorf("embedding.gcp_project_id is required")
		}

		ok, err := pipeline.Confirm("Provision a new Vertex AI Vector Search index and endpoint? This creates billable cloud resources.", flagYes)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}

		ctx := context.Background()
		endpoint := fmt.Sprintf("%s-aiplatform.googleapis.com:443", cfg.Embedding.GCPLocation)

		indexClient, err := aiplatform.NewIndexClient(ctx, option.WithEndpoint(endpoint))
		if err != nil {
			return pipeline.IndexError("create vertex ai index client: " + err.Error())
		}
		defer indexClient.Close()

		parent := fmt.Sprintf("projects/%s/locations/%s", cfg.Embedding.GCPProjectID, cfg.Embedding.GCPLocation)

		treeAhConfig, err := structpb.NewStruct(map[string]interface{}{
			"leafNodeEmbeddingCount":   1000,
			"leafNodesToSearchPercent": 5,
		})
		if err != nil {
			return pipeline.IndexError("build vertex ai tree-ah config: " + err.Error())
		}
		algorithmConfig, err := structpb.NewStruct(map[string]interface{}{
			"treeAhConfig": treeAhConfig.AsMap(),
		})
		if err != nil {
			return pipeline.IndexError("build vertex ai algorithm config: " + err.Error())
		}
		indexConfig, err := structpb.NewStruct(map[string]interface{}{
			"config": map[string]interface{}{
				"dimensions":                cfg.Embedding.Dimension,
				"approximateNeighborsCount": 150,
				"distanceMeasureType":       "COSINE_DISTANCE",
				"algorithmConfig":           algorithmConfig.AsMap(),
			},
		})
		if err != nil {
			return pipeline.IndexError("build vertex ai index metadata: " + err.Error())
		}

		createOp, err := indexClient.CreateIndex(ctx, &aiplatformpb.CreateIndexRequest{
			Parent: parent,
			Index: &aiplatformpb.Index{
				DisplayName:       args[0],
				Description:       "verse embeddings for silver-annotated semantic search",
				Metadata:          structpb.NewStructValue(indexConfig),
				IndexUpdateMethod: aiplatformpb.Index_STREAM_UPDATE,
			},
		})
		if err != nil {
			return pipeline.IndexError("create vertex ai index: " + err.Error())
		}
		idx, err := createOp.Wait(ctx)
		if err != nil {
			return pipeline.IndexError("wait for vertex ai index creation: " + err.Error())
		}
		fmt.Printf("created index: %s\n", idx.Name)

		endpointClient, err := aiplatform.NewIndexEndpointClient(ctx, option.WithEndpoint(endpoint))
		if err != nil {
			return pipeline.IndexError("create vertex ai index endpoint client: " + err.Error())
		}
		defer endpointClient.Close()

		endpointOp, err := endpointClient.CreateIndexEndpoint(ctx, &aiplatformpb.CreateIndexEndpointRequest{
			Parent: parent,
			IndexEndpoint: &aiplatformpb.IndexEndpoint{
				DisplayName:            args[0] + "-endpoint",
				PublicEndpointEnabled: true,
			},
		})
		if err != nil {
			return pipeline.IndexError("create vertex ai index endpoint: " + err.Error())
		}
		indexEndpoint, err := endpointOp.Wait(ctx)
		if err != nil {
			return pipeline.IndexError("wait for vertex ai index endpoint creation: " + err.Error())
		}
		fmt.Printf("created index endpoint: %s\n", indexEndpoint.Name)

		deployID := "deployed_" + args[0]
		deployOp, err := endpointClient.DeployIndex(ctx, &aiplatformpb.DeployIndexRequest{
			IndexEndpoint: indexEndpoint.Name,
			DeployedIndex: &aiplatformpb.DeployedIndex{
				Id:    deployID,
				Index: idx.Name,
				AutomaticResources: &aiplatformpb.AutomaticResources{
					MinReplicaCount: 1,
					MaxReplicaCount: 2,
				},
			},
		})
		if err != nil {
			return pipeline.IndexError("deploy vertex ai index: " + err.Error())
		}
		if _, err := deployOp.Wait(ctx); err != nil {
			return pipeline.IndexError("wait for vertex ai index deployment: " + err.Error())
		}
		fmt.Printf("deployed index %s as %s on endpoint %s\n", idx.Name, deployID, indexEndpoint.Name)
		return nil
	},
}

func init() {
	indexBuildCmd.Flags().StringVar(&flagIndexOutDir, "out", "dist/index", "output directory for the embedding index artifacts")
	indexBuildCmd.Flags().BoolVar(&flagIndexStore, "store", false, "also upsert embeddings into the verse/token store (pgvector or sqlite-vec)")
	indexBuildCmd.Flags().StringVar(&flagConfigFile, "config", "", "path to pipeline.yaml (defaults to ./pipeline.yaml)")

	indexUpsertVertexCmd.Flags().StringVar(&flagVertexIndexID, "vertex-index-id", "", "deployed Vertex AI Vector Search index id")
	indexUpsertVertexCmd.Flags().StringVar(&flagConfigFile, "config", "", "path to pipeline.yaml (defaults to ./pipeline.yaml)")

	indexProvisionVertexCmd.Flags().StringVar(&flagConfigFile, "config", "", "path to pipeline.yaml (defaults to ./pipeline.yaml)")

	indexCmd.AddCommand(indexBuildCmd, indexExportVertexCmd, indexUpsertVertexCmd, indexProvisionVertexCmd)
}
