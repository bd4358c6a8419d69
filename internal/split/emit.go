package split

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/pipeline"
)

// Emit writes the train, dev, and test partitions in res to
// "<dir>/<name>.jsonl", one model.Example per line; these three files are
// always created, even when empty. The holdout partition is written only
// when holdoutName is non-empty and res.Holdout is non-empty.
func Emit(res Result, dir, holdoutName string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pipeline.IndexError("create output directory: " + err.Error())
	}

	if err := writePartition(filepath.Join(dir, "train.jsonl"), res.Train); err != nil {
		return err
	}
	if err := writePartition(filepath.Join(dir, "dev.jsonl"), res.Dev); err != nil {
		return err
	}
	if err := writePartition(filepath.Join(dir, "test.jsonl"), res.Test); err != nil {
		return err
	}

	if holdoutName != "" && len(res.Holdout) > 0 {
		if err := writePartition(filepath.Join(dir, holdoutName+".jsonl"), res.Holdout); err != nil {
			return err
		}
	}

	return nil
}

func writePartition(path string, examples []model.Example) error {
	f, err := os.Create(path)
	if err != nil {
		return pipeline.IndexError("create partition file " + path + ": " + err.Error())
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, ex := range examples {
		if err := enc.Encode(ex); err != nil {
			return pipeline.IndexError("encode example to " + path + ": " + err.Error())
		}
	}
	return nil
}
