package embedindex

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/pipeline"
)

// shapeDescriptor is the sidecar JSON written alongside the raw matrix
// binary; the matrix file alone does not record its own shape.
type shapeDescriptor struct {
	N int `json:"n"`
	D int `json:"d"`
}

// Save writes idx as three artifacts under dir: matrix.bin + matrix.shape.json,
// verse_ids.json, and metadata.json. All three must be present to Load
// the index back.
func Save(idx Index, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pipeline.IndexError("create index directory: " + err.Error())
	}

	if err := writeMatrix(filepath.Join(dir, "matrix.bin"), idx.Matrix); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "matrix.shape.json"), shapeDescriptor{N: idx.N, D: idx.D}); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "verse_ids.json"), idx.VerseIDs); err != nil {
		return err
	}

	metaOut := make(map[string]model.EmbeddingMeta, len(idx.Metadata))
	for id, m := range idx.Metadata {
		metaOut[formatVerseID(id)] = m
	}
	if err := writeJSON(filepath.Join(dir, "metadata.json"), metaOut); err != nil {
		return err
	}

	return nil
}

// Load reads back an Index previously written by Save. Any missing
// artifact is a fatal construction error for the Retriever.
func Load(dir string) (Index, error) {
	var shape shapeDescriptor
	if err := readJSON(filepath.Join(dir, "matrix.shape.json"), &shape); err != nil {
		return Index{}, err
	}

	matrix, err := readMatrix(filepath.Join(dir, "matrix.bin"), shape.N*shape.D)
	if err != nil {
		return Index{}, err
	}

	var verseIDs []int64
	if err := readJSON(filepath.Join(dir, "verse_ids.json"), &verseIDs); err != nil {
		return Index{}, err
	}

	var metaIn map[string]model.EmbeddingMeta
	if err := readJSON(filepath.Join(dir, "metadata.json"), &metaIn); err != nil {
		return Index{}, err
	}

	if len(verseIDs) != shape.N || len(metaIn) != shape.N {
		return Index{}, pipeline.IndexError("embedding index artifacts disagree on row count")
	}

	metadata := make(map[int64]model.EmbeddingMeta, len(metaIn))
	for idStr, m := range metaIn {
		id, err := parseVerseID(idStr)
		if err != nil {
			return Index{}, pipeline.IndexError("malformed verse id in metadata: " + idStr)
		}
		metadata[id] = m
	}

	return Index{
		Matrix:   matrix,
		N:        shape.N,
		D:        shape.D,
		VerseIDs: verseIDs,
		Metadata: metadata,
	}, nil
}

func writeMatrix(path string, data []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return pipeline.IndexError("create matrix file: " + err.Error())
	}
	defer f.Close()

	buf := make([]byte, 4)
	for _, v := range data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := f.Write(buf); err != nil {
			return pipeline.IndexError("write matrix file: " + err.Error())
		}
	}
	return nil
}

func readMatrix(path string, count int) ([]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, pipeline.IndexError("read matrix file: " + err.Error())
	}
	if len(raw) != count*4 {
		return nil, pipeline.IndexError("matrix file size does not match shape descriptor")
	}

	out := make([]float32, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return pipeline.IndexError("create " + path + ": " + err.Error())
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return pipeline.IndexError("encode " + path + ": " + err.Error())
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.IndexError("open " + path + ": " + err.Error())
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return pipeline.IndexError("decode " + path + ": " + err.Error())
	}
	return nil
}

func formatVerseID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseVerseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
