// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/vector"
)

// DefaultCollectionName is used when no storage id was provided.
const DefaultCollectionName = "g4l"

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

// Driver implements vector.Driver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *zap.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use, usually the
	// index storage id. Defaults to DefaultCollectionName if empty.
	CollectionName string
}

// NewDriver connects to Chroma and gets or creates the configured collection.
func NewDriver(c Config, logger *zap.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	name := c.CollectionName
	if name == "" {
		name = DefaultCollectionName
	}

	d := &Driver{
		baseURL:        c.URL,
		collectionName: name,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		logger:         logger,
	}

	id, err := d.getOrCreateCollection(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: getting or creating collection %q: %v", vector.ErrConnection, name, err)
	}
	d.collectionID = id

	logger.Debug("connected to chroma",
		zap.String("url", c.URL),
		zap.String("collection", name),
		zap.String("collection_id", id),
	)
	return d, nil
}

// do sends a JSON request and decodes a JSON response into out when out is
// non-nil. Any status other than 200 or 201 is an error.
func (d *Driver) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return &statusError{code: resp.StatusCode, body: string(msg)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("chroma returned status %d: %s", e.code, e.body)
}

func (d *Driver) collectionPath(op string) string {
	return collectionsPath + "/" + d.collectionID + "/" + op
}

func (d *Driver) getOrCreateCollection(ctx context.Context) (string, error) {
	var coll chromaCollection
	err := d.do(ctx, http.MethodGet, collectionsPath+"/"+d.collectionName, nil, &coll)
	if err == nil {
		return coll.ID, nil
	}

	if err := d.do(ctx, http.MethodPost, collectionsPath, map[string]string{"name": d.collectionName}, &coll); err != nil {
		return "", err
	}
	return coll.ID, nil
}

func metadataFor(doc vector.Document) map[string]any {
	return map[string]any{
		metaSource:    doc.Source,
		metaPageLabel: doc.PageLabel,
	}
}

func applyMetadata(doc *vector.Document, meta map[string]any) {
	if meta == nil {
		return
	}
	if s, ok := meta[metaSource].(string); ok {
		doc.Source = s
	}
	if s, ok := meta[metaPageLabel].(string); ok {
		doc.PageLabel = s
	}
}

// Add upserts documents with their text and metadata.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	req := chromaUpsertRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
		Documents:  make([]string, len(docs)),
	}
	for i, doc := range docs {
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Metadatas[i] = metadataFor(doc)
		req.Documents[i] = doc.Text
	}

	if err := d.do(ctx, http.MethodPost, d.collectionPath("upsert"), req, nil); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	d.logger.Debug("added documents to chroma", zap.Int("count", len(docs)))
	return nil
}

// Query finds the topK most similar documents to the given embedding.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 1
	}

	var resp chromaQueryResponse
	err := d.do(ctx, http.MethodPost, d.collectionPath("query"), chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"documents", "metadatas", "distances"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}

	if len(resp.IDs) == 0 {
		return nil, nil
	}

	results := make([]vector.QueryResult, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		r := vector.QueryResult{Document: vector.Document{ID: id}}
		if len(resp.Documents) > 0 && i < len(resp.Documents[0]) {
			r.Text = resp.Documents[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			applyMetadata(&r.Document, resp.Metadatas[0][i])
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			r.Score = 1.0 / (1.0 + resp.Distances[0][i])
		}
		results = append(results, r)
	}

	d.logger.Debug("queried chroma", zap.Int("results", len(results)))
	return results, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var resp chromaGetResponse
	err := d.do(ctx, http.MethodPost, d.collectionPath("get"), chromaGetRequest{
		IDs:     ids,
		Include: []string{"documents", "metadatas", "embeddings"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("getting documents: %w", err)
	}

	docs := make([]vector.Document, len(resp.IDs))
	for i, id := range resp.IDs {
		docs[i].ID = id
		if i < len(resp.Documents) {
			docs[i].Text = resp.Documents[i]
		}
		if i < len(resp.Metadatas) {
			applyMetadata(&docs[i], resp.Metadatas[i])
		}
		if i < len(resp.Embeddings) {
			docs[i].Embedding = resp.Embeddings[i]
		}
	}
	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := d.do(ctx, http.MethodPost, d.collectionPath("delete"), chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	d.logger.Debug("deleted documents from chroma", zap.Int("count", len(ids)))
	return nil
}

// DeleteSource removes every document whose file_name matches source.
func (d *Driver) DeleteSource(ctx context.Context, source string) error {
	req := chromaDeleteRequest{Where: map[string]any{metaSource: source}}
	if err := d.do(ctx, http.MethodPost, d.collectionPath("delete"), req, nil); err != nil {
		return fmt.Errorf("deleting documents of %s: %w", source, err)
	}
	return nil
}

// Count returns the number of documents in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.do(ctx, http.MethodGet, d.collectionPath("count"), nil, &n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return nil
}

var _ vector.Driver = (*Driver)(nil)
