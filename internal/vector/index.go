package vector

import "context"

// Point is one nearest-neighbor result from the index. Payload carries the
// chunk content and source metadata exactly as stored at ingestion time.
type Point struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Index is the narrow query contract against the vector database. The
// retrieval pipeline depends on this interface, never on the concrete
// client, so tests can substitute doubles.
type Index interface {
	Collections(ctx context.Context) ([]string, error)
	Query(ctx context.Context, collection string, vector []float32, limit int) ([]Point, error)
}
