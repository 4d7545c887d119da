// Package qdrant backs the retrieval indexes with a Qdrant server over
// gRPC. Collections use Euclid distance so scores rank the same way as
// the file store: lower is closer.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"specdiff/internal/domain"
	"specdiff/internal/vectorstore"
)

// Defaults for the Qdrant backend.
const (
	DefaultHost             = "localhost"
	DefaultPort             = 6334
	DefaultChangeCollection = "specdiff_changes"
	DefaultEventCollection  = "specdiff_events"
	DefaultTimeout          = 15 * time.Second

	upsertBatchSize = 100
)

// Config holds connection details for a Qdrant server.
type Config struct {
	Host             string
	Port             int
	ChangeCollection string
	EventCollection  string
	Timeout          time.Duration
}

// Store implements vectorstore.Index on a Qdrant server, one collection
// per index level. Each build drops and recreates its collection.
type Store struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	cfg         Config
}

// New connects to the Qdrant server.
func New(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ChangeCollection == "" {
		cfg.ChangeCollection = DefaultChangeCollection
	}
	if cfg.EventCollection == "" {
		cfg.EventCollection = DefaultEventCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant at %s: %w", addr, err)
	}
	return &Store{
		conn:        conn,
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
		cfg:         cfg,
	}, nil
}

// Close releases the gRPC connection.
func (s *Store) Close() error { return s.conn.Close() }

// BuildChanges rebuilds the change collection from scratch.
func (s *Store) BuildChanges(changes []domain.Change, vectors [][]float64) error {
	if len(changes) != len(vectors) {
		return fmt.Errorf("%d changes but %d vectors", len(changes), len(vectors))
	}
	points := make([]*qdrantclient.PointStruct, len(changes))
	for i, c := range changes {
		meta := vectorstore.ChangeMeta(c)
		points[i] = point(vectors[i], map[string]*qdrantclient.Value{
			"section_id":       stringValue(meta.SectionID),
			"chunk_id":         stringValue(meta.ChunkID),
			"change_type":      stringValue(meta.ChangeType),
			"similarity_score": doubleValue(meta.SimilarityScore),
			"text":             stringValue(meta.Text),
		})
	}
	return s.rebuild(s.cfg.ChangeCollection, points)
}

// BuildEvents rebuilds the event collection from the centroids.
func (s *Store) BuildEvents(events []domain.Event, centroids [][]float64) error {
	if len(events) != len(centroids) {
		return fmt.Errorf("%d events but %d centroids", len(events), len(centroids))
	}
	points := make([]*qdrantclient.PointStruct, len(events))
	for i, ev := range events {
		members := make([]*qdrantclient.Value, len(ev.Members))
		for j, m := range ev.Members {
			members[j] = stringValue(m)
		}
		points[i] = point(centroids[i], map[string]*qdrantclient.Value{
			"event_id": integerValue(int64(ev.EventID)),
			"label":    stringValue(ev.Label),
			"members": {Kind: &qdrantclient.Value_ListValue{
				ListValue: &qdrantclient.ListValue{Values: members},
			}},
		})
	}
	return s.rebuild(s.cfg.EventCollection, points)
}

// QueryChanges searches the change collection.
func (s *Store) QueryChanges(vector []float64, topK int) ([]domain.ChangeHit, error) {
	result, err := s.search(s.cfg.ChangeCollection, vector, topK)
	if err != nil {
		return nil, err
	}
	hits := make([]domain.ChangeHit, len(result))
	for i, p := range result {
		hits[i] = domain.ChangeHit{
			Score: float64(p.GetScore()),
			Meta: domain.ChangeMeta{
				SectionID:       payloadString(p.Payload, "section_id"),
				ChunkID:         payloadString(p.Payload, "chunk_id"),
				ChangeType:      payloadString(p.Payload, "change_type"),
				SimilarityScore: payloadDouble(p.Payload, "similarity_score"),
				Text:            payloadString(p.Payload, "text"),
			},
		}
	}
	return hits, nil
}

// QueryEvents searches the event collection.
func (s *Store) QueryEvents(vector []float64, topK int) ([]domain.EventHit, error) {
	result, err := s.search(s.cfg.EventCollection, vector, topK)
	if err != nil {
		return nil, err
	}
	hits := make([]domain.EventHit, len(result))
	for i, p := range result {
		ev := domain.Event{
			EventID: int(payloadInteger(p.Payload, "event_id")),
			Label:   payloadString(p.Payload, "label"),
		}
		if v, ok := p.Payload["members"]; ok {
			for _, m := range v.GetListValue().GetValues() {
				ev.Members = append(ev.Members, m.GetStringValue())
			}
		}
		hits[i] = domain.EventHit{Score: float64(p.GetScore()), Event: ev}
	}
	return hits, nil
}

// rebuild drops and recreates a collection, then upserts all points in
// batches.
func (s *Store) rebuild(collection string, points []*qdrantclient.PointStruct) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	_, _ = s.collections.Delete(ctx, &qdrantclient.DeleteCollection{CollectionName: collection})

	dim := 0
	if len(points) > 0 {
		dim = len(points[0].GetVectors().GetVector().GetData())
	}
	if dim == 0 {
		return nil
	}
	_, err := s.collections.Create(ctx, &qdrantclient.CreateCollection{
		CollectionName: collection,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     uint64(dim),
					Distance: qdrantclient.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		batchCtx, batchCancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		_, err := s.points.Upsert(batchCtx, &qdrantclient.UpsertPoints{
			CollectionName: collection,
			Points:         points[start:end],
		})
		batchCancel()
		if err != nil {
			return fmt.Errorf("upsert points into %s: %w", collection, err)
		}
	}
	return nil
}

func (s *Store) search(collection string, vector []float64, topK int) ([]*qdrantclient.ScoredPoint, error) {
	if topK <= 0 {
		topK = 5
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()

	resp, err := s.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: collection,
		Vector:         toFloat32(vector),
		Limit:          uint64(topK),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	return resp.GetResult(), nil
}

func point(vector []float64, payload map[string]*qdrantclient.Value) *qdrantclient.PointStruct {
	return &qdrantclient.PointStruct{
		Id: &qdrantclient.PointId{
			PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: uuid.NewString()},
		},
		Vectors: &qdrantclient.Vectors{
			VectorsOptions: &qdrantclient.Vectors_Vector{
				Vector: &qdrantclient.Vector{Data: toFloat32(vector)},
			},
		},
		Payload: payload,
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func stringValue(s string) *qdrantclient.Value {
	return &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: s}}
}

func doubleValue(f float64) *qdrantclient.Value {
	return &qdrantclient.Value{Kind: &qdrantclient.Value_DoubleValue{DoubleValue: f}}
}

func integerValue(i int64) *qdrantclient.Value {
	return &qdrantclient.Value{Kind: &qdrantclient.Value_IntegerValue{IntegerValue: i}}
}

func payloadString(p map[string]*qdrantclient.Value, key string) string {
	if v, ok := p[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func payloadDouble(p map[string]*qdrantclient.Value, key string) float64 {
	if v, ok := p[key]; ok {
		return v.GetDoubleValue()
	}
	return 0
}

func payloadInteger(p map[string]*qdrantclient.Value, key string) int64 {
	if v, ok := p[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}
