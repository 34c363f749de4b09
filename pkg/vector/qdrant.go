package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"

	"github.com/Zereker/talentmatch/pkg/log"
)

// payloadID keeps the caller's record id, since qdrant point ids must be uuids.
const payloadID = "_id"

// QdrantConfig holds Qdrant configuration
type QdrantConfig struct {
	Addr       string `toml:"addr"`
	Collection string `toml:"collection"`
	Dim        int    `toml:"dim"`
}

// Validate checks Qdrant configuration
func (c *QdrantConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if c.Dim <= 0 {
		return fmt.Errorf("dim must be positive")
	}
	return nil
}

// QdrantStore implements Store on a Qdrant collection over gRPC.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	collection  string
	dim         int
	logger      *slog.Logger
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore dials Qdrant. The connection is lazy; EnsureCollection
// is the first call that reaches the server.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("could not connect to Qdrant: %w", err)
	}

	return &QdrantStore{
		conn:        conn,
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		collection:  cfg.Collection,
		dim:         cfg.Dim,
		logger:      log.Logger("vector.qdrant"),
	}, nil
}

// EnsureCollection creates the cosine collection if it does not exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	_, err := s.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: s.collection,
	})
	if err == nil {
		return nil
	}

	s.logger.Info("creating collection", "collection", s.collection, "dim", s.dim)

	_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{Config: &qdrant.VectorsConfig_Params{Params: &qdrant.VectorParams{
			Size:     uint64(s.dim),
			Distance: qdrant.Distance_Cosine,
		}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// Upsert writes all well-formed records in one request. A record whose
// metadata cannot be encoded fails the whole call before anything is sent.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record) error {
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		if reason := malformed(r, s.dim); reason != "" {
			s.logger.Warn("skipping record", "id", r.ID, "reason", reason)
			continue
		}

		payload, err := toPayload(r)
		if err != nil {
			return errors.WithMessagef(err, "encode point %s", r.ID)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      pointID(r.ID),
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: copyVector(r.Vector)}}},
			Payload: payload,
		})
	}

	if len(points) == 0 {
		return nil
	}

	_, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           proto.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points to Qdrant: %w", err)
	}
	return nil
}

// Query runs a cosine search, filtered on the payload type when set.
func (s *QdrantStore) Query(ctx context.Context, q Query) ([]Match, error) {
	if q.TopK <= 0 {
		return []Match{}, nil
	}
	if len(q.Vector) == 0 {
		return nil, errors.WithMessage(ErrInvalidVector, "empty query vector")
	}

	req := &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         q.Vector,
		Limit:          uint64(q.TopK),
		Filter:         typeFilter(q.filterType()),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search points in Qdrant: %w", err)
	}

	matches := make([]Match, 0, len(resp.GetResult()))
	for _, hit := range resp.GetResult() {
		id, meta := fromPayload(hit.GetPayload())
		if id == "" {
			continue
		}
		matches = append(matches, Match{ID: id, Score: float64(hit.GetScore()), Metadata: meta})
	}
	return matches, nil
}

// Fetch retrieves points by their derived uuids.
func (s *QdrantStore) Fetch(ctx context.Context, ids []string) (map[string]Record, error) {
	out := make(map[string]Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointID(id)
	}

	resp, err := s.points.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &qdrant.WithVectorsSelector{SelectorOptions: &qdrant.WithVectorsSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get points from Qdrant: %w", err)
	}

	for _, p := range resp.GetResult() {
		id, meta := fromPayload(p.GetPayload())
		if id == "" {
			continue
		}
		out[id] = Record{
			ID:       id,
			Vector:   copyVector(p.GetVectors().GetVector().GetData()),
			Metadata: meta,
		}
	}
	return out, nil
}

// Close closes the gRPC connection
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

// pointID derives a stable uuid from a record id.
func pointID(id string) *qdrant.PointId {
	u := uuid.NewSHA1(uuid.NameSpaceURL, []byte(id))
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: u.String()}}
}

func typeFilter(typ string) *qdrant.Filter {
	if typ == "" {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
				Key:   MetaType,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: typ}},
			}},
		}},
	}
}

func toPayload(r Record) (map[string]*qdrant.Value, error) {
	payload := make(map[string]*qdrant.Value, len(r.Metadata)+1)
	for key, val := range r.Metadata {
		if key == payloadID {
			continue
		}
		v, err := toValue(val)
		if err != nil {
			return nil, fmt.Errorf("payload field '%s': %w", key, err)
		}
		payload[key] = v
	}
	payload[payloadID] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: r.ID}}
	return payload, nil
}

func toValue(val any) (*qdrant.Value, error) {
	switch v := val.(type) {
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}, nil
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}, nil
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(v)}}, nil
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: v}}, nil
	case float32:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(v)}}, nil
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: v}}, nil
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: v}}, nil
	case []string:
		values := make([]*qdrant.Value, len(v))
		for i, s := range v {
			values[i] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}, nil
	case []any:
		values := make([]*qdrant.Value, len(v))
		for i, item := range v {
			iv, err := toValue(item)
			if err != nil {
				return nil, err
			}
			values[i] = iv
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}, nil
	case map[string]any:
		fields := make(map[string]*qdrant.Value, len(v))
		for k, item := range v {
			iv, err := toValue(item)
			if err != nil {
				return nil, err
			}
			fields[k] = iv
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}, nil
	default:
		return reflectValue(val)
	}
}

// reflectValue converts the typed numbers, slices and maps the switch in
// toValue does not name. Anything else goes through a JSON round trip,
// which is how time.Time and structs end up stored.
func reflectValue(val any) (*qdrant.Value, error) {
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: rv.Int()}}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(rv.Uint())}}, nil
	case reflect.Float32, reflect.Float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: rv.Float()}}, nil
	case reflect.String:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: rv.String()}}, nil
	case reflect.Bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: rv.Bool()}}, nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		values := make([]*qdrant.Value, rv.Len())
		for i := range rv.Len() {
			iv, err := toValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			values[i] = iv
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		fields := make(map[string]*qdrant.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			iv, err := toValue(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			fields[iter.Key().String()] = iv
		}
		return &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}, nil
	}

	raw, err := json.Marshal(val)
	if err != nil {
		return nil, errors.Wrapf(err, "unsupported type %T", val)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, errors.Wrapf(err, "unsupported type %T", val)
	}
	return jsonValue(decoded)
}

func jsonValue(val any) (*qdrant.Value, error) {
	n, ok := val.(json.Number)
	if !ok {
		return toValue(val)
	}
	if i, err := n.Int64(); err == nil {
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: i}}, nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, errors.Wrapf(err, "number %s", n)
	}
	return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: f}}, nil
}

func fromPayload(payload map[string]*qdrant.Value) (string, map[string]any) {
	id := payload[payloadID].GetStringValue()
	meta := make(map[string]any, len(payload))
	for key, val := range payload {
		if key == payloadID {
			continue
		}
		meta[key] = fromValue(val)
	}
	return id, meta
}

func fromValue(val *qdrant.Value) any {
	switch v := val.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return v.StringValue
	case *qdrant.Value_IntegerValue:
		return v.IntegerValue
	case *qdrant.Value_DoubleValue:
		return v.DoubleValue
	case *qdrant.Value_BoolValue:
		return v.BoolValue
	case *qdrant.Value_ListValue:
		items := v.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = fromValue(item)
		}
		return out
	case *qdrant.Value_StructValue:
		fields := v.StructValue.GetFields()
		out := make(map[string]any, len(fields))
		for k, item := range fields {
			out[k] = fromValue(item)
		}
		return out
	default:
		return nil
	}
}
