package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/timmy/musiclip/internal/domain"
)

const (
	// MuQ-MuLan joint audio/text embedding size
	defaultVectorDimension = 512
)

// pointNamespace seeds the UUIDv5 point ids derived from track ids.
var pointNamespace = uuid.MustParse("7a1f3c2e-5b8d-4e9a-9c61-2d4f8b0e6a35")

// Payload keys stored with every point.
const (
	payloadTrackID     = "track_id"
	payloadSongName    = "song_name"
	payloadArtistName  = "artist_name"
	payloadAlbumName   = "album_name"
	payloadGenres      = "genres"
	payloadReleaseDate = "release_date"
	payloadStorageKey  = "storage_key"
	payloadIndexedAt   = "indexed_at"
)

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // Qdrant Cloud API Key (enables TLS automatically)
	UseTLS          bool   // Explicitly enable TLS without API Key
	VectorDimension int
}

// apiKeyInterceptor creates a unary interceptor that adds API key to metadata
func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository stores indexed tracks as Qdrant points, one per track id.
type QdrantRepository struct {
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository creates a new QdrantRepository
// Supports both local Qdrant (insecure) and Qdrant Cloud (TLS + API Key)
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption

	// TLS is enabled if: APIKey is set OR UseTLS is explicitly true
	if cfg.UseTLS || cfg.APIKey != "" {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		opts = append(opts, grpc.WithTransportCredentials(creds))

		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// PointID derives the Qdrant point id of a track. Re-ingesting a track
// addresses the same point, so upserts overwrite instead of duplicating.
func PointID(collection, trackID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(collection+":"+trackID)).String()
}

func (r *QdrantRepository) pointID(trackID string) *pb.PointId {
	return pb.NewID(PointID(r.collectionName, trackID))
}

// EnsureCollection creates the collection if it doesn't exist
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err == nil {
		if size, ok := collectionVectorSize(info.GetResult()); ok {
			if size != uint64(r.vectorDimension) {
				return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
			}
		}
		return nil
	}

	_, err = r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}
	if single := vectors.GetParams(); single != nil && single.GetSize() > 0 {
		return single.GetSize(), true
	}
	for _, params := range vectors.GetParamsMap().GetMap() {
		if params.GetSize() > 0 {
			return params.GetSize(), true
		}
	}
	return 0, false
}

// Upsert writes the track's point, replacing any previous point for the same id.
// The call waits until Qdrant has applied the write.
func (r *QdrantRepository) Upsert(ctx context.Context, track *domain.IndexedTrack) error {
	if len(track.Vector) != r.vectorDimension {
		return fmt.Errorf("vector has %d dimensions, collection expects %d", len(track.Vector), r.vectorDimension)
	}

	wait := true
	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Wait:           &wait,
		Points: []*pb.PointStruct{
			{
				Id:      r.pointID(track.ID),
				Vectors: pb.NewVectorsDense(track.Vector),
				Payload: toPayload(track),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// Exists reports whether a point exists for trackID.
func (r *QdrantRepository) Exists(ctx context.Context, trackID string) (bool, error) {
	resp, err := r.pointsClient.Get(ctx, &pb.GetPoints{
		CollectionName: r.collectionName,
		Ids:            []*pb.PointId{r.pointID(trackID)},
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: false},
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to get point: %w", err)
	}
	return len(resp.GetResult()) > 0, nil
}

// GetVector returns the stored embedding of trackID, or a not_found error.
func (r *QdrantRepository) GetVector(ctx context.Context, trackID string) ([]float32, error) {
	resp, err := r.pointsClient.Get(ctx, &pb.GetPoints{
		CollectionName: r.collectionName,
		Ids:            []*pb.PointId{r.pointID(trackID)},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get point: %w", err)
	}
	if len(resp.GetResult()) == 0 {
		return nil, domain.Errorf(domain.KindNotFound, "vector_store.get", "track %s is not indexed", trackID)
	}

	vector := extractVector(resp.GetResult()[0].GetVectors())
	if len(vector) == 0 {
		return nil, fmt.Errorf("point for track %s has no vector", trackID)
	}
	return vector, nil
}

func extractVector(v *pb.VectorsOutput) []float32 {
	out := v.GetVector()
	if dense := out.GetDense(); dense != nil && len(dense.GetData()) > 0 {
		return dense.GetData()
	}
	return out.GetData()
}

// Search performs a cosine nearest-neighbor search. A non-empty excludeID is
// filtered out server side.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int, excludeID string) ([]domain.VectorHit, error) {
	req := &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if excludeID != "" {
		req.Filter = r.excludeFilter(excludeID)
	}

	resp, err := r.pointsClient.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]domain.VectorHit, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		hit := parsePayload(scored.GetPayload())
		hit.Score = scored.GetScore()
		hits = append(hits, hit)
	}
	return hits, nil
}

func (r *QdrantRepository) excludeFilter(trackID string) *pb.Filter {
	return &pb.Filter{
		MustNot: []*pb.Condition{
			{
				ConditionOneOf: &pb.Condition_HasId{
					HasId: &pb.HasIdCondition{
						HasId: []*pb.PointId{r.pointID(trackID)},
					},
				},
			},
		},
	}
}

// Delete deletes the point of trackID
func (r *QdrantRepository) Delete(ctx context.Context, trackID string) error {
	_, err := r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{r.pointID(trackID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	return nil
}

// Info returns the collection name, point count and vector size.
func (r *QdrantRepository) Info(ctx context.Context) (*domain.CollectionInfo, error) {
	resp, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}

	info := &domain.CollectionInfo{
		Name:      r.collectionName,
		Count:     resp.GetResult().GetPointsCount(),
		Dimension: r.vectorDimension,
	}
	if size, ok := collectionVectorSize(resp.GetResult()); ok {
		info.Dimension = int(size)
	}
	return info, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func stringsToValue(items []string) *pb.Value {
	values := make([]*pb.Value, len(items))
	for i, item := range items {
		values[i] = stringValue(item)
	}
	return &pb.Value{
		Kind: &pb.Value_ListValue{
			ListValue: &pb.ListValue{Values: values},
		},
	}
}

func toPayload(track *domain.IndexedTrack) map[string]*pb.Value {
	indexedAt := track.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now()
	}
	return map[string]*pb.Value{
		payloadTrackID:     stringValue(track.ID),
		payloadSongName:    stringValue(track.Metadata.SongName),
		payloadArtistName:  stringValue(track.Metadata.ArtistName),
		payloadAlbumName:   stringValue(track.Metadata.AlbumName),
		payloadReleaseDate: stringValue(track.Metadata.ReleaseDate),
		payloadGenres:      stringsToValue(track.Metadata.Genres),
		payloadStorageKey:  stringValue(track.StorageKey),
		payloadIndexedAt:   {Kind: &pb.Value_IntegerValue{IntegerValue: indexedAt.UnixNano()}},
	}
}

func parsePayload(payload map[string]*pb.Value) domain.VectorHit {
	hit := domain.VectorHit{
		ID:         payload[payloadTrackID].GetStringValue(),
		StorageKey: payload[payloadStorageKey].GetStringValue(),
		Metadata: domain.TrackMetadata{
			SongName:    payload[payloadSongName].GetStringValue(),
			ArtistName:  payload[payloadArtistName].GetStringValue(),
			AlbumName:   payload[payloadAlbumName].GetStringValue(),
			ReleaseDate: payload[payloadReleaseDate].GetStringValue(),
		},
	}
	if ns := payload[payloadIndexedAt].GetIntegerValue(); ns > 0 {
		hit.IndexedAt = time.Unix(0, ns)
	}
	if list := payload[payloadGenres].GetListValue(); list != nil {
		for _, item := range list.GetValues() {
			hit.Metadata.Genres = append(hit.Metadata.Genres, item.GetStringValue())
		}
	}
	return hit
}
