package source

import (
	"context"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/etl"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/logger"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/models"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/utils"
)

// MongoSource streams customer documents from a MongoDB collection.
type MongoSource struct {
	Client    *mongo.Client
	Database  string
	Mapping   *models.MappingSchema
	Filter    bson.M
	BatchSize int32
}

func NewMongoSource(client *mongo.Client, database string, mapping *models.MappingSchema) *MongoSource {
	if mapping == nil {
		mapping = models.DefaultMapping()
	}
	return &MongoSource{
		Client:    client,
		Database:  database,
		Mapping:   mapping,
		Filter:    bson.M{},
		BatchSize: 500,
	}
}

func (m *MongoSource) Open(ctx context.Context) (etl.RecordStream, error) {
	coll := m.Client.Database(m.Database).Collection(m.Mapping.MongoCollection)

	findOpts := options.Find().SetBatchSize(m.BatchSize)
	// Sort by ID to ensure a consistent order across restarts
	findOpts.SetSort(bson.D{{Key: m.Mapping.SourceColumn(models.FieldCustomerID), Value: 1}})

	filter := m.Filter
	if filter == nil {
		filter = bson.M{}
	}

	cursor, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, etl.Unreachable("mongo find", err)
	}
	return &mongoStream{cursor: cursor, mapping: m.Mapping}, nil
}

type mongoStream struct {
	cursor  *mongo.Cursor
	mapping *models.MappingSchema
}

func (s *mongoStream) Next(ctx context.Context) (etl.RawRecord, error) {
	for s.cursor.Next(ctx) {
		var doc bson.M
		if err := s.cursor.Decode(&doc); err != nil {
			logger.Errorf("Error decoding mongo doc: %v", err)
			continue
		}
		return DocumentToRecord(doc, s.mapping), nil
	}

	if err := s.cursor.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, etl.Unreachable("mongo cursor", err)
	}
	return nil, io.EOF
}

func (s *mongoStream) Close() error {
	return s.cursor.Close(context.Background())
}

// DocumentToRecord flattens a document into a raw record using the mapping.
// Nested fields are addressed with dotted source names ("contact.email").
func DocumentToRecord(doc bson.M, mapping *models.MappingSchema) etl.RawRecord {
	rec := make(etl.RawRecord, len(models.CustomerFields))
	for _, field := range models.CustomerFields {
		rec[field] = mapping.Normalize(field, utils.ToString(lookup(doc, mapping.SourceColumn(field))))
	}
	return rec
}

func lookup(doc bson.M, path string) interface{} {
	if v, ok := doc[path]; ok {
		return v
	}
	for i := 0; i < len(path); i++ {
		if path[i] != '.' {
			continue
		}
		child, ok := doc[path[:i]]
		if !ok {
			return nil
		}
		switch c := child.(type) {
		case bson.M:
			return lookup(c, path[i+1:])
		case map[string]interface{}:
			return lookup(bson.M(c), path[i+1:])
		case bson.D:
			return lookup(bson.M(c.Map()), path[i+1:])
		default:
			return nil
		}
	}
	return nil
}
