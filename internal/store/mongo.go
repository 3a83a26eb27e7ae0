package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/etl"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/logger"
)

const (
	RunsCollection       = "etl_runs"
	QuarantineCollection = "etl_quarantine"
)

// MongoStore keeps one document per run in etl_runs and one document per
// quarantined batch in etl_quarantine.
type MongoStore struct {
	Client   *mongo.Client
	Database string
	Timeout  time.Duration
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{Client: client, Database: database, Timeout: 30 * time.Second}
}

func (m *MongoStore) Save(ctx context.Context, report *etl.Report) error {
	runDoc, writes, err := reportDocuments(report)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	db := m.Client.Database(m.Database)
	_, err = db.Collection(RunsCollection).ReplaceOne(ctx,
		bson.M{"_id": report.RunID}, runDoc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save run %s: %w", report.RunID, err)
	}

	if len(writes) > 0 {
		res, err := db.Collection(QuarantineCollection).BulkWrite(ctx, writes)
		if err != nil {
			return fmt.Errorf("save quarantine of run %s: %w", report.RunID, err)
		}
		logger.Infof("Mongo BulkWrite: Match %d, Mod %d, Upsert %d", res.MatchedCount, res.ModifiedCount, res.UpsertedCount)
	}

	logger.Infof("Report for run %s saved to %s.%s", report.RunID, m.Database, RunsCollection)
	return nil
}

// reportDocuments converts a report into the run document and the upserts of
// its quarantined batches. Quarantined records are stored only in
// etl_quarantine; the run document keeps the batch sequence numbers.
func reportDocuments(report *etl.Report) (bson.M, []mongo.WriteModel, error) {
	summary := *report
	summary.Quarantined = nil

	runDoc, err := toDocument(summary)
	if err != nil {
		return nil, nil, fmt.Errorf("encode run %s: %w", report.RunID, err)
	}
	runDoc["_id"] = report.RunID

	seqs := make([]int64, 0, len(report.Quarantined))
	writes := make([]mongo.WriteModel, 0, len(report.Quarantined))
	for _, qb := range report.Quarantined {
		doc, err := toDocument(qb)
		if err != nil {
			return nil, nil, fmt.Errorf("encode quarantined batch %d: %w", qb.Seq, err)
		}
		doc["run_id"] = report.RunID

		filter := bson.M{"run_id": report.RunID, "seq": qb.Seq}
		update := bson.M{"$set": doc}
		writes = append(writes, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true))
		seqs = append(seqs, qb.Seq)
	}
	runDoc["quarantined_batches"] = seqs

	return runDoc, writes, nil
}

// toDocument round-trips v through its JSON encoding so stored documents use
// the same field names and decimal formatting as file reports.
func toDocument(v any) (bson.M, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
