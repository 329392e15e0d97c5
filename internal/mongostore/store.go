// Package mongostore implements remote.Store on MongoDB.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/blackwell-systems/libractl/internal/logging"
	"github.com/blackwell-systems/libractl/internal/remote"
)

// Store keeps one Mongo collection per document collection.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

var _ remote.Store = (*Store)(nil)

// document is the stored shape.
type document struct {
	ID      string `bson:"_id"`
	Version int64  `bson:"version"`
	Seq     int64  `bson:"seq"`
	Data    bson.D `bson:"data"`
}

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri, database string, log *zap.Logger) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(5 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return &Store{client: client, db: client.Database(database), log: logging.OrNop(log)}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Drop removes the whole database; tests use it for cleanup.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func (s *Store) List(ctx context.Context, collection string) ([]remote.Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, s.wrap("list", collection, err)
	}
	defer cur.Close(ctx)

	docs := []remote.Document{}
	for cur.Next(ctx) {
		var d document
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		out, err := toDocument(d)
		if err != nil {
			return nil, err
		}
		docs = append(docs, out)
	}
	if err := cur.Err(); err != nil {
		return nil, s.wrap("list", collection, err)
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	var d document
	err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&d)
	if err != nil {
		return remote.Document{}, s.wrap("get", collection, err)
	}
	return toDocument(d)
}

func (s *Store) Create(ctx context.Context, collection string, data json.RawMessage) (remote.Document, error) {
	return s.Put(ctx, collection, uuid.NewString(), data)
}

func (s *Store) Put(ctx context.Context, collection, id string, data json.RawMessage) (remote.Document, error) {
	body, err := fromJSON(data)
	if err != nil {
		return remote.Document{}, err
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "data", Value: body}}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "seq", Value: time.Now().UnixNano()}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var d document
	err = s.db.Collection(collection).
		FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update, opts).
		Decode(&d)
	if err != nil {
		return remote.Document{}, s.wrap("put", collection, err)
	}
	return toDocument(d)
}

func (s *Store) Update(ctx context.Context, collection, id string, data json.RawMessage, ifVersion int64) (remote.Document, error) {
	body, err := fromJSON(data)
	if err != nil {
		return remote.Document{}, err
	}
	filter := bson.D{{Key: "_id", Value: id}}
	if ifVersion > 0 {
		filter = append(filter, bson.E{Key: "version", Value: ifVersion})
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{{Key: "data", Value: body}}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d document
	err = s.db.Collection(collection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if ifVersion <= 0 {
			return remote.Document{}, remote.ErrNotFound
		}
		n, cerr := s.db.Collection(collection).CountDocuments(ctx, bson.D{{Key: "_id", Value: id}})
		if cerr != nil {
			return remote.Document{}, s.wrap("update", collection, cerr)
		}
		if n == 0 {
			return remote.Document{}, remote.ErrNotFound
		}
		return remote.Document{}, remote.ErrConflict
	}
	if err != nil {
		return remote.Document{}, s.wrap("update", collection, err)
	}
	return toDocument(d)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return s.wrap("delete", collection, err)
	}
	if res.DeletedCount == 0 {
		return remote.ErrNotFound
	}
	return nil
}

// wrap maps driver errors onto the remote sentinels.
func (s *Store) wrap(op, collection string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return remote.ErrNotFound
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		s.log.Warn("Mongo unreachable", zap.String("op", op), zap.String("collection", collection), zap.Error(err))
		return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	s.log.Error("Mongo operation failed", zap.String("op", op), zap.String("collection", collection), zap.Error(err))
	return fmt.Errorf("%s %s: %w", op, collection, err)
}

func fromJSON(data json.RawMessage) (bson.D, error) {
	var d bson.D
	if err := bson.UnmarshalExtJSON(data, false, &d); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	return d, nil
}

func toDocument(d document) (remote.Document, error) {
	if d.Data == nil {
		d.Data = bson.D{}
	}
	data, err := bson.MarshalExtJSON(d.Data, false, false)
	if err != nil {
		return remote.Document{}, fmt.Errorf("encode %s: %w", d.ID, err)
	}
	return remote.Document{ID: d.ID, Version: d.Version, Data: data}, nil
}
