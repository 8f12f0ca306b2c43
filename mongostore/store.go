// Package mongostore wraps a MongoDB collection so the fieldvault interceptor
// runs as its conversion callback: documents are encrypted on the way in and
// decrypted on the way out.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hengadev/fieldvault"
)

// ErrNotFound is returned when a document id has no match.
var ErrNotFound = errors.New("document not found")

// Store is a collection handle with transparent field encryption.
type Store struct {
	coll        *mongo.Collection
	interceptor *fieldvault.Interceptor
}

// Connect dials MongoDB and returns a Store over the named collection.
func Connect(ctx context.Context, uri, database, collection string, interceptor *fieldvault.Interceptor) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return New(client.Database(database).Collection(collection), interceptor), nil
}

// New wraps an existing collection handle.
func New(coll *mongo.Collection, interceptor *fieldvault.Interceptor) *Store {
	return &Store{coll: coll, interceptor: interceptor}
}

// InsertOne encrypts doc in place per the collection's schema and inserts it.
// A missing _id is filled with a fresh UUID, which is returned.
func (s *Store) InsertOne(ctx context.Context, doc bson.M) (string, error) {
	id, ok := doc["_id"].(string)
	if !ok || id == "" {
		id = uuid.NewString()
		doc["_id"] = id
	}
	if err := s.interceptor.OnBeforeSave(ctx, doc, s.coll.Name()); err != nil {
		return "", fmt.Errorf("encrypting document %s: %w", id, err)
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return id, nil
}

// ReplaceOne encrypts doc in place and replaces the document with the given
// id, inserting when absent.
func (s *Store) ReplaceOne(ctx context.Context, id string, doc bson.M) error {
	doc["_id"] = id
	if err := s.interceptor.OnBeforeSave(ctx, doc, s.coll.Name()); err != nil {
		return fmt.Errorf("encrypting document %s: %w", id, err)
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, opts)
	return err
}

// FindOne loads a document by id and decrypts it per the collection's schema.
func (s *Store) FindOne(ctx context.Context, id string) (bson.M, error) {
	var doc bson.M
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.interceptor.OnAfterLoad(ctx, doc, s.coll.Name()); err != nil {
		return nil, fmt.Errorf("decrypting document %s: %w", id, err)
	}
	return doc, nil
}

// Find loads every document matching filter and decrypts each one. A failed
// decryption aborts the whole read.
func (s *Store) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		if err := s.interceptor.OnAfterLoad(ctx, doc, s.coll.Name()); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, cursor.Err()
}

// DeleteOne removes a document by id.
func (s *Store) DeleteOne(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
