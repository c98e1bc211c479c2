package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	fieldID     = "_id"
	fieldParent = "_parent"
)

// Mongo is a Store backed by MongoDB change streams.
//
// A document path "c1/id1/c2/id2" lives in collection "c2" with _id set to the
// full path and _parent set to "c1/id1", so subcollections of different parents
// share one Mongo collection.
type Mongo struct {
	db  *mongo.Database
	log *slog.Logger
}

// ConnectMongo opens a client, pings the primary and returns the named database.
func ConnectMongo(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	pctx, pcancel := context.WithTimeout(ctx, 5*time.Second)
	defer pcancel()
	if err := client.Ping(pctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(dbName), nil
}

// NewMongo wraps an open database.
func NewMongo(db *mongo.Database, log *slog.Logger) *Mongo {
	return &Mongo{db: db, log: log}
}

// MongoLocation maps a document path onto its collection and parent path.
func MongoLocation(path string) (collection, parent string) {
	parent, _ = Split(path)
	return CollectionName(parent), parentOf(parent)
}

// CollectionName returns the Mongo collection backing a collection path.
func CollectionName(collectionPath string) string {
	if i := strings.LastIndex(collectionPath, "/"); i >= 0 {
		return collectionPath[i+1:]
	}
	return collectionPath
}

func parentOf(collectionPath string) string {
	if i := strings.LastIndex(collectionPath, "/"); i >= 0 {
		return collectionPath[:i]
	}
	return ""
}

// WatchDoc implements Store.
func (s *Mongo) WatchDoc(path string, onSnap func(Document), onErr func(error)) Unsubscribe {
	name, _ := MongoLocation(path)
	coll := s.db.Collection(name)
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"documentKey._id": path}}}}

	return s.watch(coll, pipeline, func(ctx context.Context) error {
		doc, err := s.Get(ctx, path)
		if err != nil {
			return err
		}
		onSnap(doc)
		return nil
	}, onErr)
}

// WatchQuery implements Store. Every change to the collection re-runs the query
// and the result is diffed against the previous one.
func (s *Mongo) WatchQuery(q Query, onSnap func(QuerySnapshot), onErr func(error)) Unsubscribe {
	coll := s.db.Collection(CollectionName(q.Collection))
	var last []Document
	return s.watch(coll, mongo.Pipeline{}, func(ctx context.Context) error {
		next, err := s.runQuery(ctx, q)
		if err != nil {
			return err
		}
		changes := DiffResults(last, next)
		if last != nil && len(changes) == 0 {
			return nil
		}
		last = next
		if last == nil {
			last = []Document{}
		}
		onSnap(QuerySnapshot{Docs: next, Changes: changes})
		return nil
	}, onErr)
}

// watch opens a change stream, emits once, then re-emits on every change until unsubscribed.
func (s *Mongo) watch(coll *mongo.Collection, pipeline mongo.Pipeline, emit func(context.Context) error, onErr func(error)) Unsubscribe {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		stream, err := coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
		if err != nil {
			if ctx.Err() == nil {
				onErr(fmt.Errorf("open change stream: %w", mapMongoErr(err)))
			}
			return
		}
		defer func() { _ = stream.Close(context.Background()) }()

		if err := emit(ctx); err != nil {
			if ctx.Err() == nil {
				onErr(err)
			}
			return
		}
		for stream.Next(ctx) {
			if err := emit(ctx); err != nil {
				if ctx.Err() == nil {
					onErr(err)
				}
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			onErr(fmt.Errorf("change stream: %w", mapMongoErr(err)))
			return
		}
		s.log.Debug("change stream closed", "collection", coll.Name())
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (s *Mongo) runQuery(ctx context.Context, q Query) ([]Document, error) {
	filter := bson.M{fieldParent: parentOf(q.Collection)}
	for _, c := range q.Where {
		// Mongo equality on an array field already means "contains".
		filter[c.Field] = c.Value
	}

	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: fieldID, Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(CollectionName(q.Collection)).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Collection, mapMongoErr(err))
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", q.Collection, err)
		}
		docs = append(docs, documentFromBSON(raw))
	}
	return docs, cursor.Err()
}

// Get implements Store.
func (s *Mongo) Get(ctx context.Context, path string) (Document, error) {
	name, _ := MongoLocation(path)
	_, id := Split(path)

	var raw bson.M
	err := s.db.Collection(name).FindOne(ctx, bson.M{fieldID: path}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{ID: id, Path: path}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", path, mapMongoErr(err))
	}
	return documentFromBSON(raw), nil
}

// Set implements Store.
func (s *Mongo) Set(ctx context.Context, path string, data Fields, merge bool) error {
	name, parent := MongoLocation(path)
	coll := s.db.Collection(name)

	if merge {
		set := bson.M{fieldParent: parent}
		flatten("", data, set)
		_, err := coll.UpdateOne(ctx, bson.M{fieldID: path}, bson.M{"$set": set}, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("merge %s: %w", path, mapMongoErr(err))
		}
		return nil
	}

	doc := bson.M{}
	for k, v := range data {
		doc[k] = v
	}
	doc[fieldID] = path
	doc[fieldParent] = parent
	_, err := coll.ReplaceOne(ctx, bson.M{fieldID: path}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set %s: %w", path, mapMongoErr(err))
	}
	return nil
}

// Update implements Store. Dotted keys are native Mongo field paths.
func (s *Mongo) Update(ctx context.Context, path string, fields Fields) error {
	name, _ := MongoLocation(path)
	set := bson.M{}
	for k, v := range fields {
		set[k] = v
	}
	res, err := s.db.Collection(name).UpdateOne(ctx, bson.M{fieldID: path}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s: %w", path, mapMongoErr(err))
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	return nil
}

// Delete implements Store.
func (s *Mongo) Delete(ctx context.Context, path string) error {
	name, _ := MongoLocation(path)
	if _, err := s.db.Collection(name).DeleteOne(ctx, bson.M{fieldID: path}); err != nil {
		return fmt.Errorf("delete %s: %w", path, mapMongoErr(err))
	}
	return nil
}

// flatten turns nested maps into dotted $set keys so merges keep sibling fields.
func flatten(prefix string, in Fields, out bson.M) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if m, ok := asMap(v); ok && len(m) > 0 {
			flatten(key, Fields(m), out)
			continue
		}
		out[key] = v
	}
}

func documentFromBSON(raw bson.M) Document {
	path, _ := raw[fieldID].(string)
	_, id := Split(path)
	fields := Fields{}
	for k, v := range raw {
		if k == fieldID || k == fieldParent {
			continue
		}
		fields[k] = fromBSON(v)
	}
	return Document{ID: id, Path: path, Exists: true, Fields: fields}
}

// fromBSON converts driver values into the plain Go values Fields accessors expect.
func fromBSON(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = fromBSON(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = fromBSON(item)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return t.String()
		}
		return f
	case int32:
		return int64(t)
	}
	return v
}

// mapMongoErr translates authorization failures into ErrPermissionDenied.
func mapMongoErr(err error) error {
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(13) || se.HasErrorCode(8000)) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
