package docstore

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestMongoLocation(t *testing.T) {
	tests := []struct {
		path           string
		wantCollection string
		wantParent     string
	}{
		{path: "listings/l1", wantCollection: "listings"},
		{path: "users/u1/favorites/l1", wantCollection: "favorites", wantParent: "users/u1"},
		{path: "threads/t1/messages/m1", wantCollection: "messages", wantParent: "threads/t1"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			coll, parent := MongoLocation(tt.path)
			if coll != tt.wantCollection || parent != tt.wantParent {
				t.Errorf("MongoLocation(%q) = (%q, %q), want (%q, %q)",
					tt.path, coll, parent, tt.wantCollection, tt.wantParent)
			}
		})
	}
}

func TestFlatten(t *testing.T) {
	in := Fields{
		"messages": true,
		"recommendationFilter": map[string]any{
			"minPrice":   5,
			"categories": []string{"books"},
		},
		"empty": map[string]any{},
	}
	got := bson.M{}
	flatten("", in, got)

	want := bson.M{
		"messages":                        true,
		"recommendationFilter.minPrice":   5,
		"recommendationFilter.categories": []string{"books"},
		"empty":                           map[string]any{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flatten mismatch (-want +got):\n%s", diff)
	}
}

func TestDocumentFromBSON(t *testing.T) {
	posted := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	oid := primitive.NewObjectID()
	dec, err := primitive.ParseDecimal128("12.5")
	if err != nil {
		t.Fatalf("decimal: %v", err)
	}

	raw := bson.M{
		fieldID:     "users/u1/favorites/l1",
		fieldParent: "users/u1",
		"addedAt":   primitive.NewDateTimeFromTime(posted),
		"count":     int32(3),
		"price":     dec,
		"ref":       oid,
		"tags":      bson.A{"a", int32(1)},
		"unread":    bson.M{"u1": int32(2)},
		"filter":    bson.D{{Key: "minPrice", Value: 5.0}},
		"listingId": "l1",
	}

	want := Document{
		ID:     "l1",
		Path:   "users/u1/favorites/l1",
		Exists: true,
		Fields: Fields{
			"addedAt":   posted,
			"count":     int64(3),
			"price":     12.5,
			"ref":       oid.Hex(),
			"tags":      []any{"a", int64(1)},
			"unread":    map[string]any{"u1": int64(2)},
			"filter":    map[string]any{"minPrice": 5.0},
			"listingId": "l1",
		},
	}
	if diff := cmp.Diff(want, documentFromBSON(raw)); diff != "" {
		t.Errorf("documentFromBSON mismatch (-want +got):\n%s", diff)
	}
}

func TestMapMongoErr(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantDenied bool
	}{
		{name: "unauthorized", err: mongo.CommandError{Code: 13, Message: "not authorized"}, wantDenied: true},
		{name: "auth failed", err: mongo.CommandError{Code: 8000, Message: "bad auth"}, wantDenied: true},
		{name: "other command error", err: mongo.CommandError{Code: 11000, Message: "duplicate key"}},
		{name: "plain error", err: errors.New("network down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapMongoErr(tt.err)
			if errors.Is(got, ErrPermissionDenied) != tt.wantDenied {
				t.Errorf("mapMongoErr(%v) = %v, want denied %v", tt.err, got, tt.wantDenied)
			}
			if !tt.wantDenied && got.Error() != tt.err.Error() {
				t.Errorf("mapMongoErr changed a non-auth error: %v", got)
			}
		})
	}
}
