// Package mongodb provides the collection service for MongoDB profiles.
// Document values cross the API boundary as plain JSON, so every driver
// type is rewritten on the way out (ObjectID to hex, binary to base64,
// temporal values to RFC 3339) at every nesting depth.
package mongodb

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoconn "github.com/supporttools/GoDBVault/pkg/database/mongodb"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

const maxCurrentOps = 10

var systemDatabases = map[string]bool{"admin": true, "local": true, "config": true}

// Service runs document operations against one MongoDB database.
type Service struct {
	details dbtypes.ConnectionDetails
	conn    *mongoconn.Connector
}

// New builds the service for a MongoDB profile.
func New(details dbtypes.ConnectionDetails, pools *pool.Manager) (*Service, error) {
	conn, err := mongoconn.New(details, pools)
	if err != nil {
		return nil, err
	}
	return &Service{details: details, conn: conn}, nil
}

// Engine returns the engine name.
func (s *Service) Engine() dbtypes.EngineType {
	return dbtypes.EngineMongoDB
}

// Close disconnects the client.
func (s *Service) Close() error {
	return s.conn.Close()
}

func (s *Service) database(ctx context.Context) (*mongo.Database, error) {
	if err := s.conn.Connect(ctx); err != nil {
		return nil, err
	}
	return s.conn.Database(), nil
}

// Collections lists the collection names of the profile database.
func (s *Service) Collections(ctx context.Context) ([]string, error) {
	db, err := s.database(ctx)
	if err != nil {
		return nil, err
	}
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Browse returns one page of documents. filterJSON is an optional extended
// JSON document narrowing the result set; the column list is the sorted
// union of document keys with _id pinned first.
func (s *Service) Browse(ctx context.Context, collection, filterJSON string, page, perPage int64) (dbtypes.CollectionPage, error) {
	if collection == "" {
		return dbtypes.CollectionPage{}, errors.New("collection name is required")
	}
	filter := bson.M{}
	if strings.TrimSpace(filterJSON) != "" {
		if err := bson.UnmarshalExtJSON([]byte(filterJSON), false, &filter); err != nil {
			return dbtypes.CollectionPage{}, fmt.Errorf("invalid filter: %w", err)
		}
	}
	if page < 1 {
		page = 1
	}
	perPage = dbtypes.ClampPageSize(perPage)

	db, err := s.database(ctx)
	if err != nil {
		return dbtypes.CollectionPage{}, err
	}
	coll := db.Collection(collection)

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return dbtypes.CollectionPage{}, fmt.Errorf("failed to count documents in %s: %w", collection, err)
	}

	findOpts := options.Find().SetSkip((page - 1) * perPage).SetLimit(perPage)
	cursor, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return dbtypes.CollectionPage{}, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return dbtypes.CollectionPage{}, fmt.Errorf("failed to read documents from %s: %w", collection, err)
	}

	documents := make([]dbtypes.Row, len(raw))
	for i, doc := range raw {
		documents[i] = SerializeDocument(doc)
	}

	totalPages, _, _ := dbtypes.PageMath(total, page, perPage)
	return dbtypes.CollectionPage{
		Documents:   documents,
		Columns:     documentColumns(documents),
		TotalDocs:   total,
		TotalPages:  totalPages,
		CurrentPage: page,
		PerPage:     perPage,
	}, nil
}

// GetDocument fetches one document by id; a nil row means not found.
func (s *Service) GetDocument(ctx context.Context, collection, id string) (dbtypes.Row, error) {
	db, err := s.database(ctx)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	err = db.Collection(collection).FindOne(ctx, idFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", id, err)
	}
	return SerializeDocument(doc), nil
}

// InsertDocument inserts one document and returns the new id.
func (s *Service) InsertDocument(ctx context.Context, collection string, doc map[string]any) (string, error) {
	db, err := s.database(ctx)
	if err != nil {
		return "", err
	}
	res, err := db.Collection(collection).InsertOne(ctx, bson.M(doc))
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprintf("%v", res.InsertedID), nil
}

// ReplaceDocument replaces a document wholesale. The immutable _id field is
// stripped from the replacement; false means no document matched.
func (s *Service) ReplaceDocument(ctx context.Context, collection, id string, doc map[string]any) (bool, error) {
	db, err := s.database(ctx)
	if err != nil {
		return false, err
	}
	delete(doc, "_id")
	res, err := db.Collection(collection).ReplaceOne(ctx, idFilter(id), bson.M(doc))
	if err != nil {
		return false, fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return res.MatchedCount > 0, nil
}

// DeleteDocument removes a document by id; false means nothing matched.
func (s *Service) DeleteDocument(ctx context.Context, collection, id string) (bool, error) {
	db, err := s.database(ctx)
	if err != nil {
		return false, err
	}
	res, err := db.Collection(collection).DeleteOne(ctx, idFilter(id))
	if err != nil {
		return false, fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return res.DeletedCount > 0, nil
}

// CreateCollection creates an empty collection.
func (s *Service) CreateCollection(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("collection name is required")
	}
	db, err := s.database(ctx)
	if err != nil {
		return err
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return nil
}

// DropCollection drops a collection and its documents.
func (s *Service) DropCollection(ctx context.Context, name string) error {
	db, err := s.database(ctx)
	if err != nil {
		return err
	}
	if err := db.Collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	return nil
}

// RunCommand executes a database command given as an extended JSON document
// and returns the serialized reply. Key order is preserved because the
// command name must stay first.
func (s *Service) RunCommand(ctx context.Context, commandJSON string) (dbtypes.Row, error) {
	var cmd bson.D
	if err := bson.UnmarshalExtJSON([]byte(commandJSON), false, &cmd); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}
	if len(cmd) == 0 {
		return nil, errors.New("empty command")
	}
	db, err := s.database(ctx)
	if err != nil {
		return nil, err
	}
	var result bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&result); err != nil {
		return nil, fmt.Errorf("command failed: %w", err)
	}
	return SerializeDocument(result), nil
}

// DashboardStats gathers server and database metrics. A successful
// serverStatus call marks the session as admin and unlocks the
// cross-database listing and currentOp sections; every sub-call degrades
// independently so the dashboard never fails as a whole.
func (s *Service) DashboardStats(ctx context.Context) dbtypes.Row {
	stats := dbtypes.Row{
		"is_mongo_admin":  false,
		"connections":     "N/A",
		"inserts_per_sec": "N/A",
		"queries_per_sec": "N/A",
		"data_size":       int64(0),
		"collections":     []dbtypes.Row{},
		"current_ops":     []dbtypes.Row{},
		"version":         "Unknown",
		"databases":       []dbtypes.Row{},
	}

	db, err := s.database(ctx)
	if err != nil {
		log.Printf("Error fetching MongoDB stats: %v", err)
		return stats
	}
	client := s.conn.Client()

	serverStatus, err := runAdminCommand(ctx, client, bson.D{{Key: "serverStatus", Value: 1}})
	if err == nil {
		stats["is_mongo_admin"] = true
		if v, ok := serverStatus["version"].(string); ok {
			stats["version"] = v
		}
		if v, ok := nestedValue(serverStatus, "connections", "current"); ok {
			stats["connections"] = v
		}
		if v, ok := nestedValue(serverStatus, "opcounters", "insert"); ok {
			stats["inserts_per_sec"] = v
		}
		if v, ok := nestedValue(serverStatus, "opcounters", "query"); ok {
			stats["queries_per_sec"] = v
		}
	}

	var dbStats bson.M
	if err := db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&dbStats); err == nil {
		if v, ok := dbStats["dataSize"]; ok {
			stats["data_size"] = v
		}
	} else {
		log.Printf("Error fetching MongoDB dbStats: %v", err)
	}

	if names, err := db.ListCollectionNames(ctx, bson.M{}); err == nil {
		collStats := make([]dbtypes.Row, 0, len(names))
		for _, name := range names {
			entry := dbtypes.Row{
				"name": name, "count": int64(0), "avg_size": int64(0),
				"size": int64(0), "storage_size": int64(0),
			}
			var cs bson.M
			if err := db.RunCommand(ctx, bson.D{{Key: "collStats", Value: name}}).Decode(&cs); err == nil {
				if v, ok := cs["count"]; ok {
					entry["count"] = v
				}
				if v, ok := cs["avgObjSize"]; ok {
					entry["avg_size"] = v
				}
				if v, ok := cs["size"]; ok {
					entry["size"] = v
				}
				if v, ok := cs["storageSize"]; ok {
					entry["storage_size"] = v
				}
			}
			collStats = append(collStats, entry)
		}
		stats["collections"] = collStats
	} else {
		log.Printf("Error listing MongoDB collections: %v", err)
	}

	if currentOp, err := runAdminCommand(ctx, client,
		bson.D{{Key: "currentOp", Value: 1}, {Key: "$all", Value: true}}); err == nil {
		ops := []dbtypes.Row{}
		if inprog, ok := currentOp["inprog"].(bson.A); ok {
			for _, op := range inprog {
				if len(ops) == maxCurrentOps {
					break
				}
				if doc, ok := SerializeValue(op).(map[string]any); ok {
					ops = append(ops, doc)
				}
			}
		}
		stats["current_ops"] = ops
	}

	if stats["is_mongo_admin"] == true {
		if names, err := client.ListDatabaseNames(ctx, bson.M{}); err == nil {
			list := []dbtypes.Row{}
			for _, name := range names {
				if systemDatabases[name] {
					continue
				}
				other := client.Database(name)
				colls, err := other.ListCollectionNames(ctx, bson.M{})
				if err != nil {
					continue
				}
				var otherStats bson.M
				if err := other.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&otherStats); err != nil {
					continue
				}
				list = append(list, dbtypes.Row{
					"name":             name,
					"collections":      colls,
					"collection_count": len(colls),
					"data_size":        orZero(otherStats["dataSize"]),
					"storage_size":     orZero(otherStats["storageSize"]),
				})
			}
			stats["databases"] = list
		} else {
			log.Printf("Error listing MongoDB databases: %v", err)
		}
	}

	return stats
}

// idFilter coerces the id to an ObjectID when it parses as one and falls
// back to matching the raw string otherwise.
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": id}
}

// SerializeDocument rewrites a decoded document into a JSON-friendly row.
func SerializeDocument(doc bson.M) dbtypes.Row {
	if doc == nil {
		return nil
	}
	out := make(dbtypes.Row, len(doc))
	for k, v := range doc {
		out[k] = SerializeValue(v)
	}
	return out
}

// SerializeValue converts driver types recursively. Anything already
// JSON-friendly passes through unchanged.
func SerializeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case primitive.ObjectID:
		return val.Hex()
	case primitive.Binary:
		return base64.StdEncoding.EncodeToString(val.Data)
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC().Format(time.RFC3339)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return val.String()
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = SerializeValue(e.Value)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = SerializeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = SerializeValue(item)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = SerializeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = SerializeValue(item)
		}
		return out
	default:
		return v
	}
}

// documentColumns unions the keys across a page of documents, sorted with
// _id pinned to the front for the table view.
func documentColumns(docs []dbtypes.Row) []string {
	seen := make(map[string]struct{})
	for _, doc := range docs {
		for k := range doc {
			seen[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		if k != "_id" {
			columns = append(columns, k)
		}
	}
	sort.Strings(columns)
	if _, ok := seen["_id"]; ok {
		columns = append([]string{"_id"}, columns...)
	}
	return columns
}

func runAdminCommand(ctx context.Context, client *mongo.Client, cmd bson.D) (bson.M, error) {
	var result bson.M
	if err := client.Database("admin").RunCommand(ctx, cmd).Decode(&result); err != nil {
		return nil, err
	}
	return result, nil
}

// nestedValue walks a decoded document through both map and ordered-document
// shapes, since nested values decode as bson.D.
func nestedValue(doc bson.M, keys ...string) (any, bool) {
	var current any = doc
	for _, key := range keys {
		switch m := current.(type) {
		case bson.M:
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]any:
			v, ok := m[key]
			if !ok {
				return nil, false
			}
			current = v
		case bson.D:
			found := false
			for _, e := range m {
				if e.Key == key {
					current = e.Value
					found = true
					break
				}
			}
			if !found {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return current, true
}

func orZero(v any) any {
	if v == nil {
		return int64(0)
	}
	return v
}
