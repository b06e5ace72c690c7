package dbclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"fixtures/internal/domain"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoConnector implements Connector for MongoDB. Queries are JSON
// documents naming a collection and an operation.
type mongoConnector struct {
	client *mongo.Client
	dbName string
}

// mongoQuery is the JSON structure used for MongoDB queries.
type mongoQuery struct {
	Collection string         `json:"collection"`
	Operation  string         `json:"operation,omitempty"` // find (default), aggregate, insertOne, updateMany, deleteMany
	Filter     map[string]any `json:"filter,omitempty"`
	Projection map[string]any `json:"projection,omitempty"`
	Sort       map[string]any `json:"sort,omitempty"`
	Document   map[string]any `json:"document,omitempty"`
	Update     map[string]any `json:"update,omitempty"`
	Pipeline   []any          `json:"pipeline,omitempty"`
}

// buildMongoURI returns the connection string for s. A host that already is
// a mongodb:// or mongodb+srv:// URI is used as is, with <password>
// placeholders filled in.
func buildMongoURI(s domain.DatabaseSettings) string {
	if strings.HasPrefix(s.Host, "mongodb+srv://") || strings.HasPrefix(s.Host, "mongodb://") {
		uri := s.Host
		if s.Password != "" {
			pw := strings.ReplaceAll(url.QueryEscape(s.Password), "+", "%20")
			uri = strings.ReplaceAll(uri, "<password>", pw)
			uri = strings.ReplaceAll(uri, "<db_password>", pw)
		}
		return uri
	}

	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", s.Host, s.EffectivePort()),
		Path:   "/" + s.Schema,
	}
	if s.Username != "" {
		u.User = url.UserPassword(s.Username, s.Password)
	}
	if s.SSLMode == "require" {
		u.RawQuery = "tls=true"
	}
	return u.String()
}

func newMongoConnector(s domain.DatabaseSettings) (*mongoConnector, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(buildMongoURI(s)))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	dbName := s.Schema
	if dbName == "" {
		dbName = "test"
	}
	return &mongoConnector{client: client, dbName: dbName}, nil
}

// unmarshalEJSON converts Extended JSON values ($oid, $date, ...) inside a
// decoded field into their BSON types.
func unmarshalEJSON(field map[string]any) map[string]any {
	if field == nil {
		return nil
	}
	raw, err := json.Marshal(field)
	if err != nil {
		return field
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return field
	}
	result := make(map[string]any, len(doc))
	for _, elem := range doc {
		result[elem.Key] = elem.Value
	}
	return result
}

func parseMongoQuery(query string) (mongoQuery, error) {
	var mq mongoQuery
	if err := json.Unmarshal([]byte(query), &mq); err != nil {
		return mq, fmt.Errorf("invalid query JSON: %w", err)
	}
	if mq.Collection == "" {
		return mq, fmt.Errorf("query must specify 'collection'")
	}
	mq.Filter = unmarshalEJSON(mq.Filter)
	mq.Document = unmarshalEJSON(mq.Document)
	mq.Update = unmarshalEJSON(mq.Update)
	mq.Projection = unmarshalEJSON(mq.Projection)
	mq.Sort = unmarshalEJSON(mq.Sort)
	if mq.Filter == nil {
		mq.Filter = map[string]any{}
	}
	return mq, nil
}

func (m *mongoConnector) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

// Query runs a find or aggregate. Positional args are not supported.
func (m *mongoConnector) Query(ctx context.Context, query string, _ ...any) (*QueryPage, error) {
	mq, err := parseMongoQuery(query)
	if err != nil {
		return nil, err
	}
	coll := m.client.Database(m.dbName).Collection(mq.Collection)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var cursor *mongo.Cursor
	switch mq.Operation {
	case "", "find":
		opts := options.Find()
		if mq.Projection != nil {
			opts.SetProjection(mq.Projection)
		}
		if mq.Sort != nil {
			opts.SetSort(mq.Sort)
		}
		cursor, err = coll.Find(ctx, mq.Filter, opts)
	case "aggregate":
		pipeline := mq.Pipeline
		if pipeline == nil {
			pipeline = []any{}
		}
		cursor, err = coll.Aggregate(ctx, pipeline)
	default:
		return nil, fmt.Errorf("operation %q is not a read", mq.Operation)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", mq.Operation, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return docsToPage(docs), nil
}

// docsToPage flattens documents into a page. Columns are the union of
// keys, _id first then alphabetical.
func docsToPage(docs []bson.D) *QueryPage {
	seen := map[string]bool{}
	var columns []string
	for _, doc := range docs {
		for _, elem := range doc {
			if !seen[elem.Key] {
				seen[elem.Key] = true
				columns = append(columns, elem.Key)
			}
		}
	}
	sort.SliceStable(columns, func(i, j int) bool {
		if columns[i] == "_id" {
			return true
		}
		if columns[j] == "_id" {
			return false
		}
		return columns[i] < columns[j]
	})

	page := &QueryPage{Columns: columns, Rows: make([][]any, 0, len(docs))}
	for _, doc := range docs {
		byKey := make(map[string]any, len(doc))
		for _, elem := range doc {
			byKey[elem.Key] = elem.Value
		}
		row := make([]any, len(columns))
		for j, col := range columns {
			if v, ok := byKey[col]; ok {
				row[j] = mongoValue(v)
			}
		}
		page.Rows = append(page.Rows, row)
	}
	return page
}

// mongoValue maps BSON values onto plain scalars and lists.
func mongoValue(v any) any {
	switch val := v.(type) {
	case bson.ObjectID:
		return val.Hex()
	case bson.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	case bson.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = mongoValue(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, elem := range val {
			out[elem.Key] = mongoValue(elem.Value)
		}
		return out
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return formatValue(val)
	}
}

// Exec runs insertOne, updateMany or deleteMany.
func (m *mongoConnector) Exec(ctx context.Context, query string, _ ...any) (int64, error) {
	mq, err := parseMongoQuery(query)
	if err != nil {
		return 0, err
	}
	coll := m.client.Database(m.dbName).Collection(mq.Collection)

	switch mq.Operation {
	case "insertOne":
		if mq.Document == nil {
			return 0, fmt.Errorf("insertOne requires 'document'")
		}
		if _, err := coll.InsertOne(ctx, mq.Document); err != nil {
			return 0, fmt.Errorf("insertOne: %w", err)
		}
		return 1, nil
	case "updateMany":
		if mq.Update == nil {
			return 0, fmt.Errorf("updateMany requires 'update'")
		}
		res, err := coll.UpdateMany(ctx, mq.Filter, mq.Update)
		if err != nil {
			return 0, fmt.Errorf("updateMany: %w", err)
		}
		return res.ModifiedCount, nil
	case "deleteMany":
		res, err := coll.DeleteMany(ctx, mq.Filter)
		if err != nil {
			return 0, fmt.Errorf("deleteMany: %w", err)
		}
		return res.DeletedCount, nil
	default:
		return 0, fmt.Errorf("unsupported operation: %q", mq.Operation)
	}
}

func (m *mongoConnector) Tables(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	names, err := m.client.Database(m.dbName).ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (m *mongoConnector) ListingQuery(table string) string {
	b, _ := json.Marshal(mongoQuery{Collection: table})
	return string(b)
}

// InsertRows has no transaction; each batch is one InsertMany.
func (m *mongoConnector) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	coll := m.client.Database(m.dbName).Collection(table)

	written := 0
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		docs := make([]any, 0, end-start)
		for _, row := range rows[start:end] {
			doc := bson.D{}
			for j, col := range columns {
				if j < len(row) {
					doc = append(doc, bson.E{Key: col, Value: row[j]})
				}
			}
			docs = append(docs, doc)
		}
		if _, err := coll.InsertMany(ctx, docs); err != nil {
			return written, fmt.Errorf("insert batch at row %d: %w", start, err)
		}
		written += len(docs)
	}
	return written, nil
}

func (m *mongoConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
