package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// dbClient abstracts the MongoDB client operations for testability.
type dbClient interface {
	Ping(ctx context.Context) error
	Disconnect(ctx context.Context) error
	RunCommand(ctx context.Context, dbName string, cmd any) *mongo.SingleResult
	ListIndexSpecs(ctx context.Context, dbName, collName string) ([]mongo.IndexSpecification, error)
}

// mongoDBClient wraps the real mongo.Client to implement dbClient.
type mongoDBClient struct {
	client *mongo.Client
}

func (m *mongoDBClient) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *mongoDBClient) Disconnect(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *mongoDBClient) RunCommand(ctx context.Context, dbName string, cmd any) *mongo.SingleResult {
	return m.client.Database(dbName).RunCommand(ctx, cmd)
}

func (m *mongoDBClient) ListIndexSpecs(ctx context.Context, dbName, collName string) ([]mongo.IndexSpecification, error) {
	return m.client.Database(dbName).Collection(collName).Indexes().ListSpecifications(ctx)
}

// Inspector reads index metadata from a live MongoDB deployment, the minimal
// slice of the teacher's cluster-inspection surface the "explain" command
// needs to recommend an index.
type Inspector struct {
	db dbClient
}

// NewInspector connects to MongoDB and verifies the connection.
// The context deadline is used to bound connection and server selection time.
func NewInspector(ctx context.Context, cfg Config) (*Inspector, error) {
	opts := options.Client().ApplyURI(cfg.URI)

	// Derive connection timeouts from context deadline so unreachable hosts
	// don't hang for the OS-level TCP timeout (~2 min).
	if deadline, ok := ctx.Deadline(); ok {
		d := time.Until(deadline)
		opts.SetConnectTimeout(d)
		opts.SetServerSelectionTimeout(d)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, classifyConnectError(fmt.Errorf("connect: %w", err))
	}

	dbc := &mongoDBClient{client: client}
	if err := dbc.Ping(ctx); err != nil {
		_ = dbc.Disconnect(ctx)
		return nil, classifyConnectError(fmt.Errorf("connect: %w", err))
	}

	return &Inspector{db: dbc}, nil
}

// Close disconnects from MongoDB.
func (i *Inspector) Close(ctx context.Context) error {
	return i.db.Disconnect(ctx)
}

// GetIndexes returns index definitions for a collection.
func (i *Inspector) GetIndexes(ctx context.Context, dbName, collName string) ([]IndexInfo, error) {
	specs, err := i.db.ListIndexSpecs(ctx, dbName, collName)
	if err != nil {
		return nil, fmt.Errorf("list indexes %s.%s: %w", dbName, collName, err)
	}

	indexes := make([]IndexInfo, 0, len(specs))
	for _, spec := range specs {
		idx := IndexInfo{
			Name: spec.Name,
			Key:  bsonRawToKeyFields(spec.KeysDocument),
		}
		if spec.Unique != nil {
			idx.Unique = *spec.Unique
		}
		if spec.Sparse != nil {
			idx.Sparse = *spec.Sparse
		}
		if spec.ExpireAfterSeconds != nil {
			ttl := *spec.ExpireAfterSeconds
			idx.TTL = &ttl
		}
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

// GetServerVersion returns the MongoDB server version string.
func (i *Inspector) GetServerVersion(ctx context.Context) (ServerInfo, error) {
	result := i.db.RunCommand(ctx, "admin", bson.D{{Key: "buildInfo", Value: 1}})
	var raw bson.M
	if err := result.Decode(&raw); err != nil {
		return ServerInfo{}, fmt.Errorf("buildInfo: %w", err)
	}
	v, _ := raw["version"].(string)
	return ServerInfo{Version: v}, nil
}

// bsonRawToKeyFields converts a bson.Raw key document to ordered []KeyField.
// Handles numeric directions (1, -1) and string index types ("text", "2dsphere",
// "2d", "hashed") which are stored as Direction=0 (non-directional).
func bsonRawToKeyFields(raw bson.Raw) []KeyField {
	elems, err := raw.Elements()
	if err != nil {
		return nil
	}
	fields := make([]KeyField, 0, len(elems))
	for _, elem := range elems {
		kf := KeyField{Field: elem.Key()}
		v := elem.Value()
		switch v.Type {
		case bson.TypeInt32, bson.TypeInt64, bson.TypeDouble:
			kf.Direction = int(v.AsInt64())
		default:
			// text, 2dsphere, 2d, hashed — non-directional
			kf.Direction = 0
		}
		fields = append(fields, kf)
	}
	return fields
}

// classifyConnectError wraps connection errors with actionable troubleshooting hints.
func classifyConnectError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "context deadline exceeded") &&
		(strings.Contains(msg, "ReplicaSetNoPrimary") || strings.Contains(msg, "server selection")):
		return fmt.Errorf("%w\n\nhint: could not reach any replica set member within the timeout. Common causes:\n"+
			"  - IP address not in Atlas Network Access list\n"+
			"  - firewall or VPN blocking port 27017\n"+
			"  - DNS cannot resolve SRV record (try: nslookup _mongodb._tcp.<host>)\n"+
			"  - increase timeout with --timeout 60s\n"+
			"  see: docs/troubleshooting.md", err)
	case strings.Contains(msg, "authentication failed") || strings.Contains(msg, "auth error"):
		return fmt.Errorf("%w\n\nhint: authentication failed. Check username, password, and authSource in your URI\n"+
			"  see: docs/troubleshooting.md", err)
	case strings.Contains(msg, "connection refused"):
		return fmt.Errorf("%w\n\nhint: connection refused. Is MongoDB running at this address?\n"+
			"  see: docs/troubleshooting.md", err)
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "server misbehaving"):
		return fmt.Errorf("%w\n\nhint: DNS resolution failed. Check the hostname in your URI\n"+
			"  see: docs/troubleshooting.md", err)
	default:
		return err
	}
}
