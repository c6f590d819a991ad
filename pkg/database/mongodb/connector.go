// Package mongodb implements the MongoDB connector.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/supporttools/GoDBVault/pkg/database/common"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

const (
	defaultPort            = 27017
	serverSelectionTimeout = 5 * time.Second
)

// Connector implements common.Connector for MongoDB servers. Pooling is the
// driver's own concern, so the shared pool manager is not used here.
type Connector struct {
	details dbtypes.ConnectionDetails
	client  *mongo.Client
}

// New builds a MongoDB connector. The connection itself is deferred to Connect.
func New(details dbtypes.ConnectionDetails, _ *pool.Manager) (*Connector, error) {
	if details.Host == "" {
		return nil, errors.New("MongoDB host is required")
	}
	if details.Port == 0 {
		details.Port = defaultPort
	}
	return &Connector{details: details}, nil
}

// Engine returns the engine name.
func (c *Connector) Engine() dbtypes.EngineType {
	return dbtypes.EngineMongoDB
}

// URI assembles the connection string. Credentials are URL-escaped and only
// included when both username and password are set; authSource is appended
// when the profile names one.
func (c *Connector) URI() string {
	var cred string
	if c.details.Username != "" && c.details.Password != "" {
		cred = fmt.Sprintf("%s:%s@",
			url.QueryEscape(c.details.Username), url.QueryEscape(c.details.Password))
	}
	uri := fmt.Sprintf("mongodb://%s%s:%d/%s", cred, c.details.Host, c.details.Port, c.details.DatabaseName)
	if c.details.AuthSource != "" {
		uri += "?authSource=" + url.QueryEscape(c.details.AuthSource)
	}
	return uri
}

// Connect dials the server.
func (c *Connector) Connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}
	opts := options.Client().
		ApplyURI(c.URI()).
		SetServerSelectionTimeout(serverSelectionTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB at %s:%d: %w", c.details.Host, c.details.Port, err)
	}
	c.client = client
	return nil
}

// Close disconnects the client. Safe to call twice.
func (c *Connector) Close() error {
	if c.client == nil {
		return nil
	}
	client := c.client
	c.client = nil
	return client.Disconnect(context.Background())
}

// Client exposes the driver client for the collection service.
func (c *Connector) Client() *mongo.Client {
	return c.client
}

// Database returns the database handle named by the connection details.
func (c *Connector) Database() *mongo.Database {
	if c.client == nil {
		return nil
	}
	return c.client.Database(c.details.DatabaseName)
}

// TestConnection pings the admin database, the cheapest liveness check the
// server offers.
func (c *Connector) TestConnection(ctx context.Context) (bool, string) {
	opened := c.client == nil
	if err := c.Connect(ctx); err != nil {
		return false, err.Error()
	}
	if opened {
		defer c.Close()
	}
	if err := c.client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return false, err.Error()
	}
	return true, "Connection successful"
}

// ExecuteQuery is not supported: there is no single-string query language to
// run against MongoDB. The collection service owns document operations.
func (c *Connector) ExecuteQuery(_ context.Context, _ string, _ ...any) dbtypes.QueryResult {
	return dbtypes.ErrorResult("raw query execution is not supported for mongodb")
}

func init() {
	common.Register(dbtypes.EngineMongoDB, func(details dbtypes.ConnectionDetails, pools *pool.Manager) (common.Connector, error) {
		return New(details, pools)
	})
}
