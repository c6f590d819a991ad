// Package common provides the shared connector contract and the factory
// registry that engine packages register themselves into.
package common

import (
	"context"
	"fmt"

	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

// Connector is the uniform handle every engine exposes. Implementations keep
// engine-specific wiring (DSNs, clients, transports) behind these five
// operations so callers never branch on the engine themselves.
type Connector interface {
	// Engine returns the engine this connector speaks to.
	Engine() dbtypes.EngineType

	// Connect establishes or acquires the underlying connection.
	Connect(ctx context.Context) error

	// Close releases the connection. Calling it twice is safe.
	Close() error

	// TestConnection proves liveness and returns a human-readable detail
	// string (server version, cluster status) alongside the verdict.
	TestConnection(ctx context.Context) (bool, string)

	// ExecuteQuery runs one raw statement. Read statements yield rows,
	// write statements yield an affected-row count, and failures yield an
	// error result rather than a Go error so partial UIs can render them.
	ExecuteQuery(ctx context.Context, query string, params ...any) dbtypes.QueryResult
}

// Factory builds a connector for one engine from plaintext connection
// details. The pool manager is shared process-wide; engines that do not pool
// through database/sql ignore it.
type Factory func(details dbtypes.ConnectionDetails, pools *pool.Manager) (Connector, error)

// factories stores the registered connector factories, keyed by engine.
var factories = make(map[dbtypes.EngineType]Factory)

// Register records a connector factory for an engine. Engine packages call
// this from init, so registration is complete before main runs.
func Register(engine dbtypes.EngineType, factory Factory) {
	factories[engine] = factory
}

// New builds a connector for the engine named in details.
func New(details dbtypes.ConnectionDetails, pools *pool.Manager) (Connector, error) {
	factory, ok := factories[details.Engine]
	if !ok {
		return nil, fmt.Errorf("no connector registered for engine: %s", details.Engine)
	}
	return factory(details, pools)
}

// Registered reports whether an engine has a connector factory, without
// building one.
func Registered(engine dbtypes.EngineType) bool {
	_, ok := factories[engine]
	return ok
}
