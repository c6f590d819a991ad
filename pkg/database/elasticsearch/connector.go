// Package elasticsearch implements the Elasticsearch connector. The engine
// speaks HTTP, so there is no persistent socket: Connect derives the base URL
// and builds the shared HTTP client, and each operation is its own request.
package elasticsearch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/supporttools/GoDBVault/pkg/database/common"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

const requestTimeout = 30 * time.Second

// Connector implements common.Connector for Elasticsearch clusters.
type Connector struct {
	details dbtypes.ConnectionDetails
	baseURL string
	client  *http.Client
}

// New builds an Elasticsearch connector.
func New(details dbtypes.ConnectionDetails, _ *pool.Manager) (*Connector, error) {
	if strings.TrimSpace(details.Host) == "" {
		return nil, errors.New("Elasticsearch host is required")
	}
	return &Connector{details: details}, nil
}

// Engine returns the engine name.
func (c *Connector) Engine() dbtypes.EngineType {
	return dbtypes.EngineElasticsearch
}

// BaseURL derives the cluster URL from the host and port fields. A host that
// already carries a scheme is kept (the port is appended only when the host
// has none); otherwise https is assumed for port 443 and http for everything
// else, with 9200 as the fallback port.
func BaseURL(host string, port int) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if strings.Contains(host, "://") {
		hostPart := host[strings.Index(host, "://")+3:]
		if strings.Contains(hostPart, ":") {
			return host
		}
		if port > 0 {
			return fmt.Sprintf("%s:%d", host, port)
		}
		return host
	}
	scheme := "http"
	if port == 443 {
		scheme = "https"
	}
	if port > 0 {
		return fmt.Sprintf("%s://%s:%d", scheme, host, port)
	}
	return fmt.Sprintf("%s://%s:9200", scheme, host)
}

// Connect derives the base URL and prepares the HTTP client. Certificate
// validation is skipped: clusters in the field run self-signed far more often
// than not and the original behaves the same way.
func (c *Connector) Connect(_ context.Context) error {
	if c.client != nil {
		return nil
	}
	c.baseURL = BaseURL(c.details.Host, c.details.Port)
	c.client = &http.Client{
		Timeout: requestTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	log.Printf("Elasticsearch endpoint: %s", c.baseURL)
	return nil
}

// Close drops the client. Safe to call twice.
func (c *Connector) Close() error {
	if c.client != nil {
		c.client.CloseIdleConnections()
		c.client = nil
	}
	return nil
}

// Base exposes the derived URL for the search service.
func (c *Connector) Base() string {
	return c.baseURL
}

// Do issues one request against the cluster, attaching basic auth when the
// profile carries a username. path must start with "/".
func (c *Connector) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(c.details.Username) != "" {
		req.SetBasicAuth(c.details.Username, c.details.Password)
	}
	return c.client.Do(req)
}

// TestConnection issues a GET against the cluster root.
func (c *Connector) TestConnection(ctx context.Context) (bool, string) {
	opened := c.client == nil
	if err := c.Connect(ctx); err != nil {
		return false, err.Error()
	}
	if opened {
		defer c.Close()
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	resp, err := c.Do(reqCtx, http.MethodGet, "/", nil)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return true, "Connection successful"
	}
	return false, fmt.Sprintf("Server returned status %d", resp.StatusCode)
}

// ExecuteQuery is not supported: cluster operations are JSON requests owned
// by the search service.
func (c *Connector) ExecuteQuery(_ context.Context, _ string, _ ...any) dbtypes.QueryResult {
	return dbtypes.ErrorResult("raw query execution is not supported for elasticsearch")
}

func init() {
	common.Register(dbtypes.EngineElasticsearch, func(details dbtypes.ConnectionDetails, pools *pool.Manager) (common.Connector, error) {
		return New(details, pools)
	})
}
