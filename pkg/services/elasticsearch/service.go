// Package elasticsearch provides the search service for Elasticsearch
// profiles. Every operation is a JSON request against the cluster's REST
// API; mutations return an ok flag plus the server's message so callers can
// surface cluster errors verbatim.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	esconn "github.com/supporttools/GoDBVault/pkg/database/elasticsearch"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

const defaultSearchSize = 10

// Service runs index and document operations against one cluster.
type Service struct {
	details dbtypes.ConnectionDetails
	conn    *esconn.Connector
}

// New builds the service for an Elasticsearch profile.
func New(details dbtypes.ConnectionDetails, pools *pool.Manager) (*Service, error) {
	conn, err := esconn.New(details, pools)
	if err != nil {
		return nil, err
	}
	return &Service{details: details, conn: conn}, nil
}

// Engine returns the engine name.
func (s *Service) Engine() dbtypes.EngineType {
	return dbtypes.EngineElasticsearch
}

// Close releases idle connections.
func (s *Service) Close() error {
	return s.conn.Close()
}

// ClusterStats condenses _cluster/health and _cluster/stats into the five
// headline numbers the dashboard shows.
func (s *Service) ClusterStats(ctx context.Context) (dbtypes.Row, error) {
	health, healthStatus, err := s.getJSON(ctx, "/_cluster/health")
	if err != nil {
		return nil, err
	}
	stats, statsStatus, err := s.getJSON(ctx, "/_cluster/stats")
	if err != nil {
		return nil, err
	}
	if healthStatus != http.StatusOK || statsStatus != http.StatusOK {
		return nil, fmt.Errorf("cluster stats unavailable: health returned %d, stats returned %d", healthStatus, statsStatus)
	}
	healthDoc, _ := health.(map[string]any)
	statsDoc, _ := stats.(map[string]any)
	return dbtypes.Row{
		"health":  healthDoc["status"],
		"nodes":   healthDoc["number_of_nodes"],
		"indices": lookup(statsDoc, "indices", "count"),
		"docs":    lookup(statsDoc, "indices", "docs", "count"),
		"size":    lookup(statsDoc, "indices", "store", "size_in_bytes"),
	}, nil
}

// Indices lists the cluster's indices via _cat.
func (s *Service) Indices(ctx context.Context) ([]dbtypes.Row, error) {
	value, status, err := s.getJSON(ctx, "/_cat/indices?format=json")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("listing indices returned status %d", status)
	}
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected indices payload")
	}
	rows := make([]dbtypes.Row, 0, len(items))
	for _, item := range items {
		if doc, ok := item.(map[string]any); ok {
			rows = append(rows, dbtypes.Row(doc))
		}
	}
	return rows, nil
}

// DashboardStats combines cluster stats and the index listing, each section
// degrading independently.
func (s *Service) DashboardStats(ctx context.Context) dbtypes.Row {
	stats := dbtypes.Row{"cluster": nil, "indices": []dbtypes.Row{}}
	if cluster, err := s.ClusterStats(ctx); err == nil {
		stats["cluster"] = cluster
	} else {
		log.Printf("Error fetching Elasticsearch cluster stats: %v", err)
	}
	if indices, err := s.Indices(ctx); err == nil {
		stats["indices"] = indices
	} else {
		log.Printf("Error fetching Elasticsearch indices: %v", err)
	}
	return stats
}

// Passthrough forwards a raw request to the cluster and returns the parsed
// JSON reply, or the body text when it does not parse. POST and PUT send an
// empty object when no body is given.
func (s *Service) Passthrough(ctx context.Context, method, endpoint, body string) (any, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	var reader io.Reader
	switch method {
	case http.MethodGet, http.MethodDelete:
	case http.MethodPost, http.MethodPut:
		if strings.TrimSpace(body) == "" {
			body = "{}"
		}
		reader = strings.NewReader(body)
	default:
		return nil, fmt.Errorf("unsupported method: %s", method)
	}
	resp, err := s.conn.Do(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data), nil
	}
	return out, nil
}

// InspectIndex gathers the _cat row, mappings, and settings for one index.
// Sections the cluster refuses come back nil rather than failing the whole
// inspection.
func (s *Service) InspectIndex(ctx context.Context, index string) (dbtypes.Row, error) {
	result := dbtypes.Row{"index_info": nil, "mappings": nil, "settings": nil}

	info, status, err := s.getJSON(ctx, "/_cat/indices/"+url.PathEscape(index)+"?format=json")
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		if items, ok := info.([]any); ok && len(items) > 0 {
			result["index_info"] = items[0]
		}
	}

	mappings, status, err := s.getJSON(ctx, "/"+url.PathEscape(index)+"/_mapping")
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		result["mappings"] = mappings
	}

	settings, status, err := s.getJSON(ctx, "/"+url.PathEscape(index)+"/_settings")
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK {
		result["settings"] = settings
	}

	return result, nil
}

// Search runs a query_string search, or match_all when the query is blank,
// and returns the raw hits.
func (s *Service) Search(ctx context.Context, index, query string, size int) ([]any, error) {
	if size <= 0 {
		size = defaultSearchSize
	}
	var body map[string]any
	if strings.TrimSpace(query) != "" {
		body = map[string]any{
			"query": map[string]any{"query_string": map[string]any{"query": query}},
			"size":  size,
		}
	} else {
		body = map[string]any{
			"query": map[string]any{"match_all": map[string]any{}},
			"size":  size,
		}
	}

	resp, err := s.doJSON(ctx, http.MethodPost, "/"+url.PathEscape(index)+"/_search", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unexpected search payload: %w", err)
	}
	hits, _ := lookup(out, "hits", "hits").([]any)
	return hits, nil
}

// CreateIndex creates an index with the given shard and replica counts,
// optional extra settings merged in, and optional mappings.
func (s *Service) CreateIndex(ctx context.Context, index string, shards, replicas int, mappings, settings map[string]any) (bool, string) {
	if shards < 1 {
		shards = 1
	}
	if replicas < 0 {
		replicas = 0
	}
	indexSettings := map[string]any{
		"number_of_shards":   shards,
		"number_of_replicas": replicas,
	}
	for k, v := range settings {
		indexSettings[k] = v
	}
	body := map[string]any{"settings": indexSettings}
	if len(mappings) > 0 {
		body["mappings"] = mappings
	}

	resp, err := s.doJSON(ctx, http.MethodPut, "/"+url.PathEscape(index), body)
	if err != nil {
		return false, err.Error()
	}
	return okOrBody(resp, http.StatusOK, http.StatusCreated)
}

// DeleteIndex removes an index.
func (s *Service) DeleteIndex(ctx context.Context, index string) (bool, string) {
	resp, err := s.conn.Do(ctx, http.MethodDelete, "/"+url.PathEscape(index), nil)
	if err != nil {
		return false, err.Error()
	}
	return okOrBody(resp, http.StatusOK)
}

// CreateDocument indexes a document, under the given id when one is
// supplied and with a generated id otherwise.
func (s *Service) CreateDocument(ctx context.Context, index, id string, body map[string]any) (bool, string) {
	var resp *http.Response
	var err error
	if strings.TrimSpace(id) != "" {
		resp, err = s.doJSON(ctx, http.MethodPut, "/"+url.PathEscape(index)+"/_doc/"+url.PathEscape(id), body)
	} else {
		resp, err = s.doJSON(ctx, http.MethodPost, "/"+url.PathEscape(index)+"/_doc", body)
	}
	if err != nil {
		return false, err.Error()
	}
	return okOrBody(resp, http.StatusOK, http.StatusCreated)
}

// UpdateDocument reindexes a document wholesale under its id.
func (s *Service) UpdateDocument(ctx context.Context, index, id string, body map[string]any) (bool, string) {
	resp, err := s.doJSON(ctx, http.MethodPut, "/"+url.PathEscape(index)+"/_doc/"+url.PathEscape(id), body)
	if err != nil {
		return false, err.Error()
	}
	return okOrBody(resp, http.StatusOK, http.StatusCreated)
}

// DeleteDocument removes a document by id.
func (s *Service) DeleteDocument(ctx context.Context, index, id string) (bool, string) {
	resp, err := s.conn.Do(ctx, http.MethodDelete, "/"+url.PathEscape(index)+"/_doc/"+url.PathEscape(id), nil)
	if err != nil {
		return false, err.Error()
	}
	return okOrBody(resp, http.StatusOK)
}

func (s *Service) doJSON(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	return s.conn.Do(ctx, method, path, body)
}

func (s *Service) getJSON(ctx context.Context, path string) (any, int, error) {
	resp, err := s.conn.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, resp.StatusCode, nil
	}
	return out, resp.StatusCode, nil
}

// okOrBody collapses a mutation response into (ok, message): accepted status
// codes yield "OK", anything else yields the response body.
func okOrBody(resp *http.Response, accept ...int) (bool, string) {
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	for _, code := range accept {
		if resp.StatusCode == code {
			return true, "OK"
		}
	}
	return false, strings.TrimSpace(string(data))
}

func lookup(doc map[string]any, keys ...string) any {
	var current any = doc
	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}
