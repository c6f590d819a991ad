package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supporttools/GoDBVault/pkg/dbtypes"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := New(dbtypes.ConnectionDetails{
		Engine: dbtypes.EngineElasticsearch,
		Host:   server.URL,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestClusterStats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/_cluster/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"green","number_of_nodes":3}`)
	})
	mux.HandleFunc("/_cluster/stats", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"indices":{"count":5,"docs":{"count":100},"store":{"size_in_bytes":2048}}}`)
	})
	svc := newTestService(t, mux)

	stats, err := svc.ClusterStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "green", stats["health"])
	assert.Equal(t, float64(3), stats["nodes"])
	assert.Equal(t, float64(5), stats["indices"])
	assert.Equal(t, float64(100), stats["docs"])
	assert.Equal(t, float64(2048), stats["size"])
}

func TestClusterStatsUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/_cluster/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":"green"}`)
	})
	mux.HandleFunc("/_cluster/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	svc := newTestService(t, mux)

	_, err := svc.ClusterStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stats returned 403")
}

func TestIndices(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/_cat/indices", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		fmt.Fprint(w, `[{"index":"logs","health":"yellow"}]`)
	})
	svc := newTestService(t, mux)

	indices, err := svc.Indices(context.Background())
	require.NoError(t, err)
	require.Len(t, indices, 1)
	assert.Equal(t, "logs", indices[0]["index"])
}

func TestDashboardStatsDegrades(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	stats := svc.DashboardStats(context.Background())
	assert.Nil(t, stats["cluster"])
	assert.Empty(t, stats["indices"])
}

func TestSearchMatchAllWhenQueryBlank(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/logs/_search", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{"hits":{"hits":[{"_id":"1"}]}}`)
	})
	svc := newTestService(t, mux)

	hits, err := svc.Search(context.Background(), "logs", "   ", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	query := body["query"].(map[string]any)
	_, hasMatchAll := query["match_all"]
	assert.True(t, hasMatchAll)
	assert.Equal(t, float64(10), body["size"])
}

func TestSearchQueryString(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/logs/_search", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{"hits":{"hits":[]}}`)
	})
	svc := newTestService(t, mux)

	hits, err := svc.Search(context.Background(), "logs", "level:error", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	queryString := body["query"].(map[string]any)["query_string"].(map[string]any)
	assert.Equal(t, "level:error", queryString["query"])
	assert.Equal(t, float64(5), body["size"])
}

func TestSearchSurfacesClusterError(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"parsing_exception"}`)
	}))

	_, err := svc.Search(context.Background(), "logs", "((", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing_exception")
}

func TestCreateIndexMergesSettings(t *testing.T) {
	var method string
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/books", func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{"acknowledged":true}`)
	})
	svc := newTestService(t, mux)

	ok, msg := svc.CreateIndex(context.Background(), "books", 2, 0,
		map[string]any{"properties": map[string]any{"title": map[string]any{"type": "text"}}},
		map[string]any{"index.codec": "best_compression"})
	assert.True(t, ok)
	assert.Equal(t, "OK", msg)
	assert.Equal(t, http.MethodPut, method)

	settings := body["settings"].(map[string]any)
	assert.Equal(t, float64(2), settings["number_of_shards"])
	assert.Equal(t, float64(0), settings["number_of_replicas"])
	assert.Equal(t, "best_compression", settings["index.codec"])
	assert.Contains(t, body, "mappings")
}

func TestCreateIndexConflict(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"resource_already_exists_exception"}`)
	}))

	ok, msg := svc.CreateIndex(context.Background(), "books", 1, 1, nil, nil)
	assert.False(t, ok)
	assert.Contains(t, msg, "resource_already_exists_exception")
}

func TestCreateDocumentRouting(t *testing.T) {
	var method, path string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"result":"created"}`)
	})
	svc := newTestService(t, handler)

	ok, msg := svc.CreateDocument(context.Background(), "books", "42", map[string]any{"title": "Go"})
	assert.True(t, ok)
	assert.Equal(t, "OK", msg)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/books/_doc/42", path)

	ok, _ = svc.CreateDocument(context.Background(), "books", "", map[string]any{"title": "Go"})
	assert.True(t, ok)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/books/_doc", path)
}

func TestDeleteDocument(t *testing.T) {
	var path string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		fmt.Fprint(w, `{"result":"deleted"}`)
	})
	svc := newTestService(t, handler)

	ok, msg := svc.DeleteDocument(context.Background(), "books", "42")
	assert.True(t, ok)
	assert.Equal(t, "OK", msg)
	assert.Equal(t, "/books/_doc/42", path)
}

func TestInspectIndexSectionsDegrade(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/_cat/indices/books", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"index":"books","docs.count":"7"}]`)
	})
	mux.HandleFunc("/books/_mapping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/books/_settings", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"books":{"settings":{"index":{"number_of_shards":"1"}}}}`)
	})
	svc := newTestService(t, mux)

	result, err := svc.InspectIndex(context.Background(), "books")
	require.NoError(t, err)

	info := result["index_info"].(map[string]any)
	assert.Equal(t, "books", info["index"])
	assert.Nil(t, result["mappings"])
	assert.NotNil(t, result["settings"])
}

func TestPassthrough(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/plain", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "plain text reply")
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Empty(t, body)
		fmt.Fprint(w, `{"ok":true}`)
	})
	svc := newTestService(t, mux)

	out, err := svc.Passthrough(context.Background(), "get", "/plain", "")
	require.NoError(t, err)
	assert.Equal(t, "plain text reply", out)

	out, err = svc.Passthrough(context.Background(), "POST", "json", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, out)

	_, err = svc.Passthrough(context.Background(), "PATCH", "/plain", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported method")
}
