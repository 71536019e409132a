package stactest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
)

// Server is a fake STAC API serving in-memory collections with page/limit
// pagination. It records every request it receives.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	order       []string
	collections map[string][]map[string]any
	files       map[string][]byte
	failures    map[string]int
	requests    []string
	itemCounts  bool
}

// NewServer starts a fake catalog that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		collections: map[string][]map[string]any{},
		files:       map[string][]byte{},
		failures:    map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleCatalog)
	mux.HandleFunc("GET /collections", s.handleCollections)
	mux.HandleFunc("GET /collections/{id}", s.handleCollection)
	mux.HandleFunc("GET /collections/{id}/items", s.handleItems)
	mux.HandleFunc("GET /collections/{id}/items/{item}", s.handleItem)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("GET /files/{name...}", s.handleFile)

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)

	return s
}

// AddCollection registers a collection and its items, in listing order.
func (s *Server) AddCollection(id string, items ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[id]; !ok {
		s.order = append(s.order, id)
	}
	s.collections[id] = items
}

// AddFile serves content under /files/<name> and returns its URL.
func (s *Server) AddFile(name string, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[name] = content
	return s.URL + "/files/" + name
}

// Fail makes every request for path answer with status.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[path] = status
}

// FailPage makes one items page of a collection answer with status.
func (s *Server) FailPage(collectionID string, page, status int) {
	s.Fail(fmt.Sprintf("/collections/%s/items?page=%d", collectionID, page), status)
}

// UseItemCounts switches item listings from the context object to the
// numberReturned and numberMatched fields.
func (s *Server) UseItemCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.itemCounts = true
}

// Requests returns the path and query of every request received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.requests...)
}

// PagesRequested returns the page numbers requested for a collection's
// items, in request order.
func (s *Server) PagesRequested(collectionID string) []int {
	prefix := "/collections/" + collectionID + "/items?"

	var pages []int
	for _, r := range s.Requests() {
		if !strings.HasPrefix(r, prefix) {
			continue
		}
		if page, ok := pageOf(r); ok {
			pages = append(pages, page)
		}
	}

	return pages
}

func pageOf(request string) (int, bool) {
	_, query, _ := strings.Cut(request, "?")
	for _, kv := range strings.Split(query, "&") {
		if v, ok := strings.CutPrefix(kv, "page="); ok {
			n, err := strconv.Atoi(v)
			return n, err == nil
		}
	}

	return 0, false
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.URL.RequestURI())
		status, failed := s.failures[r.URL.Path]
		if !failed {
			if page := r.URL.Query().Get("page"); page != "" {
				status, failed = s.failures[r.URL.Path+"?page="+page]
			}
		}
		s.mu.Unlock()

		if failed {
			writeJSON(w, status, map[string]any{
				"code":        http.StatusText(status),
				"description": "injected failure",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"type":         "Catalog",
		"stac_version": "1.0.0",
		"id":           "stactest",
		"description":  "Fake catalog",
		"conformsTo":   []string{"https://api.stacspec.org/v1.0.0/core"},
		"links": []map[string]any{
			{"rel": "self", "href": s.URL + "/"},
			{"rel": "data", "href": s.URL + "/collections"},
			{"rel": "search", "href": s.URL + "/search", "method": "GET"},
		},
	})
}

func (s *Server) handleCollections(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	collections := make([]map[string]any, 0, len(s.order))
	for _, id := range s.order {
		collections = append(collections, NewTestCollection(id))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"collections": collections,
		"links":       []any{},
	})
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.items(id); !ok {
		notFound(w, "collection "+id)
		return
	}

	writeJSON(w, http.StatusOK, NewTestCollection(id))
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	items, ok := s.items(id)
	if !ok {
		notFound(w, "collection "+id)
		return
	}

	s.writePage(w, r, items)
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	items, ok := s.items(r.PathValue("id"))
	if !ok {
		notFound(w, "collection "+r.PathValue("id"))
		return
	}

	for _, item := range items {
		if item["id"] == r.PathValue("item") {
			writeJSON(w, http.StatusOK, item)
			return
		}
	}

	notFound(w, "item "+r.PathValue("item"))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	wanted := map[string]bool{}
	if c := r.URL.Query().Get("collections"); c != "" {
		for _, id := range strings.Split(c, ",") {
			wanted[id] = true
		}
	}

	s.mu.Lock()
	var items []map[string]any
	for _, id := range s.order {
		if len(wanted) == 0 || wanted[id] {
			items = append(items, s.collections[id]...)
		}
	}
	s.mu.Unlock()

	s.writePage(w, r, items)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	content, ok := s.files[r.PathValue("name")]
	s.mu.Unlock()

	if !ok {
		notFound(w, "file "+r.PathValue("name"))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}

func (s *Server) items(collectionID string) ([]map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.collections[collectionID]
	return items, ok
}

func (s *Server) writePage(w http.ResponseWriter, r *http.Request, items []map[string]any) {
	page, limit, err := paging(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": "BadRequest", "description": err.Error()})
		return
	}

	start := min((page-1)*limit, len(items))
	end := min(start+limit, len(items))
	features := items[start:end]
	if features == nil {
		features = []map[string]any{}
	}

	doc := map[string]any{
		"type":     "FeatureCollection",
		"features": features,
		"links":    []any{},
	}

	s.mu.Lock()
	itemCounts := s.itemCounts
	s.mu.Unlock()

	if itemCounts {
		doc["numberReturned"] = len(features)
		doc["numberMatched"] = len(items)
	} else {
		doc["context"] = map[string]any{
			"returned": len(features),
			"matched":  len(items),
			"limit":    limit,
		}
	}

	writeJSON(w, http.StatusOK, doc)
}

func paging(r *http.Request) (int, int, error) {
	page, limit := 1, 10

	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("invalid page %q", v)
		}
		page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("invalid limit %q", v)
		}
		limit = n
	}

	return page, limit, nil
}

func notFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"code":        "NotFound",
		"description": what + " not found",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
