// Package inventorytest provides a fake product service for tests.
package inventorytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Write records one PUT /products/{id} body as received.
type Write struct {
	ProductID string
	Body      map[string]any
}

// ProductService serves GET and PUT /products/{id} from memory, the way the
// real product service does. Stock is returned as a JSON number and accepted
// as a number or numeric string.
type ProductService struct {
	mu       sync.Mutex
	products map[string]map[string]any
	writes   []Write

	// FailStatus, when set for a product id, is returned for every request
	// on that product.
	FailStatus map[string]int
}

func NewProductService() *ProductService {
	return &ProductService{products: map[string]map[string]any{}, FailStatus: map[string]int{}}
}

// Add registers a product with the given stock level.
func (s *ProductService) Add(id string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = map[string]any{
		"name":           "product " + id,
		"description":    "description of " + id,
		"price":          json.Number("9.99"),
		"stock_quantity": stock,
	}
}

// Stock returns the current stock of a product, or -1 when unknown.
func (s *ProductService) Stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return -1
	}
	return p["stock_quantity"].(int)
}

func (s *ProductService) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// Start serves the fake on an httptest server. The caller closes it.
func (s *ProductService) Start() *httptest.Server {
	return httptest.NewServer(s.Handler())
}

func (s *ProductService) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/products/{id}", s.get)
	r.Put("/products/{id}", s.put)
	return r
}

func (s *ProductService) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.FailStatus[id]; code != 0 {
		w.WriteHeader(code)
		return
	}
	p, ok := s.products[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}

func (s *ProductService) put(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if code := s.FailStatus[id]; code != 0 {
		w.WriteHeader(code)
		return
	}
	p, ok := s.products[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	stock, ok := parseStock(body["stock_quantity"])
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.writes = append(s.writes, Write{ProductID: id, Body: body})
	p["name"] = body["name"]
	p["description"] = body["description"]
	p["price"] = body["price"]
	p["stock_quantity"] = stock
	w.WriteHeader(http.StatusOK)
}

func parseStock(v any) (int, bool) {
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		return int(i), err == nil
	case string:
		i, err := json.Number(x).Int64()
		return int(i), err == nil
	}
	return 0, false
}
