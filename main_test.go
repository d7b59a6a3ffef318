package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"web/powermap/cluster"
	"web/powermap/config"
	"web/powermap/site"
)

func testServer(t *testing.T) (*mapServer, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Map.Technologies = []site.Technology{
		{Name: "Wind", Color: "#4287f5"},
		{Name: "Solar", Color: "#e6c212"},
	}

	s := &mapServer{cfg: cfg, log: zap.NewNop()}

	r := gin.New()
	r.GET("/api/markers", s.handleMarkers)
	r.GET("/api/summary", s.handleSummary)
	return s, r
}

func loadSites(s *mapServer, sites []site.Feature) {
	ix := cluster.NewIndex(s.indexOptions())
	ix.Load(sites)
	s.index.Store(ix)
}

func get(r *gin.Engine, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	r.ServeHTTP(w, req)
	return w
}

const viewport = "zoom=8&west=-5&south=-5&east=5&north=5"

func TestHandleMarkersNoDataset(t *testing.T) {
	_, r := testServer(t)

	w := get(r, "/api/markers?"+viewport)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 without a dataset, got %d", w.Code)
	}
}

func TestHandleMarkersRendersClusterAndSingle(t *testing.T) {
	s, r := testServer(t)
	loadSites(s, []site.Feature{
		{ID: 1, Name: "A", Lon: 0, Lat: 0,
			Values: []float64{5}, Colors: []string{"#4287f5"}, Labels: []string{"Wind"}},
		{ID: 2, Name: "B", Lon: 0.05, Lat: 0,
			Values: []float64{3}, Colors: []string{"#4287f5"}, Labels: []string{"Wind"}},
		{ID: 3, Name: "C", Lon: 2, Lat: 0,
			Values: []float64{7}, Colors: []string{"#e6c212"}, Labels: []string{"Solar"}},
	})

	w := get(r, "/api/markers?"+viewport)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &fc); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 2 {
		t.Fatalf("Expected a FeatureCollection with 2 features, got %+v", fc)
	}

	var clusters, singles int
	for _, f := range fc.Features {
		if f.Properties["cluster"] == true {
			clusters++
		} else {
			singles++
		}
		if f.Properties["icon"] == "" || f.Properties["tooltip"] == "" {
			t.Errorf("Feature missing icon or tooltip: %+v", f.Properties)
		}
	}
	if clusters != 1 || singles != 1 {
		t.Errorf("Expected 1 cluster and 1 single, got %d/%d", clusters, singles)
	}
}

func TestHandleMarkersBadParams(t *testing.T) {
	s, r := testServer(t)
	loadSites(s, []site.Feature{{ID: 1, Lon: 0, Lat: 0,
		Values: []float64{1}, Colors: []string{"#4287f5"}, Labels: []string{"Wind"}}})

	for _, url := range []string{
		"/api/markers",
		"/api/markers?zoom=abc&west=-5&south=-5&east=5&north=5",
		"/api/markers?zoom=8&west=-5&south=-5&east=5",
	} {
		if w := get(r, url); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", url, w.Code)
		}
	}
}

func TestHandleSummary(t *testing.T) {
	s, r := testServer(t)
	loadSites(s, []site.Feature{
		{ID: 1, Lon: 0, Lat: 0,
			Values: []float64{5}, Colors: []string{"#4287f5"}, Labels: []string{"Wind"}},
		{ID: 2, Lon: 0.05, Lat: 0,
			Values: []float64{3}, Colors: []string{"#e6c212"}, Labels: []string{"Solar"}},
	})

	w := get(r, "/api/summary?"+viewport)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var summary cluster.ViewSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if summary.TotalSites != 2 || len(summary.Technologies) != 2 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestMarkersDuringIndexSwap(t *testing.T) {
	s, r := testServer(t)
	loadSites(s, []site.Feature{{ID: 1, Lon: 0, Lat: 0,
		Values: []float64{5}, Colors: []string{"#4287f5"}, Labels: []string{"Wind"}}})

	// Marker queries must keep answering while the dataset is replaced
	// underneath them.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if w := get(r, "/api/markers?"+viewport); w.Code != http.StatusOK {
					t.Errorf("Expected 200 during swap, got %d", w.Code)
					return
				}
			}
		}()
	}
	for j := 0; j < 20; j++ {
		loadSites(s, []site.Feature{{ID: uint32(j + 1), Lon: 0, Lat: 0,
			Values: []float64{1}, Colors: []string{"#4287f5"}, Labels: []string{"Wind"}}})
	}
	wg.Wait()
}
