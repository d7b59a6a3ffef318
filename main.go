package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"web/powermap/cluster"
	"web/powermap/config"
	"web/powermap/marker"
	"web/powermap/store"
)

// mapServer owns the site index and serves marker queries against it. The
// index is replaced wholesale when a snapshot or a fresh dataset is loaded;
// the pointer is atomic because gin handles requests concurrently and a
// snapshot load may race an in-flight marker query.
type mapServer struct {
	cfg   *config.Config
	log   *zap.Logger
	index atomic.Pointer[cluster.Index]
}

func (s *mapServer) indexOptions() cluster.Options {
	return cluster.Options{
		MinZoom:  s.cfg.Map.MinZoom,
		MaxZoom:  s.cfg.Map.MaxZoom,
		MinSites: s.cfg.Map.MinSites,
		Radius:   s.cfg.Map.ClusterRadius,
		Extent:   s.cfg.Map.Extent,
		Logger:   s.log,
	}
}

// loadFromStore pulls the site list out of Postgres and rebuilds the index.
func (s *mapServer) loadFromStore(ctx context.Context) error {
	db, err := store.Open(s.cfg.Database.URL, s.cfg.Database.MaxOpenConns,
		s.cfg.Database.MaxIdleConns, s.log)
	if err != nil {
		return err
	}
	defer db.Close()

	sites, err := db.LoadSites(ctx, s.cfg.Map.Technologies)
	if err != nil {
		return err
	}

	ix := cluster.NewIndex(s.indexOptions())
	ix.Load(sites)
	s.index.Store(ix)
	return nil
}

// loadSnapshot replaces the index with one read from a snapshot file.
func (s *mapServer) loadSnapshot(id string) (*cluster.Index, error) {
	path, err := cluster.FindSnapshot(s.cfg.Snapshots.Dir, id)
	if err != nil {
		return nil, err
	}
	return cluster.LoadSnapshot(path, s.log)
}

func parseBounds(c *gin.Context) (cluster.Bounds, int, bool) {
	zoom, err := strconv.Atoi(c.Query("zoom"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid zoom parameter"})
		return cluster.Bounds{}, 0, false
	}

	var b cluster.Bounds
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"west", &b.MinX}, {"south", &b.MinY}, {"east", &b.MaxX}, {"north", &b.MaxY},
	} {
		v, err := strconv.ParseFloat(c.Query(p.name), 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + p.name + " parameter"})
			return cluster.Bounds{}, 0, false
		}
		*p.dst = v
	}
	return b, zoom, true
}

// markerFeature converts a rendered marker into a GeoJSON feature carrying
// the icon markup and tooltip the frontend binds to Leaflet.
func markerFeature(m marker.Marker, id uint32, count int) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{m.Lon, m.Lat})
	f.Properties["id"] = id
	f.Properties["cluster"] = count > 1
	f.Properties["site_count"] = count
	f.Properties["icon"] = m.Icon.Markup
	f.Properties["icon_size"] = []float64{m.Icon.Width, m.Icon.Height}
	f.Properties["icon_anchor"] = []float64{m.Icon.Anchor[0], m.Icon.Anchor[1]}
	f.Properties["tooltip"] = m.Tooltip.Content
	f.Properties["tooltip_direction"] = m.Tooltip.Direction
	f.Properties["tooltip_offset"] = []float64{m.Tooltip.Offset[0], m.Tooltip.Offset[1]}
	f.Properties["tooltip_opacity"] = m.Tooltip.Opacity
	return f
}

func (s *mapServer) handleMarkers(c *gin.Context) {
	ix := s.index.Load()
	if ix == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No dataset loaded"})
		return
	}

	b, zoom, ok := parseBounds(c)
	if !ok {
		return
	}

	view := ix.Clusters(b, zoom)
	fc := geojson.NewFeatureCollection()
	for _, n := range view.Nodes {
		var m marker.Marker
		if n.Count > 1 {
			m = marker.ForCluster(n.ID, n.Lon, n.Lat, view)
		} else {
			m = marker.ForSite(*n.Site)
		}
		fc.Append(markerFeature(m, n.ID, n.Count))
	}

	c.JSON(http.StatusOK, fc)
}

// handleSummary reports the per-technology generation breakdown of the
// current viewport, for the dashboard's side panel.
func (s *mapServer) handleSummary(c *gin.Context) {
	ix := s.index.Load()
	if ix == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No dataset loaded"})
		return
	}

	b, zoom, ok := parseBounds(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, ix.Clusters(b, zoom).Summarize())
}

func (s *mapServer) handleListSnapshots(c *gin.Context) {
	infos, err := cluster.ListSnapshots(s.cfg.Snapshots.Dir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, infos)
}

func (s *mapServer) handleCreateSnapshot(c *gin.Context) {
	var req struct {
		NumSites int `json:"numSites"`
	}
	if err := c.BindJSON(&req); err != nil || req.NumSites <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	// Continental Europe, roughly.
	bounds := cluster.Bounds{MinX: -10, MinY: 36, MaxX: 30, MaxY: 60}
	sites := cluster.GenerateTestSites(req.NumSites, bounds, s.cfg.Map.Technologies)

	ix := cluster.NewIndex(s.indexOptions())
	ix.Load(sites)

	path := cluster.NewSnapshotPath(s.cfg.Snapshots.Dir, ix.Len())
	if err := ix.SaveSnapshot(path); err != nil {
		s.log.Error("snapshot save failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save snapshot"})
		return
	}

	s.index.Store(ix)
	s.log.Info("generated dataset", zap.Int("sites", req.NumSites), zap.String("path", path))
	c.JSON(http.StatusOK, gin.H{"message": "Snapshot created", "numSites": req.NumSites})
}

func (s *mapServer) handleLoadSnapshot(c *gin.Context) {
	id := c.Param("id")

	ix, err := s.loadSnapshot(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.index.Store(ix)
	c.JSON(http.StatusOK, gin.H{"message": "Snapshot loaded", "numSites": ix.Len()})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (env-only when empty)")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	var cfg *config.Config
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		log.Fatal("configuration error", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Snapshots.Dir, 0755); err != nil {
		log.Fatal("failed to create snapshot directory",
			zap.String("dir", cfg.Snapshots.Dir), zap.Error(err))
	}

	server := &mapServer{cfg: cfg, log: log}

	// Prefer the database; fall back to the newest snapshot so the server
	// still comes up when Postgres is unreachable.
	if cfg.Database.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = server.loadFromStore(ctx)
		cancel()
		if err != nil {
			log.Warn("database load failed, trying snapshots", zap.Error(err))
		}
	}
	if server.index.Load() == nil {
		if infos, err := cluster.ListSnapshots(cfg.Snapshots.Dir); err == nil && len(infos) > 0 {
			if ix, err := server.loadSnapshot(infos[0].ID); err == nil {
				server.index.Store(ix)
				log.Info("loaded newest snapshot",
					zap.String("id", infos[0].ID), zap.Int("sites", ix.Len()))
			}
		}
	}
	if server.index.Load() == nil {
		log.Info("no dataset available yet, waiting for snapshot or generation request")
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware())

	r.GET("/api/markers", server.handleMarkers)
	r.GET("/api/summary", server.handleSummary)
	r.GET("/api/snapshots", server.handleListSnapshots)
	r.POST("/api/snapshots", server.handleCreateSnapshot)
	r.POST("/api/snapshots/load/:id", server.handleLoadSnapshot)

	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: r}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}

	// Preserve the in-memory dataset for the next start.
	if ix := server.index.Load(); ix != nil && ix.Len() > 0 {
		path := cluster.NewSnapshotPath(cfg.Snapshots.Dir, ix.Len())
		if err := ix.SaveSnapshot(path); err != nil {
			log.Error("final snapshot save failed", zap.Error(err))
		} else {
			log.Info("final snapshot saved", zap.String("path", path))
		}
	}

	log.Info("server stopped")
}
