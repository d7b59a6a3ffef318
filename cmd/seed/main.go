// Command seed generates a random site dataset and writes it as a snapshot
// the server can load, for development without a database.
package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	"web/powermap/cluster"
	"web/powermap/config"
)

func main() {
	n := flag.Int("n", 10000, "number of sites to generate")
	configPath := flag.String("config", "", "path to YAML config (env-only when empty)")
	out := flag.String("out", "", "output directory (defaults to the configured snapshot dir)")
	flag.Parse()

	log, err := zap.NewDevelopment()
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

	dir := cfg.Snapshots.Dir
	if *out != "" {
		dir = *out
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatal("failed to create output directory", zap.String("dir", dir), zap.Error(err))
	}

	bounds := cluster.Bounds{MinX: -10, MinY: 36, MaxX: 30, MaxY: 60}
	sites := cluster.GenerateTestSites(*n, bounds, cfg.Map.Technologies)

	ix := cluster.NewIndex(cluster.Options{
		MinZoom:  cfg.Map.MinZoom,
		MaxZoom:  cfg.Map.MaxZoom,
		MinSites: cfg.Map.MinSites,
		Radius:   cfg.Map.ClusterRadius,
		Extent:   cfg.Map.Extent,
		Logger:   log,
	})
	ix.Load(sites)

	path := cluster.NewSnapshotPath(dir, ix.Len())
	if err := ix.SaveSnapshot(path); err != nil {
		log.Fatal("failed to save snapshot", zap.Error(err))
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Fatal("failed to stat snapshot", zap.Error(err))
	}
	log.Info("snapshot written",
		zap.String("path", path),
		zap.Int("sites", *n),
		zap.Int64("bytes", info.Size()))
}
