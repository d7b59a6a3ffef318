// Command profiler benchmarks viewport clustering and marker rendering over
// generated datasets, with optional pprof output.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"web/powermap/cluster"
	"web/powermap/marker"
	"web/powermap/site"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile = flag.String("memprofile", "", "write memory profile to file")
	numSites   = flag.Int("sites", 100000, "number of sites to generate")
	zoomLevel  = flag.Int("zoom", 8, "zoom level to profile")
	testall    = flag.Bool("testall", false, "run the full site-count/zoom battery")
)

var profilePalette = []site.Technology{
	{Name: "Wind", Color: "#4287f5"},
	{Name: "Solar", Color: "#e6c212"},
	{Name: "Biomass", Color: "#3c8031"},
	{Name: "Coal", Color: "#3d3d3d"},
}

// europe is the generation region used across the profiling runs.
var europe = cluster.Bounds{MinX: -10, MinY: 36, MaxX: 30, MaxY: 60}

func buildIndex(n int) *cluster.Index {
	ix := cluster.NewIndex(cluster.Options{
		MaxZoom: 16, MinSites: 2, Radius: 40, Extent: 512, NodeSize: 64,
	})
	ix.Load(cluster.GenerateTestSites(n, europe, profilePalette))
	return ix
}

// renderAll runs the full query-to-marker pipeline once and reports how many
// markers came out, so the compiler cannot elide the work.
func renderAll(ix *cluster.Index, zoom int) int {
	view := ix.Clusters(europe, zoom)
	for _, n := range view.Nodes {
		if n.Count > 1 {
			marker.ForCluster(n.ID, n.Lon, n.Lat, view)
		} else {
			marker.ForSite(*n.Site)
		}
	}
	return len(view.Nodes)
}

func runSingleProfile(n, zoom int) {
	fmt.Printf("Profiling with %d sites at zoom level %d\n", n, zoom)

	ix := buildIndex(n)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)

	start := time.Now()
	markers := renderAll(ix, zoom)
	duration := time.Since(start)

	runtime.ReadMemStats(&after)
	allocMB := float64(after.TotalAlloc-before.TotalAlloc) / 1024 / 1024

	fmt.Printf("Rendered %d markers in %v\n", markers, duration)
	fmt.Printf("Memory allocated: %.2f MB\n", allocMB)
}

func runProfileBattery() {
	siteCounts := []int{1000, 10000, 50000, 100000}
	zoomLevels := []int{2, 5, 8, 12, 15}

	fmt.Printf("%-10s | %-6s | %-10s | %-15s | %-12s | %-8s\n",
		"Sites", "Zoom", "Markers", "Duration", "Memory (MB)", "GC Runs")
	fmt.Println("----------------------------------------------------------------------")

	for _, n := range siteCounts {
		ix := buildIndex(n)

		for _, zoom := range zoomLevels {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)

			start := time.Now()
			markers := renderAll(ix, zoom)
			duration := time.Since(start)

			runtime.ReadMemStats(&after)
			memMB := float64(after.TotalAlloc-before.TotalAlloc) / 1024 / 1024
			gcRuns := after.NumGC - before.NumGC

			fmt.Printf("%-10d | %-6d | %-10d | %-15s | %-12.2f | %-8d\n",
				n, zoom, markers, duration, memMB, gcRuns)
		}
		fmt.Println("----------------------------------------------------------------------")
	}
}

func main() {
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			return
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			return
		}
		defer pprof.StopCPUProfile()
	}

	if *testall {
		runProfileBattery()
	} else {
		runSingleProfile(*numSites, *zoomLevel)
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create memory profile: %v\n", err)
			return
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not write memory profile: %v\n", err)
		}
	}
}
