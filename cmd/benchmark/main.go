package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kass/go-fissura/pkg/cluster"
	"github.com/kass/go-fissura/pkg/geo"
	"github.com/kass/go-fissura/pkg/models"
	"github.com/kass/go-fissura/pkg/rtree"
)

type BenchmarkResult struct {
	Mode          string
	Rounds        int
	TotalDuration time.Duration
	AvgDuration   time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
	Buildings     int
}

func main() {
	var (
		numImages  = flag.Int("n", 20000, "Number of synthetic photos")
		numSites   = flag.Int("sites", 2000, "Number of inspection sites photos are scattered around")
		spread     = flag.Float64("spread", 60, "Photo scatter around a site in meters")
		threshold  = flag.Float64("threshold", cluster.DefaultThresholdMeters, "Clustering threshold in meters")
		rounds     = flag.Int("rounds", 3, "Clustering rounds per mode")
		queries    = flag.Int("q", 100000, "Candidate queries against the final centroid index")
		workers    = flag.Int("w", runtime.NumCPU(), "Number of concurrent query workers")
		seed       = flag.Int64("seed", 1, "Random seed")
		skipLinear = flag.Bool("skip-linear", false, "Skip the linear scan baseline")
		// Region photos are drawn from (default: roughly São Paulo)
		minLat = flag.Float64("min-lat", -23.75, "Minimum latitude")
		maxLat = flag.Float64("max-lat", -23.45, "Maximum latitude")
		minLon = flag.Float64("min-lon", -46.80, "Minimum longitude")
		maxLon = flag.Float64("max-lon", -46.40, "Maximum longitude")
	)
	flag.Parse()

	r := rand.New(rand.NewSource(*seed))
	log.Printf("Generating %d photos around %d sites...\n", *numImages, *numSites)
	images := generateImages(r, *numImages, *numSites, *spread, *minLat, *maxLat, *minLon, *maxLon)

	indexed, indexedBuildings := benchmarkCluster("indexed", images, *threshold, *rounds)
	printResult(indexed)

	if !*skipLinear {
		linear, linearBuildings := benchmarkCluster("linear", images, *threshold, *rounds, cluster.WithLinearScan())
		printResult(linear)

		if !sameAssignment(indexedBuildings, linearBuildings) {
			log.Fatalf("indexed and linear clustering disagree")
		}
		fmt.Printf("Assignments identical, speedup %.1fx\n", float64(linear.AvgDuration)/float64(indexed.AvgDuration))
	}

	benchmarkCandidates(r, indexedBuildings, *queries, *workers, *threshold)
}

func generateImages(r *rand.Rand, n, sites int, spread, minLat, maxLat, minLon, maxLon float64) []models.ImageMetadata {
	centers := make([]models.Location, sites)
	for i := range centers {
		centers[i] = models.Location{
			Lat: minLat + r.Float64()*(maxLat-minLat),
			Lon: minLon + r.Float64()*(maxLon-minLon),
		}
	}

	images := make([]models.ImageMetadata, n)
	for i := range images {
		c := centers[r.Intn(sites)]
		dLat := geo.MetersToDegrees(r.NormFloat64() * spread)
		dLon := geo.MetersToDegrees(r.NormFloat64()*spread) / math.Cos(c.Lat*math.Pi/180)
		heading := r.Float64() * 360
		images[i] = models.ImageMetadata{
			Path:           fmt.Sprintf("/photos/IMG_%06d.jpg", i),
			FileName:       fmt.Sprintf("IMG_%06d.jpg", i),
			Location:       &models.Location{Lat: c.Lat + dLat, Lon: c.Lon + dLon},
			HeadingDegrees: &heading,
		}
	}
	return images
}

func benchmarkCluster(mode string, images []models.ImageMetadata, threshold float64, rounds int, opts ...cluster.Option) (BenchmarkResult, []*models.Building) {
	result := BenchmarkResult{Mode: mode, Rounds: rounds, MinDuration: time.Hour}
	var buildings []*models.Building

	n := 0
	opts = append(opts, cluster.WithKeyFunc(func() string {
		n++
		return fmt.Sprintf("b-%d", n)
	}))
	for i := 0; i < rounds; i++ {
		start := time.Now()
		buildings = cluster.New(threshold, opts...).Cluster(images)
		d := time.Since(start)

		result.TotalDuration += d
		result.MinDuration = min(result.MinDuration, d)
		result.MaxDuration = max(result.MaxDuration, d)
	}
	result.Buildings = len(buildings)
	if rounds > 0 {
		result.AvgDuration = result.TotalDuration / time.Duration(rounds)
	}
	return result, buildings
}

func sameAssignment(a, b []*models.Building) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || len(a[i].AllImages) != len(b[i].AllImages) {
			return false
		}
		for j := range a[i].AllImages {
			if a[i].AllImages[j].Path != b[i].AllImages[j].Path {
				return false
			}
		}
	}
	return true
}

func benchmarkCandidates(r *rand.Rand, buildings []*models.Building, numQueries, workers int, radius float64) {
	index := rtree.NewCentroidIndex()
	for i, b := range buildings {
		if err := index.Insert(i, b.Centroid); err != nil {
			log.Fatalf("Failed to index building %s: %v", b.ID, err)
		}
	}
	if len(buildings) == 0 || numQueries <= 0 {
		return
	}

	centers := make([]models.Location, numQueries)
	for i := range centers {
		c := buildings[r.Intn(len(buildings))].Centroid
		centers[i] = models.Location{Lat: c.Lat + geo.MetersToDegrees(r.NormFloat64()*radius), Lon: c.Lon}
	}

	var (
		totalResults atomic.Int64
		wg           sync.WaitGroup
	)
	queryCh := make(chan models.Location, numQueries)
	for _, c := range centers {
		queryCh <- c
	}
	close(queryCh)

	start := time.Now()
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for c := range queryCh {
				totalResults.Add(int64(len(index.Candidates(c, radius))))
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("\n=== Candidate Queries ===")
	fmt.Printf("Indexed centroids: %d\n", index.Count())
	fmt.Printf("Total Queries: %d\n", numQueries)
	fmt.Printf("Total Duration: %v\n", elapsed)
	fmt.Printf("Queries/Second: %.2f\n", float64(numQueries)/elapsed.Seconds())
	fmt.Printf("Avg Candidates/Query: %.2f\n", float64(totalResults.Load())/float64(numQueries))
	fmt.Printf("Workers Used: %d\n", workers)
	fmt.Printf("CPU Cores: %d\n", runtime.NumCPU())
}

func printResult(result BenchmarkResult) {
	fmt.Printf("\n=== Clustering (%s) ===\n", result.Mode)
	fmt.Printf("Rounds: %d\n", result.Rounds)
	fmt.Printf("Total Duration: %v\n", result.TotalDuration)
	fmt.Printf("Average Duration: %v\n", result.AvgDuration)
	fmt.Printf("Min Duration: %v\n", result.MinDuration)
	fmt.Printf("Max Duration: %v\n", result.MaxDuration)
	fmt.Printf("Buildings: %d\n", result.Buildings)
}
