package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL      string
	Concurrency  int
	Duration     time.Duration
	SuggestEvery int
	SpreadIPs    bool
	Queries      []string
}

// endpointStats tracks one endpoint's outcomes. Rate-limited answers are
// counted on their own so a 429 storm is not mistaken for server errors.
type endpointStats struct {
	name        string
	total       atomic.Int64
	success     atomic.Int64
	rateLimited atomic.Int64
	failed      atomic.Int64
	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func newEndpointStats(name string) *endpointStats {
	return &endpointStats{
		name:        name,
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

func (s *endpointStats) record(d time.Duration, status int, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
		return
	}
	switch {
	case status >= 200 && status < 300:
		s.success.Add(1)
	case status == http.StatusTooManyRequests:
		s.rateLimited.Add(1)
	default:
		s.failed.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the portal API")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	suggestEvery := flag.Int("suggest-every", 3, "send a suggestions request after every N searches (0 disables)")
	spreadIPs := flag.Bool("spread-ips", false, "give each worker its own X-Forwarded-For address so per-IP rate limits do not dominate")
	flag.Parse()

	cfg := Config{
		BaseURL:      *baseURL,
		Concurrency:  *concurrency,
		Duration:     *duration,
		SuggestEvery: *suggestEvery,
		SpreadIPs:    *spreadIPs,
		Queries: []string{
			"machine learning",
			"distributed systems",
			"robotics",
			"compilers",
			"graduate seminar",
			"thesis defense",
			"algorithms",
			"computer vision",
			"security",
			"open source",
			"dataset",
			"quantum",
		},
	}

	fmt.Println("=== Department Portal Load Test ===")
	fmt.Printf("Target:        %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency:   %d\n", cfg.Concurrency)
	fmt.Printf("Duration:      %s\n", cfg.Duration)
	fmt.Printf("Queries:       %d unique\n", len(cfg.Queries))
	fmt.Printf("Spread IPs:    %t\n", cfg.SpreadIPs)
	fmt.Println()

	search, suggest := run(cfg)
	ok := report(search, cfg.Duration)
	if cfg.SuggestEvery > 0 {
		ok = report(suggest, cfg.Duration) || ok
	}
	if !ok {
		fmt.Println("WARNING: No requests completed. Is the portal running?")
		os.Exit(1)
	}
}

func run(cfg Config) (search, suggest *endpointStats) {
	search = newEndpointStats("search")
	suggest = newEndpointStats("suggestions")
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	fmt.Print("Running")
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	var g errgroup.Group
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			ip := ""
			if cfg.SpreadIPs {
				ip = fmt.Sprintf("198.18.%d.%d", w/250, w%250+1)
			}
			for i := w; ctx.Err() == nil; i++ {
				q := cfg.Queries[i%len(cfg.Queries)]
				hit(ctx, client, search, ip, fmt.Sprintf("%s/api/search?q=%s&limit=10", cfg.BaseURL, url.QueryEscape(q)))

				if cfg.SuggestEvery > 0 && i%cfg.SuggestEvery == 0 {
					prefix := q[:min(len(q), 3)]
					hit(ctx, client, suggest, ip, fmt.Sprintf("%s/api/search/suggestions?q=%s", cfg.BaseURL, url.QueryEscape(prefix)))
				}
			}
			return nil
		})
	}
	g.Wait()

	fmt.Println(" done!")
	fmt.Println()
	return search, suggest
}

func hit(ctx context.Context, client *http.Client, stats *endpointStats, ip, rawURL string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}

	start := time.Now()
	resp, err := client.Do(req)
	d := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			stats.record(d, 0, err)
		}
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	stats.record(d, resp.StatusCode, nil)
}

// report prints one endpoint's results and reports whether any request
// completed.
func report(s *endpointStats, duration time.Duration) bool {
	total := s.total.Load()
	fmt.Printf("=== %s ===\n", s.name)
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", s.success.Load())
	fmt.Printf("Rate limited:    %d\n", s.rateLimited.Load())
	fmt.Printf("Errors:          %d\n", s.failed.Load())
	if total == 0 {
		fmt.Println()
		return false
	}
	fmt.Printf("Error Rate:      %.2f%%\n", float64(s.failed.Load())/float64(total)*100)
	fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())

	s.mu.Lock()
	latencies := slices.Clone(s.latencies)
	codes := make([]int, 0, len(s.statusCodes))
	for code := range s.statusCodes {
		codes = append(codes, code)
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println("Latency:")
		fmt.Printf("  Min:  %s\n", latencies[0])
		fmt.Printf("  Avg:  %s\n", avg)
		fmt.Printf("  P50:  %s\n", percentile(latencies, 50))
		fmt.Printf("  P95:  %s\n", percentile(latencies, 95))
		fmt.Printf("  P99:  %s\n", percentile(latencies, 99))
		fmt.Printf("  Max:  %s\n", latencies[len(latencies)-1])
	}

	slices.Sort(codes)
	fmt.Println("Status Codes:")
	s.mu.Lock()
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, s.statusCodes[code])
	}
	s.mu.Unlock()
	fmt.Println()
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
