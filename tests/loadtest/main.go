// Command loadtest drives the wakaproof read API with concurrent GET traffic
// over a window of stored days and prints per-endpoint latency percentiles.
package main

import (
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/pflag"
)

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

type target struct {
	baseURL string
	first   time.Time
	days    int
}

func main() {
	baseURL := pflag.String("url", "http://127.0.0.1:8090", "wakaproof serve address")
	workers := pflag.Int("workers", 50, "concurrent clients")
	duration := pflag.Duration("duration", 10*time.Second, "length of each phase")
	last := pflag.String("last", time.Now().UTC().AddDate(0, 0, -1).Format(time.DateOnly), "last stored day")
	days := pflag.Int("days", 60, "number of days before --last to spread requests over")
	pflag.Parse()

	end, err := time.Parse(time.DateOnly, *last)
	if err != nil {
		fmt.Println("invalid --last:", err)
		return
	}
	tg := target{baseURL: strings.TrimRight(*baseURL, "/"), first: end.AddDate(0, 0, -(*days - 1)), days: *days}

	fmt.Println("=== wakaproof Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s | Days: %s..%s\n\n", *workers, *duration, tg.first.Format(time.DateOnly), *last)

	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(tg.baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	fmt.Println("\n--- Phase 1: Day reads (GET /day) ---")
	runPhase(*workers, *duration, func(rng *rand.Rand) result {
		return tg.get(rng, "/day", "date")
	})

	fmt.Println("\n--- Phase 2: Mixed reads (50% day, 25% week, 15% month, 10% verify) ---")
	runPhase(*workers, *duration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.50:
			return tg.get(rng, "/day", "date")
		case r < 0.75:
			return tg.get(rng, "/week", "date")
		case r < 0.90:
			return tg.get(rng, "/month", "month")
		default:
			return tg.get(rng, "/verify", "date")
		}
	})
}

// get requests path for a random day of the window; 404 counts as success
// since the window may contain days that were never stored.
func (tg target) get(rng *rand.Rand, path, param string) result {
	day := tg.first.AddDate(0, 0, rng.Intn(tg.days))
	value := day.Format(time.DateOnly)
	if param == "month" {
		value = day.Format("2006-01")
	}
	endpoint := "GET " + path
	start := time.Now()
	resp, err := httpClient.Get(fmt.Sprintf("%s%s?%s=%s", tg.baseURL, path, param, value))
	lat := time.Since(start)
	if err != nil {
		return result{endpoint, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{endpoint, resp.StatusCode, lat, resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound}
}

func runPhase(workers int, duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					results <- workFn(rng)
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-14s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 80))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		fmt.Printf("  %-14s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors,
			fmtDur(avgDuration(s.latencies)),
			fmtDur(percentile(s.latencies, 0.50)),
			fmtDur(percentile(s.latencies, 0.95)),
			fmtDur(percentile(s.latencies, 0.99)))
	}

	if totalOps == 0 {
		fmt.Println("  no requests completed")
		return
	}
	fmt.Println("  " + strings.Repeat("-", 80))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, float64(totalOps)/duration.Seconds())
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
