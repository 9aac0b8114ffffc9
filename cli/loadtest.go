package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"products-api/clients"
	"products-api/models"

	"github.com/spf13/cobra"
)

var (
	loadURL         string
	loadRequests    int
	loadConcurrency int
	loadRetry       bool
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Send concurrent creates and report the observed failure rate",
	Long: "Issues --requests POST /products calls from --concurrency workers. Without --retry each call is\n" +
		"a single attempt and the 500 share approximates the configured failure rate; with --retry every\n" +
		"call retries until it succeeds and the report shows how many attempts that took.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loadRequests <= 0 || loadConcurrency <= 0 {
			return fmt.Errorf("requests and concurrency must be positive")
		}
		client := clients.NewProductClient(loadURL)
		report := runLoad(cmd.Context(), client, loadRequests, loadConcurrency, loadRetry)
		report.print(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	loadtestCmd.Flags().StringVar(&loadURL, "url", "http://localhost:3002", "products API base URL")
	loadtestCmd.Flags().IntVar(&loadRequests, "requests", 1000, "number of create calls")
	loadtestCmd.Flags().IntVar(&loadConcurrency, "concurrency", 20, "number of concurrent workers")
	loadtestCmd.Flags().BoolVar(&loadRetry, "retry", false, "retry each create until it succeeds")
	rootCmd.AddCommand(loadtestCmd)
}

type creator interface {
	Create(ctx context.Context, in models.ProductInput) (*models.Product, error)
	CreateWithRetry(ctx context.Context, in models.ProductInput) (*models.Product, int, error)
}

type loadReport struct {
	requests  int64
	succeeded int64
	attempts  int64
	elapsed   time.Duration

	mu       sync.Mutex
	statuses map[int]int64
	errs     []string
}

const maxErrSamples = 10

func (r *loadReport) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var statusErr *clients.StatusError
	switch {
	case err == nil:
		return
	case errors.As(err, &statusErr):
		r.statuses[statusErr.StatusCode]++
	default:
		r.statuses[0]++
		if len(r.errs) < maxErrSamples {
			r.errs = append(r.errs, err.Error())
		}
	}
}

func runLoad(ctx context.Context, client creator, requests, concurrency int, retry bool) *loadReport {
	if ctx == nil {
		ctx = context.Background()
	}
	report := &loadReport{requests: int64(requests), statuses: make(map[int]int64)}
	name := "loadtest"
	jobs := make(chan struct{})

	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				in := models.ProductInput{Name: &name}
				var err error
				attempts := 1
				if retry {
					_, attempts, err = client.CreateWithRetry(ctx, in)
				} else {
					_, err = client.Create(ctx, in)
				}
				atomic.AddInt64(&report.attempts, int64(attempts))
				if err == nil {
					atomic.AddInt64(&report.succeeded, 1)
				}
				report.record(err)
			}
		}()
	}

	for i := 0; i < requests; i++ {
		jobs <- struct{}{}
	}
	close(jobs)
	wg.Wait()
	report.elapsed = time.Since(start)
	return report
}

// FailureRate is the share of calls that did not end in 201.
func (r *loadReport) FailureRate() float64 {
	if r.requests == 0 {
		return 0
	}
	return float64(r.requests-r.succeeded) / float64(r.requests)
}

func (r *loadReport) print(w io.Writer) {
	fmt.Fprintf(w, "Requests:     %d\n", r.requests)
	fmt.Fprintf(w, "Succeeded:    %d\n", r.succeeded)
	fmt.Fprintf(w, "Attempts:     %d\n", r.attempts)
	fmt.Fprintf(w, "Failure rate: %.3f\n", r.FailureRate())
	fmt.Fprintf(w, "Elapsed:      %s\n", r.elapsed.Round(time.Millisecond))

	codes := make([]int, 0, len(r.statuses))
	for code := range r.statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		label := fmt.Sprintf("%d", code)
		if code == 0 {
			label = "transport"
		}
		fmt.Fprintf(w, "  %-10s %d\n", label, r.statuses[code])
	}
	for _, e := range r.errs {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
}
