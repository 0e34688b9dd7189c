package testutil

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/arloliu/vario"
)

// TrafficConfig describes simulated visitors.
type TrafficConfig struct {
	// ExperimentID is the experiment under test.
	ExperimentID string

	// Visitors is the number of distinct visitors.
	Visitors int

	// Concurrency is the number of goroutines serving visitors.
	Concurrency int

	// ConversionRates maps variant id to the true conversion probability.
	ConversionRates map[string]float64

	// Seed seeds the conversion draws.
	Seed uint64
}

// TrafficResult summarizes a traffic run.
type TrafficResult struct {
	Impressions map[string]uint64
	Conversions map[string]uint64
	Errors      int64
}

// GenerateTraffic serves cfg.Visitors visitors, spreading them round-robin
// over services. Each visitor gets a variant, one impression, and a
// conversion with its variant's probability.
func GenerateTraffic(ctx context.Context, services []*vario.Service, cfg TrafficConfig) TrafficResult {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}

	var (
		mu     sync.Mutex
		errs   atomic.Int64
		wg     sync.WaitGroup
		result = TrafficResult{
			Impressions: make(map[string]uint64),
			Conversions: make(map[string]uint64),
		}
	)

	visitors := make(chan int)
	for w := range cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()

			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(w)))
			for i := range visitors {
				svc := services[i%len(services)]
				token := fmt.Sprintf("visitor-%d", i)

				choice, err := svc.ChooseVariant(ctx, cfg.ExperimentID, token)
				if err != nil {
					errs.Add(1)
					continue
				}

				if err := svc.RecordImpression(ctx, cfg.ExperimentID, choice.VariantID); err != nil {
					errs.Add(1)
					continue
				}

				converted := rng.Float64() < cfg.ConversionRates[choice.VariantID]
				if converted {
					if err := svc.RecordConversion(ctx, cfg.ExperimentID, choice.VariantID); err != nil {
						errs.Add(1)
						converted = false
					}
				}

				mu.Lock()
				result.Impressions[choice.VariantID]++
				if converted {
					result.Conversions[choice.VariantID]++
				}
				mu.Unlock()
			}
		}()
	}

	for i := range cfg.Visitors {
		select {
		case visitors <- i:
		case <-ctx.Done():
		}
	}
	close(visitors)
	wg.Wait()

	result.Errors = errs.Load()

	return result
}
