package usecase

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/partscout/backend/internal/domain"
	"golang.org/x/sync/errgroup"
)

// AggregationConfig holds configuration for the aggregation service
type AggregationConfig struct {
	UnitTimeout    time.Duration // bound on one connector call, retries included
	PerSourceLimit int           // products kept per source after dedupe; 0 keeps all
}

// ManufacturerResult is the merged outcome of a manufacturer discovery phase
type ManufacturerResult struct {
	Options  []domain.ManufacturerOption
	Outcomes []domain.SourceOutcome
}

// ProductResult is the merged outcome of a product search phase
type ProductResult struct {
	Products []domain.Product
	Outcomes []domain.SourceOutcome
}

// AggregationService queries every connector concurrently and merges their
// normalized results. Connector order defines source order.
type AggregationService struct {
	connectors     []domain.SourceConnector
	unitTimeout    time.Duration
	perSourceLimit int
}

// NewAggregationService creates an aggregation service over the connectors
func NewAggregationService(connectors []domain.SourceConnector, config AggregationConfig) *AggregationService {
	unitTimeout := config.UnitTimeout
	if unitTimeout <= 0 {
		unitTimeout = 30 * time.Second
	}
	perSourceLimit := config.PerSourceLimit
	if perSourceLimit < 0 {
		perSourceLimit = 0
	}

	return &AggregationService{
		connectors:     connectors,
		unitTimeout:    unitTimeout,
		perSourceLimit: perSourceLimit,
	}
}

// FetchManufacturers discovers manufacturers on every source and returns
// their union as selectable options. When every source fails the result
// still carries the failed outcomes, alongside an *AllSourcesFailedError.
func (s *AggregationService) FetchManufacturers(ctx context.Context, keyword string) (*ManufacturerResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is empty", domain.ErrInvalidInput)
	}

	outcomes, err := s.fanOut(ctx, domain.PhaseManufacturers, func(ctx context.Context, c domain.SourceConnector) domain.SourceOutcome {
		raw, err := c.DiscoverManufacturers(ctx, keyword)
		if err != nil {
			return failedOutcome(c.Source(), domain.PhaseManufacturers, err)
		}
		return domain.SourceOutcome{
			Source:        c.Source(),
			Phase:         domain.PhaseManufacturers,
			Status:        domain.OutcomeOK,
			Manufacturers: sourceOptions(c.Source(), raw),
		}
	})
	if err != nil {
		return nil, err
	}

	result := &ManufacturerResult{
		Options:  mergeOptions(outcomes),
		Outcomes: outcomes,
	}
	log.Printf("[Engine] Manufacturers for %q: %d options from %d sources", keyword, len(result.Options), len(outcomes))

	if allFailed(outcomes) {
		return result, &domain.AllSourcesFailedError{Phase: domain.PhaseManufacturers, Outcomes: outcomes}
	}
	return result, nil
}

// FetchProducts searches every source for the keyword, keeps products of
// the selected manufacturers, dedupes each source, and returns the merged
// list sorted by price with every minimum-price product flagged.
func (s *AggregationService) FetchProducts(ctx context.Context, keyword string, selected []string) (*ProductResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is empty", domain.ErrInvalidInput)
	}
	filter := selectionSet(selected)
	if len(filter) == 0 {
		return nil, fmt.Errorf("%w: no manufacturer selected", domain.ErrInvalidInput)
	}
	names := sortedKeys(filter)

	outcomes, err := s.fanOut(ctx, domain.PhaseProducts, func(ctx context.Context, c domain.SourceConnector) domain.SourceOutcome {
		raw, err := c.SearchProducts(ctx, keyword, names)
		if err != nil {
			return failedOutcome(c.Source(), domain.PhaseProducts, err)
		}

		products := Dedupe(normalizeProducts(c.Source(), raw, filter))
		if s.perSourceLimit > 0 && len(products) > s.perSourceLimit {
			products = products[:s.perSourceLimit]
		}
		log.Printf("[Engine] %s: kept %d of %d products", c.Source(), len(products), len(raw))

		return domain.SourceOutcome{
			Source:   c.Source(),
			Phase:    domain.PhaseProducts,
			Status:   domain.OutcomeOK,
			Products: products,
		}
	})
	if err != nil {
		return nil, err
	}

	result := &ProductResult{
		Products: mergeProducts(outcomes),
		Outcomes: outcomes,
	}
	log.Printf("[Engine] Products for %q: %d merged from %d sources", keyword, len(result.Products), len(outcomes))

	if allFailed(outcomes) {
		return result, &domain.AllSourcesFailedError{Phase: domain.PhaseProducts, Outcomes: outcomes}
	}
	return result, nil
}

type unitFunc func(ctx context.Context, c domain.SourceConnector) domain.SourceOutcome

// fanOut runs one unit per connector on a pool sized to the connector
// count, each writing only its own outcome slot. Units are detached from
// ctx cancellation and bounded by the unit timeout; if ctx ends first the
// phase returns ctx.Err() and the units' results are discarded.
func (s *AggregationService) fanOut(ctx context.Context, phase domain.Phase, unit unitFunc) ([]domain.SourceOutcome, error) {
	outcomes := make([]domain.SourceOutcome, len(s.connectors))
	if len(s.connectors) == 0 {
		return outcomes, nil
	}

	detached := context.WithoutCancel(ctx)
	g := new(errgroup.Group)
	g.SetLimit(len(s.connectors))

	for i, c := range s.connectors {
		g.Go(func() error {
			unitCtx, cancel := context.WithTimeout(detached, s.unitTimeout)
			defer cancel()
			outcomes[i] = runUnit(unitCtx, phase, c, unit)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return outcomes, nil
	case <-ctx.Done():
		log.Printf("[Engine] %s phase abandoned: %v", phase, ctx.Err())
		return nil, ctx.Err()
	}
}

// runUnit converts a connector panic into a failed outcome
func runUnit(ctx context.Context, phase domain.Phase, c domain.SourceConnector, unit unitFunc) (outcome domain.SourceOutcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] %s panicked during %s: %v", c.Source(), phase, r)
			outcome = failedOutcome(c.Source(), phase, fmt.Errorf("connector panic: %v", r))
		}
	}()
	return unit(ctx, c)
}

func failedOutcome(source domain.SourceID, phase domain.Phase, err error) domain.SourceOutcome {
	log.Printf("[Engine] %s failed during %s: %v", source, phase, err)
	return domain.SourceOutcome{
		Source:      source,
		Phase:       phase,
		Status:      domain.OutcomeFailed,
		ErrorDetail: err.Error(),
	}
}

// allFailed is true when no outcome succeeded, including when there are none
func allFailed(outcomes []domain.SourceOutcome) bool {
	for _, o := range outcomes {
		if !o.Failed() {
			return false
		}
	}
	return true
}

// sourceOptions normalizes one source's labels, dropping empty canonicals
// and repeats. The first raw label of a canonical name is kept for display.
func sourceOptions(source domain.SourceID, raw []domain.RawManufacturer) []domain.ManufacturerOption {
	out := make([]domain.ManufacturerOption, 0, len(raw))
	seen := make(map[string]bool, len(raw))

	for _, r := range raw {
		canonical := NormalizeManufacturerLabel(r.Label)
		if canonical == "" || seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, domain.ManufacturerOption{
			CanonicalName: canonical,
			RawLabel:      strings.TrimSpace(r.Label),
			Sources:       []domain.SourceID{source},
		})
	}
	return out
}

// mergeOptions unions per-source options by canonical name. Options are
// ordered by the first source offering them, then by canonical name
// ignoring case.
func mergeOptions(outcomes []domain.SourceOutcome) []domain.ManufacturerOption {
	merged := []domain.ManufacturerOption{}
	firstSource := make(map[string]int)
	index := make(map[string]int)

	for sourceIdx, o := range outcomes {
		for _, opt := range o.Manufacturers {
			if i, ok := index[opt.CanonicalName]; ok {
				merged[i].Sources = append(merged[i].Sources, o.Source)
				continue
			}
			index[opt.CanonicalName] = len(merged)
			firstSource[opt.CanonicalName] = sourceIdx
			merged = append(merged, domain.ManufacturerOption{
				CanonicalName: opt.CanonicalName,
				RawLabel:      opt.RawLabel,
				Sources:       []domain.SourceID{o.Source},
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		si, sj := firstSource[merged[i].CanonicalName], firstSource[merged[j].CanonicalName]
		if si != sj {
			return si < sj
		}
		return strings.ToLower(merged[i].CanonicalName) < strings.ToLower(merged[j].CanonicalName)
	})
	return merged
}

// normalizeProducts converts raw listings, dropping records whose
// manufacturer, price or URL cannot be normalized and records outside the
// selected manufacturers.
func normalizeProducts(source domain.SourceID, raw []domain.RawProduct, selected map[string]bool) []domain.Product {
	out := make([]domain.Product, 0, len(raw))
	dropped := 0

	for _, r := range raw {
		canonical := NormalizeManufacturerLabel(r.ManufacturerLabel)
		if canonical == "" || !selected[canonical] {
			continue
		}
		price, err := NormalizePrice(r.PriceText)
		if err != nil {
			dropped++
			continue
		}
		link := strings.TrimSpace(r.URL)
		if !isAbsoluteURL(link) {
			dropped++
			continue
		}

		out = append(out, domain.Product{
			Name:                  strings.TrimSpace(r.Name),
			PriceAmount:           price,
			SpecSummary:           strings.TrimSpace(r.SpecSummary),
			PurchaseURL:           link,
			Source:                source,
			ManufacturerCanonical: canonical,
		})
	}

	if dropped > 0 {
		log.Printf("[Engine] %s: dropped %d unparseable products", source, dropped)
	}
	return out
}

// mergeProducts concatenates sources in order, stable-sorts by price and
// flags every product at the minimum price.
func mergeProducts(outcomes []domain.SourceOutcome) []domain.Product {
	merged := []domain.Product{}
	for _, o := range outcomes {
		merged = append(merged, o.Products...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PriceAmount < merged[j].PriceAmount
	})

	for i := range merged {
		merged[i].LowestPrice = merged[i].PriceAmount == merged[0].PriceAmount
	}
	return merged
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}

// selectionSet normalizes selected names, ignoring empty ones
func selectionSet(selected []string) map[string]bool {
	set := make(map[string]bool, len(selected))
	for _, name := range selected {
		if canonical := NormalizeManufacturerLabel(name); canonical != "" {
			set[canonical] = true
		}
	}
	return set
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
