package compuzone

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/partscout/backend/internal/domain"
	"github.com/partscout/backend/internal/infrastructure/fetch"
)

const (
	searchPagePath = "/search/search.htm"
	searchListPath = "/search/search_list.php"

	// pcPartsCategory is the "computer parts" top-level division
	pcPartsCategory = "4"
)

// Connector queries Compuzone's search list endpoint
type Connector struct {
	fetcher  *fetch.Fetcher
	base     *url.URL
	pageSize int

	mu         sync.Mutex
	makerCodes map[string]string // lowercase facet label -> maker number
}

// NewConnector creates a Compuzone connector rooted at baseURL
func NewConnector(fetcher *fetch.Fetcher, baseURL string, pageSize int) (*Connector, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("invalid compuzone base url %q", baseURL)
	}
	if pageSize <= 0 {
		pageSize = 30
	}
	return &Connector{
		fetcher:    fetcher,
		base:       base,
		pageSize:   pageSize,
		makerCodes: make(map[string]string),
	}, nil
}

// Source implements domain.SourceConnector
func (c *Connector) Source() domain.SourceID {
	return domain.SourceCompuzone
}

// DiscoverManufacturers reads the maker facet for the keyword. When the
// facet is missing it falls back to the bracketed brands of listed products.
func (c *Connector) DiscoverManufacturers(ctx context.Context, keyword string) ([]domain.RawManufacturer, error) {
	log.Printf("[Compuzone] DiscoverManufacturers called with keyword: %q", keyword)
	referer := c.seed(ctx, keyword)

	params := c.listParams(keyword, "small", pcPartsCategory, 20)
	params.Set("sub_actype", "maker")

	resp, err := c.fetcher.Get(ctx, c.endpoint(searchListPath), params, c.ajaxHeader(referer))
	if err != nil {
		return nil, err
	}
	doc, err := newDocument(resp.Body, resp.ContentType)
	if err != nil {
		return nil, err
	}

	if makers := parseMakerCheckboxes(doc); len(makers) > 0 {
		log.Printf("[Compuzone] Found %d maker checkboxes", len(makers))
		c.rememberMakerCodes(makers)
		return makers, nil
	}
	if brands := parseBracketBrands(doc); len(brands) > 0 {
		log.Printf("[Compuzone] Maker facet missing, using %d bracketed brands", len(brands))
		return brands, nil
	}

	// Last resort: brands from a regular product listing
	doc, err = c.list(ctx, keyword, c.strategies()[0], referer)
	if err != nil {
		return nil, err
	}
	brands := parseBracketBrands(doc)
	log.Printf("[Compuzone] Extracted %d brands from product listing", len(brands))
	return brands, nil
}

// SearchProducts fetches listings and labels every row with the selected
// manufacturer it names. When discovery saw facet codes for the selection,
// a listing restricted to those makers is tried first. Filtering stays with
// the caller.
func (c *Connector) SearchProducts(ctx context.Context, keyword string, manufacturers []string) ([]domain.RawProduct, error) {
	log.Printf("[Compuzone] SearchProducts called with keyword: %q (%d manufacturers)", keyword, len(manufacturers))
	referer := c.seed(ctx, keyword)

	strategies := c.strategies()
	if codes := c.makerCodesFor(manufacturers); len(codes) > 0 {
		restricted := searchStrategy{
			name:       "selected-makers",
			searchType: "small",
			bigDivNo:   pcPartsCategory,
			makers:     strings.Join(codes, ","),
		}
		strategies = append([]searchStrategy{restricted}, strategies...)
	}

	var lastErr error
	answered := false
	for _, strategy := range strategies {
		doc, err := c.list(ctx, keyword, strategy, referer)
		if err != nil {
			log.Printf("[Compuzone] Strategy %s failed: %v", strategy.name, err)
			lastErr = err
			continue
		}
		answered = true

		products := parseProducts(doc, c.base)
		if len(products) > 0 {
			log.Printf("[Compuzone] Strategy %s returned %d products", strategy.name, len(products))
			onlyMaker := ""
			if strategy.makers != "" && len(manufacturers) == 1 {
				onlyMaker = manufacturers[0]
			}
			labelProducts(products, manufacturers, onlyMaker)
			return products, nil
		}
	}

	if !answered {
		return nil, lastErr
	}
	log.Printf("[Compuzone] No products found for keyword: %q", keyword)
	return []domain.RawProduct{}, nil
}

// searchStrategy is one parameter set for the list endpoint
type searchStrategy struct {
	name       string
	searchType string
	bigDivNo   string
	makers     string // ChkMakerNo, comma separated
}

// strategies are tried in order: PC parts only, every category, total search
func (c *Connector) strategies() []searchStrategy {
	return []searchStrategy{
		{name: "pc-parts", searchType: "small", bigDivNo: pcPartsCategory},
		{name: "all-categories", searchType: "small"},
		{name: "total", searchType: "total"},
	}
}

func (c *Connector) list(ctx context.Context, keyword string, s searchStrategy, referer string) (*goquery.Document, error) {
	params := c.listParams(keyword, s.searchType, s.bigDivNo, c.pageSize)
	if s.makers != "" {
		params.Set("ChkMakerNo", s.makers)
	}
	resp, err := c.fetcher.Get(ctx, c.endpoint(searchListPath), params, c.ajaxHeader(referer))
	if err != nil {
		return nil, err
	}
	return newDocument(resp.Body, resp.ContentType)
}

// seed visits the search page so the site issues its session cookies.
// Failures are ignored; the list endpoint usually answers without them.
func (c *Connector) seed(ctx context.Context, keyword string) string {
	page := c.endpoint(searchPagePath)
	query := url.Values{"SearchProductKey": {keyword}}
	if _, err := c.fetcher.Get(ctx, page, query, nil); err != nil {
		log.Printf("[Compuzone] Search page visit failed: %v", err)
	}
	return page + "?" + query.Encode()
}

func (c *Connector) listParams(keyword, searchType, bigDivNo string, pageCount int) url.Values {
	return url.Values{
		"actype":      {"list"},
		"SearchType":  {searchType},
		"SearchText":  {keyword},
		"PreOrder":    {"sale_order"},
		"PageCount":   {fmt.Sprintf("%d", pageCount)},
		"StartNum":    {"0"},
		"PageNum":     {"1"},
		"ListType":    {"0"},
		"BigDivNo":    {bigDivNo},
		"MediumDivNo": {""},
		"DivNo":       {""},
		"MinPrice":    {"0"},
		"MaxPrice":    {"0"},
		"ChkMakerNo":  {""},
	}
}

func (c *Connector) ajaxHeader(referer string) http.Header {
	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("Referer", referer)
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("Cache-Control", "no-cache")
	return h
}

func (c *Connector) endpoint(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}
