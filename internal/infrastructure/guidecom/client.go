package guidecom

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/partscout/backend/internal/domain"
	"github.com/partscout/backend/internal/infrastructure/fetch"
)

const (
	searchPagePath = "/search/index.html"
	listPath       = "/search/list.php"

	orderLowestPrice = "price_0"
	orderPopular     = "reco_goods"
	orderPromotion   = "event_goods"
)

// Connector queries Guidecom's list.php endpoint
type Connector struct {
	fetcher  *fetch.Fetcher
	base     *url.URL
	pageSize int
}

// NewConnector creates a Guidecom connector rooted at baseURL
func NewConnector(fetcher *fetch.Fetcher, baseURL string, pageSize int) (*Connector, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("invalid guidecom base url %q", baseURL)
	}
	if pageSize <= 0 {
		pageSize = 30
	}
	return &Connector{fetcher: fetcher, base: base, pageSize: pageSize}, nil
}

// Source implements domain.SourceConnector
func (c *Connector) Source() domain.SourceID {
	return domain.SourceGuidecom
}

// DiscoverManufacturers derives brand labels from the popular listing,
// since Guidecom exposes no maker facet.
func (c *Connector) DiscoverManufacturers(ctx context.Context, keyword string) ([]domain.RawManufacturer, error) {
	log.Printf("[Guidecom] DiscoverManufacturers called with keyword: %q", keyword)

	doc, _, err := c.listing(ctx, keyword, orderPopular, categoriesFor(keyword))
	if err != nil {
		return nil, err
	}

	makers := parseManufacturers(doc)
	log.Printf("[Guidecom] Extracted %d manufacturers", len(makers))
	if makers == nil {
		makers = []domain.RawManufacturer{}
	}
	return makers, nil
}

// SearchProducts merges the lowest-price, popular and promotion listings.
// Products repeated across listings are kept once, by name. The category
// that answered the first listing is reused for the others.
func (c *Connector) SearchProducts(ctx context.Context, keyword string, manufacturers []string) ([]domain.RawProduct, error) {
	log.Printf("[Guidecom] SearchProducts called with keyword: %q (%d manufacturers)", keyword, len(manufacturers))

	out := []domain.RawProduct{}
	seen := make(map[string]bool)
	categories := categoriesFor(keyword)

	var lastErr error
	answered := false
	for _, order := range []string{orderLowestPrice, orderPopular, orderPromotion} {
		doc, cid, err := c.listing(ctx, keyword, order, categories)
		if err != nil {
			log.Printf("[Guidecom] Listing %s failed: %v", order, err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if !answered {
			answered = true
			categories = []string{cid}
		}

		added := 0
		for _, p := range parseProducts(doc, c.base) {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			out = append(out, p)
			added++
		}
		log.Printf("[Guidecom] Listing %s added %d products", order, added)
	}

	if !answered {
		return nil, lastErr
	}
	return out, nil
}

// listing seeds the session for the order, then posts to list.php with
// each candidate category before an unfiltered request. It returns the
// first document with rows and the category that produced it ("" for
// unfiltered). An answered but empty listing is not an error.
func (c *Connector) listing(ctx context.Context, keyword, order string, categories []string) (*goquery.Document, string, error) {
	referer := c.seed(ctx, keyword, order)
	form := url.Values{
		"keyword": {keyword},
		"order":   {order},
		"lpp":     {fmt.Sprintf("%d", c.pageSize)},
		"page":    {"1"},
		"y":       {"0"},
	}

	var lastErr error
	var lastDoc *goquery.Document
	for _, cid := range withUnfiltered(categories) {
		attempt := url.Values{}
		for k, v := range form {
			attempt[k] = v
		}
		if cid != "" {
			attempt.Set("cid", cid)
		}

		resp, err := c.fetcher.PostForm(ctx, c.endpoint(listPath), attempt, c.ajaxHeader(referer))
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		doc, err := newDocument(resp.Body, resp.ContentType)
		if err != nil {
			lastErr = err
			continue
		}
		if goodsRows(doc).Length() > 0 {
			if cid != "" {
				log.Printf("[Guidecom] Category %s answered for keyword: %q", cid, keyword)
			}
			return doc, cid, nil
		}
		lastDoc = doc
	}

	if lastDoc != nil {
		return lastDoc, "", nil
	}
	return nil, "", lastErr
}

// seed visits the search page for its session cookies; failures are ignored
func (c *Connector) seed(ctx context.Context, keyword, order string) string {
	page := c.endpoint(searchPagePath)
	query := url.Values{"keyword": {keyword}, "order": {order}}
	if _, err := c.fetcher.Get(ctx, page, query, nil); err != nil {
		log.Printf("[Guidecom] Search page visit failed: %v", err)
	}
	return page + "?" + query.Encode()
}

func (c *Connector) ajaxHeader(referer string) http.Header {
	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("Referer", referer)
	h.Set("X-Requested-With", "XMLHttpRequest")
	return h
}

func (c *Connector) endpoint(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

// withUnfiltered returns the category ids followed by "" for the unfiltered request
func withUnfiltered(categories []string) []string {
	out := make([]string, 0, len(categories)+1)
	for _, cid := range categories {
		if cid != "" {
			out = append(out, cid)
		}
	}
	return append(out, "")
}

// categoriesFor guesses Guidecom category ids from the keyword
func categoriesFor(keyword string) []string {
	kw := strings.ToLower(keyword)
	switch {
	case containsAny(kw, "ssd", "nvme", "m.2", "solid"):
		return []string{"8855"}
	case containsAny(kw, "rtx", "gtx", "그래픽", "gpu", "vga"):
		return []string{"8803"}
	case containsAny(kw, "ram", "메모리", "ddr"):
		return []string{"8802"}
	case containsAny(kw, "cpu", "프로세서", "intel", "amd", "라이젠"):
		return []string{"8800"}
	case containsAny(kw, "hdd", "하드", "wd", "seagate"):
		return []string{"8804"}
	default:
		return []string{"8855", "8803", "8802"}
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
