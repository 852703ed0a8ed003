package compuzone

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/partscout/backend/internal/domain"
	"github.com/partscout/backend/internal/infrastructure/fetch"
	"github.com/partscout/backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

const makerFacetHTML = `<div class="maker_list">
<input type="checkbox" class="chkMedium" id="chk2" vals="2" name_vals="삼성전자|2">
<label for="chk2">삼성전자 (12)</label>
<input type="checkbox" class="chkMedium" id="chk6348" vals="6348">
<label for="chk6348">Crucial (4)</label>
<input type="checkbox" class="chkMedium" id="chkBad" vals="abc" name_vals="Bogus|abc">
</div>`

const productListHTML = `<ul>
<li class="li-obj">
  <div class="prd_info_name prdTxt"><a href="/product/product_detail.htm?ProductNo=1001">[삼성전자] 980 PRO M.2 NVMe 1TB</a></div>
  <div class="prd_price"><span class="number">89,000</span>원</div>
  <div class="prd_subTxt">M.2 2280 / PCIe 4.0   / TLC</div>
</li>
<li class="li-obj" data-productno="1002">
  <div class="prd_info_name">[Crucial] P5 Plus 1TB</div>
  <div class="prd_price"><span class="number">95,500</span>원</div>
</li>
<li class="li-obj">
  <div class="prd_info_name"></div>
</li>
</ul>`

func eucKR(t *testing.T, s string) []byte {
	t.Helper()
	out, err := korean.EUCKR.NewEncoder().String(s)
	require.NoError(t, err)
	return []byte(out)
}

func newTestConnector(t *testing.T, serverURL string) *Connector {
	t.Helper()
	f := fetch.New(fetch.Options{
		Name:          "Compuzone",
		Timeout:       time.Second,
		Retries:       0,
		Backoff:       time.Millisecond,
		RatePerSecond: 1000,
		Burst:         100,
	})
	c, err := NewConnector(f, serverURL, 30)
	require.NoError(t, err)
	return c
}

func TestNewConnector_InvalidBaseURL(t *testing.T) {
	_, err := NewConnector(fetch.New(fetch.Options{}), "not a url", 10)
	assert.Error(t, err)
}

func TestConnector_Source(t *testing.T) {
	c := newTestConnector(t, "https://www.compuzone.co.kr")
	assert.Equal(t, domain.SourceCompuzone, c.Source())
}

func TestDiscoverManufacturers_MakerFacet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		switch r.URL.Path {
		case searchPagePath:
			w.Write([]byte("<html></html>"))
		case searchListPath:
			assert.Equal(t, "maker", r.URL.Query().Get("sub_actype"))
			assert.Equal(t, "SSD", r.URL.Query().Get("SearchText"))
			assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
			w.Write(eucKR(t, makerFacetHTML))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := newTestConnector(t, server.URL)
	makers, err := c.DiscoverManufacturers(context.Background(), "SSD")

	require.NoError(t, err)
	assert.Equal(t, []domain.RawManufacturer{
		{Label: "삼성전자", Code: "2"},
		{Label: "Crucial", Code: "6348"},
	}, makers)
}

func TestDiscoverManufacturers_FallsBackToBracketBrands(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		if r.URL.Path == searchListPath {
			w.Write(eucKR(t, productListHTML))
			return
		}
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	c := newTestConnector(t, server.URL)
	makers, err := c.DiscoverManufacturers(context.Background(), "SSD")

	require.NoError(t, err)
	assert.Equal(t, []domain.RawManufacturer{{Label: "삼성전자"}, {Label: "Crucial"}}, makers)
}

func TestDiscoverManufacturers_SourceDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestConnector(t, server.URL)
	makers, err := c.DiscoverManufacturers(context.Background(), "SSD")

	assert.Nil(t, makers)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestSearchProducts_ParsesListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		if r.URL.Path == searchListPath {
			assert.Equal(t, pcPartsCategory, r.URL.Query().Get("BigDivNo"))
			w.Write(eucKR(t, productListHTML))
			return
		}
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	c := newTestConnector(t, server.URL)
	products, err := c.SearchProducts(context.Background(), "SSD", []string{"삼성전자"})

	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "[삼성전자] 980 PRO M.2 NVMe 1TB", products[0].Name)
	assert.Equal(t, "89,000", products[0].PriceText)
	assert.Equal(t, "M.2 2280 / PCIe 4.0 / TLC", products[0].SpecSummary)
	assert.Equal(t, server.URL+"/product/product_detail.htm?ProductNo=1001", products[0].URL)
	assert.Equal(t, "삼성전자", products[0].ManufacturerLabel)

	assert.Equal(t, "Crucial", products[1].ManufacturerLabel)
	assert.Equal(t, server.URL+"/product/product_detail.htm?ProductNo=1002", products[1].URL)
	assert.Equal(t, "", products[1].SpecSummary)
}

const unbracketedListHTML = `<ul>
<li class="li-obj">
  <div class="prd_info_name"><a href="/product/product_detail.htm?ProductNo=2001">삼성전자 980 PRO 1TB</a></div>
  <div class="prd_price"><span class="number">89,000</span>원</div>
</li>
<li class="li-obj">
  <div class="prd_info_name"><a href="/product/product_detail.htm?ProductNo=2002">[마이크론] Crucial P5 Plus 1TB</a></div>
  <div class="prd_price"><span class="number">95,000</span>원</div>
</li>
</ul>`

func TestSearchProducts_SelectedMakersReachEngine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		if r.URL.Path == searchListPath {
			w.Write(eucKR(t, unbracketedListHTML))
			return
		}
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	c := newTestConnector(t, server.URL)
	engine := usecase.NewAggregationService([]domain.SourceConnector{c}, usecase.AggregationConfig{UnitTimeout: 5 * time.Second})

	result, err := engine.FetchProducts(context.Background(), "SSD", []string{"삼성전자", "Crucial"})

	require.NoError(t, err)
	require.Len(t, result.Products, 2)
	assert.Equal(t, "삼성전자 980 PRO 1TB", result.Products[0].Name)
	assert.Equal(t, "삼성전자", result.Products[0].ManufacturerCanonical)
	assert.True(t, result.Products[0].LowestPrice)
	assert.Equal(t, "[마이크론] Crucial P5 Plus 1TB", result.Products[1].Name)
	assert.Equal(t, "crucial", result.Products[1].ManufacturerCanonical)
}

func TestSearchProducts_RestrictsToDiscoveredMakerCodes(t *testing.T) {
	var mu sync.Mutex
	var makerFilters []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		if r.URL.Path != searchListPath {
			w.Write([]byte("<html></html>"))
			return
		}
		if r.URL.Query().Get("sub_actype") == "maker" {
			w.Write(eucKR(t, makerFacetHTML))
			return
		}
		mu.Lock()
		makerFilters = append(makerFilters, r.URL.Query().Get("ChkMakerNo"))
		mu.Unlock()
		w.Write(eucKR(t, `<ul><li class="li-obj"><div class="prd_info_name"><a href="/product/product_detail.htm?ProductNo=3001">P5 Plus 2TB</a></div><div class="prd_price"><span class="number">150,000</span>원</div></li></ul>`))
	}))
	defer server.Close()

	c := newTestConnector(t, server.URL)
	_, err := c.DiscoverManufacturers(context.Background(), "SSD")
	require.NoError(t, err)

	products, err := c.SearchProducts(context.Background(), "SSD", []string{"crucial"})

	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []string{"6348"}, makerFilters)
	mu.Unlock()
	require.Len(t, products, 1)
	assert.Equal(t, "crucial", products[0].ManufacturerLabel)
}

func TestSearchProducts_FallsThroughStrategies(t *testing.T) {
	var listCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		if r.URL.Path != searchListPath {
			w.Write([]byte("<html></html>"))
			return
		}
		atomic.AddInt32(&listCalls, 1)
		if r.URL.Query().Get("SearchType") == "total" {
			w.Write(eucKR(t, productListHTML))
			return
		}
		w.Write([]byte("<ul></ul>"))
	}))
	defer server.Close()

	c := newTestConnector(t, server.URL)
	products, err := c.SearchProducts(context.Background(), "SSD", nil)

	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&listCalls))
}

func TestSearchProducts_NoResultsIsNotAFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<ul></ul>"))
	}))
	defer server.Close()

	c := newTestConnector(t, server.URL)
	products, err := c.SearchProducts(context.Background(), "없는상품", nil)

	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestSearchProducts_AllStrategiesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestConnector(t, server.URL)
	products, err := c.SearchProducts(context.Background(), "SSD", nil)

	assert.Nil(t, products)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestDecode_UTF8Passthrough(t *testing.T) {
	body := []byte("<p>삼성전자</p>")
	out, err := decode(body, "text/html; charset=UTF-8")

	require.NoError(t, err)
	assert.Equal(t, body, out)
}

func TestBracketBrand(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"leading bracket", "[삼성전자] 980 PRO", "삼성전자"},
		{"padded bracket", "[ Western Digital ] SN850X", "Western Digital"},
		{"no bracket", "Crucial P5", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bracketBrand(tt.in))
		})
	}
}
