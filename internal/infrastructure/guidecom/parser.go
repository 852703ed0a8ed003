package guidecom

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/partscout/backend/internal/domain"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/korean"
)

const (
	// maxDiscoveryRows is how many listing rows discovery inspects
	maxDiscoveryRows = 50
	maxManufacturers = 12
	maxSpecRunes     = 200
)

var (
	bracketRegex    = regexp.MustCompile(`\[[^\]]+\]`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	digitsOnlyRegex = regexp.MustCompile(`^\d+$`)
	hangulOnlyRegex = regexp.MustCompile(`^[가-힣]+$`)
	brandSepRegex   = regexp.MustCompile(`[\s._/-]+`)
)

var nameSelectors = []string{
	".desc .goodsname1",
	".desc h4.title a",
	"h4.title a",
	".desc .title a",
	".title a",
	".desc a",
	"a",
}

var linkSelectors = []string{
	".desc h4.title a[href]",
	"h4.title a[href]",
	".desc .title a[href]",
	".title a[href]",
	".desc a[href]",
	"a[href]",
}

var specSelectors = []string{
	".desc .feature",
	".feature",
	".desc .spec",
	".spec",
	".desc .description",
	".description",
	".desc .summary",
	".summary",
	".desc ul",
	".desc p",
	".goodsinfo",
}

var priceSelectors = []string{
	".prices .price-large span",
	".price-large span",
	".price-large",
	".prices .price span",
	".price span",
	".price",
	".cost",
}

// Words that precede the brand in Guidecom product names
var noiseWords = []string{
	"신제품", "신상품", "공식인증", "병행수입", "벌크", "정품", "스페셜", "한정판",
	"1월", "2월", "3월", "4월", "5월", "6월", "7월", "8월", "9월", "10월", "11월", "12월",
	"새상품", "리퍼", "중고", "전시", "개봉", "박스", "오픈박스", "리퍼비시",
	"할인", "특가", "세일", "이벤트", "프로모션", "한정", "무료배송", "당일발송",
}

var twoWordBrands = map[string]bool{
	"western digital": true,
	"tp link":         true,
	"g skill":         true,
	"team group":      true,
}

var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`신.*품`),
	regexp.MustCompile(`가격`),
	regexp.MustCompile(`배송`),
	regexp.MustCompile(`발송`),
	regexp.MustCompile(`특가`),
	regexp.MustCompile(`이벤트`),
	regexp.MustCompile(`세일`),
	regexp.MustCompile(`\d+.*월`),
	regexp.MustCompile(`오전|오후|시간`),
}

var genericWords = map[string]bool{
	"할인": true, "무료": true, "당일": true, "빠른": true, "즉시": true, "최저": true,
	"최고": true, "인기": true, "추천": true, "베스트": true, "핫딜": true, "오늘": true,
	"상품": true, "제품": true, "아이템": true, "브랜드": true, "회사": true, "업체": true,
	"택배": true, "서비스": true, "문의": true, "예약": true, "주문": true, "판매": true,
}

// newDocument decodes the body using the declared or sniffed charset.
// Guidecom omits the charset on list.php fragments, which are EUC-KR.
func newDocument(body []byte, contentType string) (*goquery.Document, error) {
	enc, _, certain := charset.DetermineEncoding(body, contentType)
	if !certain {
		enc = korean.EUCKR
	}

	doc, err := goquery.NewDocumentFromReader(enc.NewDecoder().Reader(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// goodsRows returns the listing rows, preferring the #goods-list container
func goodsRows(doc *goquery.Document) *goquery.Selection {
	if rows := doc.Find("#goods-list div.goods-row"); rows.Length() > 0 {
		return rows
	}
	return doc.Find("div.goods-row")
}

func parseProducts(doc *goquery.Document, base *url.URL) []domain.RawProduct {
	var out []domain.RawProduct

	goodsRows(doc).Each(func(_ int, row *goquery.Selection) {
		nameEl := findName(row)
		if nameEl == nil {
			return
		}
		name := cleanText(nameEl.Text())

		out = append(out, domain.RawProduct{
			Name:              name,
			PriceText:         rowPrice(row),
			SpecSummary:       rowSpec(row, name),
			URL:               rowLink(row, nameEl, base),
			ManufacturerLabel: extractManufacturer(name),
		})
	})
	return out
}

// parseManufacturers lists brand labels from the first rows of a listing.
// Labels are unique by their lowercased form.
func parseManufacturers(doc *goquery.Document) []domain.RawManufacturer {
	var out []domain.RawManufacturer
	seen := make(map[string]bool)

	goodsRows(doc).EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i >= maxDiscoveryRows || len(out) >= maxManufacturers {
			return false
		}
		nameEl := findName(row)
		if nameEl == nil {
			return true
		}
		maker := extractManufacturer(cleanText(nameEl.Text()))
		if maker == "" || isGenericManufacturer(maker) {
			return true
		}
		code := brandCode(maker)
		if seen[code] {
			return true
		}
		seen[code] = true
		out = append(out, domain.RawManufacturer{Label: maker, Code: code})
		return true
	})
	return out
}

func findName(row *goquery.Selection) *goquery.Selection {
	for _, selector := range nameSelectors {
		if el := row.Find(selector).First(); el.Length() > 0 && cleanText(el.Text()) != "" {
			return el
		}
	}
	return nil
}

// rowLink takes the href of the name element, its enclosing anchor, or
// the first anchor in the row, resolved against base.
func rowLink(row, nameEl *goquery.Selection, base *url.URL) string {
	href, ok := nameEl.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		href = nameEl.Closest("a[href]").AttrOr("href", "")
	}
	if strings.TrimSpace(href) == "" {
		for _, selector := range linkSelectors {
			if h := row.Find(selector).First().AttrOr("href", ""); strings.TrimSpace(h) != "" {
				href = h
				break
			}
		}
	}

	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func rowSpec(row *goquery.Selection, name string) string {
	spec := ""
	for _, selector := range specSelectors {
		if el := row.Find(selector).First(); el.Length() > 0 {
			if text := cleanText(el.Text()); text != "" && text != name {
				spec = text
				break
			}
		}
	}

	if spec == "" {
		// Fall back to the description text without its links
		desc := row.Find(".desc").First().Clone()
		desc.Find("a").Remove()
		spec = cleanText(desc.Text())
	}

	runes := []rune(spec)
	if len(runes) > maxSpecRunes {
		spec = string(runes[:maxSpecRunes])
	}
	return spec
}

func rowPrice(row *goquery.Selection) string {
	for _, selector := range priceSelectors {
		if el := row.Find(selector).First(); el.Length() > 0 {
			if text := cleanText(el.Text()); strings.ContainsAny(text, "0123456789") {
				return text
			}
		}
	}
	return ""
}

// extractManufacturer returns the first word of the product name that is
// not a promotional marker, joined with the next word for known two-word
// brands. Bracketed prefixes are ignored.
func extractManufacturer(name string) string {
	words := strings.Fields(bracketRegex.ReplaceAllString(name, " "))

	i := 0
	for i < len(words) && isNoiseWord(words[i]) {
		i++
	}
	if i >= len(words) {
		return ""
	}

	maker := words[i]
	if i+1 < len(words) {
		pair := maker + " " + words[i+1]
		if twoWordBrands[normalizeBrand(pair)] {
			maker = pair
		}
	}
	return maker
}

func isNoiseWord(word string) bool {
	for _, noise := range noiseWords {
		if word == noise || strings.Contains(word, noise) {
			return true
		}
	}
	return false
}

func isGenericManufacturer(maker string) bool {
	maker = strings.TrimSpace(maker)
	if len([]rune(maker)) <= 1 || digitsOnlyRegex.MatchString(maker) {
		return true
	}

	lower := strings.ToLower(maker)
	for _, pattern := range genericPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}

	if hangulOnlyRegex.MatchString(maker) {
		if genericWords[maker] {
			return true
		}
		for _, suffix := range []string{"에서", "으로", "부터", "까지", "에게", "하기", "되기", "하는", "되는"} {
			if strings.HasSuffix(maker, suffix) {
				return true
			}
		}
	}
	return false
}

// normalizeBrand folds separators so "TP-Link" and "tp link" compare equal
func normalizeBrand(s string) string {
	return strings.TrimSpace(brandSepRegex.ReplaceAllString(strings.ToLower(s), " "))
}

func brandCode(maker string) string {
	return strings.ReplaceAll(normalizeBrand(maker), " ", "_")
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
