package compuzone

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/partscout/backend/internal/domain"
	"golang.org/x/text/encoding/korean"
)

// maxManufacturers caps the facet list read from one response
const maxManufacturers = 20

// maxSpecRunes caps the spec summary length
const maxSpecRunes = 200

var (
	bracketBrandRegex = regexp.MustCompile(`\[([^\]]+)\]`)
	labelCountRegex   = regexp.MustCompile(`\s*\(\d[\d,]*\)\s*$`)
	productNoRegex    = regexp.MustCompile(`ProductNo=(\d+)`)
	digitsOnlyRegex   = regexp.MustCompile(`^\d+$`)
	whitespaceRegex   = regexp.MustCompile(`\s+`)
)

// Checkbox selectors for the maker facet, most specific first
var makerCheckboxSelectors = []string{
	`input[name_vals*="|"][vals]`,
	`input[class*="chkMedium"][vals]`,
	`input[onclick*="chk_maker"][vals]`,
	`input[id^="chk"][vals]`,
}

// Row selectors for product listings, most specific first
var productRowSelectors = []string{
	"li.li-obj",
	".product-item",
	".prd-item",
	".goods-item",
}

var priceSelectors = []string{
	".prd_price .number",
	".prd_price .price",
	".price_sect .number",
	".price .number",
	".prd_price",
}

// decode converts a Compuzone response body to UTF-8. The site serves
// EUC-KR unless the content type says otherwise.
func decode(body []byte, contentType string) ([]byte, error) {
	if strings.Contains(strings.ToLower(contentType), "utf-8") {
		return body, nil
	}
	out, err := korean.EUCKR.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode euc-kr: %w", err)
	}
	return out, nil
}

func newDocument(body []byte, contentType string) (*goquery.Document, error) {
	utf8Body, err := decode(body, contentType)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// parseMakerCheckboxes reads the maker facet checkboxes. Labels come from
// name_vals ("Brand|ID") or from the matching <label for=...>.
func parseMakerCheckboxes(doc *goquery.Document) []domain.RawManufacturer {
	var out []domain.RawManufacturer
	seenCodes := make(map[string]bool)
	seenLabels := make(map[string]bool)

	for _, selector := range makerCheckboxSelectors {
		doc.Find(selector).Each(func(_ int, box *goquery.Selection) {
			if len(out) >= maxManufacturers {
				return
			}
			code := strings.TrimSpace(box.AttrOr("vals", ""))
			if !digitsOnlyRegex.MatchString(code) || seenCodes[code] {
				return
			}

			label := ""
			if nameVals := box.AttrOr("name_vals", ""); strings.Contains(nameVals, "|") {
				label = strings.TrimSpace(strings.SplitN(nameVals, "|", 2)[0])
			}
			if label == "" {
				if id := box.AttrOr("id", ""); id != "" {
					text := cleanText(doc.Find(fmt.Sprintf(`label[for=%q]`, id)).First().Text())
					label = labelCountRegex.ReplaceAllString(text, "")
				}
			}
			if label == "" || seenLabels[label] {
				return
			}
			seenCodes[code] = true
			seenLabels[label] = true
			out = append(out, domain.RawManufacturer{Label: label, Code: code})
		})
	}
	return out
}

// parseBracketBrands collects the "[Brand]" prefixes of listed products
func parseBracketBrands(doc *goquery.Document) []domain.RawManufacturer {
	var out []domain.RawManufacturer
	seen := make(map[string]bool)

	productRows(doc).Each(func(_ int, row *goquery.Selection) {
		if len(out) >= maxManufacturers {
			return
		}
		brand := bracketBrand(productName(row))
		if brand == "" || seen[brand] {
			return
		}
		seen[brand] = true
		out = append(out, domain.RawManufacturer{Label: brand})
	})
	return out
}

// parseProducts reads listing rows. Rows without a name are skipped;
// price text is kept raw for the normalizer.
func parseProducts(doc *goquery.Document, base *url.URL) []domain.RawProduct {
	var out []domain.RawProduct

	productRows(doc).Each(func(_ int, row *goquery.Selection) {
		name := productName(row)
		if name == "" {
			return
		}

		out = append(out, domain.RawProduct{
			Name:              name,
			PriceText:         productPrice(row),
			SpecSummary:       productSpec(row),
			URL:               productLink(row, base),
			ManufacturerLabel: bracketBrand(name),
		})
	})
	return out
}

func productRows(doc *goquery.Document) *goquery.Selection {
	for _, selector := range productRowSelectors {
		rows := doc.Find(selector)
		if rows.Length() > 0 {
			return rows
		}
	}
	return doc.Find("li.li-obj")
}

func productName(row *goquery.Selection) string {
	return cleanText(row.Find(".prd_info_name.prdTxt, .prd_info_name").First().Text())
}

func productPrice(row *goquery.Selection) string {
	for _, selector := range priceSelectors {
		if el := row.Find(selector).First(); el.Length() > 0 {
			if text := cleanText(el.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func productSpec(row *goquery.Selection) string {
	spec := cleanText(row.Find(".prd_subTxt").First().Text())
	if spec == "" {
		return ""
	}
	runes := []rune(spec)
	if len(runes) > maxSpecRunes {
		spec = string(runes[:maxSpecRunes])
	}
	return spec
}

// productLink prefers an anchor that carries ProductNo, then any anchor
// around the name, then a data-productno attribute on the row.
func productLink(row *goquery.Selection, base *url.URL) string {
	href := row.Find(`a[href*="ProductNo"]`).First().AttrOr("href", "")
	if href == "" {
		href = row.Find(".prd_info_name a[href], a.prd_info_name[href]").First().AttrOr("href", "")
	}
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		if m := productNoRegex.FindStringSubmatch(href); m != nil {
			return detailURL(base, m[1])
		}
		if no := strings.TrimSpace(row.AttrOr("data-productno", "")); digitsOnlyRegex.MatchString(no) {
			return detailURL(base, no)
		}
		return ""
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func detailURL(base *url.URL, productNo string) string {
	ref := &url.URL{Path: "/product/product_detail.htm", RawQuery: url.Values{"ProductNo": {productNo}}.Encode()}
	return base.ResolveReference(ref).String()
}

func bracketBrand(name string) string {
	m := bracketBrandRegex.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
