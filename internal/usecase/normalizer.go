package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/partscout/backend/internal/domain"
)

var (
	// Trailing facet counts such as "삼성전자 (12)"
	labelCountPattern = regexp.MustCompile(`\s*\(\d[\d,]*\)$`)

	// First amount in a price string; "89,000~95,000원" yields "89,000"
	priceAmountPattern = regexp.MustCompile(`\d[\d,]*`)
)

// Distributor and site markers stripped from the end of labels
var vendorSuffixes = []string{
	"(정품)",
	"(병행수입)",
	"(벌크)",
	"(주)",
	"㈜",
	"코리아",
	" korea",
}

// Corporate markers stripped from the start of labels
var vendorPrefixes = []string{
	"(주)",
	"㈜",
}

// manufacturerAliases maps stripped labels to one canonical token.
// Every value must itself normalize to itself.
var manufacturerAliases = map[string]string{
	"samsung":        "삼성전자",
	"삼성":             "삼성전자",
	"samsung전자":      "삼성전자",
	"wd":             "western digital",
	"웨스턴디지털":         "western digital",
	"웨스턴 디지털":        "western digital",
	"westerndigital": "western digital",
	"에이수스":           "asus",
	"기가바이트":          "gigabyte",
	"조텍":             "zotac",
	"엔비디아":           "nvidia",
	"마이크론":           "micron",
	"g.skill":        "gskill",
	"g skill":        "gskill",
	"g-skill":        "gskill",
	"sk하이닉스":         "sk hynix",
	"하이닉스":           "sk hynix",
	"tp-link":        "tp link",
	"씨게이트":           "seagate",
	"킹스톤":            "kingston",
	"인텔":             "intel",
}

// Markers of listings without a purchasable price
var unavailablePriceMarkers = []string{
	"품절",
	"재고없음",
	"문의",
	"단종",
}

// NormalizeManufacturerLabel converts a source's manufacturer label into the
// canonical token used to match the same brand across sources. The result is
// lowercase with single spaces, free of distributor suffixes, and alias-mapped.
// An empty result means the label carried no usable name.
func NormalizeManufacturerLabel(raw string) string {
	label := strings.Join(strings.Fields(strings.ToLower(raw)), " ")

	for {
		stripped := stripVendorMarkers(label)
		if stripped == label {
			break
		}
		label = stripped
	}

	if canonical, ok := manufacturerAliases[label]; ok {
		return canonical
	}
	return label
}

// stripVendorMarkers removes one round of suffixes and prefixes. A marker
// that makes up the whole label is kept.
func stripVendorMarkers(label string) string {
	label = labelCountPattern.ReplaceAllString(label, "")

	for _, suffix := range vendorSuffixes {
		if strings.HasSuffix(label, suffix) && len(label) > len(suffix) {
			label = strings.TrimSpace(strings.TrimSuffix(label, suffix))
		}
	}
	for _, prefix := range vendorPrefixes {
		if strings.HasPrefix(label, prefix) && len(label) > len(prefix) {
			label = strings.TrimSpace(strings.TrimPrefix(label, prefix))
		}
	}
	return strings.TrimSpace(label)
}

// NormalizePrice parses a KRW price string such as "89,000원" or "₩ 1,250,000"
// into an integer amount. Sold-out and inquiry listings, strings without a
// number, and amounts that overflow fail with domain.ErrParseFailure.
func NormalizePrice(raw string) (int64, error) {
	text := strings.TrimSpace(raw)

	for _, marker := range unavailablePriceMarkers {
		if strings.Contains(text, marker) {
			return 0, fmt.Errorf("%w: price unavailable: %q", domain.ErrParseFailure, raw)
		}
	}

	match := priceAmountPattern.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("%w: no amount in price: %q", domain.ErrParseFailure, raw)
	}

	amount, err := strconv.ParseInt(strings.ReplaceAll(match, ",", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: price %q: %v", domain.ErrParseFailure, raw, err)
	}
	return amount, nil
}
