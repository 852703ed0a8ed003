package compuzone

import (
	"sort"
	"strings"

	"github.com/partscout/backend/internal/domain"
)

// brandTerms lists other spellings under which a canonical manufacturer
// shows up in Compuzone product names
var brandTerms = map[string][]string{
	"삼성전자":            {"삼성", "samsung"},
	"western digital": {"wd", "웨스턴디지털", "웨스턴 디지털"},
	"micron":          {"마이크론"},
	"seagate":         {"씨게이트", "시게이트"},
	"kingston":        {"킹스톤"},
	"sk hynix":        {"하이닉스", "hynix"},
	"asus":            {"에이수스"},
	"gigabyte":        {"기가바이트"},
	"zotac":           {"조텍"},
	"nvidia":          {"엔비디아", "지포스", "geforce", "rtx", "gtx"},
	"amd":             {"라이젠", "ryzen", "라데온", "radeon"},
	"intel":           {"인텔"},
	"gskill":          {"g.skill", "g skill", "지스킬"},
	"tp link":         {"tp-link", "티피링크"},
}

// mentions reports whether lowercase text names the canonical manufacturer
func mentions(text, canonical string) bool {
	if canonical == "" {
		return false
	}
	if strings.Contains(text, canonical) || strings.Contains(text, strings.ReplaceAll(canonical, " ", "")) {
		return true
	}
	for _, term := range brandTerms[canonical] {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// matchBrand returns the first selected manufacturer named in text
func matchBrand(text string, manufacturers []string) string {
	text = strings.ToLower(text)
	for _, m := range manufacturers {
		if mentions(text, m) {
			return m
		}
	}
	return ""
}

// labelProducts assigns each row a manufacturer. A selected maker named by
// the bracket brand wins, then one named anywhere in the product name. Rows
// from a listing restricted to a single maker fall back to that maker;
// anything else keeps its raw bracket brand.
func labelProducts(products []domain.RawProduct, manufacturers []string, onlyMaker string) {
	for i := range products {
		bracket := bracketBrand(products[i].Name)

		label := matchBrand(bracket, manufacturers)
		if label == "" {
			label = matchBrand(products[i].Name, manufacturers)
		}
		if label == "" {
			label = onlyMaker
		}
		if label == "" {
			label = bracket
		}
		products[i].ManufacturerLabel = label
	}
}

// rememberMakerCodes records facet codes by lowercase label
func (c *Connector) rememberMakerCodes(makers []domain.RawManufacturer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range makers {
		if m.Code == "" {
			continue
		}
		c.makerCodes[strings.ToLower(m.Label)] = m.Code
	}
}

// makerCodesFor returns the known facet codes whose labels name one of the
// selected manufacturers, sorted
func (c *Connector) makerCodesFor(manufacturers []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := make(map[string]bool)
	for label, code := range c.makerCodes {
		for _, m := range manufacturers {
			if mentions(label, m) {
				set[code] = true
			}
		}
	}

	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
