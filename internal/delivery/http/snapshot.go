package http

import (
	"github.com/partscout/backend/internal/domain"
)

// SessionSnapshot is the JSON rendering of a search session
type SessionSnapshot struct {
	ID               string             `json:"id"`
	Keyword          string             `json:"keyword"`
	State            string             `json:"state"`
	Revision         int64              `json:"revision"`
	Manufacturers    []ManufacturerView `json:"manufacturers"`
	Products         []ProductView      `json:"products"`
	Outcomes         []OutcomeView      `json:"outcomes"`
	AllSourcesFailed bool               `json:"allSourcesFailed"`
}

// ManufacturerView is one selectable manufacturer
type ManufacturerView struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Sources  []string `json:"sources"`
	Selected bool     `json:"selected"`
}

// ProductView is one product row
type ProductView struct {
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	Spec         string `json:"spec"`
	URL          string `json:"url"`
	Source       string `json:"source"`
	Manufacturer string `json:"manufacturer"`
	LowestPrice  bool   `json:"lowestPrice"`
}

// OutcomeView summarizes one connector call
type OutcomeView struct {
	Source    string `json:"source"`
	Phase     string `json:"phase"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	ItemCount int    `json:"itemCount"`
}

// NewSessionSnapshot renders s for clients
func NewSessionSnapshot(s domain.SearchSession) SessionSnapshot {
	snapshot := SessionSnapshot{
		ID:            s.ID,
		Keyword:       s.Keyword,
		State:         string(s.State),
		Revision:      s.Revision,
		Manufacturers: make([]ManufacturerView, 0, len(s.ManufacturerOptions)),
		Products:      make([]ProductView, 0, len(s.Products)),
		Outcomes:      outcomeViews(s.SourceOutcomes),
	}

	for _, opt := range s.ManufacturerOptions {
		sources := make([]string, 0, len(opt.Sources))
		for _, src := range opt.Sources {
			sources = append(sources, string(src))
		}
		snapshot.Manufacturers = append(snapshot.Manufacturers, ManufacturerView{
			Name:     opt.CanonicalName,
			Label:    opt.RawLabel,
			Sources:  sources,
			Selected: s.IsSelected(opt.CanonicalName),
		})
	}

	for _, p := range s.Products {
		snapshot.Products = append(snapshot.Products, ProductView{
			Name:         p.Name,
			Price:        p.PriceAmount,
			Spec:         p.SpecSummary,
			URL:          p.PurchaseURL,
			Source:       string(p.Source),
			Manufacturer: p.ManufacturerCanonical,
			LowestPrice:  p.LowestPrice,
		})
	}

	snapshot.AllSourcesFailed = latestPhaseFailed(s.SourceOutcomes)
	return snapshot
}

func outcomeViews(outcomes []domain.SourceOutcome) []OutcomeView {
	views := make([]OutcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		views = append(views, OutcomeView{
			Source:    string(o.Source),
			Phase:     string(o.Phase),
			Status:    string(o.Status),
			Error:     o.ErrorDetail,
			ItemCount: o.ItemCount(),
		})
	}
	return views
}

// latestPhaseFailed reports whether every outcome of the most recent phase failed
func latestPhaseFailed(outcomes []domain.SourceOutcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	phase := outcomes[len(outcomes)-1].Phase
	for _, o := range outcomes {
		if o.Phase == phase && !o.Failed() {
			return false
		}
	}
	return true
}
