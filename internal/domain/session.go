package domain

import "time"

// SessionState is the position of a search flow in its state machine
type SessionState string

const (
	StateIdle                 SessionState = "idle"
	StateManufacturersFetched SessionState = "manufacturers_fetched"
	StateProductsFetched      SessionState = "products_fetched"
)

// SearchSession holds the state and accumulated data of one search flow.
// It is a plain value: transitions take a session and return a new one.
type SearchSession struct {
	ID                    string               `json:"id"`
	Keyword               string               `json:"keyword"`
	State                 SessionState         `json:"state"`
	SelectedManufacturers []string             `json:"selectedManufacturers"`
	ManufacturerOptions   []ManufacturerOption `json:"manufacturerOptions"`
	Products              []Product            `json:"products"`
	SourceOutcomes        []SourceOutcome      `json:"sourceOutcomes"`
	CreatedAt             time.Time            `json:"createdAt"`
	UpdatedAt             time.Time            `json:"updatedAt"`
	Revision              int64                `json:"revision"`
}

// IsSelected reports whether the canonical manufacturer name is selected
func (s SearchSession) IsSelected(canonical string) bool {
	for _, name := range s.SelectedManufacturers {
		if name == canonical {
			return true
		}
	}
	return false
}

// Clone returns a deep copy that shares no slices with s
func (s SearchSession) Clone() SearchSession {
	c := s
	c.SelectedManufacturers = append([]string(nil), s.SelectedManufacturers...)
	c.ManufacturerOptions = cloneOptions(s.ManufacturerOptions)
	c.Products = append([]Product(nil), s.Products...)
	c.SourceOutcomes = make([]SourceOutcome, len(s.SourceOutcomes))
	for i, o := range s.SourceOutcomes {
		o.Manufacturers = cloneOptions(o.Manufacturers)
		o.Products = append([]Product(nil), o.Products...)
		c.SourceOutcomes[i] = o
	}
	return c
}

func cloneOptions(options []ManufacturerOption) []ManufacturerOption {
	out := append([]ManufacturerOption(nil), options...)
	for i := range out {
		out[i].Sources = append([]SourceID(nil), out[i].Sources...)
	}
	return out
}
