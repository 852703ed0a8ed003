package domain

// SourceID identifies one external catalog
type SourceID string

const (
	SourceCompuzone SourceID = "compuzone"
	SourceGuidecom  SourceID = "guidecom"
)

// Phase names a discovery phase of one search flow
type Phase string

const (
	PhaseManufacturers Phase = "manufacturers"
	PhaseProducts      Phase = "products"
)

// OutcomeStatus tells whether a connector call succeeded
type OutcomeStatus string

const (
	OutcomeOK     OutcomeStatus = "ok"
	OutcomeFailed OutcomeStatus = "failed"
)

// RawManufacturer is a manufacturer facet as a source labels it
type RawManufacturer struct {
	Label string `json:"label"`
	Code  string `json:"code,omitempty"` // source-specific id, e.g. Compuzone maker number
}

// RawProduct is a listing as parsed from a source, before normalization
type RawProduct struct {
	Name              string `json:"name"`
	PriceText         string `json:"priceText"`
	SpecSummary       string `json:"specSummary"`
	URL               string `json:"url"`
	ManufacturerLabel string `json:"manufacturerLabel"`
}

// ManufacturerOption is a selectable manufacturer in canonical form.
// Per-source options list exactly one source; merged options list every
// source offering the canonical name, in source order.
type ManufacturerOption struct {
	CanonicalName string     `json:"canonicalName"`
	RawLabel      string     `json:"rawLabel"`
	Sources       []SourceID `json:"sources"`
}

// Product is a normalized listing from one source
type Product struct {
	Name                  string   `json:"name"`
	PriceAmount           int64    `json:"priceAmount"` // KRW, smallest unit
	SpecSummary           string   `json:"specSummary"`
	PurchaseURL           string   `json:"purchaseUrl"`
	Source                SourceID `json:"source"`
	ManufacturerCanonical string   `json:"manufacturerCanonical"`
	LowestPrice           bool     `json:"lowestPrice"`
}

// SourceOutcome is the result-or-failure envelope of one connector call
type SourceOutcome struct {
	Source        SourceID             `json:"source"`
	Phase         Phase                `json:"phase"`
	Status        OutcomeStatus        `json:"status"`
	ErrorDetail   string               `json:"errorDetail,omitempty"`
	Manufacturers []ManufacturerOption `json:"manufacturers,omitempty"`
	Products      []Product            `json:"products,omitempty"`
}

// Failed reports whether the connector call failed
func (o SourceOutcome) Failed() bool {
	return o.Status == OutcomeFailed
}

// ItemCount returns the number of items the outcome contributed
func (o SourceOutcome) ItemCount() int {
	if o.Phase == PhaseManufacturers {
		return len(o.Manufacturers)
	}
	return len(o.Products)
}
