package domain

import (
	"encoding/json"
	"time"
)

// Strategy names the viewport tier that produced a search result.
type Strategy string

const (
	StrategyMetersPrimary         Strategy = "metersPrimary"
	StrategyMetersPrimaryExpanded Strategy = "metersPrimaryExpanded"
	StrategyZoomFallback          Strategy = "zoomFallback"
)

// ViewportMeta records which tier produced the final viewport and its size.
type ViewportMeta struct {
	Strategy     Strategy `json:"strategy"`
	WidthMeters  float64  `json:"width_meters"`
	HeightMeters float64  `json:"height_meters"`
	SafetyMeters float64  `json:"safety_meters"`
}

// ResolvedSearchFlags is everything a rental search needs besides credentials.
type ResolvedSearchFlags struct {
	BBox           BoundingBox `json:"bbox"`
	ZoomLevel      int         `json:"zoom_level"`
	QueryAddress   string      `json:"query_address"`
	RefinementPath string      `json:"refinement_path"`
	SearchByMap    bool        `json:"search_by_map"`
}

// ListingsResult is the outcome of viewport resolution.
type ListingsResult struct {
	ListingIDs   []string     `json:"listing_ids"`
	BBox         BoundingBox  `json:"bbox"`
	ViewportMeta ViewportMeta `json:"viewport_meta"`
	Center       GeoPoint     `json:"center"`
}

// StructuredItem is a titled entry from a listing detail payload.
type StructuredItem struct {
	Title  string          `json:"title,omitempty"`
	Action json.RawMessage `json:"action,omitempty"`
}

// DerivedRecord is the data extracted from one listing detail response.
type DerivedRecord struct {
	ListingID       string           `json:"listing_id"`
	HTMLTexts       []string         `json:"html_texts"`
	StructuredItems []StructuredItem `json:"structured_items"`
	Lat             *float64         `json:"lat,omitempty"`
	Lng             *float64         `json:"lng,omitempty"`
}

// ListingSummary is the presentation form of a DerivedRecord.
type ListingSummary struct {
	ListingID      string   `json:"listing_id"`
	URL            string   `json:"url"`
	Platform       string   `json:"platform"`
	Guests         string   `json:"guests,omitempty"`
	Bedrooms       string   `json:"bedrooms,omitempty"`
	Beds           string   `json:"beds,omitempty"`
	Baths          string   `json:"baths,omitempty"`
	BedroomCount   *float64 `json:"bedroom_count,omitempty"`
	BathCount      *float64 `json:"bath_count,omitempty"`
	Description    string   `json:"description,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lng            *float64 `json:"lng,omitempty"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

// ListingsReport is the full answer for one address. It is also the payload
// of the listings-fetched event.
type ListingsReport struct {
	Address      string           `json:"address"`
	Center       GeoPoint         `json:"center"`
	BBox         BoundingBox      `json:"bbox"`
	ViewportMeta ViewportMeta     `json:"viewport_meta"`
	Listings     []ListingSummary `json:"listings"`
	FetchedAt    time.Time        `json:"fetched_at"`
}

// JobStatus is the lifecycle state of an asynchronous listings job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job tracks an asynchronous listings lookup.
type Job struct {
	ID        string          `json:"id"`
	Address   string          `json:"address"`
	TimeoutMs int64           `json:"timeout_ms"`
	Status    JobStatus       `json:"status"`
	ErrorKind ErrorKind       `json:"error_kind,omitempty"`
	Error     string          `json:"error,omitempty"`
	Report    *ListingsReport `json:"report,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	return j.Status == JobSucceeded || j.Status == JobFailed
}
