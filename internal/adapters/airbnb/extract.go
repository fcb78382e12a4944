package airbnb

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

const (
	typeBasicListItem   = "PdpSbuiBasicListItem"
	typeLocationSection = "LocationSection"
)

// ExtractListingIDs returns every staysInViewport[].listingId string in
// document order, without duplicates.
func ExtractListingIDs(root gjson.Result) []string {
	ids := []string{}
	seen := map[string]bool{}
	walk(root, func(obj gjson.Result) {
		stays := obj.Get("staysInViewport")
		if !stays.IsArray() {
			return
		}
		stays.ForEach(func(_, stay gjson.Result) bool {
			if !stay.IsObject() {
				return true
			}
			id := stay.Get("listingId")
			if id.Type == gjson.String && !seen[id.Str] {
				seen[id.Str] = true
				ids = append(ids, id.Str)
			}
			return true
		})
	})
	return ids
}

// ExtractDerived builds a DerivedRecord from a listing detail payload: the
// unique htmlText strings, the basic list items and the first location
// section carrying numeric coordinates.
func ExtractDerived(root gjson.Result, listingID string) domain.DerivedRecord {
	rec := domain.DerivedRecord{
		ListingID:       listingID,
		HTMLTexts:       []string{},
		StructuredItems: []domain.StructuredItem{},
	}
	seenHTML := map[string]bool{}
	located := false

	walk(root, func(obj gjson.Result) {
		if h := obj.Get("htmlText"); h.Type == gjson.String && !seenHTML[h.Str] {
			seenHTML[h.Str] = true
			rec.HTMLTexts = append(rec.HTMLTexts, h.Str)
		}

		switch obj.Get("__typename").String() {
		case typeBasicListItem:
			item := domain.StructuredItem{}
			if t := obj.Get("title"); t.Type == gjson.String {
				item.Title = t.Str
			}
			if a := obj.Get("action"); a.Exists() {
				item.Action = json.RawMessage(a.Raw)
			}
			rec.StructuredItems = append(rec.StructuredItems, item)
		case typeLocationSection:
			if located {
				return
			}
			lat, lng := obj.Get("lat"), obj.Get("lng")
			if lat.Type == gjson.Number && lng.Type == gjson.Number {
				la, ln := lat.Num, lng.Num
				rec.Lat, rec.Lng = &la, &ln
				located = true
			}
		}
	})
	return rec
}
