package airbnb

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

const (
	searchRequestPath    = "variables.staysSearchRequest"
	mapSearchRequestPath = "variables.staysMapSearchRequestV2"

	defaultRefinementPath = "/homes"
	defaultZoomLevel      = 16
)

// PatchSearchBody applies flags to a search request body template. Filters
// are written into the rawParams of both the list and the map request;
// existing filters are replaced in place, new ones appended. A template that
// is not a JSON object is returned unchanged.
func PatchSearchBody(template []byte, flags domain.ResolvedSearchFlags) ([]byte, error) {
	if !gjson.ParseBytes(template).IsObject() {
		return template, nil
	}

	body := append([]byte(nil), template...)
	var err error
	for _, p := range []string{"variables", searchRequestPath, mapSearchRequestPath} {
		if !gjson.GetBytes(body, p).IsObject() {
			if body, err = sjson.SetRawBytes(body, p, []byte("{}")); err != nil {
				return nil, fmt.Errorf("init %s: %w", p, err)
			}
		}
	}

	bbox := flags.BBox
	filters := [][2]string{
		{"neLat", formatFloat(bbox.North())},
		{"neLng", formatFloat(bbox.East())},
		{"swLat", formatFloat(bbox.South())},
		{"swLng", formatFloat(bbox.West())},
	}
	if flags.QueryAddress != "" {
		filters = append(filters, [2]string{"query", flags.QueryAddress})
	}
	refinement := flags.RefinementPath
	if refinement == "" {
		refinement = defaultRefinementPath
	}
	zoom := flags.ZoomLevel
	if zoom == 0 {
		zoom = defaultZoomLevel
	}
	filters = append(filters,
		[2]string{"refinementPaths", refinement},
		[2]string{"searchByMap", strconv.FormatBool(flags.SearchByMap)},
		[2]string{"searchType", "user_map_move"},
		[2]string{"zoomLevel", strconv.Itoa(zoom)},
	)

	for _, f := range filters {
		for _, req := range []string{searchRequestPath, mapSearchRequestPath} {
			if body, err = setRawParam(body, req, f[0], f[1]); err != nil {
				return nil, err
			}
		}
	}

	sets := []struct {
		path  string
		value any
	}{
		{searchRequestPath + ".maxMapItems", 9999},
		{searchRequestPath + ".skipHydrationListingIds", []string{}},
		{mapSearchRequestPath + ".skipHydrationListingIds", []string{}},
	}
	for _, s := range sets {
		if body, err = sjson.SetBytes(body, s.path, s.value); err != nil {
			return nil, fmt.Errorf("set %s: %w", s.path, err)
		}
	}
	return body, nil
}

func setRawParam(body []byte, request, name, value string) ([]byte, error) {
	params := request + ".rawParams"
	if !gjson.GetBytes(body, params).IsArray() {
		var err error
		if body, err = sjson.SetRawBytes(body, params, []byte("[]")); err != nil {
			return nil, fmt.Errorf("init %s: %w", params, err)
		}
	}

	idx := -1
	gjson.GetBytes(body, params).ForEach(func(k, v gjson.Result) bool {
		if v.Get("filterName").String() == name {
			idx = int(k.Int())
			return false
		}
		return true
	})

	var err error
	if idx >= 0 {
		body, err = sjson.SetBytes(body, fmt.Sprintf("%s.%d.filterValues", params, idx), []string{value})
	} else {
		body, err = sjson.SetBytes(body, params+".-1", map[string]any{
			"filterName":   name,
			"filterValues": []string{value},
		})
	}
	if err != nil {
		return nil, fmt.Errorf("set filter %s on %s: %w", name, request, err)
	}
	return body, nil
}

// PatchDetailURL points a detail request URL at listingID by rewriting the
// id and demandStayListingId members of its JSON "variables" query
// parameter. A blank listingID leaves the URL unchanged.
func PatchDetailURL(rawURL, listingID string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse detail url: %w", err)
	}
	id := strings.TrimSpace(listingID)
	if id == "" {
		return rawURL, nil
	}

	q := u.Query()
	vars := q.Get("variables")
	if !gjson.Valid(vars) || !gjson.Parse(vars).IsObject() {
		if unescaped, err := url.QueryUnescape(vars); err == nil && gjson.Valid(unescaped) && gjson.Parse(unescaped).IsObject() {
			vars = unescaped
		} else {
			vars = "{}"
		}
	}

	if vars, err = sjson.Set(vars, "id", encodeID("StayListing", id)); err != nil {
		return "", fmt.Errorf("set id: %w", err)
	}
	if vars, err = sjson.Set(vars, "demandStayListingId", encodeID("DemandStayListing", id)); err != nil {
		return "", fmt.Errorf("set demandStayListingId: %w", err)
	}

	q.Set("variables", vars)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func encodeID(kind, id string) string {
	return base64.StdEncoding.EncodeToString([]byte(kind + ":" + id))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
