package locationiq_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samirrijal/rentalscope/internal/adapters/fetch"
	"github.com/samirrijal/rentalscope/internal/adapters/locationiq"
	"github.com/samirrijal/rentalscope/internal/core/domain"
)

func newGeocoder(t *testing.T, body string, status int) *locationiq.Geocoder {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "k" || q.Get("format") != "json" || q.Get("q") == "" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return locationiq.NewGeocoder(fetch.NewClient(nil), locationiq.Config{BaseURL: srv.URL, APIKey: "k", DefaultTimeout: time.Second})
}

func TestForwardGeocode(t *testing.T) {
	g := newGeocoder(t, `[{"lat":"40.7484","lon":"-73.9857","display_name":"Empire State"},{"lat":"1","lon":"1"}]`, http.StatusOK)

	p, err := g.ForwardGeocode(context.Background(), "350 5th Ave", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lat != 40.7484 || p.Lng != -73.9857 {
		t.Errorf("unexpected point %+v", p)
	}
}

func TestForwardGeocode_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		wantKind domain.ErrorKind
		wantMsg  string
	}{
		{"empty array", `[]`, 200, domain.KindInvalidResponse, "LocationIQ returned no results"},
		{"not an array", `{"error":"Unable to geocode"}`, 200, domain.KindInvalidResponse, "LocationIQ returned no results"},
		{"missing lon", `[{"lat":"1"}]`, 200, domain.KindInvalidResponse, "LocationIQ result missing lat/lon"},
		{"out of range", `[{"lat":"95","lon":"0"}]`, 200, domain.KindInvalidInput, "Latitude must be within [-90, 90], got 95"},
		{"not numeric", `[{"lat":"north","lon":"0"}]`, 200, domain.KindInvalidInput, `Invalid latitude: "north" is not a finite number`},
		{"upstream 404", `{"error":"Unable to geocode"}`, 404, domain.KindInvalidResponse, "HTTP 404 Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGeocoder(t, tt.body, tt.status)
			_, err := g.ForwardGeocode(context.Background(), "somewhere", time.Second)
			if domain.KindOf(err) != tt.wantKind {
				t.Fatalf("expected %s, got %v", tt.wantKind, err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("expected %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}
