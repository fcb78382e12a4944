package usecases

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// Platform is the provider tag of every summary.
const Platform = "airbnb"

var (
	guestsRe   = regexp.MustCompile(`(?i)^(\d+\+?\s*guests?)$`)
	bedroomsRe = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?\s*bedrooms?)$`)
	bedsRe     = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?\s*beds?)$`)
	bathsRe    = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?\s*baths?)$`)

	bedroomCountRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*bedrooms?`)
	bathCountRe    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:private\s+|shared\s+)?baths?`)

	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
	blankLinesRe    = regexp.MustCompile(`\n{3,}`)
	spaceRunRe      = regexp.MustCompile(`[ \t]{2,}`)
)

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true,
	"table": true, "tr": true, "th": true, "td": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// ListingURL returns the public page of a listing.
func ListingURL(listingID string) string {
	return "https://www.airbnb.com/rooms/" + listingID
}

// Summarize turns a derived detail record into its presentation form.
func Summarize(rec domain.DerivedRecord) domain.ListingSummary {
	s := domain.ListingSummary{
		ListingID: rec.ListingID,
		URL:       ListingURL(rec.ListingID),
		Platform:  Platform,
		Guests:    matchTitle(rec.StructuredItems, guestsRe),
		Bedrooms:  matchTitle(rec.StructuredItems, bedroomsRe),
		Beds:      matchTitle(rec.StructuredItems, bedsRe),
		Baths:     matchTitle(rec.StructuredItems, bathsRe),
		Lat:       rec.Lat,
		Lng:       rec.Lng,
	}

	parts := make([]string, 0, len(rec.HTMLTexts))
	for _, h := range rec.HTMLTexts {
		if cleaned := CleanHTML(h); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	s.Description = strings.TrimSpace(strings.Join(parts, "\n\n"))

	titles := make([]string, 0, len(rec.StructuredItems)+1)
	for _, it := range rec.StructuredItems {
		titles = append(titles, it.Title)
	}
	titles = append(titles, s.Description)

	s.BedroomCount = firstCount(bedroomCountRe, titles...)
	s.BathCount = firstCount(bathCountRe, titles...)
	return s
}

func matchTitle(items []domain.StructuredItem, re *regexp.Regexp) string {
	for _, it := range items {
		if it.Title == "" {
			continue
		}
		if m := re.FindString(it.Title); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

// firstCount returns the first number captured by re in the given texts.
func firstCount(re *regexp.Regexp, texts ...string) *float64 {
	for _, t := range texts {
		m := re.FindStringSubmatch(t)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &v
		}
	}
	return nil
}

// CleanHTML renders an HTML fragment as plain text. Line breaks and block
// elements become newlines, entities are decoded and whitespace is collapsed.
func CleanHTML(input string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return strings.TrimSpace(input)
	}

	var b strings.Builder
	writeText(&b, doc.Find("body").First())

	out := strings.ReplaceAll(b.String(), "\u00a0", " ")
	out = trailingSpaceRe.ReplaceAllString(out, "\n")
	out = blankLinesRe.ReplaceAllString(out, "\n\n")
	out = spaceRunRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

func writeText(b *strings.Builder, sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		n := c.Get(0)
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			switch {
			case n.Data == "br":
				b.WriteString("\n")
			case n.Data == "script" || n.Data == "style":
			case blockTags[n.Data]:
				b.WriteString("\n")
				writeText(b, c)
				b.WriteString("\n")
			default:
				writeText(b, c)
			}
		}
	})
}
