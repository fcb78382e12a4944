package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the listing services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	metaType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ViewportMeta",
		Fields: graphql.Fields{
			"strategy":      &graphql.Field{Type: graphql.String},
			"width_meters":  &graphql.Field{Type: graphql.Float},
			"height_meters": &graphql.Field{Type: graphql.Float},
			"safety_meters": &graphql.Field{Type: graphql.Float},
		},
	})

	viewportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Viewport",
		Fields: graphql.Fields{
			"listing_ids":   &graphql.Field{Type: graphql.NewList(graphql.String)},
			"bbox":          &graphql.Field{Type: graphql.NewList(graphql.Float), Description: "[north, east, south, west]"},
			"viewport_meta": &graphql.Field{Type: metaType},
			"center":        &graphql.Field{Type: geoPointType},
		},
	})

	listingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Listing",
		Fields: graphql.Fields{
			"listing_id":      &graphql.Field{Type: graphql.String},
			"url":             &graphql.Field{Type: graphql.String},
			"platform":        &graphql.Field{Type: graphql.String},
			"guests":          &graphql.Field{Type: graphql.String},
			"bedrooms":        &graphql.Field{Type: graphql.String},
			"beds":            &graphql.Field{Type: graphql.String},
			"baths":           &graphql.Field{Type: graphql.String},
			"bedroom_count":   &graphql.Field{Type: graphql.Float},
			"bath_count":      &graphql.Field{Type: graphql.Float},
			"description":     &graphql.Field{Type: graphql.String},
			"lat":             &graphql.Field{Type: graphql.Float},
			"lng":             &graphql.Field{Type: graphql.Float},
			"distance_meters": &graphql.Field{Type: graphql.Float},
		},
	})

	reportType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ListingsReport",
		Fields: graphql.Fields{
			"address":       &graphql.Field{Type: graphql.String},
			"center":        &graphql.Field{Type: geoPointType},
			"bbox":          &graphql.Field{Type: graphql.NewList(graphql.Float)},
			"viewport_meta": &graphql.Field{Type: metaType},
			"listings":      &graphql.Field{Type: graphql.NewList(listingType)},
			"fetched_at":    &graphql.Field{Type: graphql.String},
		},
	})

	lookupArgs := graphql.FieldConfigArgument{
		"address":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		"timeout_ms": &graphql.ArgumentConfig{Type: graphql.Int},
	}
	lookupTimeout := func(p graphql.ResolveParams) (time.Duration, error) {
		var ms *int64
		if v, ok := p.Args["timeout_ms"].(int); ok {
			x := int64(v)
			ms = &x
		}
		timeout, msg := deps.timeoutFrom(ms)
		if msg != "" {
			return 0, domain.NewInvalidInputError(msg)
		}
		return timeout, nil
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"viewport": &graphql.Field{
				Type:        viewportType,
				Description: "Resolve the search viewport and listing ids for an address",
				Args:        lookupArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					timeout, err := lookupTimeout(p)
					if err != nil {
						return nil, err
					}
					res, err := deps.Listings.Viewport(p.Context, p.Args["address"].(string), timeout)
					if err != nil {
						return nil, err
					}
					return viewportMap(res), nil
				},
			},
			"listings": &graphql.Field{
				Type:        reportType,
				Description: "Fetch and summarise every listing around an address",
				Args:        lookupArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					timeout, err := lookupTimeout(p)
					if err != nil {
						return nil, err
					}
					report, err := deps.Listings.FindListings(p.Context, p.Args["address"].(string), timeout)
					if err != nil {
						return nil, err
					}
					return reportMap(report), nil
				},
			},
			"storedListing": &graphql.Field{
				Type:        listingType,
				Description: "Get a recorded listing by provider id",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					l, err := deps.Listings.GetStored(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return listingMap(*l), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func geoPointMap(p domain.GeoPoint) map[string]interface{} {
	return map[string]interface{}{"lat": p.Lat, "lng": p.Lng}
}

func metaMap(m domain.ViewportMeta) map[string]interface{} {
	return map[string]interface{}{
		"strategy":      string(m.Strategy),
		"width_meters":  m.WidthMeters,
		"height_meters": m.HeightMeters,
		"safety_meters": m.SafetyMeters,
	}
}

func viewportMap(r *domain.ListingsResult) map[string]interface{} {
	return map[string]interface{}{
		"listing_ids":   r.ListingIDs,
		"bbox":          r.BBox[:],
		"viewport_meta": metaMap(r.ViewportMeta),
		"center":        geoPointMap(r.Center),
	}
}

func listingMap(l domain.ListingSummary) map[string]interface{} {
	m := map[string]interface{}{
		"listing_id":  l.ListingID,
		"url":         l.URL,
		"platform":    l.Platform,
		"guests":      l.Guests,
		"bedrooms":    l.Bedrooms,
		"beds":        l.Beds,
		"baths":       l.Baths,
		"description": l.Description,
	}
	for key, v := range map[string]*float64{
		"bedroom_count":   l.BedroomCount,
		"bath_count":      l.BathCount,
		"lat":             l.Lat,
		"lng":             l.Lng,
		"distance_meters": l.DistanceMeters,
	} {
		if v != nil {
			m[key] = *v
		}
	}
	return m
}

func reportMap(r *domain.ListingsReport) map[string]interface{} {
	listings := make([]map[string]interface{}, 0, len(r.Listings))
	for _, l := range r.Listings {
		listings = append(listings, listingMap(l))
	}
	return map[string]interface{}{
		"address":       r.Address,
		"center":        geoPointMap(r.Center),
		"bbox":          r.BBox[:],
		"viewport_meta": metaMap(r.ViewportMeta),
		"listings":      listings,
		"fetched_at":    r.FetchedAt.Format(time.RFC3339),
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		c.Set(fiber.HeaderCacheControl, "private, max-age=0")
		return c.JSON(result)
	}
}
