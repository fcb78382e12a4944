package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/rentalscope/internal/pkg/geospatial"
)

// lookupRequest is the body of POST /v1/listings and POST /v1/jobs.
type lookupRequest struct {
	Address   string `json:"address"`
	TimeoutMs *int64 `json:"timeout_ms"`
}

// timeoutFrom converts an optional timeout_ms into a duration. A missing
// value uses the configured default.
func (d *Dependencies) timeoutFrom(ms *int64) (time.Duration, string) {
	if ms == nil {
		return d.callTimeout(), ""
	}
	if *ms <= 0 {
		return 0, "timeout_ms must be positive"
	}
	return time.Duration(*ms) * time.Millisecond, ""
}

// parseLookup decodes a lookupRequest. A non-empty message means the body
// was rejected.
func parseLookup(c *fiber.Ctx, deps *Dependencies) (string, time.Duration, string) {
	var req lookupRequest
	if err := c.BodyParser(&req); err != nil {
		return "", 0, "invalid request body"
	}
	timeout, msg := deps.timeoutFrom(req.TimeoutMs)
	return req.Address, timeout, msg
}

// ViewportHandler resolves the search viewport for ?address= and returns the
// listing ids in it. ?format=geojson returns the box and center as GeoJSON.
func ViewportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		address := c.Query("address")
		if strings.TrimSpace(address) == "" {
			return errBadRequest(c, "address query parameter is required")
		}
		var ms *int64
		if raw := c.QueryInt("timeout_ms", -1); raw != -1 {
			v := int64(raw)
			ms = &v
		}
		timeout, msg := deps.timeoutFrom(ms)
		if msg != "" {
			return errBadRequest(c, msg)
		}

		res, err := deps.Listings.Viewport(c.UserContext(), address, timeout)
		if err != nil {
			return errFrom(c, err)
		}

		if c.Query("format") == "geojson" {
			fc := geospatial.ViewportGeoJSON(res.Center, res.BBox, res.ViewportMeta)
			data, err := fc.MarshalJSON()
			if err != nil {
				return errInternal(c, err.Error())
			}
			c.Set(fiber.HeaderContentType, "application/geo+json")
			return c.Send(data)
		}
		return c.JSON(res)
	}
}

// FindListingsHandler runs the full pipeline synchronously.
func FindListingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		address, timeout, msg := parseLookup(c, deps)
		if msg != "" {
			return errBadRequest(c, msg)
		}

		report, err := deps.Listings.FindListings(c.UserContext(), address, timeout)
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(report)
	}
}

// ListStoredHandler returns recorded listings, most recently seen first.
func ListStoredHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 20)

		items, total, err := deps.Listings.Stored(c.UserContext(), offset, limit)
		if err != nil {
			return errFrom(c, err)
		}

		// Stored clamps out-of-range values; echo what was applied.
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: items, Pagination: pg})
	}
}

// GetStoredHandler returns one recorded listing.
func GetStoredHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		listing, err := deps.Listings.GetStored(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(listing)
	}
}

// SubmitJobHandler queues an asynchronous listings lookup.
func SubmitJobHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Jobs == nil {
			return newError(c, fiber.StatusServiceUnavailable, "unavailable", "asynchronous jobs are not configured")
		}
		address, timeout, msg := parseLookup(c, deps)
		if msg != "" {
			return errBadRequest(c, msg)
		}

		job, err := deps.Jobs.Submit(c.UserContext(), address, timeout)
		if err != nil {
			return errFrom(c, err)
		}
		c.Set(fiber.HeaderLocation, "/v1/jobs/"+job.ID)
		return c.Status(fiber.StatusAccepted).JSON(job)
	}
}

// GetJobHandler returns a job's status, and its report once it succeeded.
func GetJobHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Jobs == nil {
			return errNotFound(c, "job not found")
		}
		job, err := deps.Jobs.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(job)
	}
}
