package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"airq-forecast/internal/airq"
	"airq-forecast/internal/dataset"
	"airq-forecast/internal/ingest"
	"airq-forecast/internal/model"
)

var validate = validator.New()

// RefreshRunner is the slice of the ingest refresher the routes need.
type RefreshRunner interface {
	Run(ctx context.Context, limit int, apiKey string) (ingest.Result, error)
	RunBackground(limit int, apiKey string) string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. refreshToken
// gates POST /refresh when non-empty.
func RegisterRoutes(app *fiber.App, svc *airq.Service, refresher RefreshRunner, refreshToken string) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/stations", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 200)

		stations, err := svc.Stations(limit)
		if err != nil {
			return mapDomainError(err)
		}
		return c.JSON(stations)
	})

	app.Get("/predict", func(c *fiber.Ctx) error {
		var req predictQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		forecast, err := svc.PredictStation(req.StationID, req.Horizon)
		if err != nil {
			return mapDomainError(err)
		}
		return c.JSON(forecast)
	})

	app.Get("/predict_by_city", func(c *fiber.Ctx) error {
		var req cityQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		forecast, err := svc.PredictCity(req.City, req.Horizon)
		if err != nil {
			return mapDomainError(err)
		}
		return c.JSON(forecast)
	})

	app.Post("/refresh", func(c *fiber.Ctx) error {
		// Auth runs before any work begins.
		if refreshToken != "" {
			if c.Get("X-Refresh-Token") != refreshToken {
				return fiber.NewError(fiber.StatusForbidden, "Invalid or missing refresh token")
			}
		}

		var req refreshQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if req.Blocking {
			result, err := refresher.Run(c.Context(), req.Limit, req.APIKey)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Fetch failed: "+err.Error())
			}
			return c.JSON(fiber.Map{"status": "ok", "result": result})
		}

		jobID := refresher.RunBackground(req.Limit, req.APIKey)
		return c.JSON(fiber.Map{
			"status":  "scheduled",
			"message": "Fetch scheduled in background. Check logs when done.",
			"job_id":  jobID,
		})
	})
}

// mapDomainError translates domain sentinels into HTTP status codes without
// leaking anything beyond the error message.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, dataset.ErrStationNotFound),
		errors.Is(err, dataset.ErrCityNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, dataset.ErrDatasetMissing),
		errors.Is(err, model.ErrModelMissing):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	var predErr *airq.PredictionError
	if errors.As(err, &predErr) {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

// predictQuery holds query parameters for the single-station forecast.
type predictQuery struct {
	StationID string `validate:"required"`
	Horizon   int    `validate:"min=1,max=168"`
}

func (q *predictQuery) bind(c *fiber.Ctx) error {
	q.StationID = c.Query("station_id")
	q.Horizon = c.QueryInt("horizon", 24)
	return validate.Struct(q)
}

// cityQuery holds query parameters for the city-wide forecast.
type cityQuery struct {
	City    string `validate:"required"`
	Horizon int    `validate:"min=1,max=168"`
}

func (q *cityQuery) bind(c *fiber.Ctx) error {
	q.City = c.Query("city")
	q.Horizon = c.QueryInt("horizon", 24)
	return validate.Struct(q)
}

// refreshQuery holds query parameters for the ingestion refresh trigger.
type refreshQuery struct {
	Blocking bool
	Limit    int    `validate:"min=1,max=5000"`
	APIKey   string // optional upstream key override for this run
}

func (q *refreshQuery) bind(c *fiber.Ctx) error {
	q.Blocking = c.QueryBool("blocking", false)
	q.Limit = c.QueryInt("limit", 1000)
	q.APIKey = c.Query("api_key")
	return validate.Struct(q)
}
