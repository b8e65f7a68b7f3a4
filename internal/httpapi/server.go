package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"ordercancel/internal"
	"ordercancel/internal/pipeline"
	"ordercancel/internal/predict"
	"ordercancel/internal/review"
	"ordercancel/internal/storage"
)

type Predictor interface {
	Predict(name string, content []byte) (predict.Result, error)
}

type Options struct {
	PageSize       int
	MaxUploadBytes int64
	// RateLimit caps uploads per second per client; 0 disables it.
	RateLimit float64
}

type server struct {
	predictor Predictor
	db        *storage.DB
	opts      Options
	log       *slog.Logger
}

type batchResponse struct {
	BatchID    string                `json:"batch_id"`
	Summary    review.Summary        `json:"summary"`
	Page       int                   `json:"page"`
	Size       int                   `json:"size"`
	TotalPages int                   `json:"total_pages"`
	Results    []internal.Prediction `json:"results"`
	Dropped    []internal.DroppedRow `json:"dropped,omitempty"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func New(predictor Predictor, db *storage.DB, opts Options, log *slog.Logger) *echo.Echo {
	if opts.PageSize <= 0 {
		opts.PageSize = review.PageSizes[0]
	}
	if log == nil {
		log = slog.Default()
	}
	s := &server{predictor: predictor, db: db, opts: opts, log: log}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code >= http.StatusInternalServerError {
			log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
		}
		e.DefaultHTTPErrorHandler(err, c)
	}

	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			begin := time.Now()
			err := next(c)
			log.Debug("request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(begin).Milliseconds(),
			)
			return err
		}
	})

	upload := []echo.MiddlewareFunc{}
	if opts.MaxUploadBytes > 0 {
		upload = append(upload, middleware.BodyLimit(fmt.Sprintf("%dK", max(1, opts.MaxUploadBytes>>10))))
	}
	if opts.RateLimit > 0 {
		upload = append(upload, middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(opts.RateLimit))))
	}

	e.GET("/healthz", s.health)
	e.GET("/api/features", s.features)
	e.POST("/api/predict", s.predict, upload...)
	e.GET("/api/batches", s.listBatches)
	e.GET("/api/batches/:id", s.getBatch)
	e.GET("/api/batches/:id/export", s.exportBatch)
	return e
}

func (s *server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) features(c echo.Context) error {
	return c.JSON(http.StatusOK, pipeline.FeatureDescriptions)
}

func (s *server) predict(c echo.Context) error {
	q, err := s.query(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field \"file\" is required")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	res, err := s.predictor.Predict(fh.Filename, content)
	if err != nil {
		return uploadError(c, err)
	}
	page, err := review.Paginate(res.Predictions, q)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, batchResponse{
		BatchID:    res.BatchID,
		Summary:    res.Summary,
		Page:       page.Page,
		Size:       page.Size,
		TotalPages: page.TotalPages,
		Results:    page.Items,
		Dropped:    res.Dropped,
	})
}

func (s *server) listBatches(c echo.Context) error {
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	rows, err := s.db.ListBatches(limit)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []internal.BatchRow{}
	}
	return c.JSON(http.StatusOK, rows)
}

func (s *server) getBatch(c echo.Context) error {
	q, err := s.query(c)
	if err != nil {
		return err
	}
	batch, err := s.batch(c.Param("id"))
	if err != nil {
		return err
	}
	preds, err := s.db.GetPredictions(batch.ID)
	if err != nil {
		return err
	}
	dropped, err := s.db.GetDroppedRows(batch.ID)
	if err != nil {
		return err
	}
	page, err := review.Paginate(preds, q)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, batchResponse{
		BatchID:    batch.ID,
		Summary:    review.Summarize(preds),
		Page:       page.Page,
		Size:       page.Size,
		TotalPages: page.TotalPages,
		Results:    page.Items,
		Dropped:    dropped,
	})
}

func (s *server) exportBatch(c echo.Context) error {
	batch, err := s.batch(c.Param("id"))
	if err != nil {
		return err
	}
	preds, err := s.db.GetPredictions(batch.ID)
	if err != nil {
		return err
	}
	dropped, err := s.db.GetDroppedRows(batch.ID)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := review.WritePredictionsXLSX(&buf, *batch, preds, dropped); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", batch.ID+".xlsx"))
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (s *server) batch(id string) (*internal.BatchRow, error) {
	batch, err := s.db.GetBatch(id)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "batch not found")
	}
	return batch, nil
}

func (s *server) query(c echo.Context) (review.Query, error) {
	q := review.Query{Page: 1, Size: s.opts.PageSize}
	var err error
	if v := c.QueryParam("page"); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil {
			return q, echo.NewHTTPError(http.StatusBadRequest, "page must be an integer")
		}
	}
	if v := c.QueryParam("size"); v != "" {
		if q.Size, err = strconv.Atoi(v); err != nil || q.Size <= 0 {
			return q, echo.NewHTTPError(http.StatusBadRequest, "size must be a positive integer")
		}
	}
	if q.SortBy, err = review.ParseSortKey(c.QueryParam("sort")); err != nil {
		return q, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if v := c.QueryParam("desc"); v != "" {
		if q.Descending, err = strconv.ParseBool(v); err != nil {
			return q, echo.NewHTTPError(http.StatusBadRequest, "desc must be a boolean")
		}
	}
	return q, nil
}

// uploadError answers 422 for problems with the uploaded file and leaves
// everything else to the error handler.
func uploadError(c echo.Context, err error) error {
	kind := internal.ErrorKind(err)
	if kind == "" {
		return err
	}
	return c.JSON(http.StatusUnprocessableEntity, map[string]errorBody{"error": {Kind: kind, Message: err.Error()}})
}
