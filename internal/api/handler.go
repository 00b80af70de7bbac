// Package api exposes a fraud detection session over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/FlavioCFOliveira/upifraud/internal/alert"
	"github.com/FlavioCFOliveira/upifraud/internal/dataset"
	"github.com/FlavioCFOliveira/upifraud/internal/fraud"
	"github.com/FlavioCFOliveira/upifraud/internal/session"
	"github.com/FlavioCFOliveira/upifraud/internal/stream"
)

const version = "1.0.0"

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Session *session.Session
	Stream  *stream.Runner

	// Alerts reports delivery counters. Optional.
	Alerts interface{ Stats() alert.Stats }

	// BaseContext parents long-running work started by a request, such as
	// the stream feed. Defaults to context.Background().
	BaseContext context.Context

	// BandedMetrics adds display metrics to every model response, not only
	// to those asking for ?display=banded.
	BandedMetrics bool

	Log *slog.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewApp builds a fiber app with every route registered.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "upifraud " + version,
		BodyLimit:             32 << 20,
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
	})
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	if h.Log == nil {
		h.Log = slog.Default()
	}
	if h.rand == nil {
		h.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	api := app.Group("/api")
	api.Get("/health", h.handleHealth)

	api.Post("/dataset", h.handleUpload)
	api.Post("/dataset/sample", h.handleSample)
	api.Get("/dataset/preview", h.handlePreview)
	api.Get("/encoders", h.handleEncoders)

	api.Post("/train", h.handleTrain)
	api.Get("/train", h.handleTrainStatus)
	api.Delete("/train", h.handleCancelTrain)
	api.Get("/model", h.handleModel)
	api.Post("/predict", h.handlePredict)

	api.Post("/stream/start", h.handleStreamStart)
	api.Post("/stream/stop", h.handleStreamStop)
	api.Get("/stream", h.handleStream)

	api.Get("/alerts/stats", h.handleAlertStats)
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"version":   version,
		"dataset":   len(h.Session.Dataset()),
		"model":     h.Session.Model() != nil,
		"training":  h.Session.IsTraining(),
		"streaming": h.Stream != nil && h.Stream.Running(),
	})
}

func (h *Handler) handleUpload(c *fiber.Ctx) error {
	var body io.Reader
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Failed to read uploaded file.")
		}
		defer f.Close()
		body = f
	} else {
		raw := c.Body()
		if len(bytes.TrimSpace(raw)) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Send CSV text as the body or upload it in form field 'file'.")
		}
		body = bytes.NewReader(raw)
	}

	res, err := h.Session.LoadCSV(body)
	if err != nil {
		return h.writeParseFailure(c, res, err)
	}
	return c.JSON(res)
}

func (h *Handler) handleSample(c *fiber.Ctx) error {
	res, err := h.Session.LoadSample(c.UserContext())
	if err != nil {
		if errors.Is(err, dataset.ErrEmptyInput) || errors.Is(err, dataset.ErrMissingColumns) || errors.Is(err, session.ErrNoDataset) {
			return h.writeParseFailure(c, res, err)
		}
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(res)
}

func (h *Handler) writeParseFailure(c *fiber.Ctx, res dataset.ParseResult, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success":      false,
		"error":        err.Error(),
		"skippedCount": res.SkippedCount,
		"errors":       res.Errors,
	})
}

func (h *Handler) handlePreview(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"rows":    h.Session.Preview(),
		"summary": h.Session.ParseSummary(),
	})
}

func (h *Handler) handleEncoders(c *fiber.Ctx) error {
	enc := h.Session.Encoders()
	if enc == nil {
		return session.ErrNoDataset
	}
	return c.JSON(fiber.Map{
		"transTypes":  enc.TransTypes,
		"locations":   enc.Locations,
		"devices":     enc.Devices,
		"stats":       enc.Stats,
		"width":       enc.Width(),
		"fingerprint": enc.Fingerprint(),
	})
}

type trainRequest struct {
	Model string `json:"model"`
}

func (h *Handler) handleTrain(c *fiber.Ctx) error {
	var req trainRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body.")
		}
	}
	if req.Model == "" {
		req.Model = c.Query("model", string(fraud.Logistic))
	}
	arch, err := fraud.ParseArchitecture(req.Model)
	if err != nil {
		return err
	}

	model, err := h.Session.Train(c.UserContext(), arch)
	if err != nil {
		return err
	}
	return c.JSON(h.modelResponse(model, c.Query("display") == "banded"))
}

func (h *Handler) handleTrainStatus(c *fiber.Ctx) error {
	resp := fiber.Map{"training": h.Session.IsTraining()}
	if p, ok := h.Session.TrainingProgress(); ok {
		resp["progress"] = p
	}
	return c.JSON(resp)
}

func (h *Handler) handleCancelTrain(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"cancelled": h.Session.CancelTraining()})
}

type modelResponse struct {
	*fraud.TrainedModel
	DisplayMetrics *fraud.Metrics `json:"displayMetrics,omitempty"`
}

func (h *Handler) modelResponse(m *fraud.TrainedModel, banded bool) modelResponse {
	resp := modelResponse{TrainedModel: m}
	if banded || h.BandedMetrics {
		h.randMu.Lock()
		dm := fraud.DisplayMetrics(m.Metrics, m.Architecture, h.rand)
		h.randMu.Unlock()
		resp.DisplayMetrics = &dm
	}
	return resp
}

func (h *Handler) handleModel(c *fiber.Ctx) error {
	m := h.Session.Model()
	if m == nil {
		return fraud.ErrUntrainedModel
	}
	return c.JSON(h.modelResponse(m, c.Query("display") == "banded"))
}

type predictRequest struct {
	TransactionID   string  `json:"transactionId"`
	UserID          string  `json:"userId"`
	Amount          float64 `json:"amount"`
	Timestamp       string  `json:"timestamp"`
	Location        string  `json:"location"`
	DeviceID        string  `json:"deviceId"`
	TransactionType string  `json:"transactionType"`
}

type predictResponse struct {
	fraud.Prediction
	RiskLevel alert.RiskLevel `json:"riskLevel"`
}

func (h *Handler) handlePredict(c *fiber.Ctx) error {
	var req predictRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body.")
	}
	if strings.TrimSpace(req.TransactionType) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "transactionType is required.")
	}
	ts, err := dataset.ParseTimestamp(req.Timestamp)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "timestamp is missing or invalid.")
	}

	rec := dataset.Record{
		TransactionID:   req.TransactionID,
		UserID:          req.UserID,
		Amount:          req.Amount,
		Timestamp:       ts,
		Location:        req.Location,
		DeviceID:        req.DeviceID,
		TransactionType: req.TransactionType,
	}
	pred, err := h.Session.Predict(c.UserContext(), rec)
	if err != nil {
		return err
	}
	return c.JSON(predictResponse{
		Prediction: pred,
		RiskLevel:  alert.DetermineRiskLevel(pred.Probability, rec.Amount, ts.Hour()),
	})
}

func (h *Handler) handleStreamStart(c *fiber.Ctx) error {
	if h.Stream == nil {
		return fiber.ErrNotFound
	}
	ctx := h.BaseContext
	if ctx == nil {
		ctx = context.Background()
	}
	if err := h.Stream.Start(ctx); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"running": true})
}

func (h *Handler) handleStreamStop(c *fiber.Ctx) error {
	if h.Stream == nil {
		return fiber.ErrNotFound
	}
	return c.JSON(fiber.Map{"stopped": h.Stream.Stop()})
}

func (h *Handler) handleStream(c *fiber.Ctx) error {
	if h.Stream == nil {
		return fiber.ErrNotFound
	}
	return c.JSON(fiber.Map{
		"running": h.Stream.Running(),
		"rows":    h.Stream.Rows(),
	})
}

func (h *Handler) handleAlertStats(c *fiber.Ctx) error {
	if h.Alerts == nil {
		return fiber.ErrNotFound
	}
	return c.JSON(h.Alerts.Stats())
}
