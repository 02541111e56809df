// Package api serves the inference pipeline over HTTP with gin.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/danielpatrickdp/potability/internal/ensemble"
	"github.com/danielpatrickdp/potability/internal/params"
)

// Inferer is the pipeline capability the handlers need.
type Inferer interface {
	Infer(ctx context.Context, s params.Set) (ensemble.Result, error)
}

// HealthCheck reports liveness. The process only serves once artifacts are
// loaded, so liveness implies readiness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListParameters returns the registry in canonical order.
func ListParameters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"parameters": params.Definitions()})
}

// HandleValidate checks a measurement set without running any model.
func HandleValidate(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := RequestID(c)
		set, ok := bindSet(c, reqID)
		if !ok {
			return
		}

		violations, err := params.Validate(set)
		if err != nil {
			writeShapeError(c, reqID, err)
			return
		}
		if len(violations) > 0 {
			logger.Debug("validation rejected", "request_id", reqID, "violations", len(violations))
		}
		c.JSON(http.StatusOK, ViolationsResponse{
			RequestID:  reqID,
			Valid:      len(violations) == 0,
			Violations: violationBodies(violations),
		})
	}
}

// HandlePredict runs the full ensemble.
func HandlePredict(p Inferer, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := RequestID(c)
		set, ok := bindSet(c, reqID)
		if !ok {
			return
		}

		res, err := p.Infer(c.Request.Context(), set)
		switch {
		case errors.Is(err, params.ErrShape):
			writeShapeError(c, reqID, err)
			return
		case err != nil:
			logger.Error("predict failed", "request_id", reqID, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{RequestID: reqID, Error: ensemble.ErrInference.Error()})
			return
		}

		if !res.Valid() {
			c.JSON(http.StatusUnprocessableEntity, ViolationsResponse{
				RequestID:  reqID,
				Valid:      false,
				Violations: violationBodies(res.Violations),
			})
			return
		}

		c.JSON(http.StatusOK, PredictResponse{
			RequestID: reqID,
			Verdict:   string(res.Verdict),
			Label:     int(res.Label),
			Votes:     voteBody(res.Votes),
		})
	}
}

func bindSet(c *gin.Context, reqID string) (params.Set, bool) {
	var req MeasurementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{RequestID: reqID, Error: "invalid JSON body: " + err.Error()})
		return nil, false
	}
	return req.Set(), true
}

func writeShapeError(c *gin.Context, reqID string, err error) {
	body := ErrorResponse{RequestID: reqID, Error: err.Error()}
	var shapeErr *params.ShapeError
	if errors.As(err, &shapeErr) {
		body.Missing = shapeErr.Missing
		body.Unexpected = shapeErr.Unexpected
	}
	c.JSON(http.StatusBadRequest, body)
}
