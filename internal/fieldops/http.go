// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

package fieldops

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldvine/fieldvine/internal/platform/middleware"
	requestutil "github.com/fieldvine/fieldvine/internal/platform/request"
	"github.com/fieldvine/fieldvine/internal/platform/respond"
	"github.com/fieldvine/fieldvine/internal/platform/validate"
)

// # HTTP Transport

// Handler exposes field operations over HTTP.
type Handler struct {
	// now is an injectable clock for the estimate validity check.
	now func() time.Time
}

// NewHandler constructs a new [Handler].
func NewHandler() *Handler {
	return &Handler{now: time.Now}
}

// Routes mounts the field operations endpoints. All routes require an
// authenticated caller.
func (handler *Handler) Routes(router chi.Router) {
	router.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth)
		protected.Post("/convert-estimate", handler.ConvertEstimate)
	})
}

/*
ConvertEstimate handles POST /api/v1/fieldops/convert-estimate.

Description: Accepts an estimate payload and returns the derived job plan.
*/
func (handler *Handler) ConvertEstimate(writer http.ResponseWriter, request *http.Request) {
	if _, err := requestutil.RequiredClaims(request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	var estimate Estimate
	if err := requestutil.DecodeJSON(request, &estimate); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	if err := validator.
		Required("id", estimate.ID).
		Required("status", estimate.Status).
		Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	plan, err := ConvertEstimate(&estimate, handler.now())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OKWith(writer, "Estimate converted", map[string]any{
		"job_plan": plan,
	})
}
