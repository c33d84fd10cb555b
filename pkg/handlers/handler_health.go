package handlers

import (
	"context"
	"net/http"
)

type HealthHandler struct{}

type HealthResponse struct {
	Status string `json:"status"`
}

func (h *HealthHandler) Health(_ context.Context, _ *http.Request, _ any) (*HealthResponse, error) {
	return &HealthResponse{
		Status: "ok",
	}, nil
}
