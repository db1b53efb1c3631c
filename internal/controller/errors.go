package controller

import (
	"context"

	"second-brain/internal/pkg/serverutils"
	"second-brain/internal/repository/contract"
	"second-brain/internal/service"
	"second-brain/pkg/rag/retriever"

	"github.com/gofiber/fiber/v2"
)

// ErrorMappings lists the domain errors the API reports with a specific status.
func ErrorMappings() []serverutils.ErrorStatus {
	return []serverutils.ErrorStatus{
		{Err: retriever.ErrConnection, Status: fiber.StatusServiceUnavailable, Kind: "connection"},
		{Err: retriever.ErrEmptyQuery, Status: fiber.StatusBadRequest, Kind: "empty_query"},
		{Err: service.ErrEmptyPrompt, Status: fiber.StatusBadRequest, Kind: "empty_prompt"},
		{Err: contract.ErrSessionNotFound, Status: fiber.StatusNotFound, Kind: "session_not_found"},
		{Err: retriever.ErrEmbeddingService, Status: fiber.StatusBadGateway, Kind: "embedding_service"},
		{Err: context.DeadlineExceeded, Status: fiber.StatusGatewayTimeout, Kind: "timeout"},
	}
}
