package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"poc-router/backendclient"
	"poc-router/backendpool"
	"poc-router/logging"
	"poc-router/powrouter"
)

// postInitGenerate fans out the generation start to every healthy backend.
func (s *Server) postInitGenerate(ctx echo.Context) error {
	var body backendclient.InitGenerateRequest
	if err := ctx.Bind(&body); err != nil {
		logging.Error("InitGenerate. Failed to decode request body", logging.Server, "error", err.Error())
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.BlockHash == "" || body.PublicKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "block_hash and public_key are required")
	}

	resp, err := s.router.InitGenerate(ctx.Request().Context(), body)
	if err != nil {
		if errors.Is(err, backendpool.ErrNoBackendsAvailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "no backends available")
		}
		if errors.Is(err, powrouter.ErrAllBackendsFailed) {
			resp.Status = "FAILED"
			return ctx.JSON(http.StatusBadGateway, resp)
		}
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

// postStop is always best-effort; per-backend failures come back in the body.
func (s *Server) postStop(ctx echo.Context) error {
	resp, err := s.router.Stop(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (s *Server) getStatus(ctx echo.Context) error {
	resp, err := s.router.Status(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

// postGenerate routes a generate-or-validate request to one backend.
func (s *Server) postGenerate(ctx echo.Context) error {
	var body backendclient.GenerateRequest
	if err := ctx.Bind(&body); err != nil {
		logging.Error("Generate. Failed to decode request body", logging.Server, "error", err.Error())
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(body.Nonces) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "nonces are required")
	}

	resp, err := s.router.Generate(ctx.Request().Context(), body)
	if err != nil {
		return mapRouterError(err)
	}
	return ctx.JSON(http.StatusOK, resp.Raw)
}

// getGenerateResult polls a backend through its composite request id.
func (s *Server) getGenerateResult(ctx echo.Context) error {
	resp, err := s.router.PollResult(ctx.Request().Context(), ctx.Param("request_id"))
	if err != nil {
		return mapRouterError(err)
	}
	return ctx.JSON(http.StatusOK, resp.Raw)
}

// mapRouterError translates router errors into HTTP errors. Upstream
// backend failures keep their original status code and body.
func mapRouterError(err error) error {
	var badRequest *powrouter.BadRequestError
	if errors.As(err, &badRequest) {
		return echo.NewHTTPError(http.StatusBadRequest, badRequest.Message)
	}
	if errors.Is(err, backendpool.ErrNoBackendsAvailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "no backends available")
	}
	var upstream *backendclient.UpstreamError
	if errors.As(err, &upstream) {
		return echo.NewHTTPError(upstream.StatusCode, upstream.Body)
	}
	if errors.Is(err, powrouter.ErrAllBackendsFailed) {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return err
}
