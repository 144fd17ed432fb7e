package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"poc-router/consensus"
)

// ConsensusRequest replays a consensus evaluation over votes that were
// already collected. The vote map plays the role of the vote-fetch
// capability, so the sampled outcome is fully auditable from the request
// alone.
type ConsensusRequest struct {
	AppHash string                  `json:"app_hash"`
	Host    string                  `json:"host"`
	Weights []consensus.WeightEntry `json:"weights"`
	Votes   map[string]bool         `json:"votes"`
}

type ConsensusResponse struct {
	Decision string `json:"decision"`
}

func (s *Server) postConsensus(ctx echo.Context) error {
	var body ConsensusRequest
	if err := ctx.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.AppHash == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "app_hash is required")
	}

	sampler := consensus.NewSampler(s.configManager.GetConfig().Consensus.Slots)
	decision, err := sampler.Reach(body.AppHash, body.Host, body.Weights,
		func(address string) (bool, error) {
			vote, ok := body.Votes[address]
			if !ok {
				return false, echo.NewHTTPError(http.StatusBadRequest, "missing vote for sampled address "+address)
			}
			return vote, nil
		})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ConsensusResponse{Decision: decision.String()})
}
