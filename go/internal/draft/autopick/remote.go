package autopick

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/connectjson"
)

// RecommendProcedure is the scorer's connect procedure.
const RecommendProcedure = "/recommend.v1.RecommendationService/Recommend"

// RecommendRequest is the wire form of Request.
type RecommendRequest struct {
	DraftID   string   `json:"draft_id"`
	TeamID    string   `json:"team_id"`
	Round     int      `json:"round"`
	Available []string `json:"available_player_ids"`
}

// RecommendResponse carries the scorer's choice.
type RecommendResponse struct {
	PlayerID string `json:"player_id"`
}

// RemoteRecommender asks an external scoring service for picks.
type RemoteRecommender struct {
	client  *connect.Client[RecommendRequest, RecommendResponse]
	timeout time.Duration
}

// NewRemoteRecommender creates a client for the scorer at baseURL.
func NewRemoteRecommender(httpClient connect.HTTPClient, baseURL string, timeout time.Duration) *RemoteRecommender {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteRecommender{
		client: connect.NewClient[RecommendRequest, RecommendResponse](
			httpClient,
			strings.TrimRight(baseURL, "/")+RecommendProcedure,
			connectjson.WithCodec(),
		),
		timeout: timeout,
	}
}

// Recommend implements Recommender.
func (r *RemoteRecommender) Recommend(ctx context.Context, req Request) (uuid.UUID, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	available := make([]string, len(req.Available))
	for i, id := range req.Available {
		available[i] = id.String()
	}
	resp, err := r.client.CallUnary(ctx, connect.NewRequest(&RecommendRequest{
		DraftID:   req.DraftID.String(),
		TeamID:    req.TeamID.String(),
		Round:     req.Round,
		Available: available,
	}))
	if err != nil {
		return uuid.Nil, fmt.Errorf("recommend: %w", err)
	}

	id, err := uuid.Parse(resp.Msg.PlayerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid player ID from recommender: %w", err)
	}
	return id, nil
}
