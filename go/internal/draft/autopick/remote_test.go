package autopick

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/connectjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScorer(t *testing.T, fn func(*RecommendRequest) (*RecommendResponse, error)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(RecommendProcedure, connect.NewUnaryHandler(
		RecommendProcedure,
		func(_ context.Context, req *connect.Request[RecommendRequest]) (*connect.Response[RecommendResponse], error) {
			res, err := fn(req.Msg)
			if err != nil {
				return nil, err
			}
			return connect.NewResponse(res), nil
		},
		connectjson.WithCodec(),
	))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteRecommender(t *testing.T) {
	pool := players(3)
	team := uuid.New()

	var seen *RecommendRequest
	srv := newScorer(t, func(req *RecommendRequest) (*RecommendResponse, error) {
		seen = req
		return &RecommendResponse{PlayerID: req.Available[len(req.Available)-1]}, nil
	})

	rec := NewRemoteRecommender(srv.Client(), srv.URL, time.Second)
	got, err := rec.Recommend(context.Background(), Request{
		DraftID:   uuid.New(),
		TeamID:    team,
		Round:     3,
		Available: pool,
	})
	require.NoError(t, err)
	assert.Equal(t, pool[2], got)

	require.NotNil(t, seen)
	assert.Equal(t, team.String(), seen.TeamID)
	assert.Equal(t, 3, seen.Round)
	assert.Len(t, seen.Available, 3)
}

func TestRemoteRecommender_Errors(t *testing.T) {
	srv := newScorer(t, func(*RecommendRequest) (*RecommendResponse, error) {
		return nil, connect.NewError(connect.CodeUnavailable, errors.New("scorer unavailable"))
	})
	rec := NewRemoteRecommender(srv.Client(), srv.URL, time.Second)
	_, err := rec.Recommend(context.Background(), Request{Available: players(1)})
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))

	bad := newScorer(t, func(*RecommendRequest) (*RecommendResponse, error) {
		return &RecommendResponse{PlayerID: "not-a-uuid"}, nil
	})
	_, err = NewRemoteRecommender(bad.Client(), bad.URL, time.Second).Recommend(context.Background(), Request{Available: players(1)})
	require.ErrorContains(t, err, "invalid player ID")
}
