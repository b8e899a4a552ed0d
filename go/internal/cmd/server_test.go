package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/connectjson"
	"github.com/mcdev12/dynasty-draft/go/internal/draft"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_InMemoryWiring(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := defaultConfig()
	config.Engine.Workers = 1
	config.Engine.Seed = 1

	services, err := setupServices(ctx, config)
	require.NoError(t, err)
	t.Cleanup(services.Close)

	srv := httptest.NewServer(newHandler(services))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	create := connect.NewClient[draft.CreateDraftRequest, draft.CreateDraftResponse](
		srv.Client(), srv.URL+draft.CreateDraftProcedure, connectjson.WithCodec())
	start := connect.NewClient[draft.StartDraftRequest, draft.StartDraftResponse](
		srv.Client(), srv.URL+draft.StartDraftProcedure, connectjson.WithCodec())

	teams := []string{uuid.NewString(), uuid.NewString()}
	created, err := create.CallUnary(ctx, connect.NewRequest(&draft.CreateDraftRequest{
		TeamOrder:      teams,
		Rounds:         1,
		TimePerPickSec: 90,
		Players:        []draft.PlayerEntry{{FullName: "A", Rank: 1}, {FullName: "B", Rank: 2}},
	}))
	require.NoError(t, err)
	draftID := created.Msg.Draft.Draft.ID.String()

	_, err = start.CallUnary(ctx, connect.NewRequest(&draft.StartDraftRequest{DraftID: draftID}))
	require.NoError(t, err)

	resp, err = http.Get(srv.URL + "/api/drafts/" + draftID + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st gateway.DraftStateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "IN_PROGRESS", st.Status)
	require.NotNil(t, st.CurrentPick)
	assert.Equal(t, teams[0], st.CurrentPick.TeamID)
	require.NotNil(t, st.TimeRemaining)
	assert.InDelta(t, 90, *st.TimeRemaining, 5)

	require.Eventually(t, func() bool {
		return services.Metrics.Snapshot().Events[events.EventTypeDraftStarted].Succeeded >= 1
	}, 2*time.Second, 5*time.Millisecond)
}
