package draft

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/connectjson"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/engine"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/orchestrator"
	"github.com/mcdev12/dynasty-draft/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DraftServiceName is the fully-qualified name of the draft RPC service.
const DraftServiceName = "draft.v1.DraftService"

// Procedure paths served by NewDraftServiceHandler.
const (
	CreateDraftProcedure          = "/" + DraftServiceName + "/CreateDraft"
	StartDraftProcedure           = "/" + DraftServiceName + "/StartDraft"
	MakePickProcedure             = "/" + DraftServiceName + "/MakePick"
	GetDraftStateProcedure        = "/" + DraftServiceName + "/GetDraftState"
	ListAvailablePlayersProcedure = "/" + DraftServiceName + "/ListAvailablePlayers"
)

// DraftOrchestrator is what the service needs from the running drafts.
type DraftOrchestrator interface {
	CreateDraft(ctx context.Context, d *models.Draft) (engine.State, error)
	StartDraft(ctx context.Context, draftID uuid.UUID) (engine.State, error)
	SubmitPickAt(ctx context.Context, draftID uuid.UUID, overallPick int, teamID, playerID uuid.UUID) (models.DraftPick, error)
	GetDraftState(ctx context.Context, draftID uuid.UUID) (engine.State, error)
}

// PlayerCatalog stores the player pool of each draft.
type PlayerCatalog interface {
	Register(ctx context.Context, draftID uuid.UUID, players []models.Player) error
	AvailablePlayers(ctx context.Context, draftID uuid.UUID) ([]models.Player, error)
}

// Service implements DraftService over an orchestrator.
type Service struct {
	orch    DraftOrchestrator
	catalog PlayerCatalog
}

// NewService creates a new draft RPC service
func NewService(orch DraftOrchestrator, catalog PlayerCatalog) *Service {
	return &Service{
		orch:    orch,
		catalog: catalog,
	}
}

// NewDraftServiceHandler builds an HTTP handler for every DraftService
// procedure. It returns the path prefix to mount the handler on.
func NewDraftServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connectjson.WithCodec()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateDraftProcedure, connect.NewUnaryHandler(CreateDraftProcedure, svc.CreateDraft, opts...))
	mux.Handle(StartDraftProcedure, connect.NewUnaryHandler(StartDraftProcedure, svc.StartDraft, opts...))
	mux.Handle(MakePickProcedure, connect.NewUnaryHandler(MakePickProcedure, svc.MakePick, opts...))
	mux.Handle(GetDraftStateProcedure, connect.NewUnaryHandler(GetDraftStateProcedure, svc.GetDraftState, opts...))
	mux.Handle(ListAvailablePlayersProcedure, connect.NewUnaryHandler(ListAvailablePlayersProcedure, svc.ListAvailablePlayers, opts...))
	return "/" + DraftServiceName + "/", mux
}

// CreateDraft registers a draft and, when players are supplied, its pool.
func (s *Service) CreateDraft(ctx context.Context, req *connect.Request[CreateDraftRequest]) (*connect.Response[CreateDraftResponse], error) {
	d, err := draftFromRequest(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	players, err := playersFromEntries(req.Msg.Players)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	st, err := s.orch.CreateDraft(ctx, d)
	if err != nil {
		return nil, toConnectError(err)
	}

	if len(players) > 0 {
		if err := s.catalog.Register(ctx, st.Draft.ID, players); err != nil {
			return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("register player pool: %w", err))
		}
	}

	log.Info().
		Str("draft_id", st.Draft.ID.String()).
		Int("players", len(players)).
		Msg("draft created via RPC")

	return connect.NewResponse(&CreateDraftResponse{Draft: draftStateFromEngine(st)}), nil
}

func (s *Service) StartDraft(ctx context.Context, req *connect.Request[StartDraftRequest]) (*connect.Response[StartDraftResponse], error) {
	id, err := parseID("draft_id", req.Msg.DraftID)
	if err != nil {
		return nil, err
	}
	st, err := s.orch.StartDraft(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&StartDraftResponse{Draft: draftStateFromEngine(st)}), nil
}

func (s *Service) MakePick(ctx context.Context, req *connect.Request[MakePickRequest]) (*connect.Response[MakePickResponse], error) {
	draftID, err := parseID("draft_id", req.Msg.DraftID)
	if err != nil {
		return nil, err
	}
	teamID, err := parseID("team_id", req.Msg.TeamID)
	if err != nil {
		return nil, err
	}
	playerID, err := parseID("player_id", req.Msg.PlayerID)
	if err != nil {
		return nil, err
	}
	if req.Msg.OverallPick < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("overall_pick must not be negative"))
	}

	pick, err := s.orch.SubmitPickAt(ctx, draftID, req.Msg.OverallPick, teamID, playerID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&MakePickResponse{Pick: pick}), nil
}

func (s *Service) GetDraftState(ctx context.Context, req *connect.Request[GetDraftStateRequest]) (*connect.Response[GetDraftStateResponse], error) {
	id, err := parseID("draft_id", req.Msg.DraftID)
	if err != nil {
		return nil, err
	}
	st, err := s.orch.GetDraftState(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetDraftStateResponse{Draft: draftStateFromEngine(st)}), nil
}

// ListAvailablePlayers returns the undrafted players of a draft in rank order.
func (s *Service) ListAvailablePlayers(ctx context.Context, req *connect.Request[ListAvailablePlayersRequest]) (*connect.Response[ListAvailablePlayersResponse], error) {
	id, err := parseID("draft_id", req.Msg.DraftID)
	if err != nil {
		return nil, err
	}
	st, err := s.orch.GetDraftState(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	players, err := s.catalog.AvailablePlayers(ctx, id)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	// The catalog may not have seen the latest picks yet.
	drafted := make(map[uuid.UUID]bool, len(st.Draft.Picks))
	for _, p := range st.Draft.Picks {
		drafted[p.PlayerID] = true
	}

	out := make([]PlayerEntry, 0, len(players))
	for _, p := range players {
		if drafted[p.ID] {
			continue
		}
		if req.Msg.Limit > 0 && len(out) == req.Msg.Limit {
			break
		}
		out = append(out, playerEntry(p))
	}
	return connect.NewResponse(&ListAvailablePlayersResponse{Players: out}), nil
}

func draftFromRequest(msg *CreateDraftRequest) (*models.Draft, error) {
	d := &models.Draft{
		Settings: models.DraftSettings{
			Rounds:         msg.Rounds,
			TimePerPickSec: msg.TimePerPickSec,
			Snake:          msg.Snake,
			RandomizeOrder: msg.RandomizeOrder,
		},
	}

	var err error
	if msg.DraftID != "" {
		if d.ID, err = uuid.Parse(msg.DraftID); err != nil {
			return nil, fmt.Errorf("invalid draft_id: %w", err)
		}
	}
	if msg.LeagueID != "" {
		if d.LeagueID, err = uuid.Parse(msg.LeagueID); err != nil {
			return nil, fmt.Errorf("invalid league_id: %w", err)
		}
	}
	if d.TeamOrder, err = parseIDs("team_order", msg.TeamOrder); err != nil {
		return nil, err
	}
	if d.Settings.ComputerTeams, err = parseIDs("computer_teams", msg.ComputerTeams); err != nil {
		return nil, err
	}
	return d, nil
}

func playersFromEntries(entries []PlayerEntry) ([]models.Player, error) {
	players := make([]models.Player, 0, len(entries))
	for i, e := range entries {
		p := models.Player{
			ExternalID: e.ExternalID,
			FullName:   e.FullName,
			Position:   e.Position,
			Rank:       e.Rank,
		}
		if e.ID == "" {
			p.ID = uuid.New()
		} else {
			id, err := uuid.Parse(e.ID)
			if err != nil {
				return nil, fmt.Errorf("invalid players[%d].id: %w", i, err)
			}
			p.ID = id
		}
		players = append(players, p)
	}
	return players, nil
}

func parseIDs(field string, raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s[%d]: %w", field, i, err)
		}
		ids[i] = id
	}
	return ids, nil
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid %s: %w", field, err))
	}
	return id, nil
}

// toConnectError maps orchestrator and engine errors to connect codes. The
// message of a rejected submission is the user-facing text, never the
// internal turn details.
func toConnectError(err error) *connect.Error {
	switch {
	case errors.Is(err, orchestrator.ErrDraftNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, orchestrator.ErrDraftExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, orchestrator.ErrClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, engine.ErrInvalidDraft):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	msg := errors.New(engine.UserMessage(err))
	switch {
	case errors.Is(err, engine.ErrWrongTeam):
		return connect.NewError(connect.CodePermissionDenied, msg)
	case errors.Is(err, engine.ErrPlayerUnavailable):
		return connect.NewError(connect.CodeAlreadyExists, msg)
	case engine.IsValidation(err), engine.IsFatal(err):
		return connect.NewError(connect.CodeFailedPrecondition, msg)
	}

	log.Error().Err(err).Msg("unexpected draft service error")
	return connect.NewError(connect.CodeInternal, msg)
}
