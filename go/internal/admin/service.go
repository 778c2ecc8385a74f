package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/mcdev12/buzzer/go/internal/models"
)

const AdminServiceName = "buzzer.admin.v1.AdminService"

const (
	AdminServiceListMatchesProcedure = "/" + AdminServiceName + "/ListMatches"
	AdminServiceGetMatchProcedure    = "/" + AdminServiceName + "/GetMatch"
)

// MatchesApp defines what the service layer needs from the admin application
type MatchesApp interface {
	ListMatches(ctx context.Context, limit int) ([]models.Match, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error)
}

// Service implements the AdminService Connect procedures
type Service struct {
	app MatchesApp
}

func NewService(app MatchesApp) *Service {
	return &Service{app: app}
}

// ListMatches returns recent matches
func (s *Service) ListMatches(ctx context.Context, req *connect.Request[ListMatchesRequest]) (*connect.Response[ListMatchesResponse], error) {
	matches, err := s.app.ListMatches(ctx, req.Msg.Limit)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&ListMatchesResponse{Matches: matchesToViews(matches)}), nil
}

// GetMatch returns one match with its events
func (s *Service) GetMatch(ctx context.Context, req *connect.Request[GetMatchRequest]) (*connect.Response[GetMatchResponse], error) {
	id, err := uuid.Parse(req.Msg.ID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	m, err := s.app.GetMatch(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrMatchNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&GetMatchResponse{Match: matchToView(*m)}), nil
}

// NewAdminServiceHandler builds the HTTP handler for the service and returns
// the path to mount it on.
func NewAdminServiceHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	listMatches := connect.NewUnaryHandler(AdminServiceListMatchesProcedure, svc.ListMatches, opts...)
	getMatch := connect.NewUnaryHandler(AdminServiceGetMatchProcedure, svc.GetMatch, opts...)

	return "/" + AdminServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case AdminServiceListMatchesProcedure:
			listMatches.ServeHTTP(w, r)
		case AdminServiceGetMatchProcedure:
			getMatch.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// AdminServiceClient calls the AdminService over Connect.
type AdminServiceClient struct {
	listMatches *connect.Client[ListMatchesRequest, ListMatchesResponse]
	getMatch    *connect.Client[GetMatchRequest, GetMatchResponse]
}

func NewAdminServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AdminServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &AdminServiceClient{
		listMatches: connect.NewClient[ListMatchesRequest, ListMatchesResponse](httpClient, baseURL+AdminServiceListMatchesProcedure, opts...),
		getMatch:    connect.NewClient[GetMatchRequest, GetMatchResponse](httpClient, baseURL+AdminServiceGetMatchProcedure, opts...),
	}
}

func (c *AdminServiceClient) ListMatches(ctx context.Context, req *connect.Request[ListMatchesRequest]) (*connect.Response[ListMatchesResponse], error) {
	return c.listMatches.CallUnary(ctx, req)
}

func (c *AdminServiceClient) GetMatch(ctx context.Context, req *connect.Request[GetMatchRequest]) (*connect.Response[GetMatchResponse], error) {
	return c.getMatch.CallUnary(ctx, req)
}
