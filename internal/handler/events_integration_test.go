package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-intra/portal-events-api/internal/models"
	"github.com/halcyon-intra/portal-events-api/internal/repository"
	"github.com/halcyon-intra/portal-events-api/internal/service"
	"github.com/halcyon-intra/portal-events-api/pkg/config"
)

const testSecret = "integration_test_secret"

type occStoreStub struct {
	byID map[string]*models.Occurrence
	list []models.Occurrence
}

func (s *occStoreStub) List(ctx context.Context, filter models.OccurrenceFilter) ([]models.Occurrence, int, error) {
	return s.list, len(s.list), nil
}

func (s *occStoreStub) FindByID(ctx context.Context, id string) (*models.Occurrence, error) {
	if occ, ok := s.byID[id]; ok {
		copied := *occ
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *occStoreStub) BatchInsert(ctx context.Context, occurrences []models.Occurrence) error {
	return nil
}

func (s *occStoreStub) Update(ctx context.Context, occ *models.Occurrence) error { return nil }

func (s *occStoreStub) Delete(ctx context.Context, id string) error { return nil }

func (s *occStoreStub) ListByResourceOverlapping(ctx context.Context, resourceID string, start, end time.Time, limit int) ([]models.Occurrence, error) {
	return nil, nil
}

type regRepoStub struct {
	err error
}

func (s *regRepoStub) Register(ctx context.Context, p repository.RegisterParams) (*models.Registration, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Registration{
		ID:            models.RegistrationKey(p.OccurrenceID, p.AttendeeEmail),
		EventID:       p.OccurrenceID,
		AttendeeEmail: p.AttendeeEmail,
		AttendeeName:  p.AttendeeName,
		Status:        models.StatusRegistered,
	}, nil
}

func (s *regRepoStub) ListByEvent(ctx context.Context, eventID string) ([]models.Registration, error) {
	return nil, nil
}

type resRepoStub struct{}

func (resRepoStub) List(ctx context.Context) ([]models.Resource, error) { return nil, nil }

func (resRepoStub) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	return &models.Resource{ID: id, Name: "Main Hall"}, nil
}

func (resRepoStub) FindByName(ctx context.Context, name string) ([]models.Resource, error) {
	return nil, nil
}

func (resRepoStub) Create(ctx context.Context, res *models.Resource) error { return nil }

func buildEventsRouter(regErr error) *gin.Engine {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		APIPrefix: "/api/v1",
		JWT:       config.JWTConfig{Secret: testSecret},
		Events:    config.EventsConfig{RegOpensOffsetDays: 14, RegClosesOffsetDays: 1, MaxOccurrences: 366},
	}

	store := &occStoreStub{
		byID: map[string]*models.Occurrence{
			"pub-1":  {ID: "pub-1", Title: "Open Day", Status: models.StatusPublished, Visibility: models.VisibilityPublic},
			"priv-1": {ID: "priv-1", Title: "All Hands", Status: models.StatusPublished, Visibility: models.VisibilityPrivate},
		},
		list: []models.Occurrence{{ID: "pub-1", Title: "Open Day"}},
	}

	conflictSvc := service.NewConflictDetector(store, nil, nil)
	resourceSvc := service.NewResourceService(resRepoStub{}, nil, nil)
	eventSvc := service.NewEventService(store, conflictSvc, resourceSvc, nil, cfg.Events, nil, nil, nil)
	registrationSvc := service.NewRegistrationService(&regRepoStub{err: regErr}, store, nil, nil, nil, nil)

	router := gin.New()
	RegisterRoutes(router, cfg, Handlers{
		Events:    NewEventHandler(eventSvc, registrationSvc),
		Admin:     NewAdminEventHandler(eventSvc, registrationSvc),
		Resources: NewResourceHandler(resourceSvc),
	})
	return router
}

func signToken(t *testing.T, role models.UserRole) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID: "user-1",
		Role:   role,
		Email:  "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestEventRoutesIntegration(t *testing.T) {
	router := buildEventsRouter(nil)

	t.Run("public list", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/events", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"Open Day"`)
	})

	t.Run("public get hides private event", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/events/priv-1", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("public registration", func(t *testing.T) {
		body := bytes.NewBufferString(`{"attendee_name":"Jane","attendee_email":"jane@example.com"}`)
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/events/pub-1/registrations", body)
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		require.Contains(t, resp.Body.String(), `"pub-1:jane@example.com"`)
	})

	t.Run("intranet list requires token", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/intranet/events", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("intranet get with token sees private event", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/intranet/events/priv-1", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, models.RoleEmployee))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("admin create forbidden for employees", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/admin/events", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+signToken(t, models.RoleEmployee))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("admin create materializes", func(t *testing.T) {
		payload := `{
			"title": "Standup",
			"resource_id": "res-1",
			"start_at": "2024-01-01T10:00:00Z",
			"end_at": "2024-01-01T11:00:00Z",
			"recurrence": {"frequency": "daily", "interval": 1, "count": 3}
		}`
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/admin/events", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+signToken(t, models.RoleAdmin))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
		require.Contains(t, resp.Body.String(), `"requested":3`)
	})
}

func TestRegistrationRejectionSurfacesCode(t *testing.T) {
	router := buildEventsRouter(repository.ErrEventFull)

	body := bytes.NewBufferString(`{"attendee_name":"Jane","attendee_email":"jane@example.com"}`)
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/events/pub-1/registrations", body)
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Contains(t, resp.Body.String(), `"EVENT_FULL"`)
}
