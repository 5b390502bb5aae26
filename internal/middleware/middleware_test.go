package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/internal/service"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
	"github.com/noah-isme/dispatch-api/pkg/middleware/requestid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type validatorStub map[string]*models.JWTClaims

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrInvalidToken, "invalid token")
}

type recorderStub struct {
	entries []*models.AuditLog
	err     error
}

func (r *recorderStub) Record(ctx context.Context, log *models.AuditLog) error {
	r.entries = append(r.entries, log)
	return r.err
}

func tokens() validatorStub {
	return validatorStub{
		"admin-token":  {UserID: "u-admin", Role: models.RoleAdmin},
		"viewer-token": {UserID: "u-viewer", Role: models.RoleViewer},
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestJWTAndRoles(t *testing.T) {
	router := gin.New()
	router.POST("/plan", JWT(tokens()), RequireRoles(models.RoleAdmin, models.RoleDispatcher), func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})

	cases := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{name: "missing header", status: http.StatusUnauthorized, code: appErrors.ErrUnauthorized.Code},
		{name: "not bearer", header: "Basic abc", status: http.StatusUnauthorized, code: appErrors.ErrUnauthorized.Code},
		{name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized, code: appErrors.ErrInvalidToken.Code},
		{name: "wrong role", header: "Bearer viewer-token", status: http.StatusForbidden, code: appErrors.ErrForbidden.Code},
		{name: "allowed", header: "bearer admin-token", status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/plan", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.code != "" {
				assert.Equal(t, tc.code, errorCode(t, rec))
			} else {
				assert.Equal(t, "u-admin", rec.Body.String())
			}
		})
	}
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	router := gin.New()
	router.GET("/x", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	recorder := &recorderStub{}
	router := gin.New()
	router.Use(JWT(tokens()))
	router.POST("/runs", Audit(recorder, nil, models.AuditActionBatchRunSubmit, models.AuditResourceAssignmentEngine), func(c *gin.Context) {
		SetAuditResourceID(c, "run-1")
		c.Status(http.StatusAccepted)
	})
	router.POST("/fail", Audit(recorder, nil, models.AuditActionBatchRunSubmit, models.AuditResourceAssignmentEngine), func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})

	for _, path := range []string{"/runs", "/fail"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer admin-token")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, models.AuditActionBatchRunSubmit, entry.Action)
	assert.Equal(t, "u-admin", *entry.UserID)
	assert.Equal(t, "run-1", *entry.ResourceID)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.NewValues, &payload))
	assert.Equal(t, "/runs", payload["path"])
	assert.EqualValues(t, http.StatusAccepted, payload["status"])
}

func TestAuditIgnoresRecorderFailure(t *testing.T) {
	recorder := &recorderStub{err: errors.New("db down")}
	router := gin.New()
	router.POST("/runs", Audit(recorder, nil, "A", "r"), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, recorder.entries, 1)
}

func TestResponseMetaIncludesRequestIDAndTiming(t *testing.T) {
	router := gin.New()
	router.Use(requestid.Middleware(), WithResponseMeta())
	router.GET("/meta", func(c *gin.Context) {
		SetMeta(c, "total_scored", 4)
		c.JSON(http.StatusOK, ResponseMeta(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/meta", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, "req-123", meta["request_id"])
	assert.EqualValues(t, 4, meta["total_scored"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestMetricsSkipsScrapePath(t *testing.T) {
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics, "/metrics"))
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/jobs/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/metrics", "/jobs/1", "/jobs/2", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, uint64(3), metrics.Snapshot().RequestsTotal)
}
