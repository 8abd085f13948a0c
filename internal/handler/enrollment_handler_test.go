package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/univreg/registrar-api/internal/service"
	"github.com/univreg/registrar-api/pkg/response"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestEnrollmentHandlerCreateRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEnrollmentHandler(service.NewEnrollmentService(nil, nil, nil, nil, nil, nil, nil, nil, nil), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/enrollments", bytes.NewBufferString("{not-json"))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestEnrollmentHandlerCreateRejectsMissingFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEnrollmentHandler(service.NewEnrollmentService(nil, nil, nil, nil, nil, nil, nil, nil, nil), nil)

	w := httptest.NewRecorder()
	body, _ := json.Marshal(map[string]int64{"student_id": 10})
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/enrollments", bytes.NewBuffer(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestEnrollmentHandlerGetRejectsNonNumericID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEnrollmentHandler(service.NewEnrollmentService(nil, nil, nil, nil, nil, nil, nil, nil, nil), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/enrollments/abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	h.Get(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestEnrollmentHandlerPostGradeRejectsEmptyGrade(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lifecycle := service.NewLifecycleService(nil, nil, nil, nil)
	h := NewEnrollmentHandler(nil, lifecycle)

	w := httptest.NewRecorder()
	body, _ := json.Marshal(map[string]string{"grade": ""})
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/enrollments/7/grade", bytes.NewBuffer(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "7"}}

	h.PostGrade(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}
