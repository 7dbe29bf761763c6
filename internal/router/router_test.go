package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/config"
	"github.com/qcmhub/qcm-backend/internal/handler"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/repository/memory"
	"github.com/qcmhub/qcm-backend/internal/response"
	"github.com/qcmhub/qcm-backend/internal/service"
	"github.com/qcmhub/qcm-backend/internal/validator"
	"github.com/rs/zerolog"
)

type testAPI struct {
	engine   *gin.Engine
	auth     *service.AuthService
	sessions *memory.Sessions
	qcm      *model.QCM
}

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
}

func newTestAPI(t *testing.T, joinRate int) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	cfg := &config.Config{
		GinMode:               gin.TestMode,
		JWTSecret:             "router-test-secret",
		JWTExpiry:             time.Hour,
		Location:              time.UTC,
		MinSecondsPerQuestion: 10,
		DefaultTotalGrade:     20,
		JoinRatePerMinute:     joinRate,
	}
	log := zerolog.Nop()

	qcm := &model.QCM{Title: "Algorithms", Level: "L1"}
	for i := 0; i < 4; i++ {
		q := model.Question{Text: fmt.Sprintf("Q%d", i+1), OrderNum: i + 1}
		for c := 0; c < 4; c++ {
			q.Choices = append(q.Choices, model.Choice{Text: fmt.Sprintf("c%d", c), IsCorrect: c == i})
		}
		qcm.Questions = append(qcm.Questions, q)
	}

	attempts := memory.NewAttempts()
	sessions := memory.NewSessions(attempts)
	bank := memory.NewBank(qcm)
	sessions.SetTitle(qcm.ID, qcm.Title)
	users := memory.NewDirectory(model.User{ID: 100, FirstName: "Lucas", LastName: "Bernard", Role: model.RoleStudent})

	auth := service.NewAuthService(cfg)
	registry := service.NewExamSessionService(sessions, bank, cfg, log)
	buffer := memory.NewBuffer()
	tracker := service.NewAttemptService(registry, attempts, bank, buffer, &memory.Publisher{}, log)
	scoring := service.NewScoringService(tracker, attempts, registry, bank, buffer, log)
	tracking := service.NewTrackingService(registry, attempts, users)

	handlers := &Handlers{
		ExamSession:   handler.NewExamSessionHandler(registry, tracking, log),
		StudentPortal: handler.NewStudentPortalHandler(registry, tracker, scoring, log),
		Monitor:       handler.NewMonitorHandler(tracking, nil, log),
		WS:            handler.NewWSHandler(tracker, scoring, log, nil),
	}

	return &testAPI{
		engine:   SetupRouter(auth, handlers, cfg),
		auth:     auth,
		sessions: sessions,
		qcm:      qcm,
	}
}

func (a *testAPI) token(t *testing.T, userID int, role model.Role, scopeID *int) string {
	t.Helper()
	tok, err := a.auth.GenerateToken(userID, role, scopeID)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, env envelope, status int, code response.ErrCode) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	if env.Error == nil || env.Error.Code != code {
		t.Fatalf("error = %+v, want %s", env.Error, code)
	}
}

func decode(t *testing.T, raw json.RawMessage, dst any) {
	t.Helper()
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}
}

func TestExamLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t, 30)
	prof := api.token(t, 7, model.RoleProfessor, nil)
	stud := api.token(t, 100, model.RoleStudent, nil)

	// Schedule.
	rec, env := api.do(t, http.MethodPost, "/api/v1/exams", prof, gin.H{
		"qcm_id":           api.qcm.ID.String(),
		"start_time":       time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
		"duration_minutes": 30,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Session model.ExamSession `json:"session"`
	}
	decode(t, env.Data, &created)
	if len(created.Session.Code) != 6 {
		t.Fatalf("join code = %q", created.Session.Code)
	}

	// Join with a lowercase code.
	rec, env = api.do(t, http.MethodPost, "/api/v1/student/exams/join", stud, gin.H{"code": strings.ToLower(created.Session.Code)})
	if rec.Code != http.StatusOK {
		t.Fatalf("join status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "no-store") {
		t.Fatalf("Cache-Control = %q", got)
	}
	var joined model.JoinResult
	decode(t, env.Data, &joined)
	if joined.Resumed || joined.ExamConfig.StartAtIndex != 0 || joined.ExamConfig.SecondsPerQuestion != 450 {
		t.Fatalf("join result = %+v", joined)
	}
	attemptPath := "/api/v1/student/attempts/" + joined.AttemptID.String()
	q := joined.QCM.Questions

	// Autosave then reload.
	rec, _ = api.do(t, http.MethodPut, attemptPath+"/answers", stud, gin.H{"question_id": q[0].ID.String(), "selected_index": 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", rec.Code, rec.Body.String())
	}
	rec, env = api.do(t, http.MethodGet, attemptPath, stud, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("state status = %d: %s", rec.Code, rec.Body.String())
	}
	var state model.AttemptState
	decode(t, env.Data, &state)
	if idx, ok := state.Answers[q[0].ID.String()]; !ok || idx != 0 {
		t.Fatalf("state answers = %v", state.Answers)
	}

	// Submit: q0 from the autosave, q1 right, q2 wrong, one bogus id.
	rec, env = api.do(t, http.MethodPost, attemptPath+"/submit", stud, gin.H{"answers": []gin.H{
		{"question_id": q[1].ID.String(), "selected_index": 1},
		{"question_id": q[2].ID.String(), "selected_index": 0},
		{"question_id": "bogus", "selected_index": 2},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body.String())
	}
	var result model.SubmitResult
	decode(t, env.Data, &result)
	if result.Score != 10 || result.CorrectCount != 2 || result.Status != model.AttemptStatusFinished {
		t.Fatalf("submit result = %+v", result)
	}

	rec, env = api.do(t, http.MethodPost, attemptPath+"/submit", stud, nil)
	expectError(t, rec, env, http.StatusConflict, response.ErrAlreadySubmitted)

	// Owner views.
	rec, env = api.do(t, http.MethodGet, "/api/v1/exams/"+created.Session.ID.String()+"/results", prof, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("results status = %d: %s", rec.Code, rec.Body.String())
	}
	var results struct {
		Results []model.AttemptResult `json:"results"`
	}
	decode(t, env.Data, &results)
	if len(results.Results) != 1 || results.Results[0].StudentName != "Lucas Bernard" || results.Results[0].Status != model.AttemptStatusFinished {
		t.Fatalf("results = %+v", results.Results)
	}

	rec, env = api.do(t, http.MethodDelete, "/api/v1/exams/"+created.Session.ID.String(), prof, nil)
	expectError(t, rec, env, http.StatusConflict, response.ErrConflict)
}

func TestRouteGuards(t *testing.T) {
	api := newTestAPI(t, 30)
	prof := api.token(t, 7, model.RoleProfessor, nil)
	stud := api.token(t, 100, model.RoleStudent, nil)
	mgr := api.token(t, 3, model.RoleManager, nil)

	rec, env := api.do(t, http.MethodGet, "/api/v1/exams/mine", "", nil)
	expectError(t, rec, env, http.StatusUnauthorized, response.ErrTokenRequired)

	rec, env = api.do(t, http.MethodGet, "/api/v1/exams/mine", "not-a-jwt", nil)
	expectError(t, rec, env, http.StatusUnauthorized, response.ErrTokenInvalid)

	rec, env = api.do(t, http.MethodPost, "/api/v1/exams", stud, gin.H{})
	expectError(t, rec, env, http.StatusForbidden, response.ErrPermissionDenied)

	rec, env = api.do(t, http.MethodGet, "/api/v1/student/exams/active", prof, nil)
	expectError(t, rec, env, http.StatusForbidden, response.ErrPermissionDenied)

	rec, env = api.do(t, http.MethodGet, "/api/v1/exams/all", prof, nil)
	expectError(t, rec, env, http.StatusForbidden, response.ErrPermissionDenied)

	rec, env = api.do(t, http.MethodGet, "/api/v1/exams/all?page=1&per_page=5", mgr, nil)
	if rec.Code != http.StatusOK || env.Pagination == nil || env.Pagination.PerPage != 5 {
		t.Fatalf("manager list = %d %+v", rec.Code, env.Pagination)
	}

	rec, env = api.do(t, http.MethodGet, "/api/v1/student/attempts/not-a-uuid", stud, nil)
	expectError(t, rec, env, http.StatusBadRequest, response.ErrInvalidID)

	rec, env = api.do(t, http.MethodGet, "/api/v1/student/attempts/"+uuid.NewString(), stud, nil)
	expectError(t, rec, env, http.StatusNotFound, response.ErrNotFound)
}

func TestRequestValidation(t *testing.T) {
	api := newTestAPI(t, 30)
	prof := api.token(t, 7, model.RoleProfessor, nil)
	stud := api.token(t, 100, model.RoleStudent, nil)

	rec, env := api.do(t, http.MethodPost, "/api/v1/student/exams/join", stud, gin.H{"code": "AB-123"})
	expectError(t, rec, env, http.StatusBadRequest, response.ErrValidation)
	if env.Error.Fields["code"] == "" {
		t.Fatalf("fields = %v, want a code entry", env.Error.Fields)
	}

	rec, env = api.do(t, http.MethodPost, "/api/v1/exams", prof, gin.H{
		"qcm_id":           api.qcm.ID.String(),
		"start_time":       "tomorrow morning",
		"duration_minutes": 30,
	})
	expectError(t, rec, env, http.StatusUnprocessableEntity, response.ErrInvalidTimestamp)

	rec, env = api.do(t, http.MethodPost, "/api/v1/exams", prof, gin.H{
		"qcm_id":           api.qcm.ID.String(),
		"start_time":       "2026-03-02T10:00:00Z",
		"duration_minutes": 0,
	})
	expectError(t, rec, env, http.StatusBadRequest, response.ErrValidation)

	rec, env = api.do(t, http.MethodPost, "/api/v1/exams", prof, gin.H{
		"qcm_id":           uuid.NewString(),
		"start_time":       "2026-03-02T10:00:00Z",
		"duration_minutes": 30,
	})
	expectError(t, rec, env, http.StatusNotFound, response.ErrNotFound)
}

func TestJoinWindowAndScope(t *testing.T) {
	api := newTestAPI(t, 30)
	stud := api.token(t, 100, model.RoleStudent, nil)
	now := time.Now()

	later := model.ExamSession{
		ID: uuid.New(), Code: "LATER1", QCMID: api.qcm.ID, OwnerID: 7, IsActive: true,
		StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour), DurationMinutes: 60, TotalGrade: 20,
	}
	scoped := model.ExamSession{
		ID: uuid.New(), Code: "SCOPE1", QCMID: api.qcm.ID, OwnerID: 7, IsActive: true, ScopeID: intPtr(9),
		StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour), DurationMinutes: 60, TotalGrade: 20,
	}
	disabled := scoped
	disabled.ID, disabled.Code, disabled.ScopeID, disabled.IsActive = uuid.New(), "OFF001", nil, false
	api.sessions.Put(later)
	api.sessions.Put(scoped)
	api.sessions.Put(disabled)

	rec, env := api.do(t, http.MethodPost, "/api/v1/student/exams/join", stud, gin.H{"code": "LATER1"})
	expectError(t, rec, env, http.StatusForbidden, response.ErrSessionNotOpen)

	rec, env = api.do(t, http.MethodPost, "/api/v1/student/exams/join", stud, gin.H{"code": "SCOPE1"})
	expectError(t, rec, env, http.StatusForbidden, response.ErrForbidden)

	rec, env = api.do(t, http.MethodPost, "/api/v1/student/exams/join", stud, gin.H{"code": "OFF001"})
	expectError(t, rec, env, http.StatusGone, response.ErrSessionInactive)

	inScope := api.token(t, 101, model.RoleStudent, intPtr(9))
	rec, env = api.do(t, http.MethodGet, "/api/v1/student/exams/active", inScope, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("active status = %d", rec.Code)
	}
	var active struct {
		Sessions []model.ExamSessionSummary `json:"sessions"`
	}
	decode(t, env.Data, &active)
	if len(active.Sessions) != 1 || active.Sessions[0].Code != "SCOPE1" || active.Sessions[0].QCMTitle != "Algorithms" {
		t.Fatalf("active sessions = %+v", active.Sessions)
	}
}

func TestJoinIsRateLimitedPerStudent(t *testing.T) {
	api := newTestAPI(t, 2)
	first := api.token(t, 100, model.RoleStudent, nil)
	second := api.token(t, 101, model.RoleStudent, nil)

	for i := 0; i < 2; i++ {
		rec, _ := api.do(t, http.MethodPost, "/api/v1/student/exams/join", first, gin.H{"code": "NOPE01"})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("attempt %d status = %d", i, rec.Code)
		}
	}
	rec, env := api.do(t, http.MethodPost, "/api/v1/student/exams/join", first, gin.H{"code": "NOPE01"})
	expectError(t, rec, env, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}

	rec, _ = api.do(t, http.MethodPost, "/api/v1/student/exams/join", second, gin.H{"code": "NOPE01"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("other student status = %d, want 404", rec.Code)
	}
}

func TestOwnerViewsAcceptQueryToken(t *testing.T) {
	api := newTestAPI(t, 30)
	now := time.Now()
	session := model.ExamSession{
		ID: uuid.New(), Code: "LIVE01", QCMID: api.qcm.ID, OwnerID: 7, IsActive: true,
		StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour), DurationMinutes: 60, TotalGrade: 20,
	}
	api.sessions.Put(session)

	prof := api.token(t, 7, model.RoleProfessor, nil)
	rec, _ := api.do(t, http.MethodGet, "/api/v1/exams/"+session.ID.String()+"/live?token="+prof, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("live status = %d: %s", rec.Code, rec.Body.String())
	}

	// The monitor stream rejects non-owners before any event is written.
	other := api.token(t, 8, model.RoleProfessor, nil)
	rec, env := api.do(t, http.MethodGet, "/api/v1/exams/"+session.ID.String()+"/monitor?token="+other, "", nil)
	expectError(t, rec, env, http.StatusForbidden, response.ErrForbidden)
}

func intPtr(v int) *int { return &v }
