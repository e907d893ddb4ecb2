package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository/inmem"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// noCache always misses so every read goes to the store.
type noCache struct{}

func (noCache) Get(context.Context, uuid.UUID) (map[uuid.UUID]model.AnswerKey, bool, error) {
	return nil, false, nil
}
func (noCache) Generation(context.Context, uuid.UUID) (int64, error) { return 0, nil }
func (noCache) Set(context.Context, uuid.UUID, int64, map[uuid.UUID]model.AnswerKey) error {
	return nil
}
func (noCache) Invalidate(context.Context, uuid.UUID) error { return nil }

type testServer struct {
	engine *gin.Engine
	auth   *service.AuthService
	exams  *service.ExamService

	classID int
	tokens  map[string]string
	callers map[string]model.CallerIdentity
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	log := zerolog.Nop()
	cfg := &config.Config{JWTSecret: "secret", JWTExpiry: time.Hour, BcryptCost: 4, CookieName: "token"}

	db := inmem.NewDB()
	exams := inmem.NewExamRepository(db)
	questions := inmem.NewQuestionRepository(db)
	sessions := inmem.NewAnswerSessionRepository(db)
	users := inmem.NewUserRepository(db)
	classes := inmem.NewClassRepository(db)

	auth := service.NewAuthService(cfg, users)
	examSvc := service.NewExamService(exams, classes, noCache{}, log)
	questionSvc := service.NewQuestionService(exams, questions, noCache{}, "salt", log)
	answerSvc := service.NewAnswerService(exams, classes, sessions, questionSvc, nil, nil, log)
	userSvc := service.NewUserService(users, classes, auth, log)

	class := &model.Class{Name: "XI IPA 1", GradeLevel: 11}
	require.NoError(t, classes.Create(ctx, class))

	s := &testServer{
		auth:    auth,
		exams:   examSvc,
		classID: class.ID,
		tokens:  map[string]string{},
		callers: map[string]model.CallerIdentity{},
	}
	for _, u := range []struct {
		name string
		role model.Role
	}{{"guru1", model.RoleTeacher}, {"guru2", model.RoleTeacher}, {"admin", model.RoleAdmin}, {"siswa1", model.RoleStudent}} {
		req := model.CreateUserRequest{Username: u.name, Name: u.name, Password: "rahasia", Role: u.role}
		if u.role == model.RoleStudent {
			req.ClassID = &class.ID
		}
		user, err := userSvc.Register(ctx, req)
		require.NoError(t, err)
		token, err := auth.GenerateToken(user)
		require.NoError(t, err)
		s.tokens[u.name] = token
		s.callers[u.name] = model.CallerIdentity{ID: user.ID, Role: user.Role, ClassID: user.ClassID}
	}

	authH := NewAuthHandler(auth, cfg, log)
	questionH := NewQuestionHandler(questionSvc, log)
	answerH := NewAnswerHandler(answerSvc, log)

	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	api := r.Group("/api/v1")
	api.POST("/auth/login", authH.Login)
	authed := api.Group("", middleware.RequireAuth(auth, cfg.CookieName))
	authed.GET("/auth/me", authH.Me)
	authed.GET("/questions", questionH.ListQuestions)
	authed.GET("/questions/exam/:exam_id", questionH.ListQuestions)
	authed.POST("/questions/exam/:exam_id", questionH.AddQuestion)
	authed.PUT("/questions/:question_id", questionH.UpdateQuestion)
	authed.POST("/studentAnswers/:exam_id/autosave", answerH.Autosave)
	authed.POST("/studentAnswers/:exam_id/submit", answerH.Submit)
	authed.GET("/studentAnswers/:exam_id", answerH.GetMySubmission)
	authed.GET("/studentAnswers/exam/:exam_id/results", answerH.ListExamResults)
	authed.GET("/studentAnswers/exam/:exam_id/results/export", answerH.ExportExamResults)
	wsH := NewWSHandler(examSvc, answerSvc, log, nil)
	r.GET("/ws/v1/exams/:exam_id/stream", middleware.RequireAuth(auth, cfg.CookieName), wsH.ExamWebSocketStream)
	s.engine = r
	return s
}

func (s *testServer) do(t *testing.T, method, path, user string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[user])
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env map[string]any
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func errorCode(env map[string]any) string {
	e, _ := env["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

// seedExam creates an ongoing exam with questions keyed A, B, C at one point each.
func (s *testServer) seedExam(t *testing.T) (uuid.UUID, []string) {
	t.Helper()
	ctx := context.Background()
	no := false
	exam, err := s.exams.Create(ctx, s.callers["guru1"], model.CreateExamRequest{
		Title: "Kuis", ClassID: s.classID, Category: model.ExamCategoryPractice, TimerMinutes: 1, ShuffleQuestions: &no,
	})
	require.NoError(t, err)
	_, err = s.exams.Update(ctx, exam.ID, s.callers["guru1"], model.UpdateExamRequest{Status: model.ExamStatusOngoing})
	require.NoError(t, err)

	var ids []string
	for i, key := range []string{"A", "B", "C"} {
		rec, env := s.do(t, http.MethodPost, "/api/v1/questions/exam/"+exam.ID.String(), "guru1", gin.H{
			"question_text": "Soal", "options": []string{"A", "B", "C", "D"}, "answer_key": key, "order_num": i + 1,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		q := env["data"].(map[string]any)["question"].(map[string]any)
		ids = append(ids, q["id"].(string))
	}
	return exam.ID, ids
}

func answersPayload(ids []string, picks ...string) []gin.H {
	out := make([]gin.H, len(picks))
	for i, p := range picks {
		out[i] = gin.H{"question_id": ids[i], "selected_option": p}
	}
	return out
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "siswa1", "password": "salah"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(env))

	rec, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "siswa1", "password": "rahasia"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"siswa1"`)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestStudentQuestionReadsHaveNoAnswerKey(t *testing.T) {
	s := newTestServer(t)
	examID, _ := s.seedExam(t)

	rec, _ := s.do(t, http.MethodGet, "/api/v1/questions/exam/"+examID.String(), "siswa1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "answer_key")

	rec, _ = s.do(t, http.MethodGet, "/api/v1/questions?examId="+examID.String(), "guru2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "answer_key")

	rec, env := s.do(t, http.MethodGet, "/api/v1/questions?examId=nope", "guru2", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", errorCode(env))
}

func TestSubmitFlow(t *testing.T) {
	s := newTestServer(t)
	examID, ids := s.seedExam(t)
	base := "/api/v1/studentAnswers/" + examID.String()

	rec, env := s.do(t, http.MethodPost, base+"/autosave", "siswa1", gin.H{"answers": answersPayload(ids, "A"), "seq": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(t, http.MethodPost, base+"/autosave", "siswa1", gin.H{"answers": answersPayload(ids, "B"), "seq": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "STALE_AUTOSAVE", errorCode(env))

	rec, env = s.do(t, http.MethodPost, base+"/submit", "guru1", gin.H{"answers": answersPayload(ids, "A")})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(env))

	rec, env = s.do(t, http.MethodPost, base+"/submit", "siswa1", gin.H{"answers": answersPayload(ids, "A", "B", "D")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := env["data"].(map[string]any)
	assert.Equal(t, 2.0, data["score"])
	assert.Equal(t, "graded", data["result"].(map[string]any)["grading_status"])

	rec, env = s.do(t, http.MethodPost, base+"/submit", "siswa1", gin.H{"answers": answersPayload(ids, "A", "B", "C")})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_SUBMITTED", errorCode(env))

	rec, _ = s.do(t, http.MethodGet, base, "siswa1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "answer_key")

	rec, env = s.do(t, http.MethodGet, "/api/v1/studentAnswers/exam/"+examID.String()+"/results?per_page=5", "guru2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pagination := env["pagination"].(map[string]any)
	assert.Equal(t, 1.0, pagination["total_items"])

	rec, _ = s.do(t, http.MethodGet, "/api/v1/studentAnswers/exam/"+examID.String()+"/results/export", "guru1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "hasil_Kuis.xlsx")
}

func TestSubmitErrors(t *testing.T) {
	s := newTestServer(t)
	examID, ids := s.seedExam(t)
	submit := "/api/v1/studentAnswers/" + examID.String() + "/submit"

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{name: "unknown question", body: gin.H{"answers": []gin.H{{"question_id": uuid.NewString(), "selected_option": "A"}}}, status: http.StatusNotFound, code: "QUESTION_NOT_FOUND"},
		{name: "duplicate question", body: gin.H{"answers": answersPayload([]string{ids[0], ids[0]}, "A", "B")}, status: http.StatusBadRequest, code: "DUPLICATE_QUESTION"},
		{name: "missing answers", body: gin.H{}, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodPost, submit, "siswa1", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(env))
		})
	}

	rec, env := s.do(t, http.MethodPost, "/api/v1/studentAnswers/"+uuid.NewString()+"/submit", "siswa1", gin.H{"answers": []gin.H{}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(env))

	rec, env = s.do(t, http.MethodPost, submit, "", gin.H{"answers": []gin.H{}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REQUIRED", errorCode(env))
}

func TestQuestionEditOwnership(t *testing.T) {
	s := newTestServer(t)
	examID, ids := s.seedExam(t)
	body := gin.H{"question_text": "Soal", "options": []string{"A", "B"}, "answer_key": "B"}

	rec, env := s.do(t, http.MethodPut, "/api/v1/questions/"+ids[0], "guru2", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(env))

	rec, _ = s.do(t, http.MethodPut, "/api/v1/questions/"+ids[0], "admin", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/api/v1/questions/exam/"+examID.String(), "guru1",
		gin.H{"question_text": "Soal", "options": []string{"A", "A"}, "answer_key": "A"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(env))
	assert.Contains(t, env["error"].(map[string]any)["fields"], "options")

	rec, env = s.do(t, http.MethodPost, "/api/v1/questions/exam/"+examID.String(), "guru1",
		gin.H{"question_text": "Soal", "options": []string{"A", "B"}, "answer_key": "C"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ANSWER_KEY_NOT_IN_OPTIONS", errorCode(env))
}
