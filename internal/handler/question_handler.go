package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// QuestionHandler serves the question bank. Students always get the
// projection without answer keys.
type QuestionHandler struct {
	questionService *service.QuestionService
	log             zerolog.Logger
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService, log zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		log:             log.With().Str("component", "question_handler").Logger(),
	}
}

// ListQuestions godoc
// GET /api/v1/questions?examId=...
// GET /api/v1/questions/exam/:exam_id
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	raw := c.Param("exam_id")
	if raw == "" {
		raw = c.Query("examId")
	}
	examID, err := uuid.Parse(raw)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ctx := c.Request.Context()
	caller := middleware.GetCaller(c)

	if caller.IsStudent() {
		questions, err := h.questionService.ListForStudent(ctx, examID, caller)
		if err != nil {
			failFromError(c, h.log, err)
			return
		}
		response.Success(c, http.StatusOK, gin.H{"questions": questions})
		return
	}

	questions, err := h.questionService.ListForStaff(ctx, examID, caller)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// GetQuestion godoc
// GET /api/v1/questions/:question_id
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	questionID, ok := uuidParam(c, "question_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	caller := middleware.GetCaller(c)

	var (
		question any
		err      error
	)
	if caller.IsStudent() {
		question, err = h.questionService.GetForStudent(ctx, questionID, caller)
	} else {
		question, err = h.questionService.GetForStaff(ctx, questionID, caller)
	}
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// AddQuestion godoc
// POST /api/v1/questions/exam/:exam_id
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.AddQuestion(c.Request.Context(), examID, middleware.GetCaller(c), req)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// UpdateQuestion godoc
// PUT /api/v1/questions/:question_id
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	questionID, ok := uuidParam(c, "question_id")
	if !ok {
		return
	}

	var req model.UpdateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.UpdateQuestion(c.Request.Context(), questionID, middleware.GetCaller(c), req)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// DeleteQuestion godoc
// DELETE /api/v1/questions/:question_id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	questionID, ok := uuidParam(c, "question_id")
	if !ok {
		return
	}

	if err := h.questionService.DeleteQuestion(c.Request.Context(), questionID, middleware.GetCaller(c)); err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "question deleted successfully"})
}
