package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnswerHandler handles student answer sessions and result views.
type AnswerHandler struct {
	answerService *service.AnswerService
	log           zerolog.Logger
}

// NewAnswerHandler creates a new AnswerHandler.
func NewAnswerHandler(answerService *service.AnswerService, log zerolog.Logger) *AnswerHandler {
	return &AnswerHandler{
		answerService: answerService,
		log:           log.With().Str("component", "answer_handler").Logger(),
	}
}

// Autosave godoc
// POST /api/v1/studentAnswers/:exam_id/autosave
// Replaces the stored draft with the full current answer list.
func (h *AnswerHandler) Autosave(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.AutosaveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.answerService.Autosave(c.Request.Context(), examID, middleware.GetCaller(c), req)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// Submit godoc
// POST /api/v1/studentAnswers/:exam_id/submit
// Grades and finalizes the attempt. Succeeds at most once per student.
func (h *AnswerHandler) Submit(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.answerService.Submit(c.Request.Context(), examID, middleware.GetCaller(c), req.Answers)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// GetMySubmission godoc
// GET /api/v1/studentAnswers/:exam_id
func (h *AnswerHandler) GetMySubmission(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	view, err := h.answerService.GetMySubmission(c.Request.Context(), examID, middleware.GetCaller(c))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"submission": view})
}

// ListExamResults godoc
// GET /api/v1/studentAnswers/exam/:exam_id/results?page=1&per_page=20
func (h *AnswerHandler) ListExamResults(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	rows, pagination, err := h.answerService.ListResultsForExam(c.Request.Context(), examID, middleware.GetCaller(c), page, perPage)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": rows}, pagination)
}

// ExportExamResults godoc
// GET /api/v1/studentAnswers/exam/:exam_id/results/export
// Streams the results as an XLSX workbook.
func (h *AnswerHandler) ExportExamResults(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	buf, filename, err := h.answerService.ExportResultsForExam(c.Request.Context(), examID, middleware.GetCaller(c))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ListClassScores godoc
// GET /api/v1/studentAnswers/class/:class_id/scores
func (h *AnswerHandler) ListClassScores(c *gin.Context) {
	classID, ok := intParam(c, "class_id")
	if !ok {
		return
	}

	rows, err := h.answerService.ListScoresForClass(c.Request.Context(), classID, middleware.GetCaller(c))
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"scores": rows})
}
