package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/wayfarer-backend/internal/http/response"
	"github.com/yungbote/wayfarer-backend/internal/platform/apierr"
	"github.com/yungbote/wayfarer-backend/internal/services"
)

type FeedbackHandler struct {
	feedback services.FeedbackService
}

func NewFeedbackHandler(feedback services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

type submitFeedbackRequest struct {
	UserInput       string   `json:"user_input"`
	Response        string   `json:"response"`
	FeedbackScore   *float64 `json:"feedback_score"`
	FeedbackComment *string  `json:"feedback_comment"`
	IsHelpful       *bool    `json:"is_helpful"`
}

// POST /api/feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req submitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondMappedError(c, apierr.BadRequest("invalid_request", err))
		return
	}
	if req.FeedbackScore == nil {
		response.RespondMappedError(c, apierr.BadRequest("invalid_request", errors.New("feedback_score is required")))
		return
	}
	helpful := true
	if req.IsHelpful != nil {
		helpful = *req.IsHelpful
	}
	rec, err := h.feedback.SaveFeedback(c.Request.Context(), services.FeedbackInput{
		UserInput: req.UserInput,
		Response:  req.Response,
		Score:     *req.FeedbackScore,
		Comment:   req.FeedbackComment,
		IsHelpful: helpful,
	})
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"feedback": rec})
}

// GET /api/feedback/stats
func (h *FeedbackHandler) Stats(c *gin.Context) {
	stats, err := h.feedback.Stats(c.Request.Context())
	if err != nil {
		response.RespondMappedError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stats": stats})
}
