package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kaizenbot/internal/models"
	"kaizenbot/internal/redis"
	"kaizenbot/internal/service/ai"
	"kaizenbot/internal/service/journal"
)

// Assistant is the slice of the AI service the admin API uses.
type Assistant interface {
	GenerateQuestions(ctx context.Context, userCtx *models.Context, recentAnswers []*models.Answer) []string
	AnalyzeAnswer(ctx context.Context, answer, question string, userCtx *models.Context) ai.Analysis
	MergeContext(ctx context.Context, oldContextText, newContextData string) (aboutMe, goals, areas string)
}

// Handler wires the admin HTTP routes to the journal store and the
// assistant. These routes serve operators and automation, not chat users.
type Handler struct {
	store     *journal.Service
	assistant Assistant
	cache     *redis.Client
	apiKey    string
	rlLimit   int
	rlWindow  time.Duration
}

// NewHandler constructs a Handler instance.
func NewHandler(store *journal.Service, assistant Assistant, cache *redis.Client, apiKey string, rlLimit int, rlWindow time.Duration) *Handler {
	return &Handler{
		store:     store,
		assistant: assistant,
		cache:     cache,
		apiKey:    apiKey,
		rlLimit:   rlLimit,
		rlWindow:  rlWindow,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)

	api := router.Group("/api")
	api.Use(rateLimitMiddleware(h.cache, h.rlLimit, h.rlWindow), apiKeyMiddleware(h.apiKey))

	api.GET("/users", h.listUsers)

	api.GET("/context", h.getContext)
	api.POST("/context", h.setContext)
	api.POST("/context/merge", h.mergeContext)

	api.GET("/questions", h.listQuestions)
	api.POST("/questions", h.createQuestion)
	api.POST("/questions/generate", h.generateQuestions)
	api.DELETE("/questions/:id", h.deleteQuestion)

	api.GET("/answers", h.listAnswers)
	api.POST("/answers", h.createAnswer)
	api.POST("/answers/analyze", h.analyzeAnswer)

	api.GET("/reminders", h.listReminders)
	api.POST("/reminders", h.createReminder)
	api.DELETE("/reminders/:id", h.deleteReminder)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// resolveUser identifies the target user from the telegram_id or user_id
// query parameter. Every /api route except /users operates on one user.
func (h *Handler) resolveUser(c *gin.Context) (*models.User, bool) {
	if raw := c.Query("telegram_id"); raw != "" {
		telegramID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || telegramID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram_id"})
			return nil, false
		}
		user, err := h.store.UserByTelegramID(c.Request.Context(), telegramID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return nil, false
		}
		return user, true
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return nil, false
		}
		user, err := h.store.UserByID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return nil, false
		}
		return user, true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "telegram_id or user_id required"})
	return nil, false
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if users == nil {
		users = make([]*models.User, 0)
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) getContext(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	userCtx, err := h.store.ContextByUserID(c.Request.Context(), user.ID)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, userCtx)
}

type contextRequest struct {
	AboutMe string `json:"about_me"`
	Goals   string `json:"goals"`
	Areas   string `json:"areas"`
}

func (h *Handler) setContext(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	var req contextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	userCtx, err := h.store.UpsertContext(c.Request.Context(), user.ID, req.AboutMe, req.Goals, req.Areas)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, userCtx)
}

type mergeContextRequest struct {
	Data string `json:"data"`
}

// mergeContext folds free-form profile text into the stored context through
// the assistant, then persists the merged result.
func (h *Handler) mergeContext(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	var req mergeContextRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Data == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data required"})
		return
	}

	existing := ""
	if userCtx, err := h.store.ContextByUserID(c.Request.Context(), user.ID); err == nil {
		existing = "About me: " + userCtx.AboutMe + "\nGoals: " + userCtx.Goals + "\nAreas: " + userCtx.Areas
	}
	aboutMe, goals, areas := h.assistant.MergeContext(c.Request.Context(), existing, req.Data)
	userCtx, err := h.store.UpsertContext(c.Request.Context(), user.ID, aboutMe, goals, areas)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, userCtx)
}

func (h *Handler) listQuestions(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	questions, err := h.store.ActiveQuestions(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if questions == nil {
		questions = make([]*models.Question, 0)
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

type questionRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func (h *Handler) createQuestion(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	source := models.SourceAgent
	if req.Source == string(models.SourceUser) {
		source = models.SourceUser
	}
	question, err := h.store.AddQuestion(c.Request.Context(), user.ID, req.Text, source)
	if err != nil {
		if errors.Is(err, journal.ErrQuestionLimit) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, question)
}

// generateQuestions asks the assistant for fresh personal questions based on
// the stored context and recent answers, and persists what fits under the
// per-user cap.
func (h *Handler) generateQuestions(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	userCtx, err := h.store.ContextByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, journal.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	recent, err := h.store.RecentAnswers(ctx, user.ID, 5)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	generated := h.assistant.GenerateQuestions(ctx, userCtx, recent)
	saved := make([]*models.Question, 0, len(generated))
	for _, text := range generated {
		question, err := h.store.AddQuestion(ctx, user.ID, text, models.SourceAgent)
		if err != nil {
			continue
		}
		saved = append(saved, question)
	}
	c.JSON(http.StatusCreated, gin.H{"questions": saved})
}

func (h *Handler) deleteQuestion(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	questionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || questionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}
	if err := h.store.DeactivateQuestion(c.Request.Context(), user.ID, questionID); err != nil {
		if errors.Is(err, journal.ErrNotFound) || errors.Is(err, journal.ErrNotOwner) {
			c.JSON(http.StatusNotFound, gin.H{"error": "question not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listAnswers(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	answers, err := h.store.RecentAnswers(c.Request.Context(), user.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if answers == nil {
		answers = make([]*models.Answer, 0)
	}
	c.JSON(http.StatusOK, gin.H{"answers": answers})
}

type answerRequest struct {
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
}

func (h *Handler) createAnswer(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	answer, err := h.store.AddAnswer(c.Request.Context(), user.ID, req.QuestionID, req.Text)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) || errors.Is(err, journal.ErrNotOwner) {
			c.JSON(http.StatusNotFound, gin.H{"error": "question not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, answer)
}

type analyzeRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (h *Handler) analyzeAnswer(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Answer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "answer required"})
		return
	}

	userCtx, err := h.store.ContextByUserID(c.Request.Context(), user.ID)
	if err != nil && !errors.Is(err, journal.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	analysis := h.assistant.AnalyzeAnswer(c.Request.Context(), req.Answer, req.Question, userCtx)
	c.JSON(http.StatusOK, analysis)
}

func (h *Handler) listReminders(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	reminders, err := h.store.ActiveReminders(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if reminders == nil {
		reminders = make([]*models.ReminderTime, 0)
	}
	c.JSON(http.StatusOK, gin.H{"reminders": reminders})
}

type reminderRequest struct {
	Time string `json:"time"`
}

func (h *Handler) createReminder(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	var req reminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	reminder, err := h.store.AddReminder(c.Request.Context(), user.ID, req.Time)
	if err != nil {
		if errors.Is(err, journal.ErrReminderLimit) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, reminder)
}

func (h *Handler) deleteReminder(c *gin.Context) {
	user, ok := h.resolveUser(c)
	if !ok {
		return
	}
	reminderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || reminderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reminder id"})
		return
	}
	if err := h.store.DeactivateReminder(c.Request.Context(), user.ID, reminderID); err != nil {
		if errors.Is(err, journal.ErrNotFound) || errors.Is(err, journal.ErrNotOwner) {
			c.JSON(http.StatusNotFound, gin.H{"error": "reminder not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
