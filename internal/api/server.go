package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adwatch/internal/auth"
	"github.com/adwatch/internal/models"
	"github.com/adwatch/internal/schedule"
	"github.com/adwatch/internal/trigger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Server is the dashboard API: CRUD over rules and schedules, notification
// and execution-log listing, and manual engine triggers. All engine work
// happens in the trigger/pipeline; handlers are request/response glue.
type Server struct {
	db      *gorm.DB
	trig    *trigger.Trigger
	auth    *auth.Service
	router  *gin.Engine
	metrics prometheus.Gatherer
}

func NewServer(db *gorm.DB, trig *trigger.Trigger, authSvc *auth.Service, metrics prometheus.Gatherer) *Server {
	s := &Server{
		db:      db,
		trig:    trig,
		auth:    authSvc,
		router:  gin.Default(),
		metrics: metrics,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{})))
	s.router.POST("/api/v1/auth/login", s.login)

	api := s.router.Group("/api/v1")
	api.Use(s.auth.Middleware())

	rules := api.Group("/rules")
	{
		rules.GET("", s.listRules)
		rules.GET("/:id", s.getRule)
		rules.POST("", auth.RequireRole(models.RoleAdmin), s.createRule)
		rules.PUT("/:id", auth.RequireRole(models.RoleAdmin), s.updateRule)
		rules.DELETE("/:id", auth.RequireRole(models.RoleAdmin), s.deleteRule)
		rules.PUT("/:id/enable", auth.RequireRole(models.RoleAdmin), s.setRuleActive(true))
		rules.PUT("/:id/disable", auth.RequireRole(models.RoleAdmin), s.setRuleActive(false))
		rules.GET("/:id/executions", s.listRuleExecutions)
	}

	schedules := api.Group("/schedules")
	{
		schedules.GET("", s.listSchedules)
		schedules.POST("", auth.RequireRole(models.RoleAdmin), s.createSchedule)
		schedules.PUT("/:id/enable", auth.RequireRole(models.RoleAdmin), s.setScheduleActive(true))
		schedules.PUT("/:id/disable", auth.RequireRole(models.RoleAdmin), s.setScheduleActive(false))
		schedules.GET("/:id/executions", s.listScheduleExecutions)
	}

	api.GET("/notifications", s.listNotifications)
	api.PUT("/notifications/:id/read", s.markNotificationRead)

	run := api.Group("/run")
	run.Use(auth.RequireRole(models.RoleAdmin))
	run.POST("/schedules", s.runSchedules)
	run.POST("/alerts", s.runAlerts)
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := s.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !user.CheckPassword(req.Password) || !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.auth.GenerateToken(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "role": user.Role})
}

func (s *Server) listRules(c *gin.Context) {
	var rules []models.AlertRule
	q := s.db
	if active := c.Query("active"); active != "" {
		q = q.Where("is_active = ?", active == "true")
	}
	if err := q.Find(&rules).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch rules"})
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) getRule(c *gin.Context) {
	var rule models.AlertRule
	if err := s.db.First(&rule, c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch rule"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func validRule(rule *models.AlertRule) error {
	switch rule.Metric {
	case models.MetricCPA, models.MetricROAS, models.MetricCTR, models.MetricCPC,
		models.MetricCPM, models.MetricSpend, models.MetricImpressions, models.MetricClicks:
	default:
		return fmt.Errorf("unknown metric %q", rule.Metric)
	}
	switch rule.Comparison {
	case models.ComparisonGT, models.ComparisonLT, models.ComparisonEQ,
		models.ComparisonNE, models.ComparisonGTE, models.ComparisonLTE:
	default:
		return fmt.Errorf("unknown comparison %q", rule.Comparison)
	}
	return nil
}

func (s *Server) createRule(c *gin.Context) {
	// Flags are pointers so an omitted field defaults to on while an
	// explicit false survives the insert.
	var req struct {
		Name         string            `json:"name" binding:"required"`
		Platform     string            `json:"platform"`
		Country      string            `json:"country"`
		Objective    string            `json:"objective"`
		Metric       models.Metric     `json:"metric"`
		Comparison   models.Comparison `json:"comparison"`
		Threshold    float64           `json:"threshold"`
		IsActive     *bool             `json:"is_active"`
		EmailEnabled *bool             `json:"email_enabled"`
		InAppEnabled *bool             `json:"in_app_enabled"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule := models.AlertRule{
		UserID:       c.GetUint("user_id"),
		Name:         req.Name,
		Platform:     req.Platform,
		Country:      req.Country,
		Objective:    req.Objective,
		Metric:       req.Metric,
		Comparison:   req.Comparison,
		Threshold:    req.Threshold,
		IsActive:     flagOr(req.IsActive, true),
		EmailEnabled: flagOr(req.EmailEnabled, true),
		InAppEnabled: flagOr(req.InAppEnabled, true),
	}
	if err := validRule(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.db.Create(&rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create rule"})
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) updateRule(c *gin.Context) {
	var rule models.AlertRule
	if err := s.db.First(&rule, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	var req models.AlertRule
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validRule(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule.Name = req.Name
	rule.Platform = req.Platform
	rule.Country = req.Country
	rule.Objective = req.Objective
	rule.Metric = req.Metric
	rule.Comparison = req.Comparison
	rule.Threshold = req.Threshold
	rule.EmailEnabled = req.EmailEnabled
	rule.InAppEnabled = req.InAppEnabled

	if err := s.db.Save(&rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update rule"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) deleteRule(c *gin.Context) {
	if err := s.db.Delete(&models.AlertRule{}, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete rule"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) setRuleActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.db.Model(&models.AlertRule{}).
			Where("id = ?", c.Param("id")).
			Update("is_active", active).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update rule"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"is_active": active})
	}
}

func (s *Server) listRuleExecutions(c *gin.Context) {
	var execs []models.AlertRuleExecution
	err := s.db.Where("rule_id = ?", c.Param("id")).
		Order("ran_at desc").Limit(queryLimit(c)).
		Find(&execs).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch executions"})
		return
	}
	c.JSON(http.StatusOK, execs)
}

func (s *Server) listSchedules(c *gin.Context) {
	var defs []models.ScheduleDefinition
	if err := s.db.Find(&defs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch schedules"})
		return
	}
	c.JSON(http.StatusOK, defs)
}

func (s *Server) createSchedule(c *gin.Context) {
	var def models.ScheduleDefinition
	if err := c.BindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if def.JobType != models.JobTypeReport && def.JobType != models.JobTypeExport {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown job type %q", def.JobType)})
		return
	}

	next, err := schedule.NextRunFor(&def, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	def.NextRun = next
	if def.Frequency == models.FrequencyOnce {
		// One-time jobs are due immediately; the selector policy for the
		// job type decides how a null next_run is treated.
		now := time.Now().UTC()
		def.NextRun = &now
	}
	def.Status = models.ScheduleStatusIdle
	def.IsActive = true

	if err := s.db.Create(&def).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create schedule"})
		return
	}
	c.JSON(http.StatusCreated, def)
}

func (s *Server) setScheduleActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.db.Model(&models.ScheduleDefinition{}).
			Where("id = ?", c.Param("id")).
			Update("is_active", active).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update schedule"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"is_active": active})
	}
}

func (s *Server) listScheduleExecutions(c *gin.Context) {
	var entries []models.ExecutionLogEntry
	err := s.db.Where("schedule_id = ?", c.Param("id")).
		Order("ran_at desc").Limit(queryLimit(c)).
		Find(&entries).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch executions"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) listNotifications(c *gin.Context) {
	var notifications []models.AlertNotification
	q := s.db.Order("triggered_at desc").Limit(queryLimit(c))
	if unread := c.Query("unread"); unread == "true" {
		q = q.Where("is_read = ?", false)
	}
	if err := q.Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (s *Server) markNotificationRead(c *gin.Context) {
	err := s.db.Model(&models.AlertNotification{}).
		Where("id = ?", c.Param("id")).
		Update("is_read", true).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_read": true})
}

func (s *Server) runSchedules(c *gin.Context) {
	if started := s.trig.RunSchedulesNow(c.Request.Context()); !started {
		c.JSON(http.StatusConflict, gin.H{"error": "schedule run already in progress"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (s *Server) runAlerts(c *gin.Context) {
	if started := s.trig.RunAlertsNow(c.Request.Context()); !started {
		c.JSON(http.StatusConflict, gin.H{"error": "alert run already in progress"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func flagOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func queryLimit(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 100
}
