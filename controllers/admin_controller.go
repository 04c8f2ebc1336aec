package controllers

import (
	"strconv"

	"goldenminutes/models"
	"goldenminutes/services"
	"goldenminutes/utils"
	"goldenminutes/workers"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AdminController struct {
	responderService *services.ResponderService
	safetyService    *services.SafetyService
	analyticsService *services.AnalyticsService
	sweepWorker      *workers.SweepWorker
}

func NewAdminController(
	responderService *services.ResponderService,
	safetyService *services.SafetyService,
	analyticsService *services.AnalyticsService,
	sweepWorker *workers.SweepWorker,
) *AdminController {
	return &AdminController{
		responderService: responderService,
		safetyService:    safetyService,
		analyticsService: analyticsService,
		sweepWorker:      sweepWorker,
	}
}

// =================== VOLUNTEER VERIFICATION ===================

func (ac *AdminController) ApproveVolunteer(c *gin.Context) {
	profile, err := ac.responderService.ApproveVolunteer(c.Request.Context(), c.Param("userId"), utils.GetUserID(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Volunteer approved", profile)
}

func (ac *AdminController) RejectVolunteer(c *gin.Context) {
	profile, err := ac.responderService.RejectVolunteer(c.Request.Context(), c.Param("userId"), utils.GetUserID(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Volunteer rejected", profile)
}

// =================== AREAS ===================

func (ac *AdminController) UpsertArea(c *gin.Context) {
	var area models.AreaSafetyScore
	if err := c.ShouldBindJSON(&area); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	saved, err := ac.safetyService.UpsertArea(c.Request.Context(), &area)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Area saved", saved)
}

// =================== ANALYTICS ===================

// Analytics returns the dashboard figures. ?days= sets the trend window.
func (ac *AdminController) Analytics(c *gin.Context) {
	days := services.DefaultAnalyticsDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.BadRequestResponse(c, "days must be a positive integer")
			return
		}
		days = parsed
	}

	summary, err := ac.analyticsService.Summary(c.Request.Context(), days)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Analytics retrieved successfully", summary)
}

// =================== SWEEPS ===================

// RunSweep triggers one maintenance pass immediately.
func (ac *AdminController) RunSweep(c *gin.Context) {
	job := c.Param("job")

	result, err := ac.sweepWorker.Run(c.Request.Context(), job)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"job":     job,
		"adminId": utils.GetUserID(c),
		"changed": result.Changed,
	}).Info("Manual sweep completed")

	utils.SuccessResponse(c, "Sweep completed", result)
}

func (ac *AdminController) SweepStats(c *gin.Context) {
	utils.SuccessResponse(c, "Sweep stats retrieved successfully", ac.sweepWorker.Stats())
}
