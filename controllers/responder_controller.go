package controllers

import (
	"goldenminutes/models"
	"goldenminutes/services"
	"goldenminutes/utils"

	"github.com/gin-gonic/gin"
)

type ResponderController struct {
	responderService *services.ResponderService
	scoringService   *services.ScoringService
}

func NewResponderController(responderService *services.ResponderService, scoringService *services.ScoringService) *ResponderController {
	return &ResponderController{
		responderService: responderService,
		scoringService:   scoringService,
	}
}

// StatsResponse bundles the caller's stats with leaderboard position.
type StatsResponse struct {
	Stats    *models.ResponderStats `json:"stats"`
	Rank     int                    `json:"rank"`
	Progress []models.BadgeProgress `json:"progress"`
}

// =================== PROFILE ===================

func (rc *ResponderController) Register(c *gin.Context) {
	var req models.RegisterVolunteerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request body")
			return
		}
	}

	profile, err := rc.responderService.RegisterVolunteer(c.Request.Context(), utils.GetUserID(c), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, "Volunteer registration submitted for verification", profile)
}

func (rc *ResponderController) GetProfile(c *gin.Context) {
	profile, err := rc.responderService.GetVolunteer(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Profile retrieved successfully", profile)
}

// RecalculateImpact refreshes the caller's impact score.
func (rc *ResponderController) RecalculateImpact(c *gin.Context) {
	profile, err := rc.scoringService.CalculateImpactScore(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Impact score updated", profile)
}

func (rc *ResponderController) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	userID := utils.GetUserID(c)

	stats, err := rc.scoringService.GetStats(ctx, userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	rank, err := rc.scoringService.Rank(ctx, userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	progress, err := rc.scoringService.BadgeProgress(ctx, userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Stats retrieved successfully", StatsResponse{
		Stats:    stats,
		Rank:     rank,
		Progress: progress,
	})
}

func (rc *ResponderController) SetAvailability(c *gin.Context) {
	var req models.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	profile, err := rc.responderService.SetAvailability(c.Request.Context(), utils.GetUserID(c), req.IsAvailable)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	message := "You are now unavailable"
	if profile.IsAvailable {
		message = "You are now available"
	}
	utils.SuccessResponse(c, message, profile)
}

// =================== LOCATION ===================

func (rc *ResponderController) UpdateLocation(c *gin.Context) {
	var req models.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	location, err := rc.responderService.UpdateLocation(c.Request.Context(), utils.GetUserID(c), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Location updated", location)
}

func (rc *ResponderController) GetLocation(c *gin.Context) {
	location, err := rc.responderService.GetLocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Location retrieved successfully", location)
}

// =================== ALERTS ===================

func (rc *ResponderController) CheckAlerts(c *gin.Context) {
	result, err := rc.responderService.CheckNewAlert(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Alert check completed", result)
}

func (rc *ResponderController) AcknowledgeAlert(c *gin.Context) {
	var req models.AcknowledgeAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	if err := rc.responderService.AcknowledgeAlert(c.Request.Context(), utils.GetUserID(c), req); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Alert acknowledged", nil)
}
