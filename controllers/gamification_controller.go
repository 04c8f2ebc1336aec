package controllers

import (
	"strconv"

	"goldenminutes/models"
	"goldenminutes/services"
	"goldenminutes/utils"

	"github.com/gin-gonic/gin"
)

const (
	defaultLeaderboardLimit = 20
	maxLeaderboardLimit     = 100
)

type GamificationController struct {
	scoringService *services.ScoringService
	safetyService  *services.SafetyService
}

func NewGamificationController(scoringService *services.ScoringService, safetyService *services.SafetyService) *GamificationController {
	return &GamificationController{
		scoringService: scoringService,
		safetyService:  safetyService,
	}
}

func (gc *GamificationController) Leaderboard(c *gin.Context) {
	limit := defaultLeaderboardLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxLeaderboardLimit {
			utils.BadRequestResponse(c, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	entries, err := gc.scoringService.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Leaderboard retrieved successfully", entries)
}

func (gc *GamificationController) ListBadges(c *gin.Context) {
	badges, err := gc.scoringService.ListBadges(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Badges retrieved successfully", badges)
}

// MyBadges lists every badge with the caller's progress toward it.
func (gc *GamificationController) MyBadges(c *gin.Context) {
	progress, err := gc.scoringService.BadgeProgress(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Badge progress retrieved successfully", progress)
}

func (gc *GamificationController) ListAreas(c *gin.Context) {
	areas, err := gc.safetyService.ListAreas(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Area safety scores retrieved successfully", areas)
}

func (gc *GamificationController) CompleteTraining(c *gin.Context) {
	var req models.TrainingCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	result, err := gc.scoringService.RecordTrainingCompletion(c.Request.Context(), utils.GetUserID(c), c.Param("moduleId"), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	message := "Training not passed, review the material and try again"
	switch {
	case result.BadgeAwarded != "":
		message = "Training passed, badge earned: " + result.BadgeAwarded
	case result.Passed:
		message = "Training passed"
	}
	utils.SuccessResponse(c, message, result)
}
