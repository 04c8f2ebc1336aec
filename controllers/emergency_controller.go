package controllers

import (
	"goldenminutes/middleware"
	"goldenminutes/models"
	"goldenminutes/services"
	"goldenminutes/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type EmergencyController struct {
	emergencyService *services.EmergencyService
	matchingService  *services.MatchingService
	guidanceService  *services.GuidanceService
}

func NewEmergencyController(
	emergencyService *services.EmergencyService,
	matchingService *services.MatchingService,
	guidanceService *services.GuidanceService,
) *EmergencyController {
	return &EmergencyController{
		emergencyService: emergencyService,
		matchingService:  matchingService,
		guidanceService:  guidanceService,
	}
}

type notifyRequest struct {
	ResponderID string `json:"responderId"`
}

// =================== SOS ===================

// TriggerSOS creates a new emergency for the caller
func (ec *EmergencyController) TriggerSOS(c *gin.Context) {
	userID := utils.GetUserID(c)

	var req models.CreateEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	emergency, err := ec.emergencyService.CreateEmergency(c.Request.Context(), userID, req)
	if err != nil {
		logrus.Errorf("Trigger SOS failed: %v", err)
		utils.HandleServiceError(c, err)
		return
	}

	// Matching is best effort; the SOS itself already stands.
	if _, err := ec.matchingService.NotifyNearbyResponders(c.Request.Context(), emergency.ID); err != nil {
		logrus.WithField("emergencyId", emergency.ID).Warnf("Notifying nearby responders failed: %v", err)
	}

	utils.CreatedResponse(c, "SOS triggered, help is on the way", emergency)
}

func (ec *EmergencyController) ListActive(c *gin.Context) {
	emergencies, err := ec.emergencyService.ListActiveEmergencies(c.Request.Context(), middleware.Viewer(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Active emergencies retrieved successfully", emergencies, &models.MetaData{
		Total: int64(len(emergencies)),
	})
}

func (ec *EmergencyController) GetEmergency(c *gin.Context) {
	emergency, err := ec.emergencyService.GetEmergency(c.Request.Context(), c.Param("id"), middleware.Viewer(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Emergency retrieved successfully", emergency)
}

func (ec *EmergencyController) GetTimeline(c *gin.Context) {
	timeline, err := ec.emergencyService.GetTimeline(c.Request.Context(), c.Param("id"), middleware.Viewer(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Timeline retrieved successfully", timeline)
}

// GetGuidance returns bystander steps for the emergency's type.
func (ec *EmergencyController) GetGuidance(c *gin.Context) {
	emergency, err := ec.emergencyService.GetEmergency(c.Request.Context(), c.Param("id"), middleware.Viewer(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	steps, err := ec.guidanceService.GetBystanderGuidance(c.Request.Context(), emergency.Type, c.Query("lang"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Guidance retrieved successfully", steps)
}

// GetGuidanceByType serves guidance without an emergency, for offline caching.
func (ec *EmergencyController) GetGuidanceByType(c *gin.Context) {
	steps, err := ec.guidanceService.GetBystanderGuidance(c.Request.Context(), c.Param("type"), c.Query("lang"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Guidance retrieved successfully", steps)
}

// =================== RESPONDER ACTIONS ===================

func (ec *EmergencyController) Accept(c *gin.Context) {
	result, err := ec.matchingService.AcceptEmergency(c.Request.Context(), c.Param("id"), utils.GetUserID(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	message := "Emergency accepted, you are the primary responder"
	if result.Outcome == models.AcceptOutcomeAlreadyAccepted {
		message = "You already accepted this emergency"
	}
	utils.SuccessResponse(c, message, result)
}

func (ec *EmergencyController) Decline(c *gin.Context) {
	response, err := ec.matchingService.DeclineEmergency(c.Request.Context(), c.Param("id"), utils.GetUserID(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Emergency declined", response)
}

func (ec *EmergencyController) View(c *gin.Context) {
	response, err := ec.matchingService.ViewEmergency(c.Request.Context(), c.Param("id"), utils.GetUserID(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Emergency viewed", response)
}

// UpdateStatus moves the primary responder to en_route or arrived.
func (ec *EmergencyController) UpdateStatus(c *gin.Context) {
	var req models.UpdateResponseStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	emergency, err := ec.matchingService.UpdateResponseStatus(c.Request.Context(), c.Param("id"), utils.GetUserID(c), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Status updated", emergency)
}

func (ec *EmergencyController) Resolve(c *gin.Context) {
	var req models.ResolveEmergencyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request body")
			return
		}
	}

	emergency, err := ec.emergencyService.ResolveEmergency(c.Request.Context(), c.Param("id"), middleware.Viewer(c), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Emergency resolved", emergency)
}

func (ec *EmergencyController) Cancel(c *gin.Context) {
	var req models.CancelEmergencyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request body")
			return
		}
	}

	emergency, err := ec.emergencyService.CancelEmergency(c.Request.Context(), c.Param("id"), middleware.Viewer(c), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Emergency cancelled", emergency)
}

// Notify alerts one responder when a responderId is given, otherwise every
// eligible responder near the emergency.
func (ec *EmergencyController) Notify(c *gin.Context) {
	emergencyID := c.Param("id")
	if _, err := ec.emergencyService.GetEmergency(c.Request.Context(), emergencyID, middleware.Viewer(c)); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	var req notifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request body")
			return
		}
	}

	if req.ResponderID != "" {
		response, err := ec.matchingService.NotifyResponder(c.Request.Context(), emergencyID, req.ResponderID)
		if err != nil {
			utils.HandleServiceError(c, err)
			return
		}
		utils.SuccessResponse(c, "Responder notified", []models.EmergencyResponse{*response})
		return
	}

	responses, err := ec.matchingService.NotifyNearbyResponders(c.Request.Context(), emergencyID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, "Nearby responders notified", responses)
}

// ActivateBystander switches an unattended emergency to bystander mode.
func (ec *EmergencyController) ActivateBystander(c *gin.Context) {
	result, err := ec.emergencyService.RequestBystanderMode(c.Request.Context(), c.Param("id"), middleware.Viewer(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	message := "Bystander mode activated"
	if !result.Activated {
		message = "Bystander mode not changed: " + result.Reason
	}
	utils.SuccessResponse(c, message, result)
}
