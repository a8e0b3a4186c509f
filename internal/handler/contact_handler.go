package handler

import (
	"errors"
	"net/http"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/gin-gonic/gin"
)

// ContactHandler handles contacts, invitations and presence
type ContactHandler struct {
	contacts *service.ContactService
	statuses *service.StatusService
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(contacts *service.ContactService, statuses *service.StatusService) *ContactHandler {
	return &ContactHandler{contacts: contacts, statuses: statuses}
}

// ListContacts handles GET /contacts (?type=saved filters saved contacts)
func (h *ContactHandler) ListContacts(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var (
		list []*domain.Contact
		err  error
	)
	if c.Query("type") == domain.ContactTypeSaved {
		list, err = h.contacts.SavedContacts(c.Request.Context(), userID)
	} else {
		list, err = h.contacts.ListContacts(c.Request.Context(), userID)
	}
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, list, nil)
}

// WorkContacts handles GET /contacts/work
// @Summary 회사 동료 목록 (상태 포함)
// @Tags messenger
// @Produce json
// @Success 200 {object} common.APIResponse{data=[]domain.WorkContact}
// @Router /messenger/contacts/work [get]
func (h *ContactHandler) WorkContacts(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	list, err := h.contacts.WorkContacts(c.Request.Context(), middleware.GetScope(c), userID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, list, nil)
}

// DeleteContact handles DELETE /contacts/:contactId
func (h *ContactHandler) DeleteContact(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if err := h.contacts.DeleteContact(c.Request.Context(), userID, c.Param("contactId")); err != nil {
		common.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListInvitations handles GET /invitations
func (h *ContactHandler) ListInvitations(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	list, err := h.contacts.ListInvitations(c.Request.Context(), userID)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, list, nil)
}

// SendInvitation handles POST /invitations. A duplicate pending invitation
// answers 409 with code CONFLICT.
// @Summary 연락처 초대
// @Tags messenger
// @Accept json
// @Produce json
// @Param request body domain.SendInvitationRequest true "초대"
// @Success 201 {object} common.APIResponse{data=domain.ContactInvitation}
// @Router /messenger/invitations [post]
func (h *ContactHandler) SendInvitation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req domain.SendInvitationRequest
	if !bindJSON(c, &req) {
		return
	}
	inv, err := h.contacts.SendInvitation(c.Request.Context(), middleware.GetScope(c), userID, &req)
	if errors.Is(err, common.ErrDuplicateInvitation) {
		common.ErrorResponse(c, http.StatusConflict, "이미 대기 중인 초대가 있습니다", err)
		return
	}
	if err != nil {
		common.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, common.APIResponse{Data: inv})
}

// AcceptInvitation handles POST /invitations/:invitationId/accept
func (h *ContactHandler) AcceptInvitation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	pair, err := h.contacts.AcceptInvitation(c.Request.Context(), middleware.GetScope(c), userID, c.Param("invitationId"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, pair, nil)
}

// DeclineInvitation handles POST /invitations/:invitationId/decline
func (h *ContactHandler) DeclineInvitation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	inv, err := h.contacts.DeclineInvitation(c.Request.Context(), userID, c.Param("invitationId"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, inv, nil)
}

// SetStatus handles PUT /status
func (h *ContactHandler) SetStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req domain.SetStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	status, err := h.statuses.SetStatus(c.Request.Context(), middleware.GetScope(c), userID, &req)
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, status, nil)
}

// GetStatus handles GET /status/:userId
func (h *ContactHandler) GetStatus(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	status, err := h.statuses.GetStatus(c.Request.Context(), middleware.GetScope(c), c.Param("userId"))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, status, nil)
}

// ListStatuses handles GET /status
func (h *ContactHandler) ListStatuses(c *gin.Context) {
	if _, ok := requireUser(c); !ok {
		return
	}
	all, err := h.statuses.ListStatuses(c.Request.Context(), middleware.GetScope(c))
	if err != nil {
		common.HandleError(c, err)
		return
	}
	common.SuccessResponse(c, all, nil)
}
