package handler

import (
	"net/http"
	"strconv"

	"github.com/bubasket/marketplace-backend/internal/service"
	"github.com/labstack/echo/v4"
)

type ConversationHandler struct {
	convSvc   service.ConversationService
	inboxSvc  service.InboxService
	unreadSvc service.UnreadService
}

func NewConversationHandler(convSvc service.ConversationService, inboxSvc service.InboxService, unreadSvc service.UnreadService) *ConversationHandler {
	return &ConversationHandler{convSvc: convSvc, inboxSvc: inboxSvc, unreadSvc: unreadSvc}
}

type ConversationResponse struct {
	ConversationID uint64 `json:"conversationId"`
	ListingID      uint64 `json:"listingId"`
	SellerUID      string `json:"sellerUid"`
	BuyerUID       string `json:"buyerUid"`
}

// ResolveFromListing handles POST /listings/:id/conversations. Idempotent:
// repeated calls from the same buyer return the same conversation.
func (h *ConversationHandler) ResolveFromListing(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	listingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid listing id"))
	}
	cv, err := h.convSvc.Resolve(c.Request().Context(), listingID, uid)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, ConversationResponse{
		ConversationID: cv.ID,
		ListingID:      cv.ListingID,
		SellerUID:      cv.SellerUID,
		BuyerUID:       cv.BuyerUID,
	})
}

// List handles GET /conversations: the caller's inbox, newest activity first.
func (h *ConversationHandler) List(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	rows, err := h.inboxSvc.ListForUser(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch conversations"))
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *ConversationHandler) Get(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	cv, err := h.convSvc.Authorize(c.Request().Context(), convID, uid)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, ConversationResponse{
		ConversationID: cv.ID,
		ListingID:      cv.ListingID,
		SellerUID:      cv.SellerUID,
		BuyerUID:       cv.BuyerUID,
	})
}

// Delete handles DELETE /conversations/:id. Cascades to all messages.
func (h *ConversationHandler) Delete(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	if err := h.convSvc.Delete(c.Request().Context(), convID, uid); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// UnreadCount handles GET /me/unread-count for the navigation badge.
func (h *ConversationHandler) UnreadCount(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	cnt, err := h.unreadSvc.CountForUser(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to count unread"))
	}
	return c.JSON(http.StatusOK, map[string]int64{"unreadCount": cnt})
}
