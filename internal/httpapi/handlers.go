package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hredostate/yebo-transport/internal/model"
	"github.com/hredostate/yebo-transport/internal/seatmap"
	"github.com/hredostate/yebo-transport/internal/service"
	"github.com/hredostate/yebo-transport/internal/transportcore"
)

// Handler exposes the transport core over HTTP. It holds no business logic:
// one operation per endpoint, render what comes back.
type Handler struct {
	capacity      *service.CapacityService
	requests      *service.RequestService
	subscriptions *service.SubscriptionService
	approvals     *service.ApprovalService
	allocator     *service.SeatAllocator
	buses         service.BusStore
	logger        *zap.Logger
}

func NewHandler(
	capacity *service.CapacityService,
	requests *service.RequestService,
	subscriptions *service.SubscriptionService,
	approvals *service.ApprovalService,
	allocator *service.SeatAllocator,
	buses service.BusStore,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		capacity:      capacity,
		requests:      requests,
		subscriptions: subscriptions,
		approvals:     approvals,
		allocator:     allocator,
		buses:         buses,
		logger:        logger,
	}
}

type createRequestBody struct {
	TermID         int64   `json:"term_id" binding:"required"`
	RouteID        int64   `json:"route_id" binding:"required"`
	StopID         int64   `json:"stop_id" binding:"required"`
	PreferredBusID *int64  `json:"preferred_bus_id"`
	PreferredSeat  *string `json:"preferred_seat"`
}

// CreateRequest files a transport request for the authenticated student.
func (h *Handler) CreateRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	req, err := h.requests.Create(c.Request.Context(), service.NewRequest{
		StudentID:      GetActor(c).UserID,
		TermID:         body.TermID,
		RouteID:        body.RouteID,
		StopID:         body.StopID,
		PreferredBusID: body.PreferredBusID,
		PreferredSeat:  body.PreferredSeat,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, req)
}

// MyRequests returns the authenticated student's request history.
func (h *Handler) MyRequests(c *gin.Context) {
	reqs, err := h.requests.ListByStudent(c.Request.Context(), GetActor(c).UserID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

// CancelRequest withdraws the student's own pending/waitlisted request.
func (h *Handler) CancelRequest(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	req, err := h.requests.CancelByStudent(c.Request.Context(), id, GetActor(c).UserID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// ReviewQueue lists a route's pending and waitlisted requests for a term.
func (h *Handler) ReviewQueue(c *gin.Context) {
	routeID, ok := pathInt64(c, "route_id")
	if !ok {
		return
	}
	termID, ok := queryInt64(c, "term_id")
	if !ok {
		return
	}

	reqs, err := h.requests.ListForReview(c.Request.Context(), routeID, termID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

type approveBody struct {
	BusID     int64   `json:"bus_id" binding:"required"`
	SeatLabel *string `json:"seat_label"`
}

// Approve converts a request into an active subscription.
func (h *Handler) Approve(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body approveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	sub, err := h.approvals.Approve(c.Request.Context(), id, body.BusID, body.SeatLabel)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

type rejectBody struct {
	Reason string `json:"reason" binding:"required"`
}

// Reject declines a request with a mandatory reason.
func (h *Handler) Reject(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body rejectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	req, err := h.requests.Reject(c.Request.Context(), id, body.Reason)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// Waitlist parks a pending request.
func (h *Handler) Waitlist(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	req, err := h.requests.Waitlist(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type bulkApproveBody struct {
	Items []service.BulkApprovalItem `json:"items" binding:"required,min=1"`
}

type bulkApproveResult struct {
	RequestID      string  `json:"request_id"`
	Approved       bool    `json:"approved"`
	SubscriptionID *string `json:"subscription_id,omitempty"`
	Code           string  `json:"code,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// BulkApprove approves a batch; each request succeeds or fails on its own.
func (h *Handler) BulkApprove(c *gin.Context) {
	var body bulkApproveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	results := h.approvals.BulkApprove(c.Request.Context(), body.Items)

	out := make([]bulkApproveResult, 0, len(results))
	for _, r := range results {
		item := bulkApproveResult{RequestID: r.RequestID.String()}
		if r.Err != nil {
			item.Code = errCode(r.Err)
			item.Error = userMessage(r.Err)
		} else {
			item.Approved = true
			subID := r.Subscription.ID.String()
			item.SubscriptionID = &subID
		}
		out = append(out, item)
	}

	c.JSON(http.StatusMultiStatus, gin.H{"results": out})
}

type cancelSubscriptionBody struct {
	Reason string `json:"reason"`
}

// CancelSubscription terminates an active subscription. Students may cancel
// their own; operators may cancel any.
func (h *Handler) CancelSubscription(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var body cancelSubscriptionBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
	}

	sub, err := h.subscriptions.Cancel(c.Request.Context(), id, GetActor(c), body.Reason)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// MySubscriptions returns the authenticated student's subscriptions.
func (h *Handler) MySubscriptions(c *gin.Context) {
	subs, err := h.subscriptions.ListByStudent(c.Request.Context(), GetActor(c).UserID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// RouteAvailability reports the capacity summary for a route+term.
func (h *Handler) RouteAvailability(c *gin.Context) {
	routeID, ok := pathInt64(c, "route_id")
	if !ok {
		return
	}
	termID, ok := queryInt64(c, "term_id")
	if !ok {
		return
	}

	avail, err := h.capacity.RouteAvailability(c.Request.Context(), routeID, termID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, avail)
}

// BusOccupancy returns the occupied seat labels on a bus for a term.
func (h *Handler) BusOccupancy(c *gin.Context) {
	busID, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	termID, ok := queryInt64(c, "term_id")
	if !ok {
		return
	}

	seats, err := h.capacity.BusOccupancy(c.Request.Context(), busID, termID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if seats == nil {
		seats = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"bus_id": busID, "term_id": termID, "occupied": seats})
}

// SeatAvailability reports whether one seat on a bus is free for a term.
// Students use it to pick a realistic preferred seat before filing.
func (h *Handler) SeatAvailability(c *gin.Context) {
	busID, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	termID, ok := queryInt64(c, "term_id")
	if !ok {
		return
	}
	label := model.NormalizeSeatLabel(c.Param("label"))

	free, err := h.allocator.IsSeatFree(c.Request.Context(), busID, label, termID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bus_id":     busID,
		"term_id":    termID,
		"seat_label": label,
		"free":       free,
	})
}

// SeatMap renders the bus seat chart as a PNG.
func (h *Handler) SeatMap(c *gin.Context) {
	busID, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	termID, ok := queryInt64(c, "term_id")
	if !ok {
		return
	}

	bus, err := h.buses.GetByID(c.Request.Context(), busID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if bus == nil {
		RespondDomainError(c, transportcore.ErrBusNotFound)
		return
	}

	occupied, err := h.capacity.BusOccupancy(c.Request.Context(), busID, termID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	png, err := seatmap.Render(bus, occupied)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

func pathInt64(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid "+name, nil)
		return 0, false
	}
	return id, true
}

func queryInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", name+" query parameter is required", nil)
		return 0, false
	}
	return v, true
}

func errCode(err error) string {
	var ve *transportcore.ValidationError
	switch {
	case errors.As(err, &ve):
		return "validation_error"
	case errors.Is(err, transportcore.ErrRouteFull):
		return "route_full"
	case errors.Is(err, transportcore.ErrSeatAlreadyTaken):
		return "seat_taken"
	case errors.Is(err, transportcore.ErrAlreadySubscribed):
		return "already_subscribed"
	case errors.Is(err, transportcore.ErrInvalidRequestState):
		return "invalid_state"
	case transportcore.IsNotFound(err):
		return "not_found"
	default:
		return "internal_error"
	}
}

func userMessage(err error) string {
	if errCode(err) == "internal_error" {
		return "internal error"
	}
	return err.Error()
}
