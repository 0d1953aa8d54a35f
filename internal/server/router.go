package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lakesideclinic/bookings/internal/booking"
	"go.uber.org/zap"
)

const staffIDContextKey = "bookings_staff_id"

var (
	errMissingBookingService = errors.New("booking service dependency required")
	errMissingTokenValidator = errors.New("token validator dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// BookingService is the booking workflow surface consumed by the router.
type BookingService interface {
	Create(ctx context.Context, req booking.CreateRequest) (*booking.Appointment, error)
	Delete(ctx context.Context, id int64) (*booking.Appointment, error)
	CancelByPhone(ctx context.Context, phone string, appointmentID int64) (*booking.Appointment, error)
	ListActive(ctx context.Context, filter booking.ListFilter) ([]booking.Appointment, error)
}

// TokenValidator checks staff bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// Dependencies wires the router to its collaborators.
type Dependencies struct {
	Bookings       BookingService
	Tokens         TokenValidator
	Logger         *zap.Logger
	AllowedOrigins []string
}

// NewHTTPHandler builds the gin router for the booking API. Staff routes sit
// behind bearer-token auth; phone cancellation is patient self-service and
// stays public.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Bookings == nil {
		return nil, errMissingBookingService
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenValidator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		bookings: deps.Bookings,
		tokens:   deps.Tokens,
		logger:   logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/api/appointments/cancel-by-phone", handler.handleCancelByPhone)

	staff := router.Group("/api")
	staff.Use(handler.authorizeRequest)
	staff.GET("/appointments", handler.handleListAppointments)
	staff.POST("/appointments", handler.handleCreateAppointment)
	staff.DELETE("/appointments/:id", handler.handleDeleteAppointment)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	bookings BookingService
	tokens   TokenValidator
	logger   *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleCreateAppointment(c *gin.Context) {
	var request booking.CreateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
		return
	}

	appointment, err := h.bookings.Create(c.Request.Context(), request)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": appointment.ID})
}

func (h *httpHandler) handleDeleteAppointment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return
	}

	if _, err := h.bookings.Delete(c.Request.Context(), id); err != nil {
		h.respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type cancelByPhonePayload struct {
	Phone         string `json:"phone"`
	AppointmentID int64  `json:"appointment_id"`
}

func (h *httpHandler) handleCancelByPhone(c *gin.Context) {
	var request cancelByPhonePayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Phone) == "" || request.AppointmentID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
		return
	}

	if _, err := h.bookings.CancelByPhone(c.Request.Context(), request.Phone, request.AppointmentID); err != nil {
		h.respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type appointmentPayload struct {
	ID               int64   `json:"id"`
	AppID            int64   `json:"appid"`
	StartTS          int64   `json:"start_ts"`
	EndTS            int64   `json:"end_ts"`
	ClientID         int64   `json:"cli"`
	ClinicianID      int64   `json:"doc"`
	PatientID        int64   `json:"pat"`
	TreatmentID      int64   `json:"treat"`
	Price            float64 `json:"price"`
	Paid             bool    `json:"paid"`
	Active           bool    `json:"active"`
	Parent           int64   `json:"parent"`
	CreatedAtSeconds int64   `json:"created_at_s"`
}

func (h *httpHandler) handleListAppointments(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_filter"})
		return
	}

	appointments, err := h.bookings.ListActive(c.Request.Context(), filter)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}

	payload := make([]appointmentPayload, 0, len(appointments))
	for _, appointment := range appointments {
		payload = append(payload, appointmentPayload{
			ID:               appointment.ID,
			AppID:            appointment.AppID,
			StartTS:          appointment.StartTS,
			EndTS:            appointment.EndTS,
			ClientID:         appointment.ClientID,
			ClinicianID:      appointment.ClinicianID,
			PatientID:        appointment.PatientID,
			TreatmentID:      appointment.TreatmentID,
			Price:            appointment.Price,
			Paid:             appointment.Paid,
			Active:           appointment.Active,
			Parent:           appointment.Parent,
			CreatedAtSeconds: appointment.CreatedAtSeconds,
		})
	}
	c.JSON(http.StatusOK, gin.H{"appointments": payload})
}

func parseListFilter(c *gin.Context) (booking.ListFilter, error) {
	filter := booking.ListFilter{}
	if raw := c.Query("doc"); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return booking.ListFilter{}, err
		}
		filter.ClinicianID = value
	}
	if raw := c.Query("cli"); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return booking.ListFilter{}, err
		}
		filter.ClientID = value
	}
	return filter, nil
}

func (h *httpHandler) respondBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrMissingFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
	case errors.Is(err, booking.ErrInvalidTimes):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_times"})
	case errors.Is(err, booking.ErrInvalidIDs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_ids"})
	case errors.Is(err, booking.ErrInvalidPrice):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_price"})
	case errors.Is(err, booking.ErrOverlap):
		c.JSON(http.StatusConflict, gin.H{"error": "overlap"})
	case errors.Is(err, booking.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, booking.ErrPatientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "patient_not_found"})
	case errors.Is(err, booking.ErrAppointmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "appointment_not_found"})
	default:
		h.logger.Error("booking operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(staffIDContextKey, subject)
	c.Next()
}
