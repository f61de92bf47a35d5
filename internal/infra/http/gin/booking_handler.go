package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/dto"
	reservationapp "driveshare/internal/app/handlers/reservation"
	"driveshare/internal/app/queries"
	domainreservation "driveshare/internal/domain/reservation"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type checkAvailabilityRequest struct {
	ListingID string    `json:"listing_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

type createBookingRequest struct {
	ListingID string    `json:"listing_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Contact   struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"contact"`
}

func (h BookingHandler) CheckAvailability(c *gin.Context) {
	var req checkAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	query := reservationapp.CheckAvailabilityQuery{
		ListingID: req.ListingID,
		Start:     req.Start,
		End:       req.End,
	}
	result, err := queries.Ask[reservationapp.CheckAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := reservationapp.CreateReservationCommand{
		CommandID: uuid.NewString(),
		ListingID: req.ListingID,
		RenterID:  user.ID,
		Start:     req.Start,
		End:       req.End,
		Contact: domainreservation.Contact{
			Name:  req.Contact.Name,
			Email: req.Contact.Email,
			Phone: req.Contact.Phone,
		},
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[reservationapp.CreateReservationCommand, *dto.Reservation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	cmd := reservationapp.CancelReservationCommand{
		ReservationID: c.Param("id"),
		CallerID:      user.ID,
	}
	result, err := commands.Dispatch[reservationapp.CancelReservationCommand, *dto.Reservation](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	query := reservationapp.ListRenterReservationsQuery{RenterID: user.ID}
	result, err := queries.Ask[reservationapp.ListRenterReservationsQuery, dto.ReservationCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListOwner(c *gin.Context) {
	user, ok := requireRole(c, "owner")
	if !ok {
		return
	}
	query := reservationapp.ListOwnerReservationsQuery{OwnerID: user.ID}
	result, err := queries.Ask[reservationapp.ListOwnerReservationsQuery, dto.ReservationCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
