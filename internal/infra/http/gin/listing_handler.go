package ginserver

import (
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/dto"
	listingapp "driveshare/internal/app/handlers/listing"
	"driveshare/internal/app/queries"
	domainlisting "driveshare/internal/domain/listing"
	"driveshare/internal/domain/shared/money"
)

type ListingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Photos   *listingapp.PhotoService
}

type createListingRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Vehicle     struct {
		Type         string   `json:"type"`
		Brand        string   `json:"brand"`
		Model        string   `json:"model"`
		Year         int      `json:"year"`
		Seats        int      `json:"seats"`
		Transmission string   `json:"transmission"`
		Fuel         string   `json:"fuel"`
		Features     []string `json:"features"`
	} `json:"vehicle"`
	Location struct {
		Country  string `json:"country"`
		Province string `json:"province"`
		District string `json:"district"`
		City     string `json:"city"`
		Address  string `json:"address"`
	} `json:"location"`
	PricePerDay   int64  `json:"price_per_day"`
	DepositAmount int64  `json:"deposit"`
	Currency      string `json:"currency"`
}

func (h ListingHandler) Catalog(c *gin.Context) {
	query := listingapp.SearchCatalogQuery{
		City:        c.Query("city"),
		VehicleType: c.Query("vehicle_type"),
		PriceMin:    parseInt64(c.Query("price_min")),
		PriceMax:    parseInt64(c.Query("price_max")),
		Limit:       int(parseInt64(c.Query("limit"))),
		Offset:      int(parseInt64(c.Query("offset"))),
	}
	result, err := queries.Ask[listingapp.SearchCatalogQuery, dto.ListingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Get(c *gin.Context) {
	query := listingapp.GetListingQuery{ListingID: c.Param("id")}
	result, err := queries.Ask[listingapp.GetListingQuery, dto.Listing](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Mine(c *gin.Context) {
	user, ok := requireRole(c, "owner")
	if !ok {
		return
	}
	query := listingapp.SearchCatalogQuery{
		Owner:  user.ID,
		Limit:  int(parseInt64(c.Query("limit"))),
		Offset: int(parseInt64(c.Query("offset"))),
	}
	result, err := queries.Ask[listingapp.SearchCatalogQuery, dto.ListingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "owner")
	if !ok {
		return
	}
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	pricePerDay, err := money.New(req.PricePerDay, currency)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	deposit, err := money.New(req.DepositAmount, currency)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := listingapp.CreateListingCommand{
		CommandID:   uuid.NewString(),
		OwnerID:     user.ID,
		Title:       req.Title,
		Description: req.Description,
		Vehicle: domainlisting.Vehicle{
			Type:         domainlisting.VehicleType(req.Vehicle.Type),
			Brand:        req.Vehicle.Brand,
			Model:        req.Vehicle.Model,
			Year:         req.Vehicle.Year,
			Seats:        req.Vehicle.Seats,
			Transmission: req.Vehicle.Transmission,
			Fuel:         req.Vehicle.Fuel,
			Features:     req.Vehicle.Features,
		},
		Location: domainlisting.Location{
			Country:  req.Location.Country,
			Province: req.Location.Province,
			District: req.Location.District,
			City:     req.Location.City,
			Address:  req.Location.Address,
		},
		PricePerDay: pricePerDay,
		Deposit:     deposit,
	}
	result, err := commands.Dispatch[listingapp.CreateListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ListingHandler) UploadPhoto(c *gin.Context) {
	user, ok := requireRole(c, "owner")
	if !ok {
		return
	}
	if h.Photos == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "photo storage unavailable"})
		return
	}
	file, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo"})
		return
	}
	defer src.Close()

	url, err := h.Photos.Attach(c.Request.Context(), user.ID, c.Param("id"), file.Filename, file.Header.Get("Content-Type"), src)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func parseInt64(raw string) int64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
