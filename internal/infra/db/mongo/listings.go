package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlisting "driveshare/internal/domain/listing"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	col := db.Collection("agg_listing")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "owner_id", Value: 1}}})
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "location.city", Value: 1}, {Key: "state", Value: 1}}})
	return &ListingRepository{col: col}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlisting.ID) (*domainlisting.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domainlisting.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlisting.Listing) error {
	doc := newListingDocument(l)
	filter := bson.M{"_id": doc.ID, "version": l.Version}
	doc.Version = l.Version + 1
	result, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConcurrentUpdate
		}
		return err
	}
	if result.MatchedCount == 0 && result.UpsertedCount == 0 {
		return ErrConcurrentUpdate
	}
	l.Version = doc.Version
	return nil
}

func (r *ListingRepository) Search(ctx context.Context, params domainlisting.SearchParams) (domainlisting.SearchResult, error) {
	filter := bson.M{}
	if params.OnlyActive {
		filter["state"] = string(domainlisting.StateActive)
	}
	if params.Owner != "" {
		filter["owner_id"] = string(params.Owner)
	}
	if params.City != "" {
		filter["location.city"] = bson.M{"$regex": "^" + params.City + "$", "$options": "i"}
	}
	if params.VehicleType != "" {
		filter["vehicle.type"] = string(params.VehicleType)
	}
	price := bson.M{}
	if params.PriceMin > 0 {
		price["$gte"] = params.PriceMin
	}
	if params.PriceMax > 0 {
		price["$lte"] = params.PriceMax
	}
	if len(price) > 0 {
		filter["price_per_day.amount"] = price
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return domainlisting.SearchResult{}, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "price_per_day.amount", Value: 1}, {Key: "created_at", Value: -1}})
	if params.Offset > 0 {
		opts = opts.SetSkip(int64(params.Offset))
	}
	if params.Limit > 0 {
		opts = opts.SetLimit(int64(params.Limit))
	}
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return domainlisting.SearchResult{}, err
	}
	defer cursor.Close(ctx)

	items := make([]*domainlisting.Listing, 0)
	for cursor.Next(ctx) {
		var doc listingDocument
		if err := cursor.Decode(&doc); err != nil {
			return domainlisting.SearchResult{}, err
		}
		items = append(items, doc.toAggregate())
	}
	if err := cursor.Err(); err != nil {
		return domainlisting.SearchResult{}, err
	}
	return domainlisting.SearchResult{Items: items, Total: int(total)}, nil
}

type listingDocument struct {
	ID          string           `bson:"_id"`
	OwnerID     string           `bson:"owner_id"`
	Title       string           `bson:"title"`
	Description string           `bson:"description"`
	Vehicle     vehicleDocument  `bson:"vehicle"`
	Location    locationDocument `bson:"location"`
	PricePerDay moneyDocument    `bson:"price_per_day"`
	Deposit     moneyDocument    `bson:"deposit"`
	Images      []string         `bson:"images"`
	State       string           `bson:"state"`
	CreatedAt   int64            `bson:"created_at"`
	UpdatedAt   int64            `bson:"updated_at"`
	Version     int64            `bson:"version"`
}

type vehicleDocument struct {
	Type         string   `bson:"type"`
	Brand        string   `bson:"brand"`
	Model        string   `bson:"model"`
	Year         int      `bson:"year"`
	Seats        int      `bson:"seats"`
	Transmission string   `bson:"transmission"`
	Fuel         string   `bson:"fuel"`
	Features     []string `bson:"features"`
}

type locationDocument struct {
	Country  string `bson:"country"`
	Province string `bson:"province"`
	District string `bson:"district"`
	City     string `bson:"city"`
	Address  string `bson:"address"`
}

func newListingDocument(l *domainlisting.Listing) listingDocument {
	return listingDocument{
		ID:          string(l.ID),
		OwnerID:     string(l.Owner),
		Title:       l.Title,
		Description: l.Description,
		Vehicle: vehicleDocument{
			Type:         string(l.Vehicle.Type),
			Brand:        l.Vehicle.Brand,
			Model:        l.Vehicle.Model,
			Year:         l.Vehicle.Year,
			Seats:        l.Vehicle.Seats,
			Transmission: l.Vehicle.Transmission,
			Fuel:         l.Vehicle.Fuel,
			Features:     l.Vehicle.Features,
		},
		Location: locationDocument{
			Country:  l.Location.Country,
			Province: l.Location.Province,
			District: l.Location.District,
			City:     l.Location.City,
			Address:  l.Location.Address,
		},
		PricePerDay: newMoneyDocument(l.PricePerDay),
		Deposit:     newMoneyDocument(l.Deposit),
		Images:      l.Images,
		State:       string(l.State),
		CreatedAt:   l.CreatedAt.UnixMilli(),
		UpdatedAt:   l.UpdatedAt.UnixMilli(),
		Version:     l.Version,
	}
}

func (d listingDocument) toAggregate() *domainlisting.Listing {
	return &domainlisting.Listing{
		ID:          domainlisting.ID(d.ID),
		Owner:       domainlisting.OwnerID(d.OwnerID),
		Title:       d.Title,
		Description: d.Description,
		Vehicle: domainlisting.Vehicle{
			Type:         domainlisting.VehicleType(d.Vehicle.Type),
			Brand:        d.Vehicle.Brand,
			Model:        d.Vehicle.Model,
			Year:         d.Vehicle.Year,
			Seats:        d.Vehicle.Seats,
			Transmission: d.Vehicle.Transmission,
			Fuel:         d.Vehicle.Fuel,
			Features:     d.Vehicle.Features,
		},
		Location: domainlisting.Location{
			Country:  d.Location.Country,
			Province: d.Location.Province,
			District: d.Location.District,
			City:     d.Location.City,
			Address:  d.Location.Address,
		},
		PricePerDay: d.PricePerDay.toMoney(),
		Deposit:     d.Deposit.toMoney(),
		Images:      d.Images,
		State:       domainlisting.State(d.State),
		CreatedAt:   timestampToTime(d.CreatedAt),
		UpdatedAt:   timestampToTime(d.UpdatedAt),
		Version:     d.Version,
	}
}

var _ domainlisting.Repository = (*ListingRepository)(nil)
