package mongo

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlisting "driveshare/internal/domain/listing"
	domainpricing "driveshare/internal/domain/pricing"
	domainreservation "driveshare/internal/domain/reservation"
	domainrange "driveshare/internal/domain/shared/daterange"
	domainmoney "driveshare/internal/domain/shared/money"
)

var ErrConcurrentUpdate = errors.New("mongo: concurrent update detected")

// createAttempts bounds the compare-and-swap retry loop of CreateIfFree.
const createAttempts = 4

// ReservationRepository persists reservations in two collections: the
// aggregate documents and a per-listing schedule document holding the blocking
// slots. The schedule document is the serialization point: every create goes
// through a version compare-and-swap on it, so two overlapping creates cannot
// both claim a slot regardless of how the racing writes interleave.
type ReservationRepository struct {
	col      *mongo.Collection
	schedule *mongo.Collection
}

func NewReservationRepository(db *mongo.Database) *ReservationRepository {
	col := db.Collection("agg_reservation")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "renter_id", Value: 1}, {Key: "created_at", Value: -1}}})
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}})
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "range.end", Value: 1}}})
	return &ReservationRepository{
		col:      col,
		schedule: db.Collection("listing_schedule"),
	}
}

func (r *ReservationRepository) ByID(ctx context.Context, id domainreservation.ID) (*domainreservation.Reservation, error) {
	var doc reservationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domainreservation.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// CreateIfFree claims a slot on the listing schedule and then inserts the
// aggregate. The claim re-reads the schedule on every attempt, so a conflict
// introduced by a racing writer is seen either as an overlapping slot or as a
// version mismatch that forces another read.
func (r *ReservationRepository) CreateIfFree(ctx context.Context, res *domainreservation.Reservation) error {
	slot := slotDocument{
		ReservationID: string(res.ID),
		Start:         res.Range.Start.UnixMilli(),
		End:           res.Range.End.UnixMilli(),
	}
	for attempt := 0; attempt < createAttempts; attempt++ {
		doc, err := r.loadSchedule(ctx, res.ListingID)
		if err != nil {
			return err
		}
		if conflicts := doc.overlapping(res.Range, string(res.ID)); len(conflicts) > 0 {
			return &domainreservation.ConflictError{Ranges: conflicts}
		}

		filter := bson.M{"_id": doc.ID, "version": doc.Version}
		update := bson.M{"$set": bson.M{
			"version": doc.Version + 1,
			"slots":   append(doc.Slots, slot),
		}}
		result, err := r.schedule.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return err
		}
		if result.MatchedCount == 0 && result.UpsertedCount == 0 {
			continue
		}

		stored := newReservationDocument(res)
		stored.Version = 1
		if _, err := r.col.InsertOne(ctx, stored); err != nil {
			// give the slot back so a failed insert does not block the range;
			// the release must survive a cancelled request context or the
			// claimed slot would orphan
			_ = r.releaseSlot(context.WithoutCancel(ctx), res.ListingID, res.ID)
			return err
		}
		res.Version = stored.Version
		return nil
	}
	return ErrConcurrentUpdate
}

// Save updates the aggregate with optimistic locking. When the reservation has
// left a blocking status its slot is removed from the schedule, which is what
// frees the range after a cancellation.
func (r *ReservationRepository) Save(ctx context.Context, res *domainreservation.Reservation) error {
	doc := newReservationDocument(res)
	filter := bson.M{"_id": doc.ID, "version": res.Version}
	doc.Version = res.Version + 1
	result, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": doc})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrConcurrentUpdate
	}
	res.Version = doc.Version
	if !res.Status.Blocking() {
		if err := r.releaseSlot(ctx, res.ListingID, res.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *ReservationRepository) BlockingRanges(ctx context.Context, listingID domainlisting.ID, candidate domainrange.DateRange, exclude domainreservation.ID) ([]domainrange.DateRange, error) {
	doc, err := r.loadSchedule(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return doc.overlapping(candidate, string(exclude)), nil
}

func (r *ReservationRepository) ListByRenter(ctx context.Context, renterID string) ([]*domainreservation.Reservation, error) {
	return r.find(ctx, bson.M{"renter_id": renterID})
}

func (r *ReservationRepository) ListByOwner(ctx context.Context, ownerID domainlisting.OwnerID) ([]*domainreservation.Reservation, error) {
	return r.find(ctx, bson.M{"owner_id": string(ownerID)})
}

func (r *ReservationRepository) ListLapsed(ctx context.Context, status domainreservation.Status, cutoff time.Time) ([]*domainreservation.Reservation, error) {
	return r.find(ctx, bson.M{
		"status":    string(status),
		"range.end": bson.M{"$lte": cutoff.UTC().UnixMilli()},
	})
}

func (r *ReservationRepository) find(ctx context.Context, filter bson.M) ([]*domainreservation.Reservation, error) {
	cursor, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []*domainreservation.Reservation
	for cursor.Next(ctx) {
		var doc reservationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

func (r *ReservationRepository) loadSchedule(ctx context.Context, listingID domainlisting.ID) (scheduleDocument, error) {
	var doc scheduleDocument
	err := r.schedule.FindOne(ctx, bson.M{"_id": string(listingID)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return scheduleDocument{ID: string(listingID)}, nil
	}
	if err != nil {
		return scheduleDocument{}, err
	}
	return doc, nil
}

func (r *ReservationRepository) releaseSlot(ctx context.Context, listingID domainlisting.ID, id domainreservation.ID) error {
	update := bson.M{
		"$pull": bson.M{"slots": bson.M{"reservation_id": string(id)}},
		"$inc":  bson.M{"version": 1},
	}
	_, err := r.schedule.UpdateOne(ctx, bson.M{"_id": string(listingID)}, update)
	return err
}

type scheduleDocument struct {
	ID      string         `bson:"_id"`
	Version int64          `bson:"version"`
	Slots   []slotDocument `bson:"slots"`
}

type slotDocument struct {
	ReservationID string `bson:"reservation_id"`
	Start         int64  `bson:"start"`
	End           int64  `bson:"end"`
}

func (d scheduleDocument) overlapping(candidate domainrange.DateRange, exclude string) []domainrange.DateRange {
	var ranges []domainrange.DateRange
	for _, slot := range d.Slots {
		if slot.ReservationID == exclude {
			continue
		}
		dr := domainrange.DateRange{Start: timestampToTime(slot.Start), End: timestampToTime(slot.End)}
		if dr.Overlaps(candidate) {
			ranges = append(ranges, dr)
		}
	}
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Start.Before(ranges[j].Start)
	})
	return ranges
}

type reservationDocument struct {
	ID        string          `bson:"_id"`
	ListingID string          `bson:"listing_id"`
	OwnerID   string          `bson:"owner_id"`
	RenterID  string          `bson:"renter_id"`
	Range     rangeDocument   `bson:"range"`
	Contact   contactDocument `bson:"contact"`
	Price     priceDocument   `bson:"price"`
	Status    string          `bson:"status"`
	CreatedAt int64           `bson:"created_at"`
	UpdatedAt int64           `bson:"updated_at"`
	Version   int64           `bson:"version"`
}

type rangeDocument struct {
	Start int64 `bson:"start"`
	End   int64 `bson:"end"`
}

type contactDocument struct {
	Name  string `bson:"name"`
	Email string `bson:"email"`
	Phone string `bson:"phone"`
}

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

type priceDocument struct {
	PricePerDay moneyDocument `bson:"price_per_day"`
	Days        int           `bson:"days"`
	Subtotal    moneyDocument `bson:"subtotal"`
	Taxes       moneyDocument `bson:"taxes"`
	Total       moneyDocument `bson:"total"`
}

func newReservationDocument(res *domainreservation.Reservation) reservationDocument {
	return reservationDocument{
		ID:        string(res.ID),
		ListingID: string(res.ListingID),
		OwnerID:   string(res.OwnerID),
		RenterID:  res.RenterID,
		Range:     rangeDocument{Start: res.Range.Start.UnixMilli(), End: res.Range.End.UnixMilli()},
		Contact:   contactDocument{Name: res.Contact.Name, Email: res.Contact.Email, Phone: res.Contact.Phone},
		Price:     newPriceDocument(res.Price),
		Status:    string(res.Status),
		CreatedAt: res.CreatedAt.UnixMilli(),
		UpdatedAt: res.UpdatedAt.UnixMilli(),
		Version:   res.Version,
	}
}

func (d reservationDocument) toAggregate() *domainreservation.Reservation {
	return &domainreservation.Reservation{
		ID:        domainreservation.ID(d.ID),
		ListingID: domainlisting.ID(d.ListingID),
		OwnerID:   domainlisting.OwnerID(d.OwnerID),
		RenterID:  d.RenterID,
		Range:     domainrange.DateRange{Start: timestampToTime(d.Range.Start), End: timestampToTime(d.Range.End)},
		Contact:   domainreservation.Contact{Name: d.Contact.Name, Email: d.Contact.Email, Phone: d.Contact.Phone},
		Price:     d.Price.toSnapshot(),
		Status:    domainreservation.Status(d.Status),
		CreatedAt: timestampToTime(d.CreatedAt),
		UpdatedAt: timestampToTime(d.UpdatedAt),
		Version:   d.Version,
	}
}

func newPriceDocument(s domainpricing.Snapshot) priceDocument {
	return priceDocument{
		PricePerDay: newMoneyDocument(s.PricePerDay),
		Days:        s.Days,
		Subtotal:    newMoneyDocument(s.Subtotal),
		Taxes:       newMoneyDocument(s.Taxes),
		Total:       newMoneyDocument(s.Total),
	}
}

func (d priceDocument) toSnapshot() domainpricing.Snapshot {
	return domainpricing.Snapshot{
		PricePerDay: d.PricePerDay.toMoney(),
		Days:        d.Days,
		Subtotal:    d.Subtotal.toMoney(),
		Taxes:       d.Taxes.toMoney(),
		Total:       d.Total.toMoney(),
	}
}

func newMoneyDocument(m domainmoney.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() domainmoney.Money {
	return domainmoney.Money{Amount: d.Amount, Currency: d.Currency}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainreservation.Repository = (*ReservationRepository)(nil)
