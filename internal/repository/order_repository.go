package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/coupon"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/order"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const orderNumberCounter = "order_number"

type couponRedemption struct {
	OrderID    string    `bson:"order_id"`
	Code       string    `bson:"code"`
	UserID     string    `bson:"user_id"`
	RedeemedAt time.Time `bson:"redeemed_at"`
}

type OrderRepository struct {
	client      *mongo.Client
	orders      *mongo.Collection
	coupons     *mongo.Collection
	redemptions *mongo.Collection
	counters    *mongo.Collection
	floor       int64
	now         func() time.Time
}

// NewOrderRepository returns a repository whose order numbers start at floor.
func NewOrderRepository(db *mongo.Database, floor int64) *OrderRepository {
	if floor < 1 {
		floor = order.DefaultNumberFloor
	}
	return &OrderRepository{
		client:      db.Client(),
		orders:      db.Collection(ordersCollection),
		coupons:     db.Collection(couponsCollection),
		redemptions: db.Collection(redemptionsCollection),
		counters:    db.Collection(countersCollection),
		floor:       floor,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NextOrderNumber atomically allocates the next number, never below the floor.
func (r *OrderRepository) NextOrderNumber(ctx context.Context) (int64, error) {
	base := r.floor - 1
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "seq", Value: bson.D{{Key: "$add", Value: bson.A{
				bson.D{{Key: "$max", Value: bson.A{
					bson.D{{Key: "$ifNull", Value: bson.A{"$seq", base}}},
					base,
				}}},
				int64(1),
			}}}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx, bson.M{"_id": orderNumberCounter}, update, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate order number: %w", err)
	}
	return counter.Seq, nil
}

// Create inserts the order. When the order carries a coupon, one use is consumed and a
// redemption recorded in the same transaction; a coupon that is no longer usable aborts it.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if o.CouponCode != nil {
			if err := r.redeemCoupon(sc, *o.CouponCode, o); err != nil {
				return nil, err
			}
		}
		if _, err := r.orders.InsertOne(sc, o); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, fmt.Errorf("order number %d already taken: %w", o.OrderNumber, err)
			}
			return nil, fmt.Errorf("failed to insert order: %w", err)
		}
		return nil, nil
	})
	return err
}

func (r *OrderRepository) redeemCoupon(sc mongo.SessionContext, code string, o *domain.Order) error {
	now := o.CreatedAt
	filter := bson.M{
		"code":       code,
		"active":     true,
		"valid_from": bson.M{"$lte": now},
		"valid_to":   bson.M{"$gte": now},
		"$expr":      bson.M{"$lt": bson.A{"$usage_count", "$usage_limit"}},
	}
	res, err := r.coupons.UpdateOne(sc, filter, bson.M{"$inc": bson.M{"usage_count": 1}})
	if err != nil {
		return fmt.Errorf("failed to redeem coupon: %w", err)
	}

	if res.MatchedCount == 0 {
		var c domain.Coupon
		err := r.coupons.FindOne(sc, bson.M{"code": code}).Decode(&c)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &coupon.Error{Reason: coupon.ReasonNotFound, Code: code}
		}
		if err != nil {
			return fmt.Errorf("failed to load coupon: %w", err)
		}
		if err := coupon.Check(&c, now); err != nil {
			return err
		}
		return &coupon.Error{Reason: coupon.ReasonUsageLimitReached, Code: code}
	}

	_, err = r.redemptions.InsertOne(sc, couponRedemption{
		OrderID:    o.ID,
		Code:       code,
		UserID:     o.UserID,
		RedeemedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to record coupon redemption: %w", err)
	}
	return nil
}

func (r *OrderRepository) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var o domain.Order
	err := r.orders.FindOne(ctx, filter).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *OrderRepository) GetByNumber(ctx context.Context, number int64) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"order_number": number})
}

func (r *OrderRepository) GetByGatewayRef(ctx context.Context, gatewayOrderRef string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"gateway_order_ref": gatewayOrderRef})
}

// List returns one page of orders, newest first, and the total matching count.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]domain.Order, int64, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	total, err := r.orders.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))
	cursor, err := r.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []domain.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, total, nil
}

// ApplyUpdate writes upd only if the stored version still equals version.
func (r *OrderRepository) ApplyUpdate(ctx context.Context, id string, version int64, upd domain.OrderUpdate) (*domain.Order, error) {
	set := bson.M{"updated_at": r.now()}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.PaymentStatus != nil {
		set["payment_status"] = *upd.PaymentStatus
	}
	if upd.PaymentProvider != nil {
		set["payment_provider"] = *upd.PaymentProvider
	}
	if upd.GatewayOrderRef != nil {
		set["gateway_order_ref"] = *upd.GatewayOrderRef
	}
	if upd.GatewayPaymentRef != nil {
		set["gateway_payment_ref"] = *upd.GatewayPaymentRef
	}
	if upd.RefundRef != nil {
		set["refund_ref"] = *upd.RefundRef
	}
	if upd.RefundedAmount != nil {
		set["refunded_amount"] = *upd.RefundedAmount
	}

	update := bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	}
	if upd.AdminNote != nil {
		update["$push"] = bson.M{"admin_notes": *upd.AdminNote}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated domain.Order
	err := r.orders.FindOneAndUpdate(ctx, bson.M{"_id": id, "version": version}, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	n, err := r.orders.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to check order: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrNotFound
	}
	return nil, domain.ErrConcurrencyConflict
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.orders.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ScanOrderNumbers reads every order's number as stored, without coercing its type.
func (r *OrderRepository) ScanOrderNumbers(ctx context.Context) ([]order.NumberRecord, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1, "created_at": 1, "order_number": 1}).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.orders.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to scan orders: %w", err)
	}
	defer cursor.Close(ctx)

	var records []order.NumberRecord
	for cursor.Next(ctx) {
		var doc struct {
			ID        string        `bson:"_id"`
			CreatedAt time.Time     `bson:"created_at"`
			Number    bson.RawValue `bson:"order_number"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		records = append(records, order.NumberRecord{
			ID:        doc.ID,
			CreatedAt: doc.CreatedAt,
			Number:    rawNumber(doc.Number),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan orders: %w", err)
	}
	return records, nil
}

func rawNumber(v bson.RawValue) any {
	switch v.Type {
	case bson.TypeInt32:
		return v.Int32()
	case bson.TypeInt64:
		return v.Int64()
	case bson.TypeDouble:
		return v.Double()
	case bson.TypeString:
		return v.StringValue()
	}
	return nil
}

// ApplyOrderNumbers writes the assignments and moves the counter past maxUsed.
func (r *OrderRepository) ApplyOrderNumbers(ctx context.Context, assignments []order.Assignment, maxUsed int64) error {
	if len(assignments) > 0 {
		models := make([]mongo.WriteModel, 0, len(assignments))
		for _, a := range assignments {
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(bson.M{"_id": a.ID}).
				SetUpdate(bson.M{"$set": bson.M{"order_number": a.Number}}))
		}
		if _, err := r.orders.BulkWrite(ctx, models); err != nil {
			return fmt.Errorf("failed to renumber orders: %w", err)
		}
	}

	_, err := r.counters.UpdateOne(ctx,
		bson.M{"_id": orderNumberCounter},
		bson.M{"$max": bson.M{"seq": maxUsed}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to advance order number counter: %w", err)
	}
	return nil
}
