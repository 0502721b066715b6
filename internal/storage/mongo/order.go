package mongo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/timelesslk/storefront/internal/domain/coupon"
	"github.com/timelesslk/storefront/internal/domain/order"
)

type lineItemDoc struct {
	ProductID string               `bson:"id"`
	Name      string               `bson:"name"`
	UnitPrice primitive.Decimal128 `bson:"price"`
	Quantity  int                  `bson:"qty"`
}

type couponDoc struct {
	Code   string               `bson:"code"`
	Type   string               `bson:"type"`
	Value  primitive.Decimal128 `bson:"value"`
	Amount primitive.Decimal128 `bson:"amount"`
}

type customerDoc struct {
	Name    string `bson:"name"`
	Address string `bson:"address"`
	Contact string `bson:"contact,omitempty"`
	Email   string `bson:"email,omitempty"`
	Phone   string `bson:"phone,omitempty"`
}

type orderDoc struct {
	ID          string               `bson:"_id"`
	CreatedAt   time.Time            `bson:"created_at"`
	Customer    customerDoc          `bson:"customer"`
	Items       []lineItemDoc        `bson:"items"`
	Subtotal    primitive.Decimal128 `bson:"subtotal"`
	Coupon      *couponDoc           `bson:"coupon,omitempty"`
	GrandTotal  primitive.Decimal128 `bson:"grand_total"`
	ShippingFee primitive.Decimal128 `bson:"shipping_fee"`
	Payment     string               `bson:"payment"`
	Status      string               `bson:"status"`
}

// decimals converts a run of values, stopping at the first failure.
type decimals struct{ err error }

func (c *decimals) to(v decimal.Decimal) primitive.Decimal128 {
	if c.err != nil {
		return primitive.Decimal128{}
	}
	d, err := toDecimal128(v)
	c.err = err
	return d
}

func newOrderDoc(o order.Order) (orderDoc, error) {
	var c decimals
	doc := orderDoc{
		ID:        o.ID,
		CreatedAt: o.CreatedAt,
		Customer: customerDoc{
			Name:    o.Customer.Name,
			Address: o.Customer.Address,
			Contact: o.Customer.Contact,
			Email:   o.Customer.Email,
			Phone:   o.Customer.Phone,
		},
		Items:       make([]lineItemDoc, len(o.Items)),
		Subtotal:    c.to(o.Subtotal),
		GrandTotal:  c.to(o.GrandTotal),
		ShippingFee: c.to(o.ShippingFee),
		Payment:     o.Payment,
		Status:      string(o.Status),
	}
	for i, li := range o.Items {
		doc.Items[i] = lineItemDoc{
			ProductID: li.ProductID,
			Name:      li.Name,
			UnitPrice: c.to(li.UnitPrice),
			Quantity:  li.Quantity,
		}
	}
	if o.Coupon != nil {
		doc.Coupon = &couponDoc{
			Code:   o.Coupon.Code,
			Type:   string(o.Coupon.Type),
			Value:  c.to(o.Coupon.Value),
			Amount: c.to(o.Coupon.Amount),
		}
	}
	return doc, c.err
}

func (d orderDoc) order() (order.Order, error) {
	o := order.Order{
		ID:        d.ID,
		CreatedAt: d.CreatedAt.UTC(),
		Customer: order.Customer{
			Name:    d.Customer.Name,
			Address: d.Customer.Address,
			Contact: d.Customer.Contact,
			Email:   d.Customer.Email,
			Phone:   d.Customer.Phone,
		},
		Items:   make([]order.LineItem, len(d.Items)),
		Payment: d.Payment,
		Status:  order.Status(d.Status),
	}
	var err error
	set := func(dst *decimal.Decimal, v primitive.Decimal128) {
		if err != nil {
			return
		}
		*dst, err = fromDecimal128(v)
	}
	set(&o.Subtotal, d.Subtotal)
	set(&o.GrandTotal, d.GrandTotal)
	set(&o.ShippingFee, d.ShippingFee)
	for i, li := range d.Items {
		o.Items[i] = order.LineItem{ProductID: li.ProductID, Name: li.Name, Quantity: li.Quantity}
		set(&o.Items[i].UnitPrice, li.UnitPrice)
	}
	if d.Coupon != nil {
		o.Coupon = &order.AppliedCoupon{Code: d.Coupon.Code, Type: coupon.DiscountType(d.Coupon.Type)}
		set(&o.Coupon.Value, d.Coupon.Value)
		set(&o.Coupon.Amount, d.Coupon.Amount)
	}
	return o, err
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository.
type OrderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository returns an OrderRepository over the orders collection.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(ordersCollection)}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	doc, err := newOrderDoc(*o)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	out := make([]order.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.order()
		if err != nil {
			return nil, errors.Wrapf(err, "order %q", d.ID)
		}
		out = append(out, o)
	}
	return out, nil
}

// GetByID returns one order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.decodeOne(r.coll.FindOne(ctx, bson.M{"_id": id}))
}

// UpdateStatus sets the status of an order and returns the updated order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) (*order.Order, error) {
	res := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(status)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	return r.decodeOne(res)
}

func (r *OrderRepository) decodeOne(res *mongo.SingleResult) (*order.Order, error) {
	var doc orderDoc
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "decode order")
	}
	o, err := doc.order()
	if err != nil {
		return nil, err
	}
	return &o, nil
}
