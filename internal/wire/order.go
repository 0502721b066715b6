package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/timelesslk/storefront/internal/domain/coupon"
	"github.com/timelesslk/storefront/internal/domain/order"
)

// EncodeCustomer writes the customer block, omitting empty optional fields.
func EncodeCustomer(e *jx.Encoder, c order.Customer) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("address")
	e.Str(c.Address)
	for _, f := range [...]struct{ k, v string }{
		{"contact", c.Contact},
		{"email", c.Email},
		{"phone", c.Phone},
	} {
		if f.v != "" {
			e.FieldStart(f.k)
			e.Str(f.v)
		}
	}
	e.ObjEnd()
}

// DecodeCustomer reads a customer block.
func DecodeCustomer(d *jx.Decoder) (order.Customer, error) {
	var c order.Customer
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			c.Name, err = DecodeOptStr(d)
		case "address":
			c.Address, err = DecodeOptStr(d)
		case "contact":
			c.Contact, err = DecodeOptStr(d)
		case "email":
			c.Email, err = DecodeOptStr(d)
		case "phone":
			c.Phone, err = DecodeOptStr(d)
		default:
			return d.Skip()
		}
		return FieldErr(key, err)
	})
	return c, err
}

// EncodeOrder writes the full order.
func EncodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("createdAt")
	Time(e, o.CreatedAt)
	e.FieldStart("customer")
	EncodeCustomer(e, o.Customer)
	e.FieldStart("items")
	e.ArrStart()
	for _, li := range o.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(li.ProductID)
		e.FieldStart("name")
		e.Str(li.Name)
		e.FieldStart("price")
		Money(e, li.UnitPrice)
		e.FieldStart("qty")
		e.Int(li.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	Money(e, o.Subtotal)
	if o.Coupon != nil {
		e.FieldStart("coupon")
		e.ObjStart()
		e.FieldStart("code")
		e.Str(o.Coupon.Code)
		e.FieldStart("type")
		e.Str(string(o.Coupon.Type))
		e.FieldStart("value")
		Money(e, o.Coupon.Value)
		e.FieldStart("amount")
		Money(e, o.Coupon.Amount)
		e.ObjEnd()
	}
	e.FieldStart("grandTotal")
	Money(e, o.GrandTotal)
	e.FieldStart("shippingFee")
	Money(e, o.ShippingFee)
	e.FieldStart("payment")
	e.Str(o.Payment)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.ObjEnd()
}

// EncodeOrders writes an order array.
func EncodeOrders(e *jx.Encoder, os []order.Order) {
	e.ArrStart()
	for _, o := range os {
		EncodeOrder(e, o)
	}
	e.ArrEnd()
}

// DecodeOrder reads an order written by EncodeOrder.
func DecodeOrder(d *jx.Decoder) (order.Order, error) {
	var o order.Order
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = d.Str()
		case "createdAt":
			o.CreatedAt, err = DecodeTime(d)
		case "customer":
			o.Customer, err = DecodeCustomer(d)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				li, err := decodeLineItem(d)
				o.Items = append(o.Items, li)
				return err
			})
		case "subtotal":
			o.Subtotal, err = DecodeMoney(d)
		case "coupon":
			if d.Next() == jx.Null {
				return d.Null()
			}
			o.Coupon, err = decodeAppliedCoupon(d)
		case "grandTotal":
			o.GrandTotal, err = DecodeMoney(d)
		case "shippingFee":
			o.ShippingFee, err = DecodeMoney(d)
		case "payment":
			o.Payment, err = d.Str()
		case "status":
			var s string
			s, err = d.Str()
			o.Status = order.Status(s)
		default:
			return d.Skip()
		}
		return FieldErr(key, err)
	})
	return o, err
}

// DecodeOrders reads an order array.
func DecodeOrders(d *jx.Decoder) ([]order.Order, error) {
	var out []order.Order
	err := d.Arr(func(d *jx.Decoder) error {
		o, err := DecodeOrder(d)
		if err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	return out, err
}

func decodeLineItem(d *jx.Decoder) (order.LineItem, error) {
	var li order.LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			li.ProductID, err = d.Str()
		case "name":
			li.Name, err = d.Str()
		case "price":
			li.UnitPrice, err = DecodeMoney(d)
		case "qty":
			li.Quantity, err = DecodeInt(d)
		default:
			return d.Skip()
		}
		return FieldErr(key, err)
	})
	return li, err
}

func decodeAppliedCoupon(d *jx.Decoder) (*order.AppliedCoupon, error) {
	c := &order.AppliedCoupon{}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			c.Code, err = d.Str()
		case "type":
			var s string
			s, err = d.Str()
			c.Type = coupon.DiscountType(s)
		case "value":
			c.Value, err = DecodeMoney(d)
		case "amount":
			c.Amount, err = DecodeMoney(d)
		default:
			return d.Skip()
		}
		return FieldErr(key, err)
	})
	return c, err
}

// DecodePlaceOrder reads a checkout request:
//
//	{"customer": {...}, "items": [{"id": "W1", "qty": 2}], "coupon": "TENOFF"}
//
// The coupon may also be an object with a "code" field. Items accept
// "productId" and "quantity" as aliases.
func DecodePlaceOrder(d *jx.Decoder) (order.PlaceOrderRequest, error) {
	var req order.PlaceOrderRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customer":
			req.Customer, err = DecodeCustomer(d)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				item, err := decodeCartItem(d)
				req.Items = append(req.Items, item)
				return err
			})
		case "coupon", "couponCode":
			req.CouponCode, err = decodeCouponCode(d)
		default:
			return d.Skip()
		}
		return FieldErr(key, err)
	})
	return req, err
}

func decodeCartItem(d *jx.Decoder) (order.Item, error) {
	var item order.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "productId":
			item.ProductID, err = d.Str()
		case "qty", "quantity":
			item.Quantity, err = DecodeInt(d)
		default:
			return d.Skip()
		}
		return FieldErr(key, err)
	})
	return item, err
}

func decodeCouponCode(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.String:
		return d.Str()
	case jx.Object:
		var code string
		err := d.Obj(func(d *jx.Decoder, key string) error {
			if key != "code" {
				return d.Skip()
			}
			var err error
			code, err = DecodeOptStr(d)
			return err
		})
		return code, err
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}
