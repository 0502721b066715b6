package wire

import (
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/timelesslk/storefront/internal/domain/product"
)

// EncodeProduct writes the full product, including the effective price.
func EncodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("brand")
	e.Str(p.Brand)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	Money(e, p.Price)
	e.FieldStart("discount")
	Money(e, p.Discount)
	e.FieldStart("finalPrice")
	Money2(e, p.EffectivePrice())
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.FieldStart("image")
	e.Str(p.Image)
	e.FieldStart("images")
	Strings(e, p.Images)
	e.FieldStart("version")
	e.Int64(p.Version)
	if !p.CreatedAt.IsZero() {
		e.FieldStart("createdAt")
		Time(e, p.CreatedAt)
	}
	if !p.UpdatedAt.IsZero() {
		e.FieldStart("updatedAt")
		Time(e, p.UpdatedAt)
	}
	e.ObjEnd()
}

// EncodeProducts writes a product array.
func EncodeProducts(e *jx.Encoder, ps []product.Product) {
	e.ArrStart()
	for _, p := range ps {
		EncodeProduct(e, p)
	}
	e.ArrEnd()
}

// DecodeProduct reads a product. Unknown fields are skipped.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "brand":
			p.Brand, err = DecodeOptStr(d)
		case "category":
			p.Category, err = DecodeOptStr(d)
		case "description":
			p.Description, err = DecodeOptStr(d)
		case "price":
			p.Price, err = DecodeMoney(d)
		case "discount":
			p.Discount, err = DecodeMoney(d)
		case "stock":
			p.Stock, err = DecodeInt(d)
		case "image":
			p.Image, err = DecodeOptStr(d)
		case "images":
			p.Images, err = DecodeStrings(d)
		case "version":
			p.Version, err = d.Int64()
		case "createdAt":
			p.CreatedAt, err = DecodeTime(d)
		case "updatedAt":
			p.UpdatedAt, err = DecodeTime(d)
		default:
			return d.Skip()
		}
		return FieldErr(key, err)
	})
	return p, err
}

// DecodeProducts reads a product array.
func DecodeProducts(d *jx.Decoder) ([]product.Product, error) {
	var out []product.Product
	err := d.Arr(func(d *jx.Decoder) error {
		p, err := DecodeProduct(d)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// DecodePatch reads a partial product update. Only fields present in the
// document are set.
func DecodePatch(d *jx.Decoder) (product.Patch, error) {
	var pt product.Patch
	str := func(d *jx.Decoder) (*string, error) {
		s, err := DecodeOptStr(d)
		return &s, err
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			pt.Name, err = str(d)
		case "brand":
			pt.Brand, err = str(d)
		case "category":
			pt.Category, err = str(d)
		case "description":
			pt.Description, err = str(d)
		case "image":
			pt.Image, err = str(d)
		case "price":
			var v decimal.Decimal
			v, err = DecodeMoney(d)
			pt.Price = &v
		case "discount":
			var v decimal.Decimal
			v, err = DecodeMoney(d)
			pt.Discount = &v
		case "stock":
			var v int
			v, err = DecodeInt(d)
			pt.Stock = &v
		case "images":
			pt.Images, err = DecodeStrings(d)
			pt.SetImages = true
		default:
			return d.Skip()
		}
		return FieldErr(key, err)
	})
	return pt, err
}
