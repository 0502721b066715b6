package wire

import (
	"github.com/go-faster/jx"

	"github.com/timelesslk/storefront/internal/domain/settings"
)

// EncodeSettings writes store settings.
func EncodeSettings(e *jx.Encoder, s settings.Settings) {
	e.ObjStart()
	e.FieldStart("shippingFee")
	Money(e, s.ShippingFee)
	e.ObjEnd()
}

// DecodeSettings reads store settings.
func DecodeSettings(d *jx.Decoder) (settings.Settings, error) {
	var s settings.Settings
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "shippingFee" {
			return d.Skip()
		}
		v, err := DecodeMoney(d)
		s.ShippingFee = v
		return FieldErr(key, err)
	})
	return s, err
}
