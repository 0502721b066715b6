package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/timelesslk/storefront/internal/domain/order"
	"github.com/timelesslk/storefront/internal/wire"
)

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceOrderRequest
	if err := decodeJSON(r, func(d *jx.Decoder) (err error) {
		req, err = wire.DecodePlaceOrder(d)
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}

	o, err := h.Orders.PlaceOrder(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("ok")
		e.Bool(true)
		e.FieldStart("orderId")
		e.Str(o.ID)
		e.FieldStart("grandTotal")
		wire.Money2(e, o.GrandTotal)
		e.FieldStart("shippingFee")
		wire.Money2(e, o.ShippingFee)
		e.FieldStart("amountDue")
		wire.Money2(e, o.AmountDue())
		e.FieldStart("whatsappUrl")
		e.Str(h.Format.WhatsAppURL(h.WhatsApp, *o))
		e.ObjEnd()
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrder(e, *o) })
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	os, err := h.Orders.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrders(e, os) })
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var status string
	if err := decodeJSON(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "status" {
				return d.Skip()
			}
			s, err := d.Str()
			status = s
			return wire.FieldErr(key, err)
		})
	}); err != nil {
		fail(w, r, err)
		return
	}
	if status == "" {
		fail(w, r, badRequest("status is required"))
		return
	}

	o, err := h.Orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeOrder(e, *o) })
}
