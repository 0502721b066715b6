package notify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/timelesslk/storefront/internal/domain/order"
)

// Formatter renders order summaries for humans.
type Formatter struct {
	// Currency prefixes every amount, e.g. "Rs.".
	Currency string
}

func (f Formatter) money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if f.Currency == "" {
		return s
	}
	return f.Currency + " " + s
}

// Summary renders the order as plain text suitable for chat or e-mail.
func (f Formatter) Summary(o order.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order %s\n", o.ID)
	fmt.Fprintf(&b, "Name: %s\n", o.Customer.Name)
	fmt.Fprintf(&b, "Address: %s\n", o.Customer.Address)
	for _, c := range []struct{ label, v string }{
		{"Contact", o.Customer.Contact},
		{"Phone", o.Customer.Phone},
		{"Email", o.Customer.Email},
	} {
		if c.v != "" {
			fmt.Fprintf(&b, "%s: %s\n", c.label, c.v)
		}
	}
	b.WriteString("\nItems:\n")
	for _, li := range o.Items {
		fmt.Fprintf(&b, "- %s x%d @ %s = %s\n", li.Name, li.Quantity, f.money(li.UnitPrice), f.money(li.Total()))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal: %s\n", f.money(o.Subtotal))
	if o.Coupon != nil {
		fmt.Fprintf(&b, "Coupon %s: -%s\n", o.Coupon.Code, f.money(o.Coupon.Amount))
	}
	fmt.Fprintf(&b, "Total: %s\n", f.money(o.GrandTotal))
	if o.ShippingFee.IsPositive() {
		fmt.Fprintf(&b, "Shipping: %s\n", f.money(o.ShippingFee))
		fmt.Fprintf(&b, "Amount due: %s\n", f.money(o.AmountDue()))
	}
	fmt.Fprintf(&b, "Payment: %s", o.Payment)
	return b.String()
}

// WhatsAppURL returns a wa.me link that opens a chat with number prefilled
// with the order summary. Non-digits in number are dropped. An empty number
// yields an empty URL.
func (f Formatter) WhatsAppURL(number string, o order.Order) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if digits == "" {
		return ""
	}
	text := strings.ReplaceAll(url.QueryEscape(f.Summary(o)), "+", "%20")
	return "https://wa.me/" + digits + "?text=" + text
}
