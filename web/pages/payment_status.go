package pages

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// PaymentStatusProps is what the browser sees after returning from a
// gateway. Status may be provisional until the gateway callback arrives.
type PaymentStatusProps struct {
	Found         bool
	Title         string
	Message       string
	Status        string
	OrderID       string
	Amount        int64
	TransactionID uint
}

func PaymentStatus(props PaymentStatusProps) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := &writer{w: w}
		pw.raw(`<section class="payment-status status-`)
		pw.text(props.Status)
		pw.raw(`"><h1>`)
		pw.text(props.Title)
		pw.raw(`</h1><p>`)
		pw.text(props.Message)
		pw.raw(`</p>`)

		if props.Found {
			pw.raw(`<dl><dt>Order</dt><dd>`)
			pw.text(props.OrderID)
			pw.raw(`</dd><dt>Amount</dt><dd>`)
			pw.text(FormatIDR(props.Amount))
			pw.raw(`</dd><dt>Status</dt><dd>`)
			pw.text(props.Status)
			pw.raw(`</dd></dl>`)
			pw.raw(`<a class="button" href="/dashboard">Go to dashboard</a>`)
		} else {
			pw.raw(`<a class="button" href="/">Back to home</a>`)
		}
		pw.raw(`</section>`)
		return pw.err
	})
	return layout(props.Title, body)
}

// FormatIDR renders an amount as "Rp 1.500.000".
func FormatIDR(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-Rp " + b.String()
	}
	return "Rp " + b.String()
}
