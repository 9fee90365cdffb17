package pages

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"agency_portal_echo/internal/models"
)

type DashboardProps struct {
	UserName     string
	Transactions []models.Transaction
	Subscription *models.WhatsAppTransaction
}

func Dashboard(props DashboardProps) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := &writer{w: w}
		pw.raw(`<header><h1>Welcome, `)
		pw.text(props.UserName)
		pw.raw(`</h1><form method="post" action="/auth/logout"><button>Sign out</button></form></header>`)

		pw.raw(`<section class="subscription">`)
		if sub := props.Subscription; sub != nil && sub.ExpiresAt != nil {
			pw.raw(`<p>`)
			pw.text(sub.PackageName)
			pw.raw(` active until `)
			pw.text(sub.ExpiresAt.Format("2 Jan 2006"))
			pw.raw(`</p>`)
		} else {
			pw.raw(`<p>No active WhatsApp subscription.</p>`)
		}
		pw.raw(`</section>`)

		pw.raw(`<section class="transactions"><h2>Transactions</h2>`)
		if len(props.Transactions) == 0 {
			pw.raw(`<p>No transactions yet.</p></section>`)
			return pw.err
		}
		pw.raw(`<table><thead><tr><th>#</th><th>Description</th><th>Amount</th><th>Status</th><th>Date</th></tr></thead><tbody>`)
		for _, trx := range props.Transactions {
			pw.raw(`<tr><td>`)
			pw.text(strconv.FormatUint(uint64(trx.ID), 10))
			pw.raw(`</td><td>`)
			pw.text(trx.Description)
			pw.raw(`</td><td>`)
			pw.text(FormatIDR(trx.Amount))
			pw.raw(`</td><td class="status-`)
			pw.text(string(trx.Status))
			pw.raw(`">`)
			pw.text(string(trx.Status))
			pw.raw(`</td><td>`)
			pw.text(trx.CreatedAt.Format("2 Jan 2006 15:04"))
			pw.raw(`</td></tr>`)
		}
		pw.raw(`</tbody></table></section>`)
		return pw.err
	})
	return layout("Dashboard", body)
}
