package report

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tokoberas/tokoberas/internal/catalog"
	"github.com/tokoberas/tokoberas/internal/finance"
	"github.com/tokoberas/tokoberas/internal/sales"
)

// Builder renders report HTML for the PDF converter. Numbers are formatted
// with Indonesian digit grouping.
type Builder struct {
	printer *message.Printer
}

// NewBuilder constructs Builder.
func NewBuilder() *Builder {
	return &Builder{printer: message.NewPrinter(language.Indonesian)}
}

// Rupiah formats an amount as Indonesian currency.
func (b *Builder) Rupiah(v float64) string {
	return b.printer.Sprintf("Rp%.0f", v)
}

// SalesReport renders completed sales over a period.
func (b *Builder) SalesReport(title string, from, to time.Time, completed []sales.Sale) string {
	var rows strings.Builder
	var total, totalProfit float64
	for _, sale := range completed {
		total += sale.Total
		totalProfit += sale.TotalProfit
		rows.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td class=\"num\">%s</td><td class=\"num\">%s</td></tr>",
			escape(sale.Number),
			sale.CreatedAt.Format("02-01-2006 15:04"),
			escape(string(sale.PaymentMethod)),
			b.Rupiah(sale.Total),
			b.Rupiah(sale.TotalProfit)))
	}
	summary := fmt.Sprintf("<p>%d transaksi, omzet %s, laba %s</p>",
		len(completed), b.Rupiah(total), b.Rupiah(totalProfit))
	table := "<table><thead><tr><th>Nomor</th><th>Waktu</th><th>Pembayaran</th><th>Total</th><th>Laba</th></tr></thead><tbody>" +
		rows.String() + "</tbody></table>"
	return b.page(title, from, to, summary+table)
}

// StockReport renders the current stock position.
func (b *Builder) StockReport(from, to time.Time, products []catalog.Product) string {
	var rows strings.Builder
	for _, p := range products {
		warn := ""
		if p.Stock <= p.MinStock {
			warn = " class=\"low\""
		}
		rows.WriteString(fmt.Sprintf("<tr%s><td>%s</td><td>%s</td><td class=\"num\">%s %s</td><td class=\"num\">%s %s</td><td class=\"num\">%s</td></tr>",
			warn,
			escape(p.Code),
			escape(p.Name),
			b.printer.Sprintf("%g", p.Stock), escape(p.Unit),
			b.printer.Sprintf("%g", p.MinStock), escape(p.Unit),
			b.Rupiah(p.Stock*p.CostPrice)))
	}
	table := "<table><thead><tr><th>Kode</th><th>Nama</th><th>Stok</th><th>Stok Min</th><th>Nilai</th></tr></thead><tbody>" +
		rows.String() + "</tbody></table>"
	return b.page("Laporan Stok", from, to, table)
}

// FinanceReport renders the cash ledger summary.
func (b *Builder) FinanceReport(summary finance.Summary, txns []finance.Transaction) string {
	head := fmt.Sprintf("<p>Pemasukan %s, pengeluaran %s, bersih %s</p>",
		"Rp"+summary.Income.StringFixed(0),
		"Rp"+summary.Expense.StringFixed(0),
		"Rp"+summary.Net.StringFixed(0))
	var rows strings.Builder
	for _, txn := range txns {
		rows.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td class=\"num\">Rp%s</td></tr>",
			txn.OccurredAt.Format("02-01-2006"),
			escape(string(txn.Kind)),
			escape(string(txn.Category)),
			escape(txn.Description),
			txn.Amount.StringFixed(0)))
	}
	table := "<table><thead><tr><th>Tanggal</th><th>Jenis</th><th>Kategori</th><th>Keterangan</th><th>Jumlah</th></tr></thead><tbody>" +
		rows.String() + "</tbody></table>"
	return b.page("Laporan Keuangan", summary.From, summary.To, head+table)
}

func (b *Builder) page(title string, from, to time.Time, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="id"><head><meta charset="utf-8"><title>%s</title>
<style>
body { font-family: sans-serif; font-size: 12px; }
h1 { font-size: 18px; margin-bottom: 0; }
table { width: 100%%; border-collapse: collapse; margin-top: 8px; }
th, td { border: 1px solid #999; padding: 4px 6px; text-align: left; }
td.num { text-align: right; }
tr.low td { background: #fde8e8; }
</style></head><body>
<h1>Toko Beras Sumber Rejeki</h1>
<h2>%s</h2>
<p>Periode %s s.d. %s</p>
%s
</body></html>`,
		escape(title), escape(title),
		from.Format("02-01-2006"), to.Format("02-01-2006"), body)
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
