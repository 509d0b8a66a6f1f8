package httpapi

import (
	"bytes"
	"html/template"

	"warungku/backend/internal/domain"
)

// receiptTmpl renders a printable sales receipt. html/template escapes all
// user-controlled fields.
var receiptTmpl = template.Must(template.New("receipt").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Receipt {{.Order.ID}}</title>
  <style>
    body { font-family: monospace; margin: 16px; max-width: 320px; }
    table { width: 100%; border-collapse: collapse; }
    td { padding: 2px 0; font-size: 12px; }
    .right { text-align: right; }
    .rule { border-top: 1px dashed #000; margin: 6px 0; }
    h3, p { margin: 2px 0; text-align: center; font-size: 13px; }
  </style>
</head>
<body>
  <h3>{{.Settings.ShopName}}</h3>
  <p>{{.Order.CreatedAt.Format "02 Jan 2006 15:04"}}</p>
  <p>Kasir: {{.Order.StaffName}}</p>
  {{if .Order.CustomerName}}<p>Pelanggan: {{.Order.CustomerName}}</p>{{end}}
  <div class="rule"></div>
  <table>
    {{range .Order.Items}}<tr><td>{{.ProductName}} x{{.Qty}}</td><td class="right">{{.LineTotal}}</td></tr>{{end}}
  </table>
  <div class="rule"></div>
  <table>
    <tr><td>Total</td><td class="right">{{.Order.TotalAmount}}</td></tr>
    {{if .Order.Discount}}<tr><td>Diskon</td><td class="right">-{{.Order.Discount}}</td></tr>{{end}}
    <tr><td>Bayar</td><td class="right">{{.Order.PaidAmount}}</td></tr>
    {{if .Order.DebtAmount}}<tr><td>Hutang</td><td class="right">{{.Order.DebtAmount}}</td></tr>{{end}}
  </table>
  <div class="rule"></div>
  <p>Terima kasih</p>
</body>
</html>
`))

// stockSlipTmpl renders a printable stock movement slip.
var stockSlipTmpl = template.Must(template.New("stock-slip").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>{{.Tx.Code}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, p { margin: 4px 0; }
  </style>
</head>
<body>
  <h2>{{.Settings.ShopName}} — {{if eq .Tx.Type "import"}}Barang Masuk{{else}}Barang Keluar{{end}}</h2>
  <p>Kode: {{.Tx.Code}}</p>
  <p>Tanggal: {{.Tx.CreatedAt.Format "02 Jan 2006 15:04"}}</p>
  <p>Petugas: {{.Tx.StaffName}}</p>
  {{if .Tx.Note}}<p>Catatan: {{.Tx.Note}}</p>{{end}}
  <table>
    <thead><tr><th>Produk</th><th>Qty</th><th>Harga Satuan</th><th>Batch</th></tr></thead>
    <tbody>{{range .Tx.Items}}<tr><td>{{.ProductName}}</td><td style="text-align:right;">{{.Qty}}</td><td style="text-align:right;">{{.UnitCost}}</td><td>{{.BatchNumber}}</td></tr>{{end}}</tbody>
  </table>
  <p>Total: {{.Tx.TotalAmount}}</p>
</body>
</html>
`))

func orderReceiptHTML(order domain.Order, settings domain.Settings) string {
	var buf bytes.Buffer
	data := struct {
		Order    domain.Order
		Settings domain.Settings
	}{order, settings}
	if err := receiptTmpl.Execute(&buf, data); err != nil {
		return "<!doctype html><html><body><p>Receipt rendering error.</p></body></html>"
	}
	return buf.String()
}

func stockSlipHTML(tx domain.InventoryTransaction, settings domain.Settings) string {
	var buf bytes.Buffer
	data := struct {
		Tx       domain.InventoryTransaction
		Settings domain.Settings
	}{tx, settings}
	if err := stockSlipTmpl.Execute(&buf, data); err != nil {
		return "<!doctype html><html><body><p>Slip rendering error.</p></body></html>"
	}
	return buf.String()
}
