package httpapi

import (
	"bytes"
	"encoding/csv"
	"html/template"
	"log"

	"cookiecraze/backend/internal/domain"
)

var salesExportHeader = []string{
	"Date", "Order ID", "Staff", "Customer", "Payment Method", "Order Type", "Total Amount", "Status",
}

func salesExportToCSV(export domain.SalesExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(salesExportHeader); err != nil {
		return nil, err
	}
	for _, row := range export.Rows {
		record := []string{
			row.Date.Format("2006-01-02 15:04"),
			csvSafe(row.OrderCode),
			csvSafe(row.Staff),
			csvSafe(row.Customer),
			csvSafe(row.PaymentMethod),
			csvSafe(row.OrderType),
			domain.Pesos(row.TotalCents).StringFixed(2),
			string(row.Status),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// csvSafe quotes a cell that a spreadsheet would otherwise evaluate as a
// formula. Kiosk buyers type their own names, so these cells are untrusted.
func csvSafe(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + value
	}
	return value
}

type printableReport struct {
	StoreName string
	Report    domain.SalesReport
	Symbol    string
}

var salesReportHTMLTmpl = template.Must(template.New("sales-report").Funcs(template.FuncMap{
	"money": domain.FormatMoney,
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>{{.StoreName}} Sales {{.Report.From}} to {{.Report.To}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.num { text-align: right; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>{{.StoreName}} Sales Report</h2>
  <p>{{.Report.From}} to {{.Report.To}}{{if .Report.StaffID}} | Staff {{.Report.StaffID}}{{end}}</p>
  <p>Completed orders: {{.Report.Orders}} of {{.Report.AllOrders}} ({{.Report.CompletionRate}}%) | Voided: {{.Report.VoidedOrders}}</p>
  <p>Revenue: {{money .Symbol .Report.RevenueCents}} | Average order: {{money .Symbol .Report.AverageOrderCents}}</p>
  <p>Walk-in: {{.Report.WalkIn.Orders}} orders, {{money .Symbol .Report.WalkIn.RevenueCents}} | Kiosk: {{.Report.Kiosk.Orders}} orders, {{money .Symbol .Report.Kiosk.RevenueCents}}</p>

  <h3>By Payment</h3>
  <table>
    <thead><tr><th>Method</th><th>Orders</th><th>Amount</th><th>Share</th></tr></thead>
    <tbody>{{range .Report.ByPayment}}<tr><td>{{.Method}}</td><td class="num">{{.Orders}}</td><td class="num">{{money $.Symbol .AmountCents}}</td><td class="num">{{.SharePercent}}%</td></tr>{{end}}</tbody>
  </table>

  <h3>Daily</h3>
  <table>
    <thead><tr><th>Date</th><th>Orders</th><th>Revenue</th></tr></thead>
    <tbody>{{range .Report.Daily}}<tr><td>{{.Date}}</td><td class="num">{{.Orders}}</td><td class="num">{{money $.Symbol .RevenueCents}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Top Cookies</h3>
  <table>
    <thead><tr><th>Cookie</th><th>Quantity</th><th>Revenue</th></tr></thead>
    <tbody>{{range .Report.TopCookies}}<tr><td>{{.Name}}</td><td class="num">{{.Quantity}}</td><td class="num">{{money $.Symbol .RevenueCents}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Staff Performance</h3>
  <table>
    <thead><tr><th>Staff</th><th>Orders</th><th>Revenue</th><th>Average</th></tr></thead>
    <tbody>{{range .Report.StaffPerformance}}<tr><td>{{.Name}}</td><td class="num">{{.Orders}}</td><td class="num">{{money $.Symbol .RevenueCents}}</td><td class="num">{{money $.Symbol .AverageCents}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

func salesReportToPrintableHTML(settings domain.StoreSettings, report domain.SalesReport) string {
	var buf bytes.Buffer
	data := printableReport{StoreName: settings.StoreName, Report: report, Symbol: settings.CurrencySymbol}
	if err := salesReportHTMLTmpl.Execute(&buf, data); err != nil {
		log.Printf("[httpapi] WARN: sales report render failed: %v", err)
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}
