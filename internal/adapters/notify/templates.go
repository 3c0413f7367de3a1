package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/phenrril/printshop/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

type line struct {
	Label    string
	Quantity int64
	Amount   string
}

type orderEmailData struct {
	domain.OrderNotification
	Title     string
	Heading   string
	Shop      string
	Total     string
	Lines     []line
	HasPrints bool
}

func render(name string, data any) (string, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func formatMoney(cents int64, currency string) string {
	if currency == "" {
		currency = "usd"
	}
	return decimal.New(cents, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}

func newOrderEmailData(n domain.OrderNotification, shop string) orderEmailData {
	d := orderEmailData{
		OrderNotification: n,
		Shop:              shop,
		Total:             formatMoney(n.AmountTotal, n.Currency),
		HasPrints:         len(n.Prints) > 0,
	}
	for _, it := range n.Items {
		label := it.Name
		if label == "" {
			label = it.PhotoID
		}
		if it.Kind == domain.ItemPrint {
			label = fmt.Sprintf("%s (%s %s)", label, it.Material, it.Size)
		} else {
			label += " (license)"
		}
		d.Lines = append(d.Lines, line{Label: label, Quantity: it.Quantity, Amount: formatMoney(it.UnitAmount, n.Currency)})
	}
	return d
}
