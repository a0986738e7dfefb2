package automation

import (
	"strconv"
	"strings"

	"socialflow/internal/models"
)

const noPriceText = "Contact for price"

// RenderProduct fills {product_name}, {product_price} and {product_description}
// in a send_product template.
func RenderProduct(template string, p models.Product) string {
	return strings.NewReplacer(
		"{product_name}", p.Name,
		"{product_price}", FormatPrice(p),
		"{product_description}", p.Description,
	).Replace(template)
}

// FormatPrice renders the price with its currency symbol, "$" by default.
// A missing or zero price reads as "Contact for price".
func FormatPrice(p models.Product) string {
	if p.Price == nil || *p.Price == 0 {
		return noPriceText
	}
	currency := p.Currency
	if currency == "" {
		currency = "$"
	}
	return currency + strconv.FormatFloat(*p.Price, 'f', -1, 64)
}
