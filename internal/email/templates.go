package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderItem represents an item in an order for email purposes
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
	Digital   bool
}

// RefundNotice is the content of a refund status email.
type RefundNotice struct {
	Headline    string
	RequestID   string
	OrderID     string
	ProductName string
	Amount      decimal.Decimal
	Status      string
	Reason      string
}

const layout = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #1f2937; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">%s</h1>
	</div>
	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
%s
		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This email was sent automatically. Contact support if you have any questions.
		</p>
	</div>
</body>
</html>`

// BuildOrderConfirmationBody builds the HTML body for order confirmation email
func BuildOrderConfirmationBody(orderID string, total decimal.Decimal, items []OrderItem) string {
	var rows strings.Builder
	for _, item := range items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		if item.Digital {
			name += " (digital delivery)"
		}
		fmt.Fprintf(&rows,
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			html.EscapeString(name),
			item.Quantity,
			formatMoney(item.Price),
			formatMoney(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))),
		)
	}

	content := fmt.Sprintf(`		<p style="margin-top: 0;">Thank you for your order.</p>
		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Order number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left;">Item</th>
					<th style="padding: 12px; text-align: center;">Qty</th>
					<th style="padding: 12px; text-align: right;">Price</th>
					<th style="padding: 12px; text-align: right;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>
		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">Total</span>
			<span style="font-size: 24px; font-weight: bold; margin-left: 10px;">%s</span>
		</div>`, html.EscapeString(orderID), rows.String(), formatMoney(total))

	return fmt.Sprintf(layout, "Thank you for your order", content)
}

// BuildRefundNoticeBody builds the HTML body for refund status emails
func BuildRefundNoticeBody(n RefundNotice) string {
	var reason string
	if n.Reason != "" {
		reason = fmt.Sprintf(`
		<p><strong>Reason:</strong> %s</p>`, html.EscapeString(n.Reason))
	}

	content := fmt.Sprintf(`		<p style="margin-top: 0;">Refund request <span style="font-family: monospace;">%s</span> for %s on order <span style="font-family: monospace;">%s</span> is now <strong>%s</strong>.</p>
		<p><strong>Amount:</strong> %s</p>%s`,
		html.EscapeString(n.RequestID),
		html.EscapeString(n.ProductName),
		html.EscapeString(n.OrderID),
		html.EscapeString(strings.ReplaceAll(n.Status, "_", " ")),
		formatMoney(n.Amount),
		reason,
	)

	return fmt.Sprintf(layout, html.EscapeString(n.Headline), content)
}

// SaleAlert tells a wishlist watcher that a product went on sale.
type SaleAlert struct {
	ProductID   string
	ProductName string
	Price       decimal.Decimal
	SalePrice   decimal.Decimal
}

// BuildSaleAlertBody builds the HTML body for wishlist sale emails
func BuildSaleAlertBody(a SaleAlert) string {
	content := fmt.Sprintf(`		<p style="margin-top: 0;">%s from your wishlist is on sale.</p>
		<p><span style="text-decoration: line-through;">%s</span> <strong>%s</strong></p>`,
		html.EscapeString(a.ProductName),
		formatMoney(a.Price),
		formatMoney(a.SalePrice),
	)
	return fmt.Sprintf(layout, "A wishlist item is on sale", content)
}

// formatMoney renders an amount in dollars with comma separators
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole, cents, _ := strings.Cut(d.StringFixed(2), ".")
	return fmt.Sprintf("%s$%s.%s", sign, groupThousands(whole), cents)
}

func groupThousands(str string) string {
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	remainder := len(str) % 3
	if remainder > 0 {
		result.WriteString(str[:remainder])
		result.WriteString(",")
	}

	for i := remainder; i < len(str); i += 3 {
		result.WriteString(str[i : i+3])
		if i+3 < len(str) {
			result.WriteString(",")
		}
	}

	return result.String()
}
