package email

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// LowStockAlert is the content of one low-stock notification.
type LowStockAlert struct {
	SKU       string
	OnHand    int
	Reserved  int
	Available int
	MinQty    int
	UOM       string
	At        time.Time
}

// BuildLowStockSubject builds the subject line for a low-stock alert
func BuildLowStockSubject(alert LowStockAlert) string {
	return fmt.Sprintf("[Inventory] Low stock: %s (%s %s available)",
		alert.SKU, formatNumber(alert.Available), alert.UOM)
}

// BuildLowStockBody builds the HTML body for a low-stock alert
func BuildLowStockBody(alert LowStockAlert) string {
	rows := []struct {
		label string
		value int
	}{
		{"On hand", alert.OnHand},
		{"Reserved", alert.Reserved},
		{"Available", alert.Available},
		{"Threshold", alert.MinQty},
	}

	var rowsHTML strings.Builder
	for _, row := range rows {
		rowsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s %s</td>
			</tr>`,
			row.label,
			formatNumber(row.value),
			html.EscapeString(alert.UOM),
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: linear-gradient(135deg, #f6a623 0%%, #d0021b 100%%); padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Low stock alert</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Available stock has dropped below the configured threshold.</p>

		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">SKU</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<tbody>
				%s
			</tbody>
		</table>

		<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			Detected at %s. This message was sent automatically.
		</p>
	</div>
</body>
</html>`, html.EscapeString(alert.SKU), rowsHTML.String(), alert.At.UTC().Format(time.RFC3339))
}

// formatNumber formats a number with comma separators
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	remainder := len(str) % 3
	if remainder > 0 {
		result.WriteString(str[:remainder])
		if len(str) > remainder {
			result.WriteString(",")
		}
	}

	for i := remainder; i < len(str); i += 3 {
		result.WriteString(str[i : i+3])
		if i+3 < len(str) {
			result.WriteString(",")
		}
	}

	return result.String()
}
