package sourcing

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places money is rounded to
const MoneyPlaces int32 = 2

// LineTotal multiplies price by quantity and then rounds half away from zero
func LineTotal(price, quantity decimal.Decimal) decimal.Decimal {
	return price.Mul(quantity).Round(MoneyPlaces)
}

// AggregateTotal sums already-rounded line totals and rounds the result
func AggregateTotal(lineTotals []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range lineTotals {
		sum = sum.Add(t)
	}
	return sum.Round(MoneyPlaces)
}
