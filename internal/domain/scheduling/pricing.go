package scheduling

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// FinalPrice applies an optional discount to base. Percentage discounts are
// not floored at zero; fixed discounts are. Unknown discount types leave the
// price unchanged.
func FinalPrice(base decimal.Decimal, discount *decimal.Decimal, discountType *DiscountType) decimal.Decimal {
	if discount == nil || discountType == nil {
		return base
	}
	switch *discountType {
	case DiscountPercentage:
		return base.Sub(base.Mul(*discount).Div(hundred))
	case DiscountFixed:
		return decimal.Max(decimal.Zero, base.Sub(*discount))
	default:
		return base
	}
}
