package services

// Quote is the outcome of the pricing computation for one purchase. It is
// pure data: computing it never touches storage, so the same inputs always
// re-derive the same totals at audit time.
type Quote struct {
	UnitPrice       int64
	Quantity        int
	VoucherDiscount int64
	PointsRequested int64
	// PointsCharged is what the ledger will actually be debited. The voucher
	// discount is applied first; points can only reduce the remainder, so a
	// request larger than the remainder is charged only up to it.
	PointsCharged int64
	Total         int64
}

// PriceQuote computes the final price for quantity units at unitPrice with
// an optional voucher discount and requested points, clamped at zero.
// Callers are responsible for checking pointsRequested against the user's
// balance before consuming PointsCharged.
func PriceQuote(unitPrice int64, quantity int, voucherDiscount, pointsRequested int64) Quote {
	gross := unitPrice * int64(quantity)

	remainder := gross - voucherDiscount
	if remainder < 0 {
		remainder = 0
	}

	charged := pointsRequested
	if charged > remainder {
		charged = remainder
	}
	if charged < 0 {
		charged = 0
	}

	return Quote{
		UnitPrice:       unitPrice,
		Quantity:        quantity,
		VoucherDiscount: voucherDiscount,
		PointsRequested: pointsRequested,
		PointsCharged:   charged,
		Total:           remainder - charged,
	}
}
