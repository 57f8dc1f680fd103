package service

import "stock-autopilot/internal/autopilot/config"

// TransactionFee applies the broker fee model: the flat minimum or the
// percentage of notional, whichever is higher.
func TransactionFee(fees config.Fees, notional float64) float64 {
	fee := notional * fees.Percent / 100
	if fee < fees.Minimum {
		fee = fees.Minimum
	}
	return fee
}
