package service

const minutesPerVoucher = 60

// VoucherCount is the entitlement for a tracked day: one voucher per full hour
// tracked plus one per full hour spent at home. Both inputs are non-negative
// once a submission has passed validation.
func VoucherCount(totalMinutesTracked, minutesAtHome int) int {
	return totalMinutesTracked/minutesPerVoucher + minutesAtHome/minutesPerVoucher
}
