package enums

// PurchaseStatus values are a wire contract shared with the payment
// intake flow and must match it byte for byte.
type PurchaseStatus string

const (
	PurchaseStatusAuthorized PurchaseStatus = "authorized"
	PurchaseStatusCaptured   PurchaseStatus = "captured"
	PurchaseStatusRefunded   PurchaseStatus = "refunded"
	PurchaseStatusVoided     PurchaseStatus = "voided"
)

func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchaseStatusAuthorized, PurchaseStatusCaptured, PurchaseStatusRefunded, PurchaseStatusVoided:
		return true
	default:
		return false
	}
}
