package events

// Topic constants for domain events emitted by checkout.
const (
	TopicOrderCompleted = "order.completed"
	TopicGiftCardIssued = "giftcard.issued"
)

// OrderCompleted is the payload of TopicOrderCompleted.
type OrderCompleted struct {
	OrderRef      string `json:"order_ref"`
	Email         string `json:"email"`
	ProductKind   string `json:"product_kind"`
	ProductName   string `json:"product_name"`
	AmountPaid    int64  `json:"amount_paid"`
	CreditApplied int64  `json:"credit_applied"`
	Currency      string `json:"currency"`
}

// GiftCardIssued is the payload of TopicGiftCardIssued. Code is only sent to the recipient.
type GiftCardIssued struct {
	OrderRef       string `json:"order_ref"`
	Code           string `json:"code"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	RecipientName  string `json:"recipient_name"`
	RecipientEmail string `json:"recipient_email"`
	Message        string `json:"message,omitempty"`
	PurchaserEmail string `json:"purchaser_email"`
}
