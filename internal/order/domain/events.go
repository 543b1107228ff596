package domain

const (
	EventOrderCreated = "OrderCreated"
	EventOrderUpdated = "OrderUpdated"
)

type OrderCreated struct {
	OrderID string         `json:"orderId"`
	Ticket  string         `json:"ticket"`
	Total   int64          `json:"total"`
	Items   map[string]int `json:"items"`
}

type OrderUpdated struct {
	OrderID  string         `json:"orderId"`
	Ticket   string         `json:"ticket"`
	Payment  PaymentStatus  `json:"payment"`
	Progress ProgressStatus `json:"progress"`
}
