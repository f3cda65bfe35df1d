package notification

// Templates emitted by the shipment lifecycle.
const (
	TemplateShipmentCreated       = "shipment_created"
	TemplateShipmentStatusChanged = "shipment_status_changed"
)

// Message is one outbound notification.
type Message struct {
	To       string         `json:"to"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}
