package model

import (
	"time"
)

// DateLayout is the wire format of order and called dates
const DateLayout = "2006-01-02"

// OrderRecord is a delivery order grouped by colour
type OrderRecord struct {
	ID             string    `json:"id,omitempty"`
	WhatsAppNumber string    `json:"whatsapp_number"`
	OrderDate      time.Time `json:"order_date"`
	CalledDate     time.Time `json:"called_date"`
	Colour         string    `json:"colour"`
	Timestamp      time.Time `json:"timestamp"`
}
