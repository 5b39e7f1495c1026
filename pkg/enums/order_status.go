package enums

import (
	"fmt"
	"strings"
)

// OrderStatus is the fulfilment state shown on the order history screen.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var orderStatusLabels = map[OrderStatus]map[Locale]string{
	OrderStatusProcessing: {LocaleEnglish: "Processing", LocaleHindi: "प्रोसेसिंग"},
	OrderStatusDelivered:  {LocaleEnglish: "Delivered", LocaleHindi: "डिलीवर हो गया"},
	OrderStatusCancelled:  {LocaleEnglish: "Cancelled", LocaleHindi: "रद्द"},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Labels returns every localized label for the status.
func (s OrderStatus) Labels() map[Locale]string {
	labels := orderStatusLabels[s]
	out := make(map[Locale]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// Label returns the status label in locale, falling back to English.
func (s OrderStatus) Label(locale Locale) string {
	labels := orderStatusLabels[s]
	if label, ok := labels[locale]; ok {
		return label
	}
	if label, ok := labels[LocaleEnglish]; ok {
		return label
	}
	return string(s)
}

// ParseOrderStatus accepts any casing ("delivered" and "Delivered" both map).
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if strings.EqualFold(string(candidate), strings.TrimSpace(value)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
