package enums

import "fmt"

// PaymentMethod describes how a buyer intends to settle an order.
type PaymentMethod string

const (
	// PaymentMethodCOD settles on delivery; the order is committed synchronously.
	PaymentMethodCOD PaymentMethod = "COD"
	// PaymentMethodZaloPay defers settlement to the gateway-redirect flow.
	PaymentMethodZaloPay PaymentMethod = "ZaloPay"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCOD,
	PaymentMethodZaloPay,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// Deferred reports whether the method requires asynchronous gateway confirmation.
func (p PaymentMethod) Deferred() bool {
	return p == PaymentMethodZaloPay
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
