package enums

// NotificationType categorizes in-app notifications.
type NotificationType string

const (
	NotificationOrderCreated   NotificationType = "order_created"
	NotificationOrderUpdate    NotificationType = "order_update"
	NotificationPaymentSuccess NotificationType = "payment_success"
)

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}
