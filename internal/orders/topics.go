package orders

const (
	TopicOrderStatus = "order.status.changed"
	TopicStock       = "inventory.stock.moved"
	TopicRefund      = "order.refund"
)

// Partition key = order code, supaya semua event 1 order maintain urutan.
func PartitionKey(orderCode string) []byte { return []byte(orderCode) }
