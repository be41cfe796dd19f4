package orders

import (
	"fmt"
	"slices"
	"strings"
)

type Status string

const (
	StatusPendingPayment      Status = "PENDING_PAYMENT"
	StatusPendingConfirmation Status = "PENDING_CONFIRMATION"
	StatusPacking             Status = "PACKING"
	StatusShipping            Status = "SHIPPING"
	StatusCompleted           Status = "COMPLETED"
	StatusCancelled           Status = "CANCELLED"
	StatusDeliveryFailed      Status = "DELIVERY_FAILED"
	StatusReturnRequested     Status = "RETURN_REQUESTED"
	StatusReturnProcessing    Status = "RETURN_PROCESSING"
	StatusReturnCompleted     Status = "RETURN_COMPLETED"
)

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "UNPAID"
	PaymentPaid          PaymentStatus = "PAID"
	PaymentPendingRefund PaymentStatus = "PENDING_REFUND"
	PaymentRefunded      PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "ONLINE"
)

// Operation is a staff or customer action that moves an order between statuses.
type Operation string

const (
	OpApprove          Operation = "approve"
	OpHandover         Operation = "handover"
	OpConfirmDelivered Operation = "confirmDelivered"
	OpMarkFailed       Operation = "markFailed"
	OpCancel           Operation = "cancel"
	OpRequestReturn    Operation = "requestReturn"
	OpAcceptReturn     Operation = "acceptReturn"
	OpCompleteReturn   Operation = "completeReturn"
)

// transitions: status sekarang -> operasi yang legal -> status tujuan.
var transitions = map[Status]map[Operation]Status{
	StatusPendingPayment: {
		OpCancel: StatusCancelled,
	},
	StatusPendingConfirmation: {
		OpApprove: StatusPacking,
		OpCancel:  StatusCancelled,
	},
	StatusPacking: {
		OpHandover: StatusShipping,
	},
	StatusShipping: {
		OpConfirmDelivered: StatusCompleted,
		OpMarkFailed:       StatusDeliveryFailed,
	},
	StatusCompleted: {
		OpRequestReturn: StatusReturnRequested,
	},
	StatusReturnRequested: {
		OpAcceptReturn: StatusReturnProcessing,
	},
	StatusReturnProcessing: {
		OpCompleteReturn: StatusReturnCompleted,
	},
	StatusCancelled:       {},
	StatusDeliveryFailed:  {},
	StatusReturnCompleted: {},
}

// Next returns the status reached by applying op from the given status.
func Next(from Status, op Operation) (Status, bool) {
	to, ok := transitions[from][op]
	return to, ok
}

// Allowed lists the operations legal from the given status.
func Allowed(from Status) []Operation {
	ops := make([]Operation, 0, len(transitions[from]))
	for op := range transitions[from] {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown order status %q", ErrValidation, v)
	}
	return s, nil
}

func ParsePaymentStatus(v string) (PaymentStatus, error) {
	switch p := PaymentStatus(strings.ToUpper(strings.TrimSpace(v))); p {
	case PaymentUnpaid, PaymentPaid, PaymentPendingRefund, PaymentRefunded:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown payment status %q", ErrValidation, v)
}

func ParsePaymentMethod(v string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(v))); m {
	case PaymentCOD, PaymentOnline:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrValidation, v)
}
