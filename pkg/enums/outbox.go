package enums

// OutboxEventType enumerates domain events written to the outbox.
type OutboxEventType string

const (
	EventPCNSubmitted             OutboxEventType = "pcn.submitted"
	EventAppointmentStatusChanged OutboxEventType = "appointment.status_changed"
	EventSaleMatched              OutboxEventType = "sale.matched"
	EventSaleUnmatched            OutboxEventType = "sale.unmatched"
	EventCommissionCreated        OutboxEventType = "commission.created"
	EventCommissionReleased       OutboxEventType = "commission.released"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateAppointment OutboxAggregateType = "appointment"
	AggregateSale        OutboxAggregateType = "sale"
	AggregateCommission  OutboxAggregateType = "commission"
)
