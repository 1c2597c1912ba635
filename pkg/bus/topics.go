package bus

const (
	TopicPriceTick          = "price.tick"
	TopicOrderNew           = "order.new"
	TopicOrderFilled        = "order.filled"
	TopicOrderCancelled     = "order.cancelled"
	TopicPositionUpdated    = "position.updated"
	TopicAccountPnL         = "account.pnl"
	TopicSimulationFinished = "simulation.finished"

	Wildcard = "*"
)
