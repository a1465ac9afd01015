package types

// Infrastructure-level log actions. Request-scoped actions are plain
// verb_noun strings set at the handler or service entry point.
const (
	ActionSubstrateConnected   = "substrate_connected"
	ActionSubstrateUnavailable = "substrate_unavailable"
	ActionConsumerGroupReady   = "consumer_group_ready"
	ActionNotificationDropped  = "notification_dropped"
)
