package trafficlight

var (
	NewExpectCodeFunc = newExpectCodeFunc
	WithNotification  = withNotification
)
