package component

// Component names
const (
	ComponentCache      = "cache"
	ComponentHTTPServer = "http_server"
	ComponentKafka      = "kafka"
)
