package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Service
	FieldService  = "service"
	FieldInstance = "instance_id"

	// Realtime connection
	FieldConnID    = "conn_id"
	FieldEvent     = "event"
	FieldRoom      = "room"
	FieldStreamID  = "stream_id"
	FieldSessionID = "session_id"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
