package middlewares

// gin context keys; "request_id" is also read by the handlers package.
const (
	CtxRequestID = "request_id"
	CtxUserID    = "auth.userID"
)
