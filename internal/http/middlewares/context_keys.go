package middlewares

const (
	CtxUserID    = "auth.userID"
	CtxUsername  = "auth.username"
	CtxEmail     = "auth.email"
	CtxRequestID = "request_id"
)
