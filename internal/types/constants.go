package types

const (
	ContextUserKey      = "user"
	ContextClaimsKey    = "claims"
	ContextRequestIDKey = "request_id"

	RequestIDHeader = "X-Request-ID"
)

// Default allowed origins for development
var DefaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}
