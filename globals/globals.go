package globals

var (
	// JwtSecret signs and verifies session tokens; set from config at startup.
	JwtSecret = []byte("your_secret_key")
)

// Context keys
type ContextKey string

const RoleKey ContextKey = "role"
const UserIDKey ContextKey = "userId"
