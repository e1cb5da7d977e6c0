// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the match handler.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided auth token was invalid or expired.
	InvalidUserIDError    = 3002 // The authenticated user holds no seat in the match.
	InvalidGameIDError    = 3003 // Target match does not exist.
)
