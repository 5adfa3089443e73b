package v1

var (
	// common errors
	ErrSuccess             = newError(0, "ok")
	ErrBadRequest          = newError(400, "bad request")
	ErrUnauthorized        = newError(401, "unauthorized")
	ErrNotFound            = newError(404, "not found")
	ErrInternalServerError = newError(500, "internal server error")

	// engine errors
	ErrUnknownType       = newError(3001, "unknown resource type")
	ErrNotCached         = newError(3002, "resource has not been observed yet")
	ErrNoMembers         = newError(3003, "resource type has no members")
	ErrResourceNotFound  = newError(3004, "resource not found in collective")
	ErrCollectiveUnavail = newError(3005, "collective controller unavailable")
	ErrInvalidTopic      = newError(3006, "invalid topic")
	ErrJournalDisabled   = newError(3007, "change journal is disabled")
)
