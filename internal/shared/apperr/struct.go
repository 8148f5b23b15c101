package apperr

type Kind string

// AppError carries a safe public message next to the internal cause.
type AppError struct {
	Kind      Kind
	PublicMsg string            // safe to show to the client
	Fields    map[string]string // per-field validation messages (optional)
	Err       error             // internal cause, logged only
}
