package engine

// Seeds carries the two inputs every outcome is derived from.
type Seeds struct {
	Server string // ASCII; used verbatim as the HMAC key, never hex-decoded
	Stain  string
}

// Validate rejects empty seeds before any hashing happens.
func (s Seeds) Validate() error {
	if s.Server == "" {
		return invalidInput("server_seed", "must not be empty")
	}
	if s.Stain == "" {
		return invalidInput("stain", "must not be empty")
	}
	return nil
}
