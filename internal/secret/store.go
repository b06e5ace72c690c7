package secret

// SecretStore provides access to credentials kept at rest in an encoded
// form, such as the database user and password of the relational source.
type SecretStore interface {
	// Get returns the decoded secret stored under key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)
}
