package types

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString is a string that never prints its value. String and
// MarshalJSON return a placeholder, so a database URL with credentials can
// sit in Config and still be logged safely.
type SecretString string

// String returns the redacted placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw value. Only call it where the secret is handed to a
// driver or client.
func (s SecretString) Unmask() string {
	return string(s)
}
