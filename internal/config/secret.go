package config

// Secret is a string type that redacts itself when printed or marshaled.
// Used for the wallet private key so it stays redacted if printed or logged.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// MarshalJSON ensures secrets are redacted when marshaled to JSON
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalYAML ensures secrets are redacted when marshaled to YAML
func (s Secret) MarshalYAML() (interface{}, error) {
	return "[REDACTED]", nil
}

// GoString redacts %#v formatting so secrets never leak into debug dumps.
func (s Secret) GoString() string {
	return "[REDACTED]"
}
