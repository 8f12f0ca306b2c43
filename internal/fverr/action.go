package fverr

// Action identifies the processing mode a traversal runs in.
type Action int8

const (
	Unknown Action = iota
	Encrypt
	Decrypt
)

func (a Action) String() string {
	switch a {
	case Encrypt:
		return "encryption"
	case Decrypt:
		return "decryption"
	default:
		return "unknown"
	}
}
