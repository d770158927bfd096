package models

// Version identifies an implementation by the hashes of its bytecode
type Version struct {
	WithMetadata          string `json:"withMetadata"`
	WithoutMetadata       string `json:"withoutMetadata"`
	LinkedWithoutMetadata string `json:"linkedWithoutMetadata"`
}
