package embedding

// Fingerprinter is implemented by embedders that can name the vector space
// they produce. Two embedders with equal fingerprints give comparable
// vectors; equal dimensions alone do not.
type Fingerprinter interface {
	Fingerprint() string
}

// Fingerprint returns e's fingerprint, or "" when e does not provide one.
func Fingerprint(e Embedder) string {
	if f, ok := e.(Fingerprinter); ok {
		return f.Fingerprint()
	}
	return ""
}
