package embedding

// ONNXConfig describes a sentence embedding model on disk.
type ONNXConfig struct {
	ModelPath string
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string
	Dimensions  int
	MaxTokens   int
	// OutputName is the graph output to read. Token-level outputs are mean
	// pooled unless Pooled is set.
	OutputName string
	Pooled     bool
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.Dimensions <= 0 {
		c.Dimensions = DefaultDimensions
	}
	if c.MaxTokens <= 2 {
		c.MaxTokens = defaultLimit
	}
	if c.OutputName == "" {
		c.OutputName = "last_hidden_state"
	}
	return c
}
