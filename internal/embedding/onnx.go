//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/semantica/pkg/utils"
)

// ONNXEmbedder runs a BERT-style sentence model through ONNX Runtime. It
// requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	model      string
	dimensions int
	maxTokens  int
	pooled     bool
	tokenizer  Tokenizer

	// Tensors are allocated once; Embed rewrites their data before each Run.
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
	mu            sync.Mutex
}

// NewONNXEmbedder loads the model described by cfg.
func NewONNXEmbedder(cfg ONNXConfig) (*ONNXEmbedder, error) {
	cfg = cfg.withDefaults()
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx model path is required")
	}
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}

	e := &ONNXEmbedder{
		model:      filepath.Base(cfg.ModelPath),
		dimensions: cfg.Dimensions,
		maxTokens:  cfg.MaxTokens,
		pooled:     cfg.Pooled,
		tokenizer:  &SimpleTokenizer{},
	}
	if err := e.allocate(); err != nil {
		e.Close()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{e.inputIDs, e.attentionMask, e.tokenTypeIDs},
		[]ort.ArbitraryTensor{e.output},
		nil,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	e.session = session
	return e, nil
}

func (e *ONNXEmbedder) allocate() error {
	seq := ort.NewShape(1, int64(e.maxTokens))
	var err error
	if e.inputIDs, err = ort.NewEmptyTensor[int64](seq); err != nil {
		return fmt.Errorf("create input_ids tensor: %w", err)
	}
	if e.attentionMask, err = ort.NewEmptyTensor[int64](seq); err != nil {
		return fmt.Errorf("create attention_mask tensor: %w", err)
	}
	if e.tokenTypeIDs, err = ort.NewEmptyTensor[int64](seq); err != nil {
		return fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	outShape := ort.NewShape(1, int64(e.maxTokens), int64(e.dimensions))
	if e.pooled {
		outShape = ort.NewShape(1, int64(e.dimensions))
	}
	if e.output, err = ort.NewEmptyTensor[float32](outShape); err != nil {
		return fmt.Errorf("create output tensor: %w", err)
	}
	return nil
}

// Embed runs the model on text and returns the normalized sentence vector.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("onnx embedder is closed")
	}

	ids, mask, types := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDs.GetData(), ids)
	copy(e.attentionMask.GetData(), mask)
	copy(e.tokenTypeIDs.GetData(), types)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := e.output.GetData()
	embedding := make([]float32, e.dimensions)
	if e.pooled {
		copy(embedding, out[:e.dimensions])
	} else {
		meanPool(embedding, out, mask)
	}
	utils.NormalizeL2(embedding)
	return embedding, nil
}

// Fingerprint names the model file and dimension.
func (e *ONNXEmbedder) Fingerprint() string {
	return fmt.Sprintf("onnx/%s/%d", e.model, e.dimensions)
}

// meanPool averages the token vectors selected by mask into dst.
func meanPool(dst, hidden []float32, mask []int64) {
	d := len(dst)
	var n float32
	for tok, m := range mask {
		if m == 0 {
			continue
		}
		n++
		row := hidden[tok*d : (tok+1)*d]
		for i, v := range row {
			dst[i] += v
		}
	}
	if n == 0 {
		return
	}
	for i := range dst {
		dst[i] /= n
	}
}

// EmbedBatch calls Embed for each text; the session runs one text at a time.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return EmbedConcurrently(ctx, texts, 1, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputIDs != nil {
		_ = e.inputIDs.Destroy()
	}
	if e.attentionMask != nil {
		_ = e.attentionMask.Destroy()
	}
	if e.tokenTypeIDs != nil {
		_ = e.tokenTypeIDs.Destroy()
	}
	if e.output != nil {
		_ = e.output.Destroy()
	}
	e.inputIDs, e.attentionMask, e.tokenTypeIDs, e.output = nil, nil, nil, nil
	return err
}
