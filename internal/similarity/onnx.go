package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// OnnxConfig locates a sentence-transformer exported to ONNX (e.g. all-MiniLM-L6-v2).
type OnnxConfig struct {
	SharedLibraryPath string
	ModelPath         string
	TokenizerPath     string
	MaxSeqLen         int
	ModelID           string
}

const defaultMaxSeqLen = 256

var (
	ortOnce sync.Once
	ortErr  error
)

// initRuntime initializes the ONNX runtime environment once per process.
func initRuntime(libPath string) error {
	ortOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// OnnxEmbedder embeds text with a local ONNX model: mean pooling over the attention
// mask followed by L2 normalization.
type OnnxEmbedder struct {
	cfg       OnnxConfig
	tk        *tokenizer.Tokenizer
	session   *ort.DynamicAdvancedSession
	hasTypes  bool
	outputDim int

	// a session must not run concurrently with itself
	mu sync.Mutex
}

// NewOnnxEmbedder loads the tokenizer and model.
func NewOnnxEmbedder(cfg OnnxConfig) (*OnnxEmbedder, error) {
	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return nil, errors.New("onnx model and tokenizer paths are required")
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = defaultMaxSeqLen
	}
	if cfg.ModelID == "" {
		cfg.ModelID = filepath.Base(filepath.Dir(cfg.ModelPath))
	}

	if err := initRuntime(cfg.SharedLibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize onnx runtime: %w", err)
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect onnx model: %w", err)
	}
	if len(outputs) == 0 {
		return nil, errors.New("onnx model has no outputs")
	}

	inputNames := []string{"input_ids", "attention_mask"}
	hasTypes := false
	for _, in := range inputs {
		if in.Name == "token_type_ids" {
			hasTypes = true
			inputNames = append(inputNames, "token_type_ids")
		}
	}

	dims := outputs[0].Dimensions
	outputDim := 0
	if len(dims) > 0 {
		outputDim = int(dims[len(dims)-1])
	}
	if outputDim <= 0 {
		return nil, fmt.Errorf("onnx output %q has no fixed hidden size", outputs[0].Name)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session: %w", err)
	}

	return &OnnxEmbedder{
		cfg:       cfg,
		tk:        tk,
		session:   session,
		hasTypes:  hasTypes,
		outputDim: outputDim,
	}, nil
}

// ModelID returns the identifier used for cache keys.
func (e *OnnxEmbedder) ModelID() string {
	return "onnx/" + e.cfg.ModelID
}

// Close releases the onnx session.
func (e *OnnxEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}

// Embed returns the normalized sentence embedding of text.
func (e *OnnxEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enc, err := e.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize: %w", err)
	}
	ids, mask, typeIDs := truncate(enc.Ids, enc.AttentionMask, enc.TypeIds, e.cfg.MaxSeqLen)
	seqLen := len(ids)
	if seqLen == 0 {
		return nil, errors.New("tokenizer produced no tokens")
	}

	shape := ort.NewShape(1, int64(seqLen))
	idsT, err := ort.NewTensor(shape, toInt64(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() { _ = idsT.Destroy() }()
	maskT, err := ort.NewTensor(shape, toInt64(mask))
	if err != nil {
		return nil, fmt.Errorf("failed to create mask tensor: %w", err)
	}
	defer func() { _ = maskT.Destroy() }()

	inputs := []ort.Value{idsT, maskT}
	if e.hasTypes {
		typesT, err := ort.NewTensor(shape, toInt64(typeIDs))
		if err != nil {
			return nil, fmt.Errorf("failed to create type tensor: %w", err)
		}
		defer func() { _ = typesT.Destroy() }()
		inputs = append(inputs, typesT)
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(seqLen), int64(e.outputDim)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer func() { _ = out.Destroy() }()

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return nil, errors.New("onnx embedder is closed")
	}
	err = e.session.Run(inputs, []ort.Value{out})
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx inference failed: %w", err)
	}

	return meanPool(out.GetData(), mask, e.outputDim), nil
}

// truncate cuts an encoding to maxLen tokens, keeping the final special token.
func truncate(ids, mask, typeIDs []int, maxLen int) ([]int, []int, []int) {
	if len(typeIDs) != len(ids) {
		typeIDs = make([]int, len(ids))
	}
	if len(mask) != len(ids) {
		mask = make([]int, len(ids))
		for i := range mask {
			mask[i] = 1
		}
	}
	if len(ids) <= maxLen {
		return ids, mask, typeIDs
	}
	last := len(ids) - 1
	outIDs := append(append([]int{}, ids[:maxLen-1]...), ids[last])
	outMask := append(append([]int{}, mask[:maxLen-1]...), mask[last])
	outTypes := append(append([]int{}, typeIDs[:maxLen-1]...), typeIDs[last])
	return outIDs, outMask, outTypes
}

// meanPool averages token embeddings where mask is set and L2-normalizes the result.
func meanPool(hidden []float32, mask []int, dim int) []float32 {
	out := make([]float32, dim)
	var count float32
	for t, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[t*dim : (t+1)*dim]
		for i, v := range row {
			out[i] += v
		}
		count++
	}
	if count == 0 {
		return out
	}
	var norm float64
	for i := range out {
		out[i] /= count
		norm += float64(out[i]) * float64(out[i])
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}

func toInt64(xs []int) []int64 {
	out := make([]int64, len(xs))
	for i, x := range xs {
		out[i] = int64(x)
	}
	return out
}
