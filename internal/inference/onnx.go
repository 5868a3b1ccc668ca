// SPDX-License-Identifier: MIT
package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"meowsense/internal/analysis"
	applog "meowsense/internal/log"
)

// SharedLibraryEnv names the environment variable consulted when
// ONNXConfig.SharedLibraryPath is empty.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var (
	ortInitMu   sync.Mutex
	ortInitDone bool
)

// initRuntime loads the ONNX Runtime shared library once per process.
func initRuntime(libPath string) error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()

	if ortInitDone {
		return nil
	}
	if libPath == "" {
		libPath = os.Getenv(SharedLibraryEnv)
	}
	if libPath != "" {
		applog.Infof("Using ONNX Runtime library: %s", libPath)
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	ortInitDone = true
	return nil
}

// ONNXConfig locates the model and its tensors.
type ONNXConfig struct {
	ModelPath         string
	SharedLibraryPath string
	// InputName and OutputName default to the model's first input and
	// output.
	InputName  string
	OutputName string
	Threads    int
}

// ONNXAdapter runs an ONNX classifier through ONNX Runtime.
type ONNXAdapter struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	numClasses int

	mu sync.Mutex
}

// NewONNXAdapter loads the model and opens a session.
func NewONNXAdapter(cfg ONNXConfig) (*ONNXAdapter, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if err := initRuntime(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("model has no inputs or outputs")
	}

	inputName := cfg.InputName
	if inputName == "" {
		inputName = inputs[0].Name
	}
	output := outputs[0]
	if cfg.OutputName != "" {
		found := false
		for _, o := range outputs {
			if o.Name == cfg.OutputName {
				output, found = o, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("model has no output named %q", cfg.OutputName)
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if cfg.Threads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.Threads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputName}, []string{output.Name}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	// The class axis is the last dimension; dynamic axes are negative.
	numClasses := 0
	if dims := output.Dimensions; len(dims) > 0 && dims[len(dims)-1] > 0 {
		numClasses = int(dims[len(dims)-1])
	}

	applog.Infof("Loaded model %s (input %q, output %q, classes %d)",
		cfg.ModelPath, inputName, output.Name, numClasses)

	return &ONNXAdapter{
		session:    session,
		inputName:  inputName,
		outputName: output.Name,
		numClasses: numClasses,
	}, nil
}

// NumClasses returns the static output width, or 0 when the model
// declares a dynamic class axis.
func (a *ONNXAdapter) NumClasses() int {
	return a.numClasses
}

// Predict implements Adapter. Input and output tensors are released on
// every return path.
func (a *ONNXAdapter) Predict(ctx context.Context, m *analysis.FeatureMatrix) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(ort.NewShape(TensorShape(m)...), Flatten(m))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	a.mu.Lock()
	err = a.session.Run([]ort.Value{input}, outputs)
	a.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	data := tensor.GetData()
	logits := make([]float64, len(data))
	for i, v := range data {
		logits[i] = float64(v)
	}
	return logits, nil
}

// Close releases the session.
func (a *ONNXAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil
	}
	err := a.session.Destroy()
	a.session = nil
	return err
}

var (
	_ Adapter = (*ONNXAdapter)(nil)
	_ Sized   = (*ONNXAdapter)(nil)
)
