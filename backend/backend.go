// Package backend provides the numeric engine contract for the tensor-network
// circuit simulator: dense tensors, contraction primitives, functional
// gradient/batching transforms, and pluggable randomness. Every engine
// operation is a pure function of its tensor inputs, so the transforms in
// this package compose freely over them.
package backend

import (
	"sort"
	"sync"
)

// DType identifies the nominal complex precision of a tensor.
type DType int

const (
	// Complex64 is single-precision complex.
	Complex64 DType = iota
	// Complex128 is double-precision complex.
	Complex128
)

// String returns the canonical dtype name.
func (d DType) String() string {
	switch d {
	case Complex64:
		return "complex64"
	case Complex128:
		return "complex128"
	default:
		return "unknown"
	}
}

// Device identifies where a tensor lives. The shipped engine is CPU-only;
// the tag exists so one contraction can be checked for device consistency.
type Device string

// CPU is the only device the native engine provides.
const CPU Device = "cpu"

// Engine is the numeric engine contract. All methods treat their tensor
// arguments as immutable and return fresh tensors. Implementations must
// fail with a TypeMismatch error when operands of one call mix dtypes or
// devices, and with NotSupported when a primitive is unavailable.
type Engine interface {
	// Name returns the registry name of the engine.
	Name() string
	// Device returns the device this engine computes on.
	Device() Device
	// Supports reports whether the named primitive is available.
	Supports(op string) bool

	// Zeros returns an all-zero tensor of the given shape.
	Zeros(dt DType, shape ...int) (*Dense, error)
	// Eye returns the dim x dim identity matrix.
	Eye(dt DType, dim int) (*Dense, error)
	// FromSlice builds a tensor from row-major data. The data is copied.
	FromSlice(dt DType, data []complex128, shape ...int) (*Dense, error)
	// Basis returns the n-qubit computational basis state |index> as a
	// rank-n tensor with one leg of dimension 2 per qubit.
	Basis(dt DType, n int, index uint64) (*Dense, error)

	// Reshape returns a view-copy of t with a new shape of equal size.
	Reshape(t *Dense, shape ...int) (*Dense, error)
	// Transpose permutes the axes of t. An empty perm reverses them.
	Transpose(t *Dense, perm ...int) (*Dense, error)
	// Conj returns the elementwise complex conjugate.
	Conj(t *Dense) *Dense
	// Add returns a + b elementwise.
	Add(a, b *Dense) (*Dense, error)
	// Scale returns s * t elementwise.
	Scale(t *Dense, s complex128) *Dense
	// Mul returns a * b elementwise (Hadamard product).
	Mul(a, b *Dense) (*Dense, error)
	// Tensordot contracts axesA of a against axesB of b, pairwise.
	// Remaining axes of a precede remaining axes of b in the result.
	Tensordot(a, b *Dense, axesA, axesB []int) (*Dense, error)
	// MatMul multiplies two rank-2 tensors.
	MatMul(a, b *Dense) (*Dense, error)
	// Kron returns the Kronecker product of two rank-2 tensors.
	Kron(a, b *Dense) (*Dense, error)
	// Outer returns the outer product a (x) conj(b) of two vectors as a matrix.
	Outer(a, b *Dense) (*Dense, error)
	// InnerProduct returns <a|b> = sum over conj(a_i) * b_i of flattened tensors.
	InnerProduct(a, b *Dense) (complex128, error)
	// Norm returns the Frobenius norm of t.
	Norm(t *Dense) float64
	// Trace returns the trace of a rank-2 square tensor.
	Trace(t *Dense) (complex128, error)
	// PartialTrace traces out all qubits of a rank-2n density tensor except
	// those in keep, returning the reduced matrix of size 2^len(keep).
	PartialTrace(t *Dense, nqubits int, keep []int) (*Dense, error)
	// SumAxes sums t over the given axes, removing them.
	SumAxes(t *Dense, axes []int) (*Dense, error)
	// Slice fixes one axis of t at index, removing that axis.
	Slice(t *Dense, axis, index int) (*Dense, error)
	// Diagonal returns the main diagonal of a rank-2 square tensor.
	Diagonal(t *Dense) (*Dense, error)

	// StopGradient marks t as a constant for differentiation purposes.
	// The native engine returns t unchanged; difference-based transforms
	// rely on the branch pinning documented alongside the trajectory API.
	StopGradient(t *Dense) *Dense
}

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Engine)
)

// Register makes an engine available under its Name. Registering a duplicate
// name is a ConstructionError so extension engines cannot shadow built-ins.
func Register(e Engine) error {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	name := e.Name()
	if name == "" {
		return Constructionf("backend.Register", "engine name must not be empty")
	}
	if _, dup := engines[name]; dup {
		return Constructionf("backend.Register", "engine %q already registered", name)
	}
	engines[name] = e
	return nil
}

// Get returns the engine registered under name.
func Get(name string) (Engine, error) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	e, ok := engines[name]
	if !ok {
		return nil, NotSupportedf("backend.Get", "no engine registered under %q", name)
	}
	return e, nil
}

// Names returns the sorted names of all registered engines.
func Names() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	if err := Register(newNativeEngine()); err != nil {
		panic(err)
	}
}
