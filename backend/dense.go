package backend

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Dense is a dense complex tensor in row-major layout. Engine operations
// never mutate a Dense in place; every result is freshly allocated.
type Dense struct {
	shape []int
	data  []complex128
	dtype DType
	dev   Device
}

// Shape returns a copy of the tensor shape.
func (t *Dense) Shape() []int {
	out := make([]int, len(t.shape))
	copy(out, t.shape)
	return out
}

// Rank returns the number of axes.
func (t *Dense) Rank() int { return len(t.shape) }

// Size returns the total element count.
func (t *Dense) Size() int { return len(t.data) }

// DType returns the nominal precision tag.
func (t *Dense) DType() DType { return t.dtype }

// Device returns the device tag.
func (t *Dense) Device() Device { return t.dev }

// Data returns the backing row-major element slice. Callers must treat the
// slice as read-only; mutating it breaks the pure-function contract.
func (t *Dense) Data() []complex128 { return t.data }

// At returns the element at the given multi-index. It panics on a rank or
// bounds violation, matching slice indexing semantics.
func (t *Dense) At(indices ...int) complex128 {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("backend: At with %d indices on rank-%d tensor", len(indices), len(t.shape)))
	}
	return t.data[t.offset(indices)]
}

// Clone returns a deep copy of t.
func (t *Dense) Clone() *Dense {
	data := make([]complex128, len(t.data))
	copy(data, t.data)
	return &Dense{shape: t.Shape(), data: data, dtype: t.dtype, dev: t.dev}
}

// offset converts a multi-index to a linear row-major offset.
func (t *Dense) offset(indices []int) int {
	off := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("backend: index %d out of range for axis %d (dim %d)", idx, i, t.shape[i]))
		}
		off = off*t.shape[i] + idx
	}
	return off
}

// sizeOf returns the element count implied by shape. The empty shape is a
// scalar of size 1.
func sizeOf(shape []int) int {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return size
}

// stridesOf returns row-major strides for shape.
func stridesOf(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// nativeEngine is the shipped dense CPU engine.
type nativeEngine struct {
	ops map[string]bool
}

// nativeOps lists the primitives the native engine provides.
var nativeOps = []string{
	"Zeros", "Eye", "FromSlice", "Basis",
	"Reshape", "Transpose", "Conj", "Add", "Scale", "Mul",
	"Tensordot", "MatMul", "Kron", "Outer", "InnerProduct",
	"Norm", "Trace", "PartialTrace", "SumAxes", "Slice", "Diagonal",
	"StopGradient",
}

func newNativeEngine() *nativeEngine {
	ops := make(map[string]bool, len(nativeOps))
	for _, op := range nativeOps {
		ops[op] = true
	}
	return &nativeEngine{ops: ops}
}

// Name returns "native".
func (e *nativeEngine) Name() string { return "native" }

// Device returns the CPU device.
func (e *nativeEngine) Device() Device { return CPU }

// Supports reports whether the named primitive is available.
func (e *nativeEngine) Supports(op string) bool { return e.ops[op] }

// newDense allocates a tensor without copying data.
func (e *nativeEngine) newDense(dt DType, shape []int, data []complex128) *Dense {
	s := make([]int, len(shape))
	copy(s, shape)
	return &Dense{shape: s, data: data, dtype: dt, dev: e.Device()}
}

// checkShape validates that every dimension is positive.
func checkShape(op string, shape []int) error {
	for i, d := range shape {
		if d <= 0 {
			return Shapef(op, "axis %d has non-positive dimension %d", i, d)
		}
	}
	return nil
}

// sameType validates that all operands share dtype and device.
func sameType(op string, ts ...*Dense) error {
	for _, t := range ts[1:] {
		if t.dtype != ts[0].dtype {
			return TypeMismatchf(op, "mixed dtypes %s and %s", ts[0].dtype, t.dtype)
		}
		if t.dev != ts[0].dev {
			return TypeMismatchf(op, "mixed devices %s and %s", ts[0].dev, t.dev)
		}
	}
	return nil
}

// Zeros returns an all-zero tensor of the given shape.
func (e *nativeEngine) Zeros(dt DType, shape ...int) (*Dense, error) {
	if err := checkShape("backend.Zeros", shape); err != nil {
		return nil, err
	}
	return e.newDense(dt, shape, make([]complex128, sizeOf(shape))), nil
}

// Eye returns the dim x dim identity matrix.
func (e *nativeEngine) Eye(dt DType, dim int) (*Dense, error) {
	if dim <= 0 {
		return nil, Shapef("backend.Eye", "non-positive dimension %d", dim)
	}
	data := make([]complex128, dim*dim)
	for i := 0; i < dim; i++ {
		data[i*dim+i] = 1
	}
	return e.newDense(dt, []int{dim, dim}, data), nil
}

// FromSlice builds a tensor from row-major data. The data is copied.
func (e *nativeEngine) FromSlice(dt DType, data []complex128, shape ...int) (*Dense, error) {
	if err := checkShape("backend.FromSlice", shape); err != nil {
		return nil, err
	}
	if len(data) != sizeOf(shape) {
		return nil, Shapef("backend.FromSlice", "%d elements do not fill shape %v", len(data), shape)
	}
	cp := make([]complex128, len(data))
	copy(cp, data)
	return e.newDense(dt, shape, cp), nil
}

// Basis returns the n-qubit computational basis state |index>.
func (e *nativeEngine) Basis(dt DType, n int, index uint64) (*Dense, error) {
	if n <= 0 {
		return nil, Shapef("backend.Basis", "non-positive qubit count %d", n)
	}
	if index >= uint64(1)<<uint(n) {
		return nil, Constructionf("backend.Basis", "basis index %d out of range for %d qubits", index, n)
	}
	shape := make([]int, n)
	for i := range shape {
		shape[i] = 2
	}
	data := make([]complex128, 1<<uint(n))
	data[index] = 1
	return e.newDense(dt, shape, data), nil
}

// Reshape returns a copy of t with a new shape of equal size.
func (e *nativeEngine) Reshape(t *Dense, shape ...int) (*Dense, error) {
	if err := checkShape("backend.Reshape", shape); err != nil {
		return nil, err
	}
	if sizeOf(shape) != len(t.data) {
		return nil, Shapef("backend.Reshape", "cannot reshape %v (%d elements) to %v", t.shape, len(t.data), shape)
	}
	data := make([]complex128, len(t.data))
	copy(data, t.data)
	return e.newDense(t.dtype, shape, data), nil
}

// Transpose permutes the axes of t. An empty perm reverses them.
func (e *nativeEngine) Transpose(t *Dense, perm ...int) (*Dense, error) {
	r := t.Rank()
	if len(perm) == 0 {
		perm = make([]int, r)
		for i := range perm {
			perm[i] = r - 1 - i
		}
	}
	if len(perm) != r {
		return nil, Shapef("backend.Transpose", "perm length %d does not match rank %d", len(perm), r)
	}
	seen := make([]bool, r)
	for _, p := range perm {
		if p < 0 || p >= r || seen[p] {
			return nil, Shapef("backend.Transpose", "perm %v is not a permutation of 0..%d", perm, r-1)
		}
		seen[p] = true
	}

	outShape := make([]int, r)
	for i, p := range perm {
		outShape[i] = t.shape[p]
	}
	inStrides := stridesOf(t.shape)
	// stride of output axis i walks the input along axis perm[i]
	walk := make([]int, r)
	for i, p := range perm {
		walk[i] = inStrides[p]
	}

	data := make([]complex128, len(t.data))
	coords := make([]int, r)
	src := 0
	for dst := range data {
		data[dst] = t.data[src]
		// advance mixed-radix coords over outShape, tracking src offset
		for ax := r - 1; ax >= 0; ax-- {
			coords[ax]++
			src += walk[ax]
			if coords[ax] < outShape[ax] {
				break
			}
			coords[ax] = 0
			src -= walk[ax] * outShape[ax]
		}
	}
	return e.newDense(t.dtype, outShape, data), nil
}

// Conj returns the elementwise complex conjugate.
func (e *nativeEngine) Conj(t *Dense) *Dense {
	data := make([]complex128, len(t.data))
	for i, v := range t.data {
		data[i] = cmplx.Conj(v)
	}
	return e.newDense(t.dtype, t.shape, data)
}

// Add returns a + b elementwise.
func (e *nativeEngine) Add(a, b *Dense) (*Dense, error) {
	if err := sameType("backend.Add", a, b); err != nil {
		return nil, err
	}
	if !shapeEqual(a.shape, b.shape) {
		return nil, Shapef("backend.Add", "shape %v does not match %v", a.shape, b.shape)
	}
	data := make([]complex128, len(a.data))
	for i := range data {
		data[i] = a.data[i] + b.data[i]
	}
	return e.newDense(a.dtype, a.shape, data), nil
}

// Scale returns s * t elementwise.
func (e *nativeEngine) Scale(t *Dense, s complex128) *Dense {
	data := make([]complex128, len(t.data))
	for i, v := range t.data {
		data[i] = s * v
	}
	return e.newDense(t.dtype, t.shape, data)
}

// Mul returns a * b elementwise.
func (e *nativeEngine) Mul(a, b *Dense) (*Dense, error) {
	if err := sameType("backend.Mul", a, b); err != nil {
		return nil, err
	}
	if !shapeEqual(a.shape, b.shape) {
		return nil, Shapef("backend.Mul", "shape %v does not match %v", a.shape, b.shape)
	}
	data := make([]complex128, len(a.data))
	for i := range data {
		data[i] = a.data[i] * b.data[i]
	}
	return e.newDense(a.dtype, a.shape, data), nil
}

// Tensordot contracts axesA of a against axesB of b, pairwise. Free axes of
// a precede free axes of b in the result, each group in original order.
func (e *nativeEngine) Tensordot(a, b *Dense, axesA, axesB []int) (*Dense, error) {
	const op = "backend.Tensordot"
	if err := sameType(op, a, b); err != nil {
		return nil, err
	}
	if len(axesA) != len(axesB) {
		return nil, Shapef(op, "%d axes against %d axes", len(axesA), len(axesB))
	}
	if err := checkAxes(op, a.Rank(), axesA); err != nil {
		return nil, err
	}
	if err := checkAxes(op, b.Rank(), axesB); err != nil {
		return nil, err
	}
	for i := range axesA {
		if a.shape[axesA[i]] != b.shape[axesB[i]] {
			return nil, Shapef(op, "axis %d (dim %d) does not match axis %d (dim %d)",
				axesA[i], a.shape[axesA[i]], axesB[i], b.shape[axesB[i]])
		}
	}

	freeA := complementAxes(a.Rank(), axesA)
	freeB := complementAxes(b.Rank(), axesB)

	// a -> [free..., contracted...], b -> [contracted..., free...]
	ta, err := e.Transpose(a, append(append([]int{}, freeA...), axesA...)...)
	if err != nil {
		return nil, err
	}
	tb, err := e.Transpose(b, append(append([]int{}, axesB...), freeB...)...)
	if err != nil {
		return nil, err
	}

	m, k, n := 1, 1, 1
	outShape := make([]int, 0, len(freeA)+len(freeB))
	for _, ax := range freeA {
		m *= a.shape[ax]
		outShape = append(outShape, a.shape[ax])
	}
	for _, ax := range axesA {
		k *= a.shape[ax]
	}
	for _, ax := range freeB {
		n *= b.shape[ax]
		outShape = append(outShape, b.shape[ax])
	}

	data := matmulKernel(ta.data, tb.data, m, k, n)
	return e.newDense(a.dtype, outShape, data), nil
}

// MatMul multiplies two rank-2 tensors.
func (e *nativeEngine) MatMul(a, b *Dense) (*Dense, error) {
	const op = "backend.MatMul"
	if a.Rank() != 2 || b.Rank() != 2 {
		return nil, Shapef(op, "ranks %d and %d, want 2 and 2", a.Rank(), b.Rank())
	}
	if err := sameType(op, a, b); err != nil {
		return nil, err
	}
	if a.shape[1] != b.shape[0] {
		return nil, Shapef(op, "inner dims %d and %d differ", a.shape[1], b.shape[0])
	}
	data := matmulKernel(a.data, b.data, a.shape[0], a.shape[1], b.shape[1])
	return e.newDense(a.dtype, []int{a.shape[0], b.shape[1]}, data), nil
}

// Kron returns the Kronecker product of two rank-2 tensors.
func (e *nativeEngine) Kron(a, b *Dense) (*Dense, error) {
	const op = "backend.Kron"
	if a.Rank() != 2 || b.Rank() != 2 {
		return nil, Shapef(op, "ranks %d and %d, want 2 and 2", a.Rank(), b.Rank())
	}
	if err := sameType(op, a, b); err != nil {
		return nil, err
	}
	ra, ca := a.shape[0], a.shape[1]
	rb, cb := b.shape[0], b.shape[1]
	rows, cols := ra*rb, ca*cb
	data := make([]complex128, rows*cols)
	for i := 0; i < ra; i++ {
		for j := 0; j < ca; j++ {
			av := a.data[i*ca+j]
			if av == 0 {
				continue
			}
			for k := 0; k < rb; k++ {
				for l := 0; l < cb; l++ {
					data[(i*rb+k)*cols+j*cb+l] = av * b.data[k*cb+l]
				}
			}
		}
	}
	return e.newDense(a.dtype, []int{rows, cols}, data), nil
}

// Outer returns |a><b| over the flattened operands: out[i][j] = a[i]*conj(b[j]).
func (e *nativeEngine) Outer(a, b *Dense) (*Dense, error) {
	const op = "backend.Outer"
	if err := sameType(op, a, b); err != nil {
		return nil, err
	}
	m, n := len(a.data), len(b.data)
	data := make([]complex128, m*n)
	for i := 0; i < m; i++ {
		av := a.data[i]
		if av == 0 {
			continue
		}
		for j := 0; j < n; j++ {
			data[i*n+j] = av * cmplx.Conj(b.data[j])
		}
	}
	return e.newDense(a.dtype, []int{m, n}, data), nil
}

// InnerProduct returns <a|b> over the flattened tensors.
func (e *nativeEngine) InnerProduct(a, b *Dense) (complex128, error) {
	const op = "backend.InnerProduct"
	if err := sameType(op, a, b); err != nil {
		return 0, err
	}
	if len(a.data) != len(b.data) {
		return 0, Shapef(op, "sizes %d and %d differ", len(a.data), len(b.data))
	}
	var sum complex128
	for i := range a.data {
		sum += cmplx.Conj(a.data[i]) * b.data[i]
	}
	return sum, nil
}

// Norm returns the Frobenius norm of t.
func (e *nativeEngine) Norm(t *Dense) float64 {
	var sum float64
	for _, v := range t.data {
		sum += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(sum)
}

// Trace returns the trace of a rank-2 square tensor.
func (e *nativeEngine) Trace(t *Dense) (complex128, error) {
	const op = "backend.Trace"
	if t.Rank() != 2 || t.shape[0] != t.shape[1] {
		return 0, Shapef(op, "shape %v is not a square matrix", t.shape)
	}
	var sum complex128
	dim := t.shape[0]
	for i := 0; i < dim; i++ {
		sum += t.data[i*dim+i]
	}
	return sum, nil
}

// PartialTrace traces out all qubits of a rank-2n density tensor except
// those in keep. Axes 0..n-1 are ket legs, axes n..2n-1 bra legs, one qubit
// each. The result is the reduced density matrix of dimension 2^len(keep).
func (e *nativeEngine) PartialTrace(t *Dense, nqubits int, keep []int) (*Dense, error) {
	const op = "backend.PartialTrace"
	if t.Rank() != 2*nqubits {
		return nil, Shapef(op, "rank %d does not match %d qubits", t.Rank(), nqubits)
	}
	for _, d := range t.shape {
		if d != 2 {
			return nil, Shapef(op, "non-qubit leg of dimension %d", d)
		}
	}
	if err := checkAxes(op, nqubits, keep); err != nil {
		return nil, err
	}

	traced := complementAxes(nqubits, keep)
	k := len(keep)
	dim := 1 << uint(k)
	strides := stridesOf(t.shape)
	data := make([]complex128, dim*dim)

	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			base := 0
			for bi, q := range keep {
				ketBit := (i >> uint(k-1-bi)) & 1
				braBit := (j >> uint(k-1-bi)) & 1
				base += ketBit*strides[q] + braBit*strides[nqubits+q]
			}
			var sum complex128
			for s := 0; s < 1<<uint(len(traced)); s++ {
				off := base
				for si, q := range traced {
					bit := (s >> uint(len(traced)-1-si)) & 1
					off += bit*strides[q] + bit*strides[nqubits+q]
				}
				sum += t.data[off]
			}
			data[i*dim+j] = sum
		}
	}
	return e.newDense(t.dtype, []int{dim, dim}, data), nil
}

// SumAxes sums t over the given axes, removing them.
func (e *nativeEngine) SumAxes(t *Dense, axes []int) (*Dense, error) {
	const op = "backend.SumAxes"
	if err := checkAxes(op, t.Rank(), axes); err != nil {
		return nil, err
	}
	if len(axes) == 0 {
		return t.Clone(), nil
	}
	keep := complementAxes(t.Rank(), axes)
	// move kept axes to the front, then fold the trailing block
	tt, err := e.Transpose(t, append(append([]int{}, keep...), axes...)...)
	if err != nil {
		return nil, err
	}
	outShape := make([]int, len(keep))
	outSize := 1
	for i, ax := range keep {
		outShape[i] = t.shape[ax]
		outSize *= t.shape[ax]
	}
	folded := len(tt.data) / maxInt(outSize, 1)
	data := make([]complex128, outSize)
	for i := 0; i < outSize; i++ {
		var sum complex128
		row := tt.data[i*folded : (i+1)*folded]
		for _, v := range row {
			sum += v
		}
		data[i] = sum
	}
	return e.newDense(t.dtype, outShape, data), nil
}

// Slice fixes one axis of t at index, removing that axis.
func (e *nativeEngine) Slice(t *Dense, axis, index int) (*Dense, error) {
	const op = "backend.Slice"
	if axis < 0 || axis >= t.Rank() {
		return nil, Shapef(op, "axis %d out of range for rank %d", axis, t.Rank())
	}
	if index < 0 || index >= t.shape[axis] {
		return nil, Shapef(op, "index %d out of range for axis %d (dim %d)", index, axis, t.shape[axis])
	}
	outShape := make([]int, 0, t.Rank()-1)
	outShape = append(outShape, t.shape[:axis]...)
	outShape = append(outShape, t.shape[axis+1:]...)

	strides := stridesOf(t.shape)
	outer := 1
	for _, d := range t.shape[:axis] {
		outer *= d
	}
	inner := strides[axis] // elements per fixed-index run
	data := make([]complex128, sizeOf(outShape))
	dst := 0
	for o := 0; o < outer; o++ {
		src := (o*t.shape[axis] + index) * inner
		copy(data[dst:dst+inner], t.data[src:src+inner])
		dst += inner
	}
	return e.newDense(t.dtype, outShape, data), nil
}

// Diagonal returns the main diagonal of a rank-2 square tensor.
func (e *nativeEngine) Diagonal(t *Dense) (*Dense, error) {
	const op = "backend.Diagonal"
	if t.Rank() != 2 || t.shape[0] != t.shape[1] {
		return nil, Shapef(op, "shape %v is not a square matrix", t.shape)
	}
	dim := t.shape[0]
	data := make([]complex128, dim)
	for i := 0; i < dim; i++ {
		data[i] = t.data[i*dim+i]
	}
	return e.newDense(t.dtype, []int{dim}, data), nil
}

// StopGradient marks t as a constant for differentiation. The native engine
// computes values only, so the tensor passes through unchanged.
func (e *nativeEngine) StopGradient(t *Dense) *Dense { return t }

// matmulKernel computes the m x n product of row-major a (m x k) and b (k x n).
func matmulKernel(a, b []complex128, m, k, n int) []complex128 {
	out := make([]complex128, m*n)
	for i := 0; i < m; i++ {
		arow := a[i*k : (i+1)*k]
		orow := out[i*n : (i+1)*n]
		for p, av := range arow {
			if av == 0 {
				continue
			}
			brow := b[p*n : (p+1)*n]
			for j, bv := range brow {
				orow[j] += av * bv
			}
		}
	}
	return out
}

// checkAxes validates that axes are in range and free of duplicates.
func checkAxes(op string, rank int, axes []int) error {
	seen := make(map[int]bool, len(axes))
	for _, ax := range axes {
		if ax < 0 || ax >= rank {
			return Shapef(op, "axis %d out of range for rank %d", ax, rank)
		}
		if seen[ax] {
			return Shapef(op, "axis %d repeated", ax)
		}
		seen[ax] = true
	}
	return nil
}

// complementAxes returns 0..rank-1 with the given axes removed, in order.
func complementAxes(rank int, axes []int) []int {
	drop := make(map[int]bool, len(axes))
	for _, ax := range axes {
		drop[ax] = true
	}
	out := make([]int, 0, rank-len(axes))
	for i := 0; i < rank; i++ {
		if !drop[i] {
			out = append(out, i)
		}
	}
	return out
}

// shapeEqual reports whether two shapes match exactly.
func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// maxInt returns the larger of two ints.
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
