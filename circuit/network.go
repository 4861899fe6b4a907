package circuit

import (
	"github.com/davecgh/go-spew/spew"

	"tensorq/backend"
)

// node is one operator tensor in the derived network. Its tensor has one ket
// leg and one bra leg per entry of wires, ket legs first, in wire order.
type node struct {
	name  string
	wires []int
	kind  opKind
	tns   *backend.Dense
}

// edge connects an operator input leg to whatever produced the value on that
// wire: an earlier node's output leg or the initial state (from = -1). Edges
// with to = -1 are the open output legs of the network.
type edge struct {
	wire int
	from int
	to   int
}

// network is the derived node/edge view of a circuit: operator tensors plus
// per-wire connectivity. It is rebuilt from the operation list on demand and
// never mutated in place.
type network struct {
	nqubits int
	nodes   []node
	edges   []edge
}

// buildNodes materializes engine tensors for a slice of operations.
func buildNodes(eng backend.Engine, dt backend.DType, ops []operation) ([]node, error) {
	nodes := make([]node, 0, len(ops))
	for _, op := range ops {
		tns, err := op.g.Tensor(eng, dt)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node{name: op.name, wires: op.wires(), kind: op.kind, tns: tns})
	}
	return nodes, nil
}

// buildNetwork derives the node/edge graph, tracking the open leg of every
// wire as gates attach. It fails with a ShapeError if a node addresses a
// wire outside the register.
func buildNetwork(eng backend.Engine, dt backend.DType, nqubits int, ops []operation) (*network, error) {
	nodes, err := buildNodes(eng, dt, ops)
	if err != nil {
		return nil, err
	}
	nw := &network{nqubits: nqubits, nodes: nodes}

	// open[w] is the index of the node whose output leg is live on wire w,
	// -1 while the initial state still is.
	open := make([]int, nqubits)
	for w := range open {
		open[w] = -1
	}
	for i, nd := range nodes {
		for _, w := range nd.wires {
			if w < 0 || w >= nqubits {
				return nil, backend.Shapef("circuit.network", "node %q wire %d outside %d-qubit register", nd.name, w, nqubits)
			}
			nw.edges = append(nw.edges, edge{wire: w, from: open[w], to: i})
			open[w] = i
		}
	}
	for w, src := range open {
		nw.edges = append(nw.edges, edge{wire: w, from: src, to: -1})
	}
	return nw, nil
}

// openLegs returns, per wire, the node index holding the final output leg.
func (nw *network) openLegs() []int {
	open := make([]int, nw.nqubits)
	for i := range open {
		open[i] = -1
	}
	for _, e := range nw.edges {
		if e.to == -1 {
			open[e.wire] = e.from
		}
	}
	return open
}

// networkDump is the reduced view rendered by DebugDump.
type networkDump struct {
	Qubits int
	Nodes  []nodeDump
	Edges  []edge
}

type nodeDump struct {
	Name  string
	Wires []int
	Shape []int
}

// DebugDump renders the derived tensor network for inspection. The output
// format is unstable and intended for humans.
func (c *Circuit) DebugDump() string {
	nw, err := buildNetwork(c.eng, c.dtype, c.n, c.ops)
	if err != nil {
		return "network error: " + err.Error()
	}
	dump := networkDump{Qubits: nw.nqubits, Edges: nw.edges}
	for _, nd := range nw.nodes {
		dump.Nodes = append(dump.Nodes, nodeDump{Name: nd.name, Wires: nd.wires, Shape: nd.tns.Shape()})
	}
	return spew.Sdump(dump)
}
