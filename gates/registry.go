package gates

import (
	"sort"
	"sync"

	"tensorq/backend"
)

// Factory builds a gate from float parameters. Factories for fixed gates
// reject parameters; parameterized ones fill omitted trailing parameters
// with their defaults.
type Factory func(params ...float64) (Gate, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// aliases maps alternate spellings to canonical registry names.
var aliases = map[string]string{
	"cx":      "cnot",
	"ccnot":   "toffoli",
	"ccx":     "toffoli",
	"cswap":   "fredkin",
	"sdg":     "sd",
	"tdg":     "td",
	"unitary": "any",
}

// Canonical resolves a gate name through the alias table.
func Canonical(name string) string {
	if c, ok := aliases[name]; ok {
		return c
	}
	return name
}

// Register adds a factory under a canonical name. Re-registering a name is a
// ConstructionError so custom gates cannot shadow built-ins.
func Register(name string, f Factory) error {
	if name == "" || f == nil {
		return backend.Constructionf("gates.Register", "name and factory must be non-empty")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		return backend.Constructionf("gates.Register", "gate %q already registered", name)
	}
	registry[name] = f
	return nil
}

// Get returns the factory for a gate name, resolving aliases.
func Get(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[Canonical(name)]
	if !ok {
		return nil, backend.NotSupportedf("gates.Get", "no gate registered under %q", name)
	}
	return f, nil
}

// Build looks up a gate by name and constructs it with the given parameters.
func Build(name string, params ...float64) (Gate, error) {
	f, err := Get(name)
	if err != nil {
		return Gate{}, err
	}
	return f(params...)
}

// Registered reports whether name, or an alias of it, has a factory.
func Registered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[Canonical(name)]
	return ok
}

// Names returns the sorted canonical names of all registered gates.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fixedFactory(name string, f func() Gate) Factory {
	return func(params ...float64) (Gate, error) {
		if len(params) != 0 {
			return Gate{}, backend.Constructionf("gates.Build", "gate %q takes no parameters, got %d", name, len(params))
		}
		return f(), nil
	}
}

func oneParamFactory(name string, def float64, f func(float64) Gate) Factory {
	return func(params ...float64) (Gate, error) {
		switch len(params) {
		case 0:
			return f(def), nil
		case 1:
			return f(params[0]), nil
		default:
			return Gate{}, backend.Constructionf("gates.Build", "gate %q takes one parameter, got %d", name, len(params))
		}
	}
}

func threeParamFactory(name string, f func(a, b, c float64) Gate) Factory {
	return func(params ...float64) (Gate, error) {
		if len(params) > 3 {
			return Gate{}, backend.Constructionf("gates.Build", "gate %q takes up to three parameters, got %d", name, len(params))
		}
		var ps [3]float64
		copy(ps[:], params)
		return f(ps[0], ps[1], ps[2]), nil
	}
}

func mustRegister(name string, f Factory) {
	if err := Register(name, f); err != nil {
		panic(err)
	}
}

func init() {
	for name, f := range map[string]func() Gate{
		"i": I, "x": X, "y": Y, "z": Z, "h": H,
		"s": S, "sd": SD, "t": T, "td": TD, "wroot": WRoot,
		"cnot": CNOT, "cy": CY, "cz": CZ, "swap": SWAP,
		"ox": OX, "oy": OY, "oz": OZ,
		"toffoli": Toffoli, "fredkin": Fredkin,
	} {
		mustRegister(name, fixedFactory(name, f))
	}
	for name, f := range map[string]func(float64) Gate{
		"rx": RX, "ry": RY, "rz": RZ, "phase": Phase,
		"rxx": RXX, "ryy": RYY, "rzz": RZZ,
		"crx": CRX, "cry": CRY, "crz": CRZ, "cphase": CPhase,
		"orx": ORX, "ory": ORY, "orz": ORZ,
	} {
		mustRegister(name, oneParamFactory(name, 0, f))
	}
	mustRegister("iswap", oneParamFactory("iswap", 1, ISwap))
	mustRegister("r", threeParamFactory("r", R))
	mustRegister("cr", threeParamFactory("cr", CR))
	mustRegister("u", threeParamFactory("u", U))
	mustRegister("cu", threeParamFactory("cu", CU))
}
