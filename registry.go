package formulacore

import "strings"

// FunctionID is the resolved identity of a registered function, assigned at
// registration time so CallNode never needs to carry function names through
// the hot evaluation path.
type FunctionID int

// ArgMode records whether a function's body forces every argument
// (ArgModeEager) or only some of them (ArgModeLazy, e.g. IF, IFS, CHOOSE,
// IFERROR). The evaluator does not consult it: every body receives the
// unevaluated argument nodes plus an evaluation closure (see FunctionBody).
type ArgMode int

const (
	ArgModeEager ArgMode = iota
	ArgModeLazy
)

// Volatility marks a function whose result must be recomputed every
// recalculation regardless of dependency-graph dirtiness.
type Volatility int

const (
	VolatileNo Volatility = iota
	VolatileAlways
	VolatileOnCalculate // e.g. TODAY/NOW: only on a full recalculation pass
)

// ArraySupport says whether a function participates in array broadcasting
// (lift1..lift5 in array.go) or always receives/produces scalars.
type ArraySupport int

const (
	ArrayScalarOnly ArraySupport = iota
	ArrayElementwise             // broadcasts each scalar argument independently
	ArrayWhole                   // consumes/produces whole arrays itself (SUM, SEQUENCE, ...)
)

// FunctionBody is the dispatch target. args are the call's argument nodes,
// still unevaluated; eval forces one to a Value under the current scope.
type FunctionBody func(ctx *evalContext, args []Node, eval func(Node) Value) Value

// FunctionSpec is one function's registry entry: the metadata the
// lowering/evaluation/array-broadcasting stages all consult, shaped as
// data so adding a function is an addition rather than a new switch arm.
type FunctionSpec struct {
	ID         FunctionID
	Name       string // canonical upper-case name, e.g. "SUM"
	MinArgs    int
	MaxArgs    int // -1 = unbounded
	ArgMode    ArgMode
	Volatile   Volatility
	ArraySupp  ArraySupport
	ThreadSafe bool // recorded only; the scheduler evaluates every cell of a level concurrently regardless
	Body       FunctionBody
}

// FunctionRegistry is the immutable-after-construction function catalogue.
type FunctionRegistry struct {
	byName map[string]*FunctionSpec
	byID   []*FunctionSpec
}

func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{byName: make(map[string]*FunctionSpec)}
	registerMathFunctions(r)
	registerLogicalFunctions(r)
	registerTextFunctions(r)
	registerLookupFunctions(r)
	registerInfoFunctions(r)
	registerDynamicFunctions(r)
	return r
}

// Register adds a function, assigning it the next FunctionID. Registration
// order therefore determines FunctionID stability within one process; IDs
// are never persisted across runs, so this is safe.
func (r *FunctionRegistry) Register(spec FunctionSpec) FunctionID {
	spec.ID = FunctionID(len(r.byID))
	name := strings.ToUpper(spec.Name)
	spec.Name = name
	stored := spec
	r.byID = append(r.byID, &stored)
	r.byName[name] = &stored
	return stored.ID
}

func (r *FunctionRegistry) Lookup(name string) (*FunctionSpec, bool) {
	s, ok := r.byName[strings.ToUpper(name)]
	return s, ok
}

func (r *FunctionRegistry) ByID(id FunctionID) *FunctionSpec {
	if int(id) < 0 || int(id) >= len(r.byID) {
		return nil
	}
	return r.byID[id]
}

func (r *FunctionRegistry) Count() int { return len(r.byID) }

// Names returns every registered function name, sorted by FunctionID.
func (r *FunctionRegistry) Names() []string {
	names := make([]string, len(r.byID))
	for i, s := range r.byID {
		names[i] = s.Name
	}
	return names
}
