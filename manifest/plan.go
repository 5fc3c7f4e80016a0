package manifest

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/lenschain/coderewrite"
	"github.com/chazu/lenschain/graph"
	"github.com/chazu/lenschain/lens"
)

// Plan is a pass plan: an input program, method bodies and the passes to
// run over them. Names are written in smali form: types as descriptors,
// members as "Lholder;->name:I" and "Lholder;->name(I)V".
type Plan struct {
	Classes   []ClassDef        `toml:"class"`
	Code      []CodeDef         `toml:"code"`
	InitClass map[string]string `toml:"init-class"` // type -> static field
	Passes    []Pass            `toml:"pass"`
	Queries   Queries           `toml:"query"`
}

// ClassDef is one program class.
type ClassDef struct {
	Type       string   `toml:"type"`
	Super      string   `toml:"super"`
	Interface  bool     `toml:"interface"`
	Interfaces []string `toml:"interfaces"`
	Fields     []string `toml:"fields"`
	Methods    []string `toml:"methods"`
}

// CodeDef is the body of one method, one instruction per line.
type CodeDef struct {
	Method string   `toml:"method"`
	Body   []string `toml:"body"`
}

// Pass kinds.
const (
	PassNested     = "nested"
	PassRebinding  = "rebinding"
	PassContextual = "contextual"
	PassClear      = "clear"
	PassFlatten    = "flatten"
	PassRewrite    = "rewrite-code"
)

// Pass describes one lens. Kind selects which tables apply; the nested
// tables are shared by nested and contextual passes.
type Pass struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`

	Types           map[string]string   `toml:"types"`
	MergeTypes      map[string][]string `toml:"merge-types"`
	Fields          map[string]string   `toml:"fields"`
	MergeFields     map[string][]string `toml:"merge-fields"`
	Methods         map[string]string   `toml:"methods"`
	MergeMethods    map[string][]string `toml:"merge-methods"`
	Invokes         map[string]string   `toml:"invokes"`
	Renames         map[string]string   `toml:"renames"`
	InvokeTypes     map[string]string   `toml:"invoke-types"`
	Representatives map[string]string   `toml:"representatives"` // target -> key
	ReadCasts       map[string]string   `toml:"read-casts"`
	WriteCasts      map[string]string   `toml:"write-casts"`
	Prototypes      []PrototypeDef      `toml:"prototype"`
	VirtualMapping  bool                `toml:"virtual-interface-mapping"`
	AllowEmpty      bool                `toml:"allow-empty"`

	RebindFields  map[string]string `toml:"rebind-fields"`
	RebindMethods []RebindDef       `toml:"rebind-methods"`

	SuperToDirect []SuperToDirectDef `toml:"super-to-direct"`
	Merged        []string           `toml:"merged"`
	Bridges       map[string]string  `toml:"bridges"` // bridge -> origin
}

// PrototypeDef describes the prototype changes of a method.
type PrototypeDef struct {
	Method   string          `toml:"method"`
	Arity    int             `toml:"arity"`
	Remove   []RemovedArgDef `toml:"remove"`
	Rewrite  []RewriteArgDef `toml:"rewrite"`
	Return   *RewriteArgDef  `toml:"return"`
	Extra    []string        `toml:"extra"`
	ToStatic bool            `toml:"static"`
}

type RemovedArgDef struct {
	Index      int    `toml:"index"`
	Type       string `toml:"type"`
	AlwaysNull bool   `toml:"always-null"`
}

type RewriteArgDef struct {
	Index int    `toml:"index"`
	From  string `toml:"from"`
	To    string `toml:"to"`
}

type RebindDef struct {
	Kind string `toml:"kind"`
	From string `toml:"from"`
	To   string `toml:"to"`
}

type SuperToDirectDef struct {
	Context string `toml:"context"`
	From    string `toml:"from"`
	To      string `toml:"to"`
}

// Queries are lookups answered against the final chain.
type Queries struct {
	Types   []string      `toml:"types"`
	Fields  []string      `toml:"fields"`
	Methods []MethodQuery `toml:"methods"`
}

type MethodQuery struct {
	Method  string `toml:"method"`
	Context string `toml:"context"`
	Kind    string `toml:"kind"`
}

// LoadPlan parses a pass plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	p, err := ParsePlan(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return p, nil
}

// ParsePlan parses a pass plan from TOML text.
func ParsePlan(data string) (*Plan, error) {
	var p Plan
	md, err := toml.Decode(data, &p)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	for i := range p.Passes {
		ps := &p.Passes[i]
		if ps.Kind == "" {
			ps.Kind = PassNested
		}
		if ps.Name == "" {
			ps.Name = fmt.Sprintf("pass-%d", i+1)
		}
		switch ps.Kind {
		case PassNested, PassRebinding, PassContextual, PassClear, PassFlatten, PassRewrite:
		default:
			return nil, fmt.Errorf("pass %s: unknown kind %q", ps.Name, ps.Kind)
		}
	}
	return &p, nil
}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Application builds the input program.
func (p *Plan) Application() (*graph.Application, error) {
	classes := make([]*graph.Class, 0, len(p.Classes))
	seen := make(map[graph.Type]bool)
	for _, def := range p.Classes {
		c := &graph.Class{IsInterface: def.Interface}
		var err error
		if c.Type, err = parseClassType(def.Type); err != nil {
			return nil, err
		}
		if seen[c.Type] {
			return nil, fmt.Errorf("class %s defined twice", c.Type)
		}
		seen[c.Type] = true
		if def.Super != "" {
			if c.Super, err = parseClassType(def.Super); err != nil {
				return nil, err
			}
		}
		for _, s := range def.Interfaces {
			t, err := parseClassType(s)
			if err != nil {
				return nil, err
			}
			c.Interfaces = append(c.Interfaces, t)
		}
		for _, s := range def.Fields {
			f, err := graph.ParseField(s)
			if err != nil {
				return nil, err
			}
			c.Fields = append(c.Fields, f)
		}
		for _, s := range def.Methods {
			m, err := graph.ParseMethod(s)
			if err != nil {
				return nil, err
			}
			c.Methods = append(c.Methods, m)
		}
		classes = append(classes, c)
	}
	return graph.NewApplication(classes...), nil
}

// Codes parses the method bodies.
func (p *Plan) Codes() ([]coderewrite.Code, error) {
	out := make([]coderewrite.Code, 0, len(p.Code))
	for _, def := range p.Code {
		m, err := graph.ParseMethod(def.Method)
		if err != nil {
			return nil, err
		}
		code, err := coderewrite.ParseCode(m, def.Body)
		if err != nil {
			return nil, fmt.Errorf("code of %s: %w", def.Method, err)
		}
		out = append(out, code)
	}
	return out, nil
}

// InitClassLens builds the init-class lens, or returns nil when the plan
// declares no init-class fields.
func (p *Plan) InitClassLens() (*lens.FinalInitClassLens, error) {
	if len(p.InitClass) == 0 {
		return nil, nil
	}
	b := lens.NewInitClassLensBuilder()
	for _, k := range sortedKeys(p.InitClass) {
		t, err := parseClassType(k)
		if err != nil {
			return nil, err
		}
		f, err := graph.ParseField(p.InitClass[k])
		if err != nil {
			return nil, err
		}
		b.Map(t, f)
	}
	return b.Build(), nil
}

// ---------------------------------------------------------------------------
// Passes
// ---------------------------------------------------------------------------

// Build returns the lens the pass describes on top of previous. defs is the
// program in the vocabulary of previous. Clear, flatten and rewrite-code
// passes are carried out by the driver and have no lens to build.
func (ps *Pass) Build(previous lens.GraphLens, defs graph.DefinitionSupplier) (lens.GraphLens, error) {
	switch ps.Kind {
	case PassNested:
		b := lens.NewNestedBuilder(ps.Name)
		if ps.VirtualMapping {
			b.WithInvocationTypeMapper(lens.VirtualInterfaceMapper(defs))
		}
		if err := ps.fillNested(b); err != nil {
			return nil, err
		}
		return b.Build(previous), nil
	case PassContextual:
		b := lens.NewContextualMergeBuilder(ps.Name, defs)
		if err := ps.fillNested(b.NestedBuilder); err != nil {
			return nil, err
		}
		for _, d := range ps.SuperToDirect {
			ctx, err := parseClassType(d.Context)
			if err != nil {
				return nil, err
			}
			from, to, err := parseMethodPair(d.From, d.To)
			if err != nil {
				return nil, err
			}
			b.MapSuperToDirect(ctx, from, to)
		}
		for _, s := range ps.Merged {
			m, err := graph.ParseMethod(s)
			if err != nil {
				return nil, err
			}
			b.MarkMerged(m)
		}
		for _, k := range sortedKeys(ps.Bridges) {
			bridge, origin, err := parseMethodPair(k, ps.Bridges[k])
			if err != nil {
				return nil, err
			}
			b.RecordBridge(bridge, origin)
		}
		return b.Build(previous), nil
	case PassRebinding:
		b := lens.NewRebindingBuilder()
		for _, k := range sortedKeys(ps.RebindFields) {
			from, to, err := parseFieldPair(k, ps.RebindFields[k])
			if err != nil {
				return nil, err
			}
			b.RebindField(from, to)
		}
		for _, d := range ps.RebindMethods {
			kind, err := graph.ParseInvokeType(d.Kind)
			if err != nil {
				return nil, err
			}
			from, to, err := parseMethodPair(d.From, d.To)
			if err != nil {
				return nil, err
			}
			b.RebindMethod(kind, from, to)
		}
		return b.Build(previous), nil
	}
	return nil, fmt.Errorf("pass %s: kind %s builds no lens", ps.Name, ps.Kind)
}

func (ps *Pass) fillNested(b *lens.NestedBuilder) error {
	for _, k := range sortedKeys(ps.Types) {
		from, err := parseClassType(k)
		if err != nil {
			return err
		}
		to, err := parseClassType(ps.Types[k])
		if err != nil {
			return err
		}
		b.MapType(from, to)
	}
	for _, k := range sortedKeys(ps.MergeTypes) {
		to, err := parseClassType(k)
		if err != nil {
			return err
		}
		var froms []graph.Type
		for _, s := range ps.MergeTypes[k] {
			t, err := parseClassType(s)
			if err != nil {
				return err
			}
			froms = append(froms, t)
		}
		b.MergeType(to, froms...)
	}
	for _, k := range sortedKeys(ps.Fields) {
		from, to, err := parseFieldPair(k, ps.Fields[k])
		if err != nil {
			return err
		}
		b.MoveField(from, to)
	}
	for _, k := range sortedKeys(ps.MergeFields) {
		to, err := graph.ParseField(k)
		if err != nil {
			return err
		}
		var froms []graph.Field
		for _, s := range ps.MergeFields[k] {
			f, err := graph.ParseField(s)
			if err != nil {
				return err
			}
			froms = append(froms, f)
		}
		b.MergeField(to, froms...)
	}
	for _, k := range sortedKeys(ps.Methods) {
		from, to, err := parseMethodPair(k, ps.Methods[k])
		if err != nil {
			return err
		}
		b.MoveMethod(from, to)
	}
	for _, k := range sortedKeys(ps.MergeMethods) {
		to, err := graph.ParseMethod(k)
		if err != nil {
			return err
		}
		var froms []graph.Method
		for _, s := range ps.MergeMethods[k] {
			m, err := graph.ParseMethod(s)
			if err != nil {
				return err
			}
			froms = append(froms, m)
		}
		b.MergeMethod(to, froms...)
	}
	for _, k := range sortedKeys(ps.Invokes) {
		from, to, err := parseMethodPair(k, ps.Invokes[k])
		if err != nil {
			return err
		}
		b.MapInvoke(from, to)
	}
	for _, k := range sortedKeys(ps.Renames) {
		from, to, err := parseMethodPair(k, ps.Renames[k])
		if err != nil {
			return err
		}
		b.RecordMove(from, to)
	}
	for _, k := range sortedKeys(ps.InvokeTypes) {
		m, err := graph.ParseMethod(k)
		if err != nil {
			return err
		}
		kind, err := graph.ParseInvokeType(ps.InvokeTypes[k])
		if err != nil {
			return err
		}
		b.SetInvokeType(m, kind)
	}
	for _, k := range sortedKeys(ps.Representatives) {
		if err := setRepresentative(b, k, ps.Representatives[k]); err != nil {
			return err
		}
	}
	for _, k := range sortedKeys(ps.ReadCasts) {
		f, err := graph.ParseField(k)
		if err != nil {
			return err
		}
		t, err := graph.ParseType(ps.ReadCasts[k])
		if err != nil {
			return err
		}
		b.SetReadCastType(f, t)
	}
	for _, k := range sortedKeys(ps.WriteCasts) {
		f, err := graph.ParseField(k)
		if err != nil {
			return err
		}
		t, err := graph.ParseType(ps.WriteCasts[k])
		if err != nil {
			return err
		}
		b.SetWriteCastType(f, t)
	}
	for _, def := range ps.Prototypes {
		m, changes, err := def.build()
		if err != nil {
			return err
		}
		b.SetPrototypeChanges(m, changes)
	}
	if ps.AllowEmpty {
		b.AllowEmpty()
	}
	return nil
}

func (def *PrototypeDef) build() (graph.Method, *lens.PrototypeChanges, error) {
	m, err := graph.ParseMethod(def.Method)
	if err != nil {
		return graph.Method{}, nil, err
	}
	b := lens.NewPrototypeChangesBuilder(def.Arity)
	for _, r := range def.Remove {
		t, err := graph.ParseType(r.Type)
		if err != nil {
			return graph.Method{}, nil, err
		}
		b.RemoveArgument(r.Index, t, r.AlwaysNull)
	}
	for _, r := range def.Rewrite {
		from, to, err := parseTypePair(r.From, r.To)
		if err != nil {
			return graph.Method{}, nil, err
		}
		b.RewriteArgument(r.Index, from, to)
	}
	if def.Return != nil {
		from, to, err := parseTypePair(def.Return.From, def.Return.To)
		if err != nil {
			return graph.Method{}, nil, err
		}
		b.RewriteReturn(from, to)
	}
	for _, s := range def.Extra {
		t, err := graph.ParseType(s)
		if err != nil {
			return graph.Method{}, nil, err
		}
		b.AddExtraParameter(t)
	}
	if def.ToStatic {
		b.ConvertToStatic()
	}
	return m, b.Build(), nil
}

// setRepresentative picks the table from the shape of the names: types
// have no "->", methods have a prototype.
func setRepresentative(b *lens.NestedBuilder, to, from string) error {
	switch {
	case !strings.Contains(to, "->"):
		t, k, err := parseTypePair(to, from)
		if err != nil {
			return err
		}
		b.SetRepresentativeType(t, k)
	case strings.Contains(to, "("):
		t, k, err := parseMethodPair(to, from)
		if err != nil {
			return err
		}
		b.SetRepresentativeMethod(t, k)
	default:
		t, k, err := parseFieldPair(to, from)
		if err != nil {
			return err
		}
		b.SetRepresentativeField(t, k)
	}
	return nil
}

func parseClassType(s string) (graph.Type, error) {
	t, err := graph.ParseType(s)
	if err != nil {
		return graph.Type{}, err
	}
	if !t.IsClass() {
		return graph.Type{}, fmt.Errorf("%s is not a class type", s)
	}
	return t, nil
}

func parseTypePair(a, b string) (graph.Type, graph.Type, error) {
	x, err := graph.ParseType(a)
	if err != nil {
		return graph.Type{}, graph.Type{}, err
	}
	y, err := graph.ParseType(b)
	if err != nil {
		return graph.Type{}, graph.Type{}, err
	}
	return x, y, nil
}

func parseFieldPair(a, b string) (graph.Field, graph.Field, error) {
	x, err := graph.ParseField(a)
	if err != nil {
		return graph.Field{}, graph.Field{}, err
	}
	y, err := graph.ParseField(b)
	if err != nil {
		return graph.Field{}, graph.Field{}, err
	}
	return x, y, nil
}

func parseMethodPair(a, b string) (graph.Method, graph.Method, error) {
	x, err := graph.ParseMethod(a)
	if err != nil {
		return graph.Method{}, graph.Method{}, err
	}
	y, err := graph.ParseMethod(b)
	if err != nil {
		return graph.Method{}, graph.Method{}, err
	}
	return x, y, nil
}

// sortedKeys gives passes a deterministic build order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
