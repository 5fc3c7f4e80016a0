package coderewrite

import (
	"fmt"
	"strings"

	"github.com/chazu/lenschain/graph"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is the operation of an instruction. Only instructions with
// reference operands are modelled individually; everything else is OpNop.
type Opcode byte

const (
	OpNop    Opcode = 0x00 // no reference operands
	OpPop    Opcode = 0x01 // discard the last result
	OpReturn Opcode = 0x02 // return from the method
)

// Member access
const (
	OpInvoke   Opcode = 0x10 // invoke Method with Kind
	OpFieldGet Opcode = 0x11 // read Field, static when Static is set
	OpFieldPut Opcode = 0x12 // write Field, static when Static is set
)

// Type operands
const (
	OpNewInstance Opcode = 0x20 // allocate Type
	OpCheckCast   Opcode = 0x21 // cast to Type
	OpConstClass  Opcode = 0x22 // load the class object of Type
	OpInitClass   Opcode = 0x23 // trigger the initializer of Type
)

var opcodeNames = map[Opcode]string{
	OpNop:         "nop",
	OpPop:         "pop",
	OpReturn:      "return",
	OpInvoke:      "invoke",
	OpFieldGet:    "get",
	OpFieldPut:    "put",
	OpNewInstance: "new-instance",
	OpCheckCast:   "check-cast",
	OpConstClass:  "const-class",
	OpInitClass:   "init-class",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(0x%02x)", byte(op))
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instruction is one instruction of a method body. Which operand fields are
// meaningful depends on Op.
type Instruction struct {
	Op     Opcode
	Method graph.Method
	Kind   graph.InvokeType
	Field  graph.Field
	Static bool
	Type   graph.Type
}

func Invoke(kind graph.InvokeType, m graph.Method) Instruction {
	return Instruction{Op: OpInvoke, Method: m, Kind: kind}
}

func FieldGet(f graph.Field, static bool) Instruction {
	return Instruction{Op: OpFieldGet, Field: f, Static: static}
}

func FieldPut(f graph.Field, static bool) Instruction {
	return Instruction{Op: OpFieldPut, Field: f, Static: static}
}

func NewInstance(t graph.Type) Instruction { return Instruction{Op: OpNewInstance, Type: t} }
func CheckCast(t graph.Type) Instruction   { return Instruction{Op: OpCheckCast, Type: t} }
func ConstClass(t graph.Type) Instruction  { return Instruction{Op: OpConstClass, Type: t} }
func InitClass(t graph.Type) Instruction   { return Instruction{Op: OpInitClass, Type: t} }

// String returns the instruction in the form accepted by
// ParseInstruction.
func (in Instruction) String() string {
	switch in.Op {
	case OpInvoke:
		return "invoke-" + in.Kind.String() + " " + in.Method.Smali()
	case OpFieldGet, OpFieldPut:
		prefix := "i"
		if in.Static {
			prefix = "s"
		}
		return prefix + in.Op.String() + " " + in.Field.Smali()
	case OpNewInstance, OpCheckCast, OpConstClass, OpInitClass:
		return in.Op.String() + " " + in.Type.Descriptor()
	default:
		return in.Op.String()
	}
}

// ParseInstruction parses one instruction in smali-like syntax:
//
//	invoke-virtual Lcom/example/A;->foo()V
//	sget Lcom/example/A;->x:I
//	check-cast Lcom/example/B;
func ParseInstruction(s string) (Instruction, error) {
	mnemonic, operand, _ := strings.Cut(strings.TrimSpace(s), " ")
	operand = strings.TrimSpace(operand)
	switch mnemonic {
	case "nop":
		return Instruction{Op: OpNop}, nil
	case "pop":
		return Instruction{Op: OpPop}, nil
	case "return":
		return Instruction{Op: OpReturn}, nil
	case "iget", "sget", "iput", "sput":
		f, err := graph.ParseField(operand)
		if err != nil {
			return Instruction{}, fmt.Errorf("coderewrite: %q: %w", s, err)
		}
		static := mnemonic[0] == 's'
		if mnemonic[1:] == "get" {
			return FieldGet(f, static), nil
		}
		return FieldPut(f, static), nil
	case "new-instance", "check-cast", "const-class", "init-class":
		t, err := graph.ParseType(operand)
		if err != nil {
			return Instruction{}, fmt.Errorf("coderewrite: %q: %w", s, err)
		}
		for op, name := range opcodeNames {
			if name == mnemonic {
				return Instruction{Op: op, Type: t}, nil
			}
		}
	}
	if kindName, ok := strings.CutPrefix(mnemonic, "invoke-"); ok {
		kind, err := graph.ParseInvokeType(kindName)
		if err != nil {
			return Instruction{}, fmt.Errorf("coderewrite: %q: %w", s, err)
		}
		m, err := graph.ParseMethod(operand)
		if err != nil {
			return Instruction{}, fmt.Errorf("coderewrite: %q: %w", s, err)
		}
		return Invoke(kind, m), nil
	}
	return Instruction{}, fmt.Errorf("coderewrite: unknown instruction %q", s)
}

// Code is the body of Method.
type Code struct {
	Method       graph.Method
	Instructions []Instruction
}

// ParseCode parses a body of one instruction per line.
func ParseCode(m graph.Method, lines []string) (Code, error) {
	code := Code{Method: m}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		in, err := ParseInstruction(line)
		if err != nil {
			return Code{}, err
		}
		code.Instructions = append(code.Instructions, in)
	}
	return code, nil
}

// Disassemble returns a human-readable listing of the body.
func (c Code) Disassemble() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", c.Method.Smali())
	for i, in := range c.Instructions {
		fmt.Fprintf(&sb, "  %04d  %s\n", i, in)
	}
	return sb.String()
}
