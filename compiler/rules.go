package compiler

// ---------------------------------------------------------------------------
// Precedence and the parse-rule table
// ---------------------------------------------------------------------------

// Precedence is the binding strength of an operator, lowest first.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality   // == !=
	PrecComparison // < > <= >=
	PrecTerm       // + -
	PrecFactor     // * /
	PrecUnary      // ! -
	PrecCall
	PrecPrimary
)

var precedenceNames = [...]string{
	PrecNone:       "None",
	PrecAssignment: "Assignment",
	PrecOr:         "Or",
	PrecAnd:        "And",
	PrecEquality:   "Equality",
	PrecComparison: "Comparison",
	PrecTerm:       "Term",
	PrecFactor:     "Factor",
	PrecUnary:      "Unary",
	PrecCall:       "Call",
	PrecPrimary:    "Primary",
}

func (p Precedence) String() string {
	if p < 0 || int(p) >= len(precedenceNames) {
		return "Precedence(?)"
	}
	return precedenceNames[p]
}

// next returns the precedence one level above p. Primary is the ceiling.
func (p Precedence) next() Precedence {
	if p >= PrecPrimary {
		return PrecPrimary
	}
	return p + 1
}

type parseFn func(c *Compiler)

// parseRule pairs a token type with what it does at the start of an
// expression (prefix), between two operands (infix), and how tightly it
// binds as an infix operator.
type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is indexed by TokenType. Token types not listed have no rule.
//
// and/or carry a precedence but no infix action: they are recognized as
// operators but cannot be compiled without jumps.
var rules [tokenTypeCount]parseRule

func init() {
	rules = [tokenTypeCount]parseRule{
		TokenLeftParen:    {prefix: (*Compiler).grouping},
		TokenMinus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: PrecTerm},
		TokenPlus:         {infix: (*Compiler).binary, precedence: PrecTerm},
		TokenSlash:        {infix: (*Compiler).binary, precedence: PrecFactor},
		TokenStar:         {infix: (*Compiler).binary, precedence: PrecFactor},
		TokenBang:         {prefix: (*Compiler).unary},
		TokenBangEqual:    {infix: (*Compiler).binary, precedence: PrecEquality},
		TokenEqualEqual:   {infix: (*Compiler).binary, precedence: PrecEquality},
		TokenGreater:      {infix: (*Compiler).binary, precedence: PrecComparison},
		TokenGreaterEqual: {infix: (*Compiler).binary, precedence: PrecComparison},
		TokenLess:         {infix: (*Compiler).binary, precedence: PrecComparison},
		TokenLessEqual:    {infix: (*Compiler).binary, precedence: PrecComparison},
		TokenIdentifier:   {prefix: (*Compiler).variable},
		TokenString:       {prefix: (*Compiler).str},
		TokenNumber:       {prefix: (*Compiler).number},
		TokenAnd:          {precedence: PrecAnd},
		TokenOr:           {precedence: PrecOr},
		TokenFalse:        {prefix: (*Compiler).literal},
		TokenNil:          {prefix: (*Compiler).literal},
		TokenTrue:         {prefix: (*Compiler).literal},
	}
}

func getRule(t TokenType) *parseRule {
	if t < 0 || t >= tokenTypeCount {
		return &parseRule{}
	}
	return &rules[t]
}
