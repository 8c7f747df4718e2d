package compiler

import (
	"strconv"

	"github.com/chazu/lox/vm"
)

// ---------------------------------------------------------------------------
// Compiler: Pratt parser that emits bytecode as it parses
// ---------------------------------------------------------------------------

// Compiler turns source text into a chunk in a single pass. There is no
// syntax tree: every production appends its instructions to the chunk as
// soon as it is recognized.
type Compiler struct {
	lexer *Lexer
	chunk *vm.Chunk

	previous Token
	current  Token

	hadError  bool
	panicMode bool

	diagnostics []Diagnostic
}

// Compile compiles source into a chunk ending in OpReturn. On failure the
// chunk is nil and the error is a *CompileError listing every diagnostic.
func Compile(source string) (*vm.Chunk, error) {
	c := &Compiler{
		lexer: NewLexer(source),
		chunk: vm.NewChunk(),
	}
	return c.compile()
}

func (c *Compiler) compile() (*vm.Chunk, error) {
	c.advance()
	for !c.match(TokenEOF) {
		c.declaration()
	}
	c.emit(vm.Simple(vm.OpReturn))

	if c.hadError {
		return nil, &CompileError{Diagnostics: c.diagnostics}
	}
	return c.chunk, nil
}

// ---------------------------------------------------------------------------
// Token stream
// ---------------------------------------------------------------------------

// advance shifts current into previous and pulls the next valid token,
// reporting any error tokens on the way.
func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.lexer.NextToken()
		if c.current.Type != TokenError {
			return
		}
		c.errorAtCurrent(c.current.Literal)
	}
}

func (c *Compiler) check(t TokenType) bool {
	return c.current.Type == t
}

func (c *Compiler) match(t TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t TokenType, msg string) {
	if c.check(t) {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// ---------------------------------------------------------------------------
// Error reporting
// ---------------------------------------------------------------------------

func (c *Compiler) error(msg string) {
	c.errorAt(c.previous, msg)
}

func (c *Compiler) errorAtCurrent(msg string) {
	c.errorAt(c.current, msg)
}

// errorAt records a diagnostic unless one was already reported for the
// statement being compiled.
func (c *Compiler) errorAt(tok Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	var where string
	switch tok.Type {
	case TokenEOF:
		where = " at End"
	case TokenError:
	default:
		where = " at " + c.lexeme(tok)
	}
	c.diagnostics = append(c.diagnostics, Diagnostic{Line: tok.Line, Span: tok.Span, Where: where, Message: msg})
}

// lexeme returns the source text of tok, quotes included for strings.
func (c *Compiler) lexeme(tok Token) string {
	src := c.lexer.input
	if tok.Span.Start < 0 || tok.Span.End() > len(src) {
		return tok.Literal
	}
	return src[tok.Span.Start:tok.Span.End()]
}

// synchronize leaves panic mode and skips tokens until a likely statement
// boundary, so the next statement can report its own first error.
func (c *Compiler) synchronize() {
	c.panicMode = false

	for !c.check(TokenEOF) {
		if c.previous.Type == TokenSemicolon {
			return
		}
		switch c.current.Type {
		case TokenClass, TokenFun, TokenVar, TokenFor, TokenIf, TokenWhile, TokenPrint, TokenReturn:
			return
		}
		c.advance()
	}
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// emit appends inst tagged with the line of the token just consumed.
func (c *Compiler) emit(inst vm.Instruction) {
	c.chunk.Write(inst, c.previous.Line)
}

func (c *Compiler) emitAt(inst vm.Instruction, line int) {
	c.chunk.Write(inst, line)
}

// makeConstant adds v to the constant pool. Each call takes a new slot.
func (c *Compiler) makeConstant(v vm.Value) int {
	if len(c.chunk.Constants) >= vm.MaxConstants {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return c.chunk.AddConstant(v)
}

func (c *Compiler) emitConstant(v vm.Value) {
	c.emit(vm.Instruction{Op: vm.OpConstant, Operand: c.makeConstant(v)})
}

// ---------------------------------------------------------------------------
// Declarations and statements
// ---------------------------------------------------------------------------

func (c *Compiler) declaration() {
	if c.match(TokenVar) {
		c.varDeclaration()
	} else {
		c.statement()
	}

	if c.panicMode {
		c.synchronize()
	}
}

// varDeclaration compiles `var name (= expr)? ;`. The name constant is
// allocated before the initializer is compiled.
func (c *Compiler) varDeclaration() {
	c.consume(TokenIdentifier, "Expect variable name after 'var'.")
	name := c.makeConstant(vm.StringValue(c.previous.Literal))

	if c.match(TokenEqual) {
		c.expression()
	} else {
		c.emitConstant(vm.Nil)
	}

	c.consume(TokenSemicolon, "Expect ';' after variable declaration.")
	c.emit(vm.Instruction{Op: vm.OpDefineGlobal, Operand: name})
}

func (c *Compiler) statement() {
	if c.match(TokenPrint) {
		c.printStatement()
	} else {
		c.expressionStatement()
	}
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(TokenSemicolon, "Expect ';' at end of statement.")
	c.emit(vm.Instruction{Op: vm.OpKernelCall, Operand: int(vm.KernelPrint)})
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(TokenSemicolon, "Expect ';' at end of statement.")
	c.emit(vm.Simple(vm.OpPop))
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

// parsePrecedence compiles an expression whose operators all bind at least
// as tightly as prec.
func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := getRule(c.previous.Type).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	prefix(c)

	for prec <= getRule(c.current.Type).precedence {
		c.advance()
		infix := getRule(c.previous.Type).infix
		if infix == nil {
			c.error("Expecting valid infix operator.")
			return
		}
		infix(c)
	}
}

func (c *Compiler) grouping() {
	c.expression()
	c.consume(TokenRightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary() {
	op := c.previous
	c.parsePrecedence(PrecUnary)

	switch op.Type {
	case TokenMinus:
		c.emitAt(vm.Simple(vm.OpNegate), op.Line)
	case TokenBang:
		c.emitAt(vm.Simple(vm.OpNot), op.Line)
	}
}

// binary compiles the right operand one level tighter than the operator,
// which makes every binary operator left-associative. The comparisons
// without an instruction of their own are composed with OpNot.
func (c *Compiler) binary() {
	op := c.previous
	c.parsePrecedence(getRule(op.Type).precedence.next())

	emit := func(ops ...vm.Opcode) {
		for _, o := range ops {
			c.emitAt(vm.Simple(o), op.Line)
		}
	}

	switch op.Type {
	case TokenPlus:
		emit(vm.OpAdd)
	case TokenMinus:
		emit(vm.OpSubtract)
	case TokenStar:
		emit(vm.OpMultiply)
	case TokenSlash:
		emit(vm.OpDivide)
	case TokenEqualEqual:
		emit(vm.OpEqual)
	case TokenBangEqual:
		emit(vm.OpEqual, vm.OpNot)
	case TokenGreater:
		emit(vm.OpGreater)
	case TokenGreaterEqual:
		emit(vm.OpLess, vm.OpNot)
	case TokenLess:
		emit(vm.OpLess)
	case TokenLessEqual:
		emit(vm.OpGreater, vm.OpNot)
	}
}

func (c *Compiler) number() {
	n, err := strconv.ParseFloat(c.previous.Literal, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(vm.NumberValue(n))
}

func (c *Compiler) str() {
	c.emitConstant(vm.StringValue(c.previous.Literal))
}

func (c *Compiler) variable() {
	name := c.makeConstant(vm.StringValue(c.previous.Literal))
	c.emit(vm.Instruction{Op: vm.OpGetGlobal, Operand: name})
}

func (c *Compiler) literal() {
	switch c.previous.Type {
	case TokenTrue:
		c.emitConstant(vm.BoolValue(true))
	case TokenFalse:
		c.emitConstant(vm.BoolValue(false))
	case TokenNil:
		c.emitConstant(vm.Nil)
	}
}
