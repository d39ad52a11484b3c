// Package parser implements a recursive-descent parser producing an
// internal/ast.File from a token stream.
package parser

import (
	"strconv"
	"strings"

	"github.com/kythorn/lpgo/internal/ast"
	"github.com/kythorn/lpgo/internal/lexer"
)

// Parser consumes a token stream for a single source file.
type Parser struct {
	file   string
	src    string
	toks   []lexer.Token
	pos    int
}

// Parse lexes and parses src, labeling errors with file for diagnostics.
func Parse(file, src string) (*ast.File, error) {
	toks, err := lexer.New(src).Tokens()
	if err != nil {
		if se, ok := err.(*lexer.SyntaxError); ok {
			return nil, &ParseError{File: file, Line: se.Line, Reason: se.Reason, Token: "", Excerpt: excerptAt(src, se.Line)}
		}
		return nil, err
	}
	p := &Parser{file: file, src: src, toks: toks}
	return p.parseFile()
}

func excerptAt(src string, line int) string {
	lines := strings.Split(src, "\n")
	if line-1 < 0 || line-1 >= len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line-1], "\r")
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) peekNext() lexer.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) errf(reason string) error {
	t := p.cur()
	return &ParseError{File: p.file, Line: t.Line, Reason: reason, Token: t.Lit, Excerpt: excerptAt(p.src, t.Line)}
}

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	if p.cur().Type != tt {
		return lexer.Token{}, p.errf("expected " + tt.String() + ", got " + p.cur().Type.String())
	}
	return p.advance(), nil
}

func isTypeToken(tt lexer.TokenType) bool {
	switch tt {
	case lexer.VOID, lexer.INT_KW, lexer.STRING_KW, lexer.OBJECT_KW, lexer.MAPPING_KW, lexer.MIXED:
		return true
	}
	return false
}

func (p *Parser) parseType() (ast.Type, error) {
	t := p.cur()
	if !isTypeToken(t.Type) {
		return "", p.errf("expected a type")
	}
	p.advance()
	name := t.Lit
	if name == "" {
		name = t.Type.String()
	}
	if p.cur().Type == lexer.STAR {
		p.advance()
		name += "*"
	}
	return ast.Type(name), nil
}

func (p *Parser) parseFile() (*ast.File, error) {
	f := &ast.File{}
	for p.cur().Type != lexer.EOF {
		if p.cur().Type == lexer.INHERIT {
			p.advance()
			str, err := p.expect(lexer.STRING)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.SEMI); err != nil {
				return nil, err
			}
			f.Inherit = str.Lit
			continue
		}
		decl, isFunc, err := p.parseTopDecl()
		if err != nil {
			return nil, err
		}
		if isFunc {
			f.Functions = append(f.Functions, decl.(*ast.FuncDecl))
		} else {
			f.Variables = append(f.Variables, decl.(*ast.VarDecl))
		}
	}
	return f, nil
}

// parseTopDecl parses a variable declaration or a function definition,
// distinguished by lookahead past the type and name for '('.
func (p *Parser) parseTopDecl() (interface{}, bool, error) {
	line := p.cur().Line
	varargs := false
	if p.cur().Type == lexer.VARARGS {
		varargs = true
		p.advance()
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, false, err
	}
	nameTok, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, false, err
	}
	if p.cur().Type == lexer.LPAREN {
		fn, err := p.parseFuncRest(varargs, typ, nameTok.Lit, line)
		return fn, true, err
	}
	if varargs {
		return nil, false, p.errf("varargs only valid on function parameters")
	}
	vd := &ast.VarDecl{Type: typ, Name: nameTok.Lit, Line: line}
	if p.cur().Type == lexer.ASSIGN {
		p.advance()
		init, err := p.parseExpr()
		if err != nil {
			return nil, false, err
		}
		vd.Init = init
	}
	if _, err := p.expect(lexer.SEMI); err != nil {
		return nil, false, err
	}
	return vd, false, nil
}

func (p *Parser) parseFuncRest(varargs bool, typ ast.Type, name string, line int) (*ast.FuncDecl, error) {
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	var params []*ast.Param
	for p.cur().Type != lexer.RPAREN {
		pt, err := p.parseType()
		if err != nil {
			return nil, err
		}
		pn, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		params = append(params, &ast.Param{Type: pt, Name: pn.Lit})
		if p.cur().Type == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Varargs: varargs, Type: typ, Name: name, Params: params, Body: body, Line: line}, nil
}

func (p *Parser) parseBlock() (*ast.BlockStmt, error) {
	line := p.cur().Line
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	blk := &ast.BlockStmt{Line: line}
	for p.cur().Type != lexer.RBRACE {
		if p.cur().Type == lexer.EOF {
			return nil, p.errf("unexpected EOF in block")
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		blk.Stmts = append(blk.Stmts, s)
	}
	p.advance()
	return blk, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.cur().Type {
	case lexer.LBRACE:
		return p.parseBlock()
	case lexer.IF:
		return p.parseIf()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.FOR:
		return p.parseFor()
	case lexer.RETURN:
		return p.parseReturn()
	default:
		if isTypeToken(p.cur().Type) {
			return p.parseVarDeclStmt()
		}
		return p.parseExprStmt()
	}
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	line := p.cur().Line
	p.advance()
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	var els ast.Stmt
	if p.cur().Type == lexer.ELSE {
		p.advance()
		els, err = p.parseStmt()
		if err != nil {
			return nil, err
		}
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: els, Line: line}, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	line := p.cur().Line
	p.advance()
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Cond: cond, Body: body, Line: line}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	line := p.cur().Line
	p.advance()
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	var init ast.Stmt
	var err error
	if p.cur().Type != lexer.SEMI {
		if isTypeToken(p.cur().Type) {
			init, err = p.parseVarDeclStmt()
		} else {
			init, err = p.parseExprStmt()
		}
		if err != nil {
			return nil, err
		}
	} else {
		p.advance()
	}
	var cond ast.Expr
	if p.cur().Type != lexer.SEMI {
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.SEMI); err != nil {
		return nil, err
	}
	var step ast.Stmt
	if p.cur().Type != lexer.RPAREN {
		stepExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		step = &ast.ExprStmt{X: stepExpr, Line: line}
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{Init: init, Cond: cond, Step: step, Body: body, Line: line}, nil
}

func (p *Parser) parseReturn() (ast.Stmt, error) {
	line := p.cur().Line
	p.advance()
	var val ast.Expr
	if p.cur().Type != lexer.SEMI {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		val = v
	}
	if _, err := p.expect(lexer.SEMI); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Value: val, Line: line}, nil
}

func (p *Parser) parseVarDeclStmt() (ast.Stmt, error) {
	line := p.cur().Line
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	vd := &ast.VarDecl{Type: typ, Name: name.Lit, Line: line}
	if p.cur().Type == lexer.ASSIGN {
		p.advance()
		init, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		vd.Init = init
	}
	if _, err := p.expect(lexer.SEMI); err != nil {
		return nil, err
	}
	return &ast.VarDeclStmt{Decl: vd, Line: line}, nil
}

func (p *Parser) parseExprStmt() (ast.Stmt, error) {
	line := p.cur().Line
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.SEMI); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{X: x, Line: line}, nil
}

// --- expressions, precedence low to high ---

func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseAssign()
}

func isAssignable(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Ident, *ast.IndexExpr:
		return true
	}
	return false
}

func (p *Parser) parseAssign() (ast.Expr, error) {
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	switch p.cur().Type {
	case lexer.ASSIGN, lexer.PLUS_EQ, lexer.MINUS_EQ:
		op := p.cur().Type.String()
		line := p.cur().Line
		if !isAssignable(left) {
			return nil, p.errf("invalid assignment target")
		}
		p.advance()
		right, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &ast.AssignExpr{Op: op, Target: left, Value: right, Line: line}, nil
	}
	return left, nil
}

func (p *Parser) parseLogicalOr() (ast.Expr, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == lexer.OR {
		line := p.cur().Line
		p.advance()
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "||", Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *Parser) parseLogicalAnd() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == lexer.AND {
		line := p.cur().Line
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "&&", Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == lexer.EQ || p.cur().Type == lexer.NEQ {
		op := p.cur().Type.String()
		line := p.cur().Line
		p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *Parser) parseRelational() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == lexer.LT || p.cur().Type == lexer.LE || p.cur().Type == lexer.GT || p.cur().Type == lexer.GE {
		op := p.cur().Type.String()
		line := p.cur().Line
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == lexer.PLUS || p.cur().Type == lexer.MINUS {
		op := p.cur().Type.String()
		line := p.cur().Line
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == lexer.STAR || p.cur().Type == lexer.SLASH || p.cur().Type == lexer.PERCENT {
		op := p.cur().Type.String()
		line := p.cur().Line
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.cur().Type == lexer.MINUS || p.cur().Type == lexer.NOT {
		op := p.cur().Type.String()
		line := p.cur().Line
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: op, X: x, Line: line}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Type {
		case lexer.LPAREN:
			if ident, ok := x.(*ast.Ident); ok {
				line := p.cur().Line
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				x = &ast.CallExpr{Name: ident.Name, Args: args, Line: line}
				continue
			}
			return x, nil
		case lexer.ARROW:
			line := p.cur().Line
			p.advance()
			name, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			x = &ast.ArrowCallExpr{Recv: x, Name: name.Lit, Args: args, Line: line}
		case lexer.LBRACKET:
			line := p.cur().Line
			p.advance()
			first, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if p.cur().Type == lexer.DOTDOT {
				p.advance()
				to, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(lexer.RBRACKET); err != nil {
					return nil, err
				}
				x = &ast.SliceExpr{X: x, From: first, To: to, Line: line}
				continue
			}
			if _, err := p.expect(lexer.RBRACKET); err != nil {
				return nil, err
			}
			x = &ast.IndexExpr{X: x, Index: first, Line: line}
		default:
			return x, nil
		}
	}
}

func (p *Parser) parseArgs() ([]ast.Expr, error) {
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for p.cur().Type != lexer.RPAREN {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.cur().Type == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch t.Type {
	case lexer.INT:
		p.advance()
		n, err := strconv.ParseInt(t.Lit, 10, 64)
		if err != nil {
			return nil, p.errf("invalid integer literal")
		}
		return &ast.IntLit{Value: n, Line: t.Line}, nil
	case lexer.STRING:
		p.advance()
		return &ast.StringLit{Value: t.Lit, Line: t.Line}, nil
	case lexer.IDENT:
		p.advance()
		return &ast.Ident{Name: t.Lit, Line: t.Line}, nil
	case lexer.LPAREN:
		p.advance()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return x, nil
	case lexer.ARR_OPEN:
		return p.parseArrayLit()
	case lexer.MAP_OPEN:
		return p.parseMappingLit()
	case lexer.SCOPE:
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &ast.ScopeCallExpr{Name: name.Lit, Args: args, Line: t.Line}, nil
	default:
		return nil, p.errf("unexpected token in expression")
	}
}

func (p *Parser) parseArrayLit() (ast.Expr, error) {
	line := p.cur().Line
	p.advance() // ({
	arr := &ast.ArrayLit{Line: line}
	for p.cur().Type != lexer.ARR_CLOSE {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		arr.Elems = append(arr.Elems, e)
		if p.cur().Type == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.ARR_CLOSE); err != nil {
		return nil, err
	}
	return arr, nil
}

func (p *Parser) parseMappingLit() (ast.Expr, error) {
	line := p.cur().Line
	p.advance() // ([
	m := &ast.MappingLit{Line: line}
	for p.cur().Type != lexer.MAP_CLOSE {
		k, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.COLON); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, ast.MapEntry{Key: k, Val: v})
		if p.cur().Type == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.MAP_CLOSE); err != nil {
		return nil, err
	}
	return m, nil
}
