package lexer

// TokenType identifies the lexical category of a Token.
type TokenType int

const (
	EOF TokenType = iota
	IDENT
	INT
	STRING

	// keywords
	IF
	ELSE
	WHILE
	FOR
	RETURN
	VOID
	INT_KW
	STRING_KW
	OBJECT_KW
	MAPPING_KW
	MIXED
	INHERIT
	VARARGS

	// delimiters
	ARR_OPEN  // ({
	ARR_CLOSE // })
	MAP_OPEN  // ([
	MAP_CLOSE // ])
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	COMMA
	SEMI
	COLON
	SCOPE // ::
	ARROW // ->
	DOTDOT

	// operators
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	EQ   // ==
	NEQ  // !=
	LT
	LE
	GT
	GE
	AND // &&
	OR  // ||
	NOT // !
	ASSIGN    // =
	PLUS_EQ   // +=
	MINUS_EQ  // -=
)

var keywords = map[string]TokenType{
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"return":   RETURN,
	"void":     VOID,
	"int":      INT_KW,
	"string":   STRING_KW,
	"object":   OBJECT_KW,
	"mapping":  MAPPING_KW,
	"mixed":    MIXED,
	"inherit":  INHERIT,
	"varargs":  VARARGS,
}

var names = map[TokenType]string{
	EOF: "EOF", IDENT: "IDENT", INT: "INT", STRING: "STRING",
	IF: "if", ELSE: "else", WHILE: "while", FOR: "for", RETURN: "return",
	VOID: "void", INT_KW: "int", STRING_KW: "string", OBJECT_KW: "object",
	MAPPING_KW: "mapping", MIXED: "mixed", INHERIT: "inherit", VARARGS: "varargs",
	ARR_OPEN: "({", ARR_CLOSE: "})", MAP_OPEN: "([", MAP_CLOSE: "])",
	LPAREN: "(", RPAREN: ")", LBRACE: "{", RBRACE: "}",
	LBRACKET: "[", RBRACKET: "]", COMMA: ",", SEMI: ";", COLON: ":",
	SCOPE: "::", ARROW: "->", DOTDOT: "..",
	PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	EQ: "==", NEQ: "!=", LT: "<", LE: "<=", GT: ">", GE: ">=",
	AND: "&&", OR: "||", NOT: "!", ASSIGN: "=",
	PLUS_EQ: "+=", MINUS_EQ: "-=",
}

func (t TokenType) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// Token is a single lexical token with its source position. Offset is the
// byte offset of the first character, used by the parser to slice source
// for error excerpts.
type Token struct {
	Type   TokenType
	Lit    string
	Line   int
	Col    int
	Offset int
}

func lookupIdent(s string) TokenType {
	if t, ok := keywords[s]; ok {
		return t
	}
	return IDENT
}
