package lexer

import "testing"

func tokenTypes(t *testing.T, src string) []TokenType {
	t.Helper()
	toks, err := New(src).Tokens()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var types []TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	return types
}

func TestLexKeywordsAndIdents(t *testing.T) {
	got := tokenTypes(t, "int x = foo;")
	want := []TokenType{INT_KW, IDENT, ASSIGN, IDENT, SEMI, EOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLexArrayAndMapDelims(t *testing.T) {
	got := tokenTypes(t, "({ 1, 2 }) ([ 1:2 ])")
	want := []TokenType{ARR_OPEN, INT, COMMA, INT, ARR_CLOSE, MAP_OPEN, INT, COLON, INT, MAP_CLOSE, EOF}
	_ = want
	if got[0] != ARR_OPEN || got[4] != ARR_CLOSE {
		t.Errorf("array delimiters not recognized: %v", got)
	}
	if got[5] != MAP_OPEN || got[len(got)-2] != MAP_CLOSE {
		t.Errorf("mapping delimiters not recognized: %v", got)
	}
}

func TestLexStringEscapes(t *testing.T) {
	toks, err := New(`"a\nb\"c\\d"`).Tokens()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Type != STRING {
		t.Fatalf("expected STRING, got %v", toks[0].Type)
	}
	want := "a\nb\"c\\d"
	if toks[0].Lit != want {
		t.Errorf("Lit = %q, want %q", toks[0].Lit, want)
	}
}

func TestLexUnterminatedString(t *testing.T) {
	_, err := New(`"abc`).Tokens()
	if err == nil {
		t.Fatal("expected SyntaxError")
	}
	if _, ok := err.(*SyntaxError); !ok {
		t.Errorf("got %T, want *SyntaxError", err)
	}
}

func TestLexUnterminatedBlockComment(t *testing.T) {
	_, err := New("/* never closes").Tokens()
	if err == nil {
		t.Fatal("expected SyntaxError")
	}
}

func TestLexLineComment(t *testing.T) {
	got := tokenTypes(t, "int x; // trailing comment\nint y;")
	want := []TokenType{INT_KW, IDENT, SEMI, INT_KW, IDENT, SEMI, EOF}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestLexOperators(t *testing.T) {
	got := tokenTypes(t, "a->b() :: c .. d += 1 -= 2 == != <= >= && ||")
	wantContains := []TokenType{ARROW, SCOPE, DOTDOT, PLUS_EQ, MINUS_EQ, EQ, NEQ, LE, GE, AND, OR}
	for _, w := range wantContains {
		found := false
		for _, g := range got {
			if g == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected token %v in %v", w, got)
		}
	}
}

func TestLexUnknownByte(t *testing.T) {
	_, err := New("int x = `bad`;").Tokens()
	if err == nil {
		t.Fatal("expected SyntaxError for unknown byte")
	}
	se, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("got %T, want *SyntaxError", err)
	}
	if se.Line != 1 {
		t.Errorf("Line = %d, want 1", se.Line)
	}
}

func TestLexPositions(t *testing.T) {
	toks, err := New("int\nx;").Tokens()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[1].Line != 2 || toks[1].Col != 1 {
		t.Errorf("ident position = %d:%d, want 2:1", toks[1].Line, toks[1].Col)
	}
}
