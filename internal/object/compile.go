package object

import (
	"github.com/kythorn/lpgo/internal/ast"
	"github.com/kythorn/lpgo/internal/parser"
)

func parseSource(path, src string) (*ast.File, error) {
	return parser.Parse(path+".c", src)
}
