package t2d2_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface methods whose meaning is fixed by the interface they satisfy.
var undocumentedMethods = map[string]bool{"Error": true, "Unwrap": true, "String": true, "Is": true}

func TestExportedIdentifiersAreDocumented(t *testing.T) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, ".", func(fi os.FileInfo) bool {
		return !strings.HasSuffix(fi.Name(), "_test.go")
	}, parser.ParseComments)
	require.NoError(t, err)
	require.Contains(t, pkgs, "t2d2")

	var missing []string
	for _, f := range pkgs["t2d2"].Files {
		for _, decl := range f.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				if !d.Name.IsExported() || d.Doc != nil {
					continue
				}
				if d.Recv != nil && undocumentedMethods[d.Name.Name] {
					continue
				}
				missing = append(missing, fset.Position(d.Pos()).String()+" "+d.Name.Name)
			case *ast.GenDecl:
				missing = append(missing, undocumentedSpecs(fset, d)...)
			}
		}
	}
	assert.Empty(t, missing)
}

func undocumentedSpecs(fset *token.FileSet, d *ast.GenDecl) []string {
	var out []string
	for _, vs := range d.Specs {
		switch s := vs.(type) {
		case *ast.TypeSpec:
			if s.Name.IsExported() && d.Doc == nil && s.Doc == nil {
				out = append(out, fset.Position(s.Pos()).String()+" "+s.Name.Name)
			}
		case *ast.ValueSpec:
			if d.Doc != nil || s.Doc != nil || s.Comment != nil {
				continue
			}
			for _, n := range s.Names {
				if n.IsExported() {
					out = append(out, fset.Position(n.Pos()).String()+" "+n.Name)
				}
			}
		}
	}
	return out
}
