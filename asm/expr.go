package asm

import (
	"fmt"
	"regexp"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

var exprRe = regexp.MustCompile(`\$\([^\$]*\)`)

// parenEval does assemble-time $(...) evaluations. Labels and LINENO are
// predeclared as integers, so address arithmetic like $(table + 2) works.
func (as *Assembler) parenEval(expr string, lineno int) (value uint16, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}

	pred := starlark.StringDict{
		"LINENO": starlark.MakeInt(lineno),
	}
	for name, addr := range as.labels {
		pred[name] = starlark.MakeInt(int(addr))
	}

	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = ErrParseExpression(expr)
		return
	}

	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok || st_int64 < 0 || st_int64 > 0xffff {
		err = ErrParseExpression(expr)
		return
	}

	value = uint16(st_int64)
	return
}

// expandExprs replaces every $(...) on the line with its evaluated value.
// During pass 1 label addresses may not be known yet, so failures there
// expand to 0 and are only reported on pass 2.
func (as *Assembler) expandExprs(line string, lineno int, pass2 bool) (out string, err error) {
	out = exprRe.ReplaceAllStringFunc(line, func(str string) string {
		value, everr := as.parenEval(str[2:len(str)-1], lineno)
		if everr != nil {
			if pass2 {
				err = everr
			}
			return "0"
		}
		return fmt.Sprintf("%d", value)
	})

	return
}
