package transform

import (
	"fmt"
	"reflect"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

var (
	exprType      = reflect.TypeOf((*js.IExpr)(nil)).Elem()
	exprSliceType = reflect.TypeOf([]js.IExpr(nil))
)

// RewriteAppendCalls rewrites Element.append calls for browsers that only
// know appendChild:
//
//	el.append(node)         -> el.appendChild(node)
//	el.append("text")       -> el.appendChild(document.createTextNode("text"))
//	el.append(a, "t", b)    -> (el.appendChild(a),el.appendChild(document.createTextNode("t")),el.appendChild(b))
//
// Calls without arguments, optional calls and calls with spread arguments are
// left alone. When nothing matches, content is returned unchanged.
func RewriteAppendCalls(content, path string) (string, bool, error) {
	ast, err := js.Parse(parse.NewInputString(content), js.Options{})
	if err != nil {
		return "", false, fmt.Errorf("append transform %s: %w", path, err)
	}
	v := &appendVisitor{}
	js.Walk(v, ast)
	if v.rewritten == 0 {
		return content, false, nil
	}
	return ast.JSString(), true, nil
}

// appendVisitor replaces matching calls in the expression slots of each node
// it enters. Walk reads child slots after Enter returns, so replacements are
// walked too and nested append calls inside arguments are rewritten as well.
type appendVisitor struct {
	rewritten int
}

func (v *appendVisitor) Enter(n js.INode) js.IVisitor {
	rv := reflect.ValueOf(n)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return v
	}
	s := rv.Elem()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Type() {
		case exprType:
			v.replace(f)
		case exprSliceType:
			for j := 0; j < f.Len(); j++ {
				v.replace(f.Index(j))
			}
		}
	}
	return v
}

func (v *appendVisitor) Exit(js.INode) {}

func (v *appendVisitor) replace(slot reflect.Value) {
	if slot.IsNil() {
		return
	}
	expr, ok := slot.Interface().(js.IExpr)
	if !ok {
		return
	}
	if r := rewriteAppend(expr); r != nil {
		slot.Set(reflect.ValueOf(r))
		v.rewritten++
	}
}

// rewriteAppend returns the replacement for an append call, or nil.
func rewriteAppend(expr js.IExpr) js.IExpr {
	call, ok := expr.(*js.CallExpr)
	if !ok || call.Optional || len(call.Args.List) == 0 {
		return nil
	}
	dot, ok := call.X.(*js.DotExpr)
	if !ok || dot.Optional || string(dot.Y.Data) != "append" {
		return nil
	}
	for _, arg := range call.Args.List {
		if arg.Rest {
			return nil
		}
	}

	calls := make([]js.IExpr, 0, len(call.Args.List))
	for _, arg := range call.Args.List {
		calls = append(calls, appendChildCall(dot.X, arg.Value))
	}
	if len(calls) == 1 {
		return calls[0]
	}
	return &js.GroupExpr{X: &js.CommaExpr{List: calls}}
}

func appendChildCall(target, value js.IExpr) *js.CallExpr {
	if lit, ok := value.(*js.LiteralExpr); ok && lit.TokenType == js.StringToken {
		value = &js.CallExpr{
			X:    member(&js.Var{Data: []byte("document")}, "createTextNode"),
			Args: js.Args{List: []js.Arg{{Value: lit}}},
		}
	}
	return &js.CallExpr{
		X:    member(target, "appendChild"),
		Args: js.Args{List: []js.Arg{{Value: value}}},
	}
}

func member(x js.IExpr, name string) *js.DotExpr {
	return &js.DotExpr{
		X:    x,
		Y:    js.LiteralExpr{TokenType: js.IdentifierToken, Data: []byte(name)},
		Prec: js.OpMember,
	}
}
