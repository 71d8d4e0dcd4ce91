package selector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/resource"
)

// expressionTimeout bounds a single evaluation.
const expressionTimeout = 100 * time.Millisecond

// unsafeGlobals are removed from the base library: they read files, load
// code or print.
var unsafeGlobals = []string{"dofile", "loadfile", "load", "loadstring", "module", "require", "print"}

// Expression evaluates a Lua boolean expression against resource metadata.
// The expression sees the globals name, labels and annotations, e.g.
//
//	labels.env == "prod" and string.find(name, "^orders") ~= nil
//
// The chunk is compiled once; every evaluation runs in a fresh LState, so an
// Expression is safe for concurrent use. An evaluation running longer than
// the timeout is aborted and evaluates to false.
type Expression struct {
	source  string
	proto   *lua.FunctionProto
	timeout time.Duration
}

// NewExpression compiles a Lua expression.
func NewExpression(source string) (*Expression, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errs.Config("expression selector", fmt.Errorf("%w: empty expression", errs.ErrInvalidSelector))
	}

	chunk, err := parse.Parse(strings.NewReader("return ("+source+")"), "selector")
	if err != nil {
		return nil, errs.Config("expression selector", fmt.Errorf("%w %q: %v", errs.ErrInvalidSelector, source, err))
	}
	proto, err := lua.Compile(chunk, "selector")
	if err != nil {
		return nil, errs.Config("expression selector", fmt.Errorf("%w %q: %v", errs.ErrInvalidSelector, source, err))
	}

	return &Expression{source: source, proto: proto, timeout: expressionTimeout}, nil
}

func (e *Expression) Name() string { return "expr:" + e.source }

// Matches runs the expression. Runtime errors evaluate to false.
func (e *Expression) Matches(meta resource.Meta) bool {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	openSafeLibs(L)

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	L.SetContext(ctx)

	L.SetGlobal("name", lua.LString(meta.Name))
	L.SetGlobal("labels", stringTable(L, meta.Labels))
	L.SetGlobal("annotations", stringTable(L, meta.Annotations))

	L.Push(L.NewFunctionFromProto(e.proto))
	if err := L.PCall(0, 1, nil); err != nil {
		log.Debug().Err(err).Str("selector", e.source).Str("name", meta.Name).Msg("Selector expression failed")
		return false
	}

	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret)
}

// openSafeLibs loads the libraries an expression may use. No io, os,
// package loading or code loading.
func openSafeLibs(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

func stringTable(L *lua.LState, m map[string]string) *lua.LTable {
	tbl := L.NewTable()
	for k, v := range m {
		tbl.RawSetString(k, lua.LString(v))
	}
	return tbl
}
