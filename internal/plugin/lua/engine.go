// Package lua runs rich text extension plugins. A plugin is a Lua
// script that registers custom element and leaf types through the
// global `plume` table; registered render functions are called back
// into the script when the document is rendered.
//
// Scripts run in a restricted state: only the base, table, string and
// math libraries are opened, so plugins cannot touch the filesystem or
// spawn processes.
package lua

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
	glua "github.com/yuin/gopher-lua"

	"github.com/plumecms/plume/internal/richtext/feature"
)

// Engine hosts one Lua state and the registry plugins register into.
// The state is single-threaded; the engine serializes all entry points.
type Engine struct {
	mu    sync.Mutex
	state *glua.LState
	reg   *feature.Registry
	log   zerolog.Logger

	regErr error
}

// NewEngine creates a plugin engine targeting the given registry.
func NewEngine(reg *feature.Registry, log zerolog.Logger) *Engine {
	L := glua.NewState(glua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open glua.LGFunction
	}{
		{glua.BaseLibName, glua.OpenBase},
		{glua.TabLibName, glua.OpenTable},
		{glua.StringLibName, glua.OpenString},
		{glua.MathLibName, glua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(glua.LString(lib.name))
		L.Call(1, 0)
	}

	e := &Engine{state: L, reg: reg, log: log}
	e.installAPI()
	return e
}

// installAPI publishes the `plume` table to the state.
func (e *Engine) installAPI() {
	L := e.state
	api := L.NewTable()
	L.SetGlobal("plume", api)
	L.SetField(api, "register_element", L.NewFunction(e.luaRegisterElement))
	L.SetField(api, "register_leaf", L.NewFunction(e.luaRegisterLeaf))
	L.SetField(api, "log", L.NewFunction(e.luaLog))
}

// LoadFile runs one plugin script.
func (e *Engine) LoadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("plugin: %w", err)
	}
	return e.LoadScript(path, string(src))
}

// LoadScript runs plugin source under the given name. A registration
// failure inside the script (duplicate tag, missing field) fails the
// whole load.
func (e *Engine) LoadScript(name, src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.regErr = nil
	if err := e.state.DoString(src); err != nil {
		return fmt.Errorf("plugin %s: %w", name, err)
	}
	if e.regErr != nil {
		return fmt.Errorf("plugin %s: %w", name, e.regErr)
	}
	e.log.Debug().Str("plugin", name).Msg("plugin loaded")
	return nil
}

// Close shuts the Lua state down. Render functions registered by
// plugins must not be called afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Close()
}

func (e *Engine) luaRegisterElement(L *glua.LState) int {
	spec := L.CheckTable(1)

	typ, ok := tableString(spec, "type")
	if !ok {
		e.fail(L, "register_element: missing type")
		return 0
	}
	el := feature.Element{
		Type:     typ,
		BreakOut: tableBool(spec, "break_out"),
		Void:     tableBool(spec, "void"),
		ListItem: tableBool(spec, "list_item"),
		Button:   tableButton(spec),
	}
	if fn, ok := spec.RawGetString("render").(*glua.LFunction); ok {
		el.Render = e.elementRenderer(fn)
	} else {
		el.Render = func(ctx feature.ElementContext) string { return ctx.Children }
	}

	if err := e.reg.RegisterElement(el); err != nil {
		e.fail(L, err.Error())
		return 0
	}
	return 0
}

func (e *Engine) luaRegisterLeaf(L *glua.LState) int {
	spec := L.CheckTable(1)

	name, ok := tableString(spec, "name")
	if !ok {
		e.fail(L, "register_leaf: missing name")
		return 0
	}
	leaf := feature.Leaf{
		Name:   name,
		Button: tableButton(spec),
	}
	if fn, ok := spec.RawGetString("render").(*glua.LFunction); ok {
		leaf.Render = e.leafRenderer(fn)
	} else {
		leaf.Render = func(ctx feature.LeafContext) string { return ctx.Children }
	}

	if err := e.reg.RegisterLeaf(leaf); err != nil {
		e.fail(L, err.Error())
		return 0
	}
	return 0
}

func (e *Engine) luaLog(L *glua.LState) int {
	e.log.Info().Str("source", "plugin").Msg(L.CheckString(1))
	return 0
}

// fail records the registration error and aborts the script.
func (e *Engine) fail(L *glua.LState, msg string) {
	e.regErr = fmt.Errorf("%s", msg)
	L.RaiseError("%s", msg)
}

// elementRenderer wraps a Lua render function as a Go render callback.
// The callback re-enters the engine, so it must not be invoked while a
// script is loading.
func (e *Engine) elementRenderer(fn *glua.LFunction) feature.RenderElementFunc {
	return func(ctx feature.ElementContext) string {
		e.mu.Lock()
		defer e.mu.Unlock()
		L := e.state
		arg := L.NewTable()
		L.SetField(arg, "children", glua.LString(ctx.Children))
		L.SetField(arg, "type", glua.LString(ctx.Type))
		L.SetField(arg, "path", glua.LString(ctx.Path))
		L.SetField(arg, "attrs", toLua(L, ctx.Attrs))
		return e.callRender(fn, arg, ctx.Children)
	}
}

func (e *Engine) leafRenderer(fn *glua.LFunction) feature.RenderLeafFunc {
	return func(ctx feature.LeafContext) string {
		e.mu.Lock()
		defer e.mu.Unlock()
		L := e.state
		arg := L.NewTable()
		L.SetField(arg, "children", glua.LString(ctx.Children))
		L.SetField(arg, "mark", glua.LString(ctx.Mark))
		L.SetField(arg, "path", glua.LString(ctx.Path))
		return e.callRender(fn, arg, ctx.Children)
	}
}

// callRender invokes a plugin render function. On error the children
// pass through unwrapped so one broken plugin cannot blank a document.
func (e *Engine) callRender(fn *glua.LFunction, arg *glua.LTable, fallback string) string {
	L := e.state
	if err := L.CallByParam(glua.P{Fn: fn, NRet: 1, Protect: true}, arg); err != nil {
		e.log.Error().Err(err).Msg("plugin render failed")
		return fallback
	}
	ret := L.Get(-1)
	L.Pop(1)
	if s, ok := ret.(glua.LString); ok {
		return string(s)
	}
	return fallback
}

func tableString(t *glua.LTable, key string) (string, bool) {
	if s, ok := t.RawGetString(key).(glua.LString); ok {
		return string(s), true
	}
	return "", false
}

func tableBool(t *glua.LTable, key string) bool {
	b, _ := t.RawGetString(key).(glua.LBool)
	return bool(b)
}

func tableButton(t *glua.LTable) *feature.Button {
	bt, ok := t.RawGetString("button").(*glua.LTable)
	if !ok {
		return nil
	}
	b := &feature.Button{}
	b.Label, _ = tableString(bt, "label")
	b.Icon, _ = tableString(bt, "icon")
	b.Format, _ = tableString(bt, "format")
	return b
}
