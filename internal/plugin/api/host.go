package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/fragments/internal/app"
	"github.com/dshills/fragments/internal/fragment/engine"
	"github.com/dshills/fragments/internal/fragment/store"
	"github.com/dshills/fragments/internal/project"
)

// Host is the workspace the modules operate on. *app.Application
// implements it.
type Host interface {
	Scan(ctx context.Context, paths ...string) ([]app.FileReport, error)
	Capture(ctx context.Context, variant string, paths ...string) ([]app.FileReport, error)
	Apply(ctx context.Context, variant string, paths ...string) ([]app.FileReport, error)
	Toggle(ctx context.Context, paths ...string) (string, []app.FileReport, error)
	Check(ctx context.Context, paths ...string) ([]app.CollisionReport, error)
	Status(ctx context.Context) (app.Status, error)
	Insert(ctx context.Context, path, loc string) (string, project.Position, error)
	Delete(ctx context.Context, path, loc string, forget bool) (string, error)
	Forget(ctx context.Context, id string) error
	Show(ctx context.Context, id string) (store.Record, bool, error)
	SetVariant(v string) error
	Workspace() *engine.Workspace
	Project() *project.Project
}

var _ Host = (*app.Application)(nil)

// scriptContext returns the context the running chunk was started with.
func scriptContext(L *glua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// pushResult pushes v as a table, or nil and the message of err. A nil
// slice becomes an empty table.
func pushResult(L *glua.LState, v any, err error) int {
	if err != nil {
		return pushError(L, err)
	}
	lv, cerr := toLua(L, v)
	if cerr != nil {
		L.RaiseError("convert result: %v", cerr)
		return 0
	}
	if lv == glua.LNil {
		lv = L.NewTable()
	}
	L.Push(lv)
	return 1
}

// pushPartial pushes v as a table followed by the message of err, if
// any. Operations that fail for some files still report the others.
func pushPartial(L *glua.LState, v any, err error) int {
	n := pushResult(L, v, nil)
	if err != nil {
		L.Push(glua.LString(err.Error()))
		n++
	}
	return n
}

// pushError pushes nil and the message of err.
func pushError(L *glua.LState, err error) int {
	L.Push(glua.LNil)
	L.Push(glua.LString(err.Error()))
	return 2
}

// toLua converts v to Lua through its JSON encoding, so tables carry the
// same field names as the tool's JSON output.
func toLua(L *glua.LState, v any) (glua.LValue, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return glua.LNil, fmt.Errorf("encode %T: %w", v, err)
	}
	return fromJSON(L, gjson.ParseBytes(data)), nil
}

func fromJSON(L *glua.LState, r gjson.Result) glua.LValue {
	switch r.Type {
	case gjson.True:
		return glua.LTrue
	case gjson.False:
		return glua.LFalse
	case gjson.Number:
		return glua.LNumber(r.Num)
	case gjson.String:
		return glua.LString(r.Str)
	case gjson.JSON:
		tbl := L.NewTable()
		if r.IsArray() {
			i := 1
			r.ForEach(func(_, item gjson.Result) bool {
				tbl.RawSetInt(i, fromJSON(L, item))
				i++
				return true
			})
			return tbl
		}
		r.ForEach(func(key, item gjson.Result) bool {
			tbl.RawSetString(key.Str, fromJSON(L, item))
			return true
		})
		return tbl
	default:
		return glua.LNil
	}
}
