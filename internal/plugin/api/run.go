package api

import (
	"context"

	"github.com/dshills/fragments/internal/plugin/lua"
)

// Run executes a script against host in a fresh sandboxed state. The
// capabilities granted through opts decide which modules it can use.
func Run(ctx context.Context, host Host, chunk, code string, opts ...lua.StateOption) error {
	reg, err := DefaultRegistry(host)
	if err != nil {
		return err
	}

	st := lua.NewState(opts...)
	defer st.Close()

	if _, err := reg.InjectAll(st); err != nil {
		return err
	}
	return st.Run(ctx, chunk, code)
}
