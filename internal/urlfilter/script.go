package urlfilter

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// ScriptPredicate is a JavaScript boolean expression over the variable
// `href`, e.g. `href.indexOf("/combo-") < 0`. It lets retailer profiles carry
// link rules without a code change.
type ScriptPredicate struct {
	src string
	mu  sync.Mutex // goja runtimes are not goroutine safe
	vm  *goja.Runtime
	fn  goja.Callable
}

// CompileScript compiles expr once; Accept then only calls it
func CompileScript(expr string) (*ScriptPredicate, error) {
	vm := goja.New()
	v, err := vm.RunString("(function(href) { return (" + expr + "); })")
	if err != nil {
		return nil, fmt.Errorf("compile link filter: %w", err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("compile link filter: expression is not callable")
	}
	return &ScriptPredicate{src: expr, vm: vm, fn: fn}, nil
}

// Accept evaluates the expression for href. A throwing script rejects.
func (s *ScriptPredicate) Accept(href string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.fn(goja.Undefined(), s.vm.ToValue(href))
	if err != nil {
		log.Debug().Err(err).Str("url", href).Str("script", s.src).Msg("Link filter threw")
		return false
	}
	return res.ToBoolean()
}

// String returns the source expression
func (s *ScriptPredicate) String() string {
	return s.src
}
