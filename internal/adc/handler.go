package adc

// Handler is implemented by a component that reacts to one or more ADC
// command names. Dispatch keys on Command.Name (the 3-character fourCC),
// mirroring AdcCommand.h's CMD_* dispatch table without its C++ template
// machinery: a Go map of string to func is the idiomatic equivalent.
type HandlerFunc func(*Command) error

// Router fans a parsed Command out to the HandlerFunc registered for its
// Name, falling back to a default for anything unrecognized. Per spec.md
// §4.1, an unrecognized command name is logged and ignored, never an error.
type Router struct {
	handlers map[string]HandlerFunc
	fallback HandlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

func (r *Router) On(name string, fn HandlerFunc) {
	r.handlers[name] = fn
}

func (r *Router) OnUnhandled(fn HandlerFunc) {
	r.fallback = fn
}

func (r *Router) Dispatch(c *Command) error {
	if fn, ok := r.handlers[c.Name]; ok {
		return fn(c)
	}
	if r.fallback != nil {
		return r.fallback(c)
	}
	return nil
}
