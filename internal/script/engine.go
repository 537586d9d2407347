// Package script runs Lua event hooks against the viewer bus.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/meshview/internal/event"
	"github.com/dshills/meshview/internal/event/topic"
	"github.com/dshills/meshview/internal/log"
)

var ErrEngineClosed = errors.New("script: engine closed")

// hook is one registered on_event callback.
type hook struct {
	pattern topic.Topic
	fn      *lua.LFunction
}

// Engine hosts a single Lua state and dispatches bus events to hooks
// registered via on_event(topic, fn).
//
// gopher-lua states are not goroutine-safe; all Lua execution is
// serialized behind the engine mutex.
type Engine struct {
	L      *lua.LState
	logger *log.Logger

	mu     sync.Mutex
	hooks  []hook
	closed bool

	sub event.Subscription
}

// NewEngine creates a sandboxed Lua engine subscribed to all bus topics.
func NewEngine(bus *event.Bus, logger *log.Logger) (*Engine, error) {
	if bus == nil {
		return nil, errors.New("script: nil bus")
	}
	if logger == nil {
		logger = log.Discard()
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	e := &Engine{L: L, logger: logger.WithComponent("script")}
	L.SetGlobal("on_event", L.NewFunction(e.luaOnEvent))
	L.SetGlobal("log", L.NewFunction(e.luaLog))

	sub, err := bus.SubscribeFunc("**", e.dispatch)
	if err != nil {
		L.Close()
		return nil, err
	}
	e.sub = sub
	return e, nil
}

// luaOnEvent implements on_event(topic, fn).
func (e *Engine) luaOnEvent(L *lua.LState) int {
	pattern := topic.Topic(L.CheckString(1))
	fn := L.CheckFunction(2)
	if !pattern.IsValid() {
		L.ArgError(1, fmt.Sprintf("invalid topic %q", pattern))
		return 0
	}
	e.hooks = append(e.hooks, hook{pattern: pattern, fn: fn})
	return 0
}

// luaLog implements log(msg) for hook scripts.
func (e *Engine) luaLog(L *lua.LState) int {
	e.logger.Info("%s", L.CheckString(1))
	return 0
}

// LoadDir executes every *.lua file in dir in lexical order. A missing
// directory is not an error.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read script dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".lua") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	for _, file := range files {
		if err := e.DoFile(file); err != nil {
			return fmt.Errorf("script %s: %w", filepath.Base(file), err)
		}
		e.logger.Debug("loaded script: %s", file)
	}
	return nil
}

// DoFile executes a single Lua file.
func (e *Engine) DoFile(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	return e.doWithRecovery(func() error { return e.L.DoFile(path) })
}

// DoString executes a Lua chunk.
func (e *Engine) DoString(code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	return e.doWithRecovery(func() error { return e.L.DoString(code) })
}

func (e *Engine) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// dispatch runs every hook whose pattern matches the event topic.
// Hook failures are logged and never propagate to the bus.
func (e *Engine) dispatch(ctx context.Context, env event.Envelope) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	var matched []*lua.LFunction
	for _, h := range e.hooks {
		if topic.Match(h.pattern, env.Topic) {
			matched = append(matched, h.fn)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	payload := e.payloadTable(env.Payload)
	for _, fn := range matched {
		err := e.doWithRecovery(func() error {
			return e.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true},
				lua.LString(env.Topic), payload)
		})
		if err != nil {
			e.logger.Warn("hook for %s failed: %v", env.Topic, err)
		}
	}
	return nil
}

// payloadTable converts an event payload to a Lua table by way of its
// JSON form. Unmarshalable payloads become nil.
func (e *Engine) payloadTable(payload any) lua.LValue {
	if payload == nil {
		return lua.LNil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return lua.LNil
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return lua.LNil
	}
	return e.toLua(decoded)
}

func (e *Engine) toLua(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := e.L.NewTable()
		for _, item := range val {
			t.Append(e.toLua(item))
		}
		return t
	case map[string]any:
		t := e.L.NewTable()
		for k, item := range val {
			t.RawSetString(k, e.toLua(item))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// HookCount returns the number of registered hooks.
func (e *Engine) HookCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.hooks)
}

// Close cancels the bus subscription and releases the Lua state.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.sub.Cancel()
	e.L.Close()
	return nil
}
