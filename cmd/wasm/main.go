//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"syscall/js"

	"github.com/inamate/inkboard/internal/engine"
	"github.com/inamate/inkboard/internal/gateway"
	"github.com/inamate/inkboard/internal/scene"
	"github.com/inamate/inkboard/internal/tool"
)

var eng *engine.Engine

type initOptions struct {
	ProjectID string  `json:"projectId"`
	APIBase   string  `json:"apiBase"`
	Token     string  `json:"token"`
	GridPitch float64 `json:"gridPitch"`
	ShowGrid  bool    `json:"showGrid"`
}

func main() {
	inkboard := js.Global().Get("Object").New()

	// --- Setup ---
	inkboard.Set("init", js.FuncOf(initEngine))
	inkboard.Set("mount", js.FuncOf(mount))
	inkboard.Set("unmount", js.FuncOf(unmount))

	// --- Commands (frontend → engine) ---
	inkboard.Set("pointerDown", js.FuncOf(pointerDown))
	inkboard.Set("pointerMove", js.FuncOf(pointerMove))
	inkboard.Set("pointerUp", js.FuncOf(pointerUp))
	inkboard.Set("pointerLeave", js.FuncOf(pointerLeave))
	inkboard.Set("setTool", js.FuncOf(setTool))
	inkboard.Set("setBrush", js.FuncOf(setBrush))
	inkboard.Set("zoom", js.FuncOf(zoom))
	inkboard.Set("pan", js.FuncOf(pan))
	inkboard.Set("resetView", js.FuncOf(resetView))
	inkboard.Set("setGrid", js.FuncOf(setGrid))
	inkboard.Set("toggleGrid", js.FuncOf(toggleGrid))
	inkboard.Set("addRectangle", js.FuncOf(addRectangle))
	inkboard.Set("addText", js.FuncOf(addText))
	inkboard.Set("deleteElement", js.FuncOf(deleteElement))
	inkboard.Set("select", js.FuncOf(selectElement))
	inkboard.Set("clear", js.FuncOf(clearCanvas))

	// --- Persistence (async, return promises) ---
	inkboard.Set("save", js.FuncOf(save))
	inkboard.Set("refresh", js.FuncOf(refresh))
	inkboard.Set("load", js.FuncOf(load))
	inkboard.Set("deleteArtifact", js.FuncOf(deleteArtifact))

	// --- Queries (frontend ← engine) ---
	inkboard.Set("render", js.FuncOf(render))
	inkboard.Set("markup", js.FuncOf(markup))
	inkboard.Set("exportSVG", js.FuncOf(exportSVG))
	inkboard.Set("hitTest", js.FuncOf(hitTest))
	inkboard.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	inkboard.Set("getStatus", js.FuncOf(getStatus))
	inkboard.Set("getArtifacts", js.FuncOf(getArtifacts))

	js.Global().Set("inkboardEngine", inkboard)
	js.Global().Set("inkboardWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func fail(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func toJSON(v any) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(string(data))
}

var errNotInitialized = errors.New("engine not initialized")

// guard reports a JS error object when the engine has not been created.
func guard(fn func(args []js.Value) interface{}) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if eng == nil {
			return fail(errNotInitialized)
		}
		return fn(args)
	}
}

func floatArgs(args []js.Value, n int) ([]float64, bool) {
	if len(args) < n {
		return nil, false
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = args[i].Float()
	}
	return out, true
}

// promise runs fn off the JS event loop; net/http blocks under wasm.
func promise(fn func() (any, error)) interface{} {
	handler := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve, reject := args[0], args[1]
		go func() {
			v, err := fn()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(string(data))
		}()
		return nil
	})
	return js.Global().Get("Promise").New(handler)
}

// notify forwards engine notifications to window.inkboardNotify if set.
func notify(n engine.Notification) {
	cb := js.Global().Get("inkboardNotify")
	if cb.Type() != js.TypeFunction {
		return
	}
	cb.Invoke(string(n.Level), n.Message)
}

// --- Setup ---

func initEngine(this js.Value, args []js.Value) interface{} {
	var opts initOptions
	if len(args) > 0 && args[0].Type() == js.TypeString {
		if err := json.Unmarshal([]byte(args[0].String()), &opts); err != nil {
			return fail(err)
		}
	}
	if opts.ProjectID == "" {
		opts.ProjectID = "proj_playground"
	}

	var gw gateway.Gateway
	if opts.APIBase != "" {
		gw = gateway.NewClient(strings.TrimRight(opts.APIBase, "/"), opts.Token)
	}

	eng = engine.New(engine.Options{
		ProjectID: opts.ProjectID,
		Gateway:   gw,
		Notify:    notify,
		GridPitch: opts.GridPitch,
		ShowGrid:  opts.ShowGrid,
	})
	return ok()
}

var mount = guard(func(args []js.Value) interface{} {
	v, good := floatArgs(args, 2)
	if !good {
		return fail(errors.New("mount needs width and height"))
	}
	eng.Mount(v[0], v[1])
	return ok()
})

var unmount = guard(func(args []js.Value) interface{} {
	eng.Unmount()
	return nil
})

// --- Commands ---

var pointerDown = guard(func(args []js.Value) interface{} {
	if v, good := floatArgs(args, 2); good {
		eng.PointerDown(v[0], v[1])
	}
	return nil
})

var pointerMove = guard(func(args []js.Value) interface{} {
	if v, good := floatArgs(args, 2); good {
		eng.PointerMove(v[0], v[1])
	}
	return nil
})

var pointerUp = guard(func(args []js.Value) interface{} {
	if v, good := floatArgs(args, 2); good {
		eng.PointerUp(v[0], v[1])
	}
	return nil
})

var pointerLeave = guard(func(args []js.Value) interface{} {
	eng.PointerLeave()
	return nil
})

var setTool = guard(func(args []js.Value) interface{} {
	if len(args) < 1 {
		return fail(errors.New("missing tool"))
	}
	t, err := tool.ParseTool(args[0].String())
	if err != nil {
		return fail(err)
	}
	eng.SetTool(t)
	return ok()
})

var setBrush = guard(func(args []js.Value) interface{} {
	if len(args) < 1 {
		return fail(errors.New("missing brush JSON"))
	}
	style := scene.DefaultStyle()
	if err := json.Unmarshal([]byte(args[0].String()), &style); err != nil {
		return fail(err)
	}
	eng.SetBrush(style)
	return ok()
})

var zoom = guard(func(args []js.Value) interface{} {
	v, good := floatArgs(args, 3)
	if !good {
		return nil
	}
	return toJSON(eng.Zoom(v[0], v[1], v[2]))
})

var pan = guard(func(args []js.Value) interface{} {
	v, good := floatArgs(args, 2)
	if !good {
		return nil
	}
	return toJSON(eng.Pan(v[0], v[1]))
})

var resetView = guard(func(args []js.Value) interface{} {
	eng.ResetView()
	return nil
})

var setGrid = guard(func(args []js.Value) interface{} {
	if len(args) > 0 {
		eng.SetGrid(args[0].Truthy())
	}
	return nil
})

var toggleGrid = guard(func(args []js.Value) interface{} {
	return js.ValueOf(eng.ToggleGrid())
})

var addRectangle = guard(func(args []js.Value) interface{} {
	return js.ValueOf(eng.AddRectangle())
})

var addText = guard(func(args []js.Value) interface{} {
	text := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		text = args[0].String()
	}
	return js.ValueOf(eng.AddAnnotation(text))
})

var deleteElement = guard(func(args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeString {
		return js.ValueOf(eng.DeleteSelected())
	}
	return js.ValueOf(eng.Delete(args[0].String()))
})

var selectElement = guard(func(args []js.Value) interface{} {
	id := ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		id = args[0].String()
	}
	if err := eng.Select(id); err != nil {
		return fail(err)
	}
	return ok()
})

var clearCanvas = guard(func(args []js.Value) interface{} {
	eng.Clear()
	return nil
})

// --- Persistence ---

var save = guard(func(args []js.Value) interface{} {
	name, description := "", ""
	if len(args) > 0 && args[0].Type() == js.TypeString {
		name = args[0].String()
	}
	if len(args) > 1 && args[1].Type() == js.TypeString {
		description = args[1].String()
	}
	return promise(func() (any, error) {
		pending, err := eng.Save(context.Background(), name, description)
		if err != nil {
			return nil, err
		}
		return pending.Wait(context.Background())
	})
})

var refresh = guard(func(args []js.Value) interface{} {
	return promise(func() (any, error) {
		return eng.Refresh(context.Background())
	})
})

var load = guard(func(args []js.Value) interface{} {
	if len(args) < 1 {
		return fail(errors.New("missing artifact id"))
	}
	if err := eng.Load(args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
})

var deleteArtifact = guard(func(args []js.Value) interface{} {
	if len(args) < 1 {
		return fail(errors.New("missing artifact id"))
	}
	id := args[0].String()
	return promise(func() (any, error) {
		if err := eng.DeleteArtifact(context.Background(), id); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	})
})

// --- Queries ---

var render = guard(func(args []js.Value) interface{} {
	return js.ValueOf(eng.Render())
})

var markup = guard(func(args []js.Value) interface{} {
	m, err := eng.Markup()
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(m)
})

var exportSVG = guard(func(args []js.Value) interface{} {
	var sb strings.Builder
	if err := eng.Export(&sb); err != nil {
		return fail(err)
	}
	return js.ValueOf(sb.String())
})

var hitTest = guard(func(args []js.Value) interface{} {
	v, good := floatArgs(args, 2)
	if !good {
		return js.ValueOf("")
	}
	return js.ValueOf(eng.HitTest(v[0], v[1]))
})

var getSelectionBounds = guard(func(args []js.Value) interface{} {
	return toJSON(eng.SelectionBounds())
})

var getStatus = guard(func(args []js.Value) interface{} {
	return toJSON(eng.Status())
})

var getArtifacts = guard(func(args []js.Value) interface{} {
	type summary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	list := eng.SavedArtifacts()
	out := make([]summary, len(list))
	for i, a := range list {
		out[i] = summary{ID: a.ID, Name: a.Name}
	}
	return toJSON(out)
})
