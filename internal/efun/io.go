package efun

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kythorn/lpgo/internal/interp"
	"github.com/kythorn/lpgo/internal/object"
	"github.com/kythorn/lpgo/internal/persist"
	"github.com/kythorn/lpgo/internal/value"
)

var ioEfuns = map[string]efunFunc{
	"write":          efunWrite,
	"tell_object":    efunTellObject,
	"tell_room":      efunTellRoom,
	"read_file":      efunReadFile,
	"write_file":     efunWriteFile,
	"get_dir":        efunGetDir,
	"save_object":    efunSaveObject,
	"restore_object": efunRestoreObject,
	"command":        efunCommand,
}

func (r *Registry) mudlibRoot() string {
	if r.master != nil {
		return r.master.Root()
	}
	return r.table.Root()
}

// resolveFSPath canonicalizes p against the caller's cwd and joins it
// onto the mudlib root, yielding a real filesystem path for data-file
// efuns (distinct from FileLoader.ReadSource's ".c" source lookup).
func (r *Registry) resolveFSPath(cwd, p string) (canonical, full string, err error) {
	canonical, err = r.table.Canonicalize(cwd, p)
	if err != nil {
		return "", "", err
	}
	return canonical, filepath.Join(r.mudlibRoot(), canonical), nil
}

func efunWrite(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || r.output == nil {
		return value.NilValue, nil
	}
	r.output.Write(it.ThisPlayer(), renderText(args[0]))
	return value.NewInt(1), nil
}

func efunTellObject(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 2 || r.output == nil {
		return value.NilValue, nil
	}
	obj := resolveArg(r.table, args[0])
	r.output.TellObject(obj, renderText(args[1]))
	return value.NewInt(1), nil
}

func efunTellRoom(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 2 || r.output == nil {
		return value.NilValue, nil
	}
	room := resolveArg(r.table, args[0])
	var except []*object.Object
	if len(args) >= 3 && args[2].Kind() == value.Array {
		for _, e := range args[2].Elems() {
			if o := resolveArg(r.table, e); o != nil {
				except = append(except, o)
			}
		}
	}
	r.output.TellRoom(room, renderText(args[1]), except)
	return value.NewInt(1), nil
}

func renderText(v value.Value) string {
	if v.Kind() == value.String {
		return v.Str()
	}
	return value.Render(v)
}

func efunReadFile(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NewInt(0), nil
	}
	canon, full, err := r.resolveFSPath(act.Object.Cwd(), args[0].Str())
	if err != nil {
		return value.NewInt(0), nil
	}
	if !r.checkCapability(it, act, "read", canon) {
		return value.NewInt(0), nil
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return value.NewInt(0), nil
	}
	return value.NewString(string(data)), nil
}

func efunWriteFile(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 2 || args[0].Kind() != value.String {
		return value.NewInt(0), nil
	}
	canon, full, err := r.resolveFSPath(act.Object.Cwd(), args[0].Str())
	if err != nil {
		return value.NewInt(0), nil
	}
	if !r.checkCapability(it, act, "write", canon) {
		return value.NewInt(0), nil
	}
	appendMode := len(args) >= 3 && args[2].Truthy()
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return value.NewInt(0), nil
	}
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(full, flags, 0644)
	if err != nil {
		return value.NewInt(0), nil
	}
	defer f.Close()
	if _, err := f.WriteString(renderText(args[1])); err != nil {
		return value.NewInt(0), nil
	}
	return value.NewInt(1), nil
}

func efunGetDir(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NewArray(nil), nil
	}
	pattern := args[0].Str()
	dirPart, namePart := filepath.Split(pattern)
	if namePart == "" {
		namePart = "*"
	}
	canon, full, err := r.resolveFSPath(act.Object.Cwd(), strings.TrimSuffix(dirPart, "/"))
	if err != nil {
		return value.NewArray(nil), nil
	}
	if !r.checkCapability(it, act, "read", canon) {
		return value.NewArray(nil), nil
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return value.NewArray(nil), nil
	}
	var names []string
	for _, e := range entries {
		if ok, _ := filepath.Match(namePart, e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	out := make([]value.Value, len(names))
	for i, n := range names {
		out[i] = value.NewString(n)
	}
	return value.NewArray(out), nil
}

func efunSaveObject(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NewInt(0), nil
	}
	canon, full, err := r.resolveFSPath(act.Object.Cwd(), args[0].Str())
	if err != nil {
		return value.NewInt(0), nil
	}
	if !r.checkCapability(it, act, "write", canon) {
		return value.NewInt(0), nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return value.NewInt(0), nil
	}
	if err := persist.Save(act.Object, full); err != nil {
		return value.NewInt(0), nil
	}
	return value.NewInt(1), nil
}

func efunRestoreObject(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String {
		return value.NewInt(0), nil
	}
	canon, full, err := r.resolveFSPath(act.Object.Cwd(), args[0].Str())
	if err != nil {
		return value.NewInt(0), nil
	}
	if !r.checkCapability(it, act, "read", canon) {
		return value.NewInt(0), nil
	}
	if err := persist.Restore(act.Object, full, r.table); err != nil {
		return value.NewInt(0), nil
	}
	if r.store != nil {
		if err := r.store.RecordRestorePath(act.Object.Blueprint().Path, canon); err != nil {
			r.log.Warn("failed to record restore path", zap.String("path", canon), zap.Error(err))
		}
	}
	return value.NewInt(1), nil
}

func efunCommand(r *Registry, it *interp.Interp, act *interp.Activation, args []value.Value) (value.Value, error) {
	if len(args) < 1 || args[0].Kind() != value.String || r.output == nil {
		return value.NewInt(0), nil
	}
	r.output.Command(it.ThisPlayer(), args[0].Str())
	return value.NewInt(1), nil
}
