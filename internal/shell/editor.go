// Package shell implements the line-oriented page editor used by landrctl.
package shell

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	jujuerrors "github.com/juju/errors"

	"landr/internal/engine/autosave"
	"landr/internal/engine/form"
	"landr/internal/pkg/nested"
)

// Editor feeds operator commands into an auto-save session.
//
//	path=value     set a field (value parsed for the field's type)
//	:append path   add a blank record to an array-object field
//	:remove path i drop entry i of a list field
//	:show [path]   print the document or one value
//	:check         run field validation locally
//	:save          save now
//	:dismiss       clear the last save error
//	:quit          stop editing; unsaved edits are dropped
//
// End of input saves pending edits instead of dropping them.
type Editor struct {
	session  *autosave.Session
	renderer *form.Renderer
	out      io.Writer
}

func NewEditor(session *autosave.Session, renderer *form.Renderer, out io.Writer) *Editor {
	return &Editor{session: session, renderer: renderer, out: out}
}

// Run reads commands from in until :quit or end of input. Edits still
// pending at end of input are saved before returning. The session is
// closed on return.
func (e *Editor) Run(ctx context.Context, in io.Reader) error {
	defer e.session.Close()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		quit, err := e.Exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(e.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if !e.session.Dirty() {
		return nil
	}
	fmt.Fprintln(e.out, "end of input, saving pending changes")
	return e.session.SaveNow(ctx)
}

// Exec runs one command line.
func (e *Editor) Exec(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false, nil
	}

	if !strings.HasPrefix(line, ":") {
		return false, e.set(line)
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "quit", "q":
		if e.session.Dirty() {
			fmt.Fprintln(e.out, "discarding unsaved changes")
		}
		return true, nil
	case "save", "w":
		if !e.session.Dirty() {
			fmt.Fprintln(e.out, "nothing to save")
			return false, nil
		}
		return false, e.session.SaveNow(ctx)
	case "dismiss":
		e.session.DismissError()
		return false, nil
	case "append":
		return false, e.appendItem(arg)
	case "remove":
		return false, e.remove(arg)
	case "show":
		return false, e.show(arg)
	case "check":
		e.check()
		return false, nil
	}
	return false, jujuerrors.NotValidf("command %q", cmd)
}

func (e *Editor) set(line string) error {
	path, raw, ok := strings.Cut(line, "=")
	if !ok {
		return jujuerrors.NotValidf("line %q, want path=value or :command", line)
	}
	path = strings.TrimSpace(path)

	def, _, found := e.renderer.Registry().Resolve(path)
	if !found {
		return jujuerrors.NotFoundf("field %q", path)
	}
	v, err := form.ParseInput(def, raw)
	if err != nil {
		return jujuerrors.Annotate(err, path)
	}
	return e.session.Edit(path, v)
}

func (e *Editor) appendItem(path string) error {
	doc, err := e.renderer.AppendItem(e.session.Doc(), path)
	if err != nil {
		return err
	}
	list, _ := nested.Get(doc, path)
	return e.session.Edit(path, list)
}

func (e *Editor) remove(arg string) error {
	path, idx, ok := strings.Cut(arg, " ")
	if !ok {
		return jujuerrors.NotValidf("remove arguments %q, want <path> <index>", arg)
	}
	var i int
	if _, err := fmt.Sscanf(strings.TrimSpace(idx), "%d", &i); err != nil {
		return jujuerrors.NotValidf("index %q", idx)
	}
	doc, err := form.RemoveAt(e.session.Doc(), path, i)
	if err != nil {
		return err
	}
	list, _ := nested.Get(doc, path)
	return e.session.Edit(path, list)
}

func (e *Editor) show(path string) error {
	var v any = e.session.Doc()
	if path != "" {
		found, ok := nested.Get(v, path)
		if !ok {
			return jujuerrors.NotFoundf("value at %q", path)
		}
		v = found
	}
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *Editor) check() {
	issues := e.renderer.Registry().ValidateDocument(e.session.Doc())
	if len(issues) == 0 {
		fmt.Fprintln(e.out, "ok")
		return
	}
	for _, issue := range issues {
		fmt.Fprintln(e.out, issue.String())
	}
}

// Editable strips the server-managed keys from a page document so it can be
// sent back as an update.
func Editable(doc map[string]any) map[string]any {
	for _, key := range []string{"id", "images", "createdAt", "updatedAt", "publishedAt"} {
		doc = nested.Delete(doc, key)
	}
	return doc
}
