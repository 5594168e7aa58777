package main

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.mongodb.org/mongo-driver/bson"
)

// Renderer prints the outcome of the sequence. Query code never writes to
// the console itself.
type Renderer interface {
	Message(msg string)
	Section(title string)
	Result(res StepResult)
	Failure(step Step, err error)
}

func NewRenderer(format string, w io.Writer) Renderer {
	if format == "json" {
		return &jsonRenderer{w: w}
	}
	return &textRenderer{w: w}
}

type textRenderer struct{ w io.Writer }

func (t *textRenderer) Message(msg string) { fmt.Fprintln(t.w, msg) }

func (t *textRenderer) Section(title string) { fmt.Fprintf(t.w, "\n--- %s ---\n", title) }

func (t *textRenderer) Failure(step Step, err error) {
	fmt.Fprintf(t.w, "\n%s: FAILED: %v\n", step.Label, err)
}

func (t *textRenderer) Result(res StepResult) {
	fmt.Fprintf(t.w, "\n%s:\n", res.Label)

	switch v := res.Value.(type) {
	case UpdateStatus:
		fmt.Fprintf(t.w, "price of %q set to %.2f (matched %d, modified %d)\n", v.Title, v.Price, v.Matched, v.Modified)
	case DeleteStatus:
		if v.Deleted == 0 {
			fmt.Fprintf(t.w, "%q not found, nothing deleted\n", v.Title)
			return
		}
		fmt.Fprintf(t.w, "%q deleted from the collection\n", v.Title)
	case IndexStatus:
		fmt.Fprintf(t.w, "index %s ready on %s\n", v.Name, extJSON(v.Keys))
	case ExplainReport:
		t.explain(v)
	default:
		t.documents(res.Value)
	}
}

func (t *textRenderer) explain(rep ExplainReport) {
	idx := rep.IndexName
	if idx == "" {
		idx = "none (collection scan)"
	}
	fmt.Fprintf(t.w, "  plan           %s\n", rep.Stage)
	fmt.Fprintf(t.w, "  index          %s\n", idx)
	fmt.Fprintf(t.w, "  returned       %s\n", humanize.Comma(rep.ReturnedDocs))
	fmt.Fprintf(t.w, "  keys examined  %s\n", humanize.Comma(rep.KeysExamined))
	fmt.Fprintf(t.w, "  docs examined  %s\n", humanize.Comma(rep.DocsExamined))
	fmt.Fprintf(t.w, "  execution time %s\n", time.Duration(rep.ExecutionMillis)*time.Millisecond)
}

// documents prints a slice of result documents, one extended-JSON line each.
func (t *textRenderer) documents(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		fmt.Fprintf(t.w, "%+v\n", v)
		return
	}
	if rv.Len() == 0 {
		fmt.Fprintln(t.w, "(no documents)")
		return
	}
	for i := 0; i < rv.Len(); i++ {
		fmt.Fprintf(t.w, "  %s\n", extJSON(rv.Index(i).Interface()))
	}
	fmt.Fprintf(t.w, "(%s %s)\n", humanize.Comma(int64(rv.Len())), plural(rv.Len(), "document", "documents"))
}

func extJSON(v any) string {
	b, err := bson.MarshalExtJSON(v, false, false)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// jsonRenderer writes one relaxed extended-JSON object per line.
type jsonRenderer struct{ w io.Writer }

func (j *jsonRenderer) write(doc bson.D) {
	b, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		b, _ = bson.MarshalExtJSON(bson.D{{Key: "error", Value: err.Error()}}, false, false)
	}
	fmt.Fprintln(j.w, strings.TrimSpace(string(b)))
}

func (j *jsonRenderer) Message(msg string) {
	j.write(bson.D{{Key: "message", Value: msg}})
}

// Sections are carried on every result line instead.
func (j *jsonRenderer) Section(string) {}

func (j *jsonRenderer) Result(res StepResult) {
	j.write(bson.D{
		{Key: "section", Value: res.Section},
		{Key: "step", Value: res.Step},
		{Key: "label", Value: res.Label},
		{Key: "durationMillis", Value: res.Duration.Milliseconds()},
		{Key: "result", Value: res.Value},
	})
}

func (j *jsonRenderer) Failure(step Step, err error) {
	j.write(bson.D{
		{Key: "section", Value: step.Section},
		{Key: "step", Value: step.Name},
		{Key: "label", Value: step.Label},
		{Key: "error", Value: err.Error()},
	})
}
