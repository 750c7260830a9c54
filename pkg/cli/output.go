package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/jguan/llmfit/pkg/unit"
)

type OutputFormat string

const (
	OutputTable OutputFormat = "table"
	OutputJSON  OutputFormat = "json"
	OutputYAML  OutputFormat = "yaml"
)

type OutputOptions struct {
	Format    OutputFormat
	Quiet     bool
	Writer    io.Writer
	ErrWriter io.Writer
}

func NewOutputOptions() *OutputOptions {
	return &OutputOptions{
		Format:    OutputTable,
		Quiet:     false,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
	}
}

// ParseOutputFormat accepts table, json or yaml in any case.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputTable, OutputJSON, OutputYAML:
		return f, nil
	case "":
		return OutputTable, nil
	default:
		return "", fmt.Errorf("invalid output format %q (valid: table, json, yaml)", s)
	}
}

func FormatOutput(data any, format OutputFormat) (string, error) {
	switch format {
	case OutputJSON:
		return formatJSON(data)
	case OutputYAML:
		return formatYAML(data)
	case OutputTable:
		return formatTable(data)
	default:
		return formatTable(data)
	}
}

func formatJSON(data any) (string, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal JSON: %w", err)
	}
	return string(b), nil
}

func formatYAML(data any) (string, error) {
	b, err := yaml.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal YAML: %w", err)
	}
	return string(b), nil
}

// formatTable renders a slice of row structs as columns, a single struct
// or map as KEY VALUE lines, and anything else with %v. Column headers come
// from the json tag, so display rows name their columns there.
func formatTable(data any) (string, error) {
	if data == nil {
		return "", nil
	}

	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "", nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return formatRows(v), nil
	case reflect.Struct:
		return formatRecord(v), nil
	case reflect.Map:
		return formatMap(v), nil
	default:
		return fmt.Sprintf("%v", v.Interface()), nil
	}
}

type column struct {
	header string
	index  int
}

// columns lists the exported fields of a struct type in declaration order.
func columns(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			name = f.Name
		}
		cols = append(cols, column{header: name, index: i})
	}
	return cols
}

func formatRows(v reflect.Value) string {
	if v.Len() == 0 {
		return "No results"
	}

	elem := v.Type().Elem()
	for elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	if elem.Kind() != reflect.Struct {
		for i := 0; i < v.Len(); i++ {
			fmt.Fprintln(w, cell(v.Index(i)))
		}
		w.Flush()
		return sb.String()
	}

	cols := columns(elem)
	headers := make([]string, len(cols))
	rules := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.header
		rules[i] = strings.Repeat("-", len(c.header))
	}
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	fmt.Fprintln(w, strings.Join(rules, "\t"))

	values := make([]string, len(cols))
	for i := 0; i < v.Len(); i++ {
		row := reflect.Indirect(v.Index(i))
		for j, c := range cols {
			if row.IsValid() {
				values[j] = cell(row.Field(c.index))
			} else {
				values[j] = "-"
			}
		}
		fmt.Fprintln(w, strings.Join(values, "\t"))
	}

	w.Flush()
	return sb.String()
}

func formatRecord(v reflect.Value) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	for _, c := range columns(v.Type()) {
		fmt.Fprintf(w, "%s\t%s\n", c.header, cell(v.Field(c.index)))
	}
	w.Flush()
	return sb.String()
}

// formatMap prints keys in sorted order so output is stable across runs.
func formatMap(v reflect.Value) string {
	keys := make([]string, 0, v.Len())
	byKey := make(map[string]reflect.Value, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k := fmt.Sprintf("%v", iter.Key().Interface())
		keys = append(keys, k)
		byKey[k] = iter.Value()
	}
	sort.Strings(keys)

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", k, cell(byKey[k]))
	}
	w.Flush()
	return sb.String()
}

// cell renders one table value. Missing optional values print as "-" and an
// infinite utilization as "inf".
func cell(v reflect.Value) string {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "-"
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return "-"
	}

	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsInf(f, 1) {
			return "inf"
		}
		return strconv.FormatFloat(f, 'f', 2, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return fmt.Sprintf("%v", v.Interface())
		}
		return string(b)
	}
}

func PrintOutput(data any, opts *OutputOptions) error {
	if opts.Quiet {
		return nil
	}

	output, err := FormatOutput(data, opts.Format)
	if err != nil {
		return err
	}

	if output != "" && !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	fmt.Fprint(opts.Writer, output)
	return nil
}

// PrintRows prints rows as a table, or full as JSON/YAML. Table rows are
// display structs; full keeps every field for machine consumers.
func PrintRows(rows, full any, opts *OutputOptions) error {
	if opts.Format == OutputJSON || opts.Format == OutputYAML {
		return PrintOutput(full, opts)
	}
	return PrintOutput(rows, opts)
}

func errWriter(opts *OutputOptions) io.Writer {
	if opts.ErrWriter != nil {
		return opts.ErrWriter
	}
	return os.Stderr
}

// PrintError reports err on the error writer. UnitErrors also carry their
// code and details.
func PrintError(err error, opts *OutputOptions) {
	w := errWriter(opts)
	errInfo := map[string]any{
		"message": err.Error(),
	}
	if ue, ok := unit.AsUnitError(err); ok {
		errInfo["code"] = string(ue.Code)
		if len(ue.Details) > 0 {
			errInfo["details"] = ue.Details
		}
	}

	if opts.Format == OutputJSON {
		data := map[string]any{
			"success": false,
			"error":   errInfo,
		}
		b, _ := json.MarshalIndent(data, "", "  ")
		fmt.Fprintln(w, string(b))
	} else if opts.Format == OutputYAML {
		data := map[string]any{
			"success": false,
			"error":   errInfo,
		}
		b, _ := yaml.Marshal(data)
		fmt.Fprint(w, string(b))
	} else {
		fmt.Fprintf(w, "Error: %v\n", err)
		if ue, ok := unit.AsUnitError(err); ok {
			if candidates, ok := ue.Details["candidates"].([]string); ok {
				fmt.Fprintf(w, "Did you mean one of: %s\n", strings.Join(candidates, ", "))
			}
		}
	}
}

func PrintSuccess(message string, opts *OutputOptions) {
	if opts.Quiet {
		return
	}

	if opts.Format == OutputJSON {
		data := map[string]any{
			"success": true,
			"message": message,
		}
		b, _ := json.MarshalIndent(data, "", "  ")
		fmt.Fprintln(opts.Writer, string(b))
	} else if opts.Format == OutputYAML {
		data := map[string]any{
			"success": true,
			"message": message,
		}
		b, _ := yaml.Marshal(data)
		fmt.Fprint(opts.Writer, string(b))
	} else {
		fmt.Fprintln(opts.Writer, message)
	}
}
