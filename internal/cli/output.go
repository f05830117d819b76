package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Output печатает результаты команд: таблицей для человека или JSON
// (--json) для скриптов. Служебные сообщения идут в stderr, чтобы
// не смешиваться с данными.
type Output struct {
	jsonMode bool
	data     io.Writer
	msg      io.Writer
}

// NewOutput создаёт Output поверх stdout/stderr.
func NewOutput(jsonMode bool) *Output {
	return newOutput(jsonMode, os.Stdout, os.Stderr)
}

func newOutput(jsonMode bool, data, msg io.Writer) *Output {
	return &Output{jsonMode: jsonMode, data: data, msg: msg}
}

// Print выводит rows таблицей или jsonData как JSON.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	if len(rows) == 0 {
		fmt.Fprintln(o.msg, "No results.")
		return
	}
	o.Table(headers, rows)
}

// Table выводит выровненную таблицу с подчёркнутыми заголовками.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := o.tabs()
	writeRow(tw, headers)

	underline := make([]string, len(headers))
	for i, h := range headers {
		underline[i] = strings.Repeat("-", len(h))
	}
	writeRow(tw, underline)

	for _, row := range rows {
		writeRow(tw, row)
	}
	tw.Flush()
}

// Fields выводит карточку объекта "КЛЮЧ: значение". Пустые значения опускаются.
func (o *Output) Fields(fields [][2]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}

	tw := o.tabs()
	for _, f := range fields {
		if f[1] != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", f[0], f[1])
		}
	}
	tw.Flush()
}

// JSON выводит v с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.data)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success печатает сообщение в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.msg, msg)
}

func (o *Output) tabs() *tabwriter.Writer {
	return tabwriter.NewWriter(o.data, 0, 0, 2, ' ', 0)
}

func writeRow(w io.Writer, cells []string) {
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}

// formatValue форматирует return_value для таблицы.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
