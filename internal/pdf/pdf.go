// Package pdf fills AcroForm templates and merges the results into one
// package document.
package pdf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Filler renders field maps into template PDFs.
type Filler struct {
	dir  string
	conf *model.Configuration
}

// NewFiller reads templates from dir.
func NewFiller(dir string) *Filler {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Filler{dir: dir, conf: conf}
}

// Fill populates template with fields. Values starting with "/" select a
// radio button export value; everything else fills a text field.
func (f *Filler) Fill(template string, fields map[string]string) ([]byte, error) {
	src, err := os.ReadFile(filepath.Join(f.dir, template))
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", template, err)
	}
	formJSON, err := FormJSON(fields)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := api.FillForm(bytes.NewReader(src), bytes.NewReader(formJSON), &out, f.conf); err != nil {
		return nil, fmt.Errorf("fill template %s: %w", template, err)
	}
	return out.Bytes(), nil
}

// Merge concatenates docs in order.
func (f *Filler) Merge(docs ...[]byte) ([]byte, error) {
	readers := make([]io.ReadSeeker, 0, len(docs))
	for _, d := range docs {
		readers = append(readers, bytes.NewReader(d))
	}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, f.conf); err != nil {
		return nil, fmt.Errorf("merge package: %w", err)
	}
	return out.Bytes(), nil
}

type formGroup struct {
	Forms []form `json:"forms"`
}

type form struct {
	TextFields  []formField `json:"textfield,omitempty"`
	RadioGroups []formField `json:"radiobuttongroup,omitempty"`
}

type formField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FormJSON encodes fields in the pdfcpu form fill format, sorted by name.
func FormJSON(fields map[string]string) ([]byte, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var fm form
	for _, name := range names {
		v := fields[name]
		if strings.HasPrefix(v, "/") {
			fm.RadioGroups = append(fm.RadioGroups, formField{Name: name, Value: strings.TrimPrefix(v, "/")})
			continue
		}
		fm.TextFields = append(fm.TextFields, formField{Name: name, Value: v})
	}
	data, err := json.Marshal(formGroup{Forms: []form{fm}})
	if err != nil {
		return nil, fmt.Errorf("encode form fields: %w", err)
	}
	return data, nil
}
