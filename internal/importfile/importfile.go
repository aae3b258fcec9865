// Package importfile reads the clipping parser's normalized output.
//
// A document is either an object with a clippings list and the parser's
// counters, or a bare list of clippings:
//
//	{"clippings": [...], "stats": {"duplicatesRemoved": 3, "linkedNotes": 1}}
//
// JSON and YAML are accepted; the format follows the file extension.
package importfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kindlehubapp/kindlehub/internal/batch"
	"github.com/kindlehubapp/kindlehub/internal/domain"
	domainerrors "github.com/kindlehubapp/kindlehub/internal/errors"
	"github.com/kindlehubapp/kindlehub/internal/validation"
)

// Format is the encoding of an import document.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// MaxFileSize bounds what Read will load.
const MaxFileSize = 64 << 20

// idNamespace scopes content-derived clipping IDs.
var idNamespace = uuid.MustParse("6f1c2a8e-4b5d-4e1a-9c37-0b8d2f6a7e51")

// FormatFromPath picks the format from a file extension. Unknown extensions are JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", domainerrors.Validationf("unsupported import format %q", s)
	}
}

// Document is the decoded import document.
type Document struct {
	Clippings []Clipping `json:"clippings" yaml:"clippings" validate:"dive"`
	Stats     Stats      `json:"stats,omitempty" yaml:"stats"`
}

// Stats are the parser's own counters for the file.
type Stats struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	DuplicatesRemoved int `json:"duplicatesRemoved,omitempty" yaml:"duplicatesRemoved" validate:"gte=0"`
	LinkedNotes       int `json:"linkedNotes,omitempty" yaml:"linkedNotes" validate:"gte=0"`
}

// Clipping is one parser record before conversion to domain.Clipping.
type Clipping struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	ID       string   `json:"id,omitempty" yaml:"id" doc:"Parser-assigned clipping ID"`
	Title    string   `json:"title" yaml:"title" validate:"notblank" doc:"Book title"`
	Author   string   `json:"author,omitempty" yaml:"author" doc:"Book author"`
	Type     string   `json:"type" yaml:"type" validate:"required,clippingtype" doc:"highlight, note, bookmark, clip or article"`
	Content  string   `json:"content,omitempty" yaml:"content"`
	Location string   `json:"location,omitempty" yaml:"location"`
	Page     *int     `json:"page,omitempty" yaml:"page" validate:"omitempty,gte=0"`
	Date     string   `json:"date,omitempty" yaml:"date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00" doc:"RFC 3339 timestamp"`
	Note     string   `json:"note,omitempty" yaml:"note"`
	Tags     []string `json:"tags,omitempty" yaml:"tags"`
}

// Result is a validated document ready to stage as a batch.
type Result struct {
	Clippings []domain.Clipping
	Source    batch.Source
}

// Reader decodes and validates import documents.
type Reader struct {
	validator *validation.Validator
}

// NewReader creates a Reader.
func NewReader(v *validation.Validator) *Reader {
	if v == nil {
		v = validation.New()
	}
	return &Reader{validator: v}
}

// Read loads the file at path. The file name and size are recorded in the
// result's Source.
func (r *Reader) Read(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat import file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, domainerrors.Validationf("import file is %d bytes, limit is %d", info.Size(), MaxFileSize)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}

	res, err := r.Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, err
	}
	res.Source.FileName = filepath.Base(path)
	res.Source.FileSize = info.Size()
	return res, nil
}

// Parse decodes data in the given format. Source carries only the upstream
// counters; callers fill in file name and size.
func (r *Reader) Parse(data []byte, format Format) (*Result, error) {
	var doc Document
	var err error
	switch format {
	case FormatYAML:
		err = decodeYAML(data, &doc)
	default:
		err = decodeJSON(data, &doc)
	}
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeValidation, "decode %s document", format)
	}

	if err := r.validator.Validate(&doc); err != nil {
		return nil, err
	}

	return doc.Result()
}

// Result converts a validated document. Clippings without an ID get one
// derived from their book, location and content, so importing the same file
// twice yields the same IDs.
func (d *Document) Result() (*Result, error) {
	clippings := make([]domain.Clipping, 0, len(d.Clippings))
	for i, raw := range d.Clippings {
		c, err := raw.toDomain()
		if err != nil {
			return nil, domainerrors.Validationf("clippings[%d]: %v", i, err)
		}
		clippings = append(clippings, c)
	}

	return &Result{
		Clippings: clippings,
		Source: batch.Source{
			Upstream: batch.UpstreamStats{
				DuplicatesRemoved: d.Stats.DuplicatesRemoved,
				LinkedNotes:       d.Stats.LinkedNotes,
			},
		},
	}, nil
}

func (c Clipping) toDomain() (domain.Clipping, error) {
	typ, err := domain.ParseClippingType(c.Type)
	if err != nil {
		return domain.Clipping{}, err
	}

	out := domain.Clipping{
		ID:       strings.TrimSpace(c.ID),
		Title:    strings.TrimSpace(c.Title),
		Author:   strings.TrimSpace(c.Author),
		Type:     typ,
		Content:  c.Content,
		Location: c.Location,
		Note:     c.Note,
	}
	if c.Page != nil {
		page := *c.Page
		out.Page = &page
	}
	if c.Date != "" {
		date, err := time.Parse(time.RFC3339, c.Date)
		if err != nil {
			return domain.Clipping{}, fmt.Errorf("date: %w", err)
		}
		out.Date = &date
	}
	if len(c.Tags) > 0 {
		out.Tags = append([]string(nil), c.Tags...)
	}
	if out.ID == "" {
		out.ID = derivedID(out)
	}
	return out, nil
}

func derivedID(c domain.Clipping) string {
	key := strings.Join([]string{c.Title, c.Author, string(c.Type), c.Location, c.Content}, "\x1f")
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

func decodeJSON(data []byte, doc *Document) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &doc.Clippings)
	}
	return json.Unmarshal(trimmed, doc)
}

func decodeYAML(data []byte, doc *Document) error {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	if len(node.Content) == 0 {
		return nil
	}
	root := node.Content[0]
	if root.Kind == yaml.SequenceNode {
		return root.Decode(&doc.Clippings)
	}
	return root.Decode(doc)
}
