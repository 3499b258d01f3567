// Package template rewrites fixed-format control files for a refinement step.
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	refinerrors "github.com/alexisbeaulieu97/refinery/pkg/errors"
)

// InactiveToken is written to every addressable parameter that a step does not refine.
const InactiveToken = "0.00"

const tokenSeparator = "    "

var (
	dataFileLineRegex = regexp.MustCompile(`(?i)!\s*Files\s*=>\s*DAT-file:\s*[^,\s]+\.dat`)
	dataFileRefRegex  = regexp.MustCompile(`(?i)(DAT-file:\s*)([^,\s]+\.dat)`)
)

// Placement locates a parameter token: Line is 1-based, Position is a 0-based
// whitespace token index.
type Placement struct {
	ID       int
	Line     int
	Position int
}

// Request describes one control-file rendering.
type Request struct {
	BasePath   string
	OutputPath string
	// DataFile replaces the dataset reference; defaults to the output base name with .dat.
	DataFile   string
	Placements []Placement
	Values     map[int]float64
	Encodings  []string
}

// Rewrite returns a copy of lines with every addressable parameter token set to its
// active value or to InactiveToken, and the first dataset reference pointed at dataFile.
func Rewrite(lines []string, placements []Placement, values map[int]float64, dataFile string) []string {
	out := append([]string(nil), lines...)

	byLine := make(map[int][]Placement)
	for _, p := range placements {
		idx := p.Line - 1
		if idx < 0 || idx >= len(out) || p.Position < 0 {
			continue
		}
		byLine[idx] = append(byLine[idx], p)
	}

	indices := make([]int, 0, len(byLine))
	for idx := range byLine {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		out[idx] = rewriteLine(out[idx], byLine[idx], values)
	}

	if dataFile != "" {
		for idx, line := range out {
			if !dataFileLineRegex.MatchString(line) {
				continue
			}
			out[idx] = replaceDataFile(line, dataFile)
			break
		}
	}

	return out
}

func rewriteLine(line string, placements []Placement, values map[int]float64) string {
	body, cr := strings.TrimSuffix(line, "\r"), strings.HasSuffix(line, "\r")
	tokens := strings.Fields(body)

	changed := false
	// Inactive zeroes first so an active parameter sharing the token wins.
	for _, p := range placements {
		if _, active := values[p.ID]; active || p.Position >= len(tokens) {
			continue
		}
		tokens[p.Position] = InactiveToken
		changed = true
	}
	for _, p := range placements {
		v, active := values[p.ID]
		if !active || p.Position >= len(tokens) {
			continue
		}
		tokens[p.Position] = FormatValue(v)
		changed = true
	}

	if !changed {
		return line
	}

	rewritten := strings.Join(tokens, tokenSeparator)
	if cr {
		rewritten += "\r"
	}
	return rewritten
}

func replaceDataFile(line, dataFile string) string {
	loc := dataFileRefRegex.FindStringSubmatchIndex(line)
	if loc == nil {
		return line
	}
	return line[:loc[4]] + dataFile + line[loc[5]:]
}

// FormatValue renders a parameter value with exactly two decimals.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ReadLines decodes a control file and splits it into lines.
func ReadLines(path string, encodings []string) ([]string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, refinerrors.NewTemplateError(path, err)
	}

	text, _, err := Decode(data, encodings)
	if err != nil {
		return nil, false, refinerrors.NewTemplateError(path, err)
	}

	lines, trailing := splitLines(text)
	return lines, trailing, nil
}

// Render produces the rewritten control file content without touching disk.
func Render(req Request) ([]byte, error) {
	lines, trailing, err := ReadLines(req.BasePath, req.Encodings)
	if err != nil {
		return nil, err
	}

	dataFile := req.DataFile
	if dataFile == "" && req.OutputPath != "" {
		base := filepath.Base(req.OutputPath)
		dataFile = strings.TrimSuffix(base, filepath.Ext(base)) + ".dat"
	}

	rewritten := Rewrite(lines, req.Placements, req.Values, dataFile)
	return []byte(joinLines(rewritten, trailing)), nil
}

// RenderFile renders req and writes the result to req.OutputPath as UTF-8.
func RenderFile(req Request) error {
	if strings.TrimSpace(req.OutputPath) == "" {
		return refinerrors.NewTemplateError(req.BasePath, fmt.Errorf("output path is empty"))
	}

	content, err := Render(req)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(req.OutputPath, content, defaultFileMode); err != nil {
		return refinerrors.NewTemplateError(req.OutputPath, err)
	}
	return nil
}
