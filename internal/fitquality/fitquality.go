// Package fitquality extracts goodness-of-fit figures from engine output files.
package fitquality

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/alexisbeaulieu97/refinery/internal/template"
)

// ErrNotFound reports that an output file holds no recognizable figure.
var ErrNotFound = errors.New("fit quality figure not found")

var (
	chi2Regex = regexp.MustCompile(`Global user-weigthed Chi2 \(Bragg contrib\.\):\s*(\d+\.?\d*)`)
	rwpRegex  = regexp.MustCompile(`Rwp:\s+(\d+\.\d+)`)
)

// Report holds the figures found for one step.
type Report struct {
	Chi2 *float64
	Rwp  *float64
}

// Read collects Chi2 from <base>.out and Rwp from <base>.sum in dir. The Chi2 error
// is returned when it cannot be read; a missing .sum is not an error.
func Read(dir, base string, encodings []string) (Report, error) {
	var report Report

	chi2, err := Chi2(filepath.Join(dir, base+".out"), encodings)
	if err != nil {
		return report, err
	}
	report.Chi2 = &chi2

	if rwp, err := Rwp(filepath.Join(dir, base+".sum"), encodings); err == nil {
		report.Rwp = &rwp
	}
	return report, nil
}

// Chi2 returns the global Bragg-contribution Chi2 of an engine .out file.
func Chi2(path string, encodings []string) (float64, error) {
	return extract(path, chi2Regex, encodings)
}

// Rwp returns the weighted profile R-factor of an engine .sum file.
func Rwp(path string, encodings []string) (float64, error) {
	return extract(path, rwpRegex, encodings)
}

func extract(path string, re *regexp.Regexp, encodings []string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	text, _, err := template.Decode(data, encodings)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}

	match := re.FindStringSubmatch(text)
	if match == nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), ErrNotFound)
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return value, nil
}
