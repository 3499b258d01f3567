package supervisor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/refinery/internal/config"
	refinerrors "github.com/alexisbeaulieu97/refinery/pkg/errors"
)

const (
	notReachedMarker = "Conv. not yet reached"
	normalEndMarker  = "Normal end, final calculations and writing..."
)

var (
	shiftRegex         = regexp.MustCompile(`Conv\. not yet reached\s*->\s*\[Max\] Shift.*?=\s*([-\d.]+)\s*abs>`)
	trailingValueRegex = regexp.MustCompile(`=\s*(-?[\d.]+)`)
)

type fatalRule struct {
	trigger        string
	classification string
}

// Checked in order; the first trigger found in a line wins.
var fatalRules = []fatalRule{
	{trigger: "Lorentzian-FWHM < 0", classification: "negative peak width (Lorentzian FWHM < 0)"},
	{trigger: "W A R N I N G: negative GAUSSIAN FWHM somewhere", classification: "negative Gaussian FWHM"},
	{trigger: "Singular matrix", classification: "singular matrix"},
	{trigger: "Negative intensity", classification: "negative intensity: check atom positions or occupancies"},
	{trigger: "have you really reflections?", classification: "no reflections: engine asked whether reflections exist"},
	{trigger: "NO REFLECTIONS FOUND", classification: "no reflections found: check the INS parameter of the data and/or the zero point"},
}

// classifyFatal returns the classification of the first fatal trigger in line.
func classifyFatal(line string) (string, bool) {
	for _, rule := range fatalRules {
		if strings.Contains(line, rule.trigger) {
			return rule.classification, true
		}
	}
	return "", false
}

// monitor holds the per-process detector state. It is owned by the supervising
// loop and never shared.
type monitor struct {
	cfg config.DetectionConfig

	prev string

	hasShift    bool
	lastShift   float64
	rises       int
	equals      int
	lastShiftAt time.Time
}

func newMonitor(cfg config.DetectionConfig) *monitor {
	return &monitor{cfg: cfg}
}

// observe runs the detectors over one output line. It returns the unconverged
// value when the non-convergence warning fires, and an error when the engine must
// be killed.
func (m *monitor) observe(line string, at time.Time) (string, error) {
	if classification, fatal := classifyFatal(line); fatal {
		return "", refinerrors.NewEngineRuntimeError(classification, line)
	}

	current := strings.TrimSpace(line)
	warning := ""
	if strings.Contains(m.prev, notReachedMarker) && strings.Contains(current, normalEndMarker) {
		warning = trailingValue(m.prev)
	}
	m.prev = current

	if m.cfg.ShiftEnabled || m.cfg.StallEnabled {
		if match := shiftRegex.FindStringSubmatch(line); match != nil {
			if err := m.observeShift(match[1], at); err != nil {
				return warning, err
			}
			return warning, nil
		}
	}

	return warning, m.checkIdle(at)
}

func (m *monitor) observeShift(raw string, at time.Time) error {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}

	if err := m.checkIdle(at); err != nil {
		return err
	}
	m.lastShiftAt = at

	if !m.cfg.ShiftEnabled {
		return nil
	}

	magnitude := math.Abs(value)
	if m.hasShift {
		switch {
		case magnitude > m.lastShift:
			m.rises++
			m.equals = 0
		case magnitude == m.lastShift:
			m.equals++
		default:
			m.rises = 0
			m.equals = 0
		}
	}
	m.hasShift = true
	m.lastShift = magnitude

	if m.rises >= m.cfg.RiseLimit || m.equals >= m.cfg.EqualLimit {
		return refinerrors.NewConvergenceError(m.rises, m.equals)
	}
	return nil
}

// checkIdle reports a stall once a shift marker has been seen and none followed
// within the block interval.
func (m *monitor) checkIdle(at time.Time) error {
	if !m.cfg.StallEnabled || m.lastShiftAt.IsZero() || m.cfg.BlockInterval <= 0 {
		return nil
	}
	if idle := at.Sub(m.lastShiftAt); idle > m.cfg.BlockInterval {
		return refinerrors.NewBlockedError(idle.Truncate(time.Second).String())
	}
	return nil
}

func trailingValue(line string) string {
	matches := trailingValueRegex.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}
