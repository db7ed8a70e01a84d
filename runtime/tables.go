package runtime

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pithecene-io/flint/metrics"
	"github.com/pithecene-io/flint/toolchain"
)

// digestLen is how much of a sha256 digest a table shows.
const digestLen = 12

// Table renders the build as key/value rows.
func (r *BuildResult) Table() ([]string, [][]string) {
	rows := [][]string{{"outcome", string(r.Outcome.Status)}}
	rows = appendArtifact(rows, r.Artifact)
	rows = append(rows, []string{"duration", roundMs(r.Duration)})
	return nil, appendMetrics(rows, r.Metrics)
}

// Table renders the upload as key/value rows.
func (r *UploadResult) Table() ([]string, [][]string) {
	rows := [][]string{{"outcome", string(r.Outcome.Status)}}
	rows = appendArtifact(rows, r.Artifact)
	if s := r.Session; s != nil {
		mode := "auto"
		if s.Manual {
			mode = "manual"
		}
		rows = append(rows,
			[]string{"session", s.SessionID},
			[]string{"device", s.Device},
			[]string{"mode", mode},
			[]string{"baud", strconv.Itoa(s.Baud)},
			[]string{"polls", strconv.Itoa(s.Polls)},
			[]string{"phase", string(s.Phase)},
		)
	}
	rows = append(rows, []string{"duration", roundMs(r.Duration)})
	return nil, appendMetrics(rows, r.Metrics)
}

// Table renders one row per candidate device.
func (r *DevicesResult) Table() ([]string, [][]string) {
	headers := []string{"path", "class", "vid:pid", "serial", "product", "preferred"}
	rows := make([][]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		ids := ""
		if c.VID != "" {
			ids = c.VID + ":" + c.PID
		}
		preferred := ""
		if c.Preferred {
			preferred = "*"
		}
		rows = append(rows, []string{c.Path, c.Class, ids, c.Serial, c.Product, preferred})
	}
	return headers, rows
}

// Table renders one row per removed file.
func (r *CleanResult) Table() ([]string, [][]string) {
	rows := make([][]string, 0, len(r.Removed))
	for _, path := range r.Removed {
		rows = append(rows, []string{path})
	}
	return []string{"removed"}, rows
}

// Table renders the build state and tool resolution as key/value rows.
func (r *InfoResult) Table() ([]string, [][]string) {
	fresh := "yes"
	if !r.Fresh {
		fresh = "no"
		if r.Reason != "" {
			fresh += " (" + r.Reason + ")"
		}
	}
	rows := [][]string{
		{"version", r.Version},
		{"source", r.Source},
		{"image", r.Image},
		{"manifest", r.Manifest},
		{"fresh", fresh},
	}
	if a := r.Artifact; a != nil {
		rows = append(rows,
			[]string{"built_at", a.BuiltAt.Format(time.RFC3339)},
			[]string{"digest", shortDigest(a.ImageDigest)},
		)
	}
	for _, t := range r.Tools {
		where := "not found"
		if t.Found {
			where = t.Path
		}
		rows = append(rows, []string{t.Role, fmt.Sprintf("%s (%s)", t.Tool, where)})
	}
	return nil, rows
}

func appendArtifact(rows [][]string, a *toolchain.Artifact) [][]string {
	if a == nil {
		return rows
	}
	return append(rows,
		[]string{"image", a.ImagePath},
		[]string{"digest", shortDigest(a.ImageDigest)},
		[]string{"size", fmt.Sprintf("%d bytes", a.ImageSize)},
	)
}

func appendMetrics(rows [][]string, m *metrics.Snapshot) [][]string {
	if m == nil {
		return rows
	}
	rows = append(rows,
		[]string{"stage_runs", formatCounts(m.StageRuns)},
		[]string{"stage_failures", formatCounts(m.StageFailures)},
		[]string{"stage_timeouts", formatCounts(m.StageTimeouts)},
		[]string{"poll_cycles", strconv.FormatInt(m.PollCycles, 10)},
		[]string{"upload_attempts", strconv.FormatInt(m.UploadAttempts, 10)},
	)
	return rows
}

func formatCounts(counts map[string]int64) string {
	if len(counts) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(counts))
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func shortDigest(d string) string {
	if len(d) > digestLen {
		return d[:digestLen]
	}
	return d
}

func roundMs(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
