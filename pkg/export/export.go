// Package export renders board snapshots for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/fieldboard/core/board"
)

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatHTML = "html"
)

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

// Write dispatches to the writer of format.
func Write(w io.Writer, format string, v board.View) error {
	switch format {
	case FormatJSON, "":
		return WriteJSON(w, v)
	case FormatCSV:
		return WriteCSV(w, v)
	case FormatHTML:
		return WriteLaneChart(w, v)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteJSON writes the board snapshot to w in JSON format.
func WriteJSON(w io.Writer, v board.View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteCSV writes one row per job, lanes in board order.
func WriteCSV(w io.Writer, v board.View) error {
	cw := csv.NewWriter(w)
	header := []string{"date", "vehicle_id", "position", "job_id", "project_ref", "status", "priority", "scheduled_time", "duration_hours"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, l := range v.Lanes {
		for _, j := range l.Jobs {
			rec := []string{
				v.Date,
				l.VehicleID,
				strconv.Itoa(j.Position),
				j.ID,
				j.ProjectRef,
				string(j.Status),
				string(j.Priority),
				j.ScheduledTime.UTC().Format(time.RFC3339),
				strconv.FormatFloat(j.EstimatedDurationHours, 'f', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLaneChart renders an HTML bar chart of jobs per lane next to each
// lane's capacity. Unlimited lanes have no capacity bar.
func WriteLaneChart(w io.Writer, v board.View) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Board " + v.Date, Subtitle: fmt.Sprintf("version %d", v.Version)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Vehicle"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Jobs"}),
	)

	var lanes []string
	var jobs, capacity []opts.BarData
	for _, l := range v.Lanes {
		lanes = append(lanes, l.VehicleID)
		jobs = append(jobs, opts.BarData{Value: len(l.Jobs)})
		if l.Capacity.IsUnlimited() {
			capacity = append(capacity, opts.BarData{Value: "-"})
			continue
		}
		capacity = append(capacity, opts.BarData{Value: int(l.Capacity)})
	}
	bar.SetXAxis(lanes).
		AddSeries("Jobs", jobs).
		AddSeries("Capacity", capacity)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
