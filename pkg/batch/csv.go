// Package batch submits analyses listed in a CSV file, one row at a time.
package batch

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
	xe "github.com/pharmbio/pipeline-monitor/pkg/errors"
)

const (
	ColumnPlateAcquisition = "plate_acquisition"
	ColumnPipelineName     = "analysis_pipeline_name"
	ColumnToolVersion      = "cellprofiler_version"
	ColumnWellFilter       = "well_filter"
	ColumnSiteFilter       = "site_filter"
	ColumnZPlane           = "z_plane"
	ColumnPriority         = "priority"
	ColumnRunOnUppmax      = "run_on_uppmax"
	ColumnRunOnPharmbio    = "run_on_pharmbio"
	ColumnRunOnHaswell     = "run_on_haswell"
	ColumnRunOnPelle       = "run_on_pelle"
	ColumnRunOnHpcDev      = "run_on_hpcdev"
	ColumnRunLocation      = "run_location"
	ColumnSubmittedBy      = "submitted_by"
)

var requiredColumns = []string{ColumnPlateAcquisition, ColumnPipelineName, ColumnToolVersion}

// Row is a line of the job file.
//
// Err is not nil when the row can not be submitted. Such rows are skipped.
type Row struct {
	Line    int
	Request domain.SubmitRequest
	Err     error
}

// Parse reads rows of a job file.
//
// The first line is a header. Columns are looked up by name, so their order is free.
// Missing required columns are ErrInvalid for the whole file.
// Malformed rows are returned with Err, not as an error.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, domerr.Invalid("job file is empty. header is required")
	} else if err != nil {
		return nil, xe.Wrap(err)
	}

	columns := map[string]int{}
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	missing := []string{}
	for _, c := range requiredColumns {
		if _, ok := columns[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) != 0 {
		return nil, domerr.Invalid("job file lacks columns: %s", strings.Join(missing, ", "))
	}

	rows := []Row{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && record != nil {
				// broken quoting and so on. Only the row is given up.
				rows = append(rows, Row{Line: perr.Line, Err: domerr.Invalid("%s", perr.Err)})
				continue
			}
			return nil, xe.Wrap(err)
		}
		line, _ := cr.FieldPos(0)

		cell := func(name string) string {
			i, ok := columns[name]
			if !ok || len(record) <= i {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if isBlank(record) {
			continue
		}

		req, err := parseRow(cell)
		rows = append(rows, Row{Line: line, Request: req, Err: err})
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseRow(cell func(string) string) (domain.SubmitRequest, error) {
	acq, err := strconv.ParseInt(cell(ColumnPlateAcquisition), 10, 64)
	if err != nil || acq <= 0 {
		return domain.SubmitRequest{}, domerr.Invalid(
			"%s should be a positive number: %q", ColumnPlateAcquisition, cell(ColumnPlateAcquisition),
		)
	}

	pipeline := cell(ColumnPipelineName)
	version := cell(ColumnToolVersion)
	if pipeline == "" || version == "" {
		return domain.SubmitRequest{}, domerr.Invalid(
			"%s and %s are required", ColumnPipelineName, ColumnToolVersion,
		)
	}

	well, err := domain.ParseFilter(cell(ColumnWellFilter))
	if err != nil {
		return domain.SubmitRequest{}, xe.WrapWithNote(ColumnWellFilter, err)
	}
	site, err := domain.ParseFilter(cell(ColumnSiteFilter))
	if err != nil {
		return domain.SubmitRequest{}, xe.WrapWithNote(ColumnSiteFilter, err)
	}
	site, err = site.ExpandRanges()
	if err != nil {
		return domain.SubmitRequest{}, xe.WrapWithNote(ColumnSiteFilter, err)
	}

	// run_on_haswell is accepted for compatibility, but there are no haswell backends any more.
	return domain.SubmitRequest{
		AcquisitionId: acq,
		PipelineName:  pipeline,
		ToolVersion:   version,
		WellFilter:    well,
		SiteFilter:    site,
		ZPlane:        cell(ColumnZPlane),
		PriorityText:  cell(ColumnPriority),
		Flags: domain.RunFlags{
			Uppmax:   domain.ParseBool(cell(ColumnRunOnUppmax)),
			Pharmbio: domain.ParseBool(cell(ColumnRunOnPharmbio)),
			Pelle:    domain.ParseBool(cell(ColumnRunOnPelle)),
			HpcDev:   domain.ParseBool(cell(ColumnRunOnHpcDev)),
		},
		RunLocation: cell(ColumnRunLocation),
		SubmittedBy: cell(ColumnSubmittedBy),
	}, nil
}
