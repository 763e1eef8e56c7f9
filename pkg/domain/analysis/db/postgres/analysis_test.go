package postgres_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	kpool "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool"
	testenv "github.com/pharmbio/pipeline-monitor/pkg/conn/db/postgres/pool/testenv"
	"github.com/pharmbio/pipeline-monitor/pkg/domain"
	kpganalysis "github.com/pharmbio/pipeline-monitor/pkg/domain/analysis/db/postgres"
	domerr "github.com/pharmbio/pipeline-monitor/pkg/domain/errors"
	"github.com/pharmbio/pipeline-monitor/pkg/domain/internal/db/postgres/tables"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/pointer"
	"github.com/pharmbio/pipeline-monitor/pkg/utils/try"
)

func given(t *testing.T) tables.Operation {
	finished := try.To(time.Parse(time.RFC3339, "2024-05-06T07:08:09Z")).OrFatal(t)
	return tables.Operation{
		Acquisitions: []tables.PlateAcquisition{
			{Id: 1, Project: "proj", Name: "P1-U2OS-x", ChannelMapId: pointer.Ref[int64](7), Finished: &finished},
		},
		Pipelines: []tables.Pipeline{
			{
				Name: "three-steps",
				Meta: `{
					"sub_analyses": [
						{"sub_type": "qc", "z": "1", "run_on_uppmax": true},
						{"sub_type": "features", "well_filter": ["A01"], "priority": 9},
						{"sub_type": "report", "cp_version": "old"}
					],
					"analysis_meta": {"cp_version": "old", "owner": "lab", "priority": 1}
				}`,
			},
			{Name: "no-steps", Meta: `{"sub_analyses": []}`},
			{Name: "broken-step", Meta: `{"sub_analyses": [{"sub_type": "qc"}, {"no": "type"}]}`},
		},
	}
}

// subInsertFault fails the failAt-th insert into image_sub_analyses with err.
type subInsertFault struct {
	failAt int
	err    error
	seen   int
}

type faultyPool struct {
	kpool.Pool
	fault *subInsertFault
}

func (p faultyPool) Acquire(ctx context.Context) (kpool.Conn, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return faultyConn{Conn: conn, fault: p.fault}, nil
}

type faultyConn struct {
	kpool.Conn
	fault *subInsertFault
}

func (c faultyConn) BeginTx(ctx context.Context, opts pgx.TxOptions) (kpool.Tx, error) {
	tx, err := c.Conn.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return faultyTx{Tx: tx, fault: c.fault}, nil
}

type faultyTx struct {
	kpool.Tx
	fault *subInsertFault
}

func (tx faultyTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	if strings.Contains(sql, `insert into "image_sub_analyses"`) {
		tx.fault.seen++
		if tx.fault.seen == tx.fault.failAt {
			return errRow{err: tx.fault.err}
		}
	}
	return tx.Tx.QueryRow(ctx, sql, args...)
}

type errRow struct {
	err error
}

func (r errRow) Scan(...interface{}) error {
	return r.err
}

func TestSubmit(t *testing.T) {
	poolBroaker := testenv.NewPoolBroaker(context.Background(), t)

	t.Run("it creates an analysis and a chain of sub-analyses with overridden metadata", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		if err := given(t).Apply(ctx, pool); err != nil {
			t.Fatal(err)
		}

		testee := kpganalysis.New(pool)
		submitted := try.To(testee.Submit(ctx, domain.SubmitRequest{
			AcquisitionId: 1,
			PipelineName:  "three-steps",
			ToolVersion:   "v4.2",
			SiteFilter:    domain.Filter{"1", "2"},
			PriorityText:  "5",
			Flags:         domain.RunFlags{Pelle: true},
			RunLocation:   domain.RunLocationPelle,
			SubmittedBy:   "alice",
		})).OrFatal(t)

		if len(submitted.SubAnalysisIds) != 3 {
			t.Fatalf("unexpected sub-analyses: %+v", submitted)
		}

		analysis, subs := func() (domain.Analysis, []domain.SubAnalysis) {
			a, s, err := testee.Get(ctx, submitted.AnalysisId)
			if err != nil {
				t.Fatal(err)
			}
			return a, s
		}()

		if analysis.PlateAcquisitionId != 1 || analysis.PipelineName != "three-steps" {
			t.Errorf("analysis: %+v", analysis)
		}
		{
			m := analysis.Meta
			if m.Priority == nil || *m.Priority != 5 {
				t.Errorf("analysis priority: %v", m.Priority)
			}
			if m.CpVersion != "v4.2" || m.SubmittedBy != "alice" || m.RunLocation != domain.RunLocationPelle {
				t.Errorf("analysis meta: %+v", m)
			}
			if !reflect.DeepEqual(m.SiteFilter, domain.Filter{"1", "2"}) {
				t.Errorf("site filter: %v", m.SiteFilter)
			}
			if _, ok := m.Extra["owner"]; !ok {
				t.Errorf("keys of template are lost: %+v", m.Extra)
			}
		}

		ids := make([]int64, 0, len(subs))
		for _, s := range subs {
			ids = append(ids, s.SubId)
		}
		if !reflect.DeepEqual(ids, submitted.SubAnalysisIds) {
			t.Errorf("sub ids: %v, want %v", ids, submitted.SubAnalysisIds)
		}

		for i, s := range subs {
			expectedDeps := []int64{}
			if 0 < i {
				expectedDeps = []int64{subs[i-1].SubId}
			}
			if !reflect.DeepEqual(s.DependsOn, expectedDeps) {
				t.Errorf("sub #%d depends on %v, want %v", i, s.DependsOn, expectedDeps)
			}
			if s.AnalysisId != submitted.AnalysisId || s.PlateAcquisitionId != 1 {
				t.Errorf("sub #%d: %+v", i, s)
			}
			if s.Priority == nil || *s.Priority != 5 {
				t.Errorf("sub #%d priority column: %v", i, s.Priority)
			}
			if s.Meta.Priority == nil || *s.Meta.Priority != 5 {
				t.Errorf("sub #%d priority in meta: %v", i, s.Meta.Priority)
			}
			if s.Meta.CpVersion != "v4.2" {
				t.Errorf("sub #%d cp_version: %s", i, s.Meta.CpVersion)
			}
			if s.Meta.SubmittedBy != "" {
				t.Errorf("sub #%d has submitter: %s", i, s.Meta.SubmittedBy)
			}
			if !s.Meta.Flags.Pelle {
				t.Errorf("sub #%d lost runtime flag", i)
			}
		}

		if subs[0].Meta.SubType() != "qc" || subs[1].Meta.SubType() != "features" || subs[2].Meta.SubType() != "report" {
			t.Errorf("steps are not in order")
		}
		if subs[0].Meta.Z != "1" || !subs[0].Meta.Flags.Uppmax {
			t.Errorf("step values are not kept: %+v", subs[0].Meta)
		}
		if !reflect.DeepEqual(subs[1].Meta.WellFilter, domain.Filter{"A01"}) {
			t.Errorf("well filter of step is overwritten by empty one: %v", subs[1].Meta.WellFilter)
		}
	})

	t.Run("without priority, priorities are null", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		if err := given(t).Apply(ctx, pool); err != nil {
			t.Fatal(err)
		}

		testee := kpganalysis.New(pool)
		submitted := try.To(testee.Submit(ctx, domain.SubmitRequest{
			AcquisitionId: 1, PipelineName: "three-steps", PriorityText: "high",
		})).OrFatal(t)

		analysis, subs, err := testee.Get(ctx, submitted.AnalysisId)
		if err != nil {
			t.Fatal(err)
		}
		if analysis.Meta.Priority != nil {
			t.Errorf("analysis priority: %d", *analysis.Meta.Priority)
		}
		for i, s := range subs {
			if s.Priority != nil || s.Meta.Priority != nil {
				t.Errorf("sub #%d has priority", i)
			}
		}
	})

	t.Run("a pipeline without steps creates only the analysis", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		if err := given(t).Apply(ctx, pool); err != nil {
			t.Fatal(err)
		}

		submitted := try.To(kpganalysis.New(pool).Submit(ctx, domain.SubmitRequest{
			AcquisitionId: 1, PipelineName: "no-steps",
		})).OrFatal(t)
		if len(submitted.SubAnalysisIds) != 0 {
			t.Errorf("sub-analyses: %v", submitted.SubAnalysisIds)
		}
	})

	t.Run("when inserting a later sub-analysis fails, nothing of the submission is left", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		if err := given(t).Apply(ctx, pool); err != nil {
			t.Fatal(err)
		}

		expectedErr := errors.New("connection lost")
		fault := &subInsertFault{failAt: 2, err: expectedErr}
		testee := kpganalysis.New(faultyPool{Pool: pool, fault: fault})

		_, err := testee.Submit(ctx, domain.SubmitRequest{AcquisitionId: 1, PipelineName: "three-steps"})
		if !errors.Is(err, expectedErr) {
			t.Errorf("unexpected error: %v", err)
		}
		if fault.seen != 2 {
			t.Fatalf("sub-analyses are inserted %d times, want 2", fault.seen)
		}

		conn := try.To(pool.Acquire(ctx)).OrFatal(t)
		defer conn.Release()
		for _, table := range []string{"image_analyses", "image_sub_analyses"} {
			if n := try.To(tables.Count(ctx, conn, table)).OrFatal(t); n != 0 {
				t.Errorf("%s has %d rows", table, n)
			}
		}
	})

	for name, testcase := range map[string]struct {
		request domain.SubmitRequest
		then    error
	}{
		"when the pipeline does not exist, it returns ErrNotFound": {
			request: domain.SubmitRequest{AcquisitionId: 1, PipelineName: "nothing"},
			then:    domerr.ErrNotFound,
		},
		"when the acquisition does not exist, it returns ErrNotFound": {
			request: domain.SubmitRequest{AcquisitionId: 999, PipelineName: "three-steps"},
			then:    domerr.ErrNotFound,
		},
		"when a step is malformed, it returns ErrInvalid": {
			request: domain.SubmitRequest{AcquisitionId: 1, PipelineName: "broken-step"},
			then:    domerr.ErrInvalid,
		},
		"when the acquisition id is not positive, it returns ErrInvalid": {
			request: domain.SubmitRequest{AcquisitionId: 0, PipelineName: "three-steps"},
			then:    domerr.ErrInvalid,
		},
		"when a filter has an empty item, it returns ErrInvalid": {
			request: domain.SubmitRequest{AcquisitionId: 1, PipelineName: "three-steps", WellFilter: domain.Filter{"A01", " "}},
			then:    domerr.ErrInvalid,
		},
	} {
		t.Run(name+", and writes nothing", func(t *testing.T) {
			ctx := context.Background()
			pool := poolBroaker.GetPool(ctx, t)
			if err := given(t).Apply(ctx, pool); err != nil {
				t.Fatal(err)
			}

			_, err := kpganalysis.New(pool).Submit(ctx, testcase.request)
			if !errors.Is(err, testcase.then) {
				t.Errorf("unexpected error: %v", err)
			}

			conn := try.To(pool.Acquire(ctx)).OrFatal(t)
			defer conn.Release()
			for _, table := range []string{"image_analyses", "image_sub_analyses"} {
				if n := try.To(tables.Count(ctx, conn, table)).OrFatal(t); n != 0 {
					t.Errorf("%s has %d rows", table, n)
				}
			}
		})
	}
}

func TestMarkSubmitted(t *testing.T) {
	poolBroaker := testenv.NewPoolBroaker(context.Background(), t)

	t.Run("it records an acquisition once", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpganalysis.New(pool)

		if inserted := try.To(testee.MarkSubmitted(ctx, 3)).OrFatal(t); !inserted {
			t.Error("first mark is not inserted")
		}
		if inserted := try.To(testee.MarkSubmitted(ctx, 3)).OrFatal(t); inserted {
			t.Error("second mark is inserted")
		}
		if inserted := try.To(testee.MarkSubmitted(ctx, 1)).OrFatal(t); !inserted {
			t.Error("mark for another acquisition is not inserted")
		}

		conn := try.To(pool.Acquire(ctx)).OrFatal(t)
		defer conn.Release()
		ledger := try.To(tables.LedgerOf(ctx, conn)).OrFatal(t)
		if !reflect.DeepEqual(ledger, []int64{1, 3}) {
			t.Errorf("ledger: %v", ledger)
		}
	})
}

func TestGet_Missing(t *testing.T) {
	poolBroaker := testenv.NewPoolBroaker(context.Background(), t)
	ctx := context.Background()
	pool := poolBroaker.GetPool(ctx, t)

	_, _, err := kpganalysis.New(pool).Get(ctx, 42)
	if !errors.Is(err, domerr.ErrNotFound) {
		t.Errorf("unexpected error: %v", err)
	}
}
